/*
pvs-tool - A build tracer and driver for the PVS-Studio analyzer
Copyright (C) 2026  Nikdatrix Ltd.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package extractor turns the program-execution events of a resolved
// trace into compilation units: one entry per source file, holding the
// normalized subset of compiler flags the analyzer needs.
package extractor

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/glog"
	"golang.org/x/exp/slices"

	"github.com/nikdatrix/pvs-tool/strace/proctree"
	"github.com/nikdatrix/pvs-tool/tracelib/basic"
)

var compilerNames = []string{"cc", "gcc", "clang", "c++", "g++", "clang++"}

var sourceSuffixes = []string{".c", ".cpp", ".cc", ".cx", ".cxx"}

// Catch-all for compiler-specific include-like flags that carry a path
// directly after a short option name, e.g. -isystem/usr/include or
// -iquote/x. Kept verbatim.
var includeLikeRe = regexp.MustCompile(`^-[A-Za-z]+=?/`)

// Extractor collects compilation units while a trace is replayed. A
// later compiler call for the same resolved source path overwrites the
// earlier one, mirroring "last compile command wins" build semantics.
type Extractor struct {
	units           map[string]unit
	excludePatterns []string
}

type unit struct {
	dir  string
	args []string
}

func New(excludePatterns []string) *Extractor {
	return &Extractor{
		units:           make(map[string]unit),
		excludePatterns: excludePatterns,
	}
}

func isCompiler(prog string) bool {
	return slices.Contains(compilerNames, strings.ToLower(filepath.Base(prog)))
}

func isSourceFile(arg string) bool {
	if arg == "" || arg[0] == '-' {
		return false
	}
	return slices.Contains(sourceSuffixes, strings.ToLower(filepath.Ext(arg)))
}

// resolvePath makes path absolute against the call's working directory.
func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(dir + "/" + path)
}

func (e *Extractor) excluded(path string) bool {
	for _, pattern := range e.excludePatterns {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			glog.Errorf("malformed exclude-path pattern %s: %v", pattern, err)
			continue
		}
		if matched {
			glog.Infof("source file %s ignored due to pattern %s", path, pattern)
			return true
		}
	}
	return false
}

// Visit is a proctree.ExecVisitor. It ignores executions of anything but
// a compiler and link-only compiler calls, and records one compilation
// unit per resolved source path otherwise.
func (e *Extractor) Visit(line int, dir, prog string, args []string) error {
	if !isCompiler(prog) {
		return nil
	}
	seen := make(map[string]struct{})
	var kept []string
	keep := func(arg string) {
		if _, dup := seen[arg]; dup {
			return
		}
		seen[arg] = struct{}{}
		kept = append(kept, arg)
	}
	source := ""
	// args[0] is the program name again
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if isSourceFile(arg) {
			if source == "" {
				source = arg
			} else if arg != source {
				glog.Warningf("multiple source files in one compiler call at line %d: keeping %q, ignoring %q", line, source, arg)
			}
			continue
		}
		switch {
		case arg == "-o":
			// output file, irrelevant to analysis
			i++
		case strings.HasPrefix(arg, "-std="):
			keep(arg)
		case strings.HasPrefix(arg, "-D"):
			value := arg[2:]
			if value == "" && i+1 < len(args) {
				i++
				value = args[i]
			}
			keep("-D" + value)
		case strings.HasPrefix(arg, "-I"):
			include := arg[2:]
			if include == "" && i+1 < len(args) {
				i++
				include = args[i]
			}
			keep("-I" + resolvePath(dir, include))
		case includeLikeRe.MatchString(arg):
			keep(arg)
		}
		// everything else is deliberately dropped
	}
	if source == "" {
		// a link step or similar, not a compilation
		return nil
	}
	resolved, err := basic.ConvertRelativePathToAbsolute(dir, source)
	if err == nil {
		_, err = os.Stat(resolved)
	}
	if err != nil {
		glog.Warningf("source file %s from compiler call at line %d not found on disk, skipping: %v", resolved, line, err)
		return nil
	}
	if e.excluded(resolved) {
		return nil
	}
	e.units[resolved] = unit{dir: dir, args: kept}
	return nil
}

// Units returns the mapping from absolute source path to its normalized
// flag list.
func (e *Extractor) Units() map[string][]string {
	units := make(map[string][]string, len(e.units))
	for path, u := range e.units {
		units[path] = u.args
	}
	return units
}

// Run streams the trace twice: pass 1 builds the process tree, pass 2
// resolves working directories and feeds every execution event through
// the extractor.
func Run(tracePath, rootDir string, tolerance int, excludePatterns []string) (*Extractor, error) {
	f, err := os.Open(tracePath)
	if err != nil {
		return nil, err
	}
	tree, err := proctree.Build(f, tolerance)
	f.Close()
	if err != nil {
		return nil, err
	}
	glog.Infof("pass 1 done: %d incarnations, %d roots", len(tree.Arena), len(tree.Roots()))

	f, err = os.Open(tracePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	e := New(excludePatterns)
	if err := tree.ResolveDirs(f, rootDir, e.Visit); err != nil {
		return nil, err
	}
	glog.Infof("pass 2 done: %d compilation units", len(e.units))
	return e, nil
}
