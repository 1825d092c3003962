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

package options

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/message"

	"github.com/nikdatrix/pvs-tool/tracelib/i18n"
)

// EnvOptions carries the settings shared across the trace and analyze
// pipeline. It is filled once from command-line flags and passed down
// explicitly.
type EnvOptions struct {
	// ProjectRoot is the absolute path of the traced build tree.
	ProjectRoot string

	// TracePath is the strace output file to parse or to write.
	TracePath string

	// CfgPath is the analyzer configuration file.
	CfgPath string

	// Tolerance is the maximum number of trace lines between the exit
	// of a process and a later event that may still be attributed to
	// the same pid incarnation.
	Tolerance int

	// IgnoreDirPatterns holds glob patterns of paths excluded from
	// analysis.
	IgnoreDirPatterns []string

	// TimeoutNormal caps a single analyzer invocation, in minutes.
	TimeoutNormal int

	CheckProgress bool
	Debug         bool
	Lang          string
}

func (o *EnvOptions) Printer() *message.Printer {
	return i18n.GetPrinter(o.Lang)
}

// Validate normalizes the project root to an absolute path and checks
// that it exists.
func (o *EnvOptions) Validate() error {
	if o.ProjectRoot == "" {
		return fmt.Errorf("project root is empty")
	}
	root, err := filepath.Abs(o.ProjectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat project root: %v", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project root %s is not a directory", root)
	}
	o.ProjectRoot = root
	if o.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative: %d", o.Tolerance)
	}
	return nil
}
