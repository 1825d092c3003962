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

// Package runner drives the external pvs-studio binary over the
// discovered compilation units.
package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/glog"
	"github.com/google/shlex"
	"github.com/google/uuid"
	"github.com/hhatto/gocloc"

	"github.com/nikdatrix/pvs-tool/pvs/config"
	"github.com/nikdatrix/pvs-tool/pvs/logview"
	"github.com/nikdatrix/pvs-tool/strace/extractor"
	"github.com/nikdatrix/pvs-tool/tracelib/basic"
	"github.com/nikdatrix/pvs-tool/tracelib/options"
)

const analyzerBin = "pvs-studio"

func matchIgnoreDirPatterns(ignoreDirPatterns []string, filePath string) (bool, error) {
	matched := false
	var err error
	for _, ignoreDirPattern := range ignoreDirPatterns {
		matched, err = doublestar.Match(ignoreDirPattern, filePath)
		if err != nil {
			return matched, fmt.Errorf("malformed ignore_dir pattern %s", ignoreDirPattern)
		}
		if matched {
			glog.Infof("Source file %s ignored due to pattern %s", filePath, ignoreDirPattern)
			break
		}
	}
	return matched, nil
}

// CountLines reports the number of code lines across the compilation
// units, skipping ignored paths.
func CountLines(commands []extractor.CompileCommand, countLangs []string, ignoreDirPatterns []string) (int, error) {
	paths := []string{}
	for _, command := range commands {
		matched, err := matchIgnoreDirPatterns(ignoreDirPatterns, command.File)
		if err != nil {
			glog.Error(err)
			continue
		}
		if matched {
			continue
		}
		paths = append(paths, command.File)
	}

	clocOpts := gocloc.NewClocOptions()
	languages := gocloc.NewDefinedLanguages()
	for _, lang := range countLangs {
		if _, exists := languages.Langs[lang]; exists {
			clocOpts.IncludeLangs[lang] = struct{}{}
		}
	}
	processor := gocloc.NewProcessor(languages, clocOpts)
	result, err := processor.Analyze(paths)
	if err != nil {
		glog.Errorf("gocloc fail: %v", err)
		return 0, err
	}
	sum := 0
	for _, file := range result.Files {
		sum += int(file.Code)
	}
	return sum, nil
}

func analyzeOne(cc extractor.CompileCommand, cfgPath, unitLogPath string, extraParams []string, timeoutMinutes int) error {
	args := []string{
		"--cfg", cfgPath,
		"--source-file", cc.File,
		"--output-file", unitLogPath,
		"--cl-params",
	}
	args = append(args, cc.Arguments...)
	args = append(args, extraParams...)
	args = append(args, cc.File)
	cmd := exec.Command(analyzerBin, args...)
	cmd.Dir = cc.Directory
	out, err := basic.CombinedOutput(cmd, cc.File, timeoutMinutes)
	if err != nil {
		return fmt.Errorf("%v: %s", err, string(out))
	}
	return nil
}

// Run analyzes every compilation unit sequentially, in sorted file
// order. A failing unit is logged and skipped. The combined raw log is
// sorted in place when the loop finishes.
func Run(opts *options.EnvOptions, cfg *config.Config, commands []extractor.CompileCommand) error {
	outputFile, ok := cfg.Get("output-file")
	if !ok {
		return fmt.Errorf("config has no output-file")
	}
	var extraParams []string
	if extra, ok := cfg.Get("cl-params-extra"); ok {
		parsed, err := shlex.Split(extra)
		if err != nil {
			return fmt.Errorf("failed to parse cl-params-extra %q: %v", extra, err)
		}
		extraParams = parsed
	}

	sort.Slice(commands, func(i, j int) bool {
		return commands[i].File < commands[j].File
	})

	printer := opts.Printer()
	runID := uuid.NewString()
	if err := basic.AppendToFile(outputFile, fmt.Sprintf("# run %s\n", runID)); err != nil {
		return fmt.Errorf("failed to write run header: %v", err)
	}

	unitLogDir, err := os.MkdirTemp("", "pvs-units-*")
	if err != nil {
		return fmt.Errorf("failed to create unit log dir: %v", err)
	}
	defer os.RemoveAll(unitLogDir)

	progress := basic.NewCheckingProcessPrinter(len(commands))
	for i, cc := range commands {
		if opts.CheckProgress {
			progress.StartAnalyzeTask(cc.File, printer)
		}
		unitLogPath := filepath.Join(unitLogDir, fmt.Sprintf("unit-%d.log", i))
		if err := analyzeOne(cc, opts.CfgPath, unitLogPath, extraParams, opts.TimeoutNormal); err != nil {
			glog.Errorf("analysis of %s failed: %v", cc.File, err)
			continue
		}
		contents, err := os.ReadFile(unitLogPath)
		if err != nil {
			glog.Errorf("no analyzer output for %s: %v", cc.File, err)
			continue
		}
		if err := basic.AppendToFile(outputFile, string(contents)); err != nil {
			return fmt.Errorf("failed to append to %s: %v", outputFile, err)
		}
		if opts.CheckProgress {
			progress.FinishAnalyzeTask(cc.File, printer)
		}
	}

	if err := logview.SortLogFile(outputFile); err != nil {
		return fmt.Errorf("failed to sort %s: %v", outputFile, err)
	}
	elapsed := basic.FormatTimeDuration(time.Since(progress.GetStartedAt()))
	basic.PrintfWithTimeStamp(printer.Sprintf("Analysis results written to %s [%s]", outputFile, elapsed))
	return nil
}
