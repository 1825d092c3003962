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

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/nikdatrix/pvs-tool/pvs/config"
	"github.com/nikdatrix/pvs-tool/pvs/logview"
	"github.com/nikdatrix/pvs-tool/pvs/runner"
	"github.com/nikdatrix/pvs-tool/strace/extractor"
	"github.com/nikdatrix/pvs-tool/strace/proctree"
	"github.com/nikdatrix/pvs-tool/strace/tracer"
	"github.com/nikdatrix/pvs-tool/tracelib/basic"
	"github.com/nikdatrix/pvs-tool/tracelib/options"
)

const usage = `usage: pvs-tool <command> [flags]

commands:
  genconf   generate an analyzer configuration file
  trace     run a build command under strace
  analyze   extract compilation units from a trace and run the analyzer
  view      filter and print the analysis log
`

type arrayFlags []string

func (f *arrayFlags) String() string {
	return strings.Join(*f, ",")
}

func (f *arrayFlags) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func parseFlags(args []string) {
	if err := flag.CommandLine.Parse(args); err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
}

func runGenconf(args []string) {
	projectRoot := flag.String("project-root", ".", "root directory of the project to analyze")
	settingsPath := flag.String("settings", "", "optional YAML settings overlay")
	cfgPath := flag.String("cfg", "PVS-Studio.cfg", "path of the configuration file to write")
	parseFlags(args)

	opts := &options.EnvOptions{ProjectRoot: *projectRoot}
	if err := opts.Validate(); err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
	var overlay *config.Settings
	if *settingsPath != "" {
		var err error
		overlay, err = config.LoadSettings(*settingsPath)
		if err != nil {
			glog.Exitf("pvs-tool: %v", err)
		}
	}
	cfg := config.Generate(opts.ProjectRoot, overlay)
	if err := cfg.WriteFile(*cfgPath); err != nil {
		glog.Exitf("pvs-tool: failed to write %s: %v", *cfgPath, err)
	}
	fmt.Printf("wrote %s\n", *cfgPath)
}

func runTrace(args []string) {
	buildCmd := flag.String("cmd", "", "build command to trace, e.g. 'make -j8'")
	projectRoot := flag.String("project-root", ".", "directory to run the build in")
	tracePath := flag.String("trace-file", "strace_out", "file to write the trace to")
	parseFlags(args)

	if *buildCmd == "" {
		glog.Exitf("pvs-tool: trace requires -cmd")
	}
	opts := &options.EnvOptions{ProjectRoot: *projectRoot, TracePath: *tracePath}
	if err := opts.Validate(); err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
	if err := tracer.Trace(*buildCmd, opts.ProjectRoot, opts.TracePath); err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
}

func runAnalyze(args []string) {
	projectRoot := flag.String("project-root", ".", "directory the traced build ran in")
	tracePath := flag.String("trace-file", "strace_out", "trace file produced by the trace command")
	cfgPath := flag.String("cfg", "PVS-Studio.cfg", "analyzer configuration file")
	tolerance := flag.Int("tolerance", proctree.DefaultTolerance,
		"trace lines an exited pid may still be referenced for")
	timeout := flag.Int("timeout", 30, "per-unit analyzer timeout in minutes")
	checkProgress := flag.Bool("check-progress", true, "print per-unit progress")
	lang := flag.String("lang", "en", "language of progress messages (en, zh)")
	debug := flag.Bool("debug", false, "keep verbose logging on stderr")
	parseFlags(args)

	cfg, err := config.ParseFile(*cfgPath)
	if err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
	opts := &options.EnvOptions{
		ProjectRoot:       *projectRoot,
		TracePath:         *tracePath,
		CfgPath:           *cfgPath,
		Tolerance:         *tolerance,
		IgnoreDirPatterns: cfg.GetAll("exclude-path"),
		TimeoutNormal:     *timeout,
		CheckProgress:     *checkProgress,
		Lang:              *lang,
		Debug:             *debug,
	}
	if err := opts.Validate(); err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
	if !opts.Debug {
		if err := flag.Set("stderrthreshold", "FATAL"); err != nil {
			glog.Exitf("pvs-tool: failed to set stderrthreshold: %v", err)
		}
	}
	printer := opts.Printer()

	if opts.CheckProgress {
		basic.PrintfWithTimeStamp(printer.Sprintf("Start to generate compilation database"))
	}
	ext, err := extractor.Run(opts.TracePath, opts.ProjectRoot, opts.Tolerance, opts.IgnoreDirPatterns)
	if err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
	commands := ext.CompileCommands()
	if len(commands) == 0 {
		glog.Exitf("pvs-tool: no compilation units found in %s", opts.TracePath)
	}
	ccJson := opts.ProjectRoot + "/compile_commands.json"
	if err := extractor.WriteCompileCommandsToFile(commands, ccJson); err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
	if opts.CheckProgress {
		lines, err := runner.CountLines(commands, []string{"C", "C++", "C/C++ Header"}, opts.IgnoreDirPatterns)
		if err == nil {
			basic.PrintfWithTimeStamp(printer.Sprintf("Found %v compilation units, %v lines of code", len(commands), lines))
		}
	}
	if err := runner.Run(opts, cfg, commands); err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
}

func runView(args []string) {
	logPath := flag.String("log-file", "pvs.log", "raw analysis log to read")
	maxSeverity := flag.Int("max-severity", 0, "keep records at or above this severity (1 is most severe, 0 keeps all)")
	keepFalseAlarms := flag.Bool("false-alarms", false, "include records marked as false alarms")
	var codes arrayFlags
	var excludes arrayFlags
	flag.Var(&codes, "code", "diagnostic code to keep, repeatable")
	flag.Var(&excludes, "exclude-path", "glob pattern of paths to drop, repeatable")
	parseFlags(args)

	records, err := logview.ReadLogFile(*logPath)
	if err != nil {
		glog.Exitf("pvs-tool: %v", err)
	}
	records = logview.Filter(records, logview.FilterOptions{
		MaxSeverity:     *maxSeverity,
		Codes:           codes,
		ExcludePatterns: excludes,
		KeepFalseAlarms: *keepFalseAlarms,
	})
	logview.Sort(records)
	logview.Print(os.Stdout, records)
}

func main() {
	defer glog.Flush()
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "genconf":
		runGenconf(os.Args[2:])
	case "trace":
		runTrace(os.Args[2:])
	case "analyze":
		runAnalyze(os.Args[2:])
	case "view":
		runView(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "pvs-tool: unknown command %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}
