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

// Package tracer runs a build command under strace and captures the
// process-level syscall trace the rest of the pipeline consumes.
package tracer

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/golang/glog"
	"github.com/google/shlex"
)

// strace flags: follow forks, decode fd paths, expand execve argv and
// env arrays, and keep strings long enough that compiler command lines
// are not truncated.
var straceArgs = []string{"-y", "-v", "-s2048", "-f", "-e", "trace=process"}

// Trace runs buildCmd in dir and writes the trace to tracePath. The
// build's own stdout/stderr pass through so the user sees the build as
// usual. A failing build still leaves a usable partial trace, so the
// error is reported but the trace file is kept.
func Trace(buildCmd, dir, tracePath string) error {
	argv, err := shlex.Split(buildCmd)
	if err != nil {
		return fmt.Errorf("failed to parse build command %q: %v", buildCmd, err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("empty build command")
	}
	args := append([]string{}, straceArgs...)
	args = append(args, "-o", tracePath, "--")
	args = append(args, argv...)
	glog.Infof("running strace %v in %s", args, dir)
	cmd := exec.Command("strace", args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build command failed under strace: %v", err)
	}
	return nil
}
