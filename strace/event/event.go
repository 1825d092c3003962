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

// Package event classifies single lines of an strace log into tagged
// process events. It only looks at the line itself; attributing events to
// process incarnations is done by the proctree package.
package event

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nikdatrix/pvs-tool/strace/unescape"
)

type Kind int

const (
	// Other covers recognized-pid lines that carry no event of interest,
	// and lines without a leading pid at all (Pid is -1 for the latter).
	Other Kind = iota
	// CreationReturned is a clone/fork/vfork call whose numeric child pid
	// is visible on the line, including "<... clone resumed>" lines.
	CreationReturned
	// CreationUnfinished is a clone/fork/vfork call cut off by the child
	// producing trace output first ("<unfinished ...>").
	CreationUnfinished
	Exited
	DirChanged
	Executed
)

type Event struct {
	Kind  Kind
	Pid   int // acting process id, -1 if the line carries none
	Child int // created pid, CreationReturned only
	Path  string // decoded target directory, DirChanged only
	Prog  string // executed program, Executed only
	Args  []string
}

const unfinishedMark = "<unfinished ...>"

var (
	pidRe          = regexp.MustCompile(`^(\d+)\s+`)
	execvePrefixRe = regexp.MustCompile(`^(\d+)\s+execve\("((?:[^"\\]|\\.)*)", \[`)
	argRe          = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"`)
	childRe        = regexp.MustCompile(`=\s*(\d+)\s*$`)
	chdirQuotedRe  = regexp.MustCompile(`chdir\("((?:[^"\\]|\\.)*)"`)
	chdirAngleRe   = regexp.MustCompile(`chdir\((?:\d+)?<([^>]+)>`)
)

func isCreationCall(line string) bool {
	if strings.Contains(line, "execve") {
		return false
	}
	return strings.Contains(line, "fork") ||
		strings.Contains(line, "vfork") ||
		strings.Contains(line, "clone")
}

// Parse classifies one trace line. Lines that cannot be classified are
// returned as Other, not as errors; the only error case is a line where
// classification was required but the payload is undecodable (a chdir
// without a usable path argument).
func Parse(line string) (Event, error) {
	if m := execvePrefixRe.FindStringSubmatch(line); m != nil {
		pid, _ := strconv.Atoi(m[1])
		ev := Event{
			Kind: Executed,
			Pid:  pid,
			Prog: unescape.Unquote(m[2]),
		}
		rest := line[len(m[0]):]
		for {
			am := argRe.FindStringSubmatch(rest)
			if am == nil {
				break
			}
			ev.Args = append(ev.Args, unescape.Unquote(am[1]))
			rest = rest[len(am[0]):]
			if !strings.HasPrefix(rest, ", ") {
				break
			}
			rest = rest[2:]
		}
		return ev, nil
	}

	m := pidRe.FindStringSubmatch(line)
	if m == nil {
		return Event{Kind: Other, Pid: -1}, nil
	}
	pid, _ := strconv.Atoi(m[1])

	if strings.Contains(line, "exited with") {
		return Event{Kind: Exited, Pid: pid}, nil
	}

	if isCreationCall(line) {
		if cm := childRe.FindStringSubmatch(line); cm != nil {
			child, _ := strconv.Atoi(cm[1])
			return Event{Kind: CreationReturned, Pid: pid, Child: child}, nil
		}
		if strings.Contains(line, unfinishedMark) {
			return Event{Kind: CreationUnfinished, Pid: pid}, nil
		}
		// e.g. a failed creation call ("= -1 EAGAIN")
		return Event{Kind: Other, Pid: pid}, nil
	}

	if strings.Contains(line, "chdir") {
		if qm := chdirQuotedRe.FindStringSubmatch(line); qm != nil {
			return Event{Kind: DirChanged, Pid: pid, Path: unescape.Unquote(qm[1])}, nil
		}
		if am := chdirAngleRe.FindStringSubmatch(line); am != nil {
			// strace -y already prints the resolved path in angle brackets
			return Event{Kind: DirChanged, Pid: pid, Path: am[1]}, nil
		}
		if strings.Contains(line, " resumed>") {
			// the path was on the matching unfinished line
			return Event{Kind: Other, Pid: pid}, nil
		}
		return Event{Kind: Other, Pid: pid}, fmt.Errorf("chdir with undecodable path argument: %q", line)
	}

	return Event{Kind: Other, Pid: pid}, nil
}
