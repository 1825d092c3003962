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

package event

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	for _, testCase := range [...]struct {
		name     string
		line     string
		expected Event
	}{
		{
			name: "execve",
			line: `1234  execve("/usr/bin/gcc", ["gcc", "-c", "a.c"], 0x7ffd7f9f6d98 /* 60 vars */) = 0`,
			expected: Event{
				Kind: Executed,
				Pid:  1234,
				Prog: "/usr/bin/gcc",
				Args: []string{"gcc", "-c", "a.c"},
			},
		},
		{
			name: "execve with expanded environment",
			line: `7  execve("/usr/bin/cc", ["cc", "x.c"], ["PATH=/usr/bin", "HOME=/root"]) = 0`,
			expected: Event{
				Kind: Executed,
				Pid:  7,
				Prog: "/usr/bin/cc",
				Args: []string{"cc", "x.c"},
			},
		},
		{
			name: "execve with escaped argument",
			line: `99  execve("/bin/g++", ["g++", "-DMSG=\"a\tb\"", "m.cpp"], 0x55 /* 8 vars */) = 0`,
			expected: Event{
				Kind: Executed,
				Pid:  99,
				Prog: "/bin/g++",
				Args: []string{"g++", "-DMSG=\"a\tb\"", "m.cpp"},
			},
		},
		{
			name:     "clone returned",
			line:     `10  clone(child_stack=NULL, flags=CLONE_CHILD_CLEARTID|SIGCHLD, child_tidptr=0x7f1) = 11`,
			expected: Event{Kind: CreationReturned, Pid: 10, Child: 11},
		},
		{
			name:     "clone resumed",
			line:     `10  <... clone resumed>, child_tidptr=0x7f30d0b19a10) = 12`,
			expected: Event{Kind: CreationReturned, Pid: 10, Child: 12},
		},
		{
			name:     "vfork unfinished",
			line:     `10  vfork( <unfinished ...>`,
			expected: Event{Kind: CreationUnfinished, Pid: 10},
		},
		{
			name:     "clone failed",
			line:     `10  clone(child_stack=NULL, flags=SIGCHLD) = -1 EAGAIN (Resource temporarily unavailable)`,
			expected: Event{Kind: Other, Pid: 10},
		},
		{
			name:     "exited",
			line:     `11  +++ exited with 0 +++`,
			expected: Event{Kind: Exited, Pid: 11},
		},
		{
			name:     "chdir quoted",
			line:     `11  chdir("/build/sub dir") = 0`,
			expected: Event{Kind: DirChanged, Pid: 11, Path: "/build/sub dir"},
		},
		{
			name:     "chdir quoted with escape",
			line:     `11  chdir("/build/a\tb") = 0`,
			expected: Event{Kind: DirChanged, Pid: 11, Path: "/build/a\tb"},
		},
		{
			name:     "fchdir angle path",
			line:     `11  fchdir(3</build/obj>) = 0`,
			expected: Event{Kind: DirChanged, Pid: 11, Path: "/build/obj"},
		},
		{
			name:     "chdir resumed",
			line:     `11  <... chdir resumed>) = 0`,
			expected: Event{Kind: Other, Pid: 11},
		},
		{
			name:     "signal line",
			line:     `10  --- SIGCHLD {si_signo=SIGCHLD, si_code=CLD_EXITED, si_pid=11} ---`,
			expected: Event{Kind: Other, Pid: 10},
		},
		{
			name:     "no pid",
			line:     `strace: Process 11 attached`,
			expected: Event{Kind: Other, Pid: -1},
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := Parse(testCase.line)
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error %v", testCase.line, err)
			}
			if !reflect.DeepEqual(got, testCase.expected) {
				t.Errorf("Parse(%q) = %+v, expected %+v", testCase.line, got, testCase.expected)
			}
		})
	}
}

func TestParseUndecodableChdir(t *testing.T) {
	_, err := Parse(`11  chdir(0x7ffc) = -1 EFAULT (Bad address)`)
	if err == nil {
		t.Error("expected an error for a chdir line without a decodable path")
	}
}
