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

// Package proctree reconstructs the process tree of a traced build.
//
// Process ids wrap around during long builds, so a pid alone never
// identifies a process. Every pid instead maps to an ordered list of
// incarnations (disjoint lifespans), and all lookups go through
// (pid, line number) pairs. The tree is built in two passes over the
// trace: Build records lifespans and parent/child edges, ResolveDirs
// replays the trace to propagate working directories and hand execve
// events to a visitor.
package proctree

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/nikdatrix/pvs-tool/strace/event"
)

// DefaultTolerance is the number of trailing trace lines an incarnation
// is still considered alive after its recorded exit line. Creation-call
// completion lines for the next incarnation of the same pid can be
// flushed slightly before the exit line of the previous one, so a strict
// lifespan check would misattribute them. The value is an empirically
// chosen heuristic, not a guaranteed bound.
const DefaultTolerance = 1000

// Incarnation is one lifespan of a (possibly reused) process id.
type Incarnation struct {
	Pid      int
	Start    int // trace line the incarnation was first seen on
	End      int // trace line of the observed exit, 0 while open
	Parent   int // arena index of the creating incarnation, -1 for roots
	Children []int
	Dir      string // current working directory, "" until known
}

// Tree owns all incarnations in a flat arena; parent/child links and the
// per-pid index hold arena indices, never pointers.
type Tree struct {
	Arena     []Incarnation
	ByPid     map[int][]int // arena indices in discovery order
	Tolerance int
}

type MalformedTraceError struct {
	Pid  int
	Line int
	Err  error
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("malformed trace line %d (pid %d): %v", e.Line, e.Pid, e.Err)
}

type AmbiguousIncarnationError struct {
	Pid   int
	Line  int
	Known []Incarnation
}

func (e *AmbiguousIncarnationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no incarnation of pid %d matches trace line %d; known incarnations:", e.Pid, e.Line)
	if len(e.Known) == 0 {
		b.WriteString(" none")
	}
	for _, inc := range e.Known {
		fmt.Fprintf(&b, "\n  %s", inc.describe())
	}
	return b.String()
}

type UnresolvedParentError struct {
	Inc Incarnation
}

func (e *UnresolvedParentError) Error() string {
	return fmt.Sprintf("no creation call was ever observed for %s", e.Inc.describe())
}

type UnresolvedWorkingDirError struct {
	Inc    Incarnation
	Parent Incarnation
}

func (e *UnresolvedWorkingDirError) Error() string {
	return fmt.Sprintf("cannot resolve working directory of %s; parent %s has none either",
		e.Inc.describe(), e.Parent.describe())
}

func (inc Incarnation) describe() string {
	end := "still open"
	if inc.End != 0 {
		end = fmt.Sprintf("ended at line %d", inc.End)
	}
	dir := inc.Dir
	if dir == "" {
		dir = "<unset>"
	}
	return fmt.Sprintf("pid %d started at line %d (%s, dir %s, %d children)",
		inc.Pid, inc.Start, end, dir, len(inc.Children))
}

// ExecVisitor receives every program-execution event during ResolveDirs,
// with the acting incarnation's working directory already resolved.
type ExecVisitor func(line int, dir, prog string, args []string) error

func newTree(tolerance int) *Tree {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Tree{
		ByPid:     make(map[int][]int),
		Tolerance: tolerance,
	}
}

// scanner returns a line scanner with a buffer large enough for traces
// captured with long string limits and expanded environments.
func scanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return sc
}

// ensureOpen returns the arena index of the incarnation of pid that is
// live at the given line, creating a fresh one if the most recent
// incarnation ended more than Tolerance lines ago (pid reuse).
func (t *Tree) ensureOpen(pid, line int) int {
	idxs := t.ByPid[pid]
	if len(idxs) > 0 {
		last := idxs[len(idxs)-1]
		inc := &t.Arena[last]
		if inc.End == 0 || line <= inc.End+t.Tolerance {
			return last
		}
	}
	t.Arena = append(t.Arena, Incarnation{Pid: pid, Start: line, Parent: -1})
	idx := len(t.Arena) - 1
	t.ByPid[pid] = append(t.ByPid[pid], idx)
	return idx
}

// Lookup resolves (pid, line) to the matching incarnation's arena index.
func (t *Tree) Lookup(pid, line int) (int, error) {
	idxs := t.ByPid[pid]
	for i := len(idxs) - 1; i >= 0; i-- {
		inc := &t.Arena[idxs[i]]
		if inc.Start <= line && (inc.End == 0 || line <= inc.End+t.Tolerance) {
			return idxs[i], nil
		}
	}
	known := make([]Incarnation, 0, len(idxs))
	for _, idx := range idxs {
		known = append(known, t.Arena[idx])
	}
	return -1, &AmbiguousIncarnationError{Pid: pid, Line: line, Known: known}
}

func (t *Tree) closeOpen(pid, line int) {
	idxs := t.ByPid[pid]
	for i := len(idxs) - 1; i >= 0; i-- {
		inc := &t.Arena[idxs[i]]
		if inc.End == 0 {
			inc.End = line
			return
		}
	}
}

// Build is the first pass: it records one incarnation per observed
// lifespan of every pid and links children to parents for creation calls
// that completed within the trace. Unfinished creation lines do not
// establish parentage here; ResolveDirs handles their directory
// propagation.
func Build(r io.Reader, tolerance int) (*Tree, error) {
	t := newTree(tolerance)
	sc := scanner(r)
	line := 0
	for sc.Scan() {
		line++
		ev, err := event.Parse(sc.Text())
		if err != nil {
			return nil, &MalformedTraceError{Pid: ev.Pid, Line: line, Err: err}
		}
		if ev.Pid < 0 {
			continue
		}
		self := t.ensureOpen(ev.Pid, line)
		switch ev.Kind {
		case event.CreationReturned:
			child := t.ensureOpen(ev.Child, line)
			if child != self && t.Arena[child].Parent < 0 {
				t.Arena[child].Parent = self
				t.Arena[self].Children = append(t.Arena[self].Children, child)
			}
		case event.Exited:
			t.closeOpen(ev.Pid, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %v", err)
	}
	return t, nil
}

// Roots returns the arena indices of all incarnations without a parent.
func (t *Tree) Roots() []int {
	var roots []int
	for idx := range t.Arena {
		if t.Arena[idx].Parent < 0 {
			roots = append(roots, idx)
		}
	}
	return roots
}

// dirOf returns the incarnation's working directory, falling back to a
// one-shot copy from the parent when inheritance has not caught up yet.
func (t *Tree) dirOf(idx int) (string, error) {
	inc := &t.Arena[idx]
	if inc.Dir != "" {
		return inc.Dir, nil
	}
	if inc.Parent < 0 {
		return "", &UnresolvedParentError{Inc: *inc}
	}
	parent := &t.Arena[inc.Parent]
	if parent.Dir == "" {
		return "", &UnresolvedWorkingDirError{Inc: *inc, Parent: *parent}
	}
	inc.Dir = parent.Dir
	return inc.Dir, nil
}

// ResolveDirs is the second pass: it replays the trace in order,
// propagating working directories from creating to created incarnations
// and applying chdir events, and calls visit for every program
// execution with the directory current at that line.
//
// rootDir is assigned to every parentless incarnation up front. More
// than one root is an anomaly of the capture, diagnosed but not fatal.
func (t *Tree) ResolveDirs(r io.Reader, rootDir string, visit ExecVisitor) error {
	roots := t.Roots()
	if len(roots) > 1 {
		glog.Warningf("process tree has %d roots, assigning %s to all of them", len(roots), rootDir)
	}
	for _, idx := range roots {
		t.Arena[idx].Dir = rootDir
	}

	sc := scanner(r)
	line := 0
	for sc.Scan() {
		line++
		ev, err := event.Parse(sc.Text())
		if err != nil {
			return &MalformedTraceError{Pid: ev.Pid, Line: line, Err: err}
		}
		if ev.Pid < 0 || ev.Kind == event.Other || ev.Kind == event.Exited {
			continue
		}
		self, err := t.Lookup(ev.Pid, line)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case event.CreationReturned:
			child, err := t.Lookup(ev.Child, line)
			if err != nil {
				return err
			}
			if child == self {
				continue
			}
			dir, err := t.dirOf(self)
			if err != nil {
				return err
			}
			// The child may have chdir'd already if its lines raced
			// ahead of this call's return line, so never overwrite.
			if t.Arena[child].Dir == "" {
				t.Arena[child].Dir = dir
			}
		case event.CreationUnfinished:
			// The created process ran (and possibly exited) before this
			// call's return line: give every already-linked child still
			// missing a directory the caller's current one.
			dir, err := t.dirOf(self)
			if err != nil {
				return err
			}
			for _, child := range t.Arena[self].Children {
				if t.Arena[child].Dir == "" {
					t.Arena[child].Dir = dir
				}
			}
		case event.DirChanged:
			path := ev.Path
			if !filepath.IsAbs(path) {
				base, err := t.dirOf(self)
				if err != nil {
					return err
				}
				path = filepath.Clean(base + "/" + path)
			}
			t.Arena[self].Dir = path
		case event.Executed:
			dir, err := t.dirOf(self)
			if err != nil {
				return err
			}
			if err := visit(line, dir, ev.Prog, ev.Args); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read trace: %v", err)
	}
	return nil
}
