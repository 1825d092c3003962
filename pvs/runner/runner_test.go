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

package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nikdatrix/pvs-tool/strace/extractor"
)

func TestMatchIgnoreDirPatterns(t *testing.T) {
	patterns := []string{"/proj/third_party/**", "/proj/gen/*.c"}
	tests := []struct {
		path string
		want bool
	}{
		{"/proj/third_party/lib/x.c", true},
		{"/proj/gen/a.c", true},
		{"/proj/src/a.c", false},
	}
	for _, tt := range tests {
		got, err := matchIgnoreDirPatterns(patterns, tt.path)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("matchIgnoreDirPatterns(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if _, err := matchIgnoreDirPatterns([]string{"[bad"}, "/proj/a.c"); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestCountLines(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	if err := os.WriteFile(src, []byte("int main() {\n  return 0;\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	skipped := filepath.Join(dir, "skip.c")
	if err := os.WriteFile(skipped, []byte("int x;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	commands := []extractor.CompileCommand{
		{File: src, Directory: dir, Arguments: []string{"-DX"}},
		{File: skipped, Directory: dir, Arguments: nil},
	}
	got, err := CountLines(commands, []string{"C"}, []string{filepath.Join(dir, "skip.c")})
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("CountLines = %d, want 3", got)
	}
}
