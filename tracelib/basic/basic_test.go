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

package basic

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetPercentString(t *testing.T) {
	tests := []struct {
		v1, v2 int
		want   string
	}{
		{0, 10, "0%"},
		{1, 10, "10%"},
		{3, 7, "42%"},
		{7, 7, "100%"},
	}
	for _, tt := range tests {
		if got := GetPercentString(tt.v1, tt.v2); got != tt.want {
			t.Errorf("GetPercentString(%d, %d) = %q, want %q", tt.v1, tt.v2, got, tt.want)
		}
	}
}

func TestFormatTimeDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{3 * time.Second, "3s"},
		{0, "0s"},
		{1500 * time.Millisecond, "1.5s"},
	}
	for _, tt := range tests {
		if got := FormatTimeDuration(tt.d); got != tt.want {
			t.Errorf("FormatTimeDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestCheckingProcessPrinterStartedAt(t *testing.T) {
	p := NewCheckingProcessPrinter(3)
	if p.GetStartedAt().IsZero() {
		t.Error("start time was not recorded")
	}
}

func TestConvertRelativePathToAbsolute(t *testing.T) {
	dir := t.TempDir()
	name := "hello.c"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("int main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ConvertRelativePathToAbsolute(dir, name)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, name); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, err = ConvertRelativePathToAbsolute(dir, "/usr/include/stdio.h")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/usr/include/stdio.h" {
		t.Errorf("absolute path changed: %q", got)
	}

	if _, err := ConvertRelativePathToAbsolute(dir, "no_such_file.c"); err == nil {
		t.Error("expected error for missing relative file")
	}
}

func TestAppendToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	if err := AppendToFile(path, "first\n"); err != nil {
		t.Fatal(err)
	}
	if err := AppendToFile(path, "second\n"); err != nil {
		t.Fatal(err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(contents) != "first\nsecond\n" {
		t.Errorf("unexpected contents: %q", string(contents))
	}
}
