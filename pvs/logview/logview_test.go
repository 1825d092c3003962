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

package logview

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func makeLine(code, line, file, severity, message, falseAlarm, context string) string {
	fields := []string{
		"Viva64-EM", "full", code, "https://example.com/" + code,
		line, file, severity, message, falseAlarm, "false",
		context, "", "",
	}
	return strings.Join(fields, FieldSep)
}

func TestParseRecord(t *testing.T) {
	text := makeLine("V501", "42", "/proj/a.c", "1", "identical sub-expressions", "false", "CWE-571")
	record, err := ParseRecord(1, text)
	if err != nil {
		t.Fatal(err)
	}
	if record.Code != "V501" || record.Line != 42 || record.File != "/proj/a.c" ||
		record.Severity != 1 || record.Message != "identical sub-expressions" {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.Context != "CWE-571" {
		t.Errorf("Context = %q", record.Context)
	}
	if record.FalseAlarm {
		t.Error("FalseAlarm set")
	}
}

func TestParseRecordWrongFieldCount(t *testing.T) {
	_, err := ParseRecord(7, "only"+FieldSep+"three"+FieldSep+"fields")
	var malformed *MalformedRecordError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
	if malformed.LineNo != 7 || malformed.NumFields != 3 {
		t.Errorf("unexpected error detail: %+v", malformed)
	}
}

func TestReadLogSkipsHeaders(t *testing.T) {
	contents := "# run 123\n" +
		makeLine("V501", "1", "/proj/a.c", "1", "m", "false", "") + "\n"
	records, err := ReadLog(strings.NewReader(contents))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
}

func TestFilter(t *testing.T) {
	records, err := ReadLog(strings.NewReader(strings.Join([]string{
		makeLine("V501", "10", "/proj/a.c", "1", "sev1", "false", "CWE-571"),
		makeLine("V512", "20", "/proj/b.c", "3", "sev3", "false", ""),
		makeLine("V501", "30", "/proj/third_party/x.c", "1", "vendored", "false", ""),
		makeLine("V576", "40", "/proj/c.c", "2", "flagged", "true", ""),
	}, "\n")))
	if err != nil {
		t.Fatal(err)
	}

	got := Filter(records, FilterOptions{MaxSeverity: 2})
	if len(got) != 2 {
		t.Errorf("MaxSeverity=2: got %d records", len(got))
	}

	got = Filter(records, FilterOptions{Codes: []string{"CWE-571"}})
	if len(got) != 1 || got[0].Line != 10 {
		t.Errorf("context code filter: %+v", got)
	}

	got = Filter(records, FilterOptions{Codes: []string{"V501"}})
	if len(got) != 2 {
		t.Errorf("code filter: got %d records", len(got))
	}

	got = Filter(records, FilterOptions{ExcludePatterns: []string{"/proj/third_party/**"}})
	if len(got) != 2 {
		t.Errorf("exclude filter: got %d records", len(got))
	}

	got = Filter(records, FilterOptions{KeepFalseAlarms: true})
	if len(got) != 4 {
		t.Errorf("KeepFalseAlarms: got %d records", len(got))
	}
}

func TestSortLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvs.log")
	contents := "# run abc\n" +
		makeLine("V501", "5", "/proj/b.c", "1", "later file", "false", "") + "\n" +
		makeLine("V502", "9", "/proj/a.c", "1", "second line", "false", "") + "\n" +
		makeLine("V503", "2", "/proj/a.c", "1", "first line", "false", "") + "\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	if err := SortLogFile(path); err != nil {
		t.Fatal(err)
	}
	sorted, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(sorted), "\n"), "\n")
	if lines[0] != "# run abc" {
		t.Errorf("header not first: %q", lines[0])
	}
	wantOrder := []string{"V503", "V502", "V501"}
	for i, code := range wantOrder {
		if !strings.Contains(lines[i+1], code) {
			t.Errorf("line %d = %q, want code %s", i+1, lines[i+1], code)
		}
	}
}

func TestPrintGroupsByDirectory(t *testing.T) {
	records, err := ReadLog(strings.NewReader(strings.Join([]string{
		makeLine("V501", "1", "/proj/a.c", "1", "first", "false", ""),
		makeLine("V502", "2", "/proj/sub/b.c", "1", "second", "false", ""),
	}, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	Sort(records)
	var sb strings.Builder
	Print(&sb, records)
	out := sb.String()
	for _, want := range []string{"/proj:", "/proj/sub:", "a.c:1: [V501] first", "b.c:2: [V502] second", "2 warning(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
