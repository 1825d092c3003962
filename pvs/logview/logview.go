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

// Package logview filters and prints the analyzer's raw output log.
package logview

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/glog"

	"github.com/nikdatrix/pvs-tool/atomic"
)

// One record per line, exactly NumFields fields joined by FieldSep.
const (
	FieldSep  = "<#~>"
	NumFields = 13
)

// Field indices within a raw record.
const (
	fieldMarker = iota
	fieldFormat
	fieldCode
	fieldDocURL
	fieldLine
	fieldFile
	fieldSeverity
	fieldMessage
	fieldFalseAlarm
	fieldTrial
	fieldContext0
	fieldContext1
	fieldContext2
)

type Record struct {
	Code     string
	DocURL   string
	Line     int
	File     string
	Severity int
	Message  string
	// Context concatenates the three trailing fields. It is matched as
	// a substring when filtering by diagnostic.
	Context string

	FalseAlarm bool
	Trial      bool

	raw string
}

type MalformedRecordError struct {
	LineNo    int
	NumFields int
	Text      string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: expected %d fields, got %d: %q", e.LineNo, NumFields, e.NumFields, e.Text)
}

// ParseRecord splits one raw log line. A wrong field count is an
// error, never a silent drop.
func ParseRecord(lineNo int, text string) (*Record, error) {
	fields := strings.Split(text, FieldSep)
	if len(fields) != NumFields {
		return nil, &MalformedRecordError{LineNo: lineNo, NumFields: len(fields), Text: text}
	}
	line, err := strconv.Atoi(fields[fieldLine])
	if err != nil {
		return nil, fmt.Errorf("line %d: bad line number %q: %v", lineNo, fields[fieldLine], err)
	}
	severity, err := strconv.Atoi(fields[fieldSeverity])
	if err != nil {
		return nil, fmt.Errorf("line %d: bad severity %q: %v", lineNo, fields[fieldSeverity], err)
	}
	return &Record{
		Code:       fields[fieldCode],
		DocURL:     fields[fieldDocURL],
		Line:       line,
		File:       fields[fieldFile],
		Severity:   severity,
		Message:    fields[fieldMessage],
		Context:    fields[fieldContext0] + fields[fieldContext1] + fields[fieldContext2],
		FalseAlarm: fields[fieldFalseAlarm] == "true",
		Trial:      fields[fieldTrial] == "true",
		raw:        text,
	}, nil
}

// ReadLog parses every record in r. Lines starting with `#` are run
// headers, not records, and are skipped.
func ReadLog(r io.Reader) ([]*Record, error) {
	var records []*Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		record, err := ParseRecord(lineNo, text)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func ReadLogFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %v", err)
	}
	defer f.Close()
	records, err := ReadLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return records, nil
}

// FilterOptions selects which records a report includes. Zero values
// disable the corresponding filter.
type FilterOptions struct {
	// MaxSeverity keeps records with Severity <= MaxSeverity
	// (1 is the most severe level).
	MaxSeverity int

	// Codes keeps records whose diagnostic code, or whose context
	// fields, contain one of these strings.
	Codes []string

	// ExcludePatterns drops records whose file matches one of these
	// glob patterns.
	ExcludePatterns []string

	// KeepFalseAlarms retains records marked as false alarms.
	KeepFalseAlarms bool
}

func matchesCode(record *Record, codes []string) bool {
	for _, code := range codes {
		if record.Code == code || strings.Contains(record.Context, code) {
			return true
		}
	}
	return false
}

func excluded(file string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, file)
		if err != nil {
			glog.Errorf("bad exclude pattern %q: %v", pattern, err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func Filter(records []*Record, opts FilterOptions) []*Record {
	var kept []*Record
	for _, record := range records {
		if record.FalseAlarm && !opts.KeepFalseAlarms {
			continue
		}
		if opts.MaxSeverity > 0 && record.Severity > opts.MaxSeverity {
			continue
		}
		if len(opts.Codes) > 0 && !matchesCode(record, opts.Codes) {
			continue
		}
		if excluded(record.File, opts.ExcludePatterns) {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}

// Sort orders records by file path, then line number.
func Sort(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].File != records[j].File {
			return records[i].File < records[j].File
		}
		return records[i].Line < records[j].Line
	})
}

// SortLogFile rewrites the raw log in sorted record order, keeping the
// `#` header lines at the top in their original order. The viewer and
// any downstream consumer can then rely on a stable ordering.
func SortLogFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log: %v", err)
	}
	var headers []string
	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			headers = append(headers, text)
			continue
		}
		record, err := ParseRecord(lineNo, text)
		if err != nil {
			f.Close()
			return fmt.Errorf("%s: %v", path, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return err
	}
	f.Close()
	Sort(records)
	lines := make([]string, 0, len(headers)+len(records))
	lines = append(lines, headers...)
	for _, record := range records {
		lines = append(lines, record.raw)
	}
	return atomic.WriteLines(path, lines)
}

// Print writes a report grouped by directory. Records must already be
// sorted.
func Print(w io.Writer, records []*Record) {
	currentDir := ""
	for _, record := range records {
		dir := filepath.Dir(record.File)
		if dir != currentDir {
			if currentDir != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s:\n", dir)
			currentDir = dir
		}
		fmt.Fprintf(w, "  %s:%d: [%s] %s\n", filepath.Base(record.File), record.Line, record.Code, record.Message)
	}
	fmt.Fprintf(w, "\n%d warning(s)\n", len(records))
}
