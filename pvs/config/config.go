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

// Package config reads and writes the analyzer's line-oriented
// configuration files. The format is `key = value` with `#` comments.
// A key may appear more than once; repeated keys accumulate into an
// ordered list instead of overwriting.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/nikdatrix/pvs-tool/atomic"
)

type entry struct {
	key   string
	value string
}

// Config preserves the order entries were added or read in, so a file
// written back out stays diffable against its source.
type Config struct {
	entries []entry
}

func New() *Config {
	return &Config{}
}

// Add appends a key/value pair, keeping any earlier entries for the
// same key.
func (c *Config) Add(key, value string) {
	c.entries = append(c.entries, entry{key: key, value: value})
}

// Set replaces the first entry for key and drops the rest, or appends
// if the key is not present.
func (c *Config) Set(key, value string) {
	kept := c.entries[:0]
	replaced := false
	for _, e := range c.entries {
		if e.key != key {
			kept = append(kept, e)
			continue
		}
		if !replaced {
			kept = append(kept, entry{key: key, value: value})
			replaced = true
		}
	}
	c.entries = kept
	if !replaced {
		c.Add(key, value)
	}
}

// Get returns the first value for key.
func (c *Config) Get(key string) (string, bool) {
	for _, e := range c.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// GetAll returns every value for key in file order.
func (c *Config) GetAll(key string) []string {
	var values []string
	for _, e := range c.entries {
		if e.key == key {
			values = append(values, e.value)
		}
	}
	return values
}

// Parse reads the `key = value` format. Blank lines and lines starting
// with `#` are skipped. A line without `=` is an error.
func Parse(r *bufio.Scanner) (*Config, error) {
	c := New()
	lineNo := 0
	for r.Scan() {
		lineNo++
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected 'key = value', got %q", lineNo, line)
		}
		c.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func ParseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %v", err)
	}
	defer f.Close()
	c, err := Parse(bufio.NewScanner(f))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", path, err)
	}
	return c, nil
}

func (c *Config) String() string {
	var sb strings.Builder
	for _, e := range c.entries {
		sb.WriteString(e.key)
		sb.WriteString(" = ")
		sb.WriteString(e.value)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c *Config) WriteFile(path string) error {
	return atomic.Write(path, []byte(c.String()))
}

// Settings is the optional overlay file for genconf. Any field left
// empty keeps the generated default.
type Settings struct {
	LicenseFile   string   `yaml:"lic-file"`
	OutputFile    string   `yaml:"output-file"`
	Platform      string   `yaml:"platform"`
	Preprocessor  string   `yaml:"preprocessor"`
	Language      string   `yaml:"language"`
	ExcludePaths  []string `yaml:"exclude-paths"`
	ClParamsExtra string   `yaml:"cl-params-extra"`
}

func LoadSettings(path string) (*Settings, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %v", err)
	}
	s := &Settings{}
	if err := yaml.Unmarshal(contents, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %v", path, err)
	}
	return s, nil
}

// Generate builds a default analyzer configuration for projectRoot and
// applies the overlay if one is given.
func Generate(projectRoot string, overlay *Settings) *Config {
	c := New()
	c.Add("exclude-path", "/usr/include")
	c.Add("exclude-path", "/usr/local/include")
	c.Add("platform", "linux64")
	c.Add("preprocessor", "gcc")
	c.Add("language", "C++")
	c.Add("lic-file", projectRoot+"/PVS-Studio.lic")
	c.Add("output-file", projectRoot+"/pvs.log")
	if overlay == nil {
		return c
	}
	if overlay.LicenseFile != "" {
		c.Set("lic-file", overlay.LicenseFile)
	}
	if overlay.OutputFile != "" {
		c.Set("output-file", overlay.OutputFile)
	}
	if overlay.Platform != "" {
		c.Set("platform", overlay.Platform)
	}
	if overlay.Preprocessor != "" {
		c.Set("preprocessor", overlay.Preprocessor)
	}
	if overlay.Language != "" {
		c.Set("language", overlay.Language)
	}
	for _, p := range overlay.ExcludePaths {
		c.Add("exclude-path", p)
	}
	if overlay.ClParamsExtra != "" {
		c.Set("cl-params-extra", overlay.ClParamsExtra)
	}
	return c
}
