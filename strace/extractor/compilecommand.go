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

package extractor

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/nikdatrix/pvs-tool/atomic"
)

// CompileCommand is one entry of a Clang-style compilation database.
// Arguments hold the normalized flag subset, not the original command
// line.
type CompileCommand struct {
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
	Directory string   `json:"directory"`
}

// CompileCommands returns the discovered units as compilation database
// entries, sorted by file for deterministic output.
func (e *Extractor) CompileCommands() []CompileCommand {
	files := make([]string, 0, len(e.units))
	for path := range e.units {
		files = append(files, path)
	}
	sort.Strings(files)
	commands := make([]CompileCommand, 0, len(files))
	for _, path := range files {
		u := e.units[path]
		commands = append(commands, CompileCommand{
			Arguments: u.args,
			File:      path,
			Directory: u.dir,
		})
	}
	return commands
}

func WriteCompileCommandsToFile(commands []CompileCommand, path string) error {
	content, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return atomic.Write(path, content)
}

func ReadCompileCommandsFromFile(path string) ([]CompileCommand, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var commands []CompileCommand
	if err := json.Unmarshal(content, &commands); err != nil {
		return nil, err
	}
	return commands, nil
}
