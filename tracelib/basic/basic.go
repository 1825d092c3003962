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

/*
This package should not import any other packages of this tool to
avoid recursive import.
*/
package basic

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/text/message"
)

type combinedOutput struct {
	Output []byte
	Error  error
}

func PrintfWithTimeStamp(format string, arg ...any) {
	prefix := fmt.Sprintf("%v ", time.Now().Format("2006-01-02 15:04:05"))
	message := fmt.Sprintf(prefix+format, arg...)
	fmt.Println(message)
	glog.Info(message)
}

func GetPercentString(v1, v2 int) string {
	percent := (int)((v1 * 100) / v2)
	return fmt.Sprintf("%d%%", percent)
}

func FormatTimeDuration(d time.Duration) string {
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	if ms == 0 {
		return fmt.Sprintf("%ds", s)
	}
	ms = ms % time.Microsecond
	for ms%10 == 0 && ms != 0 {
		ms = ms / 10
	}
	return fmt.Sprintf("%d.%ds", s, ms)
}

// print analysis progress serialized, goroutine safe
type CheckingProcessPrinter struct {
	mutex                sync.Mutex
	startedAt            time.Time
	timeElapsed          map[string]time.Time
	startAnalyzeTaskNum  int
	finishAnalyzeTaskNum int
	totalTaskNum         int
}

func NewCheckingProcessPrinter(totalTaskNum int) CheckingProcessPrinter {
	return CheckingProcessPrinter{
		totalTaskNum: totalTaskNum,
		timeElapsed:  make(map[string]time.Time),
		startedAt:    time.Now(),
	}
}

// Called before starting to analyze a compilation unit
func (c *CheckingProcessPrinter) StartAnalyzeTask(taskName string, printer *message.Printer) {
	c.mutex.Lock()
	c.startAnalyzeTaskNum++
	PrintfWithTimeStamp(printer.Sprintf("Start analyzing %s (%v/%v)", taskName, c.startAnalyzeTaskNum, c.totalTaskNum))
	c.timeElapsed[taskName] = time.Now()
	c.mutex.Unlock()
}

// Called after finishing a compilation unit
func (c *CheckingProcessPrinter) FinishAnalyzeTask(taskName string, printer *message.Printer) {
	c.mutex.Lock()
	elapsed := time.Since(c.timeElapsed[taskName])
	c.finishAnalyzeTaskNum++
	percent := GetPercentString(c.finishAnalyzeTaskNum, c.totalTaskNum) + "%"
	timeUsed := FormatTimeDuration(elapsed)
	PrintfWithTimeStamp(printer.Sprintf("Analysis of %s completed (%s, %v/%v) [%s]", taskName, percent, c.finishAnalyzeTaskNum, c.totalTaskNum, timeUsed))
	c.mutex.Unlock()
}

func (c *CheckingProcessPrinter) GetStartedAt() time.Time {
	return c.startedAt
}

func AppendToFile(fileName, contents string) error {
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err = file.WriteString(contents); err != nil {
		return err
	}
	return nil
}

func getCombinedOutput(c *exec.Cmd) combinedOutput {
	output, err := c.CombinedOutput()
	return combinedOutput{Output: output, Error: err}
}

// CombinedOutput runs the command with a wall-clock timeout. The
// external analyzer occasionally hangs on pathological preprocessed
// input; one stuck unit must not stall the whole run.
func CombinedOutput(c *exec.Cmd, taskName string, timeoutMinutes int) ([]byte, error) {
	result := make(chan combinedOutput, 1)
	go func() {
		result <- getCombinedOutput(c)
	}()
	select {
	case <-time.After(time.Duration(timeoutMinutes) * time.Minute):
		err := c.Process.Kill()
		if err != nil {
			return nil, fmt.Errorf("failed to kill %v: %v", c.Process.Pid, err)
		}
		return nil, fmt.Errorf("%v timed out: over %v minutes", taskName, timeoutMinutes)
	case result := <-result:
		return result.Output, result.Error
	}
}

func ConvertRelativePathToAbsolute(dir, path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		fullpath := filepath.Join(dir, path)
		_, err := os.Stat(fullpath) // Sanity Check: This file should exist.
		if errors.Is(err, os.ErrNotExist) {
			return path, fmt.Errorf("convertRelativePathToAbsolute: %v", err)
		}
		return fullpath, nil
	} else {
		return path, nil
	}
}
