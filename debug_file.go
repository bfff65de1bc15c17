// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn53x

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

var (
	sessionLogFile *os.File
	sessionLogPath string
)

// InitSessionLog opens pn53x_<timestamp>.log in dir (the working directory
// when empty) and copies every debug line into it. It returns the path.
func InitSessionLog(dir string) (string, error) {
	name := fmt.Sprintf("pn53x_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path) //nolint:gosec // name is generated here
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}
	writeSessionHeader(f)

	debugLog.mu.Lock()
	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = f
	sessionLogPath = path
	debugLog.session = f
	debugLog.mu.Unlock()

	return path, nil
}

// CloseSessionLog writes a footer and closes the session log, if open.
func CloseSessionLog() error {
	debugLog.mu.Lock()
	defer debugLog.mu.Unlock()

	if sessionLogFile == nil {
		return nil
	}
	_, _ = fmt.Fprintf(sessionLogFile, "\n%s === Session ended ===\n", time.Now().Format("15:04:05.000"))
	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	debugLog.session = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// SessionLogPath returns the path of the open session log, or "".
func SessionLogPath() string {
	debugLog.mu.Lock()
	defer debugLog.mu.Unlock()
	return sessionLogPath
}

func writeSessionHeader(w io.Writer) {
	var b strings.Builder
	b.WriteString("=== PN53x Debug Session Log ===\n")
	fmt.Fprintf(&b, "Started: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "PID: %d\n", os.Getpid())
	fmt.Fprintf(&b, "Platform: %s/%s %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	if exe, err := os.Executable(); err == nil {
		fmt.Fprintf(&b, "Executable: %s\n", exe)
	}
	fmt.Fprintf(&b, "Arguments: %s\n", strings.Join(os.Args, " "))
	b.WriteString("===============================\n\n")
	_, _ = io.WriteString(w, b.String())
}
