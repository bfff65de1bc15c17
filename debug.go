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
	"time"

	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
)

// debugLog is the package wide debug sink. Console output is off unless
// enabled; the session log, when open, receives every line.
var debugLog = struct {
	session io.Writer
	console io.Writer
	mu      syncutil.Mutex
	enabled bool
}{console: os.Stderr}

func init() {
	if os.Getenv("PN53X_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugLog.enabled = true
	}
}

func writeDebug(message string) {
	debugLog.mu.Lock()
	defer debugLog.mu.Unlock()

	if debugLog.session != nil {
		_, _ = fmt.Fprintf(debugLog.session, "%s DEBUG: %s\n", time.Now().Format("15:04:05.000"), message)
	}
	if debugLog.enabled && debugLog.console != nil {
		_, _ = fmt.Fprintf(debugLog.console, "DEBUG: %s\n", message)
	}
}

// Debugf logs a formatted debug line.
func Debugf(format string, args ...any) {
	writeDebug(fmt.Sprintf(format, args...))
}

// Debugln logs its operands, separated by spaces.
func Debugln(args ...any) {
	message := fmt.Sprintln(args...)
	writeDebug(message[:len(message)-1])
}

// SetDebugEnabled switches console debug output on or off.
func SetDebugEnabled(enabled bool) {
	debugLog.mu.Lock()
	debugLog.enabled = enabled
	debugLog.mu.Unlock()
}

// SetDebugOutput redirects console debug output. A nil writer discards it.
func SetDebugOutput(w io.Writer) {
	debugLog.mu.Lock()
	debugLog.console = w
	debugLog.mu.Unlock()
}

func debugf(format string, args ...any) {
	Debugf(format, args...)
}

func debugln(args ...any) {
	Debugln(args...)
}
