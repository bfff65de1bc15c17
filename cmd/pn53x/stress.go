// go-pn53x
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pn53x.
//
// go-pn53x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pn53x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pn53x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/spf13/cobra"
)

// maxEchoPayload keeps the Diagnose frame within a normal frame: 254 data
// bytes minus TFI, command and test number.
const maxEchoPayload = 251

// StressResult is the outcome of a stress run.
type StressResult struct {
	CrashFile string
	Passed    int
	Failed    int
	Duration  time.Duration
	Slowest   time.Duration
}

// CrashReport contains all information for debugging a failure.
type CrashReport struct {
	Timestamp    time.Time  `json:"timestamp"`
	Chip         string     `json:"chip"`
	Firmware     string     `json:"firmware,omitempty"`
	Operation    string     `json:"operation"`
	Error        string     `json:"error"`
	ExpectedHex  string     `json:"expected_hex,omitempty"`
	ActualHex    string     `json:"actual_hex,omitempty"`
	WireTrace    []string   `json:"wire_trace,omitempty"`
	OperationLog []LogEntry `json:"operation_log"`
	Round        int        `json:"round"`
}

// LogEntry represents a single operation in the log.
type LogEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Operation string        `json:"operation"`
	DataHex   string        `json:"data_hex,omitempty"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	Success   bool          `json:"success"`
}

// opLogSize bounds the operation log kept for crash reports.
const opLogSize = 32

type stressOptions struct {
	reportDir string
	rounds    int
	maxSize   int
}

type stressRun struct {
	dev    *pn53x.Device
	opts   *stressOptions
	result *StressResult
	opLog  []LogEntry
}

func newStressCmd(a *app) *cobra.Command {
	opts := &stressOptions{}
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer the host link with self tests",
		Long: `Run communication line self tests with random payloads and firmware
version reads back to back. The first failure stops the run and is written
to a JSON crash report with the wire trace and the last operations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.maxSize < 1 || opts.maxSize > maxEchoPayload {
				return fmt.Errorf("%w: --max-size must be between 1 and %d", pn53x.ErrInvalidArgument, maxEchoPayload)
			}
			return a.withDevice(cmd, func(ctx context.Context, dev *pn53x.Device) error {
				result, err := runStress(ctx, dev, opts)
				printStressSummary(cmd.OutOrStdout(), result)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&opts.rounds, "rounds", "r", 100, "number of rounds")
	cmd.Flags().IntVar(&opts.maxSize, "max-size", maxEchoPayload, "largest self test payload in bytes")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", ".", "directory for crash reports")
	return cmd
}

func runStress(ctx context.Context, dev *pn53x.Device, opts *stressOptions) (*StressResult, error) {
	run := &stressRun{dev: dev, opts: opts, result: &StressResult{}}
	started := time.Now()
	defer func() { run.result.Duration = time.Since(started) }()

	for round := 1; round <= opts.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return run.result, err
		}
		if err := run.round(ctx, round); err != nil {
			run.result.Failed++
			return run.result, err
		}
		run.result.Passed++
	}
	return run.result, nil
}

func (r *stressRun) round(ctx context.Context, round int) error {
	size, err := randomInt(1, r.opts.maxSize)
	if err != nil {
		return err
	}
	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("failed to generate payload: %w", err)
	}

	start := time.Now()
	res, err := r.dev.Diagnose(ctx, pn53x.DiagnoseCommunicationTest, payload)
	r.log("diagnose", payload, err, time.Since(start))
	if err != nil {
		return r.fail(round, "diagnose", err, payload, nil)
	}
	expected := append([]byte{byte(pn53x.DiagnoseCommunicationTest)}, payload...)
	if !res.Success || !bytes.Equal(res.Data, expected) {
		return r.fail(round, "diagnose", errors.New("echo mismatch"), expected, res.Data)
	}

	start = time.Now()
	_, err = r.dev.GetFirmwareVersion(ctx)
	r.log("firmware", nil, err, time.Since(start))
	if err != nil {
		return r.fail(round, "firmware", err, nil, nil)
	}
	return nil
}

func (r *stressRun) log(op string, data []byte, err error, elapsed time.Duration) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Operation: op,
		DataHex:   hex.EncodeToString(data),
		Elapsed:   elapsed,
		Success:   err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	r.opLog = append(r.opLog, entry)
	if len(r.opLog) > opLogSize {
		r.opLog = r.opLog[len(r.opLog)-opLogSize:]
	}
	if elapsed > r.result.Slowest {
		r.result.Slowest = elapsed
	}
}

// fail writes a crash report and returns err annotated with the round.
func (r *stressRun) fail(round int, op string, err error, expected, actual []byte) error {
	report := &CrashReport{
		Timestamp:    time.Now(),
		Round:        round,
		Chip:         r.dev.Chip().String(),
		Operation:    op,
		Error:        err.Error(),
		ExpectedHex:  hex.EncodeToString(expected),
		ActualHex:    hex.EncodeToString(actual),
		OperationLog: r.opLog,
	}
	if fw := r.dev.Firmware(); fw != nil {
		report.Firmware = fw.String()
	}
	if te := pn53x.GetTrace(err); te != nil {
		for _, e := range te.Trace {
			report.WireTrace = append(report.WireTrace, e.String())
		}
	}

	path, werr := writeCrashReport(r.opts.reportDir, report)
	if werr != nil {
		pn53x.Debugf("stress: %v", werr)
	} else {
		r.result.CrashFile = path
	}
	return fmt.Errorf("round %d %s: %w", round, op, err)
}

func writeCrashReport(dir string, report *CrashReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal crash report: %w", err)
	}
	name := fmt.Sprintf("pn53x_crash_%s.json", report.Timestamp.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write crash report: %w", err)
	}
	return path, nil
}

// randomInt returns a uniform integer in [low, high].
func randomInt(low, high int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(high-low+1)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return low + int(n.Int64()), nil
}

func printStressSummary(out io.Writer, result *StressResult) {
	if result == nil {
		return
	}
	_, _ = fmt.Fprintf(out, "Rounds passed: %d, failed: %d in %s (slowest operation %s)\n",
		result.Passed, result.Failed, result.Duration.Round(time.Millisecond), result.Slowest)
	if result.CrashFile != "" {
		_, _ = fmt.Fprintf(out, "Crash report: %s\n", result.CrashFile)
	}
}
