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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// Protocol engine errors. Every failing call returns an error that matches
// exactly one of the first nine with errors.Is.
var (
	// ErrTransport is an I/O failure reported by the transport collaborator.
	ErrTransport = errors.New("transport error")
	// ErrTimeout means no response arrived within the bound.
	ErrTimeout = errors.New("operation timeout")
	// ErrOperationAborted means the caller cancelled the operation.
	ErrOperationAborted = errors.New("operation aborted")
	// ErrNACKReceived means the chip rejected the command frame.
	ErrNACKReceived = errors.New("NACK received")
	// ErrACKMismatch means the chip answered a command with something other
	// than an ACK or NACK. Host and chip disagree about framing state.
	ErrACKMismatch = errors.New("expected ACK/NACK frame")
	// ErrFrameCorrupted covers preamble, checksum, postamble and response
	// code mismatches in a received frame.
	ErrFrameCorrupted = errors.New("frame corrupted")
	// ErrChipErrorFrame is the chip's application level error frame.
	ErrChipErrorFrame = errors.New("received an error frame")
	// ErrUnsupported means the operation is not valid for the connected chip.
	ErrUnsupported = errors.New("operation not supported")
	// ErrInvalidArgument rejects malformed lengths or buffers before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrChipStatus matches every *ChipError.
	ErrChipStatus = errors.New("chip reported error status")
	// ErrTransportClosed is returned by transports after Close.
	ErrTransportClosed = errors.New("transport is closed")
	// ErrNoTransportDriver means a connection string names no registered driver.
	ErrNoTransportDriver = errors.New("no transport driver")
	// ErrNotConnected is returned by a Device without a transport.
	ErrNotConnected = errors.New("device not connected")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context.
// errors.Is(err, ErrTransport) holds for every TransportError.
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (*TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// ChipError carries a non-zero status byte returned by the chip.
type ChipError struct {
	Command byte
	Code    ErrorCode
}

func (e *ChipError) Error() string {
	return fmt.Sprintf("%s: %s (0x%02X)", commandName(e.Command), e.Code, uint16(e.Code))
}

// Is reports whether target is ErrChipStatus.
func (*ChipError) Is(target error) bool {
	return target == ErrChipStatus
}

// ErrorCode is the last-error value kept by a Device. Values below 0x100 are
// chip status codes; the rest are raised by the host side of the protocol.
type ErrorCode uint16

// Chip status codes with a defined meaning.
const (
	CodeSuccess         ErrorCode = 0x00
	CodeRFTimeout       ErrorCode = 0x01
	CodeCRC             ErrorCode = 0x02
	CodeParity          ErrorCode = 0x03
	CodeBitCount        ErrorCode = 0x04
	CodeFraming         ErrorCode = 0x05
	CodeBitCollision    ErrorCode = 0x06
	CodeBufferTooSmall  ErrorCode = 0x07
	CodeAuthentication  ErrorCode = 0x14
	CodeTargetReleased  ErrorCode = 0x29
	CodeCardDiscarded   ErrorCode = 0x2B
	CodeNADMissingInDEP ErrorCode = 0x2E
)

// Host side codes.
const (
	CodeNACK ErrorCode = 0x100 + iota
	CodeACKMismatch
	CodeErrorFrame
	CodeInvalidArgument
	CodeIO
	CodeTimeout
	CodeAborted
	CodeUnsupported
)

var errorMessages = map[ErrorCode]string{
	0x00: "Success",
	0x01: "Timeout",
	0x02: "CRC Error",
	0x03: "Parity Error",
	0x04: "Erroneous Bit Count",
	0x05: "Framing Error",
	0x06: "Bit-collision",
	0x07: "Buffer Too Small",
	0x09: "Buffer Overflow",
	0x0A: "Timeout",
	0x0B: "Protocol Error",
	0x0D: "Overheating",
	0x0E: "Internal Buffer overflow.",
	0x10: "Invalid Parameter",
	0x12: "Unknown DEP Command",
	0x13: "Invalid Parameter",
	0x14: "Authentication Error",
	0x23: "Wrong ISO/IEC14443-3 Check Byte",
	0x25: "Invalid State",
	0x26: "Operation Not Allowed",
	0x27: "Command Not Acceptable",
	0x29: "Target Released",
	0x2A: "Card ID Mismatch",
	0x2B: "Card Discarded",
	0x2C: "NFCID3 Mismatch",
	0x2D: "Over Current",
	0x2E: "NAD Missing in DEP Frame",

	CodeNACK:            "Received NACK",
	CodeACKMismatch:     "Expected ACK/NACK",
	CodeErrorFrame:      "Received an error frame",
	CodeInvalidArgument: "Invalid argument",
	CodeIO:              "Input/output error",
	CodeTimeout:         "Operation timed-out",
	CodeAborted:         "Operation aborted",
	CodeUnsupported:     "Operation not supported",
}

// String renders the code the way StrError does.
func (c ErrorCode) String() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// codeFor maps an error returned by the engine to the code recorded as the
// device's last error.
func codeFor(err error) ErrorCode {
	var ce *ChipError
	switch {
	case err == nil:
		return CodeSuccess
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, ErrNACKReceived):
		return CodeNACK
	case errors.Is(err, ErrACKMismatch):
		return CodeACKMismatch
	case errors.Is(err, ErrChipErrorFrame):
		return CodeErrorFrame
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrOperationAborted):
		return CodeAborted
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	default:
		return CodeIO
	}
}

// isTimeout reports whether a transport error is a receive timeout. Transports
// may return ErrTimeout or an os deadline error.
func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded)
}

// contextError maps a finished context onto the taxonomy: a deadline is a
// timeout, anything else is a caller abort.
func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrOperationAborted, ctx.Err())
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var ce *ChipError
	if errors.As(err, &ce) {
		return ce.Code == CodeRFTimeout || ce.Code == 0x0A
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNACKReceived),
		errors.Is(err, ErrFrameCorrupted):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the session cannot continue: the device is gone or
// host and chip lost framing synchronisation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrACKMismatch),
		errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsAborted reports whether err is a caller-requested cancellation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrOperationAborted)
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors indicating device disconnection.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}

// =============================================================================
// Wire Trace Logging
// =============================================================================

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the chip
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the chip
	TraceRX TraceDirection = "RX"
)

// TraceEntry is one frame or event seen on the wire.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	line := fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, formatHexBytes(e.Data))
	if e.Note != "" {
		line += " (" + e.Note + ")"
	}
	return line
}

// TraceableError wraps an error with the frames exchanged by the failing
// command:
//
//	var te *pn53x.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		arrow := ">"
		if entry.Direction == TraceRX {
			arrow = "<"
		}
		_, _ = fmt.Fprintf(&sb, "  %s %s", arrow, formatHexBytes(entry.Data))
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		_ = sb.WriteByte('\n')
	}
	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex, truncated after
// 32 bytes.
func formatHexBytes(data []byte) string {
	const limit = 32
	if len(data) == 0 {
		return "(empty)"
	}
	if len(data) > limit {
		return fmt.Sprintf("% X ... (%d bytes total)", data[:limit], len(data))
	}
	return fmt.Sprintf("% X", data)
}

// TraceBuffer keeps the most recent wire entries of a device in a bounded
// buffer.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	maxSize   int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(transport, port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = DefaultTraceSize
	}
	return &TraceBuffer{
		entries:   make([]TraceEntry, 0, maxSize),
		maxSize:   maxSize,
		transport: transport,
		port:      port,
	}
}

// RecordTX records a frame sent to the chip
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records bytes received from the chip
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	entry := TraceEntry{
		Direction: dir,
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now(),
		Note:      note,
	}
	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
		return
	}
	tb.entries = append(tb.entries, entry)
}

// WrapError attaches a copy of the collected entries to err.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Trace:     append([]TraceEntry(nil), tb.entries...),
		Transport: tb.transport,
		Port:      tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// Entries returns a copy of the buffered entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	return append([]TraceEntry(nil), tb.entries...)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
