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

// Package uart talks to a PN532 over its high speed UART (HSU) interface.
//
// Importing the package registers the "uart" driver, so a device can be
// opened with pn53x.Open(ctx, "uart:/dev/ttyUSB0").
package uart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	"go.bug.st/serial"
)

// DefaultBaudRate is the PN532 HSU rate after power on.
const DefaultBaudRate = 115200

var (
	// ErrPortBusy is returned by New when another process holds the port.
	ErrPortBusy = errors.New("serial port is in use")
	// ErrNoPort is returned when an empty path is opened and Scan finds
	// nothing.
	ErrNoPort = errors.New("no PN532 serial port found")
)

// wakeupPreamble brings a PN532 out of power down before the next frame.
// The long run of zeros gives the HSU time to start its oscillator.
var wakeupPreamble = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

type config struct {
	baudRate int
	lock     bool
}

// Option configures New.
type Option func(*config)

// WithBaudRate opens the port at rate instead of DefaultBaudRate.
func WithBaudRate(rate int) Option {
	return func(c *config) {
		c.baudRate = rate
	}
}

// WithoutLock skips the exclusive lock on the serial device.
func WithoutLock() Option {
	return func(c *config) {
		c.lock = false
	}
}

// Transport implements pn53x.Transport over a serial port.
type Transport struct {
	port        serial.Port
	lockFile    *os.File
	portName    string
	readTimeout time.Duration
	mu          syncutil.Mutex
	asleep      bool
	closed      bool
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// minReadTimeout is the shortest read timeout the platform serial driver
// honours reliably.
func minReadTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return time.Millisecond
}

// postWriteDelay gives the Windows driver time to flush its buffers.
func postWriteDelay() {
	if isWindows() {
		time.Sleep(15 * time.Millisecond)
	}
}

// New opens portName as 8N1 at 115200 baud and claims it exclusively.
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := config{baudRate: DefaultBaudRate, lock: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lockFile *os.File
	if cfg.lock {
		f, err := lockPort(portName)
		if err != nil {
			return nil, err
		}
		lockFile = f
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		_ = unlockPort(lockFile)
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortBusy {
			return nil, fmt.Errorf("%w: %s", ErrPortBusy, portName)
		}
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	t := newTransport(port, portName)
	t.lockFile = lockFile
	pn53x.Debugf("uart: opened %s at %d baud", portName, cfg.baudRate)
	return t, nil
}

// newTransport wraps an open port. The chip is assumed asleep so the first
// frame carries the wakeup preamble.
func newTransport(port serial.Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		asleep:   true,
	}
}

// Send writes a frame, preceded by the wakeup preamble when the chip may be
// in power down.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return pn53x.ErrTransportClosed
	}

	if t.asleep {
		if err := t.write("wake up", wakeupPreamble); err != nil {
			return err
		}
		t.asleep = false
	}
	if err := t.write("send", data); err != nil {
		return err
	}
	if isPowerDown(data) {
		t.asleep = true
	}
	postWriteDelay()
	return nil
}

func (t *Transport) write(op string, data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return pn53x.NewTransportError(op, t.portName, err, errorType(err))
	}
	if n != len(data) {
		return pn53x.NewTransportError(op, t.portName,
			fmt.Errorf("short write: %d of %d bytes", n, len(data)), pn53x.ErrorTypeTransient)
	}
	return t.drainWithRetry(op)
}

// Receive reads whatever arrives within timeout.
func (t *Transport) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, pn53x.ErrTransportClosed
	}

	timeout = max(timeout, minReadTimeout())
	if timeout != t.readTimeout {
		if err := t.port.SetReadTimeout(timeout); err != nil {
			return 0, pn53x.NewTransportError("set timeout", t.portName, err, errorType(err))
		}
		t.readTimeout = timeout
	}

	n, err := t.port.Read(buf)
	if err != nil {
		return n, pn53x.NewTransportError("receive", t.portName, err, errorType(err))
	}
	if n == 0 {
		return 0, pn53x.ErrTimeout
	}
	return n, nil
}

// Close closes the port and releases its lock.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	err := t.port.Close()
	if lockErr := unlockPort(t.lockFile); err == nil {
		err = lockErr
	}
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type returns the transport type.
func (*Transport) Type() pn53x.TransportType {
	return pn53x.TransportUART
}

// Port returns the serial device name.
func (t *Transport) Port() string {
	return t.portName
}

// HasCapability reports the HSU capabilities. The PN532 over UART honours the
// ACK abort but has no extended frames.
func (*Transport) HasCapability(capability pn53x.TransportCapability) bool {
	return capability == pn53x.CapabilityAbortWithACK
}

// ChipHint tells the device that only PN532s have a HSU.
func (*Transport) ChipHint() pn53x.Chip {
	return pn53x.ChipPN532
}

// isPowerDown reports whether data is a PowerDown command frame.
func isPowerDown(data []byte) bool {
	f, _, err := frame.Parse(data)
	return err == nil && f.Kind == frame.KindInfo && f.TFI == frame.HostToChip &&
		len(f.Data) > 0 && f.Data[0] == 0x16
}

func errorType(err error) pn53x.ErrorType {
	if errors.Is(err, os.ErrClosed) {
		return pn53x.ErrorTypePermanent
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortClosed, serial.PortNotFound, serial.InvalidSerialPort:
			return pn53x.ErrorTypePermanent
		default:
		}
	}
	return pn53x.ErrorTypeTransient
}

func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	var err error
	for attempt := range maxRetries {
		if err = t.port.Drain(); err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			break
		}
		if attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
		}
	}
	return pn53x.NewTransportError(operation+" drain", t.portName, err, pn53x.ErrorTypeTransient)
}

func init() {
	pn53x.RegisterDriver(pn53x.Driver{
		Name:        "uart",
		Description: "PN532 on a serial port (HSU)",
		Open: func(ctx context.Context, path string) (pn53x.Transport, error) {
			if path == "" {
				ports, err := Scan(ctx)
				if err != nil {
					return nil, err
				}
				if len(ports) == 0 {
					return nil, ErrNoPort
				}
				path = ports[0]
			}
			t, err := New(path)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Scan: Scan,
	})
}
