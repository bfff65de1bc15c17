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

package pn53x

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
)

// Transport is the byte pipe between the host and a PN53x. Implementations
// deliver bytes in order and unmodified; all framing is done by the Device.
//
// Receive blocks until at least one byte is available, the timeout elapses
// or ctx is done. It may return fewer bytes than a full frame; the Device
// keeps reading until the frame is complete. A timeout is reported with an
// error matching ErrTimeout or os.ErrDeadlineExceeded, cancellation with
// ctx.Err().
type Transport interface {
	// Send writes data to the chip.
	Send(ctx context.Context, data []byte) error

	// Receive reads available bytes into buf and returns how many were read.
	Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, error)

	// Close releases the underlying device.
	Close() error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportUSB represents USB bulk transport.
	TransportUSB TransportType = "usb"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportSPI represents SPI bus transport.
	TransportSPI TransportType = "spi"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportInfo is implemented by transports that can describe themselves
// for logs and wire traces.
type TransportInfo interface {
	Type() TransportType
	Port() string
}

// TransportCapability represents specific capabilities or behaviors of a transport
type TransportCapability string

const (
	// CapabilityAbortWithACK means the chip behind the transport cancels the
	// running command when the host sends an ACK frame.
	CapabilityAbortWithACK TransportCapability = "abort_with_ack"

	// CapabilityExtendedFrames means the transport can carry frames longer
	// than a normal information frame.
	CapabilityExtendedFrames TransportCapability = "extended_frames"
)

// TransportCapabilityChecker defines an interface for querying transport capabilities
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified capability
	HasCapability(capability TransportCapability) bool
}

// MockTransport is an in-memory chip for tests. It answers every command
// frame with an ACK and a response frame and emulates the register file, so
// register caching and write elision can be observed through call counts.
type MockTransport struct {
	responses map[byte][][]byte
	handlers  map[byte]func(params []byte) ([]byte, error)
	raw       map[byte][]byte
	callCount map[byte]int
	errorMap  map[byte]error
	nacks     map[byte]int
	registers map[Register]byte
	caps      map[TransportCapability]bool
	pending   []byte
	sent      [][]byte
	firmware  []byte
	chunkSize int
	aborts    int
	chip      Chip
	mu        syncutil.Mutex
	silent    bool
	closed    bool
}

// NewMockTransport creates a mock PN532.
func NewMockTransport() *MockTransport {
	return NewMockTransportFor(ChipPN532)
}

// NewMockTransportFor creates a mock of the given chip generation.
func NewMockTransportFor(chip Chip) *MockTransport {
	m := &MockTransport{
		responses: make(map[byte][][]byte),
		handlers:  make(map[byte]func([]byte) ([]byte, error)),
		raw:       make(map[byte][]byte),
		callCount: make(map[byte]int),
		errorMap:  make(map[byte]error),
		nacks:     make(map[byte]int),
		registers: make(map[Register]byte),
		caps: map[TransportCapability]bool{
			CapabilityAbortWithACK:   true,
			CapabilityExtendedFrames: true,
		},
		chip: chip,
	}
	switch chip {
	case ChipPN531:
		m.firmware = []byte{0x04, 0x02}
	case ChipPN533:
		m.firmware = []byte{0x33, 0x02, 0x08, 0x07}
	case ChipPN532, ChipUnknown:
		m.firmware = []byte{0x32, 0x01, 0x06, 0x07}
	}
	return m
}

// Send implements Transport.
func (m *MockTransport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrTransportClosed
	}
	m.sent = append(m.sent, append([]byte(nil), data...))

	f, _, err := frame.Parse(data)
	if err != nil {
		return fmt.Errorf("mock: malformed frame % X: %w", data, err)
	}
	if f.Kind == frame.KindAck {
		m.aborts++
		m.pending = nil
		return nil
	}
	if f.Kind != frame.KindInfo || f.TFI != frame.HostToChip || len(f.Data) == 0 {
		return fmt.Errorf("mock: unexpected frame % X", data)
	}

	cmd, params := f.Data[0], f.Data[1:]
	m.callCount[cmd]++

	if err, ok := m.errorMap[cmd]; ok {
		return err
	}
	if m.nacks[cmd] > 0 {
		m.nacks[cmd]--
		m.pending = append(m.pending, frame.NackFrame...)
		return nil
	}
	if m.silent {
		m.pending = append(m.pending, frame.AckFrame...)
		return nil
	}
	if raw, ok := m.raw[cmd]; ok {
		m.pending = append(m.pending, raw...)
		return nil
	}

	payload, err := m.respond(cmd, params)
	if err != nil {
		return err
	}
	resp, err := frame.Build(frame.ChipToHost, append([]byte{cmd + 1}, payload...), true)
	if err != nil {
		return fmt.Errorf("mock: %w", err)
	}
	m.pending = append(m.pending, frame.AckFrame...)
	m.pending = append(m.pending, resp...)
	return nil
}

// respond produces the response payload after the response code.
func (m *MockTransport) respond(cmd byte, params []byte) ([]byte, error) {
	if h, ok := m.handlers[cmd]; ok {
		return h(params)
	}
	if queue := m.responses[cmd]; len(queue) > 0 {
		resp := queue[0]
		if len(queue) > 1 {
			m.responses[cmd] = queue[1:]
		}
		return resp, nil
	}

	switch cmd {
	case cmdGetFirmwareVersion:
		return m.firmware, nil
	case cmdGetGeneralStatus:
		return []byte{0x00, 0x00, 0x00}, nil
	case cmdDiagnose:
		return append([]byte(nil), params...), nil
	case cmdReadRegister:
		return m.readRegisters(params), nil
	case cmdWriteRegister:
		for i := 0; i+2 < len(params); i += 3 {
			m.registers[Register(params[i])<<8|Register(params[i+1])] = params[i+2]
		}
		return nil, nil
	}
	if hasStatusByte(cmd) {
		return []byte{0x00}, nil
	}
	return nil, nil
}

func (m *MockTransport) readRegisters(params []byte) []byte {
	var out []byte
	if m.chip == ChipPN533 {
		out = append(out, 0x00)
	}
	for i := 0; i+1 < len(params); i += 2 {
		out = append(out, m.registers[Register(params[i])<<8|Register(params[i+1])])
	}
	return out
}

// Receive implements Transport.
func (m *MockTransport) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrTransportClosed
	}
	if len(m.pending) > 0 {
		n := len(m.pending)
		if m.chunkSize > 0 && n > m.chunkSize {
			n = m.chunkSize
		}
		n = copy(buf, m.pending[:n])
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	// Nothing queued: a real chip would still be working on the command.
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, ErrTimeout
	}
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements TransportInfo.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Port implements TransportInfo.
func (*MockTransport) Port() string {
	return "mock"
}

// ChipHint implements ChipHinter.
func (m *MockTransport) ChipHint() Chip {
	return m.chip
}

// HasCapability implements TransportCapabilityChecker. Every capability
// is on until SetCapability turns it off.
func (m *MockTransport) HasCapability(capability TransportCapability) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps[capability]
}

// SetCapability turns a reported capability on or off.
func (m *MockTransport) SetCapability(capability TransportCapability, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps[capability] = enabled
}

// Test helper methods

// SetResponse configures the payload after the response code for cmd. For
// commands with a status byte, the payload starts with it.
func (m *MockTransport) SetResponse(cmd byte, payload []byte) {
	m.SetResponses(cmd, payload)
}

// SetResponses queues payloads for cmd; the last one repeats.
func (m *MockTransport) SetResponses(cmd byte, payloads ...[]byte) {
	m.mu.Lock()
	m.responses[cmd] = payloads
	m.mu.Unlock()
}

// SetHandler computes the response payload for cmd from its parameters.
func (m *MockTransport) SetHandler(cmd byte, h func(params []byte) ([]byte, error)) {
	m.mu.Lock()
	m.handlers[cmd] = h
	m.mu.Unlock()
}

// SetRawReply makes the mock answer cmd with exactly raw, ACK included.
func (m *MockTransport) SetRawReply(cmd byte, raw []byte) {
	m.mu.Lock()
	m.raw[cmd] = raw
	m.mu.Unlock()
}

// SetError makes Send fail for cmd.
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	delete(m.errorMap, cmd)
	m.mu.Unlock()
}

// SetNACKs makes the mock NACK the next n frames carrying cmd.
func (m *MockTransport) SetNACKs(cmd byte, n int) {
	m.mu.Lock()
	m.nacks[cmd] = n
	m.mu.Unlock()
}

// SetSilent makes the mock ACK commands without ever answering them, like
// a chip waiting for a target.
func (m *MockTransport) SetSilent(silent bool) {
	m.mu.Lock()
	m.silent = silent
	m.mu.Unlock()
}

// SetChunkSize limits how many bytes one Receive returns.
func (m *MockTransport) SetChunkSize(n int) {
	m.mu.Lock()
	m.chunkSize = n
	m.mu.Unlock()
}

// SetRegister sets a register of the emulated register file.
func (m *MockTransport) SetRegister(addr Register, value byte) {
	m.mu.Lock()
	m.registers[addr] = value
	m.mu.Unlock()
}

// RegisterValue returns a register of the emulated register file.
func (m *MockTransport) RegisterValue(addr Register) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registers[addr]
}

// GetCallCount returns how many times a command was called
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[cmd]
}

// TotalCalls returns the number of command frames received.
func (m *MockTransport) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.callCount {
		total += n
	}
	return total
}

// Aborts returns how many ACK frames the host sent to abort a command.
func (m *MockTransport) Aborts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborts
}

// Sent returns copies of every frame written by the host.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, s := range m.sent {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// LastCommand returns the command code and parameters of the last command
// frame sent.
func (m *MockTransport) LastCommand() (cmd byte, params []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		f, _, perr := frame.Parse(m.sent[i])
		if perr == nil && f.Kind == frame.KindInfo && len(f.Data) > 0 {
			return f.Data[0], f.Data[1:], nil
		}
	}
	return 0, nil, errors.New("mock: no command sent")
}

// LastParams returns the parameters of the last frame sent for cmd.
func (m *MockTransport) LastParams(cmd byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		f, _, perr := frame.Parse(m.sent[i])
		if perr == nil && f.Kind == frame.KindInfo && len(f.Data) > 0 && f.Data[0] == cmd {
			return f.Data[1:], nil
		}
	}
	return nil, fmt.Errorf("mock: %s not sent", commandName(cmd))
}

// Reset clears call counts and recorded frames and reopens the mock.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.callCount = make(map[byte]int)
	m.sent = nil
	m.pending = nil
	m.aborts = 0
	m.closed = false
	m.mu.Unlock()
}
