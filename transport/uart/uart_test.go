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

package uart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	virt "github.com/ZaparooProject/go-pn53x/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// errPortClosed is returned when operations are attempted on a closed port
var errPortClosed = errors.New("port is closed")

// MockSerialPort implements serial.Port on top of a byte pipe such as the
// chip simulator. Read blocks up to the read timeout like a real port.
type MockSerialPort struct {
	backend     io.ReadWriter
	drainErrs   []error
	writes      [][]byte
	readTimeout time.Duration
	drains      int
	mu          syncutil.Mutex
	closed      bool
}

// NewMockSerialPort creates a mock serial port backed by backend.
func NewMockSerialPort(backend io.ReadWriter) *MockSerialPort {
	return &MockSerialPort{
		backend:     backend,
		readTimeout: 100 * time.Millisecond,
	}
}

func (*MockSerialPort) SetMode(_ *serial.Mode) error {
	return nil
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	timeout := m.readTimeout
	m.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, errPortClosed
		}
		n, err := m.backend.Read(p)
		m.mu.Unlock()
		if n > 0 || err != nil {
			return n, err
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(200 * time.Microsecond)
	}
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errPortClosed
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	return m.backend.Write(p)
}

func (m *MockSerialPort) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
	if len(m.drainErrs) > 0 {
		err := m.drainErrs[0]
		m.drainErrs = m.drainErrs[1:]
		return err
	}
	return nil
}

func (*MockSerialPort) ResetInputBuffer() error {
	return nil
}

func (*MockSerialPort) ResetOutputBuffer() error {
	return nil
}

func (*MockSerialPort) SetDTR(_ bool) error {
	return nil
}

func (*MockSerialPort) SetRTS(_ bool) error {
	return nil
}

func (*MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	m.readTimeout = t
	m.mu.Unlock()
	return nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (*MockSerialPort) Break(_ time.Duration) error {
	return nil
}

// Writes returns a copy of everything written so far, one entry per Write.
func (m *MockSerialPort) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writes...)
}

// Verify interface implementation
var _ serial.Port = (*MockSerialPort)(nil)

func newTestTransport(t *testing.T, backend io.ReadWriter) (*Transport, *MockSerialPort) {
	t.Helper()
	port := NewMockSerialPort(backend)
	tr := newTransport(port, "/dev/ttyTEST0")
	t.Cleanup(func() { _ = tr.Close() })
	return tr, port
}

func countPreambles(writes [][]byte) int {
	n := 0
	for _, w := range writes {
		if bytes.Equal(w, wakeupPreamble) {
			n++
		}
	}
	return n
}

func TestTransport_ConnectAndList(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualPN532()
	sim.AddTag(virt.NewVirtualNTAG213(virt.TestNTAG213UID))
	tr, _ := newTestTransport(t, sim)

	ctx := context.Background()
	dev, err := pn53x.Connect(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, pn53x.ChipPN532, dev.Chip())
	assert.True(t, sim.GetState().SAMConfigured)

	require.NoError(t, dev.InitiatorInit(ctx))
	targets, err := dev.ListPassiveTargets(ctx, pn53x.ISO14443A106, 2)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, virt.TestNTAG213UID, targets[0].UID())
}

func TestTransport_Jittery(t *testing.T) {
	t.Parallel()

	for _, seed := range []uint64{1, 2, 3} {
		t.Run("", func(t *testing.T) {
			t.Parallel()
			sim := virt.NewVirtualPN532()
			sim.AddTag(virt.NewVirtualDESFire(virt.TestDESFireUID, nil))
			cfg := virt.DefaultJitterConfig()
			cfg.Seed = seed
			cfg.MaxChunk = 3
			tr, _ := newTestTransport(t, virt.NewJitteryConnection(sim, cfg))

			ctx := context.Background()
			dev, err := pn53x.Connect(ctx, tr)
			require.NoError(t, err)
			require.NoError(t, dev.InitiatorInit(ctx))

			target, err := dev.SelectPassiveTarget(ctx, pn53x.ISO14443A106, nil)
			require.NoError(t, err)
			require.NotNil(t, target)
			info, ok := target.Info.(*pn53x.ISO14443AInfo)
			require.True(t, ok)
			assert.Equal(t, virt.TestDESFireUID, info.UID)
			assert.NotEmpty(t, info.ATS)
		})
	}
}

func TestTransport_WakeupPreamble(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualPN532()
	tr, port := newTestTransport(t, sim)

	ctx := context.Background()
	dev, err := pn53x.Connect(ctx, tr)
	require.NoError(t, err)

	writes := port.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, wakeupPreamble, writes[0])
	assert.Equal(t, 1, countPreambles(writes))

	require.NoError(t, dev.PowerDown(ctx, 0x20))
	assert.True(t, sim.GetState().PowerDown)
	assert.Equal(t, 1, countPreambles(port.Writes()))

	_, err = dev.GetFirmwareVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, countPreambles(port.Writes()))
}

func TestTransport_Receive(t *testing.T) {
	t.Parallel()

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		tr, port := newTestTransport(t, virt.NewVirtualPN532())
		buf := make([]byte, 16)
		start := time.Now()
		n, err := tr.Receive(context.Background(), buf, 5*time.Millisecond)
		assert.Zero(t, n)
		require.ErrorIs(t, err, pn53x.ErrTimeout)
		assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

		port.mu.Lock()
		defer port.mu.Unlock()
		assert.Equal(t, max(5*time.Millisecond, minReadTimeout()), port.readTimeout)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		tr, _ := newTestTransport(t, virt.NewVirtualPN532())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := tr.Receive(ctx, make([]byte, 16), time.Second)
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, tr.Send(ctx, frame.AckFrame), context.Canceled)
	})

	t.Run("data", func(t *testing.T) {
		t.Parallel()
		tr, _ := newTestTransport(t, virt.NewVirtualPN532())
		cmd, err := frame.Build(frame.HostToChip, []byte{0x02}, false)
		require.NoError(t, err)
		require.NoError(t, tr.Send(context.Background(), cmd))

		buf := make([]byte, 64)
		n, err := tr.Receive(context.Background(), buf, 50*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(buf[:n], frame.AckFrame))
	})
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	tr, port := newTestTransport(t, virt.NewVirtualPN532())
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	port.mu.Lock()
	assert.True(t, port.closed)
	port.mu.Unlock()

	ctx := context.Background()
	require.ErrorIs(t, tr.Send(ctx, frame.AckFrame), pn53x.ErrTransportClosed)
	_, err := tr.Receive(ctx, make([]byte, 8), time.Millisecond)
	require.ErrorIs(t, err, pn53x.ErrTransportClosed)
}

func TestTransport_WriteErrorOnClosedPort(t *testing.T) {
	t.Parallel()

	tr, port := newTestTransport(t, virt.NewVirtualPN532())
	require.NoError(t, port.Close())

	err := tr.Send(context.Background(), frame.AckFrame)
	require.ErrorIs(t, err, errPortClosed)
	require.ErrorIs(t, err, pn53x.ErrTransport)
}

func TestDrainWithRetry(t *testing.T) {
	t.Parallel()

	eintr := syscall.EINTR
	tests := []struct {
		name       string
		errs       []error
		wantDrains int
		wantErr    bool
	}{
		{name: "ok", wantDrains: 1},
		{name: "interrupted once", errs: []error{eintr}, wantDrains: 2},
		{name: "interrupted twice", errs: []error{eintr, eintr}, wantDrains: 3},
		{name: "interrupted always", errs: []error{eintr, eintr, eintr}, wantDrains: 3, wantErr: true},
		{name: "other error", errs: []error{os.ErrInvalid}, wantDrains: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, port := newTestTransport(t, virt.NewVirtualPN532())
			port.drainErrs = tt.errs

			err := tr.drainWithRetry("test")
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, pn53x.ErrTransport)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantDrains, port.drains)
		})
	}
}

func TestIsInterruptedSystemCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "errno", err: syscall.EINTR, want: true},
		{name: "text", err: errors.New("read /dev/ttyUSB0: EINTR"), want: true},
		{name: "other", err: os.ErrDeadlineExceeded, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isInterruptedSystemCall(tt.err))
		})
	}
}

func TestIsPowerDown(t *testing.T) {
	t.Parallel()

	powerDown, err := frame.Build(frame.HostToChip, []byte{0x16, 0x20}, false)
	require.NoError(t, err)
	firmware, err := frame.Build(frame.HostToChip, []byte{0x02}, false)
	require.NoError(t, err)

	assert.True(t, isPowerDown(powerDown))
	assert.False(t, isPowerDown(firmware))
	assert.False(t, isPowerDown(frame.AckFrame))
	assert.False(t, isPowerDown([]byte{0x16}))
}

func TestErrorType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pn53x.ErrorTypePermanent, errorType(os.ErrClosed))
	assert.Equal(t, pn53x.ErrorTypeTransient, errorType(syscall.EAGAIN))
}

func TestTransport_Info(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, virt.NewVirtualPN532())
	assert.Equal(t, pn53x.TransportUART, tr.Type())
	assert.Equal(t, "/dev/ttyTEST0", tr.Port())
	assert.Equal(t, pn53x.ChipPN532, tr.ChipHint())

	tests := []struct {
		capability pn53x.TransportCapability
		want       bool
	}{
		{pn53x.CapabilityAbortWithACK, true},
		{pn53x.CapabilityExtendedFrames, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.HasCapability(tt.capability), tt.capability)
	}

	var _ pn53x.Transport = tr
	var _ pn53x.TransportInfo = tr
	var _ pn53x.TransportCapabilityChecker = tr
	var _ pn53x.ChipHinter = tr
}

func TestDriverRegistered(t *testing.T) {
	t.Parallel()

	var found bool
	for _, drv := range pn53x.Drivers() {
		if drv.Name == "uart" {
			found = true
			assert.NotNil(t, drv.Scan)
		}
	}
	assert.True(t, found)
}
