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

package i2c

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	virt "github.com/ZaparooProject/go-pn53x/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

var errBusClosed = errors.New("bus closed")

// MockI2CBus implements i2c.BusCloser on top of the chip simulator. Like
// the real chip it answers every read with a status byte followed by one
// frame padded with zeros.
type MockI2CBus struct {
	sim       *virt.VirtualChip
	queue     []byte
	failTx    int
	addresses map[uint16]int
	mu        syncutil.Mutex
	closed    bool
}

func NewMockI2CBus(sim *virt.VirtualChip) *MockI2CBus {
	return &MockI2CBus{sim: sim, addresses: make(map[uint16]int)}
}

func (m *MockI2CBus) Tx(addr uint16, w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errBusClosed
	}
	m.addresses[addr]++
	if m.failTx > 0 {
		m.failTx--
		return errors.New("i2c: remote NACK")
	}
	if len(w) > 0 {
		if _, err := m.sim.Write(w); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}

	buf := make([]byte, 512)
	n, _ := m.sim.Read(buf)
	m.queue = append(m.queue, buf[:n]...)

	clear(r)
	if len(m.queue) == 0 {
		return nil
	}
	r[0] = pn532Ready
	if len(r) == 1 {
		return nil
	}
	size := len(m.queue)
	if _, fn, err := frame.Parse(m.queue); err == nil || errors.Is(err, frame.ErrErrorFrame) {
		size = fn
	}
	copy(r[1:], m.queue[:size])
	m.queue = m.queue[size:]
	return nil
}

func (*MockI2CBus) SetSpeed(_ physic.Frequency) error {
	return nil
}

func (m *MockI2CBus) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (*MockI2CBus) String() string {
	return "mock-i2c"
}

var _ i2c.BusCloser = (*MockI2CBus)(nil)

func newTestTransport(t *testing.T, sim *virt.VirtualChip) (*Transport, *MockI2CBus) {
	t.Helper()
	bus := NewMockI2CBus(sim)
	tr := newTransport(bus, "/dev/i2c-test")
	t.Cleanup(func() { _ = tr.Close() })
	return tr, bus
}

func TestTransport_ConnectAndSelect(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualPN532()
	sim.AddTag(virt.NewVirtualNTAG213(virt.TestNTAG213UID))
	tr, bus := newTestTransport(t, sim)

	ctx := context.Background()
	dev, err := pn53x.Connect(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, pn53x.ChipPN532, dev.Chip())

	require.NoError(t, dev.InitiatorInit(ctx))
	target, err := dev.SelectPassiveTarget(ctx, pn53x.ISO14443A106, nil)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, virt.TestNTAG213UID, target.UID())

	// NTAG READ of page 3, the capability container
	resp, err := dev.TransceiveBytes(ctx, []byte{0x30, 0x03})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(resp), 4)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Len(t, bus.addresses, 1)
	assert.Positive(t, bus.addresses[pn532Addr])
}

func TestTransport_OneFramePerRead(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, virt.NewVirtualPN532())
	ctx := context.Background()
	cmd, err := frame.Build(frame.HostToChip, []byte{0x02}, false)
	require.NoError(t, err)
	require.NoError(t, tr.Send(ctx, cmd))

	buf := make([]byte, 64)
	n, err := tr.Receive(ctx, buf, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, frame.AckFrame, buf[:n])

	n, err = tr.Receive(ctx, buf, 20*time.Millisecond)
	require.NoError(t, err)
	f, size, err := frame.Parse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, size)
	assert.Equal(t, byte(0x03), f.Data[0])
}

func TestTransport_SmallBuffer(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, virt.NewVirtualPN532())
	ctx := context.Background()
	cmd, err := frame.Build(frame.HostToChip, []byte{0x02}, false)
	require.NoError(t, err)
	require.NoError(t, tr.Send(ctx, cmd))

	var got []byte
	buf := make([]byte, 4)
	for len(got) < len(frame.AckFrame) {
		n, err := tr.Receive(ctx, buf, 20*time.Millisecond)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, frame.AckFrame, got)
}

func TestTransport_ReceiveTimeout(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, virt.NewVirtualPN532())
	n, err := tr.Receive(context.Background(), make([]byte, 8), 3*time.Millisecond)
	assert.Zero(t, n)
	require.ErrorIs(t, err, pn53x.ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(2*time.Millisecond, cancel)
	_, err = tr.Receive(ctx, make([]byte, 8), time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTransport_SendRetriesWakeup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fail    int
		wantErr bool
	}{
		{name: "first try", fail: 0},
		{name: "asleep", fail: 2},
		{name: "gone", fail: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, bus := newTestTransport(t, virt.NewVirtualPN532())
			bus.failTx = tt.fail
			err := tr.Send(context.Background(), frame.AckFrame)
			if tt.wantErr {
				require.ErrorIs(t, err, pn53x.ErrTransport)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	tr, bus := newTestTransport(t, virt.NewVirtualPN532())
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.True(t, bus.closed)

	ctx := context.Background()
	require.ErrorIs(t, tr.Send(ctx, frame.AckFrame), pn53x.ErrTransportClosed)
	_, err := tr.Receive(ctx, make([]byte, 8), time.Millisecond)
	require.ErrorIs(t, err, pn53x.ErrTransportClosed)
}

func TestTrimFrame(t *testing.T) {
	t.Parallel()

	info, err := frame.Build(frame.ChipToHost, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, false)
	require.NoError(t, err)
	padded := func(b []byte) []byte {
		return append(append([]byte{}, b...), make([]byte, 20)...)
	}

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{name: "ack", in: padded(frame.AckFrame), want: frame.AckFrame},
		{name: "info", in: padded(info), want: info},
		{name: "error frame", in: padded(frame.ErrorFrame), want: frame.ErrorFrame},
		{name: "garbage", in: []byte{0x00, 0x00, 0xFF, 0x05, 0x05, 0x00}, want: []byte{0x00, 0x00, 0xFF, 0x05, 0x05, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, trimFrame(tt.in))
		})
	}
}

func TestParseI2CPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/dev/i2c-1", parseI2CPath("/dev/i2c-1:0x24"))
	assert.Equal(t, "/dev/i2c-1", parseI2CPath("/dev/i2c-1"))
	assert.Equal(t, "1", parseI2CPath("1"))
}

func TestTransport_Info(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, virt.NewVirtualPN532())
	assert.Equal(t, pn53x.TransportI2C, tr.Type())
	assert.Equal(t, "/dev/i2c-test", tr.Port())
	assert.Equal(t, pn53x.ChipPN532, tr.ChipHint())
	assert.True(t, tr.HasCapability(pn53x.CapabilityAbortWithACK))
	assert.False(t, tr.HasCapability(pn53x.CapabilityExtendedFrames))
}
