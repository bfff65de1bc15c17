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

package testing

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
)

// pollInterval is how often Receive asks the backend for bytes.
const pollInterval = 200 * time.Microsecond

// WireTransport adapts an io.ReadWriter such as a VirtualChip or a
// JitteryConnection to pn53x.Transport. Receive polls the backend until it
// returns bytes, the timeout elapses or ctx is done.
type WireTransport struct {
	backend io.ReadWriter
	caps    map[pn53x.TransportCapability]bool
	port    string
	chip    pn53x.Chip
	mu      syncutil.Mutex
	closed  bool
}

// NewWireTransport wraps backend. The transport reports itself as a mock
// transport on port "virtual".
func NewWireTransport(backend io.ReadWriter) *WireTransport {
	return &WireTransport{
		backend: backend,
		caps:    make(map[pn53x.TransportCapability]bool),
		port:    "virtual",
	}
}

// NewChipTransport returns a transport to a fresh simulator of chip and the
// simulator itself. PN533 transports carry extended frames and every
// transport aborts with an ACK, like the USB and HSU links do.
func NewChipTransport(chip pn53x.Chip) (*WireTransport, *VirtualChip) {
	sim := NewVirtualChip(chip)
	t := NewWireTransport(sim)
	t.SetCapability(pn53x.CapabilityAbortWithACK, true)
	if chip == pn53x.ChipPN533 {
		t.SetCapability(pn53x.CapabilityExtendedFrames, true)
	}
	return t, sim
}

// Send writes data to the backend.
func (w *WireTransport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors are returned as is
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return pn53x.ErrTransportClosed
	}
	if _, err := w.backend.Write(data); err != nil {
		return pn53x.NewTransportError("send", w.port, err, pn53x.ErrorTypePermanent)
	}
	return nil
}

// Receive reads what the backend has produced.
func (w *WireTransport) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		n, err := w.read(buf)
		if n > 0 || err != nil {
			return n, err
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return 0, pn53x.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err() //nolint:wrapcheck // context errors are returned as is
		case <-time.After(pollInterval):
		}
	}
}

func (w *WireTransport) read(buf []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, pn53x.ErrTransportClosed
	}
	n, err := w.backend.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, pn53x.NewTransportError("receive", w.port, err, pn53x.ErrorTypeTransient)
	}
	return n, nil
}

// Close marks the transport closed. The backend is left alone.
func (w *WireTransport) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Type implements pn53x.TransportInfo.
func (*WireTransport) Type() pn53x.TransportType {
	return pn53x.TransportMock
}

// Port implements pn53x.TransportInfo.
func (w *WireTransport) Port() string {
	return w.port
}

// HasCapability implements pn53x.TransportCapabilityChecker.
func (w *WireTransport) HasCapability(capability pn53x.TransportCapability) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.caps[capability]
}

// SetCapability turns a capability on or off.
func (w *WireTransport) SetCapability(capability pn53x.TransportCapability, enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.caps[capability] = enabled
}

// ChipHint implements pn53x.ChipHinter. It returns ChipUnknown unless
// SetChipHint was called.
func (w *WireTransport) ChipHint() pn53x.Chip {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chip
}

// SetChipHint sets what ChipHint returns.
func (w *WireTransport) SetChipHint(chip pn53x.Chip) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chip = chip
}
