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

// Package usb talks to PN531 and PN533 readers over USB bulk endpoints.
//
// Importing the package registers the "usb" driver. Paths are either a
// VID:PID pair in hex ("04cc:2533") or a bus:address pair in decimal
// ("001:007") as returned by Scan. An empty path opens the first supported
// reader.
package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	"github.com/google/gousb"
)

const (
	// DefaultPacketSize is used when the IN endpoint reports no size.
	DefaultPacketSize = 64
	// bufferSize holds the longest extended frame, rounded up to whole
	// packets when the transport is built.
	bufferSize = frame.ReadChunkSize
	// closeTimeout bounds the abort ACK sent on Close.
	closeTimeout = 100 * time.Millisecond
)

// ErrNoDevice is returned when no supported reader matches a path.
var ErrNoDevice = errors.New("no supported USB reader found")

// bulkIn and bulkOut are the parts of gousb endpoints the transport uses.
type bulkIn interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type bulkOut interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// Transport implements pn53x.Transport over a pair of bulk endpoints.
type Transport struct {
	in      bulkIn
	out     bulkOut
	release func()
	model   Model
	name    string
	rbuf    []byte
	pending []byte
	packet  int
	mu      syncutil.Mutex
	closed  bool
}

func newTransport(in bulkIn, out bulkOut, model Model, name string, packetSize int) *Transport {
	if packetSize <= 0 {
		packetSize = DefaultPacketSize
	}
	size := (bufferSize + packetSize - 1) / packetSize * packetSize
	return &Transport{
		in:     in,
		out:    out,
		model:  model,
		name:   name,
		rbuf:   make([]byte, size),
		packet: packetSize,
	}
}

// Send writes data in one bulk transfer. A transfer that ends on a packet
// boundary is followed by a zero length packet so the chip sees its end.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return pn53x.ErrTransportClosed
	}
	return t.write(ctx, data)
}

func (t *Transport) write(ctx context.Context, data []byte) error {
	n, err := t.out.WriteContext(ctx, data)
	if err != nil {
		return pn53x.NewTransportError("send", t.name, err, errorType(err))
	}
	if n != len(data) {
		return pn53x.NewTransportError("send", t.name,
			fmt.Errorf("short write: %d of %d bytes", n, len(data)), pn53x.ErrorTypeTransient)
	}
	if n%t.packet == 0 {
		if _, err := t.out.WriteContext(ctx, nil); err != nil {
			return pn53x.NewTransportError("send zlp", t.name, err, errorType(err))
		}
	}
	return nil
}

// Receive returns bytes left from the last bulk transfer or waits up to
// timeout for the next one.
func (t *Transport) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, pn53x.ErrTransportClosed
	}

	if len(t.pending) == 0 {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		n, err := t.in.ReadContext(rctx, t.rbuf)
		cancel()
		switch {
		case n > 0:
			t.pending = t.rbuf[:n]
		case err == nil:
			return 0, pn53x.ErrTimeout
		case ctx.Err() != nil:
			return 0, ctx.Err()
		case isTimeout(err) || rctx.Err() != nil:
			return 0, pn53x.ErrTimeout
		default:
			return 0, pn53x.NewTransportError("receive", t.name, err, errorType(err))
		}
	}

	n := copy(buf, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// Close aborts whatever the chip is doing and releases the device.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := t.write(ctx, frame.AckFrame); err != nil {
		pn53x.Debugf("usb: abort on close: %v", err)
	}
	t.closed = true
	if t.release != nil {
		t.release()
	}
	return nil
}

// Type returns the transport type.
func (*Transport) Type() pn53x.TransportType {
	return pn53x.TransportUSB
}

// Port returns the bus:address of the device.
func (t *Transport) Port() string {
	return t.name
}

// Model returns the reader model.
func (t *Transport) Model() Model {
	return t.model
}

// ChipHint returns the chip the reader model is built around.
func (t *Transport) ChipHint() pn53x.Chip {
	return t.model.Chip
}

// HasCapability reports the capabilities of the reader. Only PN533 readers
// take extended frames.
func (t *Transport) HasCapability(capability pn53x.TransportCapability) bool {
	switch capability {
	case pn53x.CapabilityAbortWithACK:
		return true
	case pn53x.CapabilityExtendedFrames:
		return t.model.Chip == pn53x.ChipPN533
	default:
		return false
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func errorType(err error) pn53x.ErrorType {
	switch {
	case errors.Is(err, gousb.ErrorNoDevice),
		errors.Is(err, gousb.ErrorNotFound),
		errors.Is(err, gousb.ErrorAccess),
		errors.Is(err, gousb.TransferNoDevice):
		return pn53x.ErrorTypePermanent
	case isTimeout(err):
		return pn53x.ErrorTypeTimeout
	default:
		return pn53x.ErrorTypeTransient
	}
}
