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

// Package spi talks to a PN532 on an SPI bus through periph.io.
//
// The PN532 shifts bits LSB first. Frames are mirrored in software so any
// SPI controller works in mode 0. Importing the package registers the "spi"
// driver, for example pn53x.Open(ctx, "spi:/dev/spidev0.0").
package spi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	"github.com/ZaparooProject/go-pn53x/pkg/bitutil"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPI operation prefixes
const (
	spiDataWrite = 0x01
	spiStatRead  = 0x02
	spiDataRead  = 0x03
	spiReady     = 0x01
)

const (
	defaultFreq = 1 * physic.MegaHertz
	mode        = spi.Mode0 // CPOL=0, CPHA=0 (LSB first is handled by bit reversal)

	readyPollInterval = time.Millisecond
)

// Transport implements pn53x.Transport for a PN532 on SPI.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	portName string
	rbuf     []byte
	pending  []byte
	mu       syncutil.Mutex
	closed   bool
}

// New opens the SPI port portName and wakes the PN532 up.
func New(portName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	c, err := port.Connect(defaultFreq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	t := newTransport(c, portName)
	t.port = port
	t.wakeup()
	pn53x.Debugf("spi: opened %s", portName)
	return t, nil
}

func newTransport(c spi.Conn, portName string) *Transport {
	return &Transport{
		conn:     c,
		portName: portName,
		rbuf:     make([]byte, 1+frame.ReadChunkSize),
	}
}

// wakeup pulls chip select low for one byte, which takes the chip out of
// power down.
func (t *Transport) wakeup() {
	time.Sleep(time.Millisecond)
	_ = t.conn.Tx([]byte{0x00}, nil)
	time.Sleep(time.Millisecond)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes the DW prefix and the mirrored frame in one transaction.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return pn53x.ErrTransportClosed
	}

	w := make([]byte, 1+len(data))
	w[0] = spiDataWrite
	copy(w[1:], data)
	if err := t.conn.Tx(bitutil.MirrorBytes(w), nil); err != nil {
		return pn53x.NewTransportError("send", t.portName, err, pn53x.ErrorTypeTransient)
	}
	return nil
}

// Receive polls the status register until a frame is ready or timeout
// passes, then reads that frame.
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
		if err := t.readFrame(ctx, timeout); err != nil {
			return 0, err
		}
	}
	n := copy(buf, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *Transport) readFrame(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ready, err := t.isReady()
		if err != nil {
			return pn53x.NewTransportError("status read", t.portName, err, pn53x.ErrorTypeTransient)
		}
		if ready {
			break
		}
		if !time.Now().Add(readyPollInterval).Before(deadline) {
			return pn53x.ErrTimeout
		}
		if err := sleepCtx(ctx, readyPollInterval); err != nil {
			return err
		}
	}

	w := make([]byte, len(t.rbuf))
	w[0] = bitutil.Mirror(spiDataRead)
	if err := t.conn.Tx(w, t.rbuf); err != nil {
		return pn53x.NewTransportError("receive", t.portName, err, pn53x.ErrorTypeTransient)
	}
	t.pending = trimFrame(bitutil.MirrorBytes(t.rbuf[1:]))
	return nil
}

func (t *Transport) isReady() (bool, error) {
	w := []byte{bitutil.Mirror(spiStatRead), 0x00}
	r := make([]byte, 2)
	if err := t.conn.Tx(w, r); err != nil {
		return false, fmt.Errorf("SPI status read failed: %w", err)
	}
	return bitutil.Mirror(r[1]) == spiReady, nil
}

// trimFrame cuts the padding clocked out after a frame. Data that does not
// parse is passed on whole so the caller sees the corruption.
func trimFrame(data []byte) []byte {
	_, n, err := frame.Parse(data)
	if err == nil || errors.Is(err, frame.ErrErrorFrame) {
		return data[:n]
	}
	return data
}

// Close releases the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			return fmt.Errorf("failed to close SPI port: %w", err)
		}
	}
	return nil
}

// Type returns the transport type.
func (*Transport) Type() pn53x.TransportType {
	return pn53x.TransportSPI
}

// Port returns the SPI port name.
func (t *Transport) Port() string {
	return t.portName
}

// HasCapability reports the SPI capabilities.
func (*Transport) HasCapability(capability pn53x.TransportCapability) bool {
	return capability == pn53x.CapabilityAbortWithACK
}

// ChipHint tells the device that only PN532s have an SPI interface.
func (*Transport) ChipHint() pn53x.Chip {
	return pn53x.ChipPN532
}

// Scan lists the SPI ports periph.io knows about. It does not probe them.
func Scan(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	var names []string
	for _, ref := range spireg.All() {
		names = append(names, ref.Name)
	}
	return names, nil
}

func init() {
	pn53x.RegisterDriver(pn53x.Driver{
		Name:        "spi",
		Description: "PN532 on an SPI bus",
		Open: func(_ context.Context, path string) (pn53x.Transport, error) {
			t, err := New(path)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Scan: Scan,
	})
}
