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

// Package i2c talks to a PN532 on an I2C bus through periph.io.
//
// Importing the package registers the "i2c" driver, for example
// pn53x.Open(ctx, "i2c:/dev/i2c-1") or "i2c:1" for the bus number.
package i2c

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// PN532 7-bit I2C address (datasheet says 0x48, which is the 8-bit write
	// address including the R/W bit; periph.io and the Linux kernel expect the
	// 7-bit form: 0x48 >> 1 = 0x24).
	pn532Addr = 0x24

	// pn532Ready is the status byte in front of every read once a frame is
	// waiting.
	pn532Ready = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	// readyPollInterval is the pause between status reads.
	readyPollInterval = time.Millisecond

	// writeRetries covers the PN532 waking up from power down, when it does
	// not acknowledge its address for about a millisecond.
	writeRetries = 3
)

// Transport implements pn53x.Transport for a PN532 on I2C.
type Transport struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser // Held so Close() can release the OS file descriptor
	busName string
	rbuf    []byte
	pending []byte
	mu      syncutil.Mutex
	closed  bool
}

// parseI2CPath extracts the bus path from a composite path.
// Accepts "/dev/i2c-1:0x24" or "/dev/i2c-1" (bare bus).
func parseI2CPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens the I2C bus busName and addresses the PN532 on it.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseI2CPath(busName))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	if err := bus.SetSpeed(maxClockFreq); err != nil {
		pn53x.Debugf("i2c: %s keeps its default speed: %v", busName, err)
	}
	pn53x.Debugf("i2c: opened %s", busName)
	return newTransport(bus, busName), nil
}

func newTransport(bus i2c.BusCloser, busName string) *Transport {
	return &Transport{
		dev:     &i2c.Dev{Addr: pn532Addr, Bus: bus},
		bus:     bus,
		busName: busName,
		rbuf:    make([]byte, 1+frame.ReadChunkSize),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes one frame in a single I2C write.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return pn53x.ErrTransportClosed
	}

	baseDelay := time.Millisecond
	var err error
	for attempt := range writeRetries {
		if err = t.dev.Tx(data, nil); err == nil {
			return nil
		}
		if attempt < writeRetries-1 {
			if sleepErr := sleepCtx(ctx, baseDelay*time.Duration(1<<attempt)); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return pn53x.NewTransportError("send", t.busName, err, pn53x.ErrorTypeTransient)
}

// Receive polls the status byte until a frame is ready or timeout passes,
// then reads that frame.
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
			return pn53x.NewTransportError("ready check", t.busName, err, pn53x.ErrorTypeTransient)
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

	if err := t.dev.Tx(nil, t.rbuf); err != nil {
		return pn53x.NewTransportError("receive", t.busName, err, pn53x.ErrorTypeTransient)
	}
	if t.rbuf[0] != pn532Ready {
		return pn53x.ErrTimeout
	}
	t.pending = trimFrame(t.rbuf[1:])
	return nil
}

// isReady reads the status byte.
func (t *Transport) isReady() (bool, error) {
	var status [1]byte
	if err := t.dev.Tx(nil, status[:]); err != nil {
		return false, fmt.Errorf("I2C ready check failed: %w", err)
	}
	return status[0] == pn532Ready, nil
}

// trimFrame cuts the padding the chip clocks out after a frame. Data that
// does not parse is passed on whole so the caller sees the corruption.
func trimFrame(data []byte) []byte {
	_, n, err := frame.Parse(data)
	if err == nil || errors.Is(err, frame.ErrErrorFrame) {
		return data[:n]
	}
	return data
}

// Close releases the bus.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.bus.Close(); err != nil {
		return fmt.Errorf("failed to close I2C bus: %w", err)
	}
	return nil
}

// Type returns the transport type.
func (*Transport) Type() pn53x.TransportType {
	return pn53x.TransportI2C
}

// Port returns the bus name.
func (t *Transport) Port() string {
	return t.busName
}

// HasCapability reports the I2C capabilities.
func (*Transport) HasCapability(capability pn53x.TransportCapability) bool {
	return capability == pn53x.CapabilityAbortWithACK
}

// ChipHint tells the device that only PN532s have an I2C interface.
func (*Transport) ChipHint() pn53x.Chip {
	return pn53x.ChipPN532
}

// Scan lists the I2C buses periph.io knows about. It does not probe them.
func Scan(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	var names []string
	for _, ref := range i2creg.All() {
		names = append(names, ref.Name)
	}
	return names, nil
}

func init() {
	pn53x.RegisterDriver(pn53x.Driver{
		Name:        "i2c",
		Description: "PN532 on an I2C bus",
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
