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
	"io"
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
)

// JitterConfig shapes how JitteryConnection delivers bytes.
type JitterConfig struct {
	// MaxLatency is the upper bound of the random delay before every read.
	MaxLatency time.Duration
	// StallDuration is slept once StallAfterBytes bytes were delivered.
	StallDuration time.Duration
	// MaxChunk caps a single read; 0 leaves reads unfragmented.
	MaxChunk int
	// StallAfterBytes triggers one stall; 0 disables it.
	StallAfterBytes int
	// PacketSize splits reads at multiples of a USB packet size.
	PacketSize int
	// Seed makes the random choices reproducible; 0 picks a random seed.
	Seed uint64
}

// DefaultJitterConfig delivers 1 to 7 bytes per read with up to 2 ms of
// latency, roughly what a USB-UART bridge does at 115200 baud.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatency: 2 * time.Millisecond,
		MaxChunk:   7,
	}
}

// JitteryConnection wraps an io.ReadWriter and hands out what the backend
// produced in random fragments, with latency and an optional stall. Writes
// pass through untouched. No byte is lost or reordered.
type JitteryConnection struct {
	backend   io.ReadWriter
	rng       *rand.Rand
	pending   []byte
	config    JitterConfig
	delivered int
	stalled   bool
	mu        syncutil.Mutex
}

// NewJitteryConnection wraps backend.
func NewJitteryConnection(backend io.ReadWriter, config JitterConfig) *JitteryConnection {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test randomness
	}
	return &JitteryConnection{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)), //nolint:gosec // test randomness
	}
}

// Write passes data to the backend.
func (j *JitteryConnection) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read returns part of what the backend has produced so far.
func (j *JitteryConnection) Read(buf []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.config.MaxLatency > 0 {
		time.Sleep(time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)))
	}

	if len(j.pending) == 0 {
		chunk := make([]byte, 1024)
		n, err := j.backend.Read(chunk)
		if err != nil {
			return 0, err //nolint:wrapcheck // pass-through
		}
		j.pending = append(j.pending, chunk[:n]...)
	}
	if len(j.pending) == 0 {
		return 0, nil
	}

	n := min(len(buf), len(j.pending))
	if j.config.StallAfterBytes > 0 && !j.stalled {
		if j.delivered >= j.config.StallAfterBytes {
			j.stalled = true
			time.Sleep(j.config.StallDuration)
		} else {
			n = min(n, j.config.StallAfterBytes-j.delivered)
		}
	}
	if p := j.config.PacketSize; p > 0 {
		n = min(n, p-j.delivered%p)
	}
	if j.config.MaxChunk > 0 && n > 1 {
		n = 1 + j.rng.IntN(min(n, j.config.MaxChunk))
	}

	copy(buf, j.pending[:n])
	j.pending = j.pending[n:]
	j.delivered += n
	return n, nil
}

// Buffered returns the number of bytes read from the backend but not yet
// delivered.
func (j *JitteryConnection) Buffered() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// ResetStallState arms the stall again.
func (j *JitteryConnection) ResetStallState() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.delivered = 0
	j.stalled = false
}
