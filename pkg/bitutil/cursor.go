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

package bitutil

// BitWriter appends bits to a byte buffer, filling each byte from bit 0
// upwards. This is the order in which ISO14443-A puts bits on air, so a
// stream written here needs no further reordering before it reaches the chip.
type BitWriter struct {
	buf []byte
	pos int
}

// NewBitWriter returns a writer with room for sizeHint bits.
func NewBitWriter(sizeHint int) *BitWriter {
	return &BitWriter{buf: make([]byte, 0, (sizeHint+7)/8)}
}

// WriteBit appends the low bit of b.
func (w *BitWriter) WriteBit(b byte) {
	if w.pos%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	w.buf[w.pos/8] |= (b & 1) << (w.pos % 8)
	w.pos++
}

// WriteBits appends the n low bits of v, least significant first.
func (w *BitWriter) WriteBits(v byte, n int) {
	for i := range n {
		w.WriteBit(v >> i)
	}
}

// Len returns the number of bits written.
func (w *BitWriter) Len() int {
	return w.pos
}

// Bytes returns the packed buffer. Unused high bits of the last byte are 0.
func (w *BitWriter) Bytes() []byte {
	return w.buf
}

// BitReader consumes bits from a byte buffer in BitWriter order.
type BitReader struct {
	buf   []byte
	pos   int
	limit int
}

// NewBitReader reads at most nbits bits from buf.
func NewBitReader(buf []byte, nbits int) *BitReader {
	if avail := len(buf) * 8; nbits > avail {
		nbits = avail
	}
	return &BitReader{buf: buf, limit: nbits}
}

// Remaining returns the number of unread bits.
func (r *BitReader) Remaining() int {
	return r.limit - r.pos
}

// ReadBit returns the next bit, or 0 once the reader is exhausted.
func (r *BitReader) ReadBit() byte {
	if r.pos >= r.limit {
		return 0
	}
	b := (r.buf[r.pos/8] >> (r.pos % 8)) & 1
	r.pos++
	return b
}

// ReadBits reads n bits (n <= 8) into the low bits of the result.
func (r *BitReader) ReadBits(n int) byte {
	var v byte
	for i := range n {
		v |= r.ReadBit() << i
	}
	return v
}
