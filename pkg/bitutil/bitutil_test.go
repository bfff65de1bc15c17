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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOddParity(t *testing.T) {
	t.Parallel()

	// First row of the reference parity table.
	want := []byte{1, 0, 0, 1, 0, 1, 1, 0, 0, 1, 1, 0, 1, 0, 0, 1}
	for i, w := range want {
		assert.Equal(t, w, OddParity(byte(i)), "parity of 0x%02X", i)
	}

	for i := range 256 {
		b := byte(i)
		ones := 0
		for v := b; v != 0; v >>= 1 {
			ones += int(v & 1)
		}
		assert.Equal(t, 1, (ones+int(OddParity(b)))%2, "0x%02X", b)
	}

	assert.Equal(t, []byte{1, 0, 1}, OddParityBytes([]byte{0x93, 0x20, 0x00}))
}

func TestMirror(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   byte
		want byte
	}{
		{0x00, 0x00},
		{0x01, 0x80},
		{0x03, 0xC0},
		{0x0F, 0xF0},
		{0x26, 0x64},
		{0xFF, 0xFF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Mirror(tt.in))
		assert.Equal(t, tt.in, Mirror(Mirror(tt.in)))
	}

	data := []byte{0x01, 0x02, 0x80}
	assert.Equal(t, []byte{0x80, 0x40, 0x01}, MirrorBytes(data))
}

func TestCRCA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want [2]byte
	}{
		{name: "HLTA", data: []byte{0x50, 0x00}, want: [2]byte{0x57, 0xCD}},
		{name: "RATS", data: []byte{0xE0, 0x50}, want: [2]byte{0xBC, 0xA5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CRCA(tt.data))
		})
	}
}

func TestCRCASelfCheck(t *testing.T) {
	t.Parallel()

	msgs := [][]byte{
		{0x93, 0x20},
		{0x93, 0x70, 0x01, 0x02, 0x03, 0x04, 0x04},
		{0x30, 0x04},
	}
	for _, msg := range msgs {
		full := AppendCRCA(append([]byte(nil), msg...))
		require.Len(t, full, len(msg)+2)
		assert.True(t, CheckCRCA(full))

		// Running the CRC over a message with its own CRC leaves no residue.
		assert.Equal(t, [2]byte{0, 0}, CRCA(full))

		full[0] ^= 0x01
		assert.False(t, CheckCRCA(full))
	}
	assert.False(t, CheckCRCA([]byte{0x01, 0x02}))
}

func TestCRCB(t *testing.T) {
	t.Parallel()

	// REQB / WUPB example from ISO/IEC 14443-3.
	assert.Equal(t, [2]byte{0x39, 0x73}, CRCB([]byte{0x05, 0x00, 0x08}))
	assert.Equal(t, []byte{0x05, 0x00, 0x08, 0x39, 0x73}, AppendCRCB([]byte{0x05, 0x00, 0x08}))
}

func TestBitCursor(t *testing.T) {
	t.Parallel()

	w := NewBitWriter(12)
	w.WriteBits(0x0B, 4)
	w.WriteBit(1)
	w.WriteBits(0x7F, 7)
	assert.Equal(t, 12, w.Len())
	assert.Equal(t, []byte{0xFB, 0x0F}, w.Bytes())

	r := NewBitReader(w.Bytes(), w.Len())
	assert.Equal(t, byte(0x0B), r.ReadBits(4))
	assert.Equal(t, byte(1), r.ReadBit())
	assert.Equal(t, 7, r.Remaining())
	assert.Equal(t, byte(0x7F), r.ReadBits(7))
	assert.Equal(t, 0, r.Remaining())
	assert.Equal(t, byte(0), r.ReadBit())

	assert.Equal(t, 16, NewBitReader([]byte{1, 2}, 99).Remaining())
}

func TestWrapKnownFrames(t *testing.T) {
	t.Parallel()

	t.Run("short frame is sent unchanged", func(t *testing.T) {
		t.Parallel()
		frame, bits, err := Wrap([]byte{0x26}, 7, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x26}, frame)
		assert.Equal(t, 7, bits)
	})

	t.Run("select all", func(t *testing.T) {
		t.Parallel()
		data := []byte{0x93, 0x20}
		frame, bits, err := Wrap(data, 16, OddParityBytes(data))
		require.NoError(t, err)
		assert.Equal(t, 18, bits)
		assert.Equal(t, []byte{0x93, 0x41, 0x00}, frame)
	})

	t.Run("zero bits", func(t *testing.T) {
		t.Parallel()
		_, _, err := Wrap([]byte{0x00}, 0, nil)
		require.ErrorIs(t, err, ErrInvalidLength)
	})

	t.Run("missing parity", func(t *testing.T) {
		t.Parallel()
		_, _, err := Wrap([]byte{0x01, 0x02}, 16, []byte{1})
		require.ErrorIs(t, err, ErrInvalidLength)
	})

	t.Run("short data", func(t *testing.T) {
		t.Parallel()
		_, _, err := Wrap([]byte{0x01}, 12, []byte{1})
		require.ErrorIs(t, err, ErrInvalidLength)
	})
}

func TestUnwrapKnownFrames(t *testing.T) {
	t.Parallel()

	data, bits, par, err := Unwrap([]byte{0x93, 0x41, 0x00}, 18)
	require.NoError(t, err)
	assert.Equal(t, 16, bits)
	assert.Equal(t, []byte{0x93, 0x20}, data)
	assert.Equal(t, []byte{1, 0}, par)

	data, bits, par, err = Unwrap([]byte{0x04}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, bits)
	assert.Equal(t, []byte{0x04}, data)
	assert.Nil(t, par)

	_, _, _, err = Unwrap([]byte{0x00}, 9)
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestFrameBitsInverse(t *testing.T) {
	t.Parallel()

	for n := 1; n < 2048; n++ {
		require.Equal(t, n, DataBits(FrameBits(n)), "n=%d", n)
	}
}

// fillPattern produces data and parity sized to n bits with the unused high
// bits of a trailing partial byte cleared.
func fillPattern(n int, seed byte) (data, par []byte) {
	data = make([]byte, (n+7)/8)
	for i := range data {
		data[i] = seed*byte(i+1) + byte(i*31)
	}
	if rest := n % 8; rest != 0 {
		data[len(data)-1] &= byte(1<<rest) - 1
	}
	par = make([]byte, n/8)
	for i := range par {
		par[i] = (seed >> (i % 8)) & 1
	}
	return data, par
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 512; n++ {
		for _, seed := range []byte{0x00, 0x5A, 0xFF} {
			data, par := fillPattern(n, seed)
			frame, frameBits, err := Wrap(data, n, par)
			require.NoError(t, err)
			require.Equal(t, FrameBits(n), frameBits)

			gotData, gotBits, gotPar, err := Unwrap(frame, frameBits)
			require.NoError(t, err)
			require.Equal(t, n, gotBits)
			require.Equal(t, data, gotData, "n=%d seed=%02X", n, seed)
			if n >= 9 {
				require.Equal(t, par, gotPar, "n=%d seed=%02X", n, seed)
			}
		}
	}
}

func FuzzWrapUnwrap(f *testing.F) {
	f.Add([]byte{0x93, 0x20}, []byte{1, 0}, 16)
	f.Add([]byte{0x26}, []byte{}, 7)
	f.Add([]byte{0x01, 0x02, 0x03}, []byte{0, 1}, 20)

	f.Fuzz(func(t *testing.T, data, par []byte, n int) {
		if n <= 0 || n > len(data)*8 || n/8 > len(par) {
			return
		}
		data = append([]byte(nil), data[:(n+7)/8]...)
		if rest := n % 8; rest != 0 {
			data[len(data)-1] &= byte(1<<rest) - 1
		}
		bits := make([]byte, n/8)
		for i := range bits {
			bits[i] = par[i] & 1
		}

		frame, frameBits, err := Wrap(data, n, bits)
		if err != nil {
			t.Fatalf("wrap: %v", err)
		}
		gotData, gotBits, gotPar, err := Unwrap(frame, frameBits)
		if err != nil {
			t.Fatalf("unwrap: %v", err)
		}
		if gotBits != n {
			t.Fatalf("bits %d != %d", gotBits, n)
		}
		assert.Equal(t, data, gotData)
		if n >= 9 {
			assert.Equal(t, bits, gotPar)
		}
	})
}
