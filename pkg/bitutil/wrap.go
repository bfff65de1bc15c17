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
	"errors"
	"fmt"
)

// ErrInvalidLength is returned when a bit count does not fit the buffers
// supplied with it.
var ErrInvalidLength = errors.New("invalid bit length")

// FrameBits returns the length of the wrapped frame for dataBits data bits.
// Every complete byte gains one parity bit; transfers shorter than 9 bits are
// sent as-is.
func FrameBits(dataBits int) int {
	if dataBits < 9 {
		return dataBits
	}
	return dataBits + dataBits/8
}

// DataBits is the inverse of FrameBits.
func DataBits(frameBits int) int {
	if frameBits < 9 {
		return frameBits
	}
	return frameBits - frameBits/9
}

// Wrap interleaves one explicit parity bit after every complete byte of data,
// producing the bit-packed frame the chip transmits verbatim when it is told
// not to generate parity itself. par must hold one entry per complete byte;
// only bit 0 of each entry is used. A trailing partial byte carries no
// parity.
func Wrap(data []byte, dataBits int, par []byte) (frame []byte, frameBits int, err error) {
	if dataBits <= 0 {
		return nil, 0, fmt.Errorf("%w: cannot wrap %d bits", ErrInvalidLength, dataBits)
	}
	if need := (dataBits + 7) / 8; len(data) < need {
		return nil, 0, fmt.Errorf("%w: %d bits need %d bytes, got %d", ErrInvalidLength, dataBits, need, len(data))
	}
	if dataBits < 9 {
		return []byte{data[0]}, dataBits, nil
	}
	full := dataBits / 8
	if len(par) < full {
		return nil, 0, fmt.Errorf("%w: %d bytes need %d parity bits, got %d", ErrInvalidLength, full, full, len(par))
	}

	w := NewBitWriter(FrameBits(dataBits))
	for i := range full {
		w.WriteBits(data[i], 8)
		w.WriteBit(par[i])
	}
	if rest := dataBits % 8; rest != 0 {
		w.WriteBits(data[full], rest)
	}
	return w.Bytes(), w.Len(), nil
}

// Unwrap strips the parity bit following every 9-bit group of frame and
// returns the recovered data and parity. Trailing bits that do not form a
// whole group are returned as data without parity.
func Unwrap(frame []byte, frameBits int) (data []byte, dataBits int, par []byte, err error) {
	if frameBits <= 0 || len(frame)*8 < frameBits {
		return nil, 0, nil, fmt.Errorf("%w: %d frame bits in %d bytes", ErrInvalidLength, frameBits, len(frame))
	}
	if frameBits < 9 {
		return []byte{frame[0]}, frameBits, nil, nil
	}

	dataBits = DataBits(frameBits)
	data = make([]byte, 0, (dataBits+7)/8)
	par = make([]byte, 0, frameBits/9)
	r := NewBitReader(frame, frameBits)
	for r.Remaining() >= 9 {
		data = append(data, r.ReadBits(8))
		par = append(par, r.ReadBit())
	}
	if rest := r.Remaining(); rest > 0 {
		data = append(data, r.ReadBits(rest))
	}
	return data, dataBits, par, nil
}
