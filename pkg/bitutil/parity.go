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

// Package bitutil implements the bit-level helpers used for raw ISO14443-A
// exchanges through a PN53x: odd parity, bit mirroring, CRC_A/CRC_B and the
// parity-interleaved frame wrapping the chip expects when it does not handle
// parity itself.
package bitutil

import "math/bits"

var (
	oddParity [256]byte
	mirrored  [256]byte
)

func init() {
	for i := range 256 {
		b := uint8(i)
		oddParity[i] = byte(bits.OnesCount8(b)&1) ^ 1
		mirrored[i] = bits.Reverse8(b)
	}
}

// OddParity returns the parity bit that makes the count of set bits in b,
// parity included, odd.
func OddParity(b byte) byte {
	return oddParity[b]
}

// OddParityBytes returns one parity bit per byte of data.
func OddParityBytes(data []byte) []byte {
	par := make([]byte, len(data))
	for i, b := range data {
		par[i] = oddParity[b]
	}
	return par
}

// Mirror reverses the bit order of b (bit 0 becomes bit 7).
func Mirror(b byte) byte {
	return mirrored[b]
}

// MirrorBytes mirrors every byte of data in place and returns it.
func MirrorBytes(data []byte) []byte {
	for i, b := range data {
		data[i] = mirrored[b]
	}
	return data
}
