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

// Package frame implements the PN53x host link framing: normal and extended
// information frames, ACK/NACK frames and the application error frame.
package frame

// Frame identifiers.
const (
	HostToChip = 0xD4 // TFI of frames sent by the host
	ChipToHost = 0xD5 // TFI of frames sent by the chip
	ErrorTFI   = 0x7F // TFI of the application error frame
)

const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte
)

const (
	// MaxNormalDataLength is the largest TFI+PD block a normal frame carries.
	MaxNormalDataLength = 255
	// MaxExtendedDataLength is the largest TFI+PD block of an extended frame.
	MaxExtendedDataLength = 265
	// NormalOverhead counts preamble, start code, LEN, LCS, DCS and postamble.
	NormalOverhead = 7
	// ExtendedOverhead adds the 0xFF 0xFF marker and the second length byte.
	ExtendedOverhead = 10
	// AckLength is the size of ACK, NACK and the error frame prefix.
	AckLength = 6
)

var (
	AckFrame   = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame  = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
	ErrorFrame = []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}
)
