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

package frame

import "errors"

var (
	// ErrIncomplete means more bytes are needed before a frame can be parsed.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrPreamble means the bytes before LEN are not a preamble and start code.
	ErrPreamble = errors.New("frame preamble mismatch")
	// ErrLengthChecksum means LEN + LCS is not 0.
	ErrLengthChecksum = errors.New("frame length checksum mismatch")
	// ErrDataChecksum means TFI + PD + DCS is not 0.
	ErrDataChecksum = errors.New("frame data checksum mismatch")
	// ErrPostamble means the byte after DCS is not 0x00.
	ErrPostamble = errors.New("frame postamble mismatch")
	// ErrErrorFrame is the chip's application level error frame.
	ErrErrorFrame = errors.New("application error frame")
	// ErrNotAck means six bytes were neither an ACK nor a NACK.
	ErrNotAck = errors.New("expected ACK or NACK frame")
	// ErrTooLarge means a payload does not fit the frame format.
	ErrTooLarge = errors.New("payload too large for frame")
)
