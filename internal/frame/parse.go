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

import (
	"bytes"
	"fmt"
)

// Kind classifies a received frame.
type Kind int

const (
	// KindInfo is an information frame carrying TFI and data.
	KindInfo Kind = iota
	// KindAck is the ACK frame.
	KindAck
	// KindNack is the NACK frame.
	KindNack
	// KindError is the application error frame.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindAck:
		return "ACK"
	case KindNack:
		return "NACK"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Frame is a parsed frame. Data excludes TFI.
type Frame struct {
	Data     []byte
	Kind     Kind
	TFI      byte
	Extended bool
}

// ClassifyAck inspects exactly the first six bytes of buf.
func ClassifyAck(buf []byte) (Kind, error) {
	if len(buf) < AckLength {
		return 0, ErrIncomplete
	}
	switch {
	case bytes.Equal(buf[:AckLength], AckFrame):
		return KindAck, nil
	case bytes.Equal(buf[:AckLength], NackFrame):
		return KindNack, nil
	default:
		return 0, fmt.Errorf("%w: % X", ErrNotAck, buf[:AckLength])
	}
}

// Parse decodes the first frame in buf and returns it together with the
// number of bytes it occupied. Leading 0x00 bytes are treated as preamble.
// ErrIncomplete is returned while the frame is still arriving.
func Parse(buf []byte) (Frame, int, error) {
	i := 0
	for i < len(buf) && buf[i] == Preamble {
		i++
	}
	if i == len(buf) {
		return Frame{}, 0, ErrIncomplete
	}
	if i == 0 || buf[i] != StartCode2 {
		return Frame{}, 0, fmt.Errorf("%w: % X", ErrPreamble, buf[:min(len(buf), i+1)])
	}
	off := i + 1
	if len(buf) < off+2 {
		return Frame{}, 0, ErrIncomplete
	}

	length, lcs := buf[off], buf[off+1]
	switch {
	case length == 0x00 && lcs == 0xFF:
		return parseShort(buf, off, KindAck)
	case length == 0xFF && lcs == 0x00:
		return parseShort(buf, off, KindNack)
	case length == 0xFF && lcs == 0xFF:
		return parseExtended(buf, off+2)
	}
	if length+lcs != 0 {
		return Frame{}, 0, fmt.Errorf("%w: LEN %02X LCS %02X", ErrLengthChecksum, length, lcs)
	}
	if length == 0 {
		return Frame{}, 0, fmt.Errorf("%w: empty frame", ErrLengthChecksum)
	}
	return parseBody(buf, off+2, int(length), false)
}

func parseShort(buf []byte, off int, kind Kind) (Frame, int, error) {
	// LEN LCS postamble
	if len(buf) < off+3 {
		return Frame{}, 0, ErrIncomplete
	}
	if buf[off+2] != Postamble {
		return Frame{}, 0, ErrPostamble
	}
	return Frame{Kind: kind}, off + 3, nil
}

func parseExtended(buf []byte, off int) (Frame, int, error) {
	if len(buf) < off+3 {
		return Frame{}, 0, ErrIncomplete
	}
	lenM, lenL, lcs := buf[off], buf[off+1], buf[off+2]
	if lenM+lenL+lcs != 0 {
		return Frame{}, 0, fmt.Errorf("%w: extended LEN %02X%02X LCS %02X", ErrLengthChecksum, lenM, lenL, lcs)
	}
	length := int(lenM)<<8 | int(lenL)
	if length == 0 || length > MaxExtendedDataLength {
		return Frame{}, 0, fmt.Errorf("%w: extended LEN %d", ErrLengthChecksum, length)
	}
	return parseBody(buf, off+3, length, true)
}

// parseBody validates TFI+PD, DCS and postamble starting at off.
func parseBody(buf []byte, off, length int, extended bool) (Frame, int, error) {
	end := off + length
	if len(buf) < end+2 {
		return Frame{}, 0, ErrIncomplete
	}
	body := buf[off:end]
	if CalculateChecksum(body)+buf[end] != 0 {
		return Frame{}, 0, fmt.Errorf("%w: DCS %02X", ErrDataChecksum, buf[end])
	}
	if buf[end+1] != Postamble {
		return Frame{}, 0, fmt.Errorf("%w: %02X", ErrPostamble, buf[end+1])
	}

	f := Frame{Kind: KindInfo, TFI: body[0], Extended: extended}
	if body[0] == ErrorTFI {
		f.Kind = KindError
		return f, end + 2, ErrErrorFrame
	}
	f.Data = append([]byte(nil), body[1:]...)
	return f, end + 2, nil
}
