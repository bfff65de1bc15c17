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

import "fmt"

// Build returns the information frame carrying tfi followed by data. Blocks
// that do not fit a normal frame use the extended layout when allowExtended
// is set.
func Build(tfi byte, data []byte, allowExtended bool) ([]byte, error) {
	n := len(data) + 1
	switch {
	case n <= MaxNormalDataLength:
		return buildNormal(tfi, data), nil
	case allowExtended && n <= MaxExtendedDataLength:
		return buildExtended(tfi, data), nil
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
}

func buildNormal(tfi byte, data []byte) []byte {
	length := byte(len(data) + 1)
	frm := make([]byte, 0, len(data)+NormalOverhead+1)
	frm = append(frm, Preamble, StartCode1, StartCode2, length, LengthChecksum(length), tfi)
	frm = append(frm, data...)
	return append(frm, DataChecksum(frm[5:]), Postamble)
}

func buildExtended(tfi byte, data []byte) []byte {
	n := len(data) + 1
	lenM, lenL := byte(n>>8), byte(n)
	frm := make([]byte, 0, len(data)+ExtendedOverhead+1)
	frm = append(frm, Preamble, StartCode1, StartCode2, 0xFF, 0xFF, lenM, lenL, ^(lenM+lenL)+1, tfi)
	frm = append(frm, data...)
	return append(frm, DataChecksum(frm[8:]), Postamble)
}
