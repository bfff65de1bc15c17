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
	"errors"
	"testing"
)

// Malformed input from clone chips or a noisy line must never panic the
// parser.
//
// Run with: go test -fuzz=FuzzParse -fuzztime=30s ./internal/frame/
func FuzzParse(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03, 0x28, 0x00})
	f.Add([]byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00})
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00})
	f.Add([]byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00})
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x01, 0x00, 0xFF})
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, buf []byte) {
		fr, n, err := Parse(buf)
		if err != nil && !errors.Is(err, ErrErrorFrame) {
			return
		}
		if n <= 0 || n > len(buf) {
			t.Fatalf("consumed %d of %d bytes", n, len(buf))
		}
		if fr.Kind == KindInfo {
			rebuilt, err := Build(fr.TFI, fr.Data, fr.Extended)
			if err != nil {
				t.Fatalf("rebuild: %v", err)
			}
			if _, _, err := Parse(rebuilt); err != nil {
				t.Fatalf("reparse: %v", err)
			}
		}
	})
}

func FuzzBuildParse(f *testing.F) {
	f.Add(byte(0xD4), []byte{0x4A, 0x01, 0x00})
	f.Add(byte(0xD5), []byte{})

	f.Fuzz(func(t *testing.T, tfi byte, data []byte) {
		if tfi == ErrorTFI {
			return
		}
		frm, err := Build(tfi, data, true)
		if err != nil {
			return
		}
		fr, n, err := Parse(frm)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if n != len(frm) || fr.TFI != tfi || string(fr.Data) != string(data) {
			t.Fatalf("round trip mismatch")
		}
	})
}
