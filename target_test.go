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

package pn53x

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTargetData_ISO14443A(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want *ISO14443AInfo
		name string
		raw  []byte
		chip Chip
	}{
		{
			name: "mifare_classic_1k",
			chip: ChipPN532,
			raw:  []byte{0x01, 0x00, 0x04, 0x08, 0x04, 0xDE, 0xAD, 0xBE, 0xEF},
			want: &ISO14443AInfo{ATQA: [2]byte{0x00, 0x04}, SAK: 0x08, UID: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		},
		{
			name: "pn531_sends_atqa_swapped",
			chip: ChipPN531,
			raw:  []byte{0x01, 0x04, 0x00, 0x08, 0x04, 0xDE, 0xAD, 0xBE, 0xEF},
			want: &ISO14443AInfo{ATQA: [2]byte{0x00, 0x04}, SAK: 0x08, UID: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		},
		{
			name: "seven_byte_uid",
			chip: ChipPN532,
			raw:  []byte{0x01, 0x00, 0x44, 0x00, 0x07, 0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
			want: &ISO14443AInfo{
				ATQA: [2]byte{0x00, 0x44}, SAK: 0x00,
				UID: []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
			},
		},
		{
			name: "cascade_tag_reported",
			chip: ChipPN532,
			raw:  []byte{0x01, 0x00, 0x44, 0x00, 0x08, 0x88, 0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
			want: &ISO14443AInfo{
				ATQA: [2]byte{0x00, 0x44}, SAK: 0x00,
				UID: []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
			},
		},
		{
			name: "triple_size_with_cascade_tags",
			chip: ChipPN532,
			raw: []byte{
				0x01, 0x00, 0x44, 0x00, 0x0C,
				0x88, 0x01, 0x02, 0x03, 0x88, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A,
			},
			want: &ISO14443AInfo{
				ATQA: [2]byte{0x00, 0x44}, SAK: 0x00,
				UID: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A},
			},
		},
		{
			name: "with_ats",
			chip: ChipPN532,
			raw: []byte{
				0x01, 0x03, 0x44, 0x20, 0x07, 0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
				0x05, 0x75, 0x77, 0x81, 0x02,
			},
			want: &ISO14443AInfo{
				ATQA: [2]byte{0x03, 0x44}, SAK: 0x20,
				UID: []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
				ATS: []byte{0x75, 0x77, 0x81, 0x02},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, err := DecodeTargetData(tt.chip, ModulationTypeISO14443A, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, info)
		})
	}
}

func TestDecodeTargetData_OtherTechnologies(t *testing.T) {
	t.Parallel()

	nfcid3 := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A}

	tests := []struct {
		want TargetInfo
		name string
		raw  []byte
		mt   ModulationType
	}{
		{
			name: "iso14443b",
			mt:   ModulationTypeISO14443B,
			raw: []byte{
				0x01, 0x50, 0x11, 0x22, 0x33, 0x44, 0xA1, 0xA2, 0xA3, 0xA4,
				0x00, 0x81, 0x71, 0x01, 0x05,
			},
			want: &ISO14443BInfo{
				PUPI:            [4]byte{0x11, 0x22, 0x33, 0x44},
				ApplicationData: [4]byte{0xA1, 0xA2, 0xA3, 0xA4},
				ProtocolInfo:    [3]byte{0x00, 0x81, 0x71},
				CardIdentifier:  0x05,
			},
		},
		{
			name: "iso14443b_without_attrib",
			mt:   ModulationTypeISO14443B,
			raw: []byte{
				0x01, 0x50, 0x11, 0x22, 0x33, 0x44, 0xA1, 0xA2, 0xA3, 0xA4,
				0x00, 0x81, 0x71, 0x00,
			},
			want: &ISO14443BInfo{
				PUPI:            [4]byte{0x11, 0x22, 0x33, 0x44},
				ApplicationData: [4]byte{0xA1, 0xA2, 0xA3, 0xA4},
				ProtocolInfo:    [3]byte{0x00, 0x81, 0x71},
			},
		},
		{
			name: "felica_with_system_code",
			mt:   ModulationTypeFeliCa,
			raw: []byte{
				0x01, 0x14, 0x01,
				0x01, 0x2E, 0x3D, 0x4C, 0x5B, 0x6A, 0x79, 0x88,
				0x05, 0x31, 0x41, 0x59, 0x26, 0x53, 0x58, 0x97,
				0x12, 0xFC,
			},
			want: &FeliCaInfo{
				Len: 0x14, ResCode: 0x01,
				ID:      [8]byte{0x01, 0x2E, 0x3D, 0x4C, 0x5B, 0x6A, 0x79, 0x88},
				Pad:     [8]byte{0x05, 0x31, 0x41, 0x59, 0x26, 0x53, 0x58, 0x97},
				SysCode: [2]byte{0x12, 0xFC},
			},
		},
		{
			name: "felica_without_system_code",
			mt:   ModulationTypeFeliCa,
			raw: []byte{
				0x01, 0x12, 0x01,
				0x01, 0x2E, 0x3D, 0x4C, 0x5B, 0x6A, 0x79, 0x88,
				0x05, 0x31, 0x41, 0x59, 0x26, 0x53, 0x58, 0x97,
			},
			want: &FeliCaInfo{
				Len: 0x12, ResCode: 0x01,
				ID:  [8]byte{0x01, 0x2E, 0x3D, 0x4C, 0x5B, 0x6A, 0x79, 0x88},
				Pad: [8]byte{0x05, 0x31, 0x41, 0x59, 0x26, 0x53, 0x58, 0x97},
			},
		},
		{
			name: "jewel",
			mt:   ModulationTypeJewel,
			raw:  []byte{0x01, 0x0C, 0x00, 0xB2, 0x56, 0x5C, 0x00},
			want: &JewelInfo{SensRes: [2]byte{0x0C, 0x00}, ID: [4]byte{0xB2, 0x56, 0x5C, 0x00}},
		},
		{
			name: "dep_with_general_bytes",
			mt:   ModulationTypeDEP,
			raw:  append(append([]byte{0x01}, nfcid3...), 0x00, 0x00, 0x00, 0x0E, 0x32, 0x46, 0x66, 0x6D),
			want: &DEPInfo{
				NFCID3: [10]byte(nfcid3), TO: 0x0E, PP: 0x32,
				GeneralBytes: []byte{0x46, 0x66, 0x6D},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, err := DecodeTargetData(ChipPN533, tt.mt, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, info)
		})
	}
}

func TestDecodeTargetData_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		raw     []byte
		mt      ModulationType
	}{
		{name: "empty", mt: ModulationTypeISO14443A, wantErr: ErrInvalidArgument},
		{
			name:    "uid_truncated",
			mt:      ModulationTypeISO14443A,
			raw:     []byte{0x01, 0x00, 0x04, 0x08, 0x07, 0x01, 0x02},
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "ats_truncated",
			mt:      ModulationTypeISO14443A,
			raw:     []byte{0x01, 0x00, 0x04, 0x20, 0x04, 0x01, 0x02, 0x03, 0x04, 0x09, 0x75},
			wantErr: ErrInvalidArgument,
		},
		{name: "felica_short", mt: ModulationTypeFeliCa, raw: []byte{0x01, 0x12, 0x01, 0x01}, wantErr: ErrInvalidArgument},
		{name: "undefined_type", mt: ModulationTypeUndefined, raw: []byte{0x01}, wantErr: ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, err := DecodeTargetData(ChipPN532, tt.mt, tt.raw)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, info)
		})
	}
}

func TestTarget_UID(t *testing.T) {
	t.Parallel()

	a := &Target{Modulation: ISO14443A106, Info: &ISO14443AInfo{UID: []byte{0x04, 0xA1, 0xB2, 0xC3}}}
	assert.Equal(t, []byte{0x04, 0xA1, 0xB2, 0xC3}, a.UID())
	assert.Equal(t, "ISO/IEC 14443A (106 kbps) UID 04a1b2c3", a.String())

	b := &Target{Modulation: ISO14443B106, Info: &ISO14443BInfo{PUPI: [4]byte{1, 2, 3, 4}}}
	assert.Equal(t, []byte{1, 2, 3, 4}, b.UID())

	assert.Nil(t, (&Target{}).UID())
}

func FuzzDecodeTargetData(f *testing.F) {
	f.Add(byte(ModulationTypeISO14443A), []byte{0x01, 0x00, 0x04, 0x08, 0x04, 0xDE, 0xAD, 0xBE, 0xEF})
	f.Add(byte(ModulationTypeFeliCa), []byte{0x01, 0x14, 0x01})
	f.Add(byte(ModulationTypeDEP), []byte{0x01})

	f.Fuzz(func(t *testing.T, mt byte, raw []byte) {
		info, err := DecodeTargetData(ChipPN532, ModulationType(mt%6), raw)
		if err == nil && info == nil {
			t.Fatal("nil info without error")
		}
	})
}
