// go-pn53x
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pn53x.
//
// go-pn53x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pn53x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pn53x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualTagCreation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag   *VirtualTag
		name  string
		uid   string
		atqa  [2]byte
		sak   byte
		pages int
	}{
		{
			name: "ntag213", tag: NewVirtualNTAG213(nil),
			uid: "04a1b2c3d4e580", atqa: [2]byte{0x44, 0x00}, sak: 0x00, pages: 45,
		},
		{
			name: "mifare1k", tag: NewVirtualMIFARE1K(nil),
			uid: "12345678", atqa: [2]byte{0x04, 0x00}, sak: 0x08, pages: 256,
		},
		{
			name: "desfire", tag: NewVirtualDESFire(nil, nil),
			uid: "045a3c128e6480", atqa: [2]byte{0x44, 0x03}, sak: 0x20, pages: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.uid, tt.tag.GetUIDString())
			assert.Equal(t, tt.atqa, tt.tag.ATQA)
			assert.Equal(t, tt.sak, tt.tag.SAK)
			assert.Len(t, tt.tag.Memory, tt.pages)
			assert.True(t, tt.tag.Present)
			assert.False(t, tt.tag.IsActive())
		})
	}
}

func TestVirtualNTAG213_SerialPages(t *testing.T) {
	t.Parallel()

	tag := NewVirtualNTAG213(TestNTAG213UID)
	page0, err := tag.ReadPage(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0xA1, 0xB2, 0x88 ^ 0x04 ^ 0xA1 ^ 0xB2}, page0)

	cc, err := tag.ReadPage(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE1, 0x10, 0x12, 0x00}, cc)

	_, err = tag.ReadPage(45)
	require.ErrorIs(t, err, errNoSuchPage)
}

func TestVirtualTag_Anticollision(t *testing.T) {
	t.Parallel()

	t.Run("single_size_uid", func(t *testing.T) {
		t.Parallel()
		tag := NewVirtualMIFARE1K(TestMIFARE1KUID)

		r, ok := tag.transceive([]byte{tagREQA}, 7, false)
		require.True(t, ok)
		assert.Equal(t, []byte{0x04, 0x00}, r.data)
		assert.Equal(t, 16, r.bits)

		r, ok = tag.transceive([]byte{0x93, 0x20}, 16, false)
		require.True(t, ok)
		assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78, 0x08}, r.data)

		r, ok = tag.transceive([]byte{0x93, 0x70, 0x12, 0x34, 0x56, 0x78, 0x08}, 56, true)
		require.True(t, ok)
		assert.Equal(t, []byte{0x08}, r.data)
		assert.True(t, r.crc)
		assert.True(t, tag.IsActive())
	})

	t.Run("double_size_uid", func(t *testing.T) {
		t.Parallel()
		tag := NewVirtualNTAG213(TestNTAG213UID)
		require.Equal(t, 2, tag.cascadeLevels())

		_, ok := tag.transceive([]byte{tagWUPA}, 7, false)
		require.True(t, ok)

		r, ok := tag.transceive([]byte{0x93, 0x20}, 16, false)
		require.True(t, ok)
		cl1 := []byte{cascadeTag, 0x04, 0xA1, 0xB2}
		assert.Equal(t, append(append([]byte(nil), cl1...), bcc(cl1)), r.data)

		r, ok = tag.transceive(append(append([]byte{0x93, 0x70}, cl1...), bcc(cl1)), 56, true)
		require.True(t, ok)
		assert.Equal(t, byte(sakCascade), r.data[0]&sakCascade)
		assert.False(t, tag.IsActive())

		// level 1 selects are ignored once the tag moved on
		_, ok = tag.transceive([]byte{0x93, 0x20}, 16, false)
		assert.False(t, ok)

		cl2 := []byte{0xC3, 0xD4, 0xE5, 0x80}
		r, ok = tag.transceive([]byte{0x95, 0x20}, 16, false)
		require.True(t, ok)
		assert.Equal(t, cl2, r.data[:4])

		r, ok = tag.transceive(append(append([]byte{0x95, 0x70}, cl2...), bcc(cl2)), 56, true)
		require.True(t, ok)
		assert.Equal(t, []byte{0x00}, r.data)
		assert.True(t, tag.IsActive())
	})

	t.Run("select_needs_crc_and_match", func(t *testing.T) {
		t.Parallel()
		tag := NewVirtualMIFARE1K(TestMIFARE1KUID)
		tag.transceive([]byte{tagREQA}, 7, false)

		_, ok := tag.transceive([]byte{0x93, 0x70, 0x12, 0x34, 0x56, 0x78, 0x08}, 56, false)
		assert.False(t, ok)
		_, ok = tag.transceive([]byte{0x93, 0x70, 0x12, 0x34, 0x56, 0x79, 0x09}, 56, true)
		assert.False(t, ok)
	})
}

func TestVirtualTag_HaltAndWakeup(t *testing.T) {
	t.Parallel()

	tag := NewVirtualMIFARE1K(TestMIFARE1KUID)
	require.True(t, tag.activate())

	_, ok := tag.transceive([]byte{tagHALT, 0x00}, 16, true)
	assert.False(t, ok, "HALT is never answered")
	assert.True(t, tag.IsHalted())

	_, ok = tag.transceive([]byte{tagREQA}, 7, false)
	assert.False(t, ok, "REQA does not wake a halted tag")
	_, ok = tag.transceive([]byte{tagWUPA}, 7, false)
	assert.True(t, ok)
	assert.False(t, tag.IsHalted())
}

func TestVirtualTag_RATS(t *testing.T) {
	t.Parallel()

	tag := NewVirtualDESFire(nil, []byte{0x05, 0x78, 0x80, 0x70, 0x02})
	_, ok := tag.transceive([]byte{tagRATS, 0x50}, 16, true)
	assert.False(t, ok, "RATS needs an active tag")

	require.True(t, tag.activate())
	r, ok := tag.transceive([]byte{tagRATS, 0x50}, 16, true)
	require.True(t, ok)
	assert.Equal(t, []byte{0x05, 0x78, 0x80, 0x70, 0x02}, r.data)
	assert.True(t, r.crc)

	resp, err := tag.exchange([]byte{0x00, 0xA4, 0x04, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)
}

func TestVirtualTag_ReadWrite(t *testing.T) {
	t.Parallel()

	tag := NewVirtualNTAG213(nil)
	require.True(t, tag.activate())

	r, ok := tag.transceive([]byte{tagWRITE, 0x05, 0x01, 0x02, 0x03, 0x04}, 48, true)
	require.True(t, ok)
	assert.Equal(t, 4, r.bits)
	assert.Equal(t, []byte{tagACK}, r.data)

	r, ok = tag.transceive([]byte{tagREAD, 0x05}, 16, true)
	require.True(t, ok)
	require.Len(t, r.data, 16)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, r.data[:4])

	// reads past the end wrap to page 0
	data, err := tag.readPages(44)
	require.NoError(t, err)
	assert.Equal(t, tag.Memory[0], data[4:8])

	r, ok = tag.transceive([]byte{tagWRITE, 0x01, 0x00, 0x00, 0x00, 0x00}, 48, true)
	require.True(t, ok)
	assert.Equal(t, []byte{tagNAK}, r.data, "serial pages are read-only")

	_, ok = tag.transceive([]byte{tagREAD, 0x05}, 16, false)
	assert.False(t, ok, "commands without CRC are ignored")
}

func TestVirtualTag_RemoveInsert(t *testing.T) {
	t.Parallel()

	tag := NewVirtualMIFARE1K(nil)
	require.True(t, tag.activate())
	tag.Remove()
	assert.False(t, tag.Present)
	assert.False(t, tag.IsActive())
	_, ok := tag.transceive([]byte{tagREQA}, 7, false)
	assert.False(t, ok)

	tag.Insert()
	_, ok = tag.transceive([]byte{tagREQA}, 7, false)
	assert.True(t, ok)
}
