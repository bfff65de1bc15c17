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
	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
)

// targetDataISO14443A builds the TargetData of an ISO14443-A tag:
// Tg SENS_RES SEL_RES NFCIDLength NFCID1 [ATS]. The PN531 sends SENS_RES
// in air order, later chips most significant byte first.
func (v *VirtualChip) targetDataISO14443A(tg byte, tag *VirtualTag, withATS bool) []byte {
	data := make([]byte, 0, 5+len(tag.UID)+len(tag.ATS))
	data = append(data, tg)
	if v.chip == pn53x.ChipPN531 {
		data = append(data, tag.ATQA[0], tag.ATQA[1])
	} else {
		data = append(data, tag.ATQA[1], tag.ATQA[0])
	}
	data = append(data, tag.SAK, byte(len(tag.UID)))
	data = append(data, tag.UID...)
	if withATS && tag.ATS != nil {
		data = append(data, tag.ATS...)
	}
	return data
}

// BuildFrame returns the information frame a chip sends for the response
// to cmd. It lets transport tests script replies without a simulator.
func BuildFrame(cmd byte, payload []byte) []byte {
	out, err := frame.Build(frame.ChipToHost, append([]byte{cmd + 1}, payload...), true)
	if err != nil {
		panic(err)
	}
	return out
}
