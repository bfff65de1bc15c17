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
	"encoding/hex"
	"errors"
	"fmt"
)

// Default tag identifiers used across tests.
var (
	TestNTAG213UID  = []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0x80}
	TestMIFARE1KUID = []byte{0x12, 0x34, 0x56, 0x78}
	TestDESFireUID  = []byte{0x04, 0x5A, 0x3C, 0x12, 0x8E, 0x64, 0x80}
)

// ISO14443-A short frames and command codes a tag reacts to.
const (
	tagREQA       = 0x26
	tagWUPA       = 0x52
	tagSelCL1     = 0x93
	tagSelCL2     = 0x95
	tagSelCL3     = 0x97
	tagNVBAnticol = 0x20
	tagNVBSelect  = 0x70
	tagRATS       = 0xE0
	tagHALT       = 0x50
	tagREAD       = 0x30
	tagWRITE      = 0xA2
	tagACK        = 0x0A
	tagNAK        = 0x00
	sakCascade    = 0x04
	cascadeTag    = 0x88
	pageSize      = 4
)

// tagState follows the ISO14443-3 PICC state diagram.
type tagState int

const (
	tagIdle tagState = iota
	tagReady
	tagActive
	tagHalted
)

var errNoSuchPage = errors.New("page out of range")

// VirtualTag is an ISO14443-A PICC. It answers raw frames (REQA, the
// anti-collision cascade, RATS, HALT, READ, WRITE) the way a card does and
// is activated wholesale when the chip runs the selection itself.
type VirtualTag struct {
	Type    string
	UID     []byte
	ATS     []byte
	Memory  [][]byte
	ATQA    [2]byte // as sent on the air, LSB first
	SAK     byte
	Present bool
	state   tagState
	level   int
}

// NewVirtualNTAG213 creates an NTAG213 with 45 pages and a 7-byte UID.
func NewVirtualNTAG213(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestNTAG213UID
	}
	tag := &VirtualTag{
		Type:    "NTAG213",
		UID:     append([]byte(nil), uid...),
		ATQA:    [2]byte{0x44, 0x00},
		SAK:     0x00,
		Memory:  make([][]byte, 45),
		Present: true,
	}
	for i := range tag.Memory {
		tag.Memory[i] = make([]byte, pageSize)
	}
	// serial number pages with their check bytes, then the capability container
	copy(tag.Memory[0], []byte{uid[0], uid[1], uid[2], cascadeTag ^ uid[0] ^ uid[1] ^ uid[2]})
	copy(tag.Memory[1], uid[3:7])
	tag.Memory[2][0] = uid[3] ^ uid[4] ^ uid[5] ^ uid[6]
	copy(tag.Memory[3], []byte{0xE1, 0x10, 0x12, 0x00})
	return tag
}

// NewVirtualMIFARE1K creates a MIFARE Classic 1K with a 4-byte UID. Its
// memory is exposed as 4-byte pages like the other tags.
func NewVirtualMIFARE1K(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestMIFARE1KUID
	}
	tag := &VirtualTag{
		Type:    "MIFARE1K",
		UID:     append([]byte(nil), uid...),
		ATQA:    [2]byte{0x04, 0x00},
		SAK:     0x08,
		Memory:  make([][]byte, 256),
		Present: true,
	}
	for i := range tag.Memory {
		tag.Memory[i] = make([]byte, pageSize)
	}
	bcc := byte(0)
	for _, b := range uid {
		bcc ^= b
	}
	copy(tag.Memory[0], uid)
	tag.Memory[1][0] = bcc
	return tag
}

// NewVirtualDESFire creates an ISO14443-4 compliant tag that answers RATS
// with ats. A nil ats selects a typical DESFire answer.
func NewVirtualDESFire(uid, ats []byte) *VirtualTag {
	if uid == nil {
		uid = TestDESFireUID
	}
	if ats == nil {
		ats = []byte{0x06, 0x75, 0x77, 0x81, 0x02, 0x80}
	}
	return &VirtualTag{
		Type:    "DESFire",
		UID:     append([]byte(nil), uid...),
		ATQA:    [2]byte{0x44, 0x03},
		SAK:     0x20,
		ATS:     append([]byte(nil), ats...),
		Present: true,
	}
}

// GetUIDString returns the UID as lowercase hex.
func (v *VirtualTag) GetUIDString() string {
	return hex.EncodeToString(v.UID)
}

// Remove takes the tag out of the field.
func (v *VirtualTag) Remove() {
	v.Present = false
	v.reset()
}

// Insert puts the tag back into the field in the IDLE state.
func (v *VirtualTag) Insert() {
	v.Present = true
	v.reset()
}

// IsActive reports whether the tag finished selection.
func (v *VirtualTag) IsActive() bool {
	return v.state == tagActive
}

// IsHalted reports whether the tag was sent to HALT.
func (v *VirtualTag) IsHalted() bool {
	return v.state == tagHalted
}

func (v *VirtualTag) reset() {
	v.state = tagIdle
	v.level = 0
}

func (v *VirtualTag) halt() {
	v.state = tagHalted
	v.level = 0
}

// cascadeLevels is 1, 2 or 3 for 4, 7 and 10-byte UIDs.
func (v *VirtualTag) cascadeLevels() int {
	switch len(v.UID) {
	case 7:
		return 2
	case 10:
		return 3
	default:
		return 1
	}
}

// uidPart returns the four UID bytes sent at cascade level, including the
// cascade tag where one is needed.
func (v *VirtualTag) uidPart(level int) []byte {
	switch {
	case v.cascadeLevels() == 1:
		return v.UID[:4]
	case level == 0:
		return []byte{cascadeTag, v.UID[0], v.UID[1], v.UID[2]}
	case level == 1 && v.cascadeLevels() == 3:
		return []byte{cascadeTag, v.UID[3], v.UID[4], v.UID[5]}
	case level == 1:
		return v.UID[3:7]
	default:
		return v.UID[6:10]
	}
}

func bcc(b []byte) byte {
	x := byte(0)
	for _, c := range b {
		x ^= c
	}
	return x
}

// sakAt returns the SAK for a completed cascade level.
func (v *VirtualTag) sakAt(level int) byte {
	if level < v.cascadeLevels()-1 {
		return sakCascade
	}
	return v.SAK
}

// activate puts the tag in ACTIVE the way the chip's own selection does.
func (v *VirtualTag) activate() bool {
	if !v.Present || v.state == tagHalted {
		return false
	}
	v.state = tagActive
	v.level = v.cascadeLevels()
	return true
}

// tagReply is the answer to a raw frame. crc marks answers that carry a
// CRC_A on the air.
type tagReply struct {
	data []byte
	bits int
	crc  bool
}

// transceive handles one raw frame of bits bits. hasCRC tells whether the
// frame carried a valid CRC_A. ok is false when the tag stays silent.
func (v *VirtualTag) transceive(frame []byte, bits int, hasCRC bool) (tagReply, bool) {
	if !v.Present || len(frame) == 0 {
		return tagReply{}, false
	}

	if bits == 7 {
		switch {
		case frame[0] == tagREQA && v.state == tagIdle,
			frame[0] == tagWUPA && (v.state == tagIdle || v.state == tagHalted):
			v.state = tagReady
			v.level = 0
			return tagReply{data: v.ATQA[:], bits: 16}, true
		}
		return tagReply{}, false
	}
	if bits%8 != 0 {
		return tagReply{}, false
	}

	switch frame[0] {
	case tagSelCL1, tagSelCL2, tagSelCL3:
		return v.selectFrame(frame, hasCRC)
	case tagRATS:
		if v.state != tagActive || v.ATS == nil || !hasCRC || len(frame) != 2 {
			return tagReply{}, false
		}
		return tagReply{data: v.ATS, bits: len(v.ATS) * 8, crc: true}, true
	case tagHALT:
		if v.state == tagActive && hasCRC && len(frame) == 2 && frame[1] == 0x00 {
			v.halt()
		}
		return tagReply{}, false
	}

	if v.state != tagActive || !hasCRC {
		return tagReply{}, false
	}
	resp, err := v.exchange(frame)
	if err != nil {
		return tagReply{data: []byte{tagNAK}, bits: 4}, true
	}
	if len(resp) == 1 && resp[0] == tagACK {
		return tagReply{data: resp, bits: 4}, true
	}
	return tagReply{data: resp, bits: len(resp) * 8, crc: true}, true
}

func (v *VirtualTag) selectFrame(frame []byte, hasCRC bool) (tagReply, bool) {
	level := int(frame[0]-tagSelCL1) / 2
	if v.state != tagReady || level != v.level || len(frame) < 2 {
		return tagReply{}, false
	}
	part := v.uidPart(level)

	switch frame[1] {
	case tagNVBAnticol:
		data := append(append([]byte(nil), part...), bcc(part))
		return tagReply{data: data, bits: 40}, true
	case tagNVBSelect:
		if len(frame) != 7 || !hasCRC || string(frame[2:6]) != string(part) || frame[6] != bcc(part) {
			return tagReply{}, false
		}
		sak := v.sakAt(level)
		if sak&sakCascade != 0 {
			v.level++
		} else {
			v.state = tagActive
			v.level = v.cascadeLevels()
		}
		return tagReply{data: []byte{sak}, bits: 8, crc: true}, true
	default:
		return tagReply{}, false
	}
}

// exchange runs a command of an active tag without CRC framing, as
// InDataExchange hands it over.
func (v *VirtualTag) exchange(cmd []byte) ([]byte, error) {
	if len(cmd) == 0 {
		return nil, errors.New("empty command")
	}
	if v.ATS != nil {
		// any APDU succeeds
		return []byte{0x90, 0x00}, nil
	}

	switch cmd[0] {
	case tagREAD:
		if len(cmd) < 2 {
			return nil, errors.New("short READ")
		}
		return v.readPages(int(cmd[1]))
	case tagWRITE:
		if len(cmd) < 6 {
			return nil, errors.New("short WRITE")
		}
		if err := v.writePage(int(cmd[1]), cmd[2:6]); err != nil {
			return nil, err
		}
		return []byte{tagACK}, nil
	default:
		return nil, fmt.Errorf("unsupported command 0x%02X", cmd[0])
	}
}

// readPages returns four pages starting at page, wrapping around the end
// of memory like NTAG READ does.
func (v *VirtualTag) readPages(page int) ([]byte, error) {
	if page < 0 || page >= len(v.Memory) {
		return nil, fmt.Errorf("%w: %d", errNoSuchPage, page)
	}
	out := make([]byte, 0, 4*pageSize)
	for i := range 4 {
		out = append(out, v.Memory[(page+i)%len(v.Memory)]...)
	}
	return out, nil
}

func (v *VirtualTag) writePage(page int, data []byte) error {
	// serial number and lock pages are read-only
	if page < 3 || page >= len(v.Memory) {
		return fmt.Errorf("%w: %d", errNoSuchPage, page)
	}
	copy(v.Memory[page], data)
	return nil
}

// ReadPage returns a copy of one memory page.
func (v *VirtualTag) ReadPage(page int) ([]byte, error) {
	if page < 0 || page >= len(v.Memory) {
		return nil, fmt.Errorf("%w: %d", errNoSuchPage, page)
	}
	return append([]byte(nil), v.Memory[page]...), nil
}
