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
	"encoding/hex"
	"fmt"
)

// cascadeTag marks an incomplete UID in ISO14443-A anti-collision.
const cascadeTag = 0x88

// Target is a discovered or emulated target.
type Target struct {
	Info       TargetInfo
	Modulation Modulation
}

// UID returns the identifier of the target: the UID for ISO14443-A, the PUPI
// for ISO14443-B, NFCID2 for FeliCa, the Jewel ID and NFCID3 for DEP.
func (t *Target) UID() []byte {
	switch info := t.Info.(type) {
	case *ISO14443AInfo:
		return info.UID
	case *ISO14443BInfo:
		return info.PUPI[:]
	case *FeliCaInfo:
		return info.ID[:]
	case *JewelInfo:
		return info.ID[:]
	case *DEPInfo:
		return info.NFCID3[:]
	default:
		return nil
	}
}

func (t *Target) String() string {
	return fmt.Sprintf("%s UID %s", t.Modulation, hex.EncodeToString(t.UID()))
}

// TargetInfo is the technology specific part of a Target. The implementations
// in this package are the only ones.
type TargetInfo interface {
	targetInfo()
}

// ISO14443AInfo describes an ISO14443-A target. ATQA holds the two bytes in
// the order they were received from a PN532/PN533.
type ISO14443AInfo struct {
	UID  []byte
	ATS  []byte
	ATQA [2]byte
	SAK  byte
}

// ISO14443BInfo describes an ISO14443-B target.
type ISO14443BInfo struct {
	PUPI            [4]byte
	ApplicationData [4]byte
	ProtocolInfo    [3]byte
	CardIdentifier  byte
}

// FeliCaInfo describes a FeliCa target. SysCode is only set when the
// response length says it is present.
type FeliCaInfo struct {
	ID      [8]byte
	Pad     [8]byte
	SysCode [2]byte
	Len     byte
	ResCode byte
}

// JewelInfo describes an Innovision Jewel (Topaz) target.
type JewelInfo struct {
	SensRes [2]byte
	ID      [4]byte
}

// DEPInfo describes a peer-to-peer target from its ATR_RES.
type DEPInfo struct {
	GeneralBytes []byte
	NFCID3       [10]byte
	DID          byte
	BS           byte
	BR           byte
	TO           byte
	PP           byte
}

func (*ISO14443AInfo) targetInfo() {}
func (*ISO14443BInfo) targetInfo() {}
func (*FeliCaInfo) targetInfo()    {}
func (*JewelInfo) targetInfo()     {}
func (*DEPInfo) targetInfo()       {}

// targetReader walks a target data payload and remembers the first overrun.
type targetReader struct {
	buf []byte
	pos int
	err error
}

func (r *targetReader) byte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *targetReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("%w: target data truncated at byte %d, need %d more of %d",
			ErrInvalidArgument, r.pos, n, len(r.buf))
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *targetReader) copyTo(dst []byte) {
	if b := r.next(len(dst)); b != nil {
		copy(dst, b)
	}
}

// DecodeTargetData decodes one TargetData block as returned by
// InListPassiveTarget or InAutoPoll. raw starts with the target number byte.
func DecodeTargetData(chip Chip, mt ModulationType, raw []byte) (TargetInfo, error) {
	r := &targetReader{buf: raw}
	r.byte() // Tg

	var info TargetInfo
	switch mt {
	case ModulationTypeISO14443A:
		info = decodeISO14443A(chip, r)
	case ModulationTypeISO14443B:
		info = decodeISO14443B(r)
	case ModulationTypeFeliCa:
		info = decodeFeliCa(r)
	case ModulationTypeJewel:
		info = decodeJewel(r)
	case ModulationTypeDEP:
		info = decodeDEP(r)
	default:
		return nil, fmt.Errorf("%w: cannot decode target data for %s", ErrUnsupported, mt)
	}
	if r.err != nil {
		return nil, r.err
	}
	return info, nil
}

func decodeISO14443A(chip Chip, r *targetReader) *ISO14443AInfo {
	info := &ISO14443AInfo{}
	if chip.caps().swappedATQA {
		info.ATQA[1] = r.byte()
		info.ATQA[0] = r.byte()
	} else {
		info.ATQA[0] = r.byte()
		info.ATQA[1] = r.byte()
	}
	info.SAK = r.byte()
	uidLen := int(r.byte())
	uid := r.next(uidLen)
	if r.err != nil {
		return nil
	}

	// An ATS follows when the payload is longer than Tg ATQA SAK len UID.
	if len(r.buf) > uidLen+5 {
		atsLen := int(r.byte()) - 1 // the length byte counts itself
		if ats := r.next(atsLen); ats != nil {
			info.ATS = append([]byte(nil), ats...)
		}
	}
	info.UID = collapseCascade(uid)
	return info
}

// collapseCascade strips cascade tags from a UID reported with them:
// 88 01 02 03 04 05 06 07 is the 7-byte UID 01..07, and a 12-byte UID with
// cascade tags at offsets 0 and 4 is the 10-byte UID around them.
func collapseCascade(uid []byte) []byte {
	switch {
	case len(uid) == 8 && uid[0] == cascadeTag:
		return append([]byte(nil), uid[1:]...)
	case len(uid) == 12 && uid[0] == cascadeTag && uid[4] == cascadeTag:
		out := make([]byte, 0, 10)
		out = append(out, uid[1:4]...)
		return append(out, uid[5:]...)
	default:
		return append([]byte(nil), uid...)
	}
}

func decodeISO14443B(r *targetReader) *ISO14443BInfo {
	info := &ISO14443BInfo{}
	r.byte() // ATQB code, always 0x50
	r.copyTo(info.PUPI[:])
	r.copyTo(info.ApplicationData[:])
	r.copyTo(info.ProtocolInfo[:])
	if attribResLen := r.byte(); attribResLen > 0 {
		info.CardIdentifier = r.byte()
	}
	return info
}

func decodeFeliCa(r *targetReader) *FeliCaInfo {
	info := &FeliCaInfo{}
	info.Len = r.byte()
	info.ResCode = r.byte()
	r.copyTo(info.ID[:])
	r.copyTo(info.Pad[:])
	if info.Len > 18 {
		r.copyTo(info.SysCode[:])
	}
	return info
}

func decodeJewel(r *targetReader) *JewelInfo {
	info := &JewelInfo{}
	r.copyTo(info.SensRes[:])
	r.copyTo(info.ID[:])
	return info
}

// decodeDEP reads NFCID3 DID BS BR TO PP and the general bytes that fill the
// rest of the payload.
func decodeDEP(r *targetReader) *DEPInfo {
	info := &DEPInfo{}
	r.copyTo(info.NFCID3[:])
	info.DID = r.byte()
	info.BS = r.byte()
	info.BR = r.byte()
	info.TO = r.byte()
	info.PP = r.byte()
	if r.err == nil && r.pos < len(r.buf) {
		info.GeneralBytes = append([]byte(nil), r.buf[r.pos:]...)
	}
	return info
}
