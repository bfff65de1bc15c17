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

package bitutil

const (
	crcAInitial = 0x6363
	crcBInitial = 0xFFFF
)

func crc16(data []byte, crc uint32) uint32 {
	for _, b := range data {
		b ^= byte(crc & 0xFF)
		b ^= b << 4
		bt := uint32(b)
		crc = (crc >> 8) ^ (bt << 8) ^ (bt << 3) ^ (bt >> 4)
	}
	return crc
}

// CRCA computes the ISO14443-A CRC_A of data, returned low byte first as it
// goes on the wire.
func CRCA(data []byte) [2]byte {
	crc := crc16(data, crcAInitial)
	return [2]byte{byte(crc), byte(crc >> 8)}
}

// AppendCRCA returns data with its CRC_A appended.
func AppendCRCA(data []byte) []byte {
	crc := CRCA(data)
	return append(data, crc[0], crc[1])
}

// CheckCRCA reports whether the last two bytes of msg are the CRC_A of the
// bytes before them.
func CheckCRCA(msg []byte) bool {
	if len(msg) < 3 {
		return false
	}
	crc := CRCA(msg[:len(msg)-2])
	return crc[0] == msg[len(msg)-2] && crc[1] == msg[len(msg)-1]
}

// CRCB computes the ISO14443-B CRC_B of data, low byte first.
func CRCB(data []byte) [2]byte {
	crc := ^crc16(data, crcBInitial)
	return [2]byte{byte(crc), byte(crc >> 8)}
}

// AppendCRCB returns data with its CRC_B appended.
func AppendCRCB(data []byte) []byte {
	crc := CRCB(data)
	return append(data, crc[0], crc[1])
}
