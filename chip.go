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

import "fmt"

// Chip identifies the PN53x generation behind a transport.
type Chip int

const (
	// ChipUnknown is the zero value before identification.
	ChipUnknown Chip = iota
	// ChipPN531 is the first generation (USB only, no ISO14443-B).
	ChipPN531
	// ChipPN532 adds ISO14443-B 106, Jewel, InAutoPoll and PICC emulation.
	ChipPN532
	// ChipPN533 adds ISO14443-B 212/424/847 and extended frames.
	ChipPN533
)

func (c Chip) String() string {
	switch c {
	case ChipPN531:
		return "PN531"
	case ChipPN532:
		return "PN532"
	case ChipPN533:
		return "PN533"
	case ChipUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Chip(%d)", int(c))
	}
}

// capabilities is the static per-chip behavior table consulted once a chip is
// identified.
type capabilities struct {
	// modulations lists the InListPassiveTarget BrTy codes the chip accepts.
	modulations map[modulationCode]bool
	// firmwareLength is the GetFirmwareVersion response size.
	firmwareLength int
	// registerStatusByte: ReadRegister answers are prefixed by a status byte.
	registerStatusByte bool
	// autoPoll: InAutoPoll is implemented.
	autoPoll bool
	// piccEmulation: TgInitAsTarget accepts the ISO14443-4 PICC only mode.
	piccEmulation bool
	// generalBytesLength: TgInitAsTarget general bytes are length prefixed.
	generalBytesLength bool
	// swappedATQA: ATQA bytes come high byte first in target data.
	swappedATQA bool
	// extendedFrames: frames above 254 data bytes use the extended layout.
	extendedFrames bool
	// samConfiguration: SAMConfiguration must run before RF commands.
	samConfiguration bool
}

var chipCapabilities = map[Chip]capabilities{
	ChipPN531: {
		modulations: map[modulationCode]bool{
			pmISO14443A106: true,
			pmFeliCa212:    true,
			pmFeliCa424:    true,
		},
		firmwareLength: 2,
		swappedATQA:    true,
	},
	ChipPN532: {
		modulations: map[modulationCode]bool{
			pmISO14443A106: true,
			pmFeliCa212:    true,
			pmFeliCa424:    true,
			pmISO14443B106: true,
			pmJewel106:     true,
		},
		firmwareLength:     4,
		autoPoll:           true,
		piccEmulation:      true,
		generalBytesLength: true,
		samConfiguration:   true,
	},
	ChipPN533: {
		modulations: map[modulationCode]bool{
			pmISO14443A106: true,
			pmFeliCa212:    true,
			pmFeliCa424:    true,
			pmISO14443B106: true,
			pmJewel106:     true,
			pmISO14443B212: true,
			pmISO14443B424: true,
			pmISO14443B847: true,
		},
		firmwareLength:     4,
		registerStatusByte: true,
		generalBytesLength: true,
		extendedFrames:     true,
	},
}

// caps returns the capability table of c. An unidentified chip gets the
// PN532 layout, which is also what GetFirmwareVersion answers with on every
// chip except the PN531.
func (c Chip) caps() capabilities {
	if cp, ok := chipCapabilities[c]; ok {
		return cp
	}
	return chipCapabilities[ChipPN532]
}

// Supports reports whether the chip can poll for passive targets with m.
func (c Chip) Supports(m Modulation) bool {
	pm, err := m.code()
	if err != nil {
		return false
	}
	return c.caps().modulations[pm]
}

// ChipHinter is implemented by transports that know which chip they talk to
// before identification, for example from a USB product ID.
type ChipHinter interface {
	ChipHint() Chip
}

// chipFromIC maps the IC byte of a GetFirmwareVersion answer.
func chipFromIC(ic byte) Chip {
	switch ic {
	case 0x32:
		return ChipPN532
	case 0x33:
		return ChipPN533
	default:
		return ChipUnknown
	}
}
