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

// ModulationType is the RF technology of a modulation.
type ModulationType int

const (
	// ModulationTypeUndefined is the zero value.
	ModulationTypeUndefined ModulationType = iota
	ModulationTypeISO14443A
	ModulationTypeISO14443B
	ModulationTypeFeliCa
	ModulationTypeJewel
	ModulationTypeDEP
)

func (t ModulationType) String() string {
	switch t {
	case ModulationTypeISO14443A:
		return "ISO/IEC 14443A"
	case ModulationTypeISO14443B:
		return "ISO/IEC 14443B"
	case ModulationTypeFeliCa:
		return "FeliCa"
	case ModulationTypeJewel:
		return "Innovision Jewel"
	case ModulationTypeDEP:
		return "D.E.P."
	case ModulationTypeUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("ModulationType(%d)", int(t))
	}
}

// BaudRate is the bit rate of a modulation.
type BaudRate int

const (
	// BaudRateUndefined is the zero value.
	BaudRateUndefined BaudRate = iota
	BaudRate106
	BaudRate212
	BaudRate424
	BaudRate847
)

func (b BaudRate) String() string {
	switch b {
	case BaudRate106:
		return "106 kbps"
	case BaudRate212:
		return "212 kbps"
	case BaudRate424:
		return "424 kbps"
	case BaudRate847:
		return "847 kbps"
	case BaudRateUndefined:
		return "undefined baud rate"
	default:
		return fmt.Sprintf("BaudRate(%d)", int(b))
	}
}

// Modulation is a (technology, bit rate) pair.
type Modulation struct {
	Type     ModulationType
	BaudRate BaudRate
}

// Common modulations.
var (
	ISO14443A106 = Modulation{Type: ModulationTypeISO14443A, BaudRate: BaudRate106}
	ISO14443B106 = Modulation{Type: ModulationTypeISO14443B, BaudRate: BaudRate106}
	ISO14443B212 = Modulation{Type: ModulationTypeISO14443B, BaudRate: BaudRate212}
	ISO14443B424 = Modulation{Type: ModulationTypeISO14443B, BaudRate: BaudRate424}
	ISO14443B847 = Modulation{Type: ModulationTypeISO14443B, BaudRate: BaudRate847}
	FeliCa212    = Modulation{Type: ModulationTypeFeliCa, BaudRate: BaudRate212}
	FeliCa424    = Modulation{Type: ModulationTypeFeliCa, BaudRate: BaudRate424}
	Jewel106     = Modulation{Type: ModulationTypeJewel, BaudRate: BaudRate106}
)

func (m Modulation) String() string {
	return fmt.Sprintf("%s (%s)", m.Type, m.BaudRate)
}

// modulationCode is the BrTy byte of InListPassiveTarget.
type modulationCode byte

const (
	pmISO14443A106 modulationCode = 0x00
	pmFeliCa212    modulationCode = 0x01
	pmFeliCa424    modulationCode = 0x02
	pmISO14443B106 modulationCode = 0x03
	pmJewel106     modulationCode = 0x04
	pmISO14443B212 modulationCode = 0x06
	pmISO14443B424 modulationCode = 0x07
	pmISO14443B847 modulationCode = 0x08
)

// code returns the BrTy byte for m. ISO14443-A and Jewel only exist at
// 106 kbps on this chip family, so their bit rate is not checked.
func (m Modulation) code() (modulationCode, error) {
	switch m.Type {
	case ModulationTypeISO14443A:
		return pmISO14443A106, nil
	case ModulationTypeJewel:
		return pmJewel106, nil
	case ModulationTypeISO14443B:
		switch m.BaudRate {
		case BaudRate106:
			return pmISO14443B106, nil
		case BaudRate212:
			return pmISO14443B212, nil
		case BaudRate424:
			return pmISO14443B424, nil
		case BaudRate847:
			return pmISO14443B847, nil
		case BaudRateUndefined:
		}
	case ModulationTypeFeliCa:
		switch m.BaudRate {
		case BaudRate212:
			return pmFeliCa212, nil
		case BaudRate424:
			return pmFeliCa424, nil
		case BaudRate106, BaudRate847, BaudRateUndefined:
		}
	case ModulationTypeDEP, ModulationTypeUndefined:
	}
	return 0, fmt.Errorf("%w: no passive target code for %s", ErrUnsupported, m)
}

// TargetType is the target type byte used by InAutoPoll.
type TargetType byte

// InAutoPoll target types
const (
	TargetTypeGenericPassive106 TargetType = 0x00
	TargetTypeGenericPassive212 TargetType = 0x01
	TargetTypeGenericPassive424 TargetType = 0x02
	TargetTypeISO14443B106      TargetType = 0x03
	TargetTypeJewel106          TargetType = 0x04
	TargetTypeMifare            TargetType = 0x10
	TargetTypeFeliCa212         TargetType = 0x11
	TargetTypeFeliCa424         TargetType = 0x12
	TargetTypeISO14443A106      TargetType = 0x20
	TargetTypeISO14443BTCL106   TargetType = 0x23
	TargetTypeDEPPassive106     TargetType = 0x40
	TargetTypeDEPPassive212     TargetType = 0x41
	TargetTypeDEPPassive424     TargetType = 0x42
	TargetTypeDEPActive106      TargetType = 0x80
	TargetTypeDEPActive212      TargetType = 0x81
	TargetTypeDEPActive424      TargetType = 0x82
)

// Modulation maps an InAutoPoll target type back to a modulation. The
// generic passive types do not name a technology and return ErrUnsupported.
func (t TargetType) Modulation() (Modulation, error) {
	switch t {
	case TargetTypeMifare, TargetTypeISO14443A106:
		return ISO14443A106, nil
	case TargetTypeISO14443B106, TargetTypeISO14443BTCL106:
		return ISO14443B106, nil
	case TargetTypeJewel106:
		return Jewel106, nil
	case TargetTypeFeliCa212:
		return FeliCa212, nil
	case TargetTypeFeliCa424:
		return FeliCa424, nil
	case TargetTypeDEPPassive106, TargetTypeDEPActive106:
		return Modulation{Type: ModulationTypeDEP, BaudRate: BaudRate106}, nil
	case TargetTypeDEPPassive212, TargetTypeDEPActive212:
		return Modulation{Type: ModulationTypeDEP, BaudRate: BaudRate212}, nil
	case TargetTypeDEPPassive424, TargetTypeDEPActive424:
		return Modulation{Type: ModulationTypeDEP, BaudRate: BaudRate424}, nil
	case TargetTypeGenericPassive106, TargetTypeGenericPassive212, TargetTypeGenericPassive424:
	}
	return Modulation{}, fmt.Errorf("%w: target type 0x%02X has no modulation", ErrUnsupported, byte(t))
}

// TargetTypeFor maps a modulation to the InAutoPoll target type used to poll
// for it. ISO14443-A maps to the MIFARE type; PollTargets adds the
// ISO14443-4A type in front of it so the chip also returns the ATS.
func TargetTypeFor(m Modulation) (TargetType, error) {
	switch m.Type {
	case ModulationTypeISO14443A:
		return TargetTypeMifare, nil
	case ModulationTypeJewel:
		return TargetTypeJewel106, nil
	case ModulationTypeISO14443B:
		if m.BaudRate == BaudRate106 {
			return TargetTypeISO14443B106, nil
		}
	case ModulationTypeFeliCa:
		switch m.BaudRate {
		case BaudRate212:
			return TargetTypeFeliCa212, nil
		case BaudRate424:
			return TargetTypeFeliCa424, nil
		case BaudRate106, BaudRate847, BaudRateUndefined:
		}
	case ModulationTypeDEP, ModulationTypeUndefined:
	}
	return 0, fmt.Errorf("%w: no auto-poll target type for %s", ErrUnsupported, m)
}
