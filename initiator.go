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
	"bytes"
	"context"
	"fmt"

	"github.com/ZaparooProject/go-pn53x/pkg/bitutil"
)

// BitFrame is a transfer that need not end on a byte boundary. Parity holds
// one bit per complete byte and is only used when the chip does not handle
// parity itself.
type BitFrame struct {
	Data   []byte
	Parity []byte
	Bits   int
}

// Default initiator data for modulations that cannot poll without it.
var (
	// AFI 0x00 wakes every ISO14443-B PICC.
	defaultISO14443BInitData = []byte{0x00}
	// SENSF_REQ for any system code, no request code, one time slot.
	defaultFeliCaInitData = []byte{0x00, 0xFF, 0xFF, 0x00, 0x00}
)

// InitiatorInit configures the chip as a reader: RF field cycled, CRC and
// parity handled by the chip, infinite select, ISO14443-4 activation and
// easy framing on, then 100% ASK and the initiator bit.
func (d *Device) InitiatorInit(ctx context.Context) error {
	steps := []struct {
		p  Property
		on bool
	}{
		{PropertyActivateField, false},
		{PropertyHandleCRC, true},
		{PropertyHandleParity, true},
		{PropertyInfiniteSelect, true},
		{PropertyAcceptInvalidFrames, false},
		{PropertyAcceptMultipleFrames, false},
		{PropertyAutoISO14443_4, true},
		{PropertyForceISO14443A, false},
		{PropertyEasyFraming, true},
		{PropertyActivateField, true},
	}
	for _, s := range steps {
		if err := d.Configure(ctx, s.p, s.on); err != nil {
			return err
		}
	}

	if err := d.SetRegister(ctx, RegCIUTxAuto, symForce100ASK, symForce100ASK); err != nil {
		return err
	}
	if err := d.SetRegister(ctx, RegCIUControl, symInitiator, symInitiator); err != nil {
		return err
	}
	d.state = StateIdle
	return nil
}

// SelectPassiveTarget polls once for a target using m. It returns nil and
// no error when nothing answered. initData is the optional InitiatorData of
// InListPassiveTarget: a UID for ISO14443-A, the AFI for ISO14443-B (0x00
// when nil), the polling payload for FeliCa (any system code when nil).
func (d *Device) SelectPassiveTarget(ctx context.Context, m Modulation, initData []byte) (*Target, error) {
	code, err := m.code()
	if err != nil {
		d.lastError = CodeUnsupported
		return nil, err
	}
	if !d.caps.modulations[code] {
		d.lastError = CodeUnsupported
		return nil, fmt.Errorf("%s on %s: %w", m, d.chip, ErrUnsupported)
	}
	if initData == nil {
		switch m.Type {
		case ModulationTypeISO14443B:
			initData = defaultISO14443BInitData
		case ModulationTypeFeliCa:
			initData = defaultFeliCaInitData
		case ModulationTypeISO14443A, ModulationTypeJewel, ModulationTypeDEP, ModulationTypeUndefined:
		}
	}

	if err := d.beginPolling(); err != nil {
		return nil, err
	}
	params := append([]byte{0x01, byte(code)}, initData...)
	resp, err := d.Transceive(ctx, cmdInListPassiveTarget, params)
	if err != nil {
		d.endPolling(false)
		return nil, err
	}
	if len(resp) == 0 || resp[0] == 0 {
		d.endPolling(false)
		return nil, nil
	}

	info, err := DecodeTargetData(d.chip, m.Type, resp[1:])
	if err != nil {
		d.endPolling(false)
		return nil, fmt.Errorf("%s target: %w", m, err)
	}
	d.endPolling(true)
	target := &Target{Info: info, Modulation: m}
	debugf("selected %s", target)
	return target, nil
}

// ListPassiveTargets selects and deselects targets of one modulation until
// none is left, max targets were found or a target answers a second time.
// Selection retries are switched to a single attempt first.
func (d *Device) ListPassiveTargets(ctx context.Context, m Modulation, maxTargets int) ([]*Target, error) {
	if maxTargets <= 0 {
		return nil, fmt.Errorf("%w: max targets %d", ErrInvalidArgument, maxTargets)
	}
	if err := d.Configure(ctx, PropertyInfiniteSelect, false); err != nil {
		return nil, err
	}

	var targets []*Target
	for len(targets) < maxTargets {
		t, err := d.SelectPassiveTarget(ctx, m, nil)
		if err != nil {
			return targets, err
		}
		if t == nil {
			break
		}
		if err := d.Deselect(ctx, 0); err != nil {
			debugf("list: deselect after %s: %v", t, err)
		}
		if containsTarget(targets, t) {
			break
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func containsTarget(targets []*Target, t *Target) bool {
	for _, seen := range targets {
		if seen.Modulation == t.Modulation && bytes.Equal(seen.UID(), t.UID()) {
			return true
		}
	}
	return false
}

// DEPMode selects active or passive NFCIP-1 communication.
type DEPMode int

const (
	// DEPModePassive lets the target answer by load modulation.
	DEPModePassive DEPMode = iota
	// DEPModeActive has both sides generate their own field.
	DEPModeActive
)

func (m DEPMode) String() string {
	if m == DEPModeActive {
		return "active"
	}
	return "passive"
}

// DEPInitiatorInfo carries the optional InJumpForDEP fields.
type DEPInitiatorInfo struct {
	// PassiveInitiatorData is only sent in passive mode.
	PassiveInitiatorData []byte
	// NFCID3 is nil or exactly 10 bytes.
	NFCID3 []byte
	// GeneralBytes holds up to 48 bytes.
	GeneralBytes []byte
}

const maxGeneralBytes = 48

// SelectDEPTarget activates a peer-to-peer target. It returns nil and no
// error when no target answered.
func (d *Device) SelectDEPTarget(
	ctx context.Context, mode DEPMode, baud BaudRate, info *DEPInitiatorInfo,
) (*Target, error) {
	var br byte
	switch baud {
	case BaudRate106:
		br = 0x00
	case BaudRate212:
		br = 0x01
	case BaudRate424:
		br = 0x02
	case BaudRate847, BaudRateUndefined:
		return nil, fmt.Errorf("%w: DEP at %s", ErrUnsupported, baud)
	default:
		return nil, fmt.Errorf("%w: baud rate %d", ErrInvalidArgument, int(baud))
	}

	params := []byte{pick(mode == DEPModeActive, 0x01, 0x00), br, 0x00}
	if info != nil {
		if len(info.PassiveInitiatorData) > 0 && mode == DEPModePassive {
			params[2] |= 0x01
			params = append(params, info.PassiveInitiatorData...)
		}
		if info.NFCID3 != nil {
			if len(info.NFCID3) != 10 {
				return nil, fmt.Errorf("%w: NFCID3 of %d bytes", ErrInvalidArgument, len(info.NFCID3))
			}
			params[2] |= 0x02
			params = append(params, info.NFCID3...)
		}
		if len(info.GeneralBytes) > 0 {
			if len(info.GeneralBytes) > maxGeneralBytes {
				return nil, fmt.Errorf("%w: %d general bytes", ErrInvalidArgument, len(info.GeneralBytes))
			}
			params[2] |= 0x04
			params = append(params, info.GeneralBytes...)
		}
	}

	if err := d.beginPolling(); err != nil {
		return nil, err
	}
	resp, err := d.Transceive(ctx, cmdInJumpForDEP, params)
	if err != nil {
		d.endPolling(false)
		return nil, err
	}
	// status, Tg, ATR_RES
	if len(resp) < 2 || resp[1] != 0x01 {
		d.endPolling(false)
		return nil, nil
	}
	dep, err := DecodeTargetData(d.chip, ModulationTypeDEP, resp[1:])
	if err != nil {
		d.endPolling(false)
		return nil, fmt.Errorf("DEP target: %w", err)
	}
	d.endPolling(true)
	return &Target{Info: dep, Modulation: Modulation{Type: ModulationTypeDEP, BaudRate: baud}}, nil
}

// TransceiveBits exchanges a raw frame through InCommunicateThru. When the
// chip does not handle parity, tx.Parity is wrapped into the frame and the
// received parity bits are returned in the result.
func (d *Device) TransceiveBits(ctx context.Context, tx BitFrame) (BitFrame, error) {
	raw, lastBits, err := d.rawFrame(tx)
	if err != nil {
		return BitFrame{}, err
	}
	if err := d.beginExchange(false); err != nil {
		return BitFrame{}, err
	}
	defer d.endExchange()

	if err := d.SetTxBits(ctx, lastBits); err != nil {
		return BitFrame{}, err
	}
	resp, err := d.Transceive(ctx, cmdInCommunicateThru, raw)
	if err != nil {
		return BitFrame{}, err
	}
	return d.receivedBits(ctx, resp[1:])
}

// TransceiveBytes sends whole bytes to the target and returns its answer.
// With easy framing the chip runs the protocol to the selected target
// (InDataExchange); otherwise the bytes go out raw (InCommunicateThru).
func (d *Device) TransceiveBytes(ctx context.Context, tx []byte) ([]byte, error) {
	if !d.handleParity {
		return nil, fmt.Errorf("%w: byte transfers need parity handled by the chip", ErrInvalidArgument)
	}
	if err := d.beginExchange(d.easyFraming); err != nil {
		return nil, err
	}
	defer d.endExchange()

	if err := d.SetTxBits(ctx, 0); err != nil {
		return nil, err
	}
	var resp []byte
	var err error
	if d.easyFraming {
		resp, err = d.Transceive(ctx, cmdInDataExchange, append([]byte{0x01}, tx...))
	} else {
		resp, err = d.Transceive(ctx, cmdInCommunicateThru, tx)
	}
	if err != nil {
		return nil, err
	}
	return resp[1:], nil
}

// Deselect deselects target (0 for all) but keeps its information in the
// chip. The Device stays usable when it fails.
func (d *Device) Deselect(ctx context.Context, target byte) error {
	_, err := d.Transceive(ctx, cmdInDeselect, []byte{target})
	d.release()
	if err != nil {
		debugf("deselect %d: %v", target, err)
	}
	return err
}

// Release releases target (0 for all) and drops its information from the
// chip. The Device stays usable when it fails.
func (d *Device) Release(ctx context.Context, target byte) error {
	_, err := d.Transceive(ctx, cmdInRelease, []byte{target})
	d.release()
	if err != nil {
		debugf("release %d: %v", target, err)
	}
	return err
}

// rawFrame turns f into the bytes handed to the chip and the number of
// valid bits in the last of them.
func (d *Device) rawFrame(f BitFrame) ([]byte, byte, error) {
	if f.Bits <= 0 || len(f.Data)*8 < f.Bits {
		return nil, 0, fmt.Errorf("%w: %d bits in %d bytes", ErrInvalidArgument, f.Bits, len(f.Data))
	}
	data, bits := f.Data, f.Bits
	if !d.handleParity {
		wrapped, wrappedBits, err := bitutil.Wrap(f.Data, f.Bits, f.Parity)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		data, bits = wrapped, wrappedBits
	}
	return data[:(bits+7)/8], byte(bits % 8), nil
}

// receivedBits recovers the bit length of a received frame from the RX last
// bits of CIU_CONTROL and strips parity when the chip left it in.
func (d *Device) receivedBits(ctx context.Context, payload []byte) (BitFrame, error) {
	control, err := d.ReadRegister(ctx, RegCIUControl)
	if err != nil {
		return BitFrame{}, err
	}
	lastBits := int(control & symRxLastBits)
	frameBits := len(payload) * 8
	if lastBits != 0 && len(payload) > 0 {
		frameBits = (len(payload)-1)*8 + lastBits
	}
	if frameBits == 0 {
		return BitFrame{}, nil
	}
	if d.handleParity {
		return BitFrame{Data: payload, Bits: frameBits}, nil
	}
	data, bits, par, err := bitutil.Unwrap(payload, frameBits)
	if err != nil {
		return BitFrame{}, fmt.Errorf("%w: %w", ErrFrameCorrupted, err)
	}
	return BitFrame{Data: data, Bits: bits, Parity: par}, nil
}
