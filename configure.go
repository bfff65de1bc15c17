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
	"context"
	"fmt"
)

// Property is a session option switched by Configure.
type Property int

// Configure properties
const (
	// PropertyHandleCRC lets the chip append and check CRC bytes.
	PropertyHandleCRC Property = iota
	// PropertyHandleParity lets the chip generate and check parity bits.
	PropertyHandleParity
	// PropertyEasyFraming routes exchanges through the chip's protocol
	// handling instead of raw frames.
	PropertyEasyFraming
	// PropertyActivateField switches the RF field.
	PropertyActivateField
	// PropertyActivateCrypto1 switches the MIFARE Classic cipher unit.
	PropertyActivateCrypto1
	// PropertyInfiniteSelect makes selection retry until a target answers.
	PropertyInfiniteSelect
	// PropertyAcceptInvalidFrames keeps frames received with errors.
	PropertyAcceptInvalidFrames
	// PropertyAcceptMultipleFrames keeps receiving after the first frame.
	PropertyAcceptMultipleFrames
	// PropertyAutoISO14443_4 lets the chip send RATS after selection.
	PropertyAutoISO14443_4
	// PropertyForceISO14443A resets TX and RX framing to ISO14443-A.
	PropertyForceISO14443A
)

func (p Property) String() string {
	switch p {
	case PropertyHandleCRC:
		return "handle CRC"
	case PropertyHandleParity:
		return "handle parity"
	case PropertyEasyFraming:
		return "easy framing"
	case PropertyActivateField:
		return "activate field"
	case PropertyActivateCrypto1:
		return "activate crypto1"
	case PropertyInfiniteSelect:
		return "infinite select"
	case PropertyAcceptInvalidFrames:
		return "accept invalid frames"
	case PropertyAcceptMultipleFrames:
		return "accept multiple frames"
	case PropertyAutoISO14443_4:
		return "auto ISO14443-4"
	case PropertyForceISO14443A:
		return "force ISO14443-A"
	default:
		return fmt.Sprintf("Property(%d)", int(p))
	}
}

// Configure switches one property. A failing write ends the call; writes
// that already went through stay applied.
func (d *Device) Configure(ctx context.Context, p Property, enable bool) error {
	if err := d.configure(ctx, p, enable); err != nil {
		return fmt.Errorf("configure %s=%t: %w", p, enable, err)
	}
	return nil
}

func (d *Device) configure(ctx context.Context, p Property, enable bool) error {
	switch p {
	case PropertyHandleCRC:
		v := pick(enable, symTxCRCEnable, 0)
		if err := d.SetRegister(ctx, RegCIUTxMode, symTxCRCEnable, v); err != nil {
			return err
		}
		if err := d.SetRegister(ctx, RegCIURxMode, symRxCRCEnable, v); err != nil {
			return err
		}
		d.handleCRC = enable
	case PropertyHandleParity:
		// the register bit disables parity handling
		v := pick(enable, 0, symParityDisable)
		if err := d.SetRegister(ctx, RegCIUManualRCV, symParityDisable, v); err != nil {
			return err
		}
		d.handleParity = enable
	case PropertyEasyFraming:
		d.easyFraming = enable
	case PropertyActivateField:
		_, err := d.Transceive(ctx, cmdRFConfiguration, []byte{rfciField, pick(enable, 0x01, 0x00)})
		return err
	case PropertyActivateCrypto1:
		return d.SetRegister(ctx, RegCIUStatus2, symMFCrypto1On, pick(enable, symMFCrypto1On, 0))
	case PropertyInfiniteSelect:
		// MxRtyATR, MxRtyPSL, MxRtyPassiveActivation; 0xFF retries forever
		n := pick(enable, 0xFF, 0x00)
		_, err := d.Transceive(ctx, cmdRFConfiguration, []byte{rfciRetrySelect, n, n, n})
		return err
	case PropertyAcceptInvalidFrames:
		return d.SetRegister(ctx, RegCIURxMode, symRxNoError, pick(enable, symRxNoError, 0))
	case PropertyAcceptMultipleFrames:
		return d.SetRegister(ctx, RegCIURxMode, symRxMultiple, pick(enable, symRxMultiple, 0))
	case PropertyAutoISO14443_4:
		return d.SetParameter(ctx, ParamAutoRATS, enable)
	case PropertyForceISO14443A:
		if !enable {
			return nil
		}
		if err := d.SetRegister(ctx, RegCIUTxMode, symTxFraming, 0x00); err != nil {
			return err
		}
		return d.SetRegister(ctx, RegCIURxMode, symRxFraming, 0x00)
	default:
		return fmt.Errorf("%w: unknown property %d", ErrInvalidArgument, int(p))
	}
	return nil
}

// SetTimings sets the RF timeouts used for ATR_RES and for other commands.
// Both are the chip's timeout codes (0x0B is 102.4 ms).
func (d *Device) SetTimings(ctx context.Context, atrResTimeout, retryTimeout byte) error {
	_, err := d.Transceive(ctx, cmdRFConfiguration, []byte{rfciTiming, 0x00, atrResTimeout, retryTimeout})
	return err
}

// SetDataRetries sets how often InCommunicateThru and InDataExchange retry
// on the RF side. 0xFF retries forever.
func (d *Device) SetDataRetries(ctx context.Context, retries byte) error {
	_, err := d.Transceive(ctx, cmdRFConfiguration, []byte{rfciRetryData, retries})
	return err
}

// SetSelectRetries sets MxRtyATR, MxRtyPSL and MxRtyPassiveActivation. A
// finite passive activation count keeps InListPassiveTarget from waiting
// forever.
func (d *Device) SetSelectRetries(ctx context.Context, atr, psl, passiveActivation byte) error {
	_, err := d.Transceive(ctx, cmdRFConfiguration, []byte{rfciRetrySelect, atr, psl, passiveActivation})
	return err
}

func pick(cond bool, yes, no byte) byte {
	if cond {
		return yes
	}
	return no
}
