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

// TargetMode restricts how an initiator may activate the emulated target.
type TargetMode byte

// TgInitAsTarget modes
const (
	TargetModePassiveOnly TargetMode = 0x01
	TargetModeDEPOnly     TargetMode = 0x02
	// TargetModePICCOnly emulates an ISO14443-4 card (PN532 only).
	TargetModePICCOnly TargetMode = 0x04
)

// TargetActivation is the answer to TgInitAsTarget.
type TargetActivation struct {
	// Command is the first frame received from the initiator.
	Command []byte
	// Mode encodes the activation bit rate, DEP and framing.
	Mode byte
}

const (
	mifareParamsLen = 6
	felicaParamsLen = 18
	nfcid3Len       = 10
	maxTargetGBLen  = 47
)

// TargetInit emulates t and blocks until an initiator activates it or ctx
// is done. CRC and parity are handled by the chip during activation and
// restored afterwards. ISO14443-A targets get the ATQA, SAK and UID bytes 1
// to 3 (the chip fixes the first UID byte); FeliCa targets their NFCID2,
// PAD and system code; DEP targets their NFCID3 and general bytes.
func (d *Device) TargetInit(ctx context.Context, mode TargetMode, t *Target) (*TargetActivation, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil target", ErrInvalidArgument)
	}
	params, err := d.targetInitParams(mode, t)
	if err != nil {
		return nil, err
	}

	switch mode {
	case TargetModePassiveOnly:
		err = d.SetParameter(ctx, ParamAutoATRRes, false)
		d.easyFraming = false
	case TargetModeDEPOnly:
		err = d.SetParameter(ctx, ParamAutoATRRes, true)
		d.easyFraming = true
	case TargetModePICCOnly:
		err = d.SetParameter(ctx, ParamISO14443PICC, true)
		d.easyFraming = true
	}
	if err != nil {
		return nil, err
	}

	crc, parity := d.handleCRC, d.handleParity
	if !crc {
		if err := d.Configure(ctx, PropertyHandleCRC, true); err != nil {
			return nil, err
		}
	}
	if !parity {
		if err := d.Configure(ctx, PropertyHandleParity, true); err != nil {
			return nil, err
		}
	}
	// let the RF level detector wake the chip
	if err := d.SetRegister(ctx, RegCIUTxAuto, symInitialRFOn, symInitialRFOn); err != nil {
		return nil, err
	}

	resp, err := d.Transceive(ctx, cmdTgInitAsTarget, params)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("TgInitAsTarget: %w: missing mode byte", ErrFrameCorrupted)
	}
	activation := &TargetActivation{Mode: resp[0], Command: resp[1:]}

	if !crc {
		if err := d.Configure(ctx, PropertyHandleCRC, false); err != nil {
			return activation, err
		}
	}
	if !parity {
		if err := d.Configure(ctx, PropertyHandleParity, false); err != nil {
			return activation, err
		}
	}
	return activation, nil
}

// targetInitParams lays out Mode, MifareParams, FeliCaParams, NFCID3t and
// the general bytes. Chips after the PN531 take a length in front of the
// general bytes and a historical bytes length after them.
func (d *Device) targetInitParams(mode TargetMode, t *Target) ([]byte, error) {
	switch mode {
	case TargetModePassiveOnly, TargetModeDEPOnly:
	case TargetModePICCOnly:
		if !d.caps.piccEmulation {
			d.lastError = CodeUnsupported
			return nil, fmt.Errorf("PICC emulation on %s: %w", d.chip, ErrUnsupported)
		}
	default:
		return nil, fmt.Errorf("%w: target mode 0x%02X", ErrInvalidArgument, byte(mode))
	}

	params := make([]byte, 1+mifareParamsLen+felicaParamsLen+nfcid3Len, 64)
	params[0] = byte(mode)
	mifare := params[1 : 1+mifareParamsLen]
	felica := params[1+mifareParamsLen : 1+mifareParamsLen+felicaParamsLen]
	nfcid3 := params[1+mifareParamsLen+felicaParamsLen:]
	var gb []byte

	switch info := t.Info.(type) {
	case *ISO14443AInfo:
		if len(info.UID) < 4 {
			return nil, fmt.Errorf("%w: emulated UID needs 4 bytes, got %d", ErrInvalidArgument, len(info.UID))
		}
		mifare[0], mifare[1] = info.ATQA[1], info.ATQA[0]
		copy(mifare[2:5], info.UID[1:4])
		mifare[5] = info.SAK
	case *FeliCaInfo:
		copy(felica[0:8], info.ID[:])
		copy(felica[8:16], info.Pad[:])
		copy(felica[16:18], info.SysCode[:])
	case *DEPInfo:
		copy(nfcid3, info.NFCID3[:])
		gb = info.GeneralBytes
		if len(gb) > maxTargetGBLen {
			return nil, fmt.Errorf("%w: %d general bytes", ErrInvalidArgument, len(gb))
		}
	default:
		d.lastError = CodeUnsupported
		return nil, fmt.Errorf("emulating %s: %w", t.Modulation, ErrUnsupported)
	}

	if !d.caps.generalBytesLength {
		return append(params, gb...), nil
	}
	params = append(params, byte(len(gb)))
	params = append(params, gb...)
	return append(params, 0x00), nil
}

// TargetReceiveBits waits for a raw frame from the initiator.
func (d *Device) TargetReceiveBits(ctx context.Context) (BitFrame, error) {
	resp, err := d.Transceive(ctx, cmdTgGetInitiatorCommand, nil)
	if err != nil {
		return BitFrame{}, err
	}
	return d.receivedBits(ctx, resp[1:])
}

// TargetReceiveBytes waits for data from the initiator. With easy framing
// the chip strips the DEP or ISO14443-4 framing (TgGetData).
func (d *Device) TargetReceiveBytes(ctx context.Context) ([]byte, error) {
	cmd := byte(cmdTgGetInitiatorCommand)
	if d.easyFraming {
		cmd = cmdTgGetData
	}
	resp, err := d.Transceive(ctx, cmd, nil)
	if err != nil {
		return nil, err
	}
	return resp[1:], nil
}

// TargetSendBits answers the initiator with a raw frame.
func (d *Device) TargetSendBits(ctx context.Context, tx BitFrame) error {
	raw, lastBits, err := d.rawFrame(tx)
	if err != nil {
		return err
	}
	if err := d.SetTxBits(ctx, lastBits); err != nil {
		return err
	}
	_, err = d.Transceive(ctx, cmdTgResponseToInitiator, raw)
	return err
}

// TargetSendBytes answers the initiator with whole bytes. With easy
// framing the chip adds the DEP or ISO14443-4 framing (TgSetData).
func (d *Device) TargetSendBytes(ctx context.Context, tx []byte) error {
	if !d.handleParity {
		return fmt.Errorf("%w: byte transfers need parity handled by the chip", ErrInvalidArgument)
	}
	cmd := byte(cmdTgResponseToInitiator)
	if d.easyFraming {
		cmd = cmdTgSetData
	} else if err := d.SetTxBits(ctx, 0); err != nil {
		return err
	}
	_, err := d.Transceive(ctx, cmd, tx)
	return err
}
