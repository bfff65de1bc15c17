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

// Register is a CIU register address in the PN53x SFR/XRAM space.
type Register uint16

// CIU registers used by the session layer
const (
	RegCIUTxMode     Register = 0x6302
	RegCIURxMode     Register = 0x6303
	RegCIUTxAuto     Register = 0x6305
	RegCIUManualRCV  Register = 0x630D
	RegCIUStatus2    Register = 0x6338
	RegCIUControl    Register = 0x633C
	RegCIUBitFraming Register = 0x633D
)

// Register bit masks
const (
	symTxCRCEnable   = 0x80 // CIU_TX_MODE
	symTxFraming     = 0x03 // CIU_TX_MODE
	symRxCRCEnable   = 0x80 // CIU_RX_MODE
	symRxNoError     = 0x08 // CIU_RX_MODE
	symRxMultiple    = 0x04 // CIU_RX_MODE
	symRxFraming     = 0x03 // CIU_RX_MODE
	symInitialRFOn   = 0x04 // CIU_TX_AUTO
	symForce100ASK   = 0x40 // CIU_TX_AUTO
	symParityDisable = 0x10 // CIU_MANUAL_RCV
	symMFCrypto1On   = 0x08 // CIU_STATUS2
	symRxLastBits    = 0x07 // CIU_CONTROL
	symInitiator     = 0x10 // CIU_CONTROL
	symTxLastBits    = 0x07 // CIU_BIT_FRAMING
)

func (r Register) String() string {
	switch r {
	case RegCIUTxMode:
		return "CIU_TX_MODE"
	case RegCIURxMode:
		return "CIU_RX_MODE"
	case RegCIUTxAuto:
		return "CIU_TX_AUTO"
	case RegCIUManualRCV:
		return "CIU_MANUAL_RCV"
	case RegCIUStatus2:
		return "CIU_STATUS2"
	case RegCIUControl:
		return "CIU_CONTROL"
	case RegCIUBitFraming:
		return "CIU_BIT_FRAMING"
	default:
		return fmt.Sprintf("reg 0x%04X", uint16(r))
	}
}

// volatile registers change under the chip's own hands (received bit
// counts, crypto state) and are always read from the device.
func (r Register) volatile() bool {
	return r == RegCIUControl || r == RegCIUStatus2
}

// Parameter is a flag of the SetParameters byte.
type Parameter byte

// SetParameters flags
const (
	ParamNADUsed       Parameter = 0x01
	ParamDIDUsed       Parameter = 0x02
	ParamAutoATRRes    Parameter = 0x04
	ParamAutoRATS      Parameter = 0x10
	ParamISO14443PICC  Parameter = 0x20
	ParamNoAmblePrefix Parameter = 0x40
)

// registerCache shadows CIU register values the device is known to hold.
// It belongs to one Device; commands that let the firmware reprogram the
// CIU drop it.
type registerCache struct {
	values map[Register]byte
}

func (c *registerCache) get(r Register) (byte, bool) {
	v, ok := c.values[r]
	return v, ok
}

func (c *registerCache) put(r Register, v byte) {
	if r.volatile() {
		return
	}
	if c.values == nil {
		c.values = make(map[Register]byte)
	}
	c.values[r] = v
}

func (c *registerCache) invalidate() {
	clear(c.values)
}

// ReadRegister returns the value of a CIU register. Cached values are
// returned without I/O.
func (d *Device) ReadRegister(ctx context.Context, reg Register) (byte, error) {
	if v, ok := d.regs.get(reg); ok {
		return v, nil
	}
	resp, err := d.Transceive(ctx, cmdReadRegister, []byte{byte(reg >> 8), byte(reg)})
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", reg, err)
	}
	if d.caps.registerStatusByte {
		// PN533 answers with a status byte first.
		if len(resp) < 2 {
			return 0, fmt.Errorf("read %s: %w: short answer % X", reg, ErrFrameCorrupted, resp)
		}
		if resp[0] != 0 {
			d.lastError = ErrorCode(resp[0] & 0x3f)
			return 0, fmt.Errorf("read %s: %w", reg, &ChipError{Command: cmdReadRegister, Code: d.lastError})
		}
		resp = resp[1:]
	}
	if len(resp) < 1 {
		return 0, fmt.Errorf("read %s: %w: empty answer", reg, ErrFrameCorrupted)
	}
	d.regs.put(reg, resp[0])
	return resp[0], nil
}

// SetRegister updates the bits of reg selected by mask to value. The write
// is skipped when the register already holds the result.
func (d *Device) SetRegister(ctx context.Context, reg Register, mask, value byte) error {
	current, err := d.ReadRegister(ctx, reg)
	if err != nil {
		return err
	}
	next := value | (current &^ mask)
	if next == current {
		return nil
	}
	if _, err := d.Transceive(ctx, cmdWriteRegister, []byte{byte(reg >> 8), byte(reg), next}); err != nil {
		return fmt.Errorf("write %s: %w", reg, err)
	}
	d.regs.put(reg, next)
	return nil
}

// SetParameters writes the whole parameters byte. The cached byte only
// changes when the chip accepted it.
func (d *Device) SetParameters(ctx context.Context, flags Parameter) error {
	if _, err := d.Transceive(ctx, cmdSetParameters, []byte{byte(flags)}); err != nil {
		return fmt.Errorf("set parameters 0x%02X: %w", byte(flags), err)
	}
	d.parameters = flags
	return nil
}

// SetParameter turns one parameter flag on or off, writing only on change.
func (d *Device) SetParameter(ctx context.Context, flag Parameter, enable bool) error {
	next := d.parameters &^ flag
	if enable {
		next |= flag
	}
	if next == d.parameters {
		return nil
	}
	return d.SetParameters(ctx, next)
}

// Parameters returns the cached parameters byte.
func (d *Device) Parameters() Parameter {
	return d.parameters
}

// SetTxBits programs how many bits of the last transmitted byte are sent.
// 0 sends whole bytes.
func (d *Device) SetTxBits(ctx context.Context, bits byte) error {
	if bits > 7 {
		return fmt.Errorf("%w: %d last bits", ErrInvalidArgument, bits)
	}
	if d.txBits == bits {
		return nil
	}
	if err := d.SetRegister(ctx, RegCIUBitFraming, symTxLastBits, bits); err != nil {
		return err
	}
	d.txBits = bits
	return nil
}
