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
)

// FirmwareVersion is the answer to GetFirmwareVersion.
type FirmwareVersion struct {
	Chip     Chip
	IC       byte
	Version  byte
	Revision byte
	// Support is the raw support byte; PN531 answers without one.
	Support          byte
	SupportIso14443a bool
	SupportIso14443b bool
	SupportIso18092  bool
}

func (f *FirmwareVersion) String() string {
	if f.Chip == ChipPN531 {
		return fmt.Sprintf("PN531 v%d.%d", f.Version, f.Revision)
	}
	name := "PN53x"
	if f.Chip == ChipPN532 || f.Chip == ChipPN533 {
		name = f.Chip.String()
	}
	return fmt.Sprintf("%s v%d.%d (0x%02x)", name, f.Version, f.Revision, f.Support)
}

// support byte bits
const (
	supportISO14443A = 0x01
	supportISO14443B = 0x02
	supportISO18092  = 0x04
)

// GetFirmwareVersion reads the firmware version. Unless the chip was fixed
// with WithChip, the answer also decides which chip generation the Device
// talks to: two bytes come from a PN531, otherwise the IC byte tells.
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	resp, err := d.Transceive(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, err
	}

	fw := &FirmwareVersion{}
	detected := ChipUnknown
	switch {
	case len(resp) == 2:
		detected = ChipPN531
		fw.Version, fw.Revision = resp[0], resp[1]
		fw.SupportIso14443a, fw.SupportIso18092 = true, true
	case len(resp) >= 4:
		fw.IC, fw.Version, fw.Revision, fw.Support = resp[0], resp[1], resp[2], resp[3]
		fw.SupportIso14443a = fw.Support&supportISO14443A != 0
		fw.SupportIso14443b = fw.Support&supportISO14443B != 0
		fw.SupportIso18092 = fw.Support&supportISO18092 != 0
		detected = chipFromIC(fw.IC)
	default:
		return nil, fmt.Errorf("GetFirmwareVersion: %w: %d byte answer", ErrFrameCorrupted, len(resp))
	}

	if !d.chipFixed && detected != ChipUnknown {
		d.setChip(detected)
	}
	fw.Chip = d.chip
	d.firmware = fw
	return fw, nil
}

// GeneralStatus is the answer to GetGeneralStatus.
type GeneralStatus struct {
	LastError    ErrorCode
	Targets      byte
	FieldPresent bool
}

// GetGeneralStatus reads the last error, the external field state and the
// number of targets the chip is handling.
func (d *Device) GetGeneralStatus(ctx context.Context) (*GeneralStatus, error) {
	resp, err := d.Transceive(ctx, cmdGetGeneralStatus, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 {
		return nil, fmt.Errorf("GetGeneralStatus: %w: %d byte answer", ErrFrameCorrupted, len(resp))
	}
	return &GeneralStatus{
		LastError:    ErrorCode(resp[0] & 0x3f),
		FieldPresent: resp[1] == 0x01,
		Targets:      resp[2],
	}, nil
}

// SAMConfiguration selects how the PN532 uses its secure access module.
// timeout is in units of 50 ms and only applies to virtual card mode.
func (d *Device) SAMConfiguration(ctx context.Context, mode SAMMode, timeout byte, useIRQ bool) error {
	if !d.caps.samConfiguration {
		return fmt.Errorf("SAMConfiguration on %s: %w", d.chip, ErrUnsupported)
	}
	if mode < SAMModeNormal || mode > SAMModeDualCard {
		return fmt.Errorf("%w: SAM mode %d", ErrInvalidArgument, mode)
	}
	_, err := d.Transceive(ctx, cmdSAMConfiguration, []byte{byte(mode), timeout, pick(useIRQ, 0x01, 0x00)})
	return err
}

// DiagnoseResult is the outcome of a Diagnose self test.
type DiagnoseResult struct {
	Data    []byte
	Test    DiagnoseTest
	Success bool
}

// Diagnose runs one of the chip's self tests. The echo back test never
// answers and is rejected.
func (d *Device) Diagnose(ctx context.Context, test DiagnoseTest, data []byte) (*DiagnoseResult, error) {
	if test == DiagnoseEchoBackTest {
		return nil, fmt.Errorf("%w: echo back test does not return", ErrInvalidArgument)
	}
	params := append([]byte{byte(test)}, data...)
	resp, err := d.Transceive(ctx, cmdDiagnose, params)
	if err != nil {
		return nil, err
	}

	result := &DiagnoseResult{Test: test, Data: resp}
	switch test {
	case DiagnoseCommunicationTest:
		result.Success = bytes.Equal(resp, params)
	case DiagnoseROMTest, DiagnoseRAMTest, DiagnosePollingTest:
		// 0x00 is OK; the polling test counts failures
		result.Success = len(resp) > 0 && resp[0] == 0x00
	default:
		result.Success = len(resp) > 0 && resp[0]&0x3f == 0x00
	}
	return result, nil
}

// PowerDown puts the chip to sleep until one of the sources in wakeUp
// (bit flags, see the chip manual) fires.
func (d *Device) PowerDown(ctx context.Context, wakeUp byte) error {
	_, err := d.Transceive(ctx, cmdPowerDown, []byte{wakeUp})
	return err
}
