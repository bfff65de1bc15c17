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

package main

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/spf13/cobra"
)

// communication test payload, every bit pattern the link must carry
var echoPayload = []byte{0x00, 0xFF, 0x55, 0xAA, 0x01, 0x80, 0x7E, 0x81}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show chip, firmware and status of a reader",
		Long: `Identify the chip, print its firmware version and general status and
run the communication line self test.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDevice(cmd, func(ctx context.Context, dev *pn53x.Device) error {
				return runInfo(ctx, cmd, dev)
			})
		},
	}
}

func runInfo(ctx context.Context, cmd *cobra.Command, dev *pn53x.Device) error {
	out := cmd.OutOrStdout()

	if info, ok := dev.Transport().(pn53x.TransportInfo); ok {
		_, _ = fmt.Fprintf(out, "Transport: %s %s\n", info.Type(), info.Port())
	}
	_, _ = fmt.Fprintf(out, "Chip:      %s\n", dev.Chip())

	fw, err := dev.GetFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read firmware version: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Firmware:  %s\n", fw)
	if dev.Chip() != pn53x.ChipPN531 {
		_, _ = fmt.Fprintf(out, "Supports:  ISO14443A=%t ISO14443B=%t ISO18092=%t\n",
			fw.SupportIso14443a, fw.SupportIso14443b, fw.SupportIso18092)
	}

	status, err := dev.GetGeneralStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read general status: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Status:    %s, field %t, %d target(s)\n",
		status.LastError, status.FieldPresent, status.Targets)

	res, err := dev.Diagnose(ctx, pn53x.DiagnoseCommunicationTest, echoPayload)
	if err != nil {
		return fmt.Errorf("communication test: %w", err)
	}
	result := "OK"
	if !res.Success {
		result = "FAILED"
	}
	_, _ = fmt.Fprintf(out, "Self test: %s\n", result)
	return nil
}
