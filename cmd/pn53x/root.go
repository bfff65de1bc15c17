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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/spf13/cobra"
)

const defaultTimeout = 5 * time.Second

var errNoDevice = errors.New("no PN53x device found")

// app holds the persistent flags shared by every command.
type app struct {
	device  string
	logDir  string
	timeout time.Duration
	debug   bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pn53x",
		Short: "PN531/PN532/PN533 reader tool",
		Long: `Identify NXP PN53x NFC chips and poll for targets.

A device is named by a connection string "<driver>:<path>". Without
--device the first device any driver finds is used.

Examples:
  pn53x list                                  # drivers and devices found
  pn53x info -d uart:/dev/ttyUSB0             # chip, firmware and self test
  pn53x poll -d usb: -m iso14443a,felica212   # list targets in the field
  pn53x anticol -d i2c:/dev/i2c-1             # ISO14443-A anti-collision
  pn53x watch -d spi:SPI0.0                   # report targets coming and going`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.debug {
				pn53x.SetDebugEnabled(true)
			}
			if a.logDir == "" {
				return nil
			}
			path, err := pn53x.InitSessionLog(a.logDir)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Session log: %s\n", path)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.device, "device", "d", "", "connection string, e.g. uart:/dev/ttyUSB0 (auto-detect if empty)")
	flags.DurationVarP(&a.timeout, "timeout", "t", defaultTimeout, "timeout of each operation")
	flags.BoolVar(&a.debug, "debug", false, "enable debug output")
	flags.StringVar(&a.logDir, "log-dir", "", "write a session log with all debug output to this directory")

	root.AddCommand(
		newInfoCmd(a),
		newListCmd(a),
		newPollCmd(a),
		newAnticolCmd(a),
		newStressCmd(a),
		newWatchCmd(a),
	)
	return root
}

// open connects to the --device connection string, or to the first device
// the registered drivers find.
func (a *app) open(ctx context.Context) (*pn53x.Device, error) {
	connstr := a.device
	if connstr == "" {
		found := pn53x.ScanDevices(ctx)
		if len(found) == 0 {
			return nil, errNoDevice
		}
		connstr = found[0]
		pn53x.Debugf("auto-detected %s", connstr)
	}

	dev, err := pn53x.Open(ctx, connstr, pn53x.WithTimeout(a.timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", connstr, err)
	}
	return dev, nil
}

// withDevice runs fn on an open device and closes it afterwards.
func (a *app) withDevice(cmd *cobra.Command, fn func(ctx context.Context, dev *pn53x.Device) error) error {
	ctx := cmd.Context()
	dev, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Failed to close device: %v\n", err)
		}
	}()

	err = fn(ctx, dev)
	if te := pn53x.GetTrace(err); te != nil && a.debug {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wire trace:\n%s\n", te.FormatTrace())
	}
	return err
}
