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
	"fmt"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/spf13/cobra"
)

func newListCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transport drivers and the devices they find",
		Long: `Print every registered transport driver, then scan for devices.
Scanning only looks at the host; devices are not opened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(out, "Drivers:")
			for _, drv := range pn53x.Drivers() {
				_, _ = fmt.Fprintf(out, "  %-6s %s\n", drv.Name, drv.Description)
			}

			found := pn53x.ScanDevices(cmd.Context())
			if len(found) == 0 {
				_, _ = fmt.Fprintln(out, "No devices found.")
				return nil
			}
			_, _ = fmt.Fprintln(out, "Devices:")
			for _, connstr := range found {
				_, _ = fmt.Fprintf(out, "  %s\n", connstr)
			}
			return nil
		},
	}
}
