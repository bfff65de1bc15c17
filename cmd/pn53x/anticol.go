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
	"io"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/anticol"
	"github.com/spf13/cobra"
)

func newAnticolCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "anticol",
		Short: "Run ISO14443-A anti-collision by hand",
		Long: `Send REQA, the SELECT cascade, RATS and HALT as raw frames with the CRC
computed on the host and print every frame on the air. R: lines come from
the reader, T: lines from the tag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDevice(cmd, func(ctx context.Context, dev *pn53x.Device) error {
				return runAnticol(ctx, cmd.OutOrStdout(), dev, quiet)
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the frames")
	return cmd
}

func runAnticol(ctx context.Context, out io.Writer, dev *pn53x.Device, quiet bool) error {
	var opts []anticol.Option
	if !quiet {
		opts = append(opts, anticol.WithTracer(func(dir anticol.Direction, data []byte, bits int) {
			_, _ = fmt.Fprintf(out, "%s: %s\n", dir, formatBits(data, bits))
		}))
	}

	res, err := anticol.Run(ctx, dev, opts...)
	if err != nil {
		return fmt.Errorf("anti-collision: %w", err)
	}
	_, _ = fmt.Fprintf(out, "\nFound tag with\n")
	_, _ = fmt.Fprintf(out, " UID: %x\n", res.UID)
	_, _ = fmt.Fprintf(out, "ATQA: %s\n", res.ATQAString())
	_, _ = fmt.Fprintf(out, " SAK: %02x\n", res.SAK)
	if res.ATS != nil {
		_, _ = fmt.Fprintf(out, " ATS: %x\n", res.ATS)
	}
	return nil
}

// formatBits prints whole bytes in hex and a trailing partial byte with its
// bit count, as in "26 (7)".
func formatBits(data []byte, bits int) string {
	whole := bits / 8
	s := ""
	for i := 0; i < whole && i < len(data); i++ {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%02x", data[i])
	}
	if rest := bits % 8; rest != 0 && whole < len(data) {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%02x (%d)", data[whole], rest)
	}
	return s
}
