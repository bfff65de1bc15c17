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
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/spf13/cobra"
)

// modulationNames maps --modulation values.
var modulationNames = map[string]pn53x.Modulation{
	"iso14443a":    pn53x.ISO14443A106,
	"iso14443b":    pn53x.ISO14443B106,
	"iso14443b212": pn53x.ISO14443B212,
	"iso14443b424": pn53x.ISO14443B424,
	"iso14443b847": pn53x.ISO14443B847,
	"felica212":    pn53x.FeliCa212,
	"felica424":    pn53x.FeliCa424,
	"jewel":        pn53x.Jewel106,
}

func modulationList() string {
	names := make([]string, 0, len(modulationNames))
	for name := range modulationNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func parseModulations(names []string) ([]pn53x.Modulation, error) {
	out := make([]pn53x.Modulation, 0, len(names))
	for _, name := range names {
		m, ok := modulationNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown modulation %q (want one of %s)",
				pn53x.ErrInvalidArgument, name, modulationList())
		}
		out = append(out, m)
	}
	return out, nil
}

type pollOptions struct {
	modulations []string
	maxTargets  int
	timeout     time.Duration
	auto        bool
}

func newPollCmd(a *app) *cobra.Command {
	opts := &pollOptions{}
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "List the targets in the field",
		Long: `Poll once for passive targets of each modulation and print what answers.
Modulations the chip does not support are skipped. With --auto a PN532
polls by itself (InAutoPoll) until a target shows up or --timeout passes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mods, err := parseModulations(opts.modulations)
			if err != nil {
				return err
			}
			opts.timeout = a.timeout
			return a.withDevice(cmd, func(ctx context.Context, dev *pn53x.Device) error {
				return runPoll(ctx, cmd.OutOrStdout(), dev, mods, opts)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&opts.modulations, "modulation", "m", []string{"iso14443a"},
		"modulations to poll ("+modulationList()+")")
	cmd.Flags().IntVarP(&opts.maxTargets, "max", "n", 2, "maximum number of targets per modulation")
	cmd.Flags().BoolVar(&opts.auto, "auto", false, "let the chip poll by itself (PN532 only)")
	return cmd
}

func runPoll(ctx context.Context, out io.Writer, dev *pn53x.Device, mods []pn53x.Modulation, opts *pollOptions) error {
	if err := dev.InitiatorInit(ctx); err != nil {
		return fmt.Errorf("initiator init: %w", err)
	}

	if opts.auto {
		pollCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()
		targets, err := dev.PollTargets(pollCtx, mods, pn53x.AutoPollEndless, 2)
		if errors.Is(err, pn53x.ErrTimeout) {
			targets, err = nil, nil
		}
		if err != nil {
			return fmt.Errorf("auto poll: %w", err)
		}
		printTargets(out, targets)
		return nil
	}

	var found []*pn53x.Target
	for _, m := range mods {
		if !dev.Chip().Supports(m) {
			_, _ = fmt.Fprintf(out, "Skipping %s: not supported by %s\n", m, dev.Chip())
			continue
		}
		targets, err := dev.ListPassiveTargets(ctx, m, opts.maxTargets)
		if err != nil {
			return fmt.Errorf("poll %s: %w", m, err)
		}
		found = append(found, targets...)
	}
	printTargets(out, found)
	return nil
}

func printTargets(out io.Writer, targets []*pn53x.Target) {
	if len(targets) == 0 {
		_, _ = fmt.Fprintln(out, "No target found.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d target(s) found:\n", len(targets))
	for _, t := range targets {
		_, _ = fmt.Fprintf(out, "  %s\n", t)
		describeTarget(out, t)
	}
}

func describeTarget(out io.Writer, t *pn53x.Target) {
	switch info := t.Info.(type) {
	case *pn53x.ISO14443AInfo:
		_, _ = fmt.Fprintf(out, "    ATQA (SENS_RES): %02x %02x\n", info.ATQA[1], info.ATQA[0])
		_, _ = fmt.Fprintf(out, "    SAK (SEL_RES): %02x\n", info.SAK)
		if len(info.ATS) > 0 {
			_, _ = fmt.Fprintf(out, "    ATS (ATR): %s\n", hex.EncodeToString(info.ATS))
		}
	case *pn53x.ISO14443BInfo:
		_, _ = fmt.Fprintf(out, "    Application data: %s\n", hex.EncodeToString(info.ApplicationData[:]))
		_, _ = fmt.Fprintf(out, "    Protocol info: %s\n", hex.EncodeToString(info.ProtocolInfo[:]))
	case *pn53x.FeliCaInfo:
		_, _ = fmt.Fprintf(out, "    Pad: %s\n", hex.EncodeToString(info.Pad[:]))
		if info.Len > 18 {
			_, _ = fmt.Fprintf(out, "    System code: %s\n", hex.EncodeToString(info.SysCode[:]))
		}
	case *pn53x.JewelInfo:
		_, _ = fmt.Fprintf(out, "    SENS_RES: %s\n", hex.EncodeToString(info.SensRes[:]))
	case *pn53x.DEPInfo:
		_, _ = fmt.Fprintf(out, "    General bytes: %s\n", hex.EncodeToString(info.GeneralBytes))
	}
}
