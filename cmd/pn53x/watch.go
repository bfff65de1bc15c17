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
	"io"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/polling"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	modulations    []string
	interval       time.Duration
	removalTimeout time.Duration
	count          int
}

func newWatchCmd(a *app) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report targets as they arrive and leave",
		Long: `Poll continuously and print a line when a target is detected, replaced
or removed. Runs until interrupted, or until --count targets were seen.
A reader that stops answering is reset and, failing that, reopened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mods, err := parseModulations(opts.modulations)
			if err != nil {
				return err
			}
			return a.withDevice(cmd, func(ctx context.Context, dev *pn53x.Device) error {
				return runWatch(ctx, cmd.OutOrStdout(), a, dev, mods, opts)
			})
		},
	}
	def := polling.DefaultConfig()
	cmd.Flags().StringSliceVarP(&opts.modulations, "modulation", "m", []string{"iso14443a"},
		"modulations to poll, in order ("+modulationList()+")")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", def.PollInterval, "time between polling cycles")
	cmd.Flags().DurationVar(&opts.removalTimeout, "removal-timeout", def.RemovalTimeout,
		"how long a target may be unseen before it counts as removed")
	cmd.Flags().IntVarP(&opts.count, "count", "c", 0, "stop after this many targets (0 runs until interrupted)")
	return cmd
}

func runWatch(
	ctx context.Context, out io.Writer, a *app, dev *pn53x.Device, mods []pn53x.Modulation, opts *watchOptions,
) error {
	cfg := polling.DefaultConfig()
	cfg.Modulations = mods
	cfg.PollInterval = opts.interval
	cfg.RemovalTimeout = opts.removalTimeout

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := polling.NewSession(dev, cfg)
	session.SetRecoverer(polling.NewDefaultRecoverer(dev, a.open,
		cfg.SleepRecovery.RecoveryBackoff, cfg.SleepRecovery.MaxRecoveryAttempts))

	seen := 0
	report := func(event string, t *pn53x.Target) error {
		_, _ = fmt.Fprintf(out, "%s: %s\n", event, t)
		describeTarget(out, t)
		seen++
		if opts.count > 0 && seen >= opts.count {
			cancel()
		}
		return nil
	}
	session.OnTargetDetected = func(t *pn53x.Target) error { return report("Detected", t) }
	session.OnTargetChanged = func(t *pn53x.Target) error { return report("Changed", t) }
	session.OnTargetRemoved = func() { _, _ = fmt.Fprintln(out, "Removed") }

	err := session.Run(ctx)
	// a reconnect leaves the caller holding the closed original
	if current := session.Device(); current != dev {
		_ = current.Close()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
