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

package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	virt "github.com/ZaparooProject/go-pn53x/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRecoverer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		backoff     time.Duration
		maxAttempts int
		wantBackoff time.Duration
		wantMax     int
	}{
		{name: "defaults", wantBackoff: 500 * time.Millisecond, wantMax: 3},
		{name: "custom", backoff: time.Second, maxAttempts: 5, wantBackoff: time.Second, wantMax: 5},
		{name: "negative", backoff: -1, maxAttempts: -1, wantBackoff: 500 * time.Millisecond, wantMax: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewDefaultRecoverer(nil, nil, tt.backoff, tt.maxAttempts)
			assert.Equal(t, tt.wantBackoff, r.backoff)
			assert.Equal(t, tt.wantMax, r.maxAttempts)
		})
	}
}

func TestDefaultRecoverer_SoftReset(t *testing.T) {
	t.Parallel()

	dev, _, sim := connect(t, pn53x.ChipPN532)
	before := sim.CommandCount(0x02)

	r := NewDefaultRecoverer(dev, nil, time.Millisecond, 3)
	require.NoError(t, r.AttemptRecovery(context.Background()))
	assert.Same(t, dev, r.Device())
	assert.Equal(t, before+1, sim.CommandCount(0x02), "Init reads the firmware version again")
}

func TestDefaultRecoverer_SoftResetFailsNoReopen(t *testing.T) {
	t.Parallel()

	dev, tr, _ := connect(t, pn53x.ChipPN532)
	require.NoError(t, tr.Close())

	r := NewDefaultRecoverer(dev, nil, time.Millisecond, 2)
	err := r.AttemptRecovery(context.Background())
	require.ErrorIs(t, err, pn53x.ErrTransportClosed)
	assert.Same(t, dev, r.Device())
}

func TestDefaultRecoverer_Reconnect(t *testing.T) {
	t.Parallel()

	dev, tr, sim := connect(t, pn53x.ChipPN532)
	require.NoError(t, tr.Close())

	calls := 0
	reopen := func(ctx context.Context) (*pn53x.Device, error) {
		calls++
		return pn53x.Connect(ctx, virt.NewWireTransport(sim))
	}

	r := NewDefaultRecoverer(dev, reopen, time.Millisecond, 3)
	require.NoError(t, r.AttemptRecovery(context.Background()))
	t.Cleanup(func() { _ = r.Device().Close() })

	assert.Equal(t, 1, calls)
	assert.NotSame(t, dev, r.Device())
	assert.Nil(t, dev.Transport(), "the old device is closed")
	assert.Equal(t, pn53x.ChipPN532, r.Device().Chip())
}

func TestDefaultRecoverer_AllAttemptsFail(t *testing.T) {
	t.Parallel()

	dev, tr, _ := connect(t, pn53x.ChipPN532)
	require.NoError(t, tr.Close())

	errGone := errors.New("device gone")
	calls := 0
	reopen := func(context.Context) (*pn53x.Device, error) {
		calls++
		return nil, errGone
	}

	r := NewDefaultRecoverer(dev, reopen, time.Millisecond, 3)
	err := r.AttemptRecovery(context.Background())
	require.ErrorIs(t, err, errGone)
	assert.Equal(t, 3, calls)
}

func TestDefaultRecoverer_ContextCancellation(t *testing.T) {
	t.Parallel()

	dev, tr, _ := connect(t, pn53x.ChipPN532)
	require.NoError(t, tr.Close())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	reopen := func(context.Context) (*pn53x.Device, error) {
		calls++
		cancel()
		return nil, errors.New("not yet")
	}

	r := NewDefaultRecoverer(dev, reopen, time.Hour, 3)
	err := r.AttemptRecovery(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
