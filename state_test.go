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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	d := &Device{}
	assert.Equal(t, StateIdle, d.State())

	require.NoError(t, d.beginPolling())
	assert.Equal(t, StatePolling, d.State())
	d.endPolling(false)
	assert.Equal(t, StateIdle, d.State())

	require.NoError(t, d.beginPolling())
	d.endPolling(true)
	assert.Equal(t, StateSelected, d.State())

	require.NoError(t, d.beginExchange(true))
	assert.Equal(t, StateExchanging, d.State())
	require.ErrorIs(t, d.beginPolling(), ErrInvalidArgument, "no polling mid exchange")
	d.endExchange()
	assert.Equal(t, StateSelected, d.State())

	d.release()
	assert.Equal(t, StateReleased, d.State())
	require.ErrorIs(t, d.beginExchange(true), ErrInvalidArgument)

	// raw exchanges do not need a target and do not change the state
	require.NoError(t, d.beginExchange(false))
	d.endExchange()
	assert.Equal(t, StateReleased, d.State())

	require.NoError(t, d.beginPolling())
	assert.Equal(t, StatePolling, d.State())
}

func TestRelease_FromIdleStaysIdle(t *testing.T) {
	t.Parallel()

	d := &Device{}
	d.release()
	assert.Equal(t, StateIdle, d.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateIdle:       "idle",
		StatePolling:    "polling",
		StateSelected:   "selected",
		StateExchanging: "exchanging",
		StateReleased:   "released",
		State(42):       "State(42)",
	}
	for s, want := range tests {
		assert.Equal(t, want, s.String())
	}
}
