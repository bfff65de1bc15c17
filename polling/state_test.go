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
	"testing"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/stretchr/testify/assert"
)

func isoATarget(uid ...byte) *pn53x.Target {
	return &pn53x.Target{
		Info:       &pn53x.ISO14443AInfo{UID: uid, ATQA: [2]byte{0x00, 0x04}, SAK: 0x08},
		Modulation: pn53x.ISO14443A106,
	}
}

func TestTargetState_Seen(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	var s TargetState

	assert.False(t, s.Seen(isoATarget(1, 2, 3, 4), now), "first target is not a change")
	assert.True(t, s.Present)
	assert.Equal(t, StateDetected, s.DetectionState)
	assert.Equal(t, "ISO/IEC 14443A (106 kbps)/01020304", s.LastUID)
	assert.Equal(t, now, s.LastSeen)

	assert.False(t, s.Seen(isoATarget(1, 2, 3, 4), now.Add(time.Second)))
	assert.Equal(t, now.Add(time.Second), s.LastSeen)

	assert.True(t, s.Seen(isoATarget(5, 6, 7, 8), now.Add(2*time.Second)))
	assert.Equal(t, []byte{5, 6, 7, 8}, s.Target.UID())

	// same UID on another technology is another target
	felica := &pn53x.Target{
		Info:       &pn53x.FeliCaInfo{ID: [8]byte{5, 6, 7, 8}},
		Modulation: pn53x.FeliCa212,
	}
	assert.True(t, s.Seen(felica, now.Add(3*time.Second)))
}

func TestTargetState_Missed(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	timeout := 500 * time.Millisecond

	tests := []struct {
		name        string
		present     bool
		elapsed     time.Duration
		wantRemoved bool
		wantState   DetectionState
	}{
		{name: "nothing known", elapsed: time.Hour, wantState: StateIdle},
		{name: "within timeout", present: true, elapsed: 100 * time.Millisecond, wantState: StateMissing},
		{name: "at timeout", present: true, elapsed: timeout, wantRemoved: true, wantState: StateIdle},
		{name: "past timeout", present: true, elapsed: time.Second, wantRemoved: true, wantState: StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var s TargetState
			if tt.present {
				s.Seen(isoATarget(1, 2, 3, 4), now)
			}
			assert.Equal(t, tt.wantRemoved, s.Missed(now.Add(tt.elapsed), timeout))
			assert.Equal(t, tt.wantState, s.DetectionState)
			if tt.wantRemoved {
				assert.Equal(t, TargetState{}, s)
			}
		})
	}
}

func TestDetectionState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "detected", StateDetected.String())
	assert.Equal(t, "missing", StateMissing.String())
}
