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
	"encoding/hex"
	"time"

	"github.com/ZaparooProject/go-pn53x"
)

// DetectionState is the state of the presence state machine.
type DetectionState int

const (
	// StateIdle means no target is known.
	StateIdle DetectionState = iota
	// StateDetected means the target answered the last cycle.
	StateDetected
	// StateMissing means the target did not answer but the removal timeout
	// has not passed yet.
	StateMissing
)

func (s DetectionState) String() string {
	switch s {
	case StateDetected:
		return "detected"
	case StateMissing:
		return "missing"
	default:
		return "idle"
	}
}

// TargetState tracks the target in front of the reader.
type TargetState struct {
	LastSeen       time.Time
	Target         *pn53x.Target
	LastUID        string
	DetectionState DetectionState
	Present        bool
}

func targetKey(t *pn53x.Target) string {
	return t.Modulation.String() + "/" + hex.EncodeToString(t.UID())
}

// Seen records that t answered at now and reports whether it replaced a
// different target.
func (s *TargetState) Seen(t *pn53x.Target, now time.Time) (changed bool) {
	key := targetKey(t)
	changed = s.Present && s.LastUID != key
	s.Present = true
	s.Target = t
	s.LastUID = key
	s.LastSeen = now
	s.DetectionState = StateDetected
	return changed
}

// Missed records an empty cycle at now and reports whether the target has
// now been gone longer than timeout.
func (s *TargetState) Missed(now time.Time, timeout time.Duration) (removed bool) {
	if !s.Present {
		return false
	}
	if now.Sub(s.LastSeen) < timeout {
		s.DetectionState = StateMissing
		return false
	}
	s.Reset()
	return true
}

// Reset forgets the target.
func (s *TargetState) Reset() {
	*s = TargetState{}
}
