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

import "fmt"

// State is the position of a Device in the initiator selection lifecycle.
type State int

const (
	// StateIdle means no target is selected.
	StateIdle State = iota
	// StatePolling means a discovery command is in flight.
	StatePolling
	// StateSelected means a target is selected and ready for exchanges.
	StateSelected
	// StateExchanging means a data exchange with the selected target is in
	// flight.
	StateExchanging
	// StateReleased means the target was deselected or released. The next
	// selection starts over from idle.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSelected:
		return "selected"
	case StateExchanging:
		return "exchanging"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// beginPolling enters Polling from any state that is not mid exchange.
func (d *Device) beginPolling() error {
	if d.state == StateExchanging {
		return fmt.Errorf("%w: cannot poll while %s", ErrInvalidArgument, d.state)
	}
	d.state = StatePolling
	return nil
}

// endPolling leaves Polling for Selected when a target answered, Idle
// otherwise.
func (d *Device) endPolling(found bool) {
	if found {
		d.state = StateSelected
	} else {
		d.state = StateIdle
	}
}

// beginExchange checks that an exchange routed to a selected target can
// start. Raw exchanges through InCommunicateThru do not need a selection.
func (d *Device) beginExchange(needsTarget bool) error {
	if needsTarget && d.state != StateSelected {
		return fmt.Errorf("%w: no selected target (%s)", ErrInvalidArgument, d.state)
	}
	if d.state == StateSelected {
		d.state = StateExchanging
	}
	return nil
}

// endExchange returns from Exchanging to Selected.
func (d *Device) endExchange() {
	if d.state == StateExchanging {
		d.state = StateSelected
	}
}

// release marks the selection as dropped.
func (d *Device) release() {
	if d.state != StateIdle {
		d.state = StateReleased
	}
}
