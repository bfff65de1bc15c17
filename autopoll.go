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
	"context"
	"fmt"
)

// InAutoPoll limits
const (
	// AutoPollEndless as poll count polls until a target is found.
	AutoPollEndless  = 0xFF
	maxAutoPollTypes = 15
	maxAutoPollFound = 2
)

// PollTargets lets a PN532 poll for the given modulations by itself and
// returns up to two targets. pollCount is the number of polling rounds
// (AutoPollEndless for no limit); period is the time between rounds in
// units of 150 ms (1 to 15).
//
// ISO14443-A is polled both as ISO14443-4 and as MIFARE so ISO14443-4
// cards are reported with their ATS.
func (d *Device) PollTargets(
	ctx context.Context, modulations []Modulation, pollCount, period byte,
) ([]*Target, error) {
	types := make([]TargetType, 0, len(modulations)+1)
	for _, m := range modulations {
		tt, err := TargetTypeFor(m)
		if err != nil {
			return nil, err
		}
		if tt == TargetTypeMifare {
			types = append(types, TargetTypeISO14443A106)
		}
		types = append(types, tt)
	}
	return d.AutoPoll(ctx, types, pollCount, period)
}

// AutoPoll runs InAutoPoll with explicit target types. Found targets of a
// generic type cannot be decoded and are skipped.
func (d *Device) AutoPoll(ctx context.Context, types []TargetType, pollCount, period byte) ([]*Target, error) {
	if !d.caps.autoPoll {
		d.lastError = CodeUnsupported
		return nil, fmt.Errorf("InAutoPoll on %s: %w", d.chip, ErrUnsupported)
	}
	if len(types) == 0 || len(types) > maxAutoPollTypes {
		return nil, fmt.Errorf("%w: %d target types", ErrInvalidArgument, len(types))
	}
	if pollCount == 0 || period == 0 || period > 0x0F {
		return nil, fmt.Errorf("%w: poll count %d period %d", ErrInvalidArgument, pollCount, period)
	}

	params := make([]byte, 0, 2+len(types))
	params = append(params, pollCount, period)
	for _, tt := range types {
		params = append(params, byte(tt))
	}

	if err := d.beginPolling(); err != nil {
		return nil, err
	}
	resp, err := d.Transceive(ctx, cmdInAutoPoll, params)
	if err != nil {
		d.endPolling(false)
		return nil, err
	}
	targets, err := d.decodeAutoPoll(resp)
	d.endPolling(len(targets) > 0)
	return targets, err
}

// decodeAutoPoll reads NbTg followed by Type, length and TargetData for
// every target.
func (d *Device) decodeAutoPoll(resp []byte) ([]*Target, error) {
	if len(resp) == 0 {
		return nil, fmt.Errorf("InAutoPoll: %w: empty answer", ErrFrameCorrupted)
	}
	found := min(int(resp[0]), maxAutoPollFound)
	r := &targetReader{buf: resp, pos: 1}

	targets := make([]*Target, 0, found)
	for range found {
		tt := TargetType(r.byte())
		data := r.next(int(r.byte()))
		if r.err != nil {
			return targets, fmt.Errorf("InAutoPoll: %w", r.err)
		}
		m, err := tt.Modulation()
		if err != nil {
			debugf("auto poll: skipping target type 0x%02X: %v", byte(tt), err)
			continue
		}
		info, err := DecodeTargetData(d.chip, m.Type, data)
		if err != nil {
			return targets, fmt.Errorf("InAutoPoll %s target: %w", m, err)
		}
		targets = append(targets, &Target{Info: info, Modulation: m})
	}
	return targets, nil
}
