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

func TestPollTargets(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	dev, mock := connectedDevice(t, ChipPN532)

	felica := []byte{
		0x01, 0x12, 0x01,
		0x01, 0x2E, 0x3D, 0x4C, 0x5B, 0x6A, 0x79, 0x88,
		0x05, 0x31, 0x41, 0x59, 0x26, 0x53, 0x58, 0x97,
	}
	isoA := isoATargetData(1, 0x04, 0xA1, 0xB2, 0xC3)

	answer := []byte{0x02, byte(TargetTypeMifare), byte(len(isoA))}
	answer = append(answer, isoA...)
	answer = append(answer, byte(TargetTypeFeliCa212), byte(len(felica)))
	answer = append(answer, felica...)
	mock.SetResponse(cmdInAutoPoll, answer)

	targets, err := dev.PollTargets(ctx, []Modulation{ISO14443A106, FeliCa212}, 0x14, 0x02)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, ISO14443A106, targets[0].Modulation)
	assert.Equal(t, []byte{0x04, 0xA1, 0xB2, 0xC3}, targets[0].UID())
	assert.Equal(t, FeliCa212, targets[1].Modulation)
	assert.Equal(t, []byte{0x01, 0x2E, 0x3D, 0x4C, 0x5B, 0x6A, 0x79, 0x88}, targets[1].UID())
	assert.Equal(t, StateSelected, dev.State())

	_, params, err := mock.LastCommand()
	require.NoError(t, err)
	// ISO14443-4A is polled ahead of MIFARE
	assert.Equal(t, []byte{0x14, 0x02, 0x20, 0x10, 0x11}, params)
}

func TestAutoPoll_NothingFound(t *testing.T) {
	t.Parallel()

	dev, mock := connectedDevice(t, ChipPN532)
	mock.SetResponse(cmdInAutoPoll, []byte{0x00})

	targets, err := dev.AutoPoll(testContext(t), []TargetType{TargetTypeJewel106}, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Equal(t, StateIdle, dev.State())
}

func TestAutoPoll_SkipsGenericTypes(t *testing.T) {
	t.Parallel()

	dev, mock := connectedDevice(t, ChipPN532)
	isoA := isoATargetData(2, 0x04, 0x01, 0x02, 0x03)
	answer := []byte{0x02, byte(TargetTypeGenericPassive106), 0x02, 0x01, 0x00}
	answer = append(answer, byte(TargetTypeISO14443A106), byte(len(isoA)))
	answer = append(answer, isoA...)
	mock.SetResponse(cmdInAutoPoll, answer)

	targets, err := dev.AutoPoll(testContext(t),
		[]TargetType{TargetTypeGenericPassive106, TargetTypeISO14443A106}, AutoPollEndless, 1)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, []byte{0x04, 0x01, 0x02, 0x03}, targets[0].UID())
}

func TestAutoPoll_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		types   []TargetType
		chip    Chip
		count   byte
		period  byte
		answer  []byte
		io      bool
	}{
		{name: "pn533", chip: ChipPN533, types: []TargetType{TargetTypeMifare}, count: 1, period: 1, wantErr: ErrUnsupported},
		{name: "no_types", chip: ChipPN532, count: 1, period: 1, wantErr: ErrInvalidArgument},
		{
			name:    "too_many_types",
			chip:    ChipPN532,
			types:   make([]TargetType, 16),
			count:   1,
			period:  1,
			wantErr: ErrInvalidArgument,
		},
		{name: "zero_period", chip: ChipPN532, types: []TargetType{TargetTypeMifare}, count: 1, wantErr: ErrInvalidArgument},
		{
			name:    "period_too_long",
			chip:    ChipPN532,
			types:   []TargetType{TargetTypeMifare},
			count:   1,
			period:  16,
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "truncated_answer",
			chip:    ChipPN532,
			types:   []TargetType{TargetTypeMifare},
			count:   1,
			period:  1,
			answer:  []byte{0x01, 0x10, 0x09, 0x01},
			io:      true,
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "empty_answer",
			chip:    ChipPN532,
			types:   []TargetType{TargetTypeMifare},
			count:   1,
			period:  1,
			answer:  []byte{},
			io:      true,
			wantErr: ErrFrameCorrupted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dev, mock := connectedDevice(t, tt.chip)
			if tt.answer != nil {
				mock.SetResponse(cmdInAutoPoll, tt.answer)
			}
			_, err := dev.AutoPoll(testContext(t), tt.types, tt.count, tt.period)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.io, mock.TotalCalls() > 0)
		})
	}
}

func TestPollTargets_UnmappedModulation(t *testing.T) {
	t.Parallel()

	dev, mock := connectedDevice(t, ChipPN532)
	_, err := dev.PollTargets(testContext(t), []Modulation{ISO14443B847}, 1, 1)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Zero(t, mock.TotalCalls())
}
