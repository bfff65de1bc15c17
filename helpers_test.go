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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestDevice returns a device on a mock of chip that skipped Init. The
// register file of the mock starts zeroed and the cache empty.
func newTestDevice(t *testing.T, chip Chip, opts ...Option) (*Device, *MockTransport) {
	t.Helper()
	mock := NewMockTransportFor(chip)
	dev, err := New(mock, opts...)
	require.NoError(t, err)
	return dev, mock
}

// connectedDevice runs the full Connect sequence on a mock and resets the
// mock's counters afterwards.
func connectedDevice(t *testing.T, chip Chip, opts ...Option) (*Device, *MockTransport) {
	t.Helper()
	mock := NewMockTransportFor(chip)
	dev, err := Connect(testContext(t), mock, opts...)
	require.NoError(t, err)
	mock.Reset()
	return dev, mock
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// isoATargetData is InListPassiveTarget target data for a PN532: Tg, ATQA,
// SAK, UID length and UID.
func isoATargetData(tg byte, uid ...byte) []byte {
	out := []byte{tg, 0x00, 0x04, 0x08, byte(len(uid))}
	return append(out, uid...)
}
