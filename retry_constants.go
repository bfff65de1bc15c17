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

import "time"

// Connection retry constants control how Open retries a failing
// identification handshake.
const (
	// DefaultConnectionRetries is the number of attempts to connect to a device.
	DefaultConnectionRetries = 3
	// ConnectionInitialBackoff is the initial delay between connection attempts.
	ConnectionInitialBackoff = 100 * time.Millisecond
	// ConnectionMaxBackoff is the maximum delay between connection attempts.
	ConnectionMaxBackoff = 500 * time.Millisecond
	// ConnectionBackoffMultiplier is the exponential backoff multiplier.
	ConnectionBackoffMultiplier = 2.0
	// ConnectionJitter is the random jitter factor (0.0-1.0).
	ConnectionJitter = 0.1
	// ConnectionRetryTimeout is the overall timeout for all connection attempts.
	ConnectionRetryTimeout = 10 * time.Second
)

// Transceive defaults.
const (
	// DefaultTimeout bounds the wait for a response to commands that do not
	// wait on the RF field.
	DefaultTimeout = time.Second
	// DefaultNACKRetries is how often a NACKed command frame is sent again.
	DefaultNACKRetries = 1
	// DefaultTraceSize is the number of wire entries kept for error traces.
	DefaultTraceSize = 16
	// NACKRetryDelay is the pause before a NACKed frame is retransmitted.
	NACKRetryDelay = 5 * time.Millisecond
	// ReceivePollInterval is the longest single Receive call. Context
	// cancellation is noticed at least this often.
	ReceivePollInterval = 50 * time.Millisecond
	// AbortTimeout bounds sending the ACK that aborts a running command.
	AbortTimeout = 100 * time.Millisecond
	// CloseTimeout bounds the deselect and field-off sequence run by Close.
	CloseTimeout = 500 * time.Millisecond
)
