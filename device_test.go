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
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transport Transport
		wantErr   error
		name      string
		opts      []Option
		wantChip  Chip
	}{
		{name: "pn532_hint", transport: NewMockTransport(), wantChip: ChipPN532},
		{name: "pn533_hint", transport: NewMockTransportFor(ChipPN533), wantChip: ChipPN533},
		{
			name:      "fixed_chip_overrides_hint",
			transport: NewMockTransport(),
			opts:      []Option{WithChip(ChipPN531)},
			wantChip:  ChipPN531,
		},
		{name: "nil_transport", wantErr: ErrInvalidArgument},
		{
			name:      "unknown_fixed_chip",
			transport: NewMockTransport(),
			opts:      []Option{WithChip(ChipUnknown)},
			wantErr:   ErrInvalidArgument,
		},
		{
			name:      "zero_timeout",
			transport: NewMockTransport(),
			opts:      []Option{WithTimeout(0)},
			wantErr:   ErrInvalidArgument,
		},
		{
			name:      "negative_nack_retries",
			transport: NewMockTransport(),
			opts:      []Option{WithNACKRetries(-1)},
			wantErr:   ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dev, err := New(tt.transport, tt.opts...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, dev)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.transport, dev.Transport())
			assert.Equal(t, tt.wantChip, dev.Chip())
			assert.Equal(t, StateIdle, dev.State())
		})
	}
}

func TestDeviceConfig(t *testing.T) {
	t.Parallel()

	def := DefaultDeviceConfig()
	assert.Equal(t, DefaultTimeout, def.Timeout)
	assert.Equal(t, DefaultNACKRetries, def.NACKRetries)
	assert.NotNil(t, def.RetryConfig)

	retry := &RetryConfig{MaxAttempts: 7}
	dev, err := New(NewMockTransport(),
		WithTimeout(250*time.Millisecond),
		WithNACKRetries(4),
		WithRetryConfig(retry),
		WithTraceSize(3),
	)
	require.NoError(t, err)

	cfg := dev.Config()
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 4, cfg.NACKRetries)
	assert.Same(t, retry, cfg.RetryConfig)
	assert.Equal(t, 3, cfg.TraceSize)

	require.NoError(t, dev.SetTimeout(time.Second))
	assert.Equal(t, time.Second, dev.Config().Timeout)
	require.ErrorIs(t, dev.SetTimeout(-time.Second), ErrInvalidArgument)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		firmware    string
		chip        Chip
		samCalls    int
		paramsAfter Parameter
	}{
		{name: "pn531", chip: ChipPN531, firmware: "PN531 v4.2", paramsAfter: ParamAutoATRRes | ParamAutoRATS},
		{name: "pn532", chip: ChipPN532, firmware: "PN532 v1.6 (0x07)", samCalls: 1, paramsAfter: ParamAutoATRRes | ParamAutoRATS},
		{name: "pn533", chip: ChipPN533, firmware: "PN533 v2.8 (0x07)", paramsAfter: ParamAutoATRRes | ParamAutoRATS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockTransportFor(tt.chip)
			dev, err := Connect(testContext(t), mock)
			require.NoError(t, err)

			assert.Equal(t, tt.chip, dev.Chip())
			require.NotNil(t, dev.Firmware())
			assert.Equal(t, tt.firmware, dev.Firmware().String())
			assert.Equal(t, tt.samCalls, mock.GetCallCount(cmdSAMConfiguration))
			assert.Equal(t, tt.paramsAfter, dev.Parameters())
			assert.True(t, dev.HandlesCRC())
			assert.True(t, dev.HandlesParity())
			assert.Equal(t, byte(0x80), mock.RegisterValue(RegCIUTxMode))
			assert.Equal(t, byte(0x80), mock.RegisterValue(RegCIURxMode))
			assert.Equal(t, StateIdle, dev.State())
		})
	}
}

func TestConnect_DetectsChipWithoutHint(t *testing.T) {
	t.Parallel()

	// a transport that does not implement ChipHinter
	mock := NewMockTransportFor(ChipPN533)
	dev, err := Connect(testContext(t), struct{ Transport }{mock})
	require.NoError(t, err)
	assert.Equal(t, ChipPN533, dev.Chip())
}

func TestConnect_ClosesTransportOnFailure(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetError(cmdGetFirmwareVersion, errors.New("no answer"))

	dev, err := Connect(testContext(t), mock)
	require.Error(t, err)
	assert.Nil(t, dev)
	assert.Contains(t, err.Error(), "failed to initialize")
	require.ErrorIs(t, mock.Send(context.Background(), frame.AckFrame), ErrTransportClosed)
}

func TestInit_RegisterTraffic(t *testing.T) {
	t.Parallel()

	dev, mock := newTestDevice(t, ChipPN532)
	require.NoError(t, dev.Init(testContext(t)))

	assert.Equal(t, 1, mock.GetCallCount(cmdGetFirmwareVersion))
	// BIT_FRAMING, TX_MODE, RX_MODE, MANUAL_RCV, STATUS2
	assert.Equal(t, 5, mock.GetCallCount(cmdReadRegister))
	// only the CRC bits differ from the zeroed register file
	assert.Equal(t, 2, mock.GetCallCount(cmdWriteRegister))
	assert.Equal(t, 1, mock.GetCallCount(cmdSetParameters))

	// running it again only touches what Init cannot know
	mock.Reset()
	require.NoError(t, dev.Init(testContext(t)))
	assert.Equal(t, 0, mock.GetCallCount(cmdWriteRegister))
}

func TestClose(t *testing.T) {
	t.Parallel()

	dev, mock := connectedDevice(t, ChipPN532)
	require.NoError(t, dev.Close())

	assert.Equal(t, 1, mock.GetCallCount(cmdInDeselect))
	cmd, params, err := mock.LastCommand()
	require.NoError(t, err)
	assert.Equal(t, byte(cmdRFConfiguration), cmd)
	assert.Equal(t, []byte{0x01, 0x00}, params)
	assert.Nil(t, dev.Transport())

	// closing twice is harmless
	require.NoError(t, dev.Close())
}

func TestClose_IgnoresChipErrors(t *testing.T) {
	t.Parallel()

	dev, mock := connectedDevice(t, ChipPN532)
	mock.SetResponse(cmdInDeselect, []byte{0x27})

	require.NoError(t, dev.Close())
	assert.Nil(t, dev.Transport())
}

func TestLastError(t *testing.T) {
	t.Parallel()

	dev, mock := connectedDevice(t, ChipPN532)
	assert.Equal(t, CodeSuccess, dev.LastError())
	assert.Equal(t, "Success", dev.StrError())

	mock.SetResponse(cmdInDataExchange, []byte{0x01})
	_, err := dev.Transceive(testContext(t), cmdInDataExchange, []byte{0x01})
	require.Error(t, err)
	assert.Equal(t, CodeRFTimeout, dev.LastError())
	assert.Equal(t, "Timeout", dev.StrError())

	// the next successful command clears it
	_, err = dev.GetGeneralStatus(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, dev.LastError())
}
