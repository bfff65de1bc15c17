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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pn53x/internal/frame"
)

// Transceive sends one command and returns the response data following the
// response code. For commands that answer with a status byte the data
// starts with it; a non-zero status is returned as a *ChipError.
//
// Every failure updates LastError. Protocol level failures carry the wire
// trace of the exchange (see GetTrace).
func (d *Device) Transceive(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	if d.transport == nil {
		return nil, ErrNotConnected
	}

	resp, err := d.exchange(ctx, cmd, params)
	if !preservesRegisters(cmd) {
		d.regs.invalidate()
	}
	if err != nil {
		d.lastError = codeFor(err)
		debugf("%s failed: %v", commandName(cmd), err)
		return nil, d.trace.WrapError(fmt.Errorf("%s: %w", commandName(cmd), err))
	}

	d.lastError = CodeSuccess
	if hasStatusByte(cmd) {
		if len(resp) == 0 {
			d.lastError = CodeIO
			return nil, fmt.Errorf("%s: %w: missing status byte", commandName(cmd), ErrFrameCorrupted)
		}
		if code := ErrorCode(resp[0] & 0x3f); code != CodeSuccess {
			d.lastError = code
			return nil, &ChipError{Command: cmd, Code: code}
		}
	}
	return resp, nil
}

// exchange runs the command/ACK/response handshake, sending the command
// again when the chip NACKs it.
func (d *Device) exchange(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	data := make([]byte, 0, len(params)+1)
	data = append(data, cmd)
	data = append(data, params...)
	extended := d.caps.extendedFrames && d.hasCapability(CapabilityExtendedFrames)
	tx, err := frame.Build(frame.HostToChip, data, extended)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	retry := &RetryConfig{
		MaxAttempts:       d.config.NACKRetries + 1,
		InitialBackoff:    NACKRetryDelay,
		MaxBackoff:        NACKRetryDelay,
		BackoffMultiplier: 1,
		ShouldRetry: func(err error) bool {
			return errors.Is(err, ErrNACKReceived)
		},
	}
	err = RetryWithConfig(ctx, retry, func() error {
		d.rx = d.rx[:0]
		if err := d.send(ctx, cmd, tx); err != nil {
			return err
		}
		return d.waitAck(ctx)
	})
	if err != nil {
		// cancelled while waiting to resend a NACKed frame
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return nil, err
	}

	var deadline time.Time
	if !waitsForRF(cmd) {
		deadline = time.Now().Add(d.config.Timeout)
	}
	return d.waitResponse(ctx, cmd, deadline)
}

func (d *Device) send(ctx context.Context, cmd byte, tx []byte) error {
	if err := ctx.Err(); err != nil {
		return contextError(ctx)
	}
	d.trace.RecordTX(tx, commandName(cmd))
	if err := d.transport.Send(ctx, tx); err != nil {
		switch {
		case ctx.Err() != nil:
			return contextError(ctx)
		case isTimeout(err):
			return fmt.Errorf("%w: send: %w", ErrTimeout, err)
		case isDeviceGoneError(err), errors.Is(err, ErrTransportClosed):
			return NewTransportError("send", d.port(), err, ErrorTypePermanent)
		default:
			return NewTransportError("send", d.port(), err, ErrorTypeTransient)
		}
	}
	return nil
}

// waitAck consumes the ACK or NACK frame that precedes every response.
func (d *Device) waitAck(ctx context.Context) error {
	deadline := time.Now().Add(d.config.Timeout)
	for {
		// Some transports deliver a longer run of 0x00 in front of a frame.
		for len(d.rx) > 3 && d.rx[0] == 0 && d.rx[1] == 0 && d.rx[2] == 0 {
			d.rx = d.rx[1:]
		}
		if len(d.rx) >= frame.AckLength {
			break
		}
		if err := d.fill(ctx, deadline); err != nil {
			return err
		}
	}

	if bytes.HasPrefix(frame.ErrorFrame, d.rx[:frame.AckLength]) {
		return d.waitErrorFrame(ctx, deadline)
	}
	kind, err := frame.ClassifyAck(d.rx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrACKMismatch, err)
	}
	d.rx = d.rx[frame.AckLength:]
	if kind == frame.KindNack {
		return ErrNACKReceived
	}
	return nil
}

// waitErrorFrame completes an error frame sent in place of the ACK.
func (d *Device) waitErrorFrame(ctx context.Context, deadline time.Time) error {
	for len(d.rx) < len(frame.ErrorFrame) {
		if err := d.fill(ctx, deadline); err != nil {
			return err
		}
	}
	if !bytes.Equal(d.rx[:len(frame.ErrorFrame)], frame.ErrorFrame) {
		return fmt.Errorf("%w: % X", ErrACKMismatch, d.rx[:len(frame.ErrorFrame)])
	}
	d.rx = d.rx[len(frame.ErrorFrame):]
	return ErrChipErrorFrame
}

// waitResponse reads the response frame of cmd. A zero deadline waits until
// ctx is done.
func (d *Device) waitResponse(ctx context.Context, cmd byte, deadline time.Time) ([]byte, error) {
	for {
		f, n, err := frame.Parse(d.rx)
		switch {
		case errors.Is(err, frame.ErrIncomplete):
			if err := d.fill(ctx, deadline); err != nil {
				return nil, err
			}
			continue
		case errors.Is(err, frame.ErrErrorFrame):
			d.rx = d.rx[n:]
			return nil, ErrChipErrorFrame
		case err != nil:
			return nil, fmt.Errorf("%w: %w", ErrFrameCorrupted, err)
		}
		d.rx = d.rx[n:]

		if f.Kind == frame.KindAck {
			// a repeated ACK; the response is still to come
			continue
		}
		if f.Kind != frame.KindInfo || f.TFI != frame.ChipToHost {
			return nil, fmt.Errorf("%w: unexpected %s frame with TFI %02X", ErrFrameCorrupted, f.Kind, f.TFI)
		}
		if len(f.Data) == 0 || f.Data[0] != cmd+1 {
			return nil, fmt.Errorf("%w: response code % X does not answer %02X",
				ErrFrameCorrupted, f.Data[:min(len(f.Data), 1)], cmd)
		}
		return f.Data[1:], nil
	}
}

// fill appends the next chunk from the transport to d.rx. It returns nil
// after a receive timeout as long as the deadline has not passed, so callers
// simply loop. A done context aborts the running command.
func (d *Device) fill(ctx context.Context, deadline time.Time) error {
	if ctx.Err() != nil {
		return d.abort(ctx)
	}
	wait := ReceivePollInterval
	if !deadline.IsZero() {
		left := time.Until(deadline)
		if left <= 0 {
			d.trace.RecordTimeout(fmt.Sprintf("%d bytes pending", len(d.rx)))
			return ErrTimeout
		}
		wait = min(wait, left)
	}

	chunk := frame.GetChunk()
	defer frame.PutChunk(chunk)

	n, err := d.transport.Receive(ctx, chunk, wait)
	if n > 0 {
		d.trace.RecordRX(chunk[:n], "")
		d.rx = append(d.rx, chunk[:n]...)
	}
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return d.abort(ctx)
	case isTimeout(err):
		return nil
	case isDeviceGoneError(err), errors.Is(err, ErrTransportClosed):
		return NewTransportError("receive", d.port(), err, ErrorTypePermanent)
	default:
		return NewTransportError("receive", d.port(), err, ErrorTypeTransient)
	}
}

// abort tells the chip to drop the running command by sending an ACK frame
// and reports why the context ended.
func (d *Device) abort(ctx context.Context) error {
	if d.hasCapability(CapabilityAbortWithACK) {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), AbortTimeout)
		defer cancel()
		d.trace.RecordTX(frame.AckFrame, "abort")
		if err := d.transport.Send(actx, frame.AckFrame); err != nil {
			debugf("abort ACK not sent: %v", err)
		}
	}
	d.rx = d.rx[:0]
	return contextError(ctx)
}

// hasCapability reports a transport capability. Transports that do not
// describe themselves are assumed to pass frames through unchanged: the ACK
// abort works, which every PN53x honours, and extended frames are left to
// the chip capability table.
func (d *Device) hasCapability(capability TransportCapability) bool {
	if checker, ok := d.transport.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return capability == CapabilityAbortWithACK || capability == CapabilityExtendedFrames
}

func (d *Device) port() string {
	if info, ok := d.transport.(TransportInfo); ok {
		return info.Port()
	}
	return ""
}
