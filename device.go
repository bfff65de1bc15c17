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

package pn53x

import (
	"context"
	"fmt"
	"time"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures connection retries in Open.
	RetryConfig *RetryConfig
	// Timeout bounds the ACK and the response of commands that do not wait
	// for an RF event. Those that do are bounded by the caller's context.
	Timeout time.Duration
	// NACKRetries is how often a NACKed command frame is sent again.
	NACKRetries int
	// TraceSize is the number of wire entries attached to errors.
	TraceSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig: DefaultRetryConfig(),
		Timeout:     DefaultTimeout,
		NACKRetries: DefaultNACKRetries,
		TraceSize:   DefaultTraceSize,
	}
}

// Option configures a Device in New and Connect.
type Option func(*Device) error

// WithTimeout sets DeviceConfig.Timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout %v", ErrInvalidArgument, timeout)
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithNACKRetries sets DeviceConfig.NACKRetries. 0 fails on the first NACK.
func WithNACKRetries(n int) Option {
	return func(d *Device) error {
		if n < 0 {
			return fmt.Errorf("%w: %d NACK retries", ErrInvalidArgument, n)
		}
		d.config.NACKRetries = n
		return nil
	}
}

// WithRetryConfig sets DeviceConfig.RetryConfig.
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		d.config.RetryConfig = config
		return nil
	}
}

// WithTraceSize sets DeviceConfig.TraceSize.
func WithTraceSize(n int) Option {
	return func(d *Device) error {
		d.config.TraceSize = n
		return nil
	}
}

// WithChip fixes the chip generation instead of detecting it from the
// firmware version.
func WithChip(chip Chip) Option {
	return func(d *Device) error {
		if _, ok := chipCapabilities[chip]; !ok {
			return fmt.Errorf("%w: chip %s", ErrInvalidArgument, chip)
		}
		d.setChip(chip)
		d.chipFixed = true
		return nil
	}
}

// Device is a session with one PN53x chip.
//
// Thread Safety: Device is NOT thread-safe. The register cache is read and
// written around each command, so callers sharing a Device between
// goroutines must hold their own lock around every call.
type Device struct {
	transport    Transport
	trace        *TraceBuffer
	firmware     *FirmwareVersion
	regs         registerCache
	rx           []byte
	config       DeviceConfig
	caps         capabilities
	chip         Chip
	state        State
	lastError    ErrorCode
	parameters   Parameter
	txBits       byte
	chipFixed    bool
	handleCRC    bool
	handleParity bool
	easyFraming  bool
}

// New creates a Device on transport without talking to the chip. Call Init
// before using it, or use Connect.
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidArgument)
	}
	d := &Device{
		transport:    transport,
		config:       *DefaultDeviceConfig(),
		handleCRC:    true,
		handleParity: true,
	}
	if hinter, ok := transport.(ChipHinter); ok {
		d.setChip(hinter.ChipHint())
	} else {
		d.setChip(ChipUnknown)
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	var kind, port string
	if info, ok := transport.(TransportInfo); ok {
		kind, port = string(info.Type()), info.Port()
	}
	d.trace = NewTraceBuffer(kind, port, d.config.TraceSize)
	return d, nil
}

// Connect creates a Device on transport and runs Init. The transport is
// closed when either step fails.
func Connect(ctx context.Context, transport Transport, opts ...Option) (*Device, error) {
	d, err := New(transport, opts...)
	if err != nil {
		if transport != nil {
			_ = transport.Close()
		}
		return nil, err
	}
	if err := d.Init(ctx); err != nil {
		_ = transport.Close()
		d.transport = nil
		return nil, fmt.Errorf("failed to initialize %s: %w", d.chip, err)
	}
	return d, nil
}

// Init identifies the chip and puts it into a known state: no pending TX
// bits, CRC and parity handled by the chip, Crypto1 off and the default
// parameters.
func (d *Device) Init(ctx context.Context) error {
	fw, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return err
	}
	debugf("found %s", fw)

	if d.caps.samConfiguration {
		if err := d.SAMConfiguration(ctx, SAMModeNormal, 0, false); err != nil {
			return err
		}
	}

	// The last TX bits are unknown after power up.
	d.txBits = 0
	if err := d.SetRegister(ctx, RegCIUBitFraming, symTxLastBits, 0x00); err != nil {
		return err
	}
	if err := d.Configure(ctx, PropertyHandleCRC, true); err != nil {
		return err
	}
	if err := d.Configure(ctx, PropertyHandleParity, true); err != nil {
		return err
	}
	if err := d.Configure(ctx, PropertyActivateCrypto1, false); err != nil {
		return err
	}
	// The parameters byte cannot be read back, so it is written once here
	// and cached from then on.
	if err := d.SetParameters(ctx, ParamAutoATRRes|ParamAutoRATS); err != nil {
		return err
	}
	d.state = StateIdle
	return nil
}

// Close deselects all targets, switches the RF field off and closes the
// transport. Errors from the first two steps are only logged.
func (d *Device) Close() error {
	if d.transport == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
	defer cancel()
	if err := d.Deselect(ctx, 0); err != nil {
		debugf("close: deselect: %v", err)
	}
	if err := d.Configure(ctx, PropertyActivateField, false); err != nil {
		debugf("close: field off: %v", err)
	}

	err := d.transport.Close()
	d.transport = nil
	d.state = StateIdle
	d.regs.invalidate()
	if err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

func (d *Device) setChip(chip Chip) {
	d.chip = chip
	d.caps = chip.caps()
}

// Transport returns the underlying transport, or nil after Close.
func (d *Device) Transport() Transport {
	return d.transport
}

// Chip returns the chip generation.
func (d *Device) Chip() Chip {
	return d.chip
}

// Firmware returns the version read by Init, or nil before it.
func (d *Device) Firmware() *FirmwareVersion {
	return d.firmware
}

// State returns the selection state.
func (d *Device) State() State {
	return d.state
}

// LastError returns the status of the last command: a chip status code or
// one of the host side codes.
func (d *Device) LastError() ErrorCode {
	return d.lastError
}

// StrError describes LastError.
func (d *Device) StrError() string {
	return d.lastError.String()
}

// Config returns a copy of the device configuration.
func (d *Device) Config() DeviceConfig {
	return d.config
}

// SetTimeout sets DeviceConfig.Timeout.
func (d *Device) SetTimeout(timeout time.Duration) error {
	return WithTimeout(timeout)(d)
}

// HandlesCRC reports whether the chip appends and checks CRC bytes.
func (d *Device) HandlesCRC() bool {
	return d.handleCRC
}

// HandlesParity reports whether the chip generates and checks parity bits.
func (d *Device) HandlesParity() bool {
	return d.handleParity
}

// EasyFraming reports whether exchanges go through the chip's protocol
// handling (InDataExchange, TgGetData, TgSetData).
func (d *Device) EasyFraming() bool {
	return d.easyFraming
}
