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

// Package anticol runs ISO14443-A anti-collision by hand: REQA, the
// cascade levels of SELECT with CRC and BCC computed on the host, an
// optional RATS and a final HALT. It works on any PN53x whose CRC handling
// can be switched off.
package anticol

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/pkg/bitutil"
)

// ISO14443-A commands
const (
	cmdREQA      = 0x26
	nvbAnticol   = 0x20
	nvbSelect    = 0x70
	cascadeTag   = 0x88
	sakCascade   = 0x04
	sakISO14443  = 0x20
	maxCascade   = 3
	reqaBits     = 7
	selUIDLength = 5 // four UID bytes and BCC
)

var selCodes = [maxCascade]byte{0x93, 0x95, 0x97}

var (
	ratsFrame = []byte{0xe0, 0x50, 0xbc, 0xa5}
	haltFrame = []byte{0x50, 0x00, 0x57, 0xcd}
)

var (
	// ErrNoTag means nothing answered REQA.
	ErrNoTag = errors.New("no tag available")
	// ErrBadBCC means the UID check byte of an anti-collision answer is wrong.
	ErrBadBCC = errors.New("UID check byte mismatch")
	// ErrBadCRC means a CRC_A protected answer failed its check.
	ErrBadCRC = errors.New("CRC_A mismatch")
)

// Result is what anti-collision learned about the tag.
type Result struct {
	UID  []byte
	ATS  []byte
	ATQA [2]byte
	SAK  byte
}

// ATQAString prints the ATQA most significant byte first.
func (r *Result) ATQAString() string {
	return fmt.Sprintf("%02x %02x", r.ATQA[1], r.ATQA[0])
}

func (r *Result) String() string {
	s := fmt.Sprintf("UID %x ATQA %s SAK %02x", r.UID, r.ATQAString(), r.SAK)
	if r.ATS != nil {
		s += fmt.Sprintf(" ATS %x", r.ATS)
	}
	return s
}

// Direction tells a Tracer which way a frame went.
type Direction int

const (
	// Reader frames go from the PN53x to the tag.
	Reader Direction = iota
	// Tag frames are answers.
	Tag
)

func (d Direction) String() string {
	if d == Reader {
		return "R"
	}
	return "T"
}

// Tracer sees every frame of the exchange.
type Tracer func(dir Direction, data []byte, bits int)

type config struct {
	trace Tracer
	rats  bool
	halt  bool
}

func (c *config) frame(dir Direction, data []byte, bits int) {
	if c.trace != nil {
		c.trace(dir, data, bits)
	}
}

// Option changes how Run talks to the tag.
type Option func(*config)

// WithTracer reports every frame to fn.
func WithTracer(fn Tracer) Option {
	return func(c *config) {
		c.trace = fn
	}
}

// WithoutRATS skips the ATS request even when the tag supports ISO14443-4.
func WithoutRATS() Option {
	return func(c *config) {
		c.rats = false
	}
}

// WithoutHalt leaves the tag active after selection.
func WithoutHalt() Option {
	return func(c *config) {
		c.halt = false
	}
}

// Run selects one tag on dev. The field is cycled first, so tags that were
// active before start over. dev is left with CRC handling and easy framing
// off; call InitiatorInit to go back to normal operation.
func Run(ctx context.Context, dev *pn53x.Device, opts ...Option) (*Result, error) {
	cfg := config{rats: true, halt: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := prepare(ctx, dev); err != nil {
		return nil, err
	}

	rx, err := transmitBits(ctx, dev, &cfg, []byte{cmdREQA}, reqaBits)
	if err != nil {
		if errors.Is(err, pn53x.ErrChipStatus) {
			return nil, fmt.Errorf("%w: %w", ErrNoTag, err)
		}
		return nil, err
	}
	if len(rx.Data) < 2 {
		return nil, fmt.Errorf("%w: ATQA of %d bits", pn53x.ErrFrameCorrupted, rx.Bits)
	}

	res := &Result{ATQA: [2]byte{rx.Data[0], rx.Data[1]}}
	for level := 0; level < maxCascade; level++ {
		part, sak, err := selectLevel(ctx, dev, &cfg, selCodes[level])
		if err != nil {
			return nil, fmt.Errorf("cascade level %d: %w", level+1, err)
		}
		res.SAK = sak
		if part[0] == cascadeTag && sak&sakCascade != 0 {
			res.UID = append(res.UID, part[1:4]...)
			continue
		}
		res.UID = append(res.UID, part[:4]...)
		break
	}
	pn53x.Debugf("anticol: selected %x", res.UID)

	if cfg.rats && res.SAK&sakISO14443 != 0 {
		ats, err := transmitBytes(ctx, dev, &cfg, ratsFrame)
		if err != nil {
			return nil, fmt.Errorf("RATS: %w", err)
		}
		if !bitutil.CheckCRCA(ats) {
			return nil, fmt.Errorf("RATS: %w", ErrBadCRC)
		}
		res.ATS = ats[:len(ats)-2]
	}

	if cfg.halt {
		// a halted tag does not answer, so the chip reports a timeout
		if _, err := transmitBytes(ctx, dev, &cfg, haltFrame); err != nil && !errors.Is(err, pn53x.ErrChipStatus) {
			return nil, fmt.Errorf("HALT: %w", err)
		}
	}
	return res, nil
}

// prepare drops the field for a while and switches to raw frames with the
// CRC computed here. Parity stays with the chip.
func prepare(ctx context.Context, dev *pn53x.Device) error {
	if err := dev.InitiatorInit(ctx); err != nil {
		return fmt.Errorf("initiator init: %w", err)
	}
	steps := []struct {
		p  pn53x.Property
		on bool
	}{
		{pn53x.PropertyActivateField, false},
		{pn53x.PropertyHandleCRC, false},
		{pn53x.PropertyHandleParity, true},
		{pn53x.PropertyEasyFraming, false},
		{pn53x.PropertyActivateField, true},
	}
	for _, s := range steps {
		if err := dev.Configure(ctx, s.p, s.on); err != nil {
			return fmt.Errorf("configure %s: %w", s.p, err)
		}
	}
	return nil
}

// selectLevel runs ANTICOLLISION and SELECT for one cascade level and
// returns the four UID bytes with their BCC, and the SAK.
func selectLevel(ctx context.Context, dev *pn53x.Device, cfg *config, sel byte) ([]byte, byte, error) {
	part, err := transmitBytes(ctx, dev, cfg, []byte{sel, nvbAnticol})
	if err != nil {
		return nil, 0, err
	}
	if len(part) != selUIDLength {
		return nil, 0, fmt.Errorf("%w: %d byte UID answer", pn53x.ErrFrameCorrupted, len(part))
	}
	if part[0]^part[1]^part[2]^part[3] != part[4] {
		return nil, 0, ErrBadBCC
	}

	cmd := append([]byte{sel, nvbSelect}, part...)
	sak, err := transmitBytes(ctx, dev, cfg, bitutil.AppendCRCA(cmd))
	if err != nil {
		return nil, 0, err
	}
	if len(sak) != 3 || !bitutil.CheckCRCA(sak) {
		return nil, 0, fmt.Errorf("SAK: %w", ErrBadCRC)
	}
	return part, sak[0], nil
}

func transmitBits(
	ctx context.Context, dev *pn53x.Device, cfg *config, data []byte, bits int,
) (pn53x.BitFrame, error) {
	cfg.frame(Reader, data, bits)
	rx, err := dev.TransceiveBits(ctx, pn53x.BitFrame{Data: data, Bits: bits})
	if err != nil {
		return pn53x.BitFrame{}, fmt.Errorf("transceive bits: %w", err)
	}
	cfg.frame(Tag, rx.Data, rx.Bits)
	return rx, nil
}

func transmitBytes(ctx context.Context, dev *pn53x.Device, cfg *config, data []byte) ([]byte, error) {
	cfg.frame(Reader, data, len(data)*8)
	rx, err := dev.TransceiveBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("transceive bytes: %w", err)
	}
	cfg.frame(Tag, rx, len(rx)*8)
	return rx, nil
}
