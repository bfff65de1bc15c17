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

// Package testing provides a wire-level PN53x simulator for tests.
//
// VirtualChip implements io.ReadWriter and speaks the host link protocol of
// the PN531, PN532 and PN533: normal and extended information frames, the
// ACK/NACK handshake, the error frame and the ACK that aborts a running
// command. It keeps a CIU register file so raw exchanges honour the CRC,
// parity and bit framing registers, and forwards RF traffic to VirtualTag
// instances.
package testing

import (
	"bytes"
	"errors"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	"github.com/ZaparooProject/go-pn53x/pkg/bitutil"
)

// Command codes understood by the simulator.
const (
	cmdDiagnose              = 0x00
	cmdGetFirmwareVersion    = 0x02
	cmdGetGeneralStatus      = 0x04
	cmdReadRegister          = 0x06
	cmdWriteRegister         = 0x08
	cmdSetParameters         = 0x12
	cmdSAMConfiguration      = 0x14
	cmdPowerDown             = 0x16
	cmdRFConfiguration       = 0x32
	cmdInDataExchange        = 0x40
	cmdInCommunicateThru     = 0x42
	cmdInDeselect            = 0x44
	cmdInListPassiveTarget   = 0x4A
	cmdInRelease             = 0x52
	cmdInSelect              = 0x54
	cmdInAutoPoll            = 0x60
	cmdTgGetData             = 0x86
	cmdTgGetInitiatorCommand = 0x88
	cmdTgInitAsTarget        = 0x8C
	cmdTgSetData             = 0x8E
	cmdTgResponseToInitiator = 0x90
)

// Status codes returned in the first response byte.
const (
	statusOK       = 0x00
	statusTimeout  = 0x01
	statusParity   = 0x03
	statusReleased = 0x29
)

// SimulatorState is a snapshot of the simulated chip.
type SimulatorState struct {
	Parameters     byte
	SelectedTarget int // 0 when no target is selected
	ActiveTargets  int
	RFFieldOn      bool
	SAMConfigured  bool
	PowerDown      bool
	Pending        bool // a command is waiting on the RF side
}

// VirtualChip simulates a PN53x at the wire protocol level.
type VirtualChip struct {
	registers           map[pn53x.Register]byte
	commandCounts       map[byte]int
	pending             []byte
	lastResponse        []byte
	tags                []*VirtualTag
	active              []*VirtualTag
	initiatorCommands   [][]byte
	targetResponses     [][]byte
	targetInit          []byte
	firmware            []byte
	rxBuffer            bytes.Buffer
	txBuffer            bytes.Buffer
	chip                pn53x.Chip
	mu                  syncutil.Mutex
	selected            int
	aborts              int
	parameters          byte
	passiveRetries      byte
	fieldOn             bool
	samConfigured       bool
	powerDown           bool
	injectChecksumError bool
	nackNext            int
	dropNextACK         bool
	errorFrameNext      bool
}

// NewVirtualChip creates a simulator of the given chip generation with the
// RF field off and no tags.
func NewVirtualChip(chip pn53x.Chip) *VirtualChip {
	v := &VirtualChip{
		chip:          chip,
		commandCounts: make(map[byte]int),
	}
	v.resetLocked()
	return v
}

// NewVirtualPN532 creates a PN532 simulator.
func NewVirtualPN532() *VirtualChip {
	return NewVirtualChip(pn53x.ChipPN532)
}

func (v *VirtualChip) resetLocked() {
	v.rxBuffer.Reset()
	v.txBuffer.Reset()
	v.lastResponse = nil
	v.pending = nil
	v.active = nil
	v.selected = 0
	v.parameters = 0
	v.passiveRetries = 0xFF
	v.fieldOn = false
	v.samConfigured = false
	v.powerDown = false
	v.injectChecksumError = false
	v.nackNext = 0
	v.dropNextACK = false
	v.errorFrameNext = false
	v.initiatorCommands = nil
	v.targetResponses = nil
	v.targetInit = nil
	v.registers = map[pn53x.Register]byte{
		pn53x.RegCIUTxMode:     0x80,
		pn53x.RegCIURxMode:     0x80,
		pn53x.RegCIUTxAuto:     0x00,
		pn53x.RegCIUManualRCV:  0x00,
		pn53x.RegCIUStatus2:    0x00,
		pn53x.RegCIUControl:    0x00,
		pn53x.RegCIUBitFraming: 0x00,
	}
	switch v.chip {
	case pn53x.ChipPN531:
		v.firmware = []byte{0x04, 0x02}
	case pn53x.ChipPN533:
		v.firmware = []byte{0x33, 0x02, 0x08, 0x07}
	case pn53x.ChipPN532, pn53x.ChipUnknown:
		v.firmware = []byte{0x32, 0x01, 0x06, 0x07}
	}
	for _, tag := range v.tags {
		tag.reset()
	}
}

// Write receives bytes from the host. Complete frames are processed at
// once and their ACK and response queued for Read.
func (v *VirtualChip) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	v.processReceivedData()
	return len(data), nil
}

// Read returns queued bytes. It returns 0 and no error when nothing is
// queued, like a serial port whose read timeout expired.
func (v *VirtualChip) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, _ := v.txBuffer.Read(buf)
	return n, nil
}

// HasPendingResponse reports whether bytes are waiting to be read.
func (v *VirtualChip) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len() > 0
}

// AddTag puts a tag in the field. A command waiting on the RF side is
// retried.
func (v *VirtualChip) AddTag(tag *VirtualTag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = append(v.tags, tag)
	v.retryPending()
}

// SetTag replaces every tag with tag.
func (v *VirtualChip) SetTag(tag *VirtualTag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = []*VirtualTag{tag}
	v.active = nil
	v.selected = 0
	v.retryPending()
}

// RemoveAllTags empties the field.
func (v *VirtualChip) RemoveAllTags() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = nil
	v.active = nil
	v.selected = 0
}

// QueueInitiatorCommand makes an external initiator send cmd to the chip
// while it acts as a target.
func (v *VirtualChip) QueueInitiatorCommand(cmd []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.initiatorCommands = append(v.initiatorCommands, append([]byte(nil), cmd...))
	v.retryPending()
}

// TargetResponses returns what the chip sent to the external initiator.
func (v *VirtualChip) TargetResponses() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][]byte(nil), v.targetResponses...)
}

// TargetInitParams returns the parameters of the last TgInitAsTarget.
func (v *VirtualChip) TargetInitParams() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.targetInit...)
}

// SetFirmwareVersion overrides the GetFirmwareVersion answer.
func (v *VirtualChip) SetFirmwareVersion(version ...byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmware = append([]byte(nil), version...)
}

// InjectChecksumError corrupts the DCS of the next response.
func (v *VirtualChip) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksumError = true
}

// InjectNACK answers the next n command frames with a NACK instead of an
// ACK, so the host has to send them again.
func (v *VirtualChip) InjectNACK(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nackNext = n
}

// DropNextACK suppresses the ACK of the next command.
func (v *VirtualChip) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// InjectErrorFrame answers the next command frame with the error frame.
func (v *VirtualChip) InjectErrorFrame() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errorFrameNext = true
}

// Register returns a CIU register value.
func (v *VirtualChip) Register(reg pn53x.Register) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.registers[reg]
}

// CommandCount returns how many frames carrying cmd were processed.
func (v *VirtualChip) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.commandCounts[cmd]
}

// Aborts returns how many pending commands an ACK from the host cancelled.
func (v *VirtualChip) Aborts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.aborts
}

// GetState returns a snapshot of the simulator state.
func (v *VirtualChip) GetState() SimulatorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return SimulatorState{
		Parameters:     v.parameters,
		SelectedTarget: v.selected,
		ActiveTargets:  len(v.active),
		RFFieldOn:      v.fieldOn,
		SAMConfigured:  v.samConfigured,
		PowerDown:      v.powerDown,
		Pending:        v.pending != nil,
	}
}

// Reset returns the chip to its power-on state. Tags stay in the field.
func (v *VirtualChip) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetLocked()
	clear(v.commandCounts)
	v.aborts = 0
}

// processReceivedData consumes every complete frame in the receive buffer.
// Bytes in front of a start code, such as the HSU wake-up preamble, are
// dropped. Frames with bad checksums are ignored as the chip does.
func (v *VirtualChip) processReceivedData() {
	for {
		data := v.rxBuffer.Bytes()
		start := bytes.Index(data, []byte{frame.StartCode1, frame.StartCode2})
		if start < 0 {
			// keep a trailing 0x00 that may begin a start code
			if n := len(data); n > 0 && data[n-1] == frame.StartCode1 {
				v.rxBuffer.Next(n - 1)
			} else {
				v.rxBuffer.Reset()
			}
			return
		}

		f, n, err := frame.Parse(data[start:])
		switch {
		case errors.Is(err, frame.ErrIncomplete):
			v.rxBuffer.Next(start)
			return
		case err != nil:
			v.rxBuffer.Next(start + 2)
			continue
		}
		v.rxBuffer.Next(start + n)

		switch f.Kind {
		case frame.KindAck:
			if v.pending != nil {
				v.pending = nil
				v.aborts++
			}
		case frame.KindNack:
			if v.lastResponse != nil {
				v.txBuffer.Write(v.lastResponse)
			}
		case frame.KindInfo:
			if f.TFI == frame.HostToChip && len(f.Data) > 0 {
				v.processCommand(f.Data)
			}
		case frame.KindError:
		}
	}
}

// processCommand acknowledges a command frame and runs it. Commands that
// wait on the RF side and find nothing to do stay pending until a tag or an
// initiator shows up or the host aborts them.
func (v *VirtualChip) processCommand(data []byte) {
	cmd := data[0]
	v.commandCounts[cmd]++

	switch {
	case v.errorFrameNext:
		v.errorFrameNext = false
		v.txBuffer.Write(frame.ErrorFrame)
		return
	case v.nackNext > 0:
		v.nackNext--
		v.txBuffer.Write(frame.NackFrame)
		return
	case v.dropNextACK:
		v.dropNextACK = false
	default:
		v.txBuffer.Write(frame.AckFrame)
	}

	v.pending = nil
	v.powerDown = false
	v.run(append([]byte(nil), data...))
}

// run executes data (command code and parameters) and queues its answer.
func (v *VirtualChip) run(data []byte) {
	cmd, params := data[0], data[1:]
	resp, ok, hold := v.dispatch(cmd, params)
	switch {
	case hold:
		v.pending = data
	case !ok:
		v.lastResponse = frame.ErrorFrame
		v.txBuffer.Write(frame.ErrorFrame)
	default:
		v.sendResponse(cmd, resp)
	}
}

func (v *VirtualChip) retryPending() {
	if v.pending == nil {
		return
	}
	data := v.pending
	v.pending = nil
	v.run(data)
}

// dispatch returns the response payload, ok=false for a syntax error and
// hold=true when the command keeps waiting.
//
//nolint:cyclop,revive // command dispatch
func (v *VirtualChip) dispatch(cmd byte, params []byte) (resp []byte, ok, hold bool) {
	switch cmd {
	case cmdDiagnose:
		return append([]byte(nil), params...), true, false
	case cmdGetFirmwareVersion:
		return append([]byte(nil), v.firmware...), true, false
	case cmdGetGeneralStatus:
		return v.handleGetGeneralStatus(), true, false
	case cmdReadRegister:
		return v.handleReadRegister(params)
	case cmdWriteRegister:
		return v.handleWriteRegister(params)
	case cmdSetParameters:
		if len(params) != 1 {
			return nil, false, false
		}
		v.parameters = params[0]
		return nil, true, false
	case cmdSAMConfiguration:
		if v.chip != pn53x.ChipPN532 || len(params) < 1 || params[0] < 0x01 || params[0] > 0x04 {
			return nil, false, false
		}
		v.samConfigured = true
		return nil, true, false
	case cmdPowerDown:
		if len(params) < 1 || v.chip == pn53x.ChipPN531 {
			return nil, false, false
		}
		v.powerDown = true
		v.setField(false)
		return []byte{statusOK}, true, false
	case cmdRFConfiguration:
		return v.handleRFConfiguration(params)
	case cmdInListPassiveTarget:
		return v.handleInListPassiveTarget(params)
	case cmdInAutoPoll:
		if v.chip != pn53x.ChipPN532 {
			return nil, false, false
		}
		return v.handleInAutoPoll(params)
	case cmdInDataExchange:
		return v.handleInDataExchange(params)
	case cmdInCommunicateThru:
		return v.handleInCommunicateThru(params), true, false
	case cmdInDeselect, cmdInRelease:
		return v.handleRelease(params)
	case cmdInSelect:
		if len(params) != 1 {
			return nil, false, false
		}
		if int(params[0]) < 1 || int(params[0]) > len(v.active) {
			return []byte{statusReleased}, true, false
		}
		v.selected = int(params[0])
		return []byte{statusOK}, true, false
	case cmdTgInitAsTarget:
		return v.handleTgInitAsTarget(params)
	case cmdTgGetInitiatorCommand, cmdTgGetData:
		return v.handleTgReceive()
	case cmdTgResponseToInitiator, cmdTgSetData:
		v.targetResponses = append(v.targetResponses, append([]byte(nil), params...))
		return []byte{statusOK}, true, false
	default:
		return nil, false, false
	}
}

// sendResponse frames data as the answer to cmd.
func (v *VirtualChip) sendResponse(cmd byte, data []byte) {
	payload := append([]byte{cmd + 1}, data...)
	out, err := frame.Build(frame.ChipToHost, payload, v.chip == pn53x.ChipPN533)
	if err != nil {
		out = frame.ErrorFrame
	}
	v.lastResponse = out
	if v.injectChecksumError {
		v.injectChecksumError = false
		out = append([]byte(nil), out...)
		out[len(out)-2] ^= 0xFF
	}
	v.txBuffer.Write(out)
}

func (v *VirtualChip) handleGetGeneralStatus() []byte {
	field := byte(0)
	if v.fieldOn {
		field = 1
	}
	resp := []byte{statusOK, field, byte(len(v.active))}
	for i := range v.active {
		// Tg, BrRx, BrTx, modulation type
		resp = append(resp, byte(i+1), 0x00, 0x00, 0x00)
	}
	if v.chip == pn53x.ChipPN532 {
		resp = append(resp, 0x00) // SAM status
	}
	return resp
}

func (v *VirtualChip) handleReadRegister(params []byte) ([]byte, bool, bool) {
	if len(params) == 0 || len(params)%2 != 0 {
		return nil, false, false
	}
	var resp []byte
	if v.chip == pn53x.ChipPN533 {
		resp = append(resp, statusOK)
	}
	for i := 0; i < len(params); i += 2 {
		reg := pn53x.Register(uint16(params[i])<<8 | uint16(params[i+1]))
		resp = append(resp, v.registers[reg])
	}
	return resp, true, false
}

func (v *VirtualChip) handleWriteRegister(params []byte) ([]byte, bool, bool) {
	if len(params) == 0 || len(params)%3 != 0 {
		return nil, false, false
	}
	for i := 0; i < len(params); i += 3 {
		reg := pn53x.Register(uint16(params[i])<<8 | uint16(params[i+1]))
		v.registers[reg] = params[i+2]
	}
	return nil, true, false
}

func (v *VirtualChip) handleRFConfiguration(params []byte) ([]byte, bool, bool) {
	if len(params) < 2 {
		return nil, false, false
	}
	switch params[0] {
	case 0x01:
		v.setField(params[1]&0x01 != 0)
	case 0x05:
		if len(params) < 4 {
			return nil, false, false
		}
		v.passiveRetries = params[3]
	}
	return nil, true, false
}

// setField switches the RF field. Switching it off resets every tag.
func (v *VirtualChip) setField(on bool) {
	if v.fieldOn && !on {
		for _, tag := range v.tags {
			tag.reset()
		}
		v.active = nil
		v.selected = 0
	}
	v.fieldOn = on
}

// handleRelease serves InDeselect and InRelease. Deselected ISO14443-A
// tags are halted, so the next poll finds the next tag.
func (v *VirtualChip) handleRelease(params []byte) ([]byte, bool, bool) {
	if len(params) != 1 {
		return nil, false, false
	}
	tg := int(params[0])
	if tg > len(v.active) {
		return []byte{statusReleased}, true, false
	}
	for i, tag := range v.active {
		if tg == 0 || tg == i+1 {
			tag.halt()
		}
	}
	v.active = nil
	v.selected = 0
	return []byte{statusOK}, true, false
}

// fieldTags returns the present tags that have not been halted.
func (v *VirtualChip) fieldTags(uid []byte) []*VirtualTag {
	var out []*VirtualTag
	for _, tag := range v.tags {
		if !tag.Present || tag.state == tagHalted {
			continue
		}
		if len(uid) > 0 && !bytes.Equal(uid, tag.UID) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func (v *VirtualChip) handleInListPassiveTarget(params []byte) ([]byte, bool, bool) {
	if len(params) < 2 || params[0] == 0 || params[0] > 2 {
		return nil, false, false
	}
	maxTg, brTy, initData := int(params[0]), params[1], params[2:]
	if !v.supportsBrTy(brTy) {
		return nil, false, false
	}
	v.fieldOn = true
	v.active = nil
	v.selected = 0

	resp := []byte{0}
	if brTy == 0x00 {
		for _, tag := range v.fieldTags(initData) {
			if len(v.active) == maxTg {
				break
			}
			tag.activate()
			v.active = append(v.active, tag)
			resp = append(resp, v.targetDataISO14443A(byte(len(v.active)), tag, v.autoRATS())...)
		}
	}
	if len(v.active) == 0 && v.passiveRetries == 0xFF {
		return nil, true, true
	}
	resp[0] = byte(len(v.active))
	if len(v.active) > 0 {
		v.selected = 1
	}
	return resp, true, false
}

func (v *VirtualChip) supportsBrTy(brTy byte) bool {
	switch brTy {
	case 0x00, 0x01, 0x02:
		return true
	case 0x03, 0x04:
		return v.chip != pn53x.ChipPN531
	case 0x06, 0x07, 0x08:
		return v.chip == pn53x.ChipPN533
	default:
		return false
	}
}

func (v *VirtualChip) autoRATS() bool {
	return v.parameters&byte(pn53x.ParamAutoRATS) != 0
}

// handleInAutoPoll polls the ISO14443-A target types of the list. The
// first type that finds tags ends the poll.
func (v *VirtualChip) handleInAutoPoll(params []byte) ([]byte, bool, bool) {
	if len(params) < 3 {
		return nil, false, false
	}
	pollNr, types := params[0], params[2:]
	v.fieldOn = true
	v.active = nil
	v.selected = 0

	resp := []byte{0}
	for _, typ := range types {
		if typ != 0x00 && typ != 0x10 && typ != 0x20 {
			continue
		}
		for _, tag := range v.fieldTags(nil) {
			if len(v.active) == 2 {
				break
			}
			if typ == 0x20 && tag.ATS == nil {
				continue
			}
			tag.activate()
			v.active = append(v.active, tag)
			td := v.targetDataISO14443A(byte(len(v.active)), tag, typ == 0x20)
			resp = append(resp, typ, byte(len(td)))
			resp = append(resp, td...)
		}
		if len(v.active) > 0 {
			break
		}
	}
	if len(v.active) == 0 && pollNr == 0xFF {
		return nil, true, true
	}
	resp[0] = byte(len(v.active))
	if len(v.active) > 0 {
		v.selected = 1
	}
	return resp, true, false
}

func (v *VirtualChip) handleInDataExchange(params []byte) ([]byte, bool, bool) {
	if len(params) < 2 {
		return nil, false, false
	}
	tg := int(params[0])
	if tg < 1 || tg > len(v.active) {
		return []byte{statusReleased}, true, false
	}
	tag := v.active[tg-1]
	if !tag.Present {
		return []byte{statusTimeout}, true, false
	}
	resp, err := tag.exchange(params[1:])
	if err != nil {
		return []byte{statusTimeout}, true, false
	}
	if len(resp) == 1 && resp[0] == tagACK {
		// the chip consumes the 4-bit ACK
		return []byte{statusOK}, true, false
	}
	return append([]byte{statusOK}, resp...), true, false
}

// handleInCommunicateThru sends a raw frame into the field, honouring the
// TX last bits, parity and CRC settings of the CIU, and reports the RX last
// bits of the answer in CIU_CONTROL.
func (v *VirtualChip) handleInCommunicateThru(params []byte) []byte {
	if !v.fieldOn || len(params) == 0 {
		return []byte{statusTimeout}
	}
	bits := len(params) * 8
	if last := int(v.registers[pn53x.RegCIUBitFraming] & 0x07); last != 0 {
		bits = (len(params)-1)*8 + last
	}
	data := params
	parityOff := v.registers[pn53x.RegCIUManualRCV]&0x10 != 0
	if parityOff {
		unwrapped, dataBits, _, err := bitutil.Unwrap(params, bits)
		if err != nil {
			return []byte{statusParity}
		}
		data, bits = unwrapped, dataBits
	}

	crcOn := v.registers[pn53x.RegCIUTxMode]&0x80 != 0
	hasCRC := crcOn
	if !crcOn && bits%8 == 0 && bitutil.CheckCRCA(data) {
		data = data[:len(data)-2]
		bits -= 16
		hasCRC = true
	}

	var reply tagReply
	answered := false
	for _, tag := range v.tags {
		if r, ok := tag.transceive(data, bits, hasCRC); ok && !answered {
			reply, answered = r, true
		}
	}
	if !answered {
		return []byte{statusTimeout}
	}

	out, outBits := reply.data, reply.bits
	if reply.crc && !crcOn {
		out = bitutil.AppendCRCA(append([]byte(nil), out...))
		outBits += 16
	}
	if parityOff {
		wrapped, wrappedBits, err := bitutil.Wrap(out, outBits, bitutil.OddParityBytes(out))
		if err == nil {
			out, outBits = wrapped, wrappedBits
		}
	}
	control := v.registers[pn53x.RegCIUControl] &^ 0x07
	v.registers[pn53x.RegCIUControl] = control | byte(outBits%8)
	return append([]byte{statusOK}, out[:(outBits+7)/8]...)
}

func (v *VirtualChip) handleTgInitAsTarget(params []byte) ([]byte, bool, bool) {
	if len(params) < 1 {
		return nil, false, false
	}
	v.targetInit = append([]byte(nil), params...)
	if len(v.initiatorCommands) == 0 {
		return nil, true, true
	}
	cmd := v.initiatorCommands[0]
	v.initiatorCommands = v.initiatorCommands[1:]
	// 106 kbps, ISO14443-4 PICC framing
	return append([]byte{0x04}, cmd...), true, false
}

func (v *VirtualChip) handleTgReceive() ([]byte, bool, bool) {
	if len(v.initiatorCommands) == 0 {
		return nil, true, true
	}
	cmd := v.initiatorCommands[0]
	v.initiatorCommands = v.initiatorCommands[1:]
	return append([]byte{statusOK}, cmd...), true, false
}
