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

// Package polling watches a reader for targets coming and going.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
)

// ErrSessionRunning is returned by Run while another Run is active.
var ErrSessionRunning = errors.New("polling session already running")

// Metrics tracks operational counters of a Session.
type Metrics struct {
	PollCycles      int64         // Total number of polling cycles
	PollErrors      int64         // Number of failed cycles
	TargetsDetected int64         // Number of detected and changed events
	Recoveries      int64         // Number of successful recoveries
	LastPollLatency time.Duration // Duration of last polling operation
}

// Session polls one device and reports targets through its callbacks.
// Callbacks run on the goroutine that called Run; an error returned by
// one of them ends Run.
type Session struct {
	OnTargetDetected func(t *pn53x.Target) error
	OnTargetChanged  func(t *pn53x.Target) error
	OnTargetRemoved  func()

	config     *Config
	device     *pn53x.Device
	recoverer  DeviceRecoverer
	pauseChan  chan struct{}
	resumeChan chan struct{}
	ackChan    chan struct{}
	state      TargetState
	stateMutex syncutil.RWMutex
	// lastPoll is only touched by the Run goroutine.
	lastPoll   time.Time

	pollCycles      atomic.Int64
	pollErrors      atomic.Int64
	targetsDetected atomic.Int64
	recoveries      atomic.Int64
	lastPollLatency atomic.Int64
	running         atomic.Bool
	isPaused        atomic.Bool
}

// NewSession creates a session for device. A nil config uses DefaultConfig.
func NewSession(device *pn53x.Device, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	return &Session{
		device:     device,
		config:     config,
		pauseChan:  make(chan struct{}, 1),
		resumeChan: make(chan struct{}, 1),
		ackChan:    make(chan struct{}, 1),
	}
}

// SetRecoverer enables recovery after fatal errors, repeated failures and
// host sleep. Without one those end Run.
func (s *Session) SetRecoverer(r DeviceRecoverer) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.recoverer = r
}

// Device returns the polled device, which changes when a recoverer
// reconnects.
func (s *Session) Device() *pn53x.Device {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.device
}

// State returns a copy of the presence state.
func (s *Session) State() TargetState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.state
}

// Metrics returns current operational metrics
func (s *Session) Metrics() Metrics {
	return Metrics{
		PollCycles:      s.pollCycles.Load(),
		PollErrors:      s.pollErrors.Load(),
		TargetsDetected: s.targetsDetected.Load(),
		Recoveries:      s.recoveries.Load(),
		LastPollLatency: time.Duration(s.lastPollLatency.Load()),
	}
}

// Run polls until ctx is done, a callback fails or the device cannot be
// recovered. It returns ctx.Err() when the context ends the session.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer s.running.Store(false)

	if err := s.prepare(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	consecutiveErrors := 0
	s.lastPoll = time.Now()
	for {
		if err := s.handleContextAndPause(ctx); err != nil {
			return err
		}

		// without a recoverer a host sleep is only logged; the next cycle
		// fails if the reader did not survive it
		if elapsed := time.Since(s.lastPoll); s.config.SleepRecovery.DetectSleep(elapsed, s.config.PollInterval) {
			pn53x.Debugf("polling: %s since last poll, assuming host sleep", elapsed)
			if s.hasRecoverer() {
				if err := s.recoverDevice(ctx, errHostSleep); err != nil {
					return err
				}
			}
		}
		s.lastPoll = time.Now()

		err := s.cycle(ctx)
		switch {
		case err == nil:
			consecutiveErrors = 0
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, errCallback):
			return err
		default:
			consecutiveErrors++
			if pn53x.IsFatal(err) || consecutiveErrors >= s.config.MaxPollErrors {
				if err := s.recoverDevice(ctx, err); err != nil {
					return err
				}
				consecutiveErrors = 0
			}
		}

		if err := s.waitForNextPollOrPause(ctx, ticker); err != nil {
			return err
		}
	}
}

// prepare puts the device in initiator mode with single-shot selection so
// a cycle returns at once when the field is empty.
func (s *Session) prepare(ctx context.Context) error {
	dev := s.Device()
	if err := dev.InitiatorInit(ctx); err != nil {
		return fmt.Errorf("failed to initialize initiator: %w", err)
	}
	if err := dev.Configure(ctx, pn53x.PropertyInfiniteSelect, false); err != nil {
		return fmt.Errorf("failed to disable infinite select: %w", err)
	}
	return nil
}

var (
	errCallback  = errors.New("callback error during polling")
	errHostSleep = errors.New("host sleep detected")
)

// cycle polls once and runs the state machine.
func (s *Session) cycle(ctx context.Context) error {
	start := time.Now()
	target, err := s.pollOnce(ctx)
	s.pollCycles.Add(1)
	s.lastPollLatency.Store(int64(time.Since(start)))
	if err != nil {
		s.pollErrors.Add(1)
		s.handleTargetMissed()
		return fmt.Errorf("target detection failed: %w", err)
	}
	if target == nil {
		s.handleTargetMissed()
		return nil
	}
	return s.handleTargetSeen(target)
}

func (s *Session) pollOnce(ctx context.Context) (*pn53x.Target, error) {
	dev := s.Device()
	for _, m := range s.config.Modulations {
		if !dev.Chip().Supports(m) {
			continue
		}
		t, err := dev.SelectPassiveTarget(ctx, m, nil)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}

func (s *Session) handleTargetSeen(t *pn53x.Target) error {
	s.stateMutex.Lock()
	wasPresent := s.state.Present
	changed := s.state.Seen(t, time.Now())
	onDetected, onChanged, onRemoved := s.OnTargetDetected, s.OnTargetChanged, s.OnTargetRemoved
	s.stateMutex.Unlock()

	// Call callbacks outside the lock to avoid potential deadlocks
	switch {
	case !wasPresent:
		s.targetsDetected.Add(1)
		return safeCallCallback(onDetected, t, "OnTargetDetected")
	case changed && onChanged != nil:
		s.targetsDetected.Add(1)
		return safeCallCallback(onChanged, t, "OnTargetChanged")
	case changed:
		// without OnTargetChanged a swap is a removal and a detection
		s.targetsDetected.Add(1)
		if onRemoved != nil {
			onRemoved()
		}
		return safeCallCallback(onDetected, t, "OnTargetDetected")
	default:
		return nil
	}
}

func (s *Session) handleTargetMissed() {
	s.stateMutex.Lock()
	removed := s.state.Missed(time.Now(), s.config.RemovalTimeout)
	onRemoved := s.OnTargetRemoved
	s.stateMutex.Unlock()

	if removed && onRemoved != nil {
		onRemoved()
	}
}

// forgetTarget drops the target after the device was reset, which turns
// the field off.
func (s *Session) forgetTarget() {
	s.stateMutex.Lock()
	wasPresent := s.state.Present
	s.state.Reset()
	onRemoved := s.OnTargetRemoved
	s.stateMutex.Unlock()

	if wasPresent && onRemoved != nil {
		onRemoved()
	}
}

func (s *Session) hasRecoverer() bool {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.recoverer != nil
}

// recoverDevice runs the recoverer after cause. Without a recoverer cause
// is returned.
func (s *Session) recoverDevice(ctx context.Context, cause error) error {
	s.stateMutex.RLock()
	r := s.recoverer
	s.stateMutex.RUnlock()
	if r == nil {
		return cause
	}

	pn53x.Debugf("polling: recovering after %v", cause)
	if err := r.AttemptRecovery(ctx); err != nil {
		return fmt.Errorf("recovery after %w failed: %w", cause, err)
	}
	s.stateMutex.Lock()
	s.device = r.Device()
	s.stateMutex.Unlock()
	s.recoveries.Add(1)
	s.forgetTarget()
	if err := s.prepare(ctx); err != nil {
		return err
	}
	s.lastPoll = time.Now()
	return nil
}

// safeCallCallback executes a callback with panic recovery
func safeCallCallback(callback func(*pn53x.Target) error, t *pn53x.Target, name string) (err error) {
	if callback == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", errCallback, name, r)
		}
	}()
	if cbErr := callback(t); cbErr != nil {
		return fmt.Errorf("%w: %s: %w", errCallback, name, cbErr)
	}
	return nil
}

// Pause stops polling after the current cycle and returns once the loop is
// idle, so the caller may use the device. It fails if ctx ends first.
func (s *Session) Pause(ctx context.Context) error {
	if !s.isPaused.CompareAndSwap(false, true) {
		return nil
	}
	// drop an acknowledgment left over from a cancelled Pause
	select {
	case <-s.ackChan:
	default:
	}
	select {
	case s.pauseChan <- struct{}{}:
	default:
	}
	select {
	case <-s.ackChan:
		return nil
	case <-ctx.Done():
		s.isPaused.Store(false)
		select {
		case <-s.pauseChan:
		default:
			// the loop took the signal; let it go again
			select {
			case s.resumeChan <- struct{}{}:
			default:
			}
		}
		return ctx.Err()
	}
}

// Resume restarts polling after Pause.
func (s *Session) Resume() {
	if !s.isPaused.CompareAndSwap(true, false) {
		return
	}
	select {
	case s.resumeChan <- struct{}{}:
	default:
	}
}

// waitForNextPollOrPause waits for the next poll interval or handles pause signals
func (s *Session) waitForNextPollOrPause(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ticker.C:
		return nil
	case <-s.pauseChan:
		return s.handlePauseSignal(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) handleContextAndPause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.pauseChan:
		return s.handlePauseSignal(ctx)
	default:
		return nil
	}
}

// handlePauseSignal sends acknowledgment and waits for resume
func (s *Session) handlePauseSignal(ctx context.Context) error {
	select {
	case s.ackChan <- struct{}{}:
	default:
	}
	select {
	case <-s.resumeChan:
		s.lastPoll = time.Now()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
