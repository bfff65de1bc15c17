//go:build deadlock

// Package syncutil provides the mutex types used by transports and the
// simulator. This file is compiled when building with -tags=deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}

// ConfigureDetection sets how long a goroutine may wait for a lock before
// go-deadlock reports it. Zero keeps the library default.
func ConfigureDetection(timeout time.Duration) {
	if timeout > 0 {
		deadlock.Opts.DeadlockTimeout = timeout
	}
}

// DetectionEnabled reports whether mutexes are instrumented.
func DetectionEnabled() bool { return true }
