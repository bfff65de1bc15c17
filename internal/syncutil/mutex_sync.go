//go:build !deadlock

// Package syncutil provides the mutex types used by transports and the
// simulator. The default build uses sync.Mutex and sync.RWMutex; building
// with -tags=deadlock swaps in github.com/sasha-s/go-deadlock so lock-order
// problems between a session and its transport surface in tests.
package syncutil

import (
	"sync"
	"time"
)

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.RWMutex to expose its interface
type RWMutex struct {
	sync.RWMutex
}

// ConfigureDetection is a no-op without the deadlock tag.
func ConfigureDetection(time.Duration) {}

// DetectionEnabled reports whether mutexes are instrumented.
func DetectionEnabled() bool { return false }
