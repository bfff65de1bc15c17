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
	"fmt"
	"sort"
	"strings"

	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
)

// Driver opens transports of one kind. Transport packages register their
// driver from init, so importing a transport package is enough to make its
// connection strings work:
//
//	import _ "github.com/ZaparooProject/go-pn53x/transport/uart"
//
//	dev, err := pn53x.Open(ctx, "uart:/dev/ttyUSB0")
type Driver struct {
	// Open connects to the device at path. An empty path means the first
	// device Scan finds.
	Open func(ctx context.Context, path string) (Transport, error)
	// Scan lists the paths of devices that might be PN53x chips. Optional.
	Scan func(ctx context.Context) ([]string, error)
	// Name is the connection string prefix, e.g. "uart".
	Name string
	// Description is a one line summary for listings.
	Description string
}

var (
	driversMu syncutil.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver makes a driver available by name. It panics if the name is
// empty, Open is nil or the name is already taken.
func RegisterDriver(drv Driver) {
	if drv.Name == "" || drv.Open == nil {
		panic("pn53x: RegisterDriver needs a name and an Open function")
	}
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[drv.Name]; dup {
		panic("pn53x: RegisterDriver called twice for driver " + drv.Name)
	}
	drivers[drv.Name] = drv
}

// Drivers returns the registered drivers sorted by name.
func Drivers() []Driver {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]Driver, 0, len(drivers))
	for _, drv := range drivers {
		out = append(out, drv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func lookupDriver(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	drv, ok := drivers[name]
	return drv, ok
}

// ParseConnString splits "driver:path" at the first colon. The path keeps
// any further colons, as in "usb:04cc:2533".
func ParseConnString(connstr string) (driver, path string, err error) {
	driver, path, _ = strings.Cut(strings.TrimSpace(connstr), ":")
	if driver == "" {
		return "", "", fmt.Errorf("%w: connection string %q names no driver", ErrInvalidArgument, connstr)
	}
	return driver, path, nil
}

// OpenTransport opens the transport named by a connection string.
func OpenTransport(ctx context.Context, connstr string) (Transport, error) {
	name, path, err := ParseConnString(connstr)
	if err != nil {
		return nil, err
	}
	drv, ok := lookupDriver(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoTransportDriver, name)
	}
	debugf("opening %s transport at %q", name, path)
	t, err := drv.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", connstr, err)
	}
	return t, nil
}

// ScanDevices asks every registered driver with a Scan function for devices
// and returns their connection strings. Drivers that fail are logged and
// skipped.
func ScanDevices(ctx context.Context) []string {
	var found []string
	for _, drv := range Drivers() {
		if drv.Scan == nil {
			continue
		}
		paths, err := drv.Scan(ctx)
		if err != nil {
			debugf("scan %s: %v", drv.Name, err)
			continue
		}
		for _, p := range paths {
			found = append(found, drv.Name+":"+p)
		}
	}
	return found
}

// Open opens the transport named by connstr and connects to the chip behind
// it. Opening and initialization are retried together with the RetryConfig
// from the options (DefaultRetryConfig when unset).
func Open(ctx context.Context, connstr string, opts ...Option) (*Device, error) {
	probe := &Device{config: *DefaultDeviceConfig()}
	for _, opt := range opts {
		if err := opt(probe); err != nil {
			return nil, err
		}
	}

	var dev *Device
	err := RetryWithConfig(ctx, probe.config.RetryConfig, func() error {
		t, err := OpenTransport(ctx, connstr)
		if err != nil {
			return err
		}
		dev, err = Connect(ctx, t, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}
