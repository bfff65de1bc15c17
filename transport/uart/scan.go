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

package uart

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/syncutil"
	"go.bug.st/serial/enumerator"
)

// knownBridges are USB serial bridges commonly soldered onto PN532 boards.
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

var (
	goodNames    = []string{"usbserial", "slab_usbtouart", "usbmodem", "ttyusb", "ttyacm"}
	nfcKeywords  = []string{"pn532", "nfc", "rfid", "13.56"}
	listPortsFn  = enumerator.GetDetailedPortsList
	blockedMu    syncutil.RWMutex
	blockedPorts []string
)

// Block excludes VID:PID pairs from Scan, for devices that misbehave when
// probed. Comparison is case insensitive.
func Block(vidpid ...string) {
	blockedMu.Lock()
	defer blockedMu.Unlock()
	for _, v := range vidpid {
		blockedPorts = append(blockedPorts, strings.ToUpper(strings.TrimSpace(v)))
	}
}

// Scan lists serial ports that are likely to have a PN532 behind them. It
// never opens a port.
func Scan(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ports, err := listPortsFn()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	names := filterPorts(ports)
	pn53x.Debugf("uart: %d of %d serial ports look like PN532 boards", len(names), len(ports))
	return names, nil
}

// filterPorts keeps the ports whose name or USB identity matches a known
// PN532 board, best match first.
func filterPorts(ports []*enumerator.PortDetails) []string {
	var likely, possible []string
	for _, port := range ports {
		if port == nil || port.Name == "" {
			continue
		}
		vidpid := strings.ToUpper(port.VID + ":" + port.PID)
		if port.IsUSB && isBlocked(vidpid) {
			continue
		}
		switch {
		case port.IsUSB && isLikelyPN532(vidpid, port.Product):
			likely = append(likely, port.Name)
		case matchesGoodName(port.Name):
			possible = append(possible, port.Name)
		}
	}
	return append(likely, possible...)
}

func isBlocked(vidpid string) bool {
	blockedMu.RLock()
	defer blockedMu.RUnlock()
	for _, blocked := range blockedPorts {
		if vidpid == blocked {
			return true
		}
	}
	return false
}

func isLikelyPN532(vidpid, product string) bool {
	for _, known := range knownBridges {
		if vidpid == known {
			return true
		}
	}
	lowerProduct := strings.ToLower(product)
	for _, keyword := range nfcKeywords {
		if strings.Contains(lowerProduct, keyword) {
			return true
		}
	}
	return false
}

func matchesGoodName(name string) bool {
	lowerName := strings.ToLower(name)
	for _, pattern := range goodNames {
		if strings.Contains(lowerName, pattern) {
			return true
		}
	}
	return false
}
