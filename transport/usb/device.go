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

package usb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-pn53x"
	"github.com/ZaparooProject/go-pn53x/internal/frame"
	"github.com/google/gousb"
)

// Model is a known PN53x based USB reader.
type Model struct {
	Name    string
	Vendor  gousb.ID
	Product gousb.ID
	Chip    pn53x.Chip
}

// Models lists the readers the driver opens.
var Models = []Model{
	{Vendor: 0x04CC, Product: 0x0531, Chip: pn53x.ChipPN531, Name: "Philips / USB TAMA"},
	{Vendor: 0x04CC, Product: 0x2533, Chip: pn53x.ChipPN533, Name: "NXP / PN533"},
	{Vendor: 0x04E6, Product: 0x5591, Chip: pn53x.ChipPN533, Name: "SCM Micro / SCL3711-NFC&RW"},
	{Vendor: 0x054C, Product: 0x0193, Chip: pn53x.ChipPN531, Name: "Sony / PN531"},
	{Vendor: 0x1FD3, Product: 0x0608, Chip: pn53x.ChipPN533, Name: "ASK / LoGO"},
}

// modelFor returns the model with the given IDs.
func modelFor(vendor, product gousb.ID) (Model, bool) {
	for _, m := range Models {
		if m.Vendor == vendor && m.Product == product {
			return m, true
		}
	}
	return Model{}, false
}

// selector picks a device from a path.
type selector struct {
	vendor, product gousb.ID
	bus, address    int
	byID, byAddress bool
}

// parsePath reads "vvvv:pppp" (hex) or "bbb:aaa" (decimal). The two forms
// differ by the width of their fields.
func parsePath(path string) (selector, error) {
	if path == "" {
		return selector{}, nil
	}
	a, b, ok := strings.Cut(path, ":")
	if !ok {
		return selector{}, fmt.Errorf("%w: USB path %q is not vid:pid or bus:address", pn53x.ErrInvalidArgument, path)
	}
	if len(a) == 4 && len(b) == 4 {
		vid, err1 := strconv.ParseUint(a, 16, 16)
		pid, err2 := strconv.ParseUint(b, 16, 16)
		if err := errors.Join(err1, err2); err != nil {
			return selector{}, fmt.Errorf("%w: USB path %q: %w", pn53x.ErrInvalidArgument, path, err)
		}
		return selector{vendor: gousb.ID(vid), product: gousb.ID(pid), byID: true}, nil
	}
	bus, err1 := strconv.Atoi(a)
	addr, err2 := strconv.Atoi(b)
	if err := errors.Join(err1, err2); err != nil {
		return selector{}, fmt.Errorf("%w: USB path %q: %w", pn53x.ErrInvalidArgument, path, err)
	}
	return selector{bus: bus, address: addr, byAddress: true}, nil
}

func (s selector) matches(desc *gousb.DeviceDesc) bool {
	if _, ok := modelFor(desc.Vendor, desc.Product); !ok {
		return false
	}
	switch {
	case s.byID:
		return desc.Vendor == s.vendor && desc.Product == s.product
	case s.byAddress:
		return desc.Bus == s.bus && desc.Address == s.address
	default:
		return true
	}
}

func devicePath(desc *gousb.DeviceDesc) string {
	return fmt.Sprintf("%03d:%03d", desc.Bus, desc.Address)
}

// Open claims the first reader that matches path and aborts any command the
// chip may still be running.
func Open(ctx context.Context, path string) (*Transport, error) {
	sel, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	usbCtx := gousb.NewContext()
	var picked bool
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if picked || !sel.matches(desc) {
			return false
		}
		picked = true
		return true
	})
	if len(devs) == 0 {
		_ = usbCtx.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to open USB device %q: %w", path, err)
		}
		return nil, fmt.Errorf("%w: %q", ErrNoDevice, path)
	}
	dev := devs[0]
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}

	t, err := claim(dev)
	if err != nil {
		_ = dev.Close()
		_ = usbCtx.Close()
		return nil, err
	}
	prev := t.release
	t.release = func() {
		prev()
		_ = dev.Close()
		_ = usbCtx.Close()
	}

	if err := t.Send(ctx, frame.AckFrame); err != nil {
		_ = t.Close()
		return nil, err
	}
	pn53x.Debugf("usb: opened %s (%s) at %s", t.model.Name, t.model.Chip, t.name)
	return t, nil
}

// claim takes interface 0 of configuration 1 and finds its bulk endpoints.
func claim(dev *gousb.Device) (*Transport, error) {
	model, _ := modelFor(dev.Desc.Vendor, dev.Desc.Product)
	name := devicePath(dev.Desc)

	// not supported on every platform
	_ = dev.SetAutoDetach(true)

	cfg, err := dev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("failed to get config of %s: %w", name, err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		_ = cfg.Close()
		return nil, fmt.Errorf("failed to claim interface 0 of %s: %w", name, err)
	}

	in, out, packetSize, err := findEndpoints(intf)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	t := newTransport(in, out, model, name, packetSize)
	t.release = func() {
		intf.Close()
		_ = cfg.Close()
	}
	return t, nil
}

// findEndpoints discovers the bulk IN and OUT endpoints. PN53x readers also
// have an interrupt endpoint, which is ignored.
func findEndpoints(intf *gousb.Interface) (*gousb.InEndpoint, *gousb.OutEndpoint, int, error) {
	inNum, outNum, packetSize := -1, -1, 0
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			inNum = ep.Number
			packetSize = ep.MaxPacketSize
		case gousb.EndpointDirectionOut:
			outNum = ep.Number
		}
	}
	if inNum < 0 || outNum < 0 {
		return nil, nil, 0, errors.New("bulk endpoints not found")
	}

	epIn, err := intf.InEndpoint(inNum)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	epOut, err := intf.OutEndpoint(outNum)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	return epIn, epOut, packetSize, nil
}

// Scan lists the bus:address paths of supported readers without opening
// them.
func Scan(ctx context.Context) ([]string, error) {
	usbCtx := gousb.NewContext()
	defer func() { _ = usbCtx.Close() }()

	var paths []string
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if ctx.Err() == nil && (selector{}).matches(desc) {
			paths = append(paths, devicePath(desc))
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return paths, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

func init() {
	pn53x.RegisterDriver(pn53x.Driver{
		Name:        "usb",
		Description: "PN531/PN533 USB readers (" + strconv.Itoa(len(Models)) + " models)",
		Open: func(ctx context.Context, path string) (pn53x.Transport, error) {
			t, err := Open(ctx, path)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Scan: Scan,
	})
}
