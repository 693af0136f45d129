// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp9808

import "fmt"

// Properties provides read access to the properties of one node of a
// hierarchical hardware description, such as a device tree fragment. A
// missing property is not an error. The hwdesc subpackage provides an
// implementation backed by a YAML file.
type Properties interface {
	Uint32(name string) (value uint32, ok bool)
}

// regProperty is the conventional hardware description property carrying
// the bus address.
const regProperty = "reg"

// ResolveAddress picks the bus address for the sensor from an optional
// static default (0 means unset) and an optional hardware description.
// When both are present the description is authoritative; stale reports
// that a differing static default lost, so the caller can log it. With
// neither source present the result is ErrAddressUnresolved.
func ResolveAddress(staticAddr uint16, desc Properties) (addr uint16, stale bool, err error) {
	if staticAddr&^uint16(0x7F) != 0 {
		return 0, false, fmt.Errorf("mcp9808: static address %#x does not fit 7 bits", staticAddr)
	}
	var descAddr uint16
	hasDesc := false
	if desc != nil {
		if v, ok := desc.Uint32(regProperty); ok {
			if v&^uint32(0x7F) != 0 {
				return 0, false, fmt.Errorf("mcp9808: hardware description address %#x does not fit 7 bits", v)
			}
			descAddr = uint16(v)
			hasDesc = true
		}
	}
	switch {
	case hasDesc && staticAddr != 0:
		return descAddr, descAddr != staticAddr, nil
	case hasDesc:
		return descAddr, false, nil
	case staticAddr != 0:
		return staticAddr, false, nil
	}
	return 0, false, ErrAddressUnresolved
}
