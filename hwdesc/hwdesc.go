// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hwdesc loads a hierarchical hardware description: a YAML
// document listing attached peripherals and their properties, queried
// instead of hard-coding bus addresses. Nodes satisfy the driver's
// Properties interface.
//
// A description looks like:
//
//	sensors:
//	  - compatible: microchip,mcp9808
//	    label: board-temp
//	    reg: 0x19
//	  - compatible: ti,tmp102
//	    reg: 0x48
//
// Property values are 32-bit unsigned integers; "compatible" and
// "label" are the only string-valued fields.
package hwdesc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a parsed hardware description.
type Document struct {
	Sensors []*Node `yaml:"sensors"`
}

// Node describes one attached peripheral.
type Node struct {
	// Compatible identifies the chip, e.g. "microchip,mcp9808".
	Compatible string `yaml:"compatible"`
	// Label is an optional human-readable name.
	Label string `yaml:"label,omitempty"`
	// Props holds the remaining properties, such as "reg".
	Props map[string]uint32 `yaml:",inline"`
}

// Uint32 returns the named property. ok is false when the node does not
// carry it; absence is not an error.
func (n *Node) Uint32(name string) (uint32, bool) {
	v, ok := n.Props[name]
	return v, ok
}

// Parse decodes a hardware description document.
func Parse(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("hwdesc: parsing description: %w", err)
	}
	return &d, nil
}

// Load reads and parses the description file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hwdesc: %w", err)
	}
	return Parse(data)
}

// Find returns the first node with the given compatible identifier, or
// nil when the description does not mention the chip.
func (d *Document) Find(compatible string) *Node {
	for _, n := range d.Sensors {
		if n.Compatible == compatible {
			return n
		}
	}
	return nil
}
