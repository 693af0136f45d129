// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp9808

import (
	"errors"
	"fmt"
)

// ErrAddressUnresolved is returned when neither a static default address
// nor a hardware description supplies a bus address for the sensor.
var ErrAddressUnresolved = errors.New("mcp9808: no bus address from static default or hardware description")

// ErrClosed is returned by operations on a device that has been halted.
var ErrClosed = errors.New("mcp9808: device is closed")

// MalformedSampleError reports a temperature register read that did not
// produce exactly two bytes.
type MalformedSampleError struct {
	Len int
}

func (e *MalformedSampleError) Error() string {
	return fmt.Sprintf("mcp9808: malformed sample: got %d bytes, want 2", e.Len)
}

// BusError reports a failed bus transaction, including which phase of the
// register access failed. It wraps the transport's own error.
type BusError struct {
	// Op is "write" for the register select or value write phase, "read"
	// for the value read phase.
	Op  string
	Reg byte
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("mcp9808: bus %s, register %#02x: %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// UnreachableError wraps a bus failure encountered while reading a
// measurement. The sensor may be disconnected or held in reset; the
// failure is not retried here.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return "mcp9808: sensor unreachable: " + e.Err.Error()
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}
