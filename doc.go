// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mcp9808 controls a Microchip MCP9808 temperature sensor over I²C.
//
// The sensor reports readings as sign-magnitude fixed point in units of
// 1/16 °C, together with three read-only alert flag bits. Dev implements
// physic.SenseEnv for plain temperature sensing and io.ReaderAt for the
// pull-based text endpoint ("23.1250\n"). Node owns one configured sensor
// and its published read endpoint and guarantees symmetric teardown; the
// devfs subpackage publishes endpoints as files on a FUSE filesystem, the
// hwdesc subpackage supplies bus addresses from a hardware description
// file.
//
// Datasheet: https://ww1.microchip.com/downloads/en/DeviceDoc/25095A.pdf
package mcp9808
