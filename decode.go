// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp9808

import (
	"strconv"

	"periph.io/x/conn/v3/physic"
)

// Layout of the 16-bit ambient temperature register (datasheet 5.1.3).
// The three high bits are read-only alert flags, bit 12 is the sign and
// the remaining 12 bits are the magnitude in units of 1/16 °C.
const (
	flagCritical = 0x80 // TA ≥ TCRIT
	flagUpper    = 0x40 // TA > TUPPER
	flagLower    = 0x20 // TA < TLOWER
	signBit      = 0x10
)

// sixteenthDegree is one LSB of the magnitude, 1/16 °C.
const sixteenthDegree physic.Temperature = 62_500 * physic.MicroKelvin

// Sample is one decoded reading of the ambient temperature register.
type Sample struct {
	Temperature physic.Temperature
	// AboveCritical is set while the ambient temperature is at or above
	// the critical threshold.
	AboveCritical bool
	// AboveUpper is set while the ambient temperature is above the upper
	// threshold.
	AboveUpper bool
	// BelowLower is set while the ambient temperature is below the lower
	// threshold.
	BelowLower bool

	negative   bool
	sixteenths uint16 // 12-bit magnitude in 1/16 °C
}

// decode converts the raw temperature register bytes into a Sample. It is
// pure: same bytes, same Sample. The alert flags are status bits and are
// never folded into the temperature's sign.
func decode(raw []byte) (Sample, error) {
	if len(raw) != 2 {
		return Sample{}, &MalformedSampleError{Len: len(raw)}
	}
	s := Sample{
		AboveCritical: raw[0]&flagCritical != 0,
		AboveUpper:    raw[0]&flagUpper != 0,
		BelowLower:    raw[0]&flagLower != 0,
		negative:      raw[0]&signBit != 0,
		sixteenths:    uint16(raw[0]&0x0F)<<8 | uint16(raw[1]),
	}
	delta := physic.Temperature(s.sixteenths) * sixteenthDegree
	if s.negative {
		s.Temperature = physic.ZeroCelsius - delta
	} else {
		s.Temperature = physic.ZeroCelsius + delta
	}
	return s, nil
}

// TenThousandths returns the temperature in integer units of 0.0001 °C,
// for consumers that must avoid floating point. The magnitude is scaled
// before the division so no fractional part is truncated away.
func (s Sample) TenThousandths() int32 {
	v := int32(s.sixteenths) * 10000 / 16
	if s.negative {
		return -v
	}
	return v
}

// appendText appends the reading in the endpoint wire format: ASCII
// decimal, sign only if negative, exactly four fractional digits and a
// trailing newline, e.g. "23.1250\n".
func (s Sample) appendText(b []byte) []byte {
	v := s.TenThousandths()
	if v < 0 {
		b = append(b, '-')
		v = -v
	}
	b = strconv.AppendInt(b, int64(v/10000), 10)
	frac := v % 10000
	b = append(b, '.',
		byte('0'+frac/1000),
		byte('0'+frac/100%10),
		byte('0'+frac/10%10),
		byte('0'+frac%10),
		'\n')
	return b
}

// String returns the reading as a fixed-point decimal with four
// fractional digits, without the trailing newline of the wire format.
func (s Sample) String() string {
	b := s.appendText(nil)
	return string(b[:len(b)-1])
}
