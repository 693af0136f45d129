// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp9808

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Registers (datasheet table 5-1).
const (
	regConfiguration  byte = 0x01
	regAlertUpper     byte = 0x02
	regAlertLower     byte = 0x03
	regAlertCritical  byte = 0x04
	regTemperature    byte = 0x05
	regManufacturerID byte = 0x06
	regDeviceID       byte = 0x07
	regResolution     byte = 0x08
)

const (
	// DefaultAddr is the bus address the chip responds on with all address
	// pins grounded. A0..A2 select 0x18..0x1F.
	DefaultAddr uint16 = 0x18

	// Compatible identifies this chip in a hardware description.
	Compatible = "microchip,mcp9808"

	wantManufacturerID uint16 = 0x0054
	wantDeviceID       byte   = 0x04

	// Configuration register shutdown bit. In shutdown the chip keeps its
	// registers readable but stops converting.
	configShutdown uint16 = 1 << 8
)

// Resolution selects the measurement resolution written to the chip at
// start-up. The chip retains the setting until it is reconfigured or
// power cycled. Finer resolutions take longer to convert.
type Resolution byte

const (
	ResolutionHalf      Resolution = iota // 0.5 °C, 30 ms conversion
	ResolutionQuarter                     // 0.25 °C, 65 ms
	ResolutionEighth                      // 0.125 °C, 130 ms
	ResolutionSixteenth                   // 0.0625 °C, 250 ms
)

func (r Resolution) String() string {
	switch r {
	case ResolutionHalf:
		return "0.5°C"
	case ResolutionQuarter:
		return "0.25°C"
	case ResolutionEighth:
		return "0.125°C"
	case ResolutionSixteenth:
		return "0.0625°C"
	default:
		return fmt.Sprintf("Resolution(%d)", byte(r))
	}
}

// step returns the distance between representable readings.
func (r Resolution) step() physic.Temperature {
	switch r {
	case ResolutionHalf:
		return 8 * sixteenthDegree
	case ResolutionQuarter:
		return 4 * sixteenthDegree
	case ResolutionEighth:
		return 2 * sixteenthDegree
	default:
		return sixteenthDegree
	}
}

// conversionTime returns how long the chip needs per measurement.
func (r Resolution) conversionTime() time.Duration {
	switch r {
	case ResolutionHalf:
		return 30 * time.Millisecond
	case ResolutionQuarter:
		return 65 * time.Millisecond
	case ResolutionEighth:
		return 130 * time.Millisecond
	default:
		return 250 * time.Millisecond
	}
}

// Opts holds the configurable options for the device.
type Opts struct {
	// Resolution is written to the resolution register during NewI2C.
	Resolution Resolution
}

// DefaultOpts selects 0.125 °C resolution, a good compromise between
// conversion time (130 ms) and the chip's ±0.25 °C typical accuracy.
var DefaultOpts = Opts{Resolution: ResolutionEighth}

type state uint8

const (
	stateCreated state = iota // constructed, resolution not yet confirmed
	stateActive               // configured, serving reads
	stateClosed               // halted, no reopen
)

// Dev is a handle to one configured MCP9808. Exactly one Dev should
// exist per physical chip; the chip itself serializes register access,
// so Dev serializes its own two-phase transactions.
type Dev struct {
	d   *i2c.Dev
	res Resolution

	mu    sync.Mutex
	state state
	stop  chan struct{}
}

// NewI2C returns a Dev that communicates with an MCP9808 on the given
// bus and address. It verifies the chip's manufacturer and device IDs,
// wakes the chip and writes the requested resolution, reading it back to
// confirm. If any step fails no Dev is returned. Opts can be nil.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if addr&^uint16(0x7F) != 0 {
		return nil, fmt.Errorf("mcp9808: address %#x does not fit 7 bits", addr)
	}
	if opts.Resolution > ResolutionSixteenth {
		return nil, fmt.Errorf("mcp9808: invalid resolution %d", byte(opts.Resolution))
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, res: opts.Resolution, state: stateCreated}
	if err := d.verifyIdentity(); err != nil {
		return nil, err
	}
	// Clear the configuration register: continuous conversion, alert pin
	// disabled, no hysteresis.
	if err := d.writeConfig(0); err != nil {
		return nil, err
	}
	if err := d.setResolution(opts.Resolution); err != nil {
		return nil, err
	}
	d.state = stateActive
	return d, nil
}

// verifyIdentity checks the read-only manufacturer and device ID
// registers so a wrong or absent chip fails construction instead of
// producing plausible garbage readings.
func (d *Dev) verifyIdentity() error {
	var buf [2]byte
	if err := d.readReg(regManufacturerID, buf[:]); err != nil {
		return err
	}
	if id := uint16(buf[0])<<8 | uint16(buf[1]); id != wantManufacturerID {
		return fmt.Errorf("mcp9808: unexpected manufacturer ID %#04x", id)
	}
	if err := d.readReg(regDeviceID, buf[:]); err != nil {
		return err
	}
	if buf[0] != wantDeviceID {
		return fmt.Errorf("mcp9808: unexpected device ID %#02x", buf[0])
	}
	return nil
}

func (d *Dev) writeConfig(cfg uint16) error {
	if err := d.d.Tx([]byte{regConfiguration, byte(cfg >> 8), byte(cfg)}, nil); err != nil {
		return &BusError{Op: "write", Reg: regConfiguration, Err: err}
	}
	return nil
}

// setResolution writes the resolution register and reads it back. A Dev
// whose resolution could not be confirmed is never handed out.
func (d *Dev) setResolution(r Resolution) error {
	if err := d.d.Tx([]byte{regResolution, byte(r)}, nil); err != nil {
		return &BusError{Op: "write", Reg: regResolution, Err: err}
	}
	var buf [1]byte
	if err := d.readReg(regResolution, buf[:]); err != nil {
		return err
	}
	if Resolution(buf[0]&0x03) != r {
		return fmt.Errorf("mcp9808: resolution readback %#02x, want %s", buf[0], r)
	}
	return nil
}

// readReg selects reg in one bus transaction and reads its value in a
// second one; the chip retains the register pointer between the two.
// Callers that share the Dev must hold mu across the call so the phases
// of two readers cannot interleave.
func (d *Dev) readReg(reg byte, buf []byte) error {
	if err := d.d.Tx([]byte{reg}, nil); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	if err := d.d.Tx(nil, buf); err != nil {
		return &BusError{Op: "read", Reg: reg, Err: err}
	}
	return nil
}

// Read performs one measurement and returns the decoded sample,
// including the alert flag bits. Bus failures are wrapped as
// UnreachableError and never retried here; retry policy belongs to the
// caller.
func (d *Dev) Read() (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateActive {
		return Sample{}, ErrClosed
	}
	var raw [2]byte
	if err := d.readReg(regTemperature, raw[:]); err != nil {
		return Sample{}, &UnreachableError{Err: err}
	}
	return decode(raw[:])
}

// Sense implements physic.SenseEnv. The alert flags are dropped; use
// Read to observe them.
func (d *Dev) Sense(e *physic.Env) error {
	s, err := d.Read()
	if err != nil {
		return err
	}
	e.Temperature = s.Temperature
	return nil
}

// SenseContinuous implements physic.SenseEnv. It reads the sensor every
// interval and writes the value to the returned channel until Halt is
// called. The interval must not be shorter than the conversion time of
// the configured resolution.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateActive {
		return nil, ErrClosed
	}
	if interval < d.res.conversionTime() {
		return nil, fmt.Errorf("mcp9808: interval %s is shorter than the %s conversion time at %s", interval, d.res.conversionTime(), d.res)
	}
	if d.stop != nil {
		return nil, errors.New("mcp9808: already sensing continuously")
	}
	d.stop = make(chan struct{})
	ch := make(chan physic.Env, 16)
	go func(stop <-chan struct{}) {
		defer close(ch)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				var e physic.Env
				if err := d.Sense(&e); err == nil {
					select {
					case ch <- e:
					default:
					}
				}
			}
		}
	}(d.stop)
	return ch, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = d.res.step()
	e.Pressure = 0
	e.Humidity = 0
}

// ReadAt implements io.ReaderAt, the pull-based exposure read. Every
// call performs a fresh measurement, formats it as "23.1250\n" and
// serves the bytes starting at off. An offset at or past the end of the
// formatted reading returns 0 and io.EOF, the end-of-data signal, not an
// error. A failed measurement produces no partial output.
func (d *Dev) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("mcp9808: negative offset %d", off)
	}
	s, err := d.Read()
	if err != nil {
		return 0, err
	}
	text := s.appendText(make([]byte, 0, 16))
	if off >= int64(len(text)) {
		return 0, io.EOF
	}
	n := copy(p, text[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Halt implements conn.Resource. It stops any SenseContinuous reader,
// marks the device closed and puts the chip in shutdown mode. Halt is
// idempotent; subsequent reads fail with ErrClosed.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateClosed {
		return nil
	}
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	d.state = stateClosed
	return d.writeConfig(configShutdown)
}

func (d *Dev) String() string {
	return fmt.Sprintf("mcp9808: %s", d.d.String())
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
var _ io.ReaderAt = &Dev{}
