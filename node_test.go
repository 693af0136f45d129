// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp9808

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

// fakeExposer is an in-memory exposure collaborator with a failure knob
// and an auditable endpoint table.
type fakeExposer struct {
	failExpose bool
	endpoints  map[string]io.ReaderAt
	released   []string
}

func newFakeExposer() *fakeExposer {
	return &fakeExposer{endpoints: make(map[string]io.ReaderAt)}
}

func (e *fakeExposer) Expose(name string, r io.ReaderAt) (ExposureHandle, error) {
	if e.failExpose {
		return nil, errors.New("exposure refused")
	}
	e.endpoints[name] = r
	return &fakeHandle{e: e, name: name}, nil
}

type fakeHandle struct {
	e        *fakeExposer
	name     string
	released bool
}

func (h *fakeHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	delete(h.e.endpoints, h.name)
	h.e.released = append(h.e.released, h.name)
	return nil
}

func TestNewNode(t *testing.T) {
	ops := append(initOps(testAddr), tempOps(testAddr, 0x01, 0x90)...)
	ops = append(ops, haltOps(testAddr)...)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	exp := newFakeExposer()

	n, err := NewNode(pb, exp, &NodeOpts{Addr: DefaultAddr, Name: "temp0"})
	if err != nil {
		t.Fatal(err)
	}
	r, ok := exp.endpoints["temp0"]
	if !ok {
		t.Fatal("endpoint not exposed")
	}

	buf := make([]byte, 16)
	got, err := r.ReadAt(buf, 0)
	if err != io.EOF {
		t.Fatalf("ReadAt err = %v, want io.EOF", err)
	}
	if s := string(buf[:got]); s != "25.0000\n" {
		t.Errorf("endpoint read = %q, want %q", s, "25.0000\n")
	}

	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if len(exp.endpoints) != 0 {
		t.Errorf("endpoints left after Close: %v", exp.endpoints)
	}
	if _, err := n.Dev().Read(); !errors.Is(err, ErrClosed) {
		t.Errorf("session after Close = %v, want ErrClosed", err)
	}
	// Close is idempotent, also from another goroutine than NewNode's.
	done := make(chan error)
	go func() { done <- n.Close() }()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := len(exp.released); got != 1 {
		t.Errorf("handle released %d times, want 1", got)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

// A failed exposure after the session was built must roll everything
// back: no endpoint registered, the session closed, the chip shut down.
func TestNewNodeExposeFailure(t *testing.T) {
	ops := append(initOps(testAddr), haltOps(testAddr)...)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	exp := newFakeExposer()
	exp.failExpose = true

	if _, err := NewNode(pb, exp, &NodeOpts{Addr: DefaultAddr}); err == nil {
		t.Fatal("expected the exposure failure to propagate")
	}
	if len(exp.endpoints) != 0 {
		t.Errorf("endpoints left after failed initialize: %v", exp.endpoints)
	}
	// All ops consumed, including the shutdown write of the rollback.
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewNodeConfigureFailure(t *testing.T) {
	ops := []i2ctest.IO{
		{Addr: testAddr, W: []byte{regManufacturerID}},
		{Addr: testAddr, R: []byte{0xde, 0xad}},
	}
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	exp := newFakeExposer()
	if _, err := NewNode(pb, exp, &NodeOpts{Addr: DefaultAddr}); err == nil {
		t.Fatal("expected the configuration failure to propagate")
	}
	if len(exp.endpoints) != 0 {
		t.Error("endpoint exposed despite failed configuration")
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewNodeAddressOverride(t *testing.T) {
	const descAddr uint16 = 0x19
	pb := &i2ctest.Playback{Ops: initOps(descAddr), DontPanic: true}
	exp := newFakeExposer()
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	n, err := NewNode(pb, exp, &NodeOpts{
		Addr:   DefaultAddr,
		Desc:   propsMap{"reg": uint32(descAddr)},
		Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n.addr != descAddr {
		t.Errorf("resolved address = %#02x, want %#02x", n.addr, descAddr)
	}
	if !strings.Contains(logBuf.String(), "overrides static sensor address") {
		t.Errorf("stale static address not logged: %q", logBuf.String())
	}
	if _, ok := exp.endpoints["mcp9808"]; !ok {
		t.Error("default endpoint name not used")
	}
}

func TestNewNodeAddressUnresolved(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	_, err := NewNode(pb, newFakeExposer(), &NodeOpts{})
	if !errors.Is(err, ErrAddressUnresolved) {
		t.Fatalf("err = %v, want ErrAddressUnresolved", err)
	}
}

func TestNewNodeNilExposer(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	if _, err := NewNode(pb, nil, nil); err == nil {
		t.Fatal("nil exposer accepted")
	}
}

func TestNewNodeDefaults(t *testing.T) {
	ops := append(initOps(DefaultAddr), haltOps(DefaultAddr)...)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	exp := newFakeExposer()
	n, err := NewNode(pb, exp, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := exp.endpoints["mcp9808"]; !ok {
		t.Error("nil opts did not default to DefaultAddr and name mcp9808")
	}
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}
