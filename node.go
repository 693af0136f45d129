// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp9808

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// Exposer publishes pull-based read endpoints for sensors. The devfs
// subpackage implements it as files on a FUSE filesystem; tests use
// in-memory fakes.
type Exposer interface {
	// Expose registers r under name and returns the handle that removes
	// the endpoint again. Registering a name twice is an error.
	Expose(name string, r io.ReaderAt) (ExposureHandle, error)
}

// ExposureHandle represents one published endpoint. Release removes the
// endpoint; it is idempotent so teardown can run on partially
// initialized state.
type ExposureHandle interface {
	Release() error
}

// NodeOpts configures NewNode.
type NodeOpts struct {
	// Addr is the static default bus address, 0 when unset. When Desc
	// also carries a "reg" property the description is authoritative; a
	// differing static value is assumed stale and logged, not fatal.
	Addr uint16
	// Desc is an optional hardware description node for this sensor.
	Desc Properties
	// Name of the exposure endpoint. Defaults to "mcp9808".
	Name string
	// Opts configures the sensor itself. nil selects DefaultOpts.
	Opts *Opts
	// Logger receives the stale-address warning and lifecycle messages.
	// nil discards them.
	Logger *slog.Logger
}

// Node owns one configured sensor session and its published read
// endpoint. It is the only owner of both: Close releases them in
// reverse creation order, and NewNode rolls back whatever it already
// created when a later step fails.
type Node struct {
	dev    *Dev
	handle ExposureHandle
	name   string
	addr   uint16
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewNode resolves the sensor's bus address, configures the sensor and
// publishes its read endpoint on exp. On failure nothing stays
// allocated: a session created before a failed exposure is halted
// before the error is returned.
func NewNode(b i2c.Bus, exp Exposer, opts *NodeOpts) (*Node, error) {
	if exp == nil {
		return nil, errors.New("mcp9808: an Exposer is required")
	}
	if opts == nil {
		opts = &NodeOpts{Addr: DefaultAddr}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	name := opts.Name
	if name == "" {
		name = "mcp9808"
	}

	addr, stale, err := ResolveAddress(opts.Addr, opts.Desc)
	if err != nil {
		return nil, err
	}
	if stale {
		logger.Warn("hardware description overrides static sensor address",
			"static", fmt.Sprintf("%#02x", opts.Addr),
			"resolved", fmt.Sprintf("%#02x", addr))
	}

	dev, err := NewI2C(b, addr, opts.Opts)
	if err != nil {
		return nil, err
	}

	handle, err := exp.Expose(name, dev)
	if err != nil {
		if herr := dev.Halt(); herr != nil {
			logger.Error("halting sensor during rollback", "err", herr)
		}
		return nil, fmt.Errorf("mcp9808: publishing read endpoint %q: %w", name, err)
	}

	logger.Info("sensor node initialized",
		"name", name,
		"addr", fmt.Sprintf("%#02x", addr),
		"resolution", dev.res.String())
	return &Node{dev: dev, handle: handle, name: name, addr: addr, logger: logger}, nil
}

// Dev returns the sensor session owned by the node.
func (n *Node) Dev() *Dev {
	return n.dev
}

// Close releases the exposure endpoint and halts the sensor session, in
// reverse creation order. It is idempotent and safe to call from a
// different goroutine than the one that called NewNode, such as a
// shutdown handler. Teardown continues past a failing step; the first
// error is returned.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	var first error
	if err := n.handle.Release(); err != nil {
		first = err
	}
	if err := n.dev.Halt(); err != nil && first == nil {
		first = err
	}
	n.logger.Info("sensor node closed", "name", n.name)
	return first
}

func (n *Node) String() string {
	return fmt.Sprintf("node %q on %s", n.name, n.dev)
}
