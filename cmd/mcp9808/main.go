// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mcp9808 reads a Microchip MCP9808 temperature sensor over I²C.
//
// By default it prints one reading and exits. --watch keeps reading and
// prints a colored readout, --chart records a trend into a PNG, --mount
// publishes the sensor as a file on a FUSE filesystem and serves until
// interrupted.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/mcp9808"
	"github.com/GermanBionicSystems/mcp9808/devfs"
	"github.com/GermanBionicSystems/mcp9808/hwdesc"
	"github.com/spf13/pflag"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp9808: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	busName := pflag.String("bus", "", "I²C bus (name or number, empty for the first one)")
	addrFlag := pflag.String("addr", "0x18", "static sensor address; empty to rely on --desc alone")
	descPath := pflag.String("desc", "", "YAML hardware description; its address overrides --addr")
	resFlag := pflag.String("resolution", "0.125", "measurement resolution in °C: 0.5, 0.25, 0.125 or 0.0625")
	mountDir := pflag.String("mount", "", "publish the sensor as a file in this directory and serve until interrupted")
	name := pflag.String("name", "mcp9808", "endpoint file name used with --mount")
	allowOther := pflag.Bool("allow-other", false, "let other users read the mounted file")
	watch := pflag.Duration("watch", 0, "keep reading at this interval and print a colored readout")
	chartPath := pflag.String("chart", "", "record samples and write a PNG trend chart to this file")
	samples := pflag.Int("samples", 60, "number of samples to record for --chart")
	interval := pflag.Duration("interval", time.Second, "sampling interval for --chart")
	verbose := pflag.BoolP("verbose", "v", false, "debug logging")
	pflag.Parse()
	if pflag.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", pflag.Arg(0))
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var staticAddr uint16
	if *addrFlag != "" {
		v, err := strconv.ParseUint(*addrFlag, 0, 16)
		if err != nil {
			return fmt.Errorf("parsing --addr: %w", err)
		}
		staticAddr = uint16(v)
	}

	res, err := parseResolution(*resFlag)
	if err != nil {
		return err
	}
	opts := &mcp9808.Opts{Resolution: res}

	var desc mcp9808.Properties
	if *descPath != "" {
		doc, err := hwdesc.Load(*descPath)
		if err != nil {
			return err
		}
		if n := doc.Find(mcp9808.Compatible); n != nil {
			desc = n
		} else {
			logger.Warn("hardware description has no node for this sensor",
				"path", *descPath, "compatible", mcp9808.Compatible)
		}
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initializing host: %w", err)
	}
	bus, err := i2creg.Open(*busName)
	if err != nil {
		return fmt.Errorf("opening I²C bus: %w", err)
	}
	defer bus.Close()

	if *mountDir != "" {
		return serveMounted(bus, *mountDir, *name, *allowOther, staticAddr, desc, opts, logger)
	}

	dev, err := openDev(bus, staticAddr, desc, opts, logger)
	if err != nil {
		return err
	}
	defer dev.Halt()

	switch {
	case *chartPath != "":
		return recordChart(dev, *chartPath, *samples, *interval)
	case *watch > 0:
		return watchLoop(dev, *watch)
	}

	s, err := dev.Read()
	if err != nil {
		return err
	}
	fmt.Println(s)
	reportAlerts(s)
	return nil
}

func openDev(bus i2c.Bus, staticAddr uint16, desc mcp9808.Properties, opts *mcp9808.Opts, logger *slog.Logger) (*mcp9808.Dev, error) {
	addr, stale, err := mcp9808.ResolveAddress(staticAddr, desc)
	if err != nil {
		return nil, err
	}
	if stale {
		logger.Warn("hardware description overrides static sensor address",
			"static", fmt.Sprintf("%#02x", staticAddr),
			"resolved", fmt.Sprintf("%#02x", addr))
	}
	return mcp9808.NewI2C(bus, addr, opts)
}

func parseResolution(s string) (mcp9808.Resolution, error) {
	switch s {
	case "0.5":
		return mcp9808.ResolutionHalf, nil
	case "0.25":
		return mcp9808.ResolutionQuarter, nil
	case "0.125":
		return mcp9808.ResolutionEighth, nil
	case "0.0625":
		return mcp9808.ResolutionSixteenth, nil
	}
	return 0, fmt.Errorf("unknown resolution %q", s)
}

func reportAlerts(s mcp9808.Sample) {
	if s.AboveCritical {
		fmt.Fprintln(os.Stderr, "alert: at or above the critical threshold")
	}
	if s.AboveUpper {
		fmt.Fprintln(os.Stderr, "alert: above the upper threshold")
	}
	if s.BelowLower {
		fmt.Fprintln(os.Stderr, "alert: below the lower threshold")
	}
}

func serveMounted(bus i2c.Bus, dir, name string, allowOther bool, staticAddr uint16, desc mcp9808.Properties, opts *mcp9808.Opts, logger *slog.Logger) error {
	fs := devfs.New(devfs.Options{Mountpoint: dir, AllowOther: allowOther, Logger: logger})
	if err := fs.Mount(); err != nil {
		return err
	}
	node, err := mcp9808.NewNode(bus, fs, &mcp9808.NodeOpts{
		Addr:   staticAddr,
		Desc:   desc,
		Name:   name,
		Opts:   opts,
		Logger: logger,
	})
	if err != nil {
		if uerr := fs.Unmount(); uerr != nil {
			logger.Error("unmounting after failed initialization", "err", uerr)
		}
		return err
	}
	logger.Info("serving readings", "file", filepath.Join(dir, name))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	// Teardown runs on this goroutine, not the one that initialized.
	var first error
	if err := node.Close(); err != nil {
		first = err
	}
	if err := fs.Unmount(); err != nil && first == nil {
		first = err
	}
	return first
}
