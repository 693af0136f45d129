// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp9808_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/mcp9808"
	"github.com/GermanBionicSystems/mcp9808/devfs"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	// Open the default I²C bus.
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer bus.Close()

	dev, err := mcp9808.NewI2C(bus, mcp9808.DefaultAddr, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Halt()

	env := physic.Env{}
	if err := dev.Sense(&env); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Temperature: %s\n", env.Temperature)
}

// ExampleNewNode publishes the sensor as a file, the way the chip would
// appear under /dev with a kernel driver: `cat /srv/sensors/mcp9808`
// prints a fresh reading such as "23.1250".
func ExampleNewNode() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	fs := devfs.New(devfs.Options{Mountpoint: "/srv/sensors"})
	if err := fs.Mount(); err != nil {
		log.Fatal(err)
	}
	defer fs.Unmount()

	node, err := mcp9808.NewNode(bus, fs, &mcp9808.NodeOpts{Addr: mcp9808.DefaultAddr})
	if err != nil {
		log.Fatal(err)
	}
	defer node.Close()

	fs.Wait()
}
