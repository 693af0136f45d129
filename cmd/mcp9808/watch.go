// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/mcp9808"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/physic"
)

// watchLoop prints a colored reading at every interval until the process
// is interrupted.
func watchLoop(dev *mcp9808.Dev, interval time.Duration) error {
	ch, err := dev.SenseContinuous(interval)
	if err != nil {
		return err
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		// Halt stops the sensing goroutine, which closes ch.
		_ = dev.Halt()
	}()

	out := colorable.NewColorableStdout()
	for e := range ch {
		fmt.Fprintf(out, "%s %8.4f°C\n", bar(e.Temperature), e.Temperature.Celsius())
	}
	return nil
}

// bar renders the temperature as a row of colored blocks, blue at
// freezing shading to red at 50°C.
func bar(t physic.Temperature) string {
	f := t.Celsius() / 50
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	c := color.NRGBA{R: uint8(255 * f), B: uint8(255 * (1 - f)), A: 255}
	block := ansi256.Default.Block(c)
	var b strings.Builder
	for i := 0; i < 1+int(f*19); i++ {
		b.WriteString(block)
	}
	b.WriteString("\033[0m")
	return b.String()
}
