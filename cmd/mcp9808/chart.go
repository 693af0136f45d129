// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/GermanBionicSystems/mcp9808"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// recordChart samples the sensor at the given interval and renders the
// trend as a PNG.
func recordChart(dev *mcp9808.Dev, path string, samples int, interval time.Duration) error {
	if samples < 2 {
		return fmt.Errorf("need at least 2 samples, got %d", samples)
	}
	temps := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		s, err := dev.Read()
		if err != nil {
			return err
		}
		temps = append(temps, float64(s.TenThousandths())/10000)
		if i < samples-1 {
			time.Sleep(interval)
		}
	}
	return renderChart(path, temps, interval)
}

func renderChart(path string, temps []float64, interval time.Duration) error {
	const (
		width  = 800
		height = 300
		margin = 40.0
	)
	low, high := temps[0], temps[0]
	for _, v := range temps {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	if high == low {
		// Flat trend; pad the range so the line sits mid-chart.
		high += 0.5
		low -= 0.5
	}

	x := func(i int) float64 {
		return margin + float64(i)/float64(len(temps)-1)*(width-2*margin)
	}
	y := func(v float64) float64 {
		return height - margin - (v-low)/(high-low)*(height-2*margin)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.8, 0.8, 0.8)
	dc.SetLineWidth(1)
	dc.DrawRectangle(margin, margin, width-2*margin, height-2*margin)
	dc.Stroke()

	dc.SetRGB(0.85, 0.2, 0.2)
	dc.SetLineWidth(2)
	dc.MoveTo(x(0), y(temps[0]))
	for i := 1; i < len(temps); i++ {
		dc.LineTo(x(i), y(temps[i]))
	}
	dc.Stroke()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("%.4f°C", high), 4, margin)
	dc.DrawString(fmt.Sprintf("%.4f°C", low), 4, height-margin)
	dc.DrawString(fmt.Sprintf("%d samples, %s apart", len(temps), interval), margin, height-8)

	return dc.SavePNG(path)
}
