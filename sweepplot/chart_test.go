// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepplot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestChartErrors(t *testing.T) {
	good := &Series{Label: "a", Sizes: []int{1, 2}, Values: []float64{1, 2}}
	tests := []struct {
		name   string
		opts   ChartOpts
		series []*Series
	}{
		{"no series", ChartOpts{}, nil},
		{"empty series", ChartOpts{}, []*Series{{Label: "a"}}},
		{"zero size", ChartOpts{}, []*Series{{Label: "a", Sizes: []int{0}, Values: []float64{1}}}},
		{"negative value", ChartOpts{}, []*Series{{Label: "a", Sizes: []int{1}, Values: []float64{-1}}}},
		{"zero band", ChartOpts{}, []*Series{{Label: "a", Sizes: []int{1}, Values: []float64{1}, Lo: []float64{0}, Hi: []float64{2}}}},
		{"mismatched lengths", ChartOpts{}, []*Series{{Label: "a", Sizes: []int{1, 2}, Values: []float64{1}}}},
		{"unknown metric", ChartOpts{Metric: "latency"}, []*Series{good}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := New(test.opts, test.series...); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func chartSeries() []*Series {
	return []*Series{
		{Label: "a", Sizes: []int{1, 10, 100}, Values: []float64{1000, 800, 600}},
		{
			Label: "b", Sizes: []int{1, 10, 100},
			Values: []float64{900, 700, 500},
			Lo:     []float64{800, 600, 400},
			Hi:     []float64{950, 800, 600},
		},
	}
}

func TestChartPNG(t *testing.T) {
	c, err := New(ChartOpts{Width: 10, Height: 6, DPI: 72}, chartSeries()...)
	if err != nil {
		t.Fatalf("New failed: %s", err)
	}
	var buf bytes.Buffer
	if err := c.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG failed: %s", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("output is not a PNG")
	}
}

func TestChartSave(t *testing.T) {
	c, err := New(ChartOpts{Metric: "elapsed", Width: 10, Height: 6}, chartSeries()...)
	if err != nil {
		t.Fatalf("New failed: %s", err)
	}

	if err := c.Save(filepath.Join(t.TempDir(), "chart.bmp")); err == nil {
		t.Errorf("expected error for unknown extension")
	}

	path := filepath.Join(t.TempDir(), "chart.svg")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save failed: %s", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading chart: %s", err)
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Errorf("output is not an SVG")
	}
}
