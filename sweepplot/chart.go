// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepplot

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/sweepbench/sweep/sweepfmt"
)

// ChartOpts configures New.
type ChartOpts struct {
	// Title is the chart title. If empty, it is derived from
	// Metric ("Rate vs. Size on a Log-Log Scale").
	Title string

	// Metric is the plotted metric, "rate" (the default) or
	// "elapsed". It determines the Y axis label.
	Metric string

	// Width and Height are the chart dimensions in centimeters.
	// Zero means 18 by 12.
	Width, Height float64

	// DPI is the raster resolution for PNG output. Zero means 300.
	DPI int
}

// A Chart is a renderable log-log plot of one or more series.
type Chart struct {
	p             *plot.Plot
	width, height vg.Length
	dpi           int
}

// seriesStyles cycles across series: the first series is a solid red
// line, the second a dashed green line, and so on. All series get
// circle glyphs at each measured point.
var seriesStyles = []struct {
	color  func(alpha uint8) color.Color
	dashes []vg.Length
}{
	{red, nil},
	{green, []vg.Length{vg.Points(6), vg.Points(2)}},
	{blue, []vg.Length{vg.Points(2), vg.Points(2)}},
	{purple, []vg.Length{vg.Points(6), vg.Points(2), vg.Points(2), vg.Points(2)}},
}

func red(alpha uint8) color.Color {
	return color.NRGBA{0xFF, 0, 0, alpha}
}
func green(alpha uint8) color.Color {
	return color.NRGBA{0, 0xA0, 0, alpha}
}
func blue(alpha uint8) color.Color {
	return color.NRGBA{0, 0, 0xFF, alpha}
}
func purple(alpha uint8) color.Color {
	return color.NRGBA{0x99, 0, 0xFF, alpha}
}

// New builds a log-log chart of the given series. Both axes are log
// scaled, so every size and value must be positive.
func New(opts ChartOpts, series ...*Series) (*Chart, error) {
	metric := opts.Metric
	if metric == "" {
		metric = "rate"
	}
	if sweepfmt.MetricUnit(metric) == "" {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no data")
	}

	p := plot.New()
	title := opts.Title
	if title == "" {
		title = axisName(metric) + " vs. Size on a Log-Log Scale"
	}
	p.Title.Text = title
	p.X.Label.Text = "Size (log scale)"
	p.Y.Label.Text = axisName(metric) + " (log scale)"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, s := range series {
		if len(s.Sizes) == 0 {
			return nil, fmt.Errorf("series %q: no data", s.Label)
		}
		if len(s.Values) != len(s.Sizes) ||
			(s.Lo != nil && (len(s.Lo) != len(s.Sizes) || len(s.Hi) != len(s.Sizes))) {
			return nil, fmt.Errorf("series %q: mismatched lengths", s.Label)
		}
		sty := seriesStyles[i%len(seriesStyles)]

		xys := make(plotter.XYs, len(s.Sizes))
		for j, size := range s.Sizes {
			v := s.Values[j]
			if size <= 0 {
				return nil, fmt.Errorf("series %q: size %d is not positive; log scale requires positive sizes", s.Label, size)
			}
			if v <= 0 {
				return nil, fmt.Errorf("series %q: value %v at size %d is not positive; log scale requires positive values", s.Label, v, size)
			}
			if s.Lo != nil && s.Lo[j] <= 0 {
				return nil, fmt.Errorf("series %q: band low %v at size %d is not positive; log scale requires positive values", s.Label, s.Lo[j], size)
			}
			xys[j] = plotter.XY{X: float64(size), Y: v}
		}

		// Draw the band under the line.
		if s.Lo != nil {
			band := make(plotter.XYs, 0, 2*len(s.Sizes))
			for j, size := range s.Sizes {
				band = append(band, plotter.XY{X: float64(size), Y: s.Hi[j]})
			}
			for j := len(s.Sizes) - 1; j >= 0; j-- {
				band = append(band, plotter.XY{X: float64(s.Sizes[j]), Y: s.Lo[j]})
			}
			poly, err := plotter.NewPolygon(band)
			if err != nil {
				return nil, err
			}
			poly.Color = sty.color(0x30)
			poly.LineStyle.Color = color.Transparent
			p.Add(poly)
		}

		l, pts, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = sty.color(0xFF)
		l.LineStyle.Dashes = sty.dashes
		pts.GlyphStyle.Shape = draw.CircleGlyph{}
		pts.GlyphStyle.Color = sty.color(0xFF)
		pts.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(l, pts)
		p.Legend.Add(s.Label, l, pts)
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 18
	}
	if height <= 0 {
		height = 12
	}
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 300
	}
	return &Chart{
		p:      p,
		width:  vg.Length(width) * vg.Centimeter,
		height: vg.Length(height) * vg.Centimeter,
		dpi:    dpi,
	}, nil
}

// axisName returns metric with its first letter upcased, for titles
// and axis labels.
func axisName(metric string) string {
	return strings.ToUpper(metric[:1]) + metric[1:]
}

// WritePNG renders the chart as a PNG image.
func (c *Chart) WritePNG(w io.Writer) error {
	can := vgimg.PngCanvas{Canvas: vgimg.NewWith(
		vgimg.UseWH(c.width, c.height),
		vgimg.UseDPI(c.dpi),
		vgimg.UseBackgroundColor(color.White),
	)}
	c.p.Draw(draw.New(can))
	_, err := can.WriteTo(w)
	return err
}

// WriteSVG renders the chart as an SVG document.
func (c *Chart) WriteSVG(w io.Writer) error {
	can := vgsvg.New(c.width, c.height)
	c.p.Draw(draw.New(can))
	_, err := can.WriteTo(w)
	return err
}

// WritePDF renders the chart as a PDF document.
func (c *Chart) WritePDF(w io.Writer) error {
	can := vgpdf.New(c.width, c.height)
	c.p.Draw(draw.New(can))
	_, err := can.WriteTo(w)
	return err
}

// Save renders the chart to path in the format named by its
// extension: .png, .svg, or .pdf.
func (c *Chart) Save(path string) error {
	var write func(io.Writer) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		write = c.WritePNG
	case ".svg":
		write = c.WriteSVG
	case ".pdf":
		write = c.WritePDF
	default:
		return fmt.Errorf("unknown chart format %q", ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
