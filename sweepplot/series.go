// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sweepplot renders log-log charts of sweep measurements.
package sweepplot

import (
	"fmt"

	"github.com/aclements/go-gg/ggstat"
	"github.com/aclements/go-gg/table"
	"github.com/sweepbench/sweep/sweepfmt"
)

// A Series is a sequence of measurements of one metric across sweep
// sizes, in observation order.
type Series struct {
	// Label identifies the series, usually the source file name.
	Label string

	Sizes  []int
	Values []float64

	// Lo and Hi optionally bound a min/max band around the series,
	// one value per entry of Sizes. Both are nil if the series has
	// no band.
	Lo, Hi []float64
}

// SeriesFromResults extracts one series per distinct ".file" label
// from results, in observation order, measuring the given metric.
func SeriesFromResults(results []*sweepfmt.Result, metric string) ([]*Series, error) {
	if sweepfmt.MetricUnit(metric) == "" {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	var series []*Series
	byLabel := make(map[string]*Series)
	for _, r := range results {
		label := r.GetLabel(".file")
		s := byLabel[label]
		if s == nil {
			s = &Series{Label: label}
			byLabel[label] = s
			series = append(series, s)
		}
		v, _ := r.Metric(metric)
		s.Sizes = append(s.Sizes, r.Size)
		s.Values = append(s.Values, v)
	}
	return series, nil
}

// Aggregate condenses repeated sizes in s to one point per size: the
// point's value is the mean of the size's measurements, and the Lo/Hi
// band spans their min and max. Sizes keep first-observation order.
func Aggregate(s *Series) *Series {
	if len(s.Sizes) == 0 {
		return s
	}
	tab := new(table.Builder).Add("size", s.Sizes).Add("value", s.Values).Done()
	g := ggstat.Agg("size")(ggstat.AggMean("value"), ggstat.AggMin("value"), ggstat.AggMax("value")).F(tab)
	t := g.Table(g.Tables()[0])
	return &Series{
		Label:  s.Label,
		Sizes:  t.MustColumn("size").([]int),
		Values: t.MustColumn("mean value").([]float64),
		Lo:     t.MustColumn("min value").([]float64),
		Hi:     t.MustColumn("max value").([]float64),
	}
}
