// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sweepstat presents sweep measurements as comparison tables.
//
// A Builder collects results into one table per metric. Within a
// table, rows are sweep sizes and columns are inputs (".file" labels).
// The first column is the baseline; cells in later columns are
// compared against the baseline cell of their row.
package sweepstat

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/aclements/go-moremath/stats"
	"github.com/sweepbench/sweep/sweepfmt"
	"github.com/sweepbench/sweep/sweepmath"
)

// A Builder collects sweep results into a Tables set.
type Builder struct {
	metrics []string

	// colOrder is the observation order of column labels. Columns
	// keep this order in every table so the inputs line up across
	// metrics.
	colOrder []string
	colSeen  map[string]bool

	// tables maps from metric to table.
	tables map[string]*builderTable
}

type builderTable struct {
	// Observed row sizes and column labels within this table.
	rows map[int]struct{}
	cols map[string]struct{}

	// cells maps from (size, column label) to each cell.
	cells map[TableKey]*builderCell
}

type builderCell struct {
	// values is the observed values in this cell.
	values []float64
	// labels records the label values seen for each key so that
	// cells that mix differently labeled results can be reported.
	labels map[string]*labelDist
}

type labelDist struct {
	count  int // results carrying the label
	values map[string]struct{}
}

// NewBuilder creates a new Builder for collecting sweep results into
// tables, one per metric. Each result is mapped to a cell by its size
// and its ".file" label. Results within a single cell that vary in any
// other label will be reported as warnings. The metrics must be names
// from sweepfmt.Metrics; if none are given, rate and elapsed tables
// are built.
func NewBuilder(metrics ...string) *Builder {
	if len(metrics) == 0 {
		metrics = []string{"rate", "elapsed"}
	}
	for _, metric := range metrics {
		if sweepfmt.MetricUnit(metric) == "" {
			panic("unknown metric " + metric)
		}
	}
	return &Builder{
		metrics: metrics,
		colSeen: make(map[string]bool),
		tables:  make(map[string]*builderTable),
	}
}

// Add adds the values of result to the tables in the Builder.
func (b *Builder) Add(result *sweepfmt.Result) {
	col := result.GetLabel(".file")
	if !b.colSeen[col] {
		b.colSeen[col] = true
		b.colOrder = append(b.colOrder, col)
	}
	cellKey := TableKey{result.Size, col}

	for _, metric := range b.metrics {
		val, ok := result.Metric(metric)
		if !ok {
			continue
		}

		table := b.tables[metric]
		if table == nil {
			table = newBuilderTable()
			b.tables[metric] = table
		}

		// Map to a cell.
		c := table.cells[cellKey]
		if c == nil {
			c = &builderCell{labels: make(map[string]*labelDist)}
			table.cells[cellKey] = c
			table.rows[result.Size] = struct{}{}
			table.cols[col] = struct{}{}
		}

		// Add to the cell.
		c.values = append(c.values, val)
		for _, label := range result.Labels {
			if label.Key == ".file" {
				continue
			}
			d := c.labels[label.Key]
			if d == nil {
				d = &labelDist{values: make(map[string]struct{})}
				c.labels[label.Key] = d
			}
			d.count++
			d.values[string(label.Value)] = struct{}{}
		}
	}
}

func newBuilderTable() *builderTable {
	return &builderTable{
		rows:  make(map[int]struct{}),
		cols:  make(map[string]struct{}),
		cells: make(map[TableKey]*builderCell),
	}
}

// TableOpts provides options for constructing the final analysis
// tables from a Builder.
type TableOpts struct {
	// Confidence is the desired confidence level in summary
	// intervals; e.g., 0.95 for 95%.
	Confidence float64

	// Thresholds is the thresholds to use for statistical tests.
	Thresholds *sweepmath.Thresholds

	// Assumption is the distributional assumption to use for
	// measured metrics. If nil, it defaults to
	// sweepmath.AssumeNothing. The size metric always uses
	// sweepmath.AssumeExact because sizes are configured rather
	// than measured.
	Assumption sweepmath.Assumption
}

// Tables is a sequence of sweep statistic tables.
type Tables struct {
	// Tables is a slice of statistic tables in metric order.
	Tables []*Table

	// Metrics is a slice of metric names, corresponding 1:1 to the
	// Tables slice.
	Metrics []string
}

// ToTables finalizes a Builder into a sequence of statistic tables.
func (b *Builder) ToTables(opts TableOpts) *Tables {
	// We're going to compute table cells in parallel because the
	// statistics are somewhat expensive. This is entirely
	// CPU-bound, so we put a simple concurrency limit on it.
	limit := make(chan struct{}, 2*runtime.GOMAXPROCS(-1))
	var wg sync.WaitGroup

	// Process each metric's table.
	var tables []*Table
	var metrics []string
	for _, metric := range b.metrics {
		cTable := b.tables[metric]
		if cTable == nil {
			continue
		}

		assumption := opts.Assumption
		if assumption == nil {
			assumption = sweepmath.AssumeNothing
		}
		if metric == "size" {
			assumption = sweepmath.AssumeExact
		}

		table := &Table{
			Opts:       opts,
			Metric:     metric,
			Unit:       sweepfmt.MetricUnit(metric),
			Better:     metricBetter(metric),
			Assumption: assumption,
			Rows:       sortedSizes(cTable.rows),
			Cols:       b.orderedCols(cTable.cols),
			Cells:      make(map[TableKey]*TableCell),
		}
		tables = append(tables, table)
		metrics = append(metrics, metric)

		// Create all TableCells and fill their Samples. This
		// is fast enough it's not worth parallelizing. This
		// enables the second pass to look up baselines and
		// their samples.
		for k, cCell := range cTable.cells {
			table.Cells[k] = &TableCell{
				Sample: sweepmath.NewSample(cCell.values, opts.Thresholds),
			}
		}

		// Populate cells.
		baselineCol := table.Cols[0]
		wg.Add(len(cTable.cells))
		for k, cCell := range cTable.cells {
			cell := table.Cells[k]

			// Look up the baseline.
			if k.Col != baselineCol {
				base, ok := table.Cells[TableKey{k.Row, baselineCol}]
				if ok {
					cell.Baseline = base
				}
			}

			limit <- struct{}{}
			cCell := cCell
			go func() {
				summarizeCell(cCell, cell, assumption, opts.Confidence)
				<-limit
				wg.Done()
			}()
		}
	}
	wg.Wait()

	// Add summary rows to each table.
	for _, table := range tables {
		table.SummaryLabel = "geomean"
		table.Summary = make(map[string]*TableSummary)

		// Count the number of baseline cells. If later columns
		// don't have the same number of baseline pairings, we
		// know the size sets don't match.
		nBase := 0
		baseCol := table.Cols[0]
		for _, row := range table.Rows {
			if _, ok := table.Cells[TableKey{row, baseCol}]; ok {
				nBase++
			}
		}

		for i, col := range table.Cols {
			var s TableSummary
			table.Summary[col] = &s
			isBase := i == 0

			limit <- struct{}{}
			table, col := table, col
			wg.Add(1)
			go func() {
				summarizeCol(table, col, &s, nBase, isBase)
				<-limit
				wg.Done()
			}()
		}
	}
	wg.Wait()

	return &Tables{tables, metrics}
}

// metricBetter reports the good direction of a metric: +1 if larger
// values are better, -1 if smaller values are better, 0 if neither.
func metricBetter(metric string) int {
	switch metric {
	case "rate":
		return 1
	case "elapsed":
		return -1
	}
	return 0
}

func sortedSizes(m map[int]struct{}) []int {
	var sizes []int
	for size := range m {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	return sizes
}

// orderedCols returns the members of m in global observation order.
func (b *Builder) orderedCols(m map[string]struct{}) []string {
	var cols []string
	for _, col := range b.colOrder {
		if _, ok := m[col]; ok {
			cols = append(cols, col)
		}
	}
	return cols
}

func summarizeCell(cCell *builderCell, cell *TableCell, assumption sweepmath.Assumption, confidence float64) {
	cell.Summary = assumption.Summary(cell.Sample, confidence)

	// If there's a baseline, compute comparison.
	if cell.Baseline != nil {
		cell.Comparison = assumption.Compare(cell.Baseline.Sample, cell.Sample)
	}

	// Warn for labels that vary within this cell. A label also
	// varies if only some of the cell's results carry it.
	var varying []string
	n := len(cell.Sample.Values)
	for key, d := range cCell.labels {
		if len(d.values) > 1 || d.count != n {
			varying = append(varying, key)
		}
	}
	if len(varying) > 0 {
		sort.Strings(varying)
		cell.Sample.Warnings = append(cell.Sample.Warnings, errors.New("results vary in "+strings.Join(varying, ", ")))
	}
}

func summarizeCol(table *Table, col string, s *TableSummary, nBase int, isBase bool) {
	// Collect cells.
	//
	// This computes the geomean of the summary ratios rather than
	// the ratio of the summary geomeans. These are identical *if*
	// the size sets are the same. But if the size sets differ,
	// this leads to more sensible ratios because it's still the
	// geomean of the column, rather than being a comparison of two
	// incomparable numbers. It's still easy to misinterpret, but
	// at least it's not meaningless.
	var summaries, ratios []float64
	badRatio := false
	for _, row := range table.Rows {
		cell, ok := table.Cells[TableKey{row, col}]
		if !ok {
			continue
		}
		summaries = append(summaries, cell.Summary.Center)
		if cell.Baseline != nil {
			var ratio float64
			a, b := cell.Summary.Center, cell.Baseline.Summary.Center
			if a == b {
				// Treat 0/0 as 1.
				ratio = 1
			} else if b == 0 {
				badRatio = true
				// Keep nBase check working.
				ratios = append(ratios, 0)
				continue
			} else {
				ratio = a / b
			}
			ratios = append(ratios, ratio)
		}
	}

	// If the number of cells in this column that had a baseline is
	// the same as the total number of baselines, then we know the
	// size sets match. Otherwise, they don't and these numbers are
	// probably misleading.
	if !isBase && nBase != len(ratios) {
		s.Warnings = append(s.Warnings, fmt.Errorf("size set differs from baseline; geomeans may not be comparable"))
	}

	// Summarize centers.
	gm := stats.GeoMean(summaries)
	if math.IsNaN(gm) {
		s.Warnings = append(s.Warnings, fmt.Errorf("summaries must be >0 to compute geomean"))
	} else {
		s.HasSummary = true
		s.Summary = gm
	}

	// Summarize ratios.
	if !isBase && !badRatio {
		gm := stats.GeoMean(ratios)
		if math.IsNaN(gm) {
			s.Warnings = append(s.Warnings, fmt.Errorf("ratios must be >0 to compute geomean"))
		} else {
			s.HasRatio = true
			s.Ratio = gm
		}
	}
}
