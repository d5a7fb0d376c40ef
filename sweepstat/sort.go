// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepstat

import (
	"math"
	"sort"
	"strconv"
)

// An Order defines a sort order for the rows of a Table.
type Order func(t *Table, i, j int) bool

// BySize orders rows by increasing size. This is the order ToTables
// produces.
func BySize(t *Table, i, j int) bool {
	return t.Rows[i] < t.Rows[j]
}

// ByName orders rows lexically by their printed size label. Sizes
// with the same digit count order numerically.
func ByName(t *Table, i, j int) bool {
	return strconv.Itoa(t.Rows[i]) < strconv.Itoa(t.Rows[j])
}

// ByDelta orders rows by the change between the first comparison
// column and the baseline: large regressions first, insignificant or
// missing deltas in the middle, large improvements last. The direction
// of improvement follows t.Better.
func ByDelta(t *Table, i, j int) bool {
	return t.rowDelta(i) < t.rowDelta(j)
}

// rowDelta returns the ByDelta sort key of row i: the absolute percent
// change between the first comparison column and the baseline, made
// negative for regressions. Insignificant or missing deltas are 0.
func (t *Table) rowDelta(i int) float64 {
	if len(t.Cols) < 2 {
		return 0
	}
	cell, ok := t.Cells[TableKey{t.Rows[i], t.Cols[1]}]
	if !ok || cell.Baseline == nil {
		return 0
	}
	if cell.Comparison.P > cell.Comparison.Alpha {
		return 0
	}
	old, new := cell.Baseline.Summary.Center, cell.Summary.Center
	if old == 0 || old == new {
		return 0
	}
	pct := (new/old - 1) * 100
	improvement := pct * float64(t.Better)
	if t.Better == 0 {
		improvement = pct
	}
	if improvement > 0 {
		return math.Abs(pct)
	}
	return -math.Abs(pct)
}

// Reverse returns the reverse of order.
func Reverse(order Order) Order {
	return func(t *Table, i, j int) bool { return order(t, j, i) }
}

// Sort sorts the rows of each table in t by order. Ties keep their
// current relative order.
func (t *Tables) Sort(order Order) {
	for _, table := range t.Tables {
		table.Sort(order)
	}
}

// Sort sorts the rows of t in place by order.
func (t *Table) Sort(order Order) {
	sort.SliceStable(t.Rows, func(i, j int) bool { return order(t, i, j) })
}
