// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepstat

import (
	"math"
	"reflect"
	"testing"

	"github.com/sweepbench/sweep/sweepfmt"
	"github.com/sweepbench/sweep/sweepmath"
)

// res returns a Result attributed to file at the given sweep size,
// plus optional key/value label pairs.
func res(t *testing.T, file string, size int, elapsed, rate float64, labels ...string) *sweepfmt.Result {
	t.Helper()
	if len(labels)%2 != 0 {
		t.Fatal("odd number of label arguments")
	}
	r := &sweepfmt.Result{Size: size, Elapsed: elapsed, Rate: rate}
	r.SetLabel(".file", file)
	for i := 0; i < len(labels); i += 2 {
		r.SetLabel(labels[i], labels[i+1])
	}
	return r
}

// aeq returns true if expect and got are equal to 8 significant
// figures (1 part in 100 million).
func aeq(expect, got float64) bool {
	if expect < 0 && got < 0 {
		expect, got = -expect, -got
	}
	return expect*0.99999999 <= got && got*0.99999999 <= expect
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	// Two files with two sizes each. At size 1 the files differ,
	// at size 2 they agree exactly.
	for i := 0; i < 4; i++ {
		b.Add(res(t, "old", 1, 1, 10))
		b.Add(res(t, "old", 2, 1, 100))
		b.Add(res(t, "new", 1, 1, 15))
		b.Add(res(t, "new", 2, 1, 100))
	}
	tables := b.ToTables(TableOpts{Confidence: 0.95, Thresholds: &sweepmath.DefaultThresholds})

	if want := []string{"rate", "elapsed"}; !reflect.DeepEqual(tables.Metrics, want) {
		t.Errorf("got metrics %v, want %v", tables.Metrics, want)
	}
	if len(tables.Tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(tables.Tables))
	}

	rate := tables.Tables[0]
	if rate.Metric != "rate" || rate.Unit != "elems/sec" || rate.Better != 1 {
		t.Errorf("got metric %q unit %q better %d, want rate, elems/sec, 1", rate.Metric, rate.Unit, rate.Better)
	}
	if want := []int{1, 2}; !reflect.DeepEqual(rate.Rows, want) {
		t.Errorf("got rows %v, want %v", rate.Rows, want)
	}
	if want := []string{"old", "new"}; !reflect.DeepEqual(rate.Cols, want) {
		t.Errorf("got cols %v, want %v", rate.Cols, want)
	}

	// Comparison cells point at the first column's cell on the
	// same row; the first column has no baseline.
	for _, row := range rate.Rows {
		if cell := rate.Cells[TableKey{row, "old"}]; cell.Baseline != nil {
			t.Errorf("baseline column at size %d has a baseline", row)
		}
		cell := rate.Cells[TableKey{row, "new"}]
		if cell.Baseline != rate.Cells[TableKey{row, "old"}] {
			t.Errorf("comparison column at size %d has the wrong baseline", row)
		}
	}

	// The distinct cell compares significant and the equal cell
	// does not.
	diff := rate.Cells[TableKey{1, "new"}]
	if want := []float64{15, 15, 15, 15}; !reflect.DeepEqual(diff.Sample.Values, want) {
		t.Errorf("got sample %v, want %v", diff.Sample.Values, want)
	}
	if diff.Summary.Center != 15 {
		t.Errorf("got center %v, want 15", diff.Summary.Center)
	}
	if cmp := diff.Comparison; cmp.P > cmp.Alpha || cmp.N1 != 4 || cmp.N2 != 4 || cmp.Alpha != 0.05 {
		t.Errorf("want significant 4 vs 4 comparison at alpha 0.05, got %+v", cmp)
	}
	same := rate.Cells[TableKey{2, "new"}]
	if cmp := same.Comparison; cmp.P <= cmp.Alpha {
		t.Errorf("want insignificant comparison, got %+v", cmp)
	}

	// The summary row carries per-column geomeans and the ratio of
	// each comparison column's geomean to the baseline's.
	if rate.SummaryLabel != "geomean" {
		t.Errorf("got summary label %q, want geomean", rate.SummaryLabel)
	}
	oldSum := rate.Summary["old"]
	if !oldSum.HasSummary || !aeq(math.Sqrt(10*100), oldSum.Summary) {
		t.Errorf("got baseline summary %+v, want geomean %v", oldSum, math.Sqrt(10*100))
	}
	if oldSum.HasRatio {
		t.Errorf("baseline column has a ratio")
	}
	newSum := rate.Summary["new"]
	if !newSum.HasSummary || !aeq(math.Sqrt(15*100), newSum.Summary) {
		t.Errorf("got summary %+v, want geomean %v", newSum, math.Sqrt(15*100))
	}
	if !newSum.HasRatio || !aeq(math.Sqrt(1.5), newSum.Ratio) {
		t.Errorf("got ratio %+v, want %v", newSum, math.Sqrt(1.5))
	}
	if len(newSum.Warnings) != 0 {
		t.Errorf("unexpected summary warnings %v", newSum.Warnings)
	}

	elapsed := tables.Tables[1]
	if elapsed.Metric != "elapsed" || elapsed.Unit != "sec" || elapsed.Better != -1 {
		t.Errorf("got metric %q unit %q better %d, want elapsed, sec, -1", elapsed.Metric, elapsed.Unit, elapsed.Better)
	}
}

func TestBuilderMetrics(t *testing.T) {
	b := NewBuilder("size", "rate")
	b.Add(res(t, "a", 4, 1, 10))
	tables := b.ToTables(TableOpts{Confidence: 0.95, Thresholds: &sweepmath.DefaultThresholds})

	if want := []string{"size", "rate"}; !reflect.DeepEqual(tables.Metrics, want) {
		t.Fatalf("got metrics %v, want %v", tables.Metrics, want)
	}
	// The size table is exact, so its sole cell summarizes with no
	// confidence interval.
	size := tables.Tables[0]
	if size.Better != 0 {
		t.Errorf("got better %d for size, want 0", size.Better)
	}
	cell := size.Cells[TableKey{4, "a"}]
	if cell.Summary.Center != 4 || cell.Summary.Lo != 4 || cell.Summary.Hi != 4 {
		t.Errorf("got size summary %+v, want exactly 4", cell.Summary)
	}

	// Unknown metrics panic.
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for unknown metric")
		}
	}()
	NewBuilder("latency")
}

func TestBuilderWarnings(t *testing.T) {
	b := NewBuilder("rate")
	// Mix two commits in one cell, and give the second file only
	// one of the baseline's two sizes.
	b.Add(res(t, "old", 1, 1, 10, "commit", "abc123"))
	b.Add(res(t, "old", 1, 1, 11, "commit", "def456"))
	b.Add(res(t, "old", 2, 1, 100, "commit", "abc123"))
	b.Add(res(t, "new", 1, 1, 12, "commit", "abc123"))
	tables := b.ToTables(TableOpts{Confidence: 0.95, Thresholds: &sweepmath.DefaultThresholds})

	table := tables.Tables[0]
	mixed := table.Cells[TableKey{1, "old"}]
	if !hasWarning(mixed.Sample.Warnings, "results vary in commit") {
		t.Errorf("got warnings %v, want results vary in commit", mixed.Sample.Warnings)
	}
	if pure := table.Cells[TableKey{2, "old"}]; len(pure.Sample.Warnings) != 0 {
		t.Errorf("got warnings %v, want none", pure.Sample.Warnings)
	}

	nsum := table.Summary["new"]
	if !hasWarning(nsum.Warnings, "size set differs from baseline; geomeans may not be comparable") {
		t.Errorf("got summary warnings %v, want size set warning", nsum.Warnings)
	}
}

func hasWarning(warnings []error, want string) bool {
	for _, w := range warnings {
		if w.Error() == want {
			return true
		}
	}
	return false
}
