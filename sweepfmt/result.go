// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sweepfmt provides a reader and writer for sweep benchmark
// logs.
//
// A sweep log is the text output of a size-sweep benchmark: a run of
// the same kernel at a progression of problem sizes. Each measurement
// line records a size, the elapsed wall time at that size, and the
// achieved processing rate. Lines of the form "key: value" set labels
// that apply to all following measurements, and all other lines are
// ignored, so sweep logs can be raw console output.
//
// The reader and writer are structured as streaming operations to
// allow incremental processing and avoid dictating a data model. The
// reader performs in-place updates to reduce allocation.
//
// This package is designed to be used with the higher-level packages
// sweepunit, sweepmath, sweepstat, and sweepplot.
package sweepfmt

// A Result is a single sweep measurement: the elapsed time and
// processing rate observed at one problem size.
//
// Results are designed to be mutated in place and reused to reduce
// allocation.
type Result struct {
	// Labels is the set of key/value label pairs for this result,
	// including file and internal labels.
	//
	// This slice is mutable, as are the values in the slice.
	// Result internally maintains an index of the keys of this slice,
	// so callers must use SetLabel to add or delete keys,
	// but may modify values in place. There is one exception to this:
	// for convenience, new Results can be initialized directly,
	// e.g., using a struct literal.
	//
	// SetLabel appends new keys to this slice and updates existing
	// ones in place. To delete a key, it swaps the deleted key with
	// the final slice element. This way, the order of these keys is
	// deterministic.
	Labels []Label

	// Size is the problem size this measurement was taken at, in
	// elements.
	Size int

	// Elapsed is the wall-clock time of the run at Size, in seconds.
	Elapsed float64

	// Rate is the processing rate of the run at Size, in elements
	// per second.
	Rate float64

	// labelPos maps from Label.Key to index in Labels. This
	// may be nil, which indicates the index needs to be
	// constructed.
	labelPos map[string]int

	// fileName and line record where this Record was read from.
	fileName string
	line     int
}

// A Label is a single key/value label pair.
// This can be a file label, which was read directly from a sweep log;
// or an "internal" label that was supplied by tooling.
type Label struct {
	Key   string
	Value []byte
	File  bool // Set if this is a file label key, otherwise internal
}

// Label values are []bytes rather than strings so the reader can
// reuse value space between results and so extractors can work in
// terms of []byte views without converting. Keys repeat far more than
// values, so they stay strings.

// Pos returns the file name and line number of a Result that was read
// by a Reader. For Results that were not read from a file, it returns
// "", 0.
func (r *Result) Pos() (fileName string, line int) {
	return r.fileName, r.line
}

// Clone makes a copy of Result that shares no state with r.
func (r *Result) Clone() *Result {
	r2 := &Result{
		Labels:   make([]Label, len(r.Labels)),
		Size:     r.Size,
		Elapsed:  r.Elapsed,
		Rate:     r.Rate,
		fileName: r.fileName,
		line:     r.line,
	}
	for i, label := range r.Labels {
		r2.Labels[i].Key = label.Key
		r2.Labels[i].Value = append([]byte(nil), label.Value...)
		r2.Labels[i].File = label.File
	}
	return r2
}

// SetLabel sets label key to value, overriding or adding the label as
// necessary, and marks it internal.
// If value is "", SetLabel deletes key.
func (r *Result) SetLabel(key, value string) {
	if value == "" {
		r.deleteLabel(key)
	} else {
		label := r.ensureLabel(key, false)
		label.Value = append(label.Value[:0], value...)
	}
}

// ensureLabel returns the Label for key, creating it if necessary.
//
// This sets Key and File of the returned Label, but it's up to the
// caller to set Value. We take this approach because some callers have
// strings and others have []byte, so leaving this to the caller avoids
// allocation in one of these cases.
func (r *Result) ensureLabel(key string, file bool) *Label {
	pos, ok := r.LabelIndex(key)
	if ok {
		label := &r.Labels[pos]
		label.File = file
		return label
	}
	// Add key. Reuse old space if possible.
	r.labelPos[key] = len(r.Labels)
	if len(r.Labels) < cap(r.Labels) {
		r.Labels = r.Labels[:len(r.Labels)+1]
		label := &r.Labels[len(r.Labels)-1]
		label.Key = key
		label.File = file
		return label
	}
	r.Labels = append(r.Labels, Label{key, nil, file})
	return &r.Labels[len(r.Labels)-1]
}

func (r *Result) deleteLabel(key string) {
	pos, ok := r.LabelIndex(key)
	if !ok {
		return
	}
	// Delete key.
	label := &r.Labels[pos]
	label2 := &r.Labels[len(r.Labels)-1]
	*label, *label2 = *label2, *label
	r.labelPos[label.Key] = pos
	r.Labels = r.Labels[:len(r.Labels)-1]
	delete(r.labelPos, key)
}

// GetLabel returns the value of a label key, or "" if not present.
func (r *Result) GetLabel(key string) string {
	pos, ok := r.LabelIndex(key)
	if !ok {
		return ""
	}
	return string(r.Labels[pos].Value)
}

// LabelIndex returns the index in r.Labels of key.
func (r *Result) LabelIndex(key string) (pos int, ok bool) {
	if r.labelPos == nil {
		// This is a fresh Result. Construct the index.
		r.labelPos = make(map[string]int)
		for i, label := range r.Labels {
			r.labelPos[label.Key] = i
		}
	}

	pos, ok = r.labelPos[key]
	return
}

// Metric returns the named measurement of r. The metrics are "size",
// "elapsed", and "rate". It returns false if name is not one of these.
func (r *Result) Metric(name string) (float64, bool) {
	switch name {
	case "size":
		return float64(r.Size), true
	case "elapsed":
		return r.Elapsed, true
	case "rate":
		return r.Rate, true
	}
	return 0, false
}

// Metrics lists the measurements of a Result in presentation order.
var Metrics = []string{"size", "elapsed", "rate"}

// MetricUnit returns the unit of the named measurement, or "" if name
// is not a metric.
func MetricUnit(name string) string {
	switch name {
	case "size":
		return "elems"
	case "elapsed":
		return "sec"
	case "rate":
		return "elems/sec"
	}
	return ""
}
