// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepfmt

import (
	"bytes"
	"fmt"
	"io"
)

// A Writer writes the sweep log format.
type Writer struct {
	w   io.Writer
	buf bytes.Buffer

	first      bool
	fileLabels map[string]Label
	order      []string
}

// NewWriter returns a writer that writes sweep measurements to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, first: true, fileLabels: make(map[string]Label)}
}

// Write writes Record rec to w. If rec is a *Result and rec's file
// labels differ from the current file labels in w, it first emits the
// appropriate label lines. Internal labels (such as ".file") are
// omitted.
func (w *Writer) Write(rec Record) error {
	switch rec := rec.(type) {
	case *Result:
		w.writeResult(rec)
	case *SyntaxError:
		// Ignore
		return nil
	default:
		return fmt.Errorf("unknown Record type %T", rec)
	}

	// Flush the buffer out to the io.Writer. Write to the buffer
	// can't fail, so we only have to check if this fails.
	_, err := w.w.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *Writer) writeResult(res *Result) {
	// If any file label changed, write out the changes.
	if len(w.fileLabels) != len(res.Labels) {
		w.writeFileLabels(res)
	} else {
		for _, label := range res.Labels {
			if have, ok := w.fileLabels[label.Key]; !ok || !bytes.Equal(label.Value, have.Value) || label.File != have.File {
				w.writeFileLabels(res)
				break
			}
		}
	}

	// Print the measurement line.
	fmt.Fprintf(&w.buf, "size=%d elapsed: %v rate: %v\n", res.Size, res.Elapsed, res.Rate)

	w.first = false
}

func (w *Writer) writeFileLabels(res *Result) {
	if !w.first {
		// Label blocks after measurements get an extra blank.
		w.buf.WriteByte('\n')
		w.first = true
	}

	// Walk keys we know to find changes and deletions.
	for i := 0; i < len(w.order); i++ {
		key := w.order[i]
		have := w.fileLabels[key]
		idx, ok := res.LabelIndex(key)
		if !ok {
			// Key was deleted.
			fmt.Fprintf(&w.buf, "%s:\n", key)
			delete(w.fileLabels, key)
			copy(w.order[i:], w.order[i+1:])
			w.order = w.order[:len(w.order)-1]
			i--
			continue
		}
		label := &res.Labels[idx]
		if bytes.Equal(have.Value, label.Value) && have.File == label.File {
			// Value did not change.
			continue
		}
		// Value changed.
		if label.File {
			// Omit internal labels.
			fmt.Fprintf(&w.buf, "%s: %s\n", key, label.Value)
		}
		have.Value = append(have.Value[:0], label.Value...)
		have.File = label.File
		w.fileLabels[key] = have
	}

	// Find new keys.
	if len(w.fileLabels) != len(res.Labels) {
		for _, label := range res.Labels {
			if _, ok := w.fileLabels[label.Key]; ok {
				continue
			}
			// New key.
			if label.File {
				fmt.Fprintf(&w.buf, "%s: %s\n", label.Key, label.Value)
			}
			w.fileLabels[label.Key] = Label{label.Key, append([]byte(nil), label.Value...), label.File}
			w.order = append(w.order, label.Key)
		}
	}

	w.buf.WriteByte('\n')
}
