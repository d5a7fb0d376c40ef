// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepstat

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/safehtml/template"
	"github.com/sweepbench/sweep/sweepunit"
)

// htmlTable is the template data for one rendered Table.
type htmlTable struct {
	Unit string
	Cols []string

	// HasDelta indicates the table has exactly two columns, so
	// each row carries a delta and note cell.
	HasDelta bool

	Rows []htmlRow
}

// htmlRow is the template data for one table row.
type htmlRow struct {
	Label  string
	Class  string   // better, worse, or unchanged
	Values []string // one scaled summary per column
	Delta  string
	Note   string
}

var htmlTemplate = template.Must(template.New("sweepstat").Funcs(template.FuncMap{
	"replace": strings.Replace,
}).ParseFromTrustedTemplate(template.MakeTrustedTemplate(`
{{- range $table := . -}}
<table class='sweepstat'>
<tbody>
<tr><th>size{{range .Cols}}<th>{{.}} {{$table.Unit}}{{end}}{{if .HasDelta}}<th>delta<th class='note'>&nbsp;{{end}}
{{range $row := $table.Rows -}}
<tr class='{{.Class}}'><td>{{.Label}}{{range .Values}}<td>{{.}}{{end}}{{if $table.HasDelta}}<td class='{{if eq .Delta "~"}}nodelta{{else}}delta{{end}}'>{{replace .Delta "-" "−" -1}}<td class='note'>{{.Note}}{{end}}
{{end -}}
</tbody>
</table>
{{end -}}
`)))

// ToHTML renders t as a sequence of HTML tables. The markup is styled
// by class: "sweepstat" on each table, "better", "worse", or
// "unchanged" on each row, and "delta", "nodelta", and "note" on
// comparison cells.
func (t *Tables) ToHTML(w io.Writer) error {
	data := make([]*htmlTable, 0, len(t.Tables))
	for _, table := range t.Tables {
		data = append(data, table.toHTML())
	}
	return htmlTemplate.Execute(w, data)
}

func (t *Table) toHTML() *htmlTable {
	h := &htmlTable{
		Unit:     t.Unit,
		Cols:     t.Cols,
		HasDelta: len(t.Cols) == 2,
	}
	unitClass := sweepunit.ClassOf(t.Unit)

	for _, row := range t.Rows {
		hr := htmlRow{Label: strconv.Itoa(row), Class: "unchanged", Delta: "~"}
		scaler := t.RowScaler(row, unitClass)
		for exp, col := range t.Cols {
			cell, ok := t.Cells[TableKey{row, col}]
			if !ok {
				hr.Values = append(hr.Values, "")
				continue
			}
			hr.Values = append(hr.Values, scaler.Format(cell.Summary.Center)+" ± "+cell.Summary.PctRangeString())
			if h.HasDelta && exp > 0 && cell.Baseline != nil {
				hr.Delta = cell.Comparison.FormatDelta(cell.Baseline.Summary.Center, cell.Summary.Center)
				hr.Note = "(" + cell.Comparison.String() + ")"
				hr.Class = t.deltaClass(cell)
			}
		}
		h.Rows = append(h.Rows, hr)
	}

	// Summary row.
	if len(t.Rows) > 1 && t.Summary != nil {
		hr := htmlRow{Label: t.SummaryLabel, Class: "unchanged", Delta: "~"}
		for exp, col := range t.Cols {
			tsum, ok := t.Summary[col]
			if !ok || !tsum.HasSummary {
				hr.Values = append(hr.Values, "")
			} else {
				hr.Values = append(hr.Values, sweepunit.Scale(tsum.Summary, unitClass))
			}
			if h.HasDelta && exp > 0 {
				if ok && tsum.HasRatio {
					hr.Delta = fmt.Sprintf("%+.2f%%", (tsum.Ratio-1)*100)
				} else {
					hr.Delta = "?"
				}
			}
		}
		h.Rows = append(h.Rows, hr)
	}
	return h
}

// deltaClass classifies the change in a comparison cell for styling:
// better, worse, or unchanged.
func (t *Table) deltaClass(cell *TableCell) string {
	cmp := cell.Comparison
	if cmp.P > cmp.Alpha || t.Better == 0 {
		return "unchanged"
	}
	old, new := cell.Baseline.Summary.Center, cell.Summary.Center
	if old == new {
		return "unchanged"
	}
	if (new > old) == (t.Better > 0) {
		return "better"
	}
	return "worse"
}
