// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sweepstat computes and compares statistics about sweep benchmark
// runs.
//
// Usage:
//
//	sweepstat [flags] old.log [new.log ...]
//
// Each input file is a sweep benchmark log. Sweepstat collects the
// measurements of each input into one table per metric, with one row
// per sweep size and one column per input. When there are two or more
// inputs, the first is the baseline and every later column shows the
// delta against it along with the p-value and sample sizes of a
// Mann-Whitney U-test. Deltas with p-values above -alpha print as a
// single ~ instead of a misleading percent change.
//
// An input of the form label=path overrides the column name for that
// file, and "-" reads from standard input.
//
// By default sweepstat prints fixed-width text tables. The -csv flag
// prints CSV, with any warnings redirected to standard error so they
// don't corrupt the table; -html prints a standalone HTML page.
//
// The -sort flag orders rows by size, by printed name, or by delta
// magnitude; a leading "-", as in "-delta", reverses the order.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/sweepbench/sweep/sweepfmt"
	"github.com/sweepbench/sweep/sweepmath"
	"github.com/sweepbench/sweep/sweepstat"
)

func main() {
	log.SetPrefix("sweepstat: ")
	log.SetFlags(0)
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

var sortNames = map[string]sweepstat.Order{
	"none":  nil,
	"size":  sweepstat.BySize,
	"name":  sweepstat.ByName,
	"delta": sweepstat.ByDelta,
}

func run(w, wErr io.Writer, args []string) error {
	flags := flag.NewFlagSet("sweepstat", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), `Usage: sweepstat [flags] old.log [new.log ...]

sweepstat summarizes and compares sweep benchmark logs. Each table row
is one sweep size and each column one input file; columns after the
first are compared against it. An input of the form label=path
overrides the column name for that file, and "-" reads from standard
input.

`)
		flags.PrintDefaults()
	}
	metrics := flags.String("metric", "rate,elapsed", "build tables for comma-separated `metrics`: rate, elapsed, size")
	alpha := flags.Float64("alpha", 0.05, "consider a change significant if p < `α`")
	confidence := flags.Float64("confidence", 0.95, "confidence `level` for ranges")
	sortName := flags.String("sort", "none", "sort rows by `order`: [-]size, [-]name, [-]delta, none")
	csv := flags.Bool("csv", false, "print results in CSV form")
	html := flags.Bool("html", false, "print results as an HTML page")
	flags.Parse(args)
	if flags.NArg() < 1 {
		flags.Usage()
		os.Exit(2)
	}

	name, reverse := *sortName, false
	if strings.HasPrefix(name, "-") {
		reverse, name = true, name[1:]
	}
	order, ok := sortNames[name]
	if !ok {
		return fmt.Errorf("unknown sort order %q", *sortName)
	}
	if order == nil && reverse {
		return fmt.Errorf("unknown sort order %q", *sortName)
	}
	if reverse {
		order = sweepstat.Reverse(order)
	}

	var metricNames []string
	for _, m := range strings.Split(*metrics, ",") {
		m = strings.TrimSpace(m)
		if sweepfmt.MetricUnit(m) == "" {
			return fmt.Errorf("unknown metric %q", m)
		}
		metricNames = append(metricNames, m)
	}
	builder := sweepstat.NewBuilder(metricNames...)

	files := sweepfmt.Files{Paths: flags.Args(), AllowStdin: true, AllowLabels: true}
	for files.Scan() {
		switch rec := files.Result().(type) {
		case *sweepfmt.SyntaxError:
			// Non-fatal result parse error. Warn but keep going.
			fmt.Fprintln(wErr, rec)
		case *sweepfmt.Result:
			builder.Add(rec)
		}
	}
	if err := files.Err(); err != nil {
		return err
	}

	thresholds := sweepmath.DefaultThresholds
	thresholds.CompareAlpha = *alpha
	tables := builder.ToTables(sweepstat.TableOpts{
		Confidence: *confidence,
		Thresholds: &thresholds,
	})
	if order != nil {
		tables.Sort(order)
	}

	switch {
	case *csv:
		return tables.ToCSV(w, wErr)
	case *html:
		if _, err := io.WriteString(w, htmlHeader); err != nil {
			return err
		}
		if err := tables.ToHTML(w); err != nil {
			return err
		}
		_, err := io.WriteString(w, htmlFooter)
		return err
	}
	return tables.ToText(w)
}

var htmlHeader = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Sweep Result Comparison</title>
<style>
.sweepstat { border-collapse: collapse; }
.sweepstat th:nth-child(1) { text-align: left; }
.sweepstat tbody td:nth-child(1n+2):not(.note) { text-align: right; padding: 0em 1em; }
.sweepstat tr th { border-top: 1px solid #666; border-bottom: 1px solid #ccc; }
.sweepstat .nodelta { text-align: center !important; }
.sweepstat .better td.delta { font-weight: bold; }
.sweepstat .worse td.delta { font-weight: bold; color: #c00; }
</style>
</head>
<body>
`
var htmlFooter = `</body>
</html>
`
