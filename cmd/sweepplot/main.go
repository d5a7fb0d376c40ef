// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sweepplot compares sweep benchmark runs on a log-log chart.
//
// Usage:
//
//	sweepplot [flags] old.log [new.log ...]
//
// Each input file is a sweep benchmark log: text containing "size=N"
// tokens paired with "elapsed: V" and "rate: V" tokens. An input of
// the form label=path overrides the legend entry for that file.
//
// Sweepplot first prints the raw token sequences extracted from each
// input together with their counts. The three scans are independent,
// so the counts disagree when a log has stray or incomplete
// measurement lines; the chart is built from complete measurements
// only, and each incomplete one is reported on standard error.
//
// The chart plots the chosen metric against size with both axes log
// scaled and is written to the -o file in the format named by its
// extension. The first input is drawn as a solid red line, the second
// as a dashed green line, and later inputs cycle through further
// styles.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/sweepbench/sweep/sweepfmt"
	"github.com/sweepbench/sweep/sweepplot"
)

func main() {
	log.SetPrefix("sweepplot: ")
	log.SetFlags(0)
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// An input is one log file to plot. Its label becomes the ".file"
// label of its results and hence its legend entry.
type input struct {
	path  string
	label string
}

// parseInputs maps command-line arguments to inputs. Arguments of the
// form label=path use the given label; repeated paths are
// disambiguated with "#N" so their series stay distinct.
func parseInputs(args []string) []input {
	inputs := make([]input, len(args))
	pathCount := make(map[string]int)
	for i, arg := range args {
		label, path := arg, arg
		if j := strings.Index(arg, "="); j >= 0 {
			label, path = arg[:j], arg[j+1:]
		} else {
			pathCount[path]++
		}
		inputs[i] = input{path, label}
	}
	pathI := make(map[string]int)
	for i := range inputs {
		inp := &inputs[i]
		if inp.label != inp.path || pathCount[inp.path] == 1 {
			continue
		}
		inp.label = fmt.Sprintf("%s#%d", inp.path, pathI[inp.path])
		pathI[inp.path]++
	}
	return inputs
}

func run(w, wErr io.Writer, args []string) error {
	flags := flag.NewFlagSet("sweepplot", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), `Usage: sweepplot [flags] old.log [new.log ...]

sweepplot reads sweep benchmark logs, prints the size, elapsed, and
rate sequences extracted from each input, and renders a log-log chart
comparing the inputs. An input of the form label=path overrides the
legend entry for that file.

`)
		flags.PrintDefaults()
	}
	out := flags.String("o", "rate-vs-size.png", "write the chart to `file` (.png, .svg, or .pdf)")
	title := flags.String("title", "", "chart `title` (default derived from -metric)")
	metric := flags.String("metric", "rate", "plot `metric`: rate or elapsed")
	trend := flags.Bool("trend", false, "aggregate repeated sizes to their mean with a min/max band")
	labels := flags.String("labels", "", "comma-separated legend `labels` overriding the input names")
	width := flags.Float64("width", 18, "chart width in `cm`")
	height := flags.Float64("height", 12, "chart height in `cm`")
	dpi := flags.Int("dpi", 300, "PNG resolution in `dots` per inch")
	flags.Parse(args)
	if flags.NArg() < 1 {
		flags.Usage()
		os.Exit(2)
	}

	var results []*sweepfmt.Result
	for _, inp := range parseInputs(flags.Args()) {
		data, err := os.ReadFile(inp.path)
		if err != nil {
			return err
		}

		// The raw sequences, printed the way the extraction sees
		// them: three independent scans whose counts need not agree.
		series, err := sweepfmt.Extract(data)
		if err != nil {
			return fmt.Errorf("%s: %v", inp.path, err)
		}
		fmt.Fprintf(w, "%s:\n", inp.label)
		fmt.Fprintln(w, "Sizes:", series.Sizes)
		fmt.Fprintln(w, "Elapsed:", series.Elapsed)
		fmt.Fprintln(w, "Rate:", series.Rates)
		fmt.Fprintln(w, len(series.Sizes))
		fmt.Fprintln(w, len(series.Elapsed))
		fmt.Fprintln(w, len(series.Rates))

		// The chart is built from complete measurements so a stray
		// token can't pair a size with the wrong value.
		r := new(sweepfmt.Reader)
		r.Reset(bytes.NewReader(data), inp.path, ".file", inp.label)
		for r.Scan() {
			switch rec := r.Result().(type) {
			case *sweepfmt.Result:
				results = append(results, rec.Clone())
			case *sweepfmt.SyntaxError:
				fmt.Fprintln(wErr, rec)
			}
		}
		if err := r.Err(); err != nil {
			return err
		}
	}

	series, err := sweepplot.SeriesFromResults(results, *metric)
	if err != nil {
		return err
	}
	if *trend {
		for i, s := range series {
			series[i] = sweepplot.Aggregate(s)
		}
	}
	if *labels != "" {
		names := strings.Split(*labels, ",")
		if len(names) != len(series) {
			return fmt.Errorf("-labels names %d series, but there are %d inputs", len(names), len(series))
		}
		for i, s := range series {
			s.Label = strings.TrimSpace(names[i])
		}
	}

	chart, err := sweepplot.New(sweepplot.ChartOpts{
		Title:  *title,
		Metric: *metric,
		Width:  *width,
		Height: *height,
		DPI:    *dpi,
	}, series...)
	if err != nil {
		return err
	}
	if err := chart.Save(*out); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", *out)
	return nil
}
