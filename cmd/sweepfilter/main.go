// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sweepfilter reads sweep benchmark results from input files, filters
// them, and writes the filtered results to stdout. If no inputs are
// provided, it reads from stdin.
//
// Usage:
//
//	sweepfilter [flags] [inputs...]
//
// The -min-size and -max-size flags keep only measurements whose size
// falls in the given range; a bound of 0 means unbounded. The -label
// flag keeps only measurements carrying an exact key=value label, and
// may be repeated to require several labels at once.
//
// The output is in canonical form, so sweepfilter also serves to strip
// the ignored lines out of raw console logs:
//
//	sweepfilter run.log >run.sweep
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/sweepbench/sweep/sweepfmt"
)

func main() {
	log.SetPrefix("sweepfilter: ")
	log.SetFlags(0)
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// labelFlag collects repeated -label key=value arguments.
type labelFlag []sweepfmt.Label

func (f *labelFlag) String() string {
	var parts []string
	for _, l := range *f {
		parts = append(parts, fmt.Sprintf("%s=%s", l.Key, l.Value))
	}
	return strings.Join(parts, ",")
}

func (f *labelFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value")
	}
	*f = append(*f, sweepfmt.Label{Key: key, Value: []byte(value)})
	return nil
}

func run(w, wErr io.Writer, args []string) error {
	flags := flag.NewFlagSet("sweepfilter", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), `Usage: sweepfilter [flags] [inputs...]

sweepfilter reads sweep benchmark results from input files, filters
them, and writes the filtered results to stdout. If no inputs are
provided, it reads from stdin.

`)
		flags.PrintDefaults()
	}
	minSize := flags.Int("min-size", 0, "keep only sizes >= `n`; 0 means no bound")
	maxSize := flags.Int("max-size", 0, "keep only sizes <= `n`; 0 means no bound")
	var labels labelFlag
	flags.Var(&labels, "label", "keep only results with label `key=value`; may be repeated")
	flags.Parse(args)

	keep := func(res *sweepfmt.Result) bool {
		if res.Size < *minSize {
			return false
		}
		if *maxSize != 0 && res.Size > *maxSize {
			return false
		}
		for _, l := range labels {
			if res.GetLabel(l.Key) != string(l.Value) {
				return false
			}
		}
		return true
	}

	writer := sweepfmt.NewWriter(w)
	files := sweepfmt.Files{Paths: flags.Args(), AllowStdin: true, AllowLabels: true}
	for files.Scan() {
		rec := files.Result()
		switch rec := rec.(type) {
		case *sweepfmt.SyntaxError:
			// Non-fatal result parse error. Warn
			// but keep going.
			fmt.Fprintln(wErr, rec)
			continue
		case *sweepfmt.Result:
			if !keep(rec) {
				continue
			}
		}

		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return files.Err()
}
