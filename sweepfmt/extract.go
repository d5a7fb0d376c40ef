// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepfmt

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// A Series holds the raw token sequences extracted from a sweep log.
//
// The three slices are independent scans of the input in order of
// appearance. Extract does not pair tokens, so the slices may have
// different lengths if the log has stray or missing tokens. Callers
// that need each elapsed and rate paired with its size should use
// Reader instead.
type Series struct {
	Sizes   []int
	Elapsed []float64
	Rates   []float64
}

var (
	sizeRE    = regexp.MustCompile(`size=(\d+)`)
	elapsedRE = regexp.MustCompile(`elapsed: ([0-9.]+(?:[eE][+-]?[0-9]+)?)`)
	rateRE    = regexp.MustCompile(`rate: ([0-9.]+(?:[eE][+-]?[0-9]+)?)`)
)

// Extract scans data for "size=", "elapsed:", and "rate:" tokens and
// returns the three value sequences. Tokens may appear anywhere in
// the input, including mid-line, so raw console output works as
// input. Numbers accept decimal and scientific notation; a token
// whose captured text is not a valid number is an error.
func Extract(data []byte) (Series, error) {
	var s Series
	for _, m := range sizeRE.FindAllSubmatch(data, -1) {
		n, err := strconv.Atoi(string(m[1]))
		if err != nil {
			return Series{}, fmt.Errorf("parsing size %q: %v", m[1], err)
		}
		s.Sizes = append(s.Sizes, n)
	}
	var err error
	s.Elapsed, err = extractFloats(data, elapsedRE, "elapsed")
	if err != nil {
		return Series{}, err
	}
	s.Rates, err = extractFloats(data, rateRE, "rate")
	if err != nil {
		return Series{}, err
	}
	return s, nil
}

func extractFloats(data []byte, re *regexp.Regexp, name string) ([]float64, error) {
	var vals []float64
	for _, m := range re.FindAllSubmatch(data, -1) {
		v, err := strconv.ParseFloat(string(m[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %q: %v", name, m[1], err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// ExtractFile reads the sweep log at path and extracts its token
// sequences like Extract.
func ExtractFile(path string) (Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Series{}, err
	}
	s, err := Extract(data)
	if err != nil {
		return Series{}, fmt.Errorf("%s: %v", path, err)
	}
	return s, nil
}
