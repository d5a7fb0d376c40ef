// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepfmt

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	type testCase struct {
		name, input string
		want        Series
	}
	for _, test := range []testCase{
		{
			"basic",
			`size=10 elapsed: 1.5 rate: 6.7
size=20 elapsed: 2.5 rate: 8.1
`,
			Series{
				Sizes:   []int{10, 20},
				Elapsed: []float64{1.5, 2.5},
				Rates:   []float64{6.7, 8.1},
			},
		},
		{
			"empty",
			"",
			Series{},
		},
		{
			"tokens mid-line",
			"pass 3 size=42 took elapsed: 7 with rate: 6 trailing\n",
			Series{
				Sizes:   []int{42},
				Elapsed: []float64{7},
				Rates:   []float64{6},
			},
		},
		{
			// The scans are independent, so missing tokens shorten
			// one sequence without disturbing the others.
			"unequal sequence lengths",
			`size=1 elapsed: 0.5 rate: 2
size=2 elapsed: 1.5
size=4
`,
			Series{
				Sizes:   []int{1, 2, 4},
				Elapsed: []float64{0.5, 1.5},
				Rates:   []float64{2},
			},
		},
		{
			"leading zeros",
			"size=007 elapsed: 01.5 rate: 0042\n",
			Series{
				Sizes:   []int{7},
				Elapsed: []float64{1.5},
				Rates:   []float64{42},
			},
		},
		{
			"scientific notation",
			"size=1000000 elapsed: 1.5e-3 rate: 6.7e3\n",
			Series{
				Sizes:   []int{1000000},
				Elapsed: []float64{0.0015},
				Rates:   []float64{6700},
			},
		},
		{
			// A token is the name, a colon, and exactly one space.
			"token spacing is exact",
			"size=1 elapsed:  2 rate: 3\n",
			Series{
				Sizes: []int{1},
				Rates: []float64{3},
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := Extract([]byte(test.input))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("got %+v, want %+v", got, test.want)
			}
			// Extracting the same input again must give identical
			// sequences.
			again, err := Extract([]byte(test.input))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, again) {
				t.Errorf("second extraction differs: got %+v, then %+v", got, again)
			}
		})
	}
}

func TestExtractErrors(t *testing.T) {
	type testCase struct {
		name, input, want string
	}
	for _, test := range []testCase{
		{
			"malformed elapsed",
			"size=1 elapsed: 1..2 rate: 3\n",
			`parsing elapsed "1..2"`,
		},
		{
			"malformed rate",
			"size=1 elapsed: 1 rate: .e\n",
			`parsing rate "."`,
		},
		{
			"size out of range",
			"size=99999999999999999999 elapsed: 1 rate: 2\n",
			"value out of range",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := Extract([]byte(test.input))
			if err == nil {
				t.Fatalf("got %+v, want error", got)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("got error %q, want %q", err, test.want)
			}
		})
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.log")
	if err := os.WriteFile(path, []byte("size=8 elapsed: 2 rate: 4\n"), 0666); err != nil {
		t.Fatal(err)
	}

	got, err := ExtractFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Series{Sizes: []int{8}, Elapsed: []float64{2}, Rates: []float64{4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, err := ExtractFile(filepath.Join(dir, "missing.log")); err == nil {
		t.Error("reading missing file: got success, want error")
	}
}
