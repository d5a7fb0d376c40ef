// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepmath

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
)

// AssumeNothing makes no distributional assumptions. It uses
// non-parametric methods, so the summary statistic is the sample
// median and comparisons are done using the Mann-Whitney U test.
//
// Because these methods make no assumptions, they are quite robust,
// but have less statistical power than parametric methods.
//
// Note that because this uses order statistics, confidence intervals
// on the median require at least 6 samples for a 95% confidence
// level, and detecting a difference between two samples requires at
// least 4 samples in each.
var AssumeNothing = assumeNothing{}

type assumeNothing struct{}

var _ Assumption = assumeNothing{}

func (assumeNothing) SummaryLabel() string {
	return "median"
}

// medianSamples returns the minimum number of samples required for
// the confidence interval on the median at the given confidence
// level to be non-infinite, as either (">=", minSamples) or
// (">", maxSamples) if no number of samples would be sufficient.
func medianSamples(confidence float64) (op string, n int) {
	const maxSamples = 50
	// The widest CI on the median is the one between the extreme
	// order statistics, so find the smallest n at which that
	// interval achieves the desired confidence.
	for n = 2; n <= maxSamples; n++ {
		dist := stats.BinomialDist{N: n, P: 0.5}
		conf := 1 - (dist.PMF(0) + dist.PMF(float64(n)))
		if conf >= confidence {
			return ">=", n
		}
	}
	return ">", maxSamples
}

func (assumeNothing) Summary(s *Sample, confidence float64) Summary {
	sample := s.sample()
	n := len(s.Values)

	summary := Summary{Center: sample.Quantile(0.5)}

	// Find the tightest CI on the median formed from a symmetric
	// pair of order statistics that still meets the confidence
	// level. The confidence of the interval between the k-th
	// smallest and k-th largest values follows the binomial
	// distribution.
	dist := stats.BinomialDist{N: n, P: 0.5}
	tail := 0.0 // Probability of the median falling outside order statistic k.
	found := false
	for k := 0; k < n-1-k; k++ {
		tail += dist.PMF(float64(k))
		conf := 1 - 2*tail
		if conf < confidence {
			break
		}
		summary.Lo, summary.Hi = s.Values[k], s.Values[n-1-k]
		summary.Confidence = conf
		found = true
	}
	if !found {
		// The sample is too small for any interval at this
		// confidence level. Report an infinite interval, which
		// trivially has confidence 1.
		summary.Lo, summary.Hi = math.Inf(-1), math.Inf(1)
		summary.Confidence = 1
		op, need := medianSamples(confidence)
		summary.Warnings = append(summary.Warnings, fmt.Errorf("need %s %d samples for confidence interval at level %v", op, need, confidence))
	}
	return summary
}

// uTestSamples returns the minimum number of samples required in
// each of two equal-sized samples for the Mann-Whitney U test to be
// able to detect a difference at the given alpha level, as either
// (">=", minSamples) or (">", maxSamples) if no number of samples
// would be sufficient.
func uTestSamples(alpha float64) (op string, n int) {
	// Even maximally distinct samples have a minimum possible
	// p-value, determined only by the sample sizes.
	for n = 1; n < len(uTestMinP); n++ {
		if uTestMinP[n] <= alpha {
			return ">=", n
		}
	}
	return ">", len(uTestMinP)
}

func (assumeNothing) Compare(s1, s2 *Sample) Comparison {
	cmp := Comparison{
		N1: len(s1.Values), N2: len(s2.Values),
		Alpha: s1.Thresholds.CompareAlpha,
	}

	res, err := stats.MannWhitneyUTest(s1.Values, s2.Values, stats.LocationDiffers)
	if err != nil {
		// The U test failed. Report as if there's no
		// significant difference, along with the error.
		cmp.P = 1
		cmp.Warnings = append(cmp.Warnings, err)
		return cmp
	}
	cmp.P = res.P

	// Warn if there aren't enough samples to detect a difference
	// at this alpha level even if the samples were maximally
	// distinct.
	if op, n := uTestSamples(cmp.Alpha); cmp.N1 < n || cmp.N2 < n {
		cmp.Warnings = append(cmp.Warnings, fmt.Errorf("need %s %d samples to detect a difference at alpha level %v", op, n, cmp.Alpha))
	}
	return cmp
}
