// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"math"
	"sort"

	"github.com/cockroachdb/cardest/pkg/sql/opt/cat"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/errors"
)

// Histogram is the result of BuildHistogram. Frequencies are fractions of
// the non-NULL rows of the column.
type Histogram struct {
	Buckets []cat.HistogramBucket
	MCVs    []cat.MostCommonValue
}

// run is a value of the sorted sample and the number of times it occurs.
type run struct {
	val   tree.Datum
	count int
}

// BuildHistogram creates a histogram where each bucket contains roughly the
// same number of samples (though it can vary when a boundary value has high
// frequency).
//
// numRows is the total number of rows from which values were sampled
// (excluding rows that have NULL values on the histogram column), and
// distinctCount the estimated number of distinct values among them.
//
// Values whose share of the sample is larger than the share of a bucket are
// returned as most common values and left out of the buckets. Each remaining
// bucket upper bound becomes a singleton bucket, and the values between two
// bounds a bucket open at both ends. The distinct counts of those ranges are
// adjusted so that the histogram accounts for distinctCount values.
func BuildHistogram(
	samples []tree.Datum, numRows, distinctCount float64, maxBuckets int,
) (Histogram, error) {
	if len(samples) == 0 {
		return Histogram{Buckets: make([]cat.HistogramBucket, 0)}, nil
	}
	if maxBuckets < 2 {
		return Histogram{}, errors.Errorf("histogram requires at least two buckets")
	}
	if numRows < float64(len(samples)) {
		return Histogram{}, errors.Errorf("more samples than rows")
	}
	if distinctCount <= 0 {
		return Histogram{}, errors.Errorf("histogram requires distinctCount > 0")
	}
	for _, d := range samples {
		if d == tree.DNull {
			return Histogram{}, errors.Errorf("NULL values not allowed in histogram")
		}
	}

	runs, err := sortedRuns(samples)
	if err != nil {
		return Histogram{}, err
	}
	numSamples := float64(len(samples))
	mcvs, residual := splitMostCommon(runs, numSamples, maxBuckets)

	var h Histogram
	for _, m := range mcvs {
		h.MCVs = append(h.MCVs, cat.MostCommonValue{
			Value: m.val, Frequency: float64(m.count) / numSamples,
		})
	}
	h.Buckets = equiDepthBuckets(residual, numSamples, maxBuckets-len(mcvs))
	h.adjustDistinct(numRows, distinctCount)
	return h, nil
}

// sortedRuns sorts the samples and collapses equal values.
func sortedRuns(samples []tree.Datum) ([]run, error) {
	sorted := append([]tree.Datum(nil), samples...)
	var err error
	sort.SliceStable(sorted, func(i, j int) bool {
		c, cmpErr := sorted[i].Compare(sorted[j])
		if cmpErr != nil && err == nil {
			err = cmpErr
		}
		return c < 0
	})
	if err != nil {
		return nil, errors.Wrap(err, "sorting samples")
	}
	runs := make([]run, 0, len(sorted))
	for _, d := range sorted {
		if n := len(runs); n > 0 {
			if c, _ := runs[n-1].val.Compare(d); c == 0 {
				runs[n-1].count++
				continue
			}
		}
		runs = append(runs, run{val: d, count: 1})
	}
	return runs, nil
}

// splitMostCommon picks the values that occur more often than the average
// bucket would hold. At most half of the buckets are spent on them.
func splitMostCommon(runs []run, numSamples float64, maxBuckets int) (mcvs, residual []run) {
	threshold := numSamples / float64(maxBuckets)
	var candidates []int
	for i, r := range runs {
		if r.count > 1 && float64(r.count) > threshold {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, runs
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return runs[candidates[i]].count > runs[candidates[j]].count
	})
	if limit := maxBuckets / 2; len(candidates) > limit {
		candidates = candidates[:limit]
	}
	sort.Ints(candidates)
	residual = make([]run, 0, len(runs)-len(candidates))
	next := 0
	for i, r := range runs {
		if next < len(candidates) && candidates[next] == i {
			mcvs = append(mcvs, r)
			next++
			continue
		}
		residual = append(residual, r)
	}
	return mcvs, residual
}

// equiDepthBuckets forms at most maxBuckets groups of runs of roughly equal
// size. The first group holds only the smallest value so that the histogram
// has a clear lower bound.
func equiDepthBuckets(runs []run, numSamples float64, maxBuckets int) []cat.HistogramBucket {
	if len(runs) == 0 {
		return make([]cat.HistogramBucket, 0)
	}
	var remaining int
	for _, r := range runs {
		remaining += r.count
	}
	numBuckets := maxBuckets
	if numBuckets < 2 {
		numBuckets = 2
	}
	if numBuckets > len(runs) {
		numBuckets = len(runs)
	}

	buckets := make([]cat.HistogramBucket, 0, 2*numBuckets)
	var prevUpper tree.Datum
	// i keeps track of the current run and advances as we form buckets.
	for i, b := 0, 0; b < numBuckets && i < len(runs); b++ {
		target := remaining / (numBuckets - b)
		if b == numBuckets-1 {
			target = remaining
		}
		if i == 0 || target < 1 {
			target = 1
		}
		// Take runs until the group holds target samples. The last run of the
		// group is its upper bound.
		j, inGroup := i, 0
		for j < len(runs) && (inGroup < target || j == i) {
			inGroup += runs[j].count
			j++
		}
		upper := runs[j-1]
		var numRange, distinctRange int
		for _, r := range runs[i : j-1] {
			numRange += r.count
			distinctRange++
		}
		if numRange > 0 {
			buckets = append(buckets, cat.HistogramBucket{
				Lower:     prevUpper,
				Upper:     upper.val,
				Frequency: float64(numRange) / numSamples,
				Distinct:  float64(distinctRange),
			})
		}
		buckets = append(buckets, cat.HistogramBucket{
			Lower:       upper.val,
			Upper:       upper.val,
			LowerClosed: true,
			UpperClosed: true,
			Frequency:   float64(upper.count) / numSamples,
			Distinct:    1,
		})
		remaining -= inGroup
		prevUpper = upper.val
		i = j
	}
	return buckets
}

// adjustDistinct scales the distinct counts of the range buckets so that
// the histogram accounts for distinctCount values, as far as the ranges can
// hold them. Singletons and most common values always count once.
func (h *Histogram) adjustDistinct(numRows, distinctCount float64) {
	fixed := float64(len(h.MCVs))
	var ranges []int
	var rangeDistinct, rangeFreq float64
	for i := range h.Buckets {
		b := &h.Buckets[i]
		if b.LowerClosed && b.UpperClosed {
			fixed++
			continue
		}
		ranges = append(ranges, i)
		rangeDistinct += b.Distinct
		rangeFreq += b.Frequency
	}
	if len(ranges) == 0 {
		return
	}
	target := math.Max(0, distinctCount-fixed)
	for _, i := range ranges {
		b := &h.Buckets[i]
		var d float64
		if target >= rangeDistinct {
			// Spread the values the sample missed in proportion to the rows.
			d = b.Distinct + (target-rangeDistinct)*b.Frequency/rangeFreq
		} else {
			d = b.Distinct * target / rangeDistinct
		}
		rows := b.Frequency * numRows
		if maxDistinct, ok := maxDistinctRange(b.Lower, b.Upper); ok {
			d = math.Min(d, expectedDistinctCount(rows, maxDistinct))
		}
		b.Distinct = math.Max(1, math.Min(d, rows))
	}
}

// maxDistinctRange returns the maximum number of distinct values in the
// given range, excluding both bounds. Returns ok=false if the values of the
// type are not countable.
func maxDistinctRange(lowerBound, upperBound tree.Datum) (_ float64, ok bool) {
	switch upperBound.ResolvedType().Family() {
	case types.IntFamily, types.DateFamily:
	default:
		return 0, false
	}
	dist, ok := tree.Distance(lowerBound, upperBound)
	if !ok {
		return 0, false
	}
	return math.Max(0, dist-1), true
}

// expectedDistinctCount returns the expected number of distinct values
// among k random numbers selected from n possible values. We assume the
// values are chosen using uniform random sampling with replacement.
func expectedDistinctCount(k, n float64) float64 {
	if n == 0 || k == 0 {
		return 0
	}
	// The probability that one specific value (out of the n possible values)
	// does not appear in any of the k selections is:
	//
	//         ⎛ n-1 ⎞ k
	//     p = ⎜-----⎟
	//         ⎝  n  ⎠
	//
	// Therefore, the probability that a specific value appears at least once is
	// 1-p. Over all n values, the expected number that appear at least once is
	// n * (1-p).
	count := n * (1 - math.Pow((n-1)/n, k))

	// It's possible that if n is very large, floating point precision errors
	// will cause count to be 0. In that case, just return min(n, k).
	if count == 0 {
		count = math.Min(n, k)
	}
	return count
}
