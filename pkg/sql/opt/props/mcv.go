// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"math"
	"sort"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
)

// MCV is one of the most common values of a column, with the fraction of all
// rows that hold it.
type MCV struct {
	Value     Point
	Frequency float64
}

// MergeMCVWithHistogram combines a column's most common values with the
// histogram of its remaining values. The MCVs become singleton buckets. The
// residual histogram is rescaled so that its non-NULL rows account for the
// rows not covered by the MCVs or NULLs, and residual buckets that contain an
// MCV are split around it. The result is normalized.
//
// Duplicate values are combined by summing their frequencies.
func MergeMCVWithHistogram(mcvs []MCV, residual *Histogram) (_ *Histogram, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
	}()

	mcvs = sortMCVs(mcvs)
	var mcvFreq float64
	for _, m := range mcvs {
		if m.Frequency < 0 || math.IsNaN(m.Frequency) {
			return nil, opt.NewInvalidHistogramErrorf(
				"most common value %s has invalid frequency %g", m.Value, m.Frequency)
		}
		mcvFreq += m.Frequency
	}
	if total := mcvFreq + residual.nullFreq; total > 1+opt.Epsilon {
		return nil, opt.NewInvalidHistogramErrorf(
			"most common values and NULLs account for %g of the rows", total)
	}

	var factor float64
	if nonNull := residual.Frequency(); nonNull > 0 {
		factor = math.Max(0, 1-mcvFreq-residual.nullFreq) / nonNull
	}

	buckets := make([]*Bucket, 0, len(residual.buckets)+2*len(mcvs))
	var standalone int
	i := 0
	for _, b := range residual.buckets {
		for i < len(mcvs) && b.IsBefore(mcvs[i].Value) {
			buckets = append(buckets, NewSingletonBucket(mcvs[i].Value, mcvs[i].Frequency, 1))
			standalone++
			i++
		}
		j := i
		for j < len(mcvs) && b.Contains(mcvs[j].Value) {
			j++
		}
		buckets = append(buckets, splitAroundMCVs(b.scaled(factor, 1), mcvs[i:j])...)
		i = j
	}
	for ; i < len(mcvs); i++ {
		buckets = append(buckets, NewSingletonBucket(mcvs[i].Value, mcvs[i].Frequency, 1))
		standalone++
	}

	res := newHistogramNoCopy(
		buckets,
		residual.nullFreq,
		math.Max(0, residual.distinctRemain-float64(standalone)),
		residual.freqRemain*factor,
	).Normalize()
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// sortMCVs returns the MCVs in ascending value order with duplicates summed.
func sortMCVs(mcvs []MCV) []MCV {
	sorted := append([]MCV(nil), mcvs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value.Less(sorted[j].Value)
	})
	res := sorted[:0]
	for _, m := range sorted {
		if n := len(res); n > 0 && res[n-1].Value.Equals(m.Value) {
			res[n-1].Frequency += m.Frequency
			continue
		}
		res = append(res, m)
	}
	return res
}

// splitAroundMCVs cuts b at each of the given values, which must lie inside
// b, and inserts a singleton bucket for each. The pieces of b keep b's
// frequency and lose one distinct value per MCV.
func splitAroundMCVs(b *Bucket, mcvs []MCV) []*Bucket {
	if len(mcvs) == 0 {
		return []*Bucket{b}
	}
	var out, pieces []*Bucket
	var singletons []int
	rest := b
	for _, m := range mcvs {
		if rest != nil {
			if below := rest.ScaleUpper(m.Value, false); below != nil {
				out = append(out, below)
				pieces = append(pieces, below)
			}
			rest = rest.ScaleLower(m.Value, false)
		}
		singletons = append(singletons, len(out))
		out = append(out, NewSingletonBucket(m.Value, m.Frequency, 1))
	}
	if rest != nil {
		out = append(out, rest)
		pieces = append(pieces, rest)
	}

	var sumFreq, sumDistinct float64
	for _, p := range pieces {
		sumFreq += p.frequency
		sumDistinct += p.distinct
	}
	if sumFreq <= 0 {
		// Nothing of b is left besides the MCVs themselves; the bucket's rows
		// belong to the first of them.
		first := out[singletons[0]]
		out[singletons[0]] = first.withCounts(first.frequency+b.frequency, first.distinct)
		return dropEmpty(out)
	}
	distinct := math.Max(0, b.distinct-float64(len(mcvs)))
	for k, p := range out {
		if containsIndex(singletons, k) {
			continue
		}
		d := 0.0
		if sumDistinct > 0 {
			d = distinct * p.distinct / sumDistinct
		}
		out[k] = p.withCounts(b.frequency*p.frequency/sumFreq, d)
	}
	return dropEmpty(out)
}

func containsIndex(indexes []int, i int) bool {
	for _, idx := range indexes {
		if idx == i {
			return true
		}
	}
	return false
}

func dropEmpty(buckets []*Bucket) []*Bucket {
	res := buckets[:0]
	for _, b := range buckets {
		if b.frequency > 0 || b.distinct > 0 {
			res = append(res, b)
		}
	}
	return res
}
