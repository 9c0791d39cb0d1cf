// Copyright 2019 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
)

// DefaultRangeSelectivity is the fraction of rows assumed to satisfy a range
// predicate when nothing is known about where the values lie.
const DefaultRangeSelectivity = 1.0 / 3.0

// Histogram captures the distribution of values for a particular column.
// The histogram is an ordered sequence of non-overlapping buckets, plus the
// fraction of NULL values and a "remainder": values believed to exist that
// are not covered by any bucket (for example, values not captured by a sampled
// most-common-value list).
//
// All frequencies are fractions of some base row count. For a histogram
// attached to a relation, the base is shared by all of the relation's
// histograms, so that the ratio of masses before and after an operation is a
// selectivity.
//
// Histograms are immutable: every operation returns a new Histogram, and the
// buckets themselves may be shared between histograms.
type Histogram struct {
	buckets        []*Bucket
	nullFreq       float64
	distinctRemain float64
	freqRemain     float64
}

var emptyHistogram = &Histogram{}

// NewHistogram creates a histogram from ascending, non-overlapping buckets.
// The slice is copied. Test builds verify the histogram invariants.
func NewHistogram(
	buckets []*Bucket, nullFreq, distinctRemain, freqRemain float64,
) *Histogram {
	h := &Histogram{
		nullFreq:       nullFreq,
		distinctRemain: distinctRemain,
		freqRemain:     freqRemain,
	}
	if len(buckets) > 0 {
		h.buckets = append([]*Bucket(nil), buckets...)
	}
	if buildutil.CrdbTestBuild {
		if err := h.Validate(); err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "constructed invalid histogram"))
		}
	}
	return h
}

// newHistogramNoCopy is like NewHistogram but takes ownership of buckets.
func newHistogramNoCopy(
	buckets []*Bucket, nullFreq, distinctRemain, freqRemain float64,
) *Histogram {
	h := &Histogram{
		buckets:        buckets,
		nullFreq:       nullFreq,
		distinctRemain: distinctRemain,
		freqRemain:     freqRemain,
	}
	if buildutil.CrdbTestBuild {
		if err := h.Validate(); err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "constructed invalid histogram"))
		}
	}
	return h
}

// MakeDummyHistogram returns the histogram substituted for a column without
// collected statistics: no buckets, with every non-NULL value in the
// remainder.
func MakeDummyHistogram(nullFreq, distinct float64) *Histogram {
	nullFreq = math.Max(0, math.Min(1, nullFreq))
	return &Histogram{
		nullFreq:       nullFreq,
		distinctRemain: math.Max(0, distinct),
		freqRemain:     1 - nullFreq,
	}
}

// MakeSingleBucketHistogram returns a histogram with one bucket spanning
// [lower, upper] and no NULLs.
func MakeSingleBucketHistogram(lower, upper Point, distinct float64) *Histogram {
	return newHistogramNoCopy(
		[]*Bucket{NewBucket(lower, upper, true, true, 1, distinct)}, 0, 0, 0,
	)
}

// BucketCount returns the number of buckets in the histogram.
func (h *Histogram) BucketCount() int {
	return len(h.buckets)
}

// Bucket returns the i-th bucket.
func (h *Histogram) Bucket(i int) *Bucket {
	return h.buckets[i]
}

// NullFrequency returns the fraction of NULL values.
func (h *Histogram) NullFrequency() float64 { return h.nullFreq }

// DistinctRemainder returns the number of distinct values not covered by any
// bucket.
func (h *Histogram) DistinctRemainder() float64 { return h.distinctRemain }

// FrequencyRemainder returns the fraction of values not covered by any bucket.
func (h *Histogram) FrequencyRemainder() float64 { return h.freqRemain }

// BucketFrequency returns the total frequency of the buckets.
func (h *Histogram) BucketFrequency() float64 {
	var freq float64
	for _, b := range h.buckets {
		freq += b.frequency
	}
	return freq
}

// Frequency returns the total frequency of non-NULL values.
func (h *Histogram) Frequency() float64 {
	return h.BucketFrequency() + h.freqRemain
}

// TotalFrequency returns the total frequency including NULLs.
func (h *Histogram) TotalFrequency() float64 {
	return h.Frequency() + h.nullFreq
}

// Distinct returns the estimated number of distinct non-NULL values.
func (h *Histogram) Distinct() float64 {
	distinct := h.distinctRemain
	for _, b := range h.buckets {
		distinct += b.distinct
	}
	return distinct
}

// IsEmpty returns true if the histogram has no mass at all.
func (h *Histogram) IsEmpty() bool {
	return h.TotalFrequency() <= opt.Epsilon
}

// Validate checks that the buckets are ascending and non-overlapping, that no
// count is negative, and that the total frequency does not materially exceed
// one. The returned error is marked with opt.ErrInvalidHistogram.
func (h *Histogram) Validate() error {
	for i, b := range h.buckets {
		if err := b.Validate(); err != nil {
			return errors.Mark(errors.Wrapf(err, "bucket %d", i), opt.ErrInvalidHistogram)
		}
		if i == 0 {
			continue
		}
		prev := h.buckets[i-1]
		c, err := prev.upper.Compare(b.lower)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "bucket %d", i), opt.ErrInvalidHistogram)
		}
		if c > 0 || (c == 0 && prev.upperClosed && b.lowerClosed) {
			return opt.NewInvalidHistogramErrorf(
				"bucket %d %s does not follow bucket %d %s", i, b, i-1, prev)
		}
	}
	for _, v := range []float64{h.nullFreq, h.distinctRemain, h.freqRemain} {
		if v < 0 || math.IsNaN(v) {
			return opt.NewInvalidHistogramErrorf(
				"invalid null or remainder count: null=%g, ndv=%g, freq=%g",
				h.nullFreq, h.distinctRemain, h.freqRemain)
		}
	}
	if total := h.TotalFrequency(); total > 1+1e-6 {
		return opt.NewInvalidHistogramErrorf("total frequency %g exceeds 1", total)
	}
	return nil
}

// IsValid returns true if Validate succeeds.
func (h *Histogram) IsValid() bool {
	return h.Validate() == nil
}

// ScaleFrequencies multiplies every frequency, including the NULL and
// remainder frequencies, by factor. Distinct counts are unchanged.
func (h *Histogram) ScaleFrequencies(factor float64) *Histogram {
	if factor == 1 {
		return h
	}
	buckets := make([]*Bucket, len(h.buckets))
	for i, b := range h.buckets {
		buckets[i] = b.scaled(factor, 1)
	}
	return newHistogramNoCopy(buckets, h.nullFreq*factor, h.distinctRemain, h.freqRemain*factor)
}

// WithExtraNulls returns a copy of the histogram with freq added to the NULL
// frequency. Outer joins use it for the NULLs produced for unmatched rows.
func (h *Histogram) WithExtraNulls(freq float64) *Histogram {
	if freq <= 0 {
		return h
	}
	return newHistogramNoCopy(h.buckets, h.nullFreq+freq, h.distinctRemain, h.freqRemain)
}

// Normalize rescales the histogram so that its total frequency is 1. A
// histogram with no mass is returned unchanged.
func (h *Histogram) Normalize() *Histogram {
	total := h.TotalFrequency()
	if total <= 0 || math.Abs(total-1) < opt.Epsilon {
		return h
	}
	return h.ScaleFrequencies(1 / total)
}

// CapNDV limits the number of distinct values to maxRows, scaling the
// distinct count of every bucket and of the remainder proportionally.
func (h *Histogram) CapNDV(maxRows float64) *Histogram {
	distinct := h.Distinct()
	if distinct <= maxRows || distinct <= 0 {
		return h
	}
	factor := math.Max(0, maxRows) / distinct
	buckets := make([]*Bucket, len(h.buckets))
	for i, b := range h.buckets {
		buckets[i] = b.scaled(1, factor)
	}
	return newHistogramNoCopy(buckets, h.nullFreq, h.distinctRemain*factor, h.freqRemain)
}

// ApplySelectivity reduces the frequencies of the histogram by the given
// selectivity, for a histogram whose total frequency corresponds to rowCount
// rows. Distinct counts are reduced using the formula for the expected number
// of distinct values remaining when sampling without replacement:
//
//	d - d * (1 - selectivity) ^ (n / d)
//
// where n is the number of rows and d the distinct count of the bucket.
func (h *Histogram) ApplySelectivity(selectivity, rowCount float64) *Histogram {
	reduce := func(freq, d float64) float64 {
		if d <= 0 {
			return 0
		}
		n := freq * rowCount
		return d - d*math.Pow(1-selectivity, n/d)
	}
	buckets := make([]*Bucket, len(h.buckets))
	for i, b := range h.buckets {
		buckets[i] = b.withCounts(b.frequency*selectivity, reduce(b.frequency, b.distinct))
	}
	return newHistogramNoCopy(
		buckets,
		h.nullFreq*selectivity,
		reduce(h.freqRemain, h.distinctRemain),
		h.freqRemain*selectivity,
	)
}

// selectivityOf returns the fraction of h's mass that remains in res.
func (h *Histogram) selectivityOf(res *Histogram) float64 {
	total := h.TotalFrequency()
	if total <= 0 {
		return 0
	}
	return math.Min(1, res.TotalFrequency()/total)
}

// Filter applies the predicate "column op p" to the histogram. It returns the
// filtered histogram, whose frequencies share the base of the input, and the
// fraction of the input's rows that satisfy the predicate. NULLs never satisfy
// a comparison.
func (h *Histogram) Filter(op opt.Operator, p Point) (*Histogram, float64) {
	var res *Histogram
	switch op {
	case opt.EqOp:
		res = h.filterEq(p)
	case opt.NeOp:
		res = h.filterNe(p)
	case opt.LtOp, opt.LeOp:
		res = h.filterBelow(p, op == opt.LeOp)
	case opt.GtOp, opt.GeOp:
		res = h.filterAbove(p, op == opt.GeOp)
	default:
		panic(errors.AssertionFailedf("unsupported filter operator %s", op))
	}
	return res, h.selectivityOf(res)
}

// FilterNormalized is like Filter, but normalizes the result so that its
// frequencies are fractions of the filtered rows.
func (h *Histogram) FilterNormalized(op opt.Operator, p Point) (*Histogram, float64) {
	res, selectivity := h.Filter(op, p)
	return res.Normalize(), selectivity
}

// equalityBucket returns the index of the bucket an equality on p selects. An
// equality on the open upper bound of the last bucket still selects that
// bucket, since the bound was observed as a value.
func (h *Histogram) equalityBucket(p Point) (int, bool) {
	n := len(h.buckets)
	i := sort.Search(n, func(i int) bool {
		return !h.buckets[i].IsAfter(p)
	})
	if i < n && h.buckets[i].Contains(p) {
		return i, true
	}
	if i == n && n > 0 {
		if last := h.buckets[n-1]; !last.upperClosed && last.upper.Equals(p) {
			return n - 1, true
		}
	}
	return -1, false
}

func (h *Histogram) filterEq(p Point) *Histogram {
	if i, ok := h.equalityBucket(p); ok {
		return newHistogramNoCopy([]*Bucket{h.buckets[i].MakeSingleton(p)}, 0, 0, 0)
	}
	if h.distinctRemain > 0 && h.freqRemain > 0 {
		freq := h.freqRemain / math.Max(h.distinctRemain, 1)
		b := NewSingletonBucket(p, freq, math.Min(1, h.distinctRemain))
		return newHistogramNoCopy([]*Bucket{b}, 0, 0, 0)
	}
	return emptyHistogram
}

// filterNe is computed as the histogram minus the result of filterEq, so that
// the two always add up to the non-NULL mass of the input.
func (h *Histogram) filterNe(p Point) *Histogram {
	eq := h.filterEq(p)
	var eqFreq, eqDistinct float64
	if len(eq.buckets) == 1 {
		eqFreq, eqDistinct = eq.buckets[0].frequency, eq.buckets[0].distinct
	}

	idx, inBucket := h.equalityBucket(p)
	buckets := make([]*Bucket, 0, len(h.buckets)+1)
	for i, b := range h.buckets {
		if !inBucket || i != idx {
			buckets = append(buckets, b)
			continue
		}
		if b.IsSingleton() {
			continue
		}
		below, above := b.ScaleUpper(p, false), b.ScaleLower(p, false)
		targetFreq := math.Max(0, b.frequency-eqFreq)
		targetDistinct := math.Max(0, b.distinct-eqDistinct)
		var sumFreq, sumDistinct float64
		for _, piece := range []*Bucket{below, above} {
			if piece != nil {
				sumFreq += piece.frequency
				sumDistinct += piece.distinct
			}
		}
		for _, piece := range []*Bucket{below, above} {
			if piece == nil {
				continue
			}
			var freq, distinct float64
			if sumFreq > 0 {
				freq = targetFreq * piece.frequency / sumFreq
			}
			if sumDistinct > 0 {
				distinct = targetDistinct * piece.distinct / sumDistinct
			}
			buckets = append(buckets, piece.withCounts(freq, distinct))
		}
	}

	freqRemain, distinctRemain := h.freqRemain, h.distinctRemain
	if !inBucket {
		freqRemain = math.Max(0, freqRemain-eqFreq)
		distinctRemain = math.Max(0, distinctRemain-eqDistinct)
	}
	return newHistogramNoCopy(buckets, 0, distinctRemain, freqRemain)
}

// remainderFraction returns the fraction of the remainder assumed to survive a
// range filter that kept keptFreq of the bucket mass: the remainder is assumed
// to be distributed like the buckets.
func (h *Histogram) remainderFraction(keptFreq float64) float64 {
	if total := h.BucketFrequency(); total > 0 {
		return math.Min(1, keptFreq/total)
	}
	return DefaultRangeSelectivity
}

func (h *Histogram) rangeResult(buckets []*Bucket) *Histogram {
	var kept float64
	for _, b := range buckets {
		kept += b.frequency
	}
	frac := h.remainderFraction(kept)
	return newHistogramNoCopy(buckets, 0, h.distinctRemain*frac, h.freqRemain*frac)
}

// filterBelow keeps the values less than p, or less than or equal to p if
// inclusive is set.
func (h *Histogram) filterBelow(p Point, inclusive bool) *Histogram {
	var buckets []*Bucket
	for _, b := range h.buckets {
		if b.IsBefore(p) {
			break
		}
		if b.IsAfter(p) {
			buckets = append(buckets, b)
			continue
		}
		if nb := b.ScaleUpper(p, inclusive); nb != nil {
			buckets = append(buckets, nb)
		}
	}
	return h.rangeResult(buckets)
}

// filterAbove keeps the values greater than p, or greater than or equal to p
// if inclusive is set.
func (h *Histogram) filterAbove(p Point, inclusive bool) *Histogram {
	var buckets []*Bucket
	for _, b := range h.buckets {
		if b.IsAfter(p) {
			continue
		}
		if b.IsBefore(p) {
			buckets = append(buckets, b)
			continue
		}
		if nb := b.ScaleLower(p, inclusive); nb != nil {
			buckets = append(buckets, nb)
		}
	}
	return h.rangeResult(buckets)
}

// joinFrequency applies the 1/max(ndv) rule to two aggregate portions of a
// pair of histograms.
func joinFrequency(freq1, distinct1, freq2, distinct2 float64) (freq, distinct float64) {
	if freq1 <= 0 || freq2 <= 0 {
		return 0, 0
	}
	return freq1 * freq2 / math.Max(1, math.Max(distinct1, distinct2)), math.Min(distinct1, distinct2)
}

// Join estimates the result of joining the column described by h with the
// column described by other using "h op other". The frequencies of the result
// are fractions of the cross product of the two inputs, so the total frequency
// is the join selectivity. The inputs should be normalized.
func (h *Histogram) Join(op opt.Operator, other *Histogram) *Histogram {
	switch op {
	case opt.EqOp:
		return h.joinEq(other)
	case opt.NeOp:
		eq := h.joinEq(other)
		freq := math.Max(0, h.Frequency()*other.Frequency()-eq.TotalFrequency())
		return newHistogramNoCopy(nil, 0, math.Max(h.Distinct(), other.Distinct()), freq)
	case opt.LtOp, opt.LeOp, opt.GtOp, opt.GeOp:
		freq := DefaultRangeSelectivity * h.Frequency() * other.Frequency()
		return newHistogramNoCopy(nil, 0, math.Max(h.Distinct(), other.Distinct()), freq)
	}
	panic(errors.AssertionFailedf("unsupported join operator %s", op))
}

func (h *Histogram) joinEq(other *Histogram) *Histogram {
	var buckets []*Bucket
	var bucketDistinct float64
	i, j := 0, 0
	for i < len(h.buckets) && j < len(other.buckets) {
		b1, b2 := h.buckets[i], other.buckets[j]
		if nb, _, _ := b1.Intersect(b2); nb != nil && nb.frequency > 0 {
			buckets = append(buckets, nb)
			bucketDistinct += nb.distinct
		}
		switch c := CompareUpperBounds(b1, b2); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			i++
			j++
		}
	}

	// The remainder of each side can match any value of the other side, in a
	// bucket or in its remainder.
	bucketDistinctSum := func(hist *Histogram) (distinct float64) {
		for _, b := range hist.buckets {
			distinct += b.distinct
		}
		return distinct
	}
	freqB1, distinctB1 := h.BucketFrequency(), bucketDistinctSum(h)
	freqB2, distinctB2 := other.BucketFrequency(), bucketDistinctSum(other)

	freqRemain, distinctRemain := joinFrequency(
		h.freqRemain, h.distinctRemain, other.freqRemain, other.distinctRemain,
	)
	f, d := joinFrequency(h.freqRemain, h.distinctRemain, freqB2, distinctB2)
	freqRemain, distinctRemain = freqRemain+f, distinctRemain+d
	f, d = joinFrequency(freqB1, distinctB1, other.freqRemain, other.distinctRemain)
	freqRemain, distinctRemain = freqRemain+f, distinctRemain+d

	// The output cannot have more distinct values than either input.
	maxDistinct := math.Min(h.Distinct(), other.Distinct())
	distinctRemain = math.Max(0, math.Min(distinctRemain, maxDistinct-bucketDistinct))

	return newHistogramNoCopy(buckets, 0, distinctRemain, freqRemain)
}

// AntiSemiJoin returns the part of h with no match in other under "h op
// other". NULLs never match and are kept. Frequencies keep the base of h.
//
// With exact set, overlapping ranges are computed bucket by bucket: inside an
// overlap, the fraction of h's values that find a match is
// min(1, ndv(other)/ndv(h)), and the ranges of h not covered by other survive
// entirely. Otherwise a cheaper estimate scales all of h by the same matched
// fraction computed from the total distinct counts.
func (h *Histogram) AntiSemiJoin(op opt.Operator, other *Histogram, exact bool) *Histogram {
	if op != opt.EqOp {
		keep := 1 - DefaultRangeSelectivity
		if other.Frequency() <= 0 {
			keep = 1
		}
		return h.scaleNonNull(keep, 1)
	}
	if !exact {
		matched := 0.0
		if d := h.Distinct(); d > 0 && other.Frequency() > 0 {
			matched = math.Min(1, other.Distinct()/d)
		}
		return h.scaleNonNull(1-matched, 1-matched)
	}

	var out []*Bucket
	j := 0
	for _, b := range h.buckets {
		rest := b
		for rest != nil {
			for j < len(other.buckets) && startsAfterEnd(rest, other.buckets[j]) {
				j++
			}
			if j == len(other.buckets) || !rest.Intersects(other.buckets[j]) {
				out = append(out, rest)
				break
			}
			o := other.buckets[j]
			below, above := rest.Difference(o)
			var overlap, otherPart *Bucket
			if p := rest.ScaleLower(o.lower, o.lowerClosed); p != nil {
				overlap = p.ScaleUpper(o.upper, o.upperClosed)
			}
			if p := o.ScaleLower(rest.lower, rest.lowerClosed); p != nil {
				otherPart = p.ScaleUpper(rest.upper, rest.upperClosed)
			}
			conserve(rest, &below, &overlap, &above)

			if below != nil && below.frequency > 0 {
				out = append(out, below)
			}
			if overlap != nil {
				matched := 0.0
				if otherPart != nil && otherPart.frequency > 0 && overlap.distinct > 0 {
					matched = math.Min(1, otherPart.distinct/overlap.distinct)
				}
				if survivor := overlap.scaled(1-matched, 1-matched); survivor.frequency > 0 {
					out = append(out, survivor)
				}
			}
			rest = above
		}
	}

	matched := 0.0
	if h.distinctRemain > 0 && other.freqRemain > 0 {
		matched = math.Min(1, other.distinctRemain/h.distinctRemain)
	}
	return newHistogramNoCopy(
		out, h.nullFreq, h.distinctRemain*(1-matched), h.freqRemain*(1-matched),
	)
}

// scaleNonNull scales the non-NULL frequencies and distinct counts.
func (h *Histogram) scaleNonNull(freqFactor, distinctFactor float64) *Histogram {
	buckets := make([]*Bucket, len(h.buckets))
	for i, b := range h.buckets {
		buckets[i] = b.scaled(freqFactor, distinctFactor)
	}
	return newHistogramNoCopy(
		buckets, h.nullFreq, h.distinctRemain*distinctFactor, h.freqRemain*freqFactor,
	)
}

// Union merges two histograms into one. With isUnionAll, the inputs describe
// rowsSelf and rowsOther rows respectively; they are normalized and weighted
// by their row counts, so the result is normalized to the combined rows.
// Otherwise the inputs describe the same rows (two filters of one column
// combined with OR) and the result keeps their base. Without the histogram
// they were filtered from, overlapping remainders are assumed to coincide;
// use Or when it is known.
func (h *Histogram) Union(
	other *Histogram, rowsSelf, rowsOther float64, isUnionAll bool,
) *Histogram {
	return h.union(other, rowsSelf, rowsOther, isUnionAll, nil /* source */)
}

// Or combines two histograms filtered from source with OR. The remainders of
// the inputs are parts of the remainder of source, and are combined as
// independent selections from it:
//
//	a + b - a*b/R
//
// so the result never holds more remainder than source.
func (h *Histogram) Or(other, source *Histogram) *Histogram {
	return h.union(other, 0, 0, false /* isUnionAll */, source)
}

func (h *Histogram) union(
	other *Histogram, rowsSelf, rowsOther float64, isUnionAll bool, source *Histogram,
) *Histogram {
	self := h
	wSelf, wOther := 1.0, 1.0
	if isUnionAll {
		self, other = h.Normalize(), other.Normalize()
		if total := rowsSelf + rowsOther; total > 0 {
			wSelf, wOther = rowsSelf/total, rowsOther/total
		} else {
			wSelf, wOther = 0.5, 0.5
		}
	}

	out := make([]*Bucket, 0, len(self.buckets)+len(other.buckets))
	emit := func(b *Bucket, w float64) {
		out = append(out, b.scaled(w, 1))
	}
	var cur1, cur2 *Bucket
	i, j := 0, 0
	for {
		if cur1 == nil && i < len(self.buckets) {
			cur1, i = self.buckets[i], i+1
		}
		if cur2 == nil && j < len(other.buckets) {
			cur2, j = other.buckets[j], j+1
		}
		switch {
		case cur1 == nil && cur2 == nil:
			return self.unionRemainders(other, out, wSelf, wOther, isUnionAll, source)
		case cur2 == nil || (cur1 != nil && cur1.Precedes(cur2)):
			emit(cur1, wSelf)
			cur1 = nil
		case cur1 == nil || cur2.Precedes(cur1):
			emit(cur2, wOther)
			cur2 = nil
		default:
			var merged *Bucket
			merged, cur1, cur2 = cur1.Merge(cur2, rowsSelf, rowsOther, isUnionAll)
			out = append(out, merged)
		}
	}
}

func (h *Histogram) unionRemainders(
	other *Histogram, buckets []*Bucket, wSelf, wOther float64, isUnionAll bool, source *Histogram,
) *Histogram {
	if isUnionAll {
		return newHistogramNoCopy(
			buckets,
			wSelf*h.nullFreq+wOther*other.nullFreq,
			math.Max(h.distinctRemain, other.distinctRemain),
			wSelf*h.freqRemain+wOther*other.freqRemain,
		)
	}
	var freqTotal, distinctTotal float64
	if source != nil {
		freqTotal, distinctTotal = source.freqRemain, source.distinctRemain
	}
	return newHistogramNoCopy(
		buckets,
		math.Max(h.nullFreq, other.nullFreq),
		orRemainder(h.distinctRemain, other.distinctRemain, distinctTotal),
		orRemainder(h.freqRemain, other.freqRemain, freqTotal),
	)
}

// orRemainder combines the parts a and b of a remainder of size total that
// were selected by two predicates combined with OR, assuming the predicates
// select independently. If total is unknown, the parts are assumed to
// overlap as much as possible.
func orRemainder(a, b, total float64) float64 {
	lo := math.Max(a, b)
	if total <= 0 {
		return lo
	}
	return math.Max(lo, math.Min(total, a+b-a*b/total))
}

// MakeGroupByHistogram returns the distribution of the column after grouping
// on it: every distinct value appears exactly once, so each bucket's
// frequency is proportional to its distinct count. NULLs form one group. The
// result is normalized.
func (h *Histogram) MakeGroupByHistogram() *Histogram {
	total := h.Distinct()
	var nullGroups float64
	if h.nullFreq > 0 {
		nullGroups = 1
	}
	total += nullGroups
	if total <= 0 {
		return h
	}
	buckets := make([]*Bucket, len(h.buckets))
	for i, b := range h.buckets {
		buckets[i] = b.withCounts(b.distinct/total, b.distinct)
	}
	return newHistogramNoCopy(
		buckets, nullGroups/total, h.distinctRemain, h.distinctRemain/total,
	)
}

// Skew returns a measure of how unevenly rows are spread over the values of
// the histogram: one plus the absolute standardized third moment of the
// per-value frequency of each bucket. A uniform histogram has skew 1.
func (h *Histogram) Skew() float64 {
	if len(h.buckets) < 3 {
		return 1
	}
	densities := make(stats.Float64Data, len(h.buckets))
	for i, b := range h.buckets {
		densities[i] = b.frequency / math.Max(b.distinct, 1)
	}
	mean, err := stats.Mean(densities)
	if err != nil {
		return 1
	}
	sd, err := stats.StandardDeviationPopulation(densities)
	if err != nil || sd <= opt.Epsilon*mean {
		return 1
	}
	var m3 float64
	for _, d := range densities {
		m3 += math.Pow(d-mean, 3)
	}
	m3 /= float64(len(densities))
	return 1 + math.Abs(m3)/math.Pow(sd, 3)
}

func (h *Histogram) String() string {
	var buf bytes.Buffer
	w := histogramWriter{}
	w.init(h.buckets)
	w.write(&buf)
	fmt.Fprintf(&buf, "null=%.4g remainder: freq=%.4g ndv=%.4g",
		h.nullFreq, h.freqRemain, h.distinctRemain)
	return buf.String()
}

// histogramWriter prints histograms with one column per bucket:
//
//	range  [0 - 10)  [10 - 20]
//	freq   0.1       0.2
//	ndv    10        11
//	null=0 remainder: freq=0 ndv=0
type histogramWriter struct {
	cells     [][]string
	colWidths []int
}

const (
	// These constants describe the three rows that are printed.
	ranges = iota
	freqs
	ndvs
)

var rowLabels = [...]string{ranges: "range", freqs: "freq", ndvs: "ndv"}

func (w *histogramWriter) init(buckets []*Bucket) {
	w.cells = make([][]string, len(rowLabels))
	w.colWidths = make([]int, len(buckets)+1)
	for row, label := range rowLabels {
		w.cells[row] = make([]string, len(buckets)+1)
		w.cells[row][0] = label
	}
	for i, b := range buckets {
		lb, ub := "(", ")"
		if b.lowerClosed {
			lb = "["
		}
		if b.upperClosed {
			ub = "]"
		}
		w.cells[ranges][i+1] = fmt.Sprintf("%s%s - %s%s", lb, b.lower, b.upper, ub)
		w.cells[freqs][i+1] = fmt.Sprintf("%.5g", b.frequency)
		w.cells[ndvs][i+1] = fmt.Sprintf("%.5g", b.distinct)
	}
	for row := range w.cells {
		for col, cell := range w.cells[row] {
			if width := tablewriter.DisplayWidth(cell); width > w.colWidths[col] {
				w.colWidths[col] = width
			}
		}
	}
}

func (w *histogramWriter) write(out io.Writer) {
	if len(w.colWidths) <= 1 {
		return
	}
	for row := range w.cells {
		for col, cell := range w.cells[row] {
			if col > 0 {
				fmt.Fprint(out, "  ")
			}
			if col == len(w.cells[row])-1 {
				fmt.Fprint(out, cell)
			} else {
				fmt.Fprint(out, tablewriter.PadRight(cell, " ", w.colWidths[col]))
			}
		}
		fmt.Fprint(out, "\n")
	}
}
