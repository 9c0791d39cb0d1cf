// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"fmt"
	"math"

	"github.com/cockroachdb/cardest/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
)

// Bucket is one contiguous range of a column's values, together with the
// fraction of rows that fall in the range and the number of distinct values in
// it. Either bound can be open or closed. A singleton bucket has equal bounds,
// and both must be closed.
//
// Buckets are immutable. Every transformation returns a new bucket, and a nil
// *Bucket stands for "no bucket" (for example, scaling a bucket to an empty
// range).
type Bucket struct {
	lower, upper             Point
	lowerClosed, upperClosed bool
	frequency                float64
	distinct                 float64
}

// NewBucket creates a bucket. Test builds verify the bucket invariants.
func NewBucket(
	lower, upper Point, lowerClosed, upperClosed bool, frequency, distinct float64,
) *Bucket {
	b := &Bucket{
		lower:       lower,
		upper:       upper,
		lowerClosed: lowerClosed,
		upperClosed: upperClosed,
		frequency:   frequency,
		distinct:    distinct,
	}
	if buildutil.CrdbTestBuild {
		if err := b.Validate(); err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "invalid bucket"))
		}
	}
	return b
}

// NewSingletonBucket creates the closed bucket [p, p].
func NewSingletonBucket(p Point, frequency, distinct float64) *Bucket {
	return NewBucket(p, p, true, true, frequency, distinct)
}

// Validate checks the bucket invariants.
func (b *Bucket) Validate() error {
	if !b.lower.IsValid() || !b.upper.IsValid() {
		return errors.Newf("bucket bounds cannot be NULL")
	}
	c, err := b.lower.Compare(b.upper)
	if err != nil {
		return err
	}
	if c > 0 {
		return errors.Newf("bucket lower bound %s exceeds upper bound %s", b.lower, b.upper)
	}
	if c == 0 && (!b.lowerClosed || !b.upperClosed) {
		return errors.Newf("singleton bucket %s must be closed", b)
	}
	if b.frequency < 0 || math.IsNaN(b.frequency) {
		return errors.Newf("bucket %s has invalid frequency %g", b, b.frequency)
	}
	if b.distinct < 0 || math.IsNaN(b.distinct) {
		return errors.Newf("bucket %s has invalid distinct count %g", b, b.distinct)
	}
	return nil
}

// Lower returns the lower bound.
func (b *Bucket) Lower() Point { return b.lower }

// Upper returns the upper bound.
func (b *Bucket) Upper() Point { return b.upper }

// LowerClosed returns true if the lower bound is part of the bucket.
func (b *Bucket) LowerClosed() bool { return b.lowerClosed }

// UpperClosed returns true if the upper bound is part of the bucket.
func (b *Bucket) UpperClosed() bool { return b.upperClosed }

// Frequency returns the fraction of rows in the bucket.
func (b *Bucket) Frequency() float64 { return b.frequency }

// Distinct returns the number of distinct values in the bucket.
func (b *Bucket) Distinct() float64 { return b.distinct }

// IsSingleton returns true if the bucket contains a single value.
func (b *Bucket) IsSingleton() bool {
	return b.lowerClosed && b.upperClosed && b.lower.Equals(b.upper)
}

// Contains returns true if p lies within the bucket bounds.
func (b *Bucket) Contains(p Point) bool {
	lc := b.lower.cmp(p)
	if lc > 0 || (lc == 0 && !b.lowerClosed) {
		return false
	}
	uc := p.cmp(b.upper)
	return uc < 0 || (uc == 0 && b.upperClosed)
}

// IsBefore returns true if p lies below the bucket's lower bound.
func (b *Bucket) IsBefore(p Point) bool {
	c := p.cmp(b.lower)
	return c < 0 || (c == 0 && !b.lowerClosed)
}

// IsAfter returns true if p lies above the bucket's upper bound.
func (b *Bucket) IsAfter(p Point) bool {
	c := p.cmp(b.upper)
	return c > 0 || (c == 0 && !b.upperClosed)
}

// widthFraction returns the fraction of the bucket's width covered by
// [lo, hi]. Types with no distance, and zero-width buckets, count any partial
// overlap as the whole bucket.
func (b *Bucket) widthFraction(lo, hi Point) float64 {
	total, ok := b.lower.Distance(b.upper)
	if !ok || total <= 0 {
		return 1
	}
	part, ok := lo.Distance(hi)
	if !ok {
		return 1
	}
	return math.Max(0, math.Min(1, part/total))
}

// OverlapFraction returns the fraction of the bucket covered by the range
// [lower, p]. It is 1 if p is at or beyond the upper bound, and 0 if p lies
// below the bucket.
func (b *Bucket) OverlapFraction(p Point) float64 {
	if b.upper.LessEq(p) {
		return 1
	}
	if !b.Contains(p) {
		return 0
	}
	if b.IsSingleton() {
		return 1
	}
	return b.widthFraction(b.lower, p)
}

// singletonFrequency estimates the frequency of one value of the bucket.
func (b *Bucket) singletonFrequency() float64 {
	if b.distinct > 1 {
		return b.frequency / b.distinct
	}
	return b.frequency
}

// withoutOneValue returns the frequency and distinct count of the bucket
// after removing one of its values.
func (b *Bucket) withoutOneValue() (frequency, distinct float64) {
	return math.Max(0, b.frequency-b.singletonFrequency()), math.Max(0, b.distinct-1)
}

// MakeSingleton returns the singleton bucket for p, which must lie within b,
// with the frequency of one of b's values.
func (b *Bucket) MakeSingleton(p Point) *Bucket {
	if b.IsSingleton() {
		return b
	}
	return NewSingletonBucket(p, b.singletonFrequency(), math.Min(1, b.distinct))
}

// scaled returns a copy of the bucket with scaled frequency and distinct count.
func (b *Bucket) scaled(freqFactor, distinctFactor float64) *Bucket {
	if freqFactor == 1 && distinctFactor == 1 {
		return b
	}
	return NewBucket(
		b.lower, b.upper, b.lowerClosed, b.upperClosed,
		b.frequency*freqFactor, b.distinct*distinctFactor,
	)
}

// withCounts returns a copy of the bucket with new frequency and distinct
// count.
func (b *Bucket) withCounts(frequency, distinct float64) *Bucket {
	return NewBucket(b.lower, b.upper, b.lowerClosed, b.upperClosed, frequency, distinct)
}

// ScaleUpper returns the part of the bucket at or below newUpper (strictly
// below if inclusive is false). The frequency and distinct count are scaled by
// the fraction of the bucket that remains. If newUpper equals the lower bound
// the result is a singleton, or nil if the singleton would be open.
func (b *Bucket) ScaleUpper(newUpper Point, inclusive bool) *Bucket {
	c := newUpper.cmp(b.lower)
	if c < 0 {
		return nil
	}
	if c == 0 {
		if !inclusive || !b.lowerClosed {
			return nil
		}
		return b.MakeSingleton(newUpper)
	}
	cu := newUpper.cmp(b.upper)
	if cu > 0 {
		return b
	}
	if cu == 0 {
		if inclusive || !b.upperClosed {
			return b
		}
		f, d := b.withoutOneValue()
		return NewBucket(b.lower, b.upper, b.lowerClosed, false, f, d)
	}
	frac := b.widthFraction(b.lower, newUpper)
	return NewBucket(
		b.lower, newUpper, b.lowerClosed, inclusive, b.frequency*frac, b.distinct*frac,
	)
}

// ScaleLower returns the part of the bucket at or above newLower (strictly
// above if inclusive is false). It is the mirror image of ScaleUpper.
func (b *Bucket) ScaleLower(newLower Point, inclusive bool) *Bucket {
	c := newLower.cmp(b.upper)
	if c > 0 {
		return nil
	}
	if c == 0 {
		if !inclusive || !b.upperClosed {
			return nil
		}
		return b.MakeSingleton(newLower)
	}
	cl := newLower.cmp(b.lower)
	if cl < 0 {
		return b
	}
	if cl == 0 {
		if inclusive || !b.lowerClosed {
			return b
		}
		f, d := b.withoutOneValue()
		return NewBucket(b.lower, b.upper, false, b.upperClosed, f, d)
	}
	frac := b.widthFraction(newLower, b.upper)
	return NewBucket(
		newLower, b.upper, inclusive, b.upperClosed, b.frequency*frac, b.distinct*frac,
	)
}

// startsAfterEnd returns true if bucket a starts after bucket b ends, so that
// the two cannot share a value.
func startsAfterEnd(a, b *Bucket) bool {
	c := a.lower.cmp(b.upper)
	return c > 0 || (c == 0 && !(a.lowerClosed && b.upperClosed))
}

// Intersects returns true if the two buckets share at least one value.
func (b *Bucket) Intersects(other *Bucket) bool {
	return !startsAfterEnd(b, other) && !startsAfterEnd(other, b)
}

// Precedes returns true if every value of b is less than every value of other.
func (b *Bucket) Precedes(other *Bucket) bool {
	return startsAfterEnd(other, b)
}

// fractionWithin returns the fraction of the bucket's rows estimated to lie in
// the sub-range [lo, hi] of the bucket.
func (b *Bucket) fractionWithin(lo, hi Point) float64 {
	if b.IsSingleton() {
		return 1
	}
	if lo.Equals(hi) {
		return 1 / math.Max(b.distinct, 1)
	}
	return b.widthFraction(lo, hi)
}

// Intersect returns the range shared by the two buckets, estimated as the
// result of an equality join restricted to that range, along with the
// fraction of each input's rows that fall in the range. It returns nil if the
// buckets do not intersect.
//
// The distinct count of the result is the smaller of the two scaled distinct
// counts, and its frequency, relative to the cross product of the two inputs,
// follows the 1/max(ndv) rule.
func (b *Bucket) Intersect(other *Bucket) (_ *Bucket, freqSelf, freqOther float64) {
	if !b.Intersects(other) {
		return nil, 0, 0
	}
	lower, lowerClosed := b.lower, b.lowerClosed
	if CompareLowerBounds(other, b) > 0 {
		lower, lowerClosed = other.lower, other.lowerClosed
	}
	upper, upperClosed := b.upper, b.upperClosed
	if CompareUpperBounds(other, b) < 0 {
		upper, upperClosed = other.upper, other.upperClosed
	}

	fracSelf := b.fractionWithin(lower, upper)
	fracOther := other.fractionWithin(lower, upper)
	freqSelf, freqOther = b.frequency*fracSelf, other.frequency*fracOther
	distinctSelf, distinctOther := b.distinct*fracSelf, other.distinct*fracOther

	distinct := math.Min(distinctSelf, distinctOther)
	freq := freqSelf * freqOther / math.Max(1, math.Max(distinctSelf, distinctOther))
	return NewBucket(lower, upper, lowerClosed, upperClosed, freq, distinct), freqSelf, freqOther
}

// Difference removes the part of b covered by other and returns the pieces of
// b that survive below and above other. Either may be nil.
func (b *Bucket) Difference(other *Bucket) (below, above *Bucket) {
	if CompareLowerBounds(b, other) < 0 {
		below = b.ScaleUpper(other.lower, !other.lowerClosed)
	}
	if CompareUpperBounds(b, other) > 0 {
		above = b.ScaleLower(other.upper, !other.upperClosed)
	}
	return below, above
}

// conserve rescales the pieces cut from orig so that together they do not
// hold more rows or distinct values than orig. Cutting a bucket at a point
// that gets its own singleton otherwise counts that value twice.
func conserve(orig *Bucket, pieces ...**Bucket) {
	var freq, distinct float64
	for _, p := range pieces {
		if *p != nil {
			freq += (*p).frequency
			distinct += (*p).distinct
		}
	}
	freqFactor, distinctFactor := 1.0, 1.0
	if freq > orig.frequency && freq > 0 {
		freqFactor = orig.frequency / freq
	}
	if distinct > orig.distinct && distinct > 0 {
		distinctFactor = orig.distinct / distinct
	}
	for _, p := range pieces {
		if *p != nil {
			*p = (*p).scaled(freqFactor, distinctFactor)
		}
	}
}

// Merge folds two intersecting buckets, one from each of two histograms being
// unioned. The merged bucket spans from the smaller lower bound to the smaller
// upper bound; the part of whichever input extends further is returned as a
// remainder, to be merged with the next bucket of the other histogram.
//
// With isUnionAll, frequencies are fractions of each input's own rows and are
// weighted by the row counts, so the merged frequency is a fraction of the
// combined rows. Otherwise both buckets describe the same rows (for example,
// two filters of one column combined by OR), and the overlapping range keeps
// the larger of the two frequencies. Distinct counts of the overlap take the
// larger side in both cases. Remainders are returned unweighted.
func (b *Bucket) Merge(
	other *Bucket, rowsSelf, rowsOther float64, isUnionAll bool,
) (merged, remSelf, remOther *Bucket) {
	if !b.Intersects(other) {
		panic(errors.AssertionFailedf("cannot merge disjoint buckets %s and %s", b, other))
	}
	wSelf, wOther := 1.0, 1.0
	if isUnionAll {
		if total := rowsSelf + rowsOther; total > 0 {
			wSelf, wOther = rowsSelf/total, rowsOther/total
		} else {
			wSelf, wOther = 0.5, 0.5
		}
	}

	first, second := b, other
	wFirst, wSecond := wSelf, wOther
	swapped := CompareLowerBounds(other, b) < 0
	if swapped {
		first, second = other, b
		wFirst, wSecond = wOther, wSelf
	}
	end := b
	if CompareUpperBounds(other, b) < 0 {
		end = other
	}
	upper, upperClosed := end.upper, end.upperClosed
	overlapLower, overlapLowerClosed := second.lower, second.lowerClosed

	var prefix, overlapFirst, restFirst *Bucket
	if CompareLowerBounds(first, second) < 0 {
		prefix = first.ScaleUpper(overlapLower, !overlapLowerClosed)
	}
	if p := first.ScaleLower(overlapLower, overlapLowerClosed); p != nil {
		overlapFirst = p.ScaleUpper(upper, upperClosed)
	}
	if CompareUpperBounds(first, end) > 0 {
		restFirst = first.ScaleLower(upper, !upperClosed)
	}
	conserve(first, &prefix, &overlapFirst, &restFirst)

	var overlapSecond, restSecond *Bucket
	overlapSecond = second.ScaleUpper(upper, upperClosed)
	if CompareUpperBounds(second, end) > 0 {
		restSecond = second.ScaleLower(upper, !upperClosed)
	}
	conserve(second, &overlapSecond, &restSecond)

	var freq, distinct float64
	if prefix != nil {
		freq += wFirst * prefix.frequency
		distinct += prefix.distinct
	}
	var freqA, freqB, distinctA, distinctB float64
	if overlapFirst != nil {
		freqA, distinctA = wFirst*overlapFirst.frequency, overlapFirst.distinct
	}
	if overlapSecond != nil {
		freqB, distinctB = wSecond*overlapSecond.frequency, overlapSecond.distinct
	}
	if isUnionAll {
		freq += freqA + freqB
	} else {
		freq += math.Max(freqA, freqB)
	}
	distinct += math.Max(distinctA, distinctB)

	merged = NewBucket(first.lower, upper, first.lowerClosed, upperClosed, freq, distinct)
	if swapped {
		return merged, restSecond, restFirst
	}
	return merged, restFirst, restSecond
}

// Subsumes returns true if every value of other is a value of b.
func (b *Bucket) Subsumes(other *Bucket) bool {
	if other.IsSingleton() {
		return b.Contains(other.lower)
	}
	return CompareLowerBounds(b, other) <= 0 && CompareUpperBounds(b, other) >= 0
}

// CompareLowerBounds orders two buckets by where they start. At equal values
// a closed lower bound starts first.
func CompareLowerBounds(b1, b2 *Bucket) int {
	if c := b1.lower.cmp(b2.lower); c != 0 {
		return c
	}
	switch {
	case b1.lowerClosed == b2.lowerClosed:
		return 0
	case b1.lowerClosed:
		return -1
	default:
		return 1
	}
}

// CompareUpperBounds orders two buckets by where they end. At equal values an
// open upper bound ends first.
func CompareUpperBounds(b1, b2 *Bucket) int {
	if c := b1.upper.cmp(b2.upper); c != 0 {
		return c
	}
	switch {
	case b1.upperClosed == b2.upperClosed:
		return 0
	case b1.upperClosed:
		return 1
	default:
		return -1
	}
}

func (b *Bucket) String() string {
	lb, ub := "(", ")"
	if b.lowerClosed {
		lb = "["
	}
	if b.upperClosed {
		ub = "]"
	}
	return fmt.Sprintf("%s%s - %s%s (freq=%.4g, ndv=%.4g)",
		lb, b.lower, b.upper, ub, b.frequency, b.distinct)
}
