// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/errors"
)

// Point is a non-NULL literal used as a histogram bucket boundary or as the
// constant side of a comparison. NULLs are never bucket boundaries; they are
// tracked by the histogram's null frequency instead.
type Point struct {
	datum tree.Datum
}

// MakePoint wraps a datum. It panics if the datum is NULL.
func MakePoint(d tree.Datum) Point {
	if d == nil || d == tree.DNull {
		panic(errors.AssertionFailedf("histogram point cannot be NULL"))
	}
	return Point{datum: d}
}

// Datum returns the wrapped datum.
func (p Point) Datum() tree.Datum {
	return p.datum
}

// IsValid returns false for the zero Point.
func (p Point) IsValid() bool {
	return p.datum != nil && p.datum != tree.DNull
}

// Compare returns -1, 0 or +1 as p is less than, equal to or greater than
// other. An error marked opt.ErrIncomparableValues is returned for values from
// incompatible type families.
func (p Point) Compare(other Point) (int, error) {
	c, err := p.datum.Compare(other.datum)
	if err != nil {
		return 0, opt.MarkIncomparable(err)
	}
	return c, nil
}

// cmp is like Compare but panics on incomparable values. Histogram code uses
// it so that the estimator can recover once at the operator boundary.
func (p Point) cmp(other Point) int {
	c, err := p.Compare(other)
	if err != nil {
		panic(err)
	}
	return c
}

// Equals returns true if the two points are equal.
func (p Point) Equals(other Point) bool { return p.cmp(other) == 0 }

// Less returns true if p < other.
func (p Point) Less(other Point) bool { return p.cmp(other) < 0 }

// LessEq returns true if p <= other.
func (p Point) LessEq(other Point) bool { return p.cmp(other) <= 0 }

// Greater returns true if p > other.
func (p Point) Greater(other Point) bool { return p.cmp(other) > 0 }

// GreaterEq returns true if p >= other.
func (p Point) GreaterEq(other Point) bool { return p.cmp(other) >= 0 }

// Distance returns other - p on the numeric line of the type. The second
// return value is false for types with no usable distance (strings, bytes,
// booleans), in which case callers fall back to whole-bucket estimates.
func (p Point) Distance(other Point) (float64, bool) {
	return tree.Distance(p.datum, other.datum)
}

func (p Point) String() string {
	if p.datum == nil {
		return "<invalid>"
	}
	return p.datum.String()
}
