// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/errors"

// The estimator reports three kinds of failures. Use errors.Is against these
// markers to classify an error.
var (
	// ErrInvalidPredicateShape marks a predicate tree that cannot drive the
	// requested estimate, such as a join predicate passed to a filter or an
	// empty conjunction.
	ErrInvalidPredicateShape = errors.New("invalid predicate shape")

	// ErrIncomparableValues marks an attempt to order or interpolate between
	// values of incompatible type families.
	ErrIncomparableValues = errors.New("incomparable values")

	// ErrInvalidHistogram marks a histogram that fails validation.
	ErrInvalidHistogram = errors.New("invalid histogram")
)

// NewInvalidPredicateShapeErrorf creates an error marked with
// ErrInvalidPredicateShape.
func NewInvalidPredicateShapeErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrInvalidPredicateShape)
}

// NewInvalidHistogramErrorf creates an error marked with ErrInvalidHistogram.
func NewInvalidHistogramErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrInvalidHistogram)
}

// MarkIncomparable marks err with ErrIncomparableValues.
func MarkIncomparable(err error) error {
	return errors.Mark(err, ErrIncomparableValues)
}
