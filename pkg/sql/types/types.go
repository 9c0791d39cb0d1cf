// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package types describes the small set of SQL type families the estimator
// needs in order to order and interpolate literal values.
package types

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Family is the broad category of a type. Values of types in the same family
// can be compared with each other; the numeric families can additionally be
// compared across one another.
type Family int32

const (
	// UnknownFamily is the family of the NULL datum.
	UnknownFamily Family = iota
	BoolFamily
	IntFamily
	FloatFamily
	DecimalFamily
	DateFamily
	TimestampFamily
	StringFamily
	BytesFamily
)

var familyNames = [...]string{
	UnknownFamily:   "unknown",
	BoolFamily:      "bool",
	IntFamily:       "int",
	FloatFamily:     "float",
	DecimalFamily:   "decimal",
	DateFamily:      "date",
	TimestampFamily: "timestamp",
	StringFamily:    "string",
	BytesFamily:     "bytes",
}

// String implements fmt.Stringer.
func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return fmt.Sprintf("family(%d)", int32(f))
}

// SafeValue implements redact.SafeValue. Family names carry no user data.
func (Family) SafeValue() {}

// IsNumeric returns true for the int, float and decimal families.
func (f Family) IsNumeric() bool {
	return f == IntFamily || f == FloatFamily || f == DecimalFamily
}

// T is a SQL type. Only the family is tracked.
type T struct {
	family Family
}

var (
	// Unknown is the type of the NULL datum.
	Unknown = &T{family: UnknownFamily}
	// Bool is the type of a boolean datum.
	Bool = &T{family: BoolFamily}
	// Int is the type of a 64-bit integer datum.
	Int = &T{family: IntFamily}
	// Float is the type of a 64-bit floating point datum.
	Float = &T{family: FloatFamily}
	// Decimal is the type of an arbitrary precision decimal datum.
	Decimal = &T{family: DecimalFamily}
	// Date is the type of a calendar date datum.
	Date = &T{family: DateFamily}
	// Timestamp is the type of a timestamp datum without time zone.
	Timestamp = &T{family: TimestampFamily}
	// String is the type of a text datum.
	String = &T{family: StringFamily}
	// Bytes is the type of a byte string datum.
	Bytes = &T{family: BytesFamily}
)

var typesByFamily = [...]*T{
	UnknownFamily:   Unknown,
	BoolFamily:      Bool,
	IntFamily:       Int,
	FloatFamily:     Float,
	DecimalFamily:   Decimal,
	DateFamily:      Date,
	TimestampFamily: Timestamp,
	StringFamily:    String,
	BytesFamily:     Bytes,
}

// Family returns the type's family.
func (t *T) Family() Family {
	return t.family
}

// String returns the lowercase name of the type.
func (t *T) String() string {
	return t.family.String()
}

// SQLString returns the name of the type as used in SQL.
func (t *T) SQLString() string {
	return strings.ToUpper(t.family.String())
}

// Comparable returns true if values of t can be ordered against values of
// other.
func (t *T) Comparable(other *T) bool {
	if t.family == other.family {
		return t.family != UnknownFamily
	}
	return t.family.IsNumeric() && other.family.IsNumeric()
}

// HasDistance returns true if values of the type map onto a numeric line, so
// that the distance between two values can be used for interpolation.
func (t *T) HasDistance() bool {
	switch t.family {
	case IntFamily, FloatFamily, DecimalFamily, DateFamily, TimestampFamily:
		return true
	}
	return false
}

// FromString returns the type with the given name, as produced by String.
func FromString(name string) (*T, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch lower {
	case "integer", "int8", "int4", "bigint":
		lower = "int"
	case "float8", "double precision", "real":
		lower = "float"
	case "numeric":
		lower = "decimal"
	case "text", "varchar":
		lower = "string"
	case "boolean":
		lower = "bool"
	}
	for _, t := range typesByFamily {
		if t.family != UnknownFamily && t.String() == lower {
			return t, nil
		}
	}
	return nil, errors.Newf("unknown type %q", name)
}
