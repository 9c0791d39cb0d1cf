// Copyright 2015 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/errors"
)

// ErrIncomparableTypes marks errors returned when two datums of incompatible
// type families are ordered against each other.
var ErrIncomparableTypes = errors.New("incomparable types")

// Datum represents a SQL value.
type Datum interface {
	// ResolvedType provides the type of the Datum.
	ResolvedType() *types.T

	// Compare returns -1 if the receiver is less than other, 0 if receiver is
	// equal to other and +1 if receiver is greater than other. An error marked
	// with ErrIncomparableTypes is returned if the two types cannot be ordered.
	Compare(other Datum) (int, error)

	// String renders the datum as a SQL literal.
	String() string
}

// DInt is the int Datum.
type DInt int64

// NewDInt is a helper routine to create a *DInt initialized from its argument.
func NewDInt(d DInt) *DInt {
	return &d
}

// ResolvedType implements the Datum interface.
func (*DInt) ResolvedType() *types.T { return types.Int }

// Compare implements the Datum interface.
func (d *DInt) Compare(other Datum) (int, error) { return compareNumeric(d, other) }

func (d *DInt) String() string { return strconv.FormatInt(int64(*d), 10) }

// DFloat is the float Datum.
type DFloat float64

// NewDFloat is a helper routine to create a *DFloat initialized from its
// argument.
func NewDFloat(d DFloat) *DFloat {
	return &d
}

// ResolvedType implements the Datum interface.
func (*DFloat) ResolvedType() *types.T { return types.Float }

// Compare implements the Datum interface.
func (d *DFloat) Compare(other Datum) (int, error) { return compareNumeric(d, other) }

func (d *DFloat) String() string {
	f := float64(*d)
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'+Inf'"
	case math.IsInf(f, -1):
		return "'-Inf'"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// DDecimal is the decimal Datum.
type DDecimal struct {
	apd.Decimal
}

// ResolvedType implements the Datum interface.
func (*DDecimal) ResolvedType() *types.T { return types.Decimal }

// Compare implements the Datum interface.
func (d *DDecimal) Compare(other Datum) (int, error) { return compareNumeric(d, other) }

func (d *DDecimal) String() string { return d.Decimal.String() }

// DString is the string Datum.
type DString string

// NewDString is a helper routine to create a *DString initialized from its
// argument.
func NewDString(d string) *DString {
	r := DString(d)
	return &r
}

// ResolvedType implements the Datum interface.
func (*DString) ResolvedType() *types.T { return types.String }

// Compare implements the Datum interface.
func (d *DString) Compare(other Datum) (int, error) {
	o, ok := other.(*DString)
	if !ok {
		return 0, incomparableError(d, other)
	}
	return strings.Compare(string(*d), string(*o)), nil
}

func (d *DString) String() string {
	return "'" + strings.ReplaceAll(string(*d), "'", "''") + "'"
}

// DBytes is the bytes Datum. The underlying type is a string because we want
// the immutability, but this may contain arbitrary bytes.
type DBytes string

// NewDBytes is a helper routine to create a *DBytes initialized from its
// argument.
func NewDBytes(d DBytes) *DBytes {
	return &d
}

// ResolvedType implements the Datum interface.
func (*DBytes) ResolvedType() *types.T { return types.Bytes }

// Compare implements the Datum interface.
func (d *DBytes) Compare(other Datum) (int, error) {
	o, ok := other.(*DBytes)
	if !ok {
		return 0, incomparableError(d, other)
	}
	return strings.Compare(string(*d), string(*o)), nil
}

func (d *DBytes) String() string {
	return `'\x` + hex.EncodeToString([]byte(*d)) + "'"
}

// DBool is the boolean Datum.
type DBool bool

var (
	dBoolTrue  = DBool(true)
	dBoolFalse = DBool(false)

	// DBoolTrue is a pointer to the DBool(true) value and can be used in
	// comparisons against Datum types.
	DBoolTrue = &dBoolTrue
	// DBoolFalse is a pointer to the DBool(false) value and can be used in
	// comparisons against Datum types.
	DBoolFalse = &dBoolFalse
)

// MakeDBool converts its argument to a *DBool, reusing the constant instances.
func MakeDBool(d DBool) *DBool {
	if d {
		return DBoolTrue
	}
	return DBoolFalse
}

// ResolvedType implements the Datum interface.
func (*DBool) ResolvedType() *types.T { return types.Bool }

// Compare implements the Datum interface.
func (d *DBool) Compare(other Datum) (int, error) {
	o, ok := other.(*DBool)
	if !ok {
		return 0, incomparableError(d, other)
	}
	switch {
	case !bool(*d) && bool(*o):
		return -1, nil
	case bool(*d) && !bool(*o):
		return 1, nil
	}
	return 0, nil
}

func (d *DBool) String() string { return strconv.FormatBool(bool(*d)) }

// DDate is the date Datum, stored as the number of days since the Unix epoch.
type DDate struct {
	days int64
}

const secondsPerDay = 24 * 60 * 60

// NewDDateFromTime constructs a *DDate from the date part of t.
func NewDDateFromTime(t time.Time) *DDate {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &DDate{days: midnight.Unix() / secondsPerDay}
}

// UnixEpochDays returns the number of days since the Unix epoch.
func (d *DDate) UnixEpochDays() int64 { return d.days }

// ToTime returns the date as a time at midnight UTC.
func (d *DDate) ToTime() time.Time {
	return time.Unix(d.days*secondsPerDay, 0).UTC()
}

// ResolvedType implements the Datum interface.
func (*DDate) ResolvedType() *types.T { return types.Date }

// Compare implements the Datum interface.
func (d *DDate) Compare(other Datum) (int, error) {
	o, ok := other.(*DDate)
	if !ok {
		return 0, incomparableError(d, other)
	}
	return compareInts(d.days, o.days), nil
}

func (d *DDate) String() string {
	return "'" + d.ToTime().Format(dateLayout) + "'"
}

// DTimestamp is the timestamp Datum.
type DTimestamp struct {
	time.Time
}

// MakeDTimestamp creates a *DTimestamp with microsecond precision.
func MakeDTimestamp(t time.Time) *DTimestamp {
	return &DTimestamp{Time: t.UTC().Round(time.Microsecond)}
}

// ResolvedType implements the Datum interface.
func (*DTimestamp) ResolvedType() *types.T { return types.Timestamp }

// Compare implements the Datum interface.
func (d *DTimestamp) Compare(other Datum) (int, error) {
	o, ok := other.(*DTimestamp)
	if !ok {
		return 0, incomparableError(d, other)
	}
	return d.Time.Compare(o.Time), nil
}

func (d *DTimestamp) String() string {
	return "'" + d.Time.Format(timestampLayout) + "'"
}

type dNull struct{}

// DNull is the NULL Datum.
var DNull Datum = dNull{}

// ResolvedType implements the Datum interface.
func (dNull) ResolvedType() *types.T { return types.Unknown }

// Compare implements the Datum interface. NULL cannot be ordered.
func (d dNull) Compare(other Datum) (int, error) { return 0, incomparableError(d, other) }

func (dNull) String() string { return "NULL" }

func incomparableError(a, b Datum) error {
	return errors.Mark(
		errors.Newf("cannot compare %s with %s",
			a.ResolvedType().Family(), b.ResolvedType().Family()),
		ErrIncomparableTypes,
	)
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareFloats orders NaN before every other value, matching the ordering
// used for index keys.
func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case a == b:
		return 0
	}
	if math.IsNaN(a) {
		if math.IsNaN(b) {
			return 0
		}
		return -1
	}
	return 1
}

func compareNumeric(a, b Datum) (int, error) {
	switch l := a.(type) {
	case *DInt:
		switch r := b.(type) {
		case *DInt:
			return compareInts(int64(*l), int64(*r)), nil
		case *DFloat:
			return compareFloats(float64(*l), float64(*r)), nil
		case *DDecimal:
			var ld apd.Decimal
			ld.SetInt64(int64(*l))
			return ld.Cmp(&r.Decimal), nil
		}
	case *DFloat:
		switch r := b.(type) {
		case *DInt:
			return compareFloats(float64(*l), float64(*r)), nil
		case *DFloat:
			return compareFloats(float64(*l), float64(*r)), nil
		case *DDecimal:
			f, err := r.Float64()
			if err != nil {
				return 0, errors.Wrapf(err, "comparing %s with %s", l, r)
			}
			return compareFloats(float64(*l), f), nil
		}
	case *DDecimal:
		if r, ok := b.(*DDecimal); ok {
			return l.Cmp(&r.Decimal), nil
		}
		if b.ResolvedType().Family().IsNumeric() {
			c, err := compareNumeric(b, a)
			return -c, err
		}
	}
	return 0, incomparableError(a, b)
}

// AsFloat maps a datum onto the real line, for types where the distance
// between two values is meaningful. NaN and infinite values do not map.
func AsFloat(d Datum) (float64, bool) {
	var f float64
	switch t := d.(type) {
	case *DInt:
		f = float64(*t)
	case *DFloat:
		f = float64(*t)
	case *DDecimal:
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case *DDate:
		f = float64(t.days)
	case *DTimestamp:
		f = float64(t.UnixMicro())
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Distance returns hi - lo for datums that map onto the real line. The second
// return value is false if the types are not comparable or have no distance.
func Distance(lo, hi Datum) (float64, bool) {
	if !lo.ResolvedType().Comparable(hi.ResolvedType()) {
		return 0, false
	}
	l, ok := AsFloat(lo)
	if !ok {
		return 0, false
	}
	h, ok := AsFloat(hi)
	if !ok {
		return 0, false
	}
	return h - l, true
}
