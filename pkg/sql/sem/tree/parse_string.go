// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/errors"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.999999"
)

var timestampLayouts = []string{
	timestampLayout,
	"2006-01-02T15:04:05.999999",
	time.RFC3339Nano,
	dateLayout,
}

func makeParseError(s string, typ *types.T, err error) error {
	if err == nil {
		return errors.Newf("could not parse %q as type %s", s, typ.Family())
	}
	return errors.Wrapf(err, "could not parse %q as type %s", s, typ.Family())
}

// ParseDatumStringAs parses s as type t. It is the inverse of
// AsStringWithoutQuotes for every supported type.
func ParseDatumStringAs(t *types.T, s string) (Datum, error) {
	switch t.Family() {
	case types.BoolFamily:
		return ParseDBool(s)
	case types.IntFamily:
		return ParseDInt(s)
	case types.FloatFamily:
		return ParseDFloat(s)
	case types.DecimalFamily:
		return ParseDDecimal(s)
	case types.DateFamily:
		return ParseDDate(s)
	case types.TimestampFamily:
		return ParseDTimestamp(s)
	case types.StringFamily:
		return NewDString(s), nil
	case types.BytesFamily:
		return NewDBytes(DBytes(s)), nil
	}
	return nil, errors.AssertionFailedf("unknown type %s", t.Family())
}

// ParseDBool parses and returns the *DBool Datum value represented by the
// provided string, or an error if parsing is unsuccessful.
func ParseDBool(s string) (*DBool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil, makeParseError(s, types.Bool, err)
	}
	return MakeDBool(DBool(b)), nil
}

// ParseDInt parses and returns the *DInt Datum value represented by the
// provided string, or an error if parsing is unsuccessful.
func ParseDInt(s string) (*DInt, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return nil, makeParseError(s, types.Int, err)
	}
	return NewDInt(DInt(i)), nil
}

// ParseDFloat parses and returns the *DFloat Datum value represented by the
// provided string, or an error if parsing is unsuccessful.
func ParseDFloat(s string) (*DFloat, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan":
		return NewDFloat(DFloat(math.NaN())), nil
	case "inf", "+inf", "infinity":
		return NewDFloat(DFloat(math.Inf(1))), nil
	case "-inf", "-infinity":
		return NewDFloat(DFloat(math.Inf(-1))), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, makeParseError(s, types.Float, err)
	}
	return NewDFloat(DFloat(f)), nil
}

// ParseDDecimal parses and returns the *DDecimal Datum value represented by
// the provided string, or an error if parsing is unsuccessful.
func ParseDDecimal(s string) (*DDecimal, error) {
	dd := &DDecimal{}
	if _, _, err := dd.SetString(strings.TrimSpace(s)); err != nil {
		return nil, makeParseError(s, types.Decimal, err)
	}
	return dd, nil
}

// NewDDecimalFromFloat returns the decimal closest to f.
func NewDDecimalFromFloat(f float64) (*DDecimal, error) {
	dd := &DDecimal{}
	if _, err := dd.SetFloat64(f); err != nil {
		return nil, err
	}
	return dd, nil
}

// ParseDDate parses a date in YYYY-MM-DD form.
func ParseDDate(s string) (*DDate, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, makeParseError(s, types.Date, err)
	}
	return NewDDateFromTime(t), nil
}

// ParseDTimestamp parses a timestamp. Both the SQL form with a space
// separator and RFC 3339 are accepted.
func ParseDTimestamp(s string) (*DTimestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MakeDTimestamp(t), nil
		}
	}
	return nil, makeParseError(s, types.Timestamp, nil)
}

// AsStringWithoutQuotes renders the datum the way ParseDatumStringAs accepts
// it back.
func AsStringWithoutQuotes(d Datum) string {
	switch t := d.(type) {
	case *DString:
		return string(*t)
	case *DBytes:
		return string(*t)
	case *DDate:
		return t.ToTime().Format(dateLayout)
	case *DTimestamp:
		return t.Time.Format(timestampLayout)
	case *DFloat:
		return strconv.FormatFloat(float64(*t), 'g', -1, 64)
	case *DDecimal:
		return t.Decimal.Text('f')
	}
	return d.String()
}
