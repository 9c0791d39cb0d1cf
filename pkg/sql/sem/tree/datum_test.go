// Copyright 2015 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) *DDecimal {
	d, err := ParseDDecimal(s)
	require.NoError(t, err)
	return d
}

func TestCompare(t *testing.T) {
	date := func(s string) Datum {
		d, err := ParseDDate(s)
		require.NoError(t, err)
		return d
	}
	testCases := []struct {
		a, b     Datum
		expected int
	}{
		{NewDInt(1), NewDInt(2), -1},
		{NewDInt(2), NewDInt(2), 0},
		{NewDInt(3), NewDFloat(2.5), 1},
		{NewDFloat(2.5), NewDInt(3), -1},
		{mustDecimal(t, "1.5"), NewDInt(1), 1},
		{NewDInt(2), mustDecimal(t, "2.000"), 0},
		{NewDFloat(0.25), mustDecimal(t, "0.5"), -1},
		{mustDecimal(t, "0.5"), NewDFloat(0.25), 1},
		{NewDFloat(DFloat(math.NaN())), NewDFloat(-1e300), -1},
		{NewDString("abc"), NewDString("abd"), -1},
		{NewDBytes("b"), NewDBytes("a"), 1},
		{DBoolFalse, DBoolTrue, -1},
		{DBoolTrue, DBoolFalse, 1},
		{MakeDBool(true), DBoolTrue, 0},
		{date("2020-01-01"), date("2019-12-31"), 1},
		{
			MakeDTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
			MakeDTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
			0,
		},
	}
	for _, tc := range testCases {
		c, err := tc.a.Compare(tc.b)
		require.NoError(t, err)
		require.Equal(t, tc.expected, c, "%s vs %s", tc.a, tc.b)
	}
}

func TestMakeDBool(t *testing.T) {
	require.Same(t, DBoolTrue, MakeDBool(true))
	require.Same(t, DBoolFalse, MakeDBool(false))
	require.True(t, bool(*DBoolTrue))
	require.False(t, bool(*DBoolFalse))
}

func TestCompareIncomparable(t *testing.T) {
	for _, tc := range [][2]Datum{
		{NewDInt(1), NewDString("1")},
		{NewDString("a"), NewDBytes("a")},
		{mustDecimal(t, "1"), DBoolTrue},
		{DNull, NewDInt(1)},
		{NewDInt(1), DNull},
	} {
		_, err := tc[0].Compare(tc[1])
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrIncomparableTypes), "%v", err)
	}
}

func TestDistance(t *testing.T) {
	d, ok := Distance(NewDInt(10), NewDInt(35))
	require.True(t, ok)
	require.Equal(t, 25.0, d)

	d, ok = Distance(NewDInt(1), mustDecimal(t, "2.5"))
	require.True(t, ok)
	require.Equal(t, 1.5, d)

	lo, err := ParseDDate("2020-01-01")
	require.NoError(t, err)
	hi, err := ParseDDate("2020-01-11")
	require.NoError(t, err)
	d, ok = Distance(lo, hi)
	require.True(t, ok)
	require.Equal(t, 10.0, d)

	_, ok = Distance(NewDString("a"), NewDString("z"))
	require.False(t, ok)
	_, ok = Distance(NewDInt(1), NewDString("z"))
	require.False(t, ok)
	_, ok = Distance(NewDFloat(DFloat(math.Inf(1))), NewDFloat(1))
	require.False(t, ok)
}

func TestParseDatumStringAs(t *testing.T) {
	testCases := []struct {
		typ *types.T
		in  string
		out string
	}{
		{types.Int, "42", "42"},
		{types.Float, "1.5", "1.5"},
		{types.Decimal, "3.14159", "3.14159"},
		{types.Bool, "true", "true"},
		{types.Date, "2021-03-04", "2021-03-04"},
		{types.Timestamp, "2021-03-04 05:06:07.5", "2021-03-04 05:06:07.5"},
		{types.Timestamp, "2021-03-04T05:06:07Z", "2021-03-04 05:06:07"},
		{types.String, "it's", "it's"},
	}
	for _, tc := range testCases {
		d, err := ParseDatumStringAs(tc.typ, tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.typ.Family(), d.ResolvedType().Family())
		require.Equal(t, tc.out, AsStringWithoutQuotes(d))
	}

	_, err := ParseDatumStringAs(types.Int, "abc")
	require.Error(t, err)
	_, err = ParseDatumStringAs(types.Date, "yesterday")
	require.Error(t, err)
}

func TestDatumString(t *testing.T) {
	require.Equal(t, "'it''s'", NewDString("it's").String())
	require.Equal(t, `'\x6869'`, NewDBytes("hi").String())
	require.Equal(t, "'NaN'", NewDFloat(DFloat(math.NaN())).String())
	require.Equal(t, "NULL", DNull.String())
}
