// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"testing"

	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

const testStats = `[
  {
    "name": "t",
    "row_count": 1000,
    "columns": [
      {
        "column_id": 1,
        "width": 8,
        "histo_col_type": "int",
        "null_frequency": 0.1,
        "buckets": [
          {"lower": "0", "upper": "10", "lower_closed": true, "upper_closed": false, "frequency": 0.4, "distinct": 10},
          {"lower": "10", "upper": "20", "lower_closed": true, "upper_closed": true, "frequency": 0.4, "distinct": 11}
        ],
        "mcvs": [{"value": "5", "frequency": 0.1}]
      },
      {
        "column_id": 2,
        "null_frequency": 0.5,
        "distinct_remainder": 20,
        "frequency_remainder": 0.5
      },
      {
        "column_id": 3,
        "width": 3
      }
    ]
  }
]`

func TestJSONStatisticRoundTrip(t *testing.T) {
	decoded, err := ParseJSONStatistics([]byte(testStats))
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	ts, err := decoded[0].TableStatistic()
	require.NoError(t, err)
	require.True(t, ts.HasStats)
	require.Equal(t, 1000.0, ts.RowCount)
	require.Len(t, ts.Columns, 3)

	c := ts.Columns[0]
	require.True(t, c.HasHistogram)
	require.Len(t, c.Buckets, 2)
	require.Equal(t, tree.DInt(10), *c.Buckets[0].Upper.(*tree.DInt))
	require.False(t, c.Buckets[0].UpperClosed)
	require.Equal(t, tree.DInt(5), *c.MCVs[0].Value.(*tree.DInt))

	c = ts.Columns[1]
	require.True(t, c.HasHistogram)
	require.Empty(t, c.Buckets)
	require.Equal(t, 20.0, c.DistinctRemainder)

	c = ts.Columns[2]
	require.False(t, c.HasHistogram)
	require.Equal(t, 3.0, c.Width)

	encoded, err := MakeJSONStatistic("t", ts)
	require.NoError(t, err)
	// Bucketless histograms do not carry a type.
	if diff := pretty.Diff(decoded[0], encoded); len(diff) > 0 {
		t.Fatalf("round trip changed statistics:\n%s", diff)
	}
}

func TestJSONStatisticErrors(t *testing.T) {
	testCases := []struct {
		json string
		err  string
	}{
		{
			json: `[{"columns": [{"column_id": 1, "buckets": [{"lower": "1", "upper": "2"}]}]}]`,
			err:  "column 1: histogram type is unset",
		},
		{
			json: `[{"columns": [{"column_id": 1, "histo_col_type": "geometry", "buckets": [{"lower": "1", "upper": "2"}]}]}]`,
			err:  `unknown type "geometry"`,
		},
		{
			json: `[{"columns": [{"column_id": 1, "histo_col_type": "int", "buckets": [{"lower": "1", "upper": "x"}]}]}]`,
			err:  "column 1: upper bound of bucket 0",
		},
		{
			json: `[{"columns": [{"column_id": 1, "histo_col_type": "int", "mcvs": [{"value": "x"}]}]}]`,
			err:  "column 1: most common value 0",
		},
		{
			json: `[{"name": "t", "columns": [{"column_id": 1}, {"column_id": 1}]}]`,
			err:  `statistics "t" list column 1 twice`,
		},
	}
	for _, tc := range testCases {
		decoded, err := ParseJSONStatistics([]byte(tc.json))
		require.NoError(t, err)
		_, err = decoded[0].TableStatistic()
		require.Error(t, err)
		require.Contains(t, err.Error(), tc.err)
	}

	_, err := ParseJSONStatistics([]byte(`{"row_count": 1}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decoding statistics")
}

func TestFromStatistics(t *testing.T) {
	lo := props.MakePoint(tree.NewDInt(0))
	hi := props.MakePoint(tree.NewDFloat(2.5))
	h := props.NewHistogram(
		[]*props.Bucket{props.NewBucket(lo, hi, true, true, 0.2, 5)}, 0.1, 2, 0.2,
	)
	s := props.MakeStatistics(50, false, props.ColumnStatistic{Col: 4, Histogram: h, Width: 6})

	js, err := FromStatistics("out", s)
	require.NoError(t, err)
	require.Equal(t, 50.0, js.RowCount)
	require.Len(t, js.Columns, 1)
	jc := js.Columns[0]
	// The float upper bound widens the type of the integer lower bound.
	require.Equal(t, "float", jc.HistogramColumnType)
	require.Equal(t, "0", jc.HistogramBuckets[0].Lower)
	require.Equal(t, "2.5", jc.HistogramBuckets[0].Upper)
	// Frequencies are normalized.
	require.InDelta(t, 0.4, jc.HistogramBuckets[0].Frequency, 1e-9)
	require.InDelta(t, 0.2, jc.NullFrequency, 1e-9)
	require.InDelta(t, 0.4, jc.FrequencyRemainder, 1e-9)
	require.Equal(t, 2.0, jc.DistinctRemainder)

	ts, err := js.TableStatistic()
	require.NoError(t, err)
	require.Equal(t, tree.DFloat(0), *ts.Columns[0].Buckets[0].Lower.(*tree.DFloat))
}
