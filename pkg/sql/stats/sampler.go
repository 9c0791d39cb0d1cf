// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"math"
	"math/rand"

	"github.com/axiomhq/hyperloglog"
	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/opt/cat"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/errors"
)

// SampleCollector accumulates the values of one column. Every value is
// added to a HyperLogLog sketch that estimates the distinct count, and a
// uniform reservoir sample of the non-NULL values feeds the histogram.
//
// A SampleCollector is not safe for concurrent use.
type SampleCollector struct {
	col        opt.ColumnID
	maxSamples int
	rng        *rand.Rand
	sketch     *hyperloglog.Sketch

	samples   []tree.Datum
	numRows   int64
	numNulls  int64
	totalSize float64
}

// NewSampleCollector creates a collector for the given column that keeps at
// most maxSamples values. The seed makes the sample reproducible.
func NewSampleCollector(col opt.ColumnID, maxSamples int, seed int64) *SampleCollector {
	if maxSamples < 1 {
		panic(errors.AssertionFailedf("maxSamples must be positive, found %d", maxSamples))
	}
	return &SampleCollector{
		col:        col,
		maxSamples: maxSamples,
		rng:        rand.New(rand.NewSource(seed)),
		sketch:     hyperloglog.New16(),
	}
}

// Add records the next value of the column.
func (c *SampleCollector) Add(d tree.Datum) error {
	if d == nil {
		return errors.AssertionFailedf("nil datum for column %d", c.col)
	}
	c.numRows++
	c.totalSize += datumSize(d)
	if d == tree.DNull {
		c.numNulls++
		return nil
	}
	if len(c.samples) > 0 {
		if !c.samples[0].ResolvedType().Comparable(d.ResolvedType()) {
			return errors.Newf("column %d: value %s of type %s does not match type %s",
				c.col, d, d.ResolvedType(), c.samples[0].ResolvedType())
		}
	}
	c.sketch.Insert([]byte(tree.AsStringWithoutQuotes(d)))

	// Reservoir sampling: the i-th non-NULL value replaces a random sample
	// with probability maxSamples/i.
	seen := c.numRows - c.numNulls
	if len(c.samples) < c.maxSamples {
		c.samples = append(c.samples, d)
	} else if j := c.rng.Int63n(seen); j < int64(c.maxSamples) {
		c.samples[j] = d
	}
	return nil
}

// NumRows returns the number of values added, including NULLs.
func (c *SampleCollector) NumRows() int64 {
	return c.numRows
}

// DistinctCount returns the estimated number of distinct non-NULL values.
// The sketch can overestimate, so the count is capped by the number of
// non-NULL rows.
func (c *SampleCollector) DistinctCount() float64 {
	nonNull := float64(c.numRows - c.numNulls)
	if nonNull == 0 {
		return 0
	}
	return math.Max(1, math.Min(float64(c.sketch.Estimate()), nonNull))
}

// ColumnStatistic builds the statistics of the column with a histogram of
// at most maxBuckets buckets. Frequencies are fractions of all rows added.
func (c *SampleCollector) ColumnStatistic(maxBuckets int) (cat.ColumnStatistic, error) {
	res := cat.ColumnStatistic{ColumnID: c.col, HasHistogram: true}
	if c.numRows == 0 {
		return res, nil
	}
	rows := float64(c.numRows)
	nonNull := rows - float64(c.numNulls)
	res.Width = c.totalSize / rows
	res.NullFrequency = float64(c.numNulls) / rows
	if nonNull == 0 {
		return res, nil
	}

	h, err := BuildHistogram(c.samples, nonNull, c.DistinctCount(), maxBuckets)
	if err != nil {
		return cat.ColumnStatistic{}, errors.Wrapf(err, "column %d", c.col)
	}
	scale := nonNull / rows
	res.Buckets = h.Buckets
	for i := range res.Buckets {
		res.Buckets[i].Frequency *= scale
	}
	res.MCVs = h.MCVs
	for i := range res.MCVs {
		res.MCVs[i].Frequency *= scale
	}
	return res, nil
}

// CollectTableStatistic builds the statistics of a table from collectors
// that saw the same rows.
func CollectTableStatistic(maxBuckets int, cols ...*SampleCollector) (*cat.TableStatistic, error) {
	ts := &cat.TableStatistic{HasStats: true, Columns: make([]cat.ColumnStatistic, len(cols))}
	for i, c := range cols {
		if i == 0 {
			ts.RowCount = float64(c.numRows)
		} else if float64(c.numRows) != ts.RowCount {
			return nil, errors.AssertionFailedf(
				"column %d saw %d rows, expected %g", c.col, c.numRows, ts.RowCount)
		}
		cs, err := c.ColumnStatistic(maxBuckets)
		if err != nil {
			return nil, err
		}
		ts.Columns[i] = cs
	}
	ts.IsEmpty = ts.RowCount == 0
	return ts, nil
}

// datumSize approximates the encoded size of a datum in bytes.
func datumSize(d tree.Datum) float64 {
	switch d.ResolvedType().Family() {
	case types.UnknownFamily:
		return 0
	case types.BoolFamily:
		return 1
	case types.IntFamily, types.FloatFamily, types.DateFamily, types.TimestampFamily:
		return 8
	}
	return float64(len(tree.AsStringWithoutQuotes(d)))
}
