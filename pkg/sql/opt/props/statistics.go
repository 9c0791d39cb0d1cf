// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
)

// ColumnStatistic pairs a column with its histogram and average width. It is
// the unit from which Statistics are assembled.
type ColumnStatistic struct {
	Col       opt.ColumnID
	Histogram *Histogram
	// Width is the average size of the column's values, in bytes.
	Width float64
}

// Statistics is a collection of measurements and statistics that is used to
// estimate the number of rows produced by a relational expression.
//
// Every histogram of a Statistics shares the same base: its frequencies are
// fractions of the rows of the relation the statistics were derived from,
// which is not necessarily this relation. The ratio between a histogram's
// mass before and after an operator is therefore the selectivity of the
// operator, and the number of rows a bucket describes is RowCount times the
// bucket frequency divided by the total mass of its histogram.
//
// Statistics are immutable once constructed and can be shared freely between
// goroutines.
type Statistics struct {
	// RowCount is the estimated number of rows returned by the expression.
	RowCount float64

	// IsEmpty is true if the relation is known to produce no rows.
	IsEmpty bool

	histograms map[opt.ColumnID]*Histogram
	widths     map[opt.ColumnID]float64
}

// MakeStatistics creates statistics for a relation with the given row count
// and columns. A column listed twice keeps its last entry.
func MakeStatistics(rowCount float64, isEmpty bool, cols ...ColumnStatistic) *Statistics {
	s := &Statistics{
		RowCount:   math.Max(0, rowCount),
		IsEmpty:    isEmpty,
		histograms: make(map[opt.ColumnID]*Histogram, len(cols)),
		widths:     make(map[opt.ColumnID]float64, len(cols)),
	}
	for _, c := range cols {
		s.histograms[c.Col] = c.Histogram
		s.widths[c.Col] = c.Width
	}
	return s
}

// Histogram returns the histogram of the given column, if any.
func (s *Statistics) Histogram(col opt.ColumnID) (*Histogram, bool) {
	h, ok := s.histograms[col]
	return h, ok && h != nil
}

// Width returns the average width of the given column, if known.
func (s *Statistics) Width(col opt.ColumnID) (float64, bool) {
	w, ok := s.widths[col]
	return w, ok
}

// Columns returns the set of columns that have statistics.
func (s *Statistics) Columns() opt.ColSet {
	var cols opt.ColSet
	for col := range s.histograms {
		cols.Add(int(col))
	}
	return cols
}

// ColumnStatistics returns the statistics of every column, ordered by column
// ID.
func (s *Statistics) ColumnStatistics() []ColumnStatistic {
	cols := opt.ColSetToList(s.Columns())
	res := make([]ColumnStatistic, len(cols))
	for i, col := range cols {
		res[i] = ColumnStatistic{Col: col, Histogram: s.histograms[col], Width: s.widths[col]}
	}
	return res
}

// DistinctCount returns the estimated number of distinct non-NULL values of
// the column, or false if the column has no histogram.
func (s *Statistics) DistinctCount(col opt.ColumnID) (float64, bool) {
	h, ok := s.Histogram(col)
	if !ok {
		return 0, false
	}
	return h.Distinct(), true
}

// NullCount returns the estimated number of rows for which the column is
// NULL, or false if the column has no histogram.
func (s *Statistics) NullCount(col opt.ColumnID) (float64, bool) {
	h, ok := s.Histogram(col)
	if !ok {
		return 0, false
	}
	total := h.TotalFrequency()
	if total <= 0 {
		return 0, true
	}
	return s.RowCount * h.NullFrequency() / total, true
}

// RowWidth returns the sum of the average widths of the columns.
func (s *Statistics) RowWidth() float64 {
	var width float64
	for _, w := range s.widths {
		width += w
	}
	return width
}

// String prints the row count followed by one line per column:
//
//	rows=1000
//	@1: distinct=100 null=10 width=4
func (s *Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows=%.6g", s.RowCount)
	if s.IsEmpty {
		b.WriteString(" (empty)")
	}
	for _, c := range s.ColumnStatistics() {
		distinct, _ := s.DistinctCount(c.Col)
		nulls, _ := s.NullCount(c.Col)
		fmt.Fprintf(&b, "\n@%d: distinct=%.6g null=%.6g width=%.6g", c.Col, distinct, nulls, c.Width)
	}
	return b.String()
}
