// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains the shapes in which the catalog hands table statistics
// to the estimator. How the statistics are looked up and cached is up to the
// catalog implementation.
package cat

import (
	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
)

// TableStatistic holds the statistics collected for a table.
type TableStatistic struct {
	// RowCount is the estimated number of rows in the table.
	RowCount float64

	// IsEmpty is true if the table is known to have no rows.
	IsEmpty bool

	// HasStats is false if statistics were never collected for the table, in
	// which case RowCount is ignored and a default row count is used.
	HasStats bool

	Columns []ColumnStatistic
}

// ColumnStatistic holds the statistics collected for a single column. All
// frequencies are fractions of the table's rows.
type ColumnStatistic struct {
	ColumnID opt.ColumnID

	// Width is the average size of the column's values in bytes. Zero means
	// unknown.
	Width float64

	// HasHistogram is false if only the width of the column is known. The
	// remaining fields are ignored and a default distribution is used.
	HasHistogram bool

	NullFrequency      float64
	DistinctRemainder  float64
	FrequencyRemainder float64

	// Buckets are ascending and non-overlapping.
	Buckets []HistogramBucket

	// MCVs are the most common values of the column, if they were collected
	// separately from the buckets. They are merged into the histogram.
	MCVs []MostCommonValue
}

// HistogramBucket is one bucket of a column histogram.
type HistogramBucket struct {
	Lower       tree.Datum
	Upper       tree.Datum
	LowerClosed bool
	UpperClosed bool

	// Frequency is the fraction of the table's rows in the bucket.
	Frequency float64

	// Distinct is the number of distinct values in the bucket.
	Distinct float64
}

// MostCommonValue is a frequently occurring value and the fraction of the
// table's rows that hold it.
type MostCommonValue struct {
	Value     tree.Datum
	Frequency float64
}
