// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v2"
)

const (
	// This is the value used for inequality filters such as x < 1 in
	// "Access Path Selection in a Relational Database Management System"
	// by Pat Selinger et al.
	unknownFilterSelectivity = props.DefaultRangeSelectivity

	// This is an arbitrary row count used in the absence of any real statistics.
	unknownRowCount = 1000

	// UnknownDistinctCountRatio is the ratio of distinct column values to number
	// of rows, which is used in the absence of any real statistics for non-key
	// columns.
	UnknownDistinctCountRatio = 0.1

	// UnknownNullCountRatio is the ratio of null column values to number of rows
	// for nullable columns, which is used in the absence of any real statistics.
	UnknownNullCountRatio = 0.01

	// defaultColSize is the default size of a column in bytes. This is used
	// when the table statistics have a width of 0 for a given column.
	defaultColSize = 4.0

	// This is the selectivity used for LIKE patterns that are not an exact
	// match, when the caller does not provide one.
	unknownLikeSelectivity = 0.1

	// When subtracting floating point numbers, avoid precision errors by making
	// sure the result is greater than or equal to epsilon.
	epsilon = 1e-10
)

// EstimationConfig holds the tunable constants of the estimator. A config is
// read-only once passed to StatisticsBuilder.Init.
type EstimationConfig struct {
	// CapNDV caps the distinct counts of every column to the output row count
	// of joins, group-bys and union-alls. Filters take an explicit argument.
	CapNDV bool `yaml:"cap_ndv"`

	// DampingFactor is the exponent base applied to successive selectivities
	// when several predicates are combined: the i-th most selective factor is
	// raised to DampingFactor^i. A factor of 1 multiplies the selectivities as
	// if the predicates were independent.
	DampingFactor float64 `yaml:"damping_factor"`

	// MaxDampedPredicates is the number of most selective factors that take
	// part in the damped product. Less selective factors are ignored.
	MaxDampedPredicates int `yaml:"max_damped_predicates"`

	// DampingFloor is the smallest selectivity the damped product can
	// produce, unless one of the factors is itself smaller.
	DampingFloor float64 `yaml:"damping_floor"`

	// UnknownFilterSelectivity is used for range predicates on columns without
	// a histogram and for unsupported predicates.
	UnknownFilterSelectivity float64 `yaml:"unknown_filter_selectivity"`

	// UnknownDistinctCountRatio and UnknownNullCountRatio describe the default
	// distribution of columns without collected statistics.
	UnknownDistinctCountRatio float64 `yaml:"unknown_distinct_count_ratio"`
	UnknownNullCountRatio     float64 `yaml:"unknown_null_count_ratio"`

	// UnknownRowCount is the row count of tables without collected statistics.
	UnknownRowCount float64 `yaml:"unknown_row_count"`

	// DefaultColumnWidth is the width, in bytes, of columns with an unknown
	// width.
	DefaultColumnWidth float64 `yaml:"default_column_width"`

	// LikeSelectivity is used for LIKE patterns when the predicate carries no
	// selectivity of its own.
	LikeSelectivity float64 `yaml:"like_selectivity"`

	// ExactAntiSemiJoin selects the bucket-by-bucket computation of the
	// unmatched rows of semi, anti and outer joins over the cheaper uniform
	// one.
	ExactAntiSemiJoin bool `yaml:"exact_anti_semi_join"`

	// CheckHistograms validates every histogram produced by an operator, as
	// test builds always do. An invalid histogram is replaced by a default one
	// and a warning is logged.
	CheckHistograms bool `yaml:"check_histograms"`

	// SkewWarningThreshold is the histogram skew at or above which a filter on
	// the column logs a warning at verbosity 2. Zero disables the warning.
	SkewWarningThreshold float64 `yaml:"skew_warning_threshold"`
}

// DefaultEstimationConfig returns the configuration used by the optimizer.
func DefaultEstimationConfig() *EstimationConfig {
	return &EstimationConfig{
		CapNDV:                    true,
		DampingFactor:             0.5,
		MaxDampedPredicates:       4,
		DampingFloor:              1e-6,
		UnknownFilterSelectivity:  unknownFilterSelectivity,
		UnknownDistinctCountRatio: UnknownDistinctCountRatio,
		UnknownNullCountRatio:     UnknownNullCountRatio,
		UnknownRowCount:           unknownRowCount,
		DefaultColumnWidth:        defaultColSize,
		LikeSelectivity:           unknownLikeSelectivity,
		ExactAntiSemiJoin:         true,
		SkewWarningThreshold:      3,
	}
}

// LoadEstimationConfig overlays the YAML document in data on the default
// configuration. Unknown keys are an error.
func LoadEstimationConfig(data []byte) (*EstimationConfig, error) {
	cfg := DefaultEstimationConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing estimation config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every constant is within its domain.
func (c *EstimationConfig) Validate() error {
	fraction := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return errors.Newf("%s must be between 0 and 1, found %g", errors.Safe(name), v)
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"damping_factor", c.DampingFactor},
		{"damping_floor", c.DampingFloor},
		{"unknown_filter_selectivity", c.UnknownFilterSelectivity},
		{"unknown_distinct_count_ratio", c.UnknownDistinctCountRatio},
		{"unknown_null_count_ratio", c.UnknownNullCountRatio},
		{"like_selectivity", c.LikeSelectivity},
	} {
		if err := fraction(f.name, f.v); err != nil {
			return err
		}
	}
	if c.MaxDampedPredicates < 1 {
		return errors.Newf("max_damped_predicates must be positive, found %d", c.MaxDampedPredicates)
	}
	if c.UnknownRowCount < 0 {
		return errors.Newf("unknown_row_count cannot be negative, found %g", c.UnknownRowCount)
	}
	if c.SkewWarningThreshold < 0 {
		return errors.Newf("skew_warning_threshold cannot be negative, found %g", c.SkewWarningThreshold)
	}
	if c.DefaultColumnWidth <= 0 {
		return errors.Newf("default_column_width must be positive, found %g", c.DefaultColumnWidth)
	}
	return nil
}
