// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"encoding/json"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/opt/cat"
	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/errors"
)

// JSONStatistic is a struct used for JSON marshaling and unmarshaling the
// statistics of a relation.
//
// See cat.TableStatistic for a description of the fields.
type JSONStatistic struct {
	Name     string                `json:"name,omitempty"`
	RowCount float64               `json:"row_count"`
	IsEmpty  bool                  `json:"is_empty,omitempty"`
	Columns  []JSONColumnStatistic `json:"columns"`
}

// JSONColumnStatistic holds the statistics of one column. All frequencies
// are fractions of the relation's rows.
//
// A column has a histogram if it names a histogram type or carries any
// histogram field. A column with only a width gets the default distribution
// when it is decoded.
type JSONColumnStatistic struct {
	ColumnID opt.ColumnID `json:"column_id"`
	Width    float64      `json:"width,omitempty"`
	// HistogramColumnType is the string representation of the type of the
	// bucket bounds and most common values. Parsable with types.FromString.
	HistogramColumnType string                `json:"histo_col_type,omitempty"`
	NullFrequency       float64               `json:"null_frequency,omitempty"`
	DistinctRemainder   float64               `json:"distinct_remainder,omitempty"`
	FrequencyRemainder  float64               `json:"frequency_remainder,omitempty"`
	HistogramBuckets    []JSONHistoBucket     `json:"buckets,omitempty"`
	MostCommonValues    []JSONMostCommonValue `json:"mcvs,omitempty"`
}

// JSONHistoBucket is a struct used for JSON marshaling and unmarshaling of
// histogram buckets.
//
// See cat.HistogramBucket for a description of the fields.
type JSONHistoBucket struct {
	// Lower and Upper are the string representations of datums; parsable with
	// tree.ParseDatumStringAs.
	Lower       string  `json:"lower"`
	Upper       string  `json:"upper"`
	LowerClosed bool    `json:"lower_closed"`
	UpperClosed bool    `json:"upper_closed"`
	Frequency   float64 `json:"frequency"`
	Distinct    float64 `json:"distinct"`
}

// JSONMostCommonValue is a most common value and its frequency.
type JSONMostCommonValue struct {
	Value     string  `json:"value"`
	Frequency float64 `json:"frequency"`
}

// ParseJSONStatistics decodes a JSON array of statistics.
func ParseJSONStatistics(data []byte) ([]JSONStatistic, error) {
	var res []JSONStatistic
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrap(err, "decoding statistics")
	}
	return res, nil
}

// MarshalJSONStatistics encodes statistics as an indented JSON array.
func MarshalJSONStatistics(stats []JSONStatistic) ([]byte, error) {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding statistics")
	}
	return data, nil
}

func (jc *JSONColumnStatistic) hasHistogram() bool {
	return jc.HistogramColumnType != "" || len(jc.HistogramBuckets) > 0 ||
		len(jc.MostCommonValues) > 0 || jc.NullFrequency != 0 ||
		jc.DistinctRemainder != 0 || jc.FrequencyRemainder != 0
}

// TableStatistic converts the JSON statistics to the shape in which the
// catalog hands them to the estimator.
func (js *JSONStatistic) TableStatistic() (*cat.TableStatistic, error) {
	ts := &cat.TableStatistic{
		RowCount: js.RowCount,
		IsEmpty:  js.IsEmpty,
		HasStats: true,
		Columns:  make([]cat.ColumnStatistic, len(js.Columns)),
	}
	seen := make(map[opt.ColumnID]struct{}, len(js.Columns))
	for i := range js.Columns {
		jc := &js.Columns[i]
		if _, ok := seen[jc.ColumnID]; ok {
			return nil, errors.Newf("statistics %q list column %d twice", js.Name, jc.ColumnID)
		}
		seen[jc.ColumnID] = struct{}{}
		c, err := jc.ColumnStatistic()
		if err != nil {
			return nil, errors.Wrapf(err, "statistics %q", js.Name)
		}
		ts.Columns[i] = c
	}
	return ts, nil
}

// ColumnStatistic decodes the column statistics, parsing the bucket bounds
// and most common values as HistogramColumnType.
func (jc *JSONColumnStatistic) ColumnStatistic() (cat.ColumnStatistic, error) {
	c := cat.ColumnStatistic{ColumnID: jc.ColumnID, Width: jc.Width}
	if !jc.hasHistogram() {
		return c, nil
	}
	c.HasHistogram = true
	c.NullFrequency = jc.NullFrequency
	c.DistinctRemainder = jc.DistinctRemainder
	c.FrequencyRemainder = jc.FrequencyRemainder
	if len(jc.HistogramBuckets) == 0 && len(jc.MostCommonValues) == 0 {
		return c, nil
	}
	if jc.HistogramColumnType == "" {
		return cat.ColumnStatistic{}, errors.Newf("column %d: histogram type is unset", jc.ColumnID)
	}
	typ, err := types.FromString(jc.HistogramColumnType)
	if err != nil {
		return cat.ColumnStatistic{}, errors.Wrapf(err, "column %d", jc.ColumnID)
	}
	parse := func(what string, i int, s string) (tree.Datum, error) {
		d, err := tree.ParseDatumStringAs(typ, s)
		if err != nil {
			return nil, errors.Wrapf(err, "column %d: %s of bucket %d", jc.ColumnID, errors.Safe(what), i)
		}
		return d, nil
	}
	c.Buckets = make([]cat.HistogramBucket, len(jc.HistogramBuckets))
	for i := range jc.HistogramBuckets {
		b := &jc.HistogramBuckets[i]
		lower, err := parse("lower bound", i, b.Lower)
		if err != nil {
			return cat.ColumnStatistic{}, err
		}
		upper, err := parse("upper bound", i, b.Upper)
		if err != nil {
			return cat.ColumnStatistic{}, err
		}
		c.Buckets[i] = cat.HistogramBucket{
			Lower:       lower,
			Upper:       upper,
			LowerClosed: b.LowerClosed,
			UpperClosed: b.UpperClosed,
			Frequency:   b.Frequency,
			Distinct:    b.Distinct,
		}
	}
	if len(jc.MostCommonValues) > 0 {
		c.MCVs = make([]cat.MostCommonValue, len(jc.MostCommonValues))
		for i, m := range jc.MostCommonValues {
			d, err := tree.ParseDatumStringAs(typ, m.Value)
			if err != nil {
				return cat.ColumnStatistic{}, errors.Wrapf(err, "column %d: most common value %d", jc.ColumnID, i)
			}
			c.MCVs[i] = cat.MostCommonValue{Value: d, Frequency: m.Frequency}
		}
	}
	return c, nil
}

// MakeJSONStatistic encodes statistics in the shape the catalog hands them
// to the estimator.
func MakeJSONStatistic(name string, ts *cat.TableStatistic) (JSONStatistic, error) {
	js := JSONStatistic{
		Name:     name,
		RowCount: ts.RowCount,
		IsEmpty:  ts.IsEmpty,
		Columns:  make([]JSONColumnStatistic, len(ts.Columns)),
	}
	for i := range ts.Columns {
		c := &ts.Columns[i]
		jc := JSONColumnStatistic{ColumnID: c.ColumnID, Width: c.Width}
		if c.HasHistogram {
			jc.NullFrequency = c.NullFrequency
			jc.DistinctRemainder = c.DistinctRemainder
			jc.FrequencyRemainder = c.FrequencyRemainder
			for _, b := range c.Buckets {
				if err := jc.addBucket(b.Lower, b.Upper, b.LowerClosed, b.UpperClosed, b.Frequency, b.Distinct); err != nil {
					return JSONStatistic{}, err
				}
			}
			for _, m := range c.MCVs {
				if err := jc.setType(m.Value); err != nil {
					return JSONStatistic{}, err
				}
				jc.MostCommonValues = append(jc.MostCommonValues, JSONMostCommonValue{
					Value: tree.AsStringWithoutQuotes(m.Value), Frequency: m.Frequency,
				})
			}
		}
		js.Columns[i] = jc
	}
	return js, nil
}

// FromStatistics encodes the statistics derived by an operator. The
// histograms are normalized so that their frequencies are fractions of the
// output rows.
func FromStatistics(name string, s *props.Statistics) (JSONStatistic, error) {
	cols := s.ColumnStatistics()
	js := JSONStatistic{
		Name:     name,
		RowCount: s.RowCount,
		IsEmpty:  s.IsEmpty,
		Columns:  make([]JSONColumnStatistic, len(cols)),
	}
	for i, c := range cols {
		jc := JSONColumnStatistic{ColumnID: c.Col, Width: c.Width}
		if err := jc.SetHistogram(c.Histogram); err != nil {
			return JSONStatistic{}, err
		}
		js.Columns[i] = jc
	}
	return js, nil
}

// SetHistogram fills in the histogram fields from a normalized copy of h.
func (jc *JSONColumnStatistic) SetHistogram(h *props.Histogram) error {
	if h == nil {
		return errors.Newf("column %d: histogram is unset", jc.ColumnID)
	}
	h = h.Normalize()
	jc.NullFrequency = h.NullFrequency()
	jc.DistinctRemainder = h.DistinctRemainder()
	jc.FrequencyRemainder = h.FrequencyRemainder()
	jc.HistogramBuckets = make([]JSONHistoBucket, 0, h.BucketCount())
	for i := 0; i < h.BucketCount(); i++ {
		b := h.Bucket(i)
		if err := jc.addBucket(
			b.Lower().Datum(), b.Upper().Datum(), b.LowerClosed(), b.UpperClosed(),
			b.Frequency(), b.Distinct(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (jc *JSONColumnStatistic) addBucket(
	lower, upper tree.Datum, lowerClosed, upperClosed bool, freq, distinct float64,
) error {
	if lower == nil || upper == nil {
		return errors.Newf("column %d: histogram bucket bound is unset", jc.ColumnID)
	}
	if err := jc.setType(lower); err != nil {
		return err
	}
	if err := jc.setType(upper); err != nil {
		return err
	}
	jc.HistogramBuckets = append(jc.HistogramBuckets, JSONHistoBucket{
		Lower:       tree.AsStringWithoutQuotes(lower),
		Upper:       tree.AsStringWithoutQuotes(upper),
		LowerClosed: lowerClosed,
		UpperClosed: upperClosed,
		Frequency:   freq,
		Distinct:    distinct,
	})
	return nil
}

// setType records the type of d as the histogram type. Numeric families are
// comparable with each other, but the encoding needs a single type, so the
// first one wins unless a later datum needs a wider one.
func (jc *JSONColumnStatistic) setType(d tree.Datum) error {
	typ := d.ResolvedType()
	if typ.Family() == types.UnknownFamily {
		return errors.Newf("column %d: NULL cannot be a histogram value", jc.ColumnID)
	}
	if jc.HistogramColumnType == "" {
		jc.HistogramColumnType = typ.String()
		return nil
	}
	cur, err := types.FromString(jc.HistogramColumnType)
	if err != nil {
		return err
	}
	if !cur.Comparable(typ) {
		return errors.Newf(
			"column %d: histogram mixes types %s and %s", jc.ColumnID, cur, typ)
	}
	if widerNumeric(typ, cur) {
		jc.HistogramColumnType = typ.String()
	}
	return nil
}

// widerNumeric returns true if values of a cannot be parsed as b without
// losing precision.
func widerNumeric(a, b *types.T) bool {
	rank := func(t *types.T) int {
		switch t.Family() {
		case types.IntFamily:
			return 1
		case types.FloatFamily:
			return 2
		case types.DecimalFamily:
			return 3
		}
		return 0
	}
	return rank(a) > rank(b)
}
