// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/opt/cat"
	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/cardest/pkg/sql/opt/statspred"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/cardest/pkg/util/buildutil"
	"github.com/cockroachdb/cardest/pkg/util/log"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

// TestStatisticsBuilder runs the files in testdata/stats. The commands are:
//
//	table name=<rel> rows=<n> [no-stats]
//	@<col> uniform lo=<v> [width=<w>] [buckets=<n>] [ndv=<d>] [null=<f>] [bytes=<b>]
//	@<col> dummy distinct=<d> [null=<f>] [bytes=<b>]
//	@<col> none [bytes=<b>]
//	----
//
//	filter in=<rel> out=<rel> [cap-ndv]
//	<predicate>
//	----
//
//	join type=(inner|left|semi|anti) left=<rel> right=<rel> out=<rel>
//	<predicate>
//	----
//
//	group-by in=<rel> out=<rel> cols=(<col>,...) [aggs=(<col>,...)] [hashable=(<col>,...)]
//	union-all left=<rel> right=<rel> out=<rel> cols=(...) left-cols=(...) right-cols=(...)
//	limit in=<rel> out=<rel> n=<n>
//	project in=<rel> out=<rel> cols=(<col>,...)
//	show name=<rel>
//
// Every command prints the resulting statistics, or the error it returned.
func TestStatisticsBuilder(t *testing.T) {
	datadriven.Walk(t, "testdata/stats", func(t *testing.T, path string) {
		var sb StatisticsBuilder
		sb.Init(context.Background(), nil /* cfg */)
		rels := make(map[string]*props.Statistics)

		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			lookup := func(key string) *props.Statistics {
				var name string
				d.ScanArgs(t, key, &name)
				s, ok := rels[name]
				if !ok {
					d.Fatalf(t, "unknown relation %q", name)
				}
				return s
			}
			output := func(res *props.Statistics, err error) string {
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				var out string
				d.ScanArgs(t, "out", &out)
				rels[out] = res
				return res.String()
			}

			switch d.Cmd {
			case "table":
				var name string
				d.ScanArgs(t, "name", &name)
				ts := parseTable(t, d)
				res, err := sb.MakeTableStatistics(ts)
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				rels[name] = res
				return res.String()

			case "show":
				return lookup("name").String()

			case "filter":
				pred, err := statspred.Parse(strings.TrimSpace(d.Input))
				if err != nil {
					d.Fatalf(t, "%v", err)
				}
				return output(sb.Filter(lookup("in"), pred, d.HasArg("cap-ndv")))

			case "join":
				var typ string
				d.ScanArgs(t, "type", &typ)
				left, right := lookup("left"), lookup("right")
				preds := parseJoinPredicates(t, d.Input)
				switch typ {
				case "inner":
					return output(sb.InnerJoin(left, right, preds))
				case "left":
					return output(sb.LeftOuterJoin(left, right, preds))
				case "semi":
					return output(sb.SemiJoin(left, right, preds))
				case "anti":
					return output(sb.AntiJoin(left, right, preds))
				}
				d.Fatalf(t, "unknown join type %q", typ)

			case "group-by":
				return output(sb.GroupBy(
					lookup("in"), colListArg(t, d, "cols"), colListArg(t, d, "aggs"),
					opt.ColListToSet(colListArg(t, d, "hashable")),
				))

			case "union-all":
				return output(sb.UnionAll(
					lookup("left"), lookup("right"), colListArg(t, d, "cols"),
					colListArg(t, d, "left-cols"), colListArg(t, d, "right-cols"),
				))

			case "limit":
				var n int
				d.ScanArgs(t, "n", &n)
				return output(sb.Limit(lookup("in"), int64(n)))

			case "project":
				return output(sb.Project(lookup("in"), opt.ColListToSet(colListArg(t, d, "cols"))))
			}
			d.Fatalf(t, "unknown command %s", d.Cmd)
			return ""
		})
	})
}

// colListArg returns the columns of a list argument such as cols=(1,2), or
// nil if the argument is missing.
func colListArg(t *testing.T, d *datadriven.TestData, key string) opt.ColList {
	for _, arg := range d.CmdArgs {
		if arg.Key != key {
			continue
		}
		var cols opt.ColList
		for _, v := range arg.Vals {
			if v == "" {
				continue
			}
			id, err := strconv.Atoi(strings.TrimPrefix(v, "@"))
			if err != nil {
				d.Fatalf(t, "invalid column %q: %v", v, err)
			}
			cols = append(cols, opt.ColumnID(id))
		}
		return cols
	}
	return nil
}

func parseJoinPredicates(t *testing.T, input string) []*statspred.Join {
	pred, err := statspred.Parse(strings.TrimSpace(input))
	require.NoError(t, err)
	conds, err := statspred.JoinConditions(pred)
	require.NoError(t, err)
	return conds
}

// parseTable builds the catalog statistics described by a table command.
func parseTable(t *testing.T, d *datadriven.TestData) *cat.TableStatistic {
	var rows int
	d.ScanArgs(t, "rows", &rows)
	ts := &cat.TableStatistic{RowCount: float64(rows), HasStats: !d.HasArg("no-stats")}
	for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			d.Fatalf(t, "invalid column line %q", line)
		}
		id, err := strconv.Atoi(strings.TrimPrefix(fields[0], "@"))
		require.NoError(t, err)
		args := make(map[string]float64)
		for _, kv := range fields[2:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				d.Fatalf(t, "invalid argument %q", kv)
			}
			f, err := strconv.ParseFloat(v, 64)
			require.NoError(t, err)
			args[k] = f
		}
		arg := func(key string, def float64) float64 {
			if v, ok := args[key]; ok {
				return v
			}
			return def
		}

		c := cat.ColumnStatistic{ColumnID: opt.ColumnID(id), Width: arg("bytes", 0)}
		switch fields[1] {
		case "uniform":
			width := int(arg("width", 10))
			n := int(arg("buckets", 10))
			lo := int(arg("lo", 0))
			null := arg("null", 0)
			rem := arg("rem", 0)
			c.Buckets = uniformBuckets(lo, width, n, 1-null-rem, arg("ndv", float64(width)))
			c.NullFrequency = null
			c.FrequencyRemainder = rem
			c.DistinctRemainder = arg("rem-ndv", 0)
			c.HasHistogram = true
		case "dummy":
			null := arg("null", 0)
			c.NullFrequency = null
			c.DistinctRemainder = arg("distinct", 0)
			c.FrequencyRemainder = 1 - null
			c.HasHistogram = true
		case "none":
		default:
			d.Fatalf(t, "unknown column kind %q", fields[1])
		}
		ts.Columns = append(ts.Columns, c)
	}
	return ts
}

// uniformBuckets returns n adjacent integer buckets of the given width
// starting at lo, sharing freq evenly. The last bucket includes its upper
// bound.
func uniformBuckets(lo, width, n int, freq, ndv float64) []cat.HistogramBucket {
	buckets := make([]cat.HistogramBucket, n)
	for i := range buckets {
		buckets[i] = cat.HistogramBucket{
			Lower:       tree.NewDInt(tree.DInt(lo + i*width)),
			Upper:       tree.NewDInt(tree.DInt(lo + (i+1)*width)),
			LowerClosed: true,
			UpperClosed: i == n-1,
			Frequency:   freq / float64(n),
			Distinct:    ndv,
		}
	}
	return buckets
}

// testTable returns a table of 1000 rows: @1 is spread uniformly over
// [0, 100] with 100 distinct values, and @2 has 100 distinct values and 1%
// NULLs.
func testTable(t *testing.T, sb *StatisticsBuilder) *props.Statistics {
	s, err := sb.MakeTableStatistics(&cat.TableStatistic{
		RowCount: 1000,
		HasStats: true,
		Columns: []cat.ColumnStatistic{
			{
				ColumnID:     1,
				Width:        4,
				HasHistogram: true,
				Buckets:      uniformBuckets(0, 10, 10, 1, 10),
			},
			{
				ColumnID:           2,
				Width:              8,
				HasHistogram:       true,
				NullFrequency:      0.01,
				DistinctRemainder:  100,
				FrequencyRemainder: 0.99,
			},
		},
	})
	require.NoError(t, err)
	return s
}

func makeBuilder(cfg *EstimationConfig) *StatisticsBuilder {
	var sb StatisticsBuilder
	sb.Init(context.Background(), cfg)
	return &sb
}

func TestDampedSelectivity(t *testing.T) {
	sb := makeBuilder(nil)
	testCases := []struct {
		sels     []float64
		expected float64
	}{
		{sels: nil, expected: 1},
		{sels: []float64{0.5}, expected: 0.5},
		{sels: []float64{0.5, 0.1}, expected: 0.0707107},
		{sels: []float64{0.01, 0.5, 0.5, 0.5, 0.5}, expected: 0.00545254},
		// The floor applies unless a single selectivity is below it.
		{sels: []float64{1e-4, 1e-4, 1e-4, 1e-4}, expected: 1e-6},
		{sels: []float64{1e-8}, expected: 1e-8},
		// Out of range selectivities are clamped.
		{sels: []float64{-1, 2}, expected: 0},
		{sels: []float64{2}, expected: 1},
	}
	for _, tc := range testCases {
		require.InDelta(t, tc.expected, sb.dampedSelectivity(tc.sels), 1e-7, "%v", tc.sels)
	}

	cfg := DefaultEstimationConfig()
	cfg.DampingFactor = 1
	cfg.MaxDampedPredicates = 10
	independent := makeBuilder(cfg)
	require.InDelta(t, 0.125, independent.dampedSelectivity([]float64{0.5, 0.5, 0.5}), tolerance)

	// The input is not reordered.
	sels := []float64{0.5, 0.1}
	sb.dampedSelectivity(sels)
	require.Equal(t, []float64{0.5, 0.1}, sels)
}

func TestDampedDistinctCount(t *testing.T) {
	sb := makeBuilder(nil)
	require.InDelta(t, 316.227766, sb.dampedDistinctCount([]float64{10, 100}), tolerance)
	require.InDelta(t, 1, sb.dampedDistinctCount(nil), tolerance)
	require.InDelta(t, 50, sb.dampedDistinctCount([]float64{0, 50}), tolerance)
}

func TestFilterDoesNotModifyInput(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)
	before := in.String()
	h, _ := in.Histogram(1)
	mass := h.TotalFrequency()

	for _, p := range []string{"@1 < 35 AND @2 = 7", "@1 = 3 OR @1 = 70", "@1 NOT IN (1, 2)"} {
		_, err := sb.Filter(in, statspred.MustParse(p), true /* capNDV */)
		require.NoError(t, err)
	}
	require.Equal(t, before, in.String())
	require.Equal(t, mass, h.TotalFrequency())
}

func TestFilterLike(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)

	res, err := sb.Filter(in, statspred.MustParse("@2 LIKE 'ab%' SELECTIVITY 0.05"), false)
	require.NoError(t, err)
	require.InDelta(t, 50, res.RowCount, tolerance)
	n, _ := res.NullCount(2)
	require.InDelta(t, 0.5, n, tolerance)

	res, err = sb.Filter(in, statspred.MustParse("@2 LIKE 'ab%'"), false)
	require.NoError(t, err)
	require.InDelta(t, 100, res.RowCount, tolerance)

	// A pattern without wildcards is an equality.
	res, err = sb.Filter(in, statspred.MustParse("@2 LIKE 'abc'"), false)
	require.NoError(t, err)
	require.InDelta(t, 9.9, res.RowCount, tolerance)
}

func TestFilterWithoutHistogram(t *testing.T) {
	sb := makeBuilder(nil)
	in, err := sb.MakeTableStatistics(&cat.TableStatistic{
		RowCount: 1000,
		HasStats: true,
		Columns:  []cat.ColumnStatistic{{ColumnID: 1}},
	})
	require.NoError(t, err)

	testCases := []struct {
		pred string
		rows float64
	}{
		// The default distribution of a column has 100 distinct values in 1000
		// rows, 1% of them NULL.
		{pred: "@1 = 5", rows: 9.9},
		{pred: "@1 < 5", rows: 330},
		{pred: "@1 IN (1, 2, 3)", rows: 29.7},
		// A column missing from the input uses the defaults of the filter.
		{pred: "@5 = 1", rows: 10},
		{pred: "@5 <> 1", rows: 990},
		{pred: "@5 > 1", rows: 1000.0 / 3},
		{pred: "@5 IN (1, 2, 3)", rows: 30},
		{pred: "@5 NOT IN (1, 2, 3)", rows: 970},
		{pred: "@5 = NULL", rows: 0},
		{pred: "@5 NOT IN (1, NULL)", rows: 0},
		{pred: "UNSUPPORTED(@5)", rows: 1000.0 / 3},
	}
	for _, tc := range testCases {
		t.Run(tc.pred, func(t *testing.T) {
			res, err := sb.Filter(in, statspred.MustParse(tc.pred), false)
			require.NoError(t, err)
			require.InDelta(t, tc.rows, res.RowCount, tolerance)
		})
	}
}

func TestFilterErrors(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)
	for _, p := range []statspred.Pred{
		nil,
		statspred.MustParse("@1 = @2"),
		statspred.And(),
		statspred.NewPoint(1, opt.UnknownOp, tree.NewDInt(1)),
	} {
		_, err := sb.Filter(in, p, false)
		require.Error(t, err)
		require.True(t, errors.Is(err, opt.ErrInvalidPredicateShape), "%v", err)
	}
}

// TestFilterPartition checks that a range predicate and its complement
// account for all the non-NULL rows.
func TestFilterPartition(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("below and above partition the rows", prop.ForAll(
		func(v int) bool {
			below, err := sb.Filter(in, statspred.NewPoint(1, opt.LtOp, tree.NewDInt(tree.DInt(v))), false)
			if err != nil {
				return false
			}
			above, err := sb.Filter(in, statspred.NewPoint(1, opt.GeOp, tree.NewDInt(tree.DInt(v))), false)
			if err != nil {
				return false
			}
			sum := below.RowCount + above.RowCount
			return sum > 1000-tolerance && sum < 1000+tolerance
		},
		gen.IntRange(-10, 110),
	))
	properties.TestingRun(t)
}

func TestJoinErrors(t *testing.T) {
	sb := makeBuilder(nil)
	a := testTable(t, sb)
	b := props.MakeStatistics(10, false, props.ColumnStatistic{
		Col: 3, Histogram: props.MakeDummyHistogram(0, 10), Width: 4,
	})

	testCases := []struct {
		left, right *props.Statistics
		preds       []*statspred.Join
	}{
		{left: a, right: b, preds: []*statspred.Join{nil}},
		{left: a, right: b, preds: []*statspred.Join{statspred.NewJoin(1, opt.EqOp, 2)}},
		{left: a, right: b, preds: []*statspred.Join{statspred.NewJoin(1, opt.UnknownOp, 3)}},
		{left: a, right: a, preds: []*statspred.Join{statspred.NewJoin(1, opt.EqOp, 2)}},
	}
	for i, tc := range testCases {
		for _, join := range []func(l, r *props.Statistics, p []*statspred.Join) (*props.Statistics, error){
			sb.InnerJoin, sb.LeftOuterJoin, sb.SemiJoin, sb.AntiJoin,
		} {
			_, err := join(tc.left, tc.right, tc.preds)
			require.Error(t, err, "case %d", i)
			require.True(t, errors.Is(err, opt.ErrInvalidPredicateShape), "case %d: %v", i, err)
		}
	}
}

func TestJoinIncomparableColumns(t *testing.T) {
	sb := makeBuilder(nil)
	a := testTable(t, sb)
	buckets := []cat.HistogramBucket{{
		Lower: tree.NewDString("a"), Upper: tree.NewDString("z"),
		LowerClosed: true, UpperClosed: true, Frequency: 1, Distinct: 20,
	}}
	s, err := sb.MakeTableStatistics(&cat.TableStatistic{
		RowCount: 200,
		HasStats: true,
		Columns: []cat.ColumnStatistic{
			{ColumnID: 3, HasHistogram: true, Buckets: buckets},
		},
	})
	require.NoError(t, err)

	// The histograms cannot be compared, so the estimate falls back to
	// 1/max(ndv).
	res, err := sb.InnerJoin(a, s, []*statspred.Join{statspred.NewJoin(1, opt.EqOp, 3)})
	require.NoError(t, err)
	require.InDelta(t, 1000*200/100.0, res.RowCount, tolerance)

	// Semi joins fall back to the default selectivity.
	res, err = sb.SemiJoin(a, s, []*statspred.Join{statspred.NewJoin(3, opt.EqOp, 1)})
	require.NoError(t, err)
	require.InDelta(t, 1000.0/3, res.RowCount, tolerance)
}

func TestJoinEmptyRight(t *testing.T) {
	sb := makeBuilder(nil)
	a := testTable(t, sb)
	empty := props.MakeStatistics(0, true, props.ColumnStatistic{
		Col: 3, Histogram: props.NewHistogram(nil, 0, 0, 0), Width: 4,
	})
	preds := []*statspred.Join{statspred.NewJoin(1, opt.EqOp, 3)}

	res, err := sb.SemiJoin(a, empty, preds)
	require.NoError(t, err)
	require.Zero(t, res.RowCount)
	require.True(t, res.IsEmpty)

	res, err = sb.AntiJoin(a, empty, preds)
	require.NoError(t, err)
	require.InDelta(t, 1000, res.RowCount, tolerance)

	res, err = sb.LeftOuterJoin(a, empty, preds)
	require.NoError(t, err)
	require.InDelta(t, 1000, res.RowCount, tolerance)
	n, ok := res.NullCount(3)
	require.True(t, ok)
	require.InDelta(t, 1000, n, tolerance)

	// An anti join never estimates zero rows.
	other := props.MakeStatistics(10, false, props.ColumnStatistic{
		Col: 3, Histogram: props.MakeDummyHistogram(0, 10), Width: 4,
	})
	res, err = sb.AntiJoin(a, other, nil /* preds */)
	require.NoError(t, err)
	require.InDelta(t, epsilon, res.RowCount, 1e-12)
}

func TestGroupBy(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)

	// A scalar group by returns a single row.
	res, err := sb.GroupBy(in, nil, opt.ColList{1}, opt.ColSet{})
	require.NoError(t, err)
	require.Equal(t, float64(1), res.RowCount)
	d, _ := res.DistinctCount(1)
	require.InDelta(t, 1, d, tolerance)

	// @2 has 100 distinct values plus NULL.
	res, err = sb.GroupBy(in, opt.ColList{1, 2}, nil, opt.ColSet{})
	require.NoError(t, err)
	require.InDelta(t, 1000, res.RowCount, tolerance)

	// Only the hashable columns determine the groups.
	res, err = sb.GroupBy(in, opt.ColList{1, 2}, nil, opt.MakeColSet(1))
	require.NoError(t, err)
	require.InDelta(t, 100, res.RowCount, tolerance)
	d, _ = res.DistinctCount(2)
	require.InDelta(t, 100, d, tolerance)
}

func TestUnionAllErrors(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)
	_, err := sb.UnionAll(in, in, opt.ColList{5}, opt.ColList{1, 2}, opt.ColList{1})
	require.True(t, errors.Is(err, opt.ErrInvalidPredicateShape))
	_, err = sb.UnionAll(in, in, opt.ColList{5, 5}, opt.ColList{1, 2}, opt.ColList{1, 2})
	require.True(t, errors.Is(err, opt.ErrInvalidPredicateShape))
}

func TestLimit(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)

	res, err := sb.Limit(in, 5000)
	require.NoError(t, err)
	require.Equal(t, in.String(), res.String())

	res, err = sb.Limit(in, 0)
	require.NoError(t, err)
	require.Zero(t, res.RowCount)
	require.True(t, res.IsEmpty)

	_, err = sb.Limit(in, -1)
	require.Error(t, err)
}

func TestMakeTableStatistics(t *testing.T) {
	sb := makeBuilder(nil)

	// Without statistics, the defaults apply.
	res, err := sb.MakeTableStatistics(&cat.TableStatistic{
		RowCount: 5,
		Columns:  []cat.ColumnStatistic{{ColumnID: 1, HasHistogram: true}},
	})
	require.NoError(t, err)
	require.Equal(t, "rows=1000\n@1: distinct=100 null=10 width=4", res.String())

	// Most common values become singleton buckets.
	res, err = sb.MakeTableStatistics(&cat.TableStatistic{
		RowCount: 1000,
		HasStats: true,
		Columns: []cat.ColumnStatistic{{
			ColumnID:           1,
			Width:              2,
			HasHistogram:       true,
			DistinctRemainder:  10,
			FrequencyRemainder: 0.9,
			MCVs:               []cat.MostCommonValue{{Value: tree.NewDInt(5), Frequency: 0.1}},
		}},
	})
	require.NoError(t, err)
	d, _ := res.DistinctCount(1)
	require.InDelta(t, 10, d, tolerance)
	eq, err := sb.Filter(res, statspred.MustParse("@1 = 5"), false)
	require.NoError(t, err)
	require.InDelta(t, 100, eq.RowCount, tolerance)
}

func TestMakeTableStatisticsInvalidHistogram(t *testing.T) {
	sb := makeBuilder(nil)
	invalid := []cat.ColumnStatistic{
		{
			ColumnID:     1,
			HasHistogram: true,
			Buckets: []cat.HistogramBucket{{
				Lower: tree.DNull, Upper: tree.NewDInt(1), LowerClosed: true, UpperClosed: true,
				Frequency: 1, Distinct: 1,
			}},
		},
		{
			ColumnID:     1,
			HasHistogram: true,
			Buckets: []cat.HistogramBucket{
				{Lower: tree.NewDInt(0), Upper: tree.NewDInt(10), LowerClosed: true, Frequency: 0.5, Distinct: 5},
				{Lower: tree.NewDInt(5), Upper: tree.NewDInt(20), LowerClosed: true, Frequency: 0.5, Distinct: 5},
			},
		},
		{
			ColumnID:     1,
			HasHistogram: true,
			MCVs:         []cat.MostCommonValue{{Value: tree.DNull, Frequency: 0.5}},
		},
	}
	for i, c := range invalid {
		_, err := histogramFromCatalog(&c)
		require.Error(t, err, "case %d", i)
		if buildutil.CrdbTestBuild {
			// Test builds fail with an assertion when the histogram is built.
			continue
		}
		require.True(t, errors.Is(err, opt.ErrInvalidHistogram), "case %d: %v", i, err)

		// Outside of test builds the histogram is replaced by the default one.
		res, err := sb.MakeTableStatistics(&cat.TableStatistic{
			RowCount: 500, HasStats: true, Columns: []cat.ColumnStatistic{c},
		})
		require.NoError(t, err, "case %d", i)
		d, _ := res.DistinctCount(1)
		require.InDelta(t, 50, d, tolerance, "case %d", i)
	}
}

func TestCheckHistogram(t *testing.T) {
	if buildutil.CrdbTestBuild {
		t.Skip("test builds panic on invalid histograms")
	}
	cfg := DefaultEstimationConfig()
	invalid := props.NewHistogram(nil, 0.5, 10, 0.7)

	// Checks are off by default.
	require.Equal(t, invalid, makeBuilder(cfg).checkHistogram(1, invalid))

	cfg.CheckHistograms = true
	sb := makeBuilder(cfg)
	fixed := sb.checkHistogram(1, invalid)
	require.NoError(t, fixed.Validate())
	require.InDelta(t, 10, fixed.Distinct(), tolerance)
	require.InDelta(t, 1, fixed.TotalFrequency(), tolerance)

	valid := props.MakeDummyHistogram(0.1, 5)
	require.Equal(t, valid, sb.checkHistogram(1, valid))
}

// TestConcurrentEstimates shares one builder and one input between
// goroutines.
func TestConcurrentEstimates(t *testing.T) {
	sb := makeBuilder(nil)
	in := testTable(t, sb)
	expected, err := sb.Filter(in, statspred.MustParse("@1 < 35 AND @2 = 7"), true)
	require.NoError(t, err)

	const n = 8
	results := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := sb.Filter(in, statspred.MustParse("@1 < 35 AND @2 = 7"), true)
			if err == nil {
				res, err = sb.GroupBy(res, opt.ColList{1}, nil, opt.ColSet{})
			}
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res.String()
		}(i)
	}
	wg.Wait()

	grouped, err := sb.GroupBy(expected, opt.ColList{1}, nil, opt.ColSet{})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, grouped.String(), results[i])
	}
}

func TestFilterSkewWarning(t *testing.T) {
	var buf bytes.Buffer
	log.SetLogger(zerolog.New(&buf))
	defer log.SetLogger(zerolog.Nop())
	defer log.SetVerbosity(2)()

	sb := makeBuilder(nil)
	skewed := uniformBuckets(0, 10, 10, 0.09, 10)
	skewed[9].Frequency = 0.91
	in, err := sb.MakeTableStatistics(&cat.TableStatistic{
		RowCount: 1000,
		HasStats: true,
		Columns: []cat.ColumnStatistic{
			{ColumnID: 1, HasHistogram: true, Buckets: skewed},
			{ColumnID: 2, HasHistogram: true, Buckets: uniformBuckets(0, 10, 10, 1, 10)},
		},
	})
	require.NoError(t, err)

	_, err = sb.Filter(in, statspred.MustParse("@1 < 50"), false)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "column 1: skewed histogram")

	buf.Reset()
	_, err = sb.Filter(in, statspred.MustParse("@2 < 50"), false)
	require.NoError(t, err)
	require.NotContains(t, buf.String(), "skewed histogram")

	// A zero threshold disables the warning.
	cfg := DefaultEstimationConfig()
	cfg.SkewWarningThreshold = 0
	sb = makeBuilder(cfg)
	buf.Reset()
	_, err = sb.Filter(in, statspred.MustParse("@1 < 50"), false)
	require.NoError(t, err)
	require.NotContains(t, buf.String(), "skewed histogram")
}
