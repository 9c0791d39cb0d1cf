// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/opt/cat"
	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/cardest/pkg/sql/opt/statspred"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/cardest/pkg/util/buildutil"
	"github.com/cockroachdb/cardest/pkg/util/log"
	"github.com/cockroachdb/errors"
)

// invalidHistogramEvery limits the rate of warnings about histograms that
// failed validation outside of test builds.
var invalidHistogramEvery = log.Every(10 * time.Second)

// StatisticsBuilder is responsible for building the statistics that are used
// by the coster to estimate the cost of expressions.
//
// Background
// ----------
//
// Conceptually, there are two kinds of statistics: table statistics and
// relational expression statistics.
//
// 1. Table statistics
//
// Table statistics are derived from the underlying data in the database. They
// include the number of rows in the table and, for each column, a histogram
// describing the distribution of its values, the fraction of NULLs, and the
// average width of the values. The catalog hands them over as a
// cat.TableStatistic, which MakeTableStatistics turns into props.Statistics.
// Columns without collected statistics get a default distribution.
//
// 2. Relational expression statistics
//
// Relational expression statistics estimate how the table statistics change
// as different relational operators are applied. Each operator of the
// builder (Filter, InnerJoin, GroupBy, ...) takes the statistics of its
// inputs and returns new statistics for its output. For example, given the
// query:
//
//	SELECT y FROM a WHERE x=1
//
// the statistics of the filter are computed from the table statistics of a:
// the histogram of x is filtered to the bucket containing 1, the ratio of the
// histogram's mass after and before the filter is the selectivity of the
// predicate, and the row count and the histograms of the other columns are
// scaled by it.
//
// Inputs are never modified, and the builder keeps no state besides its
// configuration, so a builder can be shared by goroutines estimating
// independent plan alternatives.
//
// Errors
// ------
//
// The props package reports violated invariants by panicking. Every exported
// operator recovers and returns those panics as errors. Comparisons between
// values of different types are not errors: the affected predicate falls back
// to a default selectivity, as it does for columns without statistics.
type StatisticsBuilder struct {
	ctx context.Context
	cfg *EstimationConfig
}

// Init initializes the builder. A nil config selects DefaultEstimationConfig.
func (sb *StatisticsBuilder) Init(ctx context.Context, cfg *EstimationConfig) {
	if cfg == nil {
		cfg = DefaultEstimationConfig()
	}
	*sb = StatisticsBuilder{ctx: ctx, cfg: cfg}
}

// catchPanic converts a panic raised during estimation into an error. It
// must be deferred directly by the exported operators.
func catchPanic(err *error) {
	if r := recover(); r != nil {
		*err = opt.CatchOptimizerError(r)
	}
}

// catchIncomparable recovers from a comparison between values of different
// type families and sets *ok to false. Other panics are propagated.
func (sb *StatisticsBuilder) catchIncomparable(ok *bool) {
	if r := recover(); r != nil {
		err, isErr := r.(error)
		if !isErr || !errors.Is(err, opt.ErrIncomparableValues) {
			panic(r)
		}
		log.VEventf(sb.ctx, 2, "using default selectivity: %v", err)
		*ok = false
	}
}

// MakeTableStatistics returns the statistics of a table as delivered by the
// catalog. Tables without statistics get the default row count, and columns
// without a histogram get a histogram with every value in the remainder. A
// catalog histogram that fails validation is replaced in the same way, unless
// this is a test build.
func (sb *StatisticsBuilder) MakeTableStatistics(
	ts *cat.TableStatistic,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)

	rowCount := sb.cfg.UnknownRowCount
	if ts.HasStats {
		rowCount = ts.RowCount
	}
	cols := make([]props.ColumnStatistic, 0, len(ts.Columns))
	for i := range ts.Columns {
		c := &ts.Columns[i]
		var h *props.Histogram
		if ts.HasStats && c.HasHistogram {
			var histErr error
			h, histErr = histogramFromCatalog(c)
			if histErr != nil {
				if buildutil.CrdbTestBuild {
					return nil, histErr
				}
				if invalidHistogramEvery.ShouldLog() {
					log.Warningf(sb.ctx, "ignoring histogram of column %d: %v", c.ColumnID, histErr)
				}
				h = nil
			}
		}
		if h == nil {
			h = sb.unknownHistogram(rowCount)
		}
		width := c.Width
		if width <= 0 {
			width = sb.cfg.DefaultColumnWidth
		}
		cols = append(cols, props.ColumnStatistic{Col: c.ColumnID, Histogram: h, Width: width})
	}
	return props.MakeStatistics(rowCount, ts.HasStats && ts.IsEmpty, cols...), nil
}

func histogramFromCatalog(c *cat.ColumnStatistic) (_ *props.Histogram, err error) {
	defer catchPanic(&err)

	buckets := make([]*props.Bucket, len(c.Buckets))
	for i := range c.Buckets {
		b := &c.Buckets[i]
		if isNull(b.Lower) || isNull(b.Upper) {
			return nil, opt.NewInvalidHistogramErrorf(
				"bucket %d of column %d has a NULL bound", i, c.ColumnID)
		}
		buckets[i] = props.NewBucket(
			props.MakePoint(b.Lower), props.MakePoint(b.Upper),
			b.LowerClosed, b.UpperClosed, b.Frequency, b.Distinct,
		)
	}
	h := props.NewHistogram(buckets, c.NullFrequency, c.DistinctRemainder, c.FrequencyRemainder)
	if err := h.Validate(); err != nil {
		return nil, errors.Wrapf(err, "column %d", c.ColumnID)
	}
	if len(c.MCVs) > 0 {
		mcvs := make([]props.MCV, len(c.MCVs))
		for i, m := range c.MCVs {
			if isNull(m.Value) {
				return nil, opt.NewInvalidHistogramErrorf(
					"most common value %d of column %d is NULL", i, c.ColumnID)
			}
			mcvs[i] = props.MCV{Value: props.MakePoint(m.Value), Frequency: m.Frequency}
		}
		if h, err = props.MergeMCVWithHistogram(mcvs, h); err != nil {
			return nil, errors.Wrapf(err, "column %d", c.ColumnID)
		}
	}
	return h.Normalize(), nil
}

func isNull(d tree.Datum) bool {
	return d == nil || d == tree.DNull
}

// unknownHistogram returns the distribution assumed for a column without
// statistics in a relation with the given row count.
func (sb *StatisticsBuilder) unknownHistogram(rowCount float64) *props.Histogram {
	return props.MakeDummyHistogram(
		sb.cfg.UnknownNullCountRatio, sb.cfg.UnknownDistinctCountRatio*rowCount,
	)
}

// columnStatistic returns the statistic of col in s, substituting the default
// distribution and width if s has none.
func (sb *StatisticsBuilder) columnStatistic(
	s *props.Statistics, col opt.ColumnID,
) props.ColumnStatistic {
	c := props.ColumnStatistic{Col: col, Width: sb.cfg.DefaultColumnWidth}
	if w, ok := s.Width(col); ok && w > 0 {
		c.Width = w
	}
	if h, ok := s.Histogram(col); ok {
		c.Histogram = h
	} else {
		c.Histogram = sb.unknownHistogram(s.RowCount)
	}
	return c
}

// finishColumn prepares a column of a new relation whose histograms have not
// kept the base of a single input: the histogram is normalized to the output
// rows, and its distinct count is optionally capped to them.
func (sb *StatisticsBuilder) finishColumn(
	c props.ColumnStatistic, rowCount float64, capNDV bool,
) props.ColumnStatistic {
	if c.Histogram == nil {
		return c
	}
	h := c.Histogram.Normalize()
	if capNDV {
		h = h.CapNDV(rowCount)
	}
	c.Histogram = sb.checkHistogram(c.Col, h)
	return c
}

// checkHistogram validates a histogram produced by an operator, if this is a
// test build or the config asks for it. Test builds panic on an invalid
// histogram; otherwise it is replaced by the default distribution with the
// same mass.
func (sb *StatisticsBuilder) checkHistogram(
	col opt.ColumnID, h *props.Histogram,
) *props.Histogram {
	if !buildutil.CrdbTestBuild && !sb.cfg.CheckHistograms {
		return h
	}
	err := h.Validate()
	if err == nil {
		return h
	}
	if buildutil.CrdbTestBuild {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "invalid histogram for column %d", col))
	}
	if invalidHistogramEvery.ShouldLog() {
		log.Warningf(sb.ctx, "replacing invalid histogram for column %d: %v", col, err)
	}
	distinct, mass := h.Distinct(), h.TotalFrequency()
	if !(distinct >= 0) {
		distinct = 0
	}
	if !(mass >= 0) || mass > 1 {
		mass = 1
	}
	return props.MakeDummyHistogram(sb.cfg.UnknownNullCountRatio, distinct).ScaleFrequencies(mass)
}

// ratio returns num/denom clamped to [0, 1], and 0 if denom is not positive.
func ratio(num, denom float64) float64 {
	if denom <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, num/denom))
}

// rescale scales the frequencies of h so that its total frequency is mass.
func rescale(h *props.Histogram, mass float64) *props.Histogram {
	total := h.TotalFrequency()
	if total <= 0 {
		return h
	}
	return h.ScaleFrequencies(mass / total)
}

// baseRows returns the number of rows a frequency of 1 stands for in the
// histograms of s, using h as the reference.
func baseRows(s *props.Statistics, h *props.Histogram) float64 {
	total := h.TotalFrequency()
	if total <= 0 {
		return 0
	}
	return s.RowCount / total
}

// dampedSelectivity combines the selectivities of predicates that are
// applied together. Predicates are rarely independent, so rather than
// multiplying the selectivities, they are sorted from most to least selective
// and the i-th one is raised to the power DampingFactor^i:
//
//	s0 * s1^d * s2^(d^2) * s3^(d^3)
//
// Only the MaxDampedPredicates most selective predicates take part. The
// result is no smaller than DampingFloor, unless one of the selectivities is.
func (sb *StatisticsBuilder) dampedSelectivity(selectivities []float64) float64 {
	if len(selectivities) == 0 {
		return 1
	}
	sorted := make([]float64, len(selectivities))
	for i, s := range selectivities {
		sorted[i] = math.Max(0, math.Min(1, s))
	}
	sort.Float64s(sorted)
	sel, exp := 1.0, 1.0
	for i, s := range sorted {
		if i == sb.cfg.MaxDampedPredicates {
			break
		}
		sel *= math.Pow(s, exp)
		exp *= sb.cfg.DampingFactor
	}
	return math.Max(sel, math.Min(sb.cfg.DampingFloor, sorted[0]))
}

// dampedDistinctCount estimates the number of distinct combinations of
// values of several columns. Like dampedSelectivity, it assumes the columns
// are correlated: the distinct counts are sorted from largest to smallest and
// the i-th one is raised to the power DampingFactor^i.
func (sb *StatisticsBuilder) dampedDistinctCount(distinctCounts []float64) float64 {
	sorted := append([]float64(nil), distinctCounts...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	res, exp := 1.0, 1.0
	for i, d := range sorted {
		if i == sb.cfg.MaxDampedPredicates {
			break
		}
		res *= math.Pow(math.Max(d, 1), exp)
		exp *= sb.cfg.DampingFactor
	}
	return res
}

// defaultSelectivity is used for a comparison with a column that has no
// histogram, or whose histogram cannot be compared with the constant.
func (sb *StatisticsBuilder) defaultSelectivity(op opt.Operator, rowCount float64) float64 {
	switch op {
	case opt.EqOp:
		return sb.defaultEqSelectivity(rowCount)
	case opt.NeOp:
		return 1 - sb.defaultEqSelectivity(rowCount)
	}
	return sb.cfg.UnknownFilterSelectivity
}

func (sb *StatisticsBuilder) defaultEqSelectivity(rowCount float64) float64 {
	return 1 / math.Max(1, sb.cfg.UnknownDistinctCountRatio*rowCount)
}

// +--------+
// | Filter |
// +--------+

// Filter returns the statistics of the rows of in that satisfy pred. The
// filtered columns get the filtered histograms; the frequencies of the other
// columns are scaled by the selectivity of the predicate, leaving their
// distinct counts alone. If capNDV is set, the distinct count of every column
// is capped to the new row count.
//
// Join predicates are not allowed in pred.
func (sb *StatisticsBuilder) Filter(
	in *props.Statistics, pred statspred.Pred, capNDV bool,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	if err := statspred.Validate(pred, false /* allowJoins */); err != nil {
		return nil, err
	}

	fs := sb.makeFilterState(in, nil /* parent */)
	fs.apply(pred)
	sel := fs.selectivity()
	rowCount := in.RowCount * sel

	cols := in.ColumnStatistics()
	for i := range cols {
		c := &cols[i]
		if c.Histogram == nil {
			continue
		}
		if h, ok := fs.constrained[c.Col]; ok {
			sb.warnIfSkewed(c.Col, c.Histogram)
			c.Histogram = rescale(h, c.Histogram.TotalFrequency()*sel)
		} else {
			c.Histogram = c.Histogram.ScaleFrequencies(sel)
		}
		if capNDV {
			c.Histogram = c.Histogram.CapNDV(rowCount)
		}
		c.Histogram = sb.checkHistogram(c.Col, c.Histogram)
	}
	log.VEventf(sb.ctx, 3, "filter %s: selectivity=%.6g", pred, sel)
	return props.MakeStatistics(rowCount, in.IsEmpty, cols...), nil
}

// warnIfSkewed logs a warning when a filter constrains a column whose
// histogram is skewed enough for the estimate to be unreliable.
func (sb *StatisticsBuilder) warnIfSkewed(col opt.ColumnID, h *props.Histogram) {
	if sb.cfg.SkewWarningThreshold == 0 || !log.V(2) {
		return
	}
	if skew := h.Skew(); skew >= sb.cfg.SkewWarningThreshold {
		log.VWarningf(sb.ctx, 2, "column %d: skewed histogram (skew=%.3g), the estimate may be poor", col, skew)
	}
}

// filterState accumulates the effect of the parts of a predicate. Parts that
// constrain a column with a histogram replace the histogram with a filtered
// one; the selectivity of the column is the ratio of the filtered mass to the
// starting mass. Parts that cannot be expressed on a single histogram
// contribute a selectivity of their own.
type filterState struct {
	sb *StatisticsBuilder
	in *props.Statistics

	// parent is set for the states used to estimate the children of a
	// disjunction; unconstrained columns start from the parent's histograms.
	parent *filterState

	constrained map[opt.ColumnID]*props.Histogram
	order       opt.ColList

	selectivities []float64
}

func (sb *StatisticsBuilder) makeFilterState(
	in *props.Statistics, parent *filterState,
) *filterState {
	return &filterState{
		sb:          sb,
		in:          in,
		parent:      parent,
		constrained: make(map[opt.ColumnID]*props.Histogram),
	}
}

// histogram returns the current histogram of col.
func (fs *filterState) histogram(col opt.ColumnID) (*props.Histogram, bool) {
	if h, ok := fs.constrained[col]; ok {
		return h, true
	}
	return fs.startingHistogram(col)
}

func (fs *filterState) startingHistogram(col opt.ColumnID) (*props.Histogram, bool) {
	if fs.parent != nil {
		return fs.parent.histogram(col)
	}
	return fs.in.Histogram(col)
}

func (fs *filterState) constrain(col opt.ColumnID, h *props.Histogram) {
	if _, ok := fs.constrained[col]; !ok {
		fs.order = append(fs.order, col)
	}
	fs.constrained[col] = h
}

// reject records a part of the predicate that no row satisfies.
func (fs *filterState) reject(col opt.ColumnID) {
	if _, ok := fs.histogram(col); ok {
		fs.constrain(col, props.NewHistogram(nil, 0, 0, 0))
		return
	}
	fs.selectivities = append(fs.selectivities, 0)
}

// selectivity returns the combined selectivity of everything applied so far.
func (fs *filterState) selectivity() float64 {
	sels := make([]float64, 0, len(fs.order)+len(fs.selectivities))
	for _, col := range fs.order {
		before, _ := fs.startingHistogram(col)
		sels = append(sels, ratio(fs.constrained[col].TotalFrequency(), before.TotalFrequency()))
	}
	sels = append(sels, fs.selectivities...)
	return fs.sb.dampedSelectivity(sels)
}

// columnResult returns the filtered histogram of col if the predicate
// applied to fs was entirely expressed on it.
func (fs *filterState) columnResult(col opt.ColumnID) (*props.Histogram, bool) {
	if len(fs.selectivities) != 0 || len(fs.order) != 1 || fs.order[0] != col {
		return nil, false
	}
	return fs.constrained[col], true
}

func (fs *filterState) apply(pred statspred.Pred) {
	switch t := pred.(type) {
	case *statspred.Point:
		fs.applyComparison(t.Col, t.Op, t.Value)

	case *statspred.Conjunction:
		for _, child := range t.Children {
			fs.apply(child)
		}

	case *statspred.Disjunction:
		fs.applyDisjunction(t)

	case *statspred.InList:
		fs.applyInList(t)

	case *statspred.Like:
		fs.applyLike(t)

	case *statspred.Unsupported:
		sel := t.Selectivity
		if sel == 0 {
			sel = fs.sb.cfg.UnknownFilterSelectivity
		}
		fs.selectivities = append(fs.selectivities, sel)

	default:
		panic(errors.AssertionFailedf("unexpected predicate %T", pred))
	}
}

func (fs *filterState) applyComparison(col opt.ColumnID, op opt.Operator, val tree.Datum) {
	if isNull(val) {
		// A comparison with NULL is never true.
		fs.reject(col)
		return
	}
	if h, ok := fs.histogram(col); ok {
		if res, ok := fs.sb.filterHistogram(h, op, val); ok {
			fs.constrain(col, res)
			return
		}
	}
	fs.selectivities = append(fs.selectivities, fs.sb.defaultSelectivity(op, fs.in.RowCount))
}

func (sb *StatisticsBuilder) filterHistogram(
	h *props.Histogram, op opt.Operator, val tree.Datum,
) (res *props.Histogram, ok bool) {
	defer sb.catchIncomparable(&ok)
	res, _ = h.Filter(op, props.MakePoint(val))
	return res, true
}

// applyInList estimates x IN (...) as the union of the equality filters on
// the distinct values of the list, and x NOT IN (...) as the successive
// inequality filters.
func (fs *filterState) applyInList(l *statspred.InList) {
	vals, hasNull := distinctPoints(l.Values)
	if (l.Negated && hasNull) || len(vals) == 0 {
		// x NOT IN (..., NULL) is never true, and neither is x IN (NULL).
		fs.reject(l.Col)
		return
	}
	if h, ok := fs.histogram(l.Col); ok {
		if res, ok := fs.sb.filterInList(h, vals, l.Negated); ok {
			fs.constrain(l.Col, res)
			return
		}
	}
	sel := math.Min(1, float64(len(vals))*fs.sb.defaultEqSelectivity(fs.in.RowCount))
	if l.Negated {
		sel = 1 - sel
	}
	fs.selectivities = append(fs.selectivities, sel)
}

// distinctPoints returns the non-NULL values of the list without duplicates.
func distinctPoints(datums []tree.Datum) (_ []props.Point, hasNull bool) {
	res := make([]props.Point, 0, len(datums))
	for _, d := range datums {
		if isNull(d) {
			hasNull = true
			continue
		}
		p := props.MakePoint(d)
		dup := false
		for _, q := range res {
			if c, err := p.Compare(q); err == nil && c == 0 {
				dup = true
				break
			}
		}
		if !dup {
			res = append(res, p)
		}
	}
	return res, hasNull
}

func (sb *StatisticsBuilder) filterInList(
	h *props.Histogram, vals []props.Point, negated bool,
) (res *props.Histogram, ok bool) {
	defer sb.catchIncomparable(&ok)
	if negated {
		res = h
		for _, v := range vals {
			res, _ = res.Filter(opt.NeOp, v)
		}
		return res, true
	}
	for _, v := range vals {
		eq, _ := h.Filter(opt.EqOp, v)
		if res == nil {
			res = eq
			continue
		}
		res = res.Or(eq, h)
	}
	return res, true
}

func (fs *filterState) applyLike(l *statspred.Like) {
	if s, ok := l.ExactMatch(); ok {
		fs.applyComparison(l.Col, opt.EqOp, tree.NewDString(s))
		return
	}
	sel := l.Selectivity
	if sel == 0 {
		sel = fs.sb.cfg.LikeSelectivity
	}
	if h, ok := fs.histogram(l.Col); ok {
		orig, _ := fs.in.Histogram(l.Col)
		fs.constrain(l.Col, h.ApplySelectivity(sel, baseRows(fs.in, orig)))
		return
	}
	fs.selectivities = append(fs.selectivities, sel)
}

// disjunctionGroup collects the children of a disjunction that reference the
// same single column, or holds one child that references several columns or
// none.
type disjunctionGroup struct {
	cols opt.ColSet
	col  opt.ColumnID

	// hist is the union of the filtered histograms of the children. It is
	// only valid if exact is set, which requires every child to be expressed
	// on the histogram of col.
	hist  *props.Histogram
	exact bool

	selectivities []float64
}

// applyDisjunction estimates each child of the disjunction on its own, then
// combines the estimates. Children on the same column are combined exactly,
// as the union of their filtered histograms. The resulting groups are
// combined assuming independence:
//
//	P(A or B) = P(A) + P(B) - P(A) * P(B)
//
// unless they share columns, in which case the selectivities are added and
// capped at 1.
func (fs *filterState) applyDisjunction(d *statspred.Disjunction) {
	var groups []*disjunctionGroup
	byCol := make(map[opt.ColumnID]*disjunctionGroup)
	for _, child := range d.Children {
		sub := fs.sb.makeFilterState(fs.in, fs)
		sub.apply(child)
		sel := sub.selectivity()

		cols := child.OuterCols()
		if cols.Len() != 1 {
			groups = append(groups, &disjunctionGroup{cols: cols, selectivities: []float64{sel}})
			continue
		}
		col := opt.ColumnID(cols.Ordered()[0])
		g, ok := byCol[col]
		if !ok {
			g = &disjunctionGroup{cols: cols, col: col, exact: true}
			byCol[col] = g
			groups = append(groups, g)
		}
		g.selectivities = append(g.selectivities, sel)
		if !g.exact {
			continue
		}
		h, ok := sub.columnResult(col)
		if ok && g.hist != nil {
			source, _ := fs.histogram(col)
			h, ok = fs.sb.unionHistograms(g.hist, h, source)
		}
		g.hist, g.exact = h, ok
	}

	if len(groups) == 1 && groups[0].exact {
		fs.constrain(groups[0].col, groups[0].hist)
		return
	}

	var seen opt.ColSet
	var sel float64
	for i, g := range groups {
		s := g.selectivity(fs)
		switch {
		case i == 0:
			sel = s
		case seen.Intersects(g.cols):
			sel = math.Min(1, sel+s)
		default:
			sel = sel + s - sel*s
		}
		seen.UnionWith(g.cols)
	}
	fs.selectivities = append(fs.selectivities, sel)
}

func (g *disjunctionGroup) selectivity(fs *filterState) float64 {
	if g.exact {
		before, _ := fs.histogram(g.col)
		return ratio(g.hist.TotalFrequency(), before.TotalFrequency())
	}
	// The children overlap in some unknown way.
	var sum float64
	for _, s := range g.selectivities {
		sum += s
	}
	return math.Min(1, sum)
}

// unionHistograms combines two histograms filtered from source with OR.
func (sb *StatisticsBuilder) unionHistograms(
	a, b, source *props.Histogram,
) (res *props.Histogram, ok bool) {
	defer sb.catchIncomparable(&ok)
	return a.Or(b, source), true
}

// +-------+
// | Joins |
// +-------+

// orientJoinPredicates checks that each predicate compares a column of left
// with a column of right, and returns the predicates with the left column
// first.
func orientJoinPredicates(
	left, right *props.Statistics, preds []*statspred.Join,
) ([]statspred.Join, error) {
	leftCols, rightCols := left.Columns(), right.Columns()
	if leftCols.Intersects(rightCols) {
		return nil, opt.NewInvalidPredicateShapeErrorf(
			"join inputs share columns %s", leftCols.Intersection(rightCols))
	}
	res := make([]statspred.Join, len(preds))
	for i, p := range preds {
		if p == nil {
			return nil, opt.NewInvalidPredicateShapeErrorf("missing join predicate")
		}
		if err := statspred.Validate(p, true /* allowJoins */); err != nil {
			return nil, err
		}
		switch {
		case leftCols.Contains(int(p.Left)) && rightCols.Contains(int(p.Right)):
			res[i] = *p
		case leftCols.Contains(int(p.Right)) && rightCols.Contains(int(p.Left)):
			res[i] = statspred.Join{Left: p.Right, Op: p.Op.Commute(), Right: p.Left}
		default:
			return nil, opt.NewInvalidPredicateShapeErrorf(
				"join predicate %s does not compare the two inputs", p)
		}
	}
	return res, nil
}

// joinEstimate is the result of estimating the inner join of two relations.
type joinEstimate struct {
	selectivity float64

	// joined holds the distribution of the columns of the equality predicates
	// in the output. Both columns of an equality share it.
	joined map[opt.ColumnID]*props.Histogram
}

func (sb *StatisticsBuilder) estimateJoin(
	left, right *props.Statistics, conds []statspred.Join,
) joinEstimate {
	est := joinEstimate{joined: make(map[opt.ColumnID]*props.Histogram)}
	sels := make([]float64, 0, len(conds))
	for _, c := range conds {
		hl, okLeft := left.Histogram(c.Left)
		hr, okRight := right.Histogram(c.Right)
		if okLeft && okRight {
			if j, ok := sb.joinHistograms(hl, c.Op, hr); ok {
				sels = append(sels, ratio(j.TotalFrequency(), hl.TotalFrequency()*hr.TotalFrequency()))
				if c.Op == opt.EqOp {
					est.joined[c.Left] = j
					est.joined[c.Right] = j
				}
				continue
			}
		}
		sels = append(sels, sb.defaultJoinSelectivity(left, right, c))
	}
	est.selectivity = sb.dampedSelectivity(sels)
	return est
}

func (sb *StatisticsBuilder) joinHistograms(
	hl *props.Histogram, op opt.Operator, hr *props.Histogram,
) (res *props.Histogram, ok bool) {
	defer sb.catchIncomparable(&ok)
	return hl.Join(op, hr), true
}

// defaultJoinSelectivity is used for a join predicate when either column has
// no histogram. An equality matches each value with the values of the side
// with the most distinct values.
func (sb *StatisticsBuilder) defaultJoinSelectivity(
	left, right *props.Statistics, c statspred.Join,
) float64 {
	distinct := func(s *props.Statistics, col opt.ColumnID) float64 {
		if d, ok := s.DistinctCount(col); ok {
			return d
		}
		return sb.cfg.UnknownDistinctCountRatio * s.RowCount
	}
	eq := 1 / math.Max(1, math.Max(distinct(left, c.Left), distinct(right, c.Right)))
	switch c.Op {
	case opt.EqOp:
		return eq
	case opt.NeOp:
		return 1 - eq
	}
	return sb.cfg.UnknownFilterSelectivity
}

// InnerJoin returns the statistics of the inner join of left and right on the
// conjunction of preds. The selectivity of each predicate is the mass of the
// joined histograms as a fraction of the cross product; the selectivities of
// several predicates are combined like those of a conjunctive filter. The
// columns of equality predicates take the distribution of the joined values,
// while the other columns keep their distribution.
func (sb *StatisticsBuilder) InnerJoin(
	left, right *props.Statistics, preds []*statspred.Join,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	conds, err := orientJoinPredicates(left, right, preds)
	if err != nil {
		return nil, err
	}
	est := sb.estimateJoin(left, right, conds)
	return sb.buildInnerJoin(left, right, est), nil
}

func (sb *StatisticsBuilder) buildInnerJoin(
	left, right *props.Statistics, est joinEstimate,
) *props.Statistics {
	rowCount := left.RowCount * right.RowCount * est.selectivity
	cols := make([]props.ColumnStatistic, 0, left.Columns().Len()+right.Columns().Len())
	for _, side := range []*props.Statistics{left, right} {
		for _, c := range side.ColumnStatistics() {
			if j, ok := est.joined[c.Col]; ok {
				c.Histogram = j
			}
			cols = append(cols, sb.finishColumn(c, rowCount, sb.cfg.CapNDV))
		}
	}
	log.VEventf(sb.ctx, 3, "inner join: selectivity=%.6g", est.selectivity)
	return props.MakeStatistics(rowCount, left.IsEmpty || right.IsEmpty, cols...)
}

// matchFraction returns the fraction of the rows of left that find at least
// one match in right, and for the left columns of equality predicates, the
// histogram of the rows that find none. It is the selectivity of the semi
// join of left and right.
func (sb *StatisticsBuilder) matchFraction(
	left, right *props.Statistics, conds []statspred.Join,
) (match float64, unmatched map[opt.ColumnID]*props.Histogram) {
	unmatched = make(map[opt.ColumnID]*props.Histogram)
	if right.IsEmpty || right.RowCount <= 0 {
		return 0, unmatched
	}
	sels := make([]float64, 0, len(conds))
	for _, c := range conds {
		hl, okLeft := left.Histogram(c.Left)
		hr, okRight := right.Histogram(c.Right)
		if okLeft && okRight {
			if anti, ok := sb.antiSemiJoinHistograms(hl, c.Op, hr); ok {
				sels = append(sels, 1-ratio(anti.TotalFrequency(), hl.TotalFrequency()))
				if c.Op == opt.EqOp {
					unmatched[c.Left] = anti
				}
				continue
			}
		}
		sels = append(sels, sb.cfg.UnknownFilterSelectivity)
	}
	return sb.dampedSelectivity(sels), unmatched
}

func (sb *StatisticsBuilder) antiSemiJoinHistograms(
	hl *props.Histogram, op opt.Operator, hr *props.Histogram,
) (res *props.Histogram, ok bool) {
	defer sb.catchIncomparable(&ok)
	return hl.AntiSemiJoin(op, hr, sb.cfg.ExactAntiSemiJoin), true
}

// LeftOuterJoin returns the statistics of the left outer join of left and
// right on the conjunction of preds: the rows of the inner join, plus the rows
// of left that find no match, which produce NULLs for the columns of right.
// Every row of left appears in the output, so the columns of left keep their
// distribution.
func (sb *StatisticsBuilder) LeftOuterJoin(
	left, right *props.Statistics, preds []*statspred.Join,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	conds, err := orientJoinPredicates(left, right, preds)
	if err != nil {
		return nil, err
	}
	inner := sb.buildInnerJoin(left, right, sb.estimateJoin(left, right, conds))
	match, _ := sb.matchFraction(left, right, conds)
	unmatched := left.RowCount * (1 - match)
	rowCount := inner.RowCount + unmatched
	unmatchedFrac := ratio(unmatched, rowCount)

	cols := make([]props.ColumnStatistic, 0, inner.Columns().Len())
	for _, c := range left.ColumnStatistics() {
		cols = append(cols, sb.finishColumn(c, rowCount, sb.cfg.CapNDV))
	}
	for _, c := range right.ColumnStatistics() {
		if h, ok := inner.Histogram(c.Col); ok {
			c.Histogram = h.Normalize().ScaleFrequencies(1 - unmatchedFrac).WithExtraNulls(unmatchedFrac)
		}
		cols = append(cols, sb.finishColumn(c, rowCount, sb.cfg.CapNDV))
	}
	log.VEventf(sb.ctx, 3, "left join: match=%.6g", match)
	return props.MakeStatistics(rowCount, left.IsEmpty, cols...), nil
}

// SemiJoin returns the statistics of the rows of left that have a match in
// right.
func (sb *StatisticsBuilder) SemiJoin(
	left, right *props.Statistics, preds []*statspred.Join,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	conds, err := orientJoinPredicates(left, right, preds)
	if err != nil {
		return nil, err
	}
	match, _ := sb.matchFraction(left, right, conds)
	rowCount := left.RowCount * match
	cols := left.ColumnStatistics()
	for i := range cols {
		if h := cols[i].Histogram; h != nil {
			cols[i].Histogram = h.ApplySelectivity(match, baseRows(left, h))
		}
		cols[i] = sb.finishColumn(cols[i], rowCount, sb.cfg.CapNDV)
	}
	return props.MakeStatistics(rowCount, left.IsEmpty || right.IsEmpty, cols...), nil
}

// AntiJoin returns the statistics of the rows of left that have no match in
// right. The row count is never estimated below epsilon.
func (sb *StatisticsBuilder) AntiJoin(
	left, right *props.Statistics, preds []*statspred.Join,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	conds, err := orientJoinPredicates(left, right, preds)
	if err != nil {
		return nil, err
	}
	match, unmatchedHists := sb.matchFraction(left, right, conds)
	rowCount := math.Max(left.RowCount*(1-match), epsilon)
	cols := left.ColumnStatistics()
	for i := range cols {
		c := &cols[i]
		if anti, ok := unmatchedHists[c.Col]; ok {
			c.Histogram = anti
		} else if c.Histogram != nil {
			c.Histogram = c.Histogram.ApplySelectivity(1-match, baseRows(left, c.Histogram))
		}
		*c = sb.finishColumn(*c, rowCount, sb.cfg.CapNDV)
	}
	return props.MakeStatistics(rowCount, left.IsEmpty, cols...), nil
}

// +----------+
// | Group By |
// +----------+

// GroupBy returns the statistics of grouping in by groupCols and computing
// aggregates of aggCols. The number of groups is the number of distinct
// combinations of the grouping columns (counting NULL as a value), estimated
// by dampedDistinctCount and bounded by the input row count. Repeated
// grouping columns count once.
//
// If hashableGroupCols is not empty, only the grouping columns in it
// determine the groups; the others are assumed to be functionally dependent
// on them.
//
// The columns in aggCols stand for the results of the aggregates over them.
// They get a single-bucket histogram spanning the input values.
func (sb *StatisticsBuilder) GroupBy(
	in *props.Statistics, groupCols, aggCols opt.ColList, hashableGroupCols opt.ColSet,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	groupCols = opt.DedupColList(groupCols)
	keyCols := groupCols
	if !hashableGroupCols.Empty() {
		keyCols = nil
		for _, col := range groupCols {
			if hashableGroupCols.Contains(int(col)) {
				keyCols = append(keyCols, col)
			}
		}
		if len(keyCols) == 0 {
			keyCols = groupCols
		}
	}

	var rowCount float64
	if len(keyCols) == 0 {
		// A scalar group by returns a single row.
		rowCount = math.Min(1, in.RowCount)
	} else {
		distinctCounts := make([]float64, len(keyCols))
		for i, col := range keyCols {
			distinctCounts[i] = sb.groupCount(in, col)
		}
		rowCount = math.Min(in.RowCount, sb.dampedDistinctCount(distinctCounts))
	}

	groupColSet := opt.ColListToSet(groupCols)
	cols := make([]props.ColumnStatistic, 0, len(groupCols)+len(aggCols))
	for _, col := range groupCols {
		c := sb.columnStatistic(in, col)
		if len(groupCols) == 1 {
			c.Histogram = c.Histogram.MakeGroupByHistogram()
		}
		cols = append(cols, sb.finishColumn(c, rowCount, true /* capNDV */))
	}
	for _, col := range opt.DedupColList(aggCols) {
		if groupColSet.Contains(int(col)) {
			continue
		}
		c := sb.aggregateColumn(in, col, rowCount)
		cols = append(cols, sb.finishColumn(c, rowCount, true /* capNDV */))
	}
	return props.MakeStatistics(rowCount, in.IsEmpty && len(groupCols) > 0, cols...), nil
}

// groupCount returns the number of groups formed by col alone, counting
// NULL as a group.
func (sb *StatisticsBuilder) groupCount(in *props.Statistics, col opt.ColumnID) float64 {
	h, ok := in.Histogram(col)
	if !ok {
		return sb.cfg.UnknownDistinctCountRatio * in.RowCount
	}
	d := h.Distinct()
	if h.NullFrequency() > 0 {
		d++
	}
	return d
}

func (sb *StatisticsBuilder) aggregateColumn(
	in *props.Statistics, col opt.ColumnID, rowCount float64,
) props.ColumnStatistic {
	c := sb.columnStatistic(in, col)
	h := c.Histogram
	distinct := math.Min(rowCount, h.Distinct())
	if n := h.BucketCount(); n > 0 {
		c.Histogram = props.MakeSingleBucketHistogram(
			h.Bucket(0).Lower(), h.Bucket(n-1).Upper(), math.Max(1, distinct),
		)
	} else {
		c.Histogram = props.MakeDummyHistogram(0, distinct)
	}
	return c
}

// +-----------+
// | Union All |
// +-----------+

// UnionAll returns the statistics of the concatenation of left and right.
// The i-th output column combines the i-th columns of leftCols and rightCols,
// weighting each input by its row count.
func (sb *StatisticsBuilder) UnionAll(
	left, right *props.Statistics, outCols, leftCols, rightCols opt.ColList,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	if len(leftCols) != len(outCols) || len(rightCols) != len(outCols) {
		return nil, opt.NewInvalidPredicateShapeErrorf(
			"union all of %d and %d columns into %d columns", len(leftCols), len(rightCols), len(outCols))
	}
	if len(opt.DedupColList(outCols)) != len(outCols) {
		return nil, opt.NewInvalidPredicateShapeErrorf("duplicate union all output columns")
	}

	rowCount := left.RowCount + right.RowCount
	cols := make([]props.ColumnStatistic, len(outCols))
	for i, col := range outCols {
		l, r := sb.columnStatistic(left, leftCols[i]), sb.columnStatistic(right, rightCols[i])
		h, ok := sb.unionAllHistograms(l.Histogram, r.Histogram, left.RowCount, right.RowCount)
		if !ok {
			h = sb.unknownHistogram(rowCount)
		}
		width := (l.Width + r.Width) / 2
		if rowCount > 0 {
			width = (l.Width*left.RowCount + r.Width*right.RowCount) / rowCount
		}
		cols[i] = sb.finishColumn(
			props.ColumnStatistic{Col: col, Histogram: h, Width: width}, rowCount, sb.cfg.CapNDV,
		)
	}
	return props.MakeStatistics(rowCount, left.IsEmpty && right.IsEmpty, cols...), nil
}

func (sb *StatisticsBuilder) unionAllHistograms(
	hl, hr *props.Histogram, rowsLeft, rowsRight float64,
) (res *props.Histogram, ok bool) {
	defer sb.catchIncomparable(&ok)
	return hl.Union(hr, rowsLeft, rowsRight, true /* isUnionAll */), true
}

// +-------+
// | Limit |
// +-------+

// Limit returns the statistics of the first n rows of in. The frequencies of
// every histogram are scaled by the fraction of rows kept, and the distinct
// counts are capped to the new row count.
func (sb *StatisticsBuilder) Limit(in *props.Statistics, n int64) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	if n < 0 {
		return nil, errors.Newf("negative limit %d", n)
	}
	rowCount := math.Min(in.RowCount, float64(n))
	sel := 1.0
	if in.RowCount > 0 {
		sel = rowCount / in.RowCount
	}
	cols := in.ColumnStatistics()
	for i := range cols {
		if h := cols[i].Histogram; h != nil {
			cols[i].Histogram = sb.checkHistogram(cols[i].Col, h.ScaleFrequencies(sel).CapNDV(rowCount))
		}
	}
	return props.MakeStatistics(rowCount, in.IsEmpty || n == 0, cols...), nil
}

// +---------+
// | Project |
// +---------+

// Project returns the statistics of in restricted to cols. Columns unknown to
// in, such as computed columns, get the default distribution.
func (sb *StatisticsBuilder) Project(
	in *props.Statistics, cols opt.ColSet,
) (_ *props.Statistics, err error) {
	defer catchPanic(&err)
	res := make([]props.ColumnStatistic, 0, cols.Len())
	cols.ForEach(func(i int) {
		res = append(res, sb.columnStatistic(in, opt.ColumnID(i)))
	})
	return props.MakeStatistics(in.RowCount, in.IsEmpty, res...), nil
}
