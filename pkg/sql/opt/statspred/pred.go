// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package statspred defines the predicate trees consumed by the statistics
// builder. A plan transformation translates the scalar filter or ON condition
// of a relational expression into a Pred before asking for an estimate; the
// text form accepted by Parse exists for tests and tooling.
package statspred

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
)

// Pred is a predicate over the columns of one or two relations. The set of
// implementations is closed; consumers switch over the concrete types.
type Pred interface {
	fmt.Stringer

	// OuterCols returns the columns referenced by the predicate.
	OuterCols() opt.ColSet

	isPred()
}

// Point compares a column with a constant: Col Op Value. A NULL value never
// matches.
type Point struct {
	Col   opt.ColumnID
	Op    opt.Operator
	Value tree.Datum
}

// Conjunction is satisfied when all of its children are.
type Conjunction struct {
	Children []Pred
}

// Disjunction is satisfied when any of its children is.
type Disjunction struct {
	Children []Pred
}

// Join compares a column of the left input with a column of the right input
// of a join: Left Op Right.
type Join struct {
	Left  opt.ColumnID
	Op    opt.Operator
	Right opt.ColumnID
}

// InList is satisfied when the column equals one of the values, or, if
// Negated is set, when it equals none of them.
type InList struct {
	Col     opt.ColumnID
	Values  []tree.Datum
	Negated bool
}

// Like matches a string column against a LIKE pattern. Selectivity is an
// estimate supplied by the caller; zero means the configured default.
type Like struct {
	Col         opt.ColumnID
	Pattern     string
	Selectivity float64
}

// Unsupported stands for a predicate the translator could not express. It
// filters with the given selectivity, or the default for unknown filters if
// Selectivity is zero.
type Unsupported struct {
	Cols        opt.ColSet
	Selectivity float64
}

func (*Point) isPred()       {}
func (*Conjunction) isPred() {}
func (*Disjunction) isPred() {}
func (*Join) isPred()        {}
func (*InList) isPred()      {}
func (*Like) isPred()        {}
func (*Unsupported) isPred() {}

// NewPoint returns the predicate col op val.
func NewPoint(col opt.ColumnID, op opt.Operator, val tree.Datum) *Point {
	return &Point{Col: col, Op: op, Value: val}
}

// NewJoin returns the join predicate left op right.
func NewJoin(left opt.ColumnID, op opt.Operator, right opt.ColumnID) *Join {
	return &Join{Left: left, Op: op, Right: right}
}

// And returns the conjunction of the given predicates. Nested conjunctions
// are flattened.
func And(children ...Pred) *Conjunction {
	c := &Conjunction{}
	for _, child := range children {
		if nested, ok := child.(*Conjunction); ok {
			c.Children = append(c.Children, nested.Children...)
			continue
		}
		c.Children = append(c.Children, child)
	}
	return c
}

// Or returns the disjunction of the given predicates. Nested disjunctions are
// flattened.
func Or(children ...Pred) *Disjunction {
	d := &Disjunction{}
	for _, child := range children {
		if nested, ok := child.(*Disjunction); ok {
			d.Children = append(d.Children, nested.Children...)
			continue
		}
		d.Children = append(d.Children, child)
	}
	return d
}

// OuterCols is part of the Pred interface.
func (p *Point) OuterCols() opt.ColSet { return opt.MakeColSet(p.Col) }

// OuterCols is part of the Pred interface.
func (c *Conjunction) OuterCols() opt.ColSet { return childCols(c.Children) }

// OuterCols is part of the Pred interface.
func (d *Disjunction) OuterCols() opt.ColSet { return childCols(d.Children) }

// OuterCols is part of the Pred interface.
func (j *Join) OuterCols() opt.ColSet { return opt.MakeColSet(j.Left, j.Right) }

// OuterCols is part of the Pred interface.
func (l *InList) OuterCols() opt.ColSet { return opt.MakeColSet(l.Col) }

// OuterCols is part of the Pred interface.
func (l *Like) OuterCols() opt.ColSet { return opt.MakeColSet(l.Col) }

// OuterCols is part of the Pred interface.
func (u *Unsupported) OuterCols() opt.ColSet { return u.Cols.Copy() }

func childCols(children []Pred) opt.ColSet {
	var cols opt.ColSet
	for _, child := range children {
		cols.UnionWith(child.OuterCols())
	}
	return cols
}

// ExactMatch returns the string the pattern matches if it has no wildcards,
// in which case the predicate is an equality.
func (l *Like) ExactMatch() (string, bool) {
	if strings.ContainsAny(l.Pattern, `%_\`) {
		return "", false
	}
	return l.Pattern, true
}

// ContainsJoin returns true if any part of the predicate is a Join.
func ContainsJoin(p Pred) bool {
	switch t := p.(type) {
	case *Join:
		return true
	case *Conjunction:
		for _, child := range t.Children {
			if ContainsJoin(child) {
				return true
			}
		}
	case *Disjunction:
		for _, child := range t.Children {
			if ContainsJoin(child) {
				return true
			}
		}
	}
	return false
}

// JoinConditions splits a conjunction of column comparisons into the list
// of join conditions taken by the join operators.
func JoinConditions(p Pred) ([]*Join, error) {
	children := []Pred{p}
	if c, ok := p.(*Conjunction); ok {
		children = c.Children
	}
	res := make([]*Join, len(children))
	for i, child := range children {
		j, ok := child.(*Join)
		if !ok {
			return nil, opt.NewInvalidPredicateShapeErrorf("%s is not a join condition", child)
		}
		res[i] = j
	}
	return res, nil
}

// Negate returns the complement of p, with the negation pushed down to the
// comparisons. Comparisons with NULL stay false. LIKE and unsupported
// predicates cannot be negated.
func Negate(p Pred) (Pred, error) {
	switch t := p.(type) {
	case *Point:
		return NewPoint(t.Col, t.Op.Negate(), t.Value), nil
	case *Join:
		return NewJoin(t.Left, t.Op.Negate(), t.Right), nil
	case *InList:
		return &InList{Col: t.Col, Values: t.Values, Negated: !t.Negated}, nil
	case *Conjunction:
		children, err := negateAll(t.Children)
		if err != nil {
			return nil, err
		}
		return Or(children...), nil
	case *Disjunction:
		children, err := negateAll(t.Children)
		if err != nil {
			return nil, err
		}
		return And(children...), nil
	case nil:
		return nil, opt.NewInvalidPredicateShapeErrorf("missing predicate")
	}
	return nil, opt.NewInvalidPredicateShapeErrorf("cannot negate %s", p)
}

func negateAll(children []Pred) ([]Pred, error) {
	res := make([]Pred, len(children))
	for i, child := range children {
		var err error
		if res[i], err = Negate(child); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Validate checks the structure of a predicate tree: conjunctions and
// disjunctions are non-empty, operators are comparisons and literals are
// present. Join predicates are rejected unless allowJoins is set. The returned
// error is marked with opt.ErrInvalidPredicateShape.
func Validate(p Pred, allowJoins bool) error {
	switch t := p.(type) {
	case nil:
		return opt.NewInvalidPredicateShapeErrorf("missing predicate")
	case *Point:
		if !t.Op.IsComparison() {
			return opt.NewInvalidPredicateShapeErrorf("invalid operator %s in %s", t.Op, t)
		}
		if t.Value == nil {
			return opt.NewInvalidPredicateShapeErrorf("missing value for column @%d", t.Col)
		}
	case *Conjunction:
		if len(t.Children) == 0 {
			return opt.NewInvalidPredicateShapeErrorf("empty conjunction")
		}
		for _, child := range t.Children {
			if err := Validate(child, allowJoins); err != nil {
				return err
			}
		}
	case *Disjunction:
		if len(t.Children) == 0 {
			return opt.NewInvalidPredicateShapeErrorf("empty disjunction")
		}
		for _, child := range t.Children {
			if err := Validate(child, allowJoins); err != nil {
				return err
			}
		}
	case *Join:
		if !allowJoins {
			return opt.NewInvalidPredicateShapeErrorf("join predicate %s cannot filter a single relation", t)
		}
		if !t.Op.IsComparison() {
			return opt.NewInvalidPredicateShapeErrorf("invalid operator %s in %s", t.Op, t)
		}
	case *InList:
		if len(t.Values) == 0 {
			return opt.NewInvalidPredicateShapeErrorf("empty IN list for column @%d", t.Col)
		}
		for _, v := range t.Values {
			if v == nil {
				return opt.NewInvalidPredicateShapeErrorf("missing value in IN list for column @%d", t.Col)
			}
		}
	case *Like:
		if t.Selectivity < 0 || t.Selectivity > 1 {
			return opt.NewInvalidPredicateShapeErrorf("invalid selectivity %g for %s", t.Selectivity, t)
		}
	case *Unsupported:
		if t.Selectivity < 0 || t.Selectivity > 1 {
			return opt.NewInvalidPredicateShapeErrorf("invalid selectivity %g for %s", t.Selectivity, t)
		}
	default:
		return opt.NewInvalidPredicateShapeErrorf("unknown predicate %T", p)
	}
	return nil
}

func (p *Point) String() string {
	return fmt.Sprintf("@%d %s %s", p.Col, p.Op, FormatDatum(p.Value))
}

func (c *Conjunction) String() string { return formatList(c.Children, " AND ") }

func (d *Disjunction) String() string { return formatList(d.Children, " OR ") }

func (j *Join) String() string {
	return fmt.Sprintf("@%d %s @%d", j.Left, j.Op, j.Right)
}

func (l *InList) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "@%d ", l.Col)
	if l.Negated {
		buf.WriteString("NOT ")
	}
	buf.WriteString("IN (")
	for i, v := range l.Values {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(FormatDatum(v))
	}
	buf.WriteByte(')')
	return buf.String()
}

func (l *Like) String() string {
	return fmt.Sprintf("@%d LIKE %s", l.Col, tree.NewDString(l.Pattern))
}

func (u *Unsupported) String() string {
	var buf bytes.Buffer
	buf.WriteString("UNSUPPORTED(")
	for i, col := range u.Cols.Ordered() {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "@%d", col)
	}
	buf.WriteByte(')')
	return buf.String()
}

func formatList(children []Pred, sep string) string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	for i, child := range children {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(child.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// FormatDatum renders a literal so that Parse reads it back as the same datum.
func FormatDatum(d tree.Datum) string {
	switch d.(type) {
	case nil:
		return "<nil>"
	case *tree.DInt, *tree.DString, *tree.DBool:
		return d.String()
	}
	if d == tree.DNull {
		return "NULL"
	}
	s := tree.NewDString(tree.AsStringWithoutQuotes(d))
	return fmt.Sprintf("%s::%s", s, d.ResolvedType().SQLString())
}
