// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"github.com/cockroachdb/cardest/pkg/util"
)

// ColumnID uniquely identifies a column within the scope of an estimation
// session. ColumnID 0 is reserved to mean "unknown column".
type ColumnID int32

// SafeValue implements redact.SafeValue.
func (ColumnID) SafeValue() {}

// ColSet efficiently stores an unordered set of column ids.
type ColSet = util.FastIntSet

// ColList is an ordered list of column ids. Unlike a ColSet it may contain
// duplicates.
type ColList = []ColumnID

// MakeColSet returns a set initialized with the given columns.
func MakeColSet(cols ...ColumnID) ColSet {
	var r ColSet
	for _, col := range cols {
		r.Add(int(col))
	}
	return r
}

// ColListToSet converts a column id list to a column id set. Duplicate
// columns collapse into a single member.
func ColListToSet(colList ColList) ColSet {
	var r ColSet
	for _, col := range colList {
		r.Add(int(col))
	}
	return r
}

// ColSetToList converts a column id set to an ascending list.
func ColSetToList(set ColSet) ColList {
	if set.Empty() {
		return nil
	}
	res := make(ColList, 0, set.Len())
	set.ForEach(func(i int) {
		res = append(res, ColumnID(i))
	})
	return res
}

// DedupColList returns the list with repeated columns removed, keeping the
// first occurrence of each.
func DedupColList(colList ColList) ColList {
	var seen ColSet
	res := make(ColList, 0, len(colList))
	for _, col := range colList {
		if seen.Contains(int(col)) {
			continue
		}
		seen.Add(int(col))
		res = append(res, col)
	}
	return res
}
