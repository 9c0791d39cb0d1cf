// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperatorCommuteNegate(t *testing.T) {
	testCases := []struct {
		op, commuted, negated Operator
	}{
		{EqOp, EqOp, NeOp},
		{NeOp, NeOp, EqOp},
		{LtOp, GtOp, GeOp},
		{LeOp, GeOp, GtOp},
		{GtOp, LtOp, LeOp},
		{GeOp, LeOp, LtOp},
	}
	for _, tc := range testCases {
		t.Run(tc.op.String(), func(t *testing.T) {
			require.Equal(t, tc.commuted, tc.op.Commute())
			require.Equal(t, tc.negated, tc.op.Negate())
			require.Equal(t, tc.op, tc.op.Negate().Negate())
			parsed, ok := ParseOperator(tc.op.String())
			require.True(t, ok)
			require.Equal(t, tc.op, parsed)
		})
	}
	_, ok := ParseOperator("~~")
	require.False(t, ok)
	require.False(t, UnknownOp.IsComparison())
	require.True(t, LeOp.IsRange())
	require.False(t, NeOp.IsRange())
}

func TestDedupColList(t *testing.T) {
	require.Equal(t, ColList{3, 1, 2}, DedupColList(ColList{3, 1, 3, 2, 1}))
	require.Equal(t, ColList{1, 2, 3}, ColSetToList(ColListToSet(ColList{3, 1, 3, 2})))
	require.Nil(t, ColSetToList(ColSet{}))
}
