// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"strconv"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/cardest/pkg/sql/opt/statspred"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func makeShowCommand(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show <relation>",
		Short: "Print the statistics of a relation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.relation(args[0])
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), args[0], s)
		},
	}
}

func makeFilterCommand(env *cliEnv) *cobra.Command {
	var capNDV bool
	cmd := &cobra.Command{
		Use:   "filter <relation> <predicate>",
		Short: "Estimate the rows of a relation that satisfy a predicate.",
		Long: `Estimate the rows of a relation that satisfy a predicate.

Columns are written as @<id>. For example:
    @1 < 35 AND (@2 = 'a' OR @2 IN ('b', 'c'))
    @3 LIKE 'abc%' SELECTIVITY 0.05
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := env.relation(args[0])
			if err != nil {
				return err
			}
			pred, err := statspred.Parse(args[1])
			if err != nil {
				return err
			}
			out, err := env.builder().Filter(in, pred, capNDV)
			if err != nil {
				return err
			}
			return env.printResult(cmd.OutOrStdout(), "filter", in, out)
		},
	}
	cmd.Flags().BoolVar(&capNDV, "cap-ndv", capNDV, "cap the distinct counts to the output row count")
	return cmd
}

const (
	joinTypeInner = "inner"
	joinTypeLeft  = "left"
	joinTypeSemi  = "semi"
	joinTypeAnti  = "anti"
)

func makeJoinCommand(env *cliEnv) *cobra.Command {
	joinType := joinTypeInner
	cmd := &cobra.Command{
		Use:   "join <left> <right> <conditions>",
		Short: "Estimate the join of two relations.",
		Long: `Estimate the join of two relations.

The conditions are a conjunction of comparisons between a column of the left
relation and a column of the right relation, for example:
    @1 = @3 AND @2 < @4
`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := env.relation(args[0])
			if err != nil {
				return err
			}
			right, err := env.relation(args[1])
			if err != nil {
				return err
			}
			pred, err := statspred.Parse(args[2])
			if err != nil {
				return err
			}
			conds, err := statspred.JoinConditions(pred)
			if err != nil {
				return err
			}
			sb := env.builder()
			var out *props.Statistics
			switch joinType {
			case joinTypeInner:
				out, err = sb.InnerJoin(left, right, conds)
			case joinTypeLeft:
				out, err = sb.LeftOuterJoin(left, right, conds)
			case joinTypeSemi:
				out, err = sb.SemiJoin(left, right, conds)
			case joinTypeAnti:
				out, err = sb.AntiJoin(left, right, conds)
			default:
				return errors.Newf("unknown join type %q", joinType)
			}
			if err != nil {
				return err
			}
			return env.printResult(cmd.OutOrStdout(), joinType+" join", left, out)
		},
	}
	cmd.Flags().StringVar(&joinType, "type", joinType, "join type: inner, left, semi or anti")
	return cmd
}

func makeLimitCommand(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "limit <relation> <n>",
		Short: "Estimate the first n rows of a relation.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := env.relation(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid limit %q", args[1])
			}
			out, err := env.builder().Limit(in, n)
			if err != nil {
				return err
			}
			return env.printResult(cmd.OutOrStdout(), "limit", in, out)
		},
	}
}

func makeGroupByCommand(env *cliEnv) *cobra.Command {
	var groupCols, aggCols, hashable []int
	cmd := &cobra.Command{
		Use:   "group-by <relation>",
		Short: "Estimate the groups of a relation.",
		Long: `Estimate the groups of a relation.

Without grouping columns the relation is aggregated into a single row.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := env.relation(args[0])
			if err != nil {
				return err
			}
			out, err := env.builder().GroupBy(
				in, colList(groupCols), colList(aggCols), opt.ColListToSet(colList(hashable)),
			)
			if err != nil {
				return err
			}
			return env.printResult(cmd.OutOrStdout(), "group-by", in, out)
		},
	}
	cmd.Flags().IntSliceVar(&groupCols, "cols", nil, "grouping columns")
	cmd.Flags().IntSliceVar(&aggCols, "aggs", nil, "columns produced by aggregate functions")
	cmd.Flags().IntSliceVar(&hashable, "hashable", nil, "grouping columns whose values can be hashed")
	return cmd
}

func makeUnionAllCommand(env *cliEnv) *cobra.Command {
	var outCols, leftCols, rightCols []int
	cmd := &cobra.Command{
		Use:   "union-all <left> <right>",
		Short: "Estimate the union of two relations, keeping duplicates.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := env.relation(args[0])
			if err != nil {
				return err
			}
			right, err := env.relation(args[1])
			if err != nil {
				return err
			}
			out, err := env.builder().UnionAll(
				left, right, colList(outCols), colList(leftCols), colList(rightCols),
			)
			if err != nil {
				return err
			}
			return env.printResult(cmd.OutOrStdout(), "union-all", left, out)
		},
	}
	cmd.Flags().IntSliceVar(&outCols, "out", nil, "output columns")
	cmd.Flags().IntSliceVar(&leftCols, "left", nil, "left columns, one per output column")
	cmd.Flags().IntSliceVar(&rightCols, "right", nil, "right columns, one per output column")
	return cmd
}

func makeProjectCommand(env *cliEnv) *cobra.Command {
	var cols []int
	cmd := &cobra.Command{
		Use:   "project <relation>",
		Short: "Keep a subset of the columns of a relation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := env.relation(args[0])
			if err != nil {
				return err
			}
			out, err := env.builder().Project(in, opt.ColListToSet(colList(cols)))
			if err != nil {
				return err
			}
			return env.printResult(cmd.OutOrStdout(), "project", in, out)
		},
	}
	cmd.Flags().IntSliceVar(&cols, "cols", nil, "columns to keep")
	return cmd
}
