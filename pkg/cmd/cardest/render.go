// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"fmt"
	"io"
	"math"

	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/cardest/pkg/sql/stats"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// formatCount renders a row or distinct count rounded to two decimals, with
// thousands separators.
func formatCount(v float64) string {
	return humanize.Commaf(math.Round(v*100) / 100)
}

// printResult prints the statistics produced by an operator, preceded by
// the change in row count.
func (env *cliEnv) printResult(w io.Writer, op string, in, out *props.Statistics) error {
	if env.format == formatTable {
		fmt.Fprintf(w, "%s: %s -> %s rows\n", op, formatCount(in.RowCount), formatCount(out.RowCount))
	}
	return env.print(w, op, out)
}

func (env *cliEnv) print(w io.Writer, name string, s *props.Statistics) error {
	if env.format == formatJSON {
		js, err := stats.FromStatistics(name, s)
		if err != nil {
			return err
		}
		data, err := stats.MarshalJSONStatistics([]stats.JSONStatistic{js})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	rows := formatCount(s.RowCount)
	if s.IsEmpty {
		rows += " (empty)"
	}
	fmt.Fprintf(w, "rows: %s\n", rows)

	cols := s.ColumnStatistics()
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"column", "distinct", "nulls", "width"})
	for _, c := range cols {
		distinct, _ := s.DistinctCount(c.Col)
		nulls, _ := s.NullCount(c.Col)
		table.Append([]string{
			fmt.Sprintf("@%d", c.Col),
			formatCount(distinct),
			formatCount(nulls),
			humanize.Ftoa(math.Round(c.Width*100) / 100),
		})
	}
	table.Render()

	if env.histograms {
		for _, c := range cols {
			fmt.Fprintf(w, "\n@%d histogram:\n%s\n", c.Col, c.Histogram)
		}
	}
	return nil
}
