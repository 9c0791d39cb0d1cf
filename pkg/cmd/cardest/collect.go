// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/cardest/pkg/sql/stats"
	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/cardest/pkg/util/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type collectConfig struct {
	name       string
	types      []string
	firstCol   int
	header     bool
	maxBuckets int
	maxSamples int
	seed       int64
}

func defaultCollectConfig() collectConfig {
	return collectConfig{
		firstCol:   1,
		maxBuckets: 200,
		maxSamples: 10000,
	}
}

func makeCollectCommand(env *cliEnv) *cobra.Command {
	config := defaultCollectConfig()
	cmd := &cobra.Command{
		Use:   "collect <csv-file>",
		Short: "Collect the statistics of the columns of a CSV file.",
		Long: `Collect the statistics of the columns of a CSV file and print them as JSON.

Every column needs a type. Empty fields and NULL are NULL values. The columns
are numbered from --first-col, so that the statistics of several files can be
combined into one file without sharing column IDs.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "opening input")
			}
			defer f.Close()
			js, err := collect(env, f, config)
			if err != nil {
				return errors.Wrapf(err, "collecting %s", args[0])
			}
			data, err := stats.MarshalJSONStatistics([]stats.JSONStatistic{js})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return err
		},
	}
	cmd.Flags().StringVar(&config.name, "name", config.name, "name of the relation")
	cmd.Flags().StringSliceVar(&config.types, "types", config.types, "type of every column, e.g. int,string,date")
	cmd.Flags().IntVar(&config.firstCol, "first-col", config.firstCol, "column ID of the first column")
	cmd.Flags().BoolVar(&config.header, "header", config.header, "skip the first line of the file")
	cmd.Flags().IntVar(&config.maxBuckets, "buckets", config.maxBuckets, "maximum number of histogram buckets")
	cmd.Flags().IntVar(&config.maxSamples, "samples", config.maxSamples, "number of values sampled per column")
	cmd.Flags().Int64Var(&config.seed, "seed", config.seed, "seed of the sampler")
	return cmd
}

func collect(env *cliEnv, r io.Reader, config collectConfig) (stats.JSONStatistic, error) {
	if len(config.types) == 0 {
		return stats.JSONStatistic{}, errors.New("--types is required")
	}
	if config.maxSamples < 1 {
		return stats.JSONStatistic{}, errors.Newf("--samples must be positive, found %d", config.maxSamples)
	}
	colTypes := make([]*types.T, len(config.types))
	collectors := make([]*stats.SampleCollector, len(config.types))
	for i, name := range config.types {
		typ, err := types.FromString(name)
		if err != nil {
			return stats.JSONStatistic{}, err
		}
		colTypes[i] = typ
		col := opt.ColumnID(config.firstCol + i)
		collectors[i] = stats.NewSampleCollector(col, config.maxSamples, config.seed+int64(i))
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(colTypes)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats.JSONStatistic{}, err
		}
		if line == 1 && config.header {
			continue
		}
		for i, field := range record {
			d := tree.DNull
			if field != "" && field != "NULL" {
				if d, err = tree.ParseDatumStringAs(colTypes[i], field); err != nil {
					return stats.JSONStatistic{}, errors.Wrapf(err, "line %d", line)
				}
			}
			if err := collectors[i].Add(d); err != nil {
				return stats.JSONStatistic{}, errors.Wrapf(err, "line %d", line)
			}
		}
	}

	ts, err := stats.CollectTableStatistic(config.maxBuckets, collectors...)
	if err != nil {
		return stats.JSONStatistic{}, err
	}
	log.VEventf(env.ctx, 1, "collected %g rows", ts.RowCount)
	return stats.MakeJSONStatistic(config.name, ts)
}
