// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"context"
	"os"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/opt/memo"
	"github.com/cockroachdb/cardest/pkg/sql/opt/props"
	"github.com/cockroachdb/cardest/pkg/sql/stats"
	"github.com/cockroachdb/cardest/pkg/util/log"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// cliEnv holds the flags shared by every command and the state derived from
// them.
type cliEnv struct {
	statsFile  string
	configFile string
	verbosity  int
	format     string
	histograms bool

	ctx       context.Context
	cfg       *memo.EstimationConfig
	relations map[string]*stats.JSONStatistic
}

func (env *cliEnv) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&env.statsFile, "stats", env.statsFile, "JSON file holding the statistics of the relations")
	fs.StringVar(&env.configFile, "config", env.configFile, "YAML file overriding the estimation constants")
	fs.IntVarP(&env.verbosity, "verbosity", "v", env.verbosity, "log verbosity; 2 logs the default selectivities used")
	fs.StringVar(&env.format, "format", env.format, "output format: table or json")
	fs.BoolVar(&env.histograms, "histograms", env.histograms, "print the histogram of every column")
}

// init validates the flags, sets up logging and loads the configuration.
// The statistics file is only read by the commands that need it.
func (env *cliEnv) init(cmd *cobra.Command) error {
	if env.format != formatTable && env.format != formatJSON {
		return errors.Newf("unknown format %q", env.format)
	}
	log.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger())
	log.SetVerbosity(log.Level(env.verbosity))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env.ctx = logtags.AddTag(ctx, "cardest", cmd.Name())

	if env.configFile != "" {
		data, err := os.ReadFile(env.configFile)
		if err != nil {
			return errors.Wrap(err, "reading config")
		}
		if env.cfg, err = memo.LoadEstimationConfig(data); err != nil {
			return err
		}
	}
	return nil
}

func (env *cliEnv) builder() *memo.StatisticsBuilder {
	var sb memo.StatisticsBuilder
	sb.Init(env.ctx, env.cfg)
	return &sb
}

func (env *cliEnv) loadRelations() error {
	if env.relations != nil {
		return nil
	}
	if env.statsFile == "" {
		return errors.New("--stats is required")
	}
	data, err := os.ReadFile(env.statsFile)
	if err != nil {
		return errors.Wrap(err, "reading statistics")
	}
	all, err := stats.ParseJSONStatistics(data)
	if err != nil {
		return err
	}
	env.relations = make(map[string]*stats.JSONStatistic, len(all))
	for i := range all {
		js := &all[i]
		if _, ok := env.relations[js.Name]; ok {
			return errors.Newf("statistics file lists relation %q twice", js.Name)
		}
		env.relations[js.Name] = js
	}
	log.VEventf(env.ctx, 1, "loaded %d relations from %s", len(all), env.statsFile)
	return nil
}

// relation returns the statistics of the named relation.
func (env *cliEnv) relation(name string) (*props.Statistics, error) {
	if err := env.loadRelations(); err != nil {
		return nil, err
	}
	js, ok := env.relations[name]
	if !ok {
		return nil, errors.Newf("no statistics for relation %q", name)
	}
	ts, err := js.TableStatistic()
	if err != nil {
		return nil, err
	}
	return env.builder().MakeTableStatistics(ts)
}

func colList(ids []int) opt.ColList {
	res := make(opt.ColList, len(ids))
	for i, id := range ids {
		res[i] = opt.ColumnID(id)
	}
	return res
}
