// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// cardest is a developer tool that runs the cardinality estimator on
// statistics stored as JSON. It is useful to check how an estimate is
// derived without building a query plan.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func makeCardestCommand() *cobra.Command {
	env := &cliEnv{format: formatTable}
	command := &cobra.Command{
		Use:   "cardest [command] (flags)",
		Short: "cardest estimates the cardinality of relational operators from table statistics.",
		Long: `cardest estimates the cardinality of relational operators from table statistics.

Statistics are read from a JSON file holding an array of named relations.
Every relation lists the statistics of its columns, identified by column ID.
The relations passed to a binary operator must not share column IDs.

Typical usage:
    cardest collect --types int,string --name t data.csv > stats.json
        Collect the statistics of the columns of a CSV file.

    cardest filter t "@1 < 35 AND @2 IN ('a', 'b')" --stats stats.json
        Estimate a filter on the relation t.

    cardest join t u '@1 = @3' --type semi --stats stats.json
        Estimate a semi join of t and u.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.init(cmd)
		},
	}
	env.addFlags(command.PersistentFlags())

	// Add subcommands.
	command.AddCommand(makeShowCommand(env))
	command.AddCommand(makeFilterCommand(env))
	command.AddCommand(makeJoinCommand(env))
	command.AddCommand(makeLimitCommand(env))
	command.AddCommand(makeGroupByCommand(env))
	command.AddCommand(makeUnionAllCommand(env))
	command.AddCommand(makeProjectCommand(env))
	command.AddCommand(makeCollectCommand(env))
	return command
}

func main() {
	cmd := makeCardestCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
