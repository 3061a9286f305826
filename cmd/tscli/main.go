// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Command tscli is a thin, single-process CLI exercising the engine
// directly (no real host KV runtime behind it): every subcommand below
// mirrors one of the commands spec.md §6 lists as "delegated to the host,"
// parsing its own arguments into a validated request and calling straight
// into store/series/index/query, the way the host's command dispatcher
// would.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollie/valkey-timeseries-sub001/log"
	"github.com/ccollie/valkey-timeseries-sub001/store"
)

var cliLog = log.New("component", "tscli")

func main() {
	engine := store.NewEngine(nil)
	root := newRootCmd(engine)
	if err := root.Execute(); err != nil {
		cliLog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd(engine *store.Engine) *cobra.Command {
	var db int32

	root := &cobra.Command{
		Use:   "tscli",
		Short: "Exercise the embedded time-series engine from the command line",
	}
	root.PersistentFlags().Int32Var(&db, "db", 0, "database index")

	root.AddCommand(
		newCreateCmd(engine, &db),
		newAlterCmd(engine, &db),
		newDelCmd(engine, &db),
		newAddCmd(engine, &db),
		newMAddCmd(engine, &db),
		newAddBulkCmd(engine, &db),
		newMAddBulkCmd(engine, &db),
		newIncrByCmd(engine, &db, false),
		newIncrByCmd(engine, &db, true),
		newGetCmd(engine, &db),
		newMGetCmd(engine, &db),
		newRangeCmd(engine, &db, false),
		newRangeCmd(engine, &db, true),
		newMRangeCmd(engine, &db, false),
		newMRangeCmd(engine, &db, true),
		newQueryCmd(engine, &db),
		newQueryRangeCmd(engine, &db),
		newQueryIndexCmd(engine, &db),
		newJoinCmd(engine, &db),
		newCardCmd(engine, &db),
		newLabelNamesCmd(engine, &db),
		newLabelValuesCmd(engine, &db),
		newDeleteRuleCmd(engine, &db),
		newInfoCmd(engine, &db),
		newStatsCmd(engine, &db),
	)
	return root
}

func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.OutOrStderr(), err)
	return err
}
