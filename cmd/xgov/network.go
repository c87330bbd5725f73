package main

import (
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Inspect the ledger and the registry",
}

var networkStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger position and registry totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		defer closeClient(c)

		ns, err := c.Registry().NetworkStats(cmd.Context())
		if err != nil {
			return err
		}
		rs, err := c.Registry().Stats(cmd.Context())
		if err != nil {
			return err
		}

		txCount, err := c.Registry().TransactionCount(cmd.Context())
		if err != nil {
			return err
		}

		blockTime := "unknown"
		if ns.BlockTime != nil {
			blockTime = ns.BlockTime.UTC().Format(time.RFC3339)
		}
		return pterm.DefaultTable.WithData(pterm.TableData{
			{"Network", globalFlags.Network},
			{"Current slot", strconv.FormatUint(ns.CurrentSlot, 10)},
			{"Block time", blockTime},
			{"Epoch", strconv.FormatUint(ns.Epoch, 10)},
			{"Slot index", strconv.FormatUint(ns.SlotIndex, 10)},
			{"Program txs (recent)", strconv.Itoa(txCount)},
			{"Providers", strconv.Itoa(rs.TotalProviders)},
			{"Successful txs", strconv.FormatUint(rs.TotalSuccessfulTxs, 10)},
			{"Average reputation", strconv.FormatFloat(rs.AverageReputation, 'f', 1, 64)},
		}).Render()
	},
}

func init() {
	networkCmd.AddCommand(networkStatsCmd)
}
