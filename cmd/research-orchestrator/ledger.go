// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-orchestrator/internal/ledger"
	"github.com/pdiddy/research-orchestrator/internal/report"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect persisted runs and their execution history",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-38s  %-20s  %-7s  %s\n", "Run ID", "Started", "Entries", "Query")
		for _, r := range runs {
			fmt.Fprintf(w, "%-38s  %-20s  %-7d  %s\n",
				r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Entries, r.Query)
		}
		return nil
	},
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's decision history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.LoadEntries(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		report.FormatHistory(entries, cmd.OutOrStdout())
		return nil
	},
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's final state and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.LoadEntries(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("run %s has no ledger entries", args[0])
		}

		head := entries[len(entries)-1]
		state, err := store.LoadSnapshot(cmd.Context(), head.StateVersion)
		if err != nil {
			return err
		}

		export := report.Export{State: state, History: entries}
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return report.WriteJSON(export, cmd.OutOrStdout())
		}
		return report.WriteYAML(export, cmd.OutOrStdout())
	},
}

func openStore(cmd *cobra.Command) (*ledger.SQLiteStore, error) {
	dir, _ := cmd.Flags().GetString("ledger-dir")
	return ledger.NewSQLiteStore(dir)
}

func init() {
	ledgerExportCmd.Flags().Bool("json", false, "export as JSON instead of YAML")

	ledgerCmd.AddCommand(ledgerListCmd, ledgerShowCmd, ledgerExportCmd)
	rootCmd.AddCommand(ledgerCmd)
}
