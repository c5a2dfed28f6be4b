// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-orchestrator/internal/report"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// emitRun prints the run summary to stdout and, when --out is set, writes
// the full report (terminal state plus ledger history) to a file.
func emitRun(cmd *cobra.Command, s types.ResearchState, entries []types.LedgerEntry) error {
	report.FormatSummary(s, entries, cmd.OutOrStdout())

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return nil
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	export := report.Export{State: s, History: entries}
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		if err := report.WriteJSON(export, f); err != nil {
			return err
		}
	} else {
		if err := report.WriteYAML(export, f); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Report written to %s\n", out)
	return nil
}
