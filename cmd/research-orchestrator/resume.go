// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-orchestrator/internal/executor"
	"github.com/pdiddy/research-orchestrator/internal/ledger"
	"github.com/pdiddy/research-orchestrator/internal/orchestrator"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its ledger",
	Long: `Resume replays a persisted run's ledger to reconstruct its state, then
continues execution from where it stopped. Executors that already succeeded
are not re-invoked: their results are carried in the reconstructed state.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		apiKey := loadedSecrets.Anthropic(os.Getenv("ANTHROPIC_API_KEY"))
		if apiKey == "" {
			return fmt.Errorf("no Anthropic API key: add .secrets/anthropic-api-key or set ANTHROPIC_API_KEY")
		}

		cfg := buildConfig()
		model, _ := cmd.Flags().GetString("model")
		ai := &executor.ClaudeBackend{APIKey: apiKey, Model: model}
		registry, err := executor.NewRegistry(
			&executor.LiteratureExecutor{Backends: []executor.SearchBackend{
				&executor.ArxivBackend{
					UserAgent: "research-orchestrator/" + version,
					APIKey:    loadedSecrets.Literature(),
				},
			}},
			&executor.SynthesisExecutor{AI: ai},
			&executor.HypothesisExecutor{AI: ai},
			&executor.MethodologyExecutor{AI: ai},
			&executor.ValidationExecutor{AI: ai},
		)
		if err != nil {
			return err
		}

		ledgerDir, _ := cmd.Flags().GetString("ledger-dir")
		store, err := ledger.NewSQLiteStore(ledgerDir)
		if err != nil {
			return err
		}
		defer store.Close()

		orch := orchestrator.New(cfg, registry, orchestrator.WithProgress(os.Stderr))
		state, l, err := orch.Resume(cmd.Context(), store, runID)
		if err != nil {
			return err
		}

		return emitRun(cmd, state, l.Entries())
	},
}

func init() {
	resumeCmd.Flags().String("model", "claude-sonnet-4-5", "Claude model for analysis executors")
	resumeCmd.Flags().String("out", "", "write a full report (state plus history) to this file")
	resumeCmd.Flags().Bool("json", false, "write the report as JSON instead of YAML")

	rootCmd.AddCommand(resumeCmd)
}
