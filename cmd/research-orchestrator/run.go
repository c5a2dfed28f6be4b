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

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a research workflow for a query",
	Long: `Run drives the full research pipeline for a query: literature search,
knowledge synthesis, hypothesis generation, optional methodology design, and
validation. Every routing decision and outcome is recorded in the ledger
database so the run can be audited or resumed later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		if query == "" {
			return fmt.Errorf("--query is required")
		}

		apiKey := loadedSecrets.Anthropic(os.Getenv("ANTHROPIC_API_KEY"))
		if apiKey == "" {
			return fmt.Errorf("no Anthropic API key: add .secrets/anthropic-api-key or set ANTHROPIC_API_KEY")
		}

		cfg := buildConfig()
		if maxPapers, _ := cmd.Flags().GetInt("max-papers"); maxPapers > 0 {
			cfg.MaxPapers = maxPapers
		}
		if v, err := cmd.Flags().GetBool("design-methodologies"); err == nil && cmd.Flags().Changed("design-methodologies") {
			cfg.DesignMethodologies = v
		}
		if v, err := cmd.Flags().GetBool("follow-up-search"); err == nil && cmd.Flags().Changed("follow-up-search") {
			cfg.FollowUpSearch = v
		}

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
		state, l, err := orch.RunWithStore(cmd.Context(), query, store)
		if err != nil {
			return err
		}

		return emitRun(cmd, state, l.Entries())
	},
}

func init() {
	runCmd.Flags().String("query", "", "research question to investigate")
	runCmd.Flags().Int("max-papers", 0, "initial literature search width (0: config default)")
	runCmd.Flags().String("model", "claude-sonnet-4-5", "Claude model for analysis executors")
	runCmd.Flags().Bool("design-methodologies", false, "design experimental methodologies for validated hypotheses")
	runCmd.Flags().Bool("follow-up-search", false, "run a gap-driven follow-up literature search after synthesis")
	runCmd.Flags().String("out", "", "write a full report (state plus history) to this file")
	runCmd.Flags().Bool("json", false, "write the report as JSON instead of YAML")

	rootCmd.AddCommand(runCmd)
}
