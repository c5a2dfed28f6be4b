// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a completed run for humans and for export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Export bundles the terminal state and full ledger history for
// serialization.
type Export struct {
	State   types.ResearchState `json:"state" yaml:"state"`
	History []types.LedgerEntry `json:"history" yaml:"history"`
}

// WriteYAML writes the export as YAML to w.
func WriteYAML(e Export, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encoding report YAML: %w", err)
	}
	return nil
}

// WriteJSON writes the export as indented JSON to w.
func WriteJSON(e Export, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encoding report JSON: %w", err)
	}
	return nil
}

// FormatSummary writes a human-readable run summary to w.
func FormatSummary(s types.ResearchState, entries []types.LedgerEntry, w io.Writer) {
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintf(w, "Query: %s\n", s.Query)

	status := s.TerminationReason
	if s.Partial {
		status += " (partial)"
	}
	fmt.Fprintf(w, "Status: %s\n", status)
	fmt.Fprintf(w, "Cycles: %d\n\n", len(entries))

	fmt.Fprintf(w, "Papers: %d\n", len(s.Papers))
	for i, p := range s.Papers {
		if i >= 10 {
			fmt.Fprintf(w, "  ... and %d more\n", len(s.Papers)-10)
			break
		}
		fmt.Fprintf(w, "  %-14s %.2f  %s\n", p.ID, p.RelevanceScore, truncate(p.Title, 70))
	}

	if s.Synthesis != nil {
		fmt.Fprintf(w, "\nThemes (confidence %.2f):\n", s.Synthesis.Confidence)
		for _, t := range s.Synthesis.Themes {
			fmt.Fprintf(w, "  - %s\n", t)
		}
		for _, g := range s.Synthesis.Gaps {
			fmt.Fprintf(w, "  gap: %s\n", g)
		}
	}

	if len(s.Hypotheses) > 0 {
		verdicts := make(map[string]types.Validation, len(s.Validations))
		for _, v := range s.Validations {
			verdicts[v.HypothesisID] = v
		}

		fmt.Fprintf(w, "\nHypotheses:\n")
		for _, h := range s.Hypotheses {
			line := fmt.Sprintf("  [%s] %.2f  %s", h.ID, h.Confidence, truncate(h.Text, 70))
			if v, ok := verdicts[h.ID]; ok {
				line += fmt.Sprintf("  -> %s (%.2f)", v.Verdict, v.Score)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(s.Methodologies) > 0 {
		fmt.Fprintf(w, "\nMethodologies: %d designed\n", len(s.Methodologies))
	}
}

// FormatHistory writes the ledger entries as a table to w.
func FormatHistory(entries []types.LedgerEntry, w io.Writer) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No ledger entries.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-9s  %-22s  %-8s  %-8s  %s\n",
		"Seq", "Decision", "Capability", "Outcome", "Secs", "Diagnostic")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, e := range entries {
		fmt.Fprintf(w, "%-4d  %-9s  %-22s  %-8s  %-8.1f  %s\n",
			e.Seq, e.Decision.Kind, e.Decision.Capability, e.Outcome,
			e.Duration.Seconds(), truncate(firstNonEmpty(e.Diagnostic, e.Decision.Reason), 40))
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
