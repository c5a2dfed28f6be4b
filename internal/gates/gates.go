// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gates implements the quality gates: pure, stateless predicates
// over ResearchState that decide whether a prior step's output is good
// enough to proceed. Gates never mutate state and never fail with an error;
// a failed gate is conveyed as a boolean plus a diagnostic string that the
// orchestrator attaches to the ledger entry.
package gates

import (
	"fmt"
	"sort"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Result is the outcome of evaluating one gate.
type Result struct {
	// Passed reports whether the gate is satisfied.
	Passed bool

	// Diagnostic explains the outcome in one line.
	Diagnostic string
}

func pass(format string, args ...any) Result {
	return Result{Passed: true, Diagnostic: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) Result {
	return Result{Passed: false, Diagnostic: fmt.Sprintf(format, args...)}
}

// Literature passes when enough papers are held and the mean relevance of
// the top-N papers meets the configured floor.
func Literature(s types.ResearchState, cfg types.GateConfig) Result {
	if len(s.Papers) < cfg.MinPapers {
		return fail("%d papers held, %d required", len(s.Papers), cfg.MinPapers)
	}

	mean := topNMeanRelevance(s.Papers, cfg.TopN)
	if mean < cfg.MinRelevance {
		return fail("top-%d mean relevance %.2f below %.2f", cfg.TopN, mean, cfg.MinRelevance)
	}
	return pass("%d papers, top-%d mean relevance %.2f", len(s.Papers), cfg.TopN, mean)
}

// Synthesis passes when a synthesis exists with sufficient confidence and
// theme count.
func Synthesis(s types.ResearchState, cfg types.GateConfig) Result {
	if s.Synthesis == nil {
		return fail("no synthesis")
	}
	if s.Synthesis.Confidence < cfg.MinSynthesisConfidence {
		return fail("synthesis confidence %.2f below %.2f", s.Synthesis.Confidence, cfg.MinSynthesisConfidence)
	}
	if len(s.Synthesis.Themes) < cfg.MinThemes {
		return fail("%d themes identified, %d required", len(s.Synthesis.Themes), cfg.MinThemes)
	}
	return pass("synthesis confidence %.2f, %d themes", s.Synthesis.Confidence, len(s.Synthesis.Themes))
}

// Hypothesis passes when at least one hypothesis reaches the configured
// confidence floor.
func Hypothesis(s types.ResearchState, cfg types.GateConfig) Result {
	if len(s.Hypotheses) == 0 {
		return fail("no hypotheses")
	}
	best := s.BestHypothesisConfidence()
	if best < cfg.MinHypothesisConfidence {
		return fail("best hypothesis confidence %.2f below %.2f", best, cfg.MinHypothesisConfidence)
	}
	return pass("%d hypotheses, best confidence %.2f", len(s.Hypotheses), best)
}

// ValidationComplete passes when every hypothesis at or above the
// validation-worthy threshold has a validation record.
func ValidationComplete(s types.ResearchState, cfg types.GateConfig) Result {
	uncovered := UncoveredHypotheses(s, cfg)
	if len(uncovered) > 0 {
		return fail("%d of %d validation-worthy hypotheses unvalidated", len(uncovered), worthyCount(s, cfg))
	}
	return pass("all %d validation-worthy hypotheses validated", worthyCount(s, cfg))
}

// UncoveredHypotheses returns the hypotheses at or above the validation-worthy
// threshold that lack a validation record, ordered by confidence descending
// with hypothesis ID as the tie-break so fan-out selection is deterministic.
func UncoveredHypotheses(s types.ResearchState, cfg types.GateConfig) []types.Hypothesis {
	validated := s.ValidatedIDs()

	var uncovered []types.Hypothesis
	for _, h := range s.Hypotheses {
		if h.Confidence >= cfg.ValidationWorthyThreshold && !validated[h.ID] {
			uncovered = append(uncovered, h)
		}
	}

	sort.Slice(uncovered, func(i, j int) bool {
		if uncovered[i].Confidence != uncovered[j].Confidence {
			return uncovered[i].Confidence > uncovered[j].Confidence
		}
		return uncovered[i].ID < uncovered[j].ID
	})

	return uncovered
}

func worthyCount(s types.ResearchState, cfg types.GateConfig) int {
	n := 0
	for _, h := range s.Hypotheses {
		if h.Confidence >= cfg.ValidationWorthyThreshold {
			n++
		}
	}
	return n
}

// topNMeanRelevance averages the relevance of the n highest-scoring papers.
// When n is zero or exceeds the paper count, all papers are averaged.
func topNMeanRelevance(papers []types.Paper, n int) float64 {
	if len(papers) == 0 {
		return 0
	}

	scores := make([]float64, len(papers))
	for i, p := range papers {
		scores[i] = p.RelevanceScore
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	if n <= 0 || n > len(scores) {
		n = len(scores)
	}

	sum := 0.0
	for _, s := range scores[:n] {
		sum += s
	}
	return sum / float64(n)
}
