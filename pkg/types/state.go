// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for the research workflow
// orchestrator: the versioned research state, routing decisions, executor
// results, ledger entries, and configuration.
package types

import "time"

// Stage names the logically last-completed workflow step. It advances
// monotonically through the workflow; routing may schedule the same step
// kind again after stage completion, but the stage itself never reverses.
type Stage string

const (
	StageInitialized  Stage = "initialized"
	StageSearching    Stage = "searching"
	StageSynthesizing Stage = "synthesizing"
	StageGenerating   Stage = "generating"
	StageDesigning    Stage = "designing"
	StageValidating   Stage = "validating"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// stageOrder defines the logical progression used by Stage.Before.
var stageOrder = map[Stage]int{
	StageInitialized:  0,
	StageSearching:    1,
	StageSynthesizing: 2,
	StageGenerating:   3,
	StageDesigning:    4,
	StageValidating:   5,
	StageCompleted:    6,
	StageFailed:       6,
}

// Before reports whether s is logically earlier than other.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// Paper is one evidence item gathered by literature search.
type Paper struct {
	// ID is a stable identifier for the paper (e.g. an arXiv ID or DOI).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Abstract is the paper abstract, when the source provides one.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// RelevanceScore is the source-assigned relevance in [0,1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// Source identifies which backend provided the paper.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Metadata carries source-specific fields the orchestrator does not
	// interpret (venue, publication date, URLs).
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Contradiction is a pair of conflicting findings surfaced by synthesis.
type Contradiction struct {
	// Claim is the first of the two conflicting statements.
	Claim string `json:"claim" yaml:"claim"`

	// CounterClaim is the statement that conflicts with Claim.
	CounterClaim string `json:"counter_claim" yaml:"counter_claim"`
}

// Synthesis is the structured output of the knowledge synthesis step.
// It is replaced wholesale each time the synthesis executor runs.
type Synthesis struct {
	// Themes lists the recurring themes identified across papers.
	Themes []string `json:"themes" yaml:"themes"`

	// Contradictions lists pairs of conflicting findings.
	Contradictions []Contradiction `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`

	// Gaps lists open questions the literature does not answer.
	Gaps []string `json:"gaps,omitempty" yaml:"gaps,omitempty"`

	// Confidence is the synthesizer's self-assessed confidence in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Hypothesis is one generated research hypothesis. Hypotheses are never
// mutated in place; regeneration produces a new sequence that supersedes
// the old one, with the ledger retaining history.
type Hypothesis struct {
	// ID is a stable identifier for the hypothesis within the run.
	ID string `json:"id" yaml:"id"`

	// Text is the hypothesis statement.
	Text string `json:"text" yaml:"text"`

	// Confidence is the generator's confidence in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// SupportingEvidenceIDs lists paper IDs the hypothesis draws on.
	SupportingEvidenceIDs []string `json:"supporting_evidence_ids,omitempty" yaml:"supporting_evidence_ids,omitempty"`
}

// Methodology describes an experimental approach for testing a hypothesis.
type Methodology struct {
	// HypothesisID references the hypothesis this methodology tests.
	HypothesisID string `json:"hypothesis_id" yaml:"hypothesis_id"`

	// Approach summarizes the experimental design.
	Approach string `json:"approach" yaml:"approach"`

	// Steps lists the concrete procedure in order.
	Steps []string `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Limitations lists known weaknesses of the design.
	Limitations []string `json:"limitations,omitempty" yaml:"limitations,omitempty"`
}

// Verdict classifies the outcome of validating one hypothesis.
type Verdict string

const (
	VerdictSupported    Verdict = "supported"
	VerdictContested    Verdict = "contested"
	VerdictInconclusive Verdict = "inconclusive"
)

// Validation records the result of validating one hypothesis.
type Validation struct {
	// HypothesisID references the validated hypothesis.
	HypothesisID string `json:"hypothesis_id" yaml:"hypothesis_id"`

	// Verdict is the validation outcome: supported, contested, or inconclusive.
	Verdict Verdict `json:"verdict" yaml:"verdict"`

	// Rationale explains the verdict.
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`

	// Score is the validator's confidence in the verdict, in [0,1].
	Score float64 `json:"score" yaml:"score"`
}

// ResearchState is the aggregate for one research run. It is immutable by
// convention: each orchestrator cycle derives a new value from the previous
// one plus an executor delta; nothing mutates a committed state in place.
type ResearchState struct {
	// RunID identifies the research run across state versions.
	RunID string `json:"run_id" yaml:"run_id"`

	// Query is the original research question.
	Query string `json:"query" yaml:"query"`

	// MaxPapers caps how many papers literature search may request. Retries
	// may raise it to widen the net.
	MaxPapers int `json:"max_papers" yaml:"max_papers"`

	// Papers is the evidence gathered so far. Append-only across the run;
	// new items are merged in by identifier, never destructively removed.
	Papers []Paper `json:"papers,omitempty" yaml:"papers,omitempty"`

	// Synthesis is the latest synthesis output, nil until the synthesis
	// executor has run.
	Synthesis *Synthesis `json:"synthesis,omitempty" yaml:"synthesis,omitempty"`

	// Hypotheses is the current hypothesis set. Regeneration supersedes the
	// whole sequence.
	Hypotheses []Hypothesis `json:"hypotheses,omitempty" yaml:"hypotheses,omitempty"`

	// Methodologies holds the experimental designs, one per hypothesis,
	// replaced wholesale when the designer runs.
	Methodologies []Methodology `json:"methodologies,omitempty" yaml:"methodologies,omitempty"`

	// Validations accumulates validation records across cycles.
	Validations []Validation `json:"validations,omitempty" yaml:"validations,omitempty"`

	// AttemptCounters maps attempt-counter keys (usually capability names)
	// to the number of invocations made. The ledger is the source of truth;
	// this mirror exists so a state value is self-describing.
	AttemptCounters map[string]int `json:"attempt_counters,omitempty" yaml:"attempt_counters,omitempty"`

	// Stage names the logically last-completed step.
	Stage Stage `json:"stage" yaml:"stage"`

	// Terminal is true once the run has ended; a terminal state is frozen
	// and no further executor invocation is permitted.
	Terminal bool `json:"terminal" yaml:"terminal"`

	// TerminationReason is the human-readable reason the run ended.
	TerminationReason string `json:"termination_reason,omitempty" yaml:"termination_reason,omitempty"`

	// Partial is true when the run terminated before all quality gates
	// passed and the results should be treated as best-effort.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

// NewResearchState returns the initial state for a run.
func NewResearchState(runID, query string, maxPapers int) ResearchState {
	return ResearchState{
		RunID:           runID,
		Query:           query,
		MaxPapers:       maxPapers,
		AttemptCounters: map[string]int{},
		Stage:           StageInitialized,
		StartedAt:       time.Now().UTC(),
	}
}

// BestHypothesisConfidence returns the highest confidence among the current
// hypotheses, or 0 when there are none.
func (s ResearchState) BestHypothesisConfidence() float64 {
	best := 0.0
	for _, h := range s.Hypotheses {
		if h.Confidence > best {
			best = h.Confidence
		}
	}
	return best
}

// ValidatedIDs returns the set of hypothesis IDs that already have a
// validation record.
func (s ResearchState) ValidatedIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Validations))
	for _, v := range s.Validations {
		ids[v.HypothesisID] = true
	}
	return ids
}
