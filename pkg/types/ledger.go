// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Outcome classifies what happened after a routing decision was acted on.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
	OutcomeNone    Outcome = "none"
)

// LedgerEntry is one immutable record in the execution ledger: the decision
// taken on a cycle, what it led to, and the state version it produced. The
// ledger is the sole source of truth for how a run got to its current state,
// and is what a resumed run replays.
type LedgerEntry struct {
	// Seq is the entry's position in the run, starting at 1.
	Seq int `json:"seq" yaml:"seq"`

	// RunID identifies the run this entry belongs to.
	RunID string `json:"run_id" yaml:"run_id"`

	// Timestamp is when the entry was committed.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Decision is the routing decision taken this cycle.
	Decision RoutingDecision `json:"decision" yaml:"decision"`

	// Outcome classifies the invocation result; OutcomeNone for terminate
	// decisions, which invoke nothing.
	Outcome Outcome `json:"outcome" yaml:"outcome"`

	// ResultKind is the executor result tag behind the outcome, empty for
	// terminate decisions. It distinguishes transient from fatal errors so
	// a resumed run applies the same retry policy.
	ResultKind ResultKind `json:"result_kind,omitempty" yaml:"result_kind,omitempty"`

	// Diagnostic carries gate diagnostics and failure reasons for the entry.
	Diagnostic string `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`

	// Duration is how long the invocation took, zero for terminate decisions.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// PrevStateVersion is the content-addressed version the cycle started from.
	PrevStateVersion string `json:"prev_state_version" yaml:"prev_state_version"`

	// StateVersion is the content-addressed version the cycle produced.
	StateVersion string `json:"state_version" yaml:"state_version"`
}

// CountsAsAttempt reports whether the entry represents an invocation attempt
// of its capability (invoke and retry decisions do; terminate does not).
func (e LedgerEntry) CountsAsAttempt() bool {
	return e.Decision.Kind == DecisionInvoke || e.Decision.Kind == DecisionRetry
}
