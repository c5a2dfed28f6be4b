// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ResultKind tags an ExecutorResult. Executors classify their own failures
// at the boundary; the orchestrator acts only on this tag, never on raw
// errors from inside an executor.
type ResultKind string

const (
	ResultSuccess          ResultKind = "success"
	ResultPartialSuccess   ResultKind = "partial_success"
	ResultTransientFailure ResultKind = "transient_failure"
	ResultFatalFailure     ResultKind = "fatal_failure"
)

// StateDelta is the field-level change an executor proposes. The orchestrator
// merges it functionally into a new ResearchState; executors never touch the
// state they were handed.
//
// Merge semantics per field: Papers are appended with identifier-based
// dedup; Synthesis, Hypotheses, and Methodologies replace wholesale when
// set; Validations are appended; MaxPapers replaces when positive.
type StateDelta struct {
	Papers        []Paper       `json:"papers,omitempty" yaml:"papers,omitempty"`
	Synthesis     *Synthesis    `json:"synthesis,omitempty" yaml:"synthesis,omitempty"`
	Hypotheses    []Hypothesis  `json:"hypotheses,omitempty" yaml:"hypotheses,omitempty"`
	Methodologies []Methodology `json:"methodologies,omitempty" yaml:"methodologies,omitempty"`
	Validations   []Validation  `json:"validations,omitempty" yaml:"validations,omitempty"`
	MaxPapers     int           `json:"max_papers,omitempty" yaml:"max_papers,omitempty"`
}

// IsZero reports whether the delta proposes no change.
func (d StateDelta) IsZero() bool {
	return len(d.Papers) == 0 && d.Synthesis == nil && len(d.Hypotheses) == 0 &&
		len(d.Methodologies) == 0 && len(d.Validations) == 0 && d.MaxPapers == 0
}

// ExecutorResult is the four-way outcome of one executor invocation.
type ExecutorResult struct {
	// Kind tags the result.
	Kind ResultKind `json:"kind" yaml:"kind"`

	// Delta is the proposed state change, meaningful for success and
	// partial-success results.
	Delta StateDelta `json:"delta,omitempty" yaml:"delta,omitempty"`

	// Warning describes what was degraded in a partial success.
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	// Reason describes a transient or fatal failure.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Success returns a full-success result carrying delta.
func Success(delta StateDelta) ExecutorResult {
	return ExecutorResult{Kind: ResultSuccess, Delta: delta}
}

// PartialSuccess returns a degraded-success result carrying delta and a warning.
func PartialSuccess(delta StateDelta, warning string) ExecutorResult {
	return ExecutorResult{Kind: ResultPartialSuccess, Delta: delta, Warning: warning}
}

// TransientFailure returns a retryable failure result.
func TransientFailure(reason string) ExecutorResult {
	return ExecutorResult{Kind: ResultTransientFailure, Reason: reason}
}

// FatalFailure returns a non-retryable failure result.
func FatalFailure(reason string) ExecutorResult {
	return ExecutorResult{Kind: ResultFatalFailure, Reason: reason}
}

// Failed reports whether the result is a transient or fatal failure.
func (r ExecutorResult) Failed() bool {
	return r.Kind == ResultTransientFailure || r.Kind == ResultFatalFailure
}
