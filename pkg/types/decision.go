// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Capability identifies one research step kind. The set is closed: routing
// targets outside this enumeration cannot be expressed.
type Capability string

const (
	CapLiteratureSearch     Capability = "literature_search"
	CapKnowledgeSynthesis   Capability = "knowledge_synthesis"
	CapHypothesisGeneration Capability = "hypothesis_generation"
	CapMethodologyDesign    Capability = "methodology_design"
	CapValidation           Capability = "validation"
)

// Capabilities lists every capability in routing order.
var Capabilities = []Capability{
	CapLiteratureSearch,
	CapKnowledgeSynthesis,
	CapHypothesisGeneration,
	CapMethodologyDesign,
	CapValidation,
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	for _, k := range Capabilities {
		if c == k {
			return true
		}
	}
	return false
}

// DecisionKind tags a RoutingDecision.
type DecisionKind string

const (
	DecisionInvoke    DecisionKind = "invoke"
	DecisionRetry     DecisionKind = "retry"
	DecisionTerminate DecisionKind = "terminate"
)

// Params carries capability-specific parameter overrides attached to a
// routing decision, such as a widened result cap on a search retry.
type Params struct {
	// MaxResults overrides the capability's result cap when positive.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`

	// HypothesisIDs restricts validation to the named hypotheses. Empty
	// means all uncovered hypotheses above the validation-worthy threshold.
	HypothesisIDs []string `json:"hypothesis_ids,omitempty" yaml:"hypothesis_ids,omitempty"`

	// FollowUp marks a literature search triggered by synthesis gaps rather
	// than the initial search phase.
	FollowUp bool `json:"follow_up,omitempty" yaml:"follow_up,omitempty"`
}

// RoutingDecision is the orchestrator's choice of next action for one cycle.
// Exactly one is produced per cycle, always by the orchestrator core and
// never by an executor.
type RoutingDecision struct {
	// Kind tags the decision: invoke, retry, or terminate.
	Kind DecisionKind `json:"kind" yaml:"kind"`

	// Capability is the step to run for invoke and retry decisions.
	Capability Capability `json:"capability,omitempty" yaml:"capability,omitempty"`

	// Params optionally overrides executor parameters for this invocation.
	Params Params `json:"params,omitempty" yaml:"params,omitempty"`

	// Backoff is the suggested delay before acting on a retry decision.
	Backoff time.Duration `json:"backoff,omitempty" yaml:"backoff,omitempty"`

	// Reason explains the decision; for terminate decisions this becomes
	// the state's termination reason.
	Reason string `json:"reason" yaml:"reason"`
}

// Invoke returns an invoke decision for the given capability.
func Invoke(c Capability, reason string) RoutingDecision {
	return RoutingDecision{Kind: DecisionInvoke, Capability: c, Reason: reason}
}

// Retry returns a retry decision with a backoff hint.
func Retry(c Capability, backoff time.Duration, reason string) RoutingDecision {
	return RoutingDecision{Kind: DecisionRetry, Capability: c, Backoff: backoff, Reason: reason}
}

// Terminate returns a terminate decision with the given reason.
func Terminate(reason string) RoutingDecision {
	return RoutingDecision{Kind: DecisionTerminate, Reason: reason}
}
