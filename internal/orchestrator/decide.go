// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"fmt"

	"github.com/pdiddy/research-orchestrator/internal/gates"
	"github.com/pdiddy/research-orchestrator/internal/ledger"
	"github.com/pdiddy/research-orchestrator/internal/retry"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// maxPapersCeiling caps how far retries may widen the literature net.
const maxPapersCeiling = 200

// Decide is the router: given the current state and ledger it returns the
// next routing decision. It is pure, with no hidden randomness or side
// effects, so identical inputs always produce identical decisions.
//
// Priority order, first match wins: terminal state; literature below gate;
// synthesis below gate; optional gap-driven follow-up search; hypotheses
// below gate; optional methodology design; uncovered validations; complete.
// A failed gate whose capability is out of attempts demotes to termination
// with partial results, and a capability that ever failed fatally escalates
// straight to termination.
func (o *Orchestrator) Decide(s types.ResearchState, l *ledger.Ledger) types.RoutingDecision {
	if s.Terminal {
		return types.Terminate(ReasonAlreadyDone)
	}

	rc := o.controller(l)
	g := o.cfg.Gates

	if lit := gates.Literature(s, g); len(s.Papers) == 0 || !lit.Passed {
		wider := types.Params{MaxResults: widen(s.MaxPapers)}
		return o.routeTo(rc, types.CapLiteratureSearch, types.Params{}, wider, lit.Diagnostic)
	}

	if syn := gates.Synthesis(s, g); s.Synthesis == nil || !syn.Passed {
		return o.routeTo(rc, types.CapKnowledgeSynthesis, types.Params{}, types.Params{}, syn.Diagnostic)
	}

	if d, ok := o.followUpDecision(rc, s); ok {
		return d
	}

	if hyp := gates.Hypothesis(s, g); len(s.Hypotheses) == 0 || !hyp.Passed {
		return o.routeTo(rc, types.CapHypothesisGeneration, types.Params{}, types.Params{}, hyp.Diagnostic)
	}

	if o.cfg.DesignMethodologies && len(s.Methodologies) == 0 {
		return o.routeTo(rc, types.CapMethodologyDesign, types.Params{}, types.Params{},
			fmt.Sprintf("no methodologies for %d hypotheses", len(s.Hypotheses)))
	}

	if ids := uncoveredIDs(s, g); len(ids) > 0 {
		params := types.Params{HypothesisIDs: ids}
		diag := gates.ValidationComplete(s, g).Diagnostic
		return o.routeTo(rc, types.CapValidation, params, params, diag)
	}

	return types.Terminate(ReasonComplete)
}

// routeTo selects invoke, retry, or the demotion paths for one capability.
// invokeParams apply to the first attempt, retryParams to later ones.
func (o *Orchestrator) routeTo(rc *retry.Controller, c types.Capability, invokeParams, retryParams types.Params, diag string) types.RoutingDecision {
	if rc.Fatal(c) {
		return types.Terminate(ReasonFatal)
	}

	attempts := rc.Attempts(c, false)
	if rc.Exhausted(c, false) {
		return types.Terminate(ReasonGateExhausted)
	}

	if attempts == 0 {
		d := types.Invoke(c, diag)
		d.Params = invokeParams
		return d
	}

	d := types.Retry(c, rc.Backoff(attempts), diag)
	d.Params = retryParams
	return d
}

// followUpDecision routes a gap-driven literature search after synthesis has
// passed its gate, when enabled. Exhausting the follow-up budget skips the
// step rather than terminating: follow-ups enrich, they are not required.
func (o *Orchestrator) followUpDecision(rc *retry.Controller, s types.ResearchState) (types.RoutingDecision, bool) {
	if !o.cfg.FollowUpSearch || s.Synthesis == nil || len(s.Synthesis.Gaps) == 0 {
		return types.RoutingDecision{}, false
	}
	if rc.Fatal(types.CapLiteratureSearch) || rc.Exhausted(types.CapLiteratureSearch, true) {
		return types.RoutingDecision{}, false
	}

	params := types.Params{
		MaxResults: widen(s.MaxPapers),
		FollowUp:   true,
	}
	diag := fmt.Sprintf("synthesis surfaced %d gaps", len(s.Synthesis.Gaps))

	if rc.Attempts(types.CapLiteratureSearch, true) == 0 {
		d := types.Invoke(types.CapLiteratureSearch, diag)
		d.Params = params
		return d, true
	}

	attempts := rc.Attempts(types.CapLiteratureSearch, true)
	d := types.Retry(types.CapLiteratureSearch, rc.Backoff(attempts), diag)
	d.Params = params
	return d, true
}

// widen doubles the paper cap for a retried or follow-up search, bounded.
func widen(maxPapers int) int {
	if maxPapers <= 0 {
		maxPapers = 20
	}
	if maxPapers*2 > maxPapersCeiling {
		return maxPapersCeiling
	}
	return maxPapers * 2
}
