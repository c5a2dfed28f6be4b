// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator implements the workflow core: a state-machine router
// that repeatedly decides which capability runs next, invokes it, merges the
// resulting delta into a new state version, and commits one ledger entry per
// cycle until a terminal decision is reached.
//
// The core is logically single-threaded per run: one routing decision is
// acted on at a time, and state transitions are functional (read snapshot,
// compute delta, commit new version), so no locks guard within-run state.
// Distinct runs are fully independent.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pdiddy/research-orchestrator/internal/executor"
	"github.com/pdiddy/research-orchestrator/internal/gates"
	"github.com/pdiddy/research-orchestrator/internal/ledger"
	"github.com/pdiddy/research-orchestrator/internal/retry"
	"github.com/pdiddy/research-orchestrator/internal/state"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Termination reasons surfaced on the terminal state.
const (
	ReasonComplete      = "workflow complete"
	ReasonAlreadyDone   = "already complete"
	ReasonGateExhausted = "quality gate exhausted: returning partial results"
	ReasonFatal         = "fatal dependency failure"
	ReasonCancelled     = "cancelled"
	ReasonCycleBudget   = "cycle budget exceeded"
)

// Orchestrator drives one or more research runs over a fixed executor set.
type Orchestrator struct {
	cfg      types.Config
	registry executor.Registry
	w        io.Writer

	// sleep waits out retry backoff; injectable so tests avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress directs human-readable progress output to w.
func WithProgress(w io.Writer) Option {
	return func(o *Orchestrator) { o.w = w }
}

// WithSleep replaces the backoff wait, used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// New returns an orchestrator over the given executor registry.
func New(cfg types.Config, registry executor.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		w:        io.Discard,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// stageFor maps a capability to the stage it completes.
func stageFor(c types.Capability) types.Stage {
	switch c {
	case types.CapLiteratureSearch:
		return types.StageSearching
	case types.CapKnowledgeSynthesis:
		return types.StageSynthesizing
	case types.CapHypothesisGeneration:
		return types.StageGenerating
	case types.CapMethodologyDesign:
		return types.StageDesigning
	case types.CapValidation:
		return types.StageValidating
	}
	return types.StageInitialized
}

// counterKey returns the attempt-counter key for a decision. Follow-up
// searches get their own bucket unless configured to share the ceiling.
func (o *Orchestrator) counterKey(d types.RoutingDecision) string {
	if d.Params.FollowUp && !o.cfg.FollowUpSharesCeiling {
		return string(d.Capability) + "_followup"
	}
	return string(d.Capability)
}

// Step performs one orchestration cycle: decide, invoke if the decision
// calls for it, merge the delta into a new state version, and commit
// exactly one ledger entry. A state that is already terminal is returned
// unchanged with no new entry.
func (o *Orchestrator) Step(ctx context.Context, s types.ResearchState, l *ledger.Ledger) (types.RoutingDecision, types.ResearchState, error) {
	decision := o.Decide(s, l)

	if decision.Kind == types.DecisionTerminate {
		if s.Terminal {
			// Idempotent no-op: the run is already frozen.
			return decision, s, nil
		}
		next := state.WithTerminal(s, decision.Reason, decision.Reason != ReasonComplete)
		entry := types.LedgerEntry{
			Decision:         decision,
			Outcome:          types.OutcomeNone,
			PrevStateVersion: state.Version(s),
			StateVersion:     state.Version(next),
		}
		if _, err := l.Append(ctx, entry, next); err != nil {
			return decision, s, err
		}
		fmt.Fprintf(o.w, "terminated: %s\n", decision.Reason)
		return decision, next, nil
	}

	// Honor the backoff hint before re-invoking.
	if decision.Kind == types.DecisionRetry && decision.Backoff > 0 {
		if err := o.sleep(ctx, decision.Backoff); err != nil {
			return decision, s, err
		}
	}

	started := time.Now()
	result := o.invoke(ctx, decision, s)
	duration := time.Since(started)

	// A cancelled run commits nothing from in-flight executors; the caller
	// commits the terminate entry.
	if ctx.Err() != nil {
		return decision, s, ctx.Err()
	}

	next := state.WithAttempt(s, o.counterKey(decision), stageFor(decision.Capability))

	outcome := types.OutcomeError
	diagnostic := result.Reason
	switch result.Kind {
	case types.ResultSuccess:
		next = state.Apply(next, result.Delta)
		outcome = types.OutcomeSuccess
	case types.ResultPartialSuccess:
		next = state.Apply(next, result.Delta)
		outcome = types.OutcomePartial
		diagnostic = result.Warning
	case types.ResultTransientFailure:
		if isTimeoutReason(result.Reason) {
			outcome = types.OutcomeTimeout
		}
	case types.ResultFatalFailure:
		// A fatal fan-out batch still carries the deltas of the calls that
		// succeeded before the escalation; commit them in this entry.
		if !result.Delta.IsZero() {
			next = state.Apply(next, result.Delta)
		}
	}

	entry := types.LedgerEntry{
		Decision:         decision,
		Outcome:          outcome,
		ResultKind:       result.Kind,
		Diagnostic:       diagnostic,
		Duration:         duration,
		PrevStateVersion: state.Version(s),
		StateVersion:     state.Version(next),
	}
	if _, err := l.Append(ctx, entry, next); err != nil {
		return decision, s, err
	}

	fmt.Fprintf(o.w, "cycle %d: %s %s -> %s (%.1fs)\n",
		l.Len(), decision.Kind, decision.Capability, outcome, duration.Seconds())

	return decision, next, nil
}

// invoke runs the decided capability under its mandatory per-invocation
// timeout. Validation over multiple hypotheses fans out concurrently.
func (o *Orchestrator) invoke(ctx context.Context, decision types.RoutingDecision, s types.ResearchState) types.ExecutorResult {
	exec, ok := o.registry.Lookup(decision.Capability)
	if !ok {
		return types.FatalFailure(fmt.Sprintf("no executor registered for %s", decision.Capability))
	}

	if decision.Capability == types.CapValidation && len(decision.Params.HypothesisIDs) > 1 {
		return o.fanOut(ctx, exec, decision, s)
	}

	return o.invokeOne(ctx, exec, decision.Params, s)
}

// invokeOne executes one call against a cloned snapshot with the
// capability's timeout applied. A timeout is reported as a transient
// failure.
func (o *Orchestrator) invokeOne(ctx context.Context, exec executor.Executor, params types.Params, s types.ResearchState) types.ExecutorResult {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout(exec.Capability()))
	defer cancel()

	snapshot := state.Clone(s)
	result := exec.Execute(callCtx, snapshot, params)

	if callCtx.Err() == context.DeadlineExceeded && result.Failed() {
		return types.TransientFailure("timeout")
	}
	return result
}

// fanOut invokes the validation executor once per hypothesis concurrently,
// bounded by the configured concurrency limit. Every invocation gets its own
// snapshot clone and timeout. Successful deltas are merged into one result
// committed as a single ledger entry; failed hypotheses stay uncovered and
// the router schedules their retry on a later cycle. A fatal failure
// escalates the whole result but keeps the batch's successful deltas.
func (o *Orchestrator) fanOut(ctx context.Context, exec executor.Executor, decision types.RoutingDecision, s types.ResearchState) types.ExecutorResult {
	limit := o.cfg.ValidationConcurrency
	if limit <= 0 {
		limit = 1
	}

	type fanResult struct {
		id     string
		result types.ExecutorResult
	}

	sem := make(chan struct{}, limit)
	results := make(chan fanResult, len(decision.Params.HypothesisIDs))
	var wg sync.WaitGroup

	for _, id := range decision.Params.HypothesisIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- fanResult{id: id, result: types.TransientFailure("timeout")}
				return
			}
			params := decision.Params
			params.HypothesisIDs = []string{id}
			results <- fanResult{id: id, result: o.invokeOne(ctx, exec, params, s)}
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var merged types.StateDelta
	var failures []string
	var fatal string
	for fr := range results {
		switch fr.result.Kind {
		case types.ResultSuccess, types.ResultPartialSuccess:
			merged.Validations = append(merged.Validations, fr.result.Delta.Validations...)
		case types.ResultFatalFailure:
			fatal = fmt.Sprintf("%s: %s", fr.id, fr.result.Reason)
		default:
			failures = append(failures, fmt.Sprintf("%s: %s", fr.id, fr.result.Reason))
		}
	}

	// Deterministic merge order regardless of goroutine scheduling.
	sortValidations(merged.Validations)

	switch {
	case fatal != "":
		return types.ExecutorResult{Kind: types.ResultFatalFailure, Delta: merged, Reason: fatal}
	case len(merged.Validations) == 0 && len(failures) > 0:
		return types.TransientFailure(fmt.Sprintf("all validations failed: %v", failures))
	case len(failures) > 0:
		return types.PartialSuccess(merged, fmt.Sprintf("%d of %d validations failed: %v",
			len(failures), len(decision.Params.HypothesisIDs), failures))
	}
	return types.Success(merged)
}

func sortValidations(vs []types.Validation) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j].HypothesisID < vs[j-1].HypothesisID; j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}

func isTimeoutReason(reason string) bool {
	return reason == "timeout" || len(reason) >= 7 && reason[:7] == "timeout"
}

// controller builds the retry controller reading attempt history from the
// run's ledger.
func (o *Orchestrator) controller(l *ledger.Ledger) *retry.Controller {
	return retry.NewController(o.cfg.Retry, l, o.cfg.FollowUpSharesCeiling)
}

// uncoveredIDs lists the hypothesis IDs the validation fan-out should cover,
// in the deterministic gate ordering.
func uncoveredIDs(s types.ResearchState, cfg types.GateConfig) []string {
	uncovered := gates.UncoveredHypotheses(s, cfg)
	ids := make([]string, len(uncovered))
	for i, h := range uncovered {
		ids[i] = h.ID
	}
	return ids
}
