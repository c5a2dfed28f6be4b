// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/research-orchestrator/internal/ledger"
	"github.com/pdiddy/research-orchestrator/internal/state"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Run executes a complete research run for query and returns the terminal
// state plus the full ledger. The run always produces a result: failures
// degrade to a terminal state marked partial rather than an error, and the
// only error returns are ledger persistence problems.
func (o *Orchestrator) Run(ctx context.Context, query string) (types.ResearchState, *ledger.Ledger, error) {
	runID := uuid.NewString()
	s := types.NewResearchState(runID, query, o.cfg.MaxPapers)
	l := ledger.New(runID)
	fmt.Fprintf(o.w, "run %s: %q\n", runID, query)
	return o.loop(ctx, s, l)
}

// RunWithStore is Run with the ledger written through to a persistent store,
// enabling later resume and audit.
func (o *Orchestrator) RunWithStore(ctx context.Context, query string, store *ledger.SQLiteStore) (types.ResearchState, *ledger.Ledger, error) {
	runID := uuid.NewString()
	s := types.NewResearchState(runID, query, o.cfg.MaxPapers)

	if err := store.RegisterRun(ctx, runID, query, s.StartedAt); err != nil {
		return types.ResearchState{}, nil, err
	}

	l := ledger.New(runID).WithStore(store)
	fmt.Fprintf(o.w, "run %s: %q\n", runID, query)
	return o.loop(ctx, s, l)
}

// Resume reconstructs a persisted run from its ledger and continues it.
// Already-succeeded executors are not re-invoked: the reconstructed state
// carries their merged results, so routing proceeds from where the run
// stopped.
func (o *Orchestrator) Resume(ctx context.Context, store *ledger.SQLiteStore, runID string) (types.ResearchState, *ledger.Ledger, error) {
	l, s, err := ledger.Replay(ctx, store, runID)
	if err != nil {
		return types.ResearchState{}, nil, err
	}
	fmt.Fprintf(o.w, "resuming run %s at entry %d, stage %s\n", runID, l.Len(), s.Stage)
	return o.loop(ctx, s, l)
}

// loop drives cycles until the state is terminal. Termination is guaranteed:
// every cycle advances an attempt counter or sets terminal, attempts are
// bounded by the retry ceilings, and a cycle budget backstops the whole run.
func (o *Orchestrator) loop(ctx context.Context, s types.ResearchState, l *ledger.Ledger) (types.ResearchState, *ledger.Ledger, error) {
	budget := o.cycleBudget()

	for !s.Terminal {
		if ctx.Err() != nil {
			return o.terminate(ctx, s, l, ReasonCancelled)
		}
		if l.Len() >= budget {
			return o.terminate(ctx, s, l, ReasonCycleBudget)
		}

		_, next, err := o.Step(ctx, s, l)
		if err != nil {
			if ctx.Err() != nil {
				return o.terminate(ctx, s, l, ReasonCancelled)
			}
			return s, l, err
		}
		s = next
	}

	return s, l, nil
}

// terminate commits a termination entry outside the normal decision path,
// for cancellation and the cycle-budget backstop. The ledger write uses a
// context detached from the cancelled run so the entry is not lost.
func (o *Orchestrator) terminate(ctx context.Context, s types.ResearchState, l *ledger.Ledger, reason string) (types.ResearchState, *ledger.Ledger, error) {
	next := state.WithTerminal(s, reason, true)
	entry := types.LedgerEntry{
		Decision:         types.Terminate(reason),
		Outcome:          types.OutcomeNone,
		PrevStateVersion: state.Version(s),
		StateVersion:     state.Version(next),
	}
	if _, err := l.Append(context.WithoutCancel(ctx), entry, next); err != nil {
		return s, l, err
	}
	fmt.Fprintf(o.w, "terminated: %s\n", reason)
	return next, l, nil
}

// cycleBudget bounds the number of cycles a run may take: the sum of every
// capability's retry ceiling (follow-up bucket included), one terminate
// entry, and slack for partial-coverage validation rounds.
func (o *Orchestrator) cycleBudget() int {
	budget := 1
	for _, c := range types.Capabilities {
		budget += o.cfg.Retry.Ceiling(c)
	}
	if o.cfg.FollowUpSearch && !o.cfg.FollowUpSharesCeiling {
		budget += o.cfg.Retry.Ceiling(types.CapLiteratureSearch)
	}
	return budget + len(types.Capabilities)
}
