// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger implements the execution ledger: an append-only record of
// every routing decision and executor invocation in a run. The ledger is the
// sole source of truth for how a run got to its current state; attempt
// counts are derived from it, and a persisted ledger is what a resumed run
// replays.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Ledger is the append-only history of one run. State snapshots are held by
// content-addressed version and referenced from entries, never re-embedded
// per entry.
type Ledger struct {
	runID     string
	entries   []types.LedgerEntry
	snapshots map[string]types.ResearchState
	store     Store
}

// New returns an empty in-memory ledger for the run.
func New(runID string) *Ledger {
	return &Ledger{
		runID:     runID,
		snapshots: map[string]types.ResearchState{},
	}
}

// WithStore attaches a persistent store; every subsequent append is written
// through to it.
func (l *Ledger) WithStore(store Store) *Ledger {
	l.store = store
	return l
}

// RunID returns the run this ledger records.
func (l *Ledger) RunID() string { return l.runID }

// Append commits one entry and the state version it produced. The sequence
// number and run ID are assigned here; callers supply everything else.
func (l *Ledger) Append(ctx context.Context, entry types.LedgerEntry, newState types.ResearchState) (types.LedgerEntry, error) {
	entry.Seq = len(l.entries) + 1
	entry.RunID = l.runID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if l.store != nil {
		if err := l.store.SaveSnapshot(ctx, entry.StateVersion, newState); err != nil {
			return types.LedgerEntry{}, fmt.Errorf("persisting snapshot %s: %w", entry.StateVersion, err)
		}
		if err := l.store.AppendEntry(ctx, entry); err != nil {
			return types.LedgerEntry{}, fmt.Errorf("persisting ledger entry %d: %w", entry.Seq, err)
		}
	}

	l.entries = append(l.entries, entry)
	l.snapshots[entry.StateVersion] = newState
	return entry, nil
}

// Entries returns a copy of the entry history.
func (l *Ledger) Entries() []types.LedgerEntry {
	return append([]types.LedgerEntry(nil), l.entries...)
}

// Len returns the number of committed entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Last returns the most recent entry, if any.
func (l *Ledger) Last() (types.LedgerEntry, bool) {
	if len(l.entries) == 0 {
		return types.LedgerEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Snapshot returns the state recorded under a content-addressed version.
func (l *Ledger) Snapshot(version string) (types.ResearchState, bool) {
	s, ok := l.snapshots[version]
	return s, ok
}

// HeadState returns the state produced by the most recent entry.
func (l *Ledger) HeadState() (types.ResearchState, bool) {
	last, ok := l.Last()
	if !ok {
		return types.ResearchState{}, false
	}
	return l.Snapshot(last.StateVersion)
}

// Attempts returns how many non-follow-up invocation attempts have been
// made for the capability. This is the source of truth the retry controller
// reads.
func (l *Ledger) Attempts(c types.Capability) int {
	n := 0
	for _, e := range l.entries {
		if e.CountsAsAttempt() && e.Decision.Capability == c && !e.Decision.Params.FollowUp {
			n++
		}
	}
	return n
}

// FollowUpAttempts returns how many follow-up invocation attempts have been
// made for the capability.
func (l *Ledger) FollowUpAttempts(c types.Capability) int {
	n := 0
	for _, e := range l.entries {
		if e.CountsAsAttempt() && e.Decision.Capability == c && e.Decision.Params.FollowUp {
			n++
		}
	}
	return n
}

// HasFatal reports whether the capability has ever failed with a
// classified-fatal result in this run.
func (l *Ledger) HasFatal(c types.Capability) bool {
	for _, e := range l.entries {
		if e.Decision.Capability == c && e.ResultKind == types.ResultFatalFailure {
			return true
		}
	}
	return false
}

// Replay reconstructs a ledger and its head state from a persisted run. The
// returned ledger continues appending to the same store, so a resumed run
// extends the original history rather than starting a new one.
func Replay(ctx context.Context, store Store, runID string) (*Ledger, types.ResearchState, error) {
	entries, err := store.LoadEntries(ctx, runID)
	if err != nil {
		return nil, types.ResearchState{}, fmt.Errorf("loading ledger for run %s: %w", runID, err)
	}
	if len(entries) == 0 {
		return nil, types.ResearchState{}, fmt.Errorf("run %s has no ledger entries", runID)
	}

	l := New(runID).WithStore(store)
	l.entries = entries

	head := entries[len(entries)-1]
	st, err := store.LoadSnapshot(ctx, head.StateVersion)
	if err != nil {
		return nil, types.ResearchState{}, fmt.Errorf("loading snapshot %s: %w", head.StateVersion, err)
	}
	l.snapshots[head.StateVersion] = st

	return l, st, nil
}
