// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/research-orchestrator/internal/executor"
	"github.com/pdiddy/research-orchestrator/internal/ledger"
	"github.com/pdiddy/research-orchestrator/internal/state"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// stubExecutor adapts a function to the Executor interface.
type stubExecutor struct {
	capability types.Capability
	fn         func(ctx context.Context, snapshot types.ResearchState, params types.Params) types.ExecutorResult
}

func (s *stubExecutor) Capability() types.Capability { return s.capability }

func (s *stubExecutor) Execute(ctx context.Context, snapshot types.ResearchState, params types.Params) types.ExecutorResult {
	return s.fn(ctx, snapshot, params)
}

func stub(c types.Capability, fn func(ctx context.Context, snapshot types.ResearchState, params types.Params) types.ExecutorResult) *stubExecutor {
	return &stubExecutor{capability: c, fn: fn}
}

// happyRegistry returns executors that succeed on first invocation with
// gate-passing output.
func happyRegistry(t *testing.T) executor.Registry {
	t.Helper()
	r, err := executor.NewRegistry(
		stub(types.CapLiteratureSearch, func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.Success(types.StateDelta{Papers: passingPapers()})
		}),
		stub(types.CapKnowledgeSynthesis, func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.Success(types.StateDelta{Synthesis: passingSynthesis()})
		}),
		stub(types.CapHypothesisGeneration, func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.Success(types.StateDelta{Hypotheses: []types.Hypothesis{
				{ID: "hyp-1-1", Text: "h1", Confidence: 0.8},
				{ID: "hyp-1-2", Text: "h2", Confidence: 0.6},
			}})
		}),
		stub(types.CapMethodologyDesign, func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.Success(types.StateDelta{Methodologies: []types.Methodology{
				{HypothesisID: "hyp-1-1", Approach: "ablation"},
			}})
		}),
		stub(types.CapValidation, func(_ context.Context, _ types.ResearchState, params types.Params) types.ExecutorResult {
			var vs []types.Validation
			for _, id := range params.HypothesisIDs {
				vs = append(vs, types.Validation{HypothesisID: id, Verdict: types.VerdictSupported, Score: 0.8})
			}
			return types.Success(types.StateDelta{Validations: vs})
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestRunHappyPath(t *testing.T) {
	o := New(testConfig(), happyRegistry(t), WithSleep(noSleep))

	s, l, err := o.Run(context.Background(), "sparse attention mechanisms")
	if err != nil {
		t.Fatal(err)
	}

	if !s.Terminal {
		t.Fatal("run did not reach a terminal state")
	}
	if s.TerminationReason != ReasonComplete {
		t.Errorf("termination reason = %q, want %q", s.TerminationReason, ReasonComplete)
	}
	if s.Partial {
		t.Error("complete run marked partial")
	}
	if s.Stage != types.StageCompleted {
		t.Errorf("stage = %s, want completed", s.Stage)
	}
	if len(s.Papers) != 5 || s.Synthesis == nil || len(s.Hypotheses) != 2 {
		t.Errorf("state incomplete: %d papers, synthesis=%v, %d hypotheses",
			len(s.Papers), s.Synthesis != nil, len(s.Hypotheses))
	}
	if len(s.Validations) != 2 {
		t.Errorf("validations = %d, want 2", len(s.Validations))
	}

	// One entry per capability invocation plus the terminate entry.
	if l.Len() != 5 {
		t.Errorf("ledger entries = %d, want 5", l.Len())
	}
	last, _ := l.Last()
	if last.Decision.Kind != types.DecisionTerminate {
		t.Errorf("last entry = %s, want terminate", last.Decision.Kind)
	}
}

func TestRunAlwaysTerminates(t *testing.T) {
	// Every executor always fails transiently: the run must still reach a
	// terminal state within the cycle budget.
	var execs []executor.Executor
	for _, c := range types.Capabilities {
		execs = append(execs, stub(c, func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.TransientFailure("dependency down")
		}))
	}
	r, err := executor.NewRegistry(execs...)
	if err != nil {
		t.Fatal(err)
	}

	o := New(testConfig(), r, WithSleep(noSleep))
	s, l, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}

	if !s.Terminal {
		t.Fatal("run with always-failing executors did not terminate")
	}
	if !s.Partial {
		t.Error("degraded run not marked partial")
	}
	if s.TerminationReason != ReasonGateExhausted {
		t.Errorf("termination reason = %q, want %q", s.TerminationReason, ReasonGateExhausted)
	}

	// Literature gets its full ceiling before the run degrades to termination.
	if got := l.Attempts(types.CapLiteratureSearch); got != 3 {
		t.Errorf("literature attempts = %d, want ceiling 3", got)
	}
	if l.Len() > o.cycleBudget() {
		t.Errorf("ledger entries %d exceed cycle budget %d", l.Len(), o.cycleBudget())
	}
}

func TestRunFatalFailureTerminates(t *testing.T) {
	r := happyRegistry(t)
	r[types.CapKnowledgeSynthesis] = stub(types.CapKnowledgeSynthesis,
		func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.FatalFailure("model API returned 401: unauthorized")
		})

	o := New(testConfig(), r, WithSleep(noSleep))
	s, l, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}

	if s.TerminationReason != ReasonFatal {
		t.Errorf("termination reason = %q, want %q", s.TerminationReason, ReasonFatal)
	}
	if !s.Partial {
		t.Error("fatal run not marked partial")
	}
	// Fatal short-circuits: exactly one synthesis attempt, never retried.
	if got := l.Attempts(types.CapKnowledgeSynthesis); got != 1 {
		t.Errorf("synthesis attempts = %d, want 1", got)
	}
	// The gathered papers survive on the terminal state.
	if len(s.Papers) != 5 {
		t.Errorf("papers on terminal state = %d, want 5", len(s.Papers))
	}
}

func TestRunHonorsBackoffSchedule(t *testing.T) {
	var calls int32
	r := happyRegistry(t)
	r[types.CapLiteratureSearch] = stub(types.CapLiteratureSearch,
		func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			if atomic.AddInt32(&calls, 1) < 3 {
				return types.TransientFailure("flaky")
			}
			return types.Success(types.StateDelta{Papers: passingPapers()})
		})

	var slept []time.Duration
	o := New(testConfig(), r, WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	s, _, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Terminal || s.Partial {
		t.Fatalf("run did not complete cleanly: %+v", s)
	}

	// Two retries: backoff doubles from the base each attempt.
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestStepCommitsVersionChain(t *testing.T) {
	o := New(testConfig(), happyRegistry(t), WithSleep(noSleep))
	s := types.NewResearchState("run-1", "q", 20)
	l := ledger.New("run-1")

	_, next, err := o.Step(context.Background(), s, l)
	if err != nil {
		t.Fatal(err)
	}

	entry, ok := l.Last()
	if !ok {
		t.Fatal("Step() committed no ledger entry")
	}
	if entry.PrevStateVersion != state.Version(s) {
		t.Error("entry PrevStateVersion does not match the starting state")
	}
	if entry.StateVersion != state.Version(next) {
		t.Error("entry StateVersion does not match the produced state")
	}
	if entry.PrevStateVersion == entry.StateVersion {
		t.Error("state version did not change across a successful cycle")
	}
	if next.AttemptCounters[string(types.CapLiteratureSearch)] != 1 {
		t.Error("attempt counter not incremented")
	}
}

func TestStepTerminalStateIsNoOp(t *testing.T) {
	o := New(testConfig(), happyRegistry(t), WithSleep(noSleep))
	s := types.NewResearchState("run-1", "q", 20)
	s.Terminal = true
	s.TerminationReason = ReasonComplete
	l := ledger.New("run-1")

	_, next, err := o.Step(context.Background(), s, l)
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 0 {
		t.Error("Step() on terminal state appended a ledger entry")
	}
	if next.TerminationReason != ReasonComplete {
		t.Error("Step() on terminal state changed the state")
	}
}

func TestStepIsolatesExecutorMutation(t *testing.T) {
	r := happyRegistry(t)
	r[types.CapKnowledgeSynthesis] = stub(types.CapKnowledgeSynthesis,
		func(_ context.Context, snapshot types.ResearchState, _ types.Params) types.ExecutorResult {
			// A misbehaving executor scribbling on its snapshot.
			for i := range snapshot.Papers {
				snapshot.Papers[i].Title = "corrupted"
			}
			snapshot.AttemptCounters["literature_search"] = 99
			return types.TransientFailure("flaky")
		})

	o := New(testConfig(), r, WithSleep(noSleep))
	s := types.NewResearchState("run-1", "q", 20)
	s.Papers = passingPapers()
	s.AttemptCounters["literature_search"] = 1
	l := ledger.New("run-1")

	_, next, err := o.Step(context.Background(), s, l)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range next.Papers {
		if p.Title == "corrupted" {
			t.Fatal("executor mutation leaked into committed state")
		}
	}
	if next.AttemptCounters["literature_search"] != 1 {
		t.Errorf("counter = %d, want untouched 1", next.AttemptCounters["literature_search"])
	}
}

func TestRunCancellation(t *testing.T) {
	started := make(chan struct{})
	r := happyRegistry(t)
	r[types.CapLiteratureSearch] = stub(types.CapLiteratureSearch,
		func(ctx context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			close(started)
			<-ctx.Done()
			return types.TransientFailure("interrupted")
		})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	o := New(testConfig(), r, WithSleep(noSleep))
	s, l, err := o.Run(ctx, "q")
	if err != nil {
		t.Fatal(err)
	}

	if !s.Terminal {
		t.Fatal("cancelled run not terminal")
	}
	if s.TerminationReason != ReasonCancelled {
		t.Errorf("termination reason = %q, want %q", s.TerminationReason, ReasonCancelled)
	}
	if !s.Partial {
		t.Error("cancelled run not marked partial")
	}

	// The in-flight invocation commits nothing; only the terminate entry lands.
	if l.Len() != 1 {
		t.Errorf("ledger entries = %d, want 1 terminate entry", l.Len())
	}
	last, _ := l.Last()
	if last.Decision.Kind != types.DecisionTerminate {
		t.Errorf("last entry = %s, want terminate", last.Decision.Kind)
	}
}

func TestFanOutPartialTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.Ceilings[types.CapValidation] = 3
	cfg.Timeouts[types.CapValidation] = 20 * time.Millisecond

	// hyp-1-3 times out on the first round and succeeds on the retry.
	var h3Calls int32
	r := happyRegistry(t)
	r[types.CapHypothesisGeneration] = stub(types.CapHypothesisGeneration,
		func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.Success(types.StateDelta{Hypotheses: []types.Hypothesis{
				{ID: "hyp-1-1", Confidence: 0.9},
				{ID: "hyp-1-2", Confidence: 0.8},
				{ID: "hyp-1-3", Confidence: 0.7},
			}})
		})
	r[types.CapValidation] = stub(types.CapValidation,
		func(ctx context.Context, _ types.ResearchState, params types.Params) types.ExecutorResult {
			var vs []types.Validation
			for _, id := range params.HypothesisIDs {
				if id == "hyp-1-3" && atomic.AddInt32(&h3Calls, 1) == 1 {
					<-ctx.Done()
					return types.TransientFailure("timeout: " + ctx.Err().Error())
				}
				vs = append(vs, types.Validation{HypothesisID: id, Verdict: types.VerdictSupported, Score: 0.8})
			}
			return types.Success(types.StateDelta{Validations: vs})
		})

	o := New(cfg, r, WithSleep(noSleep))
	s, l, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}

	if s.TerminationReason != ReasonComplete {
		t.Fatalf("termination reason = %q, want complete (entries: %d)", s.TerminationReason, l.Len())
	}
	if len(s.Validations) != 3 {
		t.Fatalf("validations = %d, want 3", len(s.Validations))
	}

	// First fan-out covered two of three; one retry cycle covered the rest.
	if got := l.Attempts(types.CapValidation); got != 2 {
		t.Errorf("validation attempts = %d, want 2", got)
	}

	var partialSeen bool
	for _, e := range l.Entries() {
		if e.Decision.Capability == types.CapValidation && e.Outcome == types.OutcomePartial {
			partialSeen = true
			if e.ResultKind != types.ResultPartialSuccess {
				t.Errorf("partial entry result kind = %s", e.ResultKind)
			}
		}
	}
	if !partialSeen {
		t.Error("no partial-outcome validation entry recorded")
	}
}

func TestFanOutMergesDeterministically(t *testing.T) {
	o := New(testConfig(), happyRegistry(t), WithSleep(noSleep))

	decision := types.Invoke(types.CapValidation, "")
	decision.Params.HypothesisIDs = []string{"hyp-1-2", "hyp-1-1", "hyp-1-3"}

	s := types.NewResearchState("run-1", "q", 20)
	exec, _ := o.registry.Lookup(types.CapValidation)

	for i := 0; i < 5; i++ {
		result := o.fanOut(context.Background(), exec, decision, s)
		if result.Kind != types.ResultSuccess {
			t.Fatalf("fanOut() = %s: %s", result.Kind, result.Reason)
		}
		want := []string{"hyp-1-1", "hyp-1-2", "hyp-1-3"}
		for j, v := range result.Delta.Validations {
			if v.HypothesisID != want[j] {
				t.Fatalf("iteration %d: merge order %v", i, result.Delta.Validations)
			}
		}
	}
}

func TestResumeContinuesRun(t *testing.T) {
	store, err := ledger.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	// First run: synthesis always fails transiently, so the run exhausts its
	// gate and terminates partial, leaving papers behind.
	r := happyRegistry(t)
	r[types.CapKnowledgeSynthesis] = stub(types.CapKnowledgeSynthesis,
		func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.TransientFailure("model down")
		})
	o := New(testConfig(), r, WithSleep(noSleep))

	s1, l1, err := o.RunWithStore(context.Background(), "sparse attention", store)
	if err != nil {
		t.Fatal(err)
	}
	if !s1.Terminal || !s1.Partial {
		t.Fatalf("first run should terminate partial: %+v", s1)
	}

	// Resume cannot continue a terminal run; it reports it as already done.
	o2 := New(testConfig(), happyRegistry(t), WithSleep(noSleep))
	s2, l2, err := o2.Resume(context.Background(), store, l1.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if !s2.Terminal {
		t.Fatal("resumed terminal run lost its terminal flag")
	}
	if l2.Len() != l1.Len() {
		t.Errorf("resuming a terminal run appended entries: %d -> %d", l1.Len(), l2.Len())
	}
}

func TestResumeNonTerminalRun(t *testing.T) {
	store, err := ledger.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var litCalls int32
	r := happyRegistry(t)
	r[types.CapLiteratureSearch] = stub(types.CapLiteratureSearch,
		func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			atomic.AddInt32(&litCalls, 1)
			return types.Success(types.StateDelta{Papers: passingPapers()})
		})
	o := New(testConfig(), r, WithSleep(noSleep))

	// Persist one successful literature cycle, then stop, as an interrupted
	// process would.
	s := types.NewResearchState("run-interrupted", "sparse attention", 20)
	if err := store.RegisterRun(context.Background(), s.RunID, s.Query, s.StartedAt); err != nil {
		t.Fatal(err)
	}
	l := ledger.New(s.RunID).WithStore(store)
	if _, _, err := o.Step(context.Background(), s, l); err != nil {
		t.Fatal(err)
	}

	s2, l2, err := o.Resume(context.Background(), store, s.RunID)
	if err != nil {
		t.Fatal(err)
	}

	if !s2.Terminal || s2.TerminationReason != ReasonComplete {
		t.Fatalf("resumed run did not complete: terminal=%v reason=%q", s2.Terminal, s2.TerminationReason)
	}
	if len(s2.Papers) != 5 {
		t.Errorf("papers after resume = %d, want 5", len(s2.Papers))
	}

	// The persisted literature success is replayed, never re-invoked.
	if got := atomic.LoadInt32(&litCalls); got != 1 {
		t.Errorf("literature invocations across both processes = %d, want 1", got)
	}
	if got := l2.Attempts(types.CapLiteratureSearch); got != 1 {
		t.Errorf("literature attempts after resume = %d, want 1", got)
	}

	// The resumed ledger extends the persisted history to the full run.
	if l2.Len() != 5 {
		t.Errorf("resumed ledger entries = %d, want 5", l2.Len())
	}
}

func TestFanOutFatalKeepsBatchSuccesses(t *testing.T) {
	r := happyRegistry(t)
	r[types.CapHypothesisGeneration] = stub(types.CapHypothesisGeneration,
		func(_ context.Context, _ types.ResearchState, _ types.Params) types.ExecutorResult {
			return types.Success(types.StateDelta{Hypotheses: []types.Hypothesis{
				{ID: "hyp-1-1", Confidence: 0.9},
				{ID: "hyp-1-2", Confidence: 0.8},
				{ID: "hyp-1-3", Confidence: 0.7},
			}})
		})
	r[types.CapValidation] = stub(types.CapValidation,
		func(_ context.Context, _ types.ResearchState, params types.Params) types.ExecutorResult {
			if len(params.HypothesisIDs) == 1 && params.HypothesisIDs[0] == "hyp-1-2" {
				return types.FatalFailure("model API returned 401: unauthorized")
			}
			var vs []types.Validation
			for _, id := range params.HypothesisIDs {
				vs = append(vs, types.Validation{HypothesisID: id, Verdict: types.VerdictSupported, Score: 0.8})
			}
			return types.Success(types.StateDelta{Validations: vs})
		})

	o := New(testConfig(), r, WithSleep(noSleep))
	s, l, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}

	if s.TerminationReason != ReasonFatal {
		t.Fatalf("termination reason = %q, want %q", s.TerminationReason, ReasonFatal)
	}

	// The batch members that succeeded before the fatal escalation commit in
	// the same entry that records it.
	if len(s.Validations) != 2 {
		t.Fatalf("validations on terminal state = %d, want 2", len(s.Validations))
	}
	for _, v := range s.Validations {
		if v.HypothesisID == "hyp-1-2" {
			t.Error("fatally failed hypothesis recorded a validation")
		}
	}

	var fatalSeen bool
	for _, e := range l.Entries() {
		if e.ResultKind == types.ResultFatalFailure {
			fatalSeen = true
			if e.Decision.Capability != types.CapValidation {
				t.Errorf("fatal entry capability = %s, want validation", e.Decision.Capability)
			}
		}
	}
	if !fatalSeen {
		t.Error("no fatal-result ledger entry recorded")
	}
}

func TestCycleBudgetCoversCeilings(t *testing.T) {
	o := New(testConfig(), nil)
	budget := o.cycleBudget()

	// Ceilings sum to 3+2+2+2+1 = 10, plus terminate and per-capability slack.
	if budget < 11 {
		t.Errorf("cycle budget %d cannot cover the retry ceilings", budget)
	}
}
