// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package executor defines the capability executor contract and the adapters
// that implement each research capability: literature search against
// bibliographic APIs, and AI-backed synthesis, hypothesis generation,
// methodology design, and validation.
//
// Executors receive an immutable state snapshot and return a delta; they
// never mutate shared state. Each executor classifies its own failures as
// transient or fatal at the boundary, so the orchestrator acts only on the
// four-way ExecutorResult tag and never inspects raw errors.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Executor is the uniform contract every capability satisfies.
type Executor interface {
	// Capability identifies the step kind this executor implements.
	Capability() types.Capability

	// Execute runs the capability against an immutable snapshot. The
	// snapshot must not be modified; the proposed change is returned as a
	// delta inside the result.
	Execute(ctx context.Context, snapshot types.ResearchState, params types.Params) types.ExecutorResult
}

// Registry maps capabilities to their executors.
type Registry map[types.Capability]Executor

// NewRegistry builds a registry from executors, rejecting duplicates and
// unknown capabilities.
func NewRegistry(execs ...Executor) (Registry, error) {
	r := make(Registry, len(execs))
	for _, e := range execs {
		c := e.Capability()
		if !c.Valid() {
			return nil, fmt.Errorf("executor reports unknown capability %q", c)
		}
		if _, dup := r[c]; dup {
			return nil, fmt.Errorf("duplicate executor for capability %q", c)
		}
		r[c] = e
	}
	return r, nil
}

// Lookup returns the executor for a capability.
func (r Registry) Lookup(c types.Capability) (Executor, bool) {
	e, ok := r[c]
	return e, ok
}

// Sentinel errors used by adapters to classify external-service failures.
var (
	// ErrRateLimited marks rate limiting that survived the adapter's own
	// retries. Transient.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized marks an authentication or authorization rejection.
	// Fatal: retrying cannot help.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadInput marks a snapshot the executor cannot act on, such as
	// synthesis with no papers. Fatal.
	ErrBadInput = errors.New("bad input")
)

// classify converts an adapter error into the ExecutorResult the retry
// policy acts on. Timeouts, rate limits, and network conditions are
// transient; authentication and unusable input are fatal. Unknown errors
// default to transient so a flaky dependency gets its retries.
func classify(err error) types.ExecutorResult {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrBadInput):
		return types.FatalFailure(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return types.TransientFailure("timeout: " + err.Error())
	case errors.Is(err, ErrRateLimited):
		return types.TransientFailure(err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.TransientFailure("timeout: " + err.Error())
	}

	return types.TransientFailure(err.Error())
}
