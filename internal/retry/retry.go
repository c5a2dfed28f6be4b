// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry decides whether a capability may be attempted again and how
// long to wait before doing so. Attempt counts are derived from the
// execution ledger rather than tracked in separate mutable counters, so the
// controller and the ledger cannot diverge.
package retry

import (
	"math"
	"time"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// AttemptSource supplies attempt history for a run. The execution ledger is
// the canonical implementation.
type AttemptSource interface {
	// Attempts returns the number of non-follow-up invocation attempts made
	// for the capability.
	Attempts(c types.Capability) int

	// FollowUpAttempts returns the number of follow-up invocation attempts
	// made for the capability.
	FollowUpAttempts(c types.Capability) int

	// HasFatal reports whether the capability has ever failed fatally.
	HasFatal(c types.Capability) bool
}

// Controller applies the retry policy: per-capability ceilings, exponential
// backoff hints, and the fatal short-circuit.
type Controller struct {
	cfg types.RetryConfig
	src AttemptSource

	// followUpSharesCeiling counts follow-up searches against the same
	// ceiling as initial searches.
	followUpSharesCeiling bool
}

// NewController returns a controller reading attempt history from src.
func NewController(cfg types.RetryConfig, src AttemptSource, followUpSharesCeiling bool) *Controller {
	return &Controller{cfg: cfg, src: src, followUpSharesCeiling: followUpSharesCeiling}
}

// Attempts returns how many attempts count against the ceiling for the
// capability, honoring the follow-up ceiling-sharing choice.
func (c *Controller) Attempts(cap types.Capability, followUp bool) int {
	if c.followUpSharesCeiling {
		return c.src.Attempts(cap) + c.src.FollowUpAttempts(cap)
	}
	if followUp {
		return c.src.FollowUpAttempts(cap)
	}
	return c.src.Attempts(cap)
}

// Exhausted reports whether the capability has no attempts remaining. A
// fatal failure short-circuits to exhausted regardless of the counter.
func (c *Controller) Exhausted(cap types.Capability, followUp bool) bool {
	if c.src.HasFatal(cap) {
		return true
	}
	return c.Attempts(cap, followUp) >= c.cfg.Ceiling(cap)
}

// Fatal reports whether the capability previously failed with a
// classified-fatal error and must not be re-invoked.
func (c *Controller) Fatal(cap types.Capability) bool {
	return c.src.HasFatal(cap)
}

// Backoff returns the delay to wait before the next attempt, given the
// number of attempts already made. The delay grows exponentially from the
// configured base and is capped.
func (c *Controller) Backoff(attemptsSoFar int) time.Duration {
	base := c.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	factor := c.cfg.BackoffFactor
	if factor <= 1 {
		factor = 2
	}
	ceiling := c.cfg.BackoffCap
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	if attemptsSoFar < 1 {
		attemptsSoFar = 1
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(attemptsSoFar-1)))
	if d > ceiling || d <= 0 {
		return ceiling
	}
	return d
}
