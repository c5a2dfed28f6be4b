// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// GateConfig holds the quality-gate thresholds. Every threshold is
// configuration; none are hardcoded in the gate predicates.
type GateConfig struct {
	// MinPapers is the minimum paper count for the literature gate.
	MinPapers int `json:"min_papers" yaml:"min_papers"`

	// MinRelevance is the minimum mean relevance of the top-N papers for
	// the literature gate.
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// TopN is how many of the highest-relevance papers the literature gate
	// averages over.
	TopN int `json:"top_n" yaml:"top_n"`

	// MinSynthesisConfidence is the minimum synthesis confidence.
	MinSynthesisConfidence float64 `json:"min_synthesis_confidence" yaml:"min_synthesis_confidence"`

	// MinThemes is the minimum number of synthesis themes.
	MinThemes int `json:"min_themes" yaml:"min_themes"`

	// MinHypothesisConfidence is the confidence at least one hypothesis
	// must reach for the hypothesis gate to pass.
	MinHypothesisConfidence float64 `json:"min_hypothesis_confidence" yaml:"min_hypothesis_confidence"`

	// ValidationWorthyThreshold is the confidence at or above which a
	// hypothesis must be covered by a validation record.
	ValidationWorthyThreshold float64 `json:"validation_worthy_threshold" yaml:"validation_worthy_threshold"`
}

// RetryConfig holds per-capability retry ceilings and backoff shape.
type RetryConfig struct {
	// DefaultCeiling applies to capabilities absent from Ceilings.
	DefaultCeiling int `json:"default_ceiling" yaml:"default_ceiling"`

	// Ceilings overrides the attempt ceiling per capability.
	Ceilings map[Capability]int `json:"ceilings,omitempty" yaml:"ceilings,omitempty"`

	// BackoffBase is the first retry delay.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// BackoffFactor multiplies the delay each further attempt.
	BackoffFactor float64 `json:"backoff_factor" yaml:"backoff_factor"`

	// BackoffCap bounds the delay.
	BackoffCap time.Duration `json:"backoff_cap" yaml:"backoff_cap"`
}

// Ceiling returns the attempt ceiling for a capability.
func (r RetryConfig) Ceiling(c Capability) int {
	if n, ok := r.Ceilings[c]; ok && n > 0 {
		return n
	}
	if r.DefaultCeiling > 0 {
		return r.DefaultCeiling
	}
	return 3
}

// Config groups all orchestrator settings for one run.
type Config struct {
	Gates GateConfig  `json:"gates" yaml:"gates"`
	Retry RetryConfig `json:"retry" yaml:"retry"`

	// Timeouts bounds each executor invocation per capability. A timeout is
	// mandatory: capabilities absent from the map use DefaultTimeout.
	Timeouts map[Capability]time.Duration `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`

	// DefaultTimeout applies to capabilities without an explicit timeout.
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`

	// ValidationConcurrency bounds the validation fan-out.
	ValidationConcurrency int `json:"validation_concurrency" yaml:"validation_concurrency"`

	// MaxPapers is the initial cap on papers requested per search.
	MaxPapers int `json:"max_papers" yaml:"max_papers"`

	// DesignMethodologies inserts the methodology design step between
	// hypothesis generation and validation.
	DesignMethodologies bool `json:"design_methodologies" yaml:"design_methodologies"`

	// FollowUpSearch allows a gap-driven literature search after synthesis.
	FollowUpSearch bool `json:"follow_up_search" yaml:"follow_up_search"`

	// FollowUpSharesCeiling counts follow-up searches against the initial
	// search's attempt ceiling instead of a separate one.
	FollowUpSharesCeiling bool `json:"follow_up_shares_ceiling" yaml:"follow_up_shares_ceiling"`
}

// Timeout returns the invocation timeout for a capability.
func (c Config) Timeout(cap Capability) time.Duration {
	if d, ok := c.Timeouts[cap]; ok && d > 0 {
		return d
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return 30 * time.Second
}

// DefaultConfig returns the default orchestrator configuration. Thresholds
// and ceilings follow the reference workflow tables; all may be overridden
// through configuration.
func DefaultConfig() Config {
	return Config{
		Gates: GateConfig{
			MinPapers:                 5,
			MinRelevance:              0.5,
			TopN:                      5,
			MinSynthesisConfidence:    0.5,
			MinThemes:                 2,
			MinHypothesisConfidence:   0.5,
			ValidationWorthyThreshold: 0.5,
		},
		Retry: RetryConfig{
			DefaultCeiling: 3,
			Ceilings: map[Capability]int{
				CapLiteratureSearch:     3,
				CapKnowledgeSynthesis:   2,
				CapHypothesisGeneration: 2,
				CapMethodologyDesign:    2,
				CapValidation:           1,
			},
			BackoffBase:   1 * time.Second,
			BackoffFactor: 2,
			BackoffCap:    30 * time.Second,
		},
		Timeouts: map[Capability]time.Duration{
			CapLiteratureSearch:     60 * time.Second,
			CapKnowledgeSynthesis:   45 * time.Second,
			CapHypothesisGeneration: 30 * time.Second,
			CapMethodologyDesign:    30 * time.Second,
			CapValidation:           20 * time.Second,
		},
		DefaultTimeout:        30 * time.Second,
		ValidationConcurrency: 3,
		MaxPapers:             20,
		FollowUpSharesCeiling: true,
	}
}
