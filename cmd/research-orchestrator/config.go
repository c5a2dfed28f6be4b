// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// buildConfig assembles the orchestrator configuration: defaults first, then
// config-file and environment overrides via viper.
func buildConfig() types.Config {
	cfg := types.DefaultConfig()

	if viper.IsSet("gates.min_papers") {
		cfg.Gates.MinPapers = viper.GetInt("gates.min_papers")
	}
	if viper.IsSet("gates.min_relevance") {
		cfg.Gates.MinRelevance = viper.GetFloat64("gates.min_relevance")
	}
	if viper.IsSet("gates.top_n") {
		cfg.Gates.TopN = viper.GetInt("gates.top_n")
	}
	if viper.IsSet("gates.min_synthesis_confidence") {
		cfg.Gates.MinSynthesisConfidence = viper.GetFloat64("gates.min_synthesis_confidence")
	}
	if viper.IsSet("gates.min_themes") {
		cfg.Gates.MinThemes = viper.GetInt("gates.min_themes")
	}
	if viper.IsSet("gates.min_hypothesis_confidence") {
		cfg.Gates.MinHypothesisConfidence = viper.GetFloat64("gates.min_hypothesis_confidence")
	}
	if viper.IsSet("gates.validation_worthy_threshold") {
		cfg.Gates.ValidationWorthyThreshold = viper.GetFloat64("gates.validation_worthy_threshold")
	}

	if viper.IsSet("retry.default_ceiling") {
		cfg.Retry.DefaultCeiling = viper.GetInt("retry.default_ceiling")
	}
	if viper.IsSet("retry.backoff_base") {
		cfg.Retry.BackoffBase = viper.GetDuration("retry.backoff_base")
	}
	if viper.IsSet("retry.backoff_cap") {
		cfg.Retry.BackoffCap = viper.GetDuration("retry.backoff_cap")
	}
	for _, c := range types.Capabilities {
		key := "retry.ceilings." + string(c)
		if viper.IsSet(key) {
			cfg.Retry.Ceilings[c] = viper.GetInt(key)
		}
		tkey := "timeouts." + string(c)
		if viper.IsSet(tkey) {
			cfg.Timeouts[c] = viper.GetDuration(tkey)
		}
	}

	if viper.IsSet("default_timeout") {
		cfg.DefaultTimeout = viper.GetDuration("default_timeout")
	}
	if viper.IsSet("validation_concurrency") {
		cfg.ValidationConcurrency = viper.GetInt("validation_concurrency")
	}
	if viper.IsSet("max_papers") {
		cfg.MaxPapers = viper.GetInt("max_papers")
	}
	if viper.IsSet("design_methodologies") {
		cfg.DesignMethodologies = viper.GetBool("design_methodologies")
	}
	if viper.IsSet("follow_up_search") {
		cfg.FollowUpSearch = viper.GetBool("follow_up_search")
	}
	if viper.IsSet("follow_up_shares_ceiling") {
		cfg.FollowUpSharesCeiling = viper.GetBool("follow_up_shares_ceiling")
	}

	return cfg
}
