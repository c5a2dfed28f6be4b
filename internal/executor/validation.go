// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package executor

import (
	"context"
	"fmt"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// ValidationExecutor implements the validation capability. The orchestrator
// fans out one invocation per hypothesis, so each Execute call validates
// exactly the hypotheses named in its params, normally a single one.
type ValidationExecutor struct {
	AI AIBackend
}

// Capability identifies the step kind.
func (e *ValidationExecutor) Capability() types.Capability {
	return types.CapValidation
}

// validationReply mirrors the JSON shape the prompt requests.
type validationReply struct {
	Verdict   string  `json:"verdict"`
	Rationale string  `json:"rationale"`
	Score     float64 `json:"score"`
}

// Execute validates the hypotheses named in params against the snapshot's
// evidence. An unknown hypothesis ID is unusable input and fails fatally.
func (e *ValidationExecutor) Execute(ctx context.Context, snapshot types.ResearchState, params types.Params) types.ExecutorResult {
	if len(params.HypothesisIDs) == 0 {
		return classify(fmt.Errorf("no hypothesis IDs to validate: %w", ErrBadInput))
	}

	byID := make(map[string]types.Hypothesis, len(snapshot.Hypotheses))
	for _, h := range snapshot.Hypotheses {
		byID[h.ID] = h
	}

	var validations []types.Validation
	for _, id := range params.HypothesisIDs {
		h, ok := byID[id]
		if !ok {
			return classify(fmt.Errorf("unknown hypothesis %q: %w", id, ErrBadInput))
		}

		v, err := e.validateOne(ctx, snapshot, h)
		if err != nil {
			return classify(err)
		}
		validations = append(validations, v)
	}

	return types.Success(types.StateDelta{Validations: validations})
}

func (e *ValidationExecutor) validateOne(ctx context.Context, snapshot types.ResearchState, h types.Hypothesis) (types.Validation, error) {
	prompt, err := renderPrompt(validationPromptTmpl, struct {
		Hypothesis types.Hypothesis
		Papers     []types.Paper
	}{h, paperDigest(evidenceFor(snapshot, h), promptPaperCap)})
	if err != nil {
		return types.Validation{}, err
	}

	reply, err := e.AI.Complete(ctx, prompt)
	if err != nil {
		return types.Validation{}, err
	}

	var parsed validationReply
	if err := decodeReply(reply, &parsed); err != nil {
		return types.Validation{}, err
	}

	verdict := types.Verdict(parsed.Verdict)
	switch verdict {
	case types.VerdictSupported, types.VerdictContested, types.VerdictInconclusive:
	default:
		verdict = types.VerdictInconclusive
	}

	return types.Validation{
		HypothesisID: h.ID,
		Verdict:      verdict,
		Rationale:    parsed.Rationale,
		Score:        clamp01(parsed.Score),
	}, nil
}

// evidenceFor returns the hypothesis's supporting papers when it names any,
// falling back to the full evidence set.
func evidenceFor(snapshot types.ResearchState, h types.Hypothesis) []types.Paper {
	if len(h.SupportingEvidenceIDs) == 0 {
		return snapshot.Papers
	}

	wanted := make(map[string]bool, len(h.SupportingEvidenceIDs))
	for _, id := range h.SupportingEvidenceIDs {
		wanted[id] = true
	}

	var papers []types.Paper
	for _, p := range snapshot.Papers {
		if wanted[p.ID] {
			papers = append(papers, p)
		}
	}
	if len(papers) == 0 {
		return snapshot.Papers
	}
	return papers
}
