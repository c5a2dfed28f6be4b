// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package executor

import (
	"context"
	"fmt"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// HypothesisExecutor implements the hypothesis_generation capability. Each
// run produces a new hypothesis sequence that supersedes the previous one;
// the ledger retains the superseded history.
type HypothesisExecutor struct {
	AI AIBackend
}

// Capability identifies the step kind.
func (e *HypothesisExecutor) Capability() types.Capability {
	return types.CapHypothesisGeneration
}

// hypothesisReply mirrors the JSON shape the prompt requests.
type hypothesisReply struct {
	Hypotheses []struct {
		Text                  string   `json:"text"`
		Confidence            float64  `json:"confidence"`
		SupportingEvidenceIDs []string `json:"supporting_evidence_ids"`
	} `json:"hypotheses"`
}

// Execute generates hypotheses from the synthesis and evidence. Generated
// hypotheses get sequential IDs unique within the run so later validation
// records can reference them.
func (e *HypothesisExecutor) Execute(ctx context.Context, snapshot types.ResearchState, _ types.Params) types.ExecutorResult {
	if snapshot.Synthesis == nil {
		return classify(fmt.Errorf("no synthesis to generate hypotheses from: %w", ErrBadInput))
	}

	prompt, err := renderPrompt(hypothesisPromptTmpl, struct {
		Query     string
		Synthesis types.Synthesis
		Papers    []types.Paper
	}{snapshot.Query, *snapshot.Synthesis, paperDigest(snapshot.Papers, promptPaperCap)})
	if err != nil {
		return types.FatalFailure(err.Error())
	}

	reply, err := e.AI.Complete(ctx, prompt)
	if err != nil {
		return classify(err)
	}

	var parsed hypothesisReply
	if err := decodeReply(reply, &parsed); err != nil {
		return types.TransientFailure(err.Error())
	}
	if len(parsed.Hypotheses) == 0 {
		return types.TransientFailure("model generated no hypotheses")
	}

	known := make(map[string]bool, len(snapshot.Papers))
	for _, p := range snapshot.Papers {
		known[p.ID] = true
	}

	// IDs encode the generation round so regenerated hypotheses never
	// collide with superseded ones.
	round := snapshot.AttemptCounters[string(types.CapHypothesisGeneration)] + 1

	hypotheses := make([]types.Hypothesis, 0, len(parsed.Hypotheses))
	for i, h := range parsed.Hypotheses {
		var evidence []string
		for _, id := range h.SupportingEvidenceIDs {
			if known[id] {
				evidence = append(evidence, id)
			}
		}
		hypotheses = append(hypotheses, types.Hypothesis{
			ID:                    fmt.Sprintf("hyp-%d-%d", round, i+1),
			Text:                  h.Text,
			Confidence:            clamp01(h.Confidence),
			SupportingEvidenceIDs: evidence,
		})
	}

	return types.Success(types.StateDelta{Hypotheses: hypotheses})
}
