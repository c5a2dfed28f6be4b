// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package executor

import (
	"context"
	"fmt"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// MethodologyExecutor implements the methodology_design capability: one
// model call designing an experimental approach per current hypothesis. The
// methodology set replaces any previous one wholesale.
type MethodologyExecutor struct {
	AI AIBackend
}

// Capability identifies the step kind.
func (e *MethodologyExecutor) Capability() types.Capability {
	return types.CapMethodologyDesign
}

// methodologyReply mirrors the JSON shape the prompt requests.
type methodologyReply struct {
	Methodologies []struct {
		HypothesisID string   `json:"hypothesis_id"`
		Approach     string   `json:"approach"`
		Steps        []string `json:"steps"`
		Limitations  []string `json:"limitations"`
	} `json:"methodologies"`
}

// Execute designs methodologies for the snapshot's hypotheses. Replies
// referencing unknown hypothesis IDs are dropped; losing some designs is a
// partial success, losing all is transient.
func (e *MethodologyExecutor) Execute(ctx context.Context, snapshot types.ResearchState, _ types.Params) types.ExecutorResult {
	if len(snapshot.Hypotheses) == 0 {
		return classify(fmt.Errorf("no hypotheses to design methodologies for: %w", ErrBadInput))
	}

	prompt, err := renderPrompt(methodologyPromptTmpl, struct {
		Query      string
		Hypotheses []types.Hypothesis
	}{snapshot.Query, snapshot.Hypotheses})
	if err != nil {
		return types.FatalFailure(err.Error())
	}

	reply, err := e.AI.Complete(ctx, prompt)
	if err != nil {
		return classify(err)
	}

	var parsed methodologyReply
	if err := decodeReply(reply, &parsed); err != nil {
		return types.TransientFailure(err.Error())
	}

	known := make(map[string]bool, len(snapshot.Hypotheses))
	for _, h := range snapshot.Hypotheses {
		known[h.ID] = true
	}

	var methodologies []types.Methodology
	dropped := 0
	for _, m := range parsed.Methodologies {
		if !known[m.HypothesisID] {
			dropped++
			continue
		}
		methodologies = append(methodologies, types.Methodology{
			HypothesisID: m.HypothesisID,
			Approach:     m.Approach,
			Steps:        m.Steps,
			Limitations:  m.Limitations,
		})
	}

	if len(methodologies) == 0 {
		return types.TransientFailure("model designed no usable methodologies")
	}

	delta := types.StateDelta{Methodologies: methodologies}
	if dropped > 0 {
		return types.PartialSuccess(delta, fmt.Sprintf("%d methodologies referenced unknown hypotheses", dropped))
	}
	return types.Success(delta)
}
