// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package executor

import (
	"context"
	"fmt"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// promptPaperCap bounds how many papers are embedded in a prompt.
const promptPaperCap = 30

// SynthesisExecutor implements the knowledge_synthesis capability: one model
// call over the gathered papers producing a Synthesis that replaces any
// previous one wholesale.
type SynthesisExecutor struct {
	AI AIBackend
}

// Capability identifies the step kind.
func (e *SynthesisExecutor) Capability() types.Capability {
	return types.CapKnowledgeSynthesis
}

// synthesisReply mirrors the JSON shape the prompt requests.
type synthesisReply struct {
	Themes         []string              `json:"themes"`
	Contradictions []types.Contradiction `json:"contradictions"`
	Gaps           []string              `json:"gaps"`
	Confidence     float64               `json:"confidence"`
}

// Execute synthesizes themes, contradictions, and gaps from the snapshot's
// papers. A snapshot without papers is unusable input and fails fatally; a
// malformed model reply is transient, since regeneration may parse.
func (e *SynthesisExecutor) Execute(ctx context.Context, snapshot types.ResearchState, _ types.Params) types.ExecutorResult {
	if len(snapshot.Papers) == 0 {
		return classify(fmt.Errorf("no papers to synthesize: %w", ErrBadInput))
	}

	prompt, err := renderPrompt(synthesisPromptTmpl, struct {
		Query  string
		Papers []types.Paper
	}{snapshot.Query, paperDigest(snapshot.Papers, promptPaperCap)})
	if err != nil {
		return types.FatalFailure(err.Error())
	}

	reply, err := e.AI.Complete(ctx, prompt)
	if err != nil {
		return classify(err)
	}

	var parsed synthesisReply
	if err := decodeReply(reply, &parsed); err != nil {
		return types.TransientFailure(err.Error())
	}

	syn := types.Synthesis{
		Themes:         parsed.Themes,
		Contradictions: parsed.Contradictions,
		Gaps:           parsed.Gaps,
		Confidence:     clamp01(parsed.Confidence),
	}

	delta := types.StateDelta{Synthesis: &syn}
	if len(syn.Themes) == 0 {
		return types.PartialSuccess(delta, "synthesis identified no themes")
	}
	return types.Success(delta)
}
