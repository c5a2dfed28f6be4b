// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// synthesisPromptTmpl instructs the model to synthesize themes,
// contradictions, and gaps across the gathered papers.
var synthesisPromptTmpl = template.Must(template.New("synthesis").Parse(`You are a research synthesis system. Analyze the following papers gathered for the research question and synthesize what the literature says.

Research question: {{.Query}}

Identify:
- themes: recurring findings or ideas that appear across multiple papers
- contradictions: pairs of conflicting findings, each with "claim" and "counter_claim"
- gaps: open questions the papers raise but do not answer
- confidence: a float between 0.0 and 1.0 for how well the papers cover the question

Respond with a single JSON object with keys "themes", "contradictions", "gaps", and "confidence". Do not include any text outside the JSON object.

Example response:
{"themes": ["attention scales quadratically"], "contradictions": [{"claim": "sparse attention loses accuracy", "counter_claim": "sparse attention matches dense accuracy"}], "gaps": ["long-context behavior beyond 1M tokens"], "confidence": 0.8}

Papers:
{{range .Papers}}- [{{.ID}}] {{.Title}}
  {{.Abstract}}
{{end}}`))

// hypothesisPromptTmpl instructs the model to generate testable hypotheses
// grounded in the synthesis and the paper evidence.
var hypothesisPromptTmpl = template.Must(template.New("hypothesis").Parse(`You are a research hypothesis generator. Given the research question, the synthesized themes, and the available evidence, propose testable hypotheses.

Research question: {{.Query}}

Themes:
{{range .Synthesis.Themes}}- {{.}}
{{end}}
Gaps:
{{range .Synthesis.Gaps}}- {{.}}
{{end}}
Evidence papers:
{{range .Papers}}- [{{.ID}}] {{.Title}}
{{end}}
For each hypothesis provide:
- text: a falsifiable statement
- confidence: a float between 0.0 and 1.0
- supporting_evidence_ids: paper IDs from the evidence list that motivate it

Respond with a JSON object containing a "hypotheses" array. Do not include any text outside the JSON object.

Example response:
{"hypotheses": [{"text": "Sparse attention preserves accuracy up to 90% sparsity.", "confidence": 0.7, "supporting_evidence_ids": ["2301.07041"]}]}`))

// methodologyPromptTmpl instructs the model to design an experimental
// methodology for each hypothesis.
var methodologyPromptTmpl = template.Must(template.New("methodology").Parse(`You are a research methodology designer. For each hypothesis below, design an experimental approach to test it.

Research question: {{.Query}}

Hypotheses:
{{range .Hypotheses}}- [{{.ID}}] {{.Text}}
{{end}}
For each hypothesis provide:
- hypothesis_id: the bracketed ID from the list above
- approach: a summary of the experimental design
- steps: the concrete procedure in order
- limitations: known weaknesses of the design

Respond with a JSON object containing a "methodologies" array. Do not include any text outside the JSON object.`))

// validationPromptTmpl instructs the model to validate one hypothesis
// against the gathered evidence.
var validationPromptTmpl = template.Must(template.New("validation").Parse(`You are a research validation system. Assess the following hypothesis against the evidence.

Hypothesis: {{.Hypothesis.Text}}

Evidence:
{{range .Papers}}- [{{.ID}}] {{.Title}}
  {{.Abstract}}
{{end}}
Provide:
- verdict: one of "supported", "contested", "inconclusive"
- rationale: a short justification citing the evidence
- score: a float between 0.0 and 1.0 for your confidence in the verdict

Respond with a single JSON object with keys "verdict", "rationale", and "score". Do not include any text outside the JSON object.`))

// renderPrompt executes a prompt template with data.
func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// decodeReply parses a model reply into v, tolerating Markdown code fences
// around the JSON object.
func decodeReply(reply string, v any) error {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("parsing model reply JSON: %w", err)
	}
	return nil
}

// clamp01 bounds a confidence value to [0,1].
func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// paperDigest caps the number of papers included in a prompt so prompts
// stay within model context limits.
func paperDigest(papers []types.Paper, n int) []types.Paper {
	if n <= 0 || len(papers) <= n {
		return papers
	}
	return papers[:n]
}
