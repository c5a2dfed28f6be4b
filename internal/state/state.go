// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state implements functional updates over ResearchState: each
// orchestrator cycle derives a new state value from the previous one plus an
// executor delta, and every committed state carries a content-addressed
// version. Nothing in this package mutates a state in place.
package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Version returns the content-addressed version of a state: the hex SHA-256
// of its canonical JSON encoding. Two states with identical content share a
// version regardless of how they were produced.
func Version(s types.ResearchState) string {
	data, err := json.Marshal(s)
	if err != nil {
		// ResearchState contains only marshalable fields; this is unreachable
		// short of memory corruption.
		return fmt.Sprintf("unhashable:%v", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// Clone returns a deep copy of s. Executors receive clones so that no
// concurrently running executor can observe another's snapshot, and so a
// misbehaving executor mutating its snapshot cannot leak into committed state.
func Clone(s types.ResearchState) types.ResearchState {
	out := s

	out.Papers = clonePapers(s.Papers)
	if s.Synthesis != nil {
		syn := *s.Synthesis
		syn.Themes = append([]string(nil), s.Synthesis.Themes...)
		syn.Contradictions = append([]types.Contradiction(nil), s.Synthesis.Contradictions...)
		syn.Gaps = append([]string(nil), s.Synthesis.Gaps...)
		out.Synthesis = &syn
	}
	out.Hypotheses = cloneHypotheses(s.Hypotheses)
	out.Methodologies = cloneMethodologies(s.Methodologies)
	out.Validations = append([]types.Validation(nil), s.Validations...)

	if s.AttemptCounters != nil {
		out.AttemptCounters = make(map[string]int, len(s.AttemptCounters))
		for k, v := range s.AttemptCounters {
			out.AttemptCounters[k] = v
		}
	}

	return out
}

func clonePapers(papers []types.Paper) []types.Paper {
	if papers == nil {
		return nil
	}
	out := make([]types.Paper, len(papers))
	for i, p := range papers {
		out[i] = p
		out[i].Authors = append([]string(nil), p.Authors...)
		if p.Metadata != nil {
			out[i].Metadata = make(map[string]string, len(p.Metadata))
			for k, v := range p.Metadata {
				out[i].Metadata[k] = v
			}
		}
	}
	return out
}

func cloneHypotheses(hs []types.Hypothesis) []types.Hypothesis {
	if hs == nil {
		return nil
	}
	out := make([]types.Hypothesis, len(hs))
	for i, h := range hs {
		out[i] = h
		out[i].SupportingEvidenceIDs = append([]string(nil), h.SupportingEvidenceIDs...)
	}
	return out
}

func cloneMethodologies(ms []types.Methodology) []types.Methodology {
	if ms == nil {
		return nil
	}
	out := make([]types.Methodology, len(ms))
	for i, m := range ms {
		out[i] = m
		out[i].Steps = append([]string(nil), m.Steps...)
		out[i].Limitations = append([]string(nil), m.Limitations...)
	}
	return out
}

// Apply merges an executor delta into prev and returns the resulting state.
// prev is never modified. Papers merge append-only with identifier and
// normalized-title dedup; Synthesis, Hypotheses, and Methodologies replace
// wholesale when the delta sets them; Validations append.
func Apply(prev types.ResearchState, delta types.StateDelta) types.ResearchState {
	next := Clone(prev)

	if len(delta.Papers) > 0 {
		next.Papers = mergePapers(next.Papers, delta.Papers)
	}
	if delta.Synthesis != nil {
		syn := *delta.Synthesis
		next.Synthesis = &syn
	}
	if len(delta.Hypotheses) > 0 {
		next.Hypotheses = cloneHypotheses(delta.Hypotheses)
	}
	if len(delta.Methodologies) > 0 {
		next.Methodologies = cloneMethodologies(delta.Methodologies)
	}
	if len(delta.Validations) > 0 {
		next.Validations = append(next.Validations, delta.Validations...)
	}
	if delta.MaxPapers > 0 {
		next.MaxPapers = delta.MaxPapers
	}

	return next
}

// WithAttempt returns a copy of s with the named attempt counter incremented
// and the stage advanced to the capability's stage if that is later.
func WithAttempt(s types.ResearchState, counterKey string, stage types.Stage) types.ResearchState {
	next := Clone(s)
	if next.AttemptCounters == nil {
		next.AttemptCounters = map[string]int{}
	}
	next.AttemptCounters[counterKey]++
	if next.Stage.Before(stage) {
		next.Stage = stage
	}
	return next
}

// WithTerminal returns a copy of s frozen with the given termination reason.
// partial marks the result as best-effort.
func WithTerminal(s types.ResearchState, reason string, partial bool) types.ResearchState {
	next := Clone(s)
	next.Terminal = true
	next.TerminationReason = reason
	next.Partial = partial
	if partial {
		next.Stage = types.StageFailed
	} else {
		next.Stage = types.StageCompleted
	}
	return next
}

// mergePapers appends incoming papers, merging duplicates by identifier or
// normalized title. Existing papers are never removed; a duplicate fills
// empty fields and keeps the higher relevance score.
func mergePapers(existing, incoming []types.Paper) []types.Paper {
	merged := append([]types.Paper(nil), existing...)

	index := make(map[string]int, len(merged))
	for i, p := range merged {
		if p.ID != "" {
			index["id:"+p.ID] = i
		}
		if key := titleKey(p.Title); key != "" {
			index[key] = i
		}
	}

	for _, p := range incoming {
		idx := -1
		if p.ID != "" {
			if i, ok := index["id:"+p.ID]; ok {
				idx = i
			}
		}
		if idx < 0 {
			if key := titleKey(p.Title); key != "" {
				if i, ok := index[key]; ok {
					idx = i
				}
			}
		}

		if idx >= 0 {
			mergeInto(&merged[idx], p)
			continue
		}

		merged = append(merged, p)
		i := len(merged) - 1
		if p.ID != "" {
			index["id:"+p.ID] = i
		}
		if key := titleKey(p.Title); key != "" {
			index[key] = i
		}
	}

	return merged
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
func mergeInto(dst *types.Paper, src types.Paper) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = append([]string(nil), src.Authors...)
	}
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	if dst.Source != src.Source && src.Source != "" && !strings.Contains(dst.Source, src.Source) {
		if dst.Source == "" {
			dst.Source = src.Source
		} else {
			dst.Source = dst.Source + "," + src.Source
		}
	}
	for k, v := range src.Metadata {
		if dst.Metadata == nil {
			dst.Metadata = map[string]string{}
		}
		if _, ok := dst.Metadata[k]; !ok {
			dst.Metadata[k] = v
		}
	}
}

// titleKey returns a dedup key from a lowercased, punctuation-stripped title.
func titleKey(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	normalized := strings.Join(strings.Fields(b.String()), " ")
	if normalized == "" {
		return ""
	}
	return "title:" + normalized
}
