// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// stubBackend is a canned search backend.
type stubBackend struct {
	name   string
	papers []types.Paper
	err    error

	gotQuery string
	gotMax   int
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Search(_ context.Context, query string, maxResults int) ([]types.Paper, error) {
	b.gotQuery = query
	b.gotMax = maxResults
	return b.papers, b.err
}

func TestLiteratureExecuteAllBackendsSucceed(t *testing.T) {
	a := &stubBackend{name: "arxiv", papers: []types.Paper{{ID: "2301.07041", Title: "A"}}}
	b := &stubBackend{name: "openalex", papers: []types.Paper{{ID: "W1", Title: "B"}}}
	e := &LiteratureExecutor{Backends: []SearchBackend{a, b}}

	s := types.ResearchState{Query: "sparse attention", MaxPapers: 20}
	result := e.Execute(context.Background(), s, types.Params{})

	require.Equal(t, types.ResultSuccess, result.Kind)
	assert.Len(t, result.Delta.Papers, 2)
	assert.Equal(t, "sparse attention", a.gotQuery)
	assert.Equal(t, 20, a.gotMax)
}

func TestLiteratureExecutePartialBackendFailure(t *testing.T) {
	a := &stubBackend{name: "arxiv", papers: []types.Paper{{ID: "2301.07041", Title: "A"}}}
	b := &stubBackend{name: "openalex", err: errors.New("service down")}
	e := &LiteratureExecutor{Backends: []SearchBackend{a, b}}

	s := types.ResearchState{Query: "q", MaxPapers: 20}
	result := e.Execute(context.Background(), s, types.Params{})

	require.Equal(t, types.ResultPartialSuccess, result.Kind)
	assert.Len(t, result.Delta.Papers, 1)
	assert.Contains(t, result.Warning, "openalex")
}

func TestLiteratureExecuteAllBackendsFail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ResultKind
	}{
		{"transient", errors.New("service down"), types.ResultTransientFailure},
		{"rate limited", fmt.Errorf("api: %w", ErrRateLimited), types.ResultTransientFailure},
		{"unauthorized", fmt.Errorf("api: %w", ErrUnauthorized), types.ResultFatalFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &LiteratureExecutor{Backends: []SearchBackend{
				&stubBackend{name: "arxiv", err: tt.err},
			}}
			result := e.Execute(context.Background(), types.ResearchState{Query: "q"}, types.Params{})
			assert.Equal(t, tt.want, result.Kind)
		})
	}
}

func TestLiteratureExecuteParamsOverrideWidth(t *testing.T) {
	b := &stubBackend{name: "arxiv", papers: []types.Paper{{ID: "x", Title: "X"}}}
	e := &LiteratureExecutor{Backends: []SearchBackend{b}}

	s := types.ResearchState{Query: "q", MaxPapers: 20}
	result := e.Execute(context.Background(), s, types.Params{MaxResults: 40})

	require.Equal(t, types.ResultSuccess, result.Kind)
	assert.Equal(t, 40, b.gotMax)
	// The widened cap is carried on the delta so it persists on the state.
	assert.Equal(t, 40, result.Delta.MaxPapers)
}

func TestLiteratureExecuteFollowUpNarrowsQuery(t *testing.T) {
	b := &stubBackend{name: "arxiv", papers: []types.Paper{{ID: "x", Title: "X"}}}
	e := &LiteratureExecutor{Backends: []SearchBackend{b}}

	s := types.ResearchState{
		Query:     "sparse attention",
		MaxPapers: 20,
		Synthesis: &types.Synthesis{Gaps: []string{"long-context behavior", "energy cost"}},
	}
	result := e.Execute(context.Background(), s, types.Params{FollowUp: true})

	require.Equal(t, types.ResultSuccess, result.Kind)
	assert.Equal(t, "long-context behavior", b.gotQuery)
}

func TestLiteratureExecuteNoBackends(t *testing.T) {
	e := &LiteratureExecutor{}
	result := e.Execute(context.Background(), types.ResearchState{Query: "q"}, types.Params{})
	assert.Equal(t, types.ResultFatalFailure, result.Kind)
}

const arxivSampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.07041v2</id>
    <title>Efficient Attention Mechanisms for Transformers</title>
    <summary>We survey efficient attention.</summary>
    <published>2023-01-17T00:00:00Z</published>
    <author><name>J. Smith</name></author>
    <author><name>A. Doe</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2302.00001v1</id>
    <title>Sparse Transformers at Scale</title>
    <summary>Scaling sparse attention.</summary>
    <published>2023-02-01T00:00:00Z</published>
    <author><name>B. Jones</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2303.00002v1</id>
    <title>Long Context Benchmarks</title>
    <summary>Benchmarking long contexts.</summary>
    <published>2023-03-01T00:00:00Z</published>
    <author><name>C. Brown</name></author>
  </entry>
</feed>`

func withArxivServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() {
		arxivAPIBase = old
		ts.Close()
	})
	return ts
}

func TestArxivSearch(t *testing.T) {
	var gotQuery string
	withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivSampleFeed)
	})

	b := &ArxivBackend{UserAgent: "research-orchestrator/test"}
	papers, err := b.Search(context.Background(), "sparse attention", 10)
	require.NoError(t, err)
	require.Len(t, papers, 3)

	assert.Equal(t, "all:sparse+attention", gotQuery)

	first := papers[0]
	assert.Equal(t, "2301.07041", first.ID)
	assert.Equal(t, "Efficient Attention Mechanisms for Transformers", first.Title)
	assert.Equal(t, []string{"J. Smith", "A. Doe"}, first.Authors)
	assert.Equal(t, "arxiv", first.Source)
	assert.Equal(t, 1.0, first.RelevanceScore)

	// Position-based relevance decays down the result list.
	assert.Greater(t, papers[0].RelevanceScore, papers[1].RelevanceScore)
	assert.Greater(t, papers[1].RelevanceScore, papers[2].RelevanceScore)
	assert.InDelta(t, 0.1, papers[2].RelevanceScore, 1e-9)
}

func TestArxivSearchSendsAPIKey(t *testing.T) {
	var gotAuth string
	withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivSampleFeed)
	})

	b := &ArxivBackend{UserAgent: "research-orchestrator/test", APIKey: "lit-456"}
	_, err := b.Search(context.Background(), "sparse attention", 10)
	require.NoError(t, err)
	assert.Equal(t, "Bearer lit-456", gotAuth)

	gotAuth = "unset"
	b.APIKey = ""
	_, err = b.Search(context.Background(), "sparse attention", 10)
	require.NoError(t, err)
	assert.Empty(t, gotAuth, "no Authorization header without a key")
}

func TestArxivSearchRateLimited(t *testing.T) {
	withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	b := &ArxivBackend{MaxRetries: 1}
	_, err := b.Search(context.Background(), "q", 10)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestArxivSearchEmptyQuery(t *testing.T) {
	b := &ArxivBackend{}
	_, err := b.Search(context.Background(), "   ", 10)
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041v12", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://example.com/nothing", ""},
	}
	for _, tt := range tests {
		if got := extractArxivID(tt.in); got != tt.want {
			t.Errorf("extractArxivID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
