// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package executor

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/research-orchestrator/internal/httputil"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// SearchBackend queries one bibliographic source. Backends own all
// protocol-level concerns of their API: request framing, authentication,
// and rate-limit compliance.
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error)
}

// LiteratureExecutor implements the literature_search capability by fanning
// the query out to its backends and merging the results into one delta.
type LiteratureExecutor struct {
	Backends []SearchBackend
}

// Capability identifies the step kind.
func (e *LiteratureExecutor) Capability() types.Capability {
	return types.CapLiteratureSearch
}

// Execute searches all backends concurrently. All backends failing yields a
// classified failure; a subset failing yields a partial success carrying
// whatever was found.
func (e *LiteratureExecutor) Execute(ctx context.Context, snapshot types.ResearchState, params types.Params) types.ExecutorResult {
	if len(e.Backends) == 0 {
		return types.FatalFailure("no search backends configured")
	}

	maxResults := snapshot.MaxPapers
	if params.MaxResults > 0 {
		maxResults = params.MaxResults
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	query := snapshot.Query
	if params.FollowUp && snapshot.Synthesis != nil && len(snapshot.Synthesis.Gaps) > 0 {
		// Gap-driven follow-up narrows the query to the first open gap.
		query = snapshot.Synthesis.Gaps[0]
	}

	type backendResult struct {
		papers []types.Paper
		err    error
		name   string
	}

	ch := make(chan backendResult, len(e.Backends))
	var wg sync.WaitGroup
	for _, b := range e.Backends {
		wg.Add(1)
		go func(b SearchBackend) {
			defer wg.Done()
			papers, err := b.Search(ctx, query, maxResults)
			ch <- backendResult{papers: papers, err: err, name: b.Name()}
		}(b)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var papers []types.Paper
	var failures []string
	var firstErr error
	for br := range ch {
		if br.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", br.name, br.err))
			if firstErr == nil {
				firstErr = br.err
			}
			continue
		}
		papers = append(papers, br.papers...)
	}

	if len(failures) == len(e.Backends) {
		return classify(firstErr)
	}

	delta := types.StateDelta{Papers: papers}
	if params.MaxResults > 0 && params.MaxResults != snapshot.MaxPapers {
		delta.MaxPapers = params.MaxResults
	}

	if len(failures) > 0 {
		return types.PartialSuccess(delta, "backend failures: "+strings.Join(failures, "; "))
	}
	return types.Success(delta)
}

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivBackend queries the arXiv API.
type ArxivBackend struct {
	Client    *http.Client
	UserAgent string

	// APIKey authenticates against rate-limit-exempt mirrors. The public
	// API needs none.
	APIKey     string
	MaxRetries int
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return "arxiv" }

// Search queries the arXiv Atom API and maps entries to papers with a
// position-based relevance score.
func (b *ArxivBackend) Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty arXiv query: %w", ErrBadInput)
	}

	u := fmt.Sprintf("%s?search_query=all:%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, url.QueryEscape(strings.Join(terms, "+")), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.UserAgent)
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, b.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("arXiv API: %w", ErrRateLimited)
	default:
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	total := len(feed.Entries)
	var papers []types.Paper
	for i, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		p := types.Paper{
			ID:       arxivID,
			Title:    strings.TrimSpace(entry.Title),
			Abstract: strings.TrimSpace(entry.Summary),
			Source:   "arxiv",
			Metadata: map[string]string{"published": entry.Published},
		}
		for _, a := range entry.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
		}

		// Position-based relevance: the API sorts by relevance but reports
		// no score.
		if total > 1 {
			p.RelevanceScore = 1.0 - float64(i)/float64(total-1)*0.9
		} else {
			p.RelevanceScore = 1.0
		}

		papers = append(papers, p)
	}
	return papers, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
