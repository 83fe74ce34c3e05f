// Package search provides web search augmentation for lookup-style
// templates. Search is best-effort: a failed or unconfigured search degrades
// the prompt, never the cell.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gridmind/gridmind/internal/core"
)

const (
	defaultBaseURL    = "https://google.serper.dev"
	defaultTimeout    = 10 * time.Second
	defaultMaxResults = 5

	// summaryLimit bounds the folded summary so prompts stay cell-sized.
	summaryLimit = 500
)

// SerperClient queries the Serper web search API.
type SerperClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// SerperOption configures a SerperClient.
type SerperOption func(*SerperClient)

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(url string) SerperOption {
	return func(c *SerperClient) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) SerperOption {
	return func(c *SerperClient) { c.httpClient = hc }
}

// NewSerperClient creates a search client. apiKey is the configured default
// credential; per-request keys take precedence.
func NewSerperClient(apiKey string, opts ...SerperOption) *SerperClient {
	c := &SerperClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledgeGraph,omitempty"`
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox,omitempty"`
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic,omitempty"`
}

// Search runs one web query and folds the response into a search context.
// Source priority for the summary: knowledge graph, then answer box, then
// the top organic snippet.
func (c *SerperClient) Search(ctx context.Context, query string, maxResults int, apiKey string) (*core.SearchContext, error) {
	key := apiKey
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return nil, core.ErrSearchUnavailable("no search API key configured")
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: maxResults})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("X-API-KEY", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.ErrTimeout("search request timed out").WithCause(err)
		}
		return nil, core.ErrSearchUnavailable("search request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, core.ErrAuth("search API rejected the credential")
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, core.ErrRateLimit("search API rate limit hit")
		default:
			return nil, core.ErrSearchUnavailable(fmt.Sprintf("search API returned status %d", resp.StatusCode))
		}
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, core.ErrSearchUnavailable("decoding search response").WithCause(err)
	}

	return fold(query, &parsed, maxResults), nil
}

// fold shapes a raw API response into the prompt-facing context.
func fold(query string, resp *serperResponse, maxResults int) *core.SearchContext {
	sc := &core.SearchContext{Query: query}

	if kg := resp.KnowledgeGraph; kg != nil && (kg.Title != "" || kg.Description != "") {
		sc.Summary = truncate(joinNonEmpty(kg.Title, kg.Description), summaryLimit)
	}
	if sc.Summary == "" && resp.AnswerBox != nil {
		answer := resp.AnswerBox.Answer
		if answer == "" {
			answer = resp.AnswerBox.Snippet
		}
		sc.Summary = truncate(answer, summaryLimit)
	}

	for _, o := range resp.Organic {
		if len(sc.Results) >= maxResults {
			break
		}
		if o.Title == "" && o.Snippet == "" {
			continue
		}
		sc.Results = append(sc.Results, core.SearchResult{
			Title:   o.Title,
			Snippet: truncate(o.Snippet, summaryLimit),
			URL:     o.Link,
		})
	}

	if sc.Summary == "" && len(sc.Results) > 0 {
		sc.Summary = sc.Results[0].Snippet
	}
	return sc
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + ": " + b
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so a multi-byte character is never split.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
