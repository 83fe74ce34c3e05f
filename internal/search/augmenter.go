package search

import (
	"context"
	"time"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/logging"
)

// Augmenter fetches search context for templates that want it. It never
// propagates failure: when search is slow, unconfigured, or broken, the
// prompt proceeds without context and the result carries a note saying so.
type Augmenter struct {
	client  core.SearchClient
	timeout time.Duration
	maxHits int
	logger  *logging.Logger
}

// NewAugmenter wraps a search client. A nil client disables augmentation.
func NewAugmenter(client core.SearchClient, timeout time.Duration, maxHits int, logger *logging.Logger) *Augmenter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxHits <= 0 {
		maxHits = defaultMaxResults
	}
	return &Augmenter{client: client, timeout: timeout, maxHits: maxHits, logger: logger}
}

// Augment fetches context for the query. The returned note is non-empty when
// augmentation was requested but unavailable; it travels with the result so
// users can see the answer was produced without search.
func (a *Augmenter) Augment(ctx context.Context, query, apiKey string) (*core.SearchContext, string) {
	if a == nil || a.client == nil {
		return nil, "web search not configured"
	}

	searchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	sc, err := a.client.Search(searchCtx, query, a.maxHits, apiKey)
	if err != nil {
		a.logger.Warn("search augmentation unavailable", "query", query, "error", err)
		return nil, "web search unavailable: " + string(core.GetCategory(err))
	}
	if sc == nil || (sc.Summary == "" && len(sc.Results) == 0) {
		return nil, "web search returned no results"
	}
	return sc, ""
}
