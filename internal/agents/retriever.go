// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultRequestDelay is the pause between consecutive feed requests.
const DefaultRequestDelay = 3 * time.Second

// UnknownQueryID keys results of a query that has no ID.
const UnknownQueryID = "unknown"

// PaperSource runs one search query. *arxiv.Client satisfies it.
type PaperSource interface {
	Search(ctx context.Context, query string) ([]types.Paper, error)
}

// Retriever runs a plan's queries against a PaperSource. Unlike the other
// agents it makes no LLM call.
type Retriever struct {
	Source PaperSource

	// Delay is the pause before every request but the first.
	Delay time.Duration

	Logger *zap.Logger
}

// NewRetriever returns a Retriever over src.
func NewRetriever(src PaperSource, delay time.Duration, logger *zap.Logger) *Retriever {
	return &Retriever{Source: src, Delay: delay, Logger: orNop(logger)}
}

// Search runs each query in order, one request per query, and returns the
// papers keyed by query ID. A paper already returned for an earlier query
// of the same call is omitted. A failed request stores a single error
// marker for its query instead of papers. If ctx ends during a delay the
// queries not yet run are skipped.
func (r *Retriever) Search(ctx context.Context, queries []types.SearchQuery) *types.PaperIndex {
	index := types.NewPaperIndex()
	seen := make(map[string]bool)

	for i, q := range queries {
		if i > 0 && !sleep(ctx, r.Delay) {
			r.Logger.Info("retrieval interrupted", zap.Int("remaining", len(queries)-i))
			break
		}

		qid := q.ID
		if qid == "" {
			qid = UnknownQueryID
		}

		papers, err := r.Source.Search(ctx, q.Query)
		if err != nil {
			r.Logger.Warn("search failed", zap.String("query_id", qid), zap.String("query", q.Query), zap.Error(err))
			index.Set(qid, []types.Paper{{Error: err.Error(), Query: q.Query}})
			continue
		}

		unique := make([]types.Paper, 0, len(papers))
		for _, p := range papers {
			if seen[p.ArxivID] {
				continue
			}
			seen[p.ArxivID] = true
			unique = append(unique, p)
		}
		r.Logger.Debug("search done", zap.String("query_id", qid), zap.Int("returned", len(papers)), zap.Int("new", len(unique)))
		index.Set(qid, unique)
	}
	return index
}

// TotalPaperCount returns the sum of list lengths across all query IDs.
// Papers listed under several IDs are counted once per ID.
func (r *Retriever) TotalPaperCount(index *types.PaperIndex) int {
	return index.Total()
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
