// Package search contains the query engine: one store call per request
// plus an optional lexical rerank pass, and the per-mode result
// normalization.
package search

import (
	"context"
	"fmt"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain/search/mode"
	"github.com/callsight/callsight/internal/domain/search/request"
	"github.com/callsight/callsight/internal/domain/search/result"
	"github.com/callsight/callsight/internal/domain/sentence"
)

// Config holds query engine parameters.
type Config struct {
	Collection string
	// Rerank enables the lexical rerank pass in vector mode. The KNN
	// candidate pool is oversampled by RerankFactor and re-ordered by
	// rank fusion against a BM25 pass over the same filter.
	Rerank       bool
	RerankFactor int
}

// Service translates a search request into store calls.
type Service struct {
	repo  Repository
	embed Embedder
	cfg   Config
}

// New creates a search service.
func New(repo Repository, embed Embedder, cfg Config) *Service {
	if cfg.RerankFactor <= 0 {
		cfg.RerankFactor = 3
	}
	return &Service{repo: repo, embed: embed, cfg: cfg}
}

// firmQAFilter scopes vector search to firm-side answers in Q&A sections.
// Not configurable by the caller.
func firmQAFilter() []db.TagFilter {
	return []db.TagFilter{
		{Field: sentence.FieldRole, Value: sentence.RoleFirm},
		{Field: sentence.FieldSection, Value: sentence.SectionQA},
	}
}

// Search executes one search request and returns normalized results in
// store order. Store and provider failures propagate to the caller;
// there are no retries.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	switch req.Mode() {
	case mode.Vector:
		return s.searchVector(ctx, req)
	case mode.Keyword:
		return s.searchKeyword(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode())
	}
}

// searchVector embeds the query and runs a filtered KNN search.
func (s *Service) searchVector(ctx context.Context, req *request.Request) ([]result.Result, error) {
	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	filters := firmQAFilter()

	k := req.N()
	if s.cfg.Rerank {
		k = req.N() * s.cfg.RerankFactor
	}

	hits, err := s.repo.SearchKNN(ctx, s.cfg.Collection, emb.Embedding, filters, k)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	if s.cfg.Rerank && len(hits) > 0 {
		lexical, err := s.repo.SearchBM25(ctx, s.cfg.Collection, req.Query(), filters, k)
		if err != nil {
			return nil, fmt.Errorf("rerank bm25: %w", err)
		}
		hits = rerank(hits, lexical, req.N())
	} else if len(hits) > req.N() {
		hits = hits[:req.N()]
	}

	return normalize(hits, mode.Vector), nil
}

// searchKeyword runs a BM25 search over the text field. No role/section
// filter on purpose: keyword mode searches the whole collection, unlike
// vector mode.
func (s *Service) searchKeyword(ctx context.Context, req *request.Request) ([]result.Result, error) {
	hits, err := s.repo.SearchBM25(ctx, s.cfg.Collection, req.Query(), nil, req.N())
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}

	return normalize(hits, mode.Keyword), nil
}
