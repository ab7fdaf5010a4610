package search

import (
	"context"
	"testing"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain"
	"github.com/callsight/callsight/internal/domain/search/result"
)

// mockRepo implements Repository for tests.
type mockRepo struct {
	searchKNNFn  func(ctx context.Context, collection string, vector []float32, filters []db.TagFilter, k int) ([]result.Hit, error)
	searchBM25Fn func(ctx context.Context, collection string, query string, filters []db.TagFilter, topK int) ([]result.Hit, error)
}

func (m *mockRepo) SearchKNN(
	ctx context.Context, collection string, vector []float32, filters []db.TagFilter, k int,
) ([]result.Hit, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, collection, vector, filters, k)
	}
	return nil, nil
}

func (m *mockRepo) SearchBM25(
	ctx context.Context, collection string, query string, filters []db.TagFilter, topK int,
) ([]result.Hit, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, collection, query, filters, topK)
	}
	return nil, nil
}

// mockEmbedder implements Embedder for tests.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

func newTestService(t *testing.T, cfg Config) (*Service, *mockRepo, *mockEmbedder) {
	t.Helper()
	if cfg.Collection == "" {
		cfg.Collection = "sentences"
	}
	mr := &mockRepo{}
	me := &mockEmbedder{}
	return New(mr, me, cfg), mr, me
}

func testHit(docID string, score float64) result.Hit {
	return result.Hit{
		DocID:   docID,
		Score:   score,
		Title:   "Acme Q3 Call",
		Coname:  "Acme Corp",
		FY:      2019,
		Q:       3,
		Speaker: "John Doe",
		Text:    "revenue grew",
	}
}
