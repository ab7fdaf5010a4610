package ingest

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	searchListFn  func(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit, fields)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

// mockEmbedder returns a fixed-dimension vector per text.
type mockEmbedder struct {
	batchEmbedFn func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 1}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.batchEmbedFn != nil {
		return m.batchEmbedFn(ctx, texts)
	}
	embeddings := make([][]float32, len(texts))
	for i := range embeddings {
		embeddings[i] = []float32{0.1, 0.2, 0.3}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts)}, nil
}

// singleEmbedder has no batch call, forcing the per-text path.
type singleEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (s *singleEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if s.embedFn != nil {
		return s.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 1}, nil
}

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *mockStore, *mockEmbedder) {
	t.Helper()
	if cfg.Collection == "" {
		cfg.Collection = "sentences"
	}
	ms := &mockStore{}
	me := &mockEmbedder{}
	p := New(ms, me, cfg, zap.NewNop())
	return p, ms, me
}

// sliceSource adapts a fixed row slice to the pipeline's row source.
func sliceSource(rows []SentenceRow) rowSource {
	return func(maxRows int, cb func(SentenceRow) bool) (int, error) {
		read := 0
		for _, r := range rows {
			if maxRows > 0 && read >= maxRows {
				break
			}
			if !cb(r) {
				break
			}
			read++
		}
		return read, nil
	}
}
