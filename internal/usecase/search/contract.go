package search

import (
	"context"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain"
	"github.com/callsight/callsight/internal/domain/search/result"
)

// Repository provides search data access.
type Repository interface {
	SearchKNN(ctx context.Context, collection string, vector []float32, filters []db.TagFilter, k int) ([]result.Hit, error)
	SearchBM25(ctx context.Context, collection string, query string, filters []db.TagFilter, topK int) ([]result.Hit, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
