// Package search adapts FT search results into domain hits.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain"
	"github.com/callsight/callsight/internal/domain/search/result"
	"github.com/callsight/callsight/internal/domain/sentence"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// displayFields are the hash fields fetched per hit. The embedding is
// never requested; it is not displayed and only inflates the response.
var displayFields = []string{
	sentence.FieldDocID,
	sentence.FieldTitle,
	sentence.FieldConame,
	sentence.FieldFY,
	sentence.FieldQ,
	sentence.FieldSpeaker,
	sentence.FieldText,
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchKNN performs a vector similarity search with conjunctive tag
// pre-filtering. Hit scores are raw cosine distances.
func (r *Repo) SearchKNN(
	ctx context.Context, collection string,
	vector []float32, filters []db.TagFilter, k int,
) ([]result.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    indexName(collection),
		Vector:       vector,
		K:            k,
		Filters:      filters,
		ReturnFields: displayFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, storeErr("search knn", collection, err)
	}

	return parseHits(sr, collection), nil
}

// SearchBM25 performs a lexical relevance search restricted to the text
// field. Hit scores are BM25 scores.
func (r *Repo) SearchBM25(
	ctx context.Context, collection string,
	query string, filters []db.TagFilter, topK int,
) ([]result.Hit, error) {
	q := &db.TextQuery{
		IndexName:    indexName(collection),
		Query:        query,
		SearchField:  sentence.FieldText,
		TopK:         topK,
		Filters:      filters,
		ReturnFields: displayFields,
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, storeErr("search bm25", collection, err)
	}

	return parseHits(sr, collection), nil
}

// storeErr classifies store command failures as domain.ErrStoreUnavailable
// so the transport answers 503 instead of a generic 500.
func storeErr(op, collection string, err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return fmt.Errorf("%s %s: %w: %w", op, collection, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w", op, collection, err)
}

// parseHits converts store entries into hits, preserving store order.
func parseHits(sr *db.SearchResult, collection string) []result.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := fmt.Sprintf("%s%s:", domain.KeyPrefix, collection)
	hits := make([]result.Hit, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		docID := entry.Fields[sentence.FieldDocID]
		if docID == "" {
			docID = strings.TrimPrefix(entry.Key, prefix)
		}

		fy, _ := strconv.Atoi(entry.Fields[sentence.FieldFY])
		q, _ := strconv.Atoi(entry.Fields[sentence.FieldQ])

		hits = append(hits, result.Hit{
			DocID:   docID,
			Score:   entry.Score,
			Title:   entry.Fields[sentence.FieldTitle],
			Coname:  entry.Fields[sentence.FieldConame],
			FY:      fy,
			Q:       q,
			Speaker: entry.Fields[sentence.FieldSpeaker],
			Text:    entry.Fields[sentence.FieldText],
		})
	}

	return hits
}

func indexName(collection string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, collection)
}
