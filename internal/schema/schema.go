// Package schema defines and applies the earnings-call sentence index.
package schema

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain"
	"github.com/callsight/callsight/internal/domain/sentence"
)

// store is the consumer interface for index management (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, dropDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig holds HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
	EFRuntime   int
}

// Definer creates the sentence index with replace semantics: an existing
// index of the same name is dropped together with its documents before
// the new one is created. Apply is destructive on purpose.
type Definer struct {
	store      store
	collection string
	vectorDim  int
	hnsw       HNSWConfig
	log        *zap.Logger
}

// New creates a schema definer for the named collection.
func New(s store, collection string, vectorDim int, hnsw HNSWConfig, log *zap.Logger) *Definer {
	if hnsw.M <= 0 {
		hnsw.M = 64
	}
	if hnsw.EFConstruct <= 0 {
		hnsw.EFConstruct = 512
	}
	if hnsw.EFRuntime <= 0 {
		hnsw.EFRuntime = 512
	}
	return &Definer{store: s, collection: collection, vectorDim: vectorDim, hnsw: hnsw, log: log}
}

// Apply drops any existing index (documents included) and creates a fresh
// one. Running it twice in a row leaves the store in the same state.
func (d *Definer) Apply(ctx context.Context) error {
	idxName := indexName(d.collection)

	exists, err := d.store.IndexExists(ctx, idxName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", idxName, err)
	}
	if exists {
		d.log.Warn("dropping existing index and its documents", zap.String("index", idxName))
		if err := d.store.DropIndex(ctx, idxName, true); err != nil {
			return fmt.Errorf("drop index %s: %w", idxName, err)
		}
	}

	def, err := d.buildIndex()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if err := d.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", idxName, err)
	}

	d.log.Info("index created",
		zap.String("index", idxName),
		zap.Int("vector_dim", d.vectorDim),
		zap.Int("hnsw_m", d.hnsw.M),
		zap.Int("hnsw_ef_construct", d.hnsw.EFConstruct),
		zap.Int("hnsw_ef_runtime", d.hnsw.EFRuntime),
	)
	return nil
}

// buildIndex assembles the sentence index definition. doc_id is stored in
// the hash but not indexed; it is recoverable from the key suffix. role is
// a case-sensitive tag so "Firm" matches whole tokens only, while title,
// coname, speaker and text are TEXT fields folded to lowercase by the
// store's tokenizer.
func (d *Definer) buildIndex() (*db.IndexDefinition, error) {
	return db.NewIndex(indexName(d.collection)).
		Prefix(collectionPrefix(d.collection)).
		Numeric(sentence.FieldSAID).
		Text(sentence.FieldTitle).
		Text(sentence.FieldConame).
		Numeric(sentence.FieldFY).
		Numeric(sentence.FieldQ).
		Tag(sentence.FieldSection).
		Text(sentence.FieldSpeaker).
		TagCaseSensitive(sentence.FieldRole).
		Text(sentence.FieldText).
		VectorHNSW(sentence.FieldVector, "vector", d.vectorDim, db.DistanceCosine,
			d.hnsw.M, d.hnsw.EFConstruct, d.hnsw.EFRuntime).
		Build()
}

func indexName(collection string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, collection)
}

func collectionPrefix(collection string) string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, collection)
}

// IndexName returns the FT index name for a collection.
func IndexName(collection string) string { return indexName(collection) }

// CollectionPrefix returns the hash key prefix for a collection.
func CollectionPrefix(collection string) string { return collectionPrefix(collection) }
