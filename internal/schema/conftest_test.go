package schema

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string, dropDocs bool) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, dropDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, dropDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestDefiner(t *testing.T, vectorDim int) (*Definer, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	d := New(ms, "sentences", vectorDim, HNSWConfig{}, zap.NewNop())
	return d, ms
}
