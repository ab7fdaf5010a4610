package chi

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/domain/search/request"
	"github.com/callsight/callsight/internal/domain/search/result"
	"github.com/callsight/callsight/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterDomainMetrics()
	os.Exit(m.Run())
}

type mockSearcher struct {
	searchFunc func(ctx context.Context, req *request.Request) ([]result.Result, error)
}

func (m *mockSearcher) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, req)
	}
	return nil, nil
}

type mockPinger struct {
	pingFunc func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

type mockHealthChecker struct {
	healthCheckFunc func(ctx context.Context) error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.healthCheckFunc != nil {
		return m.healthCheckFunc(ctx)
	}
	return nil
}

// newTestServer mounts the API on a fresh router and returns the test
// server together with the mocks.
func newTestServer(t *testing.T) (*httptest.Server, *mockSearcher, *mockPinger, *mockHealthChecker) {
	t.Helper()

	search := &mockSearcher{}
	store := &mockPinger{}
	embedder := &mockHealthChecker{}

	srv := NewServer(search, store, embedder, "", zap.NewNop())
	r := chi.NewRouter()
	srv.Register(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return ts, search, store, embedder
}
