// Package chi wires the HTTP API: the search endpoint, health and
// metrics, and the static background page.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/domain"
	"github.com/callsight/callsight/internal/domain/search/mode"
	"github.com/callsight/callsight/internal/domain/search/request"
	"github.com/callsight/callsight/internal/domain/search/result"
	"github.com/callsight/callsight/internal/metrics"
)

// searcher is the search service surface the transport needs.
type searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// pinger reports document store reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthChecker reports embedding provider reachability.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the HTTP API.
type Server struct {
	search         searcher
	store          pinger
	embedder       healthChecker
	backgroundPath string
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. embedder may be nil, in which
// case /healthz checks the store only; backgroundPath may be empty, in
// which case GET /background returns 404.
func NewServer(search searcher, store pinger, embedder healthChecker, backgroundPath string, logger *zap.Logger) *Server {
	s := &Server{
		search:         search,
		store:          store,
		embedder:       embedder,
		backgroundPath: backgroundPath,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
	return s
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/search", s.handleSearch)
	r.Get("/healthz", s.handleHealth)
	r.Get("/background", s.handleBackground)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// Error response codes.
const (
	codeBadRequest             = "bad_request"
	codeValidationFailed       = "validation_failed"
	codeEmbeddingProviderError = "embedding_provider_error"
	codeStoreUnavailable       = "store_unavailable"
	codeInternalError          = "internal_error"
	codeNotFound               = "not_found"
)

type searchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	N     int    `json:"n"`
}

type searchResponse struct {
	Results []result.Result `json:"results"`
	Count   int             `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleSearch handles POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	m, ok := mode.Parse(req.Mode)
	if !ok {
		metrics.SearchRequestsTotal.WithLabelValues(req.Mode, "invalid").Inc()
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"mode must be \"vector\" or \"keyword\"")
		return
	}

	searchReq, err := request.New(req.Query, m, req.N)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "invalid").Inc()
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), &searchReq)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "error").Inc()
		s.handleDomainError(w, err)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues(string(m), "ok").Inc()
	metrics.SearchResultsReturned.WithLabelValues(string(m)).Observe(float64(len(results)))

	if results == nil {
		results = []result.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Results: results,
		Count:   len(results),
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles GET /healthz. Vector search needs both the store
// and the embedding provider, so both are probed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("store health check failed", zap.Error(err))
		checks["store"] = "unreachable"
		healthy = false
	} else {
		checks["store"] = "ok"
	}

	if s.embedder != nil {
		if err := s.embedder.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("embedder health check failed", zap.Error(err))
			checks["embedder"] = "unreachable"
			healthy = false
		} else {
			checks["embedder"] = "ok"
		}
	}

	status, httpStatus := "ok", http.StatusOK
	if !healthy {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: status, Checks: checks})
}

// handleBackground handles GET /background. It serves the static project
// background markdown.
func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	if s.backgroundPath == "" {
		writeError(w, http.StatusNotFound, codeNotFound, "background page not configured")
		return
	}

	data, err := os.ReadFile(s.backgroundPath)
	if err != nil {
		s.logger.Error("reading background page", zap.Error(err))
		writeError(w, http.StatusNotFound, codeNotFound, "background page not available")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrEmbeddingProviderError,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
