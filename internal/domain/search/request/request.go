// Package request defines the validated search request.
package request

import (
	"fmt"

	"github.com/callsight/callsight/internal/domain"
	"github.com/callsight/callsight/internal/domain/search/mode"
)

// Result-count bounds. The bound on N belongs to the input surface: out of
// range values are clamped, never rejected.
const (
	DefaultN = 5
	MinN     = 1
	MaxN     = 100
)

// Request is a validated search request. The query text may be empty; it
// is passed through to the document store, whose behavior for an empty
// probe is store-defined.
type Request struct {
	query      string
	searchMode mode.Mode
	n          int
}

// New validates mode and clamps n into [MinN, MaxN]. n <= 0 selects DefaultN.
func New(query string, m mode.Mode, n int) (Request, error) {
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidRequest, m)
	}
	if n <= 0 {
		n = DefaultN
	}
	if n < MinN {
		n = MinN
	}
	if n > MaxN {
		n = MaxN
	}
	return Request{query: query, searchMode: m, n: n}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// N returns the result bound, always in [MinN, MaxN].
func (r *Request) N() int { return r.n }
