package search

import (
	"math"
	"strings"

	"github.com/callsight/callsight/internal/domain/search/mode"
	"github.com/callsight/callsight/internal/domain/search/result"
)

// relevance transforms per mode: vector hits carry a cosine distance
// (0 = identical), keyword hits carry a BM25 score (already
// higher-is-better). Both end up as a rounded higher-is-better number.
var relevanceByMode = map[mode.Mode]func(score float64) float64{
	mode.Vector:  func(distance float64) float64 { return round4(1 - distance) },
	mode.Keyword: round4,
}

// normalize maps raw hits into the uniform result shape, preserving the
// order the store returned. No local re-sorting: ordering is the store's
// responsibility.
func normalize(hits []result.Hit, m mode.Mode) []result.Result {
	relevance := relevanceByMode[m]

	results := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, result.Result{
			Relevance: relevance(h.Score),
			Coname:    strings.TrimSpace(h.Coname),
			Fiscal:    result.FiscalLabel(h.FY, h.Q),
			Speaker:   h.Speaker,
			Text:      h.Text,
		})
	}
	return results
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
