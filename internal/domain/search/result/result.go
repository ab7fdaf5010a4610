// Package result defines search hits and the normalized result shape.
package result

import "fmt"

// Hit is a single raw document store hit, in store order. Score carries the
// mode-specific relevance signal: cosine distance (0 = identical) in vector
// mode, BM25 score (higher = better) in keyword mode.
type Hit struct {
	DocID   string
	Score   float64
	Title   string
	Coname  string
	FY      int
	Q       int
	Speaker string
	Text    string
}

// Result is the uniform ranked result returned to the presentation layer.
// The shape is identical across modes so callers never branch on mode;
// Relevance is comparable within one mode, not across modes.
type Result struct {
	Relevance float64 `json:"relevance"`
	Coname    string  `json:"coname"`
	Fiscal    string  `json:"fyq"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
}

// FiscalLabel composes the display label for a fiscal period.
func FiscalLabel(fy, q int) string {
	return fmt.Sprintf("FY%d Q%d", fy, q)
}
