// Package mode defines the search strategy selector.
package mode

import "strings"

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Vector retrieves by embedding-space similarity to the query's meaning.
	Vector Mode = "vector"
	// Keyword retrieves by BM25 term-overlap relevance.
	Keyword Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Vector || m == Keyword
}

// Parse maps a user-supplied mode label to a Mode, case-insensitively,
// so the presentation layer's "Vector"/"Keyword" labels work unchanged.
func Parse(s string) (Mode, bool) {
	m := Mode(strings.ToLower(s))
	return m, m.IsValid()
}
