package db

// TagFilter is a single conjunctive whole-token pre-filter clause.
type TagFilter struct {
	Field string
	Value string
}

// KNNQuery is the input for vector similarity search. The resulting
// entry scores are raw cosine distances (0 = identical, 2 = opposite);
// callers own the conversion to a user-facing relevance.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Filters      []TagFilter // ANDed pre-filter, applied before KNN
	ReturnFields []string
}

// TextQuery is the input for BM25 text search. SearchField restricts term
// matching to one TEXT field; entry scores are BM25 scores (higher = better).
type TextQuery struct {
	IndexName    string
	Query        string
	SearchField  string
	TopK         int
	Filters      []TagFilter
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
