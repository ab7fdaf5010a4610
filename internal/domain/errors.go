package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed search request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStoreUnavailable signals that the document store cannot be reached.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
