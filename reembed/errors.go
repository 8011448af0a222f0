package reembed

import "errors"

var (
	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")

	// ErrIndexRequired is returned when no vector index is supplied.
	ErrIndexRequired = errors.New("vector index is required")
)
