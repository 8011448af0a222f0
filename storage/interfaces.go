package storage

import (
	"context"

	"github.com/poiesic/vortex/core"
)

// ChunkWriter stores embedded chunks keyed by content hash.
type ChunkWriter interface {
	// Contains reports which of the given hashes are already stored.
	Contains(ctx context.Context, hashes ...string) (map[string]bool, error)

	// Upsert stores records whose hash is not yet present and returns how many
	// were written. Records with an existing hash are left untouched, so
	// repeating a call is harmless.
	Upsert(ctx context.Context, records ...*core.IndexedChunk) (int, error)
}

// PassageSearcher answers similarity queries over stored chunks.
type PassageSearcher interface {
	// Query returns up to k passages chosen by maximal marginal relevance
	// from the fetchK chunks most similar to embedding. lambda weighs
	// relevance (1) against diversity (0).
	// Results are deterministic for a fixed index and embedding.
	Query(ctx context.Context, embedding []float32, k, fetchK int, lambda float64) ([]core.Passage, error)
}

// VectorIndex is a named collection of embedded chunks.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	ChunkWriter
	PassageSearcher

	// Collection returns the name of the collection.
	Collection() string

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// ForEach calls fn with batches of stored chunks in hash order.
	// Iteration stops on the first error from fn.
	ForEach(ctx context.Context, batchSize int, fn func([]*core.IndexedChunk) error) error

	// UpdateVectors replaces the vectors of existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateVectors(ctx context.Context, records ...*core.IndexedChunk) error

	// Close releases resources held by the index.
	Close() error
}

// TranscriptStore persists conversation messages.
// Implementations must be thread-safe and support concurrent access.
type TranscriptStore interface {
	// Append stores a message. Returns ErrDuplicateMessage if a message with the
	// same ID already exists.
	Append(ctx context.Context, msg *core.ConversationMessage) error

	// GetMessage retrieves a single message by ID.
	// Returns ErrNotFound if the message doesn't exist.
	GetMessage(ctx context.Context, id string) (*core.ConversationMessage, error)

	// Thread walks PreviousMessageID links back from id and returns the
	// messages oldest first.
	Thread(ctx context.Context, id string) ([]*core.ConversationMessage, error)

	// Recent returns up to limit messages, most recent first.
	Recent(ctx context.Context, limit int) ([]*core.ConversationMessage, error)
}

// RunLedger records the outcome of ingestion runs.
type RunLedger interface {
	// SaveRun stores report as the latest run of its collection.
	SaveRun(ctx context.Context, report *core.IngestionReport) error

	// LastRun retrieves the latest run of a collection.
	// Returns nil, nil if the collection has never been ingested.
	LastRun(ctx context.Context, collection string) (*core.IngestionReport, error)
}
