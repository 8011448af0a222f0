package ai

import (
	"context"
	"iter"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces chat completions.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Complete returns the whole completion for messages.
	Complete(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Stream yields completion text fragments in the order the model produces
	// them. A failure is yielded once as a non-nil error and ends the sequence.
	// Cancelling ctx or breaking out of the range stops generation.
	Stream(ctx context.Context, messages []Message, opts ...GenerateOption) iter.Seq2[string, error]
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the chat completion service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
