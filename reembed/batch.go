package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/vortex/ai"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/retry"
	"github.com/poiesic/vortex/storage"
)

// BatchProcessor handles embedding generation for batches of chunks.
type BatchProcessor struct {
	index          storage.VectorIndex
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(index storage.VectorIndex, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		index:          index,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of chunks and writes the new
// vectors back to the index.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.IndexedChunk) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := retry.WithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(records), len(embeddings))
	}

	for i := range records {
		records[i].Vector = storage.NormalizeVector(embeddings[i])
	}

	if err := bp.index.UpdateVectors(ctx, records...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}
	return nil
}
