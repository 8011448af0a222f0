package ingestion

import (
	"context"
	"fmt"
	"slices"

	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/retry"
	"github.com/poiesic/vortex/storage"
)

// embed generates unit-length vectors for chunks in batches. Each call is
// rate limited when a limiter is configured and retried with backoff.
func (in *Ingester) embed(ctx context.Context, chunks []core.Chunk) ([]*core.IndexedChunk, error) {
	records := make([]*core.IndexedChunk, 0, len(chunks))
	tracker := in.tracker("Embedding", len(chunks), "chunks")
	defer tracker.Finish()

	for batch := range slices.Chunk(chunks, in.embedBatchSize) {
		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		var embeddings [][]float32
		err := retry.WithBackoff(ctx, func() error {
			if in.limiter != nil {
				if err := in.limiter.Wait(ctx); err != nil {
					return retry.Permanent(err)
				}
			}
			var err error
			embeddings, err = in.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				return err
			}
			if len(embeddings) != len(texts) {
				return retry.Permanent(fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(texts), len(embeddings)))
			}
			return nil
		}, in.maxAttempts, in.retryDelay)
		if err != nil {
			return nil, err
		}

		for i, chunk := range batch {
			records = append(records, &core.IndexedChunk{
				Chunk:  chunk,
				Vector: storage.NormalizeVector(embeddings[i]),
			})
		}
		in.logger.Debug("embedded batch", "chunks", len(batch), "total", len(records))
		tracker.Increment(len(batch))
	}
	return records, nil
}
