// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/storage"
)

// ChunkIndex implements storage.VectorIndex for BadgerDB.
// Each collection lives under its own key prefix, so several indexes can
// share one backend.
type ChunkIndex struct {
	backend    *Backend
	collection string
	prefix     []byte
	logger     *slog.Logger
}

var _ storage.VectorIndex = (*ChunkIndex)(nil)

// NewChunkIndex creates an index over the named collection.
func NewChunkIndex(backend *Backend, collection string) (*ChunkIndex, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if collection == "" || strings.Contains(collection, ":") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	return &ChunkIndex{
		backend:    backend,
		collection: collection,
		prefix:     makeChunkPrefix(collection),
		logger:     slog.Default().With("component", "chunk-index", "collection", collection),
	}, nil
}

// Collection returns the name of the collection.
func (ix *ChunkIndex) Collection() string {
	return ix.collection
}

// Close is a no-op; the backend is owned by the caller.
func (ix *ChunkIndex) Close() error {
	return nil
}

// Contains reports which of the given hashes are already stored.
func (ix *ChunkIndex) Contains(ctx context.Context, hashes ...string) (map[string]bool, error) {
	found := make(map[string]bool, len(hashes))
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		for _, hash := range hashes {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := tx.Get(makeChunkKey(ix.collection, hash))
			if err == nil {
				found[hash] = true
				continue
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
		}
		return nil
	}, false)
	return found, err
}

// Upsert stores records whose hash is not yet present and returns how many
// were written. Existing chunks are never overwritten.
func (ix *ChunkIndex) Upsert(ctx context.Context, records ...*core.IndexedChunk) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	hashes := make([]string, len(records))
	for i, record := range records {
		if record.ContentHash == "" {
			return 0, fmt.Errorf("%w: chunk %d of %q has no content hash", storage.ErrInvalidChunk, record.ChunkIndex, record.Metadata.Name)
		}
		hashes[i] = record.ContentHash
	}

	existing, err := ix.Contains(ctx, hashes...)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	written := 0
	err = ix.backend.WithWriteBatch(func(wb *badger.WriteBatch) error {
		for _, record := range records {
			if existing[record.ContentHash] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if record.InsertedAt.IsZero() {
				record.InsertedAt = now
			}
			key := makeChunkKey(ix.collection, record.ContentHash)
			if err := wb.Set(key, storage.MarshalIndexedChunk(record)); err != nil {
				return err
			}
			// Guard against the same hash twice in one call.
			existing[record.ContentHash] = true
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	ix.logger.Debug("upserted chunks", "written", written, "skipped", len(records)-written)
	return written, nil
}

// scored is a query candidate.
type scored struct {
	record *core.IndexedChunk
	score  float64
}

// Query returns up to k passages picked by maximal marginal relevance from
// the fetchK chunks most similar to embedding.
func (ix *ChunkIndex) Query(ctx context.Context, embedding []float32, k, fetchK int, lambda float64) ([]core.Passage, error) {
	if k < 1 || fetchK < k || lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("%w: k=%d fetchK=%d lambda=%v", storage.ErrInvalidQuery, k, fetchK, lambda)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", storage.ErrInvalidQuery)
	}

	var candidates []scored
	err := ix.backend.scanPrefix(ctx, ix.prefix, func(_, val []byte) error {
		record, err := storage.UnmarshalIndexedChunk(val)
		if err != nil {
			return err
		}
		if len(record.Vector) == 0 {
			return nil
		}
		candidates = append(candidates, scored{
			record: record,
			score:  storage.CosineSimilarity(embedding, record.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Highest similarity first; equal scores fall back to hash order so that
	// results never depend on storage layout.
	slices.SortFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(a.record.ContentHash, b.record.ContentHash)
	})
	if len(candidates) > fetchK {
		candidates = candidates[:fetchK]
	}

	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i] = c.record.Vector
	}
	selected := storage.SelectMMR(embedding, vectors, k, lambda)

	passages := make([]core.Passage, 0, len(selected))
	for _, i := range selected {
		c := candidates[i]
		passages = append(passages, core.Passage{
			Text:        c.record.Text,
			Metadata:    c.record.Metadata,
			ContentHash: c.record.ContentHash,
			Score:       float32(c.score),
		})
	}

	ix.logger.Debug("query complete", "candidates", len(candidates), "returned", len(passages))
	return passages, nil
}

// Count returns the number of stored chunks.
func (ix *ChunkIndex) Count(ctx context.Context) (int, error) {
	count := 0
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ix.prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ForEach calls fn with batches of stored chunks in hash order.
// The chunks are read up front so fn may write to the index.
func (ix *ChunkIndex) ForEach(ctx context.Context, batchSize int, fn func([]*core.IndexedChunk) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size %d", storage.ErrInvalidQuery, batchSize)
	}

	var records []*core.IndexedChunk
	err := ix.backend.scanPrefix(ctx, ix.prefix, func(_, val []byte) error {
		record, err := storage.UnmarshalIndexedChunk(val)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return err
	}

	for batch := range slices.Chunk(records, batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// UpdateVectors replaces the vectors of existing chunks.
func (ix *ChunkIndex) UpdateVectors(ctx context.Context, records ...*core.IndexedChunk) error {
	return ix.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := makeChunkKey(ix.collection, record.ContentHash)
			val, err := getValue(tx, key)
			if err != nil {
				return err
			}
			if val == nil {
				return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, record.ContentHash)
			}
			stored, err := storage.UnmarshalIndexedChunk(val)
			if err != nil {
				return err
			}
			stored.Vector = record.Vector
			if err := tx.Set(key, storage.MarshalIndexedChunk(stored)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}
