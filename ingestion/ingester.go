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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vortex/ai"
	"github.com/poiesic/vortex/chunker"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/parser"
	"github.com/poiesic/vortex/progress"
	"github.com/poiesic/vortex/retry"
	"github.com/poiesic/vortex/storage"
	"golang.org/x/time/rate"
)

const (
	// DefaultEmbedBatchSize is the number of chunks sent per embedding call.
	DefaultEmbedBatchSize = 64

	// DefaultMaxAttempts is the number of attempts for embedding calls and upserts.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the base backoff delay.
	DefaultRetryDelay = time.Second
)

// Index is the part of a vector index the ingester writes to.
type Index interface {
	storage.ChunkWriter
	Collection() string
}

// Ingester loads source directories into a vector index.
type Ingester struct {
	index          Index
	embedder       ai.Embedder
	pool           *ants.Pool
	parser         parser.Parser
	chunker        *chunker.Chunker
	proc           processor
	embedBatchSize int
	limiter        *rate.Limiter
	maxAttempts    int
	retryDelay     time.Duration
	progress       io.Writer
	ledger         storage.RunLedger
	logger         *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester) error

// WithPoolSize sets the worker pool size for parsing and chunking.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(in *Ingester) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if in.pool != nil {
			in.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		in.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingester) error {
		if logger == nil {
			logger = slog.Default()
		}
		in.logger = logger
		return nil
	}
}

// WithParser replaces the default parser.Dispatcher.
func WithParser(p parser.Parser) Option {
	return func(in *Ingester) error {
		if p == nil {
			return errors.New("ingestion: parser cannot be nil")
		}
		in.parser = p
		return nil
	}
}

// WithChunker replaces the default tiktoken chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(in *Ingester) error {
		if c == nil {
			return errors.New("ingestion: chunker cannot be nil")
		}
		in.chunker = c
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per call.
// Default is DefaultEmbedBatchSize.
func WithEmbedBatchSize(size int) Option {
	return func(in *Ingester) error {
		if size < 1 {
			return fmt.Errorf("ingestion: embed batch size must be at least 1, got %d", size)
		}
		in.embedBatchSize = size
		return nil
	}
}

// WithRateLimit caps embedding calls at perSecond, allowing bursts of burst
// calls. By default calls are not limited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(in *Ingester) error {
		if perSecond <= 0 {
			in.limiter = nil
			return nil
		}
		in.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		return nil
	}
}

// WithRetry sets the attempts and base backoff delay used for embedding
// calls and the final upsert.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(in *Ingester) error {
		if maxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		in.maxAttempts = maxAttempts
		in.retryDelay = baseDelay
		return nil
	}
}

// WithProgress reports progress to w, typically os.Stderr.
func WithProgress(w io.Writer) Option {
	return func(in *Ingester) error {
		in.progress = w
		return nil
	}
}

// WithLedger records each run's report in ledger.
func WithLedger(ledger storage.RunLedger) Option {
	return func(in *Ingester) error {
		in.ledger = ledger
		return nil
	}
}

// NewIngester creates a new Ingester.
func NewIngester(index Index, embedder ai.Embedder, opts ...Option) (*Ingester, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	in := &Ingester{
		index:          index,
		embedder:       embedder,
		pool:           pool,
		embedBatchSize: DefaultEmbedBatchSize,
		maxAttempts:    DefaultMaxAttempts,
		retryDelay:     DefaultRetryDelay,
		logger:         slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(in); optErr != nil {
			in.Release()
			return nil, optErr
		}
	}

	// Build collaborators after options are applied
	if in.parser == nil {
		if in.parser, err = parser.NewDispatcher(parser.WithLogger(in.logger)); err != nil {
			in.Release()
			return nil, err
		}
	}
	if in.chunker == nil {
		if in.chunker, err = chunker.New(); err != nil {
			in.Release()
			return nil, err
		}
	}
	in.proc = &parseChunkProcessor{parser: in.parser, chunker: in.chunker}
	in.logger = in.logger.With("component", "ingester", "collection", index.Collection())

	return in, nil
}

// sourceResult is the outcome of processing one source.
type sourceResult struct {
	chunks []core.Chunk
	err    error
}

// Ingest loads every source in dir into the index and returns a report.
//
// Per-source failures are recorded in the report and never abort the run.
// The returned error is non-nil only when discovery fails, ctx is cancelled,
// or the chunks could not be embedded and upserted; the latter wraps
// core.ErrUpsert. The report is returned in every case where it exists.
func (in *Ingester) Ingest(ctx context.Context, dir string) (*core.IngestionReport, error) {
	report := &core.IngestionReport{
		Collection: in.index.Collection(),
		StartedAt:  time.Now().UTC(),
	}

	sources, ignored, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	for _, path := range ignored {
		in.logger.Debug("ignoring entry", "path", path)
	}
	in.logger.Info("starting ingestion", "dir", dir, "sources", len(sources))

	results, err := in.processAll(ctx, sources)
	if err != nil {
		return in.finish(ctx, report, err)
	}

	staged := in.stage(report, sources, results)
	if len(staged) == 0 {
		return in.finish(ctx, report, nil)
	}

	pending, err := in.dropIndexed(ctx, report, staged)
	if err != nil {
		return in.finish(ctx, report, fmt.Errorf("%w: checking existing chunks: %w", core.ErrUpsert, err))
	}
	if len(pending) == 0 {
		return in.finish(ctx, report, nil)
	}

	records, err := in.embed(ctx, pending)
	if err != nil {
		return in.finish(ctx, report, fmt.Errorf("%w: embedding chunks: %w", core.ErrUpsert, err))
	}

	err = retry.WithBackoff(ctx, func() error {
		written, err := in.index.Upsert(ctx, records...)
		report.ChunksWritten += written
		return err
	}, in.maxAttempts, in.retryDelay)
	if err != nil {
		return in.finish(ctx, report, fmt.Errorf("%w: %d chunks: %w", core.ErrUpsert, len(records), err))
	}

	return in.finish(ctx, report, nil)
}

// processAll parses and chunks sources on the pool. Results keep the order
// of sources.
func (in *Ingester) processAll(ctx context.Context, sources []parser.Source) ([]sourceResult, error) {
	results := make([]sourceResult, len(sources))
	tracker := in.tracker("Parsing", len(sources), "sources")

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		err := in.pool.Submit(func() {
			defer wg.Done()
			chunks, err := in.proc.process(ctx, src)
			results[i] = sourceResult{chunks: chunks, err: err}
			tracker.Increment(1)
		})
		if err != nil {
			wg.Done()
			results[i] = sourceResult{err: err}
		}
	}
	wg.Wait()
	tracker.Finish()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// stage records per-source outcomes and returns the distinct chunks in
// discovery order. The first occurrence of a content hash wins.
func (in *Ingester) stage(report *core.IngestionReport, sources []parser.Source, results []sourceResult) []core.Chunk {
	seen := make(map[string]bool)
	var staged []core.Chunk
	for i, res := range results {
		name := sources[i].Name()
		if res.err != nil {
			in.logger.Warn("failed to process source", "source", name, "err", res.err)
			report.Failed++
			report.Failures = append(report.Failures, core.SourceFailure{Source: name, Reason: res.err.Error()})
			continue
		}
		if len(res.chunks) == 0 {
			in.logger.Info("source produced no chunks", "source", name)
			report.Skipped++
			continue
		}

		report.Processed++
		for _, chunk := range res.chunks {
			if seen[chunk.ContentHash] {
				report.DuplicateChunks++
				continue
			}
			seen[chunk.ContentHash] = true
			staged = append(staged, chunk)
		}
	}
	report.ChunksStaged = len(staged)
	return staged
}

// dropIndexed removes chunks whose hash the index already holds.
func (in *Ingester) dropIndexed(ctx context.Context, report *core.IngestionReport, staged []core.Chunk) ([]core.Chunk, error) {
	hashes := make([]string, len(staged))
	for i, chunk := range staged {
		hashes[i] = chunk.ContentHash
	}
	existing, err := in.index.Contains(ctx, hashes...)
	if err != nil {
		return nil, err
	}

	pending := make([]core.Chunk, 0, len(staged))
	for _, chunk := range staged {
		if existing[chunk.ContentHash] {
			report.ChunksUnchanged++
			continue
		}
		pending = append(pending, chunk)
	}
	return pending, nil
}

func (in *Ingester) finish(ctx context.Context, report *core.IngestionReport, err error) (*core.IngestionReport, error) {
	report.FinishedAt = time.Now().UTC()

	if err != nil {
		in.logger.Error("ingestion failed", "err", err, "written", report.ChunksWritten)
	} else {
		in.logger.Info("ingestion complete",
			"processed", report.Processed,
			"skipped", report.Skipped,
			"failed", report.Failed,
			"staged", report.ChunksStaged,
			"unchanged", report.ChunksUnchanged,
			"written", report.ChunksWritten,
			"elapsed", report.Duration())
	}

	if in.ledger != nil && ctx.Err() == nil {
		if saveErr := in.ledger.SaveRun(ctx, report); saveErr != nil {
			in.logger.Warn("failed to record ingestion run", "err", saveErr)
		}
	}
	return report, err
}

// tracker returns a progress tracker, writing nowhere when no progress
// writer is configured.
func (in *Ingester) tracker(label string, total int, unit string) *progress.Tracker {
	w := in.progress
	if w == nil {
		w = io.Discard
	}
	t := progress.NewTracker(w, total, 1).WithLabel(label).WithUnit(unit)
	t.Start()
	return t
}

// Release releases resources including the worker pool.
// The ingester should not be used after calling Release.
func (in *Ingester) Release() {
	if in.pool != nil {
		in.pool.Release()
	}
}

// FailureSummary joins the per-source failures of report into one error.
// Returns nil when every source succeeded.
func FailureSummary(report *core.IngestionReport) error {
	if report == nil {
		return nil
	}
	errs := make([]error, len(report.Failures))
	for i, f := range report.Failures {
		errs[i] = fmt.Errorf("%s: %s", f.Source, f.Reason)
	}
	return errors.Join(errs...)
}
