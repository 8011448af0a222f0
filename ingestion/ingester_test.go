package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/vortex/ai/mock"
	"github.com/poiesic/vortex/chunker"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/parser"
	"github.com/poiesic/vortex/storage"
	"github.com/poiesic/vortex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor serves fixed pages for every PDF.
type fakeExtractor struct {
	pages []string
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (*parser.Extraction, error) {
	return &parser.Extraction{Pages: f.pages}, nil
}

// failingIndex wraps an index and fails every upsert.
type failingIndex struct {
	storage.VectorIndex
	upserts int
}

func (f *failingIndex) Upsert(ctx context.Context, records ...*core.IndexedChunk) (int, error) {
	f.upserts++
	return 0, errors.New("index unavailable")
}

func writeRecord(t *testing.T, dir, file, content, link, name string) {
	t.Helper()
	rec := parser.Record{
		Content: content,
		Metadata: parser.RecordMetadata{
			Link: link,
			Name: name,
			Date: "2023-05-14",
			Type: "json",
		},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), data, 0o644))
}

// longText numbers each repetition so that no two windows are identical.
func longText(sentence string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s (%d)", sentence, i)
	}
	return strings.Join(parts, " ")
}

func setupTestIndex(t *testing.T) (storage.VectorIndex, *badger.Backend) {
	t.Helper()
	index, _, backend, err := badger.NewMemoryStores("test")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return index, backend
}

func newTestIngester(t *testing.T, index Index, embedder *mock.MockEmbedder, opts ...Option) *Ingester {
	t.Helper()
	c, err := chunker.New(chunker.WithSize(40), chunker.WithOverlap(4))
	require.NoError(t, err)
	p, err := parser.NewDispatcher(parser.WithExtractor(&fakeExtractor{pages: []string{"Tuition fees for 2023 are listed in the annex."}}))
	require.NoError(t, err)

	base := []Option{
		WithPoolSize(2),
		WithChunker(c),
		WithParser(p),
		WithRetry(2, time.Millisecond),
	}
	ing, err := NewIngester(index, embedder, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(ing.Release)
	return ing
}

func TestIngester_Ingest(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", longText("Tuition fees will rise next year for every undergraduate course.", 12), "https://example.org/a", "Fees rise")
	writeRecord(t, dir, "b.json", "Students plan a protest outside the library.", "https://example.org/b", "Protest")
	writeRecord(t, dir, "c.json", "   ", "https://example.org/c", "Empty")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.json"), []byte(`{"content": `), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	index, _ := setupTestIndex(t)
	embedder := mock.NewMockEmbedder()
	ing := newTestIngester(t, index, embedder)

	report, err := ing.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "test", report.Collection)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "d.json"), report.Failures[0].Source)
	assert.Greater(t, report.ChunksStaged, 2, "the long record spans several chunks")
	assert.Equal(t, report.ChunksStaged, report.ChunksWritten)
	assert.Zero(t, report.ChunksUnchanged)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.ChunksWritten, count)
	assert.Equal(t, report.ChunksWritten, embedder.TextsEmbedded())

	passages, err := index.Query(context.Background(), mock.BagOfWordsVector("protest library", mock.DefaultDimensions), 1, 20, 0.5)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Protest", passages[0].Metadata.Name)
	assert.True(t, strings.HasPrefix(passages[0].Text, "2023-05-14"))
}

func TestIngester_ReingestIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", longText("The library opens at nine every weekday morning.", 10), "https://example.org/a", "Library")

	index, _ := setupTestIndex(t)
	embedder := mock.NewMockEmbedder()
	ing := newTestIngester(t, index, embedder)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, dir)
	require.NoError(t, err)
	require.Greater(t, first.ChunksWritten, 0)

	embedder.Reset()
	second, err := ing.Ingest(ctx, dir)
	require.NoError(t, err)

	assert.Zero(t, second.ChunksWritten)
	assert.Equal(t, first.ChunksStaged, second.ChunksUnchanged)
	assert.Equal(t, 0, embedder.CallCount(), "unchanged chunks are not re-embedded")

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksWritten, count)
}

func TestIngester_DuplicateChunks(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", "Same article syndicated twice.", "https://example.org/a", "Original")
	writeRecord(t, dir, "b.json", "Same article syndicated twice.", "https://mirror.example.org/a", "Mirror")

	index, _ := setupTestIndex(t)
	ing := newTestIngester(t, index, mock.NewMockEmbedder())

	report, err := ing.Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.ChunksStaged)
	assert.Equal(t, 1, report.DuplicateChunks)
	assert.Equal(t, 1, report.ChunksWritten)

	passages, err := index.Query(context.Background(), mock.BagOfWordsVector("syndicated", mock.DefaultDimensions), 1, 4, 1)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Original", passages[0].Metadata.Name, "first occurrence wins")
}

func TestIngester_PdfHint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "annual-report.pdf"), []byte("%PDF-1.4"), 0o644))

	index, _ := setupTestIndex(t)
	ing := newTestIngester(t, index, mock.NewMockEmbedder())

	report, err := ing.Ingest(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, report.ChunksWritten)

	passages, err := index.Query(context.Background(), mock.BagOfWordsVector("tuition fees", mock.DefaultDimensions), 1, 4, 1)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "annual-report", passages[0].Metadata.Name)
	assert.True(t, strings.HasPrefix(passages[0].Metadata.Link, "file://"))
	assert.Equal(t, "1900-01-01", passages[0].Metadata.Date())
}

func TestIngester_EmbedBatches(t *testing.T) {
	dir := t.TempDir()
	for i, word := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		writeRecord(t, dir, word+".json", "Record about "+word, "https://example.org/"+word, strings.Repeat("x", i+1))
	}

	index, _ := setupTestIndex(t)
	embedder := mock.NewMockEmbedder()
	ing := newTestIngester(t, index, embedder, WithEmbedBatchSize(2), WithRateLimit(1000, 1))

	report, err := ing.Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 5, report.ChunksWritten)
	assert.Equal(t, 3, embedder.CallCount())
}

func TestIngester_UpsertFailure(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", "Some text.", "https://example.org/a", "A")

	base, _ := setupTestIndex(t)
	index := &failingIndex{VectorIndex: base}
	ing := newTestIngester(t, index, mock.NewMockEmbedder())

	report, err := ing.Ingest(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpsert)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, index.upserts, "upsert is retried")
}

func TestIngester_EmbeddingFailure(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", "Some text.", "https://example.org/a", "A")

	index, _ := setupTestIndex(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}
	ing := newTestIngester(t, index, embedder)

	_, err := ing.Ingest(context.Background(), dir)
	assert.ErrorIs(t, err, core.ErrUpsert)
	assert.Equal(t, 2, embedder.CallCount(), "embedding calls are retried")

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngester_Ledger(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", "Some text.", "https://example.org/a", "A")

	index, backend := setupTestIndex(t)
	ledger := badger.NewRunRepository(backend)
	ing := newTestIngester(t, index, mock.NewMockEmbedder(), WithLedger(ledger))

	report, err := ing.Ingest(context.Background(), dir)
	require.NoError(t, err)

	last, err := ledger.LastRun(context.Background(), "test")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, report.ChunksWritten, last.ChunksWritten)
	assert.Equal(t, report.Processed, last.Processed)
}

func TestIngester_ProgressOutput(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", "Some text.", "https://example.org/a", "A")

	var buf strings.Builder
	index, _ := setupTestIndex(t)
	ing := newTestIngester(t, index, mock.NewMockEmbedder(), WithProgress(&buf))

	_, err := ing.Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sources/s")
	assert.Contains(t, buf.String(), "chunks/s")
	assert.Contains(t, buf.String(), "Parsing: ")
	assert.Contains(t, buf.String(), "Embedding: ")
}

func TestIngester_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", "Some text.", "https://example.org/a", "A")

	index, _ := setupTestIndex(t)
	ing := newTestIngester(t, index, mock.NewMockEmbedder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ing.Ingest(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewIngester(t *testing.T) {
	index, _ := setupTestIndex(t)

	_, err := NewIngester(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewIngester(index, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewIngester(index, mock.NewMockEmbedder(), WithEmbedBatchSize(0))
	assert.Error(t, err)

	_, err = NewIngester(index, mock.NewMockEmbedder(), WithRetry(0, time.Second))
	assert.Error(t, err)

	_, err = NewIngester(index, mock.NewMockEmbedder(), WithParser(nil))
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.PDF", "c.txt", "d.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "e.json"), []byte("x"), 0o644))

	sources, ignored, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Len(t, ignored, 2)

	pdf, ok := sources[0].(parser.PdfSource)
	require.True(t, ok)
	assert.Equal(t, "a", pdf.Hint.Name)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "a.PDF")), pdf.Hint.Link)

	_, ok = sources[1].(parser.StructuredSource)
	assert.True(t, ok)
	_, ok = sources[2].(parser.PdfSource)
	assert.True(t, ok)

	_, _, err = Discover(filepath.Join(dir, "c.txt"))
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestFailureSummary(t *testing.T) {
	assert.NoError(t, FailureSummary(&core.IngestionReport{}))
	assert.NoError(t, FailureSummary(nil))

	err := FailureSummary(&core.IngestionReport{Failures: []core.SourceFailure{
		{Source: "a.json", Reason: "bad"},
		{Source: "b.pdf", Reason: "worse"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.json: bad")
	assert.Contains(t, err.Error(), "b.pdf: worse")
}
