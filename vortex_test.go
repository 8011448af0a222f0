package vortex

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/poiesic/vortex/ai/mock"
	"github.com/poiesic/vortex/conversation"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/ingestion"
	"github.com/poiesic/vortex/parser"
	"github.com/poiesic/vortex/reembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestKnowledgebase(t *testing.T) (*Knowledgebase, *mock.MockGenerator) {
	t.Helper()
	generator := mock.NewMockGenerator()
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), generator)

	kb, err := Open("", InMemory(), WithProvider(provider), WithCollection("test"))
	require.NoError(t, err)
	t.Cleanup(func() { kb.Close() })
	return kb, generator
}

func writeRecord(t *testing.T, dir, file, content, link, name string) {
	t.Helper()
	data, err := json.Marshal(parser.Record{
		Content: content,
		Metadata: parser.RecordMetadata{
			Link: link,
			Name: name,
			Date: "2023-05-14",
			Type: "json",
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), data, 0o644))
}

// scriptedConn delivers one payload and records what the session sends.
type scriptedConn struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once
	sent     [][]byte
}

func newScriptedConn(payload string) *scriptedConn {
	c := &scriptedConn{incoming: make(chan []byte, 1), closed: make(chan struct{})}
	c.incoming <- []byte(payload)
	return c
}

func (c *scriptedConn) Receive() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *scriptedConn) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestOpen(t *testing.T) {
	t.Run("create new knowledge base", func(t *testing.T) {
		kb, err := Open(filepath.Join(t.TempDir(), "test_db"))
		require.NoError(t, err)
		require.NotNil(t, kb)
		defer kb.Close()

		assert.NotNil(t, kb.Index())
		assert.NotNil(t, kb.Transcripts())
		assert.NotNil(t, kb.Runs())
		assert.NotNil(t, kb.Provider())
		assert.Equal(t, DefaultCollection, kb.Index().Collection())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		kb, err := Open(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, kb)
	})

	t.Run("error with invalid collection", func(t *testing.T) {
		kb, err := Open("", InMemory(), WithProvider(mock.NewMockProvider()), WithCollection("a:b"))
		assert.Error(t, err)
		assert.Nil(t, kb)
	})
}

func TestKnowledgebase_Close(t *testing.T) {
	kb, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, kb.Close())
}

func TestKnowledgebase_FactoryMethods(t *testing.T) {
	kb, _ := openTestKnowledgebase(t)

	t.Run("can create ingester", func(t *testing.T) {
		ing, err := kb.NewIngester()
		require.NoError(t, err)
		require.NotNil(t, ing)
		ing.Release()
	})

	t.Run("can create orchestrator", func(t *testing.T) {
		orch, err := kb.NewOrchestrator()
		require.NoError(t, err)
		require.NotNil(t, orch)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		r, err := kb.NewReembedder(nil, reembed.DefaultConfig(), io.Discard)
		require.NoError(t, err)
		require.NotNil(t, r)
	})
}

func TestKnowledgebase_IngestAndAnswer(t *testing.T) {
	kb, generator := openTestKnowledgebase(t)
	generator.Response = "Fees rise by three percent."
	ctx := context.Background()

	dir := t.TempDir()
	writeRecord(t, dir, "fees.json", "Tuition fees will rise by three percent next year.", "https://example.org/fees", "Fees rise")
	writeRecord(t, dir, "protest.json", "Students plan a protest outside the library.", "https://example.org/protest", "Protest")

	ing, err := kb.NewIngester(ingestion.WithPoolSize(2))
	require.NoError(t, err)
	defer ing.Release()

	report, err := ing.Ingest(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.ChunksWritten)

	last, err := kb.Runs().LastRun(ctx, "test")
	require.NoError(t, err)
	require.NotNil(t, last, "runs are recorded in the ledger")
	assert.Equal(t, report.ChunksWritten, last.ChunksWritten)

	orch, err := kb.NewOrchestrator()
	require.NoError(t, err)

	conn := newScriptedConn(`{"messages":[{"messageId":"q1","type":"human","content":"What are the tuition fees?"}]}`)

	session, err := kb.NewSessionFactory(orch)(conn)
	require.NoError(t, err)
	require.NoError(t, session.Run(ctx))
	assert.Equal(t, conversation.StateCompleted, session.State())

	require.NotEmpty(t, conn.sent)
	var end conversation.EndEvent
	require.NoError(t, json.Unmarshal(conn.sent[len(conn.sent)-1], &end))
	assert.Equal(t, conversation.TypeEnd, end.Type)
	assert.Equal(t, "Fees rise by three percent.", end.Message)
	require.NotEmpty(t, end.Sources)
	assert.Equal(t, "https://example.org/fees", end.Sources[0].Link)

	thread, err := kb.Transcripts().Thread(ctx, end.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, core.RoleHuman, thread[0].Role)
	assert.Equal(t, core.RoleAssistant, thread[1].Role)
}
