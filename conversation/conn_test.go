package conversation

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/vortex/ai/mock"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/retrieval"
	"github.com/poiesic/vortex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/chat"
	ws, err := websocket.Dial(url, "", server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// receiveUntilDone reads events until an end or error event.
func receiveUntilDone(t *testing.T, ws *websocket.Conn) []wireEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var events []wireEvent
	for {
		var ev wireEvent
		require.NoError(t, websocket.JSON.Receive(ws, &ev))
		events = append(events, ev)
		if ev.Type == TypeEnd || ev.Type == TypeError {
			return events
		}
	}
}

func TestHandler(t *testing.T) {
	transcripts := newTranscripts(t)
	answerer := answerWith([]string{"Fees ", "scrapped."}, manifesto)

	server := httptest.NewServer(Handler(func(conn Conn) (*Session, error) {
		return NewSession(conn, answerer, transcripts)
	}, nil))
	defer server.Close()

	ws := dial(t, server)
	require.NoError(t, websocket.Message.Send(ws, question))

	events := receiveUntilDone(t, ws)
	assert.Equal(t, []string{"start", "stream", "stream", "end"}, eventTypes(events))
	assert.Equal(t, "Fees scrapped.", events[3].Message)
	assert.Equal(t, events[0].MessageID, events[3].ID)
}

func TestHandler_ProtocolError(t *testing.T) {
	transcripts := newTranscripts(t)
	server := httptest.NewServer(Handler(func(conn Conn) (*Session, error) {
		return NewSession(conn, answerWith(nil), transcripts)
	}, nil))
	defer server.Close()

	ws := dial(t, server)
	require.NoError(t, websocket.Message.Send(ws, `{"messages": []}`))

	events := receiveUntilDone(t, ws)
	require.Len(t, events, 1)
	assert.Equal(t, "Invalid question: payload has no messages", events[0].Message)
}

func receiveEvent(t *testing.T, ws *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wireEvent
	require.NoError(t, websocket.JSON.Receive(ws, &ev))
	return ev
}

func TestChatHandler_ShutdownWaitsForSessions(t *testing.T) {
	release := make(chan struct{})
	answerer := &fakeAnswerer{
		stream: func(ctx context.Context, yield func(retrieval.Event, error) bool) {
			if !yield(retrieval.Event{Kind: retrieval.EventToken, Token: "Fees "}, nil) {
				return
			}
			<-release
			yield(retrieval.Event{Kind: retrieval.EventAnswer, Answer: &retrieval.Answer{Text: "Fees "}}, nil)
		},
	}
	transcripts := newTranscripts(t)
	chat := Handler(func(conn Conn) (*Session, error) {
		return NewSession(conn, answerer, transcripts)
	}, nil)
	server := httptest.NewServer(chat)
	defer server.Close()

	ws := dial(t, server)
	require.NoError(t, websocket.Message.Send(ws, question))
	assert.Equal(t, TypeStart, receiveEvent(t, ws).Type)
	assert.Equal(t, TypeStream, receiveEvent(t, ws).Type)

	shutdown := make(chan error, 1)
	go func() { shutdown <- chat.Shutdown(context.Background()) }()

	select {
	case err := <-shutdown:
		t.Fatalf("shutdown returned with a session still answering: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	end := receiveEvent(t, ws)
	assert.Equal(t, TypeEnd, end.Type)
	assert.Equal(t, "Fees ", end.Message)

	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return after the session completed")
	}
}

func TestChatHandler_ShutdownTimeoutCancelsSessions(t *testing.T) {
	var cancelled atomic.Bool
	answerer := &fakeAnswerer{
		stream: func(ctx context.Context, yield func(retrieval.Event, error) bool) {
			if !yield(retrieval.Event{Kind: retrieval.EventToken, Token: "Fees "}, nil) {
				return
			}
			<-ctx.Done()
			cancelled.Store(true)
			yield(retrieval.Event{}, ctx.Err())
		},
	}
	transcripts := newTranscripts(t)
	chat := Handler(func(conn Conn) (*Session, error) {
		return NewSession(conn, answerer, transcripts)
	}, nil)
	server := httptest.NewServer(chat)
	defer server.Close()

	ws := dial(t, server)
	require.NoError(t, websocket.Message.Send(ws, question))
	assert.Equal(t, TypeStart, receiveEvent(t, ws).Type)
	assert.Equal(t, TypeStream, receiveEvent(t, ws).Type)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, chat.Shutdown(ctx), context.DeadlineExceeded)
	assert.True(t, cancelled.Load(), "running sessions are cancelled at the deadline")
}

func TestChatHandler_RefusesSessionsAfterShutdown(t *testing.T) {
	var created atomic.Int32
	transcripts := newTranscripts(t)
	chat := Handler(func(conn Conn) (*Session, error) {
		created.Add(1)
		return NewSession(conn, answerWith([]string{"Fees"}), transcripts)
	}, nil)
	server := httptest.NewServer(chat)
	defer server.Close()

	require.NoError(t, chat.Shutdown(context.Background()))

	ws := dial(t, server)
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var data []byte
	assert.Error(t, websocket.Message.Receive(ws, &data), "connection is closed without a session")
	assert.Zero(t, created.Load())
}

// The tuition fees scenario end to end: a real orchestrator over an
// in-memory index with mock AI services.
func TestHandler_TuitionFeesScenario(t *testing.T) {
	index, transcripts, backend, err := badger.NewMemoryStores("test")
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	for i, text := range []string{
		"2023-05-14  We will scrap tuition fees and restore maintenance grants.",
		"2023-05-14  New homes will be built on brownfield land.",
	} {
		record := &core.IndexedChunk{
			Chunk: core.Chunk{
				Text:        text,
				Metadata:    manifesto,
				ChunkIndex:  i,
				ContentHash: core.ContentHash(text),
			},
			Vector: mock.BagOfWordsVector(text, mock.DefaultDimensions),
		}
		_, err := index.Upsert(ctx, record)
		require.NoError(t, err)
	}

	embedder := mock.NewMockEmbedder()
	generator := mock.NewMockGenerator()
	generator.Response = "The pledge is to scrap tuition fees."
	orch, err := retrieval.NewOrchestrator(index, mock.NewMockProviderWithServices(embedder, generator))
	require.NoError(t, err)

	server := httptest.NewServer(Handler(func(conn Conn) (*Session, error) {
		return NewSession(conn, orch, transcripts)
	}, nil))
	defer server.Close()

	ws := dial(t, server)
	payload := `{"captcha": "", "messages": [{"messageId": "q1", "previousMessageId": null, "type": "human", "content": "What is the pledge on tuition fees?", "time": 1}]}`
	require.NoError(t, websocket.Message.Send(ws, payload))

	events := receiveUntilDone(t, ws)
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, TypeStart, events[0].Type)
	assert.Equal(t, "q1", events[0].PreviousMessageID)

	var streamed strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		assert.Equal(t, TypeStream, ev.Type)
		streamed.WriteString(ev.Message)
	}
	end := events[len(events)-1]
	require.Equal(t, TypeEnd, end.Type)
	assert.Equal(t, streamed.String(), end.Message)
	assert.NotEmpty(t, end.Sources)
	assert.Equal(t, "Manifesto", end.Sources[0].Name)

	require.Eventually(t, func() bool {
		_, err := transcripts.GetMessage(ctx, end.ID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
