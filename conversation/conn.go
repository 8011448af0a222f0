package conversation

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// Conn is a bidirectional message connection to one client.
// Receive is called from one goroutine and Send from another; Close must
// unblock a pending Receive.
type Conn interface {
	// Receive blocks until the next frame arrives. An error means the client
	// is gone.
	Receive() ([]byte, error)

	// Send writes one frame.
	Send(data []byte) error

	// Close closes the connection.
	Close() error
}

// Verifier checks the bot-challenge token sent with a question.
type Verifier interface {
	Verify(ctx context.Context, captcha string) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, captcha string) error

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, captcha string) error {
	return f(ctx, captcha)
}

// WebsocketConn adapts a golang.org/x/net/websocket connection to Conn.
// Frames are sent as text.
type WebsocketConn struct {
	ws *websocket.Conn
}

var _ Conn = (*WebsocketConn)(nil)

// NewWebsocketConn wraps ws.
func NewWebsocketConn(ws *websocket.Conn) *WebsocketConn {
	return &WebsocketConn{ws: ws}
}

// Receive reads the next frame.
func (c *WebsocketConn) Receive() ([]byte, error) {
	var data []byte
	if err := websocket.Message.Receive(c.ws, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Send writes data as a text frame.
func (c *WebsocketConn) Send(data []byte) error {
	return websocket.Message.Send(c.ws, string(data))
}

// Close closes the websocket.
func (c *WebsocketConn) Close() error {
	return c.ws.Close()
}

// SessionFactory creates a session bound to conn.
type SessionFactory func(conn Conn) (*Session, error)

// ChatHandler serves the chat websocket with one Session per connection.
// It tracks the sessions still running so a server can drain them on
// shutdown. Origins are not checked.
type ChatHandler struct {
	server     websocket.Server
	newSession SessionFactory
	logger     *slog.Logger

	// base parents every session context. Cancelling it aborts the
	// sessions still running.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	draining bool
	sessions sync.WaitGroup
}

var _ http.Handler = (*ChatHandler)(nil)

// Handler returns a ChatHandler creating sessions with newSession.
func Handler(newSession SessionFactory, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &ChatHandler{
		newSession: newSession,
		logger:     logger.With("component", "conversation"),
	}
	h.base, h.cancel = context.WithCancel(context.Background())
	h.server = websocket.Server{Handler: h.serveConn}
	return h
}

// ServeHTTP upgrades the request and runs a session on it.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.server.ServeHTTP(w, r)
}

func (h *ChatHandler) serveConn(ws *websocket.Conn) {
	conn := NewWebsocketConn(ws)
	if !h.enter() {
		h.logger.Debug("refusing session while shutting down")
		conn.Close()
		return
	}
	defer h.sessions.Done()

	session, err := h.newSession(conn)
	if err != nil {
		h.logger.Error("failed to create session", "err", err)
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(ws.Request().Context())
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()

	remote := ws.Request().RemoteAddr
	h.logger.Debug("session started", "remote", remote)
	if err := session.Run(ctx); err != nil {
		h.logger.Debug("session ended early", "remote", remote, "state", session.State(), "err", err)
		return
	}
	h.logger.Debug("session completed", "remote", remote)
}

// enter registers a new session unless the handler is draining.
func (h *ChatHandler) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.sessions.Add(1)
	return true
}

// Shutdown stops accepting sessions and waits for the running ones to
// finish. If ctx ends first the remaining sessions are cancelled and
// Shutdown returns ctx.Err() once they have returned.
func (h *ChatHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.cancel()
		return nil
	case <-ctx.Done():
		h.cancel()
		<-done
		return ctx.Err()
	}
}
