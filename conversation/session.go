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


package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/retrieval"
	"github.com/poiesic/vortex/storage"
)

// State is a phase of a Session.
type State int32

const (
	StateAwaitingQuestion State = iota + 1
	StateGenerating
	StateErrored
	StateCompleted
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingQuestion:
		return "awaiting-question"
	case StateGenerating:
		return "generating"
	case StateErrored:
		return "errored"
	case StateCompleted:
		return "completed"
	case StateClosed:
		return "closed"
	default:
		return "new"
	}
}

// Answerer produces the event stream for one question.
// *retrieval.Orchestrator implements it.
type Answerer interface {
	Answer(ctx context.Context, query core.RetrievalQuery) iter.Seq2[retrieval.Event, error]
}

// Session runs the question and answer protocol over one connection.
// A session answers a single question; Run returns once it is answered,
// has failed, or the client has gone.
type Session struct {
	conn              Conn
	answerer          Answerer
	transcripts       storage.TranscriptStore
	verifier          Verifier
	params            core.RetrievalQuery
	maxQuestionLength int
	now               func() time.Time
	newID             func() string
	logger            *slog.Logger

	state  atomic.Int32
	cancel context.CancelCauseFunc
}

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithVerifier checks the captcha of every payload before it is accepted.
// Default is no verification.
func WithVerifier(v Verifier) Option {
	return func(s *Session) error {
		s.verifier = v
		return nil
	}
}

// WithMaxQuestionLength sets the longest accepted question in characters.
// Zero disables the check. Default is DefaultMaxQuestionLength.
func WithMaxQuestionLength(n int) Option {
	return func(s *Session) error {
		if n < 0 {
			return fmt.Errorf("conversation: max question length cannot be negative, got %d", n)
		}
		s.maxQuestionLength = n
		return nil
	}
}

// WithRetrievalParameters sets the retrieval parameters used for every
// question. Out-of-range values are clamped when the question is answered.
// Default is core.NewRetrievalQuery's.
func WithRetrievalParameters(k, fetchK int, lambda, temperature float64) Option {
	return func(s *Session) error {
		s.params.K = k
		s.params.FetchK = fetchK
		s.params.DiversityLambda = lambda
		s.params.Temperature = temperature
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) error {
		if now == nil {
			return errors.New("conversation: clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// WithIDGenerator replaces the random UUID generator used for answer ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Session) error {
		if newID == nil {
			return errors.New("conversation: id generator cannot be nil")
		}
		s.newID = newID
		return nil
	}
}

// NewSession creates a session over conn. The session owns conn and closes
// it when Run returns.
func NewSession(conn Conn, answerer Answerer, transcripts storage.TranscriptStore, opts ...Option) (*Session, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	if answerer == nil {
		return nil, ErrAnswererRequired
	}
	if transcripts == nil {
		return nil, ErrTranscriptsRequired
	}

	s := &Session{
		conn:              conn,
		answerer:          answerer,
		transcripts:       transcripts,
		params:            core.NewRetrievalQuery(""),
		maxQuestionLength: DefaultMaxQuestionLength,
		now:               time.Now,
		newID:             uuid.NewString,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "conversation")

	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	s.logger.Debug("session state changed", "from", prev, "to", state)
}

// Run drives the session until it completes or the client disconnects.
// It returns nil once a question was answered or answered with an error
// event, an error wrapping ErrDisconnected if the client went away or a send
// failed, and the context error if ctx was cancelled. Run closes the
// connection.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.cancel = cancel

	frames := make(chan []byte, 1)

	s.setState(StateAwaitingQuestion)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.readLoop(frames)
	}()
	defer func() {
		s.conn.Close()
		wg.Wait()
	}()

	return s.serve(ctx, frames)
}

// readLoop receives frames until the connection fails. Frames that arrive
// while a question is being answered, or while one is already queued, are
// dropped.
func (s *Session) readLoop(frames chan<- []byte) {
	for {
		data, err := s.conn.Receive()
		if err != nil {
			s.cancel(fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}

		if state := s.State(); state != StateAwaitingQuestion {
			s.logger.Warn("dropping payload received outside awaiting-question", "state", state)
			continue
		}
		select {
		case frames <- data:
		default:
			s.logger.Warn("dropping payload, a question is already pending")
		}
	}
}

func (s *Session) serve(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return s.closed(ctx)
		case frame := <-frames:
			payload, err := s.accept(ctx, frame)
			if err != nil {
				if ctx.Err() != nil {
					return s.closed(ctx)
				}
				s.logger.Warn("rejected question payload", "err", err)
				if err := s.send(newErrorEvent(clientMessage(err))); err != nil {
					return s.closed(ctx)
				}
				continue
			}
			return s.answer(ctx, payload)
		}
	}
}

// accept parses and verifies a payload.
func (s *Session) accept(ctx context.Context, frame []byte) (*Payload, error) {
	payload, err := ParsePayload(frame, s.maxQuestionLength)
	if err != nil {
		return nil, err
	}
	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, payload.Captcha); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", core.ErrProtocol, ErrVerificationFailed, err)
		}
	}
	return payload, nil
}

// answer persists the human message and streams the answer.
func (s *Session) answer(ctx context.Context, payload *Payload) error {
	question := payload.Question()
	if payload.LocalContext != "" {
		s.logger.Debug("question has local context", "localContext", payload.LocalContext)
	}

	timestamp := question.Time
	if timestamp <= 0 {
		timestamp = s.now().UnixMilli()
	}
	s.record(ctx, &core.ConversationMessage{
		MessageID:         question.MessageID,
		PreviousMessageID: question.PreviousMessageID,
		Role:              core.RoleHuman,
		Content:           question.Content,
		Timestamp:         timestamp,
	})

	s.setState(StateGenerating)

	answerID := s.newID()
	start := StartEvent{
		Sender:            senderBot,
		MessageID:         answerID,
		PreviousMessageID: question.MessageID,
		Time:              s.now().UnixMilli(),
		Type:              TypeStart,
	}
	if err := s.send(start); err != nil {
		return s.closed(ctx)
	}

	query := s.params
	query.Question = question.Content
	query.PriorTurns = payload.PriorTurns()

	var answer *retrieval.Answer
	for ev, err := range s.answerer.Answer(ctx, query) {
		if err != nil {
			if ctx.Err() != nil {
				return s.closed(ctx)
			}
			return s.fail(ctx, err)
		}

		switch ev.Kind {
		case retrieval.EventToken:
			if ctx.Err() != nil {
				return s.closed(ctx)
			}
			if err := s.send(StreamEvent{Sender: senderBot, Message: ev.Token, Type: TypeStream}); err != nil {
				return s.closed(ctx)
			}
		case retrieval.EventAnswer:
			answer = ev.Answer
		}
	}
	if ctx.Err() != nil {
		return s.closed(ctx)
	}
	if answer == nil {
		return s.fail(ctx, errors.New("answer stream ended without an answer"))
	}

	end := EndEvent{
		Sender:            senderBot,
		ID:                answerID,
		PreviousMessageID: question.MessageID,
		Message:           answer.Text,
		Sources:           wireSources(answer.Sources),
		Type:              TypeEnd,
	}
	if err := s.send(end); err != nil {
		return s.closed(ctx)
	}

	// The answer has been delivered, so it is stored even if the client
	// disconnects now.
	s.record(context.WithoutCancel(ctx), &core.ConversationMessage{
		MessageID:         answerID,
		PreviousMessageID: question.MessageID,
		Role:              core.RoleAssistant,
		Content:           answer.Text,
		Sources:           answer.Sources,
		Timestamp:         s.now().UnixMilli(),
	})

	s.setState(StateCompleted)
	return nil
}

// fail sends the generic error event and completes the session.
func (s *Session) fail(ctx context.Context, err error) error {
	s.setState(StateErrored)
	s.logger.Error("failed to answer question", "err", err)

	if err := s.send(newErrorEvent(GenericErrorMessage)); err != nil {
		return s.closed(ctx)
	}
	s.setState(StateCompleted)
	return nil
}

// closed moves to StateClosed and reports why the session ended.
func (s *Session) closed(ctx context.Context) error {
	s.setState(StateClosed)
	cause := context.Cause(ctx)
	if cause == nil {
		cause = ErrDisconnected
	}
	s.logger.Debug("session closed", "cause", cause)
	return cause
}

// record appends msg to the transcript store. Failures are logged and not
// retried.
func (s *Session) record(ctx context.Context, msg *core.ConversationMessage) {
	if err := s.transcripts.Append(ctx, msg); err != nil {
		err = fmt.Errorf("%w: %w", core.ErrTranscript, err)
		s.logger.Error("failed to persist transcript message",
			"messageId", msg.MessageID, "role", msg.Role.String(), "err", err)
	}
}

func (s *Session) send(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.conn.Send(data); err != nil {
		s.cancel(fmt.Errorf("%w: send failed: %w", ErrDisconnected, err))
		return err
	}
	return nil
}

func newErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Sender: senderBot, Message: message, Type: TypeError}
}
