package mock

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/poiesic/vortex/ai"
)

// DefaultResponse is returned by MockGenerator when no behavior is injected.
const DefaultResponse = "This is a mock answer."

// GenerateCall records one call made to a MockGenerator.
type GenerateCall struct {
	Messages []ai.Message
	Options  ai.GenerateOptions
	Streamed bool
}

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, messages []ai.Message) (string, error)

	// StreamFunc is called by Stream if set.
	StreamFunc func(ctx context.Context, messages []ai.Message) iter.Seq2[string, error]

	// Response is used by the default behavior of both methods.
	Response string

	mu    sync.Mutex
	calls []GenerateCall
}

// NewMockGenerator creates a mock generator that answers with DefaultResponse.
// Note: Returns concrete type to allow test assertions.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Response: DefaultResponse}
}

// Complete returns Response, or the result of CompleteFunc.
func (m *MockGenerator) Complete(ctx context.Context, messages []ai.Message, opts ...ai.GenerateOption) (string, error) {
	m.record(messages, opts, false)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Response, nil
}

// Stream yields Response word by word, or the sequence from StreamFunc.
// The default sequence checks ctx before every token.
func (m *MockGenerator) Stream(ctx context.Context, messages []ai.Message, opts ...ai.GenerateOption) iter.Seq2[string, error] {
	m.record(messages, opts, true)

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, messages)
	}

	tokens := strings.SplitAfter(m.Response, " ")
	return func(yield func(string, error) bool) {
		for _, token := range tokens {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(token, nil) {
				return
			}
		}
	}
}

func (m *MockGenerator) record(messages []ai.Message, opts []ai.GenerateOption, streamed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, GenerateCall{
		Messages: append([]ai.Message(nil), messages...),
		Options:  ai.ApplyGenerateOptions(opts...),
		Streamed: streamed,
	})
}

// CallCount returns the number of times any method was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded calls.
func (m *MockGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.calls...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.CompleteFunc = nil
	m.StreamFunc = nil
	m.Response = DefaultResponse
}
