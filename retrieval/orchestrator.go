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


package retrieval

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/vortex/ai"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/retry"
	"github.com/poiesic/vortex/storage"
	"github.com/tmc/langchaingo/prompts"
)

const (
	// DefaultMaxAttempts is the number of attempts for query embedding.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the base backoff delay.
	DefaultRetryDelay = time.Second
)

// EventKind distinguishes the events yielded by Answer.
type EventKind int

const (
	// EventToken carries one fragment of the answer text.
	EventToken EventKind = iota + 1
	// EventAnswer carries the complete answer and is always last.
	EventAnswer
)

// Event is one step of an answer stream.
type Event struct {
	Kind   EventKind
	Token  string
	Answer *Answer
}

// Answer is the result of answering one question.
type Answer struct {
	// Text is the concatenation of every streamed token.
	Text string

	// Sources holds the metadata of every passage in retrieval order,
	// duplicates included.
	Sources []core.SourceMetadata

	// Passages are the passages the answer was generated from.
	Passages []core.Passage

	// StandaloneQuestion is the question used for retrieval and generation.
	StandaloneQuestion string
}

// Orchestrator answers questions by retrieving passages from an index and
// streaming a grounded completion.
type Orchestrator struct {
	index       storage.PassageSearcher
	embedder    ai.Embedder
	generator   ai.Generator
	prompt      prompts.ChatPromptTemplate
	maxTokens   int
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt. The prompt must contain a
// context placeholder, written either {{.context}} or {context}.
func WithSystemPrompt(system string) Option {
	return func(o *Orchestrator) error {
		prompt, err := newAnswerPrompt(system)
		if err != nil {
			return err
		}
		o.prompt = prompt
		return nil
	}
}

// WithMaxTokens caps the length of generated answers.
// Default is 0, the service default.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) error {
		if n < 0 {
			return fmt.Errorf("retrieval: max tokens cannot be negative, got %d", n)
		}
		o.maxTokens = n
		return nil
	}
}

// WithRetry sets the attempts and base delay for embedding the question.
// Default is DefaultMaxAttempts and DefaultRetryDelay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *Orchestrator) error {
		if maxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		o.maxAttempts = maxAttempts
		o.retryDelay = baseDelay
		return nil
	}
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(index storage.PassageSearcher, provider ai.AIProvider, opts ...Option) (*Orchestrator, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	prompt, err := newAnswerPrompt(DefaultSystemPrompt)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		index:       index,
		embedder:    provider.Embedder(),
		generator:   provider.Generator(),
		prompt:      prompt,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "retrieval")

	return o, nil
}

// Answer answers query. See AnswerWithMonitor.
func (o *Orchestrator) Answer(ctx context.Context, query core.RetrievalQuery) iter.Seq2[Event, error] {
	return o.AnswerWithMonitor(ctx, query, nil)
}

// AnswerWithMonitor answers query and reports each stage to monitor.
//
// The sequence yields one EventToken per generated fragment followed by a
// single EventAnswer. A failure is yielded once as an error wrapping
// core.ErrRetrieval and ends the sequence; a cancelled ctx is yielded as the
// context error. Breaking out of the range stops generation.
func (o *Orchestrator) AnswerWithMonitor(ctx context.Context, query core.RetrievalQuery, monitor Monitor) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if monitor == nil {
			monitor = &noopMonitor{}
		}

		if strings.TrimSpace(query.Question) == "" {
			yield(Event{}, fmt.Errorf("%w: %w", core.ErrRetrieval, ErrEmptyQuestion))
			return
		}

		q, clamped := query.Normalize()
		if len(clamped) > 0 {
			o.logger.Warn("retrieval parameters out of range, clamped", "fields", clamped,
				"k", q.K, "fetchK", q.FetchK, "lambda", q.DiversityLambda, "temperature", q.Temperature)
		}
		monitor.Start(q)

		standalone, err := o.condense(ctx, q)
		if err != nil {
			yield(Event{}, o.fail(ctx, "condense question", err))
			return
		}
		monitor.AfterCondense(standalone)

		passages, err := o.retrieve(ctx, standalone, q)
		if err != nil {
			yield(Event{}, o.fail(ctx, "retrieve passages", err))
			return
		}
		monitor.AfterRetrieve(passages)

		chat, err := o.prompt.FormatMessages(map[string]any{
			"context":  joinPassages(passages),
			"question": standalone,
		})
		if err != nil {
			yield(Event{}, o.fail(ctx, "format prompt", err))
			return
		}

		genOpts := []ai.GenerateOption{ai.WithTemperature(q.Temperature)}
		if o.maxTokens > 0 {
			genOpts = append(genOpts, ai.WithMaxTokens(o.maxTokens))
		}

		var text strings.Builder
		for token, err := range o.generator.Stream(ctx, toMessages(chat), genOpts...) {
			if err != nil {
				yield(Event{}, o.fail(ctx, "generate answer", err))
				return
			}
			text.WriteString(token)
			if !yield(Event{Kind: EventToken, Token: token}, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(Event{}, err)
			return
		}

		sources := make([]core.SourceMetadata, len(passages))
		for i, p := range passages {
			sources[i] = p.Metadata
		}
		answer := &Answer{
			Text:               text.String(),
			Sources:            sources,
			Passages:           passages,
			StandaloneQuestion: standalone,
		}
		monitor.Finish(answer)

		o.logger.Debug("answered question", "passages", len(passages), "characters", len(answer.Text))
		yield(Event{Kind: EventAnswer, Answer: answer}, nil)
	}
}

// condense rewrites the question as a standalone question using the prior
// turns. Without prior turns the question is returned unchanged.
func (o *Orchestrator) condense(ctx context.Context, q core.RetrievalQuery) (string, error) {
	if len(q.PriorTurns) == 0 {
		return q.Question, nil
	}

	prompt, err := condenseTemplate.Format(map[string]any{
		"chat_history": formatHistory(q.PriorTurns),
		"question":     q.Question,
	})
	if err != nil {
		return "", err
	}

	standalone, err := o.generator.Complete(ctx, []ai.Message{ai.HumanMessage(prompt)}, ai.WithTemperature(q.Temperature))
	if err != nil {
		return "", err
	}
	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		o.logger.Warn("condensed question is empty, using original question")
		return q.Question, nil
	}
	return standalone, nil
}

// retrieve embeds question and selects passages from the index.
func (o *Orchestrator) retrieve(ctx context.Context, question string, q core.RetrievalQuery) ([]core.Passage, error) {
	var embedding []float32
	err := retry.WithBackoff(ctx, func() error {
		var err error
		embedding, err = o.embedder.EmbedText(ctx, question)
		return err
	}, o.maxAttempts, o.retryDelay)
	if err != nil {
		return nil, err
	}

	return o.index.Query(ctx, storage.NormalizeVector(embedding), q.K, q.FetchK, q.DiversityLambda)
}

func (o *Orchestrator) fail(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	o.logger.Error("error answering question", "stage", stage, "err", err)
	return fmt.Errorf("%w: %s: %w", core.ErrRetrieval, stage, err)
}
