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


package openai

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/poiesic/vortex/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// errStreamStopped aborts a streaming call once the consumer stops ranging.
var errStreamStopped = errors.New("stream stopped by consumer")

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client    llms.Model
	maxTokens int
	logger    *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIToken),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:    client,
		maxTokens: config.MaxTokens,
		logger:    slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new chat generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Complete returns the whole completion for messages.
func (g *Generator) Complete(ctx context.Context, messages []ai.Message, opts ...ai.GenerateOption) (string, error) {
	response, err := g.client.GenerateContent(ctx, toMessageContent(messages), g.callOptions(opts)...)
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		g.logger.Debug("no choices returned from model")
		return "", nil
	}
	return response.Choices[0].Content, nil
}

// Stream yields completion fragments as the model produces them.
func (g *Generator) Stream(ctx context.Context, messages []ai.Message, opts ...ai.GenerateOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false
		callOpts := append(g.callOptions(opts), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if !yield(string(chunk), nil) {
				stopped = true
				return errStreamStopped
			}
			return nil
		}))

		_, err := g.client.GenerateContent(ctx, toMessageContent(messages), callOpts...)
		if stopped {
			return
		}
		if err != nil {
			g.logger.Error("streaming generation failed", "err", err)
			yield("", err)
		}
	}
}

func (g *Generator) callOptions(opts []ai.GenerateOption) []llms.CallOption {
	o := ai.ApplyGenerateOptions(opts...)
	callOpts := []llms.CallOption{llms.WithTemperature(o.Temperature)}
	maxTokens := o.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	if maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(maxTokens))
	}
	return callOpts
}

func toMessageContent(messages []ai.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case ai.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case ai.RoleAI:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return content
}
