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


// Package config loads process-level settings for the vortex command.
//
// Settings are resolved in this order, later sources winning:
//
//  1. built-in defaults
//  2. a TOML settings file
//  3. environment variables, including those from a .env file
//
// Command-line flags are applied on top by the caller.
//
// Example settings file:
//
//	[storage]
//	path = "/var/lib/vortex"
//	collection = "neonshield-2023-05"
//
//	[ai]
//	host = "http://localhost:11434/v1"
//	embedding_model = "embeddinggemma"
//	chat_model = "qwen2.5:7b"
//
//	[retrieval]
//	k = 4
//	temperature = 0.7
//	system_prompt_file = "prompts/system.txt"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/vortex/ai"
	"github.com/poiesic/vortex/chunker"
	"github.com/poiesic/vortex/conversation"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/ingestion"
)

// Defaults for settings that have no library-level default.
const (
	DefaultCollection = "neonshield-2023-05"
	DefaultDBPath     = "vortex.db"
	DefaultAddr       = ":8080"
	DefaultFile       = "vortex.toml"
)

// Settings holds every setting of the vortex command.
type Settings struct {
	Storage   StorageSettings   `toml:"storage"`
	AI        AISettings        `toml:"ai"`
	Retrieval RetrievalSettings `toml:"retrieval"`
	Ingestion IngestionSettings `toml:"ingestion"`
	Server    ServerSettings    `toml:"server"`
}

// StorageSettings locates the database and the collection within it.
type StorageSettings struct {
	Path       string `toml:"path"`
	Collection string `toml:"collection"`
}

// AISettings configures the model endpoint. Host, when set, applies to both
// the embedding and the chat service unless they are set individually.
type AISettings struct {
	Host           string `toml:"host"`
	EmbeddingHost  string `toml:"embedding_host"`
	ChatHost       string `toml:"chat_host"`
	EmbeddingModel string `toml:"embedding_model"`
	ChatModel      string `toml:"chat_model"`
	APIKey         string `toml:"api_key"`
	MaxTokens      int    `toml:"max_tokens"`
}

// RetrievalSettings are the retrieval parameters used for every question.
type RetrievalSettings struct {
	K                int     `toml:"k"`
	FetchK           int     `toml:"fetch_k"`
	Lambda           float64 `toml:"lambda"`
	Temperature      float64 `toml:"temperature"`
	SystemPromptFile string  `toml:"system_prompt_file"`
}

// IngestionSettings tune the ingestion pipeline.
type IngestionSettings struct {
	SourceDir      string   `toml:"source_dir"`
	ChunkSize      int      `toml:"chunk_size"`
	ChunkOverlap   int      `toml:"chunk_overlap"`
	PoolSize       int      `toml:"pool_size"`
	EmbedBatchSize int      `toml:"embed_batch_size"`
	RateLimit      float64  `toml:"rate_limit"`
	MaxAttempts    int      `toml:"max_attempts"`
	RetryDelay     Duration `toml:"retry_delay"`
}

// Duration is a time.Duration written as a string such as "1s" or "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ServerSettings configure the websocket endpoint.
type ServerSettings struct {
	Addr              string `toml:"addr"`
	MaxQuestionLength int    `toml:"max_question_length"`
}

// Default returns the built-in settings.
func Default() *Settings {
	aiDefaults := ai.DefaultConfig()
	return &Settings{
		Storage: StorageSettings{
			Path:       DefaultDBPath,
			Collection: DefaultCollection,
		},
		AI: AISettings{
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			ChatHost:       aiDefaults.ChatHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			ChatModel:      aiDefaults.ChatModel,
			MaxTokens:      aiDefaults.MaxTokens,
		},
		Retrieval: RetrievalSettings{
			K:           core.DefaultK,
			FetchK:      core.DefaultFetchK,
			Lambda:      core.DefaultDiversityLambda,
			Temperature: core.DefaultTemperature,
		},
		Ingestion: IngestionSettings{
			ChunkSize:      chunker.DefaultSize,
			ChunkOverlap:   chunker.DefaultOverlap,
			EmbedBatchSize: ingestion.DefaultEmbedBatchSize,
			MaxAttempts:    ingestion.DefaultMaxAttempts,
			RetryDelay:     Duration(ingestion.DefaultRetryDelay),
		},
		Server: ServerSettings{
			Addr:              DefaultAddr,
			MaxQuestionLength: conversation.DefaultMaxQuestionLength,
		},
	}
}

// Load resolves settings from the file at path, the .env file in the
// working directory and the environment. A missing settings file or .env
// file is not an error.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env: %w", ErrInvalidSettings, err)
	}

	s := Default()
	if path != "" {
		if err := s.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	return s, s.Validate()
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSettings, path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSettings, path, err)
	}
	return nil
}

// Validate checks that the settings are usable. Retrieval parameters that
// are merely out of range are not rejected here; they are clamped when a
// question is answered.
func (s *Settings) Validate() error {
	switch {
	case strings.TrimSpace(s.Storage.Path) == "":
		return fmt.Errorf("%w: storage.path is required", ErrInvalidSettings)
	case strings.TrimSpace(s.Storage.Collection) == "":
		return fmt.Errorf("%w: storage.collection is required", ErrInvalidSettings)
	case s.AI.MaxTokens < 0:
		return fmt.Errorf("%w: ai.max_tokens cannot be negative, got %d", ErrInvalidSettings, s.AI.MaxTokens)
	case s.Ingestion.ChunkSize < 1:
		return fmt.Errorf("%w: ingestion.chunk_size must be positive, got %d", ErrInvalidSettings, s.Ingestion.ChunkSize)
	case s.Ingestion.ChunkOverlap < 0:
		return fmt.Errorf("%w: ingestion.chunk_overlap cannot be negative, got %d", ErrInvalidSettings, s.Ingestion.ChunkOverlap)
	case s.Ingestion.EmbedBatchSize < 1:
		return fmt.Errorf("%w: ingestion.embed_batch_size must be positive, got %d", ErrInvalidSettings, s.Ingestion.EmbedBatchSize)
	case s.Ingestion.MaxAttempts < 1:
		return fmt.Errorf("%w: ingestion.max_attempts must be positive, got %d", ErrInvalidSettings, s.Ingestion.MaxAttempts)
	case s.Server.MaxQuestionLength < 0:
		return fmt.Errorf("%w: server.max_question_length cannot be negative, got %d", ErrInvalidSettings, s.Server.MaxQuestionLength)
	}
	return nil
}

// AIConfig converts the AI settings into an ai.Config.
func (s *Settings) AIConfig() *ai.Config {
	embeddingHost, chatHost := s.AI.EmbeddingHost, s.AI.ChatHost
	if s.AI.Host != "" {
		embeddingHost, chatHost = s.AI.Host, s.AI.Host
	}
	return ai.NewConfig(
		ai.WithEmbeddingHost(embeddingHost),
		ai.WithChatHost(chatHost),
		ai.WithEmbeddingModel(s.AI.EmbeddingModel),
		ai.WithChatModel(s.AI.ChatModel),
		ai.WithAPIToken(s.AI.APIKey),
		ai.WithChatMaxTokens(s.AI.MaxTokens),
	)
}

// RetrievalQuery returns a query for question using the retrieval settings.
func (s *Settings) RetrievalQuery(question string, prior ...core.Turn) core.RetrievalQuery {
	q := core.NewRetrievalQuery(question, prior...)
	q.K = s.Retrieval.K
	q.FetchK = s.Retrieval.FetchK
	q.DiversityLambda = s.Retrieval.Lambda
	q.Temperature = s.Retrieval.Temperature
	return q
}

// SystemPrompt returns the contents of the system prompt file, or "" if
// none is configured.
func (s *Settings) SystemPrompt() (string, error) {
	if s.Retrieval.SystemPromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.Retrieval.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("%w: system prompt: %w", ErrInvalidSettings, err)
	}
	return string(data), nil
}
