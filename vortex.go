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


// Package vortex wires storage and the AI provider into a knowledge base
// that documents are ingested into and questions are answered from.
package vortex

import (
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/vortex/ai"
	"github.com/poiesic/vortex/ai/openai"
	"github.com/poiesic/vortex/conversation"
	"github.com/poiesic/vortex/ingestion"
	"github.com/poiesic/vortex/reembed"
	"github.com/poiesic/vortex/retrieval"
	"github.com/poiesic/vortex/storage"
	"github.com/poiesic/vortex/storage/badger"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "neonshield-2023-05"

// Knowledgebase owns the storage backend and AI provider for one collection.
type Knowledgebase struct {
	backend     *badger.Backend
	index       *badger.ChunkIndex
	transcripts *badger.TranscriptRepository
	runs        *badger.RunRepository
	provider    ai.AIProvider
	logger      *slog.Logger
}

// Option configures a Knowledgebase.
type Option func(*options)

type options struct {
	aiConfig   *ai.Config
	provider   ai.AIProvider
	collection string
	inMemory   bool
	logger     *slog.Logger
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of creating an OpenAI-compatible one.
// The knowledge base takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithCollection selects the collection chunks are stored in.
func WithCollection(collection string) Option {
	return func(o *options) {
		o.collection = collection
	}
}

// InMemory keeps everything in memory. The path passed to Open is ignored.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens or creates the knowledge base stored at path.
func Open(path string, opts ...Option) (*Knowledgebase, error) {
	o := &options{
		aiConfig:   ai.DefaultConfig(),
		collection: DefaultCollection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(path, o.inMemory)
	if err != nil {
		return nil, err
	}

	index, err := badger.NewChunkIndex(backend, o.collection)
	if err != nil {
		backend.Close()
		return nil, err
	}

	transcripts, err := badger.NewTranscriptRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider, err = openai.NewProvider(o.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	return &Knowledgebase{
		backend:     backend,
		index:       index,
		transcripts: transcripts,
		runs:        badger.NewRunRepository(backend),
		provider:    provider,
		logger:      o.logger.With("component", "knowledgebase", "collection", o.collection),
	}, nil
}

// Close releases the provider and the storage backend.
func (kb *Knowledgebase) Close() error {
	var errs []error
	if err := kb.provider.Close(); err != nil {
		kb.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := kb.index.Close(); err != nil {
		kb.logger.Error("error closing chunk index", "err", err)
		errs = append(errs, err)
	}
	if err := kb.backend.Close(); err != nil {
		kb.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Index returns the chunk index of the collection.
func (kb *Knowledgebase) Index() storage.VectorIndex {
	return kb.index
}

// Transcripts returns the conversation transcript store.
func (kb *Knowledgebase) Transcripts() storage.TranscriptStore {
	return kb.transcripts
}

// Runs returns the ingestion run ledger.
func (kb *Knowledgebase) Runs() storage.RunLedger {
	return kb.runs
}

// Provider returns the AI provider.
func (kb *Knowledgebase) Provider() ai.AIProvider {
	return kb.provider
}

// NewIngester returns an ingester that writes to the collection and records
// its runs in the ledger. Callers must Release it.
func (kb *Knowledgebase) NewIngester(opts ...ingestion.Option) (*ingestion.Ingester, error) {
	opts = append([]ingestion.Option{ingestion.WithLedger(kb.runs)}, opts...)
	return ingestion.NewIngester(kb.index, kb.provider.Embedder(), opts...)
}

// NewOrchestrator returns a retrieval orchestrator over the collection.
func (kb *Knowledgebase) NewOrchestrator(opts ...retrieval.Option) (*retrieval.Orchestrator, error) {
	return retrieval.NewOrchestrator(kb.index, kb.provider, opts...)
}

// NewSessionFactory returns a factory that binds each connection to a
// session answering from answerer and recording into the transcript store.
func (kb *Knowledgebase) NewSessionFactory(answerer conversation.Answerer, opts ...conversation.Option) conversation.SessionFactory {
	return func(conn conversation.Conn) (*conversation.Session, error) {
		return conversation.NewSession(conn, answerer, kb.transcripts, opts...)
	}
}

// NewReembedder returns a reembedder that replaces every vector of the
// collection using embedder.
func (kb *Knowledgebase) NewReembedder(embedder ai.Embedder, config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if embedder == nil {
		embedder = kb.provider.Embedder()
	}
	return reembed.NewReembedder(kb.index, embedder, config, progress)
}
