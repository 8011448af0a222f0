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


// Package storage provides the storage abstraction layer for vortex.
//
// This package defines the interfaces that decouple persistence from the
// ingestion and retrieval pipelines, plus the binary codec and vector math
// shared by every backend.
//
// # Architecture
//
//   - VectorIndex: a named collection of embedded chunks keyed by content hash
//   - ChunkWriter: the write side used by ingestion
//   - PassageSearcher: maximal marginal relevance search used by retrieval
//   - TranscriptStore: append-only conversation messages
//   - RunLedger: the latest ingestion report per collection
//
// # Usage
//
// Open a BadgerDB backend and build the stores on top of it:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	index, err := badger.NewChunkIndex(backend, "neonshield-2023-05")
//
// Use in tests with in-memory storage:
//
//	index, transcripts, backend, err := badger.NewMemoryStores("test")
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
//
// # Context Support
//
// All methods accept context.Context for cancellation. Pass
// context.Background() for operations without a deadline.
package storage
