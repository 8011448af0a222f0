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


package badger

import "github.com/poiesic/vortex/storage"

// NewMemoryStores creates an in-memory chunk index for collection and a
// transcript store for testing. Caller must close the backend when done.
func NewMemoryStores(collection string) (storage.VectorIndex, storage.TranscriptStore, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	index, err := NewChunkIndex(backend, collection)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	transcripts, err := NewTranscriptRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return index, transcripts, backend, nil
}
