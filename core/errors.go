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


package core

import "errors"

// Pipeline error kinds. Callers classify failures with errors.Is.
var (
	// ErrFormat indicates a source could not be parsed into a Document.
	ErrFormat = errors.New("format error")

	// ErrUpsert indicates the vector index rejected a batch of chunks.
	ErrUpsert = errors.New("upsert error")

	// ErrRetrieval indicates embedding, index lookup, or generation failed
	// while answering a question.
	ErrRetrieval = errors.New("retrieval error")

	// ErrTranscript indicates a conversation message could not be persisted.
	ErrTranscript = errors.New("transcript error")

	// ErrProtocol indicates a malformed client payload.
	ErrProtocol = errors.New("protocol error")
)

// Domain validation errors
var (
	// ErrInvalidMetadata indicates SourceMetadata failed validation.
	ErrInvalidMetadata = errors.New("invalid source metadata")

	// ErrMissingLink indicates the Link field is empty.
	ErrMissingLink = errors.New("link cannot be empty")

	// ErrMissingName indicates the Name field is empty.
	ErrMissingName = errors.New("name cannot be empty")

	// ErrInvalidMessage indicates a ConversationMessage failed validation.
	ErrInvalidMessage = errors.New("invalid conversation message")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingMessageID indicates the MessageID field is empty.
	ErrMissingMessageID = errors.New("message id cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")
)
