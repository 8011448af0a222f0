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


package storage

import "errors"

var (
	// ErrNotFound is returned when a chunk or message is not stored.
	ErrNotFound = errors.New("not found in knowledge base")

	// ErrDuplicateMessage is returned when a transcript message ID is reused.
	ErrDuplicateMessage = errors.New("message already recorded")

	// ErrInvalidChunk is returned for chunks that cannot be indexed.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidQuery is returned for out-of-range retrieval or scan
	// parameters.
	ErrInvalidQuery = errors.New("invalid retrieval parameters")

	ErrTransactionFailed = errors.New("transaction failed")
	ErrStorageClosed     = errors.New("knowledge base is closed")

	// ErrSerializationFailed wraps codec failures on chunks, messages and
	// run reports.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedRecord means an encoded record ended early.
	ErrTruncatedRecord = errors.New("truncated record")
)
