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


// Package retrieval answers questions from passages stored in a vector index.
//
// The Orchestrator runs a fixed sequence for every question:
//   - Condense the question and any prior turns into a standalone question
//   - Embed the standalone question
//   - Select passages by maximal marginal relevance
//   - Fill the answer prompt with the passages and stream the completion
//
// Answer returns the tokens as they arrive followed by one final event
// carrying the complete answer and the metadata of every passage used.
//
// Basic usage:
//
//	orch, err := retrieval.NewOrchestrator(index, provider)
//	if err != nil {
//	    return err
//	}
//
//	for ev, err := range orch.Answer(ctx, core.NewRetrievalQuery("What are the tuition fees?")) {
//	    if err != nil {
//	        return err
//	    }
//	    if ev.Kind == retrieval.EventToken {
//	        fmt.Print(ev.Token)
//	    }
//	}
package retrieval
