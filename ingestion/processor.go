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


package ingestion

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/poiesic/vortex/chunker"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/parser"
)

// processor turns one source into chunks.
type processor interface {
	process(ctx context.Context, src parser.Source) ([]core.Chunk, error)
}

// parseChunkProcessor parses a source and chunks the resulting document.
type parseChunkProcessor struct {
	parser  parser.Parser
	chunker *chunker.Chunker
}

var _ processor = (*parseChunkProcessor)(nil)

func (p *parseChunkProcessor) process(ctx context.Context, src parser.Source) (chunks []core.Chunk, err error) {
	// A panicking parser must not take down the worker pool.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v\n%s", core.ErrFormat, src.Name(), r, debug.Stack())
		}
	}()

	doc, err := p.parser.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	return chunker.Collect(p.chunker.Chunks(doc)), nil
}
