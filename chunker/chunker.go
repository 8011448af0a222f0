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


package chunker

import (
	"errors"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/vortex/core"
)

const (
	// DefaultSize is the window length in tokens.
	DefaultSize = 250

	// DefaultOverlap is the number of tokens shared by consecutive windows.
	DefaultOverlap = 25
)

// Chunker splits documents into token windows.
type Chunker struct {
	tokenizer Tokenizer
	size      int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithSize sets the window length in tokens.
func WithSize(size int) Option {
	return func(c *Chunker) error {
		if size < 1 {
			return errors.New("chunker: size must be at least 1")
		}
		c.size = size
		return nil
	}
}

// WithOverlap sets the number of tokens consecutive windows share.
// It is clamped to [0, size-1] once all options are applied.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		c.overlap = overlap
		return nil
	}
}

// WithTokenizer replaces the default tiktoken tokenizer.
func WithTokenizer(tokenizer Tokenizer) Option {
	return func(c *Chunker) error {
		if tokenizer == nil {
			return errors.New("chunker: tokenizer cannot be nil")
		}
		c.tokenizer = tokenizer
		return nil
	}
}

// New creates a Chunker with a window of DefaultSize tokens overlapping by
// DefaultOverlap.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.overlap = max(0, min(c.overlap, c.size-1))
	if c.tokenizer == nil {
		tokenizer, err := NewTiktokenTokenizer(DefaultTokenizerModel)
		if err != nil {
			return nil, err
		}
		c.tokenizer = tokenizer
	}
	return c, nil
}

// Size returns the window length in tokens.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of tokens shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks returns the chunks of doc in order. The sequence is computed lazily
// and may be ranged over any number of times with the same result.
//
// Window i starts at token i*(size-overlap). The last window is the first
// one that reaches the end of the text, so no window is contained in the one
// before it. Blank documents produce no chunks.
//
// A character whose tokens straddle a window edge is kept whole in the
// window where it starts, so chunk text is always valid UTF-8.
func (c *Chunker) Chunks(doc *core.Document) iter.Seq[core.Chunk] {
	return func(yield func(core.Chunk) bool) {
		if doc == nil || strings.TrimSpace(doc.Content) == "" {
			return
		}

		tokens := c.tokenizer.Encode(doc.Content)
		prefix := doc.Metadata.Date() + "\n\n"
		step := c.size - c.overlap

		index := 0
		for start := 0; start < len(tokens); start += step {
			body, end := c.window(tokens, start, min(start+c.size, len(tokens)))
			if body != "" {
				text := flatten(prefix + body)
				chunk := core.Chunk{
					Text:        text,
					Metadata:    doc.Metadata,
					ChunkIndex:  index,
					ContentHash: core.ContentHash(text),
				}
				index++
				if !yield(chunk) {
					return
				}
			}
			if end == len(tokens) {
				return
			}
		}
	}
}

// window decodes tokens[start:end]. The end is pushed forward until the last
// character is complete and bytes continuing a character from the previous
// window are dropped. It returns the text and the end actually used.
func (c *Chunker) window(tokens []int, start, end int) (string, int) {
	text := c.tokenizer.Decode(tokens[start:end])
	for extra := 0; extra < utf8.UTFMax && end < len(tokens) && partialTail(text); extra++ {
		end++
		text = c.tokenizer.Decode(tokens[start:end])
	}
	if start > 0 {
		for i := 0; i < utf8.UTFMax-1 && text != "" && !utf8.RuneStart(text[0]); i++ {
			text = text[1:]
		}
	}
	return strings.ToValidUTF8(text, "\uFFFD"), end
}

// partialTail reports whether s ends in the middle of a multi-byte character.
func partialTail(s string) bool {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			return !utf8.FullRuneInString(s[i:])
		}
	}
	return false
}

// Collect materializes a chunk sequence.
func Collect(seq iter.Seq[core.Chunk]) []core.Chunk {
	var chunks []core.Chunk
	for chunk := range seq {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// flatten replaces line breaks with spaces.
func flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
