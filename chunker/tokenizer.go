package chunker

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultTokenizerModel selects the BPE ranks used by the default tokenizer.
const DefaultTokenizerModel = "gpt-3.5-turbo"

// Tokenizer converts between text and token IDs.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

var offlineLoader sync.Once

// TiktokenTokenizer is a Tokenizer backed by tiktoken BPE ranks that are
// compiled into the binary, so no network access is needed.
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

var _ Tokenizer = (*TiktokenTokenizer)(nil)

// NewTiktokenTokenizer returns the tokenizer for model.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	offlineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tokenizer for %s: %w", model, err)
	}
	return &TiktokenTokenizer{encoding: encoding}, nil
}

// Encode implements Tokenizer. Special tokens are encoded as plain text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Decode implements Tokenizer.
func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}
