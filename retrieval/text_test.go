package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignificantWords(t *testing.T) {
	assert.Equal(t, []string{"tuition", "fees", "2024"}, significantWords("What are the tuition fees in 2024?"))
	assert.Empty(t, significantWords("What is it?"))
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name    string
		passage string
		query   string
		want    bool
	}{
		{"all words present", "Tuition fees will be scrapped.", "What are the tuition fees?", true},
		{"case and punctuation ignored", "TUITION-FEES: scrapped", "tuition fees", true},
		{"missing word", "Tuition will be free.", "tuition fees", false},
		{"only stop words", "anything at all", "what is the", false},
		{"empty query", "anything", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.passage, tt.query))
		})
	}
}
