package retrieval

import (
	"testing"

	"github.com/poiesic/vortex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHistory(t *testing.T) {
	turns := []core.Turn{
		{Role: core.RoleHuman, Text: "Hello"},
		{Role: core.RoleAssistant, Text: "Hi, how can I help?"},
		{Role: core.RoleHuman, Text: "Tell me about fees"},
	}

	assert.Equal(t, "Human: Hello\nAssistant: Hi, how can I help?\nHuman: Tell me about fees", formatHistory(turns))
	assert.Empty(t, formatHistory(nil))
}

func TestJoinPassages(t *testing.T) {
	passages := []core.Passage{{Text: "first"}, {Text: "second"}}
	assert.Equal(t, "first\n\nsecond", joinPassages(passages))
	assert.Empty(t, joinPassages(nil))
}

func TestNewAnswerPrompt(t *testing.T) {
	t.Run("go template placeholder", func(t *testing.T) {
		tmpl, err := newAnswerPrompt(DefaultSystemPrompt)
		require.NoError(t, err)

		chat, err := tmpl.FormatMessages(map[string]any{"context": "PASSAGES", "question": "Why?"})
		require.NoError(t, err)

		messages := toMessages(chat)
		require.Len(t, messages, 2)
		assert.Contains(t, messages[0].Content, "----------------\nPASSAGES")
		assert.Equal(t, "Question:```Why?```", messages[1].Content)
	})

	t.Run("brace placeholder", func(t *testing.T) {
		tmpl, err := newAnswerPrompt("Context: {context}")
		require.NoError(t, err)

		chat, err := tmpl.FormatMessages(map[string]any{"context": "PASSAGES", "question": "Why?"})
		require.NoError(t, err)
		assert.Equal(t, "Context: PASSAGES", toMessages(chat)[0].Content)
	})

	t.Run("missing placeholder", func(t *testing.T) {
		_, err := newAnswerPrompt("No context here")
		assert.ErrorIs(t, err, ErrInvalidPrompt)
	})

	t.Run("broken template", func(t *testing.T) {
		_, err := newAnswerPrompt("{{.context}} {{if}}")
		assert.ErrorIs(t, err, ErrInvalidPrompt)
	})
}
