package retrieval

import (
	"fmt"
	"strings"

	"github.com/poiesic/vortex/ai"
	"github.com/poiesic/vortex/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// DefaultSystemPrompt instructs the model to answer from the retrieved
// passages only. {{.context}} receives the passages.
const DefaultSystemPrompt = `Use the following pieces of context to answer the user's question.
Each piece of context starts with the date it was published. Prefer the most recent information.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
----------------
{{.context}}`

const (
	userPrompt = "Question:```{{.question}}```"

	condensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

	contextSeparator = "\n\n"
)

var condenseTemplate = prompts.NewPromptTemplate(condensePrompt, []string{"chat_history", "question"})

// newAnswerPrompt builds the system + user chat template. The system text
// may use either {{.context}} or {context} as its placeholder.
func newAnswerPrompt(system string) (prompts.ChatPromptTemplate, error) {
	format := prompts.TemplateFormatGoTemplate
	switch {
	case strings.Contains(system, "{{.context}}"):
	case strings.Contains(system, "{context}"):
		format = prompts.TemplateFormatFString
	default:
		return prompts.ChatPromptTemplate{}, fmt.Errorf("%w: missing context placeholder", ErrInvalidPrompt)
	}

	tmpl := prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.SystemMessagePromptTemplate{
			Prompt: prompts.PromptTemplate{
				Template:       system,
				InputVariables: []string{"context"},
				TemplateFormat: format,
			},
		},
		prompts.NewHumanMessagePromptTemplate(userPrompt, []string{"question"}),
	})

	if _, err := tmpl.FormatMessages(map[string]any{"context": "", "question": ""}); err != nil {
		return prompts.ChatPromptTemplate{}, fmt.Errorf("%w: %w", ErrInvalidPrompt, err)
	}
	return tmpl, nil
}

// formatHistory renders prior turns one per line as "Human: ..." or
// "Assistant: ...".
func formatHistory(turns []core.Turn) string {
	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if turn.Role == core.RoleAssistant {
			sb.WriteString("Assistant: ")
		} else {
			sb.WriteString("Human: ")
		}
		sb.WriteString(turn.Text)
	}
	return sb.String()
}

// joinPassages concatenates passage texts in retrieval order.
func joinPassages(passages []core.Passage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, contextSeparator)
}

func toMessages(chat []llms.ChatMessage) []ai.Message {
	messages := make([]ai.Message, len(chat))
	for i, m := range chat {
		messages[i] = ai.Message{
			Role:    ai.MessageRole(m.GetType()),
			Content: m.GetContent(),
		}
	}
	return messages
}
