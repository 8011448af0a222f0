package retrieval

import "errors"

var (
	// ErrIndexRequired is returned when a passage searcher is not provided.
	ErrIndexRequired = errors.New("passage searcher required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuestion is returned when the question has no content.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrInvalidPrompt is returned when a system prompt cannot be used as a
	// template or lacks the context placeholder.
	ErrInvalidPrompt = errors.New("invalid system prompt")
)
