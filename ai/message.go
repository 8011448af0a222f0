package ai

// MessageRole identifies who authored a chat message sent to a Generator.
type MessageRole string

const (
	RoleSystem MessageRole = "system"
	RoleHuman  MessageRole = "human"
	RoleAI     MessageRole = "ai"
)

// Message is a single chat message sent to a Generator.
type Message struct {
	Role    MessageRole
	Content string
}

// SystemMessage returns a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// HumanMessage returns a human message.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage returns an assistant message.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// GenerateOptions controls a single generation call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// GenerateOption is a functional option for a generation call.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the completion length. Zero leaves the service default.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// ApplyGenerateOptions folds opts into a GenerateOptions value.
func ApplyGenerateOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
