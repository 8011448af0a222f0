package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/vortex/core"
)

const (
	// DefaultMaxQuestionLength is the longest question, in characters, a
	// session accepts.
	DefaultMaxQuestionLength = 2000

	// GenericErrorMessage is sent when answering fails. It never carries
	// internal error detail.
	GenericErrorMessage = "Sorry, something went wrong. Try again."

	senderBot = "bot"
)

// Event types sent to the client.
const (
	TypeStart  = "start"
	TypeStream = "stream"
	TypeEnd    = "end"
	TypeError  = "error"
)

// Payload is a question sent by the client: the new human message last,
// preceded by the conversation so far.
type Payload struct {
	Captcha      string        `json:"captcha"`
	LocalContext string        `json:"localContext,omitempty"`
	Messages     []WireMessage `json:"messages"`
}

// WireMessage is one conversation message as exchanged with the client.
// Time is milliseconds since the Unix epoch.
type WireMessage struct {
	MessageID         string       `json:"messageId"`
	PreviousMessageID string       `json:"previousMessageId"`
	Type              string       `json:"type"`
	Content           string       `json:"content"`
	Sources           []WireSource `json:"sources,omitempty"`
	Time              int64        `json:"time"`
}

// WireSource is the client view of a SourceMetadata.
type WireSource struct {
	Link   string `json:"link"`
	Name   string `json:"name"`
	Author string `json:"author,omitempty"`
	Date   string `json:"date"`
}

// StartEvent announces an answer before any of its tokens.
type StartEvent struct {
	Sender            string `json:"sender"`
	MessageID         string `json:"messageId"`
	PreviousMessageID string `json:"previousMessageId"`
	Time              int64  `json:"time"`
	Type              string `json:"type"`
}

// StreamEvent carries one answer token.
type StreamEvent struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// EndEvent carries the complete answer and its sources.
type EndEvent struct {
	Sender            string       `json:"sender"`
	ID                string       `json:"id"`
	PreviousMessageID string       `json:"previousMessageId"`
	Message           string       `json:"message"`
	Sources           []WireSource `json:"sources"`
	Type              string       `json:"type"`
}

// ErrorEvent tells the client its question could not be answered.
type ErrorEvent struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ParsePayload decodes and validates a question payload.
// Every error wraps core.ErrProtocol.
func ParsePayload(data []byte, maxQuestionLength int) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrProtocol, ErrMalformedPayload, err)
	}
	if err := p.Validate(maxQuestionLength); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that p ends with a non-empty human question of at most
// maxQuestionLength characters and that every message has a known type.
// A maxQuestionLength of zero or less disables the length check.
func (p *Payload) Validate(maxQuestionLength int) error {
	if len(p.Messages) == 0 {
		return fmt.Errorf("%w: %w", core.ErrProtocol, ErrNoMessages)
	}
	for i, msg := range p.Messages {
		if _, err := core.ParseRole(msg.Type); err != nil {
			return fmt.Errorf("%w: %w: message %d has type %q", core.ErrProtocol, ErrUnknownMessageType, i, msg.Type)
		}
	}

	last := p.Question()
	switch {
	case last.Type != core.RoleHuman.String():
		return fmt.Errorf("%w: %w", core.ErrProtocol, ErrNotHuman)
	case strings.TrimSpace(last.MessageID) == "":
		return fmt.Errorf("%w: %w", core.ErrProtocol, ErrMissingMessageID)
	case strings.TrimSpace(last.Content) == "":
		return fmt.Errorf("%w: %w", core.ErrProtocol, ErrEmptyQuestion)
	case maxQuestionLength > 0 && utf8.RuneCountInString(last.Content) > maxQuestionLength:
		return fmt.Errorf("%w: %w: %d characters, limit %d", core.ErrProtocol, ErrQuestionTooLong,
			utf8.RuneCountInString(last.Content), maxQuestionLength)
	}
	return nil
}

// Question returns the final message of the payload.
func (p *Payload) Question() WireMessage {
	return p.Messages[len(p.Messages)-1]
}

// PriorTurns returns every message before the question, oldest first.
func (p *Payload) PriorTurns() []core.Turn {
	prior := p.Messages[:len(p.Messages)-1]
	turns := make([]core.Turn, 0, len(prior))
	for _, msg := range prior {
		role, err := core.ParseRole(msg.Type)
		if err != nil {
			continue
		}
		turns = append(turns, core.Turn{Role: role, Text: msg.Content})
	}
	return turns
}

// wireSources converts metadata to its client form. The result is never nil
// so that an answer without sources encodes as an empty list.
func wireSources(sources []core.SourceMetadata) []WireSource {
	out := make([]WireSource, len(sources))
	for i, s := range sources {
		out[i] = WireSource{
			Link:   s.Link,
			Name:   s.Name,
			Author: s.Author,
			Date:   s.Date(),
		}
	}
	return out
}

// clientMessage returns the text of the error event for a rejected payload.
func clientMessage(err error) string {
	for _, reason := range protocolReasons {
		if errors.Is(err, reason) {
			return "Invalid question: " + reason.Error()
		}
	}
	return GenericErrorMessage
}
