package conversation

import (
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/vortex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]byte(question), DefaultMaxQuestionLength)
	require.NoError(t, err)

	assert.Equal(t, "token", p.Captcha)
	assert.Len(t, p.Messages, 3)
	assert.Equal(t, "h1", p.Question().MessageID)
	assert.Equal(t, []core.Turn{
		{Role: core.RoleHuman, Text: "Tell me about universities"},
		{Role: core.RoleAssistant, Text: "We support free education."},
	}, p.PriorTurns())
}

func TestParsePayload_LocalContextAndNullPrevious(t *testing.T) {
	data := `{"captcha": "", "localContext": "Bath", "messages": [{"messageId": "h", "previousMessageId": null, "type": "human", "content": "Who is my candidate?", "time": 5}]}`

	p, err := ParsePayload([]byte(data), 0)
	require.NoError(t, err)
	assert.Equal(t, "Bath", p.LocalContext)
	assert.Empty(t, p.Question().PreviousMessageID)
	assert.Empty(t, p.PriorTurns())
}

func TestPayloadValidate(t *testing.T) {
	human := func(content string) WireMessage {
		return WireMessage{MessageID: "h", Type: "human", Content: content}
	}

	tests := []struct {
		name    string
		payload Payload
		maxLen  int
		wantErr error
	}{
		{"valid", Payload{Messages: []WireMessage{human("hi")}}, 10, nil},
		{"no messages", Payload{}, 10, ErrNoMessages},
		{"unknown type in history", Payload{Messages: []WireMessage{{MessageID: "x", Type: "bot", Content: "hi"}, human("hi")}}, 10, ErrUnknownMessageType},
		{"last is ai", Payload{Messages: []WireMessage{{MessageID: "a", Type: "ai", Content: "hi"}}}, 10, ErrNotHuman},
		{"empty question", Payload{Messages: []WireMessage{human("\n\t")}}, 10, ErrEmptyQuestion},
		{"too long", Payload{Messages: []WireMessage{human(strings.Repeat("x", 11))}}, 10, ErrQuestionTooLong},
		{"length counts characters", Payload{Messages: []WireMessage{human(strings.Repeat("é", 10))}}, 10, nil},
		{"zero limit disables check", Payload{Messages: []WireMessage{human(strings.Repeat("x", 5000))}}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate(tt.maxLen)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, core.ErrProtocol)
		})
	}
}

func TestParsePayload_Malformed(t *testing.T) {
	_, err := ParsePayload([]byte(`{"messages": "nope"}`), 10)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.ErrorIs(t, err, core.ErrProtocol)
}

func TestWireSources(t *testing.T) {
	sources := wireSources([]core.SourceMetadata{
		manifesto,
		{Link: "https://example.org/news", Name: "News", Author: "Press Office", PublicationDate: core.UnknownDate},
	})

	assert.Equal(t, []WireSource{
		{Link: manifesto.Link, Name: "Manifesto", Date: "2023-05-14"},
		{Link: "https://example.org/news", Name: "News", Author: "Press Office", Date: "1900-01-01"},
	}, sources)

	assert.NotNil(t, wireSources(nil))
	assert.Empty(t, wireSources(nil))
}

func TestClientMessage(t *testing.T) {
	assert.Equal(t, "Invalid question: question is too long", clientMessage(errors.Join(core.ErrProtocol, ErrQuestionTooLong)))
	assert.Equal(t, GenericErrorMessage, clientMessage(errors.New("disk full")))
}
