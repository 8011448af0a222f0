package core

import (
	"errors"
	"testing"
)

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name    string
		meta    SourceMetadata
		wantErr error
	}{
		{
			name:    "valid metadata",
			meta:    SourceMetadata{Link: "https://example.org", Name: "Example"},
			wantErr: nil,
		},
		{
			name:    "missing link",
			meta:    SourceMetadata{Name: "Example"},
			wantErr: ErrMissingLink,
		},
		{
			name:    "whitespace name",
			meta:    SourceMetadata{Link: "https://example.org", Name: "   "},
			wantErr: ErrMissingName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetadata(tt.meta)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMetadata() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMetadata() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidMetadata) {
				t.Errorf("ValidateMetadata() error should wrap ErrInvalidMetadata")
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     *ConversationMessage
		wantErr error
	}{
		{
			name: "valid human message",
			msg: &ConversationMessage{
				MessageID: "m1",
				Role:      RoleHuman,
				Content:   "What are the tuition fees?",
			},
		},
		{
			name: "valid assistant message with sources",
			msg: &ConversationMessage{
				MessageID:         "m2",
				PreviousMessageID: "m1",
				Role:              RoleAssistant,
				Content:           "They are listed in the report.",
				Sources:           []SourceMetadata{{Link: "l", Name: "n"}},
			},
		},
		{
			name:    "nil message",
			msg:     nil,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "missing id",
			msg:     &ConversationMessage{Role: RoleHuman, Content: "hi"},
			wantErr: ErrMissingMessageID,
		},
		{
			name:    "empty content",
			msg:     &ConversationMessage{MessageID: "m1", Role: RoleHuman},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "invalid role",
			msg:     &ConversationMessage{MessageID: "m1", Role: Role(99), Content: "hi"},
			wantErr: ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.msg)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMessage() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
