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


package core

import (
	"fmt"
	"strings"
)

// ValidateMetadata validates SourceMetadata according to domain rules.
//
// Validation rules:
//   - Link must not be empty
//   - Name must not be empty
//
// Author and PublicationDate are optional.
func ValidateMetadata(m SourceMetadata) error {
	if strings.TrimSpace(m.Link) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, ErrMissingLink)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, ErrMissingName)
	}
	return nil
}

// ValidateMessage validates a ConversationMessage before it is persisted.
//
// Validation rules:
//   - MessageID must not be empty
//   - Content must not be empty
//   - Role must be valid (Human or Assistant)
func ValidateMessage(msg *ConversationMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if msg.MessageID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrMissingMessageID)
	}

	if msg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyContent)
	}

	if err := ValidateRole(msg.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	return nil
}

// ValidateRole validates that a Role has a valid value.
func ValidateRole(role Role) error {
	if role != RoleHuman && role != RoleAssistant {
		return fmt.Errorf("%w: value %d", ErrInvalidRole, role)
	}
	return nil
}
