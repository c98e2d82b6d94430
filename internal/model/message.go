// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversation turns and history.
package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the speaker of a turn. The values are part of the wire
// format and must match what the answering service expects.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAI:
		return "Assistant"
	default:
		return string(r)
	}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAI
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one message exchanged in the conversation.
// Turns are values; once appended to a History they are never changed.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserTurn creates a turn spoken by the user.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewAITurn creates a turn spoken by the assistant.
func NewAITurn(content string) Turn {
	return Turn{Role: RoleAI, Content: content}
}
