package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// MessageType is the closed vocabulary of message flavors. Stored values use
// underscores; the client surface uses hyphens (see WireType).
type MessageType string

const (
	TypeText                MessageType = "text"
	TypeButtonResponse      MessageType = "button_response"
	TypeMultiSelectResponse MessageType = "multi_select_response"
	TypeMultiSelect         MessageType = "multi_select"
	TypeSystem              MessageType = "system"
	TypeButtonPrompt        MessageType = "button_prompt"
	TypeSingleSelect        MessageType = "single_select"
	TypeFeelingSelect       MessageType = "feeling_select"
	TypeFeelingResponse     MessageType = "feeling_response"
)

// NormalizeMessageType converts a hyphenated wire value to the stored
// underscore form.
func NormalizeMessageType(t string) MessageType {
	return MessageType(strings.ReplaceAll(t, "-", "_"))
}

// WireType returns the client-facing hyphenated form of the type.
func (t MessageType) WireType() string {
	return strings.ReplaceAll(string(t), "_", "-")
}

// Known reports whether t is part of the persisted vocabulary.
func (t MessageType) Known() bool {
	switch t {
	case TypeText, TypeButtonResponse, TypeMultiSelectResponse, TypeMultiSelect,
		TypeSystem, TypeButtonPrompt, TypeSingleSelect, TypeFeelingSelect,
		TypeFeelingResponse:
		return true
	}
	return false
}

// Message is one entry in a session's append-only conversation log.
type Message struct {
	ID             int64          `json:"id"`
	SessionID      uuid.UUID      `json:"chat_uuid"`
	Sender         Sender         `json:"sender"`
	Type           MessageType    `json:"message_type"`
	Content        string         `json:"content"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
