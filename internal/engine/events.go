package engine

import "github.com/oncoline/chemochat-go/internal/models"

// Event is one outbound item produced by a turn. The transport layer decides
// how events are serialized (streamed frames vs. a single response body).
type Event interface {
	isEvent()
}

// UserMessageSaved confirms the inbound message was accepted and persisted.
type UserMessageSaved struct {
	Message models.Message
}

// FullMessage carries a complete assistant message for non-streaming
// delivery.
type FullMessage struct {
	Message models.Message
}

// MessageChunk is one fragment of a streamed assistant message. A MessageID
// of -1 marks a message emitted outside the normal turn flow, such as the
// parse-failure apology; clients must not correlate it with stored history.
type MessageChunk struct {
	MessageID int64
	Content   string
}

// MessageEnd terminates a streamed message.
type MessageEnd struct {
	MessageID int64
}

// ConnectionAck reports the session's current state when a client attaches.
type ConnectionAck struct {
	Content      string
	SessionState models.ConversationState
}

func (UserMessageSaved) isEvent() {}
func (FullMessage) isEvent()      {}
func (MessageChunk) isEvent()     {}
func (MessageEnd) isEvent()       {}
func (ConnectionAck) isEvent()    {}
