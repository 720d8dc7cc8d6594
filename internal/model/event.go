package model

import "time"

const (
	EventMessageCreated = "message.created"
	EventSessionDeleted = "session.deleted"
)

// ChatEvent is published to the event feed after a write succeeds.
type ChatEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
