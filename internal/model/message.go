package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable turn of a session. Files keeps the attachment ids
// exactly as the client sent them, including ids that never resolved.
type Message struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	SessionID string    `gorm:"size:64;not null;index" json:"session_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:longtext;not null" json:"content"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Files     []string  `gorm:"serializer:json;type:text" json:"files"`
}
