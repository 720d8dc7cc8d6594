package app

import (
	"context"
	"time"

	"gopherai-chat/internal/model"
)

// SessionStore persists sessions. Get-style lookups return (nil, nil) when
// the record is absent.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	ListRecent(ctx context.Context, limit int) ([]model.Session, error)
	// Touch sets updated_at, creating a minimal session when id is unknown.
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Delete(ctx context.Context, sessionID string) error
}

type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	ListBySessionID(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

type FileStore interface {
	Create(ctx context.Context, file *model.File) error
	GetByID(ctx context.Context, fileID string) (*model.File, error)
}

// HistoryCache is a read-through cache of a session's messages. Writers call
// MarkDirty after persisting; readers take HistoryVersion before loading from
// the store and fill with SetHistoryIfVersion, which drops fills older than
// the last write.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Message, bool, error)
	HistoryVersion(ctx context.Context, sessionID string) (int64, error)
	SetHistoryIfVersion(ctx context.Context, sessionID string, version int64, messages []model.Message) (bool, error)
	MarkDirty(ctx context.Context, sessionID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.ChatEvent) error
}
