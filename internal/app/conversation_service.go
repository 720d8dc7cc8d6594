package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"gopherai-chat/internal/model"
	"gopherai-chat/internal/observability"
)

const (
	MaxListedSessions = 100
	MaxListedMessages = 1000
)

type ConversationService struct {
	sessions     SessionStore
	messages     MessageStore
	historyCache HistoryCache
	publisher    EventPublisher
	now          func() time.Time
}

// ConversationOption configures optional collaborators.
type ConversationOption func(*ConversationService)

func WithHistoryCache(cache HistoryCache) ConversationOption {
	return func(s *ConversationService) { s.historyCache = cache }
}

func WithEventPublisher(publisher EventPublisher) ConversationOption {
	return func(s *ConversationService) { s.publisher = publisher }
}

func WithClock(now func() time.Time) ConversationOption {
	return func(s *ConversationService) { s.now = now }
}

func NewConversationService(sessions SessionStore, messages MessageStore, opts ...ConversationOption) *ConversationService {
	s := &ConversationService{
		sessions: sessions,
		messages: messages,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ConversationService) CreateSession(ctx context.Context) (*model.Session, error) {
	now := s.timestamp()
	session := &model.Session{
		ID:        uuid.NewString(),
		Title:     model.DefaultSessionTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return session, nil
}

// ListSessions returns at most MaxListedSessions sessions, most recently updated first.
func (s *ConversationService) ListSessions(ctx context.Context) ([]model.Session, error) {
	sessions, err := s.sessions.ListRecent(ctx, MaxListedSessions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	slices.SortStableFunc(sessions, func(a, b model.Session) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if len(sessions) > MaxListedSessions {
		sessions = sessions[:MaxListedSessions]
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// AppendMessage stores a new message. The session is not required to exist.
func (s *ConversationService) AppendMessage(ctx context.Context, sessionID, role, content string, files []string) (*model.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	if role != model.RoleUser && role != model.RoleAssistant {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	message := &model.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: s.timestamp(),
		Files:     files,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.invalidateHistory(ctx, sessionID)
	s.publish(ctx, model.ChatEvent{
		Type:       model.EventMessageCreated,
		SessionID:  sessionID,
		MessageID:  message.ID,
		Role:       message.Role,
		OccurredAt: message.Timestamp,
	})
	return message, nil
}

func (s *ConversationService) TouchSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	if err := s.sessions.Touch(ctx, sessionID, s.timestamp()); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// ListMessages returns at most MaxListedMessages messages in timestamp order.
func (s *ConversationService) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	version, cacheable := s.cachedHistoryVersion(ctx, sessionID)
	if cacheable {
		cached, hit, err := s.historyCache.GetHistory(ctx, sessionID)
		if err != nil {
			observability.FromContext(ctx).Warn("history cache read failed", "session_id", sessionID, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	messages, err := s.messages.ListBySessionID(ctx, sessionID, MaxListedMessages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	slices.SortStableFunc(messages, func(a, b model.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if len(messages) > MaxListedMessages {
		messages = messages[:MaxListedMessages]
	}
	if messages == nil {
		messages = []model.Message{}
	}

	if cacheable {
		if _, err := s.historyCache.SetHistoryIfVersion(ctx, sessionID, version, messages); err != nil {
			observability.FromContext(ctx).Warn("history cache write failed", "session_id", sessionID, "error", err)
		}
	}
	return messages, nil
}

// cachedHistoryVersion reads the write version before the store is consulted.
// Without a readable version the cache is bypassed for this call.
func (s *ConversationService) cachedHistoryVersion(ctx context.Context, sessionID string) (int64, bool) {
	if s.historyCache == nil {
		return 0, false
	}
	version, err := s.historyCache.HistoryVersion(ctx, sessionID)
	if err != nil {
		observability.FromContext(ctx).Warn("history cache version read failed", "session_id", sessionID, "error", err)
		return 0, false
	}
	return version, true
}

// DeleteSession removes the session and then its messages. The two deletions
// are independent; deleting an unknown id is not an error.
func (s *ConversationService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.messages.DeleteBySessionID(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.invalidateHistory(ctx, sessionID)
	s.publish(ctx, model.ChatEvent{
		Type:       model.EventSessionDeleted,
		SessionID:  sessionID,
		OccurredAt: s.timestamp(),
	})
	return nil
}

func (s *ConversationService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *ConversationService) invalidateHistory(ctx context.Context, sessionID string) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.MarkDirty(ctx, sessionID); err != nil {
		observability.FromContext(ctx).Warn("history cache invalidate failed", "session_id", sessionID, "error", err)
	}
}

func (s *ConversationService) publish(ctx context.Context, event model.ChatEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		observability.FromContext(ctx).Warn("publish chat event failed",
			"type", event.Type,
			"session_id", event.SessionID,
			"error", err,
		)
	}
}
