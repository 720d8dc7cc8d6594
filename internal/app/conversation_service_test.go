package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"

	"gopherai-chat/internal/cache"
	"gopherai-chat/internal/model"
	"gopherai-chat/internal/repository/memory"
)

// steppingClock advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type recordingCache struct {
	mu       sync.Mutex
	entries  map[string][]model.Message
	versions map[string]int64
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		entries:  make(map[string][]model.Message),
		versions: make(map[string]int64),
	}
}

func (c *recordingCache) GetHistory(_ context.Context, sessionID string) ([]model.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages, ok := c.entries[sessionID]
	return messages, ok, nil
}

func (c *recordingCache) HistoryVersion(_ context.Context, sessionID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[sessionID], nil
}

func (c *recordingCache) SetHistoryIfVersion(_ context.Context, sessionID string, version int64, messages []model.Message) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[sessionID] != version {
		return false, nil
	}
	c.entries[sessionID] = messages
	return true, nil
}

func (c *recordingCache) MarkDirty(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[sessionID]++
	delete(c.entries, sessionID)
	return nil
}

// interleavingMessages runs onList once, right after the store read and
// before the caller gets the result back.
type interleavingMessages struct {
	*memory.MessageStore
	onList func()
}

func (s *interleavingMessages) ListBySessionID(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	messages, err := s.MessageStore.ListBySessionID(ctx, sessionID, limit)
	if hook := s.onList; hook != nil {
		s.onList = nil
		hook()
	}
	return messages, err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChatEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type failingMessageStore struct {
	*memory.MessageStore
}

func (failingMessageStore) Create(context.Context, *model.Message) error {
	return errors.New("disk full")
}

func newTestConversations(opts ...ConversationOption) *ConversationService {
	opts = append([]ConversationOption{WithClock(steppingClock())}, opts...)
	return NewConversationService(memory.NewSessionStore(), memory.NewMessageStore(), opts...)
}

func TestCreateSessionDefaults(t *testing.T) {
	svc := newTestConversations()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected generated id")
	}
	if session.Title != model.DefaultSessionTitle {
		t.Fatalf("unexpected title %q", session.Title)
	}
	if !session.CreatedAt.Equal(session.UpdatedAt) {
		t.Fatalf("created_at %v != updated_at %v", session.CreatedAt, session.UpdatedAt)
	}

	other, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if other.ID == session.ID {
		t.Fatal("expected distinct session ids")
	}

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	svc := newTestConversations()
	ctx := context.Background()

	first, _ := svc.CreateSession(ctx)
	second, _ := svc.CreateSession(ctx)
	third, _ := svc.CreateSession(ctx)

	if err := svc.TouchSession(ctx, first.ID); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	want := []string{first.ID, third.ID, second.ID}
	if len(sessions) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(sessions))
	}
	for i, id := range want {
		if sessions[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, sessions[i].ID)
		}
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i-1].UpdatedAt.Before(sessions[i].UpdatedAt) {
			t.Fatalf("sessions not sorted by updated_at desc at %d", i)
		}
	}
}

func TestListSessionsCapped(t *testing.T) {
	svc := newTestConversations()
	ctx := context.Background()
	for i := 0; i < MaxListedSessions+5; i++ {
		if _, err := svc.CreateSession(ctx); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}
	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != MaxListedSessions {
		t.Fatalf("expected %d sessions, got %d", MaxListedSessions, len(sessions))
	}
}

func TestTouchSessionCreatesMissingSession(t *testing.T) {
	svc := newTestConversations()
	ctx := context.Background()

	if err := svc.TouchSession(ctx, "S9"); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}
	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "S9" {
		t.Fatalf("expected upserted session S9, got %+v", sessions)
	}
	if sessions[0].Title != model.DefaultSessionTitle {
		t.Fatalf("unexpected title %q", sessions[0].Title)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	svc := newTestConversations()
	ctx := context.Background()

	if _, err := svc.AppendMessage(ctx, " ", model.RoleUser, "hi", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty session id, got %v", err)
	}
	if _, err := svc.AppendMessage(ctx, "S1", "system", "hi", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
}

func TestAppendMessageStorageFailure(t *testing.T) {
	svc := NewConversationService(memory.NewSessionStore(), failingMessageStore{memory.NewMessageStore()})
	_, err := svc.AppendMessage(context.Background(), "S1", model.RoleUser, "hi", nil)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestListMessagesOrderedAndEmpty(t *testing.T) {
	svc := newTestConversations()
	ctx := context.Background()

	empty, err := svc.ListMessages(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}

	if _, err := svc.AppendMessage(ctx, "S1", model.RoleUser, "hello", []string{"F1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AppendMessage(ctx, "S2", model.RoleUser, "elsewhere", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AppendMessage(ctx, "S1", model.RoleAssistant, "hi there", nil); err != nil {
		t.Fatal(err)
	}

	messages, err := svc.ListMessages(ctx, "S1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "hello" || messages[0].Role != model.RoleUser {
		t.Fatalf("unexpected first message %+v", messages[0])
	}
	if len(messages[0].Files) != 1 || messages[0].Files[0] != "F1" {
		t.Fatalf("expected files [F1], got %v", messages[0].Files)
	}
	if messages[1].Content != "hi there" || messages[1].Role != model.RoleAssistant {
		t.Fatalf("unexpected second message %+v", messages[1])
	}
	if !messages[0].Timestamp.Before(messages[1].Timestamp) {
		t.Fatal("messages not in ascending timestamp order")
	}
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	svc := newTestConversations()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx)
	keep, _ := svc.CreateSession(ctx)
	if _, err := svc.AppendMessage(ctx, session.ID, model.RoleUser, "bye", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AppendMessage(ctx, keep.ID, model.RoleUser, "stay", nil); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	sessions, _ := svc.ListSessions(ctx)
	if len(sessions) != 1 || sessions[0].ID != keep.ID {
		t.Fatalf("unexpected sessions after delete: %+v", sessions)
	}
	messages, _ := svc.ListMessages(ctx, session.ID)
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
	kept, _ := svc.ListMessages(ctx, keep.ID)
	if len(kept) != 1 {
		t.Fatalf("expected other session untouched, got %d messages", len(kept))
	}

	if err := svc.DeleteSession(ctx, "does-not-exist"); err != nil {
		t.Fatalf("deleting unknown session should succeed, got %v", err)
	}
}

func TestHistoryCacheReadThroughAndInvalidation(t *testing.T) {
	history := newRecordingCache()
	svc := newTestConversations(WithHistoryCache(history))
	ctx := context.Background()

	if _, err := svc.AppendMessage(ctx, "S1", model.RoleUser, "one", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ListMessages(ctx, "S1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := history.entries["S1"]; !ok {
		t.Fatal("expected history to be cached after listing")
	}

	if _, err := svc.AppendMessage(ctx, "S1", model.RoleAssistant, "two", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := history.entries["S1"]; ok {
		t.Fatal("expected append to invalidate cached history")
	}

	messages, err := svc.ListMessages(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after invalidation, got %d", len(messages))
	}
}

func TestEventsPublishedAndFailuresIgnored(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestConversations(WithEventPublisher(publisher))
	ctx := context.Background()

	message, err := svc.AppendMessage(ctx, "S1", model.RoleUser, "hi", nil)
	if err != nil {
		t.Fatalf("publish failure must not fail the append: %v", err)
	}
	if err := svc.DeleteSession(ctx, "S1"); err != nil {
		t.Fatalf("publish failure must not fail the delete: %v", err)
	}

	if len(publisher.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(publisher.events))
	}
	created := publisher.events[0]
	if created.Type != model.EventMessageCreated || created.MessageID != message.ID || created.Role != model.RoleUser {
		t.Fatalf("unexpected created event %+v", created)
	}
	if publisher.events[1].Type != model.EventSessionDeleted || publisher.events[1].SessionID != "S1" {
		t.Fatalf("unexpected delete event %+v", publisher.events[1])
	}
}

func newRedisHistoryCache(t *testing.T) *cache.HistoryCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewHistoryCache(client, time.Minute)
}

func TestListMessagesIgnoresFillRacingWithDelete(t *testing.T) {
	messages := &interleavingMessages{MessageStore: memory.NewMessageStore()}
	svc := NewConversationService(memory.NewSessionStore(), messages,
		WithClock(steppingClock()),
		WithHistoryCache(newRedisHistoryCache(t)),
	)
	ctx := context.Background()

	if _, err := svc.AppendMessage(ctx, "S1", model.RoleUser, "hello", nil); err != nil {
		t.Fatal(err)
	}
	messages.onList = func() {
		if err := svc.DeleteSession(ctx, "S1"); err != nil {
			t.Errorf("DeleteSession failed: %v", err)
		}
	}

	if _, err := svc.ListMessages(ctx, "S1"); err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}

	after, err := svc.ListMessages(ctx, "S1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("list after delete returned %d messages", len(after))
	}
}

func TestListMessagesIgnoresFillRacingWithAppend(t *testing.T) {
	messages := &interleavingMessages{MessageStore: memory.NewMessageStore()}
	svc := NewConversationService(memory.NewSessionStore(), messages,
		WithClock(steppingClock()),
		WithHistoryCache(newRedisHistoryCache(t)),
	)
	ctx := context.Background()

	if _, err := svc.AppendMessage(ctx, "S1", model.RoleUser, "hello", nil); err != nil {
		t.Fatal(err)
	}
	messages.onList = func() {
		if _, err := svc.AppendMessage(ctx, "S1", model.RoleAssistant, "hi there", nil); err != nil {
			t.Errorf("AppendMessage failed: %v", err)
		}
	}

	first, err := svc.ListMessages(ctx, "S1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected the pre-append snapshot, got %d messages", len(first))
	}

	after, err := svc.ListMessages(ctx, "S1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(after) != 2 || after[1].Content != "hi there" {
		t.Fatalf("expected the assistant reply to be visible, got %+v", after)
	}

	// the next miss fills the cache at the current version and is served from it
	cached, err := svc.ListMessages(ctx, "S1")
	if err != nil || len(cached) != 2 {
		t.Fatalf("expected cached history of 2 messages, got %d err=%v", len(cached), err)
	}
}
