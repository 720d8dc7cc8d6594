package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"gopherai-chat/internal/model"
)

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]model.Session)}
}

func (s *SessionStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *SessionStore) ListRecent(_ context.Context, limit int) ([]model.Session, error) {
	s.mu.RLock()
	out := make([]model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Session) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SessionStore) Touch(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		session = model.Session{ID: sessionID, Title: model.DefaultSessionTitle, CreatedAt: at}
	}
	session.UpdatedAt = at
	s.sessions[sessionID] = session
	return nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]model.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]model.Message)}
}

func (s *MessageStore) Create(_ context.Context, message *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.SessionID] = append(s.messages[message.SessionID], *message)
	return nil
}

func (s *MessageStore) ListBySessionID(_ context.Context, sessionID string, limit int) ([]model.Message, error) {
	s.mu.RLock()
	out := slices.Clone(s.messages[sessionID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MessageStore) DeleteBySessionID(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}

type FileStore struct {
	mu    sync.RWMutex
	files map[string]model.File
}

func NewFileStore() *FileStore {
	return &FileStore{files: make(map[string]model.File)}
}

func (s *FileStore) Create(_ context.Context, file *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.ID] = *file
	return nil
}

func (s *FileStore) GetByID(_ context.Context, fileID string) (*model.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[fileID]
	if !ok {
		return nil, nil
	}
	return &file, nil
}
