package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gopherai-chat/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]model.Session, error) {
	var sessions []model.Session
	q := r.db.WithContext(ctx).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	for i := range sessions {
		normalizeSession(&sessions[i])
	}
	return sessions, nil
}

// Touch is a single INSERT ... ON DUPLICATE KEY UPDATE updated_at.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	session := model.Session{
		ID:        sessionID,
		Title:     model.DefaultSessionTitle,
		CreatedAt: at,
		UpdatedAt: at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": at}),
	}).Create(&session).Error
	if err != nil {
		return fmt.Errorf("touch session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", sessionID).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

// normalizeSession backfills rows written before title and created_at existed.
func normalizeSession(s *model.Session) {
	if s.Title == "" {
		s.Title = model.DefaultSessionTitle
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	if s.UpdatedAt.Before(s.CreatedAt) {
		s.UpdatedAt = s.CreatedAt
	}
}
