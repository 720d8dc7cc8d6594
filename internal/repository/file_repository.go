package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"gopherai-chat/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *model.File) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file record failed: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, fileID string) (*model.File, error) {
	var file model.File
	if err := r.db.WithContext(ctx).Where("id = ?", fileID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file record failed: %w", err)
	}
	return &file, nil
}

// AutoMigrate creates the chat tables when they do not exist.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Session{}, &model.Message{}, &model.File{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
