package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"gopherai-chat/internal/model"
	"gopherai-chat/internal/observability"
)

// BlobStorage writes and reads upload bytes.
type BlobStorage interface {
	Save(name string, r io.Reader) (path string, size int64, err error)
	Open(path string) (io.ReadCloser, error)
}

type FileService struct {
	files FileStore
	blobs BlobStorage
	now   func() time.Time
}

type UploadInput struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

func NewFileService(files FileStore, blobs BlobStorage) *FileService {
	return &FileService{
		files: files,
		blobs: blobs,
		now:   time.Now,
	}
}

// Upload stores the content under a generated name and records its metadata.
func (s *FileService) Upload(ctx context.Context, input UploadInput) (*model.File, error) {
	if input.Content == nil {
		return nil, fmt.Errorf("%w: missing file content", ErrValidation)
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(input.Filename))
	path, size, err := s.blobs.Save(id+ext, input.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	file := &model.File{
		ID:          id,
		Filename:    input.Filename,
		Path:        path,
		ContentType: input.ContentType,
		Size:        size,
		UploadedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	observability.FromContext(ctx).Info("file uploaded",
		"file_id", file.ID,
		"filename", file.Filename,
		"size", file.Size,
	)
	return file, nil
}

func (s *FileService) Lookup(ctx context.Context, fileID string) (*model.File, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, ErrNotFound
	}
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if file == nil {
		return nil, ErrNotFound
	}
	return file, nil
}

// Open returns the metadata and a reader over the stored bytes. The caller closes the reader.
func (s *FileService) Open(ctx context.Context, fileID string) (*model.File, io.ReadCloser, error) {
	file, err := s.Lookup(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(file.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return file, rc, nil
}
