package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalDisk keeps uploads as flat files under one directory.
type LocalDisk struct {
	dir string
}

func NewLocalDisk(dir string) (*LocalDisk, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir failed: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	return &LocalDisk{dir: abs}, nil
}

func (d *LocalDisk) Dir() string {
	return d.dir
}

// Save writes r to name inside the upload directory and returns the full path
// and byte count. A partially written file is removed.
func (d *LocalDisk) Save(name string, r io.Reader) (string, int64, error) {
	if name == "" || filepath.Base(name) != name {
		return "", 0, fmt.Errorf("invalid blob name %q", name)
	}
	path := filepath.Join(d.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file failed: %w", err)
	}
	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload file failed: %w", err)
	}
	return path, size, nil
}

func (d *LocalDisk) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload file failed: %w", err)
	}
	return f, nil
}
