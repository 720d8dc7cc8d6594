package storage

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalDiskSaveAndOpen(t *testing.T) {
	disk, err := NewLocalDisk(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewLocalDisk failed: %v", err)
	}

	path, size, err := disk.Save("abc.txt", strings.NewReader("hello bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if size != int64(len("hello bytes")) {
		t.Fatalf("unexpected size %d", size)
	}
	if filepath.Dir(path) != disk.Dir() {
		t.Fatalf("file stored outside upload dir: %s", path)
	}

	rc, err := disk.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "hello bytes" {
		t.Fatalf("content changed: %q", got)
	}
}

func TestLocalDiskRejectsCollisionsAndTraversal(t *testing.T) {
	disk, err := NewLocalDisk(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := disk.Save("same.bin", strings.NewReader("a")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := disk.Save("same.bin", strings.NewReader("b")); err == nil {
		t.Fatal("expected error when name already exists")
	}
	if _, _, err := disk.Save("../escape.bin", strings.NewReader("c")); err == nil {
		t.Fatal("expected error for path traversal")
	}
}
