// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirPermission  = 0o700
	filePermission = 0o600
)

// FileBackend stores each record as a file named after its key inside dir.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a backend rooted at dir. The directory is created
// lazily on the first Save.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

/*
Load reads the record file.

Parameters:
  - context: context.Context (unused; file reads are not cancellable)
  - key: string

Returns:
  - string: File contents
  - error: ErrRecordNotFound or read failures
*/
func (backend *FileBackend) Load(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(backend.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrRecordNotFound
		}
		return "", fmt.Errorf("file_session_load_failed: %w", err)
	}
	return string(data), nil
}

/*
Save writes the record atomically.

The value is written to a temporary file in the same directory and renamed
over the target, so a crash never leaves a half-written token behind.
*/
func (backend *FileBackend) Save(_ context.Context, key, value string) error {
	if err := os.MkdirAll(backend.dir, dirPermission); err != nil {
		return fmt.Errorf("file_session_mkdir_failed: %w", err)
	}

	tmp, err := os.CreateTemp(backend.dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("file_session_save_failed: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.WriteString(value)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file_session_save_failed: %w", err)
	}

	if err := os.Chmod(tmpName, filePermission); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file_session_save_failed: %w", err)
	}

	if err := os.Rename(tmpName, backend.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file_session_save_failed: %w", err)
	}

	return nil
}

// Remove deletes the record file.
func (backend *FileBackend) Remove(_ context.Context, key string) error {
	if err := os.Remove(backend.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file_session_remove_failed: %w", err)
	}
	return nil
}

// Name returns "file".
func (backend *FileBackend) Name() string { return "file" }

func (backend *FileBackend) path(key string) string {
	return filepath.Join(backend.dir, key)
}
