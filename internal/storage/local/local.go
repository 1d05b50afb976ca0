// Package local stores uploaded files on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/utafrali/storefront/internal/storage"
)

// Storage writes files into a single directory and serves them under
// baseURL.
type Storage struct {
	dir     string
	baseURL string
}

// New creates the directory if needed and returns a Storage over it.
func New(dir, baseURL string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Storage{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the directory files are written to.
func (s *Storage) Dir() string { return s.dir }

// Upload writes to a temporary file first so readers never observe a
// partially written image.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	if !storage.ValidKey(input.Key) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidKey, input.Key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, input.Data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, input.Key)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &storage.UploadResult{Key: input.Key, URL: storage.JoinURL(s.baseURL, input.Key)}, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	if !storage.ValidKey(key) {
		return fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return err
}

func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	if !storage.ValidKey(key) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}
	if _, err := os.Stat(filepath.Join(s.dir, key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return "", err
	}
	return storage.JoinURL(s.baseURL, key), nil
}
