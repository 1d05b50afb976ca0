// Package memory keeps uploaded files in memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/utafrali/storefront/internal/storage"
)

type fileEntry struct {
	ContentType string
	Data        []byte
}

// Storage implements storage.Storage using an in-memory map.
type Storage struct {
	mu      sync.RWMutex
	files   map[string]fileEntry
	baseURL string
}

// New creates a new in-memory storage instance.
func New(baseURL string) *Storage {
	return &Storage{files: make(map[string]fileEntry), baseURL: baseURL}
}

func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	if !storage.ValidKey(input.Key) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidKey, input.Key)
	}
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	s.mu.Lock()
	s.files[input.Key] = fileEntry{ContentType: input.ContentType, Data: data}
	s.mu.Unlock()

	return &storage.UploadResult{Key: input.Key, URL: storage.JoinURL(s.baseURL, input.Key)}, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[key]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	delete(s.files, key)
	return nil
}

func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.files[key]; !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return storage.JoinURL(s.baseURL, key), nil
}

// Open returns the stored bytes for key.
func (s *Storage) Open(key string) (io.Reader, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(f.Data), f.ContentType, true
}
