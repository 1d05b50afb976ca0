// Package storage defines where uploaded product images are kept.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// MaxImageSize is the largest accepted image upload (6 MiB).
const MaxImageSize = 6 << 20

// ErrNotFound is returned for unknown keys.
var ErrNotFound = errors.New("file not found")

// ErrInvalidKey is returned for keys that are empty or contain a path.
var ErrInvalidKey = errors.New("invalid storage key")

// Storage stores files by key.
type Storage interface {
	// Upload stores a file and returns its key and public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes a file by its key.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for the given key.
	GetURL(ctx context.Context, key string) (string, error)
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// ValidKey reports whether key is a single path element.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

// JoinURL joins a base URL and a key.
func JoinURL(baseURL, key string) string {
	if baseURL == "" {
		return "/" + key
	}
	if baseURL[len(baseURL)-1] == '/' {
		return baseURL + key
	}
	return baseURL + "/" + key
}
