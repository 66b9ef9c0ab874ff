package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// articlesDir is the sub-directory of the media base path holding article images
const articlesDir = "articles"

// localStorage implements ImageStore using the local filesystem
type localStorage struct {
	basePath string
}

// NewLocalStorage creates a new localStorage instance
func NewLocalStorage(basePath string) *localStorage {
	return &localStorage{
		basePath: basePath,
	}
}

// generatePath returns the full file path for key
func (s *localStorage) generatePath(key string) string {
	return filepath.Join(s.basePath, articlesDir, key)
}

// Put writes data under key, creating the directory when needed
func (s *localStorage) Put(ctx context.Context, key, mimeType string, data []byte) error {
	if !validKey(key) {
		return fmt.Errorf("invalid image key %q", key)
	}
	path := s.generatePath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// Get reads the image stored under key
func (s *localStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("invalid image key %q", key)
	}

	data, err := os.ReadFile(s.generatePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// Delete removes the image stored under key. Missing files are not an error.
func (s *localStorage) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid image key %q", key)
	}

	err := os.Remove(s.generatePath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
