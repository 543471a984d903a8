package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage persists uploaded document payloads until the ingestion worker
// has consumed them.
type Storage interface {
	// Store writes the payload and returns the path handed to the worker
	Store(ctx context.Context, data []byte) (string, error)

	// StoreFromReader streams an upload to storage
	StoreFromReader(ctx context.Context, r io.Reader) (string, error)

	// Delete removes a stored payload
	Delete(ctx context.Context, path string) error
}

// LocalStorage implements Storage on a local directory shared with the worker.
type LocalStorage struct {
	dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

func (s *LocalStorage) Store(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, "doc-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return f.Name(), nil
}

func (s *LocalStorage) StoreFromReader(ctx context.Context, r io.Reader) (string, error) {
	f, err := os.CreateTemp(s.dir, "doc-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return f.Name(), nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	// Refuse paths outside our directory
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(s.dir)) {
		return fmt.Errorf("invalid file path: must be within storage directory")
	}
	return os.Remove(path)
}
