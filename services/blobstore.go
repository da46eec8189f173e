package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrBlobNotFound is returned by BlobStore.Read when nothing is stored at the path.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists uploaded bytes under slash-separated relative paths.
type BlobStore interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// cleanBlobPath rejects absolute paths and parent traversal.
func cleanBlobPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	cleaned := path.Clean("/" + p)
	if p == "" || cleaned == "/" || strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// LocalBlobStore keeps blobs on disk below Base (UPLOAD_PATH).
type LocalBlobStore struct {
	Base string
}

func NewLocalBlobStore(base string) (*LocalBlobStore, error) {
	if base == "" {
		base = "./uploads"
	}
	if err := os.MkdirAll(base, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalBlobStore{Base: base}, nil
}

func (s *LocalBlobStore) resolve(p string) (string, error) {
	rel, err := cleanBlobPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Base, filepath.FromSlash(rel)), nil
}

// Write stores data atomically: a temp file in the target directory is renamed into place.
func (s *LocalBlobStore) Write(_ context.Context, p string, data []byte) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("move blob into place: %w", err)
	}
	return nil
}

func (s *LocalBlobStore) Read(_ context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

func (s *LocalBlobStore) Delete(_ context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryBlobStore is an in-process BlobStore for tests and local runs.
type MemoryBlobStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	writes int
	FailOn func(path string) error
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Write(_ context.Context, p string, data []byte) error {
	rel, err := cleanBlobPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn != nil {
		if err := s.FailOn(rel); err != nil {
			return err
		}
	}
	s.blobs[rel] = append([]byte(nil), data...)
	s.writes++
	return nil
}

func (s *MemoryBlobStore) Read(_ context.Context, p string) ([]byte, error) {
	rel, err := cleanBlobPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[rel]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryBlobStore) Delete(_ context.Context, p string) error {
	rel, err := cleanBlobPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, rel)
	return nil
}

// Paths lists stored paths in sorted order.
func (s *MemoryBlobStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.blobs))
	for p := range s.blobs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Writes counts successful writes, including ones later deleted.
func (s *MemoryBlobStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
