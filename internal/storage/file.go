// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/astro-chat/astro-router/internal/util"
)

// FileStore keeps one JSON file per record under BaseDir/<namespace>/<id>.json.
type FileStore struct {
	// BaseDir is the root directory, e.g. ~/.astro/state
	BaseDir string

	// Now overrides the clock used for timestamps.
	Now func() time.Time

	mu sync.Mutex
}

// NewFileStore creates a file store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{BaseDir: baseDir}, nil
}

func (s *FileStore) filePath(namespace, id string) (string, error) {
	if err := validateKey(namespace, id); err != nil {
		return "", err
	}
	for _, part := range []string{namespace, id} {
		if part != filepath.Base(part) || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("%w: %q is not a valid path segment", ErrInvalidKey, part)
		}
	}
	return filepath.Join(s.BaseDir, namespace, id+".json"), nil
}

func (s *FileStore) read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return rec, nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, namespace, id string) (Record, error) {
	path, err := s.filePath(namespace, id)
	if err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(path)
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, namespace, id string, payload any) (Record, error) {
	path, err := s.filePath(namespace, id)
	if err != nil {
		return Record{}, err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowFunc(s.Now)
	rec := Record{ID: id, Namespace: namespace, Payload: data, CreatedAt: now, UpdatedAt: now}
	// A corrupt previous file is simply replaced.
	if prev, err := s.read(path); err == nil && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, err
	}
	if err := util.AtomicWriteFileWithDir(path, out, 0600, 0700); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, namespace, id string) error {
	path, err := s.filePath(namespace, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List implements Store. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context, namespace string) ([]Record, error) {
	dir := filepath.Join(s.BaseDir, namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, err
	}

	out := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := s.read(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
