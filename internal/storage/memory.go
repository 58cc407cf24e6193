// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	// Now overrides the clock used for timestamps.
	Now func() time.Time

	mu      sync.RWMutex
	records map[string]map[string]Record
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]Record)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, namespace, id string) (Record, error) {
	if err := validateKey(namespace, id); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, ErrClosed
	}
	rec, ok := s.records[namespace][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, namespace, id string, payload any) (Record, error) {
	if err := validateKey(namespace, id); err != nil {
		return Record{}, err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{}, ErrClosed
	}

	now := nowFunc(s.Now)
	ns := s.records[namespace]
	if ns == nil {
		ns = make(map[string]Record)
		s.records[namespace] = ns
	}
	rec := Record{ID: id, Namespace: namespace, Payload: data, CreatedAt: now, UpdatedAt: now}
	if prev, ok := ns[id]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	ns[id] = rec
	return rec, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, namespace, id string) error {
	if err := validateKey(namespace, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.records[namespace], id)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, namespace string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]Record, 0, len(s.records[namespace]))
	for _, rec := range s.records[namespace] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
