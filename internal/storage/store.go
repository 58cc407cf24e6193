// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides namespaced key/value persistence for astro routing state.
//
// Every value is stored as a Record holding a JSON payload. Three backends are
// available: SQLite (the default, ~/.astro/astro.db), a JSON file per namespace,
// and an in-memory store for tests and ephemeral sessions.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when no record exists for a namespace/id pair.
	ErrNotFound = errors.New("record not found")

	// ErrCorrupt is returned when a stored payload cannot be decoded.
	ErrCorrupt = errors.New("stored payload is corrupt")

	// ErrInvalidKey is returned for empty namespaces or ids.
	ErrInvalidKey = errors.New("namespace and id must not be empty")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")
)

// =============================================================================
// RECORD
// =============================================================================

// Record is a single stored value.
type Record struct {
	ID        string          `json:"id"`
	Namespace string          `json:"namespace"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Decode unmarshals the record payload into v. Decode failures wrap ErrCorrupt.
func (r Record) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("%w: %s/%s is empty", ErrCorrupt, r.Namespace, r.ID)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrCorrupt, r.Namespace, r.ID, err)
	}
	return nil
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence layer used by the router.
// Writes are immediately visible to subsequent reads in the same process.
type Store interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, namespace, id string) (Record, error)

	// Put creates or replaces a record. CreatedAt is preserved on update.
	Put(ctx context.Context, namespace, id string, payload any) (Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, namespace, id string) error

	// List returns every record of a namespace ordered by id.
	List(ctx context.Context, namespace string) ([]Record, error)

	// Close releases resources held by the store.
	Close() error
}

// =============================================================================
// PAYLOAD SANITIZING
// =============================================================================

// encodePayload marshals a payload and strips object keys that start with '$'
// or contain '.', at any depth.
func encodePayload(payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}
	clean, err := json.Marshal(sanitizeValue(generic))
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return clean, nil
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if !isSafeKey(k) {
				continue
			}
			out[k] = sanitizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeValue(val)
		}
		return out
	default:
		return v
	}
}

func isSafeKey(k string) bool {
	return !strings.HasPrefix(k, "$") && !strings.Contains(k, ".")
}

func validateKey(namespace, id string) error {
	if strings.TrimSpace(namespace) == "" || strings.TrimSpace(id) == "" {
		return ErrInvalidKey
	}
	return nil
}

// nowFunc returns now, or time.Now when now is nil.
func nowFunc(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
