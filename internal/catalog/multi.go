// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Multi aggregates sources. Sources are read concurrently but merged in the
// order they were given. A failing source is logged and left out, so its
// provider simply is not available.
type Multi struct {
	sources []Source
}

// NewMulti creates an aggregate source.
func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

// Add appends a source.
func (m *Multi) Add(s Source) {
	m.sources = append(m.sources, s)
}

// Len returns the number of sources.
func (m *Multi) Len() int {
	return len(m.sources)
}

// Snapshot implements Source. It only fails when ctx is done.
func (m *Multi) Snapshot(ctx context.Context) (Snapshot, error) {
	results := make([]Snapshot, len(m.sources))
	errs := make([]error, len(m.sources))

	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i], errs[i] = src.Snapshot(ctx)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	var out Snapshot
	for i := range m.sources {
		if errs[i] != nil {
			// Stopped local servers and blocked cloud providers are routine.
			var se *SourceError
			if errors.As(errs[i], &se) && (se.Type == ErrTypeNotRunning || se.Type == ErrTypeBlocked) {
				log.Debug().Err(errs[i]).Msg("catalog source unavailable")
			} else {
				log.Warn().Err(errs[i]).Msg("catalog source failed")
			}
			continue
		}
		out = out.Merge(results[i])
	}
	return out, nil
}

// Filter wraps a source and drops entries the predicate rejects.
type Filter struct {
	Source Source
	Keep   func(Entry) bool
}

// Snapshot implements Source.
func (f Filter) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := f.Source.Snapshot(ctx)
	if err != nil || f.Keep == nil {
		return snap, err
	}
	kept := snap.Entries[:0:0]
	for _, e := range snap.Entries {
		if f.Keep(e) {
			kept = append(kept, e)
		}
	}
	snap.Entries = kept
	return snap, nil
}
