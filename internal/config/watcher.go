// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// Watcher reloads the configuration when a watched config file changes.
// The directory is watched rather than the files so editors that replace the
// file on save are still seen.
type Watcher struct {
	dir      string
	names    map[string]bool
	debounce time.Duration
	load     func() (*Config, error)
	onChange func(*Config)

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending bool
	lastHit time.Time
}

// NewWatcher creates a watcher for config.toml and config.json in dir. load
// is called after a change and a successful result is passed to onChange. A
// failed reload is logged and the previous configuration stays in effect.
func NewWatcher(dir string, load func() (*Config, error), onChange func(*Config)) (*Watcher, error) {
	return newWatcher(dir, []string{"config.toml", "config.json"}, load, onChange)
}

// NewFileWatcher is NewWatcher for a single config file at path, such as
// one given with --config.
func NewFileWatcher(path string, load func() (*Config, error), onChange func(*Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return newWatcher(filepath.Dir(abs), []string{filepath.Base(abs)}, load, onChange)
}

func newWatcher(dir string, names []string, load func() (*Config, error), onChange func(*Config)) (*Watcher, error) {
	watched := make(map[string]bool, len(names))
	for _, n := range names {
		watched[n] = true
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		names:    watched,
		debounce: DefaultDebounce,
		load:     load,
		onChange: onChange,
		watcher:  fw,
	}, nil
}

// SetDebounce changes the settle delay. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	tick := w.debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.names[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = true
				w.lastHit = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", w.dir).Msg("config watcher error")

		case <-ticker.C:
			w.mu.Lock()
			due := w.pending && time.Since(w.lastHit) >= w.debounce
			if due {
				w.pending = false
			}
			w.mu.Unlock()
			if due {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err != nil {
		log.Warn().Err(err).Msg("config reload failed, keeping previous configuration")
		return
	}
	log.Info().Str("dir", w.dir).Msg("configuration reloaded")
	w.onChange(cfg)
}
