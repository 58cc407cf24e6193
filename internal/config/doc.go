// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for astro-router.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ProviderConfig: One model catalog source (local runtime or cloud API)
//   - Watcher: fsnotify-based reloader for the config directory
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ASTRO_*)
//   - ~/.astro/config.toml
//   - ~/.astro/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if cfg.LocalOnly() {
//	    offline.SetOfflineMode(true)
//	}
package config
