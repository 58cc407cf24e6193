// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.LocalOnly())
	assert.Equal(t, "local", cfg.Routing.Mode)
	assert.Equal(t, "AstroLocal", cfg.Routing.LocalPreference[0])

	p, ok := cfg.Provider("ollama")
	require.True(t, ok)
	assert.Equal(t, KindOllama, p.Kind)
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFromPath_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[routing]
mode = "cloud"
cloud_preference = ["Anthropic", "OpenAI"]

[log]
level = "debug"

[[providers]]
name = "Ollama"
kind = "ollama"
base_url = "http://127.0.0.1:11500"

[[providers]]
name = "Anthropic"
kind = "static"
api_key = "sk-ant-test"
models = ["claude-sonnet-4-5"]
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "cloud", cfg.Routing.Mode)
	assert.Equal(t, []string{"Anthropic", "OpenAI"}, cfg.Routing.CloudPreference)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset sections keep defaults.
	assert.Equal(t, "127.0.0.1:8790", cfg.Server.Listen)

	// The provider list replaces the defaults rather than merging into them.
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "http://127.0.0.1:11500", cfg.Providers[0].BaseURL)
	assert.Empty(t, cfg.Providers[0].Models)
	assert.Equal(t, "sk-ant-test", cfg.Providers[1].APIKey)
}

func TestLoadFromPath_TOMLWithoutProviders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[deployment]\nmode = \"local-only\"\n")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.True(t, cfg.LocalOnly())
	assert.Len(t, cfg.Providers, len(DefaultProviders()))
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"storage": {"driver": "memory"}, "guard": {"openrouter_rpm_limit": 5}}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Guard.OpenRouterRPMLimit)
	assert.Len(t, cfg.Providers, len(DefaultProviders()))
}

func TestLoadFromPath_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	writeFile(t, bad, "[routing\nmode=")
	_, err := LoadFromPath(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	writeFile(t, invalid, "[routing]\nmode = \"hybrid\"\n")
	_, err = LoadFromPath(invalid)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs), "got %v", err)
	assert.Equal(t, "routing.mode", verrs[0].Field)
}

func TestLoad_FromHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Listen, cfg.Server.Listen)

	writeFile(t, filepath.Join(home, ".astro", "config.json"), `{"log": {"level": "warn"}}`)
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	// TOML wins over JSON.
	writeFile(t, filepath.Join(home, ".astro", "config.toml"), "[log]\nlevel = \"error\"\n")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)

	path, err := ActivePath()
	require.NoError(t, err)
	assert.Equal(t, "config.toml", filepath.Base(path))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad deployment", func(c *Config) { c.Deployment.Mode = "airgap" }, "deployment.mode"},
		{"cloud in local-only", func(c *Config) { c.Deployment.Mode = DeploymentLocalOnly; c.Routing.Mode = "cloud" }, "routing.mode"},
		{"empty preference", func(c *Config) { c.Routing.LocalPreference = []string{"WebLLM", " "} }, "routing.local_preference[1]"},
		{"negative memory", func(c *Config) { c.Hardware.MemoryMB = -1 }, "hardware.memory_mb"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"public listen", func(c *Config) { c.Server.Listen = "0.0.0.0:8790" }, "server.listen"},
		{"listen without port", func(c *Config) { c.Server.Listen = "localhost" }, "server.listen"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative rpm", func(c *Config) { c.Guard.OpenRouterRPMLimit = -2 }, "guard.openrouter_rpm_limit"},
		{"duplicate provider", func(c *Config) { c.Providers = append(c.Providers, ProviderConfig{Name: "webllm", Kind: KindWebLLM}) }, "providers[8].name"},
		{"bad kind", func(c *Config) { c.Providers[0].Kind = "grpc" }, "providers[0].kind"},
		{"missing url", func(c *Config) { c.Providers[3].BaseURL = "" }, "providers[3].base_url"},
		{"bad url", func(c *Config) { c.Providers[3].BaseURL = "ftp://host" }, "providers[3].base_url"},
		{"static without models", func(c *Config) { c.Providers[5].Models = nil }, "providers[5].models"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
			var fields []string
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateErrors_Error(t *testing.T) {
	assert.Equal(t, "no validation errors", ValidateErrors{}.Error())
	errs := ValidateErrors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}
	assert.Equal(t, "a: x; b: y", errs.Error())
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ASTRO_MODE", "cloud")
	t.Setenv("ASTRO_DEPLOYMENT", "standard")
	t.Setenv("ASTRO_LOCAL_PREFERENCE", "Ollama, WebLLM,,")
	t.Setenv("ASTRO_CLOUD_PREFERENCE", "Anthropic")
	t.Setenv("ASTRO_OPENAI_API_KEY", "sk-openai")
	t.Setenv("ASTRO_OPENROUTER_API_KEY", "sk-or")
	t.Setenv("ASTRO_OPENROUTER_RPM_LIMIT", "7")
	t.Setenv("ASTRO_DB_PATH", "/tmp/astro-test.db")
	t.Setenv("ASTRO_LISTEN", "127.0.0.1:9999")
	t.Setenv("ASTRO_LOG_LEVEL", "trace")

	cfg := Default()
	cfg.Providers = cfg.Providers[:4] // no cloud providers configured
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "cloud", cfg.Routing.Mode)
	assert.Equal(t, []string{"Ollama", "WebLLM"}, cfg.Routing.LocalPreference)
	assert.Equal(t, []string{"Anthropic"}, cfg.Routing.CloudPreference)
	assert.Equal(t, 7, cfg.Guard.OpenRouterRPMLimit)
	assert.Equal(t, "/tmp/astro-test.db", cfg.Storage.Path)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
	assert.Equal(t, "trace", cfg.Log.Level)

	// Keys for unconfigured providers add the default entry.
	p, ok := cfg.Provider("OpenAI")
	require.True(t, ok)
	assert.Equal(t, "sk-openai", p.APIKey)
	p, ok = cfg.Provider("OpenRouter")
	require.True(t, ok)
	assert.Equal(t, "sk-or", p.APIKey)
	_, ok = cfg.Provider("Anthropic")
	assert.False(t, ok)
}

func TestApplyEnvOverrides_InvalidRPMKeepsValue(t *testing.T) {
	t.Setenv("ASTRO_OPENROUTER_RPM_LIMIT", "lots")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 20, cfg.Guard.OpenRouterRPMLimit)
}

// =============================================================================
// GET / SET
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("routing.mode")
	require.NoError(t, err)
	assert.Equal(t, "local", v)

	require.NoError(t, cfg.Set("log.level", "debug"))
	assert.Equal(t, "debug", cfg.Log.Level)

	require.NoError(t, cfg.Set("hardware.memory_mb", "16384"))
	assert.Equal(t, 16384, cfg.Hardware.MemoryMB)

	require.NoError(t, cfg.Set("server.rate_limit", "2.5"))
	assert.Equal(t, 2.5, cfg.Server.RateLimit)

	require.NoError(t, cfg.Set("hardware.probe_on_start", "yes"))
	assert.True(t, cfg.Hardware.ProbeOnStart)

	require.NoError(t, cfg.Set("hardware.gpu_acceleration", "true"))
	require.NotNil(t, cfg.Hardware.GPUAcceleration)
	assert.True(t, *cfg.Hardware.GPUAcceleration)

	require.NoError(t, cfg.Set("routing.local_preference", "Ollama,WebLLM"))
	assert.Equal(t, []string{"Ollama", "WebLLM"}, cfg.Routing.LocalPreference)

	assert.Error(t, cfg.Set("hardware.memory_mb", "lots"))
	_, err = cfg.Get("routing.nope")
	assert.Error(t, err)
	_, err = cfg.Get("log.level.deeper")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)

	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

// =============================================================================
// SAVE / REDACTION
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Providers[4].APIKey = "sk-secret"

	require.NoError(t, SaveTOML(cfg, path))
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", loaded.Log.Level)
	assert.Equal(t, "sk-secret", loaded.Providers[4].APIKey)
	assert.Len(t, loaded.Providers, len(cfg.Providers))
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Storage.Driver = "file"
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "file", loaded.Storage.Driver)
}

func TestString_RedactsKeys(t *testing.T) {
	cfg := Default()
	cfg.Providers[7].APIKey = "sk-or-v1-very-secret"

	out := cfg.String()
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "[REDACTED]")
	// The original is untouched.
	assert.Equal(t, "sk-or-v1-very-secret", cfg.Providers[7].APIKey)
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Routing.LocalPreference[0] = "changed"
	clone.Providers[4].Models[0] = "changed"
	assert.Equal(t, "AstroLocal", cfg.Routing.LocalPreference[0])
	assert.Equal(t, "gpt-4o", cfg.Providers[4].Models[0])
}

func TestStoragePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/var/lib/astro.db"
	p, err := cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/astro.db", p)

	cfg.Storage.Path = ""
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, "astro.db"))

	cfg.Storage.Driver = "file"
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "state", filepath.Base(p))
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	changed := make(chan *Config, 4)
	w, err := NewWatcher(dir, func() (*Config, error) { return LoadFromPath(path) }, func(c *Config) { changed <- c })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files are ignored.
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")
	writeFile(t, path, "[log]\nlevel = \"debug\"\n")

	select {
	case cfg := <-changed:
		assert.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFileWatcher_OnlyWatchesNamedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "astro-staging.toml")
	writeFile(t, path, "[log]\nlevel = \"info\"\n")

	changed := make(chan *Config, 4)
	w, err := NewFileWatcher(path, func() (*Config, error) { return LoadFromPath(path) }, func(c *Config) { changed <- c })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// The default file name is not watched for a named file.
	writeFile(t, filepath.Join(dir, "config.toml"), "[log]\nlevel = \"warn\"\n")
	select {
	case <-changed:
		t.Fatal("reload triggered by an unwatched file")
	case <-time.After(300 * time.Millisecond):
	}

	writeFile(t, path, "[log]\nlevel = \"debug\"\n")
	select {
	case cfg := <-changed:
		assert.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}
