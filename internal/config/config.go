// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/astro-chat/astro-router/internal/offline"
	"github.com/astro-chat/astro-router/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete astro-router configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Routing    RoutingConfig    `toml:"routing" json:"routing"`
	Deployment DeploymentConfig `toml:"deployment" json:"deployment"`
	Hardware   HardwareConfig   `toml:"hardware" json:"hardware"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Log        LogConfig        `toml:"log" json:"log"`
	Guard      GuardConfig      `toml:"guard" json:"guard"`

	// Providers are catalog sources, read in this order.
	Providers []ProviderConfig `toml:"providers" json:"providers"`
}

// RoutingConfig controls the resolver.
type RoutingConfig struct {
	// Mode is the access mode used when no state is saved: "local" or "cloud".
	Mode string `toml:"mode" json:"mode"`
	// LocalPreference is the provider order for local mode.
	LocalPreference []string `toml:"local_preference" json:"local_preference"`
	// CloudPreference is the provider order for cloud mode.
	CloudPreference []string `toml:"cloud_preference" json:"cloud_preference"`
}

// DeploymentConfig selects the deployment mode.
type DeploymentConfig struct {
	// Mode is "standard" or "local-only". Local-only blocks every cloud provider.
	Mode string `toml:"mode" json:"mode"`
}

// HardwareConfig overrides probed hardware values. Zero means "probe".
type HardwareConfig struct {
	MemoryMB        int   `toml:"memory_mb" json:"memory_mb"`
	LogicalCores    int   `toml:"logical_cores" json:"logical_cores"`
	GPUAcceleration *bool `toml:"gpu_acceleration" json:"gpu_acceleration,omitempty"`
	// ProbeOnStart refreshes the cached profile when the server starts.
	ProbeOnStart bool `toml:"probe_on_start" json:"probe_on_start"`
}

// StorageConfig selects the state store.
type StorageConfig struct {
	// Driver is "sqlite", "file" or "memory".
	Driver string `toml:"driver" json:"driver"`
	// Path is the SQLite database file or the file store directory.
	// Empty uses ~/.astro/astro.db or ~/.astro/state.
	Path string `toml:"path" json:"path"`
}

// ServerConfig configures the loopback HTTP API.
type ServerConfig struct {
	Listen         string   `toml:"listen" json:"listen"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
	// RateLimit is requests per second per client IP.
	RateLimit    float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst    int     `toml:"rate_burst" json:"rate_burst"`
	MaxBodyBytes int64   `toml:"max_body_bytes" json:"max_body_bytes"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// Pretty forces console output even when stderr is not a terminal.
	Pretty bool `toml:"pretty" json:"pretty"`
}

// GuardConfig configures the OpenRouter guardrails.
type GuardConfig struct {
	OpenRouterRPMLimit int `toml:"openrouter_rpm_limit" json:"openrouter_rpm_limit"`
}

// Provider kinds.
const (
	KindWebLLM     = "webllm"
	KindAstroLocal = "astrolocal"
	KindOllama     = "ollama"
	KindOpenAI     = "openai"
	KindStatic     = "static"
)

// ProviderConfig describes one catalog source.
type ProviderConfig struct {
	Name    string `toml:"name" json:"name"`
	Kind    string `toml:"kind" json:"kind"`
	BaseURL string `toml:"base_url" json:"base_url,omitempty"`
	APIKey  string `toml:"api_key" json:"api_key,omitempty"`
	// Models is the fixed list for static providers and the fallback list
	// for OpenAI-compatible ones.
	Models []string `toml:"models" json:"models,omitempty"`
	// Local overrides the partition inferred from the provider name.
	Local    *bool `toml:"local" json:"local,omitempty"`
	Disabled bool  `toml:"disabled" json:"disabled,omitempty"`
	// TimeoutSecs bounds model listing requests (0 = default).
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs,omitempty"`
}

// Deployment modes.
const (
	DeploymentStandard  = "standard"
	DeploymentLocalOnly = "local-only"
)

// LocalOnly reports whether the local-only deployment mode is configured.
func (c *Config) LocalOnly() bool {
	return strings.EqualFold(c.Deployment.Mode, DeploymentLocalOnly)
}

// Provider returns the named provider config.
func (c *Config) Provider(name string) (*ProviderConfig, bool) {
	for i := range c.Providers {
		if strings.EqualFold(c.Providers[i].Name, name) {
			return &c.Providers[i], true
		}
	}
	return nil, false
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Routing: RoutingConfig{
			Mode:            "local",
			LocalPreference: []string{"AstroLocal", "WebLLM", "LMStudio", "OpenAILike", "Ollama"},
			CloudPreference: []string{"OpenAI", "Anthropic", "Google", "OpenRouter"},
		},
		Deployment: DeploymentConfig{Mode: DeploymentStandard},
		Storage:    StorageConfig{Driver: "sqlite"},
		Server: ServerConfig{
			Listen:         "127.0.0.1:8790",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173", "tauri://localhost"},
			RateLimit:      20,
			RateBurst:      40,
			MaxBodyBytes:   1 << 20,
		},
		Log:       LogConfig{Level: "info"},
		Guard:     GuardConfig{OpenRouterRPMLimit: 20},
		Providers: DefaultProviders(),
	}
}

// DefaultProviders returns the built-in catalog sources.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "WebLLM", Kind: KindWebLLM},
		{Name: "AstroLocal", Kind: KindAstroLocal, BaseURL: "http://127.0.0.1:8081/v1"},
		{Name: "LMStudio", Kind: KindOpenAI, BaseURL: "http://127.0.0.1:1234/v1"},
		{Name: "Ollama", Kind: KindOllama, BaseURL: "http://127.0.0.1:11434"},
		{Name: "OpenAI", Kind: KindOpenAI, BaseURL: "https://api.openai.com/v1",
			Models: []string{"gpt-4o", "gpt-4o-mini"}},
		{Name: "Anthropic", Kind: KindStatic,
			Models: []string{"claude-sonnet-4-5", "claude-opus-4-1", "claude-3-5-haiku-latest"}},
		{Name: "Google", Kind: KindStatic,
			Models: []string{"gemini-2.5-pro", "gemini-2.5-flash"}},
		{Name: "OpenRouter", Kind: KindOpenAI, BaseURL: "https://openrouter.ai/api/v1"},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory (~/.astro).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".astro"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the config file Load would read, or the TOML path
// when neither exists.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// StoragePath returns the configured store location or its default.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Driver == "file" {
		return filepath.Join(dir, "state"), nil
	}
	return filepath.Join(dir, "astro.db"), nil
}

// ensureSecurePermissions tightens config files to 0600; they hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.astro/config.toml, falling back to config.json and then to
// the built-in defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ActivePath()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads a specific file. Files ending in .json are read as
// JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not ensure secure config permissions")
	}
	// Decoding into a populated slice would merge file entries into the
	// default providers, so start from an empty list.
	defaults := cfg.Providers
	cfg.Providers = nil
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if !md.IsDefined("providers") {
		cfg.Providers = defaults
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		log.Warn().Strs("keys", keys).Str("path", path).Msg("unknown config keys ignored")
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not ensure secure config permissions")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	defaults := cfg.Providers
	cfg.Providers = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = defaults
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to ~/.astro/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# astro-router configuration\n")
	buf.WriteString("# Environment variables (ASTRO_*) override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var validKinds = map[string]bool{
	KindWebLLM: true, KindAstroLocal: true, KindOllama: true, KindOpenAI: true, KindStatic: true,
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Routing
	switch strings.ToLower(c.Routing.Mode) {
	case "local", "cloud":
	default:
		add("routing.mode", "invalid mode '%s', must be one of: local, cloud", c.Routing.Mode)
	}
	for i, name := range c.Routing.LocalPreference {
		if strings.TrimSpace(name) == "" {
			add(fmt.Sprintf("routing.local_preference[%d]", i), "provider name is empty")
		}
	}
	for i, name := range c.Routing.CloudPreference {
		if strings.TrimSpace(name) == "" {
			add(fmt.Sprintf("routing.cloud_preference[%d]", i), "provider name is empty")
		}
	}

	// Deployment
	switch strings.ToLower(c.Deployment.Mode) {
	case DeploymentStandard, DeploymentLocalOnly:
	default:
		add("deployment.mode", "invalid mode '%s', must be one of: standard, local-only", c.Deployment.Mode)
	}
	if c.LocalOnly() && strings.EqualFold(c.Routing.Mode, "cloud") {
		add("routing.mode", "cloud mode is not available in a local-only deployment")
	}

	// Hardware
	if c.Hardware.MemoryMB < 0 {
		add("hardware.memory_mb", "must not be negative")
	}
	if c.Hardware.LogicalCores < 0 {
		add("hardware.logical_cores", "must not be negative")
	}

	// Storage
	switch c.Storage.Driver {
	case "sqlite", "file", "memory":
	default:
		add("storage.driver", "invalid driver '%s', must be one of: sqlite, file, memory", c.Storage.Driver)
	}

	// Server
	if host, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		add("server.listen", "invalid address '%s': %v", c.Server.Listen, err)
	} else if !offline.IsLocalhost(host) {
		add("server.listen", "must be a loopback address, got '%s'", host)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes", "must be positive")
	}

	// Log
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", "invalid level '%s'", c.Log.Level)
	}

	// Guard
	if c.Guard.OpenRouterRPMLimit < 0 {
		add("guard.openrouter_rpm_limit", "must not be negative")
	}

	// Providers
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			add(field+".name", "name is required")
		} else if seen[strings.ToLower(p.Name)] {
			add(field+".name", "duplicate provider '%s'", p.Name)
		}
		seen[strings.ToLower(p.Name)] = true

		if !validKinds[p.Kind] {
			add(field+".kind", "invalid kind '%s', must be one of: webllm, astrolocal, ollama, openai, static", p.Kind)
		}
		if p.BaseURL != "" {
			if u, err := url.Parse(p.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				add(field+".base_url", "invalid URL '%s'", p.BaseURL)
			}
		} else if p.Kind == KindOllama || p.Kind == KindOpenAI {
			add(field+".base_url", "required for kind '%s'", p.Kind)
		}
		if p.Kind == KindStatic && len(p.Models) == 0 {
			add(field+".models", "static providers need at least one model")
		}
		if p.TimeoutSecs < 0 {
			add(field+".timeout_secs", "must not be negative")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults and normalizes case.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Routing.Mode == "" {
		c.Routing.Mode = defaults.Routing.Mode
	}
	c.Routing.Mode = strings.ToLower(c.Routing.Mode)
	if c.Routing.LocalPreference == nil {
		c.Routing.LocalPreference = defaults.Routing.LocalPreference
	}
	if c.Routing.CloudPreference == nil {
		c.Routing.CloudPreference = defaults.Routing.CloudPreference
	}
	if c.Deployment.Mode == "" {
		c.Deployment.Mode = defaults.Deployment.Mode
	}
	c.Deployment.Mode = strings.ToLower(c.Deployment.Mode)
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaults.Server.Listen
	}
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = defaults.Server.RateBurst
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Guard.OpenRouterRPMLimit == 0 {
		c.Guard.OpenRouterRPMLimit = defaults.Guard.OpenRouterRPMLimit
	}
	for i := range c.Providers {
		c.Providers[i].Kind = strings.ToLower(c.Providers[i].Kind)
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// apiKeyEnv maps provider names to the variables holding their API keys.
var apiKeyEnv = []struct {
	provider string
	env      string
}{
	{"OpenAI", "ASTRO_OPENAI_API_KEY"},
	{"Anthropic", "ASTRO_ANTHROPIC_API_KEY"},
	{"Google", "ASTRO_GOOGLE_API_KEY"},
	{"OpenRouter", "ASTRO_OPENROUTER_API_KEY"},
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - ASTRO_MODE: routing.mode
//   - ASTRO_DEPLOYMENT: deployment.mode
//   - ASTRO_LOCAL_PREFERENCE / ASTRO_CLOUD_PREFERENCE: comma-separated provider orders
//   - ASTRO_OPENAI_API_KEY, ASTRO_ANTHROPIC_API_KEY, ASTRO_GOOGLE_API_KEY,
//     ASTRO_OPENROUTER_API_KEY: provider API keys
//   - ASTRO_OPENROUTER_RPM_LIMIT: guard.openrouter_rpm_limit
//   - ASTRO_DB_PATH: storage.path
//   - ASTRO_LISTEN: server.listen
//   - ASTRO_LOG_LEVEL: log.level
func (c *Config) ApplyEnvOverrides() {
	if mode := os.Getenv("ASTRO_MODE"); mode != "" {
		c.Routing.Mode = mode
	}
	if deployment := os.Getenv("ASTRO_DEPLOYMENT"); deployment != "" {
		c.Deployment.Mode = deployment
	}
	if pref := os.Getenv("ASTRO_LOCAL_PREFERENCE"); pref != "" {
		c.Routing.LocalPreference = splitList(pref)
	}
	if pref := os.Getenv("ASTRO_CLOUD_PREFERENCE"); pref != "" {
		c.Routing.CloudPreference = splitList(pref)
	}

	for _, k := range apiKeyEnv {
		key := os.Getenv(k.env)
		if key == "" {
			continue
		}
		if p, ok := c.Provider(k.provider); ok {
			p.APIKey = key
			continue
		}
		for _, d := range DefaultProviders() {
			if d.Name == k.provider {
				d.APIKey = key
				c.Providers = append(c.Providers, d)
			}
		}
	}

	// Anything that is not a positive number keeps the default.
	if limit := os.Getenv("ASTRO_OPENROUTER_RPM_LIMIT"); limit != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(limit), 64); err == nil && f >= 1 {
			c.Guard.OpenRouterRPMLimit = int(f)
		}
	}
	if path := os.Getenv("ASTRO_DB_PATH"); path != "" {
		c.Storage.Path = path
	}
	if listen := os.Getenv("ASTRO_LISTEN"); listen != "" {
		c.Server.Listen = listen
	}
	if level := os.Getenv("ASTRO_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "routing.mode").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "log.level").
// String values are converted to the field's type; lists are comma-separated.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(splitList(strVal)))
				return nil
			}
		case reflect.Ptr:
			if field.Type().Elem().Kind() == reflect.Bool {
				lower := strings.ToLower(strVal)
				b := lower == "1" || lower == "true" || lower == "yes"
				field.Set(reflect.ValueOf(&b))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns every scalar configuration key in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"routing.mode",
		"routing.local_preference",
		"routing.cloud_preference",
		"deployment.mode",
		"hardware.memory_mb",
		"hardware.logical_cores",
		"hardware.gpu_acceleration",
		"hardware.probe_on_start",
		"storage.driver",
		"storage.path",
		"server.listen",
		"server.allowed_origins",
		"server.rate_limit",
		"server.rate_burst",
		"server.max_body_bytes",
		"log.level",
		"log.pretty",
		"guard.openrouter_rpm_limit",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Routing.LocalPreference = append([]string(nil), c.Routing.LocalPreference...)
	clone.Routing.CloudPreference = append([]string(nil), c.Routing.CloudPreference...)
	clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	if c.Hardware.GPUAcceleration != nil {
		gpu := *c.Hardware.GPUAcceleration
		clone.Hardware.GPUAcceleration = &gpu
	}
	clone.Providers = make([]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		p.Models = append([]string(nil), p.Models...)
		if p.Local != nil {
			local := *p.Local
			p.Local = &local
		}
		clone.Providers[i] = p
	}
	return &clone
}

// Redacted returns a copy with API keys masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for i := range safe.Providers {
		if safe.Providers[i].APIKey != "" {
			safe.Providers[i].APIKey = "[REDACTED]"
		}
	}
	return safe
}

// String returns the configuration as JSON with API keys redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
