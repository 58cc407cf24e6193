// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guard enforces the OpenRouter guardrails: a fixed model allowlist
// and a per-key requests-per-minute limit.
//
// Both checks only apply to the OpenRouter provider. Every other provider
// passes untouched.
package guard

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/astro-chat/astro-router/internal/catalog"
)

// DefaultRPMLimit is the per-key limit when none is configured.
const DefaultRPMLimit = 20

// EnvRPMLimit overrides the per-key limit.
const EnvRPMLimit = "ASTRO_OPENROUTER_RPM_LIMIT"

// keySuffixLen is how much of an API key identifies its window.
const keySuffixLen = 16

// window is the span each key's request count covers.
const window = time.Minute

// =============================================================================
// ERRORS
// =============================================================================

// SelectionError is returned when a provider/model selection is refused.
type SelectionError struct {
	Provider   string
	Message    string
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// =============================================================================
// ALLOWLIST
// =============================================================================

// AllowedModel is an OpenRouter model the guard lets through.
type AllowedModel struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AllowedModels is the OpenRouter allowlist in display order.
var AllowedModels = []AllowedModel{
	{ID: "anthropic/claude-opus-4.6", Label: "Claude Opus 4.6"},
	{ID: "anthropic/claude-sonnet-4.5", Label: "Claude Sonnet 4.5"},
	{ID: "google/gemini-3.1-pro-preview", Label: "Gemini 3.1 Pro (Preview)"},
	{ID: "google/gemini-3-pro-preview", Label: "Gemini 3.0 Pro (Preview)"},
	{ID: "google/gemini-3-flash-preview", Label: "Gemini 3.0 Flash (Preview)"},
}

// IsAllowedModel reports whether model is on the OpenRouter allowlist.
func IsAllowedModel(model string) bool {
	for _, m := range AllowedModels {
		if m.ID == model {
			return true
		}
	}
	return false
}

// CheckModel refuses OpenRouter models that are not on the allowlist.
func CheckModel(provider, model string) error {
	if provider != catalog.ProviderOpenRouter || IsAllowedModel(model) {
		return nil
	}
	ids := make([]string, len(AllowedModels))
	for i, m := range AllowedModels {
		ids[i] = m.ID
	}
	return &SelectionError{
		Provider:   provider,
		Message:    fmt.Sprintf("model %q is blocked for OpenRouter. Allowed models: %s", model, strings.Join(ids, ", ")),
		StatusCode: http.StatusBadRequest,
	}
}

// KeepAllowed is a catalog.Filter predicate that drops blocked OpenRouter
// entries and keeps everything else.
func KeepAllowed(e catalog.Entry) bool {
	return CheckModel(e.Provider, e.ModelID) == nil
}

// =============================================================================
// RATE GUARD
// =============================================================================

// RateGuard limits OpenRouter requests per API key. Each key gets a fixed
// one-minute window opened by its first request; once the limit is spent the
// key is refused until the window closes.
type RateGuard struct {
	limit int

	// Now is the clock used for window accounting. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	windows map[string]*keyWindow
}

// keyWindow is one key's current window. The limiter never refills, so it
// holds exactly limit tokens for the window's lifetime.
type keyWindow struct {
	start   time.Time
	limiter *rate.Limiter
}

// NewRateGuard creates a guard allowing rpm requests per minute per key.
// A non-positive rpm uses DefaultRPMLimit.
func NewRateGuard(rpm int) *RateGuard {
	if rpm <= 0 {
		rpm = DefaultRPMLimit
	}
	return &RateGuard{
		limit:   rpm,
		windows: make(map[string]*keyWindow),
	}
}

// ParseRPMLimit parses a configured limit. Anything that is not a positive
// number yields DefaultRPMLimit; fractions are truncated.
func ParseRPMLimit(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 1 {
		return DefaultRPMLimit
	}
	return int(f)
}

// Limit returns the configured requests per minute.
func (g *RateGuard) Limit() int {
	return g.limit
}

// Allow counts one request against the key's window. Providers other than
// OpenRouter and empty keys are never limited.
func (g *RateGuard) Allow(provider, apiKey string) error {
	if provider != catalog.ProviderOpenRouter || apiKey == "" {
		return nil
	}

	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}

	if !g.limiter(keySuffix(apiKey), now).AllowN(now, 1) {
		return &SelectionError{
			Provider:   provider,
			Message:    fmt.Sprintf("Astro OpenRouter guardrail hit (%d requests/minute). Wait a minute and retry.", g.limit),
			StatusCode: http.StatusTooManyRequests,
			Retryable:  true,
		}
	}
	return nil
}

// Admit runs the allowlist check and then the rate check.
func (g *RateGuard) Admit(provider, model, apiKey string) error {
	if err := CheckModel(provider, model); err != nil {
		return err
	}
	return g.Allow(provider, apiKey)
}

// limiter returns the limiter of key's window at now, opening a new window
// when none is open. Expired windows of other keys are dropped on the way.
func (g *RateGuard) limiter(key string, now time.Time) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[key]
	if ok && now.Sub(w.start) < window {
		return w.limiter
	}
	for k, other := range g.windows {
		if now.Sub(other.start) >= window {
			delete(g.windows, k)
		}
	}
	w = &keyWindow{start: now, limiter: rate.NewLimiter(0, g.limit)}
	g.windows[key] = w
	return w.limiter
}

func keySuffix(apiKey string) string {
	if len(apiKey) <= keySuffixLen {
		return apiKey
	}
	return apiKey[len(apiKey)-keySuffixLen:]
}
