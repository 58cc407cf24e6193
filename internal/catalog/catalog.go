// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog reports which providers and models are available right now.
//
// Providers are partitioned into local runtimes (in-browser WebGPU, the native
// AstroLocal sidecar, LM Studio, Ollama, other OpenAI-compatible servers on this
// machine) and cloud providers that need an API key and network egress.
// A Snapshot is one fresh read of every configured source; callers must not
// cache it across routing decisions.
package catalog

import (
	"context"
)

// Well-known provider names.
const (
	ProviderWebLLM     = "WebLLM"
	ProviderAstroLocal = "AstroLocal"
	ProviderLMStudio   = "LMStudio"
	ProviderOpenAILike = "OpenAILike"
	ProviderOllama     = "Ollama"
	ProviderOpenAI     = "OpenAI"
	ProviderAnthropic  = "Anthropic"
	ProviderGoogle     = "Google"
	ProviderOpenRouter = "OpenRouter"
)

// =============================================================================
// TYPES
// =============================================================================

// Provider describes a model-serving backend.
type Provider struct {
	Name  string `json:"name"`
	Local bool   `json:"local"`
}

// Entry is one model a provider can serve.
type Entry struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model"`
	Label    string `json:"label,omitempty"`
}

// Snapshot is the set of available providers and their models at one moment.
// Order is significant: providers and entries keep the order the sources
// reported them in.
type Snapshot struct {
	Providers []Provider `json:"providers"`
	Entries   []Entry    `json:"entries"`
}

// Provider returns the named provider if it is available.
func (s Snapshot) Provider(name string) (Provider, bool) {
	for _, p := range s.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

// Partition returns the available providers that are local (or cloud), in order.
func (s Snapshot) Partition(local bool) []Provider {
	var out []Provider
	for _, p := range s.Providers {
		if p.Local == local {
			out = append(out, p)
		}
	}
	return out
}

// Models returns the model ids of a provider in catalog order.
func (s Snapshot) Models(provider string) []string {
	var out []string
	for _, e := range s.Entries {
		if e.Provider == provider {
			out = append(out, e.ModelID)
		}
	}
	return out
}

// Has reports whether provider currently serves model.
func (s Snapshot) Has(provider, model string) bool {
	for _, e := range s.Entries {
		if e.Provider == provider && e.ModelID == model {
			return true
		}
	}
	return false
}

// Merge appends other to s. Providers already present are not duplicated
// and neither are identical entries.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	out := Snapshot{
		Providers: append([]Provider(nil), s.Providers...),
		Entries:   append([]Entry(nil), s.Entries...),
	}
	for _, p := range other.Providers {
		if _, ok := out.Provider(p.Name); !ok {
			out.Providers = append(out.Providers, p)
		}
	}
	for _, e := range other.Entries {
		if !out.Has(e.Provider, e.ModelID) {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// =============================================================================
// SOURCE
// =============================================================================

// Source reads the current catalog.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Snapshot, error)

// Snapshot implements Source.
func (f SourceFunc) Snapshot(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}

// Fixed returns a Source that always reports snap.
func Fixed(snap Snapshot) Source {
	return SourceFunc(func(ctx context.Context) (Snapshot, error) {
		return snap, nil
	})
}

// IsLocalProvider reports whether a well-known provider name runs locally.
// Unknown names are treated as cloud.
func IsLocalProvider(name string) bool {
	switch name {
	case ProviderWebLLM, ProviderAstroLocal, ProviderLMStudio, ProviderOpenAILike, ProviderOllama:
		return true
	default:
		return false
	}
}
