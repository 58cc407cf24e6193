// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/astro-chat/astro-router/internal/config"
)

// FromConfig builds the aggregate source for the configured providers.
//
// Disabled providers are skipped. Cloud providers are skipped when they have
// no API key or the deployment is local-only. keep, when non-nil, filters the
// OpenRouter listing.
func FromConfig(cfg *config.Config, keep func(Entry) bool) *Multi {
	multi := NewMulti()
	for _, p := range cfg.Providers {
		if p.Disabled {
			continue
		}
		provider := Provider{Name: p.Name, Local: IsLocalProvider(p.Name)}
		if p.Local != nil {
			provider.Local = *p.Local
		}
		if !provider.Local {
			if cfg.LocalOnly() {
				log.Debug().Str("provider", p.Name).Msg("cloud provider skipped in local-only deployment")
				continue
			}
			if p.APIKey == "" {
				log.Debug().Str("provider", p.Name).Msg("cloud provider skipped, no API key")
				continue
			}
		}

		src := sourceFor(p, provider)
		if src == nil {
			log.Warn().Str("provider", p.Name).Str("kind", p.Kind).Msg("unknown provider kind")
			continue
		}
		if p.Name == ProviderOpenRouter && keep != nil {
			src = Filter{Source: src, Keep: keep}
		}
		multi.Add(src)
	}
	return multi
}

func sourceFor(p config.ProviderConfig, provider Provider) Source {
	httpCfg := HTTPConfig{
		Provider: provider,
		BaseURL:  p.BaseURL,
		APIKey:   p.APIKey,
		Timeout:  time.Duration(p.TimeoutSecs) * time.Second,
	}

	switch p.Kind {
	case config.KindWebLLM:
		if len(p.Models) > 0 {
			return NewStaticSource(provider, p.Models...)
		}
		src := NewWebLLMSource()
		src.Provider = provider
		return src

	case config.KindAstroLocal:
		if httpCfg.BaseURL == "" {
			httpCfg.BaseURL = DefaultAstroLocalURL
		}
		if httpCfg.APIKey == "" {
			httpCfg.APIKey = "sk-no-key-required"
		}
		fallback := AstroLocalModels
		if len(p.Models) > 0 {
			fallback = entries(p.Models)
		}
		return NewOpenAISource(httpCfg, fallback...)

	case config.KindOllama:
		return NewOllamaSource(httpCfg)

	case config.KindOpenAI:
		return NewOpenAISource(httpCfg, entries(p.Models)...)

	case config.KindStatic:
		return NewStaticSource(provider, p.Models...)
	}
	return nil
}

func entries(models []string) []Entry {
	out := make([]Entry, 0, len(models))
	for _, m := range models {
		out = append(out, Entry{ModelID: m})
	}
	return out
}
