// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
)

// Default endpoints of OpenAI-compatible servers.
const (
	DefaultAstroLocalURL = "http://127.0.0.1:8081/v1"
	DefaultLMStudioURL   = "http://127.0.0.1:1234/v1"
	DefaultOpenAIURL     = "https://api.openai.com/v1"
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
)

// openAIModelsResponse is the body of GET /models.
type openAIModelsResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// OpenAISource lists models from an OpenAI-compatible /models endpoint.
// Used for the AstroLocal sidecar, LM Studio, generic OpenAI-like servers,
// OpenAI itself and OpenRouter.
type OpenAISource struct {
	cfg HTTPConfig

	// Fallback models are reported when the server is up but lists nothing.
	Fallback []Entry
}

// NewOpenAISource creates a source for an OpenAI-compatible server.
func NewOpenAISource(cfg HTTPConfig, fallback ...Entry) *OpenAISource {
	cfg.fillDefaults()
	return &OpenAISource{cfg: cfg, Fallback: fallback}
}

// NewAstroLocalSource returns a source for the native sidecar with its
// shipped models as the fallback list.
func NewAstroLocalSource(baseURL string) *OpenAISource {
	if baseURL == "" {
		baseURL = DefaultAstroLocalURL
	}
	return NewOpenAISource(HTTPConfig{
		Provider: Provider{Name: ProviderAstroLocal, Local: true},
		BaseURL:  baseURL,
		APIKey:   "sk-no-key-required",
	}, AstroLocalModels...)
}

// Snapshot implements Source.
func (s *OpenAISource) Snapshot(ctx context.Context) (Snapshot, error) {
	var result openAIModelsResponse
	if err := s.cfg.getJSON(ctx, "/models", &result); err != nil {
		return Snapshot{}, err
	}

	name := s.cfg.Provider.Name
	snap := Snapshot{Providers: []Provider{s.cfg.Provider}}
	for _, m := range result.Data {
		if m.ID == "" {
			continue
		}
		snap.Entries = append(snap.Entries, Entry{Provider: name, ModelID: m.ID, Label: m.Name})
	}
	if len(snap.Entries) == 0 {
		for _, e := range s.Fallback {
			e.Provider = name
			snap.Entries = append(snap.Entries, e)
		}
	}
	return snap, nil
}
