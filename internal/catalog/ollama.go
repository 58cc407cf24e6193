// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
)

// DefaultOllamaURL uses an explicit IPv4 address to avoid IPv6 resolution issues on Windows.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// ollamaTagsResponse is the body of GET /api/tags.
type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Size    int64  `json:"size"`
	Details struct {
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

// OllamaSource lists the models pulled into a local Ollama server.
type OllamaSource struct {
	cfg HTTPConfig
}

// NewOllamaSource creates an Ollama source. An empty base URL uses DefaultOllamaURL.
func NewOllamaSource(cfg HTTPConfig) *OllamaSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Provider.Name == "" {
		cfg.Provider = Provider{Name: ProviderOllama, Local: true}
	}
	cfg.fillDefaults()
	return &OllamaSource{cfg: cfg}
}

// Snapshot implements Source.
func (s *OllamaSource) Snapshot(ctx context.Context) (Snapshot, error) {
	var result ollamaTagsResponse
	if err := s.cfg.getJSON(ctx, "/api/tags", &result); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Providers: []Provider{s.cfg.Provider}}
	for _, m := range result.Models {
		id := m.Name
		if id == "" {
			id = m.Model
		}
		if id == "" {
			continue
		}
		label := ""
		if m.Details.ParameterSize != "" {
			label = m.Details.ParameterSize
			if m.Details.QuantizationLevel != "" {
				label += " " + m.Details.QuantizationLevel
			}
		}
		snap.Entries = append(snap.Entries, Entry{Provider: s.cfg.Provider.Name, ModelID: id, Label: label})
	}
	return snap, nil
}
