// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
)

// StaticSource reports a fixed provider and model list.
type StaticSource struct {
	Provider Provider
	Entries  []Entry
}

// NewStaticSource builds a static source for provider from model ids.
func NewStaticSource(provider Provider, models ...string) *StaticSource {
	entries := make([]Entry, 0, len(models))
	for _, m := range models {
		entries = append(entries, Entry{Provider: provider.Name, ModelID: m})
	}
	return &StaticSource{Provider: provider, Entries: entries}
}

// Snapshot implements Source.
func (s *StaticSource) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	entries := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		e.Provider = s.Provider.Name
		entries = append(entries, e)
	}
	return Snapshot{Providers: []Provider{s.Provider}, Entries: entries}, nil
}

// WebLLMModels is the prebuilt in-browser WebGPU model list.
var WebLLMModels = []Entry{
	{ModelID: "Qwen2.5-Coder-7B-Instruct-q4f16_1-MLC", Label: "Qwen2.5 Coder 7B"},
	{ModelID: "Qwen2.5-Coder-3B-Instruct-q4f16_1-MLC", Label: "Qwen2.5 Coder 3B"},
	{ModelID: "Phi-3.5-mini-instruct-q4f16_1-MLC", Label: "Phi 3.5 Mini"},
	{ModelID: "Phi-3.5-vision-instruct-q4f16_1-MLC", Label: "Phi 3.5 Vision"},
	{ModelID: "Phi-3.5-vision-instruct-q3f16_1-MLC", Label: "Phi 3.5 Vision (q3)"},
	{ModelID: "Llama-3.2-3B-Instruct-q4f16_1-MLC", Label: "Llama 3.2 3B"},
	{ModelID: "Llama-3.2-1B-Instruct-q4f16_1-MLC", Label: "Llama 3.2 1B"},
}

// AstroLocalModels are the GGUF builds shipped with the native sidecar.
var AstroLocalModels = []Entry{
	{ModelID: "Qwen2.5-Coder-32B-Instruct-q4_k_m", Label: "Qwen2.5 Coder 32B (God Mode)"},
	{ModelID: "Codestral-22B-v0.1-q4_K_M", Label: "Codestral 22B (Pro)"},
	{ModelID: "Qwen2.5-Coder-7B-Instruct-q4_k_m", Label: "Qwen2.5 Coder 7B (Starter)"},
	{ModelID: "Qwen2.5-Coder-3B-Instruct-q4_k_m", Label: "Qwen2.5 Coder 3B (Eco)"},
	{ModelID: "DeepSeek-Coder-V2-Lite-Instruct-q4_K_M", Label: "DeepSeek Coder V2 Lite"},
}

// NewWebLLMSource returns the in-browser runtime catalog.
func NewWebLLMSource() *StaticSource {
	return &StaticSource{
		Provider: Provider{Name: ProviderWebLLM, Local: true},
		Entries:  append([]Entry(nil), WebLLMModels...),
	}
}
