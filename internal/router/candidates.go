// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"github.com/astro-chat/astro-router/internal/detect"
)

// Model ids shared by several candidate lists. In-browser builds carry the
// MLC suffix, sidecar builds the GGUF quantization, Ollama builds a tag.
const (
	browserFallback = "Llama-3.2-1B-Instruct-q4f16_1-MLC"
	sidecarFallback = "Qwen2.5-Coder-3B-Instruct-q4_k_m"

	phiMini      = "Phi-3.5-mini-instruct-q4f16_1-MLC"
	phiVision    = "Phi-3.5-vision-instruct-q4f16_1-MLC"
	phiVisionQ3  = "Phi-3.5-vision-instruct-q3f16_1-MLC"
	llama3B      = "Llama-3.2-3B-Instruct-q4f16_1-MLC"
	qwen3BMLC    = "Qwen2.5-Coder-3B-Instruct-q4f16_1-MLC"
	qwen7BMLC    = "Qwen2.5-Coder-7B-Instruct-q4f16_1-MLC"
	qwen7B       = "Qwen2.5-Coder-7B-Instruct-q4_k_m"
	qwen32B      = "Qwen2.5-Coder-32B-Instruct-q4_k_m"
	codestral22B = "Codestral-22B-v0.1-q4_K_M"
	deepseekLite = "DeepSeek-Coder-V2-Lite-Instruct-q4_K_M"

	ollamaQwen32B   = "qwen2.5-coder:32b"
	ollamaQwen14B   = "qwen2.5-coder:14b"
	ollamaQwen7B    = "qwen2.5-coder:7b"
	ollamaQwen3B    = "qwen2.5-coder:3b"
	ollamaQwen1B    = "qwen2.5-coder:1.5b"
	ollamaLlama3B   = "llama3.2:3b"
	ollamaLlama1B   = "llama3.2:1b"
	ollamaLlava     = "llava:7b"
	ollamaCodestral = "codestral:22b"
)

// ============================================================================
// CANDIDATE TABLES
// ============================================================================

var visionCandidates = []string{
	phiVision,
	phiVisionQ3,
	qwen7B,
	ollamaLlava,
	phiMini,
	sidecarFallback,
	browserFallback,
}

var mobileCandidates = []string{
	phiMini,
	sidecarFallback,
	deepseekLite,
	ollamaQwen1B,
	ollamaLlama1B,
	browserFallback,
}

var lightCandidates = map[detect.Tier][]string{
	detect.TierEco: {
		phiMini,
		qwen3BMLC,
		sidecarFallback,
		ollamaQwen1B,
		ollamaLlama1B,
		browserFallback,
	},
	detect.TierStarter: {
		phiMini,
		qwen3BMLC,
		llama3B,
		sidecarFallback,
		ollamaQwen3B,
		ollamaLlama3B,
		browserFallback,
	},
	detect.TierPro: {
		qwen3BMLC,
		phiMini,
		qwen7B,
		sidecarFallback,
		ollamaQwen7B,
		ollamaQwen3B,
		llama3B,
		browserFallback,
	},
	detect.TierGodMode: {
		qwen7BMLC,
		qwen3BMLC,
		qwen7B,
		ollamaQwen7B,
		phiMini,
		sidecarFallback,
		llama3B,
		browserFallback,
	},
}

var defaultCandidates = map[detect.Tier][]string{
	detect.TierEco: {
		qwen3BMLC,
		phiMini,
		sidecarFallback,
		deepseekLite,
		ollamaQwen3B,
		ollamaLlama3B,
		llama3B,
		browserFallback,
	},
	detect.TierStarter: {
		qwen7BMLC,
		qwen7B,
		ollamaQwen7B,
		qwen3BMLC,
		sidecarFallback,
		phiMini,
		llama3B,
		browserFallback,
	},
	detect.TierPro: {
		codestral22B,
		ollamaQwen14B,
		ollamaCodestral,
		qwen7BMLC,
		qwen7B,
		ollamaQwen7B,
		qwen3BMLC,
		sidecarFallback,
		phiMini,
		browserFallback,
	},
	detect.TierGodMode: {
		qwen32B,
		ollamaQwen32B,
		codestral22B,
		ollamaCodestral,
		qwen7BMLC,
		qwen7B,
		ollamaQwen7B,
		qwen3BMLC,
		sidecarFallback,
		phiMini,
		browserFallback,
	},
}

// ============================================================================
// SELECTION
// ============================================================================

// SelectCandidates returns the ordered model preference list for a message.
//
// Precedence: image context selects the vision list, then a mobile device
// selects the mobile list, then a light task selects the tier's light list,
// otherwise the tier's default list. The result is never empty and ends
// with FallbackModels. Each call returns a fresh slice.
func SelectCandidates(q CandidateQuery) Selection {
	sel := Selection{
		Tier:    q.Tier,
		Content: ClassifyContent(q.ImageAttachments, q.Prompt),
		Weight:  ClassifyTaskWeight(q.Prompt),
	}

	var list []string
	switch {
	case sel.Content == ContentVision:
		sel.Kind, list = ListVision, visionCandidates
	case q.Mobile:
		sel.Kind, list = ListMobile, mobileCandidates
	case sel.Weight == TaskLight:
		sel.Kind, list = ListLight, tierList(lightCandidates, q.Tier)
	default:
		sel.Kind, list = ListDefault, tierList(defaultCandidates, q.Tier)
	}

	sel.Candidates = append(make([]string, 0, len(list)), list...)
	return sel
}

// tierList returns the tier's list, falling back to eco for an unknown tier.
func tierList(table map[detect.Tier][]string, t detect.Tier) []string {
	if list, ok := table[t]; ok {
		return list
	}
	return table[detect.TierEco]
}

// FallbackModels are the models every candidate list contains. The
// in-browser build is always last.
func FallbackModels() []string {
	return []string{sidecarFallback, browserFallback}
}
