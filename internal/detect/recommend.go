// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// paramCountRegex matches parameter counts such as "7b", "1.5b" or "32B".
var paramCountRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)b(?:[^a-z]|$)`)

// Recommendation is the suggested native model set for a tier.
type Recommendation struct {
	Tier           Tier     `json:"tier"`
	Model          string   `json:"model"`
	ModelSize      string   `json:"modelSize"`
	ModelPower     string   `json:"modelPower"`
	ModelHints     []string `json:"modelHints"`
	SecondaryModel string   `json:"secondaryModel"`
	SecondaryHints []string `json:"secondaryHints"`
	VisionModel    string   `json:"visionModel"`
	VisionHints    []string `json:"visionHints"`
}

const visionModel = "Phi-3.5-vision-instruct-q4f16_1-MLC"

var visionHints = []string{"phi-3.5-vision", "phi 3.5 vision", "vision"}

var recommendations = map[Tier]Recommendation{
	TierGodMode: {
		Model:          "Qwen2.5-Coder-32B-Instruct-q4_K_M",
		ModelSize:      "18.2 GB",
		ModelPower:     "Dominates coding benchmarks; 92% on HumanEval.",
		ModelHints:     []string{"qwen2.5-coder-32b", "qwen2.5", "coder", "32b"},
		SecondaryModel: "Codestral-22B-v0.1-q4_K_M",
		SecondaryHints: []string{"codestral-22b", "codestral", "22b"},
	},
	TierPro: {
		Model:          "Codestral-22B-v0.1-q4_K_M",
		ModelSize:      "13.4 GB",
		ModelPower:     "Low latency and 80+ language support.",
		ModelHints:     []string{"codestral-22b", "codestral", "22b"},
		SecondaryModel: "Qwen2.5-Coder-7B-Instruct-q4_K_M",
		SecondaryHints: []string{"qwen2.5-coder-7b", "qwen2.5", "coder", "7b"},
	},
	TierStarter: {
		Model:          "Qwen2.5-Coder-7B-Instruct-q4_K_M",
		ModelSize:      "4.8 GB",
		ModelPower:     "The best pound-for-pound model for standard laptops.",
		ModelHints:     []string{"qwen2.5-coder-7b", "qwen2.5", "coder", "7b"},
		SecondaryModel: "DeepSeek-Coder-V2-Lite-Instruct-q4_K_M",
		SecondaryHints: []string{"deepseek-coder-v2-lite", "deepseek", "lite", "moe"},
	},
	TierEco: {
		Model:          "DeepSeek-Coder-V2-Lite-Instruct-q4_K_M",
		ModelSize:      "2.5 GB",
		ModelPower:     "Efficient MoE architecture for light hardware.",
		ModelHints:     []string{"deepseek-coder-v2-lite", "deepseek", "lite", "moe"},
		SecondaryModel: "Llama-3.2-1B-Instruct-q4f16_1-MLC",
		SecondaryHints: []string{"llama-3.2-1b", "llama 3.2 1b", "1b"},
	},
}

// Recommend returns the recommended model set for a tier.
// The returned hint slices are copies.
func Recommend(t Tier) Recommendation {
	r, ok := recommendations[t]
	if !ok {
		r = recommendations[TierEco]
		t = TierEco
	}
	r.Tier = t
	r.ModelHints = append([]string(nil), r.ModelHints...)
	r.SecondaryHints = append([]string(nil), r.SecondaryHints...)
	r.VisionModel = visionModel
	r.VisionHints = append([]string(nil), visionHints...)
	return r
}

// MatchesHints reports whether a model id contains any of the hints,
// compared case-insensitively.
func MatchesHints(modelID string, hints []string) bool {
	id := strings.ToLower(modelID)
	for _, h := range hints {
		if h != "" && strings.Contains(id, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

// ParamCountBillions extracts the parameter count from a model id, or 0.
func ParamCountBillions(modelID string) float64 {
	m := paramCountRegex.FindStringSubmatch(modelID)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// EstimateModelMemoryMB estimates resident memory for a 4-bit quantized model:
// roughly 0.56 bytes per parameter plus 1.5 GB of KV cache and runtime overhead.
// Unknown sizes return 0.
func EstimateModelMemoryMB(modelID string) int {
	b := ParamCountBillions(modelID)
	if b == 0 {
		return 0
	}
	return int((b*0.56 + 1.5) * 1024)
}
