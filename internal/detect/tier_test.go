// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		name    string
		profile HardwareProfile
		want    Tier
	}{
		{"workstation", HardwareProfile{MemoryMB: 65536, LogicalCores: 16, GPUAcceleration: true}, TierGodMode},
		{"god-mode boundary", HardwareProfile{MemoryMB: 48000, LogicalCores: 12, GPUAcceleration: true}, TierGodMode},
		{"god-mode without gpu", HardwareProfile{MemoryMB: 65536, LogicalCores: 16}, TierPro},
		{"god-mode memory short", HardwareProfile{MemoryMB: 47999, LogicalCores: 16, GPUAcceleration: true}, TierPro},
		{"god-mode cores short", HardwareProfile{MemoryMB: 65536, LogicalCores: 11, GPUAcceleration: true}, TierPro},
		{"pro boundary", HardwareProfile{MemoryMB: 16000, LogicalCores: 8}, TierPro},
		{"pro cores short", HardwareProfile{MemoryMB: 32000, LogicalCores: 4}, TierStarter},
		{"starter boundary", HardwareProfile{MemoryMB: 8000, LogicalCores: 2}, TierStarter},
		{"eco", HardwareProfile{MemoryMB: 7999, LogicalCores: 16, GPUAcceleration: true}, TierEco},
		{"unknown memory", HardwareProfile{LogicalCores: 32, GPUAcceleration: true}, TierEco},
		{"negative values", HardwareProfile{MemoryMB: -1, LogicalCores: -4}, TierEco},
		{"zero profile", HardwareProfile{}, TierEco},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTier(tt.profile)
			if got != tt.want {
				t.Errorf("ClassifyTier(%v) = %v, want %v", tt.profile, got, tt.want)
			}
			// Pure: repeated calls agree.
			if again := ClassifyTier(tt.profile); again != got {
				t.Errorf("ClassifyTier not stable: %v then %v", got, again)
			}
		})
	}
}

func TestClassifyTier_GodModeNeedsAllThree(t *testing.T) {
	full := HardwareProfile{MemoryMB: 64000, LogicalCores: 16, GPUAcceleration: true}
	require.Equal(t, TierGodMode, ClassifyTier(full))

	drops := []HardwareProfile{
		{MemoryMB: 1000, LogicalCores: 16, GPUAcceleration: true},
		{MemoryMB: 64000, LogicalCores: 2, GPUAcceleration: true},
		{MemoryMB: 64000, LogicalCores: 16, GPUAcceleration: false},
	}
	for _, p := range drops {
		assert.LessOrEqual(t, int(ClassifyTier(p)), int(TierPro), "profile %v", p)
	}
}

func TestTier_StringAndParse(t *testing.T) {
	for _, tier := range AllTiers() {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	got, err := ParseTier("GOD")
	require.NoError(t, err)
	assert.Equal(t, TierGodMode, got)

	_, err = ParseTier("ultra")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Tier(42).String())
}

func TestTier_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		T Tier `json:"t"`
	}{TierGodMode})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"god-mode"}`, string(data))

	var out struct {
		T Tier `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":"starter"}`), &out))
	assert.Equal(t, TierStarter, out.T)
	assert.Error(t, json.Unmarshal([]byte(`{"t":"huge"}`), &out))
}

func TestIsMobileUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want bool
	}{
		{"", false},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0", false},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) Safari/605.1.15", false},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Chrome/126.0 Mobile Safari/537.36", true},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X)", true},
		{"Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X)", true},
		{"SOMETHING MOBILE", true},
	}

	for _, tt := range tests {
		if got := IsMobileUserAgent(tt.ua); got != tt.want {
			t.Errorf("IsMobileUserAgent(%q) = %v, want %v", tt.ua, got, tt.want)
		}
	}
	assert.Equal(t, DeviceMobile, ClassifyDevice("iphone"))
	assert.Equal(t, DeviceDesktop, ClassifyDevice(""))
	assert.Equal(t, "mobile", DeviceMobile.String())
}

func TestRecommend(t *testing.T) {
	rec := Recommend(TierGodMode)
	assert.Equal(t, TierGodMode, rec.Tier)
	assert.Equal(t, "Qwen2.5-Coder-32B-Instruct-q4_K_M", rec.Model)
	assert.Equal(t, "Codestral-22B-v0.1-q4_K_M", rec.SecondaryModel)
	assert.Equal(t, "Phi-3.5-vision-instruct-q4f16_1-MLC", rec.VisionModel)

	// Hints are copies.
	rec.ModelHints[0] = "mutated"
	assert.Equal(t, "qwen2.5-coder-32b", Recommend(TierGodMode).ModelHints[0])

	assert.Equal(t, TierEco, Recommend(Tier(99)).Tier)
}

func TestMatchesHints(t *testing.T) {
	assert.True(t, MatchesHints("Qwen2.5-Coder-7B-Instruct-q4_k_m", []string{"qwen2.5-coder-7b"}))
	assert.False(t, MatchesHints("Llama-3.2-1B", []string{"codestral"}))
	assert.False(t, MatchesHints("anything", []string{""}))
}

func TestParamCountBillions(t *testing.T) {
	tests := []struct {
		id   string
		want float64
	}{
		{"Qwen2.5-Coder-32B-Instruct-q4_k_m", 32},
		{"Llama-3.2-1B-Instruct-q4f16_1-MLC", 1},
		{"Codestral-22B-v0.1-q4_K_M", 22},
		{"qwen2.5-coder:7b", 7},
		{"qwen2.5-coder:1.5b", 1.5},
		{"Phi-3.5-mini-instruct-q4f16_1-MLC", 0},
		{"DeepSeek-Coder-V2-Lite-Instruct", 0},
	}
	for _, tt := range tests {
		if got := ParamCountBillions(tt.id); got != tt.want {
			t.Errorf("ParamCountBillions(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
	assert.Equal(t, 0, EstimateModelMemoryMB("Phi-3.5-mini"))
	assert.Greater(t, EstimateModelMemoryMB("Qwen2.5-Coder-32B"), EstimateModelMemoryMB("Qwen2.5-Coder-7B"))
}
