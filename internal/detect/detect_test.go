// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"testing"
	"time"
)

// =============================================================================
// GPU TYPE TESTS
// =============================================================================

func TestGpuType_String(t *testing.T) {
	tests := []struct {
		gpuType GpuType
		want    string
	}{
		{GpuTypeCPU, "CPU"},
		{GpuTypeNvidia, "NVIDIA"},
		{GpuTypeAmd, "AMD"},
		{GpuTypeAppleSilicon, "Apple Silicon"},
		{GpuType(99), "Unknown"},
	}

	for _, tc := range tests {
		got := tc.gpuType.String()
		if got != tc.want {
			t.Errorf("GpuType(%d).String() = %q, want %q", tc.gpuType, got, tc.want)
		}
	}
}

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestGpuParsers(t *testing.T) {
	tests := []struct {
		name   string
		parse  func(string) (string, bool)
		output string
		want   string
		found  bool
	}{
		{"nvidia", parseNvidiaSmi, "NVIDIA GeForce RTX 4090\nNVIDIA RTX A2000\n", "NVIDIA GeForce RTX 4090", true},
		{"nvidia bare name", parseNvidiaSmi, "\nTesla T4\n", "NVIDIA Tesla T4", true},
		{"nvidia empty", parseNvidiaSmi, "  \n", "", false},
		{"rocm series", parseRocmSmi, "GPU[0]\t\t: Card series:\t\tRadeon RX 7900 XTX\n", "AMD Radeon RX 7900 XTX", true},
		{"rocm no series", parseRocmSmi, "GPU[0]\t\t: Card model:\t\t0x744c\n", "AMD GPU", true},
		{"rocm nothing", parseRocmSmi, "WARNING: No AMD GPUs specified\n", "", false},
		{"apple pro", parseSystemProfiler, "Graphics/Displays:\n    Apple M2 Pro:\n      Chipset Model: Apple M2 Pro\n", "Apple M2 Pro", true},
		{"apple base", parseSystemProfiler, "Chipset Model: Apple M4\n", "Apple M4", true},
		{"intel mac", parseSystemProfiler, "Chipset Model: AMD Radeon Pro 5500M\n", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.parse(tc.output)
			if ok != tc.found || got != tc.want {
				t.Errorf("parse(%q) = %q, %v; want %q, %v", tc.output, got, ok, tc.want, tc.found)
			}
		})
	}
}

func TestGpuDetector_SkipsOtherPlatforms(t *testing.T) {
	p := gpuDetector{
		gpuType:  GpuTypeAmd,
		goos:     "plan9",
		commands: [][]string{{"true"}},
		parse:    func(string) (string, bool) { return "never", true },
	}
	if info := p.run(context.Background()); info != nil {
		t.Errorf("run on another platform = %+v, want nil", info)
	}
}

func TestGpuDetector_MissingTool(t *testing.T) {
	p := gpuDetector{
		gpuType:  GpuTypeNvidia,
		commands: [][]string{{"astro-no-such-gpu-tool"}, {"astro-no-such-gpu-tool-either"}},
		parse:    func(string) (string, bool) { return "never", true },
	}
	if info := p.run(context.Background()); info != nil {
		t.Errorf("run with missing tools = %+v, want nil", info)
	}
}

// =============================================================================
// DETECTION TESTS
// =============================================================================

func TestDetectGPUWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	info, err := DetectGPUWithContext(ctx)
	if err != nil {
		t.Fatalf("DetectGPUWithContext failed: %v", err)
	}
	if info == nil {
		t.Fatal("DetectGPUWithContext returned nil info")
	}
}

func TestDetectGPUWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info, _ := DetectGPUWithContext(ctx)
	if info == nil || info.Type != GpuTypeCPU {
		t.Errorf("cancelled detection should fall back to CPU, got %+v", info)
	}
}

func TestDetectGPUCached(t *testing.T) {
	ClearGPUCache()
	defer ClearGPUCache()

	first, err := DetectGPUCached(context.Background())
	if err != nil {
		t.Fatalf("DetectGPUCached failed: %v", err)
	}
	second, err := DetectGPUCached(context.Background())
	if err != nil {
		t.Fatalf("DetectGPUCached failed: %v", err)
	}
	if first != second {
		t.Error("second call should return the cached pointer")
	}
}

func TestSystemProber_Probe(t *testing.T) {
	profile, err := SystemProber{}.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if profile.MemoryMB <= 0 {
		t.Errorf("MemoryMB = %d, want > 0", profile.MemoryMB)
	}
	if profile.LogicalCores < 1 {
		t.Errorf("LogicalCores = %d, want >= 1", profile.LogicalCores)
	}
	if profile.Source != "probe" {
		t.Errorf("Source = %q, want probe", profile.Source)
	}
}

func TestProberFunc(t *testing.T) {
	want := HardwareProfile{MemoryMB: 16384, LogicalCores: 8}
	p := ProberFunc(func(ctx context.Context) (HardwareProfile, error) {
		return want, nil
	})
	got, err := p.Probe(context.Background())
	if err != nil || got.MemoryMB != want.MemoryMB {
		t.Errorf("ProberFunc.Probe() = %+v, %v", got, err)
	}
}
