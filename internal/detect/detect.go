// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

// gpuDetectTimeout bounds a whole GPU probe when ctx carries no deadline.
const gpuDetectTimeout = 10 * time.Second

// gpuCacheTTL is how long a GPU probe result is reused.
const gpuCacheTTL = 5 * time.Minute

// =============================================================================
// GPU TYPES
// =============================================================================

// GpuType is the accelerator family a probe found.
type GpuType int

const (
	// GpuTypeCPU means no usable accelerator.
	GpuTypeCPU GpuType = iota
	GpuTypeNvidia
	GpuTypeAmd
	GpuTypeAppleSilicon
)

// String returns the display name of the family.
func (t GpuType) String() string {
	switch t {
	case GpuTypeCPU:
		return "CPU"
	case GpuTypeNvidia:
		return "NVIDIA"
	case GpuTypeAmd:
		return "AMD"
	case GpuTypeAppleSilicon:
		return "Apple Silicon"
	default:
		return "Unknown"
	}
}

// GpuInfo is the accelerator a probe found. Only its presence feeds the tier;
// the name is shown to the user.
type GpuInfo struct {
	Name string
	Type GpuType
}

// =============================================================================
// VENDOR PROBES
// =============================================================================

// gpuDetector runs one vendor tool. commands are tried in order until one exits
// cleanly; parse turns its output into a card name.
type gpuDetector struct {
	gpuType  GpuType
	goos     string
	commands [][]string
	parse    func(output string) (string, bool)
}

var gpuDetectors = []gpuDetector{
	{
		gpuType:  GpuTypeNvidia,
		commands: nvidiaSmiCommands(),
		parse:    parseNvidiaSmi,
	},
	{
		gpuType:  GpuTypeAmd,
		goos:     "linux",
		commands: [][]string{{"rocm-smi", "--showproductname"}},
		parse:    parseRocmSmi,
	},
	{
		gpuType:  GpuTypeAppleSilicon,
		goos:     "darwin",
		commands: [][]string{{"system_profiler", "SPDisplaysDataType"}},
		parse:    parseSystemProfiler,
	},
}

func nvidiaSmiCommands() [][]string {
	args := []string{"--query-gpu=name", "--format=csv,noheader"}
	bins := []string{"nvidia-smi"}
	if runtime.GOOS == "windows" {
		bins = append(bins,
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`)
	}
	cmds := make([][]string, 0, len(bins))
	for _, bin := range bins {
		cmds = append(cmds, append([]string{bin}, args...))
	}
	return cmds
}

func (p gpuDetector) run(ctx context.Context) *GpuInfo {
	if p.goos != "" && p.goos != runtime.GOOS {
		return nil
	}
	for _, argv := range p.commands {
		out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if name, ok := p.parse(string(out)); ok {
			return &GpuInfo{Name: name, Type: p.gpuType}
		}
		return nil
	}
	return nil
}

// parseNvidiaSmi takes the first card of `nvidia-smi --query-gpu=name`.
func parseNvidiaSmi(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToUpper(name), "NVIDIA") {
			name = "NVIDIA " + name
		}
		return name, true
	}
	return "", false
}

// parseRocmSmi takes the first "Card series" of `rocm-smi --showproductname`.
func parseRocmSmi(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if _, series, ok := strings.Cut(line, "Card series:"); ok {
			if series = strings.TrimSpace(series); series != "" {
				return "AMD " + series, true
			}
		}
	}
	if strings.Contains(output, "GPU[") {
		return "AMD GPU", true
	}
	return "", false
}

var appleChipRegex = regexp.MustCompile(`Apple (M\d+(?: (?:Pro|Max|Ultra))?)\b`)

// parseSystemProfiler recognises Apple Silicon chipsets. Intel Macs with a
// discrete card are reported as CPU only.
func parseSystemProfiler(output string) (string, bool) {
	if m := appleChipRegex.FindStringSubmatch(output); m != nil {
		return "Apple " + m[1], true
	}
	return "", false
}

// =============================================================================
// DETECTION
// =============================================================================

// DetectGPUWithContext returns the first accelerator a vendor probe finds,
// or a CPU-only GpuInfo. The error is ctx's when the probe was cut short.
func DetectGPUWithContext(ctx context.Context) (*GpuInfo, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gpuDetectTimeout)
		defer cancel()
	}
	for _, p := range gpuDetectors {
		if info := p.run(ctx); info != nil {
			return info, nil
		}
		if err := ctx.Err(); err != nil {
			return cpuOnly(), err
		}
	}
	return cpuOnly(), nil
}

var (
	gpuCacheMu sync.Mutex
	gpuCache   *GpuInfo
	gpuCacheAt time.Time
)

// DetectGPUCached reuses a successful detection for gpuCacheTTL.
func DetectGPUCached(ctx context.Context) (*GpuInfo, error) {
	gpuCacheMu.Lock()
	defer gpuCacheMu.Unlock()

	if gpuCache != nil && time.Since(gpuCacheAt) < gpuCacheTTL {
		return gpuCache, nil
	}
	info, err := DetectGPUWithContext(ctx)
	if err != nil {
		return nil, err
	}
	gpuCache, gpuCacheAt = info, time.Now()
	return info, nil
}

// ClearGPUCache forgets the cached detection.
func ClearGPUCache() {
	gpuCacheMu.Lock()
	defer gpuCacheMu.Unlock()
	gpuCache, gpuCacheAt = nil, time.Time{}
}

func cpuOnly() *GpuInfo {
	return &GpuInfo{Name: "CPU Only", Type: GpuTypeCPU}
}
