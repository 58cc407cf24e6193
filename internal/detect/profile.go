// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// =============================================================================
// HARDWARE PROFILE
// =============================================================================

// HardwareProfile is what the prober reports about this machine.
// Memory is always in megabytes.
type HardwareProfile struct {
	MemoryMB        int       `json:"memoryMB"`
	LogicalCores    int       `json:"logicalCores"`
	GPUAcceleration bool      `json:"gpuAcceleration"`
	GPUName         string    `json:"gpuName,omitempty"`
	GPUType         string    `json:"gpuType,omitempty"`
	Source          string    `json:"source,omitempty"` // "probe", "config", "manual"
	ProbedAt        time.Time `json:"probedAt,omitempty"`
}

// Normalized replaces missing values with their conservative floors.
func (p HardwareProfile) Normalized() HardwareProfile {
	if p.MemoryMB <= 0 {
		p.MemoryMB = UnknownMemoryMB
	}
	if p.LogicalCores < 1 {
		p.LogicalCores = 1
	}
	return p
}

// String returns a one-line summary.
func (p HardwareProfile) String() string {
	gpu := "no GPU acceleration"
	if p.GPUAcceleration {
		gpu = "GPU acceleration"
		if p.GPUName != "" {
			gpu = p.GPUName
		}
	}
	return fmt.Sprintf("%d MB RAM, %d cores, %s", p.MemoryMB, p.LogicalCores, gpu)
}

// =============================================================================
// PROBER
// =============================================================================

// Prober produces a hardware profile.
type Prober interface {
	Probe(ctx context.Context) (HardwareProfile, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) (HardwareProfile, error)

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) (HardwareProfile, error) {
	return f(ctx)
}

// SystemProber probes the local machine.
type SystemProber struct{}

// Probe reads total memory, logical cores and GPU class. It never fails:
// values that cannot be read fall back to conservative defaults.
// CANCELLATION: Context enables timeout and cancellation
func (SystemProber) Probe(ctx context.Context) (HardwareProfile, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gpuDetectTimeout)
		defer cancel()
	}

	profile := HardwareProfile{
		LogicalCores: runtime.NumCPU(),
		Source:       "probe",
		ProbedAt:     time.Now().UTC(),
	}

	if mb, err := totalMemoryMB(ctx); err == nil && mb > 0 {
		profile.MemoryMB = mb
	} else {
		profile.MemoryMB = UnknownMemoryMB
	}

	gpu, err := DetectGPUCached(ctx)
	if err == nil && gpu != nil {
		profile.GPUName = gpu.Name
		profile.GPUType = gpu.Type.String()
		profile.GPUAcceleration = gpu.Type != GpuTypeCPU
	}

	return profile, nil
}
