// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect probes local hardware and maps it to an astro capability tier.
//
// # Key Types
//
//   - HardwareProfile: installed memory (MB), logical cores, GPU acceleration
//   - Tier: eco, starter, pro or god-mode, derived by ClassifyTier
//   - DeviceClass: desktop or mobile, derived from a user agent
//   - Recommendation: the suggested native models for a tier
//
// # Supported GPU Types
//
//   - NVIDIA (via nvidia-smi)
//   - AMD (via rocm-smi on Linux)
//   - Apple Silicon (via system_profiler on macOS)
//
// # Usage
//
//	profile, _ := detect.SystemProber{}.Probe(ctx)
//	tier := detect.ClassifyTier(profile)
//	rec := detect.Recommend(tier)
package detect
