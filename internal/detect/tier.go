// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"fmt"
	"strings"
)

// =============================================================================
// TIER DEFINITIONS
// =============================================================================

// Tier is the coarse hardware capability class used to bound model sizes.
type Tier int

const (
	// TierEco is the fallback for light hardware.
	TierEco Tier = iota
	// TierStarter is a standard 8GB+ laptop.
	TierStarter
	// TierPro is a 16GB+ machine with 8+ cores.
	TierPro
	// TierGodMode is a 48GB+ workstation with 12+ cores and GPU acceleration.
	TierGodMode
)

// Thresholds, in megabytes and logical cores.
const (
	GodModeMinMemoryMB = 48000
	GodModeMinCores    = 12
	ProMinMemoryMB     = 16000
	ProMinCores        = 8
	StarterMinMemoryMB = 8000

	// UnknownMemoryMB is assumed when the prober could not report memory.
	UnknownMemoryMB = 4000
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierEco:
		return "eco"
	case TierStarter:
		return "starter"
	case TierPro:
		return "pro"
	case TierGodMode:
		return "god-mode"
	default:
		return "unknown"
	}
}

// ParseTier parses a tier name. "god" is accepted as an alias of god-mode.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eco":
		return TierEco, nil
	case "starter":
		return TierStarter, nil
	case "pro":
		return TierPro, nil
	case "god-mode", "god", "godmode":
		return TierGodMode, nil
	default:
		return TierEco, fmt.Errorf("invalid tier %q", s)
	}
}

// AllTiers returns every tier from lowest to highest.
func AllTiers() []Tier {
	return []Tier{TierEco, TierStarter, TierPro, TierGodMode}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// TIER CLASSIFIER
// =============================================================================

// ClassifyTier maps a hardware profile to a tier. Rules are evaluated top to
// bottom and the first match wins:
//
//  1. god-mode: memory >= 48000 MB, cores >= 12 and GPU acceleration
//  2. pro:      memory >= 16000 MB and cores >= 8
//  3. starter:  memory >= 8000 MB
//  4. eco:      everything else
//
// Unknown memory counts as 4000 MB and fewer than one core counts as one.
func ClassifyTier(p HardwareProfile) Tier {
	p = p.Normalized()

	switch {
	case p.MemoryMB >= GodModeMinMemoryMB && p.LogicalCores >= GodModeMinCores && p.GPUAcceleration:
		return TierGodMode
	case p.MemoryMB >= ProMinMemoryMB && p.LogicalCores >= ProMinCores:
		return TierPro
	case p.MemoryMB >= StarterMinMemoryMB:
		return TierStarter
	default:
		return TierEco
	}
}

// =============================================================================
// DEVICE CLASS
// =============================================================================

// DeviceClass overrides the tier for small form factors.
type DeviceClass int

const (
	DeviceDesktop DeviceClass = iota
	DeviceMobile
)

// String returns the string representation of the device class.
func (d DeviceClass) String() string {
	if d == DeviceMobile {
		return "mobile"
	}
	return "desktop"
}

var mobileUserAgentHints = []string{"android", "iphone", "ipad", "mobile"}

// IsMobileUserAgent reports whether a user agent string belongs to a mobile
// device. An empty user agent is not mobile.
func IsMobileUserAgent(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	ua := strings.ToLower(userAgent)
	for _, hint := range mobileUserAgentHints {
		if strings.Contains(ua, hint) {
			return true
		}
	}
	return false
}

// ClassifyDevice returns the device class for a user agent.
func ClassifyDevice(userAgent string) DeviceClass {
	if IsMobileUserAgent(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}
