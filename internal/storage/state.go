// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/astro-chat/astro-router/internal/detect"
)

// Fixed namespaces and record ids.
const (
	NamespaceRouting  = "routing"
	NamespaceHardware = "hardware"

	KeySelection = "selection"
	KeyProfile   = "profile"
	KeyTier      = "tier"
)

// =============================================================================
// SELECTION MODE
// =============================================================================

// SelectionMode says whether the router may change the active model.
type SelectionMode int

const (
	// SelectionAuto lets the router pick provider and model.
	SelectionAuto SelectionMode = iota
	// SelectionPinned is the manual lock: the user's choice is never overwritten.
	SelectionPinned
)

// String returns the string representation of the selection mode.
func (m SelectionMode) String() string {
	switch m {
	case SelectionAuto:
		return "auto"
	case SelectionPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m SelectionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SelectionMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "auto", "":
		*m = SelectionAuto
	case "pinned", "locked", "manual":
		*m = SelectionPinned
	default:
		return fmt.Errorf("invalid selection mode %q", string(b))
	}
	return nil
}

// =============================================================================
// ACCESS MODE
// =============================================================================

// AccessMode selects which provider partition the router draws from.
type AccessMode int

const (
	// AccessLocal routes to providers that run on this machine or in the browser.
	AccessLocal AccessMode = iota
	// AccessCloud routes to hosted providers that need an API key.
	AccessCloud
)

// String returns the string representation of the access mode.
func (m AccessMode) String() string {
	switch m {
	case AccessLocal:
		return "local"
	case AccessCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// ParseAccessMode parses "local" or "cloud".
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return AccessLocal, nil
	case "cloud":
		return AccessCloud, nil
	default:
		return AccessLocal, fmt.Errorf("invalid access mode %q (want local or cloud)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m AccessMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AccessMode) UnmarshalText(b []byte) error {
	parsed, err := ParseAccessMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// ROUTING STATE
// =============================================================================

// RoutingState is the persisted current selection.
type RoutingState struct {
	Mode      SelectionMode `json:"mode"`
	Access    AccessMode    `json:"access"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// Pinned reports whether the manual lock is set.
func (s RoutingState) Pinned() bool {
	return s.Mode == SelectionPinned
}

// HasSelection reports whether a provider/model pair is saved.
func (s RoutingState) HasSelection() bool {
	return s.Provider != "" && s.Model != ""
}

// LoadRoutingState returns the saved routing state. A missing record yields
// the zero state (auto, local). A corrupt record yields the zero state and an
// error wrapping ErrCorrupt so the caller can log it.
func LoadRoutingState(ctx context.Context, st Store) (RoutingState, error) {
	rec, err := st.Get(ctx, NamespaceRouting, KeySelection)
	if errors.Is(err, ErrNotFound) {
		return RoutingState{}, nil
	}
	if err != nil {
		return RoutingState{}, err
	}
	var state RoutingState
	if err := rec.Decode(&state); err != nil {
		return RoutingState{}, err
	}
	return state, nil
}

// SaveRoutingState persists the routing state.
func SaveRoutingState(ctx context.Context, st Store, state RoutingState) error {
	_, err := st.Put(ctx, NamespaceRouting, KeySelection, state)
	return err
}

// =============================================================================
// HARDWARE PROFILE
// =============================================================================

type tierRecord struct {
	Tier detect.Tier `json:"tier"`
}

// LoadHardware returns the cached hardware profile, ErrNotFound, or an error
// wrapping ErrCorrupt when the cached value is unusable.
func LoadHardware(ctx context.Context, st Store) (detect.HardwareProfile, error) {
	rec, err := st.Get(ctx, NamespaceHardware, KeyProfile)
	if err != nil {
		return detect.HardwareProfile{}, err
	}
	var profile detect.HardwareProfile
	if err := rec.Decode(&profile); err != nil {
		return detect.HardwareProfile{}, err
	}
	if profile.MemoryMB < 0 || profile.LogicalCores < 0 {
		return detect.HardwareProfile{}, fmt.Errorf("%w: negative hardware values", ErrCorrupt)
	}
	return profile, nil
}

// SaveHardware persists the profile together with its computed tier.
func SaveHardware(ctx context.Context, st Store, profile detect.HardwareProfile) error {
	if _, err := st.Put(ctx, NamespaceHardware, KeyProfile, profile); err != nil {
		return err
	}
	_, err := st.Put(ctx, NamespaceHardware, KeyTier, tierRecord{Tier: detect.ClassifyTier(profile)})
	return err
}

// DiscardHardware removes the cached profile and tier.
func DiscardHardware(ctx context.Context, st Store) error {
	if err := st.Delete(ctx, NamespaceHardware, KeyProfile); err != nil {
		return err
	}
	return st.Delete(ctx, NamespaceHardware, KeyTier)
}

// LoadTier returns the last computed tier.
func LoadTier(ctx context.Context, st Store) (detect.Tier, error) {
	rec, err := st.Get(ctx, NamespaceHardware, KeyTier)
	if err != nil {
		return detect.TierEco, err
	}
	var tr tierRecord
	if err := rec.Decode(&tr); err != nil {
		return detect.TierEco, err
	}
	return tr.Tier, nil
}
