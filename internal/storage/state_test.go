// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-chat/astro-router/internal/detect"
)

func TestLoadRoutingState_MissingIsZero(t *testing.T) {
	st := NewMemoryStore()
	state, err := LoadRoutingState(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, SelectionAuto, state.Mode)
	assert.Equal(t, AccessLocal, state.Access)
	assert.False(t, state.HasSelection())
}

func TestRoutingState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	in := RoutingState{Mode: SelectionPinned, Access: AccessCloud, Provider: "Anthropic", Model: "claude"}
	require.NoError(t, SaveRoutingState(ctx, st, in))

	rec, err := st.Get(ctx, NamespaceRouting, KeySelection)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Payload, &raw))
	assert.Equal(t, "pinned", raw["mode"])
	assert.Equal(t, "cloud", raw["access"])

	out, err := LoadRoutingState(ctx, st)
	require.NoError(t, err)
	assert.True(t, out.Pinned())
	assert.Equal(t, AccessCloud, out.Access)
	assert.Equal(t, "claude", out.Model)
}

func TestLoadRoutingState_Corrupt(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	_, err := st.Put(ctx, NamespaceRouting, KeySelection, map[string]string{"mode": "sideways"})
	require.NoError(t, err)

	state, err := LoadRoutingState(ctx, st)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, RoutingState{}, state)
}

func TestParseAccessMode(t *testing.T) {
	m, err := ParseAccessMode("CLOUD")
	require.NoError(t, err)
	assert.Equal(t, AccessCloud, m)

	m, err = ParseAccessMode("")
	require.NoError(t, err)
	assert.Equal(t, AccessLocal, m)

	_, err = ParseAccessMode("hybrid")
	assert.Error(t, err)
}

func TestSelectionMode_Unmarshal(t *testing.T) {
	var m SelectionMode
	require.NoError(t, m.UnmarshalText([]byte("locked")))
	assert.Equal(t, SelectionPinned, m)
	require.NoError(t, m.UnmarshalText([]byte("auto")))
	assert.Equal(t, SelectionAuto, m)
	assert.Error(t, m.UnmarshalText([]byte("maybe")))
}

func TestHardware_SaveLoad(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := LoadHardware(ctx, st)
	assert.True(t, errors.Is(err, ErrNotFound))

	profile := detect.HardwareProfile{MemoryMB: 65536, LogicalCores: 16, GPUAcceleration: true, GPUName: "NVIDIA RTX 4090"}
	require.NoError(t, SaveHardware(ctx, st, profile))

	got, err := LoadHardware(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, profile.MemoryMB, got.MemoryMB)
	assert.True(t, got.GPUAcceleration)

	tier, err := LoadTier(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, detect.TierGodMode, tier)

	require.NoError(t, DiscardHardware(ctx, st))
	_, err = LoadHardware(ctx, st)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = LoadTier(ctx, st)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadHardware_Corrupt(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		payload any
	}{
		{"wrong type", map[string]any{"memoryMB": "lots"}},
		{"negative", map[string]any{"memoryMB": -5, "logicalCores": 4}},
		{"not an object", []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewMemoryStore()
			_, err := st.Put(ctx, NamespaceHardware, KeyProfile, tt.payload)
			require.NoError(t, err)
			_, err = LoadHardware(ctx, st)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
