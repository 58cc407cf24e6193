// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-chat/astro-router/internal/detect"
)

func TestSelectCandidates_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		query CandidateQuery
		want  ListKind
	}{
		{
			name:  "vision beats god-mode default",
			query: CandidateQuery{Tier: detect.TierGodMode, ImageAttachments: 1},
			want:  ListVision,
		},
		{
			name:  "vision beats mobile",
			query: CandidateQuery{Tier: detect.TierEco, Mobile: true, Prompt: "read this screenshot"},
			want:  ListVision,
		},
		{
			name:  "mobile even at god-mode",
			query: CandidateQuery{Tier: detect.TierGodMode, Mobile: true, Prompt: "refactor the service"},
			want:  ListMobile,
		},
		{
			name:  "mobile beats light",
			query: CandidateQuery{Tier: detect.TierStarter, Mobile: true, Prompt: "quick outline"},
			want:  ListMobile,
		},
		{
			name:  "light task",
			query: CandidateQuery{Tier: detect.TierStarter, Prompt: "quick scaffold for a landing page"},
			want:  ListLight,
		},
		{
			name:  "heavy hint keeps default",
			query: CandidateQuery{Tier: detect.TierStarter, Prompt: "refactor this for production performance"},
			want:  ListDefault,
		},
		{
			name:  "no hints",
			query: CandidateQuery{Tier: detect.TierPro},
			want:  ListDefault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectCandidates(tt.query)
			assert.Equal(t, tt.want, sel.Kind)
			assert.Equal(t, tt.query.Tier, sel.Tier)
		})
	}
}

func TestSelectCandidates_Lists(t *testing.T) {
	starterLight := SelectCandidates(CandidateQuery{Tier: detect.TierStarter, Prompt: "quick scaffold for a landing page"})
	assert.Equal(t, lightCandidates[detect.TierStarter], starterLight.Candidates)
	assert.NotEqual(t, defaultCandidates[detect.TierStarter], starterLight.Candidates)

	god := SelectCandidates(CandidateQuery{Tier: detect.TierGodMode, Prompt: "design the architecture"})
	assert.Equal(t, qwen32B, god.Candidates[0])

	vision := SelectCandidates(CandidateQuery{Tier: detect.TierGodMode, ImageAttachments: 3})
	assert.Equal(t, phiVision, vision.Candidates[0])
}

func TestSelectCandidates_EveryListEndsWithFallbacks(t *testing.T) {
	fallbacks := FallbackModels()
	lists := [][]string{visionCandidates, mobileCandidates}
	for _, tier := range detect.AllTiers() {
		lists = append(lists, lightCandidates[tier], defaultCandidates[tier])
	}
	for i, list := range lists {
		require.NotEmpty(t, list, "list %d", i)
		assert.Equal(t, browserFallback, list[len(list)-1], "list %d", i)
		for _, f := range fallbacks {
			assert.Contains(t, list, f, "list %d", i)
		}
	}
}

func TestSelectCandidates_FreshCopy(t *testing.T) {
	q := CandidateQuery{Tier: detect.TierEco}
	first := SelectCandidates(q)
	first.Candidates[0] = "mutated"

	second := SelectCandidates(q)
	assert.NotEqual(t, "mutated", second.Candidates[0])
	assert.NotEqual(t, "mutated", defaultCandidates[detect.TierEco][0])
}

func TestSelectCandidates_UnknownTierUsesEco(t *testing.T) {
	sel := SelectCandidates(CandidateQuery{Tier: detect.Tier(99)})
	assert.Equal(t, defaultCandidates[detect.TierEco], sel.Candidates)
}
