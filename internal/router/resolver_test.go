// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-chat/astro-router/internal/catalog"
	"github.com/astro-chat/astro-router/internal/storage"
)

func resolverSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Providers: []catalog.Provider{
			{Name: catalog.ProviderOllama, Local: true},
			{Name: catalog.ProviderWebLLM, Local: true},
			{Name: catalog.ProviderAnthropic, Local: false},
		},
		Entries: []catalog.Entry{
			{Provider: catalog.ProviderOllama, ModelID: "mistral:7b"},
			{Provider: catalog.ProviderOllama, ModelID: ollamaQwen7B},
			{Provider: catalog.ProviderWebLLM, ModelID: browserFallback},
			{Provider: catalog.ProviderWebLLM, ModelID: phiMini},
			{Provider: catalog.ProviderAnthropic, ModelID: "claude-sonnet-4-5"},
		},
	}
}

func baseInput() ResolveInput {
	return ResolveInput{
		Candidates:      []string{phiMini, ollamaQwen7B, browserFallback},
		Selection:       storage.SelectionAuto,
		Access:          storage.AccessLocal,
		Snapshot:        resolverSnapshot(),
		LocalPreference: DefaultLocalPreference,
		CloudPreference: DefaultCloudPreference,
	}
}

func TestResolve_PinnedIsNoOp(t *testing.T) {
	for _, access := range []storage.AccessMode{storage.AccessLocal, storage.AccessCloud} {
		in := baseInput()
		in.Selection = storage.SelectionPinned
		in.Access = access
		in.Active = catalog.ProviderWebLLM

		out := Resolve(in)
		assert.True(t, out.NoOp())
		assert.Equal(t, ReasonPinned, out.Reason)
	}
}

func TestResolve_PreferenceOrder(t *testing.T) {
	out := Resolve(baseInput())
	require.False(t, out.NoOp())
	// AstroLocal is missing, WebLLM is the next preference present.
	assert.Equal(t, Decision{Provider: catalog.ProviderWebLLM, Model: phiMini}, *out.Decision)
	assert.Equal(t, ReasonRouted, out.Reason)
}

func TestResolve_KeepsActiveProvider(t *testing.T) {
	in := baseInput()
	in.Active = catalog.ProviderOllama
	out := Resolve(in)
	require.False(t, out.NoOp())
	assert.Equal(t, Decision{Provider: catalog.ProviderOllama, Model: ollamaQwen7B}, *out.Decision)
}

func TestResolve_ActiveInWrongPartition(t *testing.T) {
	in := baseInput()
	in.Active = catalog.ProviderAnthropic
	out := Resolve(in)
	require.False(t, out.NoOp())
	assert.Equal(t, catalog.ProviderWebLLM, out.Decision.Provider)
}

func TestResolve_FallsBackToFirstCatalogEntry(t *testing.T) {
	in := baseInput()
	in.Active = catalog.ProviderOllama
	in.Candidates = []string{"nothing-matches"}
	out := Resolve(in)
	require.False(t, out.NoOp())
	assert.Equal(t, "mistral:7b", out.Decision.Model)
}

func TestResolve_EmptyProviderCatalog(t *testing.T) {
	in := baseInput()
	in.Snapshot.Providers = append(in.Snapshot.Providers, catalog.Provider{Name: catalog.ProviderAstroLocal, Local: true})
	out := Resolve(in)
	assert.True(t, out.NoOp())
	assert.Equal(t, ReasonEmptyCatalog, out.Reason)
}

func TestResolve_NoProviderInPartition(t *testing.T) {
	in := baseInput()
	in.Snapshot = catalog.Snapshot{
		Providers: []catalog.Provider{{Name: catalog.ProviderOpenAI}},
		Entries:   []catalog.Entry{{Provider: catalog.ProviderOpenAI, ModelID: "gpt-4o"}},
	}
	out := Resolve(in)
	assert.True(t, out.NoOp())
	assert.Equal(t, ReasonNoProvider, out.Reason)

	in.Snapshot = catalog.Snapshot{}
	assert.True(t, Resolve(in).NoOp())
}

func TestResolve_CloudPartition(t *testing.T) {
	in := baseInput()
	in.Access = storage.AccessCloud
	out := Resolve(in)
	require.False(t, out.NoOp())
	assert.Equal(t, Decision{Provider: catalog.ProviderAnthropic, Model: "claude-sonnet-4-5"}, *out.Decision)
	assert.Equal(t, storage.AccessCloud, out.Access)
}

func TestResolve_UnlistedProviderFallback(t *testing.T) {
	in := baseInput()
	in.LocalPreference = []string{"Nobody"}
	out := Resolve(in)
	require.False(t, out.NoOp())
	// First local provider in snapshot order.
	assert.Equal(t, catalog.ProviderOllama, out.Decision.Provider)
}

func TestResolve_Idempotent(t *testing.T) {
	in := baseInput()
	first := Resolve(in)
	second := Resolve(in)
	require.False(t, first.NoOp())
	assert.Equal(t, *first.Decision, *second.Decision)
}

func TestResolve_ModelAlwaysInCatalog(t *testing.T) {
	in := baseInput()
	for _, candidates := range [][]string{nil, {"x"}, {browserFallback}, {ollamaQwen7B, phiMini}} {
		in.Candidates = candidates
		out := Resolve(in)
		require.False(t, out.NoOp())
		assert.True(t, in.Snapshot.Has(out.Decision.Provider, out.Decision.Model), "%v", out.Decision)
	}
}

func TestPreferredProvider(t *testing.T) {
	p, ok := PreferredProvider(resolverSnapshot(), storage.AccessCloud, DefaultLocalPreference, DefaultCloudPreference)
	require.True(t, ok)
	assert.Equal(t, catalog.ProviderAnthropic, p)

	_, ok = PreferredProvider(catalog.Snapshot{}, storage.AccessLocal, DefaultLocalPreference, DefaultCloudPreference)
	assert.False(t, ok)
}

func TestOutcomeString(t *testing.T) {
	out := Outcome{Decision: &Decision{Provider: "WebLLM", Model: "m"}, Reason: ReasonRouted}
	assert.Equal(t, "WebLLM/m (routed)", out.String())
	assert.Equal(t, "no-op (manual lock set)", noop(ReasonPinned, storage.AccessLocal).String())
}
