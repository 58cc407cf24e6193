// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"github.com/astro-chat/astro-router/internal/catalog"
	"github.com/astro-chat/astro-router/internal/storage"
)

// Default provider preference orders.
var (
	DefaultLocalPreference = []string{
		catalog.ProviderAstroLocal,
		catalog.ProviderWebLLM,
		catalog.ProviderLMStudio,
		catalog.ProviderOpenAILike,
		catalog.ProviderOllama,
	}
	DefaultCloudPreference = []string{
		catalog.ProviderOpenAI,
		catalog.ProviderAnthropic,
		catalog.ProviderGoogle,
		catalog.ProviderOpenRouter,
	}
)

// ResolveInput is everything the resolver looks at.
type ResolveInput struct {
	Candidates []string
	Selection  storage.SelectionMode
	Access     storage.AccessMode

	// Active is the provider currently in use, empty if none.
	Active string

	Snapshot        catalog.Snapshot
	LocalPreference []string
	CloudPreference []string
}

// Resolve turns a candidate list into a provider/model decision.
//
// A pinned selection is never overwritten. Every case that cannot be
// resolved (no provider in the access partition, provider without models)
// yields a no-op so the active selection stays in place.
func Resolve(in ResolveInput) Outcome {
	if in.Selection == storage.SelectionPinned {
		return noop(ReasonPinned, in.Access)
	}

	provider, ok := targetProvider(in)
	if !ok {
		return noop(ReasonNoProvider, in.Access)
	}

	model, ok := pickModel(in.Candidates, in.Snapshot.Models(provider))
	if !ok {
		return noop(ReasonEmptyCatalog, in.Access)
	}

	return Outcome{
		Decision: &Decision{Provider: provider, Model: model},
		Reason:   ReasonRouted,
		Access:   in.Access,
	}
}

// targetProvider keeps the active provider when it is available in the
// access partition, else walks the preference order, else takes the first
// available provider of the partition.
func targetProvider(in ResolveInput) (string, bool) {
	local := in.Access == storage.AccessLocal
	partition := in.Snapshot.Partition(local)
	if len(partition) == 0 {
		return "", false
	}

	inPartition := func(name string) bool {
		for _, p := range partition {
			if p.Name == name {
				return true
			}
		}
		return false
	}

	if in.Active != "" && inPartition(in.Active) {
		return in.Active, true
	}

	pref := in.CloudPreference
	if local {
		pref = in.LocalPreference
	}
	for _, name := range pref {
		if inPartition(name) {
			return name, true
		}
	}
	return partition[0].Name, true
}

// pickModel returns the first candidate the provider serves, or the
// provider's first model.
func pickModel(candidates, models []string) (string, bool) {
	if len(models) == 0 {
		return "", false
	}
	served := make(map[string]struct{}, len(models))
	for _, m := range models {
		served[m] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := served[c]; ok {
			return c, true
		}
	}
	return models[0], true
}

// PreferredProvider returns the provider a mode switch moves to: the first
// preference present in the partition, else the partition's first provider.
func PreferredProvider(snap catalog.Snapshot, access storage.AccessMode, localPref, cloudPref []string) (string, bool) {
	return targetProvider(ResolveInput{
		Access:          access,
		Snapshot:        snap,
		LocalPreference: localPref,
		CloudPreference: cloudPref,
	})
}
