// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-chat/astro-router/internal/offline"
)

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func testSnapshot() Snapshot {
	return Snapshot{
		Providers: []Provider{
			{Name: ProviderWebLLM, Local: true},
			{Name: ProviderOpenAI, Local: false},
			{Name: ProviderOllama, Local: true},
		},
		Entries: []Entry{
			{Provider: ProviderWebLLM, ModelID: "a"},
			{Provider: ProviderOpenAI, ModelID: "gpt"},
			{Provider: ProviderWebLLM, ModelID: "b"},
		},
	}
}

func TestSnapshot_Queries(t *testing.T) {
	s := testSnapshot()

	p, ok := s.Provider(ProviderOllama)
	require.True(t, ok)
	assert.True(t, p.Local)
	_, ok = s.Provider("Nope")
	assert.False(t, ok)

	local := s.Partition(true)
	require.Len(t, local, 2)
	assert.Equal(t, ProviderWebLLM, local[0].Name)
	assert.Equal(t, ProviderOllama, local[1].Name)
	assert.Len(t, s.Partition(false), 1)

	assert.Equal(t, []string{"a", "b"}, s.Models(ProviderWebLLM))
	assert.Empty(t, s.Models(ProviderOllama))
	assert.True(t, s.Has(ProviderOpenAI, "gpt"))
	assert.False(t, s.Has(ProviderWebLLM, "gpt"))
}

func TestSnapshot_Merge(t *testing.T) {
	a := testSnapshot()
	b := Snapshot{
		Providers: []Provider{{Name: ProviderWebLLM, Local: true}, {Name: ProviderAnthropic}},
		Entries:   []Entry{{Provider: ProviderWebLLM, ModelID: "a"}, {Provider: ProviderAnthropic, ModelID: "claude"}},
	}
	m := a.Merge(b)
	assert.Len(t, m.Providers, 4)
	assert.Len(t, m.Entries, 4)
	assert.Equal(t, ProviderAnthropic, m.Providers[3].Name)
	// Inputs are untouched.
	assert.Len(t, a.Providers, 3)
}

func TestIsLocalProvider(t *testing.T) {
	for _, name := range []string{ProviderWebLLM, ProviderAstroLocal, ProviderLMStudio, ProviderOpenAILike, ProviderOllama} {
		assert.True(t, IsLocalProvider(name), name)
	}
	for _, name := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderOpenRouter, "Mystery"} {
		assert.False(t, IsLocalProvider(name), name)
	}
}

// =============================================================================
// SOURCE TESTS
// =============================================================================

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(Provider{Name: ProviderAnthropic}, "claude-sonnet-4-5", "claude-opus-4-1")
	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-sonnet-4-5", "claude-opus-4-1"}, snap.Models(ProviderAnthropic))

	web, err := NewWebLLMSource().Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, web.Has(ProviderWebLLM, "Llama-3.2-1B-Instruct-q4f16_1-MLC"))
}

func TestOllamaSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[
			{"name":"qwen2.5-coder:7b","details":{"parameter_size":"7.6B","quantization_level":"Q4_K_M"}},
			{"name":"llama3.2:1b"}
		]}`))
	}))
	defer srv.Close()

	snap, err := NewOllamaSource(HTTPConfig{BaseURL: srv.URL}).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Providers, 1)
	assert.Equal(t, ProviderOllama, snap.Providers[0].Name)
	assert.True(t, snap.Providers[0].Local)
	assert.Equal(t, []string{"qwen2.5-coder:7b", "llama3.2:1b"}, snap.Models(ProviderOllama))
	assert.Equal(t, "7.6B Q4_K_M", snap.Entries[0].Label)
}

func TestOpenAISource_SendsKeyAndFallsBack(t *testing.T) {
	var gotAuth string
	body := `{"data":[{"id":"m1"},{"id":""},{"id":"m2"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	src := NewOpenAISource(HTTPConfig{
		Provider: Provider{Name: ProviderLMStudio, Local: true},
		BaseURL:  srv.URL + "/v1/",
		APIKey:   "secret",
	}, Entry{ModelID: "fallback"})

	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, []string{"m1", "m2"}, snap.Models(ProviderLMStudio))

	body = `{"data":[]}`
	snap, err = src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback"}, snap.Models(ProviderLMStudio))
}

func TestAstroLocalSource_FallbackModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/models"))
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer srv.Close()

	snap, err := NewAstroLocalSource(srv.URL + "/v1").Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Models(ProviderAstroLocal), len(AstroLocalModels))
	assert.True(t, snap.Has(ProviderAstroLocal, "Qwen2.5-Coder-32B-Instruct-q4_k_m"))
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, "", ErrTypeUnauthorized},
		{"server error", http.StatusInternalServerError, "", ErrTypeInvalidResponse},
		{"bad json", http.StatusOK, "{nope", ErrTypeInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllamaSource(HTTPConfig{BaseURL: srv.URL}).Snapshot(context.Background())
			var se *SourceError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.want, se.Type)
			assert.Equal(t, ProviderOllama, se.Provider)
		})
	}
}

func TestHTTPSource_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaSource(HTTPConfig{BaseURL: url}).Snapshot(context.Background())
	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrTypeNotRunning, se.Type)
}

func TestHTTPSource_LocalOnlyBlocksCloud(t *testing.T) {
	original := offline.IsOfflineMode()
	defer offline.SetOfflineMode(original)
	offline.SetOfflineMode(true)

	src := NewOpenAISource(HTTPConfig{
		Provider: Provider{Name: ProviderOpenRouter},
		BaseURL:  DefaultOpenRouterURL,
		APIKey:   "k",
	})
	_, err := src.Snapshot(context.Background())
	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrTypeBlocked, se.Type)
	assert.ErrorIs(t, err, offline.ErrNonLocalhost)
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestMulti_SkipsFailingSources(t *testing.T) {
	failing := SourceFunc(func(ctx context.Context) (Snapshot, error) {
		return Snapshot{}, &SourceError{Provider: ProviderOllama, Type: ErrTypeNotRunning, Message: "down"}
	})
	broken := SourceFunc(func(ctx context.Context) (Snapshot, error) {
		return Snapshot{}, errors.New("boom")
	})
	m := NewMulti(
		NewStaticSource(Provider{Name: ProviderAstroLocal, Local: true}, "x"),
		failing,
		broken,
	)
	m.Add(NewWebLLMSource())
	assert.Equal(t, 4, m.Len())

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Providers, 2)
	assert.Equal(t, ProviderAstroLocal, snap.Providers[0].Name)
	assert.Equal(t, ProviderWebLLM, snap.Providers[1].Name)
	_, ok := snap.Provider(ProviderOllama)
	assert.False(t, ok)
}

func TestMulti_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMulti(NewWebLLMSource()).Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilter(t *testing.T) {
	f := Filter{
		Source: NewStaticSource(Provider{Name: ProviderOpenRouter}, "keep/me", "drop/me"),
		Keep:   func(e Entry) bool { return strings.HasPrefix(e.ModelID, "keep") },
	}
	snap, err := f.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep/me"}, snap.Models(ProviderOpenRouter))
	assert.Len(t, snap.Providers, 1)
}

func TestFixed(t *testing.T) {
	snap, err := Fixed(testSnapshot()).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Providers, 3)
}
