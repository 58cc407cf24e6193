// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/astro-chat/astro-router/internal/catalog"
	"github.com/astro-chat/astro-router/internal/detect"
	"github.com/astro-chat/astro-router/internal/offline"
	"github.com/astro-chat/astro-router/internal/storage"
	"github.com/astro-chat/astro-router/internal/util"
)

// promptLogRunes bounds how much of a prompt reaches the debug log.
const promptLogRunes = 60

var (
	// ErrUnknownModel is returned when pinning a pair the catalog does not serve.
	ErrUnknownModel = errors.New("model not available from provider")

	// ErrInvalidSelection is returned when pinning with an empty provider or model.
	ErrInvalidSelection = errors.New("provider and model are required")
)

// ============================================================================
// INPUTS
// ============================================================================

// SessionInput carries the signals available when a session starts.
type SessionInput struct {
	UserAgent string
}

// MessageInput carries one outgoing message.
type MessageInput struct {
	Text             string
	ImageAttachments int
	UserAgent        string

	// Catalog, when set, replaces the configured source for this message.
	// The browser uses it to report which in-browser models are loaded.
	Catalog *catalog.Snapshot
}

// ============================================================================
// ROUTER
// ============================================================================

// Router runs the session-start and before-send triggers against a state
// store and a catalog source.
type Router struct {
	store     storage.Store
	source    catalog.Source
	logger    zerolog.Logger
	now       func() time.Time
	localPref []string
	cloudPref []string
	sessionID string

	// mu serialises read-resolve-write so the last trigger wins cleanly.
	mu sync.Mutex

	// startMu guards the session-start latch. It is taken before mu.
	startMu      sync.Mutex
	started      bool
	startOutcome Outcome
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithPreferences overrides the provider preference orders. A nil slice
// keeps the default for that partition.
func WithPreferences(local, cloud []string) Option {
	return func(r *Router) {
		if local != nil {
			r.localPref = append([]string(nil), local...)
		}
		if cloud != nil {
			r.cloudPref = append([]string(nil), cloud...)
		}
	}
}

// WithClock sets the time source used for persisted timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a Router.
func New(store storage.Store, source catalog.Source, opts ...Option) *Router {
	r := &Router{
		store:     store,
		source:    source,
		logger:    log.Logger,
		now:       time.Now,
		localPref: append([]string(nil), DefaultLocalPreference...),
		cloudPref: append([]string(nil), DefaultCloudPreference...),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "router").Str("session", r.sessionID).Logger()
	return r
}

// SessionID identifies this Router instance in logs.
func (r *Router) SessionID() string {
	return r.sessionID
}

// SetSource replaces the catalog source, e.g. after the config changed.
func (r *Router) SetSource(src catalog.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = src
}

// Catalog reads the current catalog from the configured source.
func (r *Router) Catalog(ctx context.Context) (catalog.Snapshot, error) {
	r.mu.Lock()
	src := r.source
	r.mu.Unlock()
	return r.readCatalog(ctx, src, nil)
}

// ============================================================================
// TRIGGERS
// ============================================================================

// SessionStart runs the session-start trigger. Once it settles, later calls
// return the settled outcome without doing any work. It settles on a
// decision, a pinned selection or a missing hardware profile; when the
// catalog or the store is not ready yet the next call tries again.
//
// It is a no-op when the selection is pinned or no hardware profile is
// cached. A saved selection that is still served by the catalog in the
// current access partition is resumed as is.
func (r *Router) SessionStart(ctx context.Context, in SessionInput) Outcome {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	if r.started {
		out := r.startOutcome
		if out.Decision == nil {
			out.Reason = ReasonAlreadyRan
		}
		return out
	}

	out := r.sessionStart(ctx, in)
	if settlesSession(out) {
		r.started = true
		r.startOutcome = out
	}
	return out
}

// settlesSession reports whether a session-start outcome is final. Outcomes
// caused by a catalog or store that is not ready yet are not.
func settlesSession(out Outcome) bool {
	switch out.Reason {
	case ReasonNoProvider, ReasonEmptyCatalog, ReasonCatalogError, ReasonStoreError:
		return false
	}
	return true
}

func (r *Router) sessionStart(ctx context.Context, in SessionInput) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.loadState(ctx)
	if !ok {
		return noop(ReasonStoreError, storage.AccessLocal)
	}
	access := effectiveAccess(state.Access)
	if state.Pinned() {
		return noop(ReasonPinned, access)
	}

	profile, ok := r.loadProfile(ctx)
	if !ok {
		return noop(ReasonNoProfile, access)
	}

	snap, err := r.readCatalog(ctx, r.source, nil)
	if err != nil {
		r.logger.Warn().Err(err).Msg("catalog unavailable at session start")
		return noop(ReasonCatalogError, access)
	}

	if state.HasSelection() && resumable(snap, state, access) {
		r.logger.Debug().Str("provider", state.Provider).Str("model", state.Model).Msg("resuming saved selection")
		return Outcome{
			Decision: &Decision{Provider: state.Provider, Model: state.Model},
			Reason:   ReasonResumed,
			Access:   access,
		}
	}

	sel := SelectCandidates(CandidateQuery{
		Tier:   detect.ClassifyTier(profile),
		Mobile: detect.IsMobileUserAgent(in.UserAgent),
	})
	return r.resolveAndSave(ctx, state, access, sel, snap, "")
}

// BeforeSend runs the per-message trigger.
//
// Without a cached hardware profile the eco tier is assumed. The outcome is
// a no-op when the selection is pinned or nothing can be resolved.
func (r *Router) BeforeSend(ctx context.Context, in MessageInput) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.loadState(ctx)
	if !ok {
		return noop(ReasonStoreError, storage.AccessLocal)
	}
	access := effectiveAccess(state.Access)
	if state.Pinned() {
		return noop(ReasonPinned, access)
	}

	tier := detect.TierEco
	if profile, ok := r.loadProfile(ctx); ok {
		tier = detect.ClassifyTier(profile)
	}

	snap, err := r.readCatalog(ctx, r.source, in.Catalog)
	if err != nil {
		r.logger.Warn().Err(err).Msg("catalog unavailable before send")
		return noop(ReasonCatalogError, access)
	}

	sel := SelectCandidates(CandidateQuery{
		Tier:             tier,
		Mobile:           detect.IsMobileUserAgent(in.UserAgent),
		ImageAttachments: in.ImageAttachments,
		Prompt:           in.Text,
	})
	return r.resolveAndSave(ctx, state, access, sel, snap, in.Text)
}

func (r *Router) resolveAndSave(ctx context.Context, state storage.RoutingState, access storage.AccessMode, sel Selection, snap catalog.Snapshot, prompt string) Outcome {
	out := Resolve(ResolveInput{
		Candidates:      sel.Candidates,
		Selection:       state.Mode,
		Access:          access,
		Active:          state.Provider,
		Snapshot:        snap,
		LocalPreference: r.localPref,
		CloudPreference: r.cloudPref,
	})
	out.Selection = &sel

	ev := r.logger.Debug().
		Str("prompt", util.TruncateRunes(prompt, promptLogRunes)).
		Str("tier", sel.Tier.String()).
		Str("list", string(sel.Kind)).
		Str("reason", string(out.Reason))
	if out.NoOp() {
		ev.Msg("routing no-op")
		return out
	}
	ev.Str("provider", out.Decision.Provider).Str("model", out.Decision.Model).Msg("routed")

	state.Access = access
	state.Provider = out.Decision.Provider
	state.Model = out.Decision.Model
	state.UpdatedAt = r.now().UTC()
	if err := storage.SaveRoutingState(ctx, r.store, state); err != nil {
		// The decision still applies to this message.
		r.logger.Warn().Err(err).Msg("failed to persist routing decision")
	}
	return out
}

// ============================================================================
// EXPLICIT USER ACTIONS
// ============================================================================

// Pin sets the manual lock on a provider/model pair the catalog serves.
// The access mode follows the provider's partition.
func (r *Router) Pin(ctx context.Context, provider, model string) (storage.RoutingState, error) {
	if provider == "" || model == "" {
		return storage.RoutingState{}, ErrInvalidSelection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.readCatalog(ctx, r.source, nil)
	if err != nil {
		return storage.RoutingState{}, fmt.Errorf("reading catalog: %w", err)
	}
	p, ok := snap.Provider(provider)
	if !ok || !snap.Has(provider, model) {
		return storage.RoutingState{}, fmt.Errorf("%w: %s/%s", ErrUnknownModel, provider, model)
	}

	access := storage.AccessLocal
	if !p.Local {
		if err := offline.CheckCloudAllowed(); err != nil {
			return storage.RoutingState{}, err
		}
		access = storage.AccessCloud
	}

	state := storage.RoutingState{
		Mode:      storage.SelectionPinned,
		Access:    access,
		Provider:  provider,
		Model:     model,
		UpdatedAt: r.now().UTC(),
	}
	if err := storage.SaveRoutingState(ctx, r.store, state); err != nil {
		return storage.RoutingState{}, err
	}
	r.logger.Info().Str("provider", provider).Str("model", model).Msg("selection pinned")
	return state, nil
}

// Unpin clears the manual lock. The saved pair stays as the active selection.
func (r *Router) Unpin(ctx context.Context) (storage.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := storage.LoadRoutingState(ctx, r.store)
	if err != nil && !errors.Is(err, storage.ErrCorrupt) {
		return storage.RoutingState{}, err
	}
	state.Mode = storage.SelectionAuto
	state.Access = effectiveAccess(state.Access)
	state.UpdatedAt = r.now().UTC()
	if err := storage.SaveRoutingState(ctx, r.store, state); err != nil {
		return storage.RoutingState{}, err
	}
	r.logger.Info().Msg("selection unpinned")
	return state, nil
}

// SwitchAccess moves between local and cloud. Cloud pins the selection
// since cloud models are picked by the user; local returns to automatic
// routing. The active provider moves to the new partition's preferred
// provider and its first model. With no provider available in the new
// partition the mode still changes and the outcome is a no-op.
func (r *Router) SwitchAccess(ctx context.Context, mode storage.AccessMode) (Outcome, error) {
	if mode == storage.AccessCloud {
		if err := offline.CheckCloudAllowed(); err != nil {
			return Outcome{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := storage.LoadRoutingState(ctx, r.store)
	if err != nil && !errors.Is(err, storage.ErrCorrupt) {
		return Outcome{}, err
	}
	state.Access = mode
	state.Mode = storage.SelectionAuto
	if mode == storage.AccessCloud {
		state.Mode = storage.SelectionPinned
	}

	out := noop(ReasonNoProvider, mode)
	snap, err := r.readCatalog(ctx, r.source, nil)
	if err != nil {
		r.logger.Warn().Err(err).Msg("catalog unavailable during access switch")
		out.Reason = ReasonCatalogError
	} else if provider, ok := PreferredProvider(snap, mode, r.localPref, r.cloudPref); ok {
		if models := snap.Models(provider); len(models) > 0 {
			state.Provider, state.Model = provider, models[0]
			out = Outcome{
				Decision: &Decision{Provider: provider, Model: models[0]},
				Reason:   ReasonAccessChanged,
				Access:   mode,
			}
		} else {
			out.Reason = ReasonEmptyCatalog
		}
	}
	if out.NoOp() {
		// The old pair belongs to the other partition.
		state.Provider, state.Model = "", ""
	}

	state.UpdatedAt = r.now().UTC()
	if err := storage.SaveRoutingState(ctx, r.store, state); err != nil {
		return Outcome{}, err
	}
	r.logger.Info().Str("access", mode.String()).Str("outcome", out.String()).Msg("access mode changed")
	return out, nil
}

// ============================================================================
// STATUS
// ============================================================================

// Status summarises the router's persisted state and current catalog.
type Status struct {
	SessionID string                  `json:"session_id"`
	State     storage.RoutingState    `json:"state"`
	Profile   *detect.HardwareProfile `json:"profile,omitempty"`
	Tier      *detect.Tier            `json:"tier,omitempty"`
	LocalOnly bool                    `json:"local_only"`
	Providers []catalog.Provider      `json:"providers"`
	Models    int                     `json:"models"`

	// CatalogError is set when the catalog could not be read.
	CatalogError string `json:"catalog_error,omitempty"`
}

// Status reports the current routing state. Only a failing store is an error.
func (r *Router) Status(ctx context.Context) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{SessionID: r.sessionID, LocalOnly: offline.IsOfflineMode()}

	state, err := storage.LoadRoutingState(ctx, r.store)
	if err != nil && !errors.Is(err, storage.ErrCorrupt) {
		return Status{}, err
	}
	state.Access = effectiveAccess(state.Access)
	st.State = state

	if profile, err := storage.LoadHardware(ctx, r.store); err == nil {
		tier := detect.ClassifyTier(profile)
		st.Profile = &profile
		st.Tier = &tier
	}

	snap, err := r.readCatalog(ctx, r.source, nil)
	if err != nil {
		st.CatalogError = err.Error()
	} else {
		st.Providers = snap.Providers
		st.Models = len(snap.Entries)
	}
	return st, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// ProbeAndCache probes the hardware and stores the profile and its tier.
func ProbeAndCache(ctx context.Context, store storage.Store, prober detect.Prober) (detect.HardwareProfile, detect.Tier, error) {
	profile, err := prober.Probe(ctx)
	if err != nil {
		return detect.HardwareProfile{}, detect.TierEco, fmt.Errorf("probing hardware: %w", err)
	}
	if err := storage.SaveHardware(ctx, store, profile); err != nil {
		return profile, detect.TierEco, fmt.Errorf("caching hardware profile: %w", err)
	}
	return profile, detect.ClassifyTier(profile), nil
}

// loadState reads the routing state. A corrupt record is treated as absent.
func (r *Router) loadState(ctx context.Context) (storage.RoutingState, bool) {
	state, err := storage.LoadRoutingState(ctx, r.store)
	switch {
	case err == nil:
		return state, true
	case errors.Is(err, storage.ErrCorrupt):
		r.logger.Warn().Err(err).Msg("discarding corrupt routing state")
		return storage.RoutingState{}, true
	default:
		r.logger.Warn().Err(err).Msg("routing state unavailable")
		return storage.RoutingState{}, false
	}
}

// loadProfile reads the cached hardware profile. A corrupt profile is
// removed and treated as absent.
func (r *Router) loadProfile(ctx context.Context) (detect.HardwareProfile, bool) {
	profile, err := storage.LoadHardware(ctx, r.store)
	switch {
	case err == nil:
		return profile, true
	case errors.Is(err, storage.ErrNotFound):
		return detect.HardwareProfile{}, false
	case errors.Is(err, storage.ErrCorrupt):
		r.logger.Warn().Err(err).Msg("discarding corrupt hardware profile")
		if derr := storage.DiscardHardware(ctx, r.store); derr != nil {
			r.logger.Warn().Err(derr).Msg("failed to discard hardware profile")
		}
		return detect.HardwareProfile{}, false
	default:
		r.logger.Warn().Err(err).Msg("hardware profile unavailable")
		return detect.HardwareProfile{}, false
	}
}

// readCatalog returns override when set, otherwise a fresh snapshot from src.
func (r *Router) readCatalog(ctx context.Context, src catalog.Source, override *catalog.Snapshot) (catalog.Snapshot, error) {
	if override != nil {
		snap := *override
		if offline.IsOfflineMode() {
			snap = catalog.Snapshot{Providers: snap.Partition(true), Entries: localEntries(snap)}
		}
		return snap, nil
	}
	if src == nil {
		return catalog.Snapshot{}, errors.New("no catalog source configured")
	}
	return src.Snapshot(ctx)
}

func localEntries(snap catalog.Snapshot) []catalog.Entry {
	var out []catalog.Entry
	for _, e := range snap.Entries {
		if p, ok := snap.Provider(e.Provider); ok && p.Local {
			out = append(out, e)
		}
	}
	return out
}

// resumable reports whether a saved pair is still valid.
func resumable(snap catalog.Snapshot, state storage.RoutingState, access storage.AccessMode) bool {
	p, ok := snap.Provider(state.Provider)
	if !ok || p.Local != (access == storage.AccessLocal) {
		return false
	}
	return snap.Has(state.Provider, state.Model)
}

// effectiveAccess forces local access in local-only deployments.
func effectiveAccess(mode storage.AccessMode) storage.AccessMode {
	if offline.IsOfflineMode() {
		return storage.AccessLocal
	}
	return mode
}
