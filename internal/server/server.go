// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/astro-chat/astro-router/internal/catalog"
	"github.com/astro-chat/astro-router/internal/guard"
	"github.com/astro-chat/astro-router/internal/offline"
	"github.com/astro-chat/astro-router/internal/router"
	"github.com/astro-chat/astro-router/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultListen is the default loopback address.
	DefaultListen = "127.0.0.1:8790"

	// MaxTextLength bounds the message text accepted by /v1/route.
	MaxTextLength = 100000

	// MaxImageCount bounds the attachment count accepted by /v1/route.
	MaxImageCount = 64

	// DefaultMaxBodyBytes is the request body limit when none is configured.
	DefaultMaxBodyBytes = 1 << 20

	// Version is the API version reported by /health.
	Version = "0.1.0"
)

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts routing traffic since the server started.
type Stats struct {
	RouteRequests atomic.Int64
	Routed        atomic.Int64
	NoOps         atomic.Int64
	Admitted      atomic.Int64
	Rejected      atomic.Int64
	StartTime     time.Time
}

// StatsSnapshot is the JSON form of Stats.
type StatsSnapshot struct {
	RouteRequests int64 `json:"route_requests"`
	Routed        int64 `json:"routed"`
	NoOps         int64 `json:"no_ops"`
	Admitted      int64 `json:"admitted"`
	Rejected      int64 `json:"rejected"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

func (s *Stats) recordOutcome(out router.Outcome) {
	if out.NoOp() {
		s.NoOps.Add(1)
	} else {
		s.Routed.Add(1)
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		RouteRequests: s.RouteRequests.Load(),
		Routed:        s.Routed.Load(),
		NoOps:         s.NoOps.Load(),
		Admitted:      s.Admitted.Load(),
		Rejected:      s.Rejected.Load(),
		UptimeSeconds: int64(time.Since(s.StartTime).Seconds()),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Options configures the server.
type Options struct {
	Listen         string
	AllowedOrigins []string

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64
	RateBurst int

	MaxBodyBytes int64

	Logger *zerolog.Logger
}

// Server exposes the router to the chat dispatcher over loopback HTTP.
type Server struct {
	opts   Options
	router *router.Router
	guard  *guard.RateGuard
	mux    *http.ServeMux
	server *http.Server
	stats  *Stats
	logger zerolog.Logger
}

// New creates a Server. g may be nil, in which case admission uses a guard
// with the default limit.
func New(rt *router.Router, g *guard.RateGuard, opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if g == nil {
		g = guard.NewRateGuard(guard.DefaultRPMLimit)
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Server{
		opts:   opts,
		router: rt,
		guard:  g,
		mux:    http.NewServeMux(),
		stats:  &Stats{StartTime: time.Now()},
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

// Stats returns the server counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /v1/route", s.handleRoute)
	s.mux.HandleFunc("POST /v1/session/start", s.handleSessionStart)
	s.mux.HandleFunc("POST /v1/lock", s.handleLock)
	s.mux.HandleFunc("DELETE /v1/lock", s.handleUnlock)
	s.mux.HandleFunc("PUT /v1/access", s.handleAccess)
	s.mux.HandleFunc("POST /v1/admit", s.handleAdmit)
	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /v1/models", s.handleModels)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		CORSMiddleware(NewCORSConfig(s.opts.AllowedOrigins)),
	}
	if s.opts.RateLimit > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(s.opts.RateLimit, s.opts.RateBurst), s.logger))
	}
	middlewares = append(middlewares, BodyLimitMiddleware(s.opts.MaxBodyBytes))
	return Chain(middlewares...)(s.mux)
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// RouteRequest is the body of POST /v1/route.
type RouteRequest struct {
	Text       string `json:"text"`
	ImageCount int    `json:"image_count"`
	// UserAgent defaults to the request's User-Agent header.
	UserAgent string `json:"user_agent,omitempty"`
	// Catalog replaces the configured catalog for this message.
	Catalog *catalog.Snapshot `json:"catalog,omitempty"`
}

// SessionStartRequest is the body of POST /v1/session/start.
type SessionStartRequest struct {
	UserAgent string `json:"user_agent,omitempty"`
}

// LockRequest is the body of POST /v1/lock.
type LockRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// AccessRequest is the body of PUT /v1/access.
type AccessRequest struct {
	Mode string `json:"mode"`
}

// AdmitRequest is the body of POST /v1/admit.
type AdmitRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
}

// AdmitResponse reports an admitted request.
type AdmitResponse struct {
	Admitted bool   `json:"admitted"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	SessionID string        `json:"session_id"`
	LocalOnly bool          `json:"local_only"`
	Stats     StatsSnapshot `json:"stats"`
}

// ============================================================================
// ROUTING HANDLERS
// ============================================================================

// handleRoute handles POST /v1/route, the before-send trigger.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	s.stats.RouteRequests.Add(1)

	var req RouteRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if len(req.Text) > MaxTextLength {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("text exceeds maximum length of %d", MaxTextLength))
		return
	}
	if req.ImageCount < 0 || req.ImageCount > MaxImageCount {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("image_count must be between 0 and %d", MaxImageCount))
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	out := s.router.BeforeSend(r.Context(), router.MessageInput{
		Text:             req.Text,
		ImageAttachments: req.ImageCount,
		UserAgent:        req.UserAgent,
		Catalog:          req.Catalog,
	})
	s.stats.recordOutcome(out)
	s.writeJSON(w, http.StatusOK, out)
}

// handleSessionStart handles POST /v1/session/start.
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req SessionStartRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	out := s.router.SessionStart(r.Context(), router.SessionInput{UserAgent: req.UserAgent})
	s.stats.recordOutcome(out)
	s.writeJSON(w, http.StatusOK, out)
}

// ============================================================================
// USER ACTION HANDLERS
// ============================================================================

// handleLock handles POST /v1/lock.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	state, err := s.router.Pin(r.Context(), strings.TrimSpace(req.Provider), strings.TrimSpace(req.Model))
	if err != nil {
		s.writeRouterError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// handleUnlock handles DELETE /v1/lock.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	state, err := s.router.Unpin(r.Context())
	if err != nil {
		s.writeRouterError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// handleAccess handles PUT /v1/access.
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Mode) == "" {
		s.writeError(w, http.StatusBadRequest, "mode is required")
		return
	}
	mode, err := storage.ParseAccessMode(req.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.router.SwitchAccess(r.Context(), mode)
	if err != nil {
		s.writeRouterError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleAdmit handles POST /v1/admit: the OpenRouter allowlist and rate
// guard, checked right before the dispatcher sends a request.
func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req AdmitRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if req.Provider == "" || req.Model == "" {
		s.writeError(w, http.StatusBadRequest, "provider and model are required")
		return
	}

	if err := s.guard.Admit(req.Provider, req.Model, req.APIKey); err != nil {
		s.stats.Rejected.Add(1)
		var se *guard.SelectionError
		if errors.As(err, &se) {
			if se.StatusCode == http.StatusTooManyRequests {
				retry := int(math.Ceil(60 / float64(s.guard.Limit())))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
			s.writeJSON(w, se.StatusCode, map[string]interface{}{
				"error": map[string]interface{}{
					"message":   se.Message,
					"type":      "selection_error",
					"code":      se.StatusCode,
					"provider":  se.Provider,
					"retryable": se.Retryable,
				},
			})
			return
		}
		s.writeError(w, http.StatusInternalServerError, "admission failed")
		return
	}

	s.stats.Admitted.Add(1)
	s.writeJSON(w, http.StatusOK, AdmitResponse{Admitted: true, Provider: req.Provider, Model: req.Model})
}

// ============================================================================
// STATUS HANDLERS
// ============================================================================

// handleStatus handles GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.router.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("status failed")
		s.writeError(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// handleModels handles GET /v1/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	snap, err := s.router.Catalog(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog read failed")
		s.writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	if snap.Providers == nil {
		snap.Providers = []catalog.Provider{}
	}
	if snap.Entries == nil {
		snap.Entries = []catalog.Entry{}
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   Version,
		SessionID: s.router.SessionID(),
		LocalOnly: offline.IsOfflineMode(),
		Stats:     s.stats.Snapshot(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Listen, err)
	}
	return s.Serve(ln)
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.server == nil {
		s.server = s.newHTTPServer()
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Str("version", Version).Msg("server started")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Listen, err)
	}
	// Created before serving so Shutdown always sees it.
	s.server = s.newHTTPServer()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	stats := s.stats.Snapshot()
	s.logger.Info().
		Int64("route_requests", stats.RouteRequests).
		Int64("routed", stats.Routed).
		Msg("server shutting down")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// decode reads a JSON body into v. An empty body is accepted when optional.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds maximum size of %d bytes", tooLarge.Limit))
		return false
	}
	s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("invalid request body")
	s.writeError(w, http.StatusBadRequest, "invalid request format")
	return false
}

// writeRouterError maps router and store errors to HTTP statuses.
func (s *Server) writeRouterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, router.ErrInvalidSelection):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, router.ErrUnknownModel):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, offline.ErrCloudBlocked):
		s.writeError(w, http.StatusForbidden, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "invalid_request_error",
			"code":    status,
		},
	})
}
