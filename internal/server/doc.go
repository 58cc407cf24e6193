// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the model router to the chat front-end over a
// loopback HTTP API.
//
// # Endpoints
//
//   - POST   /v1/route          - before-send trigger, returns the routing outcome
//   - POST   /v1/session/start  - session-start trigger
//   - POST   /v1/lock           - pin a provider/model pair (manual lock)
//   - DELETE /v1/lock           - clear the manual lock
//   - PUT    /v1/access         - switch between local and cloud
//   - POST   /v1/admit          - OpenRouter allowlist and rate guard
//   - GET    /v1/status         - saved state, tier and catalog summary
//   - GET    /v1/models         - current catalog snapshot
//   - GET    /health            - liveness and counters
//
// A no-op outcome is returned with status 200 and a null decision; the
// dispatcher then keeps its active provider and model.
//
// # Middleware
//
// Panic recovery, request ids, zerolog request logging, security headers,
// CORS for the configured front-end origins, per-IP rate limiting and a
// request body limit.
//
// # Usage
//
//	srv := server.New(rt, guard.NewRateGuard(cfg.Guard.OpenRouterRPMLimit), server.Options{
//		Listen:         cfg.Server.Listen,
//		AllowedOrigins: cfg.Server.AllowedOrigins,
//	})
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal().Err(err).Msg("server failed")
//	}
package server
