// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router picks the provider and model a chat message is sent to.
//
// Routing runs at two trigger points: once when a session starts and once
// before each outgoing message. Both go through the same pipeline:
//
//	hardware tier + message signals -> SelectCandidates -> Resolve -> persist
//
// # Key Types
//
//   - Router: stateful entry point holding the store, catalog source and logger
//   - Selection: ordered candidate model list and the reason it was chosen
//   - Decision: the provider/model pair to dispatch to
//   - Outcome: a Decision or a no-op, with a Reason
//
// # Manual Lock
//
// A pinned selection is never overwritten. Routing on a pinned state is a
// no-op; only Pin, Unpin and SwitchAccess change it.
//
// # Failure Handling
//
// Routing never blocks a message. Store and catalog failures, a missing or
// corrupt hardware profile, and an empty provider catalog all produce a
// no-op Outcome, and the dispatcher keeps the active selection.
//
// # Usage
//
//	r := router.New(store, source, router.WithLogger(logger))
//	r.SessionStart(ctx, router.SessionInput{UserAgent: ua})
//	out := r.BeforeSend(ctx, router.MessageInput{Text: prompt})
//	if !out.NoOp() {
//	    dispatch(out.Decision.Provider, out.Decision.Model)
//	}
package router
