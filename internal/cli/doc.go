// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the astro command line.
//
// Commands:
//
//	astro probe              probe hardware and cache the profile
//	astro tier               show the tier and recommended models
//	astro route <text>       run the before-send trigger
//	astro session-start      run the session-start trigger
//	astro lock <p> <m>       pin a provider and model
//	astro unlock             return to automatic routing
//	astro mode <local|cloud> switch the access mode
//	astro models             list the catalog
//	astro status             show state, tier and catalog
//	astro serve              serve the HTTP API
//	astro config ...         show, init, get and set configuration
//	astro version            print version information
//
// Every command accepts --json and then prints a JSONResponse envelope.
// Errors map to the Exit* codes.
package cli
