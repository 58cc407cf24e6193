// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the router packages:
// crash-safe file writes for config and state files, and string truncation
// for log fields and terminal tables.
package util
