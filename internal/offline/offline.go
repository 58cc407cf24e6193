// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements the local-only deployment mode.
//
// In local-only mode no model traffic may leave the machine: cloud providers
// are removed from the catalog, catalog endpoints must be loopback addresses,
// and the router is held in local access mode.
package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNetworkBlocked is returned when a URL cannot be parsed or is otherwise refused.
	ErrNetworkBlocked = errors.New("local-only: network operation blocked")

	// ErrNonLocalhost is returned when a non-loopback host is used in local-only mode.
	ErrNonLocalhost = errors.New("local-only: only localhost/127.0.0.1 connections allowed")

	// ErrCloudBlocked is returned when a cloud provider is used in local-only mode.
	ErrCloudBlocked = errors.New("local-only: cloud providers disabled")

	// ErrInvalidURLScheme is returned when URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

var (
	offlineMode      bool
	offlineModeMutex sync.RWMutex
)

// SetOfflineMode enables or disables local-only mode globally.
func SetOfflineMode(enabled bool) {
	offlineModeMutex.Lock()
	defer offlineModeMutex.Unlock()
	offlineMode = enabled
}

// IsOfflineMode returns true if local-only mode is enabled.
func IsOfflineMode() bool {
	offlineModeMutex.RLock()
	defer offlineModeMutex.RUnlock()
	return offlineMode
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to localhost.
// Accepts "localhost", any 127.0.0.0/8 address and every IPv6 loopback form,
// with or without a port.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURLForOfflineMode checks a catalog or provider URL.
// The scheme must always be http or https; in local-only mode the host must
// also be a loopback address.
func ValidateURLForOfflineMode(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrNetworkBlocked
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}

	if IsOfflineMode() && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// CheckCloudAllowed returns an error if cloud providers are not allowed.
func CheckCloudAllowed() error {
	if IsOfflineMode() {
		return ErrCloudBlocked
	}
	return nil
}

// StatusIndicator returns "LOCAL-ONLY" when the mode is active.
func StatusIndicator() string {
	if IsOfflineMode() {
		return "LOCAL-ONLY"
	}
	return ""
}
