// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/astro-chat/astro-router/internal/offline"
)

// DefaultTimeout bounds a single catalog request.
const DefaultTimeout = 5 * time.Second

// maxCatalogBody caps the response size read from a model listing endpoint.
const maxCatalogBody = 4 << 20

// HTTPConfig holds options shared by HTTP-backed sources.
type HTTPConfig struct {
	// Provider is the provider these models belong to.
	Provider Provider

	// BaseURL is the API root, e.g. http://127.0.0.1:11434 or http://127.0.0.1:8081/v1
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout for the listing request (default: 5s)
	Timeout time.Duration

	// Client overrides the HTTP client.
	Client *http.Client
}

func (c *HTTPConfig) fillDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
}

// getJSON fetches path relative to the base URL and decodes the body into v.
func (c *HTTPConfig) getJSON(ctx context.Context, path string, v any) error {
	name := c.Provider.Name
	url := c.BaseURL + path

	if err := offline.ValidateURLForOfflineMode(url); err != nil {
		return &SourceError{Provider: name, Type: ErrTypeBlocked, Message: "catalog URL rejected", Cause: err}
	}
	if !c.Provider.Local {
		if err := offline.CheckCloudAllowed(); err != nil {
			return &SourceError{Provider: name, Type: ErrTypeBlocked, Message: "cloud provider disabled", Cause: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &SourceError{Provider: name, Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &SourceError{Provider: name, Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		return &SourceError{Provider: name, Type: ErrTypeNotRunning, Message: "not reachable", Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &SourceError{Provider: name, Type: ErrTypeUnauthorized, Message: "listing models: " + resp.Status}
	case resp.StatusCode != http.StatusOK:
		return &SourceError{Provider: name, Type: ErrTypeInvalidResponse, Message: "listing models: " + resp.Status}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCatalogBody)).Decode(v); err != nil {
		return &SourceError{Provider: name, Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}
