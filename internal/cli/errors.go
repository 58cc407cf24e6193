// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/astro-chat/astro-router/internal/config"
	"github.com/astro-chat/astro-router/internal/guard"
	"github.com/astro-chat/astro-router/internal/offline"
	"github.com/astro-chat/astro-router/internal/router"
	"github.com/astro-chat/astro-router/internal/storage"
)

// Commands always return errors; Run displays them once and maps them to an
// exit code.

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError indicates invalid arguments or flags.
	ExitUsageError  = 2
	ExitConfigError = 3
	// ExitNetworkError indicates a provider could not be reached.
	ExitNetworkError = 5
	// ExitSecurityError indicates a local-only or guardrail violation.
	ExitSecurityError = 6
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
	Hint     string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found", e.Resource)
	if e.ID != "" {
		msg += ": " + e.ID
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// ConfigError wraps a failure to load or write the configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// usageError marks argument and flag errors raised by cobra.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON envelope in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		validationErr *ValidationError
		usageErr      *usageError
		notFoundErr   *NotFoundError
		configErr     *ConfigError
		validateErrs  config.ValidateErrors
		selectionErr  *guard.SelectionError
		netErr        net.Error
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &usageErr),
		errors.Is(err, router.ErrInvalidSelection):
		return ExitUsageError
	case errors.As(err, &configErr), errors.As(err, &validateErrs):
		return ExitConfigError
	case errors.As(err, &notFoundErr), errors.Is(err, router.ErrUnknownModel),
		errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, offline.ErrCloudBlocked), errors.Is(err, offline.ErrNetworkBlocked),
		errors.Is(err, offline.ErrNonLocalhost):
		return ExitSecurityError
	case errors.As(err, &selectionErr):
		if selectionErr.Retryable {
			return ExitGeneralError
		}
		return ExitSecurityError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}
	return ExitGeneralError
}

// errorType names the error class for the JSON envelope.
func errorType(err error) string {
	switch GetExitCode(err) {
	case ExitUsageError:
		return "usage_error"
	case ExitConfigError:
		return "config_error"
	case ExitNotFoundError:
		return "not_found_error"
	case ExitSecurityError:
		var selectionErr *guard.SelectionError
		if errors.As(err, &selectionErr) {
			return "selection_error"
		}
		return "security_error"
	case ExitNetworkError:
		return "network_error"
	case ExitTimeoutError:
		return "timeout_error"
	default:
		return "generic_error"
	}
}
