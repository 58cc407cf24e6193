// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import "fmt"

// ErrorType categorizes source errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeUnauthorized
	ErrTypeBlocked
	ErrTypeInvalidResponse
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotRunning:
		return "not_running"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeUnauthorized:
		return "unauthorized"
	case ErrTypeBlocked:
		return "blocked"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// SourceError is returned when a catalog source cannot be read.
type SourceError struct {
	Provider string
	Type     ErrorType
	Message  string
	Cause    error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}
