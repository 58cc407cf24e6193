// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"

	"github.com/astro-chat/astro-router/internal/detect"
	"github.com/astro-chat/astro-router/internal/storage"
)

// ============================================================================
// CONTENT CLASS
// ============================================================================

// ContentClass separates messages that need a vision-capable model.
type ContentClass int

const (
	ContentGeneral ContentClass = iota
	ContentVision
)

// String returns the string representation of the content class.
func (c ContentClass) String() string {
	if c == ContentVision {
		return "vision"
	}
	return "general"
}

// ============================================================================
// TASK WEIGHT
// ============================================================================

// TaskWeight is the light/default split derived from prompt hints.
type TaskWeight int

const (
	// TaskDefault uses the tier's balanced list.
	TaskDefault TaskWeight = iota
	// TaskLight prefers small, fast models.
	TaskLight
)

// String returns the string representation of the task weight.
func (w TaskWeight) String() string {
	if w == TaskLight {
		return "light"
	}
	return "default"
}

// ============================================================================
// CANDIDATE QUERY
// ============================================================================

// CandidateQuery carries the signals the candidate selector works from.
type CandidateQuery struct {
	Tier   detect.Tier
	Mobile bool

	// ImageAttachments is the number of images attached to the message.
	ImageAttachments int

	// Prompt is the raw message text; it is normalized before matching.
	Prompt string
}

// ListKind names which candidate list was chosen.
type ListKind string

const (
	ListVision  ListKind = "vision"
	ListMobile  ListKind = "mobile"
	ListLight   ListKind = "light"
	ListDefault ListKind = "default"
)

// Selection is the selector's answer: an ordered candidate list and why.
type Selection struct {
	Kind       ListKind     `json:"kind"`
	Tier       detect.Tier  `json:"tier"`
	Content    ContentClass `json:"-"`
	Weight     TaskWeight   `json:"-"`
	Candidates []string     `json:"candidates"`
}

// ============================================================================
// ROUTING DECISION
// ============================================================================

// Decision is the provider/model pair the chat dispatcher should use.
type Decision struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// String returns "provider/model".
func (d Decision) String() string {
	return fmt.Sprintf("%s/%s", d.Provider, d.Model)
}

// Reason explains an outcome.
type Reason string

const (
	ReasonRouted        Reason = "routed"
	ReasonResumed       Reason = "resumed saved selection"
	ReasonPinned        Reason = "manual lock set"
	ReasonNoProvider    Reason = "no available provider for access mode"
	ReasonEmptyCatalog  Reason = "provider has no models"
	ReasonCatalogError  Reason = "catalog unavailable"
	ReasonNoProfile     Reason = "no cached hardware profile"
	ReasonStoreError    Reason = "state store unavailable"
	ReasonAlreadyRan    Reason = "session already started"
	ReasonAccessChanged Reason = "access mode changed"
)

// Outcome is the result of a routing trigger. A nil Decision is a no-op: the
// dispatcher keeps whatever provider/model is already active.
type Outcome struct {
	Decision  *Decision          `json:"decision"`
	Reason    Reason             `json:"reason"`
	Access    storage.AccessMode `json:"access"`
	Selection *Selection         `json:"selection,omitempty"`
}

// NoOp reports whether the outcome leaves the active selection unchanged.
func (o Outcome) NoOp() bool {
	return o.Decision == nil
}

// String returns a one-line summary.
func (o Outcome) String() string {
	if o.Decision == nil {
		return fmt.Sprintf("no-op (%s)", o.Reason)
	}
	return fmt.Sprintf("%s (%s)", o.Decision, o.Reason)
}

func noop(reason Reason, access storage.AccessMode) Outcome {
	return Outcome{Reason: reason, Access: access}
}
