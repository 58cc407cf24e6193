// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ============================================================================
// HINT TABLES
// ============================================================================

// ImageHints mark a prompt as needing a vision model.
var ImageHints = []string{"image", "vision", "screenshot", "photo", "ocr", "diagram", "analyze picture"}

// LightHints mark a prompt as a small task.
var LightHints = []string{"scaffold", "boilerplate", "template", "quick", "outline", "summarize", "summarise", "draft"}

// HeavyHints mark a prompt as a demanding task. They override LightHints.
var HeavyHints = []string{"refactor", "architecture", "optimize", "optimise", "debug", "migration", "complex", "performance", "production"}

// ============================================================================
// CLASSIFICATION FUNCTIONS
// ============================================================================

// NormalizePrompt folds compatibility characters (full-width letters,
// ligatures) with NFKC and lowercases the result.
func NormalizePrompt(prompt string) string {
	return strings.ToLower(norm.NFKC.String(prompt))
}

// containsAny reports whether s contains any hint. s must be normalized.
func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// HasImageContext reports whether a message carries images or asks about one.
func HasImageContext(imageAttachments int, prompt string) bool {
	if imageAttachments > 0 {
		return true
	}
	return containsAny(NormalizePrompt(prompt), ImageHints)
}

// ClassifyContent returns the content class of a message.
func ClassifyContent(imageAttachments int, prompt string) ContentClass {
	if HasImageContext(imageAttachments, prompt) {
		return ContentVision
	}
	return ContentGeneral
}

// ClassifyTaskWeight returns TaskLight when the prompt has a light hint and
// no heavy hint. Both or neither yield TaskDefault.
func ClassifyTaskWeight(prompt string) TaskWeight {
	p := NormalizePrompt(prompt)
	if containsAny(p, LightHints) && !containsAny(p, HeavyHints) {
		return TaskLight
	}
	return TaskDefault
}
