// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package caching provides in-memory caches for callers that check many
// events against the same room snapshot: parsed events resolved by ID and
// per-event authorization outcomes.
package caching

import (
	"time"

	"github.com/element-hq/eventauth/event"
)

// Cache is a simple read-through cache partition.
type Cache[K comparable, V any] interface {
	Get(key K) (value V, ok bool)
	Set(key K, value V)
	Unset(key K)
}

// CacheNoMaxAge disables entry expiry.
const CacheNoMaxAge = time.Duration(0)

// EnableMetrics and DisableMetrics are friendly names for the metrics
// toggle on cache constructors.
const (
	EnableMetrics  = true
	DisableMetrics = false
)

// Caches contains every cache partition used across the process.
type Caches struct {
	ParsedEvents Cache[string, event.Event] // event ID -> parsed event
	AuthOutcomes Cache[string, bool]        // event ID -> allowed
}
