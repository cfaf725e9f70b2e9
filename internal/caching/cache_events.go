// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package caching

import "github.com/element-hq/eventauth/event"

// EventCache caches events parsed from snapshots or federation payloads,
// keyed by event ID.
type EventCache interface {
	GetParsedEvent(eventID string) (event.Event, bool)
	StoreParsedEvent(eventID string, ev event.Event)
	EvictParsedEvent(eventID string)
}

func (c Caches) GetParsedEvent(eventID string) (event.Event, bool) {
	return c.ParsedEvents.Get(eventID)
}

func (c Caches) StoreParsedEvent(eventID string, ev event.Event) {
	c.ParsedEvents.Set(eventID, ev)
}

func (c Caches) EvictParsedEvent(eventID string) {
	c.ParsedEvents.Unset(eventID)
}

// AuthOutcomeCache caches the result of authorization checks against a
// frozen snapshot. The same event can be allowed under one snapshot and
// rejected under another, so callers must scope their keys to the snapshot
// the outcome was computed against.
type AuthOutcomeCache interface {
	GetAuthOutcome(key string) (allowed bool, ok bool)
	StoreAuthOutcome(key string, allowed bool)
}

func (c Caches) GetAuthOutcome(key string) (allowed bool, ok bool) {
	return c.AuthOutcomes.Get(key)
}

func (c Caches) StoreAuthOutcome(key string, allowed bool) {
	c.AuthOutcomes.Set(key, allowed)
}
