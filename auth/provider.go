// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package auth

import (
	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/spec"
)

// StateProvider supplies the current room state to the authorization
// checks. Implementations must present a frozen, consistent snapshot: the
// checks may look the same pair up more than once and rely on getting the
// same answer each time.
type StateProvider interface {
	// CurrentState returns the state event with the given type and state
	// key, or nil if the room has none.
	CurrentState(eventType, stateKey string) event.Event
}

// StateProviderFunc adapts a plain function to a StateProvider.
type StateProviderFunc func(eventType, stateKey string) event.Event

func (f StateProviderFunc) CurrentState(eventType, stateKey string) event.Event {
	return f(eventType, stateKey)
}

// EventProvider resolves event IDs referenced in an event's auth_events
// list, returning nil for unknown IDs.
type EventProvider interface {
	EventByID(eventID string) event.Event
}

// EventProviderFunc adapts a plain function to an EventProvider.
type EventProviderFunc func(eventID string) event.Event

func (f EventProviderFunc) EventByID(eventID string) event.Event {
	return f(eventID)
}

// StateMap is a StateProvider and EventProvider over a fixed set of state
// events, keyed however the caller likes. Handy for tests and for checking
// events against a snapshot loaded from disk.
type StateMap struct {
	byTuple map[stateTuple]event.Event
	byID    map[string]event.Event
}

type stateTuple struct {
	eventType string
	stateKey  string
}

// NewStateMap indexes the given state events by (type, state key) and by
// event ID. Later events overwrite earlier ones with the same tuple.
func NewStateMap(events ...event.Event) *StateMap {
	m := &StateMap{
		byTuple: make(map[stateTuple]event.Event, len(events)),
		byID:    make(map[string]event.Event, len(events)),
	}
	for _, ev := range events {
		m.Add(ev)
	}
	return m
}

// Add inserts a state event, replacing any previous event with the same
// (type, state key).
func (m *StateMap) Add(ev event.Event) {
	if sk := ev.StateKey(); sk != nil {
		m.byTuple[stateTuple{ev.Type(), *sk}] = ev
	}
	if id := ev.EventID(); id != "" {
		m.byID[id] = ev
	}
}

func (m *StateMap) CurrentState(eventType, stateKey string) event.Event {
	return m.byTuple[stateTuple{eventType, stateKey}]
}

func (m *StateMap) EventByID(eventID string) event.Event {
	return m.byID[eventID]
}

// memberEvent returns the m.room.member state event for the given user, or
// nil.
func memberEvent(state StateProvider, userID string) event.Event {
	return state.CurrentState(spec.MRoomMember, userID)
}

// membershipOf returns the current membership of the given user, treating
// absent or unreadable member events as "leave".
func membershipOf(state StateProvider, userID string) spec.Membership {
	return event.MembershipOrLeave(memberEvent(state, userID))
}
