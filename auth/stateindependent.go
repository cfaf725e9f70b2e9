// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package auth

import (
	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/spec"
	"github.com/element-hq/eventauth/version"
)

// CheckStateIndependent runs the checks that need no room state: for
// m.room.create events the create rules themselves, and for everything else
// the validity of the auth_events list. events resolves the IDs referenced
// in auth_events; unknown IDs are rejected.
func CheckStateIndependent(ev event.Event, rules version.AuthRules, events EventProvider) (allowed bool, err error) {
	defer func() { countOutcome(allowed, err) }()

	if ev.Type() == spec.MRoomCreate {
		return checkRoomCreate(ev, rules)
	}

	expected, err := AuthTypes(ev, rules)
	if err != nil {
		return false, err
	}
	expectedSet := make(map[StateNeeded]struct{}, len(expected))
	for _, n := range expected {
		expectedSet[n] = struct{}{}
	}

	seen := make(map[StateNeeded]struct{}, len(ev.AuthEventIDs()))
	hasCreate := false
	for _, id := range ev.AuthEventIDs() {
		authEvent := events.EventByID(id)
		if authEvent == nil {
			return false, &event.MalformedContentError{Field: "auth_events", Message: "unknown auth event " + id}
		}
		if authEvent.RoomID() != ev.RoomID() {
			rejectf(ev, "auth event %q is in another room", id)
			return false, nil
		}
		sk := authEvent.StateKey()
		if sk == nil {
			rejectf(ev, "auth event %q is not a state event", id)
			return false, nil
		}
		tuple := StateNeeded{authEvent.Type(), *sk}
		if _, ok := seen[tuple]; ok {
			rejectf(ev, "duplicate auth event for (%s, %s)", tuple.EventType, tuple.StateKey)
			return false, nil
		}
		seen[tuple] = struct{}{}
		if _, ok := expectedSet[tuple]; !ok {
			rejectf(ev, "unexpected auth event type (%s, %s)", tuple.EventType, tuple.StateKey)
			return false, nil
		}
		if authEvent.Type() == spec.MRoomCreate {
			hasCreate = true
		}
	}
	if !hasCreate {
		rejectf(ev, "auth_events does not include the m.room.create event")
		return false, nil
	}
	return true, nil
}

// checkRoomCreate applies the m.room.create rules: no previous events, a
// room ID on the creating server, and a creator field in room versions that
// require one.
func checkRoomCreate(ev event.Event, rules version.AuthRules) (bool, error) {
	if len(ev.PrevEventIDs()) > 0 {
		rejectf(ev, "m.room.create event has previous events")
		return false, nil
	}
	if len(ev.AuthEventIDs()) > 0 {
		rejectf(ev, "m.room.create event has auth events")
		return false, nil
	}
	if !rules.RoomIDIsCreateEventID {
		roomDomain, err := spec.RoomDomain(ev.RoomID())
		if err != nil {
			return false, &event.MalformedContentError{Field: "room_id", Message: err.Error()}
		}
		senderDomain, err := spec.UserDomain(ev.Sender())
		if err != nil {
			return false, &event.MalformedContentError{Field: "sender", Message: err.Error()}
		}
		if roomDomain != senderDomain {
			rejectf(ev, "room ID domain %q does not match sender domain %q", roomDomain, senderDomain)
			return false, nil
		}
	}
	// Resolves the creator set, which requires the creator field before
	// v11 and validates additional_creators in v12.
	if _, err := event.Creators(ev, rules); err != nil {
		return false, err
	}
	return true, nil
}
