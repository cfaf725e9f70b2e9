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

// StateNeeded is a (type, state key) pair that an event's auth_events must
// reference.
type StateNeeded struct {
	EventType string
	StateKey  string
}

// AuthTypes returns the state tuples the given event's auth_events list
// must cover: the create event, the power levels, the sender's membership,
// and for membership events the target's membership plus whatever the
// transition relies on. m.room.create events need no auth events. An error
// means the event content is malformed.
func AuthTypes(ev event.Event, rules version.AuthRules) ([]StateNeeded, error) {
	if ev.Type() == spec.MRoomCreate {
		return nil, nil
	}
	needed := []StateNeeded{
		{spec.MRoomCreate, ""},
		{spec.MRoomPowerLevels, ""},
		{spec.MRoomMember, ev.Sender()},
	}
	if ev.Type() != spec.MRoomMember {
		return dedupeStateNeeded(needed), nil
	}

	if ev.StateKey() == nil {
		return nil, &event.MalformedContentError{Field: "state_key", Message: "m.room.member event has no state_key"}
	}
	target := *ev.StateKey()
	needed = append(needed, StateNeeded{spec.MRoomMember, target})

	membership, err := event.Membership(ev)
	if err != nil {
		return nil, err
	}
	switch membership {
	case spec.Join, spec.Invite, spec.Knock:
		needed = append(needed, StateNeeded{spec.MRoomJoinRules, ""})
	}
	if membership == spec.Invite {
		thirdPartyInvite, err := event.ThirdPartyInvite(ev)
		if err != nil {
			return nil, err
		}
		if thirdPartyInvite != nil {
			needed = append(needed, StateNeeded{spec.MRoomThirdPartyInvite, thirdPartyInvite.Token})
		}
	}
	if membership == spec.Join && rules.AllowRestrictedJoins {
		if authorisingUser := event.JoinAuthorisedViaUsersServer(ev); authorisingUser != "" {
			needed = append(needed, StateNeeded{spec.MRoomMember, authorisingUser})
		}
	}
	return dedupeStateNeeded(needed), nil
}

func dedupeStateNeeded(needed []StateNeeded) []StateNeeded {
	seen := make(map[StateNeeded]struct{}, len(needed))
	out := needed[:0]
	for _, n := range needed {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
