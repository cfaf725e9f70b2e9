// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package spec

// Membership is the value of the "membership" field of an m.room.member
// event. Values outside the five known memberships are carried verbatim; the
// authorization rules reject them without treating the event as malformed.
type Membership string

const (
	Join   Membership = "join"
	Invite Membership = "invite"
	Leave  Membership = "leave"
	Ban    Membership = "ban"
	Knock  Membership = "knock"
)

// KnownMembership reports whether m is one of the five memberships defined
// by the spec. A user with no m.room.member event at all is represented by
// Leave, so callers never need a sixth "absent" value.
func (m Membership) KnownMembership() bool {
	switch m {
	case Join, Invite, Leave, Ban, Knock:
		return true
	}
	return false
}

// JoinRule is the value of the "join_rule" field of an m.room.join_rules
// event.
type JoinRule string

const (
	JoinRulePublic          JoinRule = "public"
	JoinRuleInvite          JoinRule = "invite"
	JoinRulePrivate         JoinRule = "private"
	JoinRuleKnock           JoinRule = "knock"
	JoinRuleRestricted      JoinRule = "restricted"
	JoinRuleKnockRestricted JoinRule = "knock_restricted"
)
