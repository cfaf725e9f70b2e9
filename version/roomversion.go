// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package version

import "github.com/pkg/errors"

// RoomVersion is a room version identifier as it appears in the
// "room_version" field of an m.room.create event.
type RoomVersion string

const (
	RoomVersionV1  RoomVersion = "1"
	RoomVersionV2  RoomVersion = "2"
	RoomVersionV3  RoomVersion = "3"
	RoomVersionV4  RoomVersion = "4"
	RoomVersionV5  RoomVersion = "5"
	RoomVersionV6  RoomVersion = "6"
	RoomVersionV7  RoomVersion = "7"
	RoomVersionV8  RoomVersion = "8"
	RoomVersionV9  RoomVersion = "9"
	RoomVersionV10 RoomVersion = "10"
	RoomVersionV11 RoomVersion = "11"
	RoomVersionV12 RoomVersion = "12"
)

// AuthRules is the set of capability flags that tweak the authorization
// rules for a given room version. Each flag names the behaviour it enables
// (or, for the special cases, keeps enabled) and the room version that
// changed it. The flags are plain data so that version checks read as table
// lookups rather than version-number comparisons scattered through the
// checks.
type AuthRules struct {
	// SpecialCaseRoomRedaction applies the v1 redaction authorization rules
	// (allow if the sender reaches the redact threshold or the redacted
	// event ID shares the sender's domain). Disabled since room version 3.
	SpecialCaseRoomRedaction bool

	// SpecialCaseRoomAliases applies the v1 m.room.aliases rules (state key
	// must equal the sender's server name). Disabled since room version 6.
	SpecialCaseRoomAliases bool

	// LimitNotificationsPowerLevels validates the "notifications" field of
	// m.room.power_levels events. Introduced in room version 6.
	LimitNotificationsPowerLevels bool

	// AllowKnocking accepts the "knock" membership and the "knock" join
	// rule. Introduced in room version 7.
	AllowKnocking bool

	// AllowRestrictedJoins accepts the "restricted" join rule. Introduced in
	// room version 8.
	AllowRestrictedJoins bool

	// AllowKnockRestricted accepts the "knock_restricted" join rule.
	// Introduced in room version 10.
	AllowKnockRestricted bool

	// IntegerPowerLevels requires every power level to be a JSON integer.
	// Before room version 10, strings containing integers are accepted too.
	IntegerPowerLevels bool

	// CreatorFromSender determines the room creator from the m.room.create
	// event's sender instead of the content's "creator" field, which is no
	// longer required. Introduced in room version 11.
	CreatorFromSender bool

	// PrivilegedCreators gives room creators an effective power level above
	// every threshold, regardless of the m.room.power_levels content.
	// Introduced in room version 12.
	PrivilegedCreators bool

	// AdditionalCreators accepts the "additional_creators" field of the
	// m.room.create event content, extending the set of creators.
	// Introduced in room version 12.
	AdditionalCreators bool

	// RoomIDIsCreateEventID derives the room ID from the create event's ID,
	// so create events carry no "room_id" field and room IDs have no server
	// name part. Introduced in room version 12.
	RoomIDIsCreateEventID bool
}

var authRulesV1 = AuthRules{
	SpecialCaseRoomRedaction: true,
	SpecialCaseRoomAliases:   true,
}

var authRulesV3 = AuthRules{
	SpecialCaseRoomAliases: true,
}

var authRulesV6 = AuthRules{
	LimitNotificationsPowerLevels: true,
}

var authRulesV7 = AuthRules{
	LimitNotificationsPowerLevels: true,
	AllowKnocking:                 true,
}

var authRulesV8 = AuthRules{
	LimitNotificationsPowerLevels: true,
	AllowKnocking:                 true,
	AllowRestrictedJoins:          true,
}

var authRulesV10 = AuthRules{
	LimitNotificationsPowerLevels: true,
	AllowKnocking:                 true,
	AllowRestrictedJoins:          true,
	AllowKnockRestricted:          true,
	IntegerPowerLevels:            true,
}

var authRulesV11 = AuthRules{
	LimitNotificationsPowerLevels: true,
	AllowKnocking:                 true,
	AllowRestrictedJoins:          true,
	AllowKnockRestricted:          true,
	IntegerPowerLevels:            true,
	CreatorFromSender:             true,
}

var authRulesV12 = AuthRules{
	LimitNotificationsPowerLevels: true,
	AllowKnocking:                 true,
	AllowRestrictedJoins:          true,
	AllowKnockRestricted:          true,
	IntegerPowerLevels:            true,
	CreatorFromSender:             true,
	PrivilegedCreators:            true,
	AdditionalCreators:            true,
	RoomIDIsCreateEventID:         true,
}

var roomVersions = map[RoomVersion]AuthRules{
	RoomVersionV1:  authRulesV1,
	RoomVersionV2:  authRulesV1,
	RoomVersionV3:  authRulesV3,
	RoomVersionV4:  authRulesV3,
	RoomVersionV5:  authRulesV3,
	RoomVersionV6:  authRulesV6,
	RoomVersionV7:  authRulesV7,
	RoomVersionV8:  authRulesV8,
	RoomVersionV9:  authRulesV8,
	RoomVersionV10: authRulesV10,
	RoomVersionV11: authRulesV11,
	RoomVersionV12: authRulesV12,
}

// Rules returns the authorization rule flags for the given room version, or
// an error if the version is not supported. Callers receiving an error
// should refuse to participate in the room rather than guess at defaults.
func Rules(v RoomVersion) (AuthRules, error) {
	rules, ok := roomVersions[v]
	if !ok {
		return AuthRules{}, errors.Errorf("unsupported room version %q", v)
	}
	return rules, nil
}

// MustRules is Rules for known-good version literals, typically in tests.
func MustRules(v RoomVersion) AuthRules {
	rules, err := Rules(v)
	if err != nil {
		panic(err)
	}
	return rules
}

// SupportedRoomVersions lists the room versions this library can authorize
// events for.
func SupportedRoomVersions() []RoomVersion {
	versions := make([]RoomVersion, 0, len(roomVersions))
	for v := range roomVersions {
		versions = append(versions, v)
	}
	return versions
}
