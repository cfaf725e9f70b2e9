// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package spec

// State event types consulted by the authorization rules.
const (
	MRoomCreate           = "m.room.create"
	MRoomMember           = "m.room.member"
	MRoomPowerLevels      = "m.room.power_levels"
	MRoomJoinRules        = "m.room.join_rules"
	MRoomThirdPartyInvite = "m.room.third_party_invite"
	MRoomAliases          = "m.room.aliases"
	MRoomRedaction        = "m.room.redaction"
)
