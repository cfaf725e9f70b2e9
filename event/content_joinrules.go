// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package event

import (
	"github.com/element-hq/eventauth/spec"
	"github.com/tidwall/gjson"
)

// JoinRule reads the "join_rule" field of an m.room.join_rules event. A
// room with no join rules event defaults to "invite", so ev may be nil.
// Unknown join rule values are carried verbatim; the checks treat them as
// the most restrictive rule rather than as malformed content.
func JoinRule(ev Event) (spec.JoinRule, error) {
	if ev == nil {
		return spec.JoinRuleInvite, nil
	}
	v := gjson.GetBytes(ev.Content(), "join_rule")
	if v.Type != gjson.String || v.Str == "" {
		return "", &MalformedContentError{Field: "join_rule", Message: "missing or invalid join_rule field"}
	}
	return spec.JoinRule(v.Str), nil
}
