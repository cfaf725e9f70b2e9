// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package event

import (
	"github.com/element-hq/eventauth/version"
	"github.com/tidwall/gjson"
)

// RoomVersionOf reads the "room_version" field of an m.room.create event's
// content, defaulting to room version 1 when absent, as the spec requires.
func RoomVersionOf(createEvent Event) (version.RoomVersion, error) {
	v := gjson.GetBytes(createEvent.Content(), "room_version")
	if !v.Exists() {
		return version.RoomVersionV1, nil
	}
	if v.Type != gjson.String {
		return "", &MalformedContentError{Field: "room_version", Message: "room version is not a string"}
	}
	return version.RoomVersion(v.Str), nil
}

// Creators returns the room's creators from an m.room.create event. Before
// room version 11 this is the required "creator" content field; from v11 it
// is the event's sender, extended by "additional_creators" when the rules
// accept that field. The create event's sender (or creator field) is always
// the first element.
func Creators(createEvent Event, rules version.AuthRules) ([]string, error) {
	if !rules.CreatorFromSender {
		creator := gjson.GetBytes(createEvent.Content(), "creator")
		if creator.Type != gjson.String || creator.Str == "" {
			return nil, &MalformedContentError{Field: "creator", Message: "missing or invalid creator field"}
		}
		return []string{creator.Str}, nil
	}
	creators := []string{createEvent.Sender()}
	if !rules.AdditionalCreators {
		return creators, nil
	}
	additional := gjson.GetBytes(createEvent.Content(), "additional_creators")
	if !additional.Exists() {
		return creators, nil
	}
	if !additional.IsArray() {
		return nil, &MalformedContentError{Field: "additional_creators", Message: "not a JSON array"}
	}
	var parseErr error
	additional.ForEach(func(_, value gjson.Result) bool {
		if value.Type != gjson.String || value.Str == "" {
			parseErr = &MalformedContentError{Field: "additional_creators", Message: "creator is not a user ID"}
			return false
		}
		creators = append(creators, value.Str)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return creators, nil
}

// Federate reads the "m.federate" flag of an m.room.create event's content.
// Federation is allowed by default.
func Federate(createEvent Event) bool {
	v := gjson.GetBytes(createEvent.Content(), "m\\.federate")
	if v.Type == gjson.False {
		return false
	}
	return true
}
