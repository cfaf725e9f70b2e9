// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package event

import (
	"strconv"
	"strings"

	"github.com/element-hq/eventauth/spec"
	"github.com/tidwall/gjson"
)

// Default thresholds applied when an m.room.power_levels event omits a
// field, per the room specification.
const (
	DefaultUserPowerLevel     int64 = 0
	DefaultStatePowerLevel    int64 = 50
	DefaultModeratePowerLevel int64 = 50
	DefaultCreatorPowerLevel  int64 = 100
)

// PowerLevelContent is the parsed content of an m.room.power_levels event
// with the spec defaults filled in for absent fields.
type PowerLevelContent struct {
	Ban           int64
	Invite        int64
	Kick          int64
	Redact        int64
	EventsDefault int64
	StateDefault  int64
	UsersDefault  int64
	Events        map[string]int64
	Users         map[string]int64
	Notifications map[string]int64

	explicit map[string]bool
}

// Explicit reports whether the named top-level level field was present in
// the event content rather than filled in from its default. Writing a field
// at its default value and omitting it are different contents, and the
// change rules treat switching between them as an alteration.
func (c *PowerLevelContent) Explicit(field string) bool {
	return c.explicit[field]
}

// DefaultPowerLevels returns the levels that apply to a room with no
// m.room.power_levels event at all: every threshold at its default and no
// per-user or per-event overrides. The creator's 100 is applied by the
// caller, which knows who the creators are.
func DefaultPowerLevels() *PowerLevelContent {
	return &PowerLevelContent{
		Ban:           DefaultModeratePowerLevel,
		Invite:        DefaultUserPowerLevel,
		Kick:          DefaultModeratePowerLevel,
		Redact:        DefaultModeratePowerLevel,
		EventsDefault: DefaultUserPowerLevel,
		StateDefault:  DefaultStatePowerLevel,
		UsersDefault:  DefaultUserPowerLevel,
	}
}

// PowerLevels parses the content of an m.room.power_levels event. With
// strictInts set (room version 10 and later), every level must be a JSON
// integer; without it, strings containing base-10 integers are accepted
// too, matching what older room versions tolerated on the wire. ev may be
// nil, in which case the defaults are returned.
func PowerLevels(ev Event, strictInts bool) (*PowerLevelContent, error) {
	c := DefaultPowerLevels()
	if ev == nil {
		return c, nil
	}
	c.explicit = make(map[string]bool)
	content := gjson.ParseBytes(ev.Content())

	fields := []struct {
		name string
		dst  *int64
	}{
		{"ban", &c.Ban},
		{"invite", &c.Invite},
		{"kick", &c.Kick},
		{"redact", &c.Redact},
		{"events_default", &c.EventsDefault},
		{"state_default", &c.StateDefault},
		{"users_default", &c.UsersDefault},
	}
	for _, f := range fields {
		v := content.Get(f.name)
		if !v.Exists() {
			continue
		}
		level, err := parsePowerLevel(f.name, v, strictInts)
		if err != nil {
			return nil, err
		}
		*f.dst = level
		c.explicit[f.name] = true
	}

	for _, m := range []struct {
		name string
		dst  *map[string]int64
	}{
		{"events", &c.Events},
		{"users", &c.Users},
		{"notifications", &c.Notifications},
	} {
		v := content.Get(m.name)
		if !v.Exists() {
			continue
		}
		if !v.IsObject() {
			return nil, &MalformedContentError{Field: m.name, Message: "not a JSON object"}
		}
		levels, err := parsePowerLevelMap(m.name, v, strictInts)
		if err != nil {
			return nil, err
		}
		if m.name == "users" {
			for userID := range levels {
				if _, _, err := spec.SplitID('@', userID); err != nil {
					return nil, &MalformedContentError{
						Field:   "users." + userID,
						Message: "key is not a user ID",
					}
				}
			}
		}
		*m.dst = levels
	}
	return c, nil
}

func parsePowerLevelMap(field string, obj gjson.Result, strictInts bool) (map[string]int64, error) {
	levels := make(map[string]int64)
	var parseErr error
	obj.ForEach(func(key, value gjson.Result) bool {
		level, err := parsePowerLevel(field+"."+key.Str, value, strictInts)
		if err != nil {
			parseErr = err
			return false
		}
		levels[key.Str] = level
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return levels, nil
}

func parsePowerLevel(field string, v gjson.Result, strictInts bool) (int64, error) {
	switch v.Type {
	case gjson.Number:
		// Reject non-integer numbers in strict mode; truncation would
		// silently change the threshold otherwise.
		if strictInts && strings.ContainsAny(v.Raw, ".eE") {
			return 0, &MalformedContentError{Field: field, Message: "power level is not an integer"}
		}
		return v.Int(), nil
	case gjson.String:
		if strictInts {
			return 0, &MalformedContentError{Field: field, Message: "power level is a string"}
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return 0, &MalformedContentError{Field: field, Message: "power level string is not an integer"}
		}
		return n, nil
	default:
		return 0, &MalformedContentError{Field: field, Message: "power level is not an integer"}
	}
}

// UserLevel returns the level of the given user: their entry in the users
// map, or users_default.
func (c *PowerLevelContent) UserLevel(userID string) int64 {
	if level, ok := c.Users[userID]; ok {
		return level
	}
	return c.UsersDefault
}

// EventLevel returns the level required to send the given event type: its
// entry in the events map, or state_default / events_default depending on
// whether the event is a state event.
func (c *PowerLevelContent) EventLevel(eventType string, isState bool) int64 {
	if level, ok := c.Events[eventType]; ok {
		return level
	}
	if isState {
		return c.StateDefault
	}
	return c.EventsDefault
}

// NotificationLevel returns the level required to trigger the given
// notification key, defaulting to 50 for "room" and the moderate default
// otherwise.
func (c *PowerLevelContent) NotificationLevel(key string) int64 {
	if level, ok := c.Notifications[key]; ok {
		return level
	}
	return DefaultModeratePowerLevel
}
