// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package auth

import (
	"strconv"

	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/spec"
	"github.com/element-hq/eventauth/version"
)

// PowerLevel is a user's effective power level. Room creators in room
// versions with privileged creators sit above every finite level, including
// levels users could assign through m.room.power_levels.
type PowerLevel struct {
	Infinite bool
	Value    int64
}

// AtLeast reports whether the level reaches the given finite threshold.
func (p PowerLevel) AtLeast(threshold int64) bool {
	return p.Infinite || p.Value >= threshold
}

func (p PowerLevel) String() string {
	if p.Infinite {
		return "infinite"
	}
	return strconv.FormatInt(p.Value, 10)
}

// GreaterThan reports whether the level is strictly above another user's
// level. Two privileged creators never outrank each other.
func (p PowerLevel) GreaterThan(o PowerLevel) bool {
	if p.Infinite {
		return !o.Infinite
	}
	if o.Infinite {
		return false
	}
	return p.Value > o.Value
}

// roomPowerLevels bundles the parsed power-levels content with the creator
// set, which together determine every user's effective level.
type roomPowerLevels struct {
	content        *event.PowerLevelContent
	hasPowerLevels bool
	creators       []string
	rules          version.AuthRules
}

// loadPowerLevels resolves the room's power levels from the current state.
// createEvent must be the room's m.room.create event.
func loadPowerLevels(rules version.AuthRules, createEvent event.Event, state StateProvider) (*roomPowerLevels, error) {
	creators, err := event.Creators(createEvent, rules)
	if err != nil {
		return nil, err
	}
	plEvent := state.CurrentState(spec.MRoomPowerLevels, "")
	content, err := event.PowerLevels(plEvent, rules.IntegerPowerLevels)
	if err != nil {
		return nil, err
	}
	return &roomPowerLevels{
		content:        content,
		hasPowerLevels: plEvent != nil,
		creators:       creators,
		rules:          rules,
	}, nil
}

func (pl *roomPowerLevels) isCreator(userID string) bool {
	for _, c := range pl.creators {
		if c == userID {
			return true
		}
	}
	return false
}

// userLevel returns the effective power level of a user: infinite for
// privileged creators, the users map entry or users_default when the room
// has a power-levels event, and otherwise 100 for the creator and
// users_default for everyone else.
func (pl *roomPowerLevels) userLevel(userID string) PowerLevel {
	if pl.rules.PrivilegedCreators && pl.isCreator(userID) {
		return PowerLevel{Infinite: true}
	}
	if pl.hasPowerLevels {
		return PowerLevel{Value: pl.content.UserLevel(userID)}
	}
	if pl.isCreator(userID) {
		return PowerLevel{Value: event.DefaultCreatorPowerLevel}
	}
	return PowerLevel{Value: pl.content.UsersDefault}
}

// checkPowerLevelsChange applies the m.room.power_levels change rules: the
// sender may only move thresholds and user levels within their own reach.
// The room's first power-levels event is always allowed.
func checkPowerLevelsChange(ev event.Event, rules version.AuthRules, pl *roomPowerLevels) (bool, error) {
	newContent, err := event.PowerLevels(ev, rules.IntegerPowerLevels)
	if err != nil {
		return false, err
	}
	if !pl.hasPowerLevels {
		return true, nil
	}
	oldContent := pl.content
	senderLevel := pl.userLevel(ev.Sender())

	fields := []struct {
		name     string
		old, new int64
	}{
		{"ban", oldContent.Ban, newContent.Ban},
		{"invite", oldContent.Invite, newContent.Invite},
		{"kick", oldContent.Kick, newContent.Kick},
		{"redact", oldContent.Redact, newContent.Redact},
		{"events_default", oldContent.EventsDefault, newContent.EventsDefault},
		{"state_default", oldContent.StateDefault, newContent.StateDefault},
		{"users_default", oldContent.UsersDefault, newContent.UsersDefault},
	}
	for _, f := range fields {
		// Writing a field at its default value and omitting it are
		// different contents, so presence flips count as changes too.
		if f.old == f.new && oldContent.Explicit(f.name) == newContent.Explicit(f.name) {
			continue
		}
		if !senderLevel.AtLeast(f.old) || !senderLevel.AtLeast(f.new) {
			rejectf(ev, "sender level %v cannot change %q from %d to %d", senderLevel, f.name, f.old, f.new)
			return false, nil
		}
	}

	if ok := checkLevelMapChange(ev, senderLevel, oldContent.Events, newContent.Events, "events", ""); !ok {
		return false, nil
	}
	if rules.LimitNotificationsPowerLevels {
		oldRoom, oldExplicit := oldContent.Notifications["room"]
		newRoom, newExplicit := newContent.Notifications["room"]
		if oldExplicit != newExplicit || oldRoom != newRoom {
			oldLevel := oldContent.NotificationLevel("room")
			newLevel := newContent.NotificationLevel("room")
			if !senderLevel.AtLeast(oldLevel) || !senderLevel.AtLeast(newLevel) {
				rejectf(ev, "sender level %v cannot change the room notification level from %d to %d", senderLevel, oldLevel, newLevel)
				return false, nil
			}
		}
	}
	// The sender may always change their own entry downwards, so it is
	// exempt from the strict comparison against the current value.
	if ok := checkLevelMapChange(ev, senderLevel, oldContent.Users, newContent.Users, "users", ev.Sender()); !ok {
		return false, nil
	}
	return true, nil
}

// checkLevelMapChange compares the old and new versions of one of the
// power-level maps. Every added, removed or changed entry must have both
// its old and new value within the sender's level; entries for other users
// in the users map must additionally be strictly below the sender's level
// before they can be touched.
func checkLevelMapChange(ev event.Event, senderLevel PowerLevel, oldMap, newMap map[string]int64, field, exemptKey string) bool {
	keys := make(map[string]struct{}, len(oldMap)+len(newMap))
	for k := range oldMap {
		keys[k] = struct{}{}
	}
	for k := range newMap {
		keys[k] = struct{}{}
	}
	for key := range keys {
		oldLevel, hadOld := oldMap[key]
		newLevel, hasNew := newMap[key]
		if hadOld && hasNew && oldLevel == newLevel {
			continue
		}
		if hadOld {
			if !senderLevel.AtLeast(oldLevel) {
				rejectf(ev, "sender level %v cannot change %s[%q] with current level %d", senderLevel, field, key, oldLevel)
				return false
			}
			if field == "users" && key != exemptKey && !senderLevel.GreaterThan(PowerLevel{Value: oldLevel}) {
				rejectf(ev, "sender level %v cannot change level of user %q at equal or greater level %d", senderLevel, key, oldLevel)
				return false
			}
		}
		if hasNew && !senderLevel.AtLeast(newLevel) {
			rejectf(ev, "sender level %v cannot set %s[%q] to %d", senderLevel, field, key, newLevel)
			return false
		}
	}
	return true
}
