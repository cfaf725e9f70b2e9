// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package auth

import (
	"fmt"
	"testing"

	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/spec"
	"github.com/element-hq/eventauth/version"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

const (
	alice   = "@alice:foo"
	bob     = "@bob:foo"
	charlie = "@charlie:foo"
	ella    = "@ella:foo"
	zara    = "@zara:foo"

	testRoomID = "!test:foo"

	createEventID = "$CREATE:foo"
)

// testEvent builds event JSON the way incoming federation events look. A
// nil stateKey produces a non-state event.
type testEvent struct {
	id         string
	roomID     string
	sender     string
	eventType  string
	stateKey   *string
	content    string
	prevEvents []string
	authEvents []string
}

func strPtr(s string) *string { return &s }

func (te testEvent) build(t *testing.T) event.Event {
	t.Helper()
	roomID := te.roomID
	if roomID == "" {
		roomID = testRoomID
	}
	eventJSON := fmt.Sprintf(`{"room_id": %q, "event_id": %q, "sender": %q, "type": %q}`,
		roomID, te.id, te.sender, te.eventType)
	var err error
	if te.stateKey != nil {
		eventJSON, err = sjson.Set(eventJSON, "state_key", *te.stateKey)
		require.NoError(t, err)
	}
	if te.content != "" {
		eventJSON, err = sjson.SetRaw(eventJSON, "content", te.content)
		require.NoError(t, err)
	}
	for _, list := range []struct {
		field string
		ids   []string
	}{{"prev_events", te.prevEvents}, {"auth_events", te.authEvents}} {
		if list.ids == nil {
			continue
		}
		eventJSON, err = sjson.Set(eventJSON, list.field, list.ids)
		require.NoError(t, err)
	}
	ev, err := event.NewFromJSON([]byte(eventJSON))
	require.NoError(t, err)
	return ev
}

func stateEvent(t *testing.T, id, sender, eventType, stateKey, content string) event.Event {
	t.Helper()
	return testEvent{
		id:        id,
		sender:    sender,
		eventType: eventType,
		stateKey:  strPtr(stateKey),
		content:   content,
	}.build(t)
}

func memberEventOf(t *testing.T, id, sender, target, membership string) event.Event {
	t.Helper()
	return stateEvent(t, id, sender, spec.MRoomMember, target,
		fmt.Sprintf(`{"membership": %q}`, membership))
}

// newRoomState is the state of a freshly created room: just the create
// event, with alice as creator.
func newRoomState(t *testing.T) *StateMap {
	t.Helper()
	return NewStateMap(
		stateEvent(t, createEventID, alice, spec.MRoomCreate, "",
			fmt.Sprintf(`{"creator": %q}`, alice)),
	)
}

// roomState is the standard fixture room: alice created it and holds level
// 100, bob and charlie are joined at the default level, and the join rule
// is public. Extra state events overwrite the defaults.
func roomState(t *testing.T, extra ...event.Event) *StateMap {
	t.Helper()
	state := newRoomState(t)
	state.Add(memberEventOf(t, "$IMA:foo", alice, alice, "join"))
	state.Add(stateEvent(t, "$IPOWER:foo", alice, spec.MRoomPowerLevels, "",
		fmt.Sprintf(`{"users": {%q: 100}}`, alice)))
	state.Add(stateEvent(t, "$IJR:foo", alice, spec.MRoomJoinRules, "", `{"join_rule": "public"}`))
	state.Add(memberEventOf(t, "$IMB:foo", bob, bob, "join"))
	state.Add(memberEventOf(t, "$IMC:foo", charlie, charlie, "join"))
	for _, ev := range extra {
		state.Add(ev)
	}
	return state
}

func joinRuleEvent(t *testing.T, rule string) event.Event {
	t.Helper()
	return stateEvent(t, "$IJR:foo", alice, spec.MRoomJoinRules, "",
		fmt.Sprintf(`{"join_rule": %q}`, rule))
}

func powerLevelsEvent(t *testing.T, content string) event.Event {
	t.Helper()
	return stateEvent(t, "$IPOWER:foo", alice, spec.MRoomPowerLevels, "", content)
}

func redactionEvent(t *testing.T, sender, eventID, redacts string) event.Event {
	t.Helper()
	eventJSON := fmt.Sprintf(
		`{"room_id": %q, "event_id": %q, "sender": %q, "type": %q, "redacts": %q, "content": {"reason": "spam"}}`,
		testRoomID, eventID, sender, spec.MRoomRedaction, redacts)
	ev, err := event.NewFromJSON([]byte(eventJSON))
	require.NoError(t, err)
	return ev
}

// checkMember runs CheckMembership against the state's own create event.
func checkMember(t *testing.T, ev event.Event, v version.RoomVersion, state *StateMap) (bool, error) {
	t.Helper()
	createEvent := state.CurrentState(spec.MRoomCreate, "")
	require.NotNil(t, createEvent)
	return CheckMembership(ev, version.MustRules(v), createEvent, state)
}

// outcome assertions shared by the check tests.
func requireAllowed(t *testing.T, allowed bool, err error) {
	t.Helper()
	require.NoError(t, err)
	require.True(t, allowed)
}

func requireRejected(t *testing.T, allowed bool, err error) {
	t.Helper()
	require.NoError(t, err)
	require.False(t, allowed)
}

func requireMalformed(t *testing.T, allowed bool, err error) {
	t.Helper()
	require.Error(t, err)
	require.False(t, allowed)
}
