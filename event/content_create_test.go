// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package event

import (
	"testing"

	"github.com/element-hq/eventauth/spec"
	"github.com/element-hq/eventauth/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomVersionOf(t *testing.T) {
	t.Parallel()
	ev := mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {"creator": "@alice:foo"}}`)
	v, err := RoomVersionOf(ev)
	require.NoError(t, err)
	assert.Equal(t, version.RoomVersionV1, v)

	ev = mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {"room_version": "10"}}`)
	v, err = RoomVersionOf(ev)
	require.NoError(t, err)
	assert.Equal(t, version.RoomVersionV10, v)

	ev = mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {"room_version": 10}}`)
	_, err = RoomVersionOf(ev)
	assert.Error(t, err)
}

func TestCreators(t *testing.T) {
	t.Parallel()

	t.Run("creator field before v11", func(t *testing.T) {
		t.Parallel()
		ev := mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {"creator": "@zara:foo"}}`)
		creators, err := Creators(ev, version.MustRules(version.RoomVersionV6))
		require.NoError(t, err)
		assert.Equal(t, []string{"@zara:foo"}, creators)
	})

	t.Run("missing creator field is malformed before v11", func(t *testing.T) {
		t.Parallel()
		ev := mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {}}`)
		_, err := Creators(ev, version.MustRules(version.RoomVersionV6))
		var malformed *MalformedContentError
		assert.ErrorAs(t, err, &malformed)
	})

	t.Run("sender from v11", func(t *testing.T) {
		t.Parallel()
		ev := mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {}}`)
		creators, err := Creators(ev, version.MustRules(version.RoomVersionV11))
		require.NoError(t, err)
		assert.Equal(t, []string{"@alice:foo"}, creators)
	})

	t.Run("additional creators in v12", func(t *testing.T) {
		t.Parallel()
		ev := mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo",
			"content": {"additional_creators": ["@bob:foo", "@charlie:foo"]}}`)
		creators, err := Creators(ev, version.MustRules(version.RoomVersionV12))
		require.NoError(t, err)
		assert.Equal(t, []string{"@alice:foo", "@bob:foo", "@charlie:foo"}, creators)

		// v11 rules ignore the field entirely.
		creators, err = Creators(ev, version.MustRules(version.RoomVersionV11))
		require.NoError(t, err)
		assert.Equal(t, []string{"@alice:foo"}, creators)
	})

	t.Run("invalid additional creators", func(t *testing.T) {
		t.Parallel()
		ev := mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo",
			"content": {"additional_creators": ["@bob:foo", 42]}}`)
		_, err := Creators(ev, version.MustRules(version.RoomVersionV12))
		var malformed *MalformedContentError
		assert.ErrorAs(t, err, &malformed)
	})
}

func TestFederate(t *testing.T) {
	t.Parallel()
	ev := mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {}}`)
	assert.True(t, Federate(ev))
	ev = mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {"m.federate": false}}`)
	assert.False(t, Federate(ev))
	ev = mustEvent(t, `{"type": "m.room.create", "sender": "@alice:foo", "content": {"m.federate": true}}`)
	assert.True(t, Federate(ev))
}

func TestJoinRule(t *testing.T) {
	t.Parallel()
	rule, err := JoinRule(nil)
	require.NoError(t, err)
	assert.Equal(t, spec.JoinRuleInvite, rule)

	ev := mustEvent(t, `{"type": "m.room.join_rules", "content": {"join_rule": "public"}}`)
	rule, err = JoinRule(ev)
	require.NoError(t, err)
	assert.Equal(t, spec.JoinRulePublic, rule)

	ev = mustEvent(t, `{"type": "m.room.join_rules", "content": {}}`)
	_, err = JoinRule(ev)
	assert.Error(t, err)
}
