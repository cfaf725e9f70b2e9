// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/element-hq/eventauth/internal/caching"
	"github.com/element-hq/eventauth/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createEventJSON = `{
	"event_id": "$CREATE:foo",
	"room_id": "!test:foo",
	"sender": "@alice:foo",
	"type": "m.room.create",
	"state_key": "",
	"content": {"creator": "@alice:foo"}
}`

const joinEventJSON = `{
	"event_id": "$JOIN:foo",
	"room_id": "!test:foo",
	"sender": "@zara:foo",
	"type": "m.room.member",
	"state_key": "@zara:foo",
	"content": {"membership": "join"},
	"auth_events": ["$CREATE:foo"]
}`

func writeSnapshot(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// The outcome cache is shared across every snapshot the tool is given, so
// outcomes are keyed per snapshot. The same event can be allowed under one
// snapshot's state and rejected under another's.
func TestCheckSnapshotScopesOutcomesPerSnapshot(t *testing.T) {
	dir := t.TempDir()
	publicSnapshot := writeSnapshot(t, dir, "public.json", `{
		"room_version": "6",
		"state": [`+createEventJSON+`, {
			"event_id": "$JRPUB:foo",
			"room_id": "!test:foo",
			"sender": "@alice:foo",
			"type": "m.room.join_rules",
			"state_key": "",
			"content": {"join_rule": "public"}
		}],
		"events": [`+joinEventJSON+`]
	}`)
	inviteSnapshot := writeSnapshot(t, dir, "invite.json", `{
		"room_version": "6",
		"state": [`+createEventJSON+`, {
			"event_id": "$JRINV:foo",
			"room_id": "!test:foo",
			"sender": "@alice:foo",
			"type": "m.room.join_rules",
			"state_key": "",
			"content": {"join_rule": "invite"}
		}],
		"events": [`+joinEventJSON+`]
	}`)

	cfg := &config.EventAuthCheck{}
	cfg.Defaults()
	caches := caching.NewRistrettoCache(1024*1024, time.Hour, caching.DisableMetrics)

	assert.Equal(t, 0, checkSnapshot(publicSnapshot, cfg, caches))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, checkSnapshot(inviteSnapshot, cfg, caches))
	time.Sleep(10 * time.Millisecond)

	allowed, ok := caches.GetAuthOutcome(snapshotOutcomeKey(publicSnapshot, "$JOIN:foo"))
	require.True(t, ok)
	assert.True(t, allowed, "join should be allowed under the public join rule")

	allowed, ok = caches.GetAuthOutcome(snapshotOutcomeKey(inviteSnapshot, "$JOIN:foo"))
	require.True(t, ok)
	assert.False(t, allowed, "join should be rejected under the invite join rule")
}
