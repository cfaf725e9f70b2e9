// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package caching

import (
	"testing"
	"time"

	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCache(t *testing.T, maxCost config.DataUnit, maxAge time.Duration) *Caches {
	t.Helper()
	return NewRistrettoCache(maxCost, maxAge, DisableMetrics)
}

func createDefaultTestCache(t *testing.T) *Caches {
	t.Helper()
	return createTestCache(t, 1024*1024, time.Hour)
}

// waitForCacheProcessing waits for ristretto background processing
func waitForCacheProcessing(t *testing.T) {
	t.Helper()
	time.Sleep(10 * time.Millisecond)
}

func createTestEvent(t *testing.T, eventID string) event.Event {
	t.Helper()
	ev, err := event.NewFromJSON([]byte(`{
		"type": "m.room.message",
		"room_id": "!test:foo",
		"sender": "@alice:foo",
		"event_id": "` + eventID + `",
		"content": {"body": "test"}
	}`))
	require.NoError(t, err)
	return ev
}

func TestCaches_ParsedEvent_StoreAndRetrieve(t *testing.T) {
	t.Parallel()

	cache := createDefaultTestCache(t)
	ev := createTestEvent(t, "$event123:foo")

	cache.StoreParsedEvent(ev.EventID(), ev)
	waitForCacheProcessing(t)

	retrieved, ok := cache.GetParsedEvent("$event123:foo")
	assert.True(t, ok)
	assert.Equal(t, ev.EventID(), retrieved.EventID())
}

func TestCaches_ParsedEvent_EvictRemovesEvent(t *testing.T) {
	t.Parallel()

	cache := createDefaultTestCache(t)
	ev := createTestEvent(t, "$event123:foo")

	cache.StoreParsedEvent(ev.EventID(), ev)
	waitForCacheProcessing(t)

	_, ok := cache.GetParsedEvent("$event123:foo")
	assert.True(t, ok)

	cache.EvictParsedEvent("$event123:foo")
	waitForCacheProcessing(t)

	_, ok = cache.GetParsedEvent("$event123:foo")
	assert.False(t, ok)
}

func TestCaches_ParsedEvent_MissReturnsFalse(t *testing.T) {
	t.Parallel()

	cache := createDefaultTestCache(t)
	_, ok := cache.GetParsedEvent("$unknown:foo")
	assert.False(t, ok)
}

func TestCaches_AuthOutcome_StoreAndRetrieve(t *testing.T) {
	t.Parallel()

	cache := createDefaultTestCache(t)

	cache.StoreAuthOutcome("$allowed:foo", true)
	cache.StoreAuthOutcome("$rejected:foo", false)
	waitForCacheProcessing(t)

	allowed, ok := cache.GetAuthOutcome("$allowed:foo")
	assert.True(t, ok)
	assert.True(t, allowed)

	// A cached rejection must not look like a cache miss.
	allowed, ok = cache.GetAuthOutcome("$rejected:foo")
	assert.True(t, ok)
	assert.False(t, allowed)
}

func TestCaches_PartitionsDoNotCollide(t *testing.T) {
	t.Parallel()

	cache := createDefaultTestCache(t)
	ev := createTestEvent(t, "$event123:foo")

	cache.StoreParsedEvent(ev.EventID(), ev)
	cache.StoreAuthOutcome(ev.EventID(), true)
	waitForCacheProcessing(t)

	retrieved, ok := cache.GetParsedEvent(ev.EventID())
	assert.True(t, ok)
	assert.Equal(t, ev.EventID(), retrieved.EventID())

	allowed, ok := cache.GetAuthOutcome(ev.EventID())
	assert.True(t, ok)
	assert.True(t, allowed)
}

func TestCaches_EntriesExpire(t *testing.T) {
	t.Parallel()

	cache := createTestCache(t, 1024*1024, 50*time.Millisecond)
	ev := createTestEvent(t, "$event123:foo")

	cache.StoreParsedEvent(ev.EventID(), ev)
	waitForCacheProcessing(t)

	_, ok := cache.GetParsedEvent(ev.EventID())
	assert.True(t, ok)

	time.Sleep(100 * time.Millisecond)

	_, ok = cache.GetParsedEvent(ev.EventID())
	assert.False(t, ok)
}
