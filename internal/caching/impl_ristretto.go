// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package caching

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/setup/config"
	"github.com/sirupsen/logrus"
)

const (
	parsedEventPrefix = iota
	authOutcomePrefix
)

// NewRistrettoCache creates a cost-bounded cache backed by ristretto. The
// estimated cache size steers ristretto's admission policy; entries older
// than maxAge are evicted regardless of pressure.
func NewRistrettoCache(maxCost config.DataUnit, maxAge time.Duration, enablePrometheus bool) *Caches {
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: int64(maxCost) / 10,
		MaxCost:     int64(maxCost),
		BufferItems: 64,
		Metrics:     enablePrometheus,
	})
	if err != nil {
		logrus.WithError(err).Panic("Failed to create cache")
	}
	return &Caches{
		ParsedEvents: &ristrettoPartition[event.Event]{
			cache:  cache,
			prefix: parsedEventPrefix,
			maxAge: maxAge,
		},
		AuthOutcomes: &ristrettoPartition[bool]{
			cache:  cache,
			prefix: authOutcomePrefix,
			maxAge: maxAge,
		},
	}
}

// ristrettoPartition carves a typed keyspace out of the shared cache by
// prefixing every key.
type ristrettoPartition[V any] struct {
	cache  *ristretto.Cache[string, any]
	prefix byte
	maxAge time.Duration
}

func (p *ristrettoPartition[V]) key(key string) string {
	return string(rune(p.prefix)) + key
}

func (p *ristrettoPartition[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := p.cache.Get(p.key(key))
	if !ok {
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

func (p *ristrettoPartition[V]) Set(key string, value V) {
	cost := int64(len(key)) + 1
	if sized, ok := any(value).(interface{ Content() []byte }); ok {
		cost += int64(len(sized.Content()))
	}
	if p.maxAge == CacheNoMaxAge {
		p.cache.Set(p.key(key), value, cost)
		return
	}
	p.cache.SetWithTTL(p.key(key), value, cost, p.maxAge)
}

func (p *ristrettoPartition[V]) Unset(key string) {
	p.cache.Del(p.key(key))
}
