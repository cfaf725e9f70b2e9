// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// eventauth-check runs the event authorization rules over room snapshots.
//
// A snapshot file is a JSON object with a "state" array holding the current
// state events of a room, an "events" array holding the events to check
// against that state, and an optional "room_version" overriding the version
// from the create event.
//
// The tool exits non-zero if any checked event was malformed. Rejections
// are reported in the output but are a normal result.
package main

import (
	"flag"
	"os"

	"github.com/element-hq/eventauth/auth"
	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/internal/caching"
	"github.com/element-hq/eventauth/setup/config"
	"github.com/element-hq/eventauth/spec"
	"github.com/element-hq/eventauth/version"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var configPath = flag.String("config", "", "Path to the YAML config file")

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		logrus.Fatal("Usage: eventauth-check [-config config.yaml] snapshot.json ...")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}
	logrus.SetLevel(level)

	caches := caching.NewRistrettoCache(
		cfg.Cache.EstimatedMaxSize,
		cfg.Cache.MaxAge(),
		cfg.Cache.EnablePrometheus,
	)

	malformed := 0
	for _, path := range flag.Args() {
		malformed += checkSnapshot(path, cfg, caches)
	}
	if malformed > 0 {
		logrus.WithField("malformed", malformed).Error("Some events were malformed")
		os.Exit(1)
	}
}

// checkSnapshot checks every event in one snapshot file and returns the
// number of malformed events encountered.
func checkSnapshot(path string, cfg *config.EventAuthCheck, caches *caching.Caches) int {
	log := logrus.WithField("snapshot", path)

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Error("Failed to read snapshot")
		return 1
	}
	if !gjson.ValidBytes(data) {
		log.Error("Snapshot is not valid JSON")
		return 1
	}
	snapshot := gjson.ParseBytes(data)

	state := auth.NewStateMap()
	parseFailures := 0
	snapshot.Get("state").ForEach(func(_, raw gjson.Result) bool {
		ev, err := parseEvent(raw, caches)
		if err != nil {
			log.WithError(err).Error("Failed to parse state event")
			parseFailures++
			return true
		}
		state.Add(ev)
		return true
	})

	rules, err := snapshotRules(snapshot, state, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to determine room version")
		return parseFailures + 1
	}

	malformed := parseFailures
	snapshot.Get("events").ForEach(func(_, raw gjson.Result) bool {
		ev, err := parseEvent(raw, caches)
		if err != nil {
			log.WithError(err).Error("Failed to parse event")
			malformed++
			return true
		}
		if !checkEvent(path, ev, rules, state, caches, log) {
			malformed++
		}
		return true
	})
	return malformed
}

// checkEvent runs both check phases for one event, logging the outcome.
// It returns false if the event was malformed.
func checkEvent(snapshotPath string, ev event.Event, rules version.AuthRules, state *auth.StateMap, caches *caching.Caches, log *logrus.Entry) bool {
	log = log.WithFields(logrus.Fields{
		"event_id": ev.EventID(),
		"type":     ev.Type(),
		"sender":   ev.Sender(),
	})

	outcomeKey := snapshotOutcomeKey(snapshotPath, ev.EventID())
	if allowed, ok := caches.GetAuthOutcome(outcomeKey); ok {
		log.WithField("allowed", allowed).Info("Checked event (cached)")
		return true
	}

	allowed, err := auth.CheckStateIndependent(ev, rules, state)
	if err == nil && allowed {
		allowed, err = auth.Allowed(ev, rules, state)
	}
	if err != nil {
		log.WithError(err).Warn("Event is malformed")
		return false
	}
	caches.StoreAuthOutcome(outcomeKey, allowed)
	log.WithField("allowed", allowed).Info("Checked event")
	return true
}

// snapshotOutcomeKey scopes a cached outcome to the snapshot it was checked
// against. The same event can be allowed under one snapshot's state and
// rejected under another's.
func snapshotOutcomeKey(snapshotPath, eventID string) string {
	return snapshotPath + "\x00" + eventID
}

func parseEvent(raw gjson.Result, caches *caching.Caches) (event.Event, error) {
	if id := raw.Get("event_id").Str; id != "" {
		if ev, ok := caches.GetParsedEvent(id); ok {
			return ev, nil
		}
	}
	ev, err := event.NewFromJSON([]byte(raw.Raw))
	if err != nil {
		return nil, err
	}
	if ev.EventID() != "" {
		caches.StoreParsedEvent(ev.EventID(), ev)
	}
	return ev, nil
}

// snapshotRules picks the room version from the snapshot's room_version
// field, the create event, or the configured default, in that order.
func snapshotRules(snapshot gjson.Result, state *auth.StateMap, cfg *config.EventAuthCheck) (version.AuthRules, error) {
	if v := snapshot.Get("room_version"); v.Type == gjson.String {
		return version.Rules(version.RoomVersion(v.Str))
	}
	if createEvent := state.CurrentState(spec.MRoomCreate, ""); createEvent != nil {
		v, err := event.RoomVersionOf(createEvent)
		if err != nil {
			return version.AuthRules{}, err
		}
		return version.Rules(v)
	}
	return version.Rules(version.RoomVersion(cfg.DefaultRoomVersion))
}
