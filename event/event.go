// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package event defines the minimal view of a room event that the
// authorization rules need, plus lazy accessors for the content fields the
// rules consult. Content is kept as raw JSON and read with gjson so that
// events with junk sibling fields are handled without a full unmarshal.
package event

import (
	"github.com/tidwall/gjson"
)

// Event is the read-only view of a room event consumed by the authorization
// checks. Implementations must return the fields as they appear on the wire;
// in particular Content must be the raw JSON content block, not a
// re-serialization.
type Event interface {
	EventID() string
	RoomID() string
	Sender() string
	Type() string
	// StateKey returns nil for non-state events. The empty string is a
	// valid state key and distinct from nil.
	StateKey() *string
	Content() []byte
	PrevEventIDs() []string
	AuthEventIDs() []string
	// Redacts returns the "redacts" field, or "" if absent.
	Redacts() string
}

type jsonEvent struct {
	eventID      string
	roomID       string
	sender       string
	eventType    string
	stateKey     *string
	content      []byte
	prevEventIDs []string
	authEventIDs []string
	redacts      string
}

// NewFromJSON builds an Event from a full event JSON object, as found in
// federation transactions or room snapshots. Only structural fields are
// validated here; content validation happens lazily in the checks.
func NewFromJSON(eventJSON []byte) (Event, error) {
	if !gjson.ValidBytes(eventJSON) {
		return nil, &MalformedContentError{Field: "", Message: "event is not valid JSON"}
	}
	parsed := gjson.ParseBytes(eventJSON)
	ev := &jsonEvent{
		eventID:   parsed.Get("event_id").String(),
		roomID:    parsed.Get("room_id").String(),
		sender:    parsed.Get("sender").String(),
		eventType: parsed.Get("type").String(),
		redacts:   parsed.Get("redacts").String(),
	}
	if ev.eventType == "" {
		return nil, &MalformedContentError{Field: "type", Message: "missing event type"}
	}
	if sk := parsed.Get("state_key"); sk.Exists() {
		s := sk.String()
		ev.stateKey = &s
	}
	if content := parsed.Get("content"); content.Exists() {
		ev.content = []byte(content.Raw)
	} else {
		ev.content = []byte("{}")
	}
	ev.prevEventIDs = eventIDList(parsed.Get("prev_events"))
	ev.authEventIDs = eventIDList(parsed.Get("auth_events"))
	return ev, nil
}

// eventIDList accepts both the v1/v2 [["$id", {hashes}], ...] format and the
// v3+ ["$id", ...] format.
func eventIDList(refs gjson.Result) []string {
	var ids []string
	refs.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			ids = append(ids, value.Get("0").String())
		} else {
			ids = append(ids, value.String())
		}
		return true
	})
	return ids
}

func (e *jsonEvent) EventID() string        { return e.eventID }
func (e *jsonEvent) RoomID() string         { return e.roomID }
func (e *jsonEvent) Sender() string         { return e.sender }
func (e *jsonEvent) Type() string           { return e.eventType }
func (e *jsonEvent) StateKey() *string      { return e.stateKey }
func (e *jsonEvent) Content() []byte        { return e.content }
func (e *jsonEvent) PrevEventIDs() []string { return e.prevEventIDs }
func (e *jsonEvent) AuthEventIDs() []string { return e.authEventIDs }
func (e *jsonEvent) Redacts() string        { return e.redacts }
