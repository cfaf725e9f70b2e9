// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package auth implements the room event authorization rules: deciding
// whether an event is allowed against a snapshot of room state.
//
// Every check returns a (bool, error) pair with three meaningful outcomes.
// (true, nil) means the event is authorized. (false, nil) means the event is
// well-formed but the rules reject it; rejection is a normal result, not an
// error. (false, err) means the input could not be interpreted at all, with
// err describing what was malformed. Callers must never treat a rejection
// as an error or a malformed event as a mere rejection.
package auth

import (
	"strings"

	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/spec"
	"github.com/element-hq/eventauth/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var checksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "eventauth",
		Name:      "checks_total",
		Help:      "Outcomes of event authorization checks.",
	},
	[]string{"outcome"},
)

func countOutcome(allowed bool, err error) {
	switch {
	case err != nil:
		checksTotal.WithLabelValues("malformed").Inc()
	case allowed:
		checksTotal.WithLabelValues("allowed").Inc()
	default:
		checksTotal.WithLabelValues("rejected").Inc()
	}
}

// rejectf logs the reason an event failed an authorization check. The
// reasons exist for operators tracing a rejected federation event, so they
// name the users and values involved.
func rejectf(ev event.Event, format string, args ...interface{}) {
	logrus.WithFields(logrus.Fields{
		"event_id": ev.EventID(),
		"type":     ev.Type(),
		"sender":   ev.Sender(),
	}).Debugf("Event not authorized: "+format, args...)
}

// Allowed runs the state-dependent authorization rules for an event against
// the given room state. m.room.create events carry no state-dependent rules
// and are checked by CheckStateIndependent instead.
func Allowed(ev event.Event, rules version.AuthRules, state StateProvider) (allowed bool, err error) {
	defer func() { countOutcome(allowed, err) }()

	if ev.Type() == spec.MRoomCreate {
		return true, nil
	}
	createEvent := state.CurrentState(spec.MRoomCreate, "")
	if createEvent == nil {
		return false, &event.MalformedContentError{Message: "no m.room.create event in auth state"}
	}

	if ok, err := checkFederate(ev, createEvent); !ok || err != nil {
		return ok, err
	}

	if rules.SpecialCaseRoomAliases && ev.Type() == spec.MRoomAliases {
		return checkRoomAliases(ev)
	}

	if ev.Type() == spec.MRoomMember {
		return CheckMembership(ev, rules, createEvent, state)
	}

	if membershipOf(state, ev.Sender()) != spec.Join {
		rejectf(ev, "sender %q is not in the room", ev.Sender())
		return false, nil
	}

	pl, err := loadPowerLevels(rules, createEvent, state)
	if err != nil {
		return false, err
	}
	senderLevel := pl.userLevel(ev.Sender())

	if ev.Type() == spec.MRoomThirdPartyInvite {
		if !senderLevel.AtLeast(pl.content.Invite) {
			rejectf(ev, "sender %q has insufficient power to issue third-party invites", ev.Sender())
			return false, nil
		}
		return true, nil
	}

	if !senderLevel.AtLeast(pl.content.EventLevel(ev.Type(), ev.StateKey() != nil)) {
		rejectf(ev, "sender %q has insufficient power to send %q", ev.Sender(), ev.Type())
		return false, nil
	}

	if sk := ev.StateKey(); sk != nil && strings.HasPrefix(*sk, "@") && *sk != ev.Sender() {
		rejectf(ev, "state_key %q belongs to another user", *sk)
		return false, nil
	}

	if ev.Type() == spec.MRoomPowerLevels {
		return checkPowerLevelsChange(ev, rules, pl)
	}

	if rules.SpecialCaseRoomRedaction && ev.Type() == spec.MRoomRedaction {
		return checkRoomRedaction(ev, senderLevel, pl)
	}

	return true, nil
}

// checkFederate rejects events from other servers when the create event
// sets m.federate to false. Server names are compared between the event
// sender and the room creator, which also works for room versions whose
// room IDs carry no server name.
func checkFederate(ev event.Event, createEvent event.Event) (bool, error) {
	if event.Federate(createEvent) {
		return true, nil
	}
	senderDomain, err := spec.UserDomain(ev.Sender())
	if err != nil {
		return false, &event.MalformedContentError{Field: "sender", Message: err.Error()}
	}
	creatorDomain, err := spec.UserDomain(createEvent.Sender())
	if err != nil {
		return false, &event.MalformedContentError{Field: "sender", Message: err.Error()}
	}
	if spec.NormalizeServerName(senderDomain) != spec.NormalizeServerName(creatorDomain) {
		rejectf(ev, "room does not federate and sender %q is remote", ev.Sender())
		return false, nil
	}
	return true, nil
}

// checkRoomAliases applies the room version 1-5 m.room.aliases rules: the
// state key must be the sender's server name.
func checkRoomAliases(ev event.Event) (bool, error) {
	sk := ev.StateKey()
	if sk == nil {
		rejectf(ev, "m.room.aliases event has no state_key")
		return false, nil
	}
	senderDomain, err := spec.UserDomain(ev.Sender())
	if err != nil {
		return false, &event.MalformedContentError{Field: "sender", Message: err.Error()}
	}
	if spec.ServerName(*sk) != senderDomain {
		rejectf(ev, "m.room.aliases state_key %q is not the sender's server", *sk)
		return false, nil
	}
	return true, nil
}

// checkRoomRedaction applies the room version 1-2 m.room.redaction rules:
// allow at the redact threshold, or when the redacted event came from the
// sender's own server.
func checkRoomRedaction(ev event.Event, senderLevel PowerLevel, pl *roomPowerLevels) (bool, error) {
	if senderLevel.AtLeast(pl.content.Redact) {
		return true, nil
	}
	senderDomain := spec.EventDomain(ev.EventID())
	if senderDomain != "" && senderDomain == spec.EventDomain(ev.Redacts()) {
		return true, nil
	}
	rejectf(ev, "sender %q cannot redact event %q", ev.Sender(), ev.Redacts())
	return false, nil
}
