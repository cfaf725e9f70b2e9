// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package auth

import (
	"github.com/element-hq/eventauth/event"
	"github.com/element-hq/eventauth/spec"
	"github.com/element-hq/eventauth/version"
	"github.com/sirupsen/logrus"
)

// VerifyThirdPartyInviteSignature checks a member event's third-party-invite
// signed block against the public keys published in the referenced
// m.room.third_party_invite event. The default implementation accepts every
// structurally valid block and logs a warning, since key fetching and
// signature verification need a server's crypto stack; servers must install
// their own verifier.
var VerifyThirdPartyInviteSignature = func(signed *event.ThirdPartyInviteSigned, tpiEvent event.Event) bool {
	logrus.WithFields(logrus.Fields{
		"mxid":  signed.MXID,
		"token": signed.Token,
	}).Warn("Accepting third-party invite without signature verification")
	return true
}

// CheckMembership applies the m.room.member authorization rules: the
// join/invite/leave/ban/knock state machine, third-party invites and
// restricted joins. createEvent must be the room's m.room.create event;
// state supplies the rest of the current room state.
func CheckMembership(ev event.Event, rules version.AuthRules, createEvent event.Event, state StateProvider) (bool, error) {
	if ev.StateKey() == nil {
		return false, &event.MalformedContentError{Field: "state_key", Message: "m.room.member event has no state_key"}
	}
	target := *ev.StateKey()
	newMembership, err := event.Membership(ev)
	if err != nil {
		return false, err
	}

	pl, err := loadPowerLevels(rules, createEvent, state)
	if err != nil {
		return false, err
	}
	m := &membershipCheck{
		ev:               ev,
		rules:            rules,
		createEvent:      createEvent,
		state:            state,
		pl:               pl,
		sender:           ev.Sender(),
		target:           target,
		senderMembership: membershipOf(state, ev.Sender()),
		targetMembership: membershipOf(state, target),
	}

	switch newMembership {
	case spec.Join:
		return m.join()
	case spec.Invite:
		return m.invite()
	case spec.Leave:
		return m.leave()
	case spec.Ban:
		return m.ban()
	case spec.Knock:
		return m.knock()
	default:
		rejectf(ev, "unknown membership %q", newMembership)
		return false, nil
	}
}

type membershipCheck struct {
	ev               event.Event
	rules            version.AuthRules
	createEvent      event.Event
	state            StateProvider
	pl               *roomPowerLevels
	sender           string
	target           string
	senderMembership spec.Membership
	targetMembership spec.Membership
}

func (m *membershipCheck) join() (bool, error) {
	// The creator's first join, sent straight after the create event, is
	// allowed before any further state exists.
	if prev := m.ev.PrevEventIDs(); len(prev) == 1 && prev[0] == m.createEvent.EventID() {
		if m.pl.isCreator(m.target) {
			return true, nil
		}
	}
	if m.sender != m.target {
		rejectf(m.ev, "join sender %q does not match target %q", m.sender, m.target)
		return false, nil
	}
	if m.targetMembership == spec.Ban {
		rejectf(m.ev, "user %q is banned", m.target)
		return false, nil
	}
	joinRule, err := event.JoinRule(m.state.CurrentState(spec.MRoomJoinRules, ""))
	if err != nil {
		return false, err
	}
	switch {
	case joinRule == spec.JoinRulePublic:
		return true, nil
	case joinRule == spec.JoinRuleInvite,
		joinRule == spec.JoinRuleKnock && m.rules.AllowKnocking:
		if m.targetMembership == spec.Invite || m.targetMembership == spec.Join {
			return true, nil
		}
		rejectf(m.ev, "user %q is not invited to this %q room", m.target, joinRule)
		return false, nil
	case joinRule == spec.JoinRuleRestricted && m.rules.AllowRestrictedJoins,
		joinRule == spec.JoinRuleKnockRestricted && m.rules.AllowKnockRestricted:
		return m.restrictedJoin()
	case joinRule == spec.JoinRulePrivate:
		rejectf(m.ev, "room is private")
		return false, nil
	default:
		rejectf(m.ev, "join rule %q does not allow joining", joinRule)
		return false, nil
	}
}

// restrictedJoin allows already-invited or already-joined users through,
// and otherwise requires a join authorised by a joined user with the power
// to invite. The authorising server's signature over the event is checked
// at the federation layer, not here.
func (m *membershipCheck) restrictedJoin() (bool, error) {
	if m.targetMembership == spec.Invite || m.targetMembership == spec.Join {
		return true, nil
	}
	authorisingUser := event.JoinAuthorisedViaUsersServer(m.ev)
	if authorisingUser == "" {
		rejectf(m.ev, "restricted join without join_authorised_via_users_server")
		return false, nil
	}
	if membershipOf(m.state, authorisingUser) != spec.Join {
		rejectf(m.ev, "authorising user %q is not in the room", authorisingUser)
		return false, nil
	}
	if !m.pl.userLevel(authorisingUser).AtLeast(m.pl.content.Invite) {
		rejectf(m.ev, "authorising user %q cannot invite", authorisingUser)
		return false, nil
	}
	return true, nil
}

func (m *membershipCheck) invite() (bool, error) {
	thirdPartyInvite, err := event.ThirdPartyInvite(m.ev)
	if err != nil {
		return false, err
	}
	if thirdPartyInvite != nil {
		return m.inviteViaThirdParty(thirdPartyInvite)
	}
	if m.senderMembership != spec.Join {
		rejectf(m.ev, "invite sender %q is not in the room", m.sender)
		return false, nil
	}
	if m.targetMembership == spec.Join || m.targetMembership == spec.Ban {
		rejectf(m.ev, "cannot invite user %q with membership %q", m.target, m.targetMembership)
		return false, nil
	}
	if !m.pl.userLevel(m.sender).AtLeast(m.pl.content.Invite) {
		rejectf(m.ev, "sender %q has insufficient power to invite", m.sender)
		return false, nil
	}
	return true, nil
}

func (m *membershipCheck) inviteViaThirdParty(signed *event.ThirdPartyInviteSigned) (bool, error) {
	if m.targetMembership == spec.Ban {
		rejectf(m.ev, "user %q is banned", m.target)
		return false, nil
	}
	if signed.MXID != m.target {
		rejectf(m.ev, "third-party invite mxid %q does not match target %q", signed.MXID, m.target)
		return false, nil
	}
	tpiEvent := m.state.CurrentState(spec.MRoomThirdPartyInvite, signed.Token)
	if tpiEvent == nil {
		rejectf(m.ev, "no m.room.third_party_invite for token %q", signed.Token)
		return false, nil
	}
	if tpiEvent.Sender() != m.sender {
		rejectf(m.ev, "third-party invite was issued by %q, not sender %q", tpiEvent.Sender(), m.sender)
		return false, nil
	}
	if !signed.HasSignatures() {
		rejectf(m.ev, "third-party invite signed block carries no signatures")
		return false, nil
	}
	if !VerifyThirdPartyInviteSignature(signed, tpiEvent) {
		rejectf(m.ev, "third-party invite signature did not verify")
		return false, nil
	}
	return true, nil
}

func (m *membershipCheck) leave() (bool, error) {
	if m.sender == m.target {
		switch {
		case m.targetMembership == spec.Invite || m.targetMembership == spec.Join:
			return true, nil
		case m.targetMembership == spec.Knock && m.rules.AllowKnocking:
			return true, nil
		}
		rejectf(m.ev, "user %q cannot leave with membership %q", m.target, m.targetMembership)
		return false, nil
	}
	if m.senderMembership != spec.Join {
		rejectf(m.ev, "kick sender %q is not in the room", m.sender)
		return false, nil
	}
	senderLevel := m.pl.userLevel(m.sender)
	if m.targetMembership == spec.Ban && !senderLevel.AtLeast(m.pl.content.Ban) {
		rejectf(m.ev, "sender %q has insufficient power to unban", m.sender)
		return false, nil
	}
	if !senderLevel.AtLeast(m.pl.content.Kick) {
		rejectf(m.ev, "sender %q has insufficient power to kick", m.sender)
		return false, nil
	}
	if !senderLevel.GreaterThan(m.pl.userLevel(m.target)) {
		rejectf(m.ev, "sender %q cannot kick user %q at an equal or greater level", m.sender, m.target)
		return false, nil
	}
	return true, nil
}

func (m *membershipCheck) ban() (bool, error) {
	if m.senderMembership != spec.Join {
		rejectf(m.ev, "ban sender %q is not in the room", m.sender)
		return false, nil
	}
	senderLevel := m.pl.userLevel(m.sender)
	if !senderLevel.AtLeast(m.pl.content.Ban) {
		rejectf(m.ev, "sender %q has insufficient power to ban", m.sender)
		return false, nil
	}
	if !senderLevel.GreaterThan(m.pl.userLevel(m.target)) {
		rejectf(m.ev, "sender %q cannot ban user %q at an equal or greater level", m.sender, m.target)
		return false, nil
	}
	return true, nil
}

func (m *membershipCheck) knock() (bool, error) {
	if !m.rules.AllowKnocking {
		rejectf(m.ev, "room version does not support knocking")
		return false, nil
	}
	joinRule, err := event.JoinRule(m.state.CurrentState(spec.MRoomJoinRules, ""))
	if err != nil {
		return false, err
	}
	switch {
	case joinRule == spec.JoinRuleKnock:
	case joinRule == spec.JoinRuleKnockRestricted && m.rules.AllowKnockRestricted:
	default:
		rejectf(m.ev, "join rule %q does not allow knocking", joinRule)
		return false, nil
	}
	if m.sender != m.target {
		rejectf(m.ev, "knock sender %q does not match target %q", m.sender, m.target)
		return false, nil
	}
	switch m.senderMembership {
	case spec.Ban, spec.Invite, spec.Join:
		rejectf(m.ev, "user %q cannot knock with membership %q", m.sender, m.senderMembership)
		return false, nil
	}
	return true, nil
}
