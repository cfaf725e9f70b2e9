// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package event

import (
	"github.com/element-hq/eventauth/spec"
	"github.com/tidwall/gjson"
)

// Membership reads the "membership" field of an m.room.member event's
// content. A missing or non-string membership is malformed; an unknown
// membership value is returned verbatim for the checks to reject.
func Membership(ev Event) (spec.Membership, error) {
	m := gjson.GetBytes(ev.Content(), "membership")
	if !m.Exists() || m.Type != gjson.String || m.Str == "" {
		return "", &MalformedContentError{Field: "membership", Message: "missing or invalid membership field"}
	}
	return spec.Membership(m.Str), nil
}

// MembershipOrLeave is Membership for state lookups: a user with no member
// event, or one whose member event has unreadable content, counts as having
// left. ev may be nil.
func MembershipOrLeave(ev Event) spec.Membership {
	if ev == nil {
		return spec.Leave
	}
	m, err := Membership(ev)
	if err != nil {
		return spec.Leave
	}
	return m
}

// ThirdPartyInviteSigned is the "signed" block of a member event's
// "third_party_invite" field, after structural validation.
type ThirdPartyInviteSigned struct {
	MXID  string
	Token string
	// Signatures holds the raw "signatures" object, empty if absent. The
	// checks reject invites whose signed block carries no signatures at
	// all, since such a block can never verify.
	Signatures []byte
}

// HasSignatures reports whether the signed block carries at least one
// signature from at least one server.
func (s *ThirdPartyInviteSigned) HasSignatures() bool {
	if len(s.Signatures) == 0 {
		return false
	}
	found := false
	gjson.ParseBytes(s.Signatures).ForEach(func(_, server gjson.Result) bool {
		server.ForEach(func(_, _ gjson.Result) bool {
			found = true
			return false
		})
		return !found
	})
	return found
}

// ThirdPartyInvite reads the "third_party_invite" field of an m.room.member
// event's content. It returns nil if the field is absent, and a malformed
// error if the field is present but the signed block is missing any of its
// required fields.
func ThirdPartyInvite(ev Event) (*ThirdPartyInviteSigned, error) {
	tpi := gjson.GetBytes(ev.Content(), "third_party_invite")
	if !tpi.Exists() {
		return nil, nil
	}
	signed := tpi.Get("signed")
	if !signed.IsObject() {
		return nil, &MalformedContentError{
			Field:   "third_party_invite.signed",
			Message: "missing or invalid signed block",
		}
	}
	mxid := signed.Get("mxid")
	if mxid.Type != gjson.String || mxid.Str == "" {
		return nil, &MalformedContentError{
			Field:   "third_party_invite.signed.mxid",
			Message: "missing or invalid mxid",
		}
	}
	token := signed.Get("token")
	if token.Type != gjson.String || token.Str == "" {
		return nil, &MalformedContentError{
			Field:   "third_party_invite.signed.token",
			Message: "missing or invalid token",
		}
	}
	out := &ThirdPartyInviteSigned{MXID: mxid.Str, Token: token.Str}
	if sigs := signed.Get("signatures"); sigs.IsObject() {
		out.Signatures = []byte(sigs.Raw)
	}
	return out, nil
}

// JoinAuthorisedViaUsersServer reads the "join_authorised_via_users_server"
// field of an m.room.member event's content, or "" if absent.
func JoinAuthorisedViaUsersServer(ev Event) string {
	return gjson.GetBytes(ev.Content(), "join_authorised_via_users_server").String()
}
