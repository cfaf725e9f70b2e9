// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package spec

import (
	"strings"

	"github.com/pkg/errors"
)

// ServerName is the host part of a Matrix identifier, e.g. "matrix.org" in
// "@alice:matrix.org".
type ServerName string

// NormalizeServerName trims whitespace and lowercases a server name so that
// comparisons and lookups remain case-insensitive. Domain names are defined
// as case-insensitive by RFC 1035, so this canonical form is safe to store.
func NormalizeServerName(name ServerName) ServerName {
	return ServerName(strings.ToLower(strings.TrimSpace(string(name))))
}

// SplitID splits a Matrix identifier of the form "&localpart:domain" into its
// localpart and server name, where "&" is the given sigil ('@' for user IDs,
// '!' for room IDs, '$' for v1-format event IDs).
func SplitID(sigil byte, id string) (local string, domain ServerName, err error) {
	if len(id) == 0 || id[0] != sigil {
		return "", "", errors.Errorf("invalid ID %q: doesn't start with %q", id, sigil)
	}
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return "", "", errors.Errorf("invalid ID %q: missing ':'", id)
	}
	return parts[0][1:], ServerName(parts[1]), nil
}

// UserDomain returns the server name of a user ID.
func UserDomain(userID string) (ServerName, error) {
	_, domain, err := SplitID('@', userID)
	return domain, err
}

// RoomDomain returns the server name of a room ID, if it has one. Room IDs
// in room versions 12 and later are plain hashes without a domain part.
func RoomDomain(roomID string) (ServerName, error) {
	_, domain, err := SplitID('!', roomID)
	return domain, err
}

// EventDomain returns the server name of a v1-format event ID. Event IDs in
// room versions 3 and later are hashes without a domain part, for which this
// returns "".
func EventDomain(eventID string) ServerName {
	_, domain, err := SplitID('$', eventID)
	if err != nil {
		return ""
	}
	return domain
}
