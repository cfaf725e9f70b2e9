// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package event

import "fmt"

// MalformedContentError reports event content that cannot be interpreted:
// wrong JSON types, required fields missing, or values outside the format
// the room version permits. It is distinct from a policy rejection, which is
// a (false, nil) result from the checks.
type MalformedContentError struct {
	// Field is the JSON path of the offending field, or "" if the problem
	// isn't attributable to a single field.
	Field   string
	Message string
}

func (e *MalformedContentError) Error() string {
	if e.Field == "" {
		return "malformed event: " + e.Message
	}
	return fmt.Sprintf("malformed event: field %q: %s", e.Field, e.Message)
}
