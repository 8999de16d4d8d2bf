// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package rsvp validates the authenticity of per-user state records.
//
// An RSVP is a state event whose state key names the guest it speaks
// for. The homeserver does not enforce that the state key matches the
// event sender: any member allowed to send the event type can write a
// record under any key, so one guest could forge another guest's
// RSVP. ValidateOwnership re-derives the equality on every record,
// and consumers discard anything that does not come back Valid.
//
// A record that fails the check is classified two ways. A state key
// that parses to a different user than the sender is a spoofing
// attempt (SenderMismatch). A state key that does not parse at all is
// merely malformed (InvalidContent). Audit logging needs the
// distinction, so the two are never collapsed.
package rsvp

import (
	"fmt"

	"github.com/commons-foundation/commons/lib/ref"
)

// Outcome is the result kind of an ownership check.
type Outcome int

const (
	// Valid means the record's claimed owner is its true author.
	Valid Outcome = iota

	// SenderMismatch means the state key names a different user than
	// the event sender. The record is a spoofing attempt.
	SenderMismatch

	// InvalidContent means the state key does not parse as a user ID.
	InvalidContent
)

// String returns a short lowercase name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case SenderMismatch:
		return "sender mismatch"
	case InvalidContent:
		return "invalid content"
	default:
		return "unknown"
	}
}

// Validation is the outcome of checking a per-user state record
// against its true author. The fields carry what audit logging needs;
// nothing is re-derived by the consumer.
type Validation struct {
	// Outcome is the decision.
	Outcome Outcome

	// Claimed and Actual are the identity the state key names and the
	// event's true sender. Only set when Outcome is SenderMismatch.
	Claimed ref.UserID
	Actual  ref.UserID

	// Reason describes the malformation. Only set when Outcome is
	// InvalidContent.
	Reason string
}

// IsValid reports whether the record may be trusted.
func (v Validation) IsValid() bool {
	return v.Outcome == Valid
}

// ValidateOwnership checks that claimedOwner, the raw state key of a
// per-user record, parses to exactly the user who sent the event.
// The comparison is by value equality on the parsed identity; a
// mismatch is reported with both identities and never coerced.
func ValidateOwnership(claimedOwner string, actualAuthor ref.UserID) Validation {
	claimed, err := ref.ParseUserID(claimedOwner)
	if err != nil {
		return Validation{
			Outcome: InvalidContent,
			Reason:  fmt.Sprintf("invalid state key %q: %v", claimedOwner, err),
		}
	}
	if claimed != actualAuthor {
		return Validation{
			Outcome: SenderMismatch,
			Claimed: claimed,
			Actual:  actualAuthor,
		}
	}
	return Validation{Outcome: Valid}
}
