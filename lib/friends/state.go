// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package friends

// RequestState is the relationship between the session user and
// another user, derived from membership in the two friends feed rooms.
type RequestState int

const (
	// StateNone means no request exists in either direction.
	StateNone RequestState = iota

	// StatePendingOutgoing means the session user has knocked on the
	// other user's friends feed and is waiting for an answer.
	StatePendingOutgoing

	// StatePendingIncoming means the other user has knocked on the
	// session user's friends feed.
	StatePendingIncoming

	// StateFriends means a request was accepted in at least one
	// direction.
	StateFriends

	// StateBlocked means one side has banned the other.
	StateBlocked
)

// String returns a display name for the state.
func (s RequestState) String() string {
	switch s {
	case StatePendingOutgoing:
		return "request sent"
	case StatePendingIncoming:
		return "request received"
	case StateFriends:
		return "friends"
	case StateBlocked:
		return "blocked"
	default:
		return "none"
	}
}

// DeriveState computes the relationship from the two membership
// records: the other user's membership in the session user's friends
// feed, and the session user's membership in the other user's friends
// feed. Either may be empty when no membership event exists.
//
// A ban in either direction dominates everything else. A join or a
// standing invite in either direction means a request was accepted.
// When both sides have knocked, the incoming knock wins because it is
// the one the session user can act on.
func DeriveState(theirMembershipInMine, myMembershipInTheirs string) RequestState {
	if theirMembershipInMine == "ban" || myMembershipInTheirs == "ban" {
		return StateBlocked
	}
	if isAccepted(theirMembershipInMine) || isAccepted(myMembershipInTheirs) {
		return StateFriends
	}
	if theirMembershipInMine == "knock" {
		return StatePendingIncoming
	}
	if myMembershipInTheirs == "knock" {
		return StatePendingOutgoing
	}
	return StateNone
}

func isAccepted(membership string) bool {
	return membership == "join" || membership == "invite"
}
