// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package privacy

import "fmt"

// Level classifies a room or a piece of content by audience. Levels
// are totally ordered from least to most restrictive; the numeric
// order is load-bearing and must not be rearranged.
//
// The zero value is Public.
type Level int

const (
	// Public content is world readable.
	Public Level = iota

	// Friends content is visible to the account's friends.
	Friends

	// CloseFriends content is visible to the close friends circle.
	CloseFriends

	// Private content is limited to the members of a direct room.
	Private
)

// CanShareTo reports whether content at this level may be shared into
// a destination at the target level. Content may only move toward an
// equally or more restrictive audience: the relation is reflexive and
// one-directional, not symmetric.
func (l Level) CanShareTo(target Level) bool {
	return target >= l
}

// String returns the display name of the level.
func (l Level) String() string {
	switch l {
	case Public:
		return "Public"
	case Friends:
		return "Friends"
	case CloseFriends:
		return "Close Friends"
	case Private:
		return "Private"
	default:
		return "unknown"
	}
}

// Description returns a short sentence describing who can see content
// at this level, for tier pickers and command help.
func (l Level) Description() string {
	switch l {
	case Public:
		return "Anyone can see this"
	case Friends:
		return "Only your friends can see this"
	case CloseFriends:
		return "Only your close friends can see this"
	case Private:
		return "Only people in this room can see this"
	default:
		return "unknown"
	}
}

// audienceName is the lowercase name used in guard messages
// ("friends-only content", "public audience").
func (l Level) audienceName() string {
	switch l {
	case Public:
		return "public"
	case Friends:
		return "friends-only"
	case CloseFriends:
		return "close friends"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// ParseLevel parses the wire form of a level: "public", "friends",
// "close_friends", or "private". Anything else is an error.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "public":
		return Public, nil
	case "friends":
		return Friends, nil
	case "close_friends":
		return CloseFriends, nil
	case "private":
		return Private, nil
	default:
		return Public, fmt.Errorf("unknown privacy level %q", s)
	}
}

// MarshalText encodes the level in its wire form.
func (l Level) MarshalText() ([]byte, error) {
	switch l {
	case Public:
		return []byte("public"), nil
	case Friends:
		return []byte("friends"), nil
	case CloseFriends:
		return []byte("close_friends"), nil
	case Private:
		return []byte("private"), nil
	default:
		return nil, fmt.Errorf("invalid privacy level %d", int(l))
	}
}

// UnmarshalText decodes a level from its wire form.
func (l *Level) UnmarshalText(text []byte) error {
	level, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}
