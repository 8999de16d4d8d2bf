// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedroom

import (
	"github.com/commons-foundation/commons/lib/ref"
)

// UserFeeds holds the room IDs of one user's feed rooms, one per tier.
// A zero room ID means the user has not created a feed at that tier.
type UserFeeds struct {
	Public       ref.RoomID
	Friends      ref.RoomID
	CloseFriends ref.RoomID
}

// Room returns the room ID for the given tier, which may be zero if
// the feed does not exist.
func (f UserFeeds) Room(tier Tier) ref.RoomID {
	switch tier {
	case TierFriends:
		return f.Friends
	case TierCloseFriends:
		return f.CloseFriends
	default:
		return f.Public
	}
}

// All returns the room IDs of the feeds that exist, widest tier first.
func (f UserFeeds) All() []ref.RoomID {
	var rooms []ref.RoomID
	for _, tier := range AllTiers() {
		if room := f.Room(tier); !room.IsZero() {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// HasAny reports whether the user has at least one feed room.
func (f UserFeeds) HasAny() bool {
	return !f.Public.IsZero() || !f.Friends.IsZero() || !f.CloseFriends.IsZero()
}
