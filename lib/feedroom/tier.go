// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedroom

import (
	"fmt"

	"github.com/commons-foundation/commons/lib/privacy"
	"github.com/commons-foundation/commons/lib/schema"
)

// Tier is the audience of a feed room. Unlike the four-level content
// lattice in lib/privacy, there are only three tiers: private content
// is never published to any room, so it has no tier.
type Tier int

const (
	// TierPublic is a world-readable feed anyone can join.
	TierPublic Tier = iota

	// TierFriends is a feed for the owner's friends. The room accepts
	// knocks; knocking on someone's friends feed is how a friend
	// request is made.
	TierFriends

	// TierCloseFriends is an invite-only feed for a hand-picked subset
	// of friends.
	TierCloseFriends
)

// AllTiers lists every tier in audience order, widest first. Setup
// iterates this to provision a user's full set of feed rooms.
func AllTiers() []Tier {
	return []Tier{TierPublic, TierFriends, TierCloseFriends}
}

// String returns the wire form of the tier ("public", "friends",
// "close_friends"), matching the m.commons.feed marker's tier field.
func (t Tier) String() string {
	switch t {
	case TierPublic:
		return schema.FeedTierPublic
	case TierFriends:
		return schema.FeedTierFriends
	case TierCloseFriends:
		return schema.FeedTierCloseFriends
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier converts a wire tier string from an m.commons.feed marker
// into a Tier. Unknown strings are an error.
func ParseTier(s string) (Tier, error) {
	switch s {
	case schema.FeedTierPublic:
		return TierPublic, nil
	case schema.FeedTierFriends:
		return TierFriends, nil
	case schema.FeedTierCloseFriends:
		return TierCloseFriends, nil
	default:
		return 0, fmt.Errorf("unknown feed tier %q", s)
	}
}

// ContentLevel maps the room tier onto the content privacy lattice.
// Content posted to a feed room must satisfy the sharing guard against
// this level.
func (t Tier) ContentLevel() privacy.Level {
	switch t {
	case TierFriends:
		return privacy.Friends
	case TierCloseFriends:
		return privacy.CloseFriends
	default:
		return privacy.Public
	}
}

// DisplayName returns the initial m.room.name for a feed room of this
// tier. Owners may rename the room afterwards; discovery does not
// depend on the name.
func (t Tier) DisplayName() string {
	switch t {
	case TierFriends:
		return schema.FeedRoomNameFriends
	case TierCloseFriends:
		return schema.FeedRoomNameClose
	default:
		return schema.FeedRoomNamePublic
	}
}

// AliasSuffix returns the room alias suffix for this tier, appended to
// the owner's account localpart by schema.FeedAliasLocalpart.
func (t Tier) AliasSuffix() string {
	switch t {
	case TierFriends:
		return schema.FeedAliasSuffixFriends
	case TierCloseFriends:
		return schema.FeedAliasSuffixClose
	default:
		return schema.FeedAliasSuffixPublic
	}
}

// JoinRule returns the m.room.join_rules value for this tier. The
// friends tier uses "knock" so friend requests can arrive as knocks;
// close friends is strictly invite.
func (t Tier) JoinRule() string {
	switch t {
	case TierFriends:
		return "knock"
	case TierCloseFriends:
		return "invite"
	default:
		return "public"
	}
}

// HistoryVisibility returns the m.room.history_visibility value for
// this tier. Public feeds are readable without joining; the other
// tiers share history with members from the point they were invited.
func (t Tier) HistoryVisibility() string {
	if t == TierPublic {
		return "world_readable"
	}
	return "shared"
}
