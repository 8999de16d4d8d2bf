// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Room alias suffix constants for a user's feed rooms. A feed alias
// localpart is the account localpart plus a tier suffix; combine with
// FullRoomAlias to construct the complete "#localpart:server" form
// used in Matrix API calls.
//
// Example: alice's close friends feed is "#alice_close:commons.local".
const (
	// FeedAliasSuffixPublic is the suffix for the public feed room.
	FeedAliasSuffixPublic = "_public"

	// FeedAliasSuffixFriends is the suffix for the friends feed room.
	FeedAliasSuffixFriends = "_friends"

	// FeedAliasSuffixClose is the suffix for the close friends feed
	// room.
	FeedAliasSuffixClose = "_close"
)

// Display names for a user's feed rooms, set as m.room.name at
// creation. Clients may rename a feed room freely; discovery relies on
// the EventTypeFeed marker, not on these names.
const (
	// FeedRoomNamePublic is the initial name of the public feed room.
	FeedRoomNamePublic = "Public Feed"

	// FeedRoomNameFriends is the initial name of the friends feed room.
	FeedRoomNameFriends = "Friends Feed"

	// FeedRoomNameClose is the initial name of the close friends feed
	// room.
	FeedRoomNameClose = "Close Friends Feed"
)

// FeedAliasLocalpart returns the room alias localpart for one of a
// user's feed rooms.
//
// Example: FeedAliasLocalpart("alice", FeedAliasSuffixPublic) → "alice_public"
func FeedAliasLocalpart(accountLocalpart, tierSuffix string) string {
	return accountLocalpart + tierSuffix
}

// FriendsSpaceName returns the display name for a user's friends
// space. Friends spaces have no alias (they are never resolved by
// name); discovery uses the EventTypeFriends marker.
//
// Example: FriendsSpaceName("alice") → "alice's Friends"
func FriendsSpaceName(accountLocalpart string) string {
	return accountLocalpart + "'s Friends"
}

// FullRoomAlias constructs a full Matrix room alias from a localpart
// and server name: "#<localpart>:<serverName>".
func FullRoomAlias(localpart, serverName string) string {
	return "#" + localpart + ":" + serverName
}
