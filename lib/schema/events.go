// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Matrix state event type constants. These are the "type" field in
// Matrix state events.
const (
	// EventTypeFeed marks a room as a Commons feed room. Published by
	// the feed owner when the room is created. Contains the owner's
	// user ID and the feed tier ("public", "friends", "close_friends").
	// Feed discovery scans joined rooms for this event instead of
	// matching room names, so renaming a feed room does not break it.
	//
	// State key: "" (singleton per room)
	// Room: the feed room (e.g., #alice_public:<server>)
	EventTypeFeed = "m.commons.feed"

	// EventTypeGathering holds the description of a gathering: title,
	// times, location, cover image, visibility, RSVP deadline. Only the
	// creator and co-hosts may update it (state power level 50).
	//
	// State key: "" (singleton per room)
	// Room: the gathering room
	EventTypeGathering = "m.commons.gathering"

	// EventTypeRsvp is a per-user RSVP for a gathering. The state key
	// declares which user the RSVP belongs to; the homeserver does not
	// guarantee that claim matches the event sender, so consumers must
	// validate ownership (lib/rsvp) before counting the record.
	//
	// State key: claimed owner user ID (e.g., "@alice:commons.local")
	// Room: the gathering room
	EventTypeRsvp = "m.commons.rsvp"

	// EventTypeProfile is a per-user profile record: bio, location,
	// website, cover image. Like RSVPs, the state key declares the
	// owner and must be validated against the sender before display.
	//
	// State key: claimed owner user ID (e.g., "@alice:commons.local")
	// Room: the owner's public feed room
	EventTypeProfile = "m.commons.profile"

	// EventTypeFriends marks a space as a Commons friends space.
	// Published by the space owner at creation. Discovery scans joined
	// spaces for this event; members of the space are the owner's
	// friends.
	//
	// State key: "" (singleton per space)
	// Room: the friends space
	EventTypeFriends = "m.commons.friends"
)

// Standard Matrix event types Commons reads and writes. Defined here so
// call sites reference one constant instead of scattering string
// literals across packages.
const (
	// MatrixEventTypeMessage is the timeline event type for posts and
	// comments.
	MatrixEventTypeMessage = "m.room.message"

	// MatrixEventTypeReaction is the timeline event type for emoji
	// reactions. Content carries an m.annotation relation to the
	// reacted-to event.
	MatrixEventTypeReaction = "m.reaction"

	// MatrixEventTypeRedaction removes a previously sent event. Used to
	// retract reactions and delete posts.
	MatrixEventTypeRedaction = "m.room.redaction"

	// MatrixEventTypeMember is the membership state event type. State
	// key: the member's user ID.
	MatrixEventTypeMember = "m.room.member"

	// MatrixEventTypePowerLevels is the room power level state event
	// type. State key: "".
	MatrixEventTypePowerLevels = "m.room.power_levels"

	// MatrixEventTypeJoinRules controls how users join the room
	// ("public", "invite", "knock"). State key: "".
	MatrixEventTypeJoinRules = "m.room.join_rules"

	// MatrixEventTypeHistoryVisibility controls who can read room
	// history ("world_readable", "shared", "joined"). State key: "".
	MatrixEventTypeHistoryVisibility = "m.room.history_visibility"

	// MatrixEventTypeName is the room display name. State key: "".
	MatrixEventTypeName = "m.room.name"

	// MatrixEventTypeTopic is the room topic. State key: "".
	MatrixEventTypeTopic = "m.room.topic"

	// MatrixEventTypeCanonicalAlias is the room's canonical alias.
	// State key: "".
	MatrixEventTypeCanonicalAlias = "m.room.canonical_alias"

	// MatrixEventTypeSpaceChild declares a child room of a space.
	// State key: the child room ID.
	MatrixEventTypeSpaceChild = "m.space.child"

	// MatrixEventTypeSpaceParent declares a parent space of a room.
	// State key: the parent room ID.
	MatrixEventTypeSpaceParent = "m.space.parent"
)

// Matrix m.room.message msgtype constants for post content.
const (
	// MsgTypeText is a plain or formatted text post.
	MsgTypeText = "m.text"

	// MsgTypeImage is an image post: the content URL field carries the
	// mxc URI and the body carries the caption or filename.
	MsgTypeImage = "m.image"

	// MsgTypeVideo is a video post, shaped like an image post.
	MsgTypeVideo = "m.video"

	// MsgTypeNotice is a machine-generated message. The feed service
	// posts ingest and retention notices with this msgtype so clients
	// render them distinctly from user posts.
	MsgTypeNotice = "m.notice"
)

// RelAnnotation is the rel_type of the m.relates_to block in a reaction
// event. The annotation key is the emoji.
const RelAnnotation = "m.annotation"

// RelThread is the rel_type of the m.relates_to block in a comment.
// The related event is the post at the thread root.
const RelThread = "m.thread"

// FormatHTML is the m.room.message format value for HTML formatted
// bodies produced by the post composer.
const FormatHTML = "org.matrix.custom.html"

// Power level tiers for Commons rooms. Feed rooms have an owner and
// members; gathering rooms have a creator, co-hosts, and guests.
const (
	// PowerLevelGuest is the default member tier: send messages,
	// reactions, and per-user state records (RSVPs, profiles).
	PowerLevelGuest = 0

	// PowerLevelCoHost can edit the gathering description, invite
	// guests, kick, ban, and redact. In feed rooms this tier is unused.
	PowerLevelCoHost = 50

	// PowerLevelCreator has full control: room metadata, power levels,
	// the feed or gathering marker event.
	PowerLevelCreator = 100
)

// AdminProtectedEvents returns the set of Matrix room metadata event
// types that Commons restricts to the creator power level (100) in all
// rooms. Every power level function uses this as its base events map.
// Returns a fresh map each call so callers can safely merge their own
// entries.
func AdminProtectedEvents() map[string]any {
	return map[string]any{
		"m.room.avatar":             100,
		"m.room.canonical_alias":    100,
		"m.room.encryption":         100,
		"m.room.history_visibility": 100,
		"m.room.join_rules":         100,
		"m.room.name":               100,
		"m.room.power_levels":       100,
		"m.room.server_acl":         100,
		"m.room.tombstone":          100,
		"m.room.topic":              100,
		"m.space.child":             100,
	}
}

// FeedRoomPowerLevels returns the power level structure for a feed
// room. The owner (100) controls room metadata and the feed marker;
// members (0) comment, react, and publish their own per-user state
// records. Posting top-level content is not distinguished from
// commenting at the power level layer; clients distinguish posts from
// comments by relation.
//
// Safe to use as PowerLevelContentOverride at creation time: the owner
// creates their own feed rooms, so the creator already holds PL 100.
func FeedRoomPowerLevels(ownerUserID string) map[string]any {
	events := AdminProtectedEvents()
	events[EventTypeFeed] = 100
	events[EventTypeProfile] = 0
	events[MatrixEventTypeMessage] = 0
	events[MatrixEventTypeReaction] = 0

	return map[string]any{
		"users": map[string]any{
			ownerUserID: 100,
		},
		"users_default":  0,
		"events":         events,
		"events_default": 0,
		"state_default":  100,
		"ban":            100,
		"kick":           100,
		"invite":         100,
		"redact":         100,
		"notifications": map[string]any{
			"room": 100,
		},
	}
}

// GatheringRoomPowerLevels returns the power level structure for a
// gathering room.
//
// Three tiers:
//   - Creator (100): room metadata, power levels, co-host promotion
//   - Co-host (50): gathering description, invite, kick, ban, redact
//   - Guest (0): messages, reactions, their own RSVP record
//
// guestsCanInvite lowers the invite requirement to guest level so any
// attendee can bring others in. Co-hosts are granted their tier after
// creation via GrantPowerLevels, not in this override.
func GatheringRoomPowerLevels(creatorUserID string, guestsCanInvite bool) map[string]any {
	events := AdminProtectedEvents()
	events[EventTypeGathering] = 50
	events[EventTypeRsvp] = 0
	events[MatrixEventTypeMessage] = 0
	events[MatrixEventTypeReaction] = 0

	invite := 50
	if guestsCanInvite {
		invite = 0
	}

	return map[string]any{
		"users": map[string]any{
			creatorUserID: 100,
		},
		"users_default":  0,
		"events":         events,
		"events_default": 0,
		"state_default":  50,
		"ban":            50,
		"kick":           50,
		"invite":         invite,
		"redact":         50,
		"notifications": map[string]any{
			"room": 100,
		},
	}
}

// FriendsSpacePowerLevels returns the power level structure for a
// friends space. Only the owner modifies the space; friends are plain
// members whose membership is the social graph. Knocks are how friend
// requests arrive, so the invite level stays with the owner.
func FriendsSpacePowerLevels(ownerUserID string) map[string]any {
	events := AdminProtectedEvents()
	events[EventTypeFriends] = 100

	return map[string]any{
		"users": map[string]any{
			ownerUserID: 100,
		},
		"users_default":  0,
		"events":         events,
		"events_default": 100,
		"state_default":  100,
		"ban":            100,
		"kick":           100,
		"invite":         100,
		"redact":         100,
		"notifications": map[string]any{
			"room": 100,
		},
	}
}
