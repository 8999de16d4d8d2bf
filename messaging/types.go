// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/secret"
)

// RegisterRequest holds parameters for registering a new Matrix account.
// Password and RegistrationToken are stored in mmap-backed buffers (locked
// against swap, excluded from core dumps). The caller retains ownership of
// the buffers; Register reads from them but does not close them.
type RegisterRequest struct {
	Username          string
	Password          *secret.Buffer
	RegistrationToken *secret.Buffer
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	DeviceID                 string `json:"device_id,omitempty"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// CreateRoomRequest holds parameters for creating a Matrix room.
// Feed rooms, gathering rooms, and the friends space are all created
// through this one request shape; the differences live in the preset,
// initial state, and power level override.
type CreateRoomRequest struct {
	Name                      string         `json:"name,omitempty"`
	Topic                     string         `json:"topic,omitempty"`
	Alias                     string         `json:"room_alias_name,omitempty"` // local alias without # or :server
	RoomVersion               string         `json:"room_version,omitempty"`    // e.g. "11"; empty uses server default
	Visibility                string         `json:"visibility,omitempty"`      // "public" or "private"
	Preset                    string         `json:"preset,omitempty"`          // "private_chat", "public_chat", "trusted_private_chat"
	Invite                    []ref.UserID   `json:"invite,omitempty"`
	CreationContent           map[string]any `json:"creation_content,omitempty"` // e.g. {"type": "m.space"} for the friends space
	InitialState              []StateEvent   `json:"initial_state,omitempty"`
	PowerLevelContentOverride map[string]any `json:"power_level_content_override,omitempty"`
}

// CreateRoomResponse is returned by CreateRoom.
type CreateRoomResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// StateEvent represents a Matrix state event for room creation or state setting.
type StateEvent struct {
	Type     string `json:"type"`
	StateKey string `json:"state_key"`
	Content  any    `json:"content"`
}

// MessageContent is the content body of a Matrix message event
// (m.room.message). Posts and comments share this shape: a comment is
// a post whose RelatesTo carries the m.thread relation to the parent.
//
// Format/FormattedBody carry the rendered HTML for markdown posts
// (format "org.matrix.custom.html"); Body always holds the plain text
// fallback. Media posts (msgtype m.image / m.video) set URL to the mxc
// content URI and describe it in Info.
type MessageContent struct {
	MsgType       string     `json:"msgtype"`
	Body          string     `json:"body"`
	Format        string     `json:"format,omitempty"`
	FormattedBody string     `json:"formatted_body,omitempty"`
	URL           string     `json:"url,omitempty"` // mxc content URI for media msgtypes
	Info          *MediaInfo `json:"info,omitempty"`
	Mentions      *Mentions  `json:"m.mentions,omitempty"`
	RelatesTo     *RelatesTo `json:"m.relates_to,omitempty"`

	// LinkPreview and Caption are the Commons content-key extensions
	// riding on the standard message shape. They stay raw here so this
	// package does not depend on the schema types; lib/post composes
	// and parses them.
	LinkPreview json.RawMessage `json:"m.commons.link_preview,omitempty"`
	Caption     json.RawMessage `json:"m.commons.caption,omitempty"`
}

// MediaInfo describes the media referenced by a message's URL field.
type MediaInfo struct {
	MimeType     string `json:"mimetype,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Width        int    `json:"w,omitempty"`
	Height       int    `json:"h,omitempty"`
	Duration     int64  `json:"duration,omitempty"`      // milliseconds, video only
	ThumbnailURL string `json:"thumbnail_url,omitempty"` // mxc URI of a thumbnail
}

// Mentions identifies users referenced in a message, following the
// Matrix m.mentions format. The sharing guard checks these against the
// target room's member list before a share goes out.
type Mentions struct {
	UserIDs []ref.UserID `json:"user_ids,omitempty"`
}

// RelatesTo expresses relationships between events.
// For comments, RelType is "m.thread" and EventID is the post being
// commented on. For reactions, RelType is "m.annotation", EventID is
// the reacted-to post, and Key is the emoji.
type RelatesTo struct {
	RelType       string      `json:"rel_type"`
	EventID       ref.EventID `json:"event_id"`
	Key           string      `json:"key,omitempty"`
	IsFallingBack bool        `json:"is_falling_back,omitempty"`
	InReplyTo     *InReplyTo  `json:"m.in_reply_to,omitempty"`
}

// InReplyTo references a specific event being replied to within a thread.
type InReplyTo struct {
	EventID ref.EventID `json:"event_id"`
}

// ReactionContent is the content body of an m.reaction event: an
// annotation relation naming the reacted-to event and the emoji.
type ReactionContent struct {
	RelatesTo RelatesTo `json:"m.relates_to"`
}

// NewTextMessage creates a plain text message with no thread context.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// NewThreadReply creates a comment on an existing post. postID is the
// event ID of the post (the thread root). The fallback in_reply_to
// reference keeps the comment readable in clients without thread
// support.
func NewThreadReply(postID ref.EventID, body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
		RelatesTo: &RelatesTo{
			RelType:       "m.thread",
			EventID:       postID,
			IsFallingBack: true,
			InReplyTo: &InReplyTo{
				EventID: postID,
			},
		},
	}
}

// NewReaction creates the content of an m.reaction event annotating
// the given post with an emoji key. Send it with SendEvent and event
// type "m.reaction"; retract it by redacting the returned event ID.
func NewReaction(postID ref.EventID, key string) ReactionContent {
	return ReactionContent{
		RelatesTo: RelatesTo{
			RelType: "m.annotation",
			EventID: postID,
			Key:     key,
		},
	}
}

// Event represents a Matrix event from the server.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         ref.RoomID     `json:"room_id,omitempty"`
	StateKey       *string        `json:"state_key,omitempty"`
	// Redacts is set on m.room.redaction events in room versions that
	// carry the target at the top level. Newer room versions put it in
	// Content instead; RedactsEvent checks both.
	Redacts  ref.EventID    `json:"redacts,omitempty"`
	Unsigned *EventUnsigned `json:"unsigned,omitempty"`
}

// RedactsEvent returns the event ID a redaction event targets,
// checking the top-level field first and falling back to the content
// field used by room version 11 and later. Returns the zero EventID
// when the event is not a redaction or the target is unparseable.
func (e *Event) RedactsEvent() ref.EventID {
	if !e.Redacts.IsZero() {
		return e.Redacts
	}
	raw, ok := e.Content["redacts"].(string)
	if !ok {
		return ref.EventID{}
	}
	target, err := ref.ParseEventID(raw)
	if err != nil {
		return ref.EventID{}
	}
	return target
}

// EventUnsigned holds optional unsigned data attached to events.
type EventUnsigned struct {
	Age           int64  `json:"age,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// RoomMessagesOptions controls pagination for room message fetching.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means "from now"
	Direction string // "b" (backward/older) or "f" (forward/newer)
	Limit     int    // max events to return; 0 uses server default
}

// RoomMessagesResponse is returned by RoomMessages.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Chunk []Event `json:"chunk"`
}

// RelationsOptions controls pagination for the /relations endpoint
// (thread comments, reaction annotations).
type RelationsOptions struct {
	From  string // pagination token
	Limit int    // max events to return; 0 uses server default
}

// RelationsResponse is returned by ThreadMessages and ReactionEvents.
type RelationsResponse struct {
	Chunk     []Event `json:"chunk"`
	NextBatch string  `json:"next_batch,omitempty"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch token from previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout bool   // if true, send the timeout parameter (needed to distinguish "not set" from "0")
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch string          `json:"next_batch"`
	Presence  PresenceSection `json:"presence,omitempty"`
	Rooms     RoomsSection    `json:"rooms"`
}

// PresenceSection contains presence events from the /sync response.
// The feed service filters presence out via its sync filter
// ("presence": {"types": []}) and receives an empty section.
type PresenceSection struct {
	Events []PresenceEvent `json:"events"`
}

// PresenceEvent is a single m.presence event from the /sync response.
type PresenceEvent struct {
	Type    string               `json:"type"`
	Sender  ref.UserID           `json:"sender"`
	Content PresenceEventContent `json:"content"`
}

// PresenceEventContent carries the presence state for a single user.
type PresenceEventContent struct {
	// Presence is the user's current state: "online", "unavailable",
	// or "offline".
	Presence string `json:"presence"`

	// LastActiveAgo is milliseconds since the user was last active.
	// Zero when unknown or when the user is currently active.
	LastActiveAgo int64 `json:"last_active_ago,omitempty"`

	// CurrentlyActive is true when the user is actively using a
	// client right now (not just connected but idle).
	CurrentlyActive bool `json:"currently_active,omitempty"`

	// StatusMsg is an optional user-set status message.
	StatusMsg string `json:"status_msg,omitempty"`
}

// RoomsSection contains per-room sync data grouped by membership state.
// Map keys are room IDs; encoding/json uses ref.RoomID's TextUnmarshaler
// for automatic validation at deserialization.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Knock  map[ref.RoomID]KnockedRoom `json:"knock,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoom contains sync data for a room the user was invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// KnockedRoom contains sync data for a room the user has knocked on
// (an outgoing friend request that has not been answered yet).
type KnockedRoom struct {
	KnockState StateSection `json:"knock_state"`
}

// LeftRoom contains sync data for a room the user has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// InviteRequest holds the user ID to invite to a room.
type InviteRequest struct {
	UserID ref.UserID `json:"user_id"`
}

// KnockRequest is the request body for knocking on a room. The reason
// travels in the knock membership event, where the room's members can
// read it as the friend-request message.
type KnockRequest struct {
	Reason string `json:"reason,omitempty"`
}

// KnockResponse is returned by KnockRoom.
type KnockResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// KickRequest is the request body for kicking a user from a room.
type KickRequest struct {
	UserID ref.UserID `json:"user_id"`
	Reason string     `json:"reason,omitempty"`
}

// BanRequest is the request body for banning a user from a room. A ban
// also kicks: the user is removed and cannot rejoin or knock until
// unbanned.
type BanRequest struct {
	UserID ref.UserID `json:"user_id"`
	Reason string     `json:"reason,omitempty"`
}

// UnbanRequest is the request body for lifting a ban.
type UnbanRequest struct {
	UserID ref.UserID `json:"user_id"`
}

// RedactRequest is the request body for redacting an event.
type RedactRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SendEventResponse is returned by SendMessage, SendEvent, SendStateEvent,
// and RedactEvent.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// ResolveAliasResponse is returned by ResolveAlias.
type ResolveAliasResponse struct {
	RoomID  ref.RoomID `json:"room_id"`
	Servers []string   `json:"servers"`
}

// UploadResponse is returned by UploadMedia.
type UploadResponse struct {
	ContentURI ref.MediaURI `json:"content_uri"`
}

// JoinedRoomsResponse is returned by JoinedRooms.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}

// RoomMember represents a member of a Matrix room.
type RoomMember struct {
	UserID      ref.UserID `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Membership  string     `json:"membership"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	// Reason carries the membership reason when one was given. For
	// knock memberships this is the friend-request message.
	Reason string `json:"reason,omitempty"`
}

// RoomMembersResponse is returned by the /members endpoint.
type RoomMembersResponse struct {
	Chunk []RoomMemberEvent `json:"chunk"`
}

// RoomMemberEvent is a member state event from the /members endpoint.
type RoomMemberEvent struct {
	Type           string            `json:"type"`
	StateKey       string            `json:"state_key"`
	Sender         ref.UserID        `json:"sender"`
	OriginServerTS int64             `json:"origin_server_ts"`
	Content        RoomMemberContent `json:"content"`
}

// RoomMemberContent is the content of an m.room.member state event.
type RoomMemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// DisplayNameRequest is the request body for setting a display name.
type DisplayNameRequest struct {
	DisplayName string `json:"displayname"`
}

// DisplayNameResponse is returned by the /profile/{userId}/displayname endpoint.
type DisplayNameResponse struct {
	DisplayName string `json:"displayname"`
}

// AvatarURLRequest is the request body for setting an avatar URL.
type AvatarURLRequest struct {
	AvatarURL string `json:"avatar_url"`
}

// AvatarURLResponse is returned by the /profile/{userId}/avatar_url
// endpoint. AvatarURL is empty when the user has no avatar set.
type AvatarURLResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// ServerVersionsResponse is returned by Client.ServerVersions.
type ServerVersionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features,omitempty"`
}
