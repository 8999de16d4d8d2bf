// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"

	"github.com/commons-foundation/commons/lib/ref"
)

// Session is the interface for the Matrix operations Commons services
// and libraries perform. Production code uses *DirectSession; tests
// substitute fakes backed by canned responses.
//
// Operator-only methods (AccessToken, DeviceID, SetDisplayName,
// AvatarURL, SetAvatarURL, UploadMedia, DownloadMedia, ChangePassword,
// LogoutAll) are not part of this interface. Code that needs them
// should type-assert to *DirectSession.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID
	// (e.g., "@alice:commons.local").
	UserID() ref.UserID

	// Close releases any resources held by the session. Idempotent.
	Close() error

	// WhoAmI validates the session and returns the user ID.
	WhoAmI(ctx context.Context) (ref.UserID, error)

	// ResolveAlias resolves a room alias to a room ID.
	ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error)

	// GetStateEvent fetches a specific state event's content from a room.
	// Returns the raw JSON content for the caller to unmarshal.
	GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error)

	// GetRoomState fetches all current state events from a room.
	GetRoomState(ctx context.Context, roomID ref.RoomID) ([]Event, error)

	// SendStateEvent sends a state event to a room. Returns the event ID.
	SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (ref.EventID, error)

	// SendEvent sends an event of any type to a room. Returns the event ID.
	SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error)

	// SendMessage sends a message to a room. Returns the event ID.
	SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error)

	// RedactEvent removes an event's content (retract a reaction,
	// delete a post). Returns the redaction's event ID.
	RedactEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (ref.EventID, error)

	// CreateRoom creates a new Matrix room.
	CreateRoom(ctx context.Context, request CreateRoomRequest) (*CreateRoomResponse, error)

	// InviteUser invites a user to a room.
	InviteUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error

	// JoinRoom joins a room by room ID. Returns the room ID. To join
	// by alias, resolve with ResolveAlias first.
	JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error)

	// KnockRoom asks to join a knock-rule room, carrying an optional
	// reason. Friend requests travel this way.
	KnockRoom(ctx context.Context, roomID ref.RoomID, reason string) (ref.RoomID, error)

	// LeaveRoom leaves a room, or retracts a pending knock.
	LeaveRoom(ctx context.Context, roomID ref.RoomID) error

	// KickUser removes a user from a room (declines a knock).
	KickUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error

	// BanUser bans a user from a room (blocks future knocks).
	BanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error

	// UnbanUser lifts a ban without rejoining the user.
	UnbanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error

	// JoinedRooms returns the list of room IDs the user has joined.
	JoinedRooms(ctx context.Context) ([]ref.RoomID, error)

	// GetRoomMembers returns the members of a room, all membership
	// states included.
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error)

	// GetDisplayName fetches a user's display name.
	GetDisplayName(ctx context.Context, userID ref.UserID) (string, error)

	// RoomMessages fetches paginated messages from a room.
	RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error)

	// ThreadMessages fetches the comments on a post.
	ThreadMessages(ctx context.Context, roomID ref.RoomID, postID ref.EventID, options RelationsOptions) (*RelationsResponse, error)

	// ReactionEvents fetches the reaction annotations on a post.
	ReactionEvents(ctx context.Context, roomID ref.RoomID, postID ref.EventID, options RelationsOptions) (*RelationsResponse, error)

	// Sync performs an incremental sync with the homeserver.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)
}

// Compile-time check: *DirectSession implements Session.
var _ Session = (*DirectSession)(nil)
