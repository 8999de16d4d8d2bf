// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package friends

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

// SpaceCache discovers or creates the session user's friends space and
// remembers its room ID. The cache is owned by the caller; a CLI
// invocation or daemon holds one instance and decides when to
// invalidate it. There is no package-level state.
//
// The friends space is a private Matrix space only its owner joins.
// Each friend's feed room hangs off it as an m.space.child entry, so
// the space is the user's friends list.
type SpaceCache struct {
	session messaging.Session
	logger  *slog.Logger
	roomID  ref.RoomID
}

// NewSpaceCache returns an empty cache bound to the given session.
// A nil logger discards log output.
func NewSpaceCache(session messaging.Session, logger *slog.Logger) *SpaceCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SpaceCache{session: session, logger: logger}
}

// Cached returns the cached space room ID without discovery. Zero when
// the cache is empty.
func (c *SpaceCache) Cached() ref.RoomID {
	return c.roomID
}

// Invalidate clears the cached room ID, forcing rediscovery on the
// next GetOrCreate.
func (c *SpaceCache) Invalidate() {
	c.roomID = ref.RoomID{}
}

// GetOrCreate returns the session user's friends space, looking in
// order at the cache, the joined rooms (by m.commons.friends marker),
// and finally creating a fresh space.
func (c *SpaceCache) GetOrCreate(ctx context.Context) (ref.RoomID, error) {
	if !c.roomID.IsZero() {
		return c.roomID, nil
	}

	roomID, err := c.find(ctx)
	if err != nil {
		return ref.RoomID{}, err
	}
	if roomID.IsZero() {
		roomID, err = c.create(ctx)
		if err != nil {
			return ref.RoomID{}, err
		}
	}
	c.roomID = roomID
	return roomID, nil
}

// AddFriendFeed links a friend's feed room into the space. The child
// entry carries the session user's server in via so clients can route
// to the room.
func (c *SpaceCache) AddFriendFeed(ctx context.Context, feedRoom ref.RoomID) error {
	spaceID, err := c.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	content := map[string]any{
		"via": []string{c.session.UserID().Server()},
	}
	if _, err := c.session.SendStateEvent(ctx, spaceID, schema.MatrixEventTypeSpaceChild, feedRoom.String(), content); err != nil {
		return fmt.Errorf("adding %s to friends space: %w", feedRoom, err)
	}
	return nil
}

// RemoveFriendFeed unlinks a friend's feed room from the space. The
// feed room itself is untouched; only the space child entry goes away.
// Removal writes an empty content body, which is how Matrix deletes a
// space child.
func (c *SpaceCache) RemoveFriendFeed(ctx context.Context, feedRoom ref.RoomID) error {
	spaceID, err := c.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	if _, err := c.session.SendStateEvent(ctx, spaceID, schema.MatrixEventTypeSpaceChild, feedRoom.String(), map[string]any{}); err != nil {
		return fmt.Errorf("removing %s from friends space: %w", feedRoom, err)
	}
	return nil
}

// ListFriendFeeds returns the feed rooms linked into the space. Child
// entries whose content has no via servers have been removed and are
// skipped, as are entries whose state key is not a room ID.
func (c *SpaceCache) ListFriendFeeds(ctx context.Context) ([]ref.RoomID, error) {
	spaceID, err := c.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	state, err := c.session.GetRoomState(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("reading friends space state: %w", err)
	}

	var feeds []ref.RoomID
	for _, event := range state {
		if event.Type != schema.MatrixEventTypeSpaceChild || event.StateKey == nil {
			continue
		}
		via, _ := event.Content["via"].([]any)
		if len(via) == 0 {
			continue
		}
		feedRoom, err := ref.ParseRoomID(*event.StateKey)
		if err != nil {
			c.logger.Warn("skipping space child with malformed state key",
				"space_id", spaceID,
				"state_key", *event.StateKey,
				"error", err)
			continue
		}
		feeds = append(feeds, feedRoom)
	}
	return feeds, nil
}

// find scans the joined rooms for a friends space owned by the session
// user. Rooms without a marker are skipped; a marker owned by someone
// else is not this user's space.
func (c *SpaceCache) find(ctx context.Context) (ref.RoomID, error) {
	rooms, err := c.session.JoinedRooms(ctx)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("listing joined rooms: %w", err)
	}
	me := c.session.UserID().String()

	for _, roomID := range rooms {
		raw, err := c.session.GetStateEvent(ctx, roomID, schema.EventTypeFriends, "")
		if messaging.IsNotFound(err) {
			continue
		}
		if err != nil {
			return ref.RoomID{}, fmt.Errorf("reading friends marker in %s: %w", roomID, err)
		}
		content, err := schema.ParseFriendsContent(raw)
		if err != nil {
			c.logger.Warn("skipping room with malformed friends marker",
				"room_id", roomID,
				"error", err)
			continue
		}
		if content.Owner == me {
			return roomID, nil
		}
	}
	return ref.RoomID{}, nil
}

// create provisions a new friends space: a private space room with the
// m.commons.friends marker and owner-only power levels.
func (c *SpaceCache) create(ctx context.Context) (ref.RoomID, error) {
	userID := c.session.UserID()

	request := messaging.CreateRoomRequest{
		Name:            schema.FriendsSpaceName(userID.Localpart()),
		Topic:           "Feed rooms of friends",
		CreationContent: map[string]any{"type": "m.space"},
		InitialState: []messaging.StateEvent{
			{
				Type:    schema.MatrixEventTypeJoinRules,
				Content: map[string]any{"join_rule": "invite"},
			},
			{
				Type:    schema.MatrixEventTypeHistoryVisibility,
				Content: map[string]any{"history_visibility": "joined"},
			},
			{
				Type:    schema.EventTypeFriends,
				Content: schema.FriendsContent{Owner: userID.String()},
			},
		},
		PowerLevelContentOverride: schema.FriendsSpacePowerLevels(userID.String()),
	}

	response, err := c.session.CreateRoom(ctx, request)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("creating friends space: %w", err)
	}
	c.logger.Info("created friends space", "room_id", response.RoomID)
	return response.RoomID, nil
}
