// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedroom

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

// Feed describes one discovered feed room: whose feed it is and which
// tier it serves. The owner and tier come from the room's
// m.commons.feed marker, not from its name or alias.
type Feed struct {
	Room  ref.RoomID
	Owner ref.UserID
	Tier  Tier
}

// Service creates, discovers, and joins feed rooms on behalf of one
// logged-in session.
type Service struct {
	session messaging.Session
	logger  *slog.Logger
}

// NewService returns a feed room service bound to the given session.
// A nil logger discards log output.
func NewService(session messaging.Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{session: session, logger: logger}
}

// CreateFeedRoom creates the session user's feed room for the given
// tier and returns its room ID. The room is created with its join
// rule, history visibility, alias, power levels, and m.commons.feed
// marker all in place, so a feed is usable from the moment it exists.
//
// Every tier gets an alias: the friends-tier alias is how another user
// resolves the room to knock on it with a friend request. Only the
// public tier is published to the server's room directory.
func (s *Service) CreateFeedRoom(ctx context.Context, tier Tier) (ref.RoomID, error) {
	userID := s.session.UserID()

	request := messaging.CreateRoomRequest{
		Name:  tier.DisplayName(),
		Alias: schema.FeedAliasLocalpart(userID.Localpart(), tier.AliasSuffix()),
		InitialState: []messaging.StateEvent{
			{
				Type:    schema.MatrixEventTypeJoinRules,
				Content: map[string]any{"join_rule": tier.JoinRule()},
			},
			{
				Type:    schema.MatrixEventTypeHistoryVisibility,
				Content: map[string]any{"history_visibility": tier.HistoryVisibility()},
			},
			{
				Type: schema.EventTypeFeed,
				Content: schema.FeedContent{
					Owner: userID.String(),
					Tier:  tier.String(),
				},
			},
		},
		PowerLevelContentOverride: schema.FeedRoomPowerLevels(userID.String()),
	}
	if tier == TierPublic {
		request.Visibility = "public"
	}

	response, err := s.session.CreateRoom(ctx, request)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("creating %s feed room: %w", tier, err)
	}

	s.logger.Info("created feed room",
		"room_id", response.RoomID,
		"tier", tier.String())
	return response.RoomID, nil
}

// EnsureFeeds creates any of the session user's feed rooms that do not
// exist yet and returns the full set. Existing rooms are found through
// their aliases, so EnsureFeeds is safe to run repeatedly.
func (s *Service) EnsureFeeds(ctx context.Context) (UserFeeds, error) {
	userID := s.session.UserID()

	var feeds UserFeeds
	for _, tier := range AllTiers() {
		roomID, err := s.resolveOwnFeed(ctx, userID, tier)
		if err != nil {
			return UserFeeds{}, err
		}
		if roomID.IsZero() {
			roomID, err = s.CreateFeedRoom(ctx, tier)
			if err != nil {
				return UserFeeds{}, err
			}
		}
		feeds = setFeed(feeds, tier, roomID)
	}
	return feeds, nil
}

// OwnFeeds resolves the session user's existing feed rooms by alias.
// Tiers whose rooms do not exist are left zero; use EnsureFeeds to
// create them.
func (s *Service) OwnFeeds(ctx context.Context) (UserFeeds, error) {
	userID := s.session.UserID()

	var feeds UserFeeds
	for _, tier := range AllTiers() {
		roomID, err := s.resolveOwnFeed(ctx, userID, tier)
		if err != nil {
			return UserFeeds{}, err
		}
		feeds = setFeed(feeds, tier, roomID)
	}
	return feeds, nil
}

func (s *Service) resolveOwnFeed(ctx context.Context, userID ref.UserID, tier Tier) (ref.RoomID, error) {
	alias, err := FeedAlias(userID, tier)
	if err != nil {
		return ref.RoomID{}, err
	}
	roomID, err := s.session.ResolveAlias(ctx, alias)
	if messaging.IsNotFound(err) {
		return ref.RoomID{}, nil
	}
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("resolving %s: %w", alias, err)
	}
	return roomID, nil
}

// DiscoverFeeds scans the session's joined rooms for m.commons.feed
// markers and returns the feeds found. Rooms without a marker are not
// feed rooms and are skipped silently; rooms with a malformed marker
// are logged and skipped so one bad room cannot hide the rest.
func (s *Service) DiscoverFeeds(ctx context.Context) ([]Feed, error) {
	rooms, err := s.session.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing joined rooms: %w", err)
	}

	var feeds []Feed
	for _, roomID := range rooms {
		raw, err := s.session.GetStateEvent(ctx, roomID, schema.EventTypeFeed, "")
		if messaging.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading feed marker in %s: %w", roomID, err)
		}

		content, err := schema.ParseFeedContent(raw)
		if err != nil {
			s.logger.Warn("skipping room with malformed feed marker",
				"room_id", roomID,
				"error", err)
			continue
		}
		owner, err := ref.ParseUserID(content.Owner)
		if err != nil {
			s.logger.Warn("skipping room with malformed feed marker",
				"room_id", roomID,
				"error", err)
			continue
		}
		tier, err := ParseTier(content.Tier)
		if err != nil {
			s.logger.Warn("skipping room with malformed feed marker",
				"room_id", roomID,
				"error", err)
			continue
		}

		feeds = append(feeds, Feed{Room: roomID, Owner: owner, Tier: tier})
	}
	return feeds, nil
}

// JoinFeed resolves another user's feed alias for the given tier and
// joins the room. Joining works for public feeds; friends and close
// friends rooms reject joins from non-members, so this returns the
// homeserver's error for those unless the caller was invited.
func (s *Service) JoinFeed(ctx context.Context, owner ref.UserID, tier Tier) (ref.RoomID, error) {
	alias, err := FeedAlias(owner, tier)
	if err != nil {
		return ref.RoomID{}, err
	}
	roomID, err := s.session.ResolveAlias(ctx, alias)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("resolving %s: %w", alias, err)
	}
	joined, err := s.session.JoinRoom(ctx, roomID)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("joining %s: %w", alias, err)
	}
	return joined, nil
}

// LeaveFeed leaves a feed room, unsubscribing from its posts.
func (s *Service) LeaveFeed(ctx context.Context, roomID ref.RoomID) error {
	if err := s.session.LeaveRoom(ctx, roomID); err != nil {
		return fmt.Errorf("leaving feed room %s: %w", roomID, err)
	}
	return nil
}

// FeedAlias returns the full room alias of a user's feed at the given
// tier, e.g. "#alice_friends:commons.local".
func FeedAlias(owner ref.UserID, tier Tier) (ref.RoomAlias, error) {
	full := schema.FullRoomAlias(
		schema.FeedAliasLocalpart(owner.Localpart(), tier.AliasSuffix()),
		owner.Server(),
	)
	alias, err := ref.ParseRoomAlias(full)
	if err != nil {
		return ref.RoomAlias{}, fmt.Errorf("building feed alias for %s: %w", owner, err)
	}
	return alias, nil
}

func setFeed(feeds UserFeeds, tier Tier, roomID ref.RoomID) UserFeeds {
	switch tier {
	case TierFriends:
		feeds.Friends = roomID
	case TierCloseFriends:
		feeds.CloseFriends = roomID
	default:
		feeds.Public = roomID
	}
	return feeds
}
