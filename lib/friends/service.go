// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package friends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/commons-foundation/commons/lib/feedroom"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

// PendingRequest is one unanswered friend request: a knock on the
// session user's friends feed.
type PendingRequest struct {
	// Requester is the knocking user.
	Requester ref.UserID

	// Room is the friends feed room the knock arrived in.
	Room ref.RoomID

	// Timestamp is when the knock was sent.
	Timestamp time.Time

	// Message is the optional request message the requester attached.
	Message string
}

// Service performs friend-request operations for one logged-in
// session.
type Service struct {
	session messaging.Session
	logger  *slog.Logger
}

// NewService returns a friends service bound to the given session.
// A nil logger discards log output.
func NewService(session messaging.Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{session: session, logger: logger}
}

// SendRequest sends a friend request to target by knocking on their
// friends feed room. The message travels as the knock reason and shows
// up in the target's pending-request list.
func (s *Service) SendRequest(ctx context.Context, target ref.UserID, message string) (ref.RoomID, error) {
	roomID, err := s.resolveFriendsFeed(ctx, target)
	if err != nil {
		return ref.RoomID{}, err
	}
	if roomID.IsZero() {
		return ref.RoomID{}, fmt.Errorf("%s has no friends feed to request", target)
	}
	knocked, err := s.session.KnockRoom(ctx, roomID, message)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("sending friend request to %s: %w", target, err)
	}
	s.logger.Info("sent friend request", "target", target, "room_id", knocked)
	return knocked, nil
}

// CancelRequest withdraws a pending friend request by leaving the
// target's friends feed room, which retracts the knock.
func (s *Service) CancelRequest(ctx context.Context, target ref.UserID) error {
	roomID, err := s.resolveFriendsFeed(ctx, target)
	if err != nil {
		return err
	}
	if roomID.IsZero() {
		return fmt.Errorf("%s has no friends feed", target)
	}
	if err := s.session.LeaveRoom(ctx, roomID); err != nil {
		return fmt.Errorf("cancelling friend request to %s: %w", target, err)
	}
	return nil
}

// PendingRequests lists the unanswered knocks on the session user's
// friends feed, oldest first. Knocks with a state key that is not a
// well-formed user ID are logged and skipped.
func (s *Service) PendingRequests(ctx context.Context, friendsRoom ref.RoomID) ([]PendingRequest, error) {
	state, err := s.session.GetRoomState(ctx, friendsRoom)
	if err != nil {
		return nil, fmt.Errorf("reading friends feed state: %w", err)
	}

	var requests []PendingRequest
	for _, event := range state {
		if event.Type != schema.MatrixEventTypeMember || event.StateKey == nil {
			continue
		}
		membership, _ := event.Content["membership"].(string)
		if membership != "knock" {
			continue
		}
		requester, err := ref.ParseUserID(*event.StateKey)
		if err != nil {
			s.logger.Warn("skipping knock with malformed state key",
				"room_id", friendsRoom,
				"state_key", *event.StateKey,
				"error", err)
			continue
		}
		message, _ := event.Content["reason"].(string)
		requests = append(requests, PendingRequest{
			Requester: requester,
			Room:      friendsRoom,
			Timestamp: time.UnixMilli(event.OriginServerTS),
			Message:   message,
		})
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Timestamp.Before(requests[j].Timestamp)
	})
	return requests, nil
}

// Accept answers a friend request by inviting the knocker into the
// friends feed.
func (s *Service) Accept(ctx context.Context, friendsRoom ref.RoomID, requester ref.UserID) error {
	if err := s.session.InviteUser(ctx, friendsRoom, requester); err != nil {
		return fmt.Errorf("accepting friend request from %s: %w", requester, err)
	}
	s.logger.Info("accepted friend request", "requester", requester, "room_id", friendsRoom)
	return nil
}

// Decline answers a friend request by kicking the knocker. The
// requester may knock again later.
func (s *Service) Decline(ctx context.Context, friendsRoom ref.RoomID, requester ref.UserID, reason string) error {
	if err := s.session.KickUser(ctx, friendsRoom, requester, reason); err != nil {
		return fmt.Errorf("declining friend request from %s: %w", requester, err)
	}
	return nil
}

// Block bans a user from the friends feed. Future knocks from them are
// rejected by the homeserver without notifying the session user.
func (s *Service) Block(ctx context.Context, friendsRoom ref.RoomID, target ref.UserID, reason string) error {
	if err := s.session.BanUser(ctx, friendsRoom, target, reason); err != nil {
		return fmt.Errorf("blocking %s: %w", target, err)
	}
	s.logger.Info("blocked user", "target", target, "room_id", friendsRoom)
	return nil
}

// Unblock lifts a ban. The unblocked user is not re-invited; they may
// send a new request.
func (s *Service) Unblock(ctx context.Context, friendsRoom ref.RoomID, target ref.UserID) error {
	if err := s.session.UnbanUser(ctx, friendsRoom, target); err != nil {
		return fmt.Errorf("unblocking %s: %w", target, err)
	}
	return nil
}

// State derives the relationship between the session user and target.
// The incoming direction is read from the target's membership in the
// session user's friends feed. The outgoing direction is read from the
// session user's membership in the target's friends feed when that
// room's state is readable; a room that does not exist or refuses the
// read counts as no membership.
func (s *Service) State(ctx context.Context, ownFriendsRoom ref.RoomID, target ref.UserID) (RequestState, error) {
	theirMembership, err := s.memberState(ctx, ownFriendsRoom, target)
	if err != nil {
		return StateNone, err
	}

	var myMembership string
	targetRoom, err := s.resolveFriendsFeed(ctx, target)
	if err != nil {
		return StateNone, err
	}
	if !targetRoom.IsZero() {
		myMembership, err = s.memberState(ctx, targetRoom, s.session.UserID())
		if err != nil {
			return StateNone, err
		}
	}

	return DeriveState(theirMembership, myMembership), nil
}

// memberState returns a user's membership in a room, or "" when no
// member event exists or the room refuses the read.
func (s *Service) memberState(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (string, error) {
	raw, err := s.session.GetStateEvent(ctx, roomID, schema.MatrixEventTypeMember, userID.String())
	if messaging.IsNotFound(err) || messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading membership of %s in %s: %w", userID, roomID, err)
	}
	// Member events carry display names, avatars, and server-specific
	// extras; decode loosely and take only the membership.
	var content struct {
		Membership string `json:"membership"`
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return "", fmt.Errorf("parsing membership of %s in %s: %w", userID, roomID, err)
	}
	return content.Membership, nil
}

func (s *Service) resolveFriendsFeed(ctx context.Context, owner ref.UserID) (ref.RoomID, error) {
	alias, err := feedroom.FeedAlias(owner, feedroom.TierFriends)
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
