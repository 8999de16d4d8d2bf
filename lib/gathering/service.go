// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package gathering

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/commons-foundation/commons/lib/clock"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

// Service creates and manages gathering rooms for one logged-in
// session.
type Service struct {
	session messaging.Session
	clock   clock.Clock
	logger  *slog.Logger
}

// NewService returns a gathering service bound to the given session.
// A nil clock uses the real clock; a nil logger discards log output.
func NewService(session messaging.Session, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{session: session, clock: clk, logger: logger}
}

// CreateGathering creates a gathering room and returns its room ID.
// The room's name and topic mirror the gathering title and
// description, its join rule follows the gathering visibility, and the
// m.commons.gathering state event carries the full details.
//
// guestsCanInvite opens the invite permission to every guest instead
// of reserving it for co-hosts.
func (s *Service) CreateGathering(ctx context.Context, details schema.GatheringContent, guestsCanInvite bool) (ref.RoomID, error) {
	if err := details.Validate(); err != nil {
		return ref.RoomID{}, err
	}

	joinRule := "invite"
	var visibility string
	if details.Visibility == schema.VisibilityPublic {
		joinRule = "public"
		visibility = "public"
	}

	request := messaging.CreateRoomRequest{
		Name:       details.Title,
		Topic:      details.Description,
		Visibility: visibility,
		InitialState: []messaging.StateEvent{
			{
				Type:    schema.MatrixEventTypeJoinRules,
				Content: map[string]any{"join_rule": joinRule},
			},
			{
				Type:    schema.EventTypeGathering,
				Content: details,
			},
		},
		PowerLevelContentOverride: schema.GatheringRoomPowerLevels(s.session.UserID().String(), guestsCanInvite),
	}

	response, err := s.session.CreateRoom(ctx, request)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("creating gathering room: %w", err)
	}

	s.logger.Info("created gathering",
		"room_id", response.RoomID,
		"title", details.Title,
		"visibility", details.Visibility)
	return response.RoomID, nil
}

// GetGathering reads a room's gathering details.
func (s *Service) GetGathering(ctx context.Context, roomID ref.RoomID) (schema.GatheringContent, error) {
	raw, err := s.session.GetStateEvent(ctx, roomID, schema.EventTypeGathering, "")
	if messaging.IsNotFound(err) {
		return schema.GatheringContent{}, fmt.Errorf("%s is not a gathering room", roomID)
	}
	if err != nil {
		return schema.GatheringContent{}, fmt.Errorf("reading gathering details in %s: %w", roomID, err)
	}
	content, err := schema.ParseGatheringContent(raw)
	if err != nil {
		return schema.GatheringContent{}, fmt.Errorf("in %s: %w", roomID, err)
	}
	return content, nil
}

// UpdateGathering replaces a gathering's details. The homeserver
// rejects the write unless the sender holds co-host level or above.
func (s *Service) UpdateGathering(ctx context.Context, roomID ref.RoomID, details schema.GatheringContent) error {
	if err := details.Validate(); err != nil {
		return err
	}
	if _, err := s.session.SendStateEvent(ctx, roomID, schema.EventTypeGathering, "", details); err != nil {
		return fmt.Errorf("updating gathering in %s: %w", roomID, err)
	}
	return nil
}

// InviteGuest invites a user to the gathering.
func (s *Service) InviteGuest(ctx context.Context, roomID ref.RoomID, guest ref.UserID) error {
	if err := s.session.InviteUser(ctx, roomID, guest); err != nil {
		return fmt.Errorf("inviting %s to gathering %s: %w", guest, roomID, err)
	}
	return nil
}

// AddCoHost promotes a member to co-host. The promotion is a power
// level grant, so it survives in room state and the homeserver
// enforces the new permissions immediately.
func (s *Service) AddCoHost(ctx context.Context, roomID ref.RoomID, cohost ref.UserID) error {
	grants := schema.PowerLevelGrants{
		Users: map[ref.UserID]int{cohost: RoleCoHost.PowerLevel()},
	}
	if err := schema.GrantPowerLevels(ctx, s.session, roomID, grants); err != nil {
		return fmt.Errorf("promoting %s to co-host in %s: %w", cohost, roomID, err)
	}
	s.logger.Info("added co-host", "room_id", roomID, "cohost", cohost)
	return nil
}

// MemberRole reports a member's role in the gathering, read from the
// room's power levels.
func (s *Service) MemberRole(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (Role, error) {
	raw, err := s.session.GetStateEvent(ctx, roomID, schema.MatrixEventTypePowerLevels, "")
	if err != nil {
		return RoleGuest, fmt.Errorf("reading power levels in %s: %w", roomID, err)
	}
	var powerLevels schema.PowerLevels
	if err := json.Unmarshal(raw, &powerLevels); err != nil {
		return RoleGuest, fmt.Errorf("parsing power levels in %s: %w", roomID, err)
	}
	return RoleForLevel(powerLevels.UserLevel(userID.String())), nil
}
