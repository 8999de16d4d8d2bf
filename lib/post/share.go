// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package post

import (
	"context"
	"fmt"

	"github.com/commons-foundation/commons/lib/feedroom"
	"github.com/commons-foundation/commons/lib/privacy"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/messaging"
)

// ShareOptions adjusts a ShareTo call.
type ShareOptions struct {
	// Attachments are quoted or embedded pieces carried along with the
	// post, tagged with their source room's privacy level.
	Attachments []privacy.Attachment

	// Confirmed marks that the user already accepted a
	// RequiresConfirmation warning for this share.
	Confirmed bool
}

// ShareTo checks a post against the target feed's audience and sends
// it. The privacy verdict is always returned; when it stops the share
// (or requires a confirmation the options do not carry), the returned
// event ID is zero and the error is nil. Callers show the verdict's
// explanation and, for RequiresConfirmation, retry with Confirmed
// set.
func ShareTo(ctx context.Context, session messaging.Session, p *Post, target feedroom.Feed, options ShareOptions) (ref.EventID, privacy.ShareValidation, error) {
	var mentioned []ref.UserID
	if p.Content.Text != nil {
		mentioned = p.Content.Text.Mentions
	}

	members, err := roomMembers(ctx, session, target.Room)
	if err != nil {
		return ref.EventID{}, privacy.ShareValidation{}, fmt.Errorf("members of %s: %w", target.Room, err)
	}

	validation := privacy.ValidateShare(p.Level, target.Tier.ContentLevel(), mentioned, members, options.Attachments)
	if validation.Verdict == privacy.RequiresConfirmation && options.Confirmed {
		validation = privacy.ShareValidation{Verdict: privacy.Allowed}
	}
	if !validation.IsAllowed() {
		return ref.EventID{}, validation, nil
	}

	message, err := p.Message()
	if err != nil {
		return ref.EventID{}, validation, err
	}
	eventID, err := session.SendMessage(ctx, target.Room, message)
	if err != nil {
		return ref.EventID{}, validation, fmt.Errorf("send post to %s: %w", target.Room, err)
	}
	return eventID, validation, nil
}

// roomMembers returns the joined and invited members of a room. Both
// memberships satisfy the mention rule.
func roomMembers(ctx context.Context, session messaging.Session, roomID ref.RoomID) ([]ref.UserID, error) {
	members, err := session.GetRoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	users := make([]ref.UserID, 0, len(members))
	for _, member := range members {
		if member.Membership == "join" || member.Membership == "invite" {
			users = append(users, member.UserID)
		}
	}
	return users, nil
}
