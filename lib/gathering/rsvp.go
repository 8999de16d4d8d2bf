// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package gathering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/rsvp"
	"github.com/commons-foundation/commons/lib/schema"
)

// ErrRsvpClosed is returned by SubmitRsvp after the gathering's RSVP
// deadline has passed.
var ErrRsvpClosed = errors.New("rsvp deadline has passed")

// Rsvp is one validated RSVP record.
type Rsvp struct {
	// User is the responding guest, verified to be the record's
	// author.
	User ref.UserID

	// Status is "going", "interested", or "not_going".
	Status string

	// Guests is the party size including the responding user.
	Guests int

	// Note is an optional message to the hosts.
	Note string

	// Timestamp is when the RSVP was submitted.
	Timestamp time.Time
}

// Counts aggregates a gathering's RSVPs. TotalGuests sums party sizes
// for going responses only; an interested guest reserves no seats.
type Counts struct {
	Going       int
	Interested  int
	NotGoing    int
	TotalGuests int
}

// SubmitRsvp writes the session user's RSVP as a state event keyed by
// their own user ID. Submitting again overwrites the previous
// response. Returns ErrRsvpClosed when the gathering has a deadline
// and it has passed.
func (s *Service) SubmitRsvp(ctx context.Context, roomID ref.RoomID, content schema.RsvpContent) (ref.EventID, error) {
	if err := content.Validate(); err != nil {
		return ref.EventID{}, err
	}

	details, err := s.GetGathering(ctx, roomID)
	if err != nil {
		return ref.EventID{}, err
	}
	if details.RsvpDeadline != 0 && s.clock.Now().UnixMilli() > details.RsvpDeadline {
		return ref.EventID{}, ErrRsvpClosed
	}

	eventID, err := s.session.SendStateEvent(ctx, roomID, schema.EventTypeRsvp, s.session.UserID().String(), content)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("submitting rsvp in %s: %w", roomID, err)
	}
	return eventID, nil
}

// ListRsvps returns a gathering's RSVPs, oldest first. Every record's
// state key is checked against its sender; spoofed or malformed
// records are logged and discarded, never returned. Records with
// empty content are cleared RSVPs and are skipped silently.
func (s *Service) ListRsvps(ctx context.Context, roomID ref.RoomID) ([]Rsvp, error) {
	state, err := s.session.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("reading gathering state in %s: %w", roomID, err)
	}

	var rsvps []Rsvp
	for _, event := range state {
		if event.Type != schema.EventTypeRsvp || event.StateKey == nil {
			continue
		}
		if len(event.Content) == 0 {
			continue
		}

		validation := rsvp.ValidateOwnership(*event.StateKey, event.Sender)
		if !validation.IsValid() {
			s.logger.Warn("discarding rsvp record",
				"room_id", roomID,
				"outcome", validation.Outcome.String(),
				"claimed", validation.Claimed,
				"actual", validation.Actual,
				"reason", validation.Reason)
			continue
		}

		raw, err := json.Marshal(event.Content)
		if err != nil {
			s.logger.Warn("discarding unencodable rsvp record",
				"room_id", roomID,
				"user", event.Sender,
				"error", err)
			continue
		}
		content, err := schema.ParseRsvpContent(raw)
		if err != nil {
			s.logger.Warn("discarding malformed rsvp record",
				"room_id", roomID,
				"user", event.Sender,
				"error", err)
			continue
		}

		rsvps = append(rsvps, Rsvp{
			User:      event.Sender,
			Status:    content.Status,
			Guests:    content.GuestCount(),
			Note:      content.Note,
			Timestamp: time.UnixMilli(event.OriginServerTS),
		})
	}

	sort.Slice(rsvps, func(i, j int) bool {
		return rsvps[i].Timestamp.Before(rsvps[j].Timestamp)
	})
	return rsvps, nil
}

// CountRsvps aggregates a list of validated RSVPs.
func CountRsvps(rsvps []Rsvp) Counts {
	var counts Counts
	for _, record := range rsvps {
		switch record.Status {
		case schema.RsvpGoing:
			counts.Going++
			counts.TotalGuests += record.Guests
		case schema.RsvpInterested:
			counts.Interested++
		case schema.RsvpNotGoing:
			counts.NotGoing++
		}
	}
	return counts
}

// CountsFor fetches and aggregates a gathering's RSVPs in one call.
func (s *Service) CountsFor(ctx context.Context, roomID ref.RoomID) (Counts, error) {
	rsvps, err := s.ListRsvps(ctx, roomID)
	if err != nil {
		return Counts{}, err
	}
	return CountRsvps(rsvps), nil
}
