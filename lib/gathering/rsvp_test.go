// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package gathering

import (
	"context"
	"testing"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

func rsvpEvent(user ref.UserID, stateKeyOverride string, content map[string]any, ts int64) messaging.Event {
	key := user.String()
	if stateKeyOverride != "" {
		key = stateKeyOverride
	}
	return messaging.Event{
		Type:           schema.EventTypeRsvp,
		StateKey:       &key,
		Sender:         user,
		OriginServerTS: ts,
		Content:        content,
	}
}

func TestListRsvps(t *testing.T) {
	carol := ref.MustParseUserID("@carol:commons.local")
	mallory := ref.MustParseUserID("@mallory:commons.local")

	session := &fakeSession{
		userID: hostUser,
		roomState: map[ref.RoomID][]messaging.Event{
			partyRoom: {
				rsvpEvent(guestUser, "", map[string]any{"status": "going", "guests": float64(2), "note": "bringing chips"}, 2000),
				rsvpEvent(carol, "", map[string]any{"status": "interested"}, 1000),
				// Spoofed: mallory wrote a record under carol's key.
				rsvpEvent(mallory, carol.String(), map[string]any{"status": "not_going"}, 3000),
				// Malformed status.
				rsvpEvent(ref.MustParseUserID("@dan:commons.local"), "", map[string]any{"status": "maybe"}, 4000),
				// Cleared record.
				rsvpEvent(ref.MustParseUserID("@erin:commons.local"), "", map[string]any{}, 5000),
			},
		},
	}
	service := NewService(session, nil, nil)

	rsvps, err := service.ListRsvps(context.Background(), partyRoom)
	if err != nil {
		t.Fatalf("ListRsvps: %v", err)
	}
	if len(rsvps) != 2 {
		t.Fatalf("got %d rsvps, want 2 surviving validation: %+v", len(rsvps), rsvps)
	}

	// Oldest first.
	if rsvps[0].User != carol || rsvps[0].Status != schema.RsvpInterested {
		t.Errorf("rsvps[0] = %+v, want carol interested", rsvps[0])
	}
	if rsvps[0].Guests != 1 {
		t.Errorf("carol guests = %d, want default 1", rsvps[0].Guests)
	}
	if rsvps[1].User != guestUser || rsvps[1].Guests != 2 {
		t.Errorf("rsvps[1] = %+v, want bob going with 2 guests", rsvps[1])
	}
	if rsvps[1].Note != "bringing chips" {
		t.Errorf("note = %q, want the submitted note", rsvps[1].Note)
	}
}

func TestCountRsvps(t *testing.T) {
	rsvps := []Rsvp{
		{Status: schema.RsvpGoing, Guests: 2},
		{Status: schema.RsvpGoing, Guests: 1},
		{Status: schema.RsvpInterested, Guests: 4},
		{Status: schema.RsvpNotGoing, Guests: 1},
	}

	counts := CountRsvps(rsvps)
	if counts.Going != 2 {
		t.Errorf("Going = %d, want 2", counts.Going)
	}
	if counts.Interested != 1 {
		t.Errorf("Interested = %d, want 1", counts.Interested)
	}
	if counts.NotGoing != 1 {
		t.Errorf("NotGoing = %d, want 1", counts.NotGoing)
	}
	// Interested party sizes reserve no seats.
	if counts.TotalGuests != 3 {
		t.Errorf("TotalGuests = %d, want 3 (going only)", counts.TotalGuests)
	}
}

func TestCountsFor(t *testing.T) {
	session := &fakeSession{
		userID: hostUser,
		roomState: map[ref.RoomID][]messaging.Event{
			partyRoom: {
				rsvpEvent(guestUser, "", map[string]any{"status": "going", "guests": float64(3)}, 1000),
			},
		},
	}
	service := NewService(session, nil, nil)

	counts, err := service.CountsFor(context.Background(), partyRoom)
	if err != nil {
		t.Fatalf("CountsFor: %v", err)
	}
	if counts.Going != 1 || counts.TotalGuests != 3 {
		t.Errorf("counts = %+v, want 1 going with 3 guests", counts)
	}
}
