// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/commons-foundation/commons/lib/ref"
)

// Gathering visibility constants for the GatheringContent.Visibility
// field.
const (
	// VisibilityPublic gatherings are joinable by anyone and listed in
	// the public room directory.
	VisibilityPublic = "public"

	// VisibilityPrivate gatherings are invite-only.
	VisibilityPrivate = "private"
)

// RSVP status constants for the RsvpContent.Status field. These are
// wire-format identifiers; changing one orphans every existing RSVP
// record of that status.
const (
	// RsvpGoing means the user will attend. Only going RSVPs
	// contribute guests to attendance counts.
	RsvpGoing = "going"

	// RsvpInterested means the user may attend.
	RsvpInterested = "interested"

	// RsvpNotGoing means the user will not attend.
	RsvpNotGoing = "not_going"
)

// GatheringContent is the content of an EventTypeGathering state event:
// everything a client needs to render a gathering page. Times are
// milliseconds since the Unix epoch, matching Matrix origin_server_ts.
type GatheringContent struct {
	// Title is the gathering's display title.
	Title string `json:"title"`

	// Description is free-form detail text.
	Description string `json:"description,omitempty"`

	// StartTime is when the gathering begins, in epoch milliseconds.
	StartTime int64 `json:"start_time"`

	// EndTime is when the gathering ends, in epoch milliseconds. Zero
	// (omitted) means open-ended.
	EndTime int64 `json:"end_time,omitempty"`

	// Location is where the gathering takes place.
	Location *Location `json:"location,omitempty"`

	// CoverImage is an mxc URI for the gathering's banner image.
	CoverImage string `json:"cover_image,omitempty"`

	// Visibility is "public" or "private". Decides the room's join
	// rule at creation and is re-checked by the sharing guard when a
	// gathering is cross-posted.
	Visibility string `json:"visibility"`

	// RsvpDeadline is the last moment RSVPs are accepted, in epoch
	// milliseconds. Zero (omitted) means no deadline.
	RsvpDeadline int64 `json:"rsvp_deadline,omitempty"`
}

// Location is a gathering venue.
type Location struct {
	// Name is the venue's display name (e.g., "Dolores Park").
	Name string `json:"name"`

	// Address is a postal address.
	Address string `json:"address,omitempty"`

	// Geo is a "geo:" URI with latitude and longitude.
	Geo string `json:"geo,omitempty"`
}

// Validate checks that all required fields are present and well-formed.
// Returns an error describing the first invalid field found, or nil if
// the content is valid.
func (g *GatheringContent) Validate() error {
	if g.Title == "" {
		return errors.New("gathering content: title is required")
	}
	if g.StartTime <= 0 {
		return fmt.Errorf("gathering content: start_time must be positive epoch milliseconds, got %d", g.StartTime)
	}
	if g.EndTime != 0 && g.EndTime < g.StartTime {
		return fmt.Errorf("gathering content: end_time %d precedes start_time %d", g.EndTime, g.StartTime)
	}
	if g.Location != nil {
		if g.Location.Name == "" {
			return errors.New("gathering content: location: name is required")
		}
	}
	if g.CoverImage != "" {
		if _, err := ref.ParseMediaURI(g.CoverImage); err != nil {
			return fmt.Errorf("gathering content: cover_image: %w", err)
		}
	}
	switch g.Visibility {
	case VisibilityPublic, VisibilityPrivate:
		// Valid.
	case "":
		return errors.New("gathering content: visibility is required")
	default:
		return fmt.Errorf("gathering content: unknown visibility %q", g.Visibility)
	}
	if g.RsvpDeadline != 0 && g.RsvpDeadline < 0 {
		return fmt.Errorf("gathering content: rsvp_deadline must be positive epoch milliseconds, got %d", g.RsvpDeadline)
	}
	return nil
}

// ParseGatheringContent decodes and validates raw EventTypeGathering
// state event content. Unknown fields are rejected.
func ParseGatheringContent(raw json.RawMessage) (GatheringContent, error) {
	var content GatheringContent
	if err := DecodeStrict(raw, &content); err != nil {
		return GatheringContent{}, fmt.Errorf("gathering content: %w", err)
	}
	if err := content.Validate(); err != nil {
		return GatheringContent{}, err
	}
	return content, nil
}

// RsvpContent is the content of an EventTypeRsvp state event. The
// record's owner is declared by the state key, not by any content
// field; lib/rsvp validates that claim against the event sender.
//
// Guests is a pointer so "not set" (default 1) is distinct from an
// explicit value. An explicit zero or negative count is invalid.
type RsvpContent struct {
	// Status is "going", "interested", or "not_going".
	Status string `json:"status"`

	// Guests is the party size including the responding user. Omitted
	// means 1. Only meaningful for going RSVPs.
	Guests *int `json:"guests,omitempty"`

	// Note is an optional free-form message to the hosts.
	Note string `json:"note,omitempty"`
}

// Validate checks that all fields are well-formed. Returns an error
// describing the first invalid field found, or nil if the content is
// valid.
func (r *RsvpContent) Validate() error {
	switch r.Status {
	case RsvpGoing, RsvpInterested, RsvpNotGoing:
		// Valid.
	case "":
		return errors.New("rsvp content: status is required")
	default:
		return fmt.Errorf("rsvp content: unknown status %q", r.Status)
	}
	if r.Guests != nil && *r.Guests < 1 {
		return fmt.Errorf("rsvp content: guests must be >= 1, got %d", *r.Guests)
	}
	return nil
}

// GuestCount returns the party size, applying the default of 1 when
// the guests field was omitted.
func (r *RsvpContent) GuestCount() int {
	if r.Guests == nil {
		return 1
	}
	return *r.Guests
}

// ParseRsvpContent decodes and validates raw EventTypeRsvp state event
// content. Unknown fields are rejected.
func ParseRsvpContent(raw json.RawMessage) (RsvpContent, error) {
	var content RsvpContent
	if err := DecodeStrict(raw, &content); err != nil {
		return RsvpContent{}, fmt.Errorf("rsvp content: %w", err)
	}
	if err := content.Validate(); err != nil {
		return RsvpContent{}, err
	}
	return content, nil
}
