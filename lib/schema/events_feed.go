// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/commons-foundation/commons/lib/ref"
)

// Feed tier constants for the FeedContent.Tier field. Tiers name the
// audience of a feed room; lib/feedroom maps them onto the privacy
// lattice in lib/privacy.
const (
	// FeedTierPublic is a world-readable feed anyone can join.
	FeedTierPublic = "public"

	// FeedTierFriends is an invite-only feed for the owner's friends.
	FeedTierFriends = "friends"

	// FeedTierCloseFriends is an invite-only feed for a hand-picked
	// subset of friends.
	FeedTierCloseFriends = "close_friends"
)

// FeedContent is the content of an EventTypeFeed state event. It binds
// a room to its owner and audience tier. Published once at feed
// creation with state key ""; the owner is the only sender allowed to
// set it (state power level 100), so the owner field can be trusted
// once the room's power levels are verified.
type FeedContent struct {
	// Owner is the full Matrix user ID of the feed owner
	// (e.g., "@alice:commons.local").
	Owner string `json:"owner"`

	// Tier is the feed audience: "public", "friends", or
	// "close_friends".
	Tier string `json:"tier"`
}

// Validate checks that all required fields are present and well-formed.
// Returns an error describing the first invalid field found, or nil if
// the content is valid.
func (f *FeedContent) Validate() error {
	if f.Owner == "" {
		return errors.New("feed content: owner is required")
	}
	if _, err := ref.ParseUserID(f.Owner); err != nil {
		return fmt.Errorf("feed content: owner: %w", err)
	}
	switch f.Tier {
	case FeedTierPublic, FeedTierFriends, FeedTierCloseFriends:
		// Valid.
	case "":
		return errors.New("feed content: tier is required")
	default:
		return fmt.Errorf("feed content: unknown tier %q", f.Tier)
	}
	return nil
}

// ParseFeedContent decodes and validates raw EventTypeFeed state event
// content. Unknown fields are rejected.
func ParseFeedContent(raw json.RawMessage) (FeedContent, error) {
	var content FeedContent
	if err := DecodeStrict(raw, &content); err != nil {
		return FeedContent{}, fmt.Errorf("feed content: %w", err)
	}
	if err := content.Validate(); err != nil {
		return FeedContent{}, err
	}
	return content, nil
}

// FriendsContent is the content of an EventTypeFriends state event,
// marking a space as the owner's friends space. Published once at
// space creation with state key "".
type FriendsContent struct {
	// Owner is the full Matrix user ID of the space owner.
	Owner string `json:"owner"`
}

// Validate checks that the owner field is a well-formed user ID.
func (f *FriendsContent) Validate() error {
	if f.Owner == "" {
		return errors.New("friends content: owner is required")
	}
	if _, err := ref.ParseUserID(f.Owner); err != nil {
		return fmt.Errorf("friends content: owner: %w", err)
	}
	return nil
}

// ParseFriendsContent decodes and validates raw EventTypeFriends state
// event content. Unknown fields are rejected.
func ParseFriendsContent(raw json.RawMessage) (FriendsContent, error) {
	var content FriendsContent
	if err := DecodeStrict(raw, &content); err != nil {
		return FriendsContent{}, fmt.Errorf("friends content: %w", err)
	}
	if err := content.Validate(); err != nil {
		return FriendsContent{}, err
	}
	return content, nil
}
