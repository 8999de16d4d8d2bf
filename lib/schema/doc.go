// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the Matrix event types and content structures
// that constitute the Commons protocol. Event type constants
// (EventType*) are Matrix event type strings; Go structs define the
// JSON content.
//
// Key event types:
//
//   - [EventTypeFeed] -- feed room marker (owner and tier), the basis
//     of feed discovery
//   - [EventTypeGathering] -- gathering room state (title, times,
//     location, visibility)
//   - [EventTypeRsvp] -- per-user RSVP records, state key = claimed
//     owner user ID
//   - [EventTypeProfile] -- per-user profile records, state key =
//     claimed owner user ID
//   - [EventTypeFriends] -- friends space marker
//
// Per-user records (RSVPs, profiles) declare their owner in the state
// key. The transport does not bind that claim to the event sender, so
// consumers must run the record through lib/rsvp ownership validation
// and discard anything that fails. Content payloads with
// privacy-relevant fields are decoded with [DecodeStrict], which
// rejects unknown fields instead of ignoring them.
//
// [FeedRoomPowerLevels] and [GatheringRoomPowerLevels] produce Matrix
// power level content for the Commons room types. [GrantPowerLevels]
// performs the read-modify-write cycle used to promote co-hosts after
// room creation.
//
// This package depends only on lib/ref.
package schema
