// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package gathering manages gathering rooms: community events with a
// creator, co-hosts, and guests.
//
// A gathering is a Matrix room whose m.commons.gathering state event
// carries the title, time, location, and visibility. Public gatherings
// are joinable by anyone; private ones are invite-only. The three
// roles map to power levels (creator 100, co-host 50, guest 0), so the
// homeserver enforces who can edit details, moderate, and invite.
//
// RSVPs are m.commons.rsvp state events keyed by the responding user's
// ID. The homeserver does not check that the state key matches the
// sender, so every record read back passes through lib/rsvp's
// ownership validation and spoofed records are discarded.
package gathering
