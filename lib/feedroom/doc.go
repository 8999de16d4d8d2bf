// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package feedroom manages a user's feed rooms: the Matrix rooms their
// posts are published into.
//
// Every user has up to three feed rooms, one per audience [Tier]:
// public, friends, and close friends. The tier fixes the room's join
// rule and history visibility at creation (a public feed is world
// readable and joinable; a friends feed accepts knocks, which is how
// friend requests arrive; a close friends feed is invite only). The
// tier also maps onto the content privacy lattice via [Tier.ContentLevel],
// which is what the sharing guard in lib/privacy checks against.
//
// Feed rooms are identified by an m.commons.feed state marker, not by
// name or alias: [Service.DiscoverFeeds] scans joined rooms for the
// marker, so renaming a feed room does not break discovery. Private
// content has no feed room at all; it never leaves the author's own
// account.
package feedroom
