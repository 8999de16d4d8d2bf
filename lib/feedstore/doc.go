// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package feedstore is the local SQLite cache of feed timelines.
//
// The feed service ingests room events from sync and writes them here:
// posts (m.room.message), comments (thread replies), reactions, and
// redactions. Reads never touch the homeserver. The aggregator's
// SourceFetcher is served from this cache, so composing a home timeline
// across dozens of followed feeds is a handful of indexed queries
// instead of a fan-out of /messages calls.
//
// Post content is stored as a CBOR blob (the feed.Content shape),
// compressed per blob with a tagged algorithm. The searchable text of
// each post (body, caption, or link comment) is additionally stored as
// a plain column feeding the BM25 index behind Search.
//
// Writes are idempotent: sync delivers the same event on overlapping
// batches and after reconnects, and every upsert keys on the event ID.
// Comments may arrive before the post they reply to; the comment row is
// kept and the post picks up its count when it lands.
package feedstore
