// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package reaction aggregates emoji reactions on posts.
//
// A Summary owns the reactions of exactly one post. Authenticated
// annotation events are folded in with Add and withdrawn with Remove;
// partial summaries from different sources combine with Merge. A user
// contributes at most one counted reaction per emoji, so replayed or
// duplicated delivery never inflates a count, and merging overlapping
// summaries never double-counts.
//
// All iteration orders derive from first insertion rather than map
// order: two summaries fed the same record sequence rank, list, and
// merge identically. Top returns the highest-count emojis with ties
// kept in insertion order, and ForDisplay turns that ranking into
// chips with the viewer's own reactions marked.
//
// The package also carries the quick-reaction palette: the standard
// emoji constants, the default picker row, and an optional JSONC
// palette file for overriding it.
package reaction
