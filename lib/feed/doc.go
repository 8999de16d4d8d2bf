// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed merges the timelines of multiple feed rooms into one
// aggregated, sorted, filterable feed.
//
// An Aggregator owns a set of tracked source rooms and the active
// sort order. Fetch pulls recent items from every source through the
// SourceFetcher collaborator, concatenates them, sorts, and
// truncates. The merge is a batch: sorting runs only after every
// fetch returns, so a fixed item set produces the same sequence no
// matter how the fetches interleave. The aggregator performs no I/O
// of its own and attaches no retry or error semantics to the
// collaborator's failures.
//
// Every Item is an owned snapshot, never a live view into room
// state. Engagement (reaction total plus comment count) is computed
// on demand, never stored.
//
// FilterSettings is a separate, composable stage over the merged
// feed: content kind, author allow-list, mutes, minimum engagement,
// and maximum age, all AND-ed, order-preserving, and idempotent.
package feed
