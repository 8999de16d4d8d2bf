// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package privacy implements the audience lattice and the sharing
// guard that together decide whether content may move between rooms.
//
// Every room and piece of content is classified at one of four levels,
// totally ordered from least to most restrictive:
//
//	Public < Friends < CloseFriends < Private
//
// The ordering is the single source of truth for sharing decisions:
// content may flow only toward an equally or more restrictive
// audience (Level.CanShareTo). ValidateShare applies that rule to a
// cross-post, with three refinements: the Friends → Public transition
// warns instead of blocking, attachments are checked against the
// target audience, and mentioned users must be members of the target
// room. ValidateQuote applies the same ordering to reply quoting.
//
// Decisions are pure values. Nothing in this package talks to the
// network or blocks a send; callers enforce the verdict.
package privacy
