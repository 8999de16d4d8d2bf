// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is the Matrix client-server layer for Commons.
//
// Two types split the protocol surface:
//
//   - [Client] is unauthenticated: homeserver reachability, account
//     registration (token-gated, MSC3231), and password login.
//   - [DirectSession] is authenticated: room lifecycle (create, join,
//     knock, leave), membership moderation (invite, kick, ban, unban),
//     timeline and state events, redactions, thread and annotation
//     relations, media transfer, profiles, and incremental /sync.
//
// Social features map onto this surface rather than onto bespoke
// endpoints: a post is a room message, a comment is a thread reply
// ([NewThreadReply]), a reaction is an m.reaction event carrying an
// annotation relation ([NewReaction]), removing a reaction is a
// redaction of the reaction event, and a friend request travels as a
// knock on the target's friends-tier feed room.
//
// Most Commons code depends on the [Session] interface instead of
// *DirectSession so tests can substitute fakes. Operator-only methods
// (AccessToken, DeviceID, media transfer, profile writes, password
// change) live only on *DirectSession; code that needs them should
// type-assert.
//
// Access tokens and passwords are held in secret.Buffer memory
// (mmap-backed, locked against swap, excluded from core dumps) and
// converted to strings only at the HTTP serialization boundary.
// Callers must Close a DirectSession to release the protected memory.
//
// Homeserver error responses decode into [*MatrixError], which carries
// the Matrix error code (M_FORBIDDEN, M_NOT_FOUND, ...), the server's
// message, and the HTTP status. Callers branch on codes with
// [IsMatrixError]; transport failures surface as wrapped plain errors.
//
// Request URLs are built by string concatenation on a base URL with
// the trailing slash stripped, applying url.PathEscape per segment.
// Go's url.URL.String() re-encodes Path even when RawPath is set,
// which corrupts identifiers containing '/' or ':'.
package messaging
