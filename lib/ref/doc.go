// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references
// for the Matrix identifiers Commons works with: user IDs, room IDs,
// room aliases, event IDs, media URIs, and server names.
//
// All constructors validate their inputs and return errors for invalid
// identifiers. Once constructed, a ref is immutable. Raw strings from
// the wire (sync responses, state events, CLI arguments) are parsed
// into these types at the boundary and stay typed from there on; this
// is what makes the ownership checks in lib/rsvp meaningful, since a
// claimed owner can only be compared after it has survived parsing.
//
// JSON marshaling uses the canonical Matrix string form via
// encoding.TextMarshaler. Unmarshaling an empty string produces the
// zero value, and IsZero reports it; accessor methods on zero values
// panic, because reaching one means a parse step was skipped.
package ref
