// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared Matrix session and sync scaffolding
// for Commons binaries.
//
// The feed cache daemon is a standalone Go binary with its own Matrix
// session and /sync loop; the CLI shares the same session file format.
// This package extracts the scaffolding both need:
//
//   - Session loading and saving: read and write session.json in a
//     state directory, creating an authenticated Matrix client and
//     session with the access token held in guarded memory.
//   - Sync loop: incremental Matrix /sync long-poll with backoff,
//     delivering responses to a caller-provided handler.
//   - Invite acceptance: join rooms the account has been invited to,
//     so a newly accepted friend's feed starts flowing without manual
//     action.
//
// Binaries compose these utilities in their own main() function rather
// than subclassing a framework. The package provides building blocks,
// not a runtime.
package service
