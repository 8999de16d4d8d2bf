// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command framework for the commons binary:
// a declarative [Command] tree with pflag flag parsing, tagged params
// structs, tabwriter help output, typo suggestions, and the shared
// session plumbing (config resolution, login, the saved session file)
// that every authenticated command goes through.
//
// Commands are plain values. Each constructor returns a *Command with
// its flags bound to a package-local params struct; Execute parses
// flags, dispatches subcommands, and calls Run. Commands that talk to
// the homeserver embed [SessionConfig] in their params and call
// Connect, which loads the config file and the session saved by
// "commons login".
package cli
