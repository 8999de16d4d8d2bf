// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/version"
)

// rootCommand builds the complete commons CLI command tree.
func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "commons",
		Description: `Commons: Matrix-native social commons.

Post to tiered feeds, follow friends, organize gatherings, and browse
an aggregated timeline, with privacy enforcement on every share.`,
		Subcommands: []*cli.Command{
			cli.LoginCommand(),
			cli.RegisterCommand(),
			cli.WhoAmICommand(),
			setupCommand(),
			feedCommand(),
			postCommand(),
			commentCommand(),
			reactCommand(),
			rsvpCommand(),
			gatheringCommand(),
			friendsCommand(),
			profileCommand(),
			mediaCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("commons %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Authenticate against the homeserver (saves session locally)",
				Command:     "commons login alice",
			},
			{
				Description: "Provision your feed rooms and friends space",
				Command:     "commons setup",
			},
			{
				Description: "Post to your friends feed",
				Command:     "commons post \"hello from the commons\"",
			},
			{
				Description: "Browse your aggregated timeline",
				Command:     "commons feed show",
			},
			{
				Description: "Send a friend request",
				Command:     "commons friends request @bob:commons.local -m \"met at the garden\"",
			},
			{
				Description: "RSVP to a gathering",
				Command:     "commons rsvp set '!gathering:commons.local' --status going --guests 2",
			},
		},
	}
}
