// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/feedroom"
	"github.com/commons-foundation/commons/lib/friends"
)

// setupParams holds the parameters for commons setup.
type setupParams struct {
	cli.SessionConfig
	cli.JSONOutput
}

// setupOutput is the JSON shape of a completed setup.
type setupOutput struct {
	Feeds        map[string]string `json:"feeds"`
	FriendsSpace string            `json:"friends_space"`
}

func setupCommand() *cli.Command {
	var params setupParams

	return &cli.Command{
		Name:    "setup",
		Summary: "Provision your feed rooms and friends space",
		Description: `Create the Matrix rooms that carry your Commons presence.

Provisions one feed room per tier (public, friends, close_friends)
and the friends space that collects the feeds you follow. Rooms that
already exist are reused, so setup is safe to run again after adding
a tier or recovering an account.

Run this once after "commons login" on a new account. Posting and
following need these rooms to exist.`,
		Usage: "commons setup [flags]",
		Examples: []cli.Example{
			{
				Description: "Provision rooms for the logged-in account",
				Command:     "commons setup",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			feeds, err := feedroom.NewService(session, logger).EnsureFeeds(ctx)
			if err != nil {
				return fmt.Errorf("provisioning feed rooms: %w", err)
			}

			space, err := friends.NewSpaceCache(session, logger).GetOrCreate(ctx)
			if err != nil {
				return fmt.Errorf("provisioning friends space: %w", err)
			}

			output := setupOutput{
				Feeds:        make(map[string]string, len(feedroom.AllTiers())),
				FriendsSpace: space.String(),
			}
			for _, tier := range feedroom.AllTiers() {
				output.Feeds[tier.String()] = feeds.Room(tier).String()
			}
			if done, err := params.EmitJSON(output); done {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "TIER\tROOM\tALIAS")
			for _, tier := range feedroom.AllTiers() {
				alias, err := feedroom.FeedAlias(session.UserID(), tier)
				if err != nil {
					return err
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", tier, feeds.Room(tier), alias)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			fmt.Printf("Friends space: %s\n", space)
			return nil
		},
	}
}
