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
	"github.com/commons-foundation/commons/lib/clock"
	"github.com/commons-foundation/commons/lib/gathering"
	"github.com/commons-foundation/commons/lib/schema"
)

func rsvpCommand() *cli.Command {
	return &cli.Command{
		Name:    "rsvp",
		Summary: "Respond to gatherings",
		Description: `Submit and list RSVPs for a gathering.

An RSVP is a per-user record in the gathering's room; submitting
again replaces your previous response. Listings only include records
whose author matches the user they claim to be for, so nobody can
RSVP on someone else's behalf.`,
		Subcommands: []*cli.Command{
			rsvpSetCommand(),
			rsvpListCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Say you are coming, with a plus-one",
				Command:     "commons rsvp set '!gathering:commons.local' --status going --guests 2",
			},
			{
				Description: "See who is coming",
				Command:     "commons rsvp list '!gathering:commons.local'",
			},
		},
	}
}

// rsvpSetParams holds the parameters for rsvp set.
type rsvpSetParams struct {
	cli.SessionConfig
	Status string `flag:"status" desc:"going, interested, or not_going" default:"going"`
	Guests int    `flag:"guests" desc:"party size including yourself" default:"1"`
	Note   string `flag:"note"   desc:"message to the hosts"`
}

func rsvpSetCommand() *cli.Command {
	var params rsvpSetParams

	return &cli.Command{
		Name:    "set",
		Summary: "Submit or update your RSVP",
		Description: `Record your response to a gathering. Submitting again
overwrites the previous response. Gatherings with an RSVP deadline
stop accepting responses once it passes.`,
		Usage: "commons rsvp set <gathering-room> [flags]",
		Examples: []cli.Example{
			{
				Description: "Interested, but not committing",
				Command:     "commons rsvp set '!gathering:commons.local' --status interested",
			},
			{
				Description: "Going with a note",
				Command:     "commons rsvp set '!gathering:commons.local' --guests 3 --note \"bringing salad\"",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one gathering room is required\n\nUsage: commons rsvp set <gathering-room> [flags]")
			}

			content := schema.RsvpContent{
				Status: params.Status,
				Note:   params.Note,
			}
			if params.Guests != 1 {
				content.Guests = &params.Guests
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			roomID, err := parseRoomTarget(ctx, session, args[0])
			if err != nil {
				return err
			}
			service := gathering.NewService(session, clock.Real(), logger)
			if _, err := service.SubmitRsvp(ctx, roomID, content); err != nil {
				return err
			}
			fmt.Printf("RSVP recorded: %s\n", params.Status)
			return nil
		},
	}
}

// rsvpEntry is one row of rsvp list output.
type rsvpEntry struct {
	User      string `json:"user"`
	Status    string `json:"status"`
	Guests    int    `json:"guests"`
	Note      string `json:"note,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func rsvpListCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "list",
		Summary: "List a gathering's RSVPs",
		Description: `Print the validated RSVPs of a gathering, oldest first, with
attendance totals. Records whose author does not match the claimed
user are discarded and reported on stderr.`,
		Usage:  "commons rsvp list <gathering-room> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one gathering room is required\n\nUsage: commons rsvp list <gathering-room> [flags]")
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			roomID, err := parseRoomTarget(ctx, session, args[0])
			if err != nil {
				return err
			}
			service := gathering.NewService(session, clock.Real(), logger)
			rsvps, err := service.ListRsvps(ctx, roomID)
			if err != nil {
				return err
			}

			entries := make([]rsvpEntry, len(rsvps))
			for i, r := range rsvps {
				entries[i] = rsvpEntry{
					User:      r.User.String(),
					Status:    r.Status,
					Guests:    r.Guests,
					Note:      r.Note,
					Timestamp: r.Timestamp.UnixMilli(),
				}
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}

			if len(rsvps) == 0 {
				fmt.Println("No RSVPs yet.")
				return nil
			}
			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "USER\tSTATUS\tGUESTS\tNOTE")
			for _, r := range rsvps {
				fmt.Fprintf(writer, "%s\t%s\t%d\t%s\n", r.User, r.Status, r.Guests, truncate(r.Note, 40))
			}
			if err := writer.Flush(); err != nil {
				return err
			}

			counts := gathering.CountRsvps(rsvps)
			fmt.Printf("\n%d going (%d guests), %d interested, %d not going\n",
				counts.Going, counts.TotalGuests, counts.Interested, counts.NotGoing)
			return nil
		},
	}
}
