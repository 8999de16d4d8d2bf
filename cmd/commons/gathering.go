// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/clock"
	"github.com/commons-foundation/commons/lib/gathering"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
)

func gatheringCommand() *cli.Command {
	return &cli.Command{
		Name:    "gathering",
		Summary: "Organize gatherings",
		Description: `Create and manage gatherings: dated events with RSVPs.

A gathering is a Matrix room carrying an m.commons.gathering state
event with the details. The creator hosts; co-hosts can edit details
and invite; guests RSVP with "commons rsvp".`,
		Subcommands: []*cli.Command{
			gatheringCreateCommand(),
			gatheringUpdateCommand(),
			gatheringShowCommand(),
			gatheringInviteCommand(),
			gatheringCohostCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Create a public gathering",
				Command:     "commons gathering create \"Solstice Bonfire\" --start \"2026-06-21 19:00\" --location \"Ocean Beach\"",
			},
			{
				Description: "Invite a guest",
				Command:     "commons gathering invite '!gathering:commons.local' @bob:commons.local",
			},
		},
	}
}

// gatheringCreateParams holds the parameters for gathering create.
type gatheringCreateParams struct {
	cli.SessionConfig
	Description     string `flag:"description"       desc:"free-form detail text"`
	Start           string `flag:"start"             desc:"start time, RFC 3339 or \"2006-01-02 15:04\" local (required)"`
	End             string `flag:"end"               desc:"end time (default: open-ended)"`
	Location        string `flag:"location"          desc:"venue name"`
	Address         string `flag:"address"           desc:"venue address"`
	Visibility      string `flag:"visibility"        desc:"public or private" default:"private"`
	Deadline        string `flag:"rsvp-by"           desc:"last moment RSVPs are accepted"`
	GuestsCanInvite bool   `flag:"guests-can-invite" desc:"let any guest invite others"`
}

func gatheringCreateCommand() *cli.Command {
	var params gatheringCreateParams

	return &cli.Command{
		Name:    "create",
		Summary: "Create a gathering",
		Description: `Create a gathering room and publish its details. You become
the host. Public gatherings accept knocks; private ones are
invite-only.`,
		Usage: "commons gathering create <title> [flags]",
		Examples: []cli.Example{
			{
				Description: "A private dinner with an RSVP deadline",
				Command:     "commons gathering create \"Harvest Dinner\" --start \"2026-10-03 18:30\" --rsvp-by \"2026-10-01 12:00\"",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("title is required\n\nUsage: commons gathering create <title> [flags]")
			}
			title := strings.Join(args, " ")
			if params.Start == "" {
				return fmt.Errorf("--start is required")
			}

			details := schema.GatheringContent{
				Title:       title,
				Description: params.Description,
				Visibility:  params.Visibility,
			}
			var err error
			details.StartTime, err = parseEventTime(params.Start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			if params.End != "" {
				details.EndTime, err = parseEventTime(params.End)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
			}
			if params.Deadline != "" {
				details.RsvpDeadline, err = parseEventTime(params.Deadline)
				if err != nil {
					return fmt.Errorf("invalid --rsvp-by: %w", err)
				}
			}
			if params.Location != "" {
				details.Location = &schema.Location{
					Name:    params.Location,
					Address: params.Address,
				}
			} else if params.Address != "" {
				return fmt.Errorf("--address needs --location")
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			service := gathering.NewService(session, clock.Real(), logger)
			roomID, err := service.CreateGathering(ctx, details, params.GuestsCanInvite)
			if err != nil {
				return err
			}
			fmt.Printf("Created gathering %q: %s\n", title, roomID)
			return nil
		},
	}
}

// gatheringUpdateParams holds the parameters for gathering update.
// Empty flags leave the corresponding detail untouched.
type gatheringUpdateParams struct {
	cli.SessionConfig
	Title       string `flag:"title"       desc:"new title"`
	Description string `flag:"description" desc:"new detail text"`
	Start       string `flag:"start"       desc:"new start time, RFC 3339 or \"2006-01-02 15:04\" local"`
	End         string `flag:"end"         desc:"new end time"`
	Location    string `flag:"location"    desc:"new venue name (replaces the whole venue)"`
	Address     string `flag:"address"     desc:"new venue address"`
	Deadline    string `flag:"rsvp-by"     desc:"new RSVP deadline"`
}

func gatheringUpdateCommand() *cli.Command {
	var params gatheringUpdateParams

	return &cli.Command{
		Name:    "update",
		Summary: "Edit a gathering's details",
		Description: `Rewrite parts of a gathering's details. Only the host and
co-hosts can edit; the homeserver rejects everyone else. Visibility
is fixed at creation.`,
		Usage: "commons gathering update <gathering-room> [flags]",
		Examples: []cli.Example{
			{
				Description: "Push the start time back an hour",
				Command:     "commons gathering update '!gathering:commons.local' --start \"2026-06-21 20:00\"",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one gathering room is required\n\nUsage: commons gathering update <gathering-room> [flags]")
			}
			if params.Title == "" && params.Description == "" && params.Start == "" &&
				params.End == "" && params.Location == "" && params.Address == "" &&
				params.Deadline == "" {
				return fmt.Errorf("nothing to update\n\nUsage: commons gathering update <gathering-room> [flags]")
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
			details, err := service.GetGathering(ctx, roomID)
			if err != nil {
				return err
			}
			if details, err = mergeGatheringDetails(details, params); err != nil {
				return err
			}
			if err := service.UpdateGathering(ctx, roomID, details); err != nil {
				return err
			}
			fmt.Printf("Updated gathering %q\n", details.Title)
			return nil
		},
	}
}

// mergeGatheringDetails applies the non-empty update flags on top of
// the current details. A new --location replaces the whole venue,
// address included; --address alone rewrites the address of the
// existing venue.
func mergeGatheringDetails(details schema.GatheringContent, params gatheringUpdateParams) (schema.GatheringContent, error) {
	if params.Title != "" {
		details.Title = params.Title
	}
	if params.Description != "" {
		details.Description = params.Description
	}
	var err error
	if params.Start != "" {
		if details.StartTime, err = parseEventTime(params.Start); err != nil {
			return details, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if params.End != "" {
		if details.EndTime, err = parseEventTime(params.End); err != nil {
			return details, fmt.Errorf("invalid --end: %w", err)
		}
	}
	if params.Deadline != "" {
		if details.RsvpDeadline, err = parseEventTime(params.Deadline); err != nil {
			return details, fmt.Errorf("invalid --rsvp-by: %w", err)
		}
	}
	switch {
	case params.Location != "":
		details.Location = &schema.Location{
			Name:    params.Location,
			Address: params.Address,
		}
	case params.Address != "":
		if details.Location == nil {
			return details, fmt.Errorf("--address needs a venue; set --location too")
		}
		location := *details.Location
		location.Address = params.Address
		details.Location = &location
	}
	return details, nil
}

// gatheringDetails is the JSON shape of gathering show output.
type gatheringDetails struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	StartTime   int64            `json:"start_time"`
	EndTime     int64            `json:"end_time,omitempty"`
	Location    *schema.Location `json:"location,omitempty"`
	Visibility  string           `json:"visibility"`
	RsvpBy      int64            `json:"rsvp_deadline,omitempty"`
	Going       int              `json:"going"`
	Guests      int              `json:"guests"`
	Interested  int              `json:"interested"`
	NotGoing    int              `json:"not_going"`
	YourRole    string           `json:"your_role"`
}

func gatheringShowCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "show",
		Summary: "Show a gathering's details and attendance",
		Usage:   "commons gathering show <gathering-room> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one gathering room is required\n\nUsage: commons gathering show <gathering-room> [flags]")
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
			details, err := service.GetGathering(ctx, roomID)
			if err != nil {
				return err
			}
			counts, err := service.CountsFor(ctx, roomID)
			if err != nil {
				return err
			}
			role, err := service.MemberRole(ctx, roomID, session.UserID())
			if err != nil {
				return err
			}

			output := gatheringDetails{
				Title:       details.Title,
				Description: details.Description,
				StartTime:   details.StartTime,
				EndTime:     details.EndTime,
				Location:    details.Location,
				Visibility:  details.Visibility,
				RsvpBy:      details.RsvpDeadline,
				Going:       counts.Going,
				Guests:      counts.TotalGuests,
				Interested:  counts.Interested,
				NotGoing:    counts.NotGoing,
				YourRole:    role.String(),
			}
			if done, err := params.EmitJSON(output); done {
				return err
			}

			fmt.Printf("Title:       %s\n", details.Title)
			fmt.Printf("When:        %s", formatEventTime(details.StartTime))
			if details.EndTime != 0 {
				fmt.Printf(" to %s", formatEventTime(details.EndTime))
			}
			fmt.Println()
			if details.Location != nil {
				location := details.Location.Name
				if details.Location.Address != "" {
					location += " (" + details.Location.Address + ")"
				}
				fmt.Printf("Location:    %s\n", location)
			}
			fmt.Printf("Visibility:  %s\n", details.Visibility)
			if details.RsvpDeadline != 0 {
				fmt.Printf("RSVP by:     %s\n", formatEventTime(details.RsvpDeadline))
			}
			if details.Description != "" {
				fmt.Printf("\n%s\n", details.Description)
			}
			fmt.Printf("\n%d going (%d guests), %d interested, %d not going\n",
				counts.Going, counts.TotalGuests, counts.Interested, counts.NotGoing)
			fmt.Printf("Your role: %s\n", role)
			return nil
		},
	}
}

func gatheringInviteCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
	}

	return &cli.Command{
		Name:    "invite",
		Summary: "Invite a guest to a gathering",
		Usage:   "commons gathering invite <gathering-room> <user> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("a gathering room and a user are required\n\nUsage: commons gathering invite <gathering-room> <user> [flags]")
			}
			guest, err := ref.ParseUserID(args[1])
			if err != nil {
				return fmt.Errorf("invalid user: %w", err)
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
			if err := service.InviteGuest(ctx, roomID, guest); err != nil {
				return err
			}
			fmt.Printf("Invited %s\n", guest)
			return nil
		},
	}
}

func gatheringCohostCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
	}

	return &cli.Command{
		Name:    "cohost",
		Summary: "Promote a guest to co-host",
		Description: `Give a guest the power to edit the gathering's details and
invite others. Only the host can promote.`,
		Usage:  "commons gathering cohost <gathering-room> <user> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("a gathering room and a user are required\n\nUsage: commons gathering cohost <gathering-room> <user> [flags]")
			}
			cohost, err := ref.ParseUserID(args[1])
			if err != nil {
				return fmt.Errorf("invalid user: %w", err)
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
			if err := service.AddCoHost(ctx, roomID, cohost); err != nil {
				return err
			}
			fmt.Printf("%s is now a co-host\n", cohost)
			return nil
		},
	}
}

func parseEventTime(raw string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UnixMilli(), nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", raw, time.Local)
	if err != nil {
		return 0, fmt.Errorf("%q (want RFC 3339 or \"2006-01-02 15:04\")", raw)
	}
	return t.UnixMilli(), nil
}

func formatEventTime(millis int64) string {
	return time.UnixMilli(millis).Local().Format("Mon Jan 02 15:04")
}
