// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/config"
	"github.com/commons-foundation/commons/lib/post"
	"github.com/commons-foundation/commons/lib/reaction"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

func reactCommand() *cli.Command {
	return &cli.Command{
		Name:    "react",
		Summary: "React to posts with emoji",
		Description: `Add, retract, and inspect emoji reactions on a post.

The reaction can be a literal emoji, a shortcut name such as "like"
or "fire", or a 1-based index into the quick-reaction row ("commons
react palette" prints it).

A user counts at most once per emoji per post, however many times the
reaction event is delivered. The post is located through the local
cache; pass --room when the post has not been cached yet.`,
		Subcommands: []*cli.Command{
			reactAddCommand(),
			reactRemoveCommand(),
			reactShowCommand(),
			reactPaletteCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "React to a post",
				Command:     "commons react add '$post123' 🔥",
			},
			{
				Description: "The same reaction by shortcut name",
				Command:     "commons react add '$post123' fire",
			},
			{
				Description: "Take the reaction back",
				Command:     "commons react remove '$post123' 🔥",
			},
			{
				Description: "See who reacted",
				Command:     "commons react show '$post123' --users",
			},
		},
	}
}

// reactParams holds the shared parameters of the react subcommands.
type reactParams struct {
	cli.SessionConfig
	Room string `flag:"room" desc:"room holding the post (default: looked up in the local cache)"`
}

func reactAddCommand() *cli.Command {
	var params reactParams

	return &cli.Command{
		Name:    "add",
		Summary: "Add an emoji reaction to a post",
		Usage:   "commons react add <post-id> <emoji> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			postID, emoji, err := parseReactArgs(args, "add")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			cfg, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			emoji, err = resolveReactionEmoji(emoji, loadReactionPalette(cfg, logger))
			if err != nil {
				return err
			}
			room, err := resolvePostRoom(ctx, cfg, session, params.Room, postID, logger)
			if err != nil {
				return err
			}
			eventID, err := session.SendEvent(ctx, room, schema.MatrixEventTypeReaction,
				messaging.NewReaction(postID, emoji))
			if err != nil {
				return fmt.Errorf("sending reaction: %w", err)
			}
			fmt.Printf("Reacted %s (%s)\n", emoji, eventID)
			return nil
		},
	}
}

func reactRemoveCommand() *cli.Command {
	var params reactParams

	return &cli.Command{
		Name:    "remove",
		Summary: "Retract your reaction from a post",
		Usage:   "commons react remove <post-id> <emoji> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			postID, emoji, err := parseReactArgs(args, "remove")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			cfg, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			emoji, err = resolveReactionEmoji(emoji, loadReactionPalette(cfg, logger))
			if err != nil {
				return err
			}
			room, err := resolvePostRoom(ctx, cfg, session, params.Room, postID, logger)
			if err != nil {
				return err
			}
			summary, err := fetchReactionSummary(ctx, session, room, postID)
			if err != nil {
				return err
			}

			recordID, reacted := summary.RecordID(session.UserID(), emoji)
			if !reacted {
				return fmt.Errorf("you have not reacted %s to %s", emoji, postID)
			}
			if _, err := session.RedactEvent(ctx, room, recordID, ""); err != nil {
				return fmt.Errorf("retracting reaction: %w", err)
			}
			fmt.Printf("Removed %s\n", emoji)
			return nil
		},
	}
}

// reactShowParams holds the parameters for react show.
type reactShowParams struct {
	reactParams
	cli.JSONOutput
	Users bool `flag:"users" desc:"list the users behind each emoji"`
}

// reactionChip is one emoji row of react show output.
type reactionChip struct {
	Emoji    string   `json:"emoji"`
	Count    int      `json:"count"`
	Selected bool     `json:"selected"`
	Users    []string `json:"users,omitempty"`
}

func reactShowCommand() *cli.Command {
	var params reactShowParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show a post's reactions",
		Description: `Fetch a post's reaction records from the homeserver and print
the aggregated counts, highest first. Your own reactions are marked
with *.`,
		Usage:  "commons react show <post-id> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one post ID is required\n\nUsage: commons react show <post-id> [flags]")
			}
			postID, err := ref.ParseEventID(args[0])
			if err != nil {
				return fmt.Errorf("invalid post ID: %w", err)
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			cfg, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			room, err := resolvePostRoom(ctx, cfg, session, params.Room, postID, logger)
			if err != nil {
				return err
			}
			summary, err := fetchReactionSummary(ctx, session, room, postID)
			if err != nil {
				return err
			}

			chips := make([]reactionChip, 0, len(summary.Emojis()))
			for _, display := range reaction.ForDisplay(summary, session.UserID(), summary.Total()) {
				chip := reactionChip{
					Emoji:    display.Emoji,
					Count:    display.Count,
					Selected: display.Selected,
				}
				if params.Users {
					for _, user := range summary.UsersFor(display.Emoji) {
						chip.Users = append(chip.Users, user.String())
					}
				}
				chips = append(chips, chip)
			}

			if done, err := params.EmitJSON(chips); done {
				return err
			}
			if len(chips) == 0 {
				fmt.Println("No reactions.")
				return nil
			}
			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, chip := range chips {
				marker := ""
				if chip.Selected {
					marker = " *"
				}
				if params.Users {
					fmt.Fprintf(writer, "%s\t%d%s\t%s\n", chip.Emoji, chip.Count, marker, strings.Join(chip.Users, ", "))
				} else {
					fmt.Fprintf(writer, "%s\t%d%s\n", chip.Emoji, chip.Count, marker)
				}
			}
			return writer.Flush()
		},
	}
}

// paletteEntry is one row of react palette output.
type paletteEntry struct {
	Index int    `json:"index"`
	Emoji string `json:"emoji"`
	Name  string `json:"name,omitempty"`
}

func reactPaletteCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "palette",
		Summary: "Show the quick-reaction row",
		Description: `Print the quick reactions with the indices that select them in
"commons react add". A palette.jsonc file in the Commons root
(quick_reactions: an array of emoji; JSONC comments and trailing
commas allowed) replaces the stock row.`,
		Usage:  "commons react palette [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("react palette takes no arguments, only flags")
			}
			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}
			palette := loadReactionPalette(cfg, logger)

			entries := make([]paletteEntry, 0, len(palette.QuickReactions))
			for i, emoji := range palette.QuickReactions {
				entry := paletteEntry{Index: i + 1, Emoji: emoji}
				entry.Name, _ = reaction.NameOf(emoji)
				entries = append(entries, entry)
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "INDEX\tEMOJI\tNAME")
			for _, entry := range entries {
				fmt.Fprintf(writer, "%d\t%s\t%s\n", entry.Index, entry.Emoji, entry.Name)
			}
			return writer.Flush()
		},
	}
}

func parseReactArgs(args []string, verb string) (ref.EventID, string, error) {
	if len(args) != 2 {
		return ref.EventID{}, "", fmt.Errorf("post ID and emoji are required\n\nUsage: commons react %s <post-id> <emoji> [flags]", verb)
	}
	postID, err := ref.ParseEventID(args[0])
	if err != nil {
		return ref.EventID{}, "", fmt.Errorf("invalid post ID: %w", err)
	}
	emoji := strings.TrimSpace(args[1])
	if emoji == "" {
		return ref.EventID{}, "", fmt.Errorf("emoji must not be empty")
	}
	return postID, emoji, nil
}

// resolveReactionEmoji turns a reaction argument into an emoji key: a
// 1-based index picks from the palette's quick-reaction row, a
// shortcut name such as "fire" resolves through the stock set, and
// anything else passes through as a literal key.
func resolveReactionEmoji(raw string, palette *reaction.Palette) (string, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > len(palette.QuickReactions) {
			return "", fmt.Errorf("quick reaction %d is out of range (the palette has %d)", n, len(palette.QuickReactions))
		}
		return palette.QuickReactions[n-1], nil
	}
	if emoji, ok := reaction.Named(raw); ok {
		return emoji, nil
	}
	return raw, nil
}

// loadReactionPalette reads palette.jsonc from the Commons root. A
// missing file means the stock palette; a malformed one is skipped
// with a warning.
func loadReactionPalette(cfg *config.Config, logger *slog.Logger) *reaction.Palette {
	path := filepath.Join(cfg.Paths.Root, "palette.jsonc")
	palette, err := reaction.LoadPalette(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("ignoring malformed reaction palette", "path", path, "error", err)
		}
		return reaction.DefaultPalette()
	}
	return palette
}

// resolvePostRoom finds the room holding a post: the --room value
// when given, otherwise the local cache.
func resolvePostRoom(ctx context.Context, cfg *config.Config, session messaging.Session, rawRoom string, postID ref.EventID, logger *slog.Logger) (ref.RoomID, error) {
	if rawRoom != "" {
		return parseRoomTarget(ctx, session, rawRoom)
	}
	store, err := openFeedStore(cfg, logger)
	if err != nil {
		return ref.RoomID{}, err
	}
	defer store.Close()

	item, found, err := store.GetPost(ctx, postID)
	if err != nil {
		return ref.RoomID{}, err
	}
	if !found {
		return ref.RoomID{}, fmt.Errorf("post %s is not in the local cache; pass --room", postID)
	}
	return item.SourceRoom, nil
}

// fetchReactionSummary folds a post's reaction records into a
// summary, following pagination to the end. Duplicate deliveries of
// the same (user, emoji) pair collapse in the summary.
func fetchReactionSummary(ctx context.Context, session messaging.Session, room ref.RoomID, postID ref.EventID) (*reaction.Summary, error) {
	summary := reaction.NewSummary()
	from := ""
	for {
		response, err := session.ReactionEvents(ctx, room, postID, messaging.RelationsOptions{From: from})
		if err != nil {
			return nil, fmt.Errorf("fetching reactions of %s: %w", postID, err)
		}
		for _, event := range response.Chunk {
			target, emoji, ok := post.AnnotationTarget(event.Content)
			if !ok || target != postID {
				continue
			}
			summary.Add(emoji, event.Sender, event.EventID)
		}
		if response.NextBatch == "" {
			return summary, nil
		}
		from = response.NextBatch
	}
}
