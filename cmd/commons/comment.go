// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/post"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/messaging"
)

func commentCommand() *cli.Command {
	return &cli.Command{
		Name:    "comment",
		Summary: "Comment on posts",
		Description: `Write and read the comments on a post.

Comments are threaded replies living in the post's room. The post is
located through the local cache; pass --room when the post has not
been cached yet.`,
		Subcommands: []*cli.Command{
			commentAddCommand(),
			commentListCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Reply to a post",
				Command:     `commons comment add '$post123' "Count me in"`,
			},
			{
				Description: "Read a post's thread",
				Command:     "commons comment list '$post123'",
			},
		},
	}
}

// commentParams holds the shared parameters of the comment subcommands.
type commentParams struct {
	cli.SessionConfig
	Room string `flag:"room" desc:"room holding the post (default: looked up in the local cache)"`
}

func commentAddCommand() *cli.Command {
	var params commentParams

	return &cli.Command{
		Name:    "add",
		Summary: "Reply to a post",
		Usage:   "commons comment add <post-id> <text> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			postID, body, err := parseCommentArgs(args)
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

			room, err := resolvePostRoom(ctx, cfg, session, params.Room, postID, logger)
			if err != nil {
				return err
			}
			eventID, err := session.SendMessage(ctx, room, messaging.NewThreadReply(postID, body))
			if err != nil {
				return fmt.Errorf("sending comment: %w", err)
			}
			fmt.Printf("Commented on %s (%s)\n", postID, eventID)
			return nil
		},
	}
}

// commentEntry is one comment of comment list output.
type commentEntry struct {
	Author    string `json:"author"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	EventID   string `json:"event_id"`
}

func commentListCommand() *cli.Command {
	var params struct {
		commentParams
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "list",
		Summary: "List a post's comments",
		Description: `Fetch a post's thread from the homeserver and print the
comments, oldest first.`,
		Usage:  "commons comment list <post-id> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one post ID is required\n\nUsage: commons comment list <post-id> [flags]")
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
			comments, err := fetchComments(ctx, session, room, postID)
			if err != nil {
				return err
			}

			entries := make([]commentEntry, len(comments))
			for i, comment := range comments {
				entries[i] = commentEntry{
					Author:    comment.Sender.String(),
					Body:      commentBody(comment),
					Timestamp: comment.OriginServerTS,
					EventID:   comment.EventID.String(),
				}
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}
			if len(comments) == 0 {
				fmt.Println("No comments.")
				return nil
			}
			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "TIME\tAUTHOR\tCOMMENT")
			for _, entry := range entries {
				fmt.Fprintf(writer, "%s\t%s\t%s\n",
					formatTimestamp(entry.Timestamp), entry.Author, truncate(entry.Body, 72))
			}
			return writer.Flush()
		},
	}
}

func parseCommentArgs(args []string) (ref.EventID, string, error) {
	if len(args) < 2 {
		return ref.EventID{}, "", fmt.Errorf("post ID and comment text are required\n\nUsage: commons comment add <post-id> <text> [flags]")
	}
	postID, err := ref.ParseEventID(args[0])
	if err != nil {
		return ref.EventID{}, "", fmt.Errorf("invalid post ID: %w", err)
	}
	body := strings.TrimSpace(strings.Join(args[1:], " "))
	if body == "" {
		return ref.EventID{}, "", fmt.Errorf("comment text must not be empty")
	}
	return postID, body, nil
}

// fetchComments folds a post's thread into a comment list, oldest
// first, following pagination to the end. The server returns the
// thread newest first, so ordering is restored after collection.
// Redacted comments come back with pruned content, lose their thread
// relation, and drop out.
func fetchComments(ctx context.Context, session messaging.Session, room ref.RoomID, postID ref.EventID) ([]messaging.Event, error) {
	var comments []messaging.Event
	from := ""
	for {
		response, err := session.ThreadMessages(ctx, room, postID, messaging.RelationsOptions{From: from})
		if err != nil {
			return nil, fmt.Errorf("fetching comments of %s: %w", postID, err)
		}
		for _, event := range response.Chunk {
			if parent, ok := post.ThreadParent(event.Content); !ok || parent != postID {
				continue
			}
			comments = append(comments, event)
		}
		if response.NextBatch == "" {
			break
		}
		from = response.NextBatch
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].OriginServerTS < comments[j].OriginServerTS
	})
	return comments, nil
}

// commentBody extracts the displayable text of a comment. Media
// replies carry their caption or filename as the body.
func commentBody(event messaging.Event) string {
	body, _ := event.Content["body"].(string)
	return body
}
