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
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

func friendsCommand() *cli.Command {
	return &cli.Command{
		Name:    "friends",
		Summary: "Manage friend requests and the friends list",
		Description: `Send, answer, and track friend requests.

A friend request is a knock on the other user's friends feed room.
Accepting invites the requester in, which unlocks their friends-tier
posts. Blocking bans the user so future requests are rejected
silently.`,
		Subcommands: []*cli.Command{
			friendsRequestCommand(),
			friendsCancelCommand(),
			friendsAcceptCommand(),
			friendsDeclineCommand(),
			friendsBlockCommand(),
			friendsUnblockCommand(),
			friendsStatusCommand(),
			friendsListCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Send a request with a note",
				Command:     "commons friends request @bob:commons.local -m \"met at the garden\"",
			},
			{
				Description: "See pending requests and followed feeds",
				Command:     "commons friends list",
			},
		},
	}
}

func friendsRequestCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		Message string `flag:"message,m" desc:"note shown with the request"`
	}

	return &cli.Command{
		Name:    "request",
		Summary: "Send a friend request",
		Usage:   "commons friends request <user> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			target, err := friendTarget(args, "request")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if _, err := friends.NewService(session, logger).SendRequest(ctx, target, params.Message); err != nil {
				return err
			}
			fmt.Printf("Friend request sent to %s\n", target)
			return nil
		},
	}
}

func friendsCancelCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
	}

	return &cli.Command{
		Name:    "cancel",
		Summary: "Withdraw a pending friend request",
		Usage:   "commons friends cancel <user> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			target, err := friendTarget(args, "cancel")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := friends.NewService(session, logger).CancelRequest(ctx, target); err != nil {
				return err
			}
			fmt.Printf("Withdrew friend request to %s\n", target)
			return nil
		},
	}
}

func friendsAcceptCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
	}

	return &cli.Command{
		Name:    "accept",
		Summary: "Accept a friend request",
		Description: `Accept a pending request by inviting the requester into your
friends feed. Their posts start reaching your timeline once they
join.`,
		Usage:  "commons friends accept <user> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			target, err := friendTarget(args, "accept")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			friendsRoom, err := ownFriendsRoom(ctx, session, logger)
			if err != nil {
				return err
			}
			if err := friends.NewService(session, logger).Accept(ctx, friendsRoom, target); err != nil {
				return err
			}
			fmt.Printf("%s is now a friend\n", target)
			return nil
		},
	}
}

func friendsDeclineCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		Reason string `flag:"reason" desc:"reason sent to the requester"`
	}

	return &cli.Command{
		Name:    "decline",
		Summary: "Decline a friend request",
		Usage:   "commons friends decline <user> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			target, err := friendTarget(args, "decline")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			friendsRoom, err := ownFriendsRoom(ctx, session, logger)
			if err != nil {
				return err
			}
			if err := friends.NewService(session, logger).Decline(ctx, friendsRoom, target, params.Reason); err != nil {
				return err
			}
			fmt.Printf("Declined request from %s\n", target)
			return nil
		},
	}
}

func friendsBlockCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		Reason string `flag:"reason" desc:"reason recorded with the block"`
	}

	return &cli.Command{
		Name:    "block",
		Summary: "Block a user",
		Description: `Ban a user from your friends feed. The homeserver rejects
their future requests without notifying you.`,
		Usage:  "commons friends block <user> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			target, err := friendTarget(args, "block")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			friendsRoom, err := ownFriendsRoom(ctx, session, logger)
			if err != nil {
				return err
			}
			if err := friends.NewService(session, logger).Block(ctx, friendsRoom, target, params.Reason); err != nil {
				return err
			}
			fmt.Printf("Blocked %s\n", target)
			return nil
		},
	}
}

func friendsUnblockCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
	}

	return &cli.Command{
		Name:    "unblock",
		Summary: "Lift a block",
		Usage:   "commons friends unblock <user> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			target, err := friendTarget(args, "unblock")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			friendsRoom, err := ownFriendsRoom(ctx, session, logger)
			if err != nil {
				return err
			}
			if err := friends.NewService(session, logger).Unblock(ctx, friendsRoom, target); err != nil {
				return err
			}
			fmt.Printf("Unblocked %s\n", target)
			return nil
		},
	}
}

func friendsStatusCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "status",
		Summary: "Show the relationship with a user",
		Usage:   "commons friends status <user> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			target, err := friendTarget(args, "status")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			friendsRoom, err := ownFriendsRoom(ctx, session, logger)
			if err != nil {
				return err
			}
			state, err := friends.NewService(session, logger).State(ctx, friendsRoom, target)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(struct {
				User  string `json:"user_id"`
				State string `json:"state"`
			}{target.String(), state.String()}); done {
				return err
			}
			fmt.Printf("%s: %s\n", target, state)
			return nil
		},
	}
}

// friendsListOutput is the JSON shape of friends list.
type friendsListOutput struct {
	Pending []pendingRequestJSON `json:"pending"`
	Feeds   []friendFeedJSON     `json:"followed_feeds"`
}

type pendingRequestJSON struct {
	Requester string `json:"requester"`
	Since     int64  `json:"since"`
	Message   string `json:"message,omitempty"`
}

type friendFeedJSON struct {
	Owner string `json:"owner"`
	Tier  string `json:"tier"`
	Room  string `json:"room_id"`
}

func friendsListCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "list",
		Summary: "List pending requests and followed friend feeds",
		Usage:   "commons friends list [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("friends list takes no arguments")
			}

			ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			friendsRoom, err := ownFriendsRoom(ctx, session, logger)
			if err != nil {
				return err
			}
			pending, err := friends.NewService(session, logger).PendingRequests(ctx, friendsRoom)
			if err != nil {
				return err
			}
			feedRooms, err := friends.NewSpaceCache(session, logger).ListFriendFeeds(ctx)
			if err != nil {
				return err
			}

			var feeds []friendFeedJSON
			for _, room := range feedRooms {
				raw, err := session.GetStateEvent(ctx, room, schema.EventTypeFeed, "")
				if messaging.IsNotFound(err) {
					logger.Warn("followed room has no feed marker", "room_id", room)
					continue
				}
				if err != nil {
					return fmt.Errorf("reading feed marker of %s: %w", room, err)
				}
				marker, err := schema.ParseFeedContent(raw)
				if err != nil {
					logger.Warn("skipping feed with malformed marker", "room_id", room, "error", err)
					continue
				}
				feeds = append(feeds, friendFeedJSON{
					Owner: marker.Owner,
					Tier:  marker.Tier,
					Room:  room.String(),
				})
			}

			output := friendsListOutput{Feeds: feeds}
			for _, request := range pending {
				output.Pending = append(output.Pending, pendingRequestJSON{
					Requester: request.Requester.String(),
					Since:     request.Timestamp.UnixMilli(),
					Message:   request.Message,
				})
			}
			if done, err := params.EmitJSON(output); done {
				return err
			}

			if len(pending) == 0 {
				fmt.Println("No pending requests.")
			} else {
				fmt.Printf("Pending requests:\n")
				writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(writer, "REQUESTER\tSINCE\tMESSAGE")
				for _, request := range pending {
					fmt.Fprintf(writer, "%s\t%s\t%s\n",
						request.Requester,
						request.Timestamp.Local().Format("Jan 02 15:04"),
						truncate(request.Message, 48))
				}
				writer.Flush()
			}

			fmt.Println()
			if len(feeds) == 0 {
				fmt.Println("Not following any friend feeds.")
				return nil
			}
			fmt.Printf("Following %d friend feeds:\n", len(feeds))
			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "OWNER\tTIER\tROOM")
			for _, feed := range feeds {
				fmt.Fprintf(writer, "%s\t%s\t%s\n", feed.Owner, feed.Tier, feed.Room)
			}
			return writer.Flush()
		},
	}
}

func friendTarget(args []string, verb string) (ref.UserID, error) {
	if len(args) != 1 {
		return ref.UserID{}, fmt.Errorf("exactly one user is required\n\nUsage: commons friends %s <user> [flags]", verb)
	}
	target, err := ref.ParseUserID(args[0])
	if err != nil {
		return ref.UserID{}, fmt.Errorf("invalid user: %w", err)
	}
	return target, nil
}

// ownFriendsRoom resolves the session user's friends feed room, which
// anchors every request decision.
func ownFriendsRoom(ctx context.Context, session messaging.Session, logger *slog.Logger) (ref.RoomID, error) {
	feeds, err := feedroom.NewService(session, logger).OwnFeeds(ctx)
	if err != nil {
		return ref.RoomID{}, err
	}
	room := feeds.Room(feedroom.TierFriends)
	if room.IsZero() {
		return ref.RoomID{}, fmt.Errorf(`you have no friends feed yet (run "commons setup")`)
	}
	return room, nil
}
