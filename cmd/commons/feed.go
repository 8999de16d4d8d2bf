// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/config"
	"github.com/commons-foundation/commons/lib/feed"
	"github.com/commons-foundation/commons/lib/feedroom"
	"github.com/commons-foundation/commons/lib/feedstore"
	"github.com/commons-foundation/commons/lib/friends"
	"github.com/commons-foundation/commons/lib/post"
	"github.com/commons-foundation/commons/lib/reaction"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:    "feed",
		Summary: "Create, browse, and follow feeds",
		Description: `Work with Commons feeds.

A feed is a Matrix room with an m.commons.feed marker binding it to
an owner and an audience tier (public, friends, close_friends). Your
aggregated timeline merges every feed you follow.

"show" and "search" read the local cache maintained by
commons-feed-service and work offline; "show --live" fetches straight
from the homeserver instead.`,
		Subcommands: []*cli.Command{
			feedCreateCommand(),
			feedListCommand(),
			feedShowCommand(),
			feedSearchCommand(),
			feedFollowCommand(),
			feedUnfollowCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Browse your aggregated timeline",
				Command:     "commons feed show",
			},
			{
				Description: "Most-discussed posts, straight from the homeserver",
				Command:     "commons feed show --live --sort engagement",
			},
			{
				Description: "Search cached posts",
				Command:     "commons feed search garden party",
			},
			{
				Description: "Follow someone's public feed",
				Command:     "commons feed follow @bob:commons.local",
			},
		},
	}
}

// feedCreateParams holds the parameters for feed create.
type feedCreateParams struct {
	cli.SessionConfig
	cli.JSONOutput
	Tier string `flag:"tier" desc:"feed tier: public, friends, or close_friends" default:"public"`
}

func feedCreateCommand() *cli.Command {
	var params feedCreateParams

	return &cli.Command{
		Name:    "create",
		Summary: "Create one of your feed rooms",
		Description: `Create a single feed room for the logged-in account.

"commons setup" provisions all three tiers at once; create is for
re-provisioning one tier after deleting a room.`,
		Usage: "commons feed create --tier <tier> [flags]",
		Examples: []cli.Example{
			{
				Description: "Create your close friends feed",
				Command:     "commons feed create --tier close_friends",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			tier, err := feedroom.ParseTier(params.Tier)
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

			roomID, err := feedroom.NewService(session, logger).CreateFeedRoom(ctx, tier)
			if err != nil {
				return fmt.Errorf("creating %s feed: %w", tier, err)
			}

			if done, err := params.EmitJSON(map[string]string{"room_id": roomID.String()}); done {
				return err
			}
			fmt.Printf("Created %s feed: %s\n", tier, roomID)
			return nil
		},
	}
}

// feedListEntry is one row of feed list output.
type feedListEntry struct {
	Owner string `json:"owner"`
	Tier  string `json:"tier"`
	Room  string `json:"room"`
	Own   bool   `json:"own"`
}

func feedListCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "list",
		Summary: "List the feeds you are joined to",
		Description: `List every feed room the logged-in account has joined,
your own feeds included. These rooms are the sources of your
aggregated timeline.`,
		Usage:  "commons feed list [flags]",
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

			found, err := feedroom.NewService(session, logger).DiscoverFeeds(ctx)
			if err != nil {
				return err
			}

			me := session.UserID()
			entries := make([]feedListEntry, len(found))
			for i, f := range found {
				entries[i] = feedListEntry{
					Owner: f.Owner.String(),
					Tier:  f.Tier.String(),
					Room:  f.Room.String(),
					Own:   f.Owner == me,
				}
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No feeds joined. Run \"commons setup\" to create your own.")
				return nil
			}
			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "OWNER\tTIER\tROOM")
			for _, entry := range entries {
				owner := entry.Owner
				if entry.Own {
					owner += " (you)"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", owner, entry.Tier, entry.Room)
			}
			return writer.Flush()
		},
	}
}

// feedShowParams holds the parameters for feed show.
type feedShowParams struct {
	cli.SessionConfig
	cli.JSONOutput
	Limit         int           `flag:"limit"          desc:"maximum posts to show" default:"20"`
	Sort          string        `flag:"sort"           desc:"sort order: chronological, engagement, or author" default:"chronological"`
	Filter        string        `flag:"filter"         desc:"content filter: all, text, media, or links" default:"all"`
	Live          bool          `flag:"live"           desc:"fetch from the homeserver instead of the local cache"`
	Authors       []string      `flag:"author"         desc:"show only these authors (repeatable)"`
	Muted         []string      `flag:"mute"           desc:"hide these authors (repeatable)"`
	MinEngagement int           `flag:"min-engagement" desc:"hide posts with fewer reactions and comments"`
	MaxAge        time.Duration `flag:"max-age"        desc:"hide posts older than this (e.g. 48h)"`
}

func feedShowCommand() *cli.Command {
	var params feedShowParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show your aggregated timeline",
		Description: `Merge the feeds you follow into one timeline and print it.

By default this reads the local cache, so it is fast and works
offline; run commons-feed-service to keep the cache current. With
--live the posts come straight from the homeserver, aggregated over
your own feeds and the feeds in your friends space.

Filters compose by AND: --filter narrows by payload kind, --author
and --mute by sender, --min-engagement and --max-age by activity.`,
		Usage: "commons feed show [flags]",
		Examples: []cli.Example{
			{
				Description: "Latest posts from the local cache",
				Command:     "commons feed show",
			},
			{
				Description: "Most-discussed media from the last two days",
				Command:     "commons feed show --filter media --sort engagement --max-age 48h",
			},
			{
				Description: "One friend's posts, live",
				Command:     "commons feed show --live --author @bob:commons.local",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			order, err := feed.ParseSortOrder(params.Sort)
			if err != nil {
				return err
			}
			filter, err := buildFilter(params)
			if err != nil {
				return err
			}

			var items []feed.Item
			if params.Live {
				items, err = fetchLive(ctx, &params, order, logger)
			} else {
				items, err = fetchCached(ctx, &params, order, logger)
			}
			if err != nil {
				return err
			}
			items = filter.Apply(items, time.Now())

			if done, err := params.EmitJSON(itemsToJSON(items)); done {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No posts. Is commons-feed-service running, or try --live.")
				return nil
			}
			return renderItems(os.Stdout, items)
		},
	}
}

// fetchCached aggregates over every room in the local feed store.
func fetchCached(ctx context.Context, params *feedShowParams, order feed.SortOrder, logger *slog.Logger) ([]feed.Item, error) {
	cfg, err := params.LoadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openFeedStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	rooms, err := store.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	aggregator := feed.NewAggregator(store)
	for _, room := range rooms {
		aggregator.AddSource(room)
	}
	aggregator.SetSortOrder(order)
	return aggregator.Fetch(ctx, params.Limit)
}

// fetchLive aggregates over the session's own feeds and the feeds in
// the friends space, reading timelines from the homeserver.
func fetchLive(ctx context.Context, params *feedShowParams, order feed.SortOrder, logger *slog.Logger) ([]feed.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, session, err := params.Connect(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	own, err := feedroom.NewService(session, logger).OwnFeeds(ctx)
	if err != nil {
		return nil, err
	}
	followed, err := friends.NewSpaceCache(session, logger).ListFriendFeeds(ctx)
	if err != nil {
		return nil, err
	}

	aggregator := feed.NewAggregator(liveFetcher{session: session})
	for _, room := range own.All() {
		aggregator.AddSource(room)
	}
	for _, room := range followed {
		aggregator.AddSource(room)
	}
	aggregator.SetSortOrder(order)
	return aggregator.Fetch(ctx, params.Limit)
}

func buildFilter(params feedShowParams) (*feed.FilterSettings, error) {
	filter := feed.NewFilterSettings()
	content, err := feed.ParseContentFilter(params.Filter)
	if err != nil {
		return nil, err
	}
	filter.Content = content
	filter.MinEngagement = params.MinEngagement
	filter.MaxAge = params.MaxAge
	for _, raw := range params.Authors {
		author, err := ref.ParseUserID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --author: %w", err)
		}
		filter.AllowAuthor(author)
	}
	for _, raw := range params.Muted {
		author, err := ref.ParseUserID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --mute: %w", err)
		}
		filter.MuteAuthor(author)
	}
	return filter, nil
}

// feedSearchParams holds the parameters for feed search.
type feedSearchParams struct {
	cli.SessionConfig
	cli.JSONOutput
	Limit int `flag:"limit" desc:"maximum results" default:"10"`
}

func feedSearchCommand() *cli.Command {
	var params feedSearchParams

	return &cli.Command{
		Name:    "search",
		Summary: "Search cached posts",
		Description: `Rank the posts in the local cache against a free-text query,
best match first. Post bodies weigh more than author names. The cache
is maintained by commons-feed-service; posts it has not seen cannot
match.`,
		Usage: "commons feed search <query>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Find posts about a topic",
				Command:     "commons feed search solstice bonfire",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("query is required\n\nUsage: commons feed search <query>... [flags]")
			}
			query := strings.Join(args, " ")

			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}
			store, err := openFeedStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.Search(ctx, query, params.Limit)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(searchResultsToJSON(results)); done {
				return err
			}
			if len(results) == 0 {
				fmt.Printf("No cached posts match %q.\n", query)
				return nil
			}
			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "SCORE\tTIME\tAUTHOR\tCONTENT")
			for _, result := range results {
				fmt.Fprintf(writer, "%.2f\t%s\t%s\t%s\n",
					result.Score,
					formatTimestamp(result.Item.Timestamp),
					result.Item.Author,
					summarizeContent(result.Item.Content),
				)
			}
			return writer.Flush()
		},
	}
}

// feedFollowParams holds the parameters for feed follow and unfollow.
type feedFollowParams struct {
	cli.SessionConfig
	Tier string `flag:"tier" desc:"feed tier to follow" default:"public"`
}

func feedFollowCommand() *cli.Command {
	var params feedFollowParams

	return &cli.Command{
		Name:    "follow",
		Summary: "Follow another user's feed",
		Description: `Join a user's feed room and link it into your friends space,
adding it as a source of your aggregated timeline.

Public feeds can be followed freely. Friends and close friends feeds
only admit invited members; use "commons friends request" to ask for
access to a friends feed.`,
		Usage: "commons feed follow <user> [flags]",
		Examples: []cli.Example{
			{
				Description: "Follow a public feed",
				Command:     "commons feed follow @bob:commons.local",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			owner, tier, err := parseFollowTarget(args, params.Tier)
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

			roomID, err := feedroom.NewService(session, logger).JoinFeed(ctx, owner, tier)
			if err != nil {
				return fmt.Errorf("joining %s's %s feed: %w", owner, tier, err)
			}
			if err := friends.NewSpaceCache(session, logger).AddFriendFeed(ctx, roomID); err != nil {
				return err
			}
			fmt.Printf("Following %s's %s feed (%s)\n", owner, tier, roomID)
			return nil
		},
	}
}

func feedUnfollowCommand() *cli.Command {
	var params feedFollowParams

	return &cli.Command{
		Name:    "unfollow",
		Summary: "Stop following a user's feed",
		Description: `Leave a user's feed room and unlink it from your friends
space. Posts already cached locally age out with normal retention.`,
		Usage: "commons feed unfollow <user> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			owner, tier, err := parseFollowTarget(args, params.Tier)
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

			alias, err := feedroom.FeedAlias(owner, tier)
			if err != nil {
				return err
			}
			roomID, err := session.ResolveAlias(ctx, alias)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", alias, err)
			}
			service := feedroom.NewService(session, logger)
			if err := service.LeaveFeed(ctx, roomID); err != nil {
				return err
			}
			if err := friends.NewSpaceCache(session, logger).RemoveFriendFeed(ctx, roomID); err != nil {
				return err
			}
			fmt.Printf("Unfollowed %s's %s feed\n", owner, tier)
			return nil
		},
	}
}

func parseFollowTarget(args []string, rawTier string) (ref.UserID, feedroom.Tier, error) {
	if len(args) != 1 {
		return ref.UserID{}, 0, fmt.Errorf("exactly one user is required\n\nUsage: commons feed follow <user> [flags]")
	}
	owner, err := ref.ParseUserID(args[0])
	if err != nil {
		return ref.UserID{}, 0, fmt.Errorf("invalid user: %w", err)
	}
	tier, err := feedroom.ParseTier(rawTier)
	if err != nil {
		return ref.UserID{}, 0, err
	}
	return owner, tier, nil
}

// openFeedStore opens the local post cache shared with
// commons-feed-service. The store creates its schema on first open,
// so a fresh install reads as empty rather than failing.
func openFeedStore(cfg *config.Config, logger *slog.Logger) (*feedstore.Store, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return feedstore.OpenStore(feedstore.StoreConfig{
		Path:     cfg.Paths.FeedStore,
		PoolSize: cfg.Feed.PoolSize,
		Logger:   logger,
	})
}

// liveFetcher satisfies feed.SourceFetcher against the homeserver,
// mirroring what the feed service's ingestor does for the local
// cache: thread replies count toward their parent's comment tally,
// reactions fold into per-post summaries, and events that parse as
// neither are skipped. Redacted events come back from the server with
// pruned content and fall out the same way.
type liveFetcher struct {
	session messaging.Session
}

func (f liveFetcher) RecentItems(ctx context.Context, room ref.RoomID, max int) ([]feed.Item, error) {
	if max <= 0 {
		max = 50
	}
	// Comments and reactions share the timeline with posts, so fetch
	// deeper than max to keep the engagement counts honest.
	response, err := f.session.RoomMessages(ctx, room, messaging.RoomMessagesOptions{
		Direction: "b",
		Limit:     max * 4,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching timeline of %s: %w", room, err)
	}

	var items []feed.Item
	positions := make(map[ref.EventID]int)
	comments := make(map[ref.EventID]int)
	summaries := make(map[ref.EventID]*reaction.Summary)

	for _, event := range response.Chunk {
		switch event.Type {
		case schema.MatrixEventTypeMessage:
			if parent, isComment := post.ThreadParent(event.Content); isComment {
				comments[parent]++
				continue
			}
			if len(items) >= max {
				continue
			}
			content, err := post.ParseMessage(event.Content)
			if err != nil {
				continue
			}
			positions[event.EventID] = len(items)
			items = append(items, feed.Item{
				SourceRoom: room,
				ItemID:     event.EventID,
				Author:     event.Sender,
				Timestamp:  event.OriginServerTS,
				Content:    content,
			})
		case schema.MatrixEventTypeReaction:
			target, key, ok := post.AnnotationTarget(event.Content)
			if !ok {
				continue
			}
			summary := summaries[target]
			if summary == nil {
				summary = reaction.NewSummary()
				summaries[target] = summary
			}
			summary.Add(key, event.Sender, event.EventID)
		}
	}

	for postID, position := range positions {
		items[position].CommentCount = comments[postID]
		if summary := summaries[postID]; summary != nil && !summary.IsEmpty() {
			items[position].Reactions = summary
		}
	}
	return items, nil
}

// feedItemJSON is the JSON shape of one timeline entry.
type feedItemJSON struct {
	Room       string         `json:"room"`
	ItemID     string         `json:"item_id"`
	Author     string         `json:"author"`
	Timestamp  int64          `json:"timestamp"`
	Kind       string         `json:"kind"`
	Content    string         `json:"content"`
	Reactions  map[string]int `json:"reactions,omitempty"`
	Comments   int            `json:"comments,omitempty"`
	Engagement int            `json:"engagement"`
}

func itemsToJSON(items []feed.Item) []feedItemJSON {
	out := make([]feedItemJSON, len(items))
	for i := range items {
		out[i] = itemToJSON(&items[i])
	}
	return out
}

func itemToJSON(item *feed.Item) feedItemJSON {
	entry := feedItemJSON{
		Room:       item.SourceRoom.String(),
		ItemID:     item.ItemID.String(),
		Author:     item.Author.String(),
		Timestamp:  item.Timestamp,
		Kind:       item.Content.Kind().String(),
		Content:    summarizeContent(item.Content),
		Comments:   item.CommentCount,
		Engagement: item.Engagement(),
	}
	if item.Reactions != nil && !item.Reactions.IsEmpty() {
		entry.Reactions = item.Reactions.Counts()
	}
	return entry
}

func searchResultsToJSON(results []feedstore.SearchResult) []feedItemJSON {
	out := make([]feedItemJSON, len(results))
	for i := range results {
		out[i] = itemToJSON(&results[i].Item)
	}
	return out
}

// renderItems prints a timeline table.
func renderItems(w io.Writer, items []feed.Item) error {
	writer := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "TIME\tAUTHOR\tKIND\tCONTENT\tACTIVITY")
	for i := range items {
		item := &items[i]
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			formatTimestamp(item.Timestamp),
			item.Author,
			item.Content.Kind(),
			summarizeContent(item.Content),
			summarizeActivity(item),
		)
	}
	return writer.Flush()
}

func formatTimestamp(millis int64) string {
	return time.UnixMilli(millis).Local().Format("Jan 02 15:04")
}

// summarizeContent renders a one-line preview of a post's payload.
func summarizeContent(content feed.Content) string {
	switch {
	case content.Text != nil:
		return truncate(content.Text.Body, 60)
	case content.Image != nil:
		if content.Image.Caption != "" {
			return truncate(content.Image.Caption, 48) + " " + content.Image.URI.String()
		}
		return content.Image.URI.String()
	case content.Video != nil:
		if content.Video.Caption != "" {
			return truncate(content.Video.Caption, 48) + " " + content.Video.URI.String()
		}
		return content.Video.URI.String()
	case content.Link != nil:
		if content.Link.Comment != "" {
			return truncate(content.Link.Comment, 36) + " " + content.Link.URL
		}
		return content.Link.URL
	default:
		return ""
	}
}

// summarizeActivity renders reactions and comment count, e.g.
// "🔥3 👍1, 2 comments".
func summarizeActivity(item *feed.Item) string {
	var parts []string
	if item.Reactions != nil {
		var emojis []string
		for _, top := range item.Reactions.Top(3) {
			emojis = append(emojis, fmt.Sprintf("%s%d", top.Emoji, top.Count))
		}
		if len(emojis) > 0 {
			parts = append(parts, strings.Join(emojis, " "))
		}
	}
	switch item.CommentCount {
	case 0:
	case 1:
		parts = append(parts, "1 comment")
	default:
		parts = append(parts, fmt.Sprintf("%d comments", item.CommentCount))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
