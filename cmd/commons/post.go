// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/config"
	"github.com/commons-foundation/commons/lib/feedroom"
	"github.com/commons-foundation/commons/lib/post"
	"github.com/commons-foundation/commons/lib/privacy"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

// postParams holds the parameters for commons post.
type postParams struct {
	cli.SessionConfig
	Tier     string `flag:"tier"       desc:"post to your own feed of this tier" default:"friends"`
	To       string `flag:"to"         desc:"post to a specific feed room (room ID or alias) instead"`
	Level    string `flag:"level"      desc:"content privacy level (default: the target tier's level)"`
	Markdown bool   `flag:"markdown,m" desc:"render the text as markdown"`
	Image    string `flag:"image"      desc:"path of an image file to post"`
	Video    string `flag:"video"      desc:"path of a video file to post"`
	Link     string `flag:"link"       desc:"URL to share"`
	Caption  string `flag:"caption"    desc:"caption for media posts, comment for links"`
	Quote    string `flag:"quote"      desc:"event ID of a cached post to quote"`
	Yes      bool   `flag:"yes,y"      desc:"skip the share confirmation prompt"`
}

func postCommand() *cli.Command {
	var params postParams

	return &cli.Command{
		Name:    "post",
		Summary: "Publish a post to a feed",
		Description: `Compose a post and publish it to a feed room.

The default target is your own feed for --tier; --to posts into any
feed room you can write to instead. Exactly one payload is accepted:
text (the positional arguments), --image, --video, or --link.

Every post passes the sharing guard before it is sent. A share that
would leak content to a less restrictive audience is refused; a
friends-to-public share, or a quote of a more private post, asks for
confirmation first (--yes skips the prompt).`,
		Usage: "commons post [text]... [flags]",
		Examples: []cli.Example{
			{
				Description: "Post to your friends feed",
				Command:     "commons post \"hello from the commons\"",
			},
			{
				Description: "Post rendered markdown publicly",
				Command:     "commons post --tier public --markdown \"**drum circle** at sundown\"",
			},
			{
				Description: "Post a photo with a caption",
				Command:     "commons post --image garden.jpg --caption \"first tomatoes\"",
			},
			{
				Description: "Share a link with a comment",
				Command:     "commons post --link https://example.org/zine --caption \"new issue\"",
			},
			{
				Description: "Quote a cached post into your public feed",
				Command:     "commons post --tier public --quote '$abc123' \"look at this\"",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := validatePayload(&params, args); err != nil {
				return err
			}
			tier, err := feedroom.ParseTier(params.Tier)
			if err != nil {
				return err
			}

			// Uploads ride this timeout too, so it is generous.
			ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()

			cfg, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			target, err := resolveTargetFeed(ctx, session, params.To, tier, logger)
			if err != nil {
				return err
			}

			var options post.ShareOptions
			body := strings.Join(args, " ")
			if params.Quote != "" {
				attachment, snippet, err := resolveQuote(ctx, cfg, session, params.Quote, logger)
				if err != nil {
					return err
				}
				options.Attachments = []privacy.Attachment{attachment}
				body = "> " + snippet + "\n\n" + body
			}

			composed, err := composePost(ctx, cfg, session, &params, body, logger)
			if err != nil {
				return err
			}

			level := target.Tier.ContentLevel()
			if params.Level != "" {
				level, err = privacy.ParseLevel(params.Level)
				if err != nil {
					return err
				}
			}
			composed = composed.WithLevel(level)

			options.Confirmed = params.Yes
			eventID, verdict, err := post.ShareTo(ctx, session, composed, target, options)
			if err != nil {
				return err
			}

			if verdict.Verdict == privacy.RequiresConfirmation {
				confirmed, err := cli.Confirm(verdict.Explain() + "\nShare anyway?")
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Share cancelled.")
					return &cli.ExitError{Code: 1}
				}
				options.Confirmed = true
				eventID, verdict, err = post.ShareTo(ctx, session, composed, target, options)
				if err != nil {
					return err
				}
			}
			if !verdict.IsAllowed() {
				fmt.Fprintln(os.Stderr, verdict.Explain())
				return &cli.ExitError{Code: 1}
			}

			fmt.Printf("Posted to %s's %s feed: %s\n", target.Owner, target.Tier, eventID)
			return nil
		},
	}
}

// validatePayload checks that exactly one payload source was given.
func validatePayload(params *postParams, args []string) error {
	media := 0
	if params.Image != "" {
		media++
	}
	if params.Video != "" {
		media++
	}
	if params.Link != "" {
		media++
	}
	switch {
	case media > 1:
		return fmt.Errorf("--image, --video, and --link are exclusive")
	case media == 1 && len(args) > 0:
		return fmt.Errorf("text and --image/--video/--link are exclusive; use --caption for media text")
	case media == 0 && len(args) == 0:
		return fmt.Errorf("nothing to post\n\nUsage: commons post [text]... [flags]")
	}
	if params.Markdown && media != 0 {
		return fmt.Errorf("--markdown needs a text post")
	}
	if params.Quote != "" && media != 0 {
		return fmt.Errorf("--quote needs a text post")
	}
	return nil
}

// composePost builds the outgoing post from the parameters, uploading
// media files as needed.
func composePost(ctx context.Context, cfg *config.Config, session *messaging.DirectSession, params *postParams, body string, logger *slog.Logger) (*post.Post, error) {
	switch {
	case params.Image != "":
		uri, data, err := uploadFile(ctx, cfg, session, params.Image, logger)
		if err != nil {
			return nil, err
		}
		width, height := imageDimensions(data)
		return post.Image(uri, width, height).WithCaption(params.Caption), nil

	case params.Video != "":
		uri, _, err := uploadFile(ctx, cfg, session, params.Video, logger)
		if err != nil {
			return nil, err
		}
		return post.Video(uri).WithCaption(params.Caption), nil

	case params.Link != "":
		composed, err := post.Link(params.Link)
		if err != nil {
			return nil, err
		}
		return composed.WithCaption(params.Caption), nil

	default:
		if params.Markdown {
			return post.Markdown(body)
		}
		return post.Text(body), nil
	}
}

// uploadFile reads a local file, uploads it to the homeserver, and
// drops a copy into the local media cache so browsing your own post
// later does not re-download it. Cache failures only warn; the upload
// already succeeded.
func uploadFile(ctx context.Context, cfg *config.Config, session *messaging.DirectSession, path string, logger *slog.Logger) (ref.MediaURI, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ref.MediaURI{}, nil, err
	}
	contentType := http.DetectContentType(data)
	uri, err := session.UploadMedia(ctx, contentType, bytes.NewReader(data))
	if err != nil {
		return ref.MediaURI{}, nil, fmt.Errorf("uploading %s: %w", path, err)
	}

	if cache, cacheErr := openMediaCache(cfg, logger); cacheErr != nil {
		logger.Warn("media cache unavailable", "error", cacheErr)
	} else {
		if putErr := cache.Put(uri, data, contentType); putErr != nil {
			logger.Warn("caching uploaded media", "uri", uri, "error", putErr)
		}
		cache.Close()
	}
	return uri, data, nil
}

// imageDimensions decodes just the image header. Unknown formats
// post with zero dimensions rather than failing.
func imageDimensions(data []byte) (int, int) {
	decoded, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return decoded.Width, decoded.Height
}

// resolveTargetFeed finds the feed a post goes to: the session user's
// own feed for tier, or the marked feed room named by to.
func resolveTargetFeed(ctx context.Context, session *messaging.DirectSession, to string, tier feedroom.Tier, logger *slog.Logger) (feedroom.Feed, error) {
	if to == "" {
		feeds, err := feedroom.NewService(session, logger).OwnFeeds(ctx)
		if err != nil {
			return feedroom.Feed{}, err
		}
		room := feeds.Room(tier)
		if room.IsZero() {
			return feedroom.Feed{}, fmt.Errorf("you have no %s feed yet (run \"commons setup\")", tier)
		}
		return feedroom.Feed{Room: room, Owner: session.UserID(), Tier: tier}, nil
	}

	room, err := parseRoomTarget(ctx, session, to)
	if err != nil {
		return feedroom.Feed{}, err
	}
	raw, err := session.GetStateEvent(ctx, room, schema.EventTypeFeed, "")
	if messaging.IsNotFound(err) {
		return feedroom.Feed{}, fmt.Errorf("%s is not a feed room (no m.commons.feed marker)", to)
	}
	if err != nil {
		return feedroom.Feed{}, fmt.Errorf("reading feed marker of %s: %w", to, err)
	}
	marker, err := schema.ParseFeedContent(raw)
	if err != nil {
		return feedroom.Feed{}, err
	}
	owner, err := ref.ParseUserID(marker.Owner)
	if err != nil {
		return feedroom.Feed{}, err
	}
	markedTier, err := feedroom.ParseTier(marker.Tier)
	if err != nil {
		return feedroom.Feed{}, err
	}
	return feedroom.Feed{Room: room, Owner: owner, Tier: markedTier}, nil
}

// resolveQuote loads a cached post and tags it with its room's
// privacy level so the sharing guard can judge the quote. Returns the
// attachment and a one-line snippet for the composed body.
func resolveQuote(ctx context.Context, cfg *config.Config, session messaging.Session, rawID string, logger *slog.Logger) (privacy.Attachment, string, error) {
	eventID, err := ref.ParseEventID(rawID)
	if err != nil {
		return privacy.Attachment{}, "", fmt.Errorf("invalid --quote: %w", err)
	}

	store, err := openFeedStore(cfg, logger)
	if err != nil {
		return privacy.Attachment{}, "", err
	}
	defer store.Close()

	item, found, err := store.GetPost(ctx, eventID)
	if err != nil {
		return privacy.Attachment{}, "", err
	}
	if !found {
		return privacy.Attachment{}, "", fmt.Errorf("post %s is not in the local cache (is commons-feed-service running?)", eventID)
	}

	raw, err := session.GetStateEvent(ctx, item.SourceRoom, schema.EventTypeFeed, "")
	if err != nil {
		return privacy.Attachment{}, "", fmt.Errorf("reading feed marker of %s: %w", item.SourceRoom, err)
	}
	marker, err := schema.ParseFeedContent(raw)
	if err != nil {
		return privacy.Attachment{}, "", err
	}
	tier, err := feedroom.ParseTier(marker.Tier)
	if err != nil {
		return privacy.Attachment{}, "", err
	}

	return privacy.Attachment{
		Room:  item.SourceRoom,
		Level: tier.ContentLevel(),
	}, summarizeContent(item.Content), nil
}

// parseRoomTarget accepts a room ID or a room alias, resolving
// aliases against the homeserver.
func parseRoomTarget(ctx context.Context, session messaging.Session, raw string) (ref.RoomID, error) {
	if strings.HasPrefix(raw, "#") {
		alias, err := ref.ParseRoomAlias(raw)
		if err != nil {
			return ref.RoomID{}, fmt.Errorf("invalid room alias: %w", err)
		}
		roomID, err := session.ResolveAlias(ctx, alias)
		if err != nil {
			return ref.RoomID{}, fmt.Errorf("resolving %s: %w", raw, err)
		}
		return roomID, nil
	}
	roomID, err := ref.ParseRoomID(raw)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("invalid room: %w", err)
	}
	return roomID, nil
}
