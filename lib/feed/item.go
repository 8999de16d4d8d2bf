// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"fmt"

	"github.com/commons-foundation/commons/lib/reaction"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
)

// ContentKind classifies a feed item's payload.
type ContentKind int

const (
	// KindUnknown is an empty or malformed payload.
	KindUnknown ContentKind = iota

	// KindText is a text post.
	KindText

	// KindImage is an image post.
	KindImage

	// KindVideo is a video post.
	KindVideo

	// KindLink is a link share.
	KindLink
)

// String returns a short lowercase name for the kind.
func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// TextContent is a text post, optionally HTML-formatted, with the
// users it mentions.
type TextContent struct {
	Body          string
	FormattedBody string
	Mentions      []ref.UserID
}

// ImageContent is an image post.
type ImageContent struct {
	URI       ref.MediaURI
	Caption   string
	Thumbnail ref.MediaURI
	Width     int
	Height    int
}

// VideoContent is a video post.
type VideoContent struct {
	URI            ref.MediaURI
	Caption        string
	Thumbnail      ref.MediaURI
	DurationMillis int64
}

// LinkContent is a shared link with an optional comment and preview.
type LinkContent struct {
	URL     string
	Comment string
	Preview *schema.LinkPreview
}

// Content is a feed item's payload. Exactly one section is set.
type Content struct {
	Text  *TextContent
	Image *ImageContent
	Video *VideoContent
	Link  *LinkContent
}

// Kind reports which section is populated, or KindUnknown for an
// empty Content.
func (c Content) Kind() ContentKind {
	switch {
	case c.Text != nil:
		return KindText
	case c.Image != nil:
		return KindImage
	case c.Video != nil:
		return KindVideo
	case c.Link != nil:
		return KindLink
	default:
		return KindUnknown
	}
}

// Validate checks that exactly one content section is set.
func (c Content) Validate() error {
	count := 0
	if c.Text != nil {
		count++
	}
	if c.Image != nil {
		count++
	}
	if c.Video != nil {
		count++
	}
	if c.Link != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("content has %d sections set, want exactly 1", count)
	}
	return nil
}

// Item is one post in the aggregated feed. Items are owned
// snapshots: mutating an Item never touches room state or another
// item.
type Item struct {
	// SourceRoom is the feed room the post lives in.
	SourceRoom ref.RoomID

	// ItemID is the post's event ID.
	ItemID ref.EventID

	// Author is the post's sender.
	Author ref.UserID

	// Timestamp is the origin server timestamp in epoch milliseconds.
	Timestamp int64

	// Content is the post payload.
	Content Content

	// Reactions is a snapshot of the post's reaction summary. May be
	// nil for a post with no reactions.
	Reactions *reaction.Summary

	// CommentCount is the number of replies to the post.
	CommentCount int
}

// Engagement is the sum of all reaction counts plus the comment
// count. Computed on demand, never stored.
func (item *Item) Engagement() int {
	total := item.CommentCount
	if item.Reactions != nil {
		total += item.Reactions.Total()
	}
	return total
}
