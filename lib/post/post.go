// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/commons-foundation/commons/lib/feed"
	"github.com/commons-foundation/commons/lib/privacy"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

// Post is a composed post ready to share into feed rooms. The
// builders return the post for chaining.
type Post struct {
	// Content is the post payload. Exactly one section is set by the
	// builders.
	Content feed.Content

	// Level is the audience the post was composed for. Defaults to
	// Public; WithLevel narrows it.
	Level privacy.Level
}

// Text creates a plain text post. Mentions are extracted from the
// body.
func Text(body string) *Post {
	return &Post{
		Content: feed.Content{Text: &feed.TextContent{
			Body:     body,
			Mentions: ExtractMentions(body),
		}},
	}
}

// Markdown creates a text post from markdown source. The source text
// becomes the plain-text body and the rendered HTML the formatted
// body.
func Markdown(source string) (*Post, error) {
	rendered, err := RenderMarkdown(source)
	if err != nil {
		return nil, err
	}
	return &Post{
		Content: feed.Content{Text: &feed.TextContent{
			Body:          source,
			FormattedBody: rendered,
			Mentions:      ExtractMentions(source),
		}},
	}, nil
}

// Image creates an image post. Dimensions are in pixels.
func Image(uri ref.MediaURI, width, height int) *Post {
	return &Post{
		Content: feed.Content{Image: &feed.ImageContent{
			URI:    uri,
			Width:  width,
			Height: height,
		}},
	}
}

// Video creates a video post.
func Video(uri ref.MediaURI) *Post {
	return &Post{
		Content: feed.Content{Video: &feed.VideoContent{URI: uri}},
	}
}

// Link creates a link post. The URL must be http or https.
func Link(rawURL string) (*Post, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("link post: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("link post: url must be http or https, got %q", rawURL)
	}
	return &Post{
		Content: feed.Content{Link: &feed.LinkContent{URL: rawURL}},
	}, nil
}

// WithCaption sets the caption on an image or video post, or the
// comment on a link post. Text posts are unchanged.
func (p *Post) WithCaption(caption string) *Post {
	switch {
	case p.Content.Image != nil:
		p.Content.Image.Caption = caption
	case p.Content.Video != nil:
		p.Content.Video.Caption = caption
	case p.Content.Link != nil:
		p.Content.Link.Comment = caption
	}
	return p
}

// WithThumbnail sets a thumbnail for an image or video post.
func (p *Post) WithThumbnail(uri ref.MediaURI) *Post {
	switch {
	case p.Content.Image != nil:
		p.Content.Image.Thumbnail = uri
	case p.Content.Video != nil:
		p.Content.Video.Thumbnail = uri
	}
	return p
}

// WithDuration sets the duration of a video post.
func (p *Post) WithDuration(d time.Duration) *Post {
	if p.Content.Video != nil {
		p.Content.Video.DurationMillis = d.Milliseconds()
	}
	return p
}

// WithPreview attaches a resolved link preview to a link post.
func (p *Post) WithPreview(preview *schema.LinkPreview) *Post {
	if p.Content.Link != nil {
		p.Content.Link.Preview = preview
	}
	return p
}

// WithLevel records the audience level the post is composed for.
func (p *Post) WithLevel(level privacy.Level) *Post {
	p.Level = level
	return p
}

// Message converts the post to Matrix message content.
func (p *Post) Message() (messaging.MessageContent, error) {
	return RoomMessage(p.Content)
}

// RoomMessage converts composed content to the m.room.message content
// that carries it. Media captions ride both as the body (the
// plain-text fallback every client shows) and as the m.commons.caption
// content key; link previews ride as m.commons.link_preview.
func RoomMessage(content feed.Content) (messaging.MessageContent, error) {
	if err := content.Validate(); err != nil {
		return messaging.MessageContent{}, err
	}
	switch {
	case content.Text != nil:
		return textMessage(content.Text), nil
	case content.Image != nil:
		return imageMessage(content.Image)
	case content.Video != nil:
		return videoMessage(content.Video)
	default:
		return linkMessage(content.Link)
	}
}

func textMessage(text *feed.TextContent) messaging.MessageContent {
	message := messaging.MessageContent{
		MsgType: schema.MsgTypeText,
		Body:    text.Body,
	}
	if text.FormattedBody != "" {
		message.Format = schema.FormatHTML
		message.FormattedBody = text.FormattedBody
	}
	if len(text.Mentions) > 0 {
		message.Mentions = &messaging.Mentions{UserIDs: text.Mentions}
	}
	return message
}

func imageMessage(image *feed.ImageContent) (messaging.MessageContent, error) {
	if image.URI.IsZero() {
		return messaging.MessageContent{}, errors.New("image post: media uri is required")
	}
	body := image.Caption
	if body == "" {
		body = "Image"
	}
	message := messaging.MessageContent{
		MsgType: schema.MsgTypeImage,
		Body:    body,
		URL:     image.URI.String(),
	}
	info := messaging.MediaInfo{
		Width:        image.Width,
		Height:       image.Height,
		ThumbnailURL: image.Thumbnail.String(),
	}
	if info != (messaging.MediaInfo{}) {
		message.Info = &info
	}
	if err := attachCaption(&message, image.Caption); err != nil {
		return messaging.MessageContent{}, err
	}
	return message, nil
}

func videoMessage(video *feed.VideoContent) (messaging.MessageContent, error) {
	if video.URI.IsZero() {
		return messaging.MessageContent{}, errors.New("video post: media uri is required")
	}
	body := video.Caption
	if body == "" {
		body = "Video"
	}
	message := messaging.MessageContent{
		MsgType: schema.MsgTypeVideo,
		Body:    body,
		URL:     video.URI.String(),
	}
	info := messaging.MediaInfo{
		Duration:     video.DurationMillis,
		ThumbnailURL: video.Thumbnail.String(),
	}
	if info != (messaging.MediaInfo{}) {
		message.Info = &info
	}
	if err := attachCaption(&message, video.Caption); err != nil {
		return messaging.MessageContent{}, err
	}
	return message, nil
}

func attachCaption(message *messaging.MessageContent, caption string) error {
	if caption == "" {
		return nil
	}
	raw, err := json.Marshal(schema.Caption{Text: caption})
	if err != nil {
		return fmt.Errorf("caption: %w", err)
	}
	message.Caption = raw
	return nil
}

func linkMessage(link *feed.LinkContent) (messaging.MessageContent, error) {
	if link.URL == "" {
		return messaging.MessageContent{}, errors.New("link post: url is required")
	}
	body := link.URL
	if link.Comment != "" {
		body = link.Comment + "\n\n" + link.URL
	}
	message := messaging.MessageContent{
		MsgType:       schema.MsgTypeText,
		Body:          body,
		Format:        schema.FormatHTML,
		FormattedBody: linkHTML(link),
	}
	if link.Preview != nil {
		if err := link.Preview.Validate(); err != nil {
			return messaging.MessageContent{}, err
		}
		raw, err := json.Marshal(link.Preview)
		if err != nil {
			return messaging.MessageContent{}, fmt.Errorf("link preview: %w", err)
		}
		message.LinkPreview = raw
	}
	return message, nil
}

// linkHTML renders the formatted body for a link post: the comment as
// a paragraph, then the preview as a blockquote with the title as a
// bold link, the description in italics, and the site name in small
// text. Without a preview the link itself is the anchor.
func linkHTML(link *feed.LinkContent) string {
	escapedURL := html.EscapeString(link.URL)
	if link.Preview == nil {
		if link.Comment != "" {
			return "<p>" + html.EscapeString(link.Comment) + "</p><p><a href=\"" + escapedURL + "\">" + escapedURL + "</a></p>"
		}
		return "<a href=\"" + escapedURL + "\">" + escapedURL + "</a>"
	}
	var builder strings.Builder
	if link.Comment != "" {
		builder.WriteString("<p>" + html.EscapeString(link.Comment) + "</p>")
	}
	builder.WriteString("<blockquote>")
	if link.Preview.Title != "" {
		builder.WriteString("<strong><a href=\"" + escapedURL + "\">" + html.EscapeString(link.Preview.Title) + "</a></strong>")
	} else {
		builder.WriteString("<a href=\"" + escapedURL + "\">" + escapedURL + "</a>")
	}
	if link.Preview.Description != "" {
		builder.WriteString("<br/><em>" + html.EscapeString(link.Preview.Description) + "</em>")
	}
	if link.Preview.SiteName != "" {
		builder.WriteString("<br/><small>" + html.EscapeString(link.Preview.SiteName) + "</small>")
	}
	builder.WriteString("</blockquote>")
	return builder.String()
}

// FromMessage recovers post content from m.room.message content.
// Messages with msgtypes other than m.text, m.image, and m.video are
// not posts and return an error. A malformed caption or preview
// payload is dropped rather than failing the whole post.
func FromMessage(message messaging.MessageContent) (feed.Content, error) {
	switch message.MsgType {
	case schema.MsgTypeText:
		return textContent(message), nil
	case schema.MsgTypeImage:
		return imageContent(message)
	case schema.MsgTypeVideo:
		return videoContent(message)
	default:
		return feed.Content{}, fmt.Errorf("msgtype %q is not a post", message.MsgType)
	}
}

// ParseMessage decodes a raw m.room.message content map (as delivered
// in a sync or room messages response) and recovers the post content.
func ParseMessage(content map[string]any) (feed.Content, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return feed.Content{}, fmt.Errorf("post content: %w", err)
	}
	var message messaging.MessageContent
	if err := json.Unmarshal(raw, &message); err != nil {
		return feed.Content{}, fmt.Errorf("post content: %w", err)
	}
	return FromMessage(message)
}

func textContent(message messaging.MessageContent) feed.Content {
	if len(message.LinkPreview) > 0 {
		preview, err := schema.ParseLinkPreview(message.LinkPreview)
		if err == nil {
			comment := message.Body
			if comment == preview.URL {
				comment = ""
			} else {
				comment = strings.TrimSuffix(comment, "\n\n"+preview.URL)
			}
			return feed.Content{Link: &feed.LinkContent{
				URL:     preview.URL,
				Comment: comment,
				Preview: &preview,
			}}
		}
	}
	var mentions []ref.UserID
	if message.Mentions != nil {
		mentions = message.Mentions.UserIDs
	}
	return feed.Content{Text: &feed.TextContent{
		Body:          message.Body,
		FormattedBody: message.FormattedBody,
		Mentions:      mentions,
	}}
}

func imageContent(message messaging.MessageContent) (feed.Content, error) {
	uri, err := ref.ParseMediaURI(message.URL)
	if err != nil {
		return feed.Content{}, fmt.Errorf("image post: %w", err)
	}
	image := &feed.ImageContent{URI: uri, Caption: captionText(message)}
	if message.Info != nil {
		image.Width = message.Info.Width
		image.Height = message.Info.Height
		if thumbnail, err := ref.ParseMediaURI(message.Info.ThumbnailURL); err == nil {
			image.Thumbnail = thumbnail
		}
	}
	return feed.Content{Image: image}, nil
}

func videoContent(message messaging.MessageContent) (feed.Content, error) {
	uri, err := ref.ParseMediaURI(message.URL)
	if err != nil {
		return feed.Content{}, fmt.Errorf("video post: %w", err)
	}
	video := &feed.VideoContent{URI: uri, Caption: captionText(message)}
	if message.Info != nil {
		video.DurationMillis = message.Info.Duration
		if thumbnail, err := ref.ParseMediaURI(message.Info.ThumbnailURL); err == nil {
			video.Thumbnail = thumbnail
		}
	}
	return feed.Content{Video: video}, nil
}

// captionText recovers a media caption: the m.commons.caption payload
// when present and valid, otherwise the body unless it is the
// placeholder the composer writes for caption-less media.
func captionText(message messaging.MessageContent) string {
	if len(message.Caption) > 0 {
		caption, err := schema.ParseCaption(message.Caption)
		if err == nil {
			return caption.Text
		}
	}
	if message.Body == "Image" || message.Body == "Video" {
		return ""
	}
	return message.Body
}
