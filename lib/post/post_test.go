// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package post

import (
	"strings"
	"testing"
	"time"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
)

func TestTextPostMessage(t *testing.T) {
	message, err := Text("morning walk with @bob:commons.local").Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if message.MsgType != schema.MsgTypeText {
		t.Errorf("msgtype = %q, want %q", message.MsgType, schema.MsgTypeText)
	}
	if message.Body != "morning walk with @bob:commons.local" {
		t.Errorf("body = %q", message.Body)
	}
	if message.Format != "" || message.FormattedBody != "" {
		t.Errorf("plain text post has format %q / formatted body %q", message.Format, message.FormattedBody)
	}
	if message.Mentions == nil || len(message.Mentions.UserIDs) != 1 {
		t.Fatalf("mentions = %+v, want one user", message.Mentions)
	}
	if message.Mentions.UserIDs[0] != ref.MustParseUserID("@bob:commons.local") {
		t.Errorf("mention = %s", message.Mentions.UserIDs[0])
	}
}

func TestMarkdownPostMessage(t *testing.T) {
	p, err := Markdown("# Harvest day\n\nwe got *so many* tomatoes")
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	message, err := p.Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if message.Body != "# Harvest day\n\nwe got *so many* tomatoes" {
		t.Errorf("body should keep the markdown source, got %q", message.Body)
	}
	if message.Format != schema.FormatHTML {
		t.Errorf("format = %q, want %q", message.Format, schema.FormatHTML)
	}
	if !strings.Contains(message.FormattedBody, "<h1>Harvest day</h1>") {
		t.Errorf("formatted body missing heading: %q", message.FormattedBody)
	}
	if !strings.Contains(message.FormattedBody, "<em>so many</em>") {
		t.Errorf("formatted body missing emphasis: %q", message.FormattedBody)
	}
}

func TestImagePostMessage(t *testing.T) {
	uri := ref.MustParseMediaURI("mxc://commons.local/sunset123")
	thumbnail := ref.MustParseMediaURI("mxc://commons.local/sunset123_thumb")
	message, err := Image(uri, 800, 600).WithCaption("sunset over the allotment").WithThumbnail(thumbnail).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if message.MsgType != schema.MsgTypeImage {
		t.Errorf("msgtype = %q, want %q", message.MsgType, schema.MsgTypeImage)
	}
	if message.Body != "sunset over the allotment" {
		t.Errorf("body = %q, want the caption", message.Body)
	}
	if message.URL != "mxc://commons.local/sunset123" {
		t.Errorf("url = %q", message.URL)
	}
	if message.Info == nil {
		t.Fatal("info missing")
	}
	if message.Info.Width != 800 || message.Info.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", message.Info.Width, message.Info.Height)
	}
	if message.Info.ThumbnailURL != "mxc://commons.local/sunset123_thumb" {
		t.Errorf("thumbnail = %q", message.Info.ThumbnailURL)
	}
	caption, err := schema.ParseCaption(message.Caption)
	if err != nil {
		t.Fatalf("ParseCaption: %v", err)
	}
	if caption.Text != "sunset over the allotment" {
		t.Errorf("caption payload = %q", caption.Text)
	}
}

func TestImagePostDefaultBody(t *testing.T) {
	uri := ref.MustParseMediaURI("mxc://commons.local/pic1")
	message, err := Image(uri, 0, 0).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if message.Body != "Image" {
		t.Errorf("body = %q, want the Image placeholder", message.Body)
	}
	if len(message.Caption) != 0 {
		t.Errorf("caption-less image carries a caption payload: %s", message.Caption)
	}
	if message.Info != nil {
		t.Errorf("info should be omitted when empty, got %+v", message.Info)
	}
}

func TestVideoPostMessage(t *testing.T) {
	uri := ref.MustParseMediaURI("mxc://commons.local/clip9")
	message, err := Video(uri).WithCaption("repair cafe highlights").WithDuration(90 * time.Second).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if message.MsgType != schema.MsgTypeVideo {
		t.Errorf("msgtype = %q, want %q", message.MsgType, schema.MsgTypeVideo)
	}
	if message.Body != "repair cafe highlights" {
		t.Errorf("body = %q", message.Body)
	}
	if message.Info == nil || message.Info.Duration != 90000 {
		t.Fatalf("info = %+v, want 90000ms duration", message.Info)
	}
}

func TestLinkPostMessage(t *testing.T) {
	p, err := Link("https://example.org/article?id=1&lang=en")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	message, err := p.WithCaption("worth a read").Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if message.MsgType != schema.MsgTypeText {
		t.Errorf("msgtype = %q, want %q", message.MsgType, schema.MsgTypeText)
	}
	if message.Body != "worth a read\n\nhttps://example.org/article?id=1&lang=en" {
		t.Errorf("body = %q", message.Body)
	}
	if !strings.Contains(message.FormattedBody, "<p>worth a read</p>") {
		t.Errorf("formatted body missing comment paragraph: %q", message.FormattedBody)
	}
	if !strings.Contains(message.FormattedBody, "href=\"https://example.org/article?id=1&amp;lang=en\"") {
		t.Errorf("href not escaped: %q", message.FormattedBody)
	}
	if len(message.LinkPreview) != 0 {
		t.Errorf("preview-less link carries a preview payload: %s", message.LinkPreview)
	}
}

func TestLinkPostWithPreview(t *testing.T) {
	p, err := Link("https://example.org/article")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	message, err := p.WithCaption("context matters").WithPreview(&schema.LinkPreview{
		URL:         "https://example.org/article",
		Title:       "Tools <for> Conviviality",
		Description: "a long essay",
		SiteName:    "Example Press",
	}).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	formatted := message.FormattedBody
	if !strings.Contains(formatted, "<blockquote><strong><a href=\"https://example.org/article\">Tools &lt;for&gt; Conviviality</a></strong>") {
		t.Errorf("preview title not rendered as bold link: %q", formatted)
	}
	if !strings.Contains(formatted, "<br/><em>a long essay</em>") {
		t.Errorf("preview description not rendered: %q", formatted)
	}
	if !strings.Contains(formatted, "<br/><small>Example Press</small>") {
		t.Errorf("site name not rendered: %q", formatted)
	}
	preview, err := schema.ParseLinkPreview(message.LinkPreview)
	if err != nil {
		t.Fatalf("ParseLinkPreview: %v", err)
	}
	if preview.Title != "Tools <for> Conviviality" {
		t.Errorf("preview payload title = %q", preview.Title)
	}
}

func TestLinkPostRejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"ftp://files.example.org/a", "mailto:bob@example.com", "no scheme at all"} {
		if _, err := Link(raw); err == nil {
			t.Errorf("Link(%q) succeeded, want error", raw)
		}
	}
}

func TestWithCaptionLeavesTextAlone(t *testing.T) {
	p := Text("already composed").WithCaption("ignored")
	if p.Content.Text.Body != "already composed" {
		t.Errorf("body changed: %q", p.Content.Text.Body)
	}
}

func TestFromMessageRecoversLink(t *testing.T) {
	p, err := Link("https://example.org/a")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	message, err := p.WithCaption("see this").WithPreview(&schema.LinkPreview{
		URL:   "https://example.org/a",
		Title: "A",
	}).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	content, err := FromMessage(message)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	if content.Link == nil {
		t.Fatalf("content = %+v, want a link", content)
	}
	if content.Link.URL != "https://example.org/a" {
		t.Errorf("url = %q", content.Link.URL)
	}
	if content.Link.Comment != "see this" {
		t.Errorf("comment = %q, want %q", content.Link.Comment, "see this")
	}
	if content.Link.Preview == nil || content.Link.Preview.Title != "A" {
		t.Errorf("preview = %+v", content.Link.Preview)
	}
}

func TestFromMessageBareLinkHasNoComment(t *testing.T) {
	p, err := Link("https://example.org/a")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	message, err := p.WithPreview(&schema.LinkPreview{URL: "https://example.org/a"}).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	content, err := FromMessage(message)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	if content.Link == nil || content.Link.Comment != "" {
		t.Errorf("content = %+v, want a comment-less link", content)
	}
}

func TestFromMessageImageCaption(t *testing.T) {
	uri := ref.MustParseMediaURI("mxc://commons.local/pic2")

	// Caption present: recovered from the content key.
	message, err := Image(uri, 640, 480).WithCaption("first frost").Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	content, err := FromMessage(message)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	if content.Image == nil || content.Image.Caption != "first frost" {
		t.Fatalf("content = %+v, want caption %q", content, "first frost")
	}
	if content.Image.Width != 640 || content.Image.Height != 480 {
		t.Errorf("dimensions = %dx%d", content.Image.Width, content.Image.Height)
	}

	// Placeholder body from a caption-less composer: no caption.
	message, err = Image(uri, 0, 0).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	content, err = FromMessage(message)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	if content.Image.Caption != "" {
		t.Errorf("placeholder body became caption %q", content.Image.Caption)
	}
}

func TestFromMessageOtherClientImage(t *testing.T) {
	// An image sent by a client that puts the caption in the body and
	// writes no content key.
	content, err := ParseMessage(map[string]any{
		"msgtype": "m.image",
		"body":    "two chairs, free to collect",
		"url":     "mxc://matrix.example.org/abc",
		"info":    map[string]any{"w": float64(1024), "h": float64(768)},
	})
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if content.Image == nil {
		t.Fatalf("content = %+v, want an image", content)
	}
	if content.Image.Caption != "two chairs, free to collect" {
		t.Errorf("caption = %q", content.Image.Caption)
	}
	if content.Image.Width != 1024 || content.Image.Height != 768 {
		t.Errorf("dimensions = %dx%d", content.Image.Width, content.Image.Height)
	}
}

func TestFromMessageRejectsNonPosts(t *testing.T) {
	for _, msgtype := range []string{schema.MsgTypeNotice, "m.emote", "m.location", ""} {
		_, err := ParseMessage(map[string]any{"msgtype": msgtype, "body": "x"})
		if err == nil {
			t.Errorf("msgtype %q parsed as a post", msgtype)
		}
	}
}

func TestFromMessageVideoRoundTrip(t *testing.T) {
	uri := ref.MustParseMediaURI("mxc://commons.local/clip10")
	thumbnail := ref.MustParseMediaURI("mxc://commons.local/clip10_thumb")
	message, err := Video(uri).WithCaption("seed swap").WithThumbnail(thumbnail).WithDuration(2 * time.Minute).Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	content, err := FromMessage(message)
	if err != nil {
		t.Fatalf("FromMessage: %v", err)
	}
	video := content.Video
	if video == nil {
		t.Fatalf("content = %+v, want a video", content)
	}
	if video.Caption != "seed swap" || video.DurationMillis != 120000 || video.Thumbnail != thumbnail {
		t.Errorf("video = %+v", video)
	}
}
