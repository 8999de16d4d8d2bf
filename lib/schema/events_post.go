// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/commons-foundation/commons/lib/ref"
)

// Content keys for Commons payloads embedded in m.room.message events.
// These ride alongside the standard msgtype/body fields.
const (
	// ContentKeyLinkPreview holds a LinkPreview in a link post.
	ContentKeyLinkPreview = "m.commons.link_preview"

	// ContentKeyCaption holds a Caption in an image or video post.
	ContentKeyCaption = "m.commons.caption"
)

// LinkPreview is the resolved preview payload embedded in a link post
// under the ContentKeyLinkPreview content key. The composer fills it
// from the page's metadata at post time; readers render it without
// re-fetching the URL.
type LinkPreview struct {
	// URL is the link target. Required.
	URL string `json:"url"`

	// Title is the page title.
	Title string `json:"title,omitempty"`

	// Description is the page's summary text.
	Description string `json:"description,omitempty"`

	// Image is an mxc URI for the preview thumbnail, re-hosted on the
	// homeserver so readers never contact the original site.
	Image string `json:"image,omitempty"`

	// SiteName is the publishing site's display name.
	SiteName string `json:"site_name,omitempty"`
}

// Validate checks that the URL is present and well-formed and that the
// optional image is a valid mxc URI.
func (l *LinkPreview) Validate() error {
	if l.URL == "" {
		return errors.New("link preview: url is required")
	}
	parsed, err := url.Parse(l.URL)
	if err != nil {
		return fmt.Errorf("link preview: url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("link preview: url must be http or https, got %q", l.URL)
	}
	if l.Image != "" {
		if _, err := ref.ParseMediaURI(l.Image); err != nil {
			return fmt.Errorf("link preview: image: %w", err)
		}
	}
	return nil
}

// ParseLinkPreview decodes and validates a raw link preview payload.
// Unknown fields are rejected.
func ParseLinkPreview(raw json.RawMessage) (LinkPreview, error) {
	var preview LinkPreview
	if err := DecodeStrict(raw, &preview); err != nil {
		return LinkPreview{}, fmt.Errorf("link preview: %w", err)
	}
	if err := preview.Validate(); err != nil {
		return LinkPreview{}, err
	}
	return preview, nil
}

// Caption is the caption payload embedded in a media post under the
// ContentKeyCaption content key.
type Caption struct {
	// Text is the plain-text caption. Required.
	Text string `json:"text"`

	// FormattedText is the HTML rendering of the caption, present when
	// the caption was composed in markdown.
	FormattedText string `json:"formatted_text,omitempty"`
}

// Validate checks that the caption text is present.
func (c *Caption) Validate() error {
	if c.Text == "" {
		return errors.New("caption: text is required")
	}
	return nil
}

// ParseCaption decodes and validates a raw caption payload. Unknown
// fields are rejected.
func ParseCaption(raw json.RawMessage) (Caption, error) {
	var caption Caption
	if err := DecodeStrict(raw, &caption); err != nil {
		return Caption{}, fmt.Errorf("caption: %w", err)
	}
	if err := caption.Validate(); err != nil {
		return Caption{}, err
	}
	return caption, nil
}
