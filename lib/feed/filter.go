// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"fmt"
	"time"

	"github.com/commons-foundation/commons/lib/ref"
)

// ContentFilter narrows a feed to one class of payload.
type ContentFilter int

const (
	// AllContent admits every payload kind.
	AllContent ContentFilter = iota

	// TextOnly admits text posts.
	TextOnly

	// MediaOnly admits image and video posts.
	MediaOnly

	// LinksOnly admits link shares.
	LinksOnly
)

// String returns the filter's name.
func (f ContentFilter) String() string {
	switch f {
	case AllContent:
		return "all"
	case TextOnly:
		return "text"
	case MediaOnly:
		return "media"
	case LinksOnly:
		return "links"
	default:
		return "unknown"
	}
}

// ParseContentFilter parses a content filter name: "all", "text",
// "media", or "links".
func ParseContentFilter(s string) (ContentFilter, error) {
	switch s {
	case "all":
		return AllContent, nil
	case "text":
		return TextOnly, nil
	case "media":
		return MediaOnly, nil
	case "links":
		return LinksOnly, nil
	default:
		return AllContent, fmt.Errorf("unknown content filter %q", s)
	}
}

// Matches reports whether item's payload passes the filter.
func (f ContentFilter) Matches(item *Item) bool {
	switch f {
	case TextOnly:
		return item.Content.Kind() == KindText
	case MediaOnly:
		kind := item.Content.Kind()
		return kind == KindImage || kind == KindVideo
	case LinksOnly:
		return item.Content.Kind() == KindLink
	default:
		return true
	}
}

// FilterSettings narrows the aggregated feed. Criteria compose by
// AND; the default settings admit everything.
type FilterSettings struct {
	// Content admits only one payload class. AllContent admits all.
	Content ContentFilter

	// Authors, when non-empty, admits only posts from these users.
	Authors map[ref.UserID]struct{}

	// MutedAuthors hides posts from these users.
	MutedAuthors map[ref.UserID]struct{}

	// MinEngagement hides posts whose engagement is below the
	// threshold. Zero means no minimum.
	MinEngagement int

	// MaxAge hides posts older than this. Zero means no age limit.
	MaxAge time.Duration
}

// NewFilterSettings returns the all-pass filter.
func NewFilterSettings() *FilterSettings {
	return &FilterSettings{
		Authors:      make(map[ref.UserID]struct{}),
		MutedAuthors: make(map[ref.UserID]struct{}),
	}
}

// AllowAuthor restricts the feed to listed authors. The first call
// switches the author criterion from "everyone" to "listed only".
func (f *FilterSettings) AllowAuthor(author ref.UserID) {
	if f.Authors == nil {
		f.Authors = make(map[ref.UserID]struct{})
	}
	f.Authors[author] = struct{}{}
}

// MuteAuthor hides author's posts.
func (f *FilterSettings) MuteAuthor(author ref.UserID) {
	if f.MutedAuthors == nil {
		f.MutedAuthors = make(map[ref.UserID]struct{})
	}
	f.MutedAuthors[author] = struct{}{}
}

// UnmuteAuthor lifts a mute.
func (f *FilterSettings) UnmuteAuthor(author ref.UserID) {
	delete(f.MutedAuthors, author)
}

// Matches reports whether item passes every active criterion. The
// age criterion is evaluated against now, so matching is
// deterministic for a fixed clock.
func (f *FilterSettings) Matches(item *Item, now time.Time) bool {
	if !f.Content.Matches(item) {
		return false
	}
	if len(f.Authors) > 0 {
		if _, allowed := f.Authors[item.Author]; !allowed {
			return false
		}
	}
	if _, muted := f.MutedAuthors[item.Author]; muted {
		return false
	}
	if f.MinEngagement > 0 && item.Engagement() < f.MinEngagement {
		return false
	}
	if f.MaxAge > 0 && item.Timestamp < now.Add(-f.MaxAge).UnixMilli() {
		return false
	}
	return true
}

// Apply returns the items that pass the filter, preserving their
// relative order. Applying the same settings to the result returns
// it unchanged.
func (f *FilterSettings) Apply(items []Item, now time.Time) []Item {
	filtered := make([]Item, 0, len(items))
	for i := range items {
		if f.Matches(&items[i], now) {
			filtered = append(filtered, items[i])
		}
	}
	return filtered
}

// HasActiveFilters reports whether the settings differ from the
// all-pass default. Drives the "filters active" affordance only; it
// has no effect on matching.
func (f *FilterSettings) HasActiveFilters() bool {
	return f.Content != AllContent ||
		len(f.Authors) > 0 ||
		len(f.MutedAuthors) > 0 ||
		f.MinEngagement > 0 ||
		f.MaxAge > 0
}

// Reset restores the all-pass default.
func (f *FilterSettings) Reset() {
	*f = FilterSettings{
		Authors:      make(map[ref.UserID]struct{}),
		MutedAuthors: make(map[ref.UserID]struct{}),
	}
}
