// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"testing"
	"time"

	"github.com/commons-foundation/commons/lib/ref"
)

var filterNow = time.UnixMilli(1_000_000_000)

func TestContentFilter_Matches(t *testing.T) {
	image := ref.MustParseMediaURI("mxc://commons.local/img")
	text := Item{Content: Content{Text: &TextContent{Body: "hi"}}}
	photo := Item{Content: Content{Image: &ImageContent{URI: image}}}
	video := Item{Content: Content{Video: &VideoContent{URI: image}}}
	link := Item{Content: Content{Link: &LinkContent{URL: "https://example.org"}}}

	tests := []struct {
		filter ContentFilter
		item   *Item
		want   bool
	}{
		{AllContent, &text, true},
		{AllContent, &link, true},
		{TextOnly, &text, true},
		{TextOnly, &photo, false},
		{MediaOnly, &photo, true},
		{MediaOnly, &video, true},
		{MediaOnly, &text, false},
		{LinksOnly, &link, true},
		{LinksOnly, &video, false},
	}
	for _, test := range tests {
		if got := test.filter.Matches(test.item); got != test.want {
			t.Errorf("%v.Matches(%v item) = %v, want %v", test.filter, test.item.Content.Kind(), got, test.want)
		}
	}
}

func TestContentFilterParse(t *testing.T) {
	for _, filter := range []ContentFilter{AllContent, TextOnly, MediaOnly, LinksOnly} {
		parsed, err := ParseContentFilter(filter.String())
		if err != nil {
			t.Errorf("ParseContentFilter(%q): %v", filter.String(), err)
		}
		if parsed != filter {
			t.Errorf("round trip %v: got %v", filter, parsed)
		}
	}
	if _, err := ParseContentFilter("photos"); err == nil {
		t.Error("ParseContentFilter(photos): expected error")
	}
}

func TestFilterSettings_DefaultAdmitsEverything(t *testing.T) {
	settings := NewFilterSettings()
	item := textItem("p1", alice, filterNow.UnixMilli(), 0)

	if !settings.Matches(&item, filterNow) {
		t.Error("default settings rejected an item")
	}
	if settings.HasActiveFilters() {
		t.Error("HasActiveFilters() = true for the default")
	}
}

func TestFilterSettings_MutedAuthor(t *testing.T) {
	settings := NewFilterSettings()
	settings.MuteAuthor(bob)

	muted := textItem("p1", bob, 0, 0)
	normal := textItem("p2", alice, 0, 0)

	if settings.Matches(&muted, filterNow) {
		t.Error("muted author's post passed")
	}
	if !settings.Matches(&normal, filterNow) {
		t.Error("unmuted author's post rejected")
	}

	settings.UnmuteAuthor(bob)
	if !settings.Matches(&muted, filterNow) {
		t.Error("post still rejected after unmute")
	}
}

func TestFilterSettings_AuthorAllowList(t *testing.T) {
	settings := NewFilterSettings()
	settings.AllowAuthor(alice)

	allowed := textItem("p1", alice, 0, 0)
	other := textItem("p2", bob, 0, 0)

	if !settings.Matches(&allowed, filterNow) {
		t.Error("listed author's post rejected")
	}
	if settings.Matches(&other, filterNow) {
		t.Error("unlisted author's post passed a non-empty allow-list")
	}
}

func TestFilterSettings_MinEngagement(t *testing.T) {
	settings := NewFilterSettings()
	settings.MinEngagement = 5

	low := textItem("p1", alice, 0, 2)
	exact := textItem("p2", alice, 0, 5)
	high := textItem("p3", alice, 0, 10)

	if settings.Matches(&low, filterNow) {
		t.Error("engagement 2 passed threshold 5")
	}
	if !settings.Matches(&exact, filterNow) {
		t.Error("engagement 5 rejected at threshold 5")
	}
	if !settings.Matches(&high, filterNow) {
		t.Error("engagement 10 rejected")
	}
}

func TestFilterSettings_MaxAge(t *testing.T) {
	settings := NewFilterSettings()
	settings.MaxAge = time.Hour

	fresh := textItem("p1", alice, filterNow.Add(-30*time.Minute).UnixMilli(), 0)
	stale := textItem("p2", alice, filterNow.Add(-2*time.Hour).UnixMilli(), 0)

	if !settings.Matches(&fresh, filterNow) {
		t.Error("30-minute-old post rejected by a 1h age limit")
	}
	if settings.Matches(&stale, filterNow) {
		t.Error("2-hour-old post passed a 1h age limit")
	}
}

func TestApply_PreservesOrderAndIsIdempotent(t *testing.T) {
	settings := NewFilterSettings()
	settings.MuteAuthor(bob)

	items := []Item{
		textItem("p1", alice, 3000, 0),
		textItem("p2", bob, 2000, 0),
		textItem("p3", carol, 1000, 0),
	}

	once := settings.Apply(items, filterNow)
	if len(once) != 2 {
		t.Fatalf("got %d items, want 2", len(once))
	}
	if once[0].Author != alice || once[1].Author != carol {
		t.Errorf("surviving order = [%v %v], want [alice carol]", once[0].Author, once[1].Author)
	}

	twice := settings.Apply(once, filterNow)
	if len(twice) != len(once) {
		t.Fatalf("second application changed the result: %d vs %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i].ItemID != once[i].ItemID {
			t.Errorf("item %d differs after reapplication", i)
		}
	}
}

func TestHasActiveFilters(t *testing.T) {
	content := NewFilterSettings()
	content.Content = TextOnly
	if !content.HasActiveFilters() {
		t.Error("content filter not reported active")
	}

	authors := NewFilterSettings()
	authors.AllowAuthor(alice)
	if !authors.HasActiveFilters() {
		t.Error("author allow-list not reported active")
	}

	muted := NewFilterSettings()
	muted.MuteAuthor(bob)
	if !muted.HasActiveFilters() {
		t.Error("mute list not reported active")
	}

	engagement := NewFilterSettings()
	engagement.MinEngagement = 1
	if !engagement.HasActiveFilters() {
		t.Error("engagement threshold not reported active")
	}

	age := NewFilterSettings()
	age.MaxAge = time.Minute
	if !age.HasActiveFilters() {
		t.Error("age limit not reported active")
	}
}

func TestFilterSettings_Reset(t *testing.T) {
	settings := NewFilterSettings()
	settings.Content = MediaOnly
	settings.MuteAuthor(bob)
	settings.MinEngagement = 3
	settings.MaxAge = time.Hour

	settings.Reset()

	if settings.HasActiveFilters() {
		t.Error("HasActiveFilters() = true after Reset")
	}
	item := textItem("p1", bob, 0, 0)
	if !settings.Matches(&item, filterNow) {
		t.Error("reset settings rejected an item")
	}
}
