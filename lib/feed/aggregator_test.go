// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/commons-foundation/commons/lib/ref"
)

// fakeFetcher serves canned items per room and records the rooms it
// was asked about.
type fakeFetcher struct {
	items map[ref.RoomID][]Item
	errs  map[ref.RoomID]error
	calls []ref.RoomID
}

func (f *fakeFetcher) RecentItems(ctx context.Context, room ref.RoomID, max int) ([]Item, error) {
	f.calls = append(f.calls, room)
	if err := f.errs[room]; err != nil {
		return nil, err
	}
	return f.items[room], nil
}

func TestAggregator_Sources(t *testing.T) {
	aggregator := NewAggregator(&fakeFetcher{})

	aggregator.AddSource(publicFeed)
	aggregator.AddSource(friendsFeed)
	aggregator.AddSource(publicFeed)

	if got := aggregator.SourceCount(); got != 2 {
		t.Errorf("SourceCount() = %d, want 2 (duplicate add is a no-op)", got)
	}
	if !aggregator.HasSource(publicFeed) {
		t.Error("HasSource(publicFeed) = false")
	}

	aggregator.RemoveSource(publicFeed)
	if aggregator.HasSource(publicFeed) {
		t.Error("HasSource(publicFeed) = true after removal")
	}
	if got := aggregator.SourceCount(); got != 1 {
		t.Errorf("SourceCount() = %d, want 1", got)
	}

	sources := aggregator.Sources()
	if len(sources) != 1 || sources[0] != friendsFeed {
		t.Errorf("Sources() = %v, want [%v]", sources, friendsFeed)
	}
}

func TestFetch_EngagementOrder(t *testing.T) {
	// Engagement scores [3, 10, 1] come back as [10, 3, 1].
	fetcher := &fakeFetcher{items: map[ref.RoomID][]Item{
		publicFeed: {
			textItem("p1", alice, 100, 3),
			textItem("p2", bob, 200, 10),
			textItem("p3", carol, 300, 1),
		},
	}}
	aggregator := NewAggregator(fetcher)
	aggregator.AddSource(publicFeed)
	aggregator.SetSortOrder(Engagement)

	items, err := aggregator.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var got []int
	for i := range items {
		got = append(got, items[i].Engagement())
	}
	want := []int{10, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("engagement order = %v, want %v", got, want)
		}
	}
}

func TestFetch_ChronologicalOrder(t *testing.T) {
	fetcher := &fakeFetcher{items: map[ref.RoomID][]Item{
		publicFeed: {
			textItem("p1", alice, 1000, 0),
			textItem("p2", alice, 3000, 0),
		},
		friendsFeed: {
			textItem("p3", bob, 2000, 0),
		},
	}}
	aggregator := NewAggregator(fetcher)
	aggregator.AddSource(publicFeed)
	aggregator.AddSource(friendsFeed)

	items, err := aggregator.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []int64{3000, 2000, 1000}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, timestamp := range want {
		if items[i].Timestamp != timestamp {
			t.Errorf("items[%d].Timestamp = %d, want %d", i, items[i].Timestamp, timestamp)
		}
	}
}

func TestFetch_GroupedByAuthor(t *testing.T) {
	fetcher := &fakeFetcher{items: map[ref.RoomID][]Item{
		publicFeed: {
			textItem("p1", carol, 1000, 0),
			textItem("p2", alice, 2000, 0),
			textItem("p3", alice, 5000, 0),
			textItem("p4", carol, 4000, 0),
		},
	}}
	aggregator := NewAggregator(fetcher)
	aggregator.AddSource(publicFeed)
	aggregator.SetSortOrder(GroupedByAuthor)

	items, err := aggregator.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Alice's posts first (author ascending), newest first within
	// each author.
	wantAuthors := []ref.UserID{alice, alice, carol, carol}
	wantTimestamps := []int64{5000, 2000, 4000, 1000}
	for i := range wantAuthors {
		if items[i].Author != wantAuthors[i] || items[i].Timestamp != wantTimestamps[i] {
			t.Errorf("items[%d] = (%v, %d), want (%v, %d)",
				i, items[i].Author, items[i].Timestamp, wantAuthors[i], wantTimestamps[i])
		}
	}
}

func TestFetch_Truncates(t *testing.T) {
	fetcher := &fakeFetcher{items: map[ref.RoomID][]Item{
		publicFeed: {
			textItem("p1", alice, 1000, 0),
			textItem("p2", alice, 2000, 0),
			textItem("p3", alice, 3000, 0),
		},
	}}
	aggregator := NewAggregator(fetcher)
	aggregator.AddSource(publicFeed)

	items, err := aggregator.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	// Truncation happens after sorting: the two newest survive.
	if items[0].Timestamp != 3000 || items[1].Timestamp != 2000 {
		t.Errorf("kept timestamps %d, %d; want 3000, 2000", items[0].Timestamp, items[1].Timestamp)
	}
}

func TestFetch_ErrorPassesThrough(t *testing.T) {
	fetchFailed := errors.New("timeline fetch failed")
	fetcher := &fakeFetcher{
		items: map[ref.RoomID][]Item{publicFeed: {textItem("p1", alice, 1000, 0)}},
		errs:  map[ref.RoomID]error{friendsFeed: fetchFailed},
	}
	aggregator := NewAggregator(fetcher)
	aggregator.AddSource(publicFeed)
	aggregator.AddSource(friendsFeed)

	items, err := aggregator.Fetch(context.Background(), 10)
	if err != fetchFailed {
		t.Fatalf("err = %v, want the fetcher's error unchanged", err)
	}
	if items != nil {
		t.Errorf("items = %v, want nil on error", items)
	}
}

func TestFetch_Deterministic(t *testing.T) {
	// Same tracked rooms and items, same output sequence, run twice.
	fetcher := &fakeFetcher{items: map[ref.RoomID][]Item{
		publicFeed: {
			textItem("p1", alice, 1000, 2),
			textItem("p2", bob, 1000, 2),
		},
		friendsFeed: {
			textItem("p3", carol, 1000, 2),
		},
	}}
	aggregator := NewAggregator(fetcher)
	aggregator.AddSource(friendsFeed)
	aggregator.AddSource(publicFeed)
	aggregator.SetSortOrder(Engagement)

	first, err := aggregator.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	second, err := aggregator.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ItemID != second[i].ItemID {
			t.Errorf("item %d differs between runs: %v vs %v", i, first[i].ItemID, second[i].ItemID)
		}
	}
}

func TestSortOrderParse(t *testing.T) {
	for _, order := range []SortOrder{Chronological, Engagement, GroupedByAuthor} {
		parsed, err := ParseSortOrder(order.String())
		if err != nil {
			t.Errorf("ParseSortOrder(%q): %v", order.String(), err)
		}
		if parsed != order {
			t.Errorf("round trip %v: got %v", order, parsed)
		}
	}
	if _, err := ParseSortOrder("newest"); err == nil {
		t.Error("ParseSortOrder(newest): expected error")
	}
}

func TestSortOrderDefault(t *testing.T) {
	aggregator := NewAggregator(&fakeFetcher{})
	if got := aggregator.SortOrder(); got != Chronological {
		t.Errorf("default sort order = %v, want %v", got, Chronological)
	}
}
