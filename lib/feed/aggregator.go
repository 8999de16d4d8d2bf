// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"fmt"
	"sort"

	"github.com/commons-foundation/commons/lib/ref"
)

// SortOrder determines how aggregated feed items are ordered.
type SortOrder int

const (
	// Chronological shows the most recent posts first.
	Chronological SortOrder = iota

	// Engagement shows the most reacted and replied-to posts first.
	Engagement

	// GroupedByAuthor groups posts by author, most recent first
	// within each author.
	GroupedByAuthor
)

// String returns the wire name of the sort order.
func (o SortOrder) String() string {
	switch o {
	case Chronological:
		return "chronological"
	case Engagement:
		return "engagement"
	case GroupedByAuthor:
		return "author"
	default:
		return "unknown"
	}
}

// ParseSortOrder parses a sort order name: "chronological",
// "engagement", or "author".
func ParseSortOrder(s string) (SortOrder, error) {
	switch s {
	case "chronological":
		return Chronological, nil
	case "engagement":
		return Engagement, nil
	case "author":
		return GroupedByAuthor, nil
	default:
		return Chronological, fmt.Errorf("unknown sort order %q", s)
	}
}

// SourceFetcher supplies the recent items of one feed room. The
// production implementation reads the local feed store; tests use
// fakes.
type SourceFetcher interface {
	// RecentItems returns up to max of the room's newest items. The
	// caller treats the result as an owned snapshot.
	RecentItems(ctx context.Context, room ref.RoomID, max int) ([]Item, error)
}

// Aggregator merges the timelines of multiple feed rooms into one
// feed. It owns the set of tracked rooms (membership unique) and the
// active sort order. An Aggregator belongs to exactly one feed view
// and is not safe for concurrent mutation.
type Aggregator struct {
	fetcher SourceFetcher
	sources map[ref.RoomID]struct{}
	order   SortOrder
}

// NewAggregator returns an aggregator with no tracked rooms, sorted
// chronologically.
func NewAggregator(fetcher SourceFetcher) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		sources: make(map[ref.RoomID]struct{}),
	}
}

// AddSource starts aggregating room. Adding a room that is already
// tracked is a no-op.
func (a *Aggregator) AddSource(room ref.RoomID) {
	a.sources[room] = struct{}{}
}

// RemoveSource stops aggregating room.
func (a *Aggregator) RemoveSource(room ref.RoomID) {
	delete(a.sources, room)
}

// HasSource reports whether room is being aggregated.
func (a *Aggregator) HasSource(room ref.RoomID) bool {
	_, ok := a.sources[room]
	return ok
}

// SourceCount returns the number of tracked rooms.
func (a *Aggregator) SourceCount() int {
	return len(a.sources)
}

// Sources returns the tracked rooms, sorted for stable output.
func (a *Aggregator) Sources() []ref.RoomID {
	rooms := make([]ref.RoomID, 0, len(a.sources))
	for room := range a.sources {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].String() < rooms[j].String()
	})
	return rooms
}

// SortOrder returns the active sort order.
func (a *Aggregator) SortOrder() SortOrder {
	return a.order
}

// SetSortOrder changes how Fetch orders the merged feed.
func (a *Aggregator) SetSortOrder(order SortOrder) {
	a.order = order
}

// Fetch pulls up to limit recent items from every tracked room,
// concatenates them, sorts by the active order, and truncates to
// limit. Sorting runs only after every fetch has returned, and rooms
// are visited in Sources() order with stable sorts, so a fixed item
// set yields the same sequence every time.
//
// A fetch error is returned unchanged; the aggregator adds no retry
// and no reinterpretation.
func (a *Aggregator) Fetch(ctx context.Context, limit int) ([]Item, error) {
	var all []Item
	for _, room := range a.Sources() {
		items, err := a.fetcher.RecentItems(ctx, room, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	sortItems(all, a.order)
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// sortItems orders items in place. All three orders sort stably over
// the incoming concatenation order.
func sortItems(items []Item, order SortOrder) {
	switch order {
	case Engagement:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Engagement() > items[j].Engagement()
		})
	case GroupedByAuthor:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Author != items[j].Author {
				return items[i].Author.String() < items[j].Author.String()
			}
			return items[i].Timestamp > items[j].Timestamp
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Timestamp > items[j].Timestamp
		})
	}
}
