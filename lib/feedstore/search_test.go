// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedstore

import (
	"context"
	"testing"

	"github.com/commons-foundation/commons/lib/feed"
	"github.com/commons-foundation/commons/lib/ref"
)

func TestSearchRanksByBody(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	items := []feed.Item{
		textItem(1, testRoomGarden, testAlice, 1000, "the tomato seedlings need hardening off before transplant"),
		textItem(2, testRoomGarden, testBob, 2000, "workshop cleanup on sunday, pizza after"),
		textItem(3, testRoomWorkshop, testBob, 3000, "borrowed the tile saw, back thursday"),
	}
	for _, item := range items {
		if err := store.UpsertPost(ctx, item); err != nil {
			t.Fatalf("UpsertPost: %v", err)
		}
	}

	results, err := store.Search(ctx, "tomato seedlings", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for tomato seedlings")
	}
	if results[0].Item.ItemID != items[0].ItemID {
		t.Errorf("top result = %s, want %s", results[0].Item.ItemID, items[0].ItemID)
	}
	if results[0].Score <= 0 {
		t.Errorf("top score = %f, want > 0", results[0].Score)
	}
	if results[0].Item.Content.Text == nil || results[0].Item.Content.Text.Body != items[0].Content.Text.Body {
		t.Error("result content did not round-trip")
	}
}

func TestSearchSeesNewWrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := textItem(1, testRoomGarden, testAlice, 1000, "compost turning schedule")
	if err := store.UpsertPost(ctx, first); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}

	// Build the index once.
	if _, err := store.Search(ctx, "compost", 10); err != nil {
		t.Fatalf("Search: %v", err)
	}

	// A later write must invalidate the cached index.
	second := textItem(2, testRoomGarden, testBob, 2000, "beehive inspection notes")
	if err := store.UpsertPost(ctx, second); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}

	results, err := store.Search(ctx, "beehive inspection", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("new post not searchable")
	}
	if results[0].Item.ItemID != second.ItemID {
		t.Errorf("top result = %s, want %s", results[0].Item.ItemID, second.ItemID)
	}
}

func TestSearchForgetsDeleted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	item := textItem(1, testRoomGarden, testAlice, 1000, "ephemeral announcement")
	if err := store.UpsertPost(ctx, item); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}
	if _, err := store.Search(ctx, "ephemeral", 10); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if _, err := store.DeleteEvent(ctx, item.ItemID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}

	results, err := store.Search(ctx, "ephemeral", 10)
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for deleted post, want 0", len(results))
	}
}

func TestSearchEmptyStore(t *testing.T) {
	store := openTestStore(t)

	results, err := store.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("got %v from empty store, want nil", results)
	}
}

func TestSearchMatchesCaption(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	image := feed.Item{
		SourceRoom: testRoomGarden,
		ItemID:     ref.MustParseEventID("$captioned:commons.local"),
		Author:     testAlice,
		Timestamp:  1000,
		Content: feed.Content{Image: &feed.ImageContent{
			URI:     ref.MustParseMediaURI("mxc://commons.local/pic9"),
			Caption: "rainwater barrel overflow fix",
		}},
	}
	if err := store.UpsertPost(ctx, image); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}

	results, err := store.Search(ctx, "rainwater barrel", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("caption text not searchable")
	}
	if results[0].Item.ItemID != image.ItemID {
		t.Errorf("top result = %s, want %s", results[0].Item.ItemID, image.ItemID)
	}
}
