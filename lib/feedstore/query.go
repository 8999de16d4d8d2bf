// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedstore

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/commons-foundation/commons/lib/compress"
	"github.com/commons-foundation/commons/lib/feed"
	"github.com/commons-foundation/commons/lib/reaction"
	"github.com/commons-foundation/commons/lib/ref"
)

// RecentItems returns the newest cached posts in a room, most recent
// first, with reaction summaries and comment counts attached. It
// implements feed.SourceFetcher for the aggregator.
func (s *Store) RecentItems(ctx context.Context, room ref.RoomID, max int) ([]feed.Item, error) {
	if max <= 0 {
		max = 50
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed store: recent items: %w", err)
	}
	defer s.pool.Put(conn)

	items, err := s.queryPosts(conn, "room = ?", []any{room.String()}, max)
	if err != nil {
		return nil, err
	}
	if err := s.attachReactions(conn, items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetPost returns a single cached post by event ID. The boolean is
// false when the post is not in the cache.
func (s *Store) GetPost(ctx context.Context, eventID ref.EventID) (feed.Item, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return feed.Item{}, false, fmt.Errorf("feed store: get post: %w", err)
	}
	defer s.pool.Put(conn)

	items, err := s.queryPosts(conn, "event_id = ?", []any{eventID.String()}, 1)
	if err != nil {
		return feed.Item{}, false, err
	}
	if len(items) == 0 {
		return feed.Item{}, false, nil
	}
	if err := s.attachReactions(conn, items); err != nil {
		return feed.Item{}, false, err
	}
	return items[0], true, nil
}

// Rooms returns the distinct room IDs that have cached posts, rooms
// with the newest post first. Callers join these back to feed markers
// for display; the store itself only knows room IDs.
func (s *Store) Rooms(ctx context.Context) ([]ref.RoomID, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed store: rooms: %w", err)
	}
	defer s.pool.Put(conn)

	var rooms []ref.RoomID
	err = sqlitex.Execute(conn,
		"SELECT room, MAX(timestamp) AS latest FROM posts GROUP BY room ORDER BY latest DESC",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				room, err := ref.ParseRoomID(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("parse room ID: %w", err)
				}
				rooms = append(rooms, room)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("feed store: rooms: %w", err)
	}
	return rooms, nil
}

// queryPosts runs a SELECT over the posts table with the given WHERE
// condition, newest first. Reactions are not attached here.
func (s *Store) queryPosts(conn *sqlite.Conn, condition string, args []any, limit int) ([]feed.Item, error) {
	query := "SELECT event_id, room, author, timestamp, content, compression, content_size, comment_count FROM posts"
	if condition != "" {
		query += " WHERE " + condition
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	var items []feed.Item
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			item, err := scanPost(stmt)
			if err != nil {
				return err
			}
			items = append(items, item)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("feed store: query posts: %w", err)
	}
	return items, nil
}

func scanPost(stmt *sqlite.Stmt) (feed.Item, error) {
	var item feed.Item

	// Columns: event_id(0), room(1), author(2), timestamp(3),
	// content(4), compression(5), content_size(6), comment_count(7)

	itemID, err := ref.ParseEventID(stmt.ColumnText(0))
	if err != nil {
		return item, fmt.Errorf("parse event ID: %w", err)
	}
	item.ItemID = itemID

	room, err := ref.ParseRoomID(stmt.ColumnText(1))
	if err != nil {
		return item, fmt.Errorf("parse room ID: %w", err)
	}
	item.SourceRoom = room

	author, err := ref.ParseUserID(stmt.ColumnText(2))
	if err != nil {
		return item, fmt.Errorf("parse author: %w", err)
	}
	item.Author = author

	item.Timestamp = stmt.ColumnInt64(3)

	blob := make([]byte, stmt.ColumnLen(4))
	stmt.ColumnBytes(4, blob)
	content, err := decodeContent(blob, compress.Tag(stmt.ColumnInt(5)), stmt.ColumnInt(6))
	if err != nil {
		return item, fmt.Errorf("content of %s: %w", itemID, err)
	}
	item.Content = content

	item.CommentCount = stmt.ColumnInt(7)
	return item, nil
}

// attachReactions loads the reaction rows for the given items and
// builds their summaries in place. Items with no reactions keep a nil
// summary.
func (s *Store) attachReactions(conn *sqlite.Conn, items []feed.Item) error {
	if len(items) == 0 {
		return nil
	}

	byPost := make(map[string]*feed.Item, len(items))
	placeholders := make([]string, len(items))
	args := make([]any, len(items))
	for i := range items {
		id := items[i].ItemID.String()
		byPost[id] = &items[i]
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT post_id, emoji, sender, event_id FROM reactions WHERE post_id IN (" +
		strings.Join(placeholders, ", ") + ")"

	err := sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			item := byPost[stmt.ColumnText(0)]
			if item == nil {
				return nil
			}
			sender, err := ref.ParseUserID(stmt.ColumnText(2))
			if err != nil {
				return fmt.Errorf("parse reaction sender: %w", err)
			}
			record, err := ref.ParseEventID(stmt.ColumnText(3))
			if err != nil {
				return fmt.Errorf("parse reaction event ID: %w", err)
			}
			if item.Reactions == nil {
				item.Reactions = reaction.NewSummary()
			}
			item.Reactions.Add(stmt.ColumnText(1), sender, record)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("feed store: load reactions: %w", err)
	}
	return nil
}
