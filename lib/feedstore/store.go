// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/commons-foundation/commons/lib/bm25"
	"github.com/commons-foundation/commons/lib/feed"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/sqlitepool"
)

// Store is the SQLite-backed timeline cache. One store serves all
// followed feeds; rows are partitioned by room column, not by table.
//
// Write path: the feed service calls UpsertPost, UpsertComment, and
// UpsertReaction as events arrive from sync, and DeleteEvent for
// redactions. All writes are idempotent under replay.
//
// Read path: RecentItems serves the aggregator (it implements
// feed.SourceFetcher), GetPost serves single-post lookups, and Search
// ranks the whole cache with BM25.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger

	// generation counts post writes and deletions. The search index
	// is rebuilt when it trails the current generation.
	generation atomic.Uint64

	// searchMu guards the cached index. Concurrent searches share one
	// rebuild rather than racing to build their own.
	searchMu          sync.Mutex
	searchIdx         *bm25.Index
	indexedGeneration uint64
}

// StoreConfig holds the parameters for opening a feed store.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Logger receives operational messages.
	Logger *slog.Logger
}

const storeSchema = `
	CREATE TABLE IF NOT EXISTS posts (
		event_id      TEXT PRIMARY KEY,
		room          TEXT NOT NULL,
		author        TEXT NOT NULL,
		timestamp     INTEGER NOT NULL,
		kind          TEXT NOT NULL,
		body          TEXT NOT NULL DEFAULT '',
		content       BLOB NOT NULL,
		compression   INTEGER NOT NULL,
		content_size  INTEGER NOT NULL,
		comment_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_posts_room_time ON posts(room, timestamp DESC);

	CREATE TABLE IF NOT EXISTS comments (
		event_id TEXT PRIMARY KEY,
		room     TEXT NOT NULL,
		post_id  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);

	CREATE TABLE IF NOT EXISTS reactions (
		event_id TEXT PRIMARY KEY,
		room     TEXT NOT NULL,
		post_id  TEXT NOT NULL,
		emoji    TEXT NOT NULL,
		sender   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reactions_post ON reactions(post_id);
`

// OpenStore opens the feed store, creating the database file and
// schema if they do not exist.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("feed store: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("feed store: %w", err)
	}

	store := &Store{
		pool:   pool,
		logger: cfg.Logger,
	}

	if err := store.initSchema(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("feed store: init schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return sqlitex.ExecuteScript(conn, storeSchema, nil)
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// bumpGeneration marks the search index stale. Called after any write
// that adds or removes posts.
func (s *Store) bumpGeneration() {
	s.generation.Add(1)
}

// UpsertPost inserts or replaces a cached post. The item's Reactions
// and CommentCount are ignored: the store owns both, building them
// from its own reaction and comment rows.
func (s *Store) UpsertPost(ctx context.Context, item feed.Item) error {
	if item.ItemID.IsZero() {
		return fmt.Errorf("feed store: upsert post: event ID is required")
	}
	if err := item.Content.Validate(); err != nil {
		return fmt.Errorf("feed store: upsert post %s: %w", item.ItemID, err)
	}

	blob, tag, size, err := encodeContent(item.Content)
	if err != nil {
		return fmt.Errorf("feed store: upsert post %s: %w", item.ItemID, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("feed store: upsert post: %w", err)
	}
	defer s.pool.Put(conn)

	// comment_count is seeded from comments already cached for this
	// post, so a comment that raced ahead of its post through sync is
	// counted when the post lands. The conflict branch leaves the
	// count alone: an edit or a replayed batch must not reset it.
	err = sqlitex.Execute(conn, `INSERT INTO posts
		(event_id, room, author, timestamp, kind, body, content, compression, content_size, comment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COUNT(*) FROM comments WHERE post_id = ?))
		ON CONFLICT(event_id) DO UPDATE SET
			room = excluded.room,
			author = excluded.author,
			timestamp = excluded.timestamp,
			kind = excluded.kind,
			body = excluded.body,
			content = excluded.content,
			compression = excluded.compression,
			content_size = excluded.content_size`,
		&sqlitex.ExecOptions{
			Args: []any{
				item.ItemID.String(),
				item.SourceRoom.String(),
				item.Author.String(),
				item.Timestamp,
				item.Content.Kind().String(),
				searchText(item.Content),
				blob,
				int64(tag),
				int64(size),
				item.ItemID.String(),
			},
		})
	if err != nil {
		return fmt.Errorf("feed store: upsert post %s: %w", item.ItemID, err)
	}

	s.bumpGeneration()
	return nil
}

// UpsertComment records a thread reply to a post and bumps the post's
// comment count. The count is only incremented when the comment is
// new, so sync replay cannot inflate it. The post row may not exist
// yet; the comment is kept and counted when the post arrives.
func (s *Store) UpsertComment(ctx context.Context, room ref.RoomID, commentID, postID ref.EventID) (err error) {
	if commentID.IsZero() || postID.IsZero() {
		return fmt.Errorf("feed store: upsert comment: event IDs are required")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("feed store: upsert comment: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("feed store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO comments (event_id, room, post_id) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{commentID.String(), room.String(), postID.String()},
		})
	if err != nil {
		return fmt.Errorf("feed store: upsert comment %s: %w", commentID, err)
	}

	if conn.Changes() == 1 {
		err = sqlitex.Execute(conn,
			"UPDATE posts SET comment_count = comment_count + 1 WHERE event_id = ?",
			&sqlitex.ExecOptions{Args: []any{postID.String()}})
		if err != nil {
			return fmt.Errorf("feed store: count comment %s: %w", commentID, err)
		}
	}

	return nil
}

// UpsertReaction records a reaction event. Keyed on the reaction's own
// event ID, so replay is a no-op and one user can react to the same
// post with several emoji. Summaries are built from these rows on
// read.
func (s *Store) UpsertReaction(ctx context.Context, room ref.RoomID, reactionID, postID ref.EventID, emoji string, sender ref.UserID) error {
	if reactionID.IsZero() || postID.IsZero() {
		return fmt.Errorf("feed store: upsert reaction: event IDs are required")
	}
	if emoji == "" {
		return fmt.Errorf("feed store: upsert reaction %s: emoji is required", reactionID)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("feed store: upsert reaction: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO reactions (event_id, room, post_id, emoji, sender) VALUES (?, ?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{reactionID.String(), room.String(), postID.String(), emoji, sender.String()},
		})
	if err != nil {
		return fmt.Errorf("feed store: upsert reaction %s: %w", reactionID, err)
	}

	return nil
}

// DeletedKind identifies what a redacted event turned out to be in the
// cache.
type DeletedKind string

const (
	DeletedNothing  DeletedKind = ""
	DeletedPost     DeletedKind = "post"
	DeletedComment  DeletedKind = "comment"
	DeletedReaction DeletedKind = "reaction"
)

// DeleteEvent applies a redaction. The redacted event may be a post, a
// comment, or a reaction; the store finds out which. Deleting a post
// removes its comments and reactions with it. Returns what was
// deleted, DeletedNothing when the event was not cached.
func (s *Store) DeleteEvent(ctx context.Context, eventID ref.EventID) (deleted DeletedKind, err error) {
	if eventID.IsZero() {
		return DeletedNothing, fmt.Errorf("feed store: delete event: event ID is required")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return DeletedNothing, fmt.Errorf("feed store: delete event: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return DeletedNothing, fmt.Errorf("feed store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	id := eventID.String()

	// Reaction is the cheapest and most common case.
	err = sqlitex.Execute(conn, "DELETE FROM reactions WHERE event_id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return DeletedNothing, fmt.Errorf("feed store: delete reaction %s: %w", eventID, err)
	}
	if conn.Changes() == 1 {
		return DeletedReaction, nil
	}

	// Comment next: remember the parent so its count can come down.
	var parentPost string
	err = sqlitex.Execute(conn, "SELECT post_id FROM comments WHERE event_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				parentPost = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return DeletedNothing, fmt.Errorf("feed store: look up comment %s: %w", eventID, err)
	}
	if parentPost != "" {
		err = sqlitex.Execute(conn, "DELETE FROM comments WHERE event_id = ?",
			&sqlitex.ExecOptions{Args: []any{id}})
		if err != nil {
			return DeletedNothing, fmt.Errorf("feed store: delete comment %s: %w", eventID, err)
		}
		err = sqlitex.Execute(conn,
			"UPDATE posts SET comment_count = MAX(comment_count - 1, 0) WHERE event_id = ?",
			&sqlitex.ExecOptions{Args: []any{parentPost}})
		if err != nil {
			return DeletedNothing, fmt.Errorf("feed store: uncount comment %s: %w", eventID, err)
		}
		return DeletedComment, nil
	}

	// Post last: cascade to its comments and reactions.
	err = sqlitex.Execute(conn, "DELETE FROM posts WHERE event_id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return DeletedNothing, fmt.Errorf("feed store: delete post %s: %w", eventID, err)
	}
	if conn.Changes() == 0 {
		return DeletedNothing, nil
	}

	err = sqlitex.Execute(conn, "DELETE FROM comments WHERE post_id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return DeletedNothing, fmt.Errorf("feed store: delete comments of %s: %w", eventID, err)
	}
	err = sqlitex.Execute(conn, "DELETE FROM reactions WHERE post_id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return DeletedNothing, fmt.Errorf("feed store: delete reactions of %s: %w", eventID, err)
	}

	s.bumpGeneration()
	return DeletedPost, nil
}

// DeleteOlderThan removes posts with a timestamp before cutoffMillis,
// along with their comments and reactions, and sweeps rows orphaned by
// posts that never arrived. Returns the number of posts removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoffMillis int64) (removed int, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("feed store: retention: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("feed store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"DELETE FROM comments WHERE post_id IN (SELECT event_id FROM posts WHERE timestamp < ?)",
		&sqlitex.ExecOptions{Args: []any{cutoffMillis}})
	if err != nil {
		return 0, fmt.Errorf("feed store: retention comments: %w", err)
	}
	err = sqlitex.Execute(conn,
		"DELETE FROM reactions WHERE post_id IN (SELECT event_id FROM posts WHERE timestamp < ?)",
		&sqlitex.ExecOptions{Args: []any{cutoffMillis}})
	if err != nil {
		return 0, fmt.Errorf("feed store: retention reactions: %w", err)
	}
	err = sqlitex.Execute(conn, "DELETE FROM posts WHERE timestamp < ?",
		&sqlitex.ExecOptions{Args: []any{cutoffMillis}})
	if err != nil {
		return 0, fmt.Errorf("feed store: retention posts: %w", err)
	}
	removed = conn.Changes()

	// Orphan sweep: comments and reactions whose post never arrived.
	// Out-of-order sync delivery is a matter of seconds; anything
	// still dangling by the time retention runs is not going to heal.
	err = sqlitex.Execute(conn,
		"DELETE FROM comments WHERE post_id NOT IN (SELECT event_id FROM posts)",
		&sqlitex.ExecOptions{})
	if err != nil {
		return 0, fmt.Errorf("feed store: retention orphan comments: %w", err)
	}
	err = sqlitex.Execute(conn,
		"DELETE FROM reactions WHERE post_id NOT IN (SELECT event_id FROM posts)",
		&sqlitex.ExecOptions{})
	if err != nil {
		return 0, fmt.Errorf("feed store: retention orphan reactions: %w", err)
	}

	if removed > 0 {
		s.bumpGeneration()
		s.logger.Info("retention removed posts", "count", removed, "cutoff_millis", cutoffMillis)
	}
	return removed, nil
}

// TrimRooms caps every room at maxPerRoom posts, removing the oldest
// posts beyond the cap along with their comments and reactions.
// Returns the number of posts removed. maxPerRoom <= 0 disables the
// cap.
func (s *Store) TrimRooms(ctx context.Context, maxPerRoom int) (removed int, err error) {
	if maxPerRoom <= 0 {
		return 0, nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("feed store: trim: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("feed store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	var rooms []string
	err = sqlitex.Execute(conn,
		"SELECT room FROM posts GROUP BY room HAVING COUNT(*) > ?",
		&sqlitex.ExecOptions{
			Args: []any{maxPerRoom},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rooms = append(rooms, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("feed store: trim: find rooms over cap: %w", err)
	}

	for _, room := range rooms {
		var victims []string
		err = sqlitex.Execute(conn,
			"SELECT event_id FROM posts WHERE room = ? ORDER BY timestamp DESC LIMIT -1 OFFSET ?",
			&sqlitex.ExecOptions{
				Args: []any{room, maxPerRoom},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					victims = append(victims, stmt.ColumnText(0))
					return nil
				},
			})
		if err != nil {
			return 0, fmt.Errorf("feed store: trim %s: %w", room, err)
		}

		placeholders := strings.Repeat("?, ", len(victims)-1) + "?"
		args := make([]any, len(victims))
		for i, victim := range victims {
			args[i] = victim
		}
		for _, table := range []string{"comments", "reactions"} {
			err = sqlitex.ExecuteTransient(conn,
				"DELETE FROM "+table+" WHERE post_id IN ("+placeholders+")",
				&sqlitex.ExecOptions{Args: args})
			if err != nil {
				return 0, fmt.Errorf("feed store: trim %s %s: %w", room, table, err)
			}
		}
		err = sqlitex.ExecuteTransient(conn,
			"DELETE FROM posts WHERE event_id IN ("+placeholders+")",
			&sqlitex.ExecOptions{Args: args})
		if err != nil {
			return 0, fmt.Errorf("feed store: trim %s posts: %w", room, err)
		}
		removed += len(victims)
	}

	if removed > 0 {
		s.bumpGeneration()
		s.logger.Info("trimmed cached posts", "count", removed, "max_per_room", maxPerRoom)
	}
	return removed, nil
}

// DeleteRoom drops every cached row for a room. Called when the user
// unfollows or leaves a feed. Returns the number of posts removed.
func (s *Store) DeleteRoom(ctx context.Context, room ref.RoomID) (removed int, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("feed store: delete room: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("feed store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, table := range []string{"comments", "reactions"} {
		err = sqlitex.ExecuteTransient(conn, "DELETE FROM "+table+" WHERE room = ?",
			&sqlitex.ExecOptions{Args: []any{room.String()}})
		if err != nil {
			return 0, fmt.Errorf("feed store: delete room %s %s: %w", room, table, err)
		}
	}

	err = sqlitex.Execute(conn, "DELETE FROM posts WHERE room = ?",
		&sqlitex.ExecOptions{Args: []any{room.String()}})
	if err != nil {
		return 0, fmt.Errorf("feed store: delete room %s posts: %w", room, err)
	}
	removed = conn.Changes()

	if removed > 0 {
		s.bumpGeneration()
	}
	return removed, nil
}

// Stats summarizes what the cache is holding.
type Stats struct {
	PostCount         int64
	CommentCount      int64
	ReactionCount     int64
	DatabaseSizeBytes int64
}

// Stats returns current cache statistics.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("feed store: stats: %w", err)
	}
	defer s.pool.Put(conn)

	var stats Stats

	err = sqlitex.Execute(conn, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.DatabaseSizeBytes = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return stats, fmt.Errorf("feed store: database size: %w", err)
	}

	counts := []struct {
		table string
		into  *int64
	}{
		{"posts", &stats.PostCount},
		{"comments", &stats.CommentCount},
		{"reactions", &stats.ReactionCount},
	}
	for _, count := range counts {
		err = sqlitex.ExecuteTransient(conn, "SELECT COUNT(*) FROM "+count.table, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				*count.into = stmt.ColumnInt64(0)
				return nil
			},
		})
		if err != nil {
			return stats, fmt.Errorf("feed store: count %s: %w", count.table, err)
		}
	}

	return stats, nil
}
