// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedstore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/commons-foundation/commons/lib/bm25"
	"github.com/commons-foundation/commons/lib/feed"
)

// SearchResult pairs a cached post with its relevance score.
type SearchResult struct {
	Item  feed.Item
	Score float64
}

// Search ranks cached posts against a free-text query, best match
// first. Post bodies weigh more than author names, which weigh more
// than the content kind. The BM25 index is rebuilt lazily after
// writes; until then searches reuse the previous build.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed store: search: %w", err)
	}
	defer s.pool.Put(conn)

	index, err := s.searchIndex(conn)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, nil
	}

	ranked := index.Search(query, limit)
	if len(ranked) == 0 {
		return nil, nil
	}

	matched := make([]feed.Item, 0, len(ranked))
	scores := make([]float64, 0, len(ranked))
	for _, match := range ranked {
		items, err := s.queryPosts(conn, "event_id = ?", []any{match.Name}, 1)
		if err != nil {
			return nil, err
		}
		// A post can vanish between the index build and the fetch.
		if len(items) == 0 {
			continue
		}
		matched = append(matched, items[0])
		scores = append(scores, match.Score)
	}
	if err := s.attachReactions(conn, matched); err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(matched))
	for i := range matched {
		results[i] = SearchResult{Item: matched[i], Score: scores[i]}
	}
	return results, nil
}

// searchIndex returns the current index, rebuilding it when posts have
// changed since the last build. Returns nil when the cache holds no
// posts.
func (s *Store) searchIndex(conn *sqlite.Conn) (*bm25.Index, error) {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	current := s.generation.Load()
	if s.searchIdx != nil && s.indexedGeneration == current {
		return s.searchIdx, nil
	}

	var documents []bm25.Document
	err := sqlitex.Execute(conn, "SELECT event_id, author, kind, body FROM posts", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			documents = append(documents, bm25.Document{
				Name: stmt.ColumnText(0),
				Fields: []bm25.Field{
					{Text: stmt.ColumnText(3), Weight: 3},
					{Text: stmt.ColumnText(1), Weight: 2},
					{Text: stmt.ColumnText(2), Weight: 1},
				},
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("feed store: build search index: %w", err)
	}

	if len(documents) == 0 {
		s.searchIdx = nil
		s.indexedGeneration = current
		return nil, nil
	}

	s.searchIdx = bm25.New(documents)
	s.indexedGeneration = current
	s.logger.Debug("search index rebuilt", "documents", len(documents), "generation", current)
	return s.searchIdx, nil
}
