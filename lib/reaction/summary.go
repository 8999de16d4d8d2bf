// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package reaction

import (
	"sort"

	"github.com/commons-foundation/commons/lib/ref"
)

// recordKey identifies one user's reaction with one emoji.
type recordKey struct {
	user  ref.UserID
	emoji string
}

// Summary aggregates the reactions on a single post: which emojis,
// how many of each, who reacted, and the event that carried each
// reaction. The count for an emoji always equals the size of its
// user set, and the total equals the sum of the counts.
//
// A Summary belongs to exactly one post and is not safe for
// concurrent mutation; callers impose a single-writer discipline.
type Summary struct {
	// order lists emojis by first insertion. Every iteration and
	// tie-break in this package follows it, never map order.
	order   []string
	entries map[string]*emojiEntry
	records map[recordKey]ref.EventID
	total   int
}

// emojiEntry tracks the users behind one emoji, in reaction order.
type emojiEntry struct {
	users   []ref.UserID
	present map[ref.UserID]struct{}
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{
		entries: make(map[string]*emojiEntry),
		records: make(map[recordKey]ref.EventID),
	}
}

// Add records user's reaction with emoji, remembering the event that
// carried it. A (user, emoji) pair that is already counted is a
// no-op and keeps its original record ID, so at-least-once delivery
// never double-counts.
func (s *Summary) Add(emoji string, user ref.UserID, record ref.EventID) {
	entry, ok := s.entries[emoji]
	if !ok {
		entry = &emojiEntry{present: make(map[ref.UserID]struct{})}
		s.entries[emoji] = entry
		s.order = append(s.order, emoji)
	}
	if _, reacted := entry.present[user]; reacted {
		return
	}
	entry.present[user] = struct{}{}
	entry.users = append(entry.users, user)
	s.records[recordKey{user: user, emoji: emoji}] = record
	s.total++
}

// Remove withdraws user's reaction with emoji. Returns the event that
// carried the reaction (the annotation to redact) and whether the
// reaction was present. Emojis are pruned when their last user
// leaves, so iteration never reports zero-count entries.
func (s *Summary) Remove(emoji string, user ref.UserID) (ref.EventID, bool) {
	entry, ok := s.entries[emoji]
	if !ok {
		return ref.EventID{}, false
	}
	if _, reacted := entry.present[user]; !reacted {
		return ref.EventID{}, false
	}
	delete(entry.present, user)
	for i, u := range entry.users {
		if u == user {
			entry.users = append(entry.users[:i], entry.users[i+1:]...)
			break
		}
	}
	if len(entry.users) == 0 {
		delete(s.entries, emoji)
		for i, e := range s.order {
			if e == emoji {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.total--

	key := recordKey{user: user, emoji: emoji}
	record := s.records[key]
	delete(s.records, key)
	return record, true
}

// Count returns the number of users who reacted with emoji.
func (s *Summary) Count(emoji string) int {
	entry, ok := s.entries[emoji]
	if !ok {
		return 0
	}
	return len(entry.users)
}

// Total returns the number of counted reactions across all emojis.
func (s *Summary) Total() int {
	return s.total
}

// IsEmpty reports whether the summary has no reactions.
func (s *Summary) IsEmpty() bool {
	return s.total == 0
}

// HasReacted reports whether user has a counted reaction with emoji.
func (s *Summary) HasReacted(user ref.UserID, emoji string) bool {
	entry, ok := s.entries[emoji]
	if !ok {
		return false
	}
	_, reacted := entry.present[user]
	return reacted
}

// RecordID returns the event that carried user's reaction with emoji.
func (s *Summary) RecordID(user ref.UserID, emoji string) (ref.EventID, bool) {
	record, ok := s.records[recordKey{user: user, emoji: emoji}]
	return record, ok
}

// UsersFor returns the users who reacted with emoji, in reaction
// order. The slice is a copy.
func (s *Summary) UsersFor(emoji string) []ref.UserID {
	entry, ok := s.entries[emoji]
	if !ok {
		return nil
	}
	users := make([]ref.UserID, len(entry.users))
	copy(users, entry.users)
	return users
}

// Emojis returns every emoji with at least one reaction, in first-
// insertion order. The slice is a copy.
func (s *Summary) Emojis() []string {
	emojis := make([]string, len(s.order))
	copy(emojis, s.order)
	return emojis
}

// Counts returns every emoji's count as a fresh map.
func (s *Summary) Counts() map[string]int {
	counts := make(map[string]int, len(s.entries))
	for emoji, entry := range s.entries {
		counts[emoji] = len(entry.users)
	}
	return counts
}

// EmojiCount pairs an emoji with its reaction count.
type EmojiCount struct {
	Emoji string
	Count int
}

// Top returns the k highest-count emojis, counts descending. Ties
// keep first-insertion order, so identical record sequences produce
// identical rankings. k beyond the number of distinct emojis returns
// all of them.
func (s *Summary) Top(k int) []EmojiCount {
	if k < 0 {
		k = 0
	}
	ranked := make([]EmojiCount, 0, len(s.order))
	for _, emoji := range s.order {
		ranked = append(ranked, EmojiCount{Emoji: emoji, Count: len(s.entries[emoji].users)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// Merge folds every reaction in other into s by replaying it through
// Add. Reactions already counted keep their original record IDs, so
// merging overlapping partial summaries, or a summary with itself,
// never double-counts. Iteration follows other's insertion order and
// is deterministic.
func (s *Summary) Merge(other *Summary) {
	for _, emoji := range other.order {
		entry := other.entries[emoji]
		for _, user := range entry.users {
			s.Add(emoji, user, other.records[recordKey{user: user, emoji: emoji}])
		}
	}
}

// Clear removes every reaction.
func (s *Summary) Clear() {
	s.order = nil
	s.entries = make(map[string]*emojiEntry)
	s.records = make(map[recordKey]ref.EventID)
	s.total = 0
}
