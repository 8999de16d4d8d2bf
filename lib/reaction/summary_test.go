// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package reaction

import (
	"testing"

	"github.com/commons-foundation/commons/lib/ref"
)

var (
	alice = ref.MustParseUserID("@alice:commons.local")
	bob   = ref.MustParseUserID("@bob:commons.local")
	carol = ref.MustParseUserID("@carol:commons.local")
)

func record(id string) ref.EventID {
	return ref.MustParseEventID("$" + id)
}

// checkInvariants verifies the summary's counting invariants: each
// count equals the size of its user set and the total equals the sum
// of the counts.
func checkInvariants(t *testing.T, s *Summary) {
	t.Helper()
	sum := 0
	for emoji, count := range s.Counts() {
		if users := s.UsersFor(emoji); len(users) != count {
			t.Errorf("emoji %q: count %d but %d users", emoji, count, len(users))
		}
		sum += count
	}
	if sum != s.Total() {
		t.Errorf("Total() = %d, want %d (sum of counts)", s.Total(), sum)
	}
}

func TestAdd(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Add(EmojiLike, bob, record("2"))
	summary.Add(EmojiLove, alice, record("3"))

	if got := summary.Count(EmojiLike); got != 2 {
		t.Errorf("Count(like) = %d, want 2", got)
	}
	if got := summary.Count(EmojiLove); got != 1 {
		t.Errorf("Count(love) = %d, want 1", got)
	}
	if got := summary.Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
	checkInvariants(t, summary)
}

func TestAdd_DuplicateIgnored(t *testing.T) {
	// The same (user, emoji) pair delivered twice counts once, and the
	// first record ID wins.
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Add(EmojiLike, alice, record("2"))

	if got := summary.Count(EmojiLike); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if got := summary.Total(); got != 1 {
		t.Errorf("Total() = %d, want 1", got)
	}
	id, ok := summary.RecordID(alice, EmojiLike)
	if !ok {
		t.Fatal("RecordID not found")
	}
	if id != record("1") {
		t.Errorf("RecordID = %v, want the first record", id)
	}
}

func TestRemove(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Add(EmojiLike, bob, record("2"))

	id, removed := summary.Remove(EmojiLike, alice)
	if !removed {
		t.Fatal("Remove returned false for a present reaction")
	}
	if id != record("1") {
		t.Errorf("removed record = %v, want %v", id, record("1"))
	}
	if got := summary.Count(EmojiLike); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if summary.HasReacted(alice, EmojiLike) {
		t.Error("HasReacted(alice) = true after removal")
	}
	if !summary.HasReacted(bob, EmojiLike) {
		t.Error("HasReacted(bob) = false, bob's reaction should survive")
	}
	checkInvariants(t, summary)
}

func TestRemove_Absent(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))

	if _, removed := summary.Remove(EmojiLove, alice); removed {
		t.Error("Remove of an absent emoji returned true")
	}
	if _, removed := summary.Remove(EmojiLike, bob); removed {
		t.Error("Remove of an absent user returned true")
	}
	if got := summary.Total(); got != 1 {
		t.Errorf("Total() = %d after no-op removes, want 1", got)
	}
}

func TestRemove_PrunesEmptyEmoji(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Add(EmojiLove, alice, record("2"))

	summary.Remove(EmojiLike, alice)

	emojis := summary.Emojis()
	if len(emojis) != 1 || emojis[0] != EmojiLove {
		t.Errorf("Emojis() = %v, want only love", emojis)
	}
	if _, present := summary.Counts()[EmojiLike]; present {
		t.Error("Counts() still carries the pruned emoji")
	}
}

func TestHasReacted(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))

	if !summary.HasReacted(alice, EmojiLike) {
		t.Error("HasReacted(alice, like) = false")
	}
	if summary.HasReacted(bob, EmojiLike) {
		t.Error("HasReacted(bob, like) = true")
	}
	if summary.HasReacted(alice, EmojiLove) {
		t.Error("HasReacted(alice, love) = true")
	}
}

func TestTop(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Add(EmojiLike, bob, record("2"))
	summary.Add(EmojiLove, alice, record("3"))
	summary.Add(EmojiFire, alice, record("4"))
	summary.Add(EmojiFire, bob, record("5"))
	summary.Add(EmojiFire, carol, record("6"))

	top := summary.Top(2)
	if len(top) != 2 {
		t.Fatalf("Top(2) returned %d entries", len(top))
	}
	if top[0].Emoji != EmojiFire || top[0].Count != 3 {
		t.Errorf("top[0] = %+v, want fire with 3", top[0])
	}
	if top[1].Emoji != EmojiLike || top[1].Count != 2 {
		t.Errorf("top[1] = %+v, want like with 2", top[1])
	}
}

func TestTop_TiesKeepInsertionOrder(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLove, alice, record("1"))
	summary.Add(EmojiLike, alice, record("2"))
	summary.Add(EmojiFire, alice, record("3"))

	top := summary.Top(3)
	want := []string{EmojiLove, EmojiLike, EmojiFire}
	for i, emoji := range want {
		if top[i].Emoji != emoji {
			t.Errorf("top[%d] = %q, want %q (insertion order)", i, top[i].Emoji, emoji)
		}
	}
}

func TestTop_BeyondDistinctEmojis(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))

	if top := summary.Top(10); len(top) != 1 {
		t.Errorf("Top(10) returned %d entries, want 1", len(top))
	}
	if top := summary.Top(0); len(top) != 0 {
		t.Errorf("Top(0) returned %d entries, want 0", len(top))
	}
}

func TestMerge(t *testing.T) {
	left := NewSummary()
	left.Add(EmojiLike, alice, record("1"))
	left.Add(EmojiLove, bob, record("2"))

	right := NewSummary()
	right.Add(EmojiLike, bob, record("3"))
	right.Add(EmojiFire, carol, record("4"))

	left.Merge(right)

	if got := left.Count(EmojiLike); got != 2 {
		t.Errorf("Count(like) = %d, want 2", got)
	}
	if got := left.Total(); got != 4 {
		t.Errorf("Total() = %d, want 4", got)
	}
	checkInvariants(t, left)
}

func TestMerge_OverlapDoesNotDoubleCount(t *testing.T) {
	// Both partials saw alice's like; the merged summary counts it
	// once and keeps the receiving side's record ID.
	left := NewSummary()
	left.Add(EmojiLike, alice, record("1"))

	right := NewSummary()
	right.Add(EmojiLike, alice, record("1"))
	right.Add(EmojiLike, bob, record("2"))

	left.Merge(right)

	if got := left.Count(EmojiLike); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	if got := left.Total(); got != 2 {
		t.Errorf("Total() = %d, want 2", got)
	}
}

func TestMerge_SelfIsNoOp(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Add(EmojiLove, bob, record("2"))

	summary.Merge(summary)

	if got := summary.Total(); got != 2 {
		t.Errorf("Total() = %d after self-merge, want 2", got)
	}
	checkInvariants(t, summary)
}

func TestMerge_IntoEmptyReproduces(t *testing.T) {
	// Merging into an empty summary reproduces counts, orderings, and
	// record IDs exactly.
	source := NewSummary()
	source.Add(EmojiLove, alice, record("1"))
	source.Add(EmojiLike, bob, record("2"))
	source.Add(EmojiLove, carol, record("3"))

	merged := NewSummary()
	merged.Merge(source)

	sourceEmojis := source.Emojis()
	mergedEmojis := merged.Emojis()
	if len(sourceEmojis) != len(mergedEmojis) {
		t.Fatalf("emoji count mismatch: %v vs %v", sourceEmojis, mergedEmojis)
	}
	for i := range sourceEmojis {
		if sourceEmojis[i] != mergedEmojis[i] {
			t.Errorf("emoji order differs at %d: %q vs %q", i, sourceEmojis[i], mergedEmojis[i])
		}
	}
	for _, emoji := range sourceEmojis {
		sourceUsers := source.UsersFor(emoji)
		mergedUsers := merged.UsersFor(emoji)
		if len(sourceUsers) != len(mergedUsers) {
			t.Fatalf("user count mismatch for %q", emoji)
		}
		for i := range sourceUsers {
			if sourceUsers[i] != mergedUsers[i] {
				t.Errorf("user order for %q differs at %d", emoji, i)
			}
			sourceID, _ := source.RecordID(sourceUsers[i], emoji)
			mergedID, _ := merged.RecordID(mergedUsers[i], emoji)
			if sourceID != mergedID {
				t.Errorf("record ID for (%v, %q) differs: %v vs %v", sourceUsers[i], emoji, sourceID, mergedID)
			}
		}
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))

	users := summary.UsersFor(EmojiLike)
	users[0] = bob
	if got := summary.UsersFor(EmojiLike)[0]; got != alice {
		t.Error("mutating UsersFor result leaked into the summary")
	}

	counts := summary.Counts()
	counts[EmojiLike] = 99
	if got := summary.Count(EmojiLike); got != 1 {
		t.Errorf("mutating Counts result leaked into the summary: %d", got)
	}

	emojis := summary.Emojis()
	emojis[0] = EmojiFire
	if got := summary.Emojis()[0]; got != EmojiLike {
		t.Error("mutating Emojis result leaked into the summary")
	}
}

func TestClear(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Add(EmojiLove, bob, record("2"))

	summary.Clear()

	if !summary.IsEmpty() {
		t.Error("IsEmpty() = false after Clear")
	}
	if got := summary.Total(); got != 0 {
		t.Errorf("Total() = %d after Clear", got)
	}
	if emojis := summary.Emojis(); len(emojis) != 0 {
		t.Errorf("Emojis() = %v after Clear", emojis)
	}

	// The cleared summary accepts new reactions.
	summary.Add(EmojiFire, carol, record("3"))
	if got := summary.Count(EmojiFire); got != 1 {
		t.Errorf("Count = %d after Clear and Add, want 1", got)
	}
}

func TestReAddAfterRemove(t *testing.T) {
	summary := NewSummary()
	summary.Add(EmojiLike, alice, record("1"))
	summary.Remove(EmojiLike, alice)
	summary.Add(EmojiLike, alice, record("2"))

	if got := summary.Count(EmojiLike); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	id, ok := summary.RecordID(alice, EmojiLike)
	if !ok || id != record("2") {
		t.Errorf("RecordID = %v, want the new record", id)
	}
}
