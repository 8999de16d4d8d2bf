// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package reaction

import (
	"github.com/commons-foundation/commons/lib/ref"
)

// DefaultDisplayLimit is how many reaction chips a post shows by
// default.
const DefaultDisplayLimit = 10

// Display is one reaction chip on a rendered post.
type Display struct {
	// Emoji is the reaction emoji.
	Emoji string

	// Count is the number of users who reacted with it.
	Count int

	// Selected reports whether the viewer is among them.
	Selected bool
}

// ForDisplay returns the top k reactions as display chips, marking
// the ones viewer has used. k <= 0 means DefaultDisplayLimit; a zero
// viewer marks nothing.
func ForDisplay(summary *Summary, viewer ref.UserID, k int) []Display {
	if k <= 0 {
		k = DefaultDisplayLimit
	}
	top := summary.Top(k)
	chips := make([]Display, len(top))
	for i, ranked := range top {
		selected := !viewer.IsZero() && summary.HasReacted(viewer, ranked.Emoji)
		chips[i] = Display{Emoji: ranked.Emoji, Count: ranked.Count, Selected: selected}
	}
	return chips
}
