// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package post

import (
	"regexp"

	"github.com/commons-foundation/commons/lib/ref"
)

// mentionPattern matches Matrix user IDs written inline in post text:
// an @ sigil at the start of the text or after a non-alphanumeric
// character, a localpart in the canonical character set, and a server
// name with an optional port. The sigil context rule keeps email
// addresses from matching.
var mentionPattern = regexp.MustCompile(
	`(?:^|[^A-Za-z0-9])(@[a-z0-9._=/+-]+:[A-Za-z0-9](?:[A-Za-z0-9.-]*[A-Za-z0-9])?(?::[0-9]{1,5})?)`)

// ExtractMentions returns the user IDs mentioned in body text, in
// first-appearance order with duplicates removed.
func ExtractMentions(body string) []ref.UserID {
	var mentions []ref.UserID
	seen := make(map[ref.UserID]struct{})
	for _, match := range mentionPattern.FindAllStringSubmatch(body, -1) {
		userID, err := ref.ParseUserID(match[1])
		if err != nil {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		mentions = append(mentions, userID)
	}
	return mentions
}
