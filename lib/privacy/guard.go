// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package privacy

import (
	"fmt"
	"strings"

	"github.com/commons-foundation/commons/lib/ref"
)

// Verdict is the outcome kind of a sharing decision.
type Verdict int

const (
	// Allowed means the share may proceed without interaction.
	Allowed Verdict = iota

	// BlockedPrivacyLeak means the share would move content to a less
	// restrictive audience and must not proceed.
	BlockedPrivacyLeak

	// RequiresConfirmation means the share may proceed only after the
	// user explicitly confirms it.
	RequiresConfirmation

	// MissingMentions means the share mentions users who are not
	// members of the target room.
	MissingMentions

	// AttachmentPrivacyMismatch means an attachment comes from a more
	// restrictive room than the target audience allows.
	AttachmentPrivacyMismatch
)

// String returns a short lowercase name for the verdict.
func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case BlockedPrivacyLeak:
		return "blocked privacy leak"
	case RequiresConfirmation:
		return "requires confirmation"
	case MissingMentions:
		return "missing mentions"
	case AttachmentPrivacyMismatch:
		return "attachment privacy mismatch"
	default:
		return "unknown"
	}
}

// Attachment is quoted or embedded content carried along with a
// share, tagged with the room it came from and that room's privacy
// level.
type Attachment struct {
	Room  ref.RoomID
	Level Level
}

// Warning texts for the two confirmation verdicts.
const (
	friendsToPublicWarning = "You are about to share friends-only content publicly. " +
		"The original author may not have intended this content to be shared publicly."
	quoteWarning = "Your reply quotes content from a more private room. " +
		"This may expose private information."
)

// ShareValidation is the outcome of a sharing decision. Exactly one
// verdict is produced per validation; the remaining fields carry the
// data needed to render a user-facing explanation without re-deriving
// it.
type ShareValidation struct {
	// Verdict is the decision.
	Verdict Verdict

	// Source and Target are the content and destination levels. Only
	// set when Verdict is BlockedPrivacyLeak.
	Source Level
	Target Level

	// Warning is the confirmation prompt. Only set when Verdict is
	// RequiresConfirmation.
	Warning string

	// Missing lists every mentioned user who is not a member of the
	// target room, in mention order. Only set when Verdict is
	// MissingMentions.
	Missing []ref.UserID

	// AttachmentRoom and AttachmentLevel identify the first offending
	// attachment in input order. Only set when Verdict is
	// AttachmentPrivacyMismatch.
	AttachmentRoom  ref.RoomID
	AttachmentLevel Level
}

// IsAllowed reports whether the share may proceed without further
// interaction.
func (v ShareValidation) IsAllowed() bool {
	return v.Verdict == Allowed
}

// Explain returns the user-facing explanation for the verdict, or ""
// for Allowed.
func (v ShareValidation) Explain() string {
	switch v.Verdict {
	case BlockedPrivacyLeak:
		return fmt.Sprintf("Cannot share %s content to %s audience",
			v.Source.audienceName(), v.Target.audienceName())
	case RequiresConfirmation:
		return v.Warning
	case MissingMentions:
		names := make([]string, len(v.Missing))
		for i, user := range v.Missing {
			names[i] = user.String()
		}
		return "Mentioned users are not in the target room: " + strings.Join(names, ", ")
	case AttachmentPrivacyMismatch:
		return fmt.Sprintf("An attachment from %s is %s content and cannot be shared to this audience",
			v.AttachmentRoom, v.AttachmentLevel.audienceName())
	default:
		return ""
	}
}

// ValidateShare decides whether content at the source level may be
// cross-posted into a destination at the target level. The first
// matching rule wins, in this order:
//
//  1. Friends content shared to Public prompts for confirmation
//     rather than blocking. Checked before the lattice rule, which
//     would otherwise shadow it.
//  2. A source level that cannot flow to the target is blocked.
//  3. The first attachment, in input order, whose level cannot flow
//     to the target is reported.
//  4. Every mentioned user missing from targetMembers is collected,
//     not just the first.
//  5. Otherwise the share is allowed.
//
// Pure: enforcement (refusing to send) is the caller's job.
func ValidateShare(source, target Level, mentioned, targetMembers []ref.UserID, attachments []Attachment) ShareValidation {
	if source == Friends && target == Public {
		return ShareValidation{
			Verdict: RequiresConfirmation,
			Warning: friendsToPublicWarning,
		}
	}

	if !source.CanShareTo(target) {
		return ShareValidation{
			Verdict: BlockedPrivacyLeak,
			Source:  source,
			Target:  target,
		}
	}

	for _, attachment := range attachments {
		if !attachment.Level.CanShareTo(target) {
			return ShareValidation{
				Verdict:         AttachmentPrivacyMismatch,
				AttachmentRoom:  attachment.Room,
				AttachmentLevel: attachment.Level,
			}
		}
	}

	members := make(map[ref.UserID]struct{}, len(targetMembers))
	for _, member := range targetMembers {
		members[member] = struct{}{}
	}
	var missing []ref.UserID
	for _, user := range mentioned {
		if _, ok := members[user]; !ok {
			missing = append(missing, user)
		}
	}
	if len(missing) > 0 {
		return ShareValidation{
			Verdict: MissingMentions,
			Missing: missing,
		}
	}

	return ShareValidation{Verdict: Allowed}
}

// ValidateQuote decides whether a reply that quotes content from
// another room leaks private context. Quoting from a more private
// room into a less private one prompts for confirmation; every other
// combination is allowed.
func ValidateQuote(original, reply Level) ShareValidation {
	if original > reply {
		return ShareValidation{
			Verdict: RequiresConfirmation,
			Warning: quoteWarning,
		}
	}
	return ShareValidation{Verdict: Allowed}
}
