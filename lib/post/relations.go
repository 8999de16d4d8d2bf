// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package post

import (
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
)

// ThreadParent extracts the thread root from a message's m.relates_to,
// reporting whether the message is a comment. Used when classifying
// raw timeline events: a message with a thread relation is a comment
// on the parent, not a post of its own.
func ThreadParent(content map[string]any) (ref.EventID, bool) {
	relates, ok := content["m.relates_to"].(map[string]any)
	if !ok {
		return ref.EventID{}, false
	}
	if relType, _ := relates["rel_type"].(string); relType != schema.RelThread {
		return ref.EventID{}, false
	}
	raw, _ := relates["event_id"].(string)
	parent, err := ref.ParseEventID(raw)
	if err != nil {
		return ref.EventID{}, false
	}
	return parent, true
}

// AnnotationTarget extracts the reacted-to event and emoji key from an
// m.reaction content body. Malformed annotations (missing relation,
// wrong rel_type, unparseable target, empty key) report false.
func AnnotationTarget(content map[string]any) (ref.EventID, string, bool) {
	relates, ok := content["m.relates_to"].(map[string]any)
	if !ok {
		return ref.EventID{}, "", false
	}
	if relType, _ := relates["rel_type"].(string); relType != schema.RelAnnotation {
		return ref.EventID{}, "", false
	}
	raw, _ := relates["event_id"].(string)
	target, err := ref.ParseEventID(raw)
	if err != nil {
		return ref.EventID{}, "", false
	}
	key, _ := relates["key"].(string)
	if key == "" {
		return ref.EventID{}, "", false
	}
	return target, key, true
}
