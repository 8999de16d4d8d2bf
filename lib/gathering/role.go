// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package gathering

import "github.com/commons-foundation/commons/lib/schema"

// Role is a member's standing in a gathering room, derived from power
// level.
type Role int

const (
	// RoleGuest chats, reacts, and submits their own RSVP.
	RoleGuest Role = iota

	// RoleCoHost edits gathering details, invites, kicks, bans, and
	// redacts.
	RoleCoHost

	// RoleCreator has full control, including power levels and room
	// metadata.
	RoleCreator
)

// String returns a short lowercase name for the role.
func (r Role) String() string {
	switch r {
	case RoleCoHost:
		return "co-host"
	case RoleCreator:
		return "creator"
	default:
		return "guest"
	}
}

// PowerLevel returns the Matrix power level for the role.
func (r Role) PowerLevel() int {
	switch r {
	case RoleCoHost:
		return schema.PowerLevelCoHost
	case RoleCreator:
		return schema.PowerLevelCreator
	default:
		return schema.PowerLevelGuest
	}
}

// RoleForLevel classifies a power level into a role. Levels between
// the tiers round down: 75 is a co-host, 30 is a guest.
func RoleForLevel(level int) Role {
	switch {
	case level >= schema.PowerLevelCreator:
		return RoleCreator
	case level >= schema.PowerLevelCoHost:
		return RoleCoHost
	default:
		return RoleGuest
	}
}
