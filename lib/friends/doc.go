// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package friends implements the friend-request flow on top of
// friends-tier feed rooms.
//
// There is no dedicated friend-request event type. A friend request is
// a Matrix knock on the target's friends feed room, carrying the
// request message as the knock reason. The owner answers the knock
// with ordinary membership operations: invite to accept, kick to
// decline, ban to block. The relationship between two users is
// therefore fully derived from membership state and survives on the
// homeserver with no extra bookkeeping.
//
// Each user also has a friends space, a Matrix space room marked with
// an m.commons.friends state event. The space collects the friends
// feed rooms the user has joined as m.space.child entries, giving
// clients one place to enumerate a user's friends. SpaceCache holds
// the discovered or created space room ID; it is owned by the caller
// and carries no global state.
package friends
