// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/commons-foundation/commons/lib/feed"
	"github.com/commons-foundation/commons/lib/feedroom"
	"github.com/commons-foundation/commons/lib/feedstore"
	"github.com/commons-foundation/commons/lib/post"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/rsvp"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/lib/service"
	"github.com/commons-foundation/commons/messaging"
)

// backfillPageSize is how many events one gap-healing fetch requests.
// A limited timeline window holds at most 10 events (the sync filter's
// limit), so one page covers all but pathological gaps.
const backfillPageSize = 50

// Ingestor folds /sync responses into the feed store. Only rooms
// carrying a valid m.commons.feed marker are cached; gathering rooms
// and the friends space pass through the same sync stream but their
// timelines are ignored.
//
// HandleSync is called from the sync loop goroutine only. The ingestor
// is not safe for concurrent use.
type Ingestor struct {
	store   *feedstore.Store
	session messaging.Session
	userID  ref.UserID
	logger  *slog.Logger

	// feeds tracks the known feed rooms, built from m.commons.feed
	// state as it arrives.
	feeds map[ref.RoomID]feedroom.Feed
}

func newIngestor(store *feedstore.Store, session messaging.Session, userID ref.UserID, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:   store,
		session: session,
		userID:  userID,
		logger:  logger,
		feeds:   make(map[ref.RoomID]feedroom.Feed),
	}
}

// FeedRoomCount returns the number of feed rooms discovered so far.
func (i *Ingestor) FeedRoomCount() int {
	return len(i.feeds)
}

// HandleSync processes one /sync response: accepts invites, applies
// room state, ingests timelines of feed rooms, and purges the cache
// for feed rooms the user has left.
func (i *Ingestor) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	if len(response.Rooms.Invite) > 0 {
		service.AcceptInvites(ctx, i.session, response.Rooms.Invite, i.logger)
	}

	for roomID, room := range response.Rooms.Join {
		// State first: a feed marker arriving in the same response as
		// the room's first posts must admit those posts.
		i.applyState(roomID, room.State.Events)
		if _, isFeed := i.feeds[roomID]; !isFeed {
			continue
		}
		i.ingestTimeline(ctx, roomID, room.Timeline)
	}

	for roomID := range response.Rooms.Leave {
		feedInfo, tracked := i.feeds[roomID]
		if !tracked {
			continue
		}
		delete(i.feeds, roomID)
		removed, err := i.store.DeleteRoom(ctx, roomID)
		if err != nil {
			i.logger.Error("purging left feed room", "room_id", roomID, "error", err)
			continue
		}
		i.logger.Info("left feed room, cache purged",
			"room_id", roomID,
			"owner", feedInfo.Owner,
			"removed_posts", removed,
		)
	}
}

// applyState records feed markers and checks per-user state records
// for spoofing. Unrecognized state types are ignored.
func (i *Ingestor) applyState(roomID ref.RoomID, events []messaging.Event) {
	for _, event := range events {
		switch event.Type {
		case schema.EventTypeFeed:
			i.applyFeedMarker(roomID, event)
		case schema.EventTypeRsvp:
			i.checkRecordOwnership(roomID, event)
		}
	}
}

// applyFeedMarker parses an m.commons.feed state event and registers
// the room as a feed. A malformed marker is logged and skipped so one
// bad room cannot stop ingestion for the rest.
func (i *Ingestor) applyFeedMarker(roomID ref.RoomID, event messaging.Event) {
	raw, err := json.Marshal(event.Content)
	if err != nil {
		i.logger.Warn("skipping room with malformed feed marker", "room_id", roomID, "error", err)
		return
	}
	content, err := schema.ParseFeedContent(raw)
	if err != nil {
		i.logger.Warn("skipping room with malformed feed marker", "room_id", roomID, "error", err)
		return
	}
	owner, err := ref.ParseUserID(content.Owner)
	if err != nil {
		i.logger.Warn("skipping room with malformed feed marker", "room_id", roomID, "error", err)
		return
	}
	tier, err := feedroom.ParseTier(content.Tier)
	if err != nil {
		i.logger.Warn("skipping room with malformed feed marker", "room_id", roomID, "error", err)
		return
	}

	if _, known := i.feeds[roomID]; !known {
		i.logger.Info("tracking feed room", "room_id", roomID, "owner", owner, "tier", tier.String())
	}
	i.feeds[roomID] = feedroom.Feed{Room: roomID, Owner: owner, Tier: tier}
}

// checkRecordOwnership runs the ownership check on a per-user state
// record passing through sync. The daemon stores no RSVPs; the check
// exists so spoofing attempts surface in the log the moment they
// happen, not only when someone lists attendance.
func (i *Ingestor) checkRecordOwnership(roomID ref.RoomID, event messaging.Event) {
	stateKey := ""
	if event.StateKey != nil {
		stateKey = *event.StateKey
	}
	validation := rsvp.ValidateOwnership(stateKey, event.Sender)
	switch validation.Outcome {
	case rsvp.SenderMismatch:
		i.logger.Warn("rejected spoofed per-user record",
			"room_id", roomID,
			"event_type", event.Type,
			"claimed", validation.Claimed,
			"actual", validation.Actual,
		)
	case rsvp.InvalidContent:
		i.logger.Warn("rejected malformed per-user record",
			"room_id", roomID,
			"event_type", event.Type,
			"reason", validation.Reason,
		)
	}
}

// ingestTimeline applies a room's timeline events to the store. When
// the homeserver truncated the window (limited), the gap is healed by
// fetching the missed events before applying the window itself.
func (i *Ingestor) ingestTimeline(ctx context.Context, roomID ref.RoomID, timeline messaging.TimelineSection) {
	if timeline.Limited && timeline.PrevBatch != "" {
		i.backfill(ctx, roomID, timeline.PrevBatch)
	}
	for _, event := range timeline.Events {
		i.ingestEvent(ctx, roomID, event)
	}
}

// backfill fetches one page of history backward from the gap and
// ingests it. Upserts are idempotent, so overlap with already-cached
// events is harmless.
func (i *Ingestor) backfill(ctx context.Context, roomID ref.RoomID, from string) {
	response, err := i.session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
		From:      from,
		Direction: "b",
		Limit:     backfillPageSize,
	})
	if err != nil {
		i.logger.Warn("backfill failed", "room_id", roomID, "error", err)
		return
	}
	for _, event := range response.Chunk {
		i.ingestEvent(ctx, roomID, event)
	}
	i.logger.Info("backfilled timeline gap", "room_id", roomID, "events", len(response.Chunk))
}

// ingestEvent dispatches one timeline event to the store.
func (i *Ingestor) ingestEvent(ctx context.Context, roomID ref.RoomID, event messaging.Event) {
	switch event.Type {
	case schema.MatrixEventTypeMessage:
		i.ingestMessage(ctx, roomID, event)
	case schema.MatrixEventTypeReaction:
		i.ingestReaction(ctx, roomID, event)
	case schema.MatrixEventTypeRedaction:
		i.ingestRedaction(ctx, event)
	}
}

// ingestMessage stores a message event as a comment when it carries a
// thread relation, as a post otherwise. Messages that are neither
// (unknown msgtypes, notices) are skipped.
func (i *Ingestor) ingestMessage(ctx context.Context, roomID ref.RoomID, event messaging.Event) {
	if postID, isComment := post.ThreadParent(event.Content); isComment {
		if err := i.store.UpsertComment(ctx, roomID, event.EventID, postID); err != nil {
			i.logger.Error("caching comment", "room_id", roomID, "event_id", event.EventID, "error", err)
		}
		return
	}

	content, err := post.ParseMessage(event.Content)
	if err != nil {
		i.logger.Debug("skipping non-post message",
			"room_id", roomID,
			"event_id", event.EventID,
			"reason", err,
		)
		return
	}
	item := feed.Item{
		SourceRoom: roomID,
		ItemID:     event.EventID,
		Author:     event.Sender,
		Timestamp:  event.OriginServerTS,
		Content:    content,
	}
	if err := i.store.UpsertPost(ctx, item); err != nil {
		i.logger.Error("caching post", "room_id", roomID, "event_id", event.EventID, "error", err)
	}
}

func (i *Ingestor) ingestReaction(ctx context.Context, roomID ref.RoomID, event messaging.Event) {
	postID, key, ok := post.AnnotationTarget(event.Content)
	if !ok {
		i.logger.Debug("skipping malformed reaction", "room_id", roomID, "event_id", event.EventID)
		return
	}
	if err := i.store.UpsertReaction(ctx, roomID, event.EventID, postID, key, event.Sender); err != nil {
		i.logger.Error("caching reaction", "room_id", roomID, "event_id", event.EventID, "error", err)
	}
}

func (i *Ingestor) ingestRedaction(ctx context.Context, event messaging.Event) {
	target := event.RedactsEvent()
	if target.IsZero() {
		return
	}
	deleted, err := i.store.DeleteEvent(ctx, target)
	if err != nil {
		i.logger.Error("applying redaction", "target", target, "error", err)
		return
	}
	if deleted != feedstore.DeletedNothing {
		i.logger.Debug("applied redaction", "target", target, "kind", string(deleted))
	}
}
