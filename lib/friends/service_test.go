// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package friends

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

var (
	alice      = ref.MustParseUserID("@alice:commons.local")
	bob        = ref.MustParseUserID("@bob:commons.local")
	aliceFeed  = ref.MustParseRoomID("!alice-friends:commons.local")
	bobFeed    = ref.MustParseRoomID("!bob-friends:commons.local")
	errMissing = &messaging.MatrixError{Code: messaging.ErrCodeNotFound, Message: "not found", StatusCode: 404}
)

type membershipCall struct {
	room   ref.RoomID
	user   ref.UserID
	reason string
}

// fakeSession implements the subset of messaging.Session the friends
// flow touches. The embedded interface panics on any other method.
type fakeSession struct {
	messaging.Session

	userID  ref.UserID
	aliases map[string]ref.RoomID

	// state maps "roomID/eventType/stateKey" to raw state content.
	state map[string]json.RawMessage

	// roomState is the full state list per room for GetRoomState.
	roomState map[ref.RoomID][]messaging.Event

	created []messaging.CreateRoomRequest
	rooms   []ref.RoomID

	knocks  []membershipCall
	invites []membershipCall
	kicks   []membershipCall
	bans    []membershipCall
	unbans  []membershipCall
	left    []ref.RoomID

	sentState []sentStateEvent
}

type sentStateEvent struct {
	room     ref.RoomID
	typ      ref.EventType
	stateKey string
	content  any
}

func stateKey(roomID ref.RoomID, eventType, key string) string {
	return roomID.String() + "/" + eventType + "/" + key
}

func (f *fakeSession) UserID() ref.UserID { return f.userID }

func (f *fakeSession) ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	if roomID, ok := f.aliases[alias.String()]; ok {
		return roomID, nil
	}
	return ref.RoomID{}, errMissing
}

func (f *fakeSession) KnockRoom(ctx context.Context, roomID ref.RoomID, reason string) (ref.RoomID, error) {
	f.knocks = append(f.knocks, membershipCall{room: roomID, reason: reason})
	return roomID, nil
}

func (f *fakeSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	f.left = append(f.left, roomID)
	return nil
}

func (f *fakeSession) GetRoomState(ctx context.Context, roomID ref.RoomID) ([]messaging.Event, error) {
	return f.roomState[roomID], nil
}

func (f *fakeSession) GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, key string) (json.RawMessage, error) {
	raw, ok := f.state[stateKey(roomID, eventType.String(), key)]
	if !ok {
		return nil, errMissing
	}
	return raw, nil
}

func (f *fakeSession) SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, key string, content any) (ref.EventID, error) {
	f.sentState = append(f.sentState, sentStateEvent{room: roomID, typ: eventType, stateKey: key, content: content})
	return ref.EventID{}, nil
}

func (f *fakeSession) InviteUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	f.invites = append(f.invites, membershipCall{room: roomID, user: userID})
	return nil
}

func (f *fakeSession) KickUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error {
	f.kicks = append(f.kicks, membershipCall{room: roomID, user: userID, reason: reason})
	return nil
}

func (f *fakeSession) BanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error {
	f.bans = append(f.bans, membershipCall{room: roomID, user: userID, reason: reason})
	return nil
}

func (f *fakeSession) UnbanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	f.unbans = append(f.unbans, membershipCall{room: roomID, user: userID})
	return nil
}

func (f *fakeSession) CreateRoom(ctx context.Context, request messaging.CreateRoomRequest) (*messaging.CreateRoomResponse, error) {
	f.created = append(f.created, request)
	roomID := ref.MustParseRoomID("!created-space:commons.local")
	return &messaging.CreateRoomResponse{RoomID: roomID}, nil
}

func (f *fakeSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	return f.rooms, nil
}

func memberEvent(userID ref.UserID, membership, reason string, ts int64) messaging.Event {
	key := userID.String()
	content := map[string]any{"membership": membership}
	if reason != "" {
		content["reason"] = reason
	}
	return messaging.Event{
		Type:           schema.MatrixEventTypeMember,
		StateKey:       &key,
		Sender:         userID,
		OriginServerTS: ts,
		Content:        content,
	}
}

func TestSendRequest(t *testing.T) {
	session := &fakeSession{
		userID: alice,
		aliases: map[string]ref.RoomID{
			"#bob_friends:commons.local": bobFeed,
		},
	}
	service := NewService(session, nil)

	roomID, err := service.SendRequest(context.Background(), bob, "met at the garden workday")
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if roomID != bobFeed {
		t.Errorf("SendRequest = %v, want %v", roomID, bobFeed)
	}
	if len(session.knocks) != 1 {
		t.Fatalf("expected 1 knock, got %d", len(session.knocks))
	}
	knock := session.knocks[0]
	if knock.room != bobFeed || knock.reason != "met at the garden workday" {
		t.Errorf("knock = %+v, want room %v with the request message", knock, bobFeed)
	}
}

func TestSendRequestNoFriendsFeed(t *testing.T) {
	session := &fakeSession{userID: alice}
	service := NewService(session, nil)

	if _, err := service.SendRequest(context.Background(), bob, ""); err == nil {
		t.Fatal("expected error when the target has no friends feed")
	}
	if len(session.knocks) != 0 {
		t.Errorf("must not knock without a feed, knocked %v", session.knocks)
	}
}

func TestCancelRequest(t *testing.T) {
	session := &fakeSession{
		userID: alice,
		aliases: map[string]ref.RoomID{
			"#bob_friends:commons.local": bobFeed,
		},
	}
	service := NewService(session, nil)

	if err := service.CancelRequest(context.Background(), bob); err != nil {
		t.Fatalf("CancelRequest: %v", err)
	}
	if len(session.left) != 1 || session.left[0] != bobFeed {
		t.Errorf("left = %v, want [%v]", session.left, bobFeed)
	}
}

func TestPendingRequests(t *testing.T) {
	carol := ref.MustParseUserID("@carol:commons.local")
	session := &fakeSession{
		userID: alice,
		roomState: map[ref.RoomID][]messaging.Event{
			aliceFeed: {
				memberEvent(alice, "join", "", 1000),
				memberEvent(bob, "knock", "garden neighbors", 3000),
				memberEvent(carol, "knock", "", 2000),
				memberEvent(ref.MustParseUserID("@dan:commons.local"), "leave", "", 4000),
			},
		},
	}
	service := NewService(session, nil)

	requests, err := service.PendingRequests(context.Background(), aliceFeed)
	if err != nil {
		t.Fatalf("PendingRequests: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("got %d requests, want 2: %+v", len(requests), requests)
	}

	// Oldest first: carol knocked before bob.
	if requests[0].Requester != carol {
		t.Errorf("requests[0].Requester = %v, want %v", requests[0].Requester, carol)
	}
	if requests[1].Requester != bob {
		t.Errorf("requests[1].Requester = %v, want %v", requests[1].Requester, bob)
	}
	if requests[1].Message != "garden neighbors" {
		t.Errorf("Message = %q, want the knock reason", requests[1].Message)
	}
	if want := time.UnixMilli(3000); !requests[1].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", requests[1].Timestamp, want)
	}
	if requests[0].Room != aliceFeed {
		t.Errorf("Room = %v, want %v", requests[0].Room, aliceFeed)
	}
}

func TestAcceptDeclineBlockUnblock(t *testing.T) {
	session := &fakeSession{userID: alice}
	service := NewService(session, nil)
	ctx := context.Background()

	if err := service.Accept(ctx, aliceFeed, bob); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(session.invites) != 1 || session.invites[0].user != bob {
		t.Errorf("invites = %+v, want bob invited", session.invites)
	}

	if err := service.Decline(ctx, aliceFeed, bob, "not now"); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if len(session.kicks) != 1 || session.kicks[0].reason != "not now" {
		t.Errorf("kicks = %+v, want bob kicked with reason", session.kicks)
	}

	if err := service.Block(ctx, aliceFeed, bob, "spam"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if len(session.bans) != 1 || session.bans[0].user != bob {
		t.Errorf("bans = %+v, want bob banned", session.bans)
	}

	if err := service.Unblock(ctx, aliceFeed, bob); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if len(session.unbans) != 1 || session.unbans[0].user != bob {
		t.Errorf("unbans = %+v, want bob unbanned", session.unbans)
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		name  string
		state map[string]json.RawMessage
		want  RequestState
	}{
		{
			name: "incoming knock",
			state: map[string]json.RawMessage{
				stateKey(aliceFeed, schema.MatrixEventTypeMember, bob.String()): json.RawMessage(`{"membership": "knock", "reason": "hi"}`),
			},
			want: StatePendingIncoming,
		},
		{
			name: "outgoing knock",
			state: map[string]json.RawMessage{
				stateKey(bobFeed, schema.MatrixEventTypeMember, alice.String()): json.RawMessage(`{"membership": "knock"}`),
			},
			want: StatePendingOutgoing,
		},
		{
			name: "friends after join",
			state: map[string]json.RawMessage{
				stateKey(aliceFeed, schema.MatrixEventTypeMember, bob.String()): json.RawMessage(`{"membership": "join", "displayname": "Bob"}`),
			},
			want: StateFriends,
		},
		{
			name: "blocked",
			state: map[string]json.RawMessage{
				stateKey(aliceFeed, schema.MatrixEventTypeMember, bob.String()): json.RawMessage(`{"membership": "ban"}`),
			},
			want: StateBlocked,
		},
		{
			name:  "no relation",
			state: map[string]json.RawMessage{},
			want:  StateNone,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			session := &fakeSession{
				userID: alice,
				aliases: map[string]ref.RoomID{
					"#bob_friends:commons.local": bobFeed,
				},
				state: test.state,
			}
			service := NewService(session, nil)

			got, err := service.State(context.Background(), aliceFeed, bob)
			if err != nil {
				t.Fatalf("State: %v", err)
			}
			if got != test.want {
				t.Errorf("State = %v, want %v", got, test.want)
			}
		})
	}
}

func TestStateTargetWithoutFeed(t *testing.T) {
	// The target's friends feed alias does not resolve; only the
	// incoming direction is visible.
	session := &fakeSession{
		userID: alice,
		state: map[string]json.RawMessage{
			stateKey(aliceFeed, schema.MatrixEventTypeMember, bob.String()): json.RawMessage(`{"membership": "knock"}`),
		},
	}
	service := NewService(session, nil)

	got, err := service.State(context.Background(), aliceFeed, bob)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got != StatePendingIncoming {
		t.Errorf("State = %v, want StatePendingIncoming", got)
	}
}
