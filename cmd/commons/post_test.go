// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"testing"

	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/messaging"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		params  postParams
		args    []string
		wantErr bool
	}{
		{"text", postParams{}, []string{"hello"}, false},
		{"markdown text", postParams{Markdown: true}, []string{"**hi**"}, false},
		{"image", postParams{Image: "a.jpg"}, nil, false},
		{"video", postParams{Video: "a.mp4"}, nil, false},
		{"link", postParams{Link: "https://example.org"}, nil, false},
		{"quoted text", postParams{Quote: "$abc"}, []string{"look at this"}, false},
		{"nothing", postParams{}, nil, true},
		{"two media kinds", postParams{Image: "a.jpg", Video: "a.mp4"}, nil, true},
		{"text plus image", postParams{Image: "a.jpg"}, []string{"hello"}, true},
		{"markdown image", postParams{Image: "a.jpg", Markdown: true}, nil, true},
		{"quoted link", postParams{Link: "https://example.org", Quote: "$abc"}, nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := validatePayload(&test.params, test.args)
			if (err != nil) != test.wantErr {
				t.Errorf("validatePayload() error = %v, wantErr %v", err, test.wantErr)
			}
		})
	}
}

// fakeAliasSession resolves aliases from a fixed table; everything
// else panics via the embedded interface.
type fakeAliasSession struct {
	messaging.Session

	aliases map[string]ref.RoomID
}

func (f *fakeAliasSession) ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	if roomID, ok := f.aliases[alias.String()]; ok {
		return roomID, nil
	}
	return ref.RoomID{}, &messaging.MatrixError{Code: messaging.ErrCodeNotFound, Message: "not found", StatusCode: 404}
}

func TestParseRoomTarget(t *testing.T) {
	session := &fakeAliasSession{aliases: map[string]ref.RoomID{
		"#alice-public:commons.local": testRoom,
	}}

	got, err := parseRoomTarget(context.Background(), session, testRoom.String())
	if err != nil {
		t.Fatalf("room ID: %v", err)
	}
	if got != testRoom {
		t.Errorf("room ID resolved to %s, want %s", got, testRoom)
	}

	got, err = parseRoomTarget(context.Background(), session, "#alice-public:commons.local")
	if err != nil {
		t.Fatalf("alias: %v", err)
	}
	if got != testRoom {
		t.Errorf("alias resolved to %s, want %s", got, testRoom)
	}

	if _, err := parseRoomTarget(context.Background(), session, "#missing:commons.local"); err == nil {
		t.Error("unresolvable alias: want error")
	}
	if _, err := parseRoomTarget(context.Background(), session, "bogus"); err == nil {
		t.Error("malformed room: want error")
	}
}
