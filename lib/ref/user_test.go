// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"strings"
	"testing"
)

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantLocalpart string
		wantServer    string
		wantErr       string
	}{
		{
			name:          "valid simple",
			input:         "@alice:commons.local",
			wantLocalpart: "alice",
			wantServer:    "commons.local",
		},
		{
			name:          "valid remote account",
			input:         "@bob:example.com",
			wantLocalpart: "bob",
			wantServer:    "example.com",
		},
		{
			name:          "valid with port in server",
			input:         "@carol:localhost:6167",
			wantLocalpart: "carol",
			wantServer:    "localhost:6167",
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: "must start with @",
		},
		{
			name:    "missing at prefix",
			input:   "alice:commons.local",
			wantErr: "must start with @",
		},
		{
			name:    "room alias sigil",
			input:   "#alice:commons.local",
			wantErr: "must start with @",
		},
		{
			name:    "missing server",
			input:   "@alice",
			wantErr: "missing :server",
		},
		{
			name:    "empty localpart",
			input:   "@:commons.local",
			wantErr: "empty localpart",
		},
		{
			name:    "empty server",
			input:   "@alice:",
			wantErr: "empty server",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			userID, err := ParseUserID(test.input)
			if test.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseUserID(%q) succeeded, want error containing %q", test.input, test.wantErr)
				}
				if !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("ParseUserID(%q) error = %q, want error containing %q", test.input, err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUserID(%q) unexpected error: %v", test.input, err)
			}
			if userID.String() != test.input {
				t.Errorf("String() = %q, want %q", userID.String(), test.input)
			}
			if got := userID.Localpart(); got != test.wantLocalpart {
				t.Errorf("Localpart() = %q, want %q", got, test.wantLocalpart)
			}
			if got := userID.Server(); got != test.wantServer {
				t.Errorf("Server() = %q, want %q", got, test.wantServer)
			}
		})
	}
}

func TestUserIDZeroValuePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Localpart() on zero value did not panic")
		}
	}()
	var zero UserID
	zero.Localpart()
}

func TestUserIDServerName(t *testing.T) {
	userID := MustParseUserID("@alice:commons.local")
	server := userID.ServerName()
	if server.String() != "commons.local" {
		t.Errorf("ServerName() = %q, want %q", server, "commons.local")
	}
}

func TestMatrixUserID(t *testing.T) {
	server := MustParseServerName("commons.local")
	userID := MatrixUserID("alice", server)
	if userID.String() != "@alice:commons.local" {
		t.Errorf("MatrixUserID = %q, want %q", userID, "@alice:commons.local")
	}
}

func TestServerFromUserID(t *testing.T) {
	server, err := ServerFromUserID("@alice:commons.local")
	if err != nil {
		t.Fatalf("ServerFromUserID failed: %v", err)
	}
	if server.String() != "commons.local" {
		t.Errorf("ServerFromUserID = %q, want %q", server, "commons.local")
	}

	if _, err := ServerFromUserID("not-a-user-id"); err == nil {
		t.Error("ServerFromUserID accepted invalid input")
	}
}

func TestValidateLocalpart(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:  "valid simple",
			input: "alice",
		},
		{
			name:  "valid with separators",
			input: "alice.b-2_x",
		},
		{
			name:    "empty",
			input:   "",
			wantErr: "empty",
		},
		{
			name:    "uppercase",
			input:   "Alice",
			wantErr: "invalid character",
		},
		{
			name:    "space",
			input:   "alice smith",
			wantErr: "invalid character",
		},
		{
			name:    "slash",
			input:   "alice/feed",
			wantErr: "must not contain '/'",
		},
		{
			name:    "too long",
			input:   strings.Repeat("a", maxLocalpartLength+1),
			wantErr: "maximum",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidateLocalpart(test.input)
			if test.wantErr != "" {
				if err == nil {
					t.Fatalf("ValidateLocalpart(%q) succeeded, want error containing %q", test.input, test.wantErr)
				}
				if !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("ValidateLocalpart(%q) error = %q, want error containing %q", test.input, err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateLocalpart(%q) unexpected error: %v", test.input, err)
			}
		})
	}
}
