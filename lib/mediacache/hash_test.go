// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"strings"
	"testing"

	"github.com/commons-foundation/commons/lib/ref"
)

func TestHashDomainsAreDistinct(t *testing.T) {
	// The same bytes must hash differently as content and as a URI,
	// or a crafted media ID could collide with cached content.
	input := "mxc://commons.local/abcDEF123"

	contentHash := HashContent([]byte(input))
	uriHash := HashURI(ref.MustParseMediaURI(input))

	if contentHash == uriHash {
		t.Error("content and URI domains produced the same hash for identical bytes")
	}
}

func TestHashContentDeterministic(t *testing.T) {
	data := []byte("a cached thumbnail")
	if HashContent(data) != HashContent(data) {
		t.Error("HashContent produced different results for the same input")
	}
	if HashContent(data) == HashContent([]byte("a cached thumbnai1")) {
		t.Error("HashContent collided on different inputs")
	}
}

func TestHashURIDeterministic(t *testing.T) {
	uri := ref.MustParseMediaURI("mxc://commons.local/GCmhgzMPRjqgpODLsNQzVuHZ")
	other := ref.MustParseMediaURI("mxc://commons.local/GCmhgzMPRjqgpODLsNQzVuHa")

	if HashURI(uri) != HashURI(uri) {
		t.Error("HashURI produced different results for the same URI")
	}
	if HashURI(uri) == HashURI(other) {
		t.Error("HashURI collided on different URIs")
	}
}

func TestFormatParseHashRoundTrip(t *testing.T) {
	original := HashContent([]byte("round trip me"))

	formatted := FormatHash(original)
	if len(formatted) != 64 {
		t.Errorf("FormatHash length = %d, want 64", len(formatted))
	}
	if formatted != strings.ToLower(formatted) {
		t.Errorf("FormatHash is not lowercase: %q", formatted)
	}

	parsed, err := ParseHash(formatted)
	if err != nil {
		t.Fatalf("ParseHash failed: %v", err)
	}
	if parsed != original {
		t.Error("parsed hash does not match original")
	}
}

func TestParseHashRejectsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "a3f9"},
		{"too long", strings.Repeat("ab", 33)},
		{"not hex", strings.Repeat("zz", 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseHash(tc.input); err == nil {
				t.Errorf("ParseHash(%q) succeeded, want error", tc.input)
			}
		})
	}
}
