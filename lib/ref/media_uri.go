// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// mediaURIPrefix is the scheme prefix of a Matrix content URI.
const mediaURIPrefix = "mxc://"

// MediaURI is a validated Matrix content URI
// (e.g., "mxc://commons.local/GCmhgzMPRjqgpODLsNQzVuHZ").
//
// Media URIs are returned by the media upload endpoint and embedded in
// image posts, attachments, avatars, and link preview thumbnails. The
// format is "mxc://<server>/<mediaID>" where the media ID is a
// server-assigned opaque token. Commons validates the structure at the
// boundary and treats the media ID itself as opaque.
//
// MediaURI is an immutable value type. The zero value is not valid;
// use IsZero to check.
type MediaURI struct {
	uri string
}

// ParseMediaURI validates and wraps a raw Matrix content URI string.
// Returns an error if the string is empty, doesn't start with "mxc://",
// or is missing the server name or media ID.
func ParseMediaURI(raw string) (MediaURI, error) {
	if raw == "" {
		return MediaURI{}, fmt.Errorf("empty media URI")
	}
	if !strings.HasPrefix(raw, mediaURIPrefix) {
		return MediaURI{}, fmt.Errorf("media URI must start with %q: %q", mediaURIPrefix, raw)
	}
	rest := raw[len(mediaURIPrefix):]
	slashIndex := strings.IndexByte(rest, '/')
	if slashIndex < 0 {
		return MediaURI{}, fmt.Errorf("media URI missing '/<mediaID>' suffix: %q", raw)
	}
	server := rest[:slashIndex]
	mediaID := rest[slashIndex+1:]
	if err := validateServer(server); err != nil {
		return MediaURI{}, fmt.Errorf("media URI %q: %w", raw, err)
	}
	if err := validateSegment(mediaID, "media ID"); err != nil {
		return MediaURI{}, fmt.Errorf("media URI %q: %w", raw, err)
	}
	return MediaURI{uri: raw}, nil
}

// MustParseMediaURI is like ParseMediaURI but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseMediaURI(raw string) MediaURI {
	m, err := ParseMediaURI(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseMediaURI(%q): %v", raw, err))
	}
	return m
}

// String returns the full content URI string
// (e.g., "mxc://commons.local/GCmhgzMPRjqgpODLsNQzVuHZ").
func (m MediaURI) String() string { return m.uri }

// IsZero reports whether the MediaURI is the zero value (uninitialized).
func (m MediaURI) IsZero() bool { return m.uri == "" }

// Server returns the homeserver that stores the media. Panics if
// called on a zero-value MediaURI.
func (m MediaURI) Server() string {
	if m.uri == "" {
		panic("MediaURI.Server called on zero value")
	}
	rest := m.uri[len(mediaURIPrefix):]
	return rest[:strings.IndexByte(rest, '/')]
}

// MediaID returns the server-assigned opaque media identifier. Panics
// if called on a zero-value MediaURI.
func (m MediaURI) MediaID() string {
	if m.uri == "" {
		panic("MediaURI.MediaID called on zero value")
	}
	rest := m.uri[len(mediaURIPrefix):]
	return rest[strings.IndexByte(rest, '/')+1:]
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (m MediaURI) MarshalText() ([]byte, error) {
	if m.uri == "" {
		return []byte{}, nil
	}
	return []byte(m.uri), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and other
// text-based serialization formats. Validates the content URI format.
// An empty input produces the zero value (unset media URI).
func (m *MediaURI) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*m = MediaURI{}
		return nil
	}
	parsed, err := ParseMediaURI(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
