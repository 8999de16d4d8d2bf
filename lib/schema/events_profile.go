// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/commons-foundation/commons/lib/ref"
)

// ProfileContent is the content of an EventTypeProfile state event.
// All fields are optional; an empty profile is valid. The owner is
// declared by the state key; homeservers require @-prefixed state keys
// to match the sender, so a profile cannot be written for someone
// else.
type ProfileContent struct {
	// Bio is free-form self-description text.
	Bio string `json:"bio,omitempty"`

	// Location is free-form location text ("Berlin", "on tour").
	Location string `json:"location,omitempty"`

	// Website is an http or https URL.
	Website string `json:"website,omitempty"`

	// CoverImage is an mxc URI for the profile banner image.
	CoverImage string `json:"cover_image,omitempty"`

	// Custom carries client-defined extension fields. The values are
	// opaque to Commons and passed through untouched. This is the only
	// open extension point in the strict content schemas.
	Custom map[string]json.RawMessage `json:"custom,omitempty"`
}

// Validate checks that set fields are well-formed. Returns an error
// describing the first invalid field found, or nil if the content is
// valid.
func (p *ProfileContent) Validate() error {
	if p.Website != "" {
		parsed, err := url.Parse(p.Website)
		if err != nil {
			return fmt.Errorf("profile content: website: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("profile content: website must be http or https, got %q", p.Website)
		}
		if parsed.Host == "" {
			return fmt.Errorf("profile content: website %q has no host", p.Website)
		}
	}
	if p.CoverImage != "" {
		if _, err := ref.ParseMediaURI(p.CoverImage); err != nil {
			return fmt.Errorf("profile content: cover_image: %w", err)
		}
	}
	return nil
}

// ParseProfileContent decodes and validates raw EventTypeProfile state
// event content. Unknown top-level fields are rejected; fields under
// "custom" are not inspected.
func ParseProfileContent(raw json.RawMessage) (ProfileContent, error) {
	var content ProfileContent
	if err := DecodeStrict(raw, &content); err != nil {
		return ProfileContent{}, fmt.Errorf("profile content: %w", err)
	}
	if err := content.Validate(); err != nil {
		return ProfileContent{}, err
	}
	return content, nil
}
