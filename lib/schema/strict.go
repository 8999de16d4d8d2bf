// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeStrict unmarshals JSON into target, rejecting unknown fields
// and trailing data. Commons content payloads carry privacy-relevant
// fields (visibility, owner, tier), and an unexpected extra field in
// such a payload is a schema violation, not an extension point: it is
// reported as an error instead of being silently dropped.
func DecodeStrict(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if err := checkTrailing(decoder); err != nil {
		return err
	}
	return nil
}

// checkTrailing verifies the decoder consumed the entire input. A JSON
// document followed by more tokens ("{}{}") decodes cleanly but is not
// a single content payload.
func checkTrailing(decoder *json.Decoder) error {
	if _, err := decoder.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}
