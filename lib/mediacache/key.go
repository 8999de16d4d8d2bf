// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/commons-foundation/commons/lib/secret"
)

// KeySize is the size in bytes of the cache encryption key.
const KeySize = 32

// LoadOrCreateKey loads the cache encryption key from path, or
// generates and saves a new one on first use. The key file is written
// 0600 in a 0700 directory. Returns the key in guarded memory and
// whether it was newly generated; the caller (normally Open via
// Config) takes ownership of the buffer.
func LoadOrCreateKey(path string) (*secret.Buffer, bool, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		if len(raw) != KeySize {
			secret.Zero(raw)
			return nil, false, fmt.Errorf("media cache key %s is %d bytes, want %d", path, len(raw), KeySize)
		}
		buffer, err := secret.NewFromBytes(raw)
		if err != nil {
			return nil, false, fmt.Errorf("guarding media cache key: %w", err)
		}
		return buffer, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("reading media cache key: %w", err)
	}

	fresh := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, fresh); err != nil {
		return nil, false, fmt.Errorf("generating media cache key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		secret.Zero(fresh)
		return nil, false, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, fresh, 0o600); err != nil {
		secret.Zero(fresh)
		return nil, false, fmt.Errorf("writing media cache key: %w", err)
	}

	// NewFromBytes copies into guarded memory and zeros the heap
	// slice.
	buffer, err := secret.NewFromBytes(fresh)
	if err != nil {
		return nil, false, fmt.Errorf("guarding media cache key: %w", err)
	}
	return buffer, true, nil
}
