// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/commons-foundation/commons/lib/ref"
)

// Hash is a 32-byte BLAKE3 digest. Content hashes address objects on
// disk; URI hashes name the ref files.
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation keeps content hashes and URI hashes from ever colliding
// even for identical input bytes.
type domainKey [32]byte

// Domain separation keys. Fixed constants; changing them orphans
// every existing cache entry. The byte values are the ASCII encoding
// of the domain name, zero-padded to 32 bytes, so the keys are
// readable in hex dumps.
var (
	contentDomainKey = domainKey{
		'c', 'o', 'm', 'm', 'o', 'n', 's', '.', 'm', 'e', 'd', 'i', 'a', '.',
		'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	uriDomainKey = domainKey{
		'c', 'o', 'm', 'm', 'o', 'n', 's', '.', 'm', 'e', 'd', 'i', 'a', '.',
		'u', 'r', 'i', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashContent computes the content-domain hash of media bytes. This
// is the object address and the deduplication key: the same image
// attached to two posts hashes to one object.
func HashContent(data []byte) Hash {
	return keyedHash(contentDomainKey, data)
}

// HashURI computes the URI-domain hash of an mxc URI. Ref files are
// named by this hash so directory listings do not reveal which media
// the user has viewed.
func HashURI(uri ref.MediaURI) Hash {
	return keyedHash(uriDomainKey, []byte(uri.String()))
}

// FormatHash returns the hex encoding of a hash, the form used in ref
// files and on-disk paths.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing media hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("media hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails for a wrong key length, which domainKey
	// rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("mediacache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
