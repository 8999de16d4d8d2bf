// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/commons-foundation/commons/lib/secret"
)

// blobVersion is the version byte prepended to every encrypted
// object. It rides in the AAD, so tampering with it fails
// authentication.
const blobVersion byte = 0x01

// blobOverhead is the byte overhead per encrypted object:
// 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const blobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoObject is the HKDF-SHA256 info string for per-object key
// derivation. Changing it invalidates every cached object.
var hkdfInfoObject = []byte("commons.media.object.v1")

// deriveObjectKey derives the encryption key for one object from the
// cache key and the object's content hash. The same content always
// derives the same key, so deduplicated objects stay byte-identical
// on disk.
//
// The cacheKey is borrowed and NOT closed. The returned buffer must
// be closed by the caller.
func deriveObjectKey(cacheKey *secret.Buffer, contentHash Hash) (*secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoObject)+len(contentHash))
	copy(info, hkdfInfoObject)
	copy(info[len(hkdfInfoObject):], contentHash[:])

	reader := hkdf.New(sha256.New, cacheKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// encryptObject encrypts an object payload with XChaCha20-Poly1305:
//
//	[Version: 1 byte] [Nonce: 24 bytes (random)] [Ciphertext+Tag]
//
// The version byte and content hash are the AAD, binding the
// ciphertext to its object address: moving an object file to another
// hash's path fails authentication.
func encryptObject(plaintext []byte, objectKey *secret.Buffer, contentHash Hash) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(objectKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	output := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	output[0] = blobVersion
	copy(output[1:], nonce[:])

	return aead.Seal(output, nonce[:], plaintext, buildAAD(blobVersion, contentHash)), nil
}

// decryptObject reverses encryptObject, authenticating against the
// version byte and content hash.
func decryptObject(blob []byte, objectKey *secret.Buffer, contentHash Hash) ([]byte, error) {
	if len(blob) < blobOverhead {
		return nil, fmt.Errorf("encrypted object is %d bytes, minimum is %d (version + nonce + tag)",
			len(blob), blobOverhead)
	}

	version := blob[0]
	if version != blobVersion {
		return nil, fmt.Errorf("encrypted object version %d is not supported (expected %d)", version, blobVersion)
	}

	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := blob[1+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(objectKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, buildAAD(version, contentHash))
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key, tampered data, or mismatched hash): %w", err)
	}
	return plaintext, nil
}

func buildAAD(version byte, contentHash Hash) []byte {
	aad := make([]byte, 1+len(contentHash))
	aad[0] = version
	copy(aad[1:], contentHash[:])
	return aad
}
