// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package mediacache is the encrypted local cache for downloaded
// media: post images and video, gathering cover images, avatars.
// Entries are keyed by mxc URI and stored content-addressed, so the
// same bytes referenced from several posts occupy one object on disk.
//
// Layout under the cache root:
//
//	objects/xx/yy/<hash>  encrypted, compressed media objects
//	refs/xx/yy/<hash>     mxc URI → object mapping (hashed URI names)
//	tmp/                  staging for atomic rename-into-place
//
// Objects are encrypted at rest with XChaCha20-Poly1305 under a
// per-object key derived from the cache key, with the content hash as
// additional authenticated data. Media from a friends-only feed does
// not sit in plaintext in a cache directory that backup tools and
// other processes can read. The cache is not an integrity root: any
// entry that fails authentication or hash verification is dropped and
// the caller re-downloads.
package mediacache
