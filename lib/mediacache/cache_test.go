// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/commons-foundation/commons/lib/ref"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(Config{
		Root: filepath.Join(t.TempDir(), "media"),
		Key:  newTestCacheKey(t),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

// randomMedia returns incompressible bytes so the cache stores them
// uncompressed and object sizes stay predictable.
func randomMedia(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("generating media bytes: %v", err)
	}
	return data
}

func testURI(sequence int) ref.MediaURI {
	return ref.MustParseMediaURI(fmt.Sprintf("mxc://commons.local/media%04d", sequence))
}

func TestOpenValidatesConfig(t *testing.T) {
	if _, err := Open(Config{Key: newTestCacheKey(t)}); err == nil {
		t.Error("Open accepted a config without Root")
	}
	if _, err := Open(Config{Root: t.TempDir()}); err == nil {
		t.Error("Open accepted a config without Key")
	}
}

func TestOpenCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "media")
	cache, err := Open(Config{Root: root, Key: newTestCacheKey(t)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cache.Close()

	for _, dir := range []string{objectDir, refDir, tmpDir} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil {
			t.Errorf("directory %s does not exist: %v", dir, err)
		} else if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(1)
	media := randomMedia(t, 2048)

	if err := cache.Put(uri, media, "image/jpeg"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, contentType, err := cache.Get(uri)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(data, media) {
		t.Error("retrieved media does not match original")
	}
	if contentType != "image/jpeg" {
		t.Errorf("content type = %q, want %q", contentType, "image/jpeg")
	}
}

func TestPutGetCompressible(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(2)
	media := bytes.Repeat([]byte("<p>a very repetitive page</p>\n"), 200)

	if err := cache.Put(uri, media, "text/html"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, contentType, err := cache.Get(uri)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(data, media) {
		t.Error("retrieved media does not match original")
	}
	if contentType != "text/html" {
		t.Errorf("content type = %q, want %q", contentType, "text/html")
	}

	// Compressible content is stored smaller than its plaintext.
	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalBytes >= int64(len(media)) {
		t.Errorf("stored size = %d, want < %d", stats.TotalBytes, len(media))
	}
}

func TestPutRejectsInvalid(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Put(ref.MediaURI{}, []byte("data"), "text/plain"); err == nil {
		t.Error("Put accepted a zero URI")
	}
	if err := cache.Put(testURI(3), nil, "text/plain"); err == nil {
		t.Error("Put accepted empty content")
	}
}

func TestGetMissIsNotExist(t *testing.T) {
	cache := newTestCache(t)

	_, _, err := cache.Get(testURI(4))
	if err == nil {
		t.Fatal("Get succeeded on an empty cache")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("cache miss error is not fs.ErrNotExist: %v", err)
	}
}

func TestHasAndDelete(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(5)

	if cache.Has(uri) {
		t.Error("Has reported true before Put")
	}
	if err := cache.Put(uri, randomMedia(t, 256), "image/png"); err != nil {
		t.Fatal(err)
	}
	if !cache.Has(uri) {
		t.Error("Has reported false after Put")
	}

	if err := cache.Delete(uri); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if cache.Has(uri) {
		t.Error("Has reported true after Delete")
	}
	if _, _, err := cache.Get(uri); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Get after Delete = %v, want fs.ErrNotExist", err)
	}

	// Deleting a missing URI is not an error.
	if err := cache.Delete(uri); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}

	// The object survives until Prune decides it is unreferenced.
	stats, err := cache.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Objects != 1 {
		t.Errorf("objects after Delete = %d, want 1", stats.Objects)
	}
	if stats.Refs != 0 {
		t.Errorf("refs after Delete = %d, want 0", stats.Refs)
	}
}

func TestPutDeduplicatesContent(t *testing.T) {
	cache := newTestCache(t)
	media := randomMedia(t, 1024)
	first := testURI(6)
	second := testURI(7)

	if err := cache.Put(first, media, "image/png"); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(second, media, "image/png"); err != nil {
		t.Fatal(err)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Objects != 1 {
		t.Errorf("objects = %d, want 1 (same content under two URIs)", stats.Objects)
	}
	if stats.Refs != 2 {
		t.Errorf("refs = %d, want 2", stats.Refs)
	}

	for _, uri := range []ref.MediaURI{first, second} {
		data, _, err := cache.Get(uri)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", uri, err)
		}
		if !bytes.Equal(data, media) {
			t.Errorf("Get(%s) returned wrong content", uri)
		}
	}
}

func TestPutSameURIIsIdempotent(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(8)
	media := randomMedia(t, 512)

	if err := cache.Put(uri, media, "image/webp"); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(uri, media, "image/webp"); err != nil {
		t.Fatalf("repeated Put failed: %v", err)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Objects != 1 || stats.Refs != 1 {
		t.Errorf("objects = %d refs = %d after repeated Put, want 1 and 1",
			stats.Objects, stats.Refs)
	}
}

func TestGetDropsCorruptObject(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(9)
	media := randomMedia(t, 512)

	if err := cache.Put(uri, media, "image/gif"); err != nil {
		t.Fatal(err)
	}

	// Flip a ciphertext byte on disk.
	objectPath := cache.objectPath(HashContent(media))
	blob, err := os.ReadFile(objectPath)
	if err != nil {
		t.Fatal(err)
	}
	blob[len(blob)-1] ^= 0x01
	if err := os.WriteFile(objectPath, blob, 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err = cache.Get(uri)
	if err == nil {
		t.Fatal("Get succeeded on a corrupt object")
	}
	if errors.Is(err, fs.ErrNotExist) {
		t.Error("corruption reported as a plain miss")
	}

	// The entry is gone; the next lookup is a plain miss and a
	// re-download can fill the slot.
	if _, _, err := cache.Get(uri); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Get after corruption drop = %v, want fs.ErrNotExist", err)
	}
	if err := cache.Put(uri, media, "image/gif"); err != nil {
		t.Fatalf("re-Put after corruption drop failed: %v", err)
	}
	if _, _, err := cache.Get(uri); err != nil {
		t.Errorf("Get after re-Put failed: %v", err)
	}
}

func TestPruneRemovesOrphanObjects(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(10)

	if err := cache.Put(uri, randomMedia(t, 256), "image/png"); err != nil {
		t.Fatal(err)
	}
	if err := cache.Delete(uri); err != nil {
		t.Fatal(err)
	}

	result, err := cache.Prune(0)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if result.RemovedObjects != 1 {
		t.Errorf("RemovedObjects = %d, want 1", result.RemovedObjects)
	}
	if result.FreedBytes <= 0 {
		t.Errorf("FreedBytes = %d, want > 0", result.FreedBytes)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Objects != 0 {
		t.Errorf("objects after Prune = %d, want 0", stats.Objects)
	}
}

func TestPruneEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newTestCache(t)

	uris := []ref.MediaURI{testURI(11), testURI(12), testURI(13)}
	medias := make([][]byte, len(uris))
	for i, uri := range uris {
		medias[i] = randomMedia(t, 1024)
		if err := cache.Put(uri, medias[i], "image/png"); err != nil {
			t.Fatal(err)
		}
	}

	// Pin access times so uris[0] is the coldest entry.
	base := time.Now().Add(-3 * time.Hour)
	for i, media := range medias {
		mtime := base.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(cache.objectPath(HashContent(media)), mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatal(err)
	}

	// A budget one byte under the total evicts exactly the coldest
	// object.
	result, err := cache.Prune(stats.TotalBytes - 1)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if result.RemovedObjects != 1 {
		t.Errorf("RemovedObjects = %d, want 1", result.RemovedObjects)
	}
	if result.RemovedRefs != 1 {
		t.Errorf("RemovedRefs = %d, want 1", result.RemovedRefs)
	}

	if cache.Has(uris[0]) {
		t.Error("coldest entry survived eviction")
	}
	for _, uri := range uris[1:] {
		if _, _, err := cache.Get(uri); err != nil {
			t.Errorf("Get(%s) after eviction failed: %v", uri, err)
		}
	}
}

func TestPruneRemovesDanglingRefs(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(14)
	media := randomMedia(t, 256)

	if err := cache.Put(uri, media, "image/png"); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(cache.objectPath(HashContent(media))); err != nil {
		t.Fatal(err)
	}

	result, err := cache.Prune(0)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if result.RemovedRefs != 1 {
		t.Errorf("RemovedRefs = %d, want 1", result.RemovedRefs)
	}
	if cache.Has(uri) {
		t.Error("Has reported true for a dangling ref after Prune")
	}
}

func TestPruneKeepsHealthyEntries(t *testing.T) {
	cache := newTestCache(t)
	uri := testURI(15)
	media := randomMedia(t, 256)

	if err := cache.Put(uri, media, "image/png"); err != nil {
		t.Fatal(err)
	}

	result, err := cache.Prune(1 << 20)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if result.RemovedObjects != 0 || result.RemovedRefs != 0 {
		t.Errorf("Prune removed %d objects and %d refs from a healthy cache under budget",
			result.RemovedObjects, result.RemovedRefs)
	}
	if _, _, err := cache.Get(uri); err != nil {
		t.Errorf("Get after no-op Prune failed: %v", err)
	}
}

func TestStatsCountsEntries(t *testing.T) {
	cache := newTestCache(t)

	stats, err := cache.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Objects != 0 || stats.Refs != 0 || stats.TotalBytes != 0 {
		t.Errorf("empty cache stats = %+v, want zeros", stats)
	}

	for i := range 3 {
		if err := cache.Put(testURI(20+i), randomMedia(t, 512), "image/png"); err != nil {
			t.Fatal(err)
		}
	}

	stats, err = cache.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Objects != 3 {
		t.Errorf("objects = %d, want 3", stats.Objects)
	}
	if stats.Refs != 3 {
		t.Errorf("refs = %d, want 3", stats.Refs)
	}
	if stats.TotalBytes <= 3*512 {
		t.Errorf("TotalBytes = %d, want > %d (encryption overhead)", stats.TotalBytes, 3*512)
	}
}
