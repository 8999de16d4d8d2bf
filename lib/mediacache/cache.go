// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/commons-foundation/commons/lib/codec"
	"github.com/commons-foundation/commons/lib/compress"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/secret"
)

// Directory names within the cache root.
const (
	objectDir = "objects"
	refDir    = "refs"
	tmpDir    = "tmp"
)

// Cache is the on-disk media cache. Safe for concurrent reads; Put
// for the same URI from two goroutines is safe (last rename wins with
// identical content), but Prune must not run concurrently with
// writes.
type Cache struct {
	root   string
	key    *secret.Buffer
	logger *slog.Logger
}

// Config holds the parameters for opening a media cache.
type Config struct {
	// Root is the cache directory. Created if it does not exist.
	Root string

	// Key is the 32-byte cache encryption key, normally from
	// LoadOrCreateKey. The cache takes ownership and closes it.
	Key *secret.Buffer

	// Logger receives operational messages. A nil logger discards.
	Logger *slog.Logger
}

// Open opens the cache, creating the directory layout if needed.
func Open(cfg Config) (*Cache, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("media cache: Root is required")
	}
	if cfg.Key == nil {
		return nil, fmt.Errorf("media cache: Key is required")
	}
	if cfg.Key.Len() != KeySize {
		return nil, fmt.Errorf("media cache: key is %d bytes, want %d", cfg.Key.Len(), KeySize)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for _, dir := range []string{
		cfg.Root,
		filepath.Join(cfg.Root, objectDir),
		filepath.Join(cfg.Root, refDir),
		filepath.Join(cfg.Root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("media cache: creating %s: %w", dir, err)
		}
	}

	return &Cache{root: cfg.Root, key: cfg.Key, logger: logger}, nil
}

// Close zeroes and releases the cache key. The cache is unusable
// afterwards.
func (c *Cache) Close() error {
	return c.key.Close()
}

// mediaEntry is the plaintext payload of an object file,
// CBOR-encoded before encryption.
type mediaEntry struct {
	ContentType string `cbor:"content_type"`
	Compression uint8  `cbor:"compression"`
	Size        int64  `cbor:"size"`
	Data        []byte `cbor:"data"`
}

// Put stores media bytes under their mxc URI. Content already in the
// cache under another URI is deduplicated: only a new ref file is
// written.
func (c *Cache) Put(uri ref.MediaURI, data []byte, contentType string) error {
	if uri.IsZero() {
		return fmt.Errorf("media cache: put: URI is required")
	}
	if len(data) == 0 {
		return fmt.Errorf("media cache: put %s: empty content", uri)
	}

	contentHash := HashContent(data)
	objectPath := c.objectPath(contentHash)

	if _, err := os.Stat(objectPath); err != nil {
		compressed, tag, err := compress.Auto(data, contentType)
		if err != nil {
			return fmt.Errorf("media cache: put %s: %w", uri, err)
		}
		entry, err := codec.Marshal(mediaEntry{
			ContentType: contentType,
			Compression: uint8(tag),
			Size:        int64(len(data)),
			Data:        compressed,
		})
		if err != nil {
			return fmt.Errorf("media cache: put %s: encode entry: %w", uri, err)
		}

		objectKey, err := deriveObjectKey(c.key, contentHash)
		if err != nil {
			return fmt.Errorf("media cache: put %s: %w", uri, err)
		}
		blob, err := encryptObject(entry, objectKey, contentHash)
		objectKey.Close()
		if err != nil {
			return fmt.Errorf("media cache: put %s: %w", uri, err)
		}

		if err := c.writeAtomic(objectPath, blob); err != nil {
			return fmt.Errorf("media cache: put %s: %w", uri, err)
		}
	}

	refPath := c.refPath(HashURI(uri))
	if err := c.writeAtomic(refPath, []byte(FormatHash(contentHash))); err != nil {
		return fmt.Errorf("media cache: put %s: %w", uri, err)
	}

	c.logger.Debug("media cached", "uri", uri, "bytes", len(data), "content_type", contentType)
	return nil
}

// Get retrieves cached media by mxc URI. Returns the media bytes and
// content type, or an error on cache miss. Entries that fail
// authentication or hash verification are dropped so the caller's
// re-download can replace them; errors.Is(err, fs.ErrNotExist)
// distinguishes a plain miss.
func (c *Cache) Get(uri ref.MediaURI) ([]byte, string, error) {
	refPath := c.refPath(HashURI(uri))
	refData, err := os.ReadFile(refPath)
	if err != nil {
		return nil, "", fmt.Errorf("media %s not in cache: %w", uri, err)
	}
	contentHash, err := ParseHash(strings.TrimSpace(string(refData)))
	if err != nil {
		os.Remove(refPath)
		return nil, "", fmt.Errorf("media cache: corrupt ref for %s: %w", uri, err)
	}

	objectPath := c.objectPath(contentHash)
	blob, err := os.ReadFile(objectPath)
	if err != nil {
		// Evicted or swept; the ref is stale.
		os.Remove(refPath)
		return nil, "", fmt.Errorf("media %s not in cache: %w", uri, err)
	}

	data, contentType, err := c.openObject(blob, contentHash)
	if err != nil {
		os.Remove(refPath)
		os.Remove(objectPath)
		c.logger.Warn("dropping corrupt media cache entry", "uri", uri, "error", err)
		return nil, "", fmt.Errorf("media cache: %s: %w", uri, err)
	}

	// Touch for LRU: recently read objects survive pruning.
	now := time.Now()
	if err := os.Chtimes(objectPath, now, now); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("touching media object", "uri", uri, "error", err)
	}

	return data, contentType, nil
}

// openObject decrypts, decodes, and verifies one object blob.
func (c *Cache) openObject(blob []byte, contentHash Hash) ([]byte, string, error) {
	objectKey, err := deriveObjectKey(c.key, contentHash)
	if err != nil {
		return nil, "", err
	}
	defer objectKey.Close()

	entryBytes, err := decryptObject(blob, objectKey, contentHash)
	if err != nil {
		return nil, "", err
	}

	var entry mediaEntry
	if err := codec.Unmarshal(entryBytes, &entry); err != nil {
		return nil, "", fmt.Errorf("decode entry: %w", err)
	}

	data, err := compress.Decompress(entry.Data, compress.Tag(entry.Compression), int(entry.Size))
	if err != nil {
		return nil, "", err
	}

	// The AEAD already authenticated the blob; recomputing the hash
	// catches torn writes and implementation bugs.
	if HashContent(data) != contentHash {
		return nil, "", fmt.Errorf("content hash mismatch")
	}

	return data, entry.ContentType, nil
}

// Has reports whether the URI resolves to a cached object.
func (c *Cache) Has(uri ref.MediaURI) bool {
	refData, err := os.ReadFile(c.refPath(HashURI(uri)))
	if err != nil {
		return false
	}
	contentHash, err := ParseHash(strings.TrimSpace(string(refData)))
	if err != nil {
		return false
	}
	_, err = os.Stat(c.objectPath(contentHash))
	return err == nil
}

// Delete removes the URI's ref. The object stays until Prune finds it
// unreferenced, since another URI may share it.
func (c *Cache) Delete(uri ref.MediaURI) error {
	err := os.Remove(c.refPath(HashURI(uri)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("media cache: delete %s: %w", uri, err)
	}
	return nil
}

// CacheStats summarizes cache occupancy.
type CacheStats struct {
	Objects    int
	Refs       int
	TotalBytes int64
}

// Stats walks the cache and returns occupancy counters.
func (c *Cache) Stats() (CacheStats, error) {
	var stats CacheStats

	objects, err := c.scanObjects()
	if err != nil {
		return stats, err
	}
	stats.Objects = len(objects)
	for _, object := range objects {
		stats.TotalBytes += object.size
	}

	err = filepath.WalkDir(filepath.Join(c.root, refDir), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		stats.Refs++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("media cache: scanning refs: %w", err)
	}

	return stats, nil
}

// PruneResult reports what a Prune pass removed.
type PruneResult struct {
	RemovedObjects int
	RemovedRefs    int
	FreedBytes     int64
}

// Prune brings the cache back under maxBytes. Unreferenced objects
// and dangling refs go first; if the cache is still over budget, the
// least recently used objects are evicted. maxBytes <= 0 skips the
// size eviction and only sweeps for consistency.
func (c *Cache) Prune(maxBytes int64) (PruneResult, error) {
	var result PruneResult

	objects, err := c.scanObjects()
	if err != nil {
		return result, err
	}

	// Collect live content hashes from the refs, dropping refs that
	// do not parse.
	live := make(map[string][]string) // content hash hex → ref paths
	refRoot := filepath.Join(c.root, refDir)
	err = filepath.WalkDir(refRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		refData, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		hashHex := strings.TrimSpace(string(refData))
		if _, err := ParseHash(hashHex); err != nil {
			os.Remove(path)
			result.RemovedRefs++
			return nil
		}
		live[hashHex] = append(live[hashHex], path)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("media cache: scanning refs: %w", err)
	}

	// Unreferenced objects first.
	kept := objects[:0]
	for _, object := range objects {
		if _, referenced := live[object.hashHex]; referenced {
			kept = append(kept, object)
			continue
		}
		if err := os.Remove(object.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return result, fmt.Errorf("media cache: removing orphan object: %w", err)
		}
		result.RemovedObjects++
		result.FreedBytes += object.size
	}
	objects = kept

	// Size eviction, oldest first.
	if maxBytes > 0 {
		var total int64
		for _, object := range objects {
			total += object.size
		}
		sort.Slice(objects, func(i, j int) bool {
			return objects[i].modTime.Before(objects[j].modTime)
		})
		for _, object := range objects {
			if total <= maxBytes {
				break
			}
			if err := os.Remove(object.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return result, fmt.Errorf("media cache: evicting object: %w", err)
			}
			total -= object.size
			result.RemovedObjects++
			result.FreedBytes += object.size
			for _, refPath := range live[object.hashHex] {
				if err := os.Remove(refPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return result, fmt.Errorf("media cache: removing ref: %w", err)
				}
				result.RemovedRefs++
			}
			delete(live, object.hashHex)
		}
	}

	// Dangling refs: object vanished outside Prune (corruption drop
	// in Get, manual deletion).
	for hashHex, refPaths := range live {
		contentHash, _ := ParseHash(hashHex)
		if _, err := os.Stat(c.objectPath(contentHash)); err == nil {
			continue
		}
		for _, refPath := range refPaths {
			if err := os.Remove(refPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return result, fmt.Errorf("media cache: removing dangling ref: %w", err)
			}
			result.RemovedRefs++
		}
	}

	if result.RemovedObjects > 0 || result.RemovedRefs > 0 {
		c.logger.Info("media cache pruned",
			"removed_objects", result.RemovedObjects,
			"removed_refs", result.RemovedRefs,
			"freed_bytes", result.FreedBytes,
		)
	}
	return result, nil
}

// cachedObject is one object file found by scanObjects.
type cachedObject struct {
	hashHex string
	path    string
	size    int64
	modTime time.Time
}

func (c *Cache) scanObjects() ([]cachedObject, error) {
	var objects []cachedObject
	root := filepath.Join(c.root, objectDir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, cachedObject{
			hashHex: d.Name(),
			path:    path,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("media cache: scanning objects: %w", err)
	}
	return objects, nil
}

// writeAtomic stages data in the tmp directory and renames it into
// place. A crash mid-write leaves a stray temp file, never a partial
// entry.
func (c *Cache) writeAtomic(finalPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o700); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Join(c.root, tmpDir), "media-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}

	success = true
	return nil
}

// objectPath returns the sharded path for a content hash:
// objects/a3/f9/a3f9b2c1....
func (c *Cache) objectPath(hash Hash) string {
	hexed := FormatHash(hash)
	return filepath.Join(c.root, objectDir, hexed[:2], hexed[2:4], hexed)
}

// refPath returns the sharded path for a URI hash.
func (c *Cache) refPath(hash Hash) string {
	hexed := FormatHash(hash)
	return filepath.Join(c.root, refDir, hexed[:2], hexed[2:4], hexed)
}
