// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress provides tagged blob compression for the local
// caches. Blobs are stored with a one-byte algorithm tag and their
// uncompressed size; the tag values are storage format constants and
// must not change.
package compress

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm applied to a stored blob.
type Tag uint8

const (
	// TagNone is uncompressed data. Used for already-compressed
	// content (images, video, audio) where compression costs CPU
	// without reducing size.
	TagNone Tag = 0

	// TagLZ4 is LZ4 block compression. The fast default for binary
	// data of unknown or mixed type.
	TagLZ4 Tag = 1

	// TagZstd is zstd at the default level. Better ratios for
	// text-like payloads (post bodies, JSON, HTML).
	TagZstd Tag = 2
)

// String returns the tag's short name.
func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagLZ4:
		return "lz4"
	case TagZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseTag parses a tag from its short name.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return TagNone, nil
	case "lz4":
		return TagLZ4, nil
	case "zstd":
		return TagZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag %q", name)
	}
}

// zstdEncoder and zstdDecoder are shared across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible is returned when compressed output would not be
// smaller than the input. The caller falls back to TagNone.
var errIncompressible = fmt.Errorf("data is incompressible")

// IsIncompressible reports whether err means the data could not be
// compressed smaller than its original size.
func IsIncompressible(err error) bool {
	return err == errIncompressible
}

// Compress compresses data with the algorithm named by tag. TagNone
// returns the input unchanged (no copy).
func Compress(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case TagNone:
		return data, nil
	case TagLZ4:
		return compressLZ4(data)
	case TagZstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", tag)
	}
}

// Decompress reverses Compress. uncompressedSize must match the
// original length exactly; a mismatch is a corruption error.
func Decompress(data []byte, tag Tag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case TagNone:
		if len(data) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed blob: size %d does not match expected %d", len(data), uncompressedSize)
		}
		return data, nil
	case TagLZ4:
		return decompressLZ4(data, uncompressedSize)
	case TagZstd:
		return decompressZstd(data, uncompressedSize)
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input; output at
	// least as large as the input is not worth storing either.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(data []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(data, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(data []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}

// Select picks the algorithm for a blob. A known content type
// short-circuits the probe: text-like types go to zstd, media types
// are stored as-is. Otherwise a zstd probe decides by ratio.
func Select(data []byte, contentType string) Tag {
	switch {
	case strings.HasPrefix(contentType, "text/"),
		contentType == "application/json",
		contentType == "application/xml",
		contentType == "application/cbor":
		return TagZstd
	case strings.HasPrefix(contentType, "image/"),
		strings.HasPrefix(contentType, "video/"),
		strings.HasPrefix(contentType, "audio/"):
		return TagNone
	}

	if len(data) == 0 {
		return TagNone
	}
	compressed := zstdEncoder.EncodeAll(data, nil)
	ratio := float64(len(data)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return TagZstd
	case ratio >= 1.1:
		return TagLZ4
	default:
		return TagNone
	}
}

// Auto compresses data with the algorithm Select picks for it. When
// the pick turns out incompressible the original data is returned
// with TagNone.
func Auto(data []byte, contentType string) ([]byte, Tag, error) {
	tag := Select(data, contentType)
	compressed, err := Compress(data, tag)
	if err != nil {
		if IsIncompressible(err) {
			return data, TagNone, nil
		}
		return nil, 0, err
	}
	return compressed, tag, nil
}
