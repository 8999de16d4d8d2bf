// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"crypto/rand"
	"testing"
)

func TestTagString(t *testing.T) {
	tests := []struct {
		tag  Tag
		want string
	}{
		{TagNone, "none"},
		{TagLZ4, "lz4"},
		{TagZstd, "zstd"},
		{Tag(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.tag.String()
			if got != tt.want {
				t.Errorf("Tag(%d).String() = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParseTag(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		t.Run(name, func(t *testing.T) {
			tag, err := ParseTag(name)
			if err != nil {
				t.Fatalf("ParseTag(%q) failed: %v", name, err)
			}
			if tag.String() != name {
				t.Errorf("roundtrip: ParseTag(%q).String() = %q", name, tag.String())
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseTag("gzip")
		if err == nil {
			t.Error("ParseTag(\"gzip\") should fail")
		}
	})
}

func TestCompressDecompressNone(t *testing.T) {
	data := []byte("uncompressed data should pass through unchanged")

	compressed, err := Compress(data, TagNone)
	if err != nil {
		t.Fatalf("Compress(none) failed: %v", err)
	}

	// For TagNone, the output should be the same slice.
	if &compressed[0] != &data[0] {
		t.Error("TagNone should return the same slice, not a copy")
	}

	decompressed, err := Decompress(compressed, TagNone, len(data))
	if err != nil {
		t.Fatalf("Decompress(none) failed: %v", err)
	}

	if string(decompressed) != string(data) {
		t.Error("none compression roundtrip failed")
	}
}

func TestDecompressNoneSizeMismatch(t *testing.T) {
	data := []byte("five bytes extra")

	_, err := Decompress(data, TagNone, len(data)+5)
	if err == nil {
		t.Error("Decompress(none) should fail when size does not match")
	}
}

func TestCompressDecompressLZ4(t *testing.T) {
	// Compressible data: repeated pattern.
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}

	compressed, err := Compress(data, TagLZ4)
	if err != nil {
		t.Fatalf("Compress(lz4) failed: %v", err)
	}

	if len(compressed) >= len(data) {
		t.Errorf("LZ4 did not compress: %d bytes became %d bytes", len(data), len(compressed))
	}

	decompressed, err := Decompress(compressed, TagLZ4, len(data))
	if err != nil {
		t.Fatalf("Decompress(lz4) failed: %v", err)
	}

	for i := range data {
		if decompressed[i] != data[i] {
			t.Fatalf("LZ4 roundtrip mismatch at byte %d", i)
		}
	}
}

func TestCompressDecompressZstd(t *testing.T) {
	// Text-like data: a post body repeated to a reasonable blob size.
	body := []byte(`{"msgtype":"m.text","body":"The orchard workday is on for Saturday, bring gloves and a ladder if you have one."}`)
	repeated := make([]byte, 0, 64*1024)
	for len(repeated) < 64*1024 {
		repeated = append(repeated, body...)
	}

	compressed, err := Compress(repeated, TagZstd)
	if err != nil {
		t.Fatalf("Compress(zstd) failed: %v", err)
	}

	if len(compressed) >= len(repeated) {
		t.Errorf("Zstd did not compress: %d bytes became %d bytes", len(repeated), len(compressed))
	}

	ratio := float64(len(repeated)) / float64(len(compressed))
	if ratio < 2.0 {
		t.Errorf("Zstd compression ratio %.2fx is unexpectedly low for repetitive JSON", ratio)
	}

	decompressed, err := Decompress(compressed, TagZstd, len(repeated))
	if err != nil {
		t.Fatalf("Decompress(zstd) failed: %v", err)
	}

	for i := range repeated {
		if decompressed[i] != repeated[i] {
			t.Fatalf("Zstd roundtrip mismatch at byte %d", i)
		}
	}
}

func TestCompressIncompressibleLZ4(t *testing.T) {
	// Random data is incompressible.
	data := make([]byte, 64*1024)
	rand.Read(data)

	_, err := Compress(data, TagLZ4)
	if err == nil {
		t.Fatal("LZ4 should return incompressible error for random data")
	}
	if !IsIncompressible(err) {
		t.Errorf("expected incompressible error, got: %v", err)
	}
}

func TestCompressIncompressibleZstd(t *testing.T) {
	data := make([]byte, 64*1024)
	rand.Read(data)

	_, err := Compress(data, TagZstd)
	if err == nil {
		t.Fatal("Zstd should return incompressible error for random data")
	}
	if !IsIncompressible(err) {
		t.Errorf("expected incompressible error, got: %v", err)
	}
}

func TestSelectKnownTypes(t *testing.T) {
	textTypes := []string{
		"text/plain", "text/markdown", "application/json",
		"application/xml", "application/cbor",
	}
	for _, contentType := range textTypes {
		tag := Select(nil, contentType)
		if tag != TagZstd {
			t.Errorf("Select(contentType=%q) = %s, want zstd", contentType, tag)
		}
	}

	// Media is already compressed; storing it again costs CPU for
	// nothing.
	mediaTypes := []string{"image/jpeg", "image/png", "video/mp4", "audio/ogg"}
	for _, contentType := range mediaTypes {
		tag := Select(nil, contentType)
		if tag != TagNone {
			t.Errorf("Select(contentType=%q) = %s, want none", contentType, tag)
		}
	}
}

func TestSelectProbe(t *testing.T) {
	// Highly compressible data: should select zstd.
	compressible := make([]byte, 64*1024)
	for i := range compressible {
		compressible[i] = byte(i % 5)
	}
	tag := Select(compressible, "")
	if tag != TagZstd {
		t.Errorf("Select(compressible) = %s, want zstd", tag)
	}

	// Random data: should select none.
	random := make([]byte, 64*1024)
	rand.Read(random)
	tag = Select(random, "")
	if tag != TagNone {
		t.Errorf("Select(random) = %s, want none", tag)
	}
}

func TestSelectEmpty(t *testing.T) {
	tag := Select(nil, "")
	if tag != TagNone {
		t.Errorf("Select(empty) = %s, want none", tag)
	}
}

func TestAutoFallback(t *testing.T) {
	// Random data: Auto should fall back to TagNone.
	data := make([]byte, 64*1024)
	rand.Read(data)

	compressed, tag, err := Auto(data, "")
	if err != nil {
		t.Fatalf("Auto failed: %v", err)
	}

	if tag != TagNone {
		t.Errorf("tag = %s, want none for random data", tag)
	}

	if len(compressed) != len(data) {
		t.Errorf("compressed size %d != original %d for none", len(compressed), len(data))
	}
}

func TestAutoCompressesText(t *testing.T) {
	body := make([]byte, 0, 32*1024)
	for len(body) < 32*1024 {
		body = append(body, "Potluck on the green this Friday at six. "...)
	}

	compressed, tag, err := Auto(body, "text/plain")
	if err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	if tag != TagZstd {
		t.Errorf("tag = %s, want zstd for text", tag)
	}

	decompressed, err := Decompress(compressed, tag, len(body))
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if string(decompressed) != string(body) {
		t.Error("Auto roundtrip failed")
	}
}

func TestCompressUnsupportedTag(t *testing.T) {
	_, err := Compress([]byte("data"), Tag(99))
	if err == nil {
		t.Error("Compress with unknown tag should fail")
	}
}

func TestDecompressUnsupportedTag(t *testing.T) {
	_, err := Decompress([]byte("data"), Tag(99), 4)
	if err == nil {
		t.Error("Decompress with unknown tag should fail")
	}
}

func BenchmarkCompressLZ4(b *testing.B) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		Compress(data, TagLZ4)
	}
}

func BenchmarkCompressZstd(b *testing.B) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		Compress(data, TagZstd)
	}
}

func BenchmarkDecompressZstd(b *testing.B) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}
	compressed, err := Compress(data, TagZstd)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		Decompress(compressed, TagZstd, len(data))
	}
}
