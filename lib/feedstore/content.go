// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package feedstore

import (
	"fmt"

	"github.com/commons-foundation/commons/lib/codec"
	"github.com/commons-foundation/commons/lib/compress"
	"github.com/commons-foundation/commons/lib/feed"
)

// encodeContent serializes post content for the content column: CBOR,
// then per-blob compression. Short blobs usually come back TagNone;
// long text posts compress well.
func encodeContent(content feed.Content) (blob []byte, tag compress.Tag, size int, err error) {
	encoded, err := codec.Marshal(content)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encode content: %w", err)
	}
	blob, tag, err = compress.Auto(encoded, "application/cbor")
	if err != nil {
		return nil, 0, 0, fmt.Errorf("compress content: %w", err)
	}
	return blob, tag, len(encoded), nil
}

// decodeContent reverses encodeContent.
func decodeContent(blob []byte, tag compress.Tag, size int) (feed.Content, error) {
	raw, err := compress.Decompress(blob, tag, size)
	if err != nil {
		return feed.Content{}, fmt.Errorf("decompress content: %w", err)
	}
	var content feed.Content
	if err := codec.Unmarshal(raw, &content); err != nil {
		return feed.Content{}, fmt.Errorf("decode content: %w", err)
	}
	return content, nil
}

// searchText returns the queryable text of a post: the body for text
// posts, the caption for media, the comment and URL for links. Stored
// in its own column so the search index never decodes content blobs.
func searchText(content feed.Content) string {
	switch {
	case content.Text != nil:
		return content.Text.Body
	case content.Image != nil:
		return content.Image.Caption
	case content.Video != nil:
		return content.Video.Caption
	case content.Link != nil:
		if content.Link.Comment == "" {
			return content.Link.URL
		}
		return content.Link.Comment + " " + content.Link.URL
	default:
		return ""
	}
}
