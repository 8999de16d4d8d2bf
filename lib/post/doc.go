// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Package post composes social posts and converts them to and from
// Matrix room messages.
//
// A post is an m.room.message in a feed room. Text posts use m.text
// (markdown source renders to an HTML formatted body), media posts use
// m.image or m.video with the mxc URI in url, and link posts are
// m.text with the m.commons.link_preview content key carrying the
// resolved preview. ShareTo runs the privacy guard against the target
// feed's audience before anything is sent.
package post
