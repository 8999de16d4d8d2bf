// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package reaction

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/commons-foundation/commons/lib/schema"
)

// Standard reaction emoji.
const (
	EmojiLike      = "👍"
	EmojiLove      = "❤️"
	EmojiLaugh     = "😂"
	EmojiWow       = "😮"
	EmojiSad       = "😢"
	EmojiAngry     = "😠"
	EmojiFire      = "🔥"
	EmojiClap      = "👏"
	EmojiThinking  = "🤔"
	EmojiCelebrate = "🎉"
)

// shortcutNames are the spellable aliases of the stock emoji.
var shortcutNames = map[string]string{
	"like":      EmojiLike,
	"love":      EmojiLove,
	"laugh":     EmojiLaugh,
	"wow":       EmojiWow,
	"sad":       EmojiSad,
	"angry":     EmojiAngry,
	"fire":      EmojiFire,
	"clap":      EmojiClap,
	"thinking":  EmojiThinking,
	"celebrate": EmojiCelebrate,
}

// Named resolves a shortcut name such as "like" or "fire" to its
// emoji. Lookup is case-insensitive.
func Named(name string) (string, bool) {
	emoji, ok := shortcutNames[strings.ToLower(name)]
	return emoji, ok
}

// NameOf returns the shortcut name of a stock emoji, or false for
// emoji outside the stock set.
func NameOf(emoji string) (string, bool) {
	for name, stock := range shortcutNames {
		if stock == emoji {
			return name, true
		}
	}
	return "", false
}

// Palette is the quick-reaction row offered by composers and
// reaction pickers.
type Palette struct {
	// QuickReactions are the emoji shown, in order.
	QuickReactions []string `json:"quick_reactions"`
}

// DefaultPalette returns the standard six-emoji picker row.
func DefaultPalette() *Palette {
	return &Palette{
		QuickReactions: []string{
			EmojiLike, EmojiLove, EmojiLaugh, EmojiWow, EmojiSad, EmojiAngry,
		},
	}
}

// Validate checks that the palette is non-empty and free of blank or
// duplicate entries.
func (p *Palette) Validate() error {
	if len(p.QuickReactions) == 0 {
		return fmt.Errorf("palette has no quick reactions")
	}
	seen := make(map[string]struct{}, len(p.QuickReactions))
	for i, emoji := range p.QuickReactions {
		if emoji == "" {
			return fmt.Errorf("quick reaction %d is empty", i)
		}
		if _, dup := seen[emoji]; dup {
			return fmt.Errorf("duplicate quick reaction %q", emoji)
		}
		seen[emoji] = struct{}{}
	}
	return nil
}

// ParsePalette strips JSONC comments and trailing commas from data,
// then decodes and validates a Palette. The input format is JSON
// extended with // line comments, /* block comments */, and trailing
// commas.
func ParsePalette(data []byte) (*Palette, error) {
	stripped := jsonc.ToJSON(data)

	var palette Palette
	if err := schema.DecodeStrict(stripped, &palette); err != nil {
		return nil, fmt.Errorf("parsing palette: %w", err)
	}
	if err := palette.Validate(); err != nil {
		return nil, err
	}
	return &palette, nil
}

// LoadPalette reads a JSONC palette file from disk and parses it.
func LoadPalette(path string) (*Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	palette, err := ParsePalette(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return palette, nil
}
