// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/config"
	"github.com/commons-foundation/commons/lib/mediacache"
	"github.com/commons-foundation/commons/lib/ref"
)

func mediaCommand() *cli.Command {
	return &cli.Command{
		Name:    "media",
		Summary: "Work with the local media cache",
		Description: `Fetch media and manage the encrypted on-disk cache.

Media referenced by posts is cached locally under an encryption key
generated on first use. "get" serves from the cache when it can and
downloads (and caches) otherwise.`,
		Subcommands: []*cli.Command{
			mediaGetCommand(),
			mediaStatsCommand(),
			mediaPruneCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Save an image from a post",
				Command:     "commons media get mxc://commons.local/abc123 -o photo.jpg",
			},
			{
				Description: "Evict down to 500 MB",
				Command:     "commons media prune --max-bytes 500000000",
			},
		},
	}
}

func mediaGetCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		Output string `flag:"output,o" desc:"write the media to this file (\"-\" for stdout)"`
	}

	return &cli.Command{
		Name:    "get",
		Summary: "Fetch media by mxc URI, cache-first",
		Usage:   "commons media get <mxc-uri> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one mxc URI is required\n\nUsage: commons media get <mxc-uri> [flags]")
			}
			uri, err := ref.ParseMediaURI(args[0])
			if err != nil {
				return err
			}

			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}
			cache, err := openMediaCache(cfg, logger)
			if err != nil {
				return err
			}
			defer cache.Close()

			data, contentType, err := cache.Get(uri)
			cached := err == nil
			if !cached {
				ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
				defer cancel()

				_, session, err := params.Connect(ctx, logger)
				if err != nil {
					return err
				}
				defer session.Close()

				data, contentType, err = session.DownloadMedia(ctx, uri)
				if err != nil {
					return err
				}
				if err := cache.Put(uri, data, contentType); err != nil {
					logger.Warn("caching downloaded media failed", "uri", uri, "error", err)
				}
			}

			switch params.Output {
			case "":
				source := "downloaded"
				if cached {
					source = "cached"
				}
				fmt.Printf("%s: %s, %s (%s)\n", uri, contentType, formatBytes(int64(len(data))), source)
			case "-":
				if _, err := os.Stdout.Write(data); err != nil {
					return err
				}
			default:
				if err := os.WriteFile(params.Output, data, 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s (%s) to %s\n", formatBytes(int64(len(data))), contentType, params.Output)
			}
			return nil
		},
	}
}

func mediaStatsCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "stats",
		Summary: "Show cache occupancy",
		Usage:   "commons media stats [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}
			cache, err := openMediaCache(cfg, logger)
			if err != nil {
				return err
			}
			defer cache.Close()

			stats, err := cache.Stats()
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(struct {
				Objects    int   `json:"objects"`
				Refs       int   `json:"refs"`
				TotalBytes int64 `json:"total_bytes"`
			}{stats.Objects, stats.Refs, stats.TotalBytes}); done {
				return err
			}
			fmt.Printf("Objects: %d\n", stats.Objects)
			fmt.Printf("Refs:    %d\n", stats.Refs)
			fmt.Printf("Size:    %s\n", formatBytes(stats.TotalBytes))
			return nil
		},
	}
}

func mediaPruneCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		MaxBytes int64 `flag:"max-bytes" desc:"evict least recently used media beyond this size (default: media.max_cache_bytes)"`
	}

	return &cli.Command{
		Name:    "prune",
		Summary: "Sweep the cache and evict over-budget media",
		Description: `Remove unreferenced objects and dangling refs, then evict the
least recently used media until the cache fits the size budget.
Without a budget (no --max-bytes, media.max_cache_bytes unset) only
the consistency sweep runs.`,
		Usage:  "commons media prune [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}
			cache, err := openMediaCache(cfg, logger)
			if err != nil {
				return err
			}
			defer cache.Close()

			maxBytes := params.MaxBytes
			if maxBytes == 0 {
				maxBytes = cfg.Media.MaxCacheBytes
			}
			result, err := cache.Prune(maxBytes)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d objects and %d refs, freed %s\n",
				result.RemovedObjects, result.RemovedRefs, formatBytes(result.FreedBytes))
			return nil
		},
	}
}

// openMediaCache opens the local media cache, generating the
// encryption key on first use. The key lives next to the session
// state, not in the cache directory, so pruning the cache never
// touches it.
func openMediaCache(cfg *config.Config, logger *slog.Logger) (*mediacache.Cache, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	keyPath := filepath.Join(cfg.Paths.State, "media.key")
	key, created, err := mediacache.LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("generated media cache key", "path", keyPath)
	}
	return mediacache.Open(mediacache.Config{
		Root:   cfg.Paths.MediaCache,
		Key:    key,
		Logger: logger,
	})
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
