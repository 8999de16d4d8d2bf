// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

// Commons-feed-service is the local feed cache daemon. It holds a
// long-poll /sync connection to the Matrix homeserver and mirrors the
// social timeline into a SQLite cache that the commons CLI reads.
//
// On startup:
//  1. Loads configuration (COMMONS_CONFIG or --config).
//  2. Opens the feed store and the Matrix session written by
//     "commons login".
//  3. Performs an initial sync to learn the joined feed rooms and
//     seed the cache.
//  4. Enters the incremental sync loop: new posts, comments,
//     reactions, and redactions are folded into the cache as they
//     arrive, and room invites (accepted friend requests, gathering
//     invites) are joined automatically.
//
// A retention pass runs periodically, dropping posts older than the
// configured window and capping the per-feed post count.
//
// The daemon never writes to the homeserver beyond membership: all
// posting goes through the CLI. Conversely the CLI reads the cache
// directly; SQLite in WAL mode lets both processes share the file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commons-foundation/commons/lib/clock"
	"github.com/commons-foundation/commons/lib/config"
	"github.com/commons-foundation/commons/lib/feedstore"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/lib/service"
	"github.com/commons-foundation/commons/lib/version"
)

// retentionInterval is how often the retention pass runs. The pass is
// cheap when nothing is expired, so running it hourly keeps the cache
// close to its configured bounds without a scheduler.
const retentionInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to commons.yaml (defaults to $COMMONS_CONFIG)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("commons-feed-service %s\n", version.Info())
		return nil
	}

	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	store, err := feedstore.OpenStore(feedstore.StoreConfig{
		Path:     cfg.Paths.FeedStore,
		PoolSize: cfg.Feed.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	_, session, err := service.LoadSession(cfg.Paths.State, cfg.Homeserver.URL, logger)
	if err != nil {
		return fmt.Errorf("loading session (run \"commons login\" first): %w", err)
	}
	defer session.Close()

	userID, err := service.ValidateSession(ctx, session)
	if err != nil {
		return err
	}
	logger.Info("matrix session valid", "user_id", userID)

	clk := clock.Real()
	ingestor := newIngestor(store, session, userID, logger)

	filter := socialSyncFilter()
	sinceToken, initial, err := service.InitialSync(ctx, session, filter)
	if err != nil {
		return err
	}
	ingestor.HandleSync(ctx, initial)
	logger.Info("initial sync complete",
		"feed_rooms", ingestor.FeedRoomCount(),
		"since", sinceToken,
	)

	go retentionLoop(ctx, store, cfg, clk, logger)

	logger.Info("feed service running",
		"user_id", userID,
		"store", cfg.Paths.FeedStore,
	)

	service.RunSyncLoop(ctx, session, service.SyncConfig{
		Filter:  filter,
		Timeout: int(cfg.SyncTimeout().Milliseconds()),
	}, sinceToken, ingestor.HandleSync, clk, logger)

	logger.Info("shutting down")
	return nil
}

// loadConfig loads from the --config flag when given, otherwise from
// the COMMONS_CONFIG environment variable.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func parseLogLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// socialSyncFilter builds the inline JSON filter for /sync. The
// timeline is restricted to the three event types the cache ingests;
// state is restricted to Commons markers and membership (feed
// discovery, friend requests). Presence and ephemeral events are
// suppressed entirely.
func socialSyncFilter() string {
	filter := map[string]any{
		"room": map[string]any{
			"timeline": map[string]any{
				"types": []string{
					schema.MatrixEventTypeMessage,
					schema.MatrixEventTypeReaction,
					schema.MatrixEventTypeRedaction,
				},
				"limit": 10,
			},
			"state": map[string]any{
				"types": []string{"m.commons.*", schema.MatrixEventTypeMember},
			},
			"ephemeral":    map[string]any{"types": []string{}},
			"account_data": map[string]any{"types": []string{}},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	data, err := json.Marshal(filter)
	if err != nil {
		// The filter is statically constructed; marshaling cannot fail.
		panic("building social sync filter: " + err.Error())
	}
	return string(data)
}

// retentionLoop runs the retention pass once at startup and then every
// retentionInterval until ctx is cancelled. Does nothing when neither
// bound is configured.
func retentionLoop(ctx context.Context, store *feedstore.Store, cfg *config.Config, clk clock.Clock, logger *slog.Logger) {
	if cfg.Feed.RetentionDays <= 0 && cfg.Feed.MaxCachedPosts <= 0 {
		return
	}

	ticker := clk.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		runRetention(ctx, store, cfg, clk, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runRetention applies the age window and the per-feed cap. Errors are
// logged, not fatal: the next pass retries.
func runRetention(ctx context.Context, store *feedstore.Store, cfg *config.Config, clk clock.Clock, logger *slog.Logger) {
	if cfg.Feed.RetentionDays > 0 {
		cutoff := clk.Now().Add(-time.Duration(cfg.Feed.RetentionDays) * 24 * time.Hour)
		if _, err := store.DeleteOlderThan(ctx, cutoff.UnixMilli()); err != nil {
			logger.Error("retention pass failed", "error", err)
		}
	}
	if cfg.Feed.MaxCachedPosts > 0 {
		if _, err := store.TrimRooms(ctx, cfg.Feed.MaxCachedPosts); err != nil {
			logger.Error("feed trim failed", "error", err)
		}
	}
}
