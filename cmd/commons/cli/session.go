// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/commons-foundation/commons/lib/config"
	"github.com/commons-foundation/commons/lib/service"
	"github.com/commons-foundation/commons/messaging"
)

// SessionConfig holds the shared --config flag for commands that need
// the Commons configuration or an authenticated homeserver session.
// It implements [FlagBinder], so params structs embed it and the flag
// is registered automatically:
//
//	type shareParams struct {
//	    cli.SessionConfig
//	    Tier string `flag:"tier" desc:"feed tier to share to"`
//	}
//
//	// In Run:
//	cfg, session, err := params.Connect(ctx, logger)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
// The session file is shared with the feed cache daemon: "commons
// login" writes state/session.json and both programs read it.
type SessionConfig struct {
	ConfigPath string
}

// AddFlags registers --config on the given flag set, satisfying
// [FlagBinder].
func (c *SessionConfig) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "path to commons.yaml (default: $COMMONS_CONFIG, else development defaults)")
}

// LoadConfig resolves the configuration. The --config flag wins, then
// the COMMONS_CONFIG environment variable, then the built-in
// development defaults (local homeserver, ~/.local/share/commons).
// The result is validated before being returned.
func (c *SessionConfig) LoadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case c.ConfigPath != "":
		cfg, err = config.LoadFile(c.ConfigPath)
	case os.Getenv("COMMONS_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Connect loads the configuration and opens the saved Matrix session
// from the state directory. The caller must Close the returned session
// to release its token memory. Connect does not verify the token
// against the homeserver; the first API call surfaces an expired
// session, and "commons whoami --verify" checks it explicitly.
func (c *SessionConfig) Connect(ctx context.Context, logger *slog.Logger) (*config.Config, *messaging.DirectSession, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	_, session, err := service.LoadSession(cfg.Paths.State, cfg.Homeserver.URL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("loading session (run \"commons login\" first): %w", err)
	}
	return cfg, session, nil
}
