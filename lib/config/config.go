// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Commons.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Homeserver configures the Matrix homeserver connection.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Feed configures the feed cache daemon.
	Feed FeedConfig `yaml:"feed"`

	// Media configures the local media cache.
	Media MediaConfig `yaml:"media"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Homeserver *HomeserverConfig `yaml:"homeserver,omitempty"`
	Paths      *PathsConfig      `yaml:"paths,omitempty"`
	Feed       *FeedConfig       `yaml:"feed,omitempty"`
	Media      *MediaConfig      `yaml:"media,omitempty"`
}

// HomeserverConfig configures the Matrix homeserver connection.
type HomeserverConfig struct {
	// URL is the base URL of the homeserver, for example
	// "https://matrix.commons.local".
	URL string `yaml:"url"`

	// ServerName is the Matrix server name that appears in user IDs
	// and room aliases, for example "commons.local". This can differ
	// from the URL host when the homeserver is behind a reverse proxy.
	ServerName string `yaml:"server_name"`

	// AllowInsecure permits plain-HTTP homeserver URLs. Only sensible
	// against a local development homeserver.
	// Default: true (development), false (production)
	AllowInsecure bool `yaml:"allow_insecure"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Commons data.
	Root string `yaml:"root"`

	// State is where session files and sync tokens are stored.
	State string `yaml:"state"`

	// FeedStore is the SQLite database path for the feed cache.
	FeedStore string `yaml:"feed_store"`

	// MediaCache is the directory for cached media files.
	MediaCache string `yaml:"media_cache"`
}

// FeedConfig configures the feed cache daemon.
type FeedConfig struct {
	// RetentionDays is how many days of cached posts the retention
	// sweeper keeps. 0 disables sweeping.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// MaxCachedPosts caps the number of posts kept per feed after a
	// sweep. 0 means no per-feed cap.
	MaxCachedPosts int `yaml:"max_cached_posts"`

	// SyncTimeout is the long-poll timeout for /sync requests,
	// as a Go duration string.
	// Default: 30s
	SyncTimeout string `yaml:"sync_timeout"`

	// PoolSize is the SQLite connection pool size for the feed store.
	// 0 selects an automatic size based on CPU count.
	PoolSize int `yaml:"pool_size"`
}

// MediaConfig configures the local media cache.
type MediaConfig struct {
	// MaxCacheBytes caps the total size of cached media on disk.
	// 0 means no cap.
	MaxCacheBytes int64 `yaml:"max_cache_bytes"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "commons")

	return &Config{
		Environment: Development,
		Homeserver: HomeserverConfig{
			URL:           "http://localhost:8008",
			ServerName:    "commons.local",
			AllowInsecure: true,
		},
		Paths: PathsConfig{
			Root:       defaultRoot,
			State:      filepath.Join(defaultRoot, "state"),
			FeedStore:  filepath.Join(defaultRoot, "feed", "feed.db"),
			MediaCache: filepath.Join(defaultRoot, "media"),
		},
		Feed: FeedConfig{
			RetentionDays:  90,
			MaxCachedPosts: 0,
			SyncTimeout:    "30s",
			PoolSize:       0,
		},
		Media: MediaConfig{
			MaxCacheBytes: 0,
		},
	}
}

// Load loads configuration from the COMMONS_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if COMMONS_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("COMMONS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("COMMONS_CONFIG environment variable not set; " +
			"set it to the path of your commons.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: reject plain-HTTP homeservers.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Homeserver: &HomeserverConfig{
					AllowInsecure: false,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Homeserver != nil {
		if overrides.Homeserver.URL != "" {
			c.Homeserver.URL = overrides.Homeserver.URL
		}
		if overrides.Homeserver.ServerName != "" {
			c.Homeserver.ServerName = overrides.Homeserver.ServerName
		}
		// AllowInsecure is a bool, so we always apply it from overrides.
		c.Homeserver.AllowInsecure = overrides.Homeserver.AllowInsecure
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.FeedStore != "" {
			c.Paths.FeedStore = overrides.Paths.FeedStore
		}
		if overrides.Paths.MediaCache != "" {
			c.Paths.MediaCache = overrides.Paths.MediaCache
		}
	}

	if overrides.Feed != nil {
		if overrides.Feed.RetentionDays != 0 {
			c.Feed.RetentionDays = overrides.Feed.RetentionDays
		}
		if overrides.Feed.MaxCachedPosts != 0 {
			c.Feed.MaxCachedPosts = overrides.Feed.MaxCachedPosts
		}
		if overrides.Feed.SyncTimeout != "" {
			c.Feed.SyncTimeout = overrides.Feed.SyncTimeout
		}
		if overrides.Feed.PoolSize != 0 {
			c.Feed.PoolSize = overrides.Feed.PoolSize
		}
	}

	if overrides.Media != nil {
		if overrides.Media.MaxCacheBytes != 0 {
			c.Media.MaxCacheBytes = overrides.Media.MaxCacheBytes
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"COMMONS_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["COMMONS_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.FeedStore = expandVars(c.Paths.FeedStore, vars)
	c.Paths.MediaCache = expandVars(c.Paths.MediaCache, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Homeserver.URL == "" {
		errs = append(errs, fmt.Errorf("homeserver.url is required"))
	} else if strings.HasPrefix(c.Homeserver.URL, "http://") && !c.Homeserver.AllowInsecure {
		errs = append(errs, fmt.Errorf("homeserver.url uses plain HTTP; set homeserver.allow_insecure for local development"))
	}

	if c.Homeserver.ServerName == "" {
		errs = append(errs, fmt.Errorf("homeserver.server_name is required"))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Feed.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("feed.retention_days must not be negative"))
	}

	if c.Feed.SyncTimeout != "" {
		if _, err := time.ParseDuration(c.Feed.SyncTimeout); err != nil {
			errs = append(errs, fmt.Errorf("feed.sync_timeout: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SyncTimeout returns the parsed feed.sync_timeout, or 30 seconds when
// the field is empty or invalid. Validate reports invalid values; this
// accessor never fails so the daemon can always construct a filter.
func (c *Config) SyncTimeout() time.Duration {
	if c.Feed.SyncTimeout == "" {
		return 30 * time.Second
	}
	parsed, err := time.ParseDuration(c.Feed.SyncTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return parsed
}

// EnsurePaths creates all configured directories if they don't exist.
// For FeedStore (a file path) the parent directory is created.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
		c.Paths.MediaCache,
	}
	if c.Paths.FeedStore != "" {
		paths = append(paths, filepath.Dir(c.Paths.FeedStore))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
