// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfigFile writes a commons.yaml with the given contents into a
// fresh temp directory and returns its path.
func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commons.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfig_FlagWinsOverEnvironment(t *testing.T) {
	// Cannot use t.Parallel(): t.Setenv modifies process environment.
	flagPath := writeConfigFile(t, `
homeserver:
  url: http://flag.example:8008
  server_name: flag.example
  allow_insecure: true
`)
	envPath := writeConfigFile(t, `
homeserver:
  url: http://env.example:8008
  server_name: env.example
  allow_insecure: true
`)
	t.Setenv("COMMONS_CONFIG", envPath)

	sessionConfig := SessionConfig{ConfigPath: flagPath}
	cfg, err := sessionConfig.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Homeserver.URL != "http://flag.example:8008" {
		t.Errorf("URL = %q, want the --config file's value", cfg.Homeserver.URL)
	}
}

func TestLoadConfig_EnvironmentFallback(t *testing.T) {
	// Cannot use t.Parallel(): t.Setenv modifies process environment.
	envPath := writeConfigFile(t, `
homeserver:
  url: http://env.example:8008
  server_name: env.example
  allow_insecure: true
`)
	t.Setenv("COMMONS_CONFIG", envPath)

	var sessionConfig SessionConfig
	cfg, err := sessionConfig.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Homeserver.URL != "http://env.example:8008" {
		t.Errorf("URL = %q, want the COMMONS_CONFIG file's value", cfg.Homeserver.URL)
	}
}

func TestLoadConfig_DefaultsWhenNothingSet(t *testing.T) {
	// Cannot use t.Parallel(): t.Setenv modifies process environment.
	t.Setenv("COMMONS_CONFIG", "")

	var sessionConfig SessionConfig
	cfg, err := sessionConfig.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Homeserver.ServerName != "commons.local" {
		t.Errorf("ServerName = %q, want the built-in default", cfg.Homeserver.ServerName)
	}
	if cfg.Homeserver.URL != "http://localhost:8008" {
		t.Errorf("URL = %q, want the built-in default", cfg.Homeserver.URL)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	sessionConfig := SessionConfig{ConfigPath: filepath.Join(t.TempDir(), "does-not-exist.yaml")}
	if _, err := sessionConfig.LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail for a missing --config file")
	}
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	t.Parallel()

	// Production rejects plain-HTTP homeservers.
	path := writeConfigFile(t, `
environment: production
homeserver:
  url: http://insecure.example:8008
  server_name: insecure.example
`)
	sessionConfig := SessionConfig{ConfigPath: path}
	_, err := sessionConfig.LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should reject plain HTTP in production")
	}
	if !strings.Contains(err.Error(), "allow_insecure") {
		t.Errorf("error = %q, should mention allow_insecure", err)
	}
}

// connectTestConfig writes a config whose state directory is a fresh
// temp dir and returns (configPath, stateDir).
func connectTestConfig(t *testing.T) (string, string) {
	t.Helper()
	stateDir := t.TempDir()
	path := writeConfigFile(t, fmt.Sprintf(`
homeserver:
  url: http://localhost:8008
  server_name: commons.local
  allow_insecure: true
paths:
  root: %s
  state: %s
`, t.TempDir(), stateDir))
	return path, stateDir
}

func TestConnect_WithoutSessionFile(t *testing.T) {
	t.Parallel()

	configPath, _ := connectTestConfig(t)
	sessionConfig := SessionConfig{ConfigPath: configPath}

	_, _, err := sessionConfig.Connect(context.Background(), discardLogger)
	if err == nil {
		t.Fatal("Connect should fail without a session file")
	}
	if !strings.Contains(err.Error(), "commons login") {
		t.Errorf("error = %q, should direct the user to \"commons login\"", err)
	}
}

func TestConnect_LoadsSavedSession(t *testing.T) {
	t.Parallel()

	configPath, stateDir := connectTestConfig(t)
	sessionJSON := `{"homeserver_url":"http://localhost:8008","user_id":"@alice:commons.local","access_token":"syt_test_token"}`
	if err := os.WriteFile(filepath.Join(stateDir, "session.json"), []byte(sessionJSON), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sessionConfig := SessionConfig{ConfigPath: configPath}
	cfg, session, err := sessionConfig.Connect(context.Background(), discardLogger)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()

	if got := session.UserID().String(); got != "@alice:commons.local" {
		t.Errorf("UserID = %q, want @alice:commons.local", got)
	}
	if cfg.Homeserver.URL != "http://localhost:8008" {
		t.Errorf("Homeserver.URL = %q, want http://localhost:8008", cfg.Homeserver.URL)
	}
}
