// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/commons-foundation/commons/lib/secret"
	"github.com/commons-foundation/commons/lib/service"
	"github.com/commons-foundation/commons/messaging"
)

// loginParams holds the parameters for the login command.
type loginParams struct {
	SessionConfig
	HomeserverURL string `flag:"homeserver"    desc:"Matrix homeserver URL (overrides config)"`
	PasswordFile  string `flag:"password-file" desc:"path to file containing password, or - to prompt interactively (default: prompt)"`
}

// LoginCommand returns the "login" command for authenticating a user.
// It performs a Matrix password login, verifies the session via WhoAmI,
// and saves the result to the state directory. Subsequent commands and
// the feed cache daemon load this session transparently.
func LoginCommand() *Command {
	var params loginParams

	return &Command{
		Name:    "login",
		Summary: "Authenticate with the homeserver",
		Description: `Log in to a Commons homeserver and save the session locally.

After login, commands like "commons post" and "commons feed" use the
saved session transparently, and so does the feed cache daemon. The
session file is stored in the state directory from the configuration
(default ~/.local/share/commons/state/session.json) with mode 0600
since it contains an access token.

The password can be provided via --password-file (a path to a file
containing the password) or prompted interactively if --password-file
is "-" or omitted.`,
		Usage: "commons login <username> [flags]",
		Examples: []Example{
			{
				Description: "Log in interactively (prompts for password)",
				Command:     "commons login alice",
			},
			{
				Description: "Log in against an explicit homeserver",
				Command:     "commons login alice --homeserver https://matrix.example.net",
			},
			{
				Description: "Log in with password from file",
				Command:     "commons login alice --password-file /path/to/password",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 1 {
				return fmt.Errorf("username is required\n\nUsage: commons login <username> [flags]")
			}
			username := args[0]
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument: %s", args[1])
			}

			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}
			homeserverURL := params.HomeserverURL
			if homeserverURL == "" {
				homeserverURL = cfg.Homeserver.URL
			}

			passwordBuffer, err := readLoginPassword(params.PasswordFile)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			defer passwordBuffer.Close()

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			client, err := messaging.NewClient(messaging.ClientConfig{
				HomeserverURL: homeserverURL,
				Logger:        logger,
			})
			if err != nil {
				return fmt.Errorf("create matrix client: %w", err)
			}

			session, err := client.Login(ctx, username, passwordBuffer)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			defer session.Close()

			// Verify the session works before saving.
			userID, err := session.WhoAmI(ctx)
			if err != nil {
				return fmt.Errorf("session verification failed: %w", err)
			}

			if err := cfg.EnsurePaths(); err != nil {
				return err
			}
			if err := service.SaveSession(cfg.Paths.State, homeserverURL, session); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Logged in as %s\n", userID)
			fmt.Fprintf(os.Stderr, "Session saved to %s\n", cfg.Paths.State)
			return nil
		},
	}
}

// registerParams holds the parameters for the register command.
type registerParams struct {
	SessionConfig
	HomeserverURL string `flag:"homeserver"              desc:"Matrix homeserver URL (overrides config)"`
	PasswordFile  string `flag:"password-file"           desc:"path to file containing password, or - to prompt interactively (default: prompt)"`
	TokenFile     string `flag:"registration-token-file" desc:"path to file containing the registration token, if the homeserver requires one"`
}

// RegisterCommand returns the "register" command for creating a new
// account. On success the new session is saved exactly as login does,
// so the user is immediately logged in.
func RegisterCommand() *Command {
	var params registerParams

	return &Command{
		Name:    "register",
		Summary: "Create a new account",
		Description: `Register a new account on a Commons homeserver.

Homeservers that restrict registration issue registration tokens; pass
one via --registration-token-file. The interactive password prompt asks
twice to catch typos. On success the session is saved locally, so there
is no separate login step.`,
		Usage: "commons register <username> [flags]",
		Examples: []Example{
			{
				Description: "Register interactively on the configured homeserver",
				Command:     "commons register alice",
			},
			{
				Description: "Register with a token from the server admin",
				Command:     "commons register alice --registration-token-file /path/to/token",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 1 {
				return fmt.Errorf("username is required\n\nUsage: commons register <username> [flags]")
			}
			username := args[0]
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument: %s", args[1])
			}

			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}
			homeserverURL := params.HomeserverURL
			if homeserverURL == "" {
				homeserverURL = cfg.Homeserver.URL
			}

			passwordBuffer, err := readRegisterPassword(params.PasswordFile)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			defer passwordBuffer.Close()

			var tokenBuffer *secret.Buffer
			if params.TokenFile != "" {
				tokenBuffer, err = readSecretFile(params.TokenFile)
				if err != nil {
					return fmt.Errorf("read registration token: %w", err)
				}
				defer tokenBuffer.Close()
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			client, err := messaging.NewClient(messaging.ClientConfig{
				HomeserverURL: homeserverURL,
				Logger:        logger,
			})
			if err != nil {
				return fmt.Errorf("create matrix client: %w", err)
			}

			session, err := client.Register(ctx, messaging.RegisterRequest{
				Username:          username,
				Password:          passwordBuffer,
				RegistrationToken: tokenBuffer,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			defer session.Close()

			if err := cfg.EnsurePaths(); err != nil {
				return err
			}
			if err := service.SaveSession(cfg.Paths.State, homeserverURL, session); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Registered as %s\n", session.UserID())
			fmt.Fprintf(os.Stderr, "Session saved to %s\n", cfg.Paths.State)
			return nil
		},
	}
}

// readLoginPassword reads a password for the login command. If
// passwordFile is empty or "-", prompts interactively on the terminal.
// Otherwise reads from the file path.
//
// Login does not require password confirmation; the homeserver
// validates the password immediately.
func readLoginPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" && passwordFile != "-" {
		return readSecretFile(passwordFile)
	}

	// Interactive prompt, echo disabled.
	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, fmt.Errorf("no terminal available for interactive password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	buffer, err := secret.NewFromBytes(passwordBytes)
	if err != nil {
		secret.Zero(passwordBytes)
		return nil, err
	}
	return buffer, nil
}

// readRegisterPassword reads a password for the register command. The
// interactive path prompts twice and compares; a typo in a fresh
// account's password locks the user out, unlike login where the
// homeserver rejects it.
func readRegisterPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" && passwordFile != "-" {
		return readSecretFile(passwordFile)
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, fmt.Errorf("no terminal available for interactive password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		secret.Zero(first)
		return nil, fmt.Errorf("reading password confirmation: %w", err)
	}

	match := len(first) == len(second)
	if match {
		for index := range first {
			if first[index] != second[index] {
				match = false
				break
			}
		}
	}
	secret.Zero(second)

	if !match {
		secret.Zero(first)
		return nil, fmt.Errorf("passwords do not match")
	}

	// Move into mmap-backed buffer; NewFromBytes zeros the source.
	buffer, err := secret.NewFromBytes(first)
	if err != nil {
		secret.Zero(first)
		return nil, err
	}
	return buffer, nil
}

// readSecretFile reads a secret from a file path into a secret.Buffer.
// Strips trailing newlines (common with echo/printf pipelines).
func readSecretFile(path string) (*secret.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}

	if len(data) == 0 {
		secret.Zero(data)
		return nil, fmt.Errorf("file %s is empty (after stripping trailing newlines)", path)
	}

	buffer, err := secret.NewFromBytes(data)
	if err != nil {
		secret.Zero(data)
		return nil, err
	}
	return buffer, nil
}
