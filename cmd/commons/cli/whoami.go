// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/commons-foundation/commons/lib/secret"
	"github.com/commons-foundation/commons/lib/service"
)

// whoamiParams holds the parameters for the whoami command.
type whoamiParams struct {
	JSONOutput
	SessionConfig
	Verify bool `flag:"verify" desc:"verify the session against the homeserver"`
}

// whoamiOutput is the JSON output for the whoami command.
type whoamiOutput struct {
	UserID      string `json:"user_id"`
	Homeserver  string `json:"homeserver"`
	SessionFile string `json:"session_file"`
	Status      string `json:"status,omitempty"`
}

// WhoAmICommand returns the "whoami" command for displaying the current
// identity. Shows the saved session's user ID, homeserver, and session
// file path. With --verify, checks the token against the homeserver to
// confirm the session is still valid.
func WhoAmICommand() *Command {
	var params whoamiParams

	return &Command{
		Name:    "whoami",
		Summary: "Show the current identity",
		Description: `Display the currently logged-in identity.

Shows the Matrix user ID, homeserver URL, and session file path from
the saved session (created by "commons login").

With --verify, the saved access token is checked against the homeserver
to confirm the session is still valid. Without --verify, only the local
session file is read (no network access).`,
		Usage: "commons whoami [flags]",
		Examples: []Example{
			{
				Description: "Show current identity",
				Command:     "commons whoami",
			},
			{
				Description: "Verify the session is still valid",
				Command:     "commons whoami --verify",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			cfg, err := params.LoadConfig()
			if err != nil {
				return err
			}

			sessionPath := filepath.Join(cfg.Paths.State, "session.json")
			raw, err := os.ReadFile(sessionPath)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no session found at %s (run \"commons login\" first)", sessionPath)
				}
				return fmt.Errorf("reading session file %s: %w", sessionPath, err)
			}

			var data service.SessionData
			parseError := json.Unmarshal(raw, &data)
			secret.Zero(raw)
			if parseError != nil {
				return fmt.Errorf("parsing session file %s: %w", sessionPath, parseError)
			}

			output := whoamiOutput{
				UserID:      data.UserID,
				Homeserver:  data.HomeserverURL,
				SessionFile: sessionPath,
			}

			if params.Verify {
				// Empty homeserver override: verify against the URL
				// stored in the session file, not the config.
				_, session, err := service.LoadSession(cfg.Paths.State, "", logger)
				if err != nil {
					return err
				}
				defer session.Close()

				ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()

				verifiedUserID, err := service.ValidateSession(ctx, session)
				if err != nil {
					output.Status = "invalid"
					if done, err := params.EmitJSON(output); done {
						return err
					}
					printWhoAmI(output)
					fmt.Fprintf(os.Stdout, "Status:       INVALID (token rejected by homeserver)\n")
					return fmt.Errorf("session expired or revoked; run \"commons login\" to refresh")
				}

				output.Status = fmt.Sprintf("valid (verified as %s)", verifiedUserID)
			}

			if done, err := params.EmitJSON(output); done {
				return err
			}

			printWhoAmI(output)
			if output.Status != "" {
				fmt.Fprintf(os.Stdout, "Status:       %s\n", output.Status)
			}
			return nil
		},
	}
}

func printWhoAmI(output whoamiOutput) {
	fmt.Fprintf(os.Stdout, "User ID:      %s\n", output.UserID)
	fmt.Fprintf(os.Stdout, "Homeserver:   %s\n", output.Homeserver)
	fmt.Fprintf(os.Stdout, "Session file: %s\n", output.SessionFile)
}
