// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/commons-foundation/commons/cmd/commons/cli"
	"github.com/commons-foundation/commons/lib/feedroom"
	"github.com/commons-foundation/commons/lib/ref"
	"github.com/commons-foundation/commons/lib/schema"
	"github.com/commons-foundation/commons/messaging"
)

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Summary: "View and edit profiles",
		Description: `Show a user's profile or edit your own.

The display name and avatar live in the Matrix profile. Everything
else (bio, location, website, cover image) is a state event in the
owner's public feed room, so anyone who can see the feed can see the
profile.`,
		Subcommands: []*cli.Command{
			profileShowCommand(),
			profileSetCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Look up a user",
				Command:     "commons profile show @bob:commons.local",
			},
			{
				Description: "Update your bio and avatar",
				Command:     "commons profile set --bio \"gardener, occasional baker\" --avatar me.jpg",
			},
		},
	}
}

// profileView is the JSON shape of profile show output.
type profileView struct {
	UserID      string                     `json:"user_id"`
	DisplayName string                     `json:"display_name,omitempty"`
	Avatar      string                     `json:"avatar,omitempty"`
	Bio         string                     `json:"bio,omitempty"`
	Location    string                     `json:"location,omitempty"`
	Website     string                     `json:"website,omitempty"`
	CoverImage  string                     `json:"cover_image,omitempty"`
	Custom      map[string]json.RawMessage `json:"custom,omitempty"`
}

func profileShowCommand() *cli.Command {
	var params struct {
		cli.SessionConfig
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "show",
		Summary: "Show a user's profile",
		Usage:   "commons profile show [user] [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fmt.Errorf("at most one user is allowed\n\nUsage: commons profile show [user] [flags]")
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			_, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			owner := session.UserID()
			if len(args) == 1 {
				owner, err = ref.ParseUserID(args[0])
				if err != nil {
					return fmt.Errorf("invalid user: %w", err)
				}
			}

			var profile schema.ProfileContent
			room, err := publicFeedRoom(ctx, session, owner)
			if err != nil {
				return err
			}
			if !room.IsZero() {
				raw, err := session.GetStateEvent(ctx, room, schema.EventTypeProfile, owner.String())
				switch {
				case messaging.IsNotFound(err):
					// No profile record yet; the Matrix-level fields
					// below may still be set.
				case err != nil:
					return fmt.Errorf("reading profile of %s: %w", owner, err)
				default:
					profile, err = schema.ParseProfileContent(raw)
					if err != nil {
						return fmt.Errorf("profile of %s: %w", owner, err)
					}
				}
			}

			displayName, err := session.GetDisplayName(ctx, owner)
			if err != nil {
				return err
			}
			avatar, err := session.AvatarURL(ctx, owner)
			if err != nil {
				return err
			}

			view := profileView{
				UserID:      owner.String(),
				DisplayName: displayName,
				Bio:         profile.Bio,
				Location:    profile.Location,
				Website:     profile.Website,
				CoverImage:  profile.CoverImage,
				Custom:      profile.Custom,
			}
			if !avatar.IsZero() {
				view.Avatar = avatar.String()
			}
			if done, err := params.EmitJSON(view); done {
				return err
			}

			if displayName != "" {
				fmt.Printf("%s (%s)\n", owner, displayName)
			} else {
				fmt.Println(owner)
			}
			empty := true
			for _, line := range []struct{ label, value string }{
				{"Bio", profile.Bio},
				{"Location", profile.Location},
				{"Website", profile.Website},
				{"Avatar", view.Avatar},
				{"Cover", profile.CoverImage},
			} {
				if line.value == "" {
					continue
				}
				fmt.Printf("%-9s %s\n", line.label+":", line.value)
				empty = false
			}
			if empty && displayName == "" {
				fmt.Println("No profile set.")
			}
			return nil
		},
	}
}

// profileSetParams holds the parameters for profile set. Empty flags
// leave the corresponding field untouched; use --clear to reset the
// Commons profile record before applying the flags.
type profileSetParams struct {
	cli.SessionConfig
	Bio         string `flag:"bio"          desc:"self-description text"`
	Location    string `flag:"location"     desc:"free-form location"`
	Website     string `flag:"website"      desc:"http or https URL"`
	Cover       string `flag:"cover"        desc:"image file to upload as the profile banner"`
	DisplayName string `flag:"display-name" desc:"Matrix display name"`
	Avatar      string `flag:"avatar"       desc:"image file to upload as the avatar"`
	Clear       bool   `flag:"clear"        desc:"drop existing bio, location, website, and cover first"`
}

func profileSetCommand() *cli.Command {
	var params profileSetParams

	return &cli.Command{
		Name:    "set",
		Summary: "Edit your profile",
		Usage:   "commons profile set [flags]",
		Examples: []cli.Example{
			{
				Description: "Set a website and clear everything else",
				Command:     "commons profile set --clear --website https://example.org",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("profile set takes no arguments, only flags")
			}
			touchesRecord := params.Clear || params.Bio != "" || params.Location != "" ||
				params.Website != "" || params.Cover != ""
			if !touchesRecord && params.DisplayName == "" && params.Avatar == "" {
				return fmt.Errorf("nothing to set\n\nUsage: commons profile set [flags]")
			}

			// Covers the uploads when --cover or --avatar point at
			// large images.
			ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()

			cfg, session, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if touchesRecord {
				room, err := publicFeedRoom(ctx, session, session.UserID())
				if err != nil {
					return err
				}
				if room.IsZero() {
					return fmt.Errorf(`you have no public feed yet (run "commons setup")`)
				}

				var profile schema.ProfileContent
				if !params.Clear {
					raw, err := session.GetStateEvent(ctx, room, schema.EventTypeProfile, session.UserID().String())
					if err != nil && !messaging.IsNotFound(err) {
						return fmt.Errorf("reading current profile: %w", err)
					}
					if err == nil {
						profile, err = schema.ParseProfileContent(raw)
						if err != nil {
							return fmt.Errorf("current profile: %w", err)
						}
					}
				}
				if params.Bio != "" {
					profile.Bio = params.Bio
				}
				if params.Location != "" {
					profile.Location = params.Location
				}
				if params.Website != "" {
					profile.Website = params.Website
				}
				if params.Cover != "" {
					uri, _, err := uploadFile(ctx, cfg, session, params.Cover, logger)
					if err != nil {
						return err
					}
					profile.CoverImage = uri.String()
				}
				if err := profile.Validate(); err != nil {
					return err
				}
				if _, err := session.SendStateEvent(ctx, room, schema.EventTypeProfile, session.UserID().String(), profile); err != nil {
					return fmt.Errorf("writing profile: %w", err)
				}
			}

			if params.DisplayName != "" {
				if err := session.SetDisplayName(ctx, params.DisplayName); err != nil {
					return err
				}
			}
			if params.Avatar != "" {
				uri, _, err := uploadFile(ctx, cfg, session, params.Avatar, logger)
				if err != nil {
					return err
				}
				if err := session.SetAvatarURL(ctx, uri); err != nil {
					return err
				}
			}

			fmt.Println("Profile updated.")
			return nil
		},
	}
}

// publicFeedRoom resolves a user's public feed room, or the zero
// RoomID when none exists.
func publicFeedRoom(ctx context.Context, session messaging.Session, owner ref.UserID) (ref.RoomID, error) {
	alias, err := feedroom.FeedAlias(owner, feedroom.TierPublic)
	if err != nil {
		return ref.RoomID{}, err
	}
	roomID, err := session.ResolveAlias(ctx, alias)
	if messaging.IsNotFound(err) {
		return ref.RoomID{}, nil
	}
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("resolving %s: %w", alias, err)
	}
	return roomID, nil
}
