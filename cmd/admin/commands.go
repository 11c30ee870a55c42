package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/intromatch-backend/internal/app"
	"github.com/yungbote/intromatch-backend/internal/modules/onboarding"
)

var reindexAllCmd = &cobra.Command{
	Use:   "reindex-all",
	Short: "Re-embed every profile into the vector index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
			return a.Services.Maintenance.ReindexAll(ctx)
		})
	},
}

var resyncStaleCmd = &cobra.Command{
	Use:   "resync-stale",
	Short: "Embed profiles whose vector is missing or older than the profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
			return a.Services.Maintenance.ResyncStale(ctx)
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all relational rows and reset the vector collection",
	Long: `Delete all relational rows and reset the vector collection.

This is destructive and meant for development databases only.

Example:
  intromatch-admin cleanup --yes`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to wipe data without --yes")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
			return a.Services.Maintenance.Cleanup(ctx)
		})
	},
}

var onboardTextCmd = &cobra.Command{
	Use:   "onboard-text",
	Short: "Run the onboarding pipeline on literal text",
	Long: `Run the onboarding pipeline on literal text instead of a recording.

Examples:
  intromatch-admin onboard-text --user auth0|123 --text "I'm Sam, a backend engineer looking for a cofounder"
  intromatch-admin onboard-text --user auth0|123 --event 6f1c... --file ./intro.txt`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")
		eventRaw, _ := cmd.Flags().GetString("event")
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")

		if strings.TrimSpace(user) == "" {
			return fmt.Errorf("--user is required")
		}
		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text = string(data)
		}
		var eventID *uuid.UUID
		if strings.TrimSpace(eventRaw) != "" {
			id, err := uuid.Parse(strings.TrimSpace(eventRaw))
			if err != nil {
				return fmt.Errorf("--event must be a uuid: %w", err)
			}
			eventID = &id
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
			res, err := a.Services.Onboarding.OnboardFromText(ctx, onboarding.OnboardTextInput{
				ExternalUserID: user,
				EventID:        eventID,
				Text:           text,
			})
			if err != nil {
				return nil, err
			}
			// The embed queue is not running here; resync picks up the
			// profile that was just written.
			embedded, err := a.Services.Maintenance.ResyncStale(ctx)
			if err != nil {
				return nil, fmt.Errorf("embed profile: %w", err)
			}
			return map[string]any{
				"session":    res.Session,
				"validation": res.Validation,
				"embedded":   embedded,
			}, nil
		})
	},
}

func init() {
	cleanupCmd.Flags().Bool("yes", false, "confirm the wipe")

	onboardTextCmd.Flags().String("user", "", "external user id (token subject)")
	onboardTextCmd.Flags().String("event", "", "optional event id")
	onboardTextCmd.Flags().String("text", "", "onboarding text")
	onboardTextCmd.Flags().String("file", "", "read onboarding text from a file")
}
