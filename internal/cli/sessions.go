package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List conversation sessions",
	Long: `List the configured user's sessions, newest first.

Examples:
  luma sessions
  luma sessions --limit 5`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "max sessions")
}

func runSessions(cmd *cobra.Command, args []string) error {
	if cfg.UserID == "" {
		return fmt.Errorf("no user configured (set LUMA_USER_ID or --user)")
	}

	ctx := context.Background()
	sessions, err := dbClient.QueryListSessions(ctx, cfg.UserID, sessionsLimit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	fmt.Printf("Sessions for %s:\n\n", cfg.UserID)
	for _, session := range sessions {
		fmt.Printf("  %-40s %-8s updated %s\n",
			session.ID.String(), session.Status, session.UpdatedAt.Format("2006-01-02 15:04"))

		if verbose {
			summary, err := dbClient.QueryGetSummary(ctx, session.ID)
			if err == nil && summary != nil {
				fmt.Printf("    %s\n", summary.Summary)
			}
		}
	}
	return nil
}
