package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var wipeForce bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all stored data (testing only)",
	Long: `Delete every session, message, memory, and summary from the
database. Schema stays intact. Intended for test environments.`,
	RunE: runWipe,
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeForce, "force", false, "skip confirmation")
}

func runWipe(cmd *cobra.Command, args []string) error {
	if !wipeForce {
		fmt.Print("This deletes ALL conversations and memories. Type 'yes' to continue: ")
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil || answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := dbClient.WipeData(context.Background()); err != nil {
		return fmt.Errorf("wipe: %w", err)
	}
	fmt.Println("All data deleted.")
	return nil
}
