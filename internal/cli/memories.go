package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/luma-go/internal/models"
)

var (
	memoriesCategory string
	memoriesSearch   string
	memoriesLimit    int
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Inspect extracted long-term memories",
	Long: `Show the facts extracted for the configured user, grouped by
category, or search them.

Examples:
  luma memories
  luma memories --category trigger
  luma memories --search "work stress"`,
	RunE: runMemories,
}

func init() {
	memoriesCmd.Flags().StringVarP(&memoriesCategory, "category", "c", "", "filter by category (insight, preference, trigger, progress, relationship, goal, crisis)")
	memoriesCmd.Flags().StringVarP(&memoriesSearch, "search", "s", "", "full-text search in memory contents")
	memoriesCmd.Flags().IntVarP(&memoriesLimit, "limit", "n", 20, "max results")
}

func runMemories(cmd *cobra.Command, args []string) error {
	if cfg.UserID == "" {
		return fmt.Errorf("no user configured (set LUMA_USER_ID or --user)")
	}
	ctx := context.Background()

	switch {
	case memoriesCategory != "":
		if !models.ValidCategory(memoriesCategory) {
			return fmt.Errorf("unknown category: %s", memoriesCategory)
		}
		facts, err := dbClient.QueryMemoriesByCategory(ctx, cfg.UserID,
			[]models.Category{models.Category(memoriesCategory)}, memoriesLimit)
		if err != nil {
			return fmt.Errorf("query memories: %w", err)
		}
		printFacts(facts)

	case memoriesSearch != "":
		facts, err := dbClient.QueryMemories(ctx, cfg.UserID, nil, nil, memoriesSearch, memoriesLimit)
		if err != nil {
			return fmt.Errorf("search memories: %w", err)
		}
		printFacts(facts)

	default:
		counts, err := dbClient.QueryMemoryCounts(ctx, cfg.UserID)
		if err != nil {
			return fmt.Errorf("memory counts: %w", err)
		}
		if len(counts) == 0 {
			fmt.Println("No memories yet.")
			return nil
		}
		fmt.Printf("Memories for %s:\n\n", cfg.UserID)
		for _, c := range counts {
			fmt.Printf("  %-14s %d\n", c.Category, c.Count)
		}
		fmt.Println("\nUse --category or --search to inspect contents.")
	}
	return nil
}

func printFacts(facts []models.MemoryFact) {
	if len(facts) == 0 {
		fmt.Println("No matching memories.")
		return
	}
	for _, fact := range facts {
		fmt.Printf("  [%s] %s\n", fact.Category, fact.Content)
		if verbose {
			fmt.Printf("    theme=%s created=%s\n", fact.Theme, fact.CreatedAt.Format("2006-01-02"))
		}
	}
}
