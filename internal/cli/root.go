// Package cli provides the command-line interface for luma.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/luma-go/internal/config"
	"github.com/raphaelgruber/luma-go/internal/db"
	"github.com/raphaelgruber/luma-go/internal/llm"
	"github.com/raphaelgruber/luma-go/internal/memory"
	"github.com/raphaelgruber/luma-go/internal/metrics"
	"github.com/raphaelgruber/luma-go/internal/orchestrator"
	"github.com/raphaelgruber/luma-go/internal/router"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose  bool
	userFlag string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client

	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "luma",
	Short: "Memory-augmented AI companion",
	Long: `Luma is a memory-augmented conversational companion. It remembers
what matters across sessions, routes each message to the right
generation backend for its complexity, and nudges toward reflection
when the conversation calls for it.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load config
		cfg = config.Load()
		if userFlag != "" {
			cfg.UserID = userFlag
		}

		logger, closer := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		closeLog = closer
		slog.SetDefault(logger)

		// Connect to database
		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		// Initialize schema
		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Close database connection
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// buildOrchestrator wires the full turn pipeline. The runner is returned
// so callers can drain background extraction before exit.
func buildOrchestrator() (*orchestrator.Orchestrator, *memory.GoRunner, error) {
	fast, err := llm.NewFastModel(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init fast backend: %w", err)
	}
	deep, err := llm.NewDeepModel(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init deep backend: %w", err)
	}

	runner := memory.NewGoRunner(nil)
	orch := orchestrator.New(
		dbClient,
		memory.NewRetriever(dbClient, cfg.RelevanceWeightsOrDefault(), nil),
		memory.NewExtractor(dbClient, deep, nil),
		router.New(fast, deep, nil),
		runner,
		metrics.NewCollector(),
		orchestrator.Options{
			UserID:             cfg.UserID,
			SessionReuseWindow: cfg.SessionReuseWindow,
			MemoryLimit:        cfg.MemoryLimit,
			ComplexityWeights:  cfg.ComplexityWeightsOrDefault(),
			ThemeWeights:       cfg.ThemeWeightsOrDefault(),
		},
		nil,
	)
	return orch, runner, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user partition (overrides LUMA_USER_ID)")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(memoriesCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(wipeCmd)
}
