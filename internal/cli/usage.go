package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/luma-go/internal/metrics"
	"github.com/raphaelgruber/luma-go/internal/models"
)

var usageServerURL string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show usage statistics",
	Long: `Show stored data counts for the configured user, plus runtime
statistics from a running luma-server if one is reachable.

Examples:
  luma usage
  luma usage --server http://localhost:8487`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageServerURL, "server", "", "luma-server base URL for runtime stats (default derived from listen_addr)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	if cfg.UserID == "" {
		return fmt.Errorf("no user configured (set LUMA_USER_ID or --user)")
	}
	ctx := context.Background()

	sessions, err := dbClient.QueryListSessions(ctx, cfg.UserID, 1000)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	counts, err := dbClient.QueryMemoryCounts(ctx, cfg.UserID)
	if err != nil {
		return fmt.Errorf("memory counts: %w", err)
	}

	active := 0
	for _, s := range sessions {
		if s.Status == models.SessionActive {
			active++
		}
	}
	totalMemories := 0
	for _, c := range counts {
		totalMemories += c.Count
	}

	fmt.Printf("Stored Data (%s)\n", cfg.UserID)
	fmt.Printf("═══════════════════════════════════════\n")
	fmt.Printf("Sessions: %d (%d active)\n", len(sessions), active)
	fmt.Printf("Memories: %d\n", totalMemories)
	for _, c := range counts {
		fmt.Printf("  %-14s %d\n", c.Category, c.Count)
	}

	printServerStats(serverBaseURL())
	return nil
}

// serverBaseURL derives a stats URL from the flag or the configured
// listen address.
func serverBaseURL() string {
	if usageServerURL != "" {
		return strings.TrimRight(usageServerURL, "/")
	}
	addr := cfg.ListenAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// printServerStats fetches and displays runtime statistics from a running
// server. A missing server is not an error; the CLI works without one.
func printServerStats(baseURL string) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/stats")
	if err != nil {
		fmt.Printf("\nServer: not reachable at %s\n", baseURL)
		return
	}
	defer resp.Body.Close()

	var snapshot metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		fmt.Printf("\nServer: bad stats response: %v\n", err)
		return
	}

	fmt.Printf("\nServer Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snapshot.UptimeSeconds)

	printOpStats("Turns", snapshot.Turn)
	printOpStats("Memory Retrieval", snapshot.MemoryRetrieval)
	printOpStats("Context Assembly", snapshot.ContextAssembly)
	printOpStats("LLM Fast", snapshot.LLMFast)
	printOpStats("LLM Deep", snapshot.LLMDeep)
	printOpStats("DB Query", snapshot.DBQuery)
}

// printOpStats displays timing statistics for an operation.
func printOpStats(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}
	fmt.Printf("\n%s:\n", name)
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
