// Package main provides the WebSocket server for Luma.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/luma-go/internal/config"
	"github.com/raphaelgruber/luma-go/internal/db"
	"github.com/raphaelgruber/luma-go/internal/llm"
	"github.com/raphaelgruber/luma-go/internal/memory"
	"github.com/raphaelgruber/luma-go/internal/metrics"
	"github.com/raphaelgruber/luma-go/internal/orchestrator"
	"github.com/raphaelgruber/luma-go/internal/router"
	"github.com/raphaelgruber/luma-go/internal/server"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("starting luma-server", "addr", cfg.ListenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		cancel()
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := dbClient.InitSchema(ctx); err != nil {
		cancel()
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	cancel()
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	// Wipe database if requested (via flag or env var)
	if *wipeDB || os.Getenv("LUMA_WIPE_DB") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := dbClient.WipeData(ctx); err != nil {
			cancel()
			slog.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		cancel()
	}

	fast, err := llm.NewFastModel(cfg)
	if err != nil {
		slog.Error("failed to init fast backend", "error", err)
		os.Exit(1)
	}
	deep, err := llm.NewDeepModel(cfg)
	if err != nil {
		slog.Error("failed to init deep backend", "error", err)
		os.Exit(1)
	}

	// Shared across all connections; each connection gets its own
	// orchestrator because conversation state is per user.
	collector := metrics.NewCollector()
	runner := memory.NewGoRunner(logger)
	retriever := memory.NewRetriever(dbClient, cfg.RelevanceWeightsOrDefault(), logger)
	extractor := memory.NewExtractor(dbClient, deep, logger)
	route := router.New(fast, deep, logger)

	factory := func(userID string) (server.Conversation, error) {
		return orchestrator.New(
			dbClient, retriever, extractor, route, runner, collector,
			orchestrator.Options{
				UserID:             userID,
				SessionReuseWindow: cfg.SessionReuseWindow,
				MemoryLimit:        cfg.MemoryLimit,
				ComplexityWeights:  cfg.ComplexityWeightsOrDefault(),
				ThemeWeights:       cfg.ThemeWeightsOrDefault(),
			},
			logger,
		), nil
	}

	srv := server.New(factory, collector, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("WebSocket endpoint available", "path", "/ws")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Drain background extraction before exit.
	runner.Wait()

	slog.Info("server stopped")
}
