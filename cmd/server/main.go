package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/citewatch-agent/internal/api"
	"github.com/citewatch-agent/internal/config"
	"github.com/citewatch-agent/internal/engine"
	"github.com/citewatch-agent/internal/orchestrator"
	"github.com/citewatch-agent/internal/scheduler"
	"github.com/citewatch-agent/internal/storage/sqlite"
	"github.com/citewatch-agent/pkg/logger"
	"github.com/citewatch-agent/pkg/ratelimit"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "citewatch-server",
		Short: "HTTP API for AI citation tracking",
		Long: `Serves the citation-check API: per-engine checks, batch orchestration,
and schedule triggers, as JSON over POST.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting CiteWatch API server")

	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	limiter := newLimiter(cfg.RateLimit)

	ctx := context.Background()
	registry := engine.NewRegistryFromConfig(ctx, cfg.Providers, limiter, log)
	adapters := engine.NewAdapters(registry, repo, log)

	orch := orchestrator.New(adapters, repo, log)
	sched := scheduler.New(orch, repo, log)

	handler := api.NewHandler(adapters, orch, sched, repo, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // batch runs hold the connection open
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLimiter(cfg config.RateLimitConfig) *ratelimit.MultiLimiter {
	m := ratelimit.NewMultiLimiter()
	m.AddLimiter(ratelimit.LimiterOpenAI, float64(cfg.OpenAIRequestsPerMinute)/60, 5)
	m.AddLimiter(ratelimit.LimiterPerplexity, float64(cfg.PerplexityRequestsPerMinute)/60, 3)
	m.AddLimiter(ratelimit.LimiterGemini, float64(cfg.GeminiRequestsPerMinute)/60, 5)
	return m
}
