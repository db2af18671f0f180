package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/citewatch-agent/internal/config"
	"github.com/citewatch-agent/internal/engine"
	"github.com/citewatch-agent/internal/orchestrator"
	"github.com/citewatch-agent/internal/scheduler"
	"github.com/citewatch-agent/internal/storage/sqlite"
	"github.com/citewatch-agent/pkg/logger"
	"github.com/citewatch-agent/pkg/ratelimit"
)

var (
	cfgFile string
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "citewatch-scheduler",
		Short: "Background scheduler for AI citation tracking",
		Long: `Runs scheduled citation checks in the background.
This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting CiteWatch Scheduler")

	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Start health check server for the hosting platform
	go startHealthServer()

	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterOpenAI, float64(cfg.RateLimit.OpenAIRequestsPerMinute)/60, 5)
	limiter.AddLimiter(ratelimit.LimiterPerplexity, float64(cfg.RateLimit.PerplexityRequestsPerMinute)/60, 3)
	limiter.AddLimiter(ratelimit.LimiterGemini, float64(cfg.RateLimit.GeminiRequestsPerMinute)/60, 5)

	registry := engine.NewRegistryFromConfig(context.Background(), cfg.Providers, limiter, log)
	adapters := engine.NewAdapters(registry, repo, log)

	orch := orchestrator.New(adapters, repo, log)
	sched := scheduler.New(orch, repo, log)

	// Create cron scheduler
	c := cron.New(cron.WithLogger(cronLogger{log}))

	// Schedule daily run
	_, err = c.AddFunc(cfg.Scheduler.DailyCron, func() {
		runSchedule(sched, scheduler.RunDaily)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule daily run: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.DailyCron).Msg("Daily run scheduled")

	// Schedule weekly run
	_, err = c.AddFunc(cfg.Scheduler.WeeklyCron, func() {
		runSchedule(sched, scheduler.RunWeekly)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule weekly run: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.WeeklyCron).Msg("Weekly run scheduled")

	// Start scheduler
	c.Start()
	log.Info().Msg("Scheduler started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	c.Stop()

	return nil
}

func runSchedule(sched *scheduler.Scheduler, runType string) {
	ctx := context.Background()
	log.Info().Str("type", runType).Msg("Running scheduled citation checks")

	summary, err := sched.Run(ctx, runType, nil, "")
	if err != nil {
		log.Error().Err(err).Str("type", runType).Msg("Scheduled run failed")
		return
	}

	log.Info().
		Str("type", runType).
		Int("users_processed", summary.ProcessedUsers).
		Int("users_skipped", summary.SkippedUsers).
		Int("queries_submitted", summary.TotalQueries).
		Int("queries_processed", summary.ProcessedQueries).
		Int("errors", len(summary.Errors)).
		Msg("Scheduled run completed")
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("CiteWatch Scheduler"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
