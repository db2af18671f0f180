// Package scheduler selects users whose tracked queries are due, applies
// plan-tier quotas, and hands each user's capped query list to the batch
// orchestrator. It holds no timers; an external cron trigger invokes Run.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/internal/orchestrator"
	"github.com/citewatch-agent/internal/plans"
	"github.com/citewatch-agent/internal/storage"
	"github.com/citewatch-agent/pkg/logger"
)

// Run cadences
const (
	RunDaily  = "daily"
	RunWeekly = "weekly"
	RunManual = "manual"
)

// interUserDelay smooths outbound load between users
const interUserDelay = 100 * time.Millisecond

// BatchRunner is the orchestrator capability the scheduler depends on
type BatchRunner interface {
	Run(ctx context.Context, userID string, queryIDs, engines []string, priority string) (*orchestrator.Result, error)
}

// Summary aggregates one scheduled run
type Summary struct {
	Type             string        `json:"type"`
	TotalUsers       int           `json:"totalUsers"`
	ProcessedUsers   int           `json:"processedUsers"`
	SkippedUsers     int           `json:"skippedUsers"`
	TotalQueries     int           `json:"totalQueries"`
	ProcessedQueries int           `json:"processedQueries"`
	Errors           []string      `json:"errors"`
	Duration         time.Duration `json:"duration"`
}

// Scheduler runs quota-capped citation checks on a cadence
type Scheduler struct {
	runner BatchRunner
	repo   storage.Repository
	log    *logger.Logger

	// now and delay are swapped out in tests
	now   func() time.Time
	delay func(ctx context.Context, d time.Duration)
}

// New creates a scheduler over the given batch runner
func New(runner BatchRunner, repo storage.Repository, log *logger.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		repo:   repo,
		log:    log.WithComponent("scheduler"),
		now:    time.Now,
		delay: func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// Run executes one scheduling cycle. Per-user failures are recorded in the
// summary and never abort the run; only a failure loading the user list fails
// the whole call. priority overrides the plan-derived priority when set.
func (s *Scheduler) Run(ctx context.Context, runType string, userIDs []string, priority string) (*Summary, error) {
	switch runType {
	case RunDaily, RunWeekly, RunManual:
	default:
		return nil, fmt.Errorf("unknown schedule type: %q", runType)
	}

	started := s.now()
	summary := &Summary{Type: runType, Errors: []string{}}

	users, err := s.repo.ListUsers(ctx, storage.UserFilter{IDs: userIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	summary.TotalUsers = len(users)

	s.log.Info().
		Str("type", runType).
		Int("users", len(users)).
		Msg("Starting scheduled run")

	for i, user := range users {
		if i > 0 {
			s.delay(ctx, interUserDelay)
		}
		s.runUser(ctx, runType, priority, user, summary)
	}

	summary.Duration = s.now().Sub(started)

	s.log.Info().
		Str("type", runType).
		Int("processed_users", summary.ProcessedUsers).
		Int("skipped_users", summary.SkippedUsers).
		Int("total_queries", summary.TotalQueries).
		Int("processed_queries", summary.ProcessedQueries).
		Int("errors", len(summary.Errors)).
		Dur("duration", summary.Duration).
		Msg("Scheduled run completed")

	return summary, nil
}

func (s *Scheduler) runUser(ctx context.Context, runType, priority string, user *models.User, summary *Summary) {
	log := s.log.WithUserID(user.ID)
	quota := plans.QuotaFor(user.Plan)

	if user.QueriesUsed >= quota.MonthlyQueries {
		log.Warn().
			Int("used", user.QueriesUsed).
			Int("monthly_limit", quota.MonthlyQueries).
			Msg("Monthly query quota exhausted, skipping user")
		summary.SkippedUsers++
		return
	}

	queries, err := s.repo.ListQueries(ctx, storage.ActiveQueryFilter(user.ID, nil))
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("user %s: failed to load queries: %v", user.ID, err))
		return
	}

	now := s.now()
	var due []string
	for _, query := range queries {
		if query.DueFor(runType, now) {
			due = append(due, query.ID)
		}
	}
	if len(due) == 0 {
		log.Debug().Msg("No due queries, skipping user")
		summary.SkippedUsers++
		return
	}

	// Cap by the plan's per-cycle limit in natural list order; no staleness
	// fairness across query age.
	if len(due) > quota.DailyRuns {
		due = due[:quota.DailyRuns]
	}
	// Never submit past the remaining monthly allowance
	if remaining := quota.MonthlyQueries - user.QueriesUsed; len(due) > remaining {
		due = due[:remaining]
	}

	runPriority := priority
	if runPriority == "" {
		runPriority = plans.PriorityFor(user.Plan)
	}

	log.Info().
		Int("due", len(due)).
		Str("priority", runPriority).
		Msg("Submitting user's due queries")

	result, err := s.runner.Run(ctx, user.ID, due, nil, runPriority)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("user %s: %v", user.ID, err))
		return
	}

	// Usage is charged by submitted count, not completed count: an attempted
	// query consumes quota even when the provider call fails downstream.
	if err := s.repo.IncrementQueriesUsed(ctx, user.ID, len(due)); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("user %s: failed to record usage: %v", user.ID, err))
	}

	summary.ProcessedUsers++
	summary.TotalQueries += len(due)
	summary.ProcessedQueries += result.ProcessedCount
}
