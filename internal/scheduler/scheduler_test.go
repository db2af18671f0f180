package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/internal/orchestrator"
	"github.com/citewatch-agent/internal/storage/storagetest"
	"github.com/citewatch-agent/pkg/logger"
)

// fakeRunner records batch submissions without doing any work
type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall
	err   error
	// failFor makes Run error for a specific user
	failFor string
	// processed overrides the reported processed count; -1 means "all submitted"
	processed int
}

type runnerCall struct {
	userID   string
	queryIDs []string
	priority string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{processed: -1}
}

func (f *fakeRunner) Run(ctx context.Context, userID string, queryIDs, engines []string, priority string) (*orchestrator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failFor != "" && f.failFor == userID {
		return nil, errors.New("orchestrator unavailable")
	}
	f.calls = append(f.calls, runnerCall{userID: userID, queryIDs: queryIDs, priority: priority})
	processed := f.processed
	if processed < 0 {
		processed = len(queryIDs)
	}
	return &orchestrator.Result{
		ProcessedCount: processed,
		TotalQueries:   len(queryIDs),
	}, nil
}

func (f *fakeRunner) callFor(userID string) (runnerCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if call.userID == userID {
			return call, true
		}
	}
	return runnerCall{}, false
}

func newTestScheduler(repo *storagetest.Repository, runner BatchRunner) *Scheduler {
	s := New(runner, repo, logger.New(logger.Config{Level: "error", Format: "json"}))
	s.delay = func(ctx context.Context, d time.Duration) {}
	return s
}

func seedUser(t *testing.T, repo *storagetest.Repository, id string, plan models.Plan, queryCount int, lastRun *time.Time) {
	t.Helper()
	ctx := context.Background()
	if err := repo.CreateUser(ctx, &models.User{ID: id, Email: id + "@example.com", Plan: plan}); err != nil {
		t.Fatal(err)
	}
	base := time.Now().Add(-2 * time.Hour)
	for i := 0; i < queryCount; i++ {
		query := &models.Query{
			ID:        fmt.Sprintf("%s-q%02d", id, i),
			UserID:    id,
			Text:      "best crm software",
			Engines:   models.StringSlice{models.EngineChatGPT},
			Status:    models.QueryStatusActive,
			LastRunAt: lastRun,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.CreateQuery(ctx, query); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunCapsAtPlanDailyRuns(t *testing.T) {
	repo := storagetest.New()
	seedUser(t, repo, "free-user", models.PlanFree, 10, nil)

	runner := newFakeRunner()
	s := newTestScheduler(repo, runner)

	summary, err := s.Run(context.Background(), RunDaily, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	call, ok := runner.callFor("free-user")
	if !ok {
		t.Fatal("Expected a batch submission")
	}
	if len(call.queryIDs) != 5 {
		t.Errorf("Expected 5 queries submitted (free dailyRuns), got %d", len(call.queryIDs))
	}
	if summary.TotalQueries != 5 {
		t.Errorf("Expected totalQueries 5, got %d", summary.TotalQueries)
	}

	user, err := repo.GetUserByID(context.Background(), "free-user")
	if err != nil {
		t.Fatal(err)
	}
	if user.QueriesUsed != 5 {
		t.Errorf("Expected usage counter 5, got %d", user.QueriesUsed)
	}
}

func TestRunUsageChargedBySubmittedCount(t *testing.T) {
	repo := storagetest.New()
	seedUser(t, repo, "free-user", models.PlanFree, 5, nil)

	runner := newFakeRunner()
	runner.processed = 2 // 3 of 5 submitted tasks fail downstream
	s := newTestScheduler(repo, runner)

	summary, err := s.Run(context.Background(), RunDaily, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	user, err := repo.GetUserByID(context.Background(), "free-user")
	if err != nil {
		t.Fatal(err)
	}
	if user.QueriesUsed != 5 {
		t.Errorf("Expected usage 5 regardless of task failures, got %d", user.QueriesUsed)
	}
	if summary.ProcessedQueries != 2 {
		t.Errorf("Expected processedQueries 2, got %d", summary.ProcessedQueries)
	}
}

func TestRunPlanMapsToPriority(t *testing.T) {
	tests := []struct {
		plan models.Plan
		want string
	}{
		{models.PlanAgency, "high"},
		{models.PlanPro, "normal"},
		{models.PlanFree, "low"},
		{models.Plan("enterprise"), "low"}, // unknown plan falls back to free
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			repo := storagetest.New()
			seedUser(t, repo, "user-1", tt.plan, 1, nil)

			runner := newFakeRunner()
			s := newTestScheduler(repo, runner)

			if _, err := s.Run(context.Background(), RunDaily, nil, ""); err != nil {
				t.Fatal(err)
			}
			call, ok := runner.callFor("user-1")
			if !ok {
				t.Fatal("Expected a batch submission")
			}
			if call.priority != tt.want {
				t.Errorf("Expected priority %q, got %q", tt.want, call.priority)
			}
		})
	}
}

func TestRunDueFiltering(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	stale := time.Now().Add(-25 * time.Hour)
	week := time.Now().Add(-169 * time.Hour)

	tests := []struct {
		name    string
		runType string
		lastRun *time.Time
		wantRun bool
	}{
		{"daily skips recent", RunDaily, &recent, false},
		{"daily picks stale", RunDaily, &stale, true},
		{"daily picks never-run", RunDaily, nil, true},
		{"weekly skips day-old", RunWeekly, &stale, false},
		{"weekly picks week-old", RunWeekly, &week, true},
		{"manual always due", RunManual, &recent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := storagetest.New()
			seedUser(t, repo, "user-1", models.PlanPro, 1, tt.lastRun)

			runner := newFakeRunner()
			s := newTestScheduler(repo, runner)

			summary, err := s.Run(context.Background(), tt.runType, nil, "")
			if err != nil {
				t.Fatal(err)
			}
			_, ran := runner.callFor("user-1")
			if ran != tt.wantRun {
				t.Errorf("Expected run=%v, got %v", tt.wantRun, ran)
			}
			if !tt.wantRun && summary.SkippedUsers != 1 {
				t.Errorf("Expected user counted as skipped, got %d", summary.SkippedUsers)
			}
		})
	}
}

func TestRunUserFailureDoesNotAbortRun(t *testing.T) {
	repo := storagetest.New()
	seedUser(t, repo, "user-a", models.PlanPro, 2, nil)
	seedUser(t, repo, "user-b", models.PlanPro, 2, nil)

	runner := newFakeRunner()
	runner.failFor = "user-a"
	s := newTestScheduler(repo, runner)

	summary, err := s.Run(context.Background(), RunDaily, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	if summary.ProcessedUsers != 1 {
		t.Errorf("Expected 1 processed user, got %d", summary.ProcessedUsers)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("Expected 1 recorded error, got %d", len(summary.Errors))
	}
	if _, ok := runner.callFor("user-b"); !ok {
		t.Error("Expected the run to continue to the next user")
	}

	// A failed orchestrator call charges no usage
	user, err := repo.GetUserByID(context.Background(), "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if user.QueriesUsed != 0 {
		t.Errorf("Expected no usage charged on user-level failure, got %d", user.QueriesUsed)
	}
}

func TestRunMonthlyQuotaExhaustedSkipsUser(t *testing.T) {
	repo := storagetest.New()
	ctx := context.Background()
	if err := repo.CreateUser(ctx, &models.User{ID: "user-1", Email: "u@example.com", Plan: models.PlanFree, QueriesUsed: 50}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateQuery(ctx, &models.Query{
		ID: "q1", UserID: "user-1", Text: "anything",
		Engines: models.StringSlice{models.EngineChatGPT},
		Status:  models.QueryStatusActive,
	}); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	s := newTestScheduler(repo, runner)

	summary, err := s.Run(ctx, RunDaily, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if summary.SkippedUsers != 1 {
		t.Errorf("Expected user skipped at monthly cap, got %d skipped", summary.SkippedUsers)
	}
	if _, ok := runner.callFor("user-1"); ok {
		t.Error("Expected no submission for a user at the monthly cap")
	}
}

func TestRunUserFilterAndUnknownType(t *testing.T) {
	repo := storagetest.New()
	seedUser(t, repo, "user-a", models.PlanPro, 1, nil)
	seedUser(t, repo, "user-b", models.PlanPro, 1, nil)

	runner := newFakeRunner()
	s := newTestScheduler(repo, runner)

	summary, err := s.Run(context.Background(), RunManual, []string{"user-b"}, "high")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalUsers != 1 {
		t.Errorf("Expected 1 targeted user, got %d", summary.TotalUsers)
	}
	call, ok := runner.callFor("user-b")
	if !ok {
		t.Fatal("Expected submission for user-b")
	}
	if call.priority != "high" {
		t.Errorf("Expected explicit priority to win, got %q", call.priority)
	}

	if _, err := s.Run(context.Background(), "hourly", nil, ""); err == nil {
		t.Error("Expected error for unknown schedule type")
	}
}
