// Package orchestrator fans a user's tracked queries out across the enabled
// AI engines with bounded concurrency, isolating per-task failures.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/citewatch-agent/internal/engine"
	"github.com/citewatch-agent/internal/storage"
	"github.com/citewatch-agent/pkg/logger"
)

// Batch sizes by priority. Priority maps directly to throughput so paying
// tiers get faster turnaround.
const (
	batchSizeHigh   = 5
	batchSizeNormal = 3
	batchSizeLow    = 1
)

// interBatchDelay is the pause between successive concurrency groups. It is
// the system's sole serialization point and its rate-limiting backstop for
// upstream providers.
const interBatchDelay = time.Second

// Priorities
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Result aggregates one batch run
type Result struct {
	ProcessedCount int                `json:"processedCount"`
	FailedCount    int                `json:"failedCount"`
	TotalQueries   int                `json:"totalQueries"`
	Statuses       []ProcessingStatus `json:"statuses"`
}

// task is one (query, engine) unit of work
type task struct {
	queryID   string
	queryText string
	engine    string
	status    *taskStatus
}

// Orchestrator runs citation checks for a user's queries
type Orchestrator struct {
	adapters map[string]*engine.Adapter
	repo     storage.Repository
	log      *logger.Logger

	// delay is swapped out in tests to avoid real sleeps
	delay func(ctx context.Context, d time.Duration)
}

// New creates a batch orchestrator over the given engine adapters
func New(adapters map[string]*engine.Adapter, repo storage.Repository, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		adapters: adapters,
		repo:     repo,
		log:      log.WithComponent("orchestrator"),
		delay:    sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Run executes citation checks for the user's active queries, optionally
// restricted to queryIDs and engines. Only the upfront query/domain loads can
// fail the call; individual task failures are folded into the Result.
func (o *Orchestrator) Run(ctx context.Context, userID string, queryIDs, engines []string, priority string) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}

	log := o.log.WithUserID(userID)

	queries, err := o.repo.ListQueries(ctx, storage.ActiveQueryFilter(userID, queryIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	if len(queries) == 0 {
		log.Info().Msg("No active queries to process")
		return &Result{Statuses: []ProcessingStatus{}}, nil
	}

	domains, err := o.repo.ListDomains(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load domains: %w", err)
	}

	userDomains := make([]string, 0, len(domains))
	brandKeywords := make([]string, 0, len(domains))
	for _, domain := range domains {
		userDomains = append(userDomains, domain.Host)
		brandKeywords = append(brandKeywords, domain.BrandKeyword())
	}

	// Build the full task list upfront so every (query, engine) pair is
	// observable even when execution fails part way through.
	var tasks []*task
	for _, query := range queries {
		for _, engineName := range query.EnabledEngines(engines) {
			tasks = append(tasks, &task{
				queryID:   query.ID,
				queryText: query.Text,
				engine:    engineName,
				status:    newStatus(query.ID, engineName),
			})
		}
	}

	log.Info().
		Int("queries", len(queries)).
		Int("tasks", len(tasks)).
		Str("priority", priority).
		Msg("Starting citation batch")

	o.execute(ctx, tasks, userDomains, brandKeywords, batchSize(priority))

	result := &Result{
		TotalQueries: len(queries),
		Statuses:     make([]ProcessingStatus, 0, len(tasks)),
	}
	for _, t := range tasks {
		snap := t.status.snapshot()
		result.Statuses = append(result.Statuses, snap)
		switch snap.State {
		case StateCompleted:
			result.ProcessedCount++
		case StateFailed:
			result.FailedCount++
		}
	}

	log.Info().
		Int("processed", result.ProcessedCount).
		Int("failed", result.FailedCount).
		Int("total_queries", result.TotalQueries).
		Msg("Citation batch completed")

	return result, nil
}

// execute runs tasks in concurrency groups of size batchSize. Group N+1 never
// starts before group N has fully settled and the inter-batch delay elapsed.
func (o *Orchestrator) execute(ctx context.Context, tasks []*task, userDomains, brandKeywords []string, batchSize int) {
	for start := 0; start < len(tasks); start += batchSize {
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		group := tasks[start:end]

		done := make(chan struct{}, len(group))
		for _, t := range group {
			go func(t *task) {
				defer func() {
					if r := recover(); r != nil {
						t.status.transition(StateFailed, fmt.Sprintf("panic: %v", r))
					}
					done <- struct{}{}
				}()
				o.runTask(ctx, t, userDomains, brandKeywords)
			}(t)
		}
		for range group {
			<-done
		}

		if end < len(tasks) {
			o.delay(ctx, interBatchDelay)
		}
	}
}

// runTask executes one (query, engine) check and records the outcome on its
// status. Failures stay inside the task; siblings keep running.
func (o *Orchestrator) runTask(ctx context.Context, t *task, userDomains, brandKeywords []string) {
	t.status.transition(StateProcessing, "")

	adapter, ok := o.adapters[t.engine]
	if !ok {
		t.status.transition(StateFailed, fmt.Sprintf("engine %s is not configured", t.engine))
		return
	}

	outcome := adapter.Process(ctx, engine.Request{
		QueryID:       t.queryID,
		QueryText:     t.queryText,
		UserDomains:   userDomains,
		BrandKeywords: brandKeywords,
	})
	if !outcome.Success {
		t.status.transition(StateFailed, outcome.Error)
		return
	}
	t.status.transition(StateCompleted, "")
}

func batchSize(priority string) int {
	switch priority {
	case PriorityHigh:
		return batchSizeHigh
	case PriorityLow:
		return batchSizeLow
	default:
		return batchSizeNormal
	}
}
