package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/citewatch-agent/internal/detector"
	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/internal/storage"
	"github.com/citewatch-agent/pkg/logger"
)

// Request carries one (query, engine) citation check
type Request struct {
	QueryID       string   `json:"queryId"`
	QueryText     string   `json:"queryText"`
	UserDomains   []string `json:"userDomains"`
	BrandKeywords []string `json:"brandKeywords"`
}

// Outcome is the adapter's result envelope. Failures resolve here as
// Success=false with a string-reduced Error; they never propagate as raw
// errors past the adapter boundary.
type Outcome struct {
	Success  bool             `json:"success"`
	Citation *detector.Result `json:"citation,omitempty"`
	Engine   string           `json:"engine"`
	QueryID  string           `json:"queryId"`
	Error    string           `json:"error,omitempty"`
}

// Adapter runs one engine's citation check end to end: call the provider,
// detect brand mentions in the answer, append a Citation row, and bump the
// query's last-run timestamp.
type Adapter struct {
	client Client
	repo   storage.Repository
	log    *logger.Logger
}

// NewAdapter creates an adapter around one engine client
func NewAdapter(client Client, repo storage.Repository, log *logger.Logger) *Adapter {
	return &Adapter{
		client: client,
		repo:   repo,
		log:    log.WithComponent("adapter").WithEngine(client.Name()),
	}
}

// Engine returns the wrapped engine's name
func (a *Adapter) Engine() string {
	return a.client.Name()
}

// Process performs the citation check. The returned Outcome always carries
// the engine name and query ID; callers branch on Success.
func (a *Adapter) Process(ctx context.Context, req Request) Outcome {
	outcome := Outcome{
		Engine:  a.client.Name(),
		QueryID: req.QueryID,
	}

	result, err := a.process(ctx, req)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("query_id", req.QueryID).
			Msg("Citation check failed")
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.Citation = result
	return outcome
}

func (a *Adapter) process(ctx context.Context, req Request) (*detector.Result, error) {
	if req.QueryID == "" || req.QueryText == "" {
		return nil, fmt.Errorf("%w: queryId and queryText are required", ErrInvalidRequest)
	}

	responseText, err := a.client.Complete(ctx, req.QueryText)
	if err != nil {
		return nil, err
	}
	if responseText == "" && !a.client.EmptyResponseOK() {
		return nil, fmt.Errorf("%w: %s returned no text", ErrEmptyResponse, a.client.Name())
	}

	result := detector.Detect(responseText, req.UserDomains, req.BrandKeywords, a.client.BaseConfidence())

	query, err := a.repo.GetQueryByID(ctx, req.QueryID)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrNotFound, req.QueryID, err)
	}

	now := time.Now().UTC()
	citation := &models.Citation{
		QueryID:      query.ID,
		UserID:       query.UserID,
		Engine:       a.client.Name(),
		ResponseText: responseText,
		Cited:        result.Cited,
		Position:     result.Position,
		Confidence:   result.Confidence,
		CheckedAt:    now,
	}
	if err := a.repo.CreateCitation(ctx, citation); err != nil {
		return nil, fmt.Errorf("%w: failed to save citation: %v", ErrPersistence, err)
	}

	// Best effort: the citation row is already committed, a stale last-run
	// only makes the query due again sooner.
	if err := a.repo.UpdateQueryLastRun(ctx, query.ID, now); err != nil {
		a.log.Warn().
			Err(err).
			Str("query_id", query.ID).
			Msg("Failed to update query last-run timestamp")
	}

	a.log.Info().
		Str("query_id", query.ID).
		Bool("cited", result.Cited).
		Float64("confidence", result.Confidence).
		Int("matches", result.MatchCount).
		Msg("Citation check completed")

	return &result, nil
}
