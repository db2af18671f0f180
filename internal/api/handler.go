// Package api exposes the engine adapters, batch orchestrator, and scheduler
// as JSON-over-POST endpoints. Handlers translate failures into structured
// envelopes; no raw error or stack trace reaches a caller.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citewatch-agent/internal/engine"
	"github.com/citewatch-agent/internal/orchestrator"
	"github.com/citewatch-agent/internal/scheduler"
	"github.com/citewatch-agent/internal/storage"
	"github.com/citewatch-agent/pkg/logger"
)

// BatchRunner runs one orchestration pass for a user
type BatchRunner interface {
	Run(ctx context.Context, userID string, queryIDs, engines []string, priority string) (*orchestrator.Result, error)
}

// ScheduleRunner runs one scheduling cycle
type ScheduleRunner interface {
	Run(ctx context.Context, runType string, userIDs []string, priority string) (*scheduler.Summary, error)
}

// Handler serves the citation-check API
type Handler struct {
	adapters  map[string]*engine.Adapter
	batch     BatchRunner
	scheduler ScheduleRunner
	repo      storage.Repository
	log       *logger.Logger
}

// NewHandler creates the API handler
func NewHandler(adapters map[string]*engine.Adapter, batch BatchRunner, sched ScheduleRunner, repo storage.Repository, log *logger.Logger) *Handler {
	return &Handler{
		adapters:  adapters,
		batch:     batch,
		scheduler: sched,
		repo:      repo,
		log:       log.WithComponent("api"),
	}
}

// JSON writes v as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleEngine runs a single (query, engine) citation check.
// POST /api/v1/engines/{engine}
func (h *Handler) HandleEngine(w http.ResponseWriter, r *http.Request) {
	engineName := chi.URLParam(r, "engine")

	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSON(w, http.StatusBadRequest, engine.Outcome{
			Engine: engineName,
			Error:  "invalid request body",
		})
		return
	}

	adapter, ok := h.adapters[engineName]
	if !ok {
		JSON(w, http.StatusInternalServerError, engine.Outcome{
			Engine:  engineName,
			QueryID: req.QueryID,
			Error:   "configuration error: engine " + engineName + " is not configured",
		})
		return
	}

	outcome := adapter.Process(r.Context(), req)
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusInternalServerError
	}
	JSON(w, status, outcome)
}

type batchRequest struct {
	UserID   string   `json:"userId"`
	QueryIDs []string `json:"queryIds,omitempty"`
	Engines  []string `json:"engines,omitempty"`
	Priority string   `json:"priority,omitempty"`
}

type batchResponse struct {
	Success        bool                            `json:"success"`
	ProcessedCount int                             `json:"processedCount"`
	FailedCount    int                             `json:"failedCount"`
	TotalQueries   int                             `json:"totalQueries"`
	Statuses       []orchestrator.ProcessingStatus `json:"statuses"`
	Message        string                          `json:"message"`
}

// HandleBatch runs a batch of citation checks for one user.
// POST /api/v1/batch
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSON(w, http.StatusBadRequest, batchResponse{Message: "invalid request body"})
		return
	}
	if req.UserID == "" {
		JSON(w, http.StatusBadRequest, batchResponse{Message: "userId is required"})
		return
	}

	result, err := h.batch.Run(r.Context(), req.UserID, req.QueryIDs, req.Engines, req.Priority)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Batch run failed")
		JSON(w, http.StatusInternalServerError, batchResponse{Message: err.Error()})
		return
	}

	JSON(w, http.StatusOK, batchResponse{
		Success:        true,
		ProcessedCount: result.ProcessedCount,
		FailedCount:    result.FailedCount,
		TotalQueries:   result.TotalQueries,
		Statuses:       result.Statuses,
		Message:        "batch completed",
	})
}

type scheduleRequest struct {
	Type     string   `json:"type"`
	UserIDs  []string `json:"userIds,omitempty"`
	Priority string   `json:"priority,omitempty"`
}

type scheduleResponse struct {
	Success bool               `json:"success"`
	Type    string             `json:"type"`
	Summary *scheduler.Summary `json:"summary,omitempty"`
	Message string             `json:"message"`
}

// HandleSchedule triggers one scheduling cycle.
// POST /api/v1/schedule
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSON(w, http.StatusBadRequest, scheduleResponse{Message: "invalid request body"})
		return
	}

	summary, err := h.scheduler.Run(r.Context(), req.Type, req.UserIDs, req.Priority)
	if err != nil {
		h.log.Error().Err(err).Str("type", req.Type).Msg("Scheduled run failed")
		JSON(w, http.StatusInternalServerError, scheduleResponse{Type: req.Type, Message: err.Error()})
		return
	}

	JSON(w, http.StatusOK, scheduleResponse{
		Success: true,
		Type:    req.Type,
		Summary: summary,
		Message: "schedule completed",
	})
}

// HandleListCitations returns the citation history for a query.
// GET /api/v1/queries/{queryID}/citations
func (h *Handler) HandleListCitations(w http.ResponseWriter, r *http.Request) {
	queryID := chi.URLParam(r, "queryID")

	citations, err := h.repo.ListCitations(r.Context(), storage.CitationFilter{
		QueryID:   queryID,
		Limit:     100,
		OrderDesc: true,
	})
	if err != nil {
		h.log.Error().Err(err).Str("query_id", queryID).Msg("Failed to list citations")
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load citations"})
		return
	}

	JSON(w, http.StatusOK, citations)
}

// HandleHealth reports liveness.
// GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
