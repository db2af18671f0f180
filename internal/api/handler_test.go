package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citewatch-agent/internal/engine"
	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/internal/orchestrator"
	"github.com/citewatch-agent/internal/scheduler"
	"github.com/citewatch-agent/internal/storage/storagetest"
	"github.com/citewatch-agent/pkg/logger"
)

type fakeEngineClient struct {
	name string
	text string
	err  error
}

func (f *fakeEngineClient) Name() string            { return f.name }
func (f *fakeEngineClient) BaseConfidence() float64 { return 0.5 }
func (f *fakeEngineClient) EmptyResponseOK() bool   { return false }
func (f *fakeEngineClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

type fakeBatch struct {
	result *orchestrator.Result
	err    error
}

func (f *fakeBatch) Run(ctx context.Context, userID string, queryIDs, engines []string, priority string) (*orchestrator.Result, error) {
	return f.result, f.err
}

type fakeSchedule struct {
	summary *scheduler.Summary
	err     error
}

func (f *fakeSchedule) Run(ctx context.Context, runType string, userIDs []string, priority string) (*scheduler.Summary, error) {
	return f.summary, f.err
}

func newTestHandler(t *testing.T, repo *storagetest.Repository, batch BatchRunner, sched ScheduleRunner, clients ...engine.Client) *Handler {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	adapters := make(map[string]*engine.Adapter)
	for _, client := range clients {
		adapters[client.Name()] = engine.NewAdapter(client, repo, log)
	}
	return NewHandler(adapters, batch, sched, repo, log)
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleEngineSuccess(t *testing.T) {
	repo := storagetest.New()
	ctx := context.Background()
	if err := repo.CreateUser(ctx, &models.User{ID: "user-1", Email: "u@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateQuery(ctx, &models.Query{
		ID: "query-1", UserID: "user-1", Text: "best shoes",
		Engines: models.StringSlice{models.EngineChatGPT},
		Status:  models.QueryStatusActive,
	}); err != nil {
		t.Fatal(err)
	}

	client := &fakeEngineClient{name: models.EngineChatGPT, text: "Visit acme.com for great shoes."}
	h := newTestHandler(t, repo, &fakeBatch{}, &fakeSchedule{}, client)
	router := h.Router([]string{"*"})

	w := postJSON(t, router, "/api/v1/engines/chatgpt", engine.Request{
		QueryID:     "query-1",
		QueryText:   "best shoes",
		UserDomains: []string{"acme.com"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var outcome engine.Outcome
	if err := json.NewDecoder(w.Body).Decode(&outcome); err != nil {
		t.Fatal(err)
	}
	if !outcome.Success {
		t.Fatalf("Expected success, got error %q", outcome.Error)
	}
	if outcome.Engine != models.EngineChatGPT || outcome.QueryID != "query-1" {
		t.Errorf("Envelope mislabeled: %+v", outcome)
	}
	if outcome.Citation == nil || !outcome.Citation.Cited {
		t.Error("Expected a cited detection result")
	}
	if repo.CitationCount() != 1 {
		t.Errorf("Expected 1 persisted citation, got %d", repo.CitationCount())
	}
}

func TestHandleEngineProviderFailure(t *testing.T) {
	repo := storagetest.New()
	client := &fakeEngineClient{name: models.EngineChatGPT, err: errors.New("upstream 500")}
	h := newTestHandler(t, repo, &fakeBatch{}, &fakeSchedule{}, client)
	router := h.Router([]string{"*"})

	w := postJSON(t, router, "/api/v1/engines/chatgpt", engine.Request{
		QueryID:   "query-1",
		QueryText: "best shoes",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	var outcome engine.Outcome
	if err := json.NewDecoder(w.Body).Decode(&outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.Success || outcome.Error == "" {
		t.Errorf("Expected failure envelope, got %+v", outcome)
	}
}

func TestHandleEngineNotConfigured(t *testing.T) {
	repo := storagetest.New()
	h := newTestHandler(t, repo, &fakeBatch{}, &fakeSchedule{})
	router := h.Router([]string{"*"})

	w := postJSON(t, router, "/api/v1/engines/gemini", engine.Request{
		QueryID:   "query-1",
		QueryText: "best shoes",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
}

func TestHandleBatch(t *testing.T) {
	repo := storagetest.New()
	batch := &fakeBatch{result: &orchestrator.Result{
		ProcessedCount: 3,
		FailedCount:    1,
		TotalQueries:   2,
		Statuses:       []orchestrator.ProcessingStatus{},
	}}
	h := newTestHandler(t, repo, batch, &fakeSchedule{})
	router := h.Router([]string{"*"})

	w := postJSON(t, router, "/api/v1/batch", map[string]interface{}{
		"userId":   "user-1",
		"priority": "high",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp batchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.ProcessedCount != 3 || resp.FailedCount != 1 || resp.TotalQueries != 2 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestHandleBatchMissingUserID(t *testing.T) {
	h := newTestHandler(t, storagetest.New(), &fakeBatch{}, &fakeSchedule{})
	router := h.Router([]string{"*"})

	w := postJSON(t, router, "/api/v1/batch", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleSchedule(t *testing.T) {
	sched := &fakeSchedule{summary: &scheduler.Summary{
		Type:           "daily",
		TotalUsers:     2,
		ProcessedUsers: 2,
		Errors:         []string{},
	}}
	h := newTestHandler(t, storagetest.New(), &fakeBatch{}, sched)
	router := h.Router([]string{"*"})

	w := postJSON(t, router, "/api/v1/schedule", map[string]interface{}{"type": "daily"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp scheduleResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Summary == nil || resp.Summary.ProcessedUsers != 2 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestHandleScheduleFailure(t *testing.T) {
	sched := &fakeSchedule{err: errors.New("unknown schedule type")}
	h := newTestHandler(t, storagetest.New(), &fakeBatch{}, sched)
	router := h.Router([]string{"*"})

	w := postJSON(t, router, "/api/v1/schedule", map[string]interface{}{"type": "hourly"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, storagetest.New(), &fakeBatch{}, &fakeSchedule{})
	router := h.Router([]string{"*"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/batch", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected preflight status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
}
