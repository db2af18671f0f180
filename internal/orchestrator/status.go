package orchestrator

import "sync"

// TaskState is the lifecycle state of one (query, engine) task
type TaskState string

const (
	StatePending    TaskState = "pending"
	StateProcessing TaskState = "processing"
	StateCompleted  TaskState = "completed"
	StateFailed     TaskState = "failed"
)

// rank orders states so transitions can only move forward
var rank = map[TaskState]int{
	StatePending:    0,
	StateProcessing: 1,
	StateCompleted:  2,
	StateFailed:     2,
}

// ProcessingStatus is the caller-visible record of one (query, engine) task
// for a single batch run. It is never persisted; the full list is returned to
// the caller for observability.
type ProcessingStatus struct {
	QueryID string    `json:"query_id"`
	Engine  string    `json:"engine"`
	State   TaskState `json:"state"`
	Error   string    `json:"error,omitempty"`
}

// taskStatus guards a ProcessingStatus while worker goroutines mutate it
type taskStatus struct {
	mu sync.Mutex
	ProcessingStatus
}

func newStatus(queryID, engine string) *taskStatus {
	return &taskStatus{
		ProcessingStatus: ProcessingStatus{
			QueryID: queryID,
			Engine:  engine,
			State:   StatePending,
		},
	}
}

// transition advances the state. Backward transitions are ignored: a task that
// reached completed or failed stays there.
func (s *taskStatus) transition(to TaskState, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rank[to] <= rank[s.State] {
		return
	}
	s.State = to
	if errMsg != "" {
		s.Error = errMsg
	}
}

// snapshot returns a copy safe to hand to callers after the run settles
func (s *taskStatus) snapshot() ProcessingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ProcessingStatus
}
