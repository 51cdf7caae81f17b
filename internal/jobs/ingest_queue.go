package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veldt-labs/corpora/internal/service"
	"github.com/veldt-labs/corpora/internal/telemetry"
)

// Status is the lifecycle state of a queued ingestion task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// JobState is the observable state of a queued task.
type JobState struct {
	ID         string                `json:"id"`
	Kind       string                `json:"kind"`
	Status     Status                `json:"status"`
	Report     *service.IngestReport `json:"report,omitempty"`
	Error      string                `json:"error,omitempty"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
}

type task struct {
	id  string
	run func(ctx context.Context) (*service.IngestReport, error)
}

// IngestQueue holds pending ingestion and composition tasks in memory and
// processes them from the worker's polling loop. State for finished tasks is
// kept so clients can poll for the outcome; it is not durable across
// restarts.
type IngestQueue struct {
	mu     sync.Mutex
	tasks  chan *task
	states map[string]*JobState
}

func NewIngestQueue(capacity int) *IngestQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &IngestQueue{
		tasks:  make(chan *task, capacity),
		states: make(map[string]*JobState),
	}
}

// Enqueue registers a task and returns its job id. Fails when the queue is
// full rather than blocking the caller.
func (q *IngestQueue) Enqueue(kind string, run func(ctx context.Context) (*service.IngestReport, error)) (string, error) {
	id := uuid.NewString()
	t := &task{id: id, run: run}

	q.mu.Lock()
	q.states[id] = &JobState{
		ID:         id,
		Kind:       kind,
		Status:     StatusPending,
		EnqueuedAt: time.Now().UTC(),
	}
	q.mu.Unlock()

	select {
	case q.tasks <- t:
		return id, nil
	default:
		q.mu.Lock()
		delete(q.states, id)
		q.mu.Unlock()
		return "", fmt.Errorf("ingest queue is full")
	}
}

// Get returns the state of a job by id.
func (q *IngestQueue) Get(id string) (*JobState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state, ok := q.states[id]
	if !ok {
		return nil, false
	}
	copied := *state
	return &copied, true
}

// ProcessJobs implements the JobProcessor interface. It drains every task
// currently queued and returns; the next poll picks up whatever arrived in
// the meantime.
func (q *IngestQueue) ProcessJobs(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-q.tasks:
			q.runTask(ctx, t)
		default:
			return nil
		}
	}
}

func (q *IngestQueue) runTask(ctx context.Context, t *task) {
	q.setStatus(t.id, StatusRunning, nil, "")

	report, err := t.run(ctx)
	if err != nil {
		log.Printf("job %s failed: %v", t.id, err)
		telemetry.CaptureError(ctx, err)
		q.setStatus(t.id, StatusFailed, nil, err.Error())
		return
	}

	log.Printf("job %s completed: %d/%d chunks stored", t.id, report.ChunksStored, report.ChunksTotal)
	q.setStatus(t.id, StatusCompleted, report, "")
}

func (q *IngestQueue) setStatus(id string, status Status, report *service.IngestReport, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state, ok := q.states[id]
	if !ok {
		return
	}
	state.Status = status
	state.Report = report
	state.Error = errMsg
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now().UTC()
		state.FinishedAt = &now
	}
}
