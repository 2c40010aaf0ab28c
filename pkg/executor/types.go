// Package executor implements the Job Executor (spec §4.3): a priority
// worker pool that dispatches jobs to registered surface adapters, retrying
// classified-retryable failures and emitting a lifecycle event stream.
package executor

import (
	"time"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

// Priority is a job's dispatch priority. Higher values dispatch first;
// equal-priority jobs dispatch FIFO (spec §4.3).
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// Job is one unit of dispatchable work: a query against one surface,
// carried alongside enough identity for the orchestrator to fold the
// result back into its job graph.
type Job struct {
	ID         string
	StudyID    string
	SurfaceID  string
	Request    surfaces.Request
	Priority   Priority
	MaxRetries int
}

// Result is what the executor reports back after a job finishes, whether
// it succeeded, was retried, or exhausted its retry budget.
type Result struct {
	JobID     string
	StudyID   string
	SurfaceID string
	Response  surfaces.Response
	Attempts  int
	Duration  time.Duration
}

// EventType names one lifecycle transition the executor reports (spec §4.3).
type EventType string

const (
	EventWorkerStarted EventType = "worker_started"
	EventWorkerStopped EventType = "worker_stopped"
	EventJobStarted    EventType = "job_started"
	EventJobCompleted  EventType = "job_completed"
	EventJobFailed     EventType = "job_failed"
	EventJobRetrying   EventType = "job_retrying"
	EventQueueEmpty    EventType = "queue_empty"
)

// Event is one entry in the executor's event stream.
type Event struct {
	Type      EventType
	JobID     string
	StudyID   string
	SurfaceID string
	WorkerID  int
	Attempt   int
	Err       error
	At        time.Time
}

// Stats reports the executor's running totals.
type Stats struct {
	JobsSubmitted int64
	JobsCompleted int64
	JobsFailed    int64
	JobsRetried   int64
	QueueLength   int
	ActiveWorkers int
}
