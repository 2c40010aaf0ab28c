package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
	"github.com/aivisrun/study-core/pkg/observability"
	"github.com/aivisrun/study-core/pkg/surfaces"
)

// pollInterval is how often a worker checks the queue when it finds it
// empty, rather than busy-spinning.
const pollInterval = 20 * time.Millisecond

// Executor is the Job Executor (spec §4.3): it owns a priority queue, a
// fixed-size worker pool, and the registry of adapters jobs dispatch
// against. Concurrency is capped at workerCount * maxConcurrentJobsPerWorker
// in-flight jobs at any time.
type Executor struct {
	mu       sync.RWMutex
	adapters map[string]*surfaces.AdapterRuntime
	attempts map[string]int

	queue         *PriorityQueue
	retryStrategy RetryStrategy

	workerCount                int
	maxConcurrentJobsPerWorker int
	jobTimeout                 time.Duration

	events    chan Event
	listeners []func(Event)
	listenMu  sync.Mutex

	results chan Result

	logger  observability.Logger
	metrics observability.MetricsClient

	submitted int64
	completed int64
	failed    int64
	retried   int64

	stopCh   chan struct{}
	workerWG sync.WaitGroup // runWorker goroutines and their scheduled retries
	fanoutWG sync.WaitGroup // the event fan-out goroutine
	running  bool
}

// Options configures an Executor at construction time.
type Options struct {
	WorkerCount                int
	MaxConcurrentJobsPerWorker int
	JobTimeout                 time.Duration
	EventBufferSize            int
	RetryStrategy              RetryStrategy
	Logger                     observability.Logger
	Metrics                    observability.MetricsClient
}

// NewExecutor builds an Executor from Options, filling sane defaults for any
// zero-valued field.
func NewExecutor(opts Options) *Executor {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 8
	}
	if opts.MaxConcurrentJobsPerWorker <= 0 {
		opts.MaxConcurrentJobsPerWorker = 4
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 120 * time.Second
	}
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 256
	}
	if opts.RetryStrategy == nil {
		opts.RetryStrategy = NewExponentialJitterStrategy(time.Second, 60*time.Second)
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewNoopMetricsClient()
	}

	return &Executor{
		adapters:                   make(map[string]*surfaces.AdapterRuntime),
		attempts:                   make(map[string]int),
		queue:                      NewPriorityQueue(),
		retryStrategy:              opts.RetryStrategy,
		workerCount:                opts.WorkerCount,
		maxConcurrentJobsPerWorker: opts.MaxConcurrentJobsPerWorker,
		jobTimeout:                 opts.JobTimeout,
		events:                     make(chan Event, opts.EventBufferSize),
		results:                    make(chan Result, opts.EventBufferSize),
		logger:                     opts.Logger,
		metrics:                    opts.Metrics,
		stopCh:                     make(chan struct{}),
	}
}

// RegisterAdapter makes a surface's runtime dispatchable.
func (e *Executor) RegisterAdapter(surfaceID string, runtime *surfaces.AdapterRuntime) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adapters[surfaceID] = runtime
}

// UnregisterAdapter removes a surface's runtime; in-flight jobs against it
// are left to fail with ADAPTER_MISSING on their next dispatch attempt.
func (e *Executor) UnregisterAdapter(surfaceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.adapters, surfaceID)
}

// On registers a listener invoked for every emitted Event. Listeners are
// called synchronously from the event fan-out goroutine; a slow listener
// delays delivery to the others.
func (e *Executor) On(listener func(Event)) {
	e.listenMu.Lock()
	defer e.listenMu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// Results returns the channel of completed/failed job results, for the
// orchestrator to fold back into its job graph.
func (e *Executor) Results() <-chan Result {
	return e.results
}

// SubmitJob enqueues one job for dispatch.
func (e *Executor) SubmitJob(job Job) {
	atomic.AddInt64(&e.submitted, 1)
	e.queue.Push(job)
}

// SubmitJobs enqueues a batch of jobs.
func (e *Executor) SubmitJobs(jobs []Job) {
	for _, j := range jobs {
		e.SubmitJob(j)
	}
}

// Start launches the event fan-out goroutine and the worker pool. Start is
// idempotent if already running.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.fanoutWG.Add(1)
	go e.fanOutEvents()

	for w := 0; w < e.workerCount; w++ {
		e.workerWG.Add(1)
		go e.runWorker(ctx, w)
	}
}

// Stop signals every worker to drain and exit, then blocks until they do.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	e.workerWG.Wait()
	close(e.results)
	close(e.events)
	e.fanoutWG.Wait()
}

func (e *Executor) fanOutEvents() {
	defer e.fanoutWG.Done()
	for ev := range e.events {
		e.listenMu.Lock()
		listeners := make([]func(Event), len(e.listeners))
		copy(listeners, e.listeners)
		e.listenMu.Unlock()
		for _, l := range listeners {
			l(ev)
		}
	}
}

func (e *Executor) emit(ev Event) {
	ev.At = time.Now()
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event channel full, dropping event", map[string]interface{}{"type": ev.Type})
	}
}

func (e *Executor) runWorker(ctx context.Context, workerID int) {
	defer e.workerWG.Done()
	e.emit(Event{Type: EventWorkerStarted, WorkerID: workerID})

	sem := make(chan struct{}, e.maxConcurrentJobsPerWorker)
	var inFlight sync.WaitGroup

	for {
		select {
		case <-e.stopCh:
			inFlight.Wait()
			e.emit(Event{Type: EventWorkerStopped, WorkerID: workerID})
			return
		case <-ctx.Done():
			inFlight.Wait()
			e.emit(Event{Type: EventWorkerStopped, WorkerID: workerID})
			return
		default:
		}

		// Take a concurrency slot before popping, so a job leaves the queue
		// only when it can be dispatched straight away.
		sem <- struct{}{}
		job, ok := e.queue.Pop()
		if !ok {
			<-sem
			e.emit(Event{Type: EventQueueEmpty, WorkerID: workerID})
			select {
			case <-time.After(pollInterval):
				continue
			case <-e.stopCh:
				inFlight.Wait()
				e.emit(Event{Type: EventWorkerStopped, WorkerID: workerID})
				return
			case <-ctx.Done():
				inFlight.Wait()
				e.emit(Event{Type: EventWorkerStopped, WorkerID: workerID})
				return
			}
		}

		inFlight.Add(1)
		go func(j Job, wID int) {
			defer inFlight.Done()
			defer func() { <-sem }()
			e.dispatch(ctx, j, wID)
		}(job, workerID)
	}
}

// dispatch runs one job attempt against its registered adapter, then either
// completes it, resubmits it after a backoff delay, or fails it out.
func (e *Executor) dispatch(ctx context.Context, job Job, workerID int) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "executor", "job.dispatch",
		attribute.String("job.id", job.ID),
		attribute.String("study.id", job.StudyID),
		attribute.String("surface.id", job.SurfaceID),
	)
	defer span.End()
	e.emit(Event{Type: EventJobStarted, JobID: job.ID, StudyID: job.StudyID, SurfaceID: job.SurfaceID, WorkerID: workerID})

	e.mu.RLock()
	runtime, ok := e.adapters[job.SurfaceID]
	e.mu.RUnlock()

	if !ok {
		resp := surfaces.Response{Success: false, Error: &coreerrors.AdapterError{
			Code: coreerrors.CodeAdapterMissing, Message: "no adapter registered for surface " + job.SurfaceID,
		}}
		e.completeFailed(job, resp, start, workerID)
		return
	}

	dispatchCtx := ctx
	var cancel context.CancelFunc
	if e.jobTimeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, e.jobTimeout)
		defer cancel()
	}

	resp := runtime.Query(dispatchCtx, job.Request)

	if resp.Success {
		e.completeSuccess(job, resp, start, workerID)
		return
	}

	attempt := e.nextAttempt(job.ID)
	retryable := resp.Error != nil && resp.Error.Retryable
	if retryable && attempt <= job.MaxRetries {
		if delay := e.retryDelay(job.ID, resp); delay != backoff.Stop {
			atomic.AddInt64(&e.retried, 1)
			e.emit(Event{Type: EventJobRetrying, JobID: job.ID, StudyID: job.StudyID, SurfaceID: job.SurfaceID, WorkerID: workerID, Attempt: attempt})
			e.scheduleRetry(job, delay)
			return
		}
	}

	e.forgetAttempts(job.ID)
	e.completeFailed(job, resp, start, workerID)
}

func (e *Executor) nextAttempt(jobID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts[jobID]++
	return e.attempts[jobID]
}

func (e *Executor) forgetAttempts(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.attempts, jobID)
}

// retryDelay uses the classified error's own retry delay when present
// (spec §4.1), otherwise falls back to the job-level exponential strategy,
// advanced to this job's current attempt number.
func (e *Executor) retryDelay(jobID string, resp surfaces.Response) time.Duration {
	if resp.Error != nil && resp.Error.RetryDelayMs > 0 {
		return time.Duration(resp.Error.RetryDelayMs) * time.Millisecond
	}
	e.mu.RLock()
	attempt := e.attempts[jobID]
	e.mu.RUnlock()
	bo := e.retryStrategy.NewBackOff()
	delay := bo.NextBackOff()
	for i := 1; i < attempt && delay != backoff.Stop; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}

func (e *Executor) scheduleRetry(job Job, delay time.Duration) {
	e.workerWG.Add(1)
	go func() {
		defer e.workerWG.Done()
		select {
		case <-time.After(delay):
			e.queue.Push(job)
		case <-e.stopCh:
		}
	}()
}

func (e *Executor) completeSuccess(job Job, resp surfaces.Response, start time.Time, workerID int) {
	atomic.AddInt64(&e.completed, 1)
	e.forgetAttempts(job.ID)
	e.emit(Event{Type: EventJobCompleted, JobID: job.ID, StudyID: job.StudyID, SurfaceID: job.SurfaceID, WorkerID: workerID})
	e.metrics.IncrementCounterWithLabels("executor_jobs_total", 1, map[string]string{"status": "completed"})
	e.pushResult(job, resp, start)
}

func (e *Executor) completeFailed(job Job, resp surfaces.Response, start time.Time, workerID int) {
	atomic.AddInt64(&e.failed, 1)
	var err error
	if resp.Error != nil {
		err = resp.Error
	}
	e.emit(Event{Type: EventJobFailed, JobID: job.ID, StudyID: job.StudyID, SurfaceID: job.SurfaceID, WorkerID: workerID, Err: err})
	e.metrics.IncrementCounterWithLabels("executor_jobs_total", 1, map[string]string{"status": "failed"})
	e.pushResult(job, resp, start)
}

func (e *Executor) pushResult(job Job, resp surfaces.Response, start time.Time) {
	result := Result{
		JobID:     job.ID,
		StudyID:   job.StudyID,
		SurfaceID: job.SurfaceID,
		Response:  resp,
		Duration:  time.Since(start),
	}
	select {
	case e.results <- result:
	default:
		e.logger.Warn("result channel full, dropping result", map[string]interface{}{"job_id": job.ID})
	}
}

// Stats returns the executor's running totals.
func (e *Executor) Stats() Stats {
	return Stats{
		JobsSubmitted: atomic.LoadInt64(&e.submitted),
		JobsCompleted: atomic.LoadInt64(&e.completed),
		JobsFailed:    atomic.LoadInt64(&e.failed),
		JobsRetried:   atomic.LoadInt64(&e.retried),
		QueueLength:   e.queue.Len(),
	}
}

// QueueLength reports the current queue depth.
func (e *Executor) QueueLength() int {
	return e.queue.Len()
}

// ClearQueue drops every queued job and returns how many were dropped.
func (e *Executor) ClearQueue() int {
	return e.queue.Clear()
}

// RemoveJobsForStudy drops every still-queued job belonging to studyID and
// returns how many were dropped, for a study cancellation (spec §5, §8
// scenario 5). A job already popped off the queue for dispatch is in-flight
// and not affected; its eventual result still reaches Results() and it is
// the orchestrator's responsibility to discard it for a cancelled study.
func (e *Executor) RemoveJobsForStudy(studyID string) int {
	return e.queue.RemoveByStudyID(studyID)
}
