package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

// stubLeaf is a minimal surfaces.Capability for executor tests: it never
// touches the network and always returns the scripted response.
type stubLeaf struct {
	resp surfaces.Response
}

func (s *stubLeaf) ExecuteQuery(context.Context, surfaces.Request) (surfaces.Response, error) {
	return s.resp, nil
}

func (s *stubLeaf) ExecuteHealthCheck(context.Context) (surfaces.Response, error) {
	return s.resp, nil
}

func newTestRuntime(surfaceID string, resp surfaces.Response) *surfaces.AdapterRuntime {
	meta := surfaces.Metadata{SurfaceID: surfaceID, RateLimitPerMinute: 0}
	return surfaces.NewAdapterRuntime(surfaceID, meta, &stubLeaf{resp: resp}, nil, nil).WithMaxRetries(0)
}

func TestExecutor_DispatchesAndCompletesJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := NewExecutor(Options{WorkerCount: 1, MaxConcurrentJobsPerWorker: 1, EventBufferSize: 8})
	exec.RegisterAdapter("llm-a", newTestRuntime("llm-a", surfaces.Response{Success: true, ResponseText: "hello"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.Start(ctx)

	exec.SubmitJob(Job{ID: "job-1", StudyID: "study-1", SurfaceID: "llm-a", Priority: PriorityNormal})

	select {
	case result := <-exec.Results():
		assert.Equal(t, "job-1", result.JobID)
		assert.True(t, result.Response.Success)
		assert.Equal(t, "hello", result.Response.ResponseText)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}

	exec.Stop()
	stats := exec.Stats()
	assert.Equal(t, int64(1), stats.JobsCompleted)
}

func TestExecutor_MissingAdapterFailsJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := NewExecutor(Options{WorkerCount: 1, MaxConcurrentJobsPerWorker: 1, EventBufferSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.Start(ctx)

	exec.SubmitJob(Job{ID: "job-1", StudyID: "study-1", SurfaceID: "nonexistent"})

	select {
	case result := <-exec.Results():
		assert.False(t, result.Response.Success)
		require.NotNil(t, result.Response.Error)
		assert.Equal(t, "ADAPTER_MISSING", string(result.Response.Error.Code))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}

	exec.Stop()
}

func TestExecutor_EventsIncludeLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := NewExecutor(Options{WorkerCount: 1, MaxConcurrentJobsPerWorker: 1, EventBufferSize: 32})
	exec.RegisterAdapter("llm-a", newTestRuntime("llm-a", surfaces.Response{Success: true}))

	var mu sync.Mutex
	var seen []EventType
	exec.On(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Type)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.Start(ctx)
	exec.SubmitJob(Job{ID: "job-1", StudyID: "study-1", SurfaceID: "llm-a"})

	select {
	case <-exec.Results():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}
	exec.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, EventWorkerStarted)
	assert.Contains(t, seen, EventJobStarted)
	assert.Contains(t, seen, EventJobCompleted)
	assert.Contains(t, seen, EventWorkerStopped)
}
