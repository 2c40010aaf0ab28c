package surfaces

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLeaf returns errs[callIndex] (or success if past the end of errs)
// each call, so tests can script a fixed number of failures before recovery.
type scriptedLeaf struct {
	mu    sync.Mutex
	calls int
	errs  []error
	resp  Response
}

func (s *scriptedLeaf) ExecuteQuery(context.Context, Request) (Response, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if idx < len(s.errs) {
		return Response{Success: false}, s.errs[idx]
	}
	return s.resp, nil
}

func (s *scriptedLeaf) ExecuteHealthCheck(context.Context) (Response, error) {
	return s.resp, nil
}

func (s *scriptedLeaf) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testRuntime(leaf Capability, rateLimitPerMinute int) *AdapterRuntime {
	meta := Metadata{SurfaceID: "test-surface", RateLimitPerMinute: rateLimitPerMinute}
	return NewAdapterRuntime("test-surface", meta, leaf, nil, nil)
}

func TestAdapterRuntime_SucceedsOnFirstAttempt(t *testing.T) {
	leaf := &scriptedLeaf{resp: Response{Success: true, ResponseText: "ok"}}
	runtime := testRuntime(leaf, 0)

	resp := runtime.Query(context.Background(), Request{QueryText: "hi"})
	assert.True(t, resp.Success)
	assert.Equal(t, 1, leaf.callCount())
}

func TestAdapterRuntime_RetriesTransientFailureThenSucceeds(t *testing.T) {
	if testing.Short() {
		t.Skip("exercises the real 2s TIMEOUT backoff delay")
	}
	leaf := &scriptedLeaf{
		errs: []error{errors.New("request timeout")},
		resp: Response{Success: true, ResponseText: "recovered"},
	}
	runtime := testRuntime(leaf, 0).WithMaxRetries(3)

	resp := runtime.Query(context.Background(), Request{QueryText: "hi"})
	assert.True(t, resp.Success)
	assert.Equal(t, "recovered", resp.ResponseText)
	assert.Equal(t, 2, leaf.callCount(), "one failed attempt then one successful retry")
}

func TestAdapterRuntime_NonRetryableFailsImmediately(t *testing.T) {
	leaf := &scriptedLeaf{errs: []error{errors.New("content policy violation")}}
	runtime := testRuntime(leaf, 0).WithMaxRetries(3)

	resp := runtime.Query(context.Background(), Request{QueryText: "hi"})
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONTENT_BLOCKED", string(resp.Error.Code))
	assert.False(t, resp.Error.Retryable)
	assert.Equal(t, 1, leaf.callCount(), "non-retryable classification must not trigger another attempt")
}

func TestAdapterRuntime_ExhaustsRetriesThenFails(t *testing.T) {
	leaf := &scriptedLeaf{errs: []error{
		errors.New("bad gateway"), errors.New("bad gateway"), errors.New("bad gateway"),
	}}
	runtime := testRuntime(leaf, 0).WithMaxRetries(0)

	resp := runtime.Query(context.Background(), Request{QueryText: "hi"})
	require.False(t, resp.Success)
	assert.Equal(t, "SERVICE_UNAVAILABLE", string(resp.Error.Code))
	assert.Equal(t, 1, leaf.callCount(), "maxRetries=0 means a single attempt")
}

func TestAdapterRuntime_RateLimitFastFailsWithoutCallingLeaf(t *testing.T) {
	leaf := &scriptedLeaf{resp: Response{Success: true}}
	runtime := testRuntime(leaf, 1)

	first := runtime.Query(context.Background(), Request{QueryText: "a"})
	assert.True(t, first.Success)

	second := runtime.Query(context.Background(), Request{QueryText: "b"})
	require.False(t, second.Success)
	assert.Equal(t, "RATE_LIMITED", string(second.Error.Code))
	assert.Equal(t, 1, leaf.callCount(), "the rate-limited call must never reach the leaf")
}

func TestAdapterRuntime_CircuitOpensAfterConsecutiveFailuresThenFastFails(t *testing.T) {
	errs := make([]error, 5)
	for i := range errs {
		errs[i] = errors.New("503 service unavailable")
	}
	leaf := &scriptedLeaf{errs: errs}
	runtime := testRuntime(leaf, 0).WithMaxRetries(0)

	for i := 0; i < 5; i++ {
		resp := runtime.Query(context.Background(), Request{QueryText: "x"})
		assert.False(t, resp.Success)
	}
	assert.Equal(t, 5, leaf.callCount())

	// The breaker is now open: the 6th call must fast-fail without
	// reaching the leaf at all.
	resp := runtime.Query(context.Background(), Request{QueryText: "x"})
	require.False(t, resp.Success)
	assert.Equal(t, "SERVICE_UNAVAILABLE", string(resp.Error.Code))
	assert.Equal(t, 5, leaf.callCount(), "an open circuit must short-circuit before calling the leaf")
}

func TestAdapterRuntime_HealthCheckBypassesRetryWrapper(t *testing.T) {
	leaf := &scriptedLeaf{resp: Response{Success: true, ResponseText: "healthy"}}
	runtime := testRuntime(leaf, 0)

	resp := runtime.HealthCheck(context.Background())
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", resp.ResponseText)
}
