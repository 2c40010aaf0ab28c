package surfaces

import (
	"context"
	"fmt"
	"time"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
	"github.com/aivisrun/study-core/pkg/observability"
	"github.com/aivisrun/study-core/pkg/resilience"
)

// nowFunc is swappable for deterministic tests.
var nowFunc = time.Now

// AdapterRuntime wraps any Capability leaf with the shared, non-inherited
// cross-cutting policies of spec §4.1: rate-limit enforcement, circuit
// breaking, timeout, and the retry algorithm. This is the "shared adapter
// runtime value that wraps any capability value" called for by the design
// note in spec §9, replacing a base-class-with-virtual-method hierarchy.
type AdapterRuntime struct {
	SurfaceID  string
	Meta       Metadata
	Leaf       Capability
	RateLimit  *resilience.RateLimiter
	Health     *resilience.HealthState
	Stats      *Stats
	Logger     observability.Logger
	Metrics    observability.MetricsClient

	maxRetries       int
	defaultTimeout   time.Duration
}

// NewAdapterRuntime builds the runtime for a leaf, sized from its declared
// metadata's rate limit.
func NewAdapterRuntime(surfaceID string, meta Metadata, leaf Capability, logger observability.Logger, metrics observability.MetricsClient) *AdapterRuntime {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &AdapterRuntime{
		SurfaceID:      surfaceID,
		Meta:           meta,
		Leaf:           leaf,
		RateLimit:      resilience.NewRateLimiter(meta.RateLimitPerMinute),
		Health:         resilience.NewHealthState(),
		Stats:          NewStats(),
		Logger:         logger,
		Metrics:        metrics,
		maxRetries:     3,
		defaultTimeout: 30 * time.Second,
	}
}

// WithMaxRetries overrides the retry wrapper's attempt budget (default 3).
func (a *AdapterRuntime) WithMaxRetries(n int) *AdapterRuntime {
	a.maxRetries = n
	return a
}

// WithDefaultTimeout overrides the effective timeout used when a request
// does not specify one.
func (a *AdapterRuntime) WithDefaultTimeout(d time.Duration) *AdapterRuntime {
	a.defaultTimeout = d
	return a
}

// Query runs the spec §4.1 retry-wrapper algorithm around the leaf's
// ExecuteQuery, applying rate-limit and circuit-breaker fast-fail checks,
// per-attempt deadlines, error classification, and exponential backoff.
func (a *AdapterRuntime) Query(ctx context.Context, req Request) Response {
	now := nowFunc()

	// Step 1: rate-limit fast-fail.
	if status := a.RateLimit.Status(now); status.Limited {
		a.Stats.RecordFailure(coreerrors.CodeRateLimited)
		return a.syntheticError(coreerrors.CodeRateLimited, "rate limited", status.ResetAt.Sub(now))
	}

	// Step 2: circuit-breaker fast-fail.
	if !a.Health.CanExecute(now) {
		a.Stats.RecordFailure(coreerrors.CodeServiceUnavailable)
		return a.syntheticError(coreerrors.CodeServiceUnavailable, "circuit open", 0)
	}

	timeout := a.defaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	var lastResp Response
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := a.Leaf.ExecuteQuery(attemptCtx, req)
		cancel()

		if err == nil && resp.Success {
			a.onSuccess(resp)
			return resp
		}

		lastResp = resp
		if err == nil {
			err = fmt.Errorf("%s", resp.Error.Message)
		}
		lastErr = err

		classified := resilience.ToAdapterError(err, attempt)
		a.onFailure(classified)

		if !classified.Retryable || attempt == a.maxRetries {
			return a.errorResponse(classified)
		}

		delay := time.Duration(classified.RetryDelayMs) * time.Millisecond
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return a.errorResponse(resilience.ToAdapterError(ctx.Err(), attempt))
		}
	}

	if lastErr != nil {
		return a.errorResponse(resilience.ToAdapterError(lastErr, a.maxRetries))
	}
	return lastResp
}

func (a *AdapterRuntime) onSuccess(resp Response) {
	now := nowFunc()
	a.RateLimit.RecordSuccess(now)
	a.Health.RecordSuccess(now)
	latency := float64(resp.Timing.TotalMs)
	a.Stats.RecordSuccess(latency, resp.TokenUsage)
	a.Metrics.IncrementCounterWithLabels("surface_queries_total", 1, map[string]string{"surface": a.SurfaceID, "status": "success"})
}

func (a *AdapterRuntime) onFailure(classified *coreerrors.AdapterError) {
	now := nowFunc()
	a.Stats.RecordFailure(classified.Code)
	if classified.SurfaceWide {
		a.Health.RecordFailure(now, fmt.Errorf("%s", classified.Message))
	}
	a.Metrics.IncrementCounterWithLabels("surface_queries_total", 1, map[string]string{"surface": a.SurfaceID, "status": "failure", "code": string(classified.Code)})
	a.Logger.Warn("surface query failed", map[string]interface{}{
		"surface": a.SurfaceID,
		"code":    classified.Code,
	})
}

func (a *AdapterRuntime) syntheticError(code coreerrors.Code, msg string, retryDelay time.Duration) Response {
	return Response{
		Success: false,
		Error: &coreerrors.AdapterError{
			Code:         code,
			Message:      msg,
			Retryable:    true,
			RetryDelayMs: retryDelay.Milliseconds(),
		},
	}
}

func (a *AdapterRuntime) errorResponse(err *coreerrors.AdapterError) Response {
	return Response{Success: false, Error: err}
}

// HealthCheck runs the leaf's lightweight health probe without going through
// the retry wrapper (used by readiness endpoints, not by job dispatch).
func (a *AdapterRuntime) HealthCheck(ctx context.Context) Response {
	resp, err := a.Leaf.ExecuteHealthCheck(ctx)
	if err != nil {
		return a.errorResponse(resilience.ToAdapterError(err, 0))
	}
	return resp
}
