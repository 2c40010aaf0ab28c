package executor

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryStrategy produces the backoff schedule used when a job fails even
// after its adapter's own internal retry wrapper (spec §4.1) gives up, and
// the executor decides whether to resubmit the whole job. This is a
// coarser, job-level retry layered above the adapter's per-query retries:
// it exists because a job can fail for reasons the adapter layer cannot
// see, such as the worker pool itself being saturated.
type RetryStrategy interface {
	// NewBackOff returns a fresh backoff sequence for one job's retry
	// lifecycle. Callers call NextBackOff() once per retry; backoff.Stop
	// means no further retries should be attempted.
	NewBackOff() backoff.BackOff
}

// ExponentialJitterStrategy is the default RetryStrategy: exponential delay
// with +/-20% jitter, bounded by BaseDelay and MaxDelay (spec §6's
// base_retry_delay_ms / max_retry_delay_ms).
type ExponentialJitterStrategy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewExponentialJitterStrategy builds a strategy from the executor config's
// delay bounds.
func NewExponentialJitterStrategy(baseDelay, maxDelay time.Duration) ExponentialJitterStrategy {
	return ExponentialJitterStrategy{BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// NewBackOff builds a cenkalti/backoff exponential backoff configured to
// this strategy's bounds, with unlimited elapsed time: the attempt budget
// is enforced by the caller via Job.MaxRetries, not by this backoff.
func (s ExponentialJitterStrategy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.BaseDelay
	b.MaxInterval = s.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	return b
}
