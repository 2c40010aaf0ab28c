package resilience

import (
	"sync"
	"time"
)

// CircuitState is the three-state model from spec §4.1: healthy (closed),
// unhealthy (open, fast-fails), recovering (half-open, one probe allowed).
type CircuitState int

const (
	CircuitHealthy CircuitState = iota
	CircuitUnhealthy
	CircuitRecovering
)

func (s CircuitState) String() string {
	switch s {
	case CircuitHealthy:
		return "healthy"
	case CircuitUnhealthy:
		return "unhealthy"
	case CircuitRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// consecutiveFailureThreshold is fixed at 5 per the resolved Open Question in
// spec §9: the reference implementations disagreed (5 consecutive failures
// in one place, success-rate-below-0.7 elsewhere); this spec standardizes on
// consecutive-failures >= 5 to open, any single success to close.
const consecutiveFailureThreshold = 5

// recoveryProbeWindow is how long the breaker waits after opening before it
// allows a single recovering probe through.
const recoveryProbeWindow = 60 * time.Second

// HealthState is the adapter-state health/circuit slice of AdapterState
// (spec §3). It is mutated only inside the adapter's own synchronized
// operations, never shared across adapter instances.
type HealthState struct {
	mu                  sync.Mutex
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastError           error
	state               CircuitState
	openedAt            time.Time
	probeInFlight       bool
}

// NewHealthState returns a breaker starting in the healthy state.
func NewHealthState() *HealthState {
	return &HealthState{state: CircuitHealthy}
}

// CanExecute reports whether a call may proceed, and if not, the fast-fail
// decision per spec §4.1 steps 1-2 applied to the health portion: once
// consecutiveFailures reaches consecutiveFailureThreshold (5) the circuit is
// open and the caller short-circuits with SERVICE_UNAVAILABLE.
func (h *HealthState) CanExecute(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case CircuitHealthy:
		return true
	case CircuitUnhealthy:
		if now.Sub(h.openedAt) >= recoveryProbeWindow && !h.probeInFlight {
			h.state = CircuitRecovering
			h.probeInFlight = true
			return true
		}
		return false
	case CircuitRecovering:
		if h.probeInFlight {
			return false
		}
		h.probeInFlight = true
		return true
	default:
		return true
	}
}

// RecordSuccess resets the breaker to healthy: any success closes the
// circuit, per the resolved Open Question in spec §9.
func (h *HealthState) RecordSuccess(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures = 0
	h.lastSuccessAt = now
	h.lastError = nil
	h.state = CircuitHealthy
	h.probeInFlight = false
}

// RecordFailure increments the consecutive-failure tally and opens the
// circuit once it reaches the threshold, or re-opens immediately on any
// failure observed while recovering.
func (h *HealthState) RecordFailure(now time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	h.lastError = err
	h.probeInFlight = false

	switch h.state {
	case CircuitRecovering:
		h.state = CircuitUnhealthy
		h.openedAt = now
	case CircuitHealthy:
		if h.consecutiveFailures >= consecutiveFailureThreshold {
			h.state = CircuitUnhealthy
			h.openedAt = now
		}
	}
}

// Snapshot returns the current health state for reporting.
func (h *HealthState) Snapshot() (state CircuitState, consecutiveFailures int, lastSuccessAt time.Time, lastError error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.consecutiveFailures, h.lastSuccessAt, h.lastError
}
