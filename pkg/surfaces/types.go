// Package surfaces implements the Surface Adapter Base: a uniform
// query(request) -> response contract over heterogeneous protocols, with the
// rate-limit, circuit-breaker, and retry cross-cutting policies from
// spec §4.1 applied around any leaf Capability implementation.
package surfaces

import (
	"context"
	"sync"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
)

// Request is the canonical query request (spec §4.1).
type Request struct {
	QueryText           string
	SystemPrompt        string
	ConversationHistory []ConversationTurn
	Model               string
	Temperature         *float64
	MaxTokens           int
	TimeoutMs           int64
}

// ConversationTurn is one message in a conversation history.
type ConversationTurn struct {
	Role    string
	Content string
}

// TokenUsage reports token accounting for one query (spec §4.1).
type TokenUsage struct {
	Input            int
	Output           int
	Total            int
	EstimatedCostUsd float64
}

// Timing reports latency breakdowns for one query (spec §4.1).
type Timing struct {
	TotalMs    int64
	ResponseMs int64
	TTFBMs     *int64
}

// Response is the canonical query response (spec §4.1). Errors are carried
// as a value here, never raised (spec §7).
type Response struct {
	Success      bool
	ResponseText string
	TokenUsage   *TokenUsage
	Timing       Timing
	Structured   map[string]interface{}
	Error        *coreerrors.AdapterError
}

// Capability is the per-surface leaf contract (spec §4.2): a leaf knows how
// to build its protocol's request, parse its response, and probe health.
// This replaces an inheritance-based base class (spec §9 design note).
type Capability interface {
	ExecuteQuery(ctx context.Context, req Request) (Response, error)
	ExecuteHealthCheck(ctx context.Context) (Response, error)
}

// Metadata describes a surface's declared capabilities, pricing, rate limit,
// and auth requirement (spec §4.2). NewAdapterRuntime reads
// RateLimitPerMinute to size the surface's rate limiter; the Executor routes
// by surface id alone and the Validator does not read Metadata.
type Metadata struct {
	SurfaceID          string
	Category           string
	AuthRequirement    string
	Streaming          bool
	ConversationHistory bool
	SystemPrompt       bool
	MaxInputTokens     int
	MaxOutputTokens    int
	RateLimitPerMinute int
	CostPerThousandInputUsd  float64
	CostPerThousandOutputUsd float64
}

// Stats tallies an adapter's running totals (spec §3 AdapterState.stats).
type Stats struct {
	mu                sync.Mutex
	TotalQueries      int64
	SuccessfulQueries int64
	FailedQueries     int64
	MeanLatencyMs     float64
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalCostUsd      float64
	ErrorCodeTally    map[coreerrors.Code]int64
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats {
	return &Stats{ErrorCodeTally: make(map[coreerrors.Code]int64)}
}

// RecordSuccess folds a successful query's metrics into the running stats
// using Welford-style running-mean update for latency (spec §3: "running
// mean latency").
func (s *Stats) RecordSuccess(latencyMs float64, tokens *TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalQueries++
	s.SuccessfulQueries++
	n := float64(s.SuccessfulQueries)
	s.MeanLatencyMs += (latencyMs - s.MeanLatencyMs) / n
	if tokens != nil {
		s.TotalInputTokens += int64(tokens.Input)
		s.TotalOutputTokens += int64(tokens.Output)
		s.TotalCostUsd += tokens.EstimatedCostUsd
	}
}

// RecordFailure folds a failed query's error code into the running stats.
func (s *Stats) RecordFailure(code coreerrors.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalQueries++
	s.FailedQueries++
	s.ErrorCodeTally[code]++
}

// Snapshot returns a copy of the stats safe for concurrent reads.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	tally := make(map[coreerrors.Code]int64, len(s.ErrorCodeTally))
	for k, v := range s.ErrorCodeTally {
		tally[k] = v
	}
	return Stats{
		TotalQueries:      s.TotalQueries,
		SuccessfulQueries: s.SuccessfulQueries,
		FailedQueries:     s.FailedQueries,
		MeanLatencyMs:     s.MeanLatencyMs,
		TotalInputTokens:  s.TotalInputTokens,
		TotalOutputTokens: s.TotalOutputTokens,
		TotalCostUsd:      s.TotalCostUsd,
		ErrorCodeTally:    tally,
	}
}
