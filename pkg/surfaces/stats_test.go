package surfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
)

func TestStats_RecordSuccessComputesRunningMeanLatency(t *testing.T) {
	s := NewStats()
	s.RecordSuccess(100, nil)
	s.RecordSuccess(200, nil)

	snap := s.Snapshot()
	assert.Equal(t, int64(2), snap.SuccessfulQueries)
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.InDelta(t, 150, snap.MeanLatencyMs, 0.001)
}

func TestStats_RecordSuccessAccumulatesTokensAndCost(t *testing.T) {
	s := NewStats()
	s.RecordSuccess(50, &TokenUsage{Input: 10, Output: 20, EstimatedCostUsd: 0.05})
	s.RecordSuccess(50, &TokenUsage{Input: 5, Output: 5, EstimatedCostUsd: 0.02})

	snap := s.Snapshot()
	assert.Equal(t, int64(15), snap.TotalInputTokens)
	assert.Equal(t, int64(25), snap.TotalOutputTokens)
	assert.InDelta(t, 0.07, snap.TotalCostUsd, 0.0001)
}

func TestStats_RecordFailureTalliesByCode(t *testing.T) {
	s := NewStats()
	s.RecordFailure(coreerrors.CodeTimeout)
	s.RecordFailure(coreerrors.CodeTimeout)
	s.RecordFailure(coreerrors.CodeRateLimited)

	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap.FailedQueries)
	assert.Equal(t, int64(2), snap.ErrorCodeTally[coreerrors.CodeTimeout])
	assert.Equal(t, int64(1), snap.ErrorCodeTally[coreerrors.CodeRateLimited])
}

func TestStats_SnapshotIsIndependentCopy(t *testing.T) {
	s := NewStats()
	s.RecordFailure(coreerrors.CodeTimeout)
	snap := s.Snapshot()

	s.RecordFailure(coreerrors.CodeTimeout)
	assert.Equal(t, int64(1), snap.ErrorCodeTally[coreerrors.CodeTimeout], "earlier snapshot must not see later mutations")
}
