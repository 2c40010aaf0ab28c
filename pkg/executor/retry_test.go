package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialJitterStrategy_RespectsBounds(t *testing.T) {
	strategy := NewExponentialJitterStrategy(100*time.Millisecond, time.Second)
	bo := strategy.NewBackOff()

	for i := 0; i < 10; i++ {
		delay := bo.NextBackOff()
		assert.GreaterOrEqual(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, time.Second+200*time.Millisecond, "delay should stay within max interval plus jitter")
	}
}

func TestExponentialJitterStrategy_IndependentPerJob(t *testing.T) {
	strategy := NewExponentialJitterStrategy(50*time.Millisecond, 500*time.Millisecond)
	a := strategy.NewBackOff()
	b := strategy.NewBackOff()

	firstA := a.NextBackOff()
	_ = b.NextBackOff()
	secondA := a.NextBackOff()

	assert.NotEqual(t, firstA, secondA, "a backoff should advance independently of a separate job's backoff")
}
