package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue_HigherPriorityDispatchesFirst(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(Job{ID: "low", Priority: PriorityLow})
	pq.Push(Job{ID: "critical", Priority: PriorityCritical})
	pq.Push(Job{ID: "normal", Priority: PriorityNormal})
	pq.Push(Job{ID: "high", Priority: PriorityHigh})

	order := []string{}
	for pq.Len() > 0 {
		job, ok := pq.Pop()
		require.True(t, ok)
		order = append(order, job.ID)
	}

	assert.Equal(t, []string{"critical", "high", "normal", "low"}, order)
}

func TestPriorityQueue_FIFOWithinSamePriority(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(Job{ID: "first", Priority: PriorityNormal})
	pq.Push(Job{ID: "second", Priority: PriorityNormal})
	pq.Push(Job{ID: "third", Priority: PriorityNormal})

	first, _ := pq.Pop()
	second, _ := pq.Pop()
	third, _ := pq.Pop()

	assert.Equal(t, "first", first.ID)
	assert.Equal(t, "second", second.ID)
	assert.Equal(t, "third", third.ID)
}

func TestPriorityQueue_PopEmptyReturnsFalse(t *testing.T) {
	pq := NewPriorityQueue()
	_, ok := pq.Pop()
	assert.False(t, ok)
}

func TestPriorityQueue_Clear(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(Job{ID: "a"})
	pq.Push(Job{ID: "b"})

	dropped := pq.Clear()
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 0, pq.Len())
}
