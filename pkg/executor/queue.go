package executor

import (
	"container/heap"
	"sync"
)

// queueItem wraps a Job with the monotonically increasing sequence number
// that breaks priority ties in submission order (spec §4.3: "FIFO within a
// priority level").
type queueItem struct {
	job   Job
	seq   int64
	index int
}

// itemHeap is a container/heap.Interface ordering by priority descending,
// then by seq ascending.
type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityQueue is the executor's dispatch queue: a heap ordered by job
// priority, FIFO within a level, safe for concurrent push/pop.
type PriorityQueue struct {
	mu      sync.Mutex
	items   itemHeap
	nextSeq int64
}

// NewPriorityQueue returns an empty queue.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{}
	heap.Init(&pq.items)
	return pq
}

// Push enqueues a job.
func (pq *PriorityQueue) Push(job Job) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	heap.Push(&pq.items, &queueItem{job: job, seq: pq.nextSeq})
	pq.nextSeq++
}

// Pop removes and returns the highest-priority, oldest job, or ok=false if
// the queue is empty.
func (pq *PriorityQueue) Pop() (Job, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.items) == 0 {
		return Job{}, false
	}
	item := heap.Pop(&pq.items).(*queueItem)
	return item.job, true
}

// Len reports the current queue depth.
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}

// Clear drops every queued job and returns how many were dropped.
func (pq *PriorityQueue) Clear() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	n := len(pq.items)
	pq.items = pq.items[:0]
	return n
}

// RemoveByStudyID drops every queued job belonging to studyID and returns
// how many were dropped. Jobs already popped for dispatch (in-flight) are
// unaffected; the caller is responsible for discarding their results.
func (pq *PriorityQueue) RemoveByStudyID(studyID string) int {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	kept := pq.items[:0]
	removed := 0
	for _, item := range pq.items {
		if item.job.StudyID == studyID {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	pq.items = kept
	heap.Init(&pq.items)
	return removed
}
