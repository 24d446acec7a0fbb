package jobs

import "time"

// retryEntry is a job scheduled for re-execution at a fire time.
type retryEntry struct {
	fireAt time.Time
	job    *job
}

// retryHeap is a min-heap keyed by fire time, drained by the scheduler
// loop. It replaces ad hoc per-retry timer goroutines so all queue
// mutation happens under one lock.
type retryHeap []retryEntry

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }
func (h retryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)        { *h = append(*h, x.(retryEntry)) }
func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// indexOf locates the entry for jobID, for use with heap.Remove.
func (h retryHeap) indexOf(jobID string) int {
	for i, e := range h {
		if e.job.ctx.JobID == jobID {
			return i
		}
	}
	return -1
}
