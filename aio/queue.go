package aio

import "container/heap"

// reqHeap orders submissions by (priority, id): lower numeric priority
// first, ties broken by submission order since ids are monotonic.
type queued struct {
	priority int
	id       uint64
}

type reqHeap []queued

func (h reqHeap) Len() int { return len(h) }

func (h reqHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].id < h[j].id
}

func (h reqHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *reqHeap) Push(x interface{}) {
	*h = append(*h, x.(queued))
}

func (h *reqHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*reqHeap)(nil)
