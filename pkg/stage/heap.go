package stage

// allocHeap is a container/heap min-heap of *allocation ordered by
// allocTime, giving the liveness monitor cheap access to the oldest
// (most overdue) running attempt.
type allocHeap []*allocation

func (h allocHeap) Len() int { return len(h) }

func (h allocHeap) Less(i, j int) bool { return h[i].allocTime.Before(h[j].allocTime) }

func (h allocHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *allocHeap) Push(x any) {
	a := x.(*allocation)
	a.heapIndex = len(*h)
	*h = append(*h, a)
}

func (h *allocHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.heapIndex = -1
	*h = old[:n-1]
	return a
}
