package reservoir

import "container/heap"

type sample struct {
	value    float64
	weight   float64
	priority float64
}

// sampleHeap is a min-heap on priority.
type sampleHeap []sample

func (h sampleHeap) Len() int           { return len(h) }
func (h sampleHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h sampleHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *sampleHeap) Push(x any) { *h = append(*h, x.(sample)) }

func (h *sampleHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	*h = old[:n-1]
	return s
}

// admit inserts s while the heap holds fewer than capacity samples. Once
// full, s replaces the lowest-priority sample only if its priority is
// strictly greater; otherwise it is dropped. It reports whether s was kept.
func admit(h *sampleHeap, capacity int, s sample) bool {
	if h.Len() < capacity {
		heap.Push(h, s)
		return true
	}
	if h.Len() == 0 || s.priority <= (*h)[0].priority {
		return false
	}
	(*h)[0] = s
	heap.Fix(h, 0)
	return true
}
