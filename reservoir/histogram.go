package reservoir

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram is a simple, unweighted reservoir backed by an HDR histogram.
// It keeps every observation at a fixed relative precision instead of
// sampling, which suits bounded integer measurements such as latencies.
type Histogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewHistogram tracks integer values in [lowest, highest] with the given
// number of significant figures (1 to 5).
func NewHistogram(lowest, highest int64, sigfigs int) *Histogram {
	return &Histogram{hist: hdrhistogram.New(lowest, highest, sigfigs)}
}

// NewLatencyHistogram tracks microsecond latencies from 1µs to one minute.
func NewLatencyHistogram() *Histogram {
	return NewHistogram(1, 60_000_000, 3)
}

// Record adds v, clamped to the trackable range.
func (h *Histogram) Record(v int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if lo := h.hist.LowestTrackableValue(); v < lo {
		v = lo
	}
	if hi := h.hist.HighestTrackableValue(); v > hi {
		v = hi
	}
	_ = h.hist.RecordValue(v)
}

// Push adds v after truncating it to an integer.
func (h *Histogram) Push(v float64) {
	h.Record(int64(v))
}

// Kind implements Reservoir.
func (h *Histogram) Kind() Kind { return KindSimple }

// Size returns the number of recorded values.
func (h *Histogram) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int(h.hist.TotalCount())
}

// Visit implements Reservoir. Each non-empty bucket is reported once with its
// count as weight and its upper bound as value.
func (h *Histogram) Visit(fn func(weight, value float64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, bar := range h.hist.Distribution() {
		if bar.Count == 0 {
			continue
		}
		fn(float64(bar.Count), float64(bar.To))
	}
}

// Reset drops all recorded values.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hist.Reset()
}
