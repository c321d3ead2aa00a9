package reservoir

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultCapacity        = 1028
	DefaultAlpha           = 0.015
	DefaultRescaleInterval = time.Hour
)

// ExpDecay is a forward-decaying priority sample. Each observation gets the
// weight exp(alpha * secondsSinceLandmark) and a priority of weight*u with u
// drawn uniformly from (0, 1]; the capacity highest priorities are kept, so
// recent observations dominate the sample.
//
// Weights grow with time. Every rescale interval the landmark moves to the
// current time and all weights and priorities are multiplied by the same
// factor, which leaves their order unchanged.
//
// Push serializes on a mutex: concurrent producers block briefly instead of
// losing samples.
type ExpDecay struct {
	mu sync.Mutex

	capacity     int
	alpha        float64
	rescaleEvery time.Duration
	now          func() time.Time
	rng          *rand.Rand

	landmark    time.Time
	nextRescale time.Time
	samples     sampleHeap
}

// Option configures an ExpDecay.
type Option func(*ExpDecay)

// WithCapacity bounds the number of retained samples.
func WithCapacity(n int) Option {
	return func(r *ExpDecay) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithAlpha sets the decay factor. Larger values forget faster.
func WithAlpha(alpha float64) Option {
	return func(r *ExpDecay) {
		if alpha > 0 {
			r.alpha = alpha
		}
	}
}

// WithRescaleInterval sets how often the landmark is moved forward.
func WithRescaleInterval(d time.Duration) Option {
	return func(r *ExpDecay) {
		if d > 0 {
			r.rescaleEvery = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *ExpDecay) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSeed makes sampling deterministic.
func WithSeed(seed uint64) Option {
	return func(r *ExpDecay) {
		r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewExpDecay returns an empty reservoir. Defaults: capacity 1028, alpha
// 0.015, rescale every hour.
func NewExpDecay(opts ...Option) *ExpDecay {
	r := &ExpDecay{
		capacity:     DefaultCapacity,
		alpha:        DefaultAlpha,
		rescaleEvery: DefaultRescaleInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	r.landmark = r.now()
	r.nextRescale = r.landmark.Add(r.rescaleEvery)
	r.samples = make(sampleHeap, 0, r.capacity)
	return r
}

// Kind implements Reservoir.
func (r *ExpDecay) Kind() Kind { return KindWeighted }

// Capacity returns the maximum number of retained samples.
func (r *ExpDecay) Capacity() int { return r.capacity }

// Size implements Reservoir.
func (r *ExpDecay) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Push records v observed now.
func (r *ExpDecay) Push(v float64) {
	r.PushAt(v, r.now())
}

// PushAt records v observed at t.
func (r *ExpDecay) PushAt(v float64, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !t.Before(r.nextRescale) {
		r.rescale(t)
	}

	weight := math.Exp(r.alpha * t.Sub(r.landmark).Seconds())
	u := 1 - r.rng.Float64()
	admit(&r.samples, r.capacity, sample{value: v, weight: weight, priority: weight * u})
}

// Rescale moves the landmark to now regardless of the schedule.
func (r *ExpDecay) Rescale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescale(r.now())
}

func (r *ExpDecay) rescale(now time.Time) {
	factor := math.Exp(-r.alpha * now.Sub(r.landmark).Seconds())
	for i := range r.samples {
		r.samples[i].weight *= factor
		r.samples[i].priority *= factor
	}
	r.landmark = now
	r.nextRescale = now.Add(r.rescaleEvery)
}

// Visit implements Reservoir. Samples are visited in heap order.
func (r *ExpDecay) Visit(fn func(weight, value float64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.samples {
		fn(s.weight, s.value)
	}
}

// Clear drops every sample and resets the landmark.
func (r *ExpDecay) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = r.samples[:0]
	r.landmark = r.now()
	r.nextRescale = r.landmark.Add(r.rescaleEvery)
}
