package instrument

import (
	"math"
	"time"

	"github.com/nikiz24/monitor/v2/metric"
)

// Collector produces one measurement per registry tick.
type Collector interface {
	Collect() metric.Value
}

// CollectorFunc adapts a plain function to Collector.
type CollectorFunc func() metric.Value

// Collect implements Collector.
func (f CollectorFunc) Collect() metric.Value { return f() }

// Number is the set of types gauges and counters can read.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

func isUnsigned[T Number]() bool {
	var zero T
	return zero-1 > zero
}

// pushNumber stores unsigned values as uint and everything else as float.
func pushNumber[T Number](v *metric.Value, n T, name string) {
	if isUnsigned[T]() {
		_ = v.PushUint(uint64(n), name)
		return
	}
	_ = v.PushFloat(float64(n), name)
}

// Gauge reports the current value of a function on every tick.
type Gauge[T Number] struct {
	read func() T
	name string
}

// NewGauge returns a gauge publishing read() under the field name (which may
// be empty).
func NewGauge[T Number](read func() T, name string) *Gauge[T] {
	return &Gauge[T]{read: read, name: name}
}

// Collect implements Collector.
func (g *Gauge[T]) Collect() metric.Value {
	v := metric.NewValue()
	pushNumber(&v, g.read(), g.name)
	return v
}

// Counter turns a monotonically increasing reading into a per-second rate.
//
// The first tick has no baseline and reports nothing. A reading lower than
// the previous one is treated as a reset (this includes unsigned wraparound)
// and also reports nothing; the new reading becomes the baseline. Counter is
// meant to be ticked from a single goroutine.
type Counter[T Number] struct {
	read func() T
	name string
	now  func() time.Time

	primed bool
	last   T
	lastAt time.Time
}

// CounterOption configures a Counter.
type CounterOption func(*counterOptions)

type counterOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CounterOption {
	return func(o *counterOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewCounter returns a rate counter reading read() on every tick.
func NewCounter[T Number](read func() T, name string, opts ...CounterOption) *Counter[T] {
	o := counterOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Counter[T]{read: read, name: name, now: o.now}
}

// Collect implements Collector. The rate is always a float.
func (c *Counter[T]) Collect() metric.Value {
	now := c.now()
	cur := c.read()
	v := metric.NewValueAt(now)

	rate := metric.NoMetricFloat
	if c.primed && cur >= c.last {
		elapsed := now.Sub(c.lastAt).Seconds()
		if math.Abs(elapsed) > epsilon {
			rate = float64(cur-c.last) / elapsed
		}
	}
	c.primed = true
	c.last = cur
	c.lastAt = now

	_ = v.PushFloat(rate, c.name)
	return v
}

const epsilon = 2.220446049250313e-16
