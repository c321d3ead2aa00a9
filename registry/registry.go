package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/aggregate"
	"github.com/nikiz24/monitor/v2/instrument"
	"github.com/nikiz24/monitor/v2/metric"
	"github.com/nikiz24/monitor/v2/reservoir"
	"github.com/nikiz24/monitor/v2/scheduler"
	"github.com/nikiz24/monitor/v2/sink"
)

// ErrStopped is returned when registering on a stopped registry.
var ErrStopped = errors.New("registry: stopped")

var errNilSink = errors.New("registry: nil sink")

const tracerName = "github.com/nikiz24/monitor/v2/registry"

type generator struct {
	tag       metric.Tag
	collector instrument.Collector
}

// Registry polls its generators on a scheduler timer and multicasts each
// non-empty batch to its subscribed sinks. Generators run in registration
// order and empty values are left out of the batch.
//
// Generators and sinks run under the registry lock. They must not call
// Add, RemoveAll, Subscribe or Unsubscribe on the same registry.
type Registry struct {
	mu         sync.Mutex
	generators []generator
	subs       []*Subscription
	stopped    bool

	period time.Duration
	timer  *scheduler.Timer
	logger *zap.Logger
	tracer trace.Tracer
	target scheduler.Target
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for recovered generator and sink panics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer sets the tracer used for tick spans. The default is the global
// OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithTarget sets the scheduler context ticks run on. The default is
// context 0.
func WithTarget(target scheduler.Target) Option {
	return func(r *Registry) { r.target = target }
}

// New creates a registry and arms a timer on sched firing every period.
func New(sched *scheduler.Scheduler, period time.Duration, opts ...Option) (*Registry, error) {
	if sched == nil {
		return nil, errors.New("registry: scheduler is required")
	}
	r := &Registry{
		period: period,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		target: scheduler.OnContext(0),
	}
	for _, opt := range opts {
		opt(r)
	}

	timer, err := sched.ScheduleFunc(period, r.tick, r.target)
	if err != nil {
		return nil, fmt.Errorf("registry: arming timer: %w", err)
	}
	r.timer = timer
	return r, nil
}

// Period returns the collection period.
func (r *Registry) Period() time.Duration { return r.period }

// Add registers c under tag. The registry keeps c until RemoveAll or Stop.
func (r *Registry) Add(tag metric.Tag, c instrument.Collector) error {
	if c == nil {
		return errors.New("registry: nil collector")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	r.generators = append(r.generators, generator{tag: tag, collector: c})
	return nil
}

// AddFunc registers fn as a generator under tag.
func (r *Registry) AddFunc(tag metric.Tag, fn func() metric.Value) error {
	if fn == nil {
		return errors.New("registry: nil generator")
	}
	return r.Add(tag, instrument.CollectorFunc(fn))
}

// AddAggregated registers a generator summarizing res on every tick. The
// caller keeps ownership of res and must keep it alive until the generator
// is removed.
func (r *Registry) AddAggregated(tag metric.Tag, res reservoir.Reservoir) error {
	if res == nil {
		return errors.New("registry: nil reservoir")
	}
	return r.Add(tag, instrument.CollectorFunc(func() metric.Value {
		return aggregate.Summarize(res)
	}))
}

// RemoveAll drops every generator whose tag has prefix as a prefix and
// returns how many were removed.
func (r *Registry) RemoveAll(prefix metric.Tag) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.generators[:0]
	for _, g := range r.generators {
		if !prefix.IsPrefixOf(g.tag) {
			kept = append(kept, g)
		}
	}
	removed := len(r.generators) - len(kept)
	for i := len(kept); i < len(r.generators); i++ {
		r.generators[i] = generator{}
	}
	r.generators = kept
	return removed
}

// Len returns the number of generators.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.generators)
}

// Flush runs one collection tick synchronously on the calling goroutine.
func (r *Registry) Flush() {
	r.tick()
}

// Stop cancels the timer and drops every generator and sink. Stop is
// idempotent; later registrations fail with ErrStopped.
func (r *Registry) Stop() {
	if r.timer != nil {
		r.timer.Cancel()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	r.generators = nil
	r.subs = nil
}

func (r *Registry) tick() {
	_, span := r.tracer.Start(context.Background(), "registry.tick")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		span.SetAttributes(attribute.Bool("registry.stopped", true))
		return
	}

	var failures int
	batch := make(metric.Batch, 0, len(r.generators))
	for _, g := range r.generators {
		v, err := r.collect(g)
		if err != nil {
			failures++
			span.RecordError(err)
			continue
		}
		if v.IsEmpty() {
			continue
		}
		batch = append(batch, metric.Entry{Tag: g.tag, Value: v})
	}

	if len(batch) > 0 {
		for _, s := range r.subs {
			if err := r.publish(s.sink, batch); err != nil {
				failures++
				span.RecordError(err)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("registry.generators", len(r.generators)),
		attribute.Int("registry.entries", len(batch)),
		attribute.Int("registry.sinks", len(r.subs)),
	)
	if failures > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d generator or sink failures", failures))
	}
}

func (r *Registry) collect(g generator) (v metric.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("generator %s panicked: %v", g.tag, p)
			r.logger.Error("Metric generator failed, skipping it for this tick",
				zap.Stringer("tag", g.tag),
				zap.Any("panic", p))
		}
	}()
	return g.collector.Collect(), nil
}

func (r *Registry) publish(s sink.Sink, batch metric.Batch) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink %T panicked: %v", s, p)
			r.logger.Error("Metric sink failed",
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.Any("panic", p))
		}
	}()
	s.Publish(batch)
	return nil
}
