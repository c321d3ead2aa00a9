// Package promcollector exposes the most recent batch to a Prometheus
// scrape. It is both a sink.Sink, fed by the registry, and an unchecked
// prometheus.Collector.
package promcollector

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/internal/promname"
	"github.com/nikiz24/monitor/v2/metric"
)

// Collector keeps the last published batch and reports each numeric or
// boolean field as a gauge.
type Collector struct {
	namespace   string
	constLabels prometheus.Labels
	logger      *zap.Logger

	mu   sync.RWMutex
	last metric.Batch
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger reporting series dropped during a scrape.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns an empty collector. Metric names are prefixed by namespace and
// every series carries constLabels.
func New(namespace string, constLabels map[string]string, opts ...Option) *Collector {
	labels := make(prometheus.Labels, len(constLabels))
	for k, v := range constLabels {
		labels[promname.Label(k)] = v
	}
	c := &Collector{namespace: namespace, constLabels: labels, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish implements sink.Sink.
func (c *Collector) Publish(batch metric.Batch) {
	c.mu.Lock()
	c.last = batch
	c.mu.Unlock()
}

// Describe sends nothing, which makes the collector unchecked: the set of
// series follows whatever the registry produced last.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector. A series whose sanitized name and
// label values were already emitted in this scrape is skipped, so the first
// entry of the batch wins.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	batch := c.last
	c.mu.RUnlock()

	seen := make(map[string]struct{})
	help := make(map[string]string)
	var duplicates int
	for _, e := range batch {
		pairs := e.Tag.Pairs()
		keys := make([]string, len(pairs))
		values := make([]string, len(pairs))
		for i, p := range pairs {
			keys[i] = promname.Label(p.Key)
			values[i] = p.Value
		}

		emit := func(field string, v float64) {
			name := promname.Metric(c.namespace, e.Tag.Name(), field)
			id := seriesID(name, keys, values)
			if _, dup := seen[id]; dup {
				duplicates++
				return
			}
			seen[id] = struct{}{}
			// Every series of one family must share its help text.
			h, ok := help[name]
			if !ok {
				h = fmt.Sprintf("Series %s.", e.Tag.Name())
				help[name] = h
			}
			desc := prometheus.NewDesc(name, h, keys, c.constLabels)
			m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, values...)
			if err != nil {
				ch <- prometheus.NewInvalidMetric(desc, err)
				return
			}
			ch <- m
		}
		for _, f := range e.Value.Floats() {
			emit(f.Name, f.Value)
		}
		for _, f := range e.Value.Uints() {
			emit(f.Name, float64(f.Value))
		}
		for _, f := range e.Value.Bools() {
			if f.Value {
				emit(f.Name, 1)
			} else {
				emit(f.Name, 0)
			}
		}
	}
	if duplicates > 0 {
		c.logger.Warn("Skipped duplicate series", zap.Int("series", duplicates))
	}
}

// seriesID identifies a series by name and label set, independent of label
// order.
func seriesID(name string, keys, values []string) string {
	pairs := make([]string, len(keys))
	for i := range keys {
		pairs[i] = keys[i] + "\x00" + values[i]
	}
	slices.Sort(pairs)
	return name + "\xff" + strings.Join(pairs, "\xff")
}
