package monitor

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/instrument"
	"github.com/nikiz24/monitor/v2/metric"
	"github.com/nikiz24/monitor/v2/reservoir"
)

// Counter returns the named counter, creating and registering it on first
// use. labels are given as [key1, value1, key2, value2, ...]; a trailing key
// without value is ignored. Each tick reports the per-second "rate" and the
// running "total".
func (m *Monitor) Counter(name string, labels ...string) *instrument.SharedCounter {
	key := formatKey(name, labels)
	m.mutex.RLock()
	counter, exists := m.counters[key]
	m.mutex.RUnlock()
	if exists {
		return counter
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if counter, exists = m.counters[key]; exists {
		return counter
	}
	counter = instrument.NewSharedCounter()
	m.register(m.seriesTag(name, labels), counterCollector(counter))
	m.counters[key] = counter
	return counter
}

func counterCollector(c *instrument.SharedCounter) instrument.Collector {
	rate := instrument.NewCounter(c.Sum, "rate")
	return instrument.CollectorFunc(func() metric.Value {
		v := rate.Collect()
		_ = v.PushUint(c.Sum(), "total")
		return v
	})
}

// Reservoir returns the named decaying reservoir, creating it on first use.
// Its summary (mean, min, max, variance and percentiles) is published on
// every tick.
func (m *Monitor) Reservoir(name string, labels ...string) *reservoir.ExpDecay {
	key := formatKey(name, labels)
	m.mutex.RLock()
	res, exists := m.reservoirs[key]
	m.mutex.RUnlock()
	if exists {
		return res
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if res, exists = m.reservoirs[key]; exists {
		return res
	}
	res = reservoir.NewExpDecay(
		reservoir.WithCapacity(m.cfg.ReservoirSize),
		reservoir.WithAlpha(m.cfg.ReservoirAlpha),
	)
	if err := m.registry.AddAggregated(m.seriesTag(name, labels), res); err != nil {
		m.logger.Warn("Cannot register reservoir", zap.String("name", name), zap.Error(err))
	}
	m.reservoirs[key] = res
	return res
}

// Latency returns the named HDR histogram, creating it on first use. Unlike
// Reservoir it never forgets: every value recorded since start is part of the
// published summary.
func (m *Monitor) Latency(name string, labels ...string) *reservoir.Histogram {
	key := formatKey(name, labels)
	m.mutex.RLock()
	h, exists := m.histograms[key]
	m.mutex.RUnlock()
	if exists {
		return h
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if h, exists = m.histograms[key]; exists {
		return h
	}
	h = reservoir.NewLatencyHistogram()
	if err := m.registry.AddAggregated(m.seriesTag(name, labels), h); err != nil {
		m.logger.Warn("Cannot register histogram", zap.String("name", name), zap.Error(err))
	}
	m.histograms[key] = h
	return h
}

// Time starts timing into the named reservoir, in microseconds.
func (m *Monitor) Time(name string, labels ...string) *instrument.TimeScope {
	return instrument.StartTimer(m.Reservoir(name, labels...), time.Microsecond)
}

// Gauge registers read under name. Unlike counters and reservoirs gauges
// are not cached: every call adds a generator.
func (m *Monitor) Gauge(name string, read func() float64, labels ...string) error {
	return m.registry.Add(m.seriesTag(name, labels), instrument.NewGauge(read, ""))
}

func (m *Monitor) register(tag metric.Tag, c instrument.Collector) {
	if err := m.registry.Add(tag, c); err != nil {
		m.logger.Warn("Cannot register collector", zap.Stringer("tag", tag), zap.Error(err))
	}
}

// seriesTag is the namespace tag with name appended and labels as pairs.
func (m *Monitor) seriesTag(name string, labels []string) metric.Tag {
	t := m.root.Child(name)
	for i := 0; i+1 < len(labels); i += 2 {
		t = t.With(labels[i], labels[i+1])
	}
	return t
}

// formatKey combines metric name and labels into a key
func formatKey(metricName string, labels []string) string {
	return metricName + "|" + strings.Join(labels, "|")
}
