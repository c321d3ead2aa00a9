package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/nikiz24/monitor/v2/instrument"
	"github.com/nikiz24/monitor/v2/metric"
)

// Global monitor instance
var (
	globalMutex   sync.RWMutex
	globalMonitor *Monitor
)

// Init initializes the global monitoring system. Calling Init again before
// Shutdown does nothing.
func Init(config Config) error {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalMonitor != nil {
		return nil
	}
	m, err := New(config)
	if err != nil {
		return err
	}
	globalMonitor = m
	return nil
}

// Default returns the global monitor, or nil before Init.
func Default() *Monitor {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalMonitor
}

// Shutdown shuts down the global monitoring system
func Shutdown() {
	globalMutex.Lock()
	m := globalMonitor
	globalMonitor = nil
	globalMutex.Unlock()
	if m != nil {
		_ = m.Stop()
	}
}

// Counter functions

// IncrementCounter increments a counter by 1
// labels should be provided as [key1, value1, key2, value2, ...]
func IncrementCounter(name string, labels ...string) {
	if m := Default(); m != nil {
		m.Counter(name, labels...).Inc()
	}
}

// AddCounter adds a specific value to a counter
func AddCounter(name string, delta uint64, labels ...string) {
	if m := Default(); m != nil {
		m.Counter(name, labels...).Add(delta)
	}
}

// GetCounter gets the current total of a counter
func GetCounter(name string, labels ...string) uint64 {
	if m := Default(); m != nil {
		return m.Counter(name, labels...).Sum()
	}
	return 0
}

// Histogram functions

// ObserveHistogram records a value in the named reservoir
func ObserveHistogram(name string, value float64, labels ...string) {
	if m := Default(); m != nil {
		m.Reservoir(name, labels...).Push(value)
	}
}

// StartTimer times a section of code into the named reservoir. It returns
// nil before Init; a nil *TimeScope must not be stopped, so callers that
// may run uninitialized should check.
func StartTimer(name string, labels ...string) *instrument.TimeScope {
	if m := Default(); m != nil {
		return m.Time(name, labels...)
	}
	return nil
}

// Collector registration

// RegisterCollector registers a custom collector under tag
func RegisterCollector(tag metric.Tag, collector instrument.Collector) error {
	m := Default()
	if m == nil {
		return fmt.Errorf("global monitor is not initialized")
	}
	return m.Registry().Add(tag, collector)
}

// RefreshConnection attempts to refresh the remote write connection
// This is useful for DNS changes or network connectivity issues
func RefreshConnection(ctx context.Context) error {
	m := Default()
	if m == nil {
		return fmt.Errorf("monitor system not initialized")
	}
	m.RefreshConnection(ctx)
	return nil
}

// ForceWrite immediately collects and publishes all current metrics
// This is useful for health checks and testing
func ForceWrite() error {
	m := Default()
	if m == nil {
		return fmt.Errorf("monitor system not initialized")
	}
	m.Flush()
	return nil
}
