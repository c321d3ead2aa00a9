package monitor

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/instrument"
	"github.com/nikiz24/monitor/v2/internal/resolve"
	"github.com/nikiz24/monitor/v2/metric"
	"github.com/nikiz24/monitor/v2/registry"
	"github.com/nikiz24/monitor/v2/reservoir"
	"github.com/nikiz24/monitor/v2/scheduler"
	"github.com/nikiz24/monitor/v2/sink"
	"github.com/nikiz24/monitor/v2/sink/graphite"
	"github.com/nikiz24/monitor/v2/sink/influxdb"
	"github.com/nikiz24/monitor/v2/sink/kafka"
	"github.com/nikiz24/monitor/v2/sink/promcollector"
	"github.com/nikiz24/monitor/v2/sink/remotewrite"
)

// Monitor owns a scheduler, the registry ticking on it and the sinks built
// from the Config.
type Monitor struct {
	cfg    Config
	logger *zap.Logger
	root   metric.Tag

	sched    *scheduler.Scheduler
	registry *registry.Registry
	resolver *resolve.Resolver
	remote   *remotewrite.Sink
	pull     *promcollector.Collector
	dnsTimer *scheduler.Timer
	closers  []func() error

	mutex      sync.RWMutex
	counters   map[string]*instrument.SharedCounter
	reservoirs map[string]*reservoir.ExpDecay
	histograms map[string]*reservoir.Histogram

	stopOnce sync.Once
	stopErr  error
}

// New validates cfg, starts the scheduler and attaches every configured
// sink.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sched, err := scheduler.New(cfg.Threads, cfg.Contexts,
		scheduler.WithName(cfg.ServiceName), scheduler.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	sched.Start(nil, cfg.Placement)

	reg, err := registry.New(sched, cfg.Interval, registry.WithLogger(logger))
	if err != nil {
		sched.Stop()
		return nil, err
	}

	m := &Monitor{
		cfg:        cfg,
		logger:     logger,
		root:       metric.NewTag(cfg.Namespace),
		sched:      sched,
		registry:   reg,
		resolver:   resolve.New(cfg.resolveOptions(), logger),
		counters:   make(map[string]*instrument.SharedCounter),
		reservoirs: make(map[string]*reservoir.ExpDecay),
		histograms: make(map[string]*reservoir.Histogram),
	}
	if err := m.attachSinks(); err != nil {
		_ = m.Stop()
		return nil, err
	}

	logger.Info("monitor system initialized",
		zap.String("namespace", cfg.Namespace),
		zap.String("service", cfg.ServiceName),
		zap.Duration("interval", cfg.Interval))
	return m, nil
}

// labelTag turns labels into an unnamed tag with pairs sorted by key.
func labelTag(labels map[string]string) metric.Tag {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	t := metric.NewTag("")
	for _, k := range keys {
		t = t.With(k, labels[k])
	}
	return t
}

func (m *Monitor) attachSinks() error {
	cfg := m.cfg
	labels := cfg.exportLabels()
	prefix := labelTag(labels)

	if cfg.Console != nil {
		if err := m.attach(sink.NewConsole(cfg.Console, m.logger)); err != nil {
			return err
		}
	}

	if cfg.GraphiteAddr != "" {
		g, closeFn := graphite.Dial(cfg.GraphiteAddr, prefix, m.resolver, m.logger)
		m.closers = append(m.closers, closeFn)
		if err := m.attach(g); err != nil {
			return err
		}
	}

	if cfg.InfluxURL != "" {
		s, err := influxdb.New(cfg.InfluxURL, cfg.InfluxDB,
			influxdb.WithPrefix(prefix), influxdb.WithLogger(m.logger))
		if err != nil {
			return err
		}
		if err := m.attach(s); err != nil {
			return err
		}
	}

	if cfg.RemoteWriteURL != "" {
		r, err := remotewrite.New(remotewrite.Options{
			URL:          cfg.RemoteWriteURL,
			ServiceName:  cfg.ServiceName,
			InstanceIP:   cfg.InstanceIP,
			CustomLabels: labels,
		}, m.resolver, m.logger)
		if err != nil {
			return err
		}
		m.remote = r
		m.closers = append(m.closers, func() error { r.Close(); return nil })
		if err := m.attach(r); err != nil {
			return err
		}
		if m.resolver.Enabled() {
			m.dnsTimer, err = m.sched.ScheduleFunc(m.resolver.RefreshInterval(), func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				r.RefreshDNS(ctx)
			}, scheduler.RoundRobin)
			if err != nil {
				return fmt.Errorf("monitor: scheduling dns refresh: %w", err)
			}
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		k, err := kafka.Dial(cfg.KafkaBrokers, cfg.KafkaTopic, prefix, m.logger)
		if err != nil {
			return err
		}
		m.closers = append(m.closers, k.Close)
		if err := m.attach(k); err != nil {
			return err
		}
	}

	if cfg.Prometheus {
		m.pull = promcollector.New("", labels, promcollector.WithLogger(m.logger))
		if err := m.attach(m.pull); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) attach(s sink.Sink) error {
	_, err := m.registry.Subscribe(s)
	return err
}

// Registry returns the registry driving collection.
func (m *Monitor) Registry() *registry.Registry { return m.registry }

// Scheduler returns the scheduler the registry ticks on. It can run
// application work as well.
func (m *Monitor) Scheduler() *scheduler.Scheduler { return m.sched }

// Collector returns the Prometheus collector, or nil unless
// Config.Prometheus is set.
func (m *Monitor) Collector() *promcollector.Collector { return m.pull }

// Subscribe attaches an additional sink.
func (m *Monitor) Subscribe(s sink.Sink) (*registry.Subscription, error) {
	return m.registry.Subscribe(s)
}

// Flush collects and publishes immediately.
func (m *Monitor) Flush() { m.registry.Flush() }

// RefreshConnection re-resolves the remote write endpoint and reports
// whether its address changed. It is a no-op without remote write.
func (m *Monitor) RefreshConnection(ctx context.Context) bool {
	if m.remote == nil {
		return false
	}
	return m.remote.RefreshDNS(ctx)
}

// Stop halts collection, stops the scheduler and closes the sinks. Only the
// first call does anything; later calls return the same result.
func (m *Monitor) Stop() error {
	m.stopOnce.Do(func() {
		if m.dnsTimer != nil {
			m.dnsTimer.Cancel()
		}
		m.registry.Stop()
		m.sched.Stop()

		var result *multierror.Error
		for i := len(m.closers) - 1; i >= 0; i-- {
			if err := m.closers[i](); err != nil {
				result = multierror.Append(result, err)
			}
		}
		m.stopErr = result.ErrorOrNil()
		m.logger.Debug("monitor system stopped", zap.String("service", m.cfg.ServiceName))
	})
	return m.stopErr
}
