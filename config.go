package monitor

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/internal/resolve"
	"github.com/nikiz24/monitor/v2/scheduler"
)

// Config defines the configuration for the metrics system
type Config struct {
	// Service identification. Namespace is the root name of every series
	// created through the Monitor's named instruments.
	Namespace   string
	ServiceName string
	Version     string

	// Collection
	Interval  time.Duration
	Threads   int
	Contexts  int
	Placement scheduler.Placement

	// Reservoirs created by Monitor.Reservoir
	ReservoirSize  int
	ReservoirAlpha float64

	// Console, when set, receives a human readable line per entry.
	Console io.Writer

	// Graphite plaintext over TCP, e.g. "carbon:2003"
	GraphiteAddr string

	// InfluxDB 1.x /write endpoint
	InfluxURL string
	InfluxDB  string

	// Prometheus remote write
	RemoteWriteURL string
	InstanceIP     string

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string

	// Prometheus pull: expose the last batch through Monitor.Collector.
	Prometheus bool

	// CustomLabels are attached to every exported series.
	CustomLabels map[string]string

	// Optional logger
	Logger *zap.Logger

	// DNS resolver options (optional, for advanced use cases)
	DNSEnable          bool
	DNSCacheTTL        time.Duration
	DNSRefreshInterval time.Duration
	DNSTimeout         time.Duration
	DNSUDPServers      []string // e.g. ["1.1.1.1:53", "8.8.8.8:53"]
	DNSTLSServers      []string // e.g. ["1.1.1.1:853", "9.9.9.9:853"]
	DNSDoHEndpoints    []string // e.g. ["https://cloudflare-dns.com/dns-query"]
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Namespace:      "app",
		ServiceName:    "service",
		Interval:       15 * time.Second,
		Threads:        1,
		Contexts:       1,
		Placement:      scheduler.PlacementNone,
		ReservoirSize:  1028,
		ReservoirAlpha: 0.015,
		CustomLabels:   make(map[string]string),
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.ServiceName == "" {
		result = multierror.Append(result, errors.New("service name cannot be empty"))
	}
	if c.Interval <= 0 {
		result = multierror.Append(result, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Threads < 1 || c.Contexts < 1 || c.Contexts > c.Threads || c.Threads%c.Contexts != 0 {
		result = multierror.Append(result,
			fmt.Errorf("threads (%d) must be a positive multiple of contexts (%d)", c.Threads, c.Contexts))
	}
	if c.ReservoirSize < 0 {
		result = multierror.Append(result, fmt.Errorf("reservoir size cannot be negative, got %d", c.ReservoirSize))
	}
	if c.InfluxURL != "" && c.InfluxDB == "" {
		result = multierror.Append(result, errors.New("influx database is required with an influx url"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		result = multierror.Append(result, errors.New("kafka topic is required with kafka brokers"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("monitor: invalid config: %w", err)
	}
	return nil
}

func (c Config) resolveOptions() resolve.Options {
	return resolve.Options{
		Enabled:         c.DNSEnable,
		CacheTTL:        c.DNSCacheTTL,
		RefreshInterval: c.DNSRefreshInterval,
		Timeout:         c.DNSTimeout,
		UDPServers:      append([]string(nil), c.DNSUDPServers...),
		TLSServers:      append([]string(nil), c.DNSTLSServers...),
		DoHEndpoints:    append([]string(nil), c.DNSDoHEndpoints...),
	}
}

// exportLabels are the custom labels plus the version, if set.
func (c Config) exportLabels() map[string]string {
	labels := make(map[string]string, len(c.CustomLabels)+1)
	for k, v := range c.CustomLabels {
		labels[k] = v
	}
	if c.Version != "" {
		labels["version"] = c.Version
	}
	return labels
}
