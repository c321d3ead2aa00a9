// Package config loads a monitor.Config from a YAML/JSON file, MONITOR_*
// environment variables and command line flags, in increasing order of
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	monitor "github.com/nikiz24/monitor/v2"
	"github.com/nikiz24/monitor/v2/internal/logging"
	"github.com/nikiz24/monitor/v2/scheduler"
)

const envPrefix = "MONITOR"

// Settings is everything a command needs to run a Monitor.
type Settings struct {
	Monitor   monitor.Config
	LogLevel  string
	LogFormat logging.Format
	// Listen is the address serving /metrics when Monitor.Prometheus is set.
	Listen string
	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string
}

// Flags registers every flag Load understands. File keys and environment
// variables use the same names (MONITOR_INFLUX_URL for influx-url).
func Flags(fs *pflag.FlagSet) {
	d := monitor.DefaultConfig()

	fs.String("config", "", "Path to a YAML or JSON config file")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", string(logging.FormatConsole), "Log format: console or json")
	fs.String("listen", ":9100", "Address serving /metrics when --prometheus is set")

	fs.String("namespace", d.Namespace, "Root name of every series")
	fs.String("service", d.ServiceName, "Service name")
	fs.String("version", "", "Service version, exported as the version label")
	fs.Duration("interval", d.Interval, "Collection period")
	fs.Int("threads", d.Threads, "Scheduler worker goroutines")
	fs.Int("contexts", d.Contexts, "Scheduler contexts (serial queues)")
	fs.String("placement", d.Placement.String(), "Worker placement: none, physical-cores, all-cores")
	fs.Int("reservoir-size", d.ReservoirSize, "Samples kept per reservoir")
	fs.Float64("reservoir-alpha", d.ReservoirAlpha, "Reservoir decay factor")
	fs.StringToString("label", nil, "Custom label key=value, repeatable")

	fs.Bool("console", false, "Print every batch to stdout")
	fs.String("graphite", "", "Graphite carbon address host:port")
	fs.String("influx-url", "", "InfluxDB base URL")
	fs.String("influx-db", "", "InfluxDB database")
	fs.String("remote-write-url", "", "Prometheus remote write URL")
	fs.String("instance-ip", "", "Instance label value (default: outbound IPv4)")
	fs.StringSlice("kafka-brokers", nil, "Kafka brokers")
	fs.String("kafka-topic", "", "Kafka topic")
	fs.Bool("prometheus", false, "Expose the last batch for Prometheus scraping")

	fs.Bool("dns", false, "Use the custom DNS resolvers for sink endpoints")
	fs.Duration("dns-cache-ttl", 0, "DNS cache TTL")
	fs.Duration("dns-refresh-interval", 0, "Remote write DNS refresh period")
	fs.Duration("dns-timeout", 0, "DNS query timeout")
	fs.StringSlice("dns-udp", nil, "DNS servers over UDP (host:port)")
	fs.StringSlice("dns-tls", nil, "DNS-over-TLS servers (host:port)")
	fs.StringSlice("dns-doh", nil, "DNS-over-HTTPS endpoints")
}

// Load merges the config file named by --config, the environment and the
// parsed flags of fs, then validates the result.
func Load(fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	configPath := v.GetString("config")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	placement, err := scheduler.ParsePlacement(v.GetString("placement"))
	if err != nil {
		return nil, fmt.Errorf("placement: %w", err)
	}

	cfg := monitor.DefaultConfig()
	cfg.Namespace = v.GetString("namespace")
	cfg.ServiceName = v.GetString("service")
	cfg.Version = v.GetString("version")
	cfg.Interval = v.GetDuration("interval")
	cfg.Threads = v.GetInt("threads")
	cfg.Contexts = v.GetInt("contexts")
	cfg.Placement = placement
	cfg.ReservoirSize = v.GetInt("reservoir-size")
	cfg.ReservoirAlpha = v.GetFloat64("reservoir-alpha")
	if labels := v.GetStringMapString("label"); len(labels) > 0 {
		cfg.CustomLabels = labels
	}
	if v.GetBool("console") {
		cfg.Console = os.Stdout
	}
	cfg.GraphiteAddr = v.GetString("graphite")
	cfg.InfluxURL = v.GetString("influx-url")
	cfg.InfluxDB = v.GetString("influx-db")
	cfg.RemoteWriteURL = v.GetString("remote-write-url")
	cfg.InstanceIP = v.GetString("instance-ip")
	cfg.KafkaBrokers = v.GetStringSlice("kafka-brokers")
	cfg.KafkaTopic = v.GetString("kafka-topic")
	cfg.Prometheus = v.GetBool("prometheus")
	cfg.DNSEnable = v.GetBool("dns")
	cfg.DNSCacheTTL = v.GetDuration("dns-cache-ttl")
	cfg.DNSRefreshInterval = v.GetDuration("dns-refresh-interval")
	cfg.DNSTimeout = v.GetDuration("dns-timeout")
	cfg.DNSUDPServers = v.GetStringSlice("dns-udp")
	cfg.DNSTLSServers = v.GetStringSlice("dns-tls")
	cfg.DNSDoHEndpoints = v.GetStringSlice("dns-doh")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Settings{
		Monitor:    cfg,
		LogLevel:   v.GetString("log-level"),
		LogFormat:  logging.Format(v.GetString("log-format")),
		Listen:     v.GetString("listen"),
		ConfigFile: configPath,
	}, nil
}
