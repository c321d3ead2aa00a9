package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikiz24/monitor/v2/internal/logging"
	"github.com/nikiz24/monitor/v2/scheduler"
)

func parse(t *testing.T, args ...string) (*Settings, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	s, err := parse(t)
	require.NoError(t, err)

	assert.Equal(t, "app", s.Monitor.Namespace)
	assert.Equal(t, 15*time.Second, s.Monitor.Interval)
	assert.Equal(t, 1, s.Monitor.Threads)
	assert.Equal(t, scheduler.PlacementNone, s.Monitor.Placement)
	assert.Nil(t, s.Monitor.Console)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, logging.FormatConsole, s.LogFormat)
	assert.Empty(t, s.ConfigFile)
}

func TestYAMLFile(t *testing.T) {
	path := writeFile(t, "monitor.yaml", `
namespace: file
service: api
interval: 2s
threads: 4
contexts: 2
placement: all-cores
influx-url: http://influx:8086
influx-db: metrics
kafka-brokers:
  - a:9092
  - b:9092
kafka-topic: metrics
label:
  env: prod
log-format: json
`)
	s, err := parse(t, "--config", path, "--namespace", "flag")
	require.NoError(t, err)

	cfg := s.Monitor
	assert.Equal(t, "flag", cfg.Namespace, "flags win over the file")
	assert.Equal(t, "api", cfg.ServiceName)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, 2, cfg.Contexts)
	assert.Equal(t, scheduler.PlacementAllCores, cfg.Placement)
	assert.Equal(t, "http://influx:8086", cfg.InfluxURL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, map[string]string{"env": "prod"}, cfg.CustomLabels)
	assert.Equal(t, logging.FormatJSON, s.LogFormat)
	assert.Equal(t, path, s.ConfigFile)
}

func TestJSONFile(t *testing.T) {
	path := writeFile(t, "monitor.json", `{"service": "worker", "dns": true, "dns-udp": ["1.1.1.1:53"]}`)
	s, err := parse(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "worker", s.Monitor.ServiceName)
	assert.True(t, s.Monitor.DNSEnable)
	assert.Equal(t, []string{"1.1.1.1:53"}, s.Monitor.DNSUDPServers)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("MONITOR_SERVICE", "from-env")
	t.Setenv("MONITOR_REMOTE_WRITE_URL", "http://prom:9090/api/v1/write")

	s, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Monitor.ServiceName)
	assert.Equal(t, "http://prom:9090/api/v1/write", s.Monitor.RemoteWriteURL)
}

func TestFlags(t *testing.T) {
	s, err := parse(t, "--console", "--label", "dc=eu", "--interval", "500ms", "--prometheus")
	require.NoError(t, err)
	assert.NotNil(t, s.Monitor.Console)
	assert.Equal(t, map[string]string{"dc": "eu"}, s.Monitor.CustomLabels)
	assert.Equal(t, 500*time.Millisecond, s.Monitor.Interval)
	assert.True(t, s.Monitor.Prometheus)
}

func TestErrors(t *testing.T) {
	_, err := parse(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = parse(t, "--placement", "sideways")
	assert.Error(t, err)

	_, err = parse(t, "--threads", "3", "--contexts", "2")
	assert.Error(t, err)

	_, err = parse(t, "--kafka-brokers", "a:9092")
	assert.Error(t, err, "kafka needs a topic")
}
