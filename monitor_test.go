package monitor

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikiz24/monitor/v2/instrument"
	"github.com/nikiz24/monitor/v2/metric"
	"github.com/nikiz24/monitor/v2/registry"
	"github.com/nikiz24/monitor/v2/sink"
)

var emptyCollector = instrument.CollectorFunc(func() metric.Value { return metric.NewValue() })

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Namespace = "app"
	cfg.ServiceName = "test"
	// Long enough that only Flush produces batches.
	cfg.Interval = time.Hour
	return cfg
}

func newMonitor(t *testing.T, cfg Config) *Monitor {
	t.Helper()
	m, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

// capture subscribes a sink keeping the last batch.
func capture(t *testing.T, m *Monitor) *metric.Batch {
	t.Helper()
	var last metric.Batch
	_, err := m.Subscribe(sink.Func(func(b metric.Batch) { last = b }))
	require.NoError(t, err)
	return &last
}

func find(t *testing.T, batch metric.Batch, name string) metric.Entry {
	t.Helper()
	for _, e := range batch {
		if e.Tag.Name() == name {
			return e
		}
	}
	t.Fatalf("no entry named %q in batch of %d", name, len(batch))
	return metric.Entry{}
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ServiceName = ""
	cfg.Interval = 0
	cfg.Threads, cfg.Contexts = 3, 2
	cfg.InfluxURL = "http://localhost:8086"
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"service name", "interval", "threads (3)", "influx database"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = New(cfg)
	assert.Error(t, err)
}

func TestCounter(t *testing.T) {
	m := newMonitor(t, testConfig())
	last := capture(t, m)

	a := m.Counter("requests", "route", "/a")
	assert.Same(t, a, m.Counter("requests", "route", "/a"))
	assert.NotSame(t, a, m.Counter("requests", "route", "/b"))

	a.Add(3)
	a.Inc()
	m.Flush()

	e := find(t, *last, "app.requests")
	assert.Equal(t, []metric.Pair{{Key: "route", Value: "/a"}}, e.Tag.Pairs())
	total, err := e.Value.UintField("total")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), total)
	_, err = e.Value.FloatField("rate")
	assert.ErrorIs(t, err, metric.ErrValueNotFound, "no rate before a baseline exists")

	a.Add(6)
	m.Flush()
	e = find(t, *last, "app.requests")
	rate, err := e.Value.FloatField("rate")
	require.NoError(t, err)
	assert.Greater(t, rate, 0.0)
}

func TestReservoirAndTimer(t *testing.T) {
	m := newMonitor(t, testConfig())
	last := capture(t, m)

	res := m.Reservoir("latency")
	assert.Same(t, res, m.Reservoir("latency"))
	for i := 1; i <= 100; i++ {
		res.Push(float64(i))
	}
	m.Time("query").Stop()
	m.Flush()

	e := find(t, *last, "app.latency")
	highest, err := e.Value.FloatField("max")
	require.NoError(t, err)
	assert.Equal(t, 100.0, highest)
	p99, err := e.Value.FloatField("p99")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p99, 95.0)

	q := find(t, *last, "app.query")
	assert.False(t, q.Value.IsEmpty())
}

func TestLatencyHistogram(t *testing.T) {
	m := newMonitor(t, testConfig())
	last := capture(t, m)

	h := m.Latency("rpc", "method", "get")
	assert.Same(t, h, m.Latency("rpc", "method", "get"))
	assert.NotSame(t, h, m.Latency("rpc", "method", "put"))
	for _, us := range []int64{100, 200, 1000} {
		h.Record(us)
	}
	m.Flush()

	e := find(t, *last, "app.rpc")
	highest, err := e.Value.FloatField("max")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, highest, 1)
}

func TestGaugeAndSystemMetrics(t *testing.T) {
	m := newMonitor(t, testConfig())
	last := capture(t, m)

	require.NoError(t, m.Gauge("queue_depth", func() float64 { return 7 }))
	require.NoError(t, RegisterSystemMetrics(m))
	m.Flush()

	g := find(t, *last, "app.queue_depth")
	v, err := g.Value.FloatField("")
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	sys := find(t, *last, "app.system")
	n, err := sys.Value.UintField("goroutines_num")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Console = &buf
	m := newMonitor(t, cfg)

	m.Counter("hits").Inc()
	m.Flush()
	require.NoError(t, m.Stop())

	assert.Contains(t, buf.String(), "app.hits")
	assert.Contains(t, buf.String(), "total: 1")
}

func TestInfluxSink(t *testing.T) {
	bodies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.InfluxURL = srv.URL
	cfg.InfluxDB = "metrics"
	cfg.CustomLabels = map[string]string{"env": "test"}
	m := newMonitor(t, cfg)

	m.Counter("hits").Add(2)
	m.Flush()

	select {
	case body := <-bodies:
		assert.True(t, strings.HasPrefix(body, "app.hits,env=test total=2i "), body)
	case <-time.After(5 * time.Second):
		t.Fatal("no write received")
	}
}

func TestPrometheusCollector(t *testing.T) {
	cfg := testConfig()
	cfg.Prometheus = true
	cfg.Version = "1.2.3"
	m := newMonitor(t, cfg)
	require.NotNil(t, m.Collector())

	m.Counter("hits").Add(5)
	m.Flush()

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Collector()))
}

func TestStop(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.False(t, m.Scheduler().Running())
	assert.ErrorIs(t, m.Gauge("late", func() float64 { return 1 }), registry.ErrStopped)
	assert.False(t, m.RefreshConnection(t.Context()))
}

func TestGlobal(t *testing.T) {
	require.Nil(t, Default())
	assert.Error(t, ForceWrite())
	IncrementCounter("ignored")

	require.NoError(t, Init(testConfig()))
	t.Cleanup(Shutdown)
	first := Default()
	require.NotNil(t, first)

	require.NoError(t, Init(testConfig()))
	assert.Same(t, first, Default())

	IncrementCounter("jobs", "queue", "mail")
	AddCounter("jobs", 2, "queue", "mail")
	assert.Equal(t, uint64(3), GetCounter("jobs", "queue", "mail"))
	ObserveHistogram("size", 10)
	StartTimer("op").Stop()
	require.NoError(t, RegisterCollector(metric.NewTag("custom"), emptyCollector))
	require.NoError(t, ForceWrite())
	require.NoError(t, RefreshConnection(t.Context()))

	Shutdown()
	assert.Nil(t, Default())
	assert.Zero(t, GetCounter("jobs", "queue", "mail"))
	assert.Error(t, RegisterCollector(metric.NewTag("custom"), emptyCollector))
}
