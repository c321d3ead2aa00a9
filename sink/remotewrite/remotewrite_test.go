package remotewrite

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eryajf/promwrite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nikiz24/monitor/v2/metric"
)

func latencyBatch(t *testing.T) metric.Batch {
	t.Helper()
	v := metric.NewValueAt(time.Unix(1700000000, 0))
	require.NoError(t, v.PushFloat(1.5, "p99"))
	require.NoError(t, v.PushUint(3, "count"))
	require.NoError(t, v.PushBool(true, "up"))
	require.NoError(t, v.PushString("ignored", "note"))
	return metric.Batch{{Tag: metric.NewTag("http.latency").With("route", "/x"), Value: v}}
}

func labelMap(ls []promwrite.Label) map[string]string {
	m := make(map[string]string, len(ls))
	for _, l := range ls {
		m[l.Name] = l.Value
	}
	return m
}

func TestConvert(t *testing.T) {
	s := &Sink{opts: Options{
		Namespace:    "app",
		ServiceName:  "api",
		InstanceIP:   "10.0.0.1",
		CustomLabels: map[string]string{"env": "prod"},
	}}

	series := s.convert(latencyBatch(t))
	require.Len(t, series, 3)

	names := []string{}
	values := []float64{}
	for _, ts := range series {
		labels := labelMap(ts.Labels)
		names = append(names, labels["__name__"])
		values = append(values, ts.Sample.Value)
		assert.Equal(t, "/x", labels["route"])
		assert.Equal(t, "prod", labels["env"])
		assert.Equal(t, "10.0.0.1", labels["instance"])
		assert.Equal(t, "10.0.0.1", labels["_instance_"])
		assert.Equal(t, "api", labels["_target_"])
		assert.Equal(t, time.Unix(1700000000, 0), ts.Sample.Time)
		assert.True(t, isSorted(ts.Labels))
	}
	assert.Equal(t, []string{"app_http_latency_p99", "app_http_latency_count", "app_http_latency_up"}, names)
	assert.Equal(t, []float64{1.5, 3, 1}, values)
}

func isSorted(ls []promwrite.Label) bool {
	for i := 1; i < len(ls); i++ {
		if ls[i-1].Name > ls[i].Name {
			return false
		}
	}
	return true
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Options{}, nil, nil)
	assert.Error(t, err)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}

func TestPublishWrites(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := New(Options{URL: srv.URL, Namespace: "app", InstanceIP: "127.0.0.1"}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	s.Publish(latencyBatch(t))
	waitFor(t, func() bool { return hits.Load() == 1 })
}

func TestWriteRetriesOnce(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	s, err := New(Options{URL: srv.URL, Namespace: "app", InstanceIP: "127.0.0.1"}, nil, zap.New(core))
	require.NoError(t, err)

	s.Publish(latencyBatch(t))
	s.Close()

	assert.Equal(t, int64(2), calls.Load())
	assert.Zero(t, logs.Len())
}

func TestWriteFailureIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	s, err := New(Options{URL: srv.URL, InstanceIP: "127.0.0.1"}, nil, zap.New(core))
	require.NoError(t, err)

	s.Publish(latencyBatch(t))
	s.Close()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to write metrics", logs.All()[0].Message)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := New(Options{URL: srv.URL, InstanceIP: "127.0.0.1"}, nil, nil)
	require.NoError(t, err)
	s.Close()
	s.Close()

	s.Publish(latencyBatch(t))
	assert.Zero(t, calls.Load())
}

func TestRefreshDNSLiteralHost(t *testing.T) {
	s, err := New(Options{URL: "http://127.0.0.1:9/api/v1/write", InstanceIP: "127.0.0.1"}, nil, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.RefreshDNS(t.Context()))
}
