package sink

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nikiz24/monitor/v2/metric"
)

func batch(t *testing.T) metric.Batch {
	t.Helper()
	v := metric.NewValue()
	require.NoError(t, v.PushFloat(1.5, "mean"))
	return metric.Batch{{Tag: metric.NewTag("latency").With("host", "a"), Value: v}}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, nil).Publish(batch(t))
	assert.Equal(t, "measure: latency, tags: {host: a}: [floats: {mean: 1.5}]\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestConsoleWriteError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	NewConsole(failingWriter{}, zap.New(core)).Publish(batch(t))
	assert.Equal(t, 1, logs.Len())
}

func TestFunc(t *testing.T) {
	var got metric.Batch
	var s Sink = Func(func(b metric.Batch) { got = b })
	s.Publish(batch(t))
	assert.Len(t, got, 1)
}
