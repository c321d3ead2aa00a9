// Package graphite publishes batches in the Graphite plaintext protocol.
package graphite

import (
	"time"

	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/internal/transport"
	"github.com/nikiz24/monitor/v2/metric"
)

// Sender delivers one rendered batch.
type Sender interface {
	Send(payload []byte) bool
}

// Sink renders every batch under a common prefix and hands it to a Sender.
type Sink struct {
	prefix metric.Tag
	sender Sender
	logger *zap.Logger
}

// New returns a sink sending through sender.
func New(sender Sender, prefix metric.Tag, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{prefix: prefix, sender: sender, logger: logger}
}

// Dial returns a sink writing to a Graphite carbon listener at addr over a
// lazily dialed TCP connection. The returned closer releases it.
func Dial(addr string, prefix metric.Tag, resolver transport.Resolver, logger *zap.Logger) (*Sink, func() error) {
	opts := []transport.Option{transport.WithLogger(logger), transport.WithTimeout(5 * time.Second)}
	if resolver != nil {
		opts = append(opts, transport.WithResolver(resolver))
	}
	conn := transport.NewTCP(addr, opts...)
	return New(conn, prefix, logger), conn.Close
}

// Publish implements sink.Sink.
func (s *Sink) Publish(batch metric.Batch) {
	payload := batch.Graphite(s.prefix)
	if payload == "" {
		return
	}
	if !s.sender.Send([]byte(payload)) {
		s.logger.Warn("Failed to send graphite batch",
			zap.Int("entries", len(batch)), zap.Int("bytes", len(payload)))
	}
}
