// Package sink defines where collected batches go. Concrete exporters live in
// the subpackages; this package only holds the interface, a function
// adapter and the Console sink.
package sink

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/metric"
)

// Sink receives every batch produced by a registry tick. Publish runs while
// the registry lock is held: it must not call back into the registry, and
// it should hand slow I/O off rather than block the tick.
type Sink interface {
	Publish(batch metric.Batch)
}

// Func adapts a function to Sink.
type Func func(batch metric.Batch)

// Publish implements Sink.
func (f Func) Publish(batch metric.Batch) { f(batch) }

// Console writes a human readable line per entry.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
}

// NewConsole returns a console sink writing to w.
func NewConsole(w io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{w: w, logger: logger}
}

// Publish implements Sink.
func (c *Console) Publish(batch metric.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range batch {
		if _, err := fmt.Fprintf(c.w, "%s: [%s]\n", e.Tag, e.Value.Describe()); err != nil {
			c.logger.Warn("Console sink write failed", zap.Error(err))
			return
		}
	}
}
