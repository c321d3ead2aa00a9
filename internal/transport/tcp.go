// Package transport provides the byte-stream connections used by the push
// sinks.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sender delivers an encoded payload. Send reports whether the whole payload
// was written.
type Sender interface {
	Send(payload []byte) bool
}

// Resolver maps a host name to addresses.
type Resolver interface {
	Lookup(ctx context.Context, host string) ([]string, error)
}

// TCP is a Sender over one lazily dialed TCP connection. A failed write
// drops the connection; the next Send dials again. Dial attempts are rate
// limited so an unreachable endpoint does not turn every tick into a
// connect storm.
type TCP struct {
	addr     string
	timeout  time.Duration
	resolver Resolver
	limiter  *rate.Limiter
	logger   *zap.Logger
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

// Option configures a TCP sender.
type Option func(*TCP)

// WithTimeout bounds dials and writes.
func WithTimeout(d time.Duration) Option {
	return func(t *TCP) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithResolver resolves the host part of the address before dialing.
func WithResolver(r Resolver) Option {
	return func(t *TCP) { t.resolver = r }
}

// WithRedialLimit allows one dial every interval, with the given burst.
func WithRedialLimit(interval time.Duration, burst int) Option {
	return func(t *TCP) {
		t.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *TCP) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTCP returns a sender for addr ("host:port"). Nothing is dialed until
// the first Send.
func NewTCP(addr string, opts ...Option) *TCP {
	d := &net.Dialer{}
	t := &TCP{
		addr:    addr,
		timeout: 5 * time.Second,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  zap.NewNop(),
		dial:    d.DialContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send writes payload, dialing first if needed.
func (t *TCP) Send(payload []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		if !t.limiter.Allow() {
			t.logger.Debug("Skipping send, redial throttled", zap.String("addr", t.addr))
			return false
		}
		conn, err := t.connect()
		if err != nil {
			t.logger.Warn("Cannot establish a connection", zap.String("addr", t.addr), zap.Error(err))
			return false
		}
		t.conn = conn
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	if _, err := t.conn.Write(payload); err != nil {
		t.logger.Warn("Write failed, dropping connection",
			zap.String("addr", t.addr), zap.Int("bytes", len(payload)), zap.Error(err))
		_ = t.conn.Close()
		t.conn = nil
		return false
	}
	return true
}

func (t *TCP) connect() (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	addr := t.addr
	if t.resolver != nil {
		host, port, err := net.SplitHostPort(t.addr)
		if err != nil {
			return nil, err
		}
		ips, err := t.resolver.Lookup(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("transport: no address for %s", host)
		}
		addr = net.JoinHostPort(ips[0], port)
	}
	return t.dial(ctx, "tcp", addr)
}

// Reset closes the current connection so the next Send redials, e.g. after
// the endpoint's DNS answer changed.
func (t *TCP) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

// Close releases the connection.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
