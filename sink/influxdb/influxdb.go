// Package influxdb publishes batches to an InfluxDB 1.x /write endpoint in
// line protocol.
package influxdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/metric"
)

// Sink posts one line-protocol body per batch.
type Sink struct {
	endpoint string
	prefix   metric.Tag
	client   *http.Client
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithPrefix prepends prefix to every entry's tag.
func WithPrefix(prefix metric.Tag) Option {
	return func(s *Sink) { s.prefix = prefix }
}

// WithTimeout bounds a single write request.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a sink writing to database db on the server at baseURL.
func New(baseURL, db string, opts ...Option) (*Sink, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("influxdb: parse url: %w", err)
	}
	if db == "" {
		return nil, fmt.Errorf("influxdb: database name is required")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/write"
	q := u.Query()
	q.Set("db", db)
	u.RawQuery = q.Encode()

	s := &Sink{
		endpoint: u.String(),
		client:   http.DefaultClient,
		timeout:  10 * time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Endpoint returns the full write URL.
func (s *Sink) Endpoint() string { return s.endpoint }

// Publish implements sink.Sink.
func (s *Sink) Publish(batch metric.Batch) {
	body, err := batch.Influx(s.prefix)
	if err != nil {
		s.logger.Error("Cannot render batch in line protocol", zap.Error(err))
		return
	}
	if body == "" {
		return
	}
	if err := s.write(body); err != nil {
		s.logger.Error("Failed to write to influxdb",
			zap.String("endpoint", s.endpoint), zap.Int("entries", len(batch)), zap.Error(err))
	}
}

func (s *Sink) write(body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
