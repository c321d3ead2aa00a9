// Package remotewrite pushes batches to a Prometheus remote-write endpoint.
//
// Every numeric or boolean field of an entry becomes one time series named
// namespace_<tag name>_<field>, labelled with the tag pairs, the configured
// custom labels and the instance labels. Writes happen on a background
// goroutine so a slow endpoint never stalls the registry tick. A failed write
// forces a DNS refresh of the endpoint host and is retried once with a fresh
// client.
package remotewrite

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/eryajf/promwrite"
	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/internal/promname"
	"github.com/nikiz24/monitor/v2/internal/resolve"
	"github.com/nikiz24/monitor/v2/metric"
)

// Options configures a Sink.
type Options struct {
	URL          string
	Namespace    string
	ServiceName  string
	InstanceIP   string
	CustomLabels map[string]string
	// Timeout bounds one write including its retry. Defaults to 15s.
	Timeout time.Duration
	// QueueSize is the number of converted batches waiting to be written.
	// When full, new batches are dropped. Defaults to 16.
	QueueSize int
}

// Sink is a sink.Sink writing through promwrite.
type Sink struct {
	opts     Options
	host     string
	resolver *resolve.Resolver
	logger   *zap.Logger

	mu     sync.Mutex
	client *promwrite.Client

	queue  chan []promwrite.TimeSeries
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New validates opts and starts the writer goroutine. A nil resolver uses
// the system resolver without caching.
func New(opts Options, resolver *resolve.Resolver, logger *zap.Logger) (*Sink, error) {
	if opts.URL == "" {
		return nil, errors.New("remotewrite: url cannot be empty")
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("remotewrite: parse url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = resolve.New(resolve.Options{}, logger)
	}
	if opts.InstanceIP == "" {
		ip, err := GetOutboundIPv4()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbound IPv4: %w", err)
		}
		opts.InstanceIP = ip
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		opts:     opts,
		host:     u.Hostname(),
		resolver: resolver,
		logger:   logger,
		client:   promwrite.NewClient(opts.URL),
		queue:    make(chan []promwrite.TimeSeries, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Publish implements sink.Sink. The batch is converted immediately and
// queued for the writer.
func (s *Sink) Publish(batch metric.Batch) {
	series := s.convert(batch)
	if len(series) == 0 {
		return
	}
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.queue <- series:
	default:
		s.logger.Warn("Remote write queue full, dropping batch", zap.Int("series", len(series)))
	}
}

func (s *Sink) loop() {
	defer s.wg.Done()
	for {
		select {
		case series := <-s.queue:
			s.send(context.Background(), series)
		case <-s.ctx.Done():
			for {
				select {
				case series := <-s.queue:
					s.send(context.Background(), series)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) send(parent context.Context, series []promwrite.TimeSeries) {
	ctx, cancel := context.WithTimeout(parent, s.opts.Timeout)
	defer cancel()
	if err := s.write(ctx, series); err != nil {
		s.logger.Error("Failed to write metrics", zap.Int("series", len(series)), zap.Error(err))
	}
}

func (s *Sink) currentClient() *promwrite.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *Sink) resetClient() {
	s.mu.Lock()
	s.client = promwrite.NewClient(s.opts.URL)
	s.mu.Unlock()
}

func (s *Sink) write(ctx context.Context, series []promwrite.TimeSeries) error {
	req := &promwrite.WriteRequest{TimeSeries: series}
	_, err := s.currentClient().Write(ctx, req)
	if err == nil {
		return nil
	}
	if _, rerr := s.resolver.Refresh(ctx, s.host, true); rerr != nil {
		return fmt.Errorf("writing time series failed: %w", err)
	}
	s.resetClient()
	if _, err := s.currentClient().Write(ctx, req); err != nil {
		return fmt.Errorf("writing time series failed after dns refresh: %w", err)
	}
	return nil
}

// RefreshDNS re-resolves the endpoint host and replaces the client when the
// answer changed, so new connections go to the new addresses. It is meant to
// be scheduled periodically.
func (s *Sink) RefreshDNS(ctx context.Context) bool {
	changed, err := s.resolver.Refresh(ctx, s.host, false)
	if err != nil || !changed {
		return false
	}
	s.resetClient()
	s.logger.Info("Refreshed remote write client after DNS update", zap.String("host", s.host))
	return true
}

// Close stops accepting batches, writes whatever is still queued and waits
// for the writer to exit.
func (s *Sink) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Sink) baseLabels() map[string]string {
	labels := make(map[string]string, 3+len(s.opts.CustomLabels))
	labels["_instance_"] = s.opts.InstanceIP
	labels["instance"] = s.opts.InstanceIP
	labels["_target_"] = s.opts.ServiceName
	for k, v := range s.opts.CustomLabels {
		labels[promname.Label(k)] = v
	}
	return labels
}

func (s *Sink) convert(batch metric.Batch) []promwrite.TimeSeries {
	var result []promwrite.TimeSeries
	base := s.baseLabels()

	for _, e := range batch {
		labels := make(map[string]string, len(base)+len(e.Tag.Pairs()))
		for k, v := range base {
			labels[k] = v
		}
		for _, p := range e.Tag.Pairs() {
			labels[promname.Label(p.Key)] = p.Value
		}
		at := e.Value.Captured()

		add := func(field string, v float64) {
			result = append(result, promwrite.TimeSeries{
				Labels: labelList(promname.Metric(s.opts.Namespace, e.Tag.Name(), field), labels),
				Sample: promwrite.Sample{Time: at, Value: v},
			})
		}
		for _, f := range e.Value.Floats() {
			add(f.Name, f.Value)
		}
		for _, f := range e.Value.Uints() {
			add(f.Name, float64(f.Value))
		}
		for _, f := range e.Value.Bools() {
			if f.Value {
				add(f.Name, 1)
			} else {
				add(f.Name, 0)
			}
		}
	}
	return result
}

func labelList(name string, labels map[string]string) []promwrite.Label {
	out := make([]promwrite.Label, 0, len(labels)+1)
	out = append(out, promwrite.Label{Name: "__name__", Value: name})
	for k, v := range labels {
		out = append(out, promwrite.Label{Name: k, Value: v})
	}
	slices.SortFunc(out, func(a, b promwrite.Label) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// GetOutboundIPv4 gets the outbound IPv4 address of the local machine
func GetOutboundIPv4() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
