// Package resolve resolves sink endpoint hosts. Besides the system resolver
// it can race plain UDP, DNS-over-TLS and DNS-over-HTTPS servers and keeps a
// small TTL cache so exporters can notice when an endpoint moves.
package resolve

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options configures a Resolver. Zero durations take the defaults.
type Options struct {
	// Enabled turns on the custom resolvers and the cache. When false only
	// the system resolver is used.
	Enabled         bool
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	Timeout         time.Duration
	UDPServers      []string // e.g. ["1.1.1.1:53", "8.8.8.8:53"]
	TLSServers      []string // e.g. ["1.1.1.1:853", "9.9.9.9:853"]
	DoHEndpoints    []string // e.g. ["https://cloudflare-dns.com/dns-query"]
	HTTPClient      *http.Client
}

func pickDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

type cacheEntry struct {
	ips     []string
	expires time.Time
}

type hostState struct {
	ips         []string
	lastResolve time.Time
}

// Resolver looks up A records and remembers the last answer per host.
type Resolver struct {
	opts   Options
	logger *zap.Logger
	system func(ctx context.Context, host string) ([]string, error)
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
	hosts map[string]*hostState
}

// New returns a Resolver. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.CacheTTL = pickDuration(opts.CacheTTL, 10*time.Minute)
	opts.RefreshInterval = pickDuration(opts.RefreshInterval, 5*time.Minute)
	opts.Timeout = pickDuration(opts.Timeout, 800*time.Millisecond)
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Resolver{
		opts:   opts,
		logger: logger,
		system: systemLookup,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
		hosts:  make(map[string]*hostState),
	}
}

// RefreshInterval returns the configured background refresh period.
func (r *Resolver) RefreshInterval() time.Duration { return r.opts.RefreshInterval }

// Enabled reports whether the custom resolvers are in use.
func (r *Resolver) Enabled() bool { return r.opts.Enabled }

func systemLookup(ctx context.Context, host string) ([]string, error) {
	netIPs, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(netIPs))
	for _, ip := range netIPs {
		ips = append(ips, ip.String())
	}
	return ips, nil
}

// Lookup returns the IPv4 addresses of host. Literal IPs are returned as is.
func (r *Resolver) Lookup(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	if r.opts.Enabled {
		r.mu.Lock()
		ce, ok := r.cache[host]
		r.mu.Unlock()
		if ok && r.now().Before(ce.expires) {
			return slices.Clone(ce.ips), nil
		}
	}

	ips, err := r.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, errors.New("resolve: no dns result")
	}

	if r.opts.Enabled {
		r.mu.Lock()
		r.cache[host] = cacheEntry{ips: ips, expires: r.now().Add(r.opts.CacheTTL)}
		r.mu.Unlock()
	}
	return slices.Clone(ips), nil
}

func (r *Resolver) lookup(ctx context.Context, host string) ([]string, error) {
	if !r.opts.Enabled {
		return r.system(ctx, host)
	}
	return r.resolveFastest(ctx, host)
}

// Refresh resolves host again and reports whether its address set changed
// since the previous refresh. Unforced refreshes are throttled to one per
// minute per host and may be served from the cache.
func (r *Resolver) Refresh(ctx context.Context, host string, force bool) (bool, error) {
	if host == "" || net.ParseIP(host) != nil {
		return false, nil
	}

	r.mu.Lock()
	st, ok := r.hosts[host]
	if !ok {
		st = &hostState{}
		r.hosts[host] = st
	}
	if !force && r.now().Sub(st.lastResolve) < time.Minute {
		r.mu.Unlock()
		return false, nil
	}
	if force {
		delete(r.cache, host)
	}
	previous := st.ips
	r.mu.Unlock()

	ips, err := r.Lookup(ctx, host)

	r.mu.Lock()
	defer r.mu.Unlock()
	st.lastResolve = r.now()
	if err != nil {
		r.logger.Warn("DNS lookup failed", zap.String("host", host), zap.Error(err))
		return false, err
	}
	slices.Sort(ips)
	st.ips = ips
	changed := !slices.Equal(previous, ips)
	if changed {
		r.logger.Info("DNS answer changed", zap.String("host", host), zap.Strings("ips", ips))
	}
	return changed, nil
}
