package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/miekg/dns"
)

type result struct {
	ips []string
	err error
}

// resolveFastest queries every configured server plus the system resolver
// concurrently and returns the first non-empty answer.
func (r *Resolver) resolveFastest(parent context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(parent, r.opts.Timeout)
	defer cancel()

	queries := make([]func(context.Context) ([]string, error), 0,
		1+len(r.opts.UDPServers)+len(r.opts.TLSServers)+len(r.opts.DoHEndpoints))
	for _, srv := range r.opts.UDPServers {
		queries = append(queries, func(ctx context.Context) ([]string, error) {
			return exchange(ctx, "udp", host, srv, r.opts.Timeout)
		})
	}
	for _, srv := range r.opts.TLSServers {
		queries = append(queries, func(ctx context.Context) ([]string, error) {
			return exchange(ctx, "tcp-tls", host, srv, r.opts.Timeout)
		})
	}
	for _, ep := range r.opts.DoHEndpoints {
		queries = append(queries, func(ctx context.Context) ([]string, error) {
			return r.resolveDoH(ctx, host, ep)
		})
	}
	queries = append(queries, func(ctx context.Context) ([]string, error) {
		return r.system(ctx, host)
	})

	ch := make(chan result, len(queries))
	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ips, err := q(ctx)
			ch <- result{ips, err}
		}()
	}
	defer wg.Wait()

	var firstErr error
	for range queries {
		select {
		case res := <-ch:
			if res.err == nil && len(res.ips) > 0 {
				cancel()
				return res.ips, nil
			}
			if firstErr == nil {
				firstErr = res.err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if firstErr == nil {
		firstErr = errors.New("resolve: no dns result")
	}
	return nil, firstErr
}

func question(host string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	return m
}

func answers(m *dns.Msg) []string {
	ips := make([]string, 0, len(m.Answer))
	for _, ans := range m.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips
}

// exchange runs one query over a plain UDP ("udp") or DNS-over-TLS
// ("tcp-tls") client.
func exchange(ctx context.Context, network, host, server string, timeout time.Duration) ([]string, error) {
	c := &dns.Client{Net: network, Timeout: timeout}
	r, _, err := c.ExchangeContext(ctx, question(host), server)
	if err != nil {
		return nil, fmt.Errorf("%s dns query to %s: %w", network, server, err)
	}
	if r == nil || r.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s dns query to %s: bad response", network, server)
	}
	return answers(r), nil
}

func (r *Resolver) resolveDoH(ctx context.Context, host, endpoint string) ([]string, error) {
	payload, err := question(host).Pack()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var m dns.Msg
	if err := m.Unpack(body); err != nil {
		return nil, err
	}
	if m.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("doh rcode: %d", m.Rcode)
	}
	return answers(&m), nil
}
