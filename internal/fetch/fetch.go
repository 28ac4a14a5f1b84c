// Package fetch performs single-shot HTTP GETs for the domain crawler,
// gated by a per-host connection cap and backed by a short-lived DNS
// cache (spec.md §4.3).
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"crypto/tls"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 30 * time.Second
	dnsCacheTTL      = 5 * time.Minute
	perHostMaxConns  = 50
	userAgentDefault = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Result is the outcome of a single fetch attempt.
type Result struct {
	Body        []byte
	StatusCode  int
	ContentType string
}

// Fetcher performs GET requests with the trade-offs spec.md §4.3
// mandates: TLS verification disabled, redirects followed, a fixed
// browser User-Agent, and a per-host concurrent-connection cap.
//
// TLS verification is disabled intentionally: many harvested sites carry
// broken certificates, and deliverability/security of the target is out
// of scope for this crawler. Do not "fix" this without an operator flag.
type Fetcher struct {
	client    *http.Client
	logger    *zerolog.Logger
	hostGates *hostGateSet
}

// New creates a Fetcher with the given total request timeout.
func New(timeout time.Duration, logger *zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	resolver := newCachingResolver(dnsCacheTTL)
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	transport := &http.Transport{
		DialContext:         resolver.dialContext(dialer),
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // spec-mandated trade-off
		MaxIdleConnsPerHost: perHostMaxConns,
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:    logger,
		hostGates: newHostGateSet(perHostMaxConns),
	}
}

// Fetch performs one GET. It returns an absent body with status 0 on any
// transport error (timeout, connection reset, TLS error, invalid
// response); the caller never sees the error itself, matching spec.md
// §4.3's "never propagated as an exception to the crawler" contract.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	host := hostOf(rawURL)

	release := f.hostGates.acquire(ctx, host)
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", rawURL).Msg("failed to build request")
		return Result{}
	}

	req.Header.Set("User-Agent", userAgentDefault)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", rawURL).Msg("fetch failed")
		return Result{}
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode != http.StatusOK {
		return Result{StatusCode: resp.StatusCode}
	}

	lowerCT := strings.ToLower(contentType)
	if !strings.Contains(lowerCT, "text/html") && !strings.Contains(lowerCT, "text/plain") {
		return Result{StatusCode: resp.StatusCode, ContentType: contentType}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", rawURL).Msg("failed to read body")
		return Result{}
	}

	return Result{Body: body, StatusCode: resp.StatusCode, ContentType: contentType}
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(parsed.Host)
}

// hostGateSet caps the number of concurrent in-flight requests per host.
type hostGateSet struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	cap   int
}

func newHostGateSet(capacity int) *hostGateSet {
	return &hostGateSet{
		gates: make(map[string]chan struct{}),
		cap:   capacity,
	}
}

func (s *hostGateSet) acquire(ctx context.Context, host string) func() {
	gate := s.gateFor(host)

	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return func() {}
	}

	return func() { <-gate }
}

func (s *hostGateSet) gateFor(host string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	gate, ok := s.gates[host]
	if !ok {
		gate = make(chan struct{}, s.cap)
		s.gates[host] = gate
	}

	return gate
}

// cachingResolver memoizes DNS lookups for a bounded TTL so repeated
// fetches to the same host within a crawl don't re-resolve every time.
type cachingResolver struct {
	ttl   time.Duration
	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	addrs     []string
	expiresAt time.Time
}

func newCachingResolver(ttl time.Duration) *cachingResolver {
	return &cachingResolver{ttl: ttl, cache: make(map[string]cacheEntry)}
}

// dialContext returns a DialContext hook for http.Transport that resolves
// the host through the TTL cache before handing off to dialer. Go's
// standard dialer has no pluggable resolution cache, so the cache sits in
// front of it instead.
func (c *cachingResolver) dialContext(dialer *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			return dialer.DialContext(ctx, network, address)
		}

		addrs := c.lookup(ctx, host)
		if len(addrs) == 0 {
			return dialer.DialContext(ctx, network, address)
		}

		return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0], port))
	}
}

func (c *cachingResolver) lookup(ctx context.Context, host string) []string {
	c.mu.Lock()
	entry, ok := c.cache[host]
	c.mu.Unlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.addrs
	}

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil
	}

	c.mu.Lock()
	c.cache[host] = cacheEntry{addrs: addrs, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return addrs
}
