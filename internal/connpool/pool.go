// Package connpool provides a shared, bounded HTTP client for work functions
// together with request accounting.
package connpool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/sync/semaphore"

	"github.com/law-makers/batchcrawl/internal/ratelimit"
)

// Default pool limits
const (
	DefaultMaxConns        = 100
	DefaultMaxConnsPerHost = 30
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultDNSCacheTTL     = 5 * time.Minute
	DefaultTimeout         = 30 * time.Second
	DefaultUserAgent       = "batchcrawl/1.0 (https://github.com/law-makers/batchcrawl)"
)

// Options configures a Pool.
type Options struct {
	MaxConns        int           // total connections across hosts
	MaxConnsPerHost int           // connections to a single host
	KeepAlive       time.Duration // TCP keep-alive period
	IdleConnTimeout time.Duration
	DNSCacheTTL     time.Duration // 0 uses the default, negative disables the DNS cache
	Timeout         time.Duration // whole-request timeout
	UserAgent       string
	Proxies         []string // optional rotation, e.g. http://host:port
	RateLimitRPS    float64  // per-host; 0 disables limiting
	RateLimitBurst  int
	Logger          *zerolog.Logger
}

// DefaultOptions returns the pool defaults.
func DefaultOptions() Options {
	return Options{
		MaxConns:        DefaultMaxConns,
		MaxConnsPerHost: DefaultMaxConnsPerHost,
		KeepAlive:       DefaultKeepAlive,
		IdleConnTimeout: DefaultIdleConnTimeout,
		DNSCacheTTL:     DefaultDNSCacheTTL,
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxConns <= 0 {
		o.MaxConns = d.MaxConns
	}
	if o.MaxConnsPerHost <= 0 {
		o.MaxConnsPerHost = d.MaxConnsPerHost
	}
	if o.MaxConnsPerHost > o.MaxConns {
		o.MaxConnsPerHost = o.MaxConns
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = d.KeepAlive
	}
	if o.IdleConnTimeout <= 0 {
		o.IdleConnTimeout = d.IdleConnTimeout
	}
	if o.DNSCacheTTL == 0 {
		o.DNSCacheTTL = d.DNSCacheTTL
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	return o
}

// Metrics summarizes the requests made through a Pool.
type Metrics struct {
	TotalRequests     int64         `json:"total_requests"`
	FailedRequests    int64         `json:"failed_requests"`
	AvgResponseTime   time.Duration `json:"avg_response_time"`
	ActiveConnections int64         `json:"active_connections"`
}

type proxyKey struct{}

// Pool owns a lazily created *http.Client with bounded connections.
type Pool struct {
	opts    Options
	logger  zerolog.Logger
	limiter *ratelimit.HostLimiter
	proxies *ProxyPool
	conns   *semaphore.Weighted // total connection cap

	mu        sync.Mutex
	client    *http.Client
	transport *http.Transport
	dialer    *cachingDialer

	active  atomic.Int64
	statsMu sync.Mutex
	total   int64
	failed  int64
	avg     time.Duration
}

// New creates a pool. No connections are opened until the first request.
func New(opts Options) *Pool {
	opts = opts.withDefaults()

	p := &Pool{
		opts:   opts,
		logger: log.Logger,
		conns:  semaphore.NewWeighted(int64(opts.MaxConns)),
	}
	if opts.Logger != nil {
		p.logger = *opts.Logger
	}
	if opts.RateLimitRPS > 0 {
		p.limiter = ratelimit.NewHostLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}
	if len(opts.Proxies) > 0 {
		p.proxies = NewProxyPool(opts.Proxies)
	}
	return p
}

// Client returns the shared client, creating it if absent.
func (p *Pool) Client() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client
	}

	p.dialer = newCachingDialer(p.opts.KeepAlive, p.opts.Timeout, p.opts.DNSCacheTTL)
	p.transport = &http.Transport{
		DialContext:           p.dialer.DialContext,
		MaxIdleConns:          p.opts.MaxConns,
		MaxIdleConnsPerHost:   p.opts.MaxConnsPerHost,
		MaxConnsPerHost:       p.opts.MaxConnsPerHost,
		IdleConnTimeout:       p.opts.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableKeepAlives:     false,
	}
	if p.proxies != nil {
		p.transport.Proxy = proxyFromContext
	}
	if err := http2.ConfigureTransport(p.transport); err != nil {
		p.logger.Debug().Err(err).Msg("HTTP/2 not enabled on pool transport")
	}

	p.client = &http.Client{
		Timeout:   p.opts.Timeout,
		Transport: p.transport,
	}

	p.logger.Debug().
		Int("max_conns", p.opts.MaxConns).
		Int("max_conns_per_host", p.opts.MaxConnsPerHost).
		Dur("dns_ttl", p.opts.DNSCacheTTL).
		Msg("Connection pool client created")

	return p.client
}

// Request builds and performs a single request. See Do.
func (p *Pool) Request(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return p.Do(req)
}

// Do performs req on the shared client. The in-flight counter and the
// latency/failure accounting are updated whether or not the call fails.
// A returned error means the request failed at the transport level;
// HTTP error statuses are left to the caller.
//
// At most MaxConns requests hold a connection at once. A successful
// request keeps its slot until the response body is closed.
func (p *Pool) Do(req *http.Request) (resp *http.Response, err error) {
	ctx := req.Context()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, req.URL.String()); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if err := p.conns.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("connection slot wait: %w", err)
	}

	var proxy string
	if p.proxies != nil {
		proxy = p.proxies.Next()
		req = req.WithContext(context.WithValue(ctx, proxyKey{}, proxy))
	}

	client := p.Client()
	start := time.Now()
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.record(time.Since(start), err == nil)
		if p.proxies != nil {
			if err != nil {
				p.proxies.MarkFailed(proxy)
			} else {
				p.proxies.MarkHealthy(proxy)
			}
		}
	}()

	resp, err = client.Do(req)
	if err != nil {
		p.conns.Release(1)
		return nil, err
	}
	resp.Body = &slotBody{ReadCloser: resp.Body, release: func() { p.conns.Release(1) }}
	return resp, nil
}

// slotBody returns the connection slot on the first Close.
type slotBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *slotBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

func (p *Pool) record(latency time.Duration, ok bool) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	p.total++
	if !ok {
		p.failed++
	}
	// running mean
	p.avg += (latency - p.avg) / time.Duration(p.total)
}

// Metrics returns request accounting for the pool.
func (p *Pool) Metrics() Metrics {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	return Metrics{
		TotalRequests:     p.total,
		FailedRequests:    p.failed,
		AvgResponseTime:   p.avg,
		ActiveConnections: p.active.Load(),
	}
}

// ActiveConnections returns the number of requests currently in flight.
func (p *Pool) ActiveConnections() int64 {
	return p.active.Load()
}

// Close releases idle connections and drops the client. It is idempotent;
// a later Client call builds a fresh one.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	p.transport.CloseIdleConnections()
	p.dialer.close()
	p.client, p.transport, p.dialer = nil, nil, nil

	p.logger.Debug().Msg("Connection pool closed")
	return nil
}

func proxyFromContext(req *http.Request) (*url.URL, error) {
	proxy, _ := req.Context().Value(proxyKey{}).(string)
	if proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
	}
	return u, nil
}
