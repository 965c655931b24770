package connpool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/law-makers/batchcrawl/internal/cache"
)

// resolver is the subset of *net.Resolver the dialer needs.
type resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// cachingDialer resolves hostnames through a TTL cache before dialing.
type cachingDialer struct {
	dialer   *net.Dialer
	resolver resolver
	cache    *cache.MemoryCache[[]string]
	ttl      time.Duration
}

func newCachingDialer(keepAlive, dialTimeout, ttl time.Duration) *cachingDialer {
	return &cachingDialer{
		dialer: &net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		},
		resolver: net.DefaultResolver,
		cache:    cache.NewMemoryCache[[]string](512, ttl),
		ttl:      ttl,
	}
}

// DialContext matches http.Transport.DialContext.
func (d *cachingDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("split address %q: %w", addr, err)
	}
	if net.ParseIP(host) != nil || d.ttl <= 0 {
		return d.dialer.DialContext(ctx, network, addr)
	}

	addrs, err := d.lookup(ctx, host)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, ip := range addrs {
		conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}
	// stale entry: force a fresh lookup next time
	_ = d.cache.Delete(host)
	return nil, fmt.Errorf("dial %s: %w", addr, errors.Join(errs...))
}

func (d *cachingDialer) lookup(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := d.cache.Get(host); ok {
		return addrs, nil
	}

	addrs, err := d.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}
	_ = d.cache.Set(host, addrs, d.ttl)
	return addrs, nil
}

func (d *cachingDialer) close() {
	d.cache.Close()
}
