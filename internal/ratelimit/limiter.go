// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound requests, typically per destination host.
type RateLimiter interface {
	// Wait blocks until a request for the given URL can proceed.
	// If the context is cancelled first, its error is returned.
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a request for the given URL can proceed
	// immediately, consuming a token if so.
	Allow(urlStr string) bool
}

// HostLimiter keeps one token bucket per host so a batch fanning out over
// many pages of the same site does not hammer it.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing requestsPerSecond per host with
// the given burst. Non-positive values fall back to 5 rps / burst 10.
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5.0
	}
	if burst <= 0 {
		burst = 10
	}

	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the host of urlStr has a token available.
// Unparseable URLs are let through; the request fails elsewhere.
func (hl *HostLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	host := HostOf(urlStr)
	if host == "" {
		return nil
	}
	return hl.limiter(host).Wait(ctx)
}

// Allow checks if a request can proceed immediately without blocking
func (hl *HostLimiter) Allow(urlStr string) bool {
	host := HostOf(urlStr)
	if host == "" {
		return true
	}
	return hl.limiter(host).Allow()
}

// SetLimit overrides the rate for one host.
func (hl *HostLimiter) SetLimit(host string, requestsPerSecond float64, burst int) {
	host = strings.ToLower(host)

	hl.mu.Lock()
	defer hl.mu.Unlock()

	if l, ok := hl.limiters[host]; ok {
		l.SetLimit(rate.Limit(requestsPerSecond))
		l.SetBurst(burst)
		return
	}
	hl.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Hosts returns how many hosts currently have a bucket.
func (hl *HostLimiter) Hosts() int {
	hl.mu.RLock()
	defer hl.mu.RUnlock()
	return len(hl.limiters)
}

func (hl *HostLimiter) limiter(host string) *rate.Limiter {
	hl.mu.RLock()
	l, ok := hl.limiters[host]
	hl.mu.RUnlock()
	if ok {
		return l
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := hl.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(hl.perHost, hl.burst)
	hl.limiters[host] = l
	return l
}

// HostOf returns the lowercased host (with port) of urlStr, or "" if it has none.
func HostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
