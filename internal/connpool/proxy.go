package connpool

import (
	"sync"
	"time"
)

// proxyCooldown is how long a failed proxy is skipped.
const proxyCooldown = 5 * time.Minute

// ProxyPool rotates through proxies, skipping ones that failed recently.
type ProxyPool struct {
	proxies []string
	index   int
	mu      sync.Mutex
	failed  map[string]time.Time
	now     func() time.Time
}

// NewProxyPool creates a new ProxyPool
func NewProxyPool(proxies []string) *ProxyPool {
	return &ProxyPool{
		proxies: append([]string(nil), proxies...),
		failed:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// Len returns the number of configured proxies.
func (p *ProxyPool) Len() int {
	return len(p.proxies)
}

// Next returns the next healthy proxy in rotation. When every proxy is
// cooling down it returns the next one anyway so traffic still flows.
func (p *ProxyPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	for range p.proxies {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		failedAt, ok := p.failed[proxy]
		if !ok {
			return proxy
		}
		if p.now().Sub(failedAt) >= proxyCooldown {
			delete(p.failed, proxy)
			return proxy
		}
	}

	proxy := p.proxies[p.index]
	p.index = (p.index + 1) % len(p.proxies)
	return proxy
}

// MarkFailed puts proxy on cooldown.
func (p *ProxyPool) MarkFailed(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the failure status of a proxy
func (p *ProxyPool) MarkHealthy(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
