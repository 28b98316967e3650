// Package proxypool implements the outbound relay pool: a mutex+condvar
// container of Proxy values, refilled from a pluggable ProxySource and
// swept on a fixed cadence.
package proxypool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
	"github.com/zaxtyson/spidercrawl/internal/core/ports"
	"github.com/zaxtyson/spidercrawl/internal/logger"
)

// MaintenanceInterval is how often the background loop tops up and sweeps the pool.
const MaintenanceInterval = 1100 * time.Millisecond

// Pool is a ProxyPool backed by one mutex/condvar and a single refill source.
// enable=false turns every public method into a no-op that reports no proxy
// needed, per spec's "proxy_pool.enable bypasses all proxy operations".
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	proxies []*domain.Proxy
	source  ports.ProxySource
	target  int
	enabled bool

	sf     singleflight.Group
	logger *logger.StyledLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Pool. target is the desired number of available proxies the
// maintenance loop tries to keep in stock; it's ignored by a file-backed source.
func New(source ports.ProxySource, target int, enabled bool, log *logger.StyledLogger) *Pool {
	p := &Pool{
		source:  source,
		target:  target,
		enabled: enabled,
		logger:  log,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start loads the initial batch from the source and launches the maintenance loop.
func (p *Pool) Start(ctx context.Context) {
	if !p.enabled {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	initial, err := p.source.Fetch(ctx)
	if err != nil {
		p.logger.Error("Initial proxy fetch failed", "error", err)
	} else {
		p.mu.Lock()
		p.proxies = append(p.proxies, initial...)
		p.cond.Broadcast()
		p.mu.Unlock()
		p.logger.InfoWithCount("Loaded proxies", len(initial))
	}

	p.wg.Add(1)
	go p.maintenanceLoop(ctx)
}

// Stop cancels the maintenance loop and waits for it to exit.
func (p *Pool) Stop() {
	if !p.enabled {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Get blocks until an available proxy exists and returns one chosen uniformly
// at random from the available subset. With proxying disabled it returns nil
// immediately so callers bypass proxy selection entirely.
func (p *Pool) Get(ctx context.Context) (*domain.Proxy, error) {
	if !p.enabled {
		return nil, nil
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if available := p.availableLocked(time.Now()); len(available) > 0 {
			return available[rand.Intn(len(available))], nil
		}
		if err := ctx.Err(); err != nil {
			return nil, domain.ErrNoProxyAvailable
		}
		p.cond.Wait()
	}
}

func (p *Pool) availableLocked(now time.Time) []*domain.Proxy {
	var out []*domain.Proxy
	for _, proxy := range p.proxies {
		if proxy.IsAvailable(now) {
			out = append(out, proxy)
		}
	}
	return out
}

// MarkInvalid clears the valid flag. Idempotent.
func (p *Pool) MarkInvalid(proxy *domain.Proxy, reason string) {
	if !p.enabled || proxy == nil {
		return
	}
	p.mu.Lock()
	proxy.Valid = false
	p.mu.Unlock()
	p.logger.WarnWithProxy("Proxy marked invalid: "+reason, proxy.Addr())
}

// MarkBanned increments the ban count and parks the proxy per the ban schedule.
func (p *Pool) MarkBanned(proxy *domain.Proxy) {
	if !p.enabled || proxy == nil {
		return
	}
	p.mu.Lock()
	proxy.BanCount++
	proxy.ReuseAfter = time.Now().Add(domain.BanDuration(proxy.BanCount))
	p.mu.Unlock()
}

// RateLimit parks the proxy for a short, fixed interval. The envelope's
// rate-limit sentinel is currently handled as a ban instead (see
// httpclient), so nothing calls this today; it stays on the interface
// for sources that vend per-second-metered proxies.
func (p *Pool) RateLimit(proxy *domain.Proxy) {
	if !p.enabled || proxy == nil {
		return
	}
	p.mu.Lock()
	proxy.ReuseAfter = time.Now().Add(domain.RateLimitPark)
	p.mu.Unlock()
}

// Stats reports a point-in-time snapshot for the /stats surface.
func (p *Pool) Stats() ports.ProxyPoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	stats := ports.ProxyPoolStats{Total: len(p.proxies)}
	for _, proxy := range p.proxies {
		switch proxy.State(now) {
		case domain.ProxyAvailable:
			stats.Available++
		case domain.ProxyCooling:
			stats.Cooling++
		default:
			stats.Invalid++
		}
	}
	return stats
}

func (p *Pool) maintenanceLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Pool) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Proxy maintenance tick panicked", "recovered", r)
		}
	}()

	if p.needsTopUpLocked() {
		p.topUp(ctx)
	}
	p.sweep()
}

func (p *Pool) needsTopUpLocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.availableLocked(time.Now())) < p.target
}

// topUp performs up to three vending-API fetches; concurrent tick overlaps
// (a slow vendor API plus a fast ticker) collapse into one in-flight fetch
// via singleflight instead of stacking retries.
func (p *Pool) topUp(ctx context.Context) {
	for attempt := 0; attempt < 3; attempt++ {
		v, err, _ := p.sf.Do("fetch", func() (interface{}, error) {
			return p.source.Fetch(ctx)
		})
		if err != nil {
			p.logger.Error("Proxy refill attempt failed", "attempt", attempt+1, "error", err)
			continue
		}
		fresh := v.([]*domain.Proxy)
		if len(fresh) == 0 {
			continue
		}

		p.mu.Lock()
		p.proxies = append(p.proxies, fresh...)
		total := len(p.proxies)
		p.cond.Broadcast()
		p.mu.Unlock()

		p.logger.InfoWithCount("Proxy pool topped up", len(fresh), "total", total)
		return
	}
}

func (p *Pool) sweep() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.proxies[:0]
	dropped := 0
	for _, proxy := range p.proxies {
		if proxy.IsValid(now) {
			kept = append(kept, proxy)
		} else {
			dropped++
		}
	}
	p.proxies = kept
	if dropped > 0 {
		p.logger.InfoWithCount("Proxy pool swept invalid entries", dropped)
	}
}
