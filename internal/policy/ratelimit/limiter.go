// Package ratelimit paces outbound product page fetches per host.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/product-copy/internal/metrics"
	"github.com/JakeFAU/product-copy/internal/product"
)

// Limiter manages per-host token buckets.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    burst,
	}
}

// Wait blocks until a token is available for the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

// Fetcher delays each fetch until the limiter admits it. Static and headless
// fetchers share one Limiter so both count against the same host budget.
type Fetcher struct {
	next    product.Fetcher
	limiter *Limiter
}

// Wrap returns next guarded by limiter.
func Wrap(next product.Fetcher, limiter *Limiter) *Fetcher {
	return &Fetcher{next: next, limiter: limiter}
}

// Fetch waits for a token and then delegates. A wait cut short by the fetch
// deadline is reported as a timeout.
func (f *Fetcher) Fetch(ctx context.Context, u product.URL) (product.FetchResult, error) {
	if err := f.limiter.Wait(ctx, u.String()); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return product.FetchResult{}, err
		}
		return product.FetchResult{}, product.NewFetchError(product.ReasonTimeout, u.String(), err)
	}
	return f.next.Fetch(ctx, u)
}
