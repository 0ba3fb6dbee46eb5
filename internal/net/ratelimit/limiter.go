package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces requests per host with a token bucket. A non-positive rate
// disables limiting.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter creates a limiter allowing rps requests per second per host
// with the given burst.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limit := rate.Inf
	if l.rps > 0 {
		limit = rate.Limit(l.rps)
	}
	limiter = rate.NewLimiter(limit, l.burst)
	l.limiters[host] = limiter
	return limiter
}

// Wait blocks until a request to host may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.getLimiter(host).Wait(ctx)
}

// Tokens returns the tokens currently available for host.
func (l *Limiter) Tokens(host string) float64 {
	return l.getLimiter(host).Tokens()
}
