package signal

import (
	"sync"

	"github.com/dkeye/Interview/internal/core"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per signaling endpoint.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[core.EndpointID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[core.EndpointID]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (rl *RateLimiter) Allow(id core.EndpointID) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[id]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[id] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

func (rl *RateLimiter) Forget(id core.EndpointID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, id)
}
