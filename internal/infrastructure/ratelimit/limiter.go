package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// ProviderLimiter caps outbound calls per provider key with a token
// bucket per key. Fail open by construction: a zero or negative rate
// disables limiting entirely.
type ProviderLimiter struct {
	perSecond float64
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(perSecond float64, burst int) *ProviderLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ProviderLimiter{
		perSecond: perSecond,
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (p *ProviderLimiter) Allow(key string) bool {
	if p.perSecond <= 0 {
		return true
	}
	p.mu.Lock()
	limiter, ok := p.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(p.perSecond), p.burst)
		p.limiters[key] = limiter
	}
	p.mu.Unlock()
	return limiter.Allow()
}
