package memory

import (
	"context"
	"sync"
	"time"
)

// CooldownLock is the in-process lock used in tests and single-instance
// deployments. Semantics match the Redis implementation: non-blocking
// acquire with TTL expiry.
type CooldownLock struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func New() *CooldownLock {
	return &CooldownLock{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *CooldownLock) TryAcquire(_ context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = time.Second
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if deadline, held := l.expires[key]; held && now.Before(deadline) {
		return false
	}
	l.expires[key] = now.Add(ttl)
	return true
}
