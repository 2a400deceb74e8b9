package redis

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// CooldownLock is the distributed short-TTL lock guarding the expensive
// rerank stage. It fails open: any store error reports acquired so
// correctness never depends on Redis being reachable.
type CooldownLock struct {
	client *goredis.Client
	logger *slog.Logger
}

func New(addr, password string, logger *slog.Logger) *CooldownLock {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	return &CooldownLock{client: client, logger: logger}
}

func (l *CooldownLock) Close() error {
	return l.client.Close()
}

// TryAcquire is a non-blocking SET NX with TTL. true means the caller owns
// the window; the key expires on its own, there is no explicit release.
func (l *CooldownLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = time.Second
	}
	acquired, err := l.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		if l.logger != nil {
			l.logger.Debug("cooldown lock store unavailable, failing open", "error", err)
		}
		return true
	}
	return acquired
}
