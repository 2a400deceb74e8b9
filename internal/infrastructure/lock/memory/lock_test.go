package memory

import (
	"context"
	"testing"
	"time"
)

func TestTryAcquireBlocksWithinWindow(t *testing.T) {
	lock := New()
	current := time.Now()
	lock.now = func() time.Time { return current }

	if !lock.TryAcquire(context.Background(), "ce:rerank:abc", time.Second) {
		t.Fatal("first acquire must succeed")
	}
	if lock.TryAcquire(context.Background(), "ce:rerank:abc", time.Second) {
		t.Fatal("second acquire inside the window must fail")
	}
	if !lock.TryAcquire(context.Background(), "ce:rerank:other", time.Second) {
		t.Fatal("different key must not be blocked")
	}

	current = current.Add(1100 * time.Millisecond)
	if !lock.TryAcquire(context.Background(), "ce:rerank:abc", time.Second) {
		t.Fatal("acquire after expiry must succeed")
	}
}
