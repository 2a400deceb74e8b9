package ratelimit

import "testing"

func TestAllowRespectsBurst(t *testing.T) {
	limiter := New(1, 2)
	if !limiter.Allow("web") || !limiter.Allow("web") {
		t.Fatal("burst allowance must admit the first two calls")
	}
	if limiter.Allow("web") {
		t.Fatal("third immediate call must be limited")
	}
	if !limiter.Allow("vector") {
		t.Fatal("independent keys must have independent buckets")
	}
}

func TestZeroRateDisablesLimiting(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("web") {
			t.Fatal("zero rate must disable limiting")
		}
	}
}
