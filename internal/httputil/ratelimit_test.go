package httputil

import (
	"testing"
	"time"
)

func TestRateLimiterPerKey(t *testing.T) {
	l := NewRateLimiter(1, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Error("third request within the same instant should be denied")
	}
	if !l.Allow("b") {
		t.Error("a different key has its own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Error("bucket should refill after one second")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	l := NewRateLimiter(10, 1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(50 * time.Second)
	l.Allow("recent")
	now = now.Add(20 * time.Second)

	if left := l.Sweep(); left != 1 {
		t.Errorf("Sweep left %d keys, want 1", left)
	}
	if l.count() != 1 {
		t.Errorf("count = %d, want 1", l.count())
	}
}
