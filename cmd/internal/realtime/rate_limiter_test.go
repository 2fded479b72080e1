package realtime

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow(base) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(base) {
		t.Fatalf("event over limit should be denied")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Second)

	if !rl.Allow(base) || !rl.Allow(base.Add(100*time.Millisecond)) {
		t.Fatalf("initial events should be allowed")
	}
	if rl.Allow(base.Add(200 * time.Millisecond)) {
		t.Fatalf("third event inside window should be denied")
	}
	// The first event has aged out.
	if !rl.Allow(base.Add(1100 * time.Millisecond)) {
		t.Fatalf("event after window should be allowed")
	}
}
