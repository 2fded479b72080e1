package authapi

import (
	"testing"
	"time"
)

func TestEvaluateWindowThrottle(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	tests := []struct {
		name     string
		failures []time.Time
		limit    int
		blocked  bool
		retry    time.Duration
	}{
		{name: "empty", failures: nil, limit: 3, blocked: false},
		{
			name:     "under limit",
			failures: []time.Time{base.Add(-time.Minute), base.Add(-30 * time.Second)},
			limit:    3,
			blocked:  false,
		},
		{
			name: "at limit",
			failures: []time.Time{
				base.Add(-4 * time.Minute),
				base.Add(-2 * time.Minute),
				base.Add(-time.Minute),
			},
			limit:   3,
			blocked: true,
			retry:   time.Minute,
		},
		{
			name: "stale failures age out",
			failures: []time.Time{
				base.Add(-10 * time.Minute),
				base.Add(-9 * time.Minute),
				base.Add(-time.Minute),
			},
			limit:   3,
			blocked: false,
		},
		{name: "zero limit disables", failures: []time.Time{base}, limit: 0, blocked: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blocked, retry := evaluateWindowThrottle(base, tc.failures, tc.limit, window)
			if blocked != tc.blocked {
				t.Fatalf("blocked=%v want %v", blocked, tc.blocked)
			}
			if tc.blocked && retry != tc.retry {
				t.Fatalf("retry=%v want %v", retry, tc.retry)
			}
		})
	}
}

func TestLoginThrottleBlocksAndRecovers(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	th := newLoginThrottle(2, time.Minute)

	if blocked, _ := th.Blocked("1.2.3.4", base); blocked {
		t.Fatalf("fresh key must not be blocked")
	}

	th.RecordFailure("1.2.3.4", base)
	th.RecordFailure("1.2.3.4", base.Add(10*time.Second))

	if blocked, _ := th.Blocked("1.2.3.4", base.Add(20*time.Second)); !blocked {
		t.Fatalf("expected block after limit failures")
	}
	// A different key is unaffected.
	if blocked, _ := th.Blocked("5.6.7.8", base.Add(20*time.Second)); blocked {
		t.Fatalf("unrelated key must not be blocked")
	}
	// After the window the failures age out.
	if blocked, _ := th.Blocked("1.2.3.4", base.Add(2*time.Minute)); blocked {
		t.Fatalf("block must expire with the window")
	}
}
