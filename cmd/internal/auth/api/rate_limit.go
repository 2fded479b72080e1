package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// loginThrottle tracks recent login failures per client IP in memory and
// blocks further attempts once the window limit is hit. Failures age out of
// the window; success does not reset it.
type loginThrottle struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	failures map[string][]time.Time
}

func newLoginThrottle(limit int, window time.Duration) *loginThrottle {
	return &loginThrottle{
		limit:    limit,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// Blocked reports whether key is currently throttled and for how long.
func (t *loginThrottle) Blocked(key string, now time.Time) (bool, time.Duration) {
	if t == nil || t.limit <= 0 || key == "" {
		return false, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := pruneBefore(t.failures[key], now.Add(-t.window))
	if len(kept) == 0 {
		delete(t.failures, key)
	} else {
		t.failures[key] = kept
	}

	return evaluateWindowThrottle(now, kept, t.limit, t.window)
}

// RecordFailure notes a failed login attempt for key.
func (t *loginThrottle) RecordFailure(key string, now time.Time) {
	if t == nil || t.limit <= 0 || key == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := pruneBefore(t.failures[key], now.Add(-t.window))
	t.failures[key] = append(kept, now)
}

func pruneBefore(events []time.Time, cut time.Time) []time.Time {
	dst := events[:0]
	for _, ts := range events {
		if ts.After(cut) {
			dst = append(dst, ts)
		}
	}
	return dst
}

// evaluateWindowThrottle decides whether the failure count within the window
// reaches the limit, and how long until the oldest counted failure ages out.
func evaluateWindowThrottle(now time.Time, failures []time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return false, 0
	}

	count := 0
	oldest := time.Time{}
	cut := now.Add(-window)
	for _, ts := range failures {
		if !ts.After(cut) {
			continue
		}
		count++
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}

	if count < limit {
		return false, 0
	}
	retry := oldest.Add(window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return true, retry
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	writeError(w, http.StatusTooManyRequests, "too many attempts")
}
