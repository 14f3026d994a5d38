package router

import (
	"testing"
	"time"
)

func withClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	original := nowFunc
	nowFunc = func() time.Time { return current }
	t.Cleanup(func() { nowFunc = original })
	return &current
}

// TestRateLimiter_ExactLimits tests exact rate limiting behavior
func TestRateLimiter_ExactLimits(t *testing.T) {
	withClock(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(100)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("conn1") {
			t.Errorf("Signal %d should be allowed (within 100 limit)", i+1)
		}
	}

	if limiter.Allow("conn1") {
		t.Error("101st signal should be denied")
	}
}

// TestRateLimiter_WindowReset tests that a new minute opens a new window
func TestRateLimiter_WindowReset(t *testing.T) {
	clock := withClock(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(1)

	if !limiter.Allow("conn1") {
		t.Fatal("First signal should be allowed")
	}
	if limiter.Allow("conn1") {
		t.Fatal("Second signal in the same window should be denied")
	}

	*clock = clock.Add(time.Minute)
	if !limiter.Allow("conn1") {
		t.Error("Signal in a new window should be allowed")
	}
}

// TestRateLimiter_Disabled tests that a non-positive limit never denies
func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0)
	for i := 0; i < 1000; i++ {
		if !limiter.Allow("conn1") {
			t.Fatalf("Signal %d denied with limiting disabled", i+1)
		}
	}
	if limiter.Len() != 0 {
		t.Errorf("Disabled limiter should track nothing, got %d", limiter.Len())
	}
}

// TestRateLimiter_Cleanup tests removal of idle entries
func TestRateLimiter_Cleanup(t *testing.T) {
	clock := withClock(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(10)

	limiter.Allow("idle")
	*clock = clock.Add(4 * time.Minute)
	limiter.Allow("active")

	*clock = clock.Add(2 * time.Minute)
	limiter.Cleanup()

	if limiter.Len() != 1 {
		t.Errorf("Expected 1 tracked connection after cleanup, got %d", limiter.Len())
	}
	limiter.Remove("active")
	if limiter.Len() != 0 {
		t.Errorf("Expected 0 tracked connections after remove, got %d", limiter.Len())
	}
}
