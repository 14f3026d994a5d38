package router

import (
	"sync"
	"time"
)

// nowFunc is replaced in tests
var nowFunc = time.Now

// RateLimiter implements per-connection signal rate limiting
// ARCHITECTURAL DISCOVERY: Per-connection state is removed on disconnect and
// swept periodically so abandoned entries cannot accumulate
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	clients map[string]*ClientLimit
}

// ClientLimit tracks the current one-minute window for a connection
type ClientLimit struct {
	signalCount int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit signals per minute
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		clients: make(map[string]*ClientLimit),
	}
}

// Allow reports whether the connection may send another signal
func (rl *RateLimiter) Allow(connectionID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := nowFunc()

	limit, exists := rl.clients[connectionID]
	if !exists {
		rl.clients[connectionID] = &ClientLimit{
			signalCount: 1,
			windowStart: now,
		}
		return true
	}

	// FUNCTIONAL DISCOVERY: Fixed window resets one minute after it opened
	if now.Sub(limit.windowStart) >= time.Minute {
		limit.signalCount = 1
		limit.windowStart = now
		return true
	}

	if limit.signalCount >= rl.limit {
		return false
	}

	limit.signalCount++
	return true
}

// Remove forgets a connection
func (rl *RateLimiter) Remove(connectionID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, connectionID)
}

// Cleanup removes entries idle for more than five windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := nowFunc()
	for connectionID, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*time.Minute {
			delete(rl.clients, connectionID)
		}
	}
}

// Len returns the number of tracked connections
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
