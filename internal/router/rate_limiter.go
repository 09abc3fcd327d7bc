package router

import (
	"sync"
	"time"
)

// RateLimiter tracks per-user event counts over a fixed window. Clients
// are expected to debounce keystrokes; the limiter only guards against a
// runaway or hostile sender.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientWindow
}

type clientWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit events per window per
// user.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientWindow),
	}
}

// Allow reports whether the user may send another event right now.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	cw, exists := rl.clients[userID]
	if !exists {
		rl.clients[userID] = &clientWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(cw.windowStart) >= rl.window {
		cw.count = 1
		cw.windowStart = now
		return true
	}

	if cw.count >= rl.limit {
		return false
	}

	cw.count++
	return true
}

// Cleanup removes entries idle for several windows; call periodically to
// keep the map from accumulating departed users.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for userID, cw := range rl.clients {
		if now.Sub(cw.windowStart) > 5*rl.window {
			delete(rl.clients, userID)
		}
	}
}
