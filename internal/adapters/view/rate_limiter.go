package view

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by view client.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}

// Forget drops the history of a disconnected client.
func (rl *RateLimiter) Forget(key string) {
	rl.mu.Lock()
	delete(rl.history, key)
	rl.mu.Unlock()
}
