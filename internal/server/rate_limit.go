package server

import (
	"sync"
	"time"
)

// RequestRateLimiter restricts how frequently a single client
// can hit a sensitive endpoint (purchase, download).
type RequestRateLimiter struct {
	mu        sync.Mutex
	attempts  map[string][]time.Time
	maxPerMin int
}

// NewRequestRateLimiter creates a limiter allowing maxPerMinute requests per client.
func NewRequestRateLimiter(maxPerMinute int) *RequestRateLimiter {
	return &RequestRateLimiter{
		attempts:  make(map[string][]time.Time),
		maxPerMin: maxPerMinute,
	}
}

// Allow returns true if the client has not exceeded the rate limit.
func (rl *RequestRateLimiter) Allow(clientAddr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	recent := make([]time.Time, 0, rl.maxPerMin)
	for _, t := range rl.attempts[clientAddr] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.maxPerMin {
		return false
	}

	rl.attempts[clientAddr] = append(recent, now)
	return true
}
