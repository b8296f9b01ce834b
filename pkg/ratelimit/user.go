package ratelimit

import (
	"sync"
	"time"
)

// UserLimiter keeps one sliding window per user id. Windows are created on a
// user's first request and can be evicted once idle with Sweep.
type UserLimiter struct {
	maxRequests int
	window      time.Duration
	now         Clock

	mu    sync.Mutex
	users map[int64]*SlidingWindow
}

// NewUserLimiter creates a per-user limiter admitting maxRequests per window
func NewUserLimiter(maxRequests int, window time.Duration) *UserLimiter {
	return NewUserLimiterWithClock(maxRequests, window, time.Now)
}

// NewUserLimiterWithClock is NewUserLimiter with an injectable clock
func NewUserLimiterWithClock(maxRequests int, window time.Duration, now Clock) *UserLimiter {
	if now == nil {
		now = time.Now
	}
	return &UserLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         now,
		users:       make(map[int64]*SlidingWindow),
	}
}

func (ul *UserLimiter) windowFor(userID int64) *SlidingWindow {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return ul.users[userID]
}

// Allowed reports whether userID may make a request now, recording it if so.
// The admission is recorded under ul.mu so Sweep cannot evict the window
// between lookup and record.
func (ul *UserLimiter) Allowed(userID int64) bool {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	sw, ok := ul.users[userID]
	if !ok {
		sw = NewSlidingWindowWithClock(ul.maxRequests, ul.window, ul.now)
		ul.users[userID] = sw
	}
	return sw.Allow()
}

// WaitTime returns how long userID must wait before the next request can be
// admitted. Unknown users get zero.
func (ul *UserLimiter) WaitTime(userID int64) time.Duration {
	sw := ul.windowFor(userID)
	if sw == nil {
		return 0
	}
	return sw.WaitTime()
}

// Remaining returns how many requests userID may still make in the current window
func (ul *UserLimiter) Remaining(userID int64) int {
	sw := ul.windowFor(userID)
	if sw == nil {
		return ul.maxRequests
	}
	return ul.maxRequests - sw.Len()
}

// Limit returns the per-window request ceiling
func (ul *UserLimiter) Limit() int {
	return ul.maxRequests
}

// Sweep forgets users whose most recent request is older than idle and
// returns how many were removed. idle is never shorter than the window, so a
// window still holding admitted requests is kept.
func (ul *UserLimiter) Sweep(idle time.Duration) int {
	cutoff := ul.now().Add(-max(idle, ul.window))

	ul.mu.Lock()
	defer ul.mu.Unlock()

	removed := 0
	for id, sw := range ul.users {
		if sw.lastSeen().Before(cutoff) {
			delete(ul.users, id)
			removed++
		}
	}
	return removed
}

// Users returns the number of tracked users
func (ul *UserLimiter) Users() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.users)
}
