package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// SlidingWindow implements a sliding-log rate limiter: it remembers the
// instant of every admitted request inside the trailing window.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         Clock
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return NewSlidingWindowWithClock(maxRequests, windowSize, time.Now)
}

// NewSlidingWindowWithClock creates a sliding window that reads time from now
func NewSlidingWindowWithClock(maxRequests int, windowSize time.Duration, now Clock) *SlidingWindow {
	if now == nil {
		now = time.Now
	}
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         now,
	}
}

// Allow prunes expired instants, then admits and records the request if the
// window is below the ceiling. A rejected request is not recorded.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}

// WaitTime returns how long until the oldest recorded request leaves the
// window. It is zero when there is no history or the window has room.
func (sw *SlidingWindow) WaitTime() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)
	return sw.waitTimeLocked(now)
}

func (sw *SlidingWindow) waitTimeLocked(now time.Time) time.Duration {
	if len(sw.requests) == 0 || len(sw.requests) < sw.maxRequests {
		return 0
	}
	wait := sw.requests[0].Add(sw.windowSize).Sub(now)
	if wait < 0 {
		return 0
	}
	if wait > sw.windowSize {
		return sw.windowSize
	}
	return wait
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		wait := sw.WaitTime()
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// Len returns the number of requests currently inside the window
func (sw *SlidingWindow) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(sw.now())
	return len(sw.requests)
}

// lastSeen returns the newest recorded instant, or the zero time
func (sw *SlidingWindow) lastSeen() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if len(sw.requests) == 0 {
		return time.Time{}
	}
	return sw.requests[len(sw.requests)-1]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
