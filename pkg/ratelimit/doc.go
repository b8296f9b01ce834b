// Package ratelimit provides the per-user request throttle.
//
// SlidingWindow is a sliding-log limiter: it records the instant of each
// admitted request and rejects new ones while the trailing window already
// holds the maximum. UserLimiter keeps one window per user id.
//
//	limiter := ratelimit.NewUserLimiter(20, time.Minute)
//	if !limiter.Allowed(userID) {
//	    wait := limiter.WaitTime(userID)
//	    // tell the user to come back in wait
//	}
//
// Call Sweep periodically to drop users that have gone quiet.
package ratelimit
