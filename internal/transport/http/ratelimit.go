package http

import "time"

// rateLimiter is a fixed-window counter for one connection's inbound frames.
// It is owned by the connection's read loop and is not safe for concurrent use.
type rateLimiter struct {
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
	now         func() time.Time
}

// newRateLimiter allows limit frames per minute. A non-positive limit disables limiting.
func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := r.now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
