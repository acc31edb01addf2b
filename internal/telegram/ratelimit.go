package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces every call made through the automation account. Scrapes
// and campaigns share one, so a FLOOD_WAIT seen by one pauses the other.
type RateLimiter struct {
	bucket *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
	now         func() time.Time
}

// NewRateLimiter allows rps calls per second with the given burst. Non
// positive values fall back to 2 rps and a burst of 1.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
		now:    time.Now,
	}
}

// DefaultRateLimiter is 2 rps without burst.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(2, 1)
}

// Wait blocks until a call is allowed: any flood pause is sat out first, then
// a token is taken. A pause set while waiting for the token is honoured too.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := r.sitOut(ctx); err != nil {
			return err
		}
		if err := r.bucket.Wait(ctx); err != nil {
			return err
		}
		if r.FloodWaitRemaining() == 0 {
			return nil
		}
	}
}

func (r *RateLimiter) sitOut(ctx context.Context) error {
	d := r.FloodWaitRemaining()
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetFloodWait pauses all calls for d. An active longer pause is kept.
func (r *RateLimiter) SetFloodWait(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.now().Add(d); until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}

// FloodWaitRemaining is how long the current pause still lasts.
func (r *RateLimiter) FloodWaitRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return max(r.pausedUntil.Sub(r.now()), 0)
}
