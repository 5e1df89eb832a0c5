package sensory

import (
	"context"
	"time"
)

// rateLimiter paces an injector loop at a fixed rate. Deadlines are carried
// forward from the previous slot so a slow read does not permanently shift
// the schedule, but missed slots are skipped rather than replayed.
type rateLimiter struct {
	interval time.Duration
	next     time.Time
}

func newRateLimiter(hz float64) *rateLimiter {
	if hz <= 0 {
		hz = 1
	}
	return &rateLimiter{interval: time.Duration(float64(time.Second) / hz)}
}

// Wait blocks until the next slot or ctx cancellation; returns false on
// cancellation.
func (r *rateLimiter) Wait(ctx context.Context) bool {
	now := time.Now()
	if r.next.IsZero() {
		r.next = now
	}
	if !now.Before(r.next) {
		// Behind schedule: run immediately and drop the missed slots.
		r.next = now.Add(r.interval)
		return ctx.Err() == nil
	}

	timer := time.NewTimer(r.next.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		r.next = r.next.Add(r.interval)
		return true
	}
}
