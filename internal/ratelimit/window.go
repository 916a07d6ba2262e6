// Package ratelimit provides the shared admission control for outbound
// registry calls. The registry quota is global, so a single Window instance
// is shared by every search running in the process.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a sliding-window rate limiter: at most maxRequests grants may
// complete within any trailing window. Grant timestamps older than the window
// are pruned on every admission decision, so memory stays bounded by
// maxRequests. Unlike a token bucket, a burst can never exceed maxRequests in
// a window that straddles the bucket refill.
type Window struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	grants []time.Time

	now func() time.Time // test hook
}

// NewWindow creates a limiter admitting maxRequests per trailing window.
func NewWindow(maxRequests int, window time.Duration) *Window {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Window{
		max:    maxRequests,
		window: window,
		now:    time.Now,
	}
}

// Acquire blocks until one more grant would not exceed the window quota, then
// records the grant. It returns early only when ctx is cancelled.
func (w *Window) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		w.prune(now)
		if len(w.grants) < w.max {
			w.grants = append(w.grants, now)
			w.mu.Unlock()
			return nil
		}
		// Oldest grant expires first; sleep until it leaves the window.
		wait := w.grants[0].Add(w.window).Sub(now)
		w.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending returns the number of grants currently inside the window.
func (w *Window) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.grants)
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.grants) && !w.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.grants = append(w.grants[:0], w.grants[i:]...)
	}
}
