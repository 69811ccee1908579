// Package progress implements the pipeline's progress reporting (spec.md
// §5): a thread-safe callback invoked from the main thread only, with
// worker updates coalesced through an atomic counter and rate-limited to
// avoid spamming a terminal, grounded on identify.py's CLIProgressIndicator.
package progress

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Callback receives a phase message and a completion fraction in [0,1].
// Implementations must be safe to call repeatedly from the main thread;
// the pipeline never calls it concurrently.
type Callback func(message string, fraction float64)

// Counter is the single atomic counter workers bump as templates complete;
// the main thread drains it and invokes Callback at a rate capped by
// MinInterval, matching spec.md's "callback rate <= 5 Hz".
type Counter struct {
	done  atomic.Int64
	total int64

	startedAt   time.Time
	lastEmit    time.Time
	minInterval time.Duration
	cb          Callback
}

// NewCounter builds a Counter for total items, emitting through cb no more
// often than minInterval (pass 0 for the spec default of 200ms, i.e. 5 Hz).
func NewCounter(total int, cb Callback, minInterval time.Duration) *Counter {
	if minInterval <= 0 {
		minInterval = 200 * time.Millisecond
	}
	return &Counter{total: int64(total), startedAt: time.Now(), minInterval: minInterval, cb: cb}
}

// Add increments the counter by delta; it never calls the callback itself
// (workers must not touch the callback directly per spec.md's "pipeline
// calls it from the main thread only").
func (c *Counter) Add(delta int) {
	c.done.Add(int64(delta))
}

// MaybeEmit reports progress through the callback if enough time has
// elapsed since the last emission, or if force is true (used at phase
// boundaries). message is forwarded as-is; an ETA is appended when total is
// known and at least one item has completed.
func (c *Counter) MaybeEmit(message string, force bool) {
	if c.cb == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(c.lastEmit) < c.minInterval {
		return
	}
	c.lastEmit = now

	done := c.done.Load()
	if c.total <= 0 {
		c.cb(message, 0)
		return
	}
	fraction := float64(done) / float64(c.total)
	if fraction > 1 {
		fraction = 1
	}
	c.cb(fmt.Sprintf("%s (ETA %s)", message, eta(c.startedAt, done, c.total)), fraction)
}

// eta linearly extrapolates remaining time from the elapsed time per
// completed item, the same estimator as CLIProgressIndicator.update.
func eta(start time.Time, done, total int64) string {
	if done <= 0 {
		return "calculating..."
	}
	elapsed := time.Since(start)
	perItem := elapsed / time.Duration(done)
	remaining := perItem * time.Duration(total-done)

	switch {
	case remaining < time.Minute:
		return fmt.Sprintf("%.0fs", remaining.Seconds())
	case remaining < time.Hour:
		return fmt.Sprintf("%.1fm", remaining.Minutes())
	default:
		return fmt.Sprintf("%.1fh", remaining.Hours())
	}
}
