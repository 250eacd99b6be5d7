// Package ratelimit implements fixed-window send caps with a pluggable
// counter store. Checking and recording are separate steps: a send is checked
// before the write and recorded only after it is accepted, so rejected
// requests never consume window budget.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Window is one fixed-window cap.
type Window struct {
	Name     string
	Max      int64
	Duration time.Duration
}

// ThrottledError reports which window rejected the request and when the
// client may retry.
type ThrottledError struct {
	Window     string
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s window, retry after %s", e.Window, e.RetryAfter)
}

// RetryAfterSeconds rounds the retry delay up to whole seconds, minimum one.
func (e *ThrottledError) RetryAfterSeconds() int {
	seconds := int(math.Ceil(e.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// Store counts hits per key within a fixed window. Implementations must make
// Incr atomic; the in-memory store serves single-process deployments and the
// Redis store shares counters across processes.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Get(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Limiter enforces a set of windows over one injected store.
type Limiter struct {
	store   Store
	windows []Window
}

// New constructs a limiter. All windows must pass for a request to proceed.
func New(store Store, windows ...Window) *Limiter {
	return &Limiter{store: store, windows: windows}
}

// Allow checks every window without consuming budget. The first full window
// yields a ThrottledError carrying the remaining window time.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	for _, window := range l.windows {
		count, ttl, err := l.store.Get(ctx, l.windowKey(key, window), window.Duration)
		if err != nil {
			return err
		}
		if count >= window.Max {
			if ttl <= 0 {
				ttl = window.Duration
			}
			return &ThrottledError{Window: window.Name, RetryAfter: ttl}
		}
	}
	return nil
}

// Record counts one accepted request against every window.
func (l *Limiter) Record(ctx context.Context, key string) error {
	for _, window := range l.windows {
		if _, err := l.store.Incr(ctx, l.windowKey(key, window), window.Duration); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) windowKey(key string, window Window) string {
	return fmt.Sprintf("%s:%s", key, window.Name)
}
