// Package backoff computes capped exponential retry delays with proportional
// jitter and provides a context-aware sleep.
package backoff

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const maxShift = 62

// DefaultJitter spreads each delay uniformly within ±20%.
const DefaultJitter = 0.2

// Exponential returns base * 2^attempt, saturating instead of overflowing.
// Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1) << attempt
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(base) * multiplier)
}

// Capped returns Exponential(base, attempt) limited to limit. A non-positive
// limit disables the cap.
func Capped(base time.Duration, attempt int, limit time.Duration) time.Duration {
	d := Exponential(base, attempt)
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// Jitter returns delay scaled by a random factor in [1-fraction, 1+fraction].
// fraction is clamped to [0, 1].
func Jitter(delay time.Duration, fraction float64) time.Duration {
	if delay <= 0 || fraction <= 0 {
		return delay
	}
	if fraction > 1 {
		fraction = 1
	}
	factor := 1 - fraction + rand.Float64()*2*fraction
	return time.Duration(float64(delay) * factor)
}

// Policy describes a capped exponential schedule.
type Policy struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64
}

// Delay returns the wait before retry number retry (1-based): the first retry
// waits Base, the second 2*Base and so on, capped and then jittered.
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	return Jitter(Capped(p.Base, retry-1, p.Cap), p.Jitter)
}

// SleepWithContext sleeps for the specified duration but respects context cancellation.
// Returns nil if the sleep completes, or an error if the context is cancelled.
func SleepWithContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
