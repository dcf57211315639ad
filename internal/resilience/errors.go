package resilience

import "errors"

var (
	// ErrCircuitOpen is returned when the breaker short-circuits a call,
	// including concurrent callers while a half-open trial is in flight.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrRetriesExhausted is returned when every allowed attempt failed. It
	// wraps the last attempt's error.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
