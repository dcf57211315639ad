package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/student-service/internal/platform/backoff"
	"github.com/yungbote/student-service/internal/platform/logger"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	BackoffCap  time.Duration
	// Jitter is the +/- fraction applied to every delay.
	Jitter float64

	// Sleep waits between attempts; defaults to backoff.SleepWithContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		BackoffCap:  time.Second,
		Jitter:      backoff.DefaultJitter,
	}
}

func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.BaseDelay < 0 || c.BackoffCap < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("retry jitter must be within [0, 1]")
	}
	return nil
}

// RetryListener is notified before every backoff sleep.
type RetryListener interface {
	OnRetry(name string, attempt int, delay time.Duration, err error)
}

// Retrier runs an operation up to MaxAttempts times, asking the breaker for
// permission before every attempt and reporting each outcome back to it.
type Retrier struct {
	breaker *Breaker
	cfg     RetryConfig
	policy  backoff.Policy
	sleep   func(ctx context.Context, d time.Duration) error
	log     *logger.Logger

	mu        sync.RWMutex
	listeners []RetryListener
}

func NewRetrier(breaker *Breaker, cfg RetryConfig, log *logger.Logger) (*Retrier, error) {
	if breaker == nil {
		return nil, fmt.Errorf("retrier requires a breaker")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = backoff.SleepWithContext
	}
	return &Retrier{
		breaker: breaker,
		cfg:     cfg,
		policy: backoff.Policy{
			Base:   cfg.BaseDelay,
			Cap:    cfg.BackoffCap,
			Jitter: cfg.Jitter,
		},
		sleep: sleep,
		log:   log.With("retrier", breaker.Name()),
	}, nil
}

func (r *Retrier) Breaker() *Breaker { return r.breaker }

func (r *Retrier) AddRetryListener(l RetryListener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Execute runs op until it succeeds, the breaker rejects, the attempts run out
// or ctx is cancelled. A rejection returns ErrCircuitOpen without waiting; a
// run of failures returns ErrRetriesExhausted wrapping the last error.
//
// The half-open trial runs on a context detached from ctx so its outcome
// always reaches the breaker, even when the caller has gone away.
func (r *Retrier) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: attempt %d not started: %w", r.breaker.Name(), attempt, err)
		}

		ticket, err := r.breaker.Allow()
		if err != nil {
			return err
		}

		opCtx := ctx
		if ticket.Trial() {
			opCtx = context.WithoutCancel(ctx)
		}

		err = op(opCtx)
		if err == nil {
			ticket.Success()
			return nil
		}
		if ctx.Err() != nil && !ticket.Trial() {
			ticket.Abandon()
			return fmt.Errorf("%s: attempt %d abandoned: %w", r.breaker.Name(), attempt, ctx.Err())
		}
		ticket.Failure()
		lastErr = err

		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.policy.Delay(attempt)
		r.log.Debug("Retrying after failure", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
		r.notifyRetry(attempt, delay, err)
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: backoff interrupted: %w", r.breaker.Name(), err)
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, r.breaker.Name(), r.cfg.MaxAttempts, lastErr)
}

func (r *Retrier) notifyRetry(attempt int, delay time.Duration, err error) {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()
	for _, l := range listeners {
		l.OnRetry(r.breaker.Name(), attempt, delay, err)
	}
}
