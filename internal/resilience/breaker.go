package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yungbote/student-service/internal/platform/logger"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// BreakerConfig holds the failure-rate policy for one dependency.
type BreakerConfig struct {
	// FailureThreshold is the number of failures inside one window that opens
	// the breaker.
	FailureThreshold uint32
	// WindowDuration is the length of the fixed window failures are counted in
	// while closed.
	WindowDuration time.Duration
	// OpenDuration is how long the breaker short-circuits before it lets a
	// single trial call through.
	OpenDuration time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		WindowDuration:   10 * time.Second,
		OpenDuration:     10 * time.Second,
	}
}

func (c BreakerConfig) Validate() error {
	if c.FailureThreshold == 0 {
		return fmt.Errorf("breaker failure threshold must be at least 1")
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("breaker window duration must be positive")
	}
	if c.OpenDuration <= 0 {
		return fmt.Errorf("breaker open duration must be positive")
	}
	return nil
}

// Counts mirrors the counters of the current window.
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// StateChangeListener is notified on every transition. It runs while the
// breaker's lock is held and must not block or call back into the breaker.
type StateChangeListener interface {
	OnStateChange(name string, from State, to State)
}

// RejectionListener is notified whenever a call is short-circuited.
type RejectionListener interface {
	OnRejected(name string, state State)
}

// Breaker guards one remote dependency. Closed lets everything through, Open
// rejects until OpenDuration has passed, HalfOpen grants exactly one trial.
type Breaker struct {
	name string
	cb   *gobreaker.TwoStepCircuitBreaker
	log  *logger.Logger

	mu         sync.RWMutex
	listeners  []StateChangeListener
	rejections []RejectionListener
}

func NewBreaker(name string, cfg BreakerConfig, log *logger.Logger) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &Breaker{
		name: name,
		log:  log.With("breaker", name),
	}
	threshold := cfg.FailureThreshold
	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.WindowDuration,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= threshold
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			b.handleStateChange(fromGobreaker(from), fromGobreaker(to))
		},
	})
	return b, nil
}

func (b *Breaker) Name() string { return b.name }

// Allow asks for permission to make one call. The returned ticket must be
// settled with Success, Failure or Abandon. A rejected call returns an error
// matching ErrCircuitOpen and never counts as a failure.
func (b *Breaker) Allow() (*Ticket, error) {
	done, err := b.cb.Allow()
	if err != nil {
		state := b.State()
		b.notifyRejected(state)
		return nil, fmt.Errorf("%w: %s is %s: %w", ErrCircuitOpen, b.name, state, err)
	}
	return &Ticket{
		done:  done,
		trial: b.cb.State() == gobreaker.StateHalfOpen,
	}, nil
}

func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

func (b *Breaker) Counts() Counts {
	c := b.cb.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

func (b *Breaker) AddStateChangeListener(l StateChangeListener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Breaker) AddRejectionListener(l RejectionListener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejections = append(b.rejections, l)
}

func (b *Breaker) handleStateChange(from, to State) {
	switch to {
	case StateOpen:
		b.log.Warn("Circuit breaker opened", "from", from, "to", to)
	default:
		b.log.Info("Circuit breaker state changed", "from", from, "to", to)
	}

	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()
	for _, l := range listeners {
		l.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) notifyRejected(state State) {
	b.log.Debug("Circuit breaker rejected call", "state", state)

	b.mu.RLock()
	rejections := b.rejections
	b.mu.RUnlock()
	for _, l := range rejections {
		l.OnRejected(b.name, state)
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

// Ticket is the permission for a single call. Only the first settle counts.
type Ticket struct {
	done  func(success bool)
	trial bool
	once  sync.Once
}

// Trial reports whether this ticket is the single half-open probe.
func (t *Ticket) Trial() bool { return t.trial }

func (t *Ticket) Success() { t.settle(true) }

func (t *Ticket) Failure() { t.settle(false) }

// Abandon settles a ticket whose call was given up by the caller. Outside the
// half-open probe the outcome is dropped; the probe itself counts as failed so
// the breaker never waits on it forever.
func (t *Ticket) Abandon() {
	if t.trial {
		t.settle(false)
		return
	}
	t.once.Do(func() {})
}

func (t *Ticket) settle(success bool) {
	t.once.Do(func() {
		if t.done != nil {
			t.done(success)
		}
	})
}
