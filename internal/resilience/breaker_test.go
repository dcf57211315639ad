package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	from State
	to   State
}

type recordingListener struct {
	mu          sync.Mutex
	transitions []transition
	rejected    int
}

func (l *recordingListener) OnStateChange(_ string, from State, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, transition{from: from, to: to})
}

func (l *recordingListener) OnRejected(_ string, _ State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejected++
}

func (l *recordingListener) snapshot() ([]transition, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]transition(nil), l.transitions...), l.rejected
}

func newTestBreaker(t *testing.T, cfg BreakerConfig) *Breaker {
	t.Helper()
	b, err := NewBreaker("course-service", cfg, nil)
	require.NoError(t, err)
	return b
}

func fail(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ticket, err := b.Allow()
		require.NoError(t, err)
		ticket.Failure()
	}
}

// openBreaker trips b and waits until its open period is over.
func openBreaker(t *testing.T, b *Breaker, cfg BreakerConfig) {
	t.Helper()
	fail(t, b, int(cfg.FailureThreshold))
	require.Equal(t, StateOpen, b.State())
	time.Sleep(cfg.OpenDuration + 20*time.Millisecond)
}

func TestNewBreakerValidatesConfig(t *testing.T) {
	_, err := NewBreaker("x", BreakerConfig{}, nil)
	assert.Error(t, err)

	_, err = NewBreaker("x", BreakerConfig{FailureThreshold: 1, WindowDuration: time.Second}, nil)
	assert.Error(t, err)
}

func TestBreakerStartsClosed(t *testing.T) {
	b := newTestBreaker(t, DefaultBreakerConfig())

	assert.Equal(t, StateClosed, b.State())
	ticket, err := b.Allow()
	require.NoError(t, err)
	assert.False(t, ticket.Trial())
	ticket.Success()
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 3, WindowDuration: time.Minute, OpenDuration: time.Minute}
	b := newTestBreaker(t, cfg)
	l := &recordingListener{}
	b.AddStateChangeListener(l)
	b.AddRejectionListener(l)

	fail(t, b, 2)
	assert.Equal(t, StateClosed, b.State())

	fail(t, b, 1)
	assert.Equal(t, StateOpen, b.State())

	ticket, err := b.Allow()
	assert.Nil(t, ticket)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	transitions, rejected := l.snapshot()
	assert.Equal(t, []transition{{StateClosed, StateOpen}}, transitions)
	assert.Equal(t, 1, rejected)
}

func TestBreakerSuccessesDoNotResetWindowFailures(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 3, WindowDuration: time.Minute, OpenDuration: time.Minute}
	b := newTestBreaker(t, cfg)

	fail(t, b, 2)
	ticket, err := b.Allow()
	require.NoError(t, err)
	ticket.Success()
	fail(t, b, 1)

	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerWindowExpiryClearsFailures(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 3, WindowDuration: 30 * time.Millisecond, OpenDuration: time.Minute}
	b := newTestBreaker(t, cfg)

	fail(t, b, 2)
	time.Sleep(60 * time.Millisecond)
	fail(t, b, 2)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(2), b.Counts().TotalFailures)
}

func TestBreakerGrantsExactlyOneHalfOpenTrial(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 1, WindowDuration: time.Minute, OpenDuration: 30 * time.Millisecond}
	b := newTestBreaker(t, cfg)
	openBreaker(t, b, cfg)

	const callers = 32
	var (
		granted  atomic.Int32
		rejected atomic.Int32
		wg       sync.WaitGroup
		start    = make(chan struct{})
		tickets  = make(chan *Ticket, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ticket, err := b.Allow()
			if err != nil {
				assert.ErrorIs(t, err, ErrCircuitOpen)
				rejected.Add(1)
				return
			}
			granted.Add(1)
			tickets <- ticket
		}()
	}
	close(start)
	wg.Wait()
	close(tickets)

	assert.Equal(t, int32(1), granted.Load())
	assert.Equal(t, int32(callers-1), rejected.Load())
	assert.Equal(t, StateHalfOpen, b.State())

	trial := <-tickets
	require.NotNil(t, trial)
	assert.True(t, trial.Trial())
	trial.Success()
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 2, WindowDuration: time.Minute, OpenDuration: 30 * time.Millisecond}
	b := newTestBreaker(t, cfg)
	l := &recordingListener{}
	b.AddStateChangeListener(l)
	openBreaker(t, b, cfg)

	trial, err := b.Allow()
	require.NoError(t, err)
	require.True(t, trial.Trial())
	trial.Success()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(0), b.Counts().TotalFailures)

	transitions, _ := l.snapshot()
	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, transitions)

	// one failure after recovery is below the threshold again
	fail(t, b, 1)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 1, WindowDuration: time.Minute, OpenDuration: 30 * time.Millisecond}
	b := newTestBreaker(t, cfg)
	openBreaker(t, b, cfg)

	trial, err := b.Allow()
	require.NoError(t, err)
	trial.Failure()

	assert.Equal(t, StateOpen, b.State())
	_, err = b.Allow()
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// the open period starts over after the failed trial
	time.Sleep(cfg.OpenDuration + 20*time.Millisecond)
	trial, err = b.Allow()
	require.NoError(t, err)
	assert.True(t, trial.Trial())
	trial.Success()
	assert.Equal(t, StateClosed, b.State())
}

func TestTicketSettlesOnce(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 1, WindowDuration: time.Minute, OpenDuration: time.Minute}
	b := newTestBreaker(t, cfg)

	ticket, err := b.Allow()
	require.NoError(t, err)
	ticket.Success()
	ticket.Failure()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(0), b.Counts().TotalFailures)
}

func TestTicketAbandonOutsideTrialIsNotCounted(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 1, WindowDuration: time.Minute, OpenDuration: time.Minute}
	b := newTestBreaker(t, cfg)

	ticket, err := b.Allow()
	require.NoError(t, err)
	ticket.Abandon()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(0), b.Counts().TotalFailures)
}

func TestTicketAbandonedTrialReopens(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 1, WindowDuration: time.Minute, OpenDuration: 30 * time.Millisecond}
	b := newTestBreaker(t, cfg)
	openBreaker(t, b, cfg)

	trial, err := b.Allow()
	require.NoError(t, err)
	trial.Abandon()

	assert.Equal(t, StateOpen, b.State())
}
