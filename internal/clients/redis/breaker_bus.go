package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/student-service/internal/platform/logger"
	"github.com/yungbote/student-service/internal/resilience"
)

const (
	DefaultChannel = "breaker-events"
	defaultBuffer  = 64
	publishTimeout = 2 * time.Second
)

type BreakerEvent struct {
	Breaker string           `json:"breaker"`
	From    resilience.State `json:"from"`
	To      resilience.State `json:"to"`
	At      time.Time        `json:"at"`
}

// BreakerEventBus fans breaker transitions out over Redis pub/sub. It is a
// resilience.StateChangeListener: transitions are queued without blocking and
// published by Run.
type BreakerEventBus interface {
	resilience.StateChangeListener
	Publish(ctx context.Context, ev BreakerEvent) error
	Run(ctx context.Context) error
	Subscribe(ctx context.Context, onEvent func(ev BreakerEvent)) error
	Close() error
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// Buffer bounds the number of queued transitions; extra ones are dropped.
	Buffer int
}

type breakerBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	queue   chan BreakerEvent
	now     func() time.Time
}

func NewBreakerEventBus(log *logger.Logger, opts Options) (BreakerEventBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ch := strings.TrimSpace(opts.Channel)
	if ch == "" {
		ch = DefaultChannel
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &breakerBus{
		log:     log.With("service", "RedisBreakerEventBus"),
		rdb:     rdb,
		channel: ch,
		queue:   make(chan BreakerEvent, buffer),
		now:     time.Now,
	}, nil
}

func (b *breakerBus) OnStateChange(name string, from resilience.State, to resilience.State) {
	ev := BreakerEvent{Breaker: name, From: from, To: to, At: b.now().UTC()}
	select {
	case b.queue <- ev:
	default:
		b.log.Warn("breaker event queue full, dropping event", "breaker", name, "from", from, "to", to)
	}
}

func (b *breakerBus) Publish(ctx context.Context, ev BreakerEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis breaker bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Run publishes queued transitions until ctx is done.
func (b *breakerBus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.queue:
			pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
			if err := b.Publish(pubCtx, ev); err != nil {
				b.log.Warn("publish breaker event failed", "breaker", ev.Breaker, "to", ev.To, "error", err)
			}
			cancel()
		}
	}
}

func (b *breakerBus) Subscribe(ctx context.Context, onEvent func(ev BreakerEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis breaker bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev BreakerEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad breaker event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *breakerBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
