package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/student-service/internal/clients/course"
	"github.com/yungbote/student-service/internal/clients/redis"
	"github.com/yungbote/student-service/internal/observability"
	"github.com/yungbote/student-service/internal/platform/logger"
)

type Clients struct {
	Course *course.Client
	// BreakerBus is nil when redis.addr is empty.
	BreakerBus redis.BreakerEventBus
}

func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	courseClient, err := course.New(course.Options{
		BaseURL:   cfg.CourseService.BaseURL,
		BatchPath: cfg.CourseService.BatchPath,
		Timeout:   cfg.CourseService.Timeout,
		Observer:  metrics,
		Logger:    log,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init course client: %w", err)
	}

	// Redis
	var bus redis.BreakerEventBus
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := redis.NewBreakerEventBus(log, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis breaker bus: %w", err)
		}
		bus = b
	}

	return Clients{Course: courseClient, BreakerBus: bus}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.BreakerBus != nil {
		_ = c.BreakerBus.Close()
	}
}
