package app

import (
	"fmt"

	"github.com/yungbote/student-service/internal/observability"
	"github.com/yungbote/student-service/internal/platform/logger"
	"github.com/yungbote/student-service/internal/resilience"
	"github.com/yungbote/student-service/internal/services"
)

// CourseServiceBreaker names the breaker guarding the course service.
const CourseServiceBreaker = "course-service"

type Services struct {
	Student services.StudentService
	Retrier *resilience.Retrier
}

// wireResilience builds the course-service breaker and retrier and attaches
// the metrics and event bus listeners.
func wireResilience(log *logger.Logger, cfg Config, metrics *observability.Metrics, clients Clients) (*resilience.Retrier, error) {
	breaker, err := resilience.NewBreaker(CourseServiceBreaker, cfg.BreakerConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("init breaker: %w", err)
	}
	breaker.AddStateChangeListener(metrics)
	breaker.AddRejectionListener(metrics)
	if clients.BreakerBus != nil {
		breaker.AddStateChangeListener(clients.BreakerBus)
	}

	retrier, err := resilience.NewRetrier(breaker, cfg.RetryConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("init retrier: %w", err)
	}
	retrier.AddRetryListener(metrics)
	return retrier, nil
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	retrier, err := wireResilience(log, cfg, metrics, clients)
	if err != nil {
		return Services{}, err
	}

	studentService, err := services.NewStudentService(log, repos.Student, clients.Course, retrier, metrics)
	if err != nil {
		return Services{}, fmt.Errorf("init student service: %w", err)
	}

	return Services{
		Student: studentService,
		Retrier: retrier,
	}, nil
}
