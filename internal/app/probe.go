package app

import (
	"context"
	"fmt"

	types "github.com/yungbote/student-service/internal/domain"
	"github.com/yungbote/student-service/internal/observability"
	"github.com/yungbote/student-service/internal/resilience"
)

type ProbeResult struct {
	Courses []types.CourseSummary
	Breaker resilience.State
	Counts  resilience.Counts
}

// ProbeCourses fetches ids once through the same retry and breaker policy the
// server uses. No database is opened.
func ProbeCourses(ctx context.Context, cfg Config, ids []int64) (*ProbeResult, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	defer log.Sync()

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	clientset, err := wireClients(log, Config{CourseService: cfg.CourseService}, metrics)
	if err != nil {
		return nil, err
	}
	retrier, err := wireResilience(log, cfg, metrics, clientset)
	if err != nil {
		return nil, err
	}

	var courses []types.CourseSummary
	err = retrier.Execute(ctx, func(ctx context.Context) error {
		out, err := clientset.Course.BatchFetch(ctx, ids)
		if err != nil {
			return err
		}
		courses = out
		return nil
	})
	b := retrier.Breaker()
	res := &ProbeResult{Courses: courses, Breaker: b.State(), Counts: b.Counts()}
	if err != nil {
		return res, fmt.Errorf("probe course service: %w", err)
	}
	return res, nil
}
