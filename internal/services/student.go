package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	types "github.com/yungbote/student-service/internal/domain"
	"github.com/yungbote/student-service/internal/domain/course"
	"github.com/yungbote/student-service/internal/platform/ctxutil"
	"github.com/yungbote/student-service/internal/platform/logger"
	"github.com/yungbote/student-service/internal/resilience"
)

const tracerName = "github.com/yungbote/student-service/internal/services"

// Fallback reasons passed to FallbackListener.
const (
	FallbackCircuitOpen      = "circuit_open"
	FallbackRetriesExhausted = "retries_exhausted"
	FallbackCancelled        = "cancelled"
	FallbackGatewayError     = "gateway_error"
)

// StudentStore is the slice of the student repository the service needs.
type StudentStore interface {
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Student, error)
	EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, s *types.Student) (*types.Student, error)
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CourseGateway fetches course summaries from the course service.
type CourseGateway interface {
	BatchFetch(ctx context.Context, ids []int64) ([]types.CourseSummary, error)
}

// FallbackListener is told every time a degraded view is served.
type FallbackListener interface {
	OnFallback(ctx context.Context, studentID int64, reason string)
}

type CreateStudentInput struct {
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Age               int     `json:"age"`
	EnrolledCourseIDs []int64 `json:"enrolled_course_ids"`
}

type BreakerStatus struct {
	Name   string            `json:"name"`
	State  resilience.State  `json:"state"`
	Counts resilience.Counts `json:"counts"`
}

type StudentService interface {
	// GetStudentView returns the student joined with its course summaries. When
	// the course service cannot be used the view comes back with no courses and
	// Degraded set; only local errors are returned.
	GetStudentView(ctx context.Context, id int64) (*types.StudentView, error)
	Enroll(ctx context.Context, studentID, courseID int64) error
	CreateStudent(ctx context.Context, in CreateStudentInput) (*types.Student, error)
	BreakerStatus() []BreakerStatus
}

type studentService struct {
	log      *logger.Logger
	store    StudentStore
	gateway  CourseGateway
	retrier  *resilience.Retrier
	fallback FallbackListener
	tracer   trace.Tracer
}

func NewStudentService(
	baseLog *logger.Logger,
	store StudentStore,
	gateway CourseGateway,
	retrier *resilience.Retrier,
	fallback FallbackListener,
) (StudentService, error) {
	if store == nil {
		return nil, fmt.Errorf("student store required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("course gateway required")
	}
	if retrier == nil {
		return nil, fmt.Errorf("retrier required")
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &studentService{
		log:      baseLog.With("service", "StudentService"),
		store:    store,
		gateway:  gateway,
		retrier:  retrier,
		fallback: fallback,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

func (s *studentService) GetStudentView(ctx context.Context, id int64) (*types.StudentView, error) {
	ctx, span := s.tracer.Start(ctx, "StudentService.GetStudentView",
		trace.WithAttributes(attribute.Int64("student.id", id)),
	)
	defer span.End()

	st, err := s.store.FindByID(ctx, nil, id)
	if err != nil {
		if !errors.Is(err, types.ErrStudentNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load student")
		}
		return nil, fmt.Errorf("load student %d: %w", id, err)
	}

	ids := st.CourseIDs()
	if len(ids) == 0 {
		span.SetAttributes(attribute.Int("courses.count", 0))
		return types.NewStudentView(st, nil), nil
	}

	var summaries []types.CourseSummary
	err = s.retrier.Execute(ctx, func(ctx context.Context) error {
		out, err := s.gateway.BatchFetch(ctx, ids)
		if err != nil {
			return err
		}
		summaries = out
		return nil
	})
	if err == nil {
		courses := course.OrderByIDs(ids, summaries)
		span.SetAttributes(attribute.Int("courses.count", len(courses)))
		return types.NewStudentView(st, courses), nil
	}

	reason := fallbackReason(err)
	span.SetAttributes(
		attribute.Bool("view.degraded", true),
		attribute.String("view.fallback_reason", reason),
	)
	fields := append([]interface{}{
		"student_id", id,
		"reason", reason,
		"error", err,
	}, ctxutil.LogFields(ctx)...)
	s.log.Warn("Serving degraded student view", fields...)
	if s.fallback != nil {
		s.fallback.OnFallback(ctx, id, reason)
	}

	if reason == FallbackCancelled {
		// nobody is waiting for a fresh read
		return types.NewDegradedView(st), nil
	}

	// Re-read so the degraded view reflects the latest stored record. The two
	// reads are not atomic; an enroll in between shows up here.
	fresh, err := s.store.FindByID(ctx, nil, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reload student")
		return nil, fmt.Errorf("reload student %d: %w", id, err)
	}
	return types.NewDegradedView(fresh), nil
}

func (s *studentService) Enroll(ctx context.Context, studentID, courseID int64) error {
	return s.store.Transaction(ctx, func(tx *gorm.DB) error {
		st, err := s.store.FindByID(ctx, tx, studentID)
		if err != nil {
			return fmt.Errorf("load student %d: %w", studentID, err)
		}
		if !st.Enroll(courseID) {
			s.log.Debug("Student already enrolled", "student_id", studentID, "course_id", courseID)
			return nil
		}
		if _, err := s.store.Save(ctx, tx, st); err != nil {
			return fmt.Errorf("save student %d: %w", studentID, err)
		}
		s.log.Info("Student enrolled", "student_id", studentID, "course_id", courseID)
		return nil
	})
}

func (s *studentService) CreateStudent(ctx context.Context, in CreateStudentInput) (*types.Student, error) {
	st, err := newStudent(in)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		taken, err := s.store.EmailExists(ctx, tx, st.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return types.ErrEmailTaken
		}
		if _, err := s.store.Save(ctx, tx, st); err != nil {
			return fmt.Errorf("create student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Student created", "student_id", st.ID)
	return st, nil
}

func (s *studentService) BreakerStatus() []BreakerStatus {
	b := s.retrier.Breaker()
	return []BreakerStatus{{
		Name:   b.Name(),
		State:  b.State(),
		Counts: b.Counts(),
	}}
}

func newStudent(in CreateStudentInput) (*types.Student, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", types.ErrInvalidStudent)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", types.ErrInvalidStudent)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: email is malformed", types.ErrInvalidStudent)
	}
	if in.Age < 0 {
		return nil, fmt.Errorf("%w: age must not be negative", types.ErrInvalidStudent)
	}
	st := &types.Student{
		Name:              name,
		Email:             email,
		Age:               in.Age,
		EnrolledCourseIDs: in.EnrolledCourseIDs,
	}
	st.NormalizeCourseIDs()
	return st, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return FallbackCircuitOpen
	case errors.Is(err, resilience.ErrRetriesExhausted):
		return FallbackRetriesExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FallbackCancelled
	default:
		return FallbackGatewayError
	}
}
