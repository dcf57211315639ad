package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	types "github.com/yungbote/student-service/internal/domain"
	"github.com/yungbote/student-service/internal/resilience"
)

type fakeStore struct {
	mu       sync.Mutex
	rows     map[int64]types.Student
	nextID   int64
	findErr  error
	findCall int
}

func newFakeStore(rows ...types.Student) *fakeStore {
	s := &fakeStore{rows: map[int64]types.Student{}, nextID: 100}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *fakeStore) FindByID(_ context.Context, _ *gorm.DB, id int64) (*types.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCall++
	if s.findErr != nil {
		return nil, s.findErr
	}
	row, ok := s.rows[id]
	if !ok {
		return nil, types.ErrStudentNotFound
	}
	row.EnrolledCourseIDs = append([]int64{}, row.EnrolledCourseIDs...)
	return &row, nil
}

func (s *fakeStore) EmailExists(_ context.Context, _ *gorm.DB, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Save(_ context.Context, _ *gorm.DB, st *types.Student) (*types.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		s.nextID++
		st.ID = s.nextID
	}
	row := *st
	row.EnrolledCourseIDs = append([]int64{}, st.EnrolledCourseIDs...)
	s.rows[st.ID] = row
	return st, nil
}

func (s *fakeStore) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *fakeStore) rename(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[id]
	row.Name = name
	s.rows[id] = row
}

func (s *fakeStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCall
}

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, ids []int64) ([]types.CourseSummary, error)
}

func (g *fakeGateway) BatchFetch(ctx context.Context, ids []int64) ([]types.CourseSummary, error) {
	g.mu.Lock()
	g.calls++
	fn := g.fn
	g.mu.Unlock()
	if fn == nil {
		return []types.CourseSummary{}, nil
	}
	return fn(ctx, ids)
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fallbackRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fallbackRecorder) OnFallback(_ context.Context, _ int64, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
}

var errCourseDown = errors.New("course service down")

func failingGateway() *fakeGateway {
	return &fakeGateway{fn: func(context.Context, []int64) ([]types.CourseSummary, error) {
		return nil, errCourseDown
	}}
}

func newTestRetrier(t *testing.T, threshold uint32) *resilience.Retrier {
	t.Helper()
	b, err := resilience.NewBreaker("course-service", resilience.BreakerConfig{
		FailureThreshold: threshold,
		WindowDuration:   time.Minute,
		OpenDuration:     time.Minute,
	}, nil)
	require.NoError(t, err)
	r, err := resilience.NewRetrier(b, resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		BackoffCap:  time.Millisecond,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}, nil)
	require.NoError(t, err)
	return r
}

func newTestService(t *testing.T, store StudentStore, gw CourseGateway, threshold uint32) (StudentService, *resilience.Retrier, *fallbackRecorder) {
	t.Helper()
	r := newTestRetrier(t, threshold)
	rec := &fallbackRecorder{}
	svc, err := NewStudentService(nil, store, gw, r, rec)
	require.NoError(t, err)
	return svc, r, rec
}

func student(id int64, courses ...int64) types.Student {
	if courses == nil {
		courses = []int64{}
	}
	return types.Student{ID: id, Name: "Ada", Email: "ada@example.com", Age: 20, EnrolledCourseIDs: courses}
}

func TestNewStudentServiceRequiresDependencies(t *testing.T) {
	r := newTestRetrier(t, 3)
	_, err := NewStudentService(nil, nil, &fakeGateway{}, r, nil)
	assert.Error(t, err)
	_, err = NewStudentService(nil, newFakeStore(), nil, r, nil)
	assert.Error(t, err)
	_, err = NewStudentService(nil, newFakeStore(), &fakeGateway{}, nil, nil)
	assert.Error(t, err)
}

func TestGetStudentViewWithoutCoursesSkipsGateway(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _ := newTestService(t, newFakeStore(student(1)), gw, 3)

	view, err := svc.GetStudentView(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 0, gw.count())
	assert.NotNil(t, view.Courses)
	assert.Empty(t, view.Courses)
	assert.False(t, view.Degraded)
}

func TestGetStudentViewKeepsEnrollmentOrder(t *testing.T) {
	gw := &fakeGateway{fn: func(_ context.Context, ids []int64) ([]types.CourseSummary, error) {
		assert.Equal(t, []int64{10, 20}, ids)
		return []types.CourseSummary{{ID: 20, Name: "Physics"}, {ID: 10, Name: "Algebra"}}, nil
	}}
	svc, _, rec := newTestService(t, newFakeStore(student(1, 10, 20)), gw, 3)

	view, err := svc.GetStudentView(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, "Ada", view.Name)
	require.Len(t, view.Courses, 2)
	assert.Equal(t, int64(10), view.Courses[0].ID)
	assert.Equal(t, int64(20), view.Courses[1].ID)
	assert.False(t, view.Degraded)
	assert.Empty(t, rec.reasons)
}

func TestGetStudentViewUnknownID(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _ := newTestService(t, newFakeStore(), gw, 3)

	view, err := svc.GetStudentView(context.Background(), 42)

	assert.Nil(t, view)
	require.ErrorIs(t, err, types.ErrStudentNotFound)
	assert.Equal(t, 0, gw.count())
}

func TestGetStudentViewLocalStoreErrorPropagates(t *testing.T) {
	store := newFakeStore(student(1, 10))
	store.findErr = errors.New("connection refused")
	svc, _, _ := newTestService(t, store, &fakeGateway{}, 3)

	view, err := svc.GetStudentView(context.Background(), 1)

	assert.Nil(t, view)
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrStudentNotFound)
}

func TestGetStudentViewOpensBreakerThenShortCircuits(t *testing.T) {
	gw := failingGateway()
	svc, r, rec := newTestService(t, newFakeStore(student(1, 10, 20)), gw, 3)

	view, err := svc.GetStudentView(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.NotNil(t, view.Courses)
	assert.Empty(t, view.Courses)
	assert.Equal(t, 3, gw.count())
	assert.Equal(t, resilience.StateOpen, r.Breaker().State())

	view, err = svc.GetStudentView(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Empty(t, view.Courses)
	assert.Equal(t, 3, gw.count(), "open breaker must not reach the gateway")

	assert.Equal(t, []string{FallbackRetriesExhausted, FallbackCircuitOpen}, rec.reasons)
}

func TestGetStudentViewFallbackRereadsStudent(t *testing.T) {
	store := newFakeStore(student(1, 10))
	gw := &fakeGateway{fn: func(context.Context, []int64) ([]types.CourseSummary, error) {
		store.rename(1, "Ada Lovelace")
		return nil, errCourseDown
	}}
	svc, _, _ := newTestService(t, store, gw, 10)

	view, err := svc.GetStudentView(context.Background(), 1)

	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Equal(t, "Ada Lovelace", view.Name)
	assert.Equal(t, 2, store.reads())
}

func TestGetStudentViewCallerCancellationDegradesWithoutReread(t *testing.T) {
	store := newFakeStore(student(1, 10))
	ctx, cancel := context.WithCancel(context.Background())
	gw := &fakeGateway{fn: func(ctx context.Context, _ []int64) ([]types.CourseSummary, error) {
		cancel()
		return nil, ctx.Err()
	}}
	svc, r, rec := newTestService(t, store, gw, 3)

	view, err := svc.GetStudentView(ctx, 1)

	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Equal(t, 1, store.reads())
	assert.Equal(t, []string{FallbackCancelled}, rec.reasons)
	assert.Equal(t, uint32(0), r.Breaker().Counts().TotalFailures)
}

func TestEnrollIsIdempotent(t *testing.T) {
	store := newFakeStore(student(1, 10))
	svc, _, _ := newTestService(t, store, &fakeGateway{}, 3)
	ctx := context.Background()

	require.NoError(t, svc.Enroll(ctx, 1, 20))
	require.NoError(t, svc.Enroll(ctx, 1, 20))
	require.NoError(t, svc.Enroll(ctx, 1, 10))

	got, err := store.FindByID(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, got.CourseIDs())
}

func TestEnrollUnknownStudent(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeStore(), &fakeGateway{}, 3)

	err := svc.Enroll(context.Background(), 7, 10)
	assert.ErrorIs(t, err, types.ErrStudentNotFound)
}

func TestEnrollIgnoresBreakerState(t *testing.T) {
	gw := failingGateway()
	store := newFakeStore(student(1, 10))
	svc, r, _ := newTestService(t, store, gw, 1)

	_, err := svc.GetStudentView(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, resilience.StateOpen, r.Breaker().State())
	calls := gw.count()

	require.NoError(t, svc.Enroll(context.Background(), 1, 30))
	assert.Equal(t, calls, gw.count())
}

func TestCreateStudent(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(t, store, &fakeGateway{}, 3)

	st, err := svc.CreateStudent(context.Background(), CreateStudentInput{
		Name:              "  Grace  ",
		Email:             "grace@example.com",
		Age:               30,
		EnrolledCourseIDs: []int64{5, 5, 6},
	})

	require.NoError(t, err)
	assert.NotZero(t, st.ID)
	assert.Equal(t, "Grace", st.Name)
	assert.Equal(t, []int64{5, 6}, st.CourseIDs())

	_, err = svc.CreateStudent(context.Background(), CreateStudentInput{Name: "G", Email: "grace@example.com"})
	assert.ErrorIs(t, err, types.ErrEmailTaken)
}

func TestCreateStudentNilCoursesBecomeEmpty(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeStore(), &fakeGateway{}, 3)

	st, err := svc.CreateStudent(context.Background(), CreateStudentInput{Name: "Linus", Email: "linus@example.com", Age: 1})

	require.NoError(t, err)
	assert.NotNil(t, st.EnrolledCourseIDs)
	assert.Empty(t, st.EnrolledCourseIDs)
}

func TestCreateStudentValidation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateStudentInput
	}{
		{name: "missing name", in: CreateStudentInput{Email: "a@example.com"}},
		{name: "blank name", in: CreateStudentInput{Name: "   ", Email: "a@example.com"}},
		{name: "missing email", in: CreateStudentInput{Name: "A"}},
		{name: "malformed email", in: CreateStudentInput{Name: "A", Email: "not-an-email"}},
		{name: "display name email", in: CreateStudentInput{Name: "A", Email: "A <a@example.com>"}},
		{name: "negative age", in: CreateStudentInput{Name: "A", Email: "a@example.com", Age: -1}},
	}
	svc, _, _ := newTestService(t, newFakeStore(), &fakeGateway{}, 3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateStudent(context.Background(), tt.in)
			assert.ErrorIs(t, err, types.ErrInvalidStudent)
		})
	}
}

func TestBreakerStatus(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeStore(student(1, 10)), failingGateway(), 3)

	status := svc.BreakerStatus()
	require.Len(t, status, 1)
	assert.Equal(t, "course-service", status[0].Name)
	assert.Equal(t, resilience.StateClosed, status[0].State)

	_, err := svc.GetStudentView(context.Background(), 1)
	require.NoError(t, err)

	status = svc.BreakerStatus()
	assert.Equal(t, resilience.StateOpen, status[0].State)
}

func TestFallbackReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: resilience.ErrCircuitOpen, want: FallbackCircuitOpen},
		{err: resilience.ErrRetriesExhausted, want: FallbackRetriesExhausted},
		{err: context.Canceled, want: FallbackCancelled},
		{err: errCourseDown, want: FallbackGatewayError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fallbackReason(tt.err))
	}
}
