package student

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/student-service/internal/domain"
	"github.com/yungbote/student-service/internal/platform/logger"
)

type StudentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, s *types.Student) (*types.Student, error)
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Student, error)
	EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, s *types.Student) (*types.Student, error)
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &studentRepo{db: db, log: baseLog.With("repo", "StudentRepo")}
}

func (r *studentRepo) Create(ctx context.Context, tx *gorm.DB, s *types.Student) (*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if s == nil {
		return nil, fmt.Errorf("create student: nil record")
	}
	s.NormalizeCourseIDs()
	if err := transaction.WithContext(ctx).Create(s).Error; err != nil {
		return nil, translate(err)
	}
	return s, nil
}

func (r *studentRepo) FindByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id <= 0 {
		return nil, types.ErrStudentNotFound
	}
	var s types.Student
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error; err != nil {
		return nil, translate(err)
	}
	if s.EnrolledCourseIDs == nil {
		s.EnrolledCourseIDs = []int64{}
	}
	return &s, nil
}

func (r *studentRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Student{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts a record without an id and updates one that has it.
func (r *studentRepo) Save(ctx context.Context, tx *gorm.DB, s *types.Student) (*types.Student, error) {
	if s == nil {
		return nil, fmt.Errorf("save student: nil record")
	}
	if s.ID == 0 {
		return r.Create(ctx, tx, s)
	}
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	s.NormalizeCourseIDs()
	if err := transaction.WithContext(ctx).Save(s).Error; err != nil {
		return nil, translate(err)
	}
	return s, nil
}

func (r *studentRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return types.ErrStudentNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", types.ErrEmailTaken, err)
	default:
		return err
	}
}
