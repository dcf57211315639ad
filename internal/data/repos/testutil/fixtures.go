package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/student-service/internal/domain"
)

func SeedStudent(tb testing.TB, ctx context.Context, tx *gorm.DB, email string, courseIDs ...int64) *types.Student {
	tb.Helper()
	if courseIDs == nil {
		courseIDs = []int64{}
	}
	s := &types.Student{
		Name:              "Ada",
		Email:             email,
		Age:               20,
		EnrolledCourseIDs: courseIDs,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	return s
}
