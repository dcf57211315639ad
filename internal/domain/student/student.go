package student

import (
	"time"

	"gorm.io/datatypes"
)

type Student struct {
	ID                int64                      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name              string                     `gorm:"not null;column:name" json:"name"`
	Email             string                     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Age               int                        `gorm:"not null;column:age" json:"age"`
	EnrolledCourseIDs datatypes.JSONSlice[int64] `gorm:"not null;column:enrolled_course_ids" json:"enrolled_course_ids"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Student) TableName() string { return "students" }

// IsEnrolled reports whether courseID is already in the enrollment list.
func (s *Student) IsEnrolled(courseID int64) bool {
	for _, id := range s.EnrolledCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// Enroll appends courseID unless it is already present. It reports whether
// the enrollment list changed.
func (s *Student) Enroll(courseID int64) bool {
	if s.IsEnrolled(courseID) {
		return false
	}
	s.EnrolledCourseIDs = append(s.CourseIDs(), courseID)
	return true
}

// CourseIDs returns the enrollment list, never nil.
func (s *Student) CourseIDs() []int64 {
	if s.EnrolledCourseIDs == nil {
		return []int64{}
	}
	return []int64(s.EnrolledCourseIDs)
}

// NormalizeCourseIDs drops duplicate ids keeping the first occurrence and
// replaces a nil list with an empty one.
func (s *Student) NormalizeCourseIDs() {
	seen := make(map[int64]struct{}, len(s.EnrolledCourseIDs))
	out := make([]int64, 0, len(s.EnrolledCourseIDs))
	for _, id := range s.EnrolledCourseIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	s.EnrolledCourseIDs = out
}
