package domain

import (
	"errors"

	"github.com/yungbote/student-service/internal/domain/course"
	"github.com/yungbote/student-service/internal/domain/student"
)

type Student = student.Student
type StudentView = student.View
type CourseSummary = course.CourseSummary

var (
	NewStudentView  = student.NewView
	NewDegradedView = student.NewDegradedView
)

var (
	// ErrStudentNotFound is returned when a student id does not resolve.
	ErrStudentNotFound = errors.New("student not found")
	// ErrInvalidStudent wraps validation failures on create.
	ErrInvalidStudent = errors.New("invalid student")
	// ErrEmailTaken is returned when another student already uses the email.
	ErrEmailTaken = errors.New("email already registered")
)
