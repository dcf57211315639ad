package student

import "github.com/yungbote/student-service/internal/domain/course"

// View is the read model served for a student: the stored record joined with
// the summaries of its enrolled courses. It is rebuilt on every read.
type View struct {
	ID      int64                  `json:"id"`
	Name    string                 `json:"name"`
	Email   string                 `json:"email"`
	Age     int                    `json:"age"`
	Courses []course.CourseSummary `json:"courses"`

	// Degraded is set when the course service could not be reached and
	// Courses was left empty.
	Degraded bool `json:"degraded"`
}

func NewView(s *Student, courses []course.CourseSummary) *View {
	if courses == nil {
		courses = []course.CourseSummary{}
	}
	return &View{
		ID:      s.ID,
		Name:    s.Name,
		Email:   s.Email,
		Age:     s.Age,
		Courses: courses,
	}
}

func NewDegradedView(s *Student) *View {
	v := NewView(s, nil)
	v.Degraded = true
	return v
}
