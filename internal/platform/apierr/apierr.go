package apierr

import (
	"errors"
	"fmt"
	"net/http"

	types "github.com/yungbote/student-service/internal/domain"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps a service error onto its HTTP status and code. Errors that carry
// no known meaning become a 500 with a generic message so internals are not
// leaked to clients.
func From(err error) *Error {
	var ae *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, types.ErrStudentNotFound):
		return New(http.StatusNotFound, "student_not_found", types.ErrStudentNotFound)
	case errors.Is(err, types.ErrInvalidStudent):
		return New(http.StatusBadRequest, "invalid_student", err)
	case errors.Is(err, types.ErrEmailTaken):
		return New(http.StatusConflict, "email_taken", types.ErrEmailTaken)
	default:
		return New(http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
	}
}
