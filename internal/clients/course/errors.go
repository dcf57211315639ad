package course

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTimeout is returned when a call did not complete within the client's
	// per-call timeout.
	ErrTimeout = errors.New("course service timeout")
	// ErrUnavailable wraps transport failures (refused connection, reset, DNS).
	ErrUnavailable = errors.New("course service unavailable")
)

// HTTPError is a non-2xx response from the course service.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "course service http error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "http error"
	}
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("course service http error: status=%d code=%s message=%s", e.StatusCode, strings.TrimSpace(e.Code), msg)
	}
	return fmt.Sprintf("course service http error: status=%d message=%s", e.StatusCode, msg)
}

func parseHTTPError(status int, raw []byte) error {
	body := strings.TrimSpace(string(raw))

	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code,omitempty"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && strings.TrimSpace(env.Error.Message) != "" {
		return &HTTPError{
			StatusCode: status,
			Message:    strings.TrimSpace(env.Error.Message),
			Code:       strings.TrimSpace(env.Error.Code),
			Body:       body,
		}
	}

	// Spring-style bodies carry a top-level message.
	var flat struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil && strings.TrimSpace(flat.Message) != "" {
		return &HTTPError{
			StatusCode: status,
			Message:    strings.TrimSpace(flat.Message),
			Code:       strings.TrimSpace(flat.Error),
			Body:       body,
		}
	}

	return &HTTPError{StatusCode: status, Body: body}
}
