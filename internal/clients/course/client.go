package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	types "github.com/yungbote/student-service/internal/domain"
	"github.com/yungbote/student-service/internal/platform/logger"
)

const (
	DefaultBatchPath = "/api/courses/batch"
	DefaultTimeout   = 300 * time.Millisecond

	tracerName = "github.com/yungbote/student-service/internal/clients/course"
)

// Outcome labels reported to an Observer.
const (
	OutcomeSuccess     = "success"
	OutcomeTimeout     = "timeout"
	OutcomeHTTPError   = "http_error"
	OutcomeUnavailable = "unavailable"
	OutcomeCancelled   = "cancelled"
	OutcomeBadResponse = "bad_response"
)

// Observer receives one call per request made to the course service.
type Observer interface {
	ObserveCourseRequest(ctx context.Context, op string, outcome string, elapsed time.Duration)
}

type Options struct {
	BaseURL   string
	BatchPath string
	Timeout   time.Duration

	HTTPClient *http.Client
	Observer   Observer
	Logger     *logger.Logger
}

// Client talks to the course service. It never retries; callers own retry and
// circuit breaking.
type Client struct {
	baseURL    string
	batchPath  string
	timeout    time.Duration
	httpClient *http.Client
	observer   Observer
	log        *logger.Logger
	tracer     trace.Tracer
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("course service baseURL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("course service baseURL: %w", err)
	}

	batchPath := strings.TrimSpace(opts.BatchPath)
	if batchPath == "" {
		batchPath = DefaultBatchPath
	}
	if !strings.HasPrefix(batchPath, "/") {
		batchPath = "/" + batchPath
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL:    baseURL,
		batchPath:  batchPath,
		timeout:    timeout,
		httpClient: hc,
		observer:   opts.Observer,
		log:        log.With("client", "CourseClient"),
		tracer:     otel.Tracer(tracerName),
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Timeout() time.Duration { return c.timeout }

// BatchFetch returns the summaries of the given course ids in a single call:
// GET {base}{batchPath}?ids=10&ids=20.
func (c *Client) BatchFetch(ctx context.Context, ids []int64) ([]types.CourseSummary, error) {
	if len(ids) == 0 {
		return []types.CourseSummary{}, nil
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", strconv.FormatInt(id, 10))
	}

	var out []types.CourseSummary
	if err := c.doJSON(ctx, "batch_fetch", c.batchPath+"?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []types.CourseSummary{}
	}
	return out, nil
}

// GetCourse fetches a single course: GET {base}/api/courses/{id}.
func (c *Client) GetCourse(ctx context.Context, id int64) (*types.CourseSummary, error) {
	var out types.CourseSummary
	if err := c.doJSON(ctx, "get_course", "/api/courses/"+strconv.FormatInt(id, 10), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, op string, path string, out any) (err error) {
	start := time.Now()
	outcome := OutcomeSuccess

	ctx, span := c.tracer.Start(ctx, "CourseClient."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("server.address", c.baseURL),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("course.outcome", outcome))
		span.End()
		if c.observer != nil {
			c.observer.ObserveCourseRequest(ctx, op, outcome, time.Since(start))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		outcome = OutcomeBadResponse
		return fmt.Errorf("build course request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(callCtx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome, err = c.classify(ctx, callCtx, err)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		outcome, err = c.classify(ctx, callCtx, err)
		return err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome = OutcomeHTTPError
		return parseHTTPError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		outcome = OutcomeBadResponse
		return fmt.Errorf("decode course response: %w", err)
	}
	return nil
}

// classify separates the caller going away from the course service being slow
// or unreachable.
func (c *Client) classify(parent, callCtx context.Context, err error) (string, error) {
	switch {
	case parent.Err() != nil:
		return OutcomeCancelled, fmt.Errorf("course request cancelled: %w", parent.Err())
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		c.log.Debug("Course request timed out", "timeout_ms", c.timeout.Milliseconds())
		return OutcomeTimeout, fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)
	default:
		return OutcomeUnavailable, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
