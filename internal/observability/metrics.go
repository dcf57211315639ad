package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yungbote/student-service/internal/resilience"
)

const meterName = "github.com/yungbote/student-service"

// Metrics owns the service's instruments. It implements the listener hooks of
// the breaker, the retrier, the course client and the student service, so
// wiring is a matter of registering it.
type Metrics struct {
	fallbacks          metric.Int64Counter
	gatewayRequests    metric.Int64Counter
	gatewayLatency     metric.Float64Histogram
	breakerTransitions metric.Int64Counter
	breakerRejections  metric.Int64Counter
	retryAttempts      metric.Int64Counter
	apiRequests        metric.Int64Counter
	apiLatency         metric.Float64Histogram
	apiInflight        metric.Int64UpDownCounter
}

// NewMetrics builds the instruments on mp; a nil mp uses the global provider,
// which is a no-op until InitOTel installs one.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.fallbacks, err = meter.Int64Counter(
		"student_view_fallbacks_total",
		metric.WithDescription("Student views served without course data."),
	); err != nil {
		return nil, fmt.Errorf("student_view_fallbacks_total: %w", err)
	}
	if m.gatewayRequests, err = meter.Int64Counter(
		"course_gateway_requests_total",
		metric.WithDescription("Requests made to the course service by outcome."),
	); err != nil {
		return nil, fmt.Errorf("course_gateway_requests_total: %w", err)
	}
	if m.gatewayLatency, err = meter.Float64Histogram(
		"course_gateway_request_duration_seconds",
		metric.WithDescription("Latency of course service requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2.5),
	); err != nil {
		return nil, fmt.Errorf("course_gateway_request_duration_seconds: %w", err)
	}
	if m.breakerTransitions, err = meter.Int64Counter(
		"circuit_breaker_transitions_total",
		metric.WithDescription("Circuit breaker state transitions."),
	); err != nil {
		return nil, fmt.Errorf("circuit_breaker_transitions_total: %w", err)
	}
	if m.breakerRejections, err = meter.Int64Counter(
		"circuit_breaker_rejections_total",
		metric.WithDescription("Calls short-circuited by a circuit breaker."),
	); err != nil {
		return nil, fmt.Errorf("circuit_breaker_rejections_total: %w", err)
	}
	if m.retryAttempts, err = meter.Int64Counter(
		"retry_attempts_total",
		metric.WithDescription("Retries scheduled after a failed attempt."),
	); err != nil {
		return nil, fmt.Errorf("retry_attempts_total: %w", err)
	}
	if m.apiRequests, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Inbound HTTP requests by route and status."),
	); err != nil {
		return nil, fmt.Errorf("http_requests_total: %w", err)
	}
	if m.apiLatency, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Latency of inbound HTTP requests."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("http_request_duration_seconds: %w", err)
	}
	if m.apiInflight, err = meter.Int64UpDownCounter(
		"http_requests_inflight",
		metric.WithDescription("Inbound HTTP requests being served."),
	); err != nil {
		return nil, fmt.Errorf("http_requests_inflight: %w", err)
	}
	return &m, nil
}

func (m *Metrics) OnFallback(ctx context.Context, _ int64, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) ObserveCourseRequest(ctx context.Context, op string, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	m.gatewayRequests.Add(ctx, 1, attrs)
	m.gatewayLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// OnStateChange runs under the breaker's lock; recording is non-blocking.
func (m *Metrics) OnStateChange(name string, from resilience.State, to resilience.State) {
	if m == nil {
		return
	}
	m.breakerTransitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

func (m *Metrics) OnRejected(name string, state resilience.State) {
	if m == nil {
		return
	}
	m.breakerRejections.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("state", string(state)),
	))
}

func (m *Metrics) OnRetry(name string, attempt int, _ time.Duration, _ error) {
	if m == nil {
		return
	}
	m.retryAttempts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.Int("attempt", attempt),
	))
}

func (m *Metrics) APIInflightInc(ctx context.Context) {
	if m == nil {
		return
	}
	m.apiInflight.Add(ctx, 1)
}

func (m *Metrics) APIInflightDec(ctx context.Context) {
	if m == nil {
		return
	}
	m.apiInflight.Add(ctx, -1)
}

func (m *Metrics) ObserveAPI(ctx context.Context, method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", status),
	)
	m.apiRequests.Add(ctx, 1, attrs)
	m.apiLatency.Record(ctx, elapsed.Seconds(), attrs)
}
