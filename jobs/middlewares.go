package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/checkmarble/agent-eval-backend/utils"
)

const (
	sentryErrorGroupingTime = 30 * time.Second
	sdkIdentifier           = "sentry.go.river.agent-eval"
)

// Job arguments that identify the entity a job works on, added to its logs and spans.
var entityArgs = []string{"run_id", "test_case_id"}

func entityAttributes(job *rivertype.JobRow) []any {
	var attrs []any
	for _, key := range entityArgs {
		if v := gjson.GetBytes(job.EncodedArgs, key); v.Exists() {
			attrs = append(attrs, key, v.String())
		}
	}
	return attrs
}

// Logger middleware

type LoggerMiddleware struct {
	l              *slog.Logger
	errorCount     map[string]int
	errorCountLock *sync.Mutex
}

func NewLoggerMiddleware(l *slog.Logger) LoggerMiddleware {
	return LoggerMiddleware{l: l, errorCount: make(map[string]int), errorCountLock: &sync.Mutex{}}
}

func (m LoggerMiddleware) Work(ctx context.Context, job *rivertype.JobRow, doInner func(context.Context) error) error {
	logger := m.l.With(
		"job_id", job.ID,
		"job_kind", job.Kind,
		"job_attempt", job.Attempt,
		"queue", job.Queue,
	).With(entityAttributes(job)...)
	start := time.Now()
	logger.DebugContext(ctx, fmt.Sprintf("Starting %s job n°%d - attempt %d", job.Kind, job.ID, job.Attempt))

	ctx = utils.StoreLoggerInContext(ctx, logger)
	err := doInner(ctx)

	var snoozeErr *river.JobSnoozeError
	var cancelErr *rivertype.JobCancelError
	switch {
	case err == nil:
		logger.InfoContext(ctx, fmt.Sprintf("%s job n°%d succeeded after %s", job.Kind, job.ID, time.Since(start)))
	case errors.As(err, &snoozeErr):
		logger.InfoContext(ctx, fmt.Sprintf("%s job n°%d snoozed after %s", job.Kind, job.ID, time.Since(start)))
	case errors.As(err, &cancelErr):
		logger.InfoContext(ctx, fmt.Sprintf("%s job n°%d cancelled after %s", job.Kind, job.ID, time.Since(start)))
	default:
		logger.ErrorContext(ctx, fmt.Sprintf("%s job n°%d failed after %s", job.Kind, job.ID, time.Since(start)),
			"error", err.Error())
		m.aggregateAndReport(ctx, job, err)
	}
	return err
}

// aggregateAndReport sends one sentry event per job kind and error message in each grouping window.
func (m LoggerMiddleware) aggregateAndReport(ctx context.Context, job *rivertype.JobRow, err error) {
	m.errorCountLock.Lock()
	defer m.errorCountLock.Unlock()

	errorKey := fmt.Sprintf("%s:%s", job.Kind, err.Error())
	m.errorCount[errorKey]++
	if m.errorCount[errorKey] > 1 {
		return
	}

	go func() {
		time.Sleep(sentryErrorGroupingTime)
		m.errorCountLock.Lock()
		delete(m.errorCount, errorKey)
		m.errorCountLock.Unlock()

		utils.LogAndReportSentryError(ctx, err)
	}()
}

// Recoverer middleware

type RecovererMiddleware struct{}

func NewRecovererMiddleware() RecovererMiddleware {
	return RecovererMiddleware{}
}

func (m RecovererMiddleware) Work(ctx context.Context, job *rivertype.JobRow, doInner func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in %s job n°%d: %v", job.Kind, job.ID, r)
		}
	}()
	return doInner(ctx)
}

// Metrics middleware

type MetricsMiddleware struct{}

func NewMetricsMiddleware() MetricsMiddleware {
	return MetricsMiddleware{}
}

func (m MetricsMiddleware) Work(ctx context.Context, job *rivertype.JobRow, doInner func(context.Context) error) error {
	start := time.Now()
	err := doInner(ctx)

	result := "success"
	if err != nil {
		result = "error"
	}
	utils.MetricJobs.WithLabelValues(job.Kind, result).Observe(time.Since(start).Seconds())
	return err
}

// Opentelemetry tracing middleware

type TracingMiddleware struct {
	tracer trace.Tracer
}

func NewTracingMiddleware(tracer trace.Tracer) TracingMiddleware {
	return TracingMiddleware{tracer: tracer}
}

func (m TracingMiddleware) Work(ctx context.Context, job *rivertype.JobRow, doInner func(context.Context) error) error {
	attrs := []attribute.KeyValue{
		attribute.Int64("job_id", job.ID),
		attribute.String("job_kind", job.Kind),
		attribute.Int("job_attempt", job.Attempt),
		attribute.String("queue", job.Queue),
	}
	entity := entityAttributes(job)
	for i := 0; i+1 < len(entity); i += 2 {
		attrs = append(attrs, attribute.String(entity[i].(string), entity[i+1].(string)))
	}

	ctx, span := m.tracer.Start(ctx, job.Kind, trace.WithAttributes(attrs...))
	defer span.End()

	ctx = utils.StoreOpenTelemetryTracerInContext(ctx, m.tracer)
	return doInner(ctx)
}

// Sentry middleware

type SentryMiddleware struct{}

func NewSentryMiddleware() SentryMiddleware {
	return SentryMiddleware{}
}

func (m SentryMiddleware) Work(ctx context.Context, job *rivertype.JobRow, doInner func(context.Context) error) error {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
		ctx = sentry.SetHubOnContext(ctx, hub)
	}
	if client := hub.Client(); client != nil {
		client.SetSDKIdentifier(sdkIdentifier)
	}

	scope := hub.PushScope()
	defer hub.PopScope()
	scope.SetTag("job_id", strconv.FormatInt(job.ID, 10))
	scope.SetTag("job_kind", job.Kind)
	scope.SetTag("job_attempt", strconv.Itoa(job.Attempt))
	scope.SetTag("queue", job.Queue)
	var args map[string]any
	if err := json.Unmarshal(job.EncodedArgs, &args); err != nil {
		scope.SetTag("payload", "error decoding payload")
	} else {
		scope.SetExtra("payload", args)
	}

	transaction := sentry.StartTransaction(ctx,
		fmt.Sprintf("river task %s", job.Kind),
		sentry.WithOpName("river.task"),
		sentry.WithTransactionSource(sentry.SourceTask),
	)
	defer transaction.Finish()

	return doInner(transaction.Context())
}

// IsMiddleware implements the rivertype.Middleware sentinel, equivalent to embedding river.MiddlewareDefaults.
func (m LoggerMiddleware) IsMiddleware() bool    { return true }
func (m RecovererMiddleware) IsMiddleware() bool { return true }
func (m MetricsMiddleware) IsMiddleware() bool   { return true }
func (m TracingMiddleware) IsMiddleware() bool   { return true }
func (m SentryMiddleware) IsMiddleware() bool    { return true }
