package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const (
	DEFAULT_EXECUTION_CONCURRENCY = 4
	DEFAULT_CASE_TIMEOUT          = 60 * time.Second
	DEFAULT_CANCEL_GRACE_PERIOD   = 10 * time.Second

	recordTimeout = 10 * time.Second
)

type AgentExecutor interface {
	Execute(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error)
}

type Judge interface {
	Judge(content json.RawMessage, response models.AgentResponse) (models.Verdict, error)
}

// OutcomeRecorder persists an outcome as soon as it is known. An error aborts the run: no new item is
// started after it.
type OutcomeRecorder func(ctx context.Context, outcome models.TestCaseOutcome) error

type RunnerConfig struct {
	Concurrency       int
	CaseTimeout       time.Duration
	CancelGracePeriod time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DEFAULT_EXECUTION_CONCURRENCY
	}
	if c.CaseTimeout <= 0 {
		c.CaseTimeout = DEFAULT_CASE_TIMEOUT
	}
	if c.CancelGracePeriod < 0 {
		c.CancelGracePeriod = 0
	}
	return c
}

// Runner executes run items on a bounded pool of workers.
type Runner struct {
	executor AgentExecutor
	judge    Judge
	config   RunnerConfig
}

func NewRunner(executor AgentExecutor, judge Judge, config RunnerConfig) Runner {
	return Runner{
		executor: executor,
		judge:    judge,
		config:   config.withDefaults(),
	}
}

// Run executes the items and hands every outcome to record. When ctx is cancelled, no new item is
// started, and the items in flight get the grace period to finish. Items still running after it are
// abandoned without an outcome. Run returns once every started item has returned.
func (r Runner) Run(ctx context.Context, runId uuid.UUID, items []models.EvaluationRunItem, record OutcomeRecorder) error {
	logger := utils.LoggerFromContext(ctx)

	// in-flight items outlive ctx by the grace period
	hardCtx, hardCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer hardCancel()

	stopWatch := context.AfterFunc(ctx, func() {
		logger.InfoContext(ctx, "evaluation run interrupted, waiting for in-flight cases",
			"run_id", runId, "grace_period", r.config.CancelGracePeriod.String())
		select {
		case <-time.After(r.config.CancelGracePeriod):
			hardCancel()
		case <-hardCtx.Done():
		}
	})
	defer stopWatch()

	// dispatchCtx is also done after the first record error
	g, dispatchCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for _, item := range items {
		if dispatchCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			// the slot may have been freed after the interruption
			if dispatchCtx.Err() != nil {
				return nil
			}
			return r.executeItem(hardCtx, runId, item, record)
		})
	}

	return g.Wait()
}

func (r Runner) executeItem(hardCtx context.Context, runId uuid.UUID, item models.EvaluationRunItem, record OutcomeRecorder) error {
	ctx, span := utils.StartSpan(hardCtx, "evaluation.execute_case",
		attribute.String("run_id", runId.String()),
		attribute.String("test_case_id", item.TestCaseId.String()),
	)
	defer span.End()

	caseCtx, cancel := context.WithTimeout(ctx, r.config.CaseTimeout)
	defer cancel()

	outcome := r.evaluate(caseCtx, item)
	outcome.RunId = runId
	outcome.TestCaseId = item.TestCaseId
	outcome.TestCaseVersion = item.TestCaseVersion

	if hardCtx.Err() != nil {
		utils.LoggerFromContext(ctx).WarnContext(ctx, "case abandoned after the grace period, no outcome recorded",
			"run_id", runId, "test_case_id", item.TestCaseId)
		return nil
	}

	utils.MetricOutcomes.WithLabelValues(string(outcome.Result)).Inc()
	utils.MetricAgentExecutionLatency.Observe(outcome.Latency.Seconds())
	span.SetAttributes(attribute.String("result", string(outcome.Result)))

	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer recordCancel()
	if err := record(recordCtx, outcome); err != nil {
		return errors.Wrapf(err, "could not record outcome of test case %s", item.TestCaseId)
	}
	return nil
}

func (r Runner) evaluate(ctx context.Context, item models.EvaluationRunItem) models.TestCaseOutcome {
	start := time.Now()
	response, err := r.executor.Execute(ctx, item)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, models.ErrExecutionTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.TestCaseOutcome{
				Result:  models.OutcomeError,
				Detail:  fmt.Sprintf("%s: no answer within %s", models.ErrExecutionTimeout.Error(), r.config.CaseTimeout),
				Latency: latency,
			}
		}
		return models.TestCaseOutcome{
			Result:  models.OutcomeError,
			Detail:  err.Error(),
			Latency: latency,
		}
	}

	verdict, err := r.judge.Judge(item.Content, response)
	if err != nil {
		return models.TestCaseOutcome{
			Result:  models.OutcomeError,
			Detail:  err.Error(),
			Latency: latency,
		}
	}

	return models.TestCaseOutcome{
		Result:  verdict.Result,
		Detail:  verdict.Detail,
		Latency: latency,
	}
}
