package usecases

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/repositories/clock"
	"github.com/checkmarble/agent-eval-backend/usecases/evaluation"
	"github.com/checkmarble/agent-eval-backend/usecases/executor_factory"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const finalizationTimeout = 30 * time.Second

type EvaluationRunRepository interface {
	GetEvaluationRunById(ctx context.Context, exec repositories.Executor, id uuid.UUID) (models.EvaluationRun, error)
	ListEvaluationRuns(ctx context.Context, exec repositories.Executor, filters models.EvaluationRunFilters) ([]models.EvaluationRun, error)
	LockSuiteForRunCreation(ctx context.Context, tx repositories.Transaction, suiteId uuid.UUID) error
	HasActiveEvaluationRun(ctx context.Context, exec repositories.Executor, suiteId uuid.UUID) (bool, error)
	CreateEvaluationRun(ctx context.Context, exec repositories.Executor, run models.EvaluationRunToCreate) error
	SnapshotApprovedTestCases(ctx context.Context, exec repositories.Executor, runId, suiteId uuid.UUID) (int, error)
	MarkEvaluationRunRunning(ctx context.Context, exec repositories.Executor, runId uuid.UUID, total int,
		jobId int64, startedAt time.Time) error
	FinalizeEvaluationRun(ctx context.Context, exec repositories.Executor, fin models.RunFinalization) (bool, error)
	LockRunningEvaluationRun(ctx context.Context, tx repositories.Transaction, runId uuid.UUID) (bool, error)
	RequestEvaluationRunCancellation(ctx context.Context, exec repositories.Executor, runId uuid.UUID) (models.EvaluationRun, error)
	ListStaleEvaluationRuns(ctx context.Context, exec repositories.Executor, runningBefore time.Time) ([]models.EvaluationRun, error)
	UpdateEvaluationRunAnalysis(ctx context.Context, exec repositories.Executor, runId uuid.UUID, analysis string) error
	DeleteEvaluationRun(ctx context.Context, exec repositories.Executor, runId uuid.UUID) error
	ListRunItemsWithoutOutcome(ctx context.Context, exec repositories.Executor, runId uuid.UUID) ([]models.EvaluationRunItem, error)
	CreateTestCaseOutcome(ctx context.Context, exec repositories.Executor, outcome models.TestCaseOutcome) (bool, error)
	ListTestCaseOutcomes(ctx context.Context, exec repositories.Executor, runId uuid.UUID) ([]models.TestCaseOutcome, error)
}

type evaluationTaskQueue interface {
	EnqueueEvaluationRunTask(ctx context.Context, tx repositories.Transaction, runId uuid.UUID) (int64, error)
	CancelJob(ctx context.Context, tx repositories.Transaction, jobId int64) (bool, error)
}

type RunExecutor interface {
	Run(ctx context.Context, runId uuid.UUID, items []models.EvaluationRunItem, record evaluation.OutcomeRecorder) error
}

type RunAnalyzer interface {
	AnalyzeRun(ctx context.Context, run models.EvaluationRun, outcomes []models.TestCaseOutcome, question string) (string, error)
}

type EvaluationRunUsecase struct {
	executorFactory     executor_factory.ExecutorFactory
	transactionFactory  executor_factory.TransactionFactory
	repository          EvaluationRunRepository
	taskQueueRepository evaluationTaskQueue
	runner              RunExecutor
	analyzer            RunAnalyzer
	clock               clock.Clock
	config              EvaluationConfig
}

// StartRun snapshots the approved test cases of the suite and queues their execution. A suite without
// approved test case gives a run that is completed right away.
func (uc EvaluationRunUsecase) StartRun(ctx context.Context, suiteId uuid.UUID, evaluationType string) (models.EvaluationRun, error) {
	evaluationType = strings.TrimSpace(evaluationType)
	if evaluationType == "" {
		evaluationType = models.DefaultEvaluationType
	}
	runId := uuid.Must(uuid.NewV7())
	empty := false

	err := uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		if uc.config.SingleActiveRunPerSuite {
			if err := uc.repository.LockSuiteForRunCreation(ctx, tx, suiteId); err != nil {
				return err
			}
			active, err := uc.repository.HasActiveEvaluationRun(ctx, tx, suiteId)
			if err != nil {
				return err
			}
			if active {
				return errors.Wrapf(models.ErrRunAlreadyInProgress, "suite %s", suiteId)
			}
		}

		if err := uc.repository.CreateEvaluationRun(ctx, tx, models.EvaluationRunToCreate{
			Id:             runId,
			SuiteId:        suiteId,
			EvaluationType: evaluationType,
		}); err != nil {
			return err
		}

		total, err := uc.repository.SnapshotApprovedTestCases(ctx, tx, runId, suiteId)
		if err != nil {
			return err
		}
		now := uc.clock.Now()

		if total == 0 {
			empty = true
			finalized, err := uc.repository.FinalizeEvaluationRun(ctx, tx, models.RunFinalization{
				RunId:         runId,
				ExpectedState: models.EvaluationRunPending,
				State:         models.EvaluationRunCompleted,
				CompletedAt:   now,
			})
			if err != nil {
				return err
			}
			if !finalized {
				return errors.Newf("evaluation run %s could not be finalized", runId)
			}
			return nil
		}

		jobId, err := uc.taskQueueRepository.EnqueueEvaluationRunTask(ctx, tx, runId)
		if err != nil {
			return err
		}
		return uc.repository.MarkEvaluationRunRunning(ctx, tx, runId, total, jobId, now)
	})
	if err != nil {
		return models.EvaluationRun{}, err
	}

	logger := utils.LoggerFromContext(ctx)
	if empty {
		utils.MetricRunsFinalized.WithLabelValues(string(models.EvaluationRunCompleted)).Inc()
		logger.InfoContext(ctx, "evaluation run started without approved test case", "run_id", runId, "suite_id", suiteId)
	} else {
		logger.InfoContext(ctx, "evaluation run queued", "run_id", runId, "suite_id", suiteId)
	}

	return uc.repository.GetEvaluationRunById(ctx, uc.executorFactory.NewExecutor(), runId)
}

// CancelRun requests the cancellation of an active run. The worker finalizes it in the error state
// once the cases in flight have drained. A run whose job had not started yet is finalized at once.
func (uc EvaluationRunUsecase) CancelRun(ctx context.Context, runId uuid.UUID) (models.EvaluationRun, error) {
	err := uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		run, err := uc.repository.GetEvaluationRunById(ctx, tx, runId)
		if err != nil {
			return err
		}
		if run.State.IsTerminal() {
			return errors.Wrapf(models.ErrRunNotActive, "evaluation run %s is %s", runId, run.State)
		}

		run, err = uc.repository.RequestEvaluationRunCancellation(ctx, tx, runId)
		if err != nil {
			return err
		}
		if run.JobId == nil {
			return nil
		}

		cancelledBeforeStart, err := uc.taskQueueRepository.CancelJob(ctx, tx, *run.JobId)
		if err != nil {
			return err
		}
		if !cancelledBeforeStart {
			return nil
		}
		_, err = uc.finalize(ctx, tx, run, models.EvaluationRunError)
		return err
	})
	if err != nil {
		return models.EvaluationRun{}, err
	}

	utils.LoggerFromContext(ctx).InfoContext(ctx, "evaluation run cancellation requested", "run_id", runId)
	return uc.repository.GetEvaluationRunById(ctx, uc.executorFactory.NewExecutor(), runId)
}

// ExecuteRun runs the cases of the snapshot that have no outcome yet, then finalizes the run. It is
// called by the evaluation job: an error is returned only when the job should be retried.
func (uc EvaluationRunUsecase) ExecuteRun(ctx context.Context, runId uuid.UUID) error {
	ctx, logger := utils.LoggerWithAttrs(ctx, "run_id", runId)
	exec := uc.executorFactory.NewExecutor()

	run, err := uc.repository.GetEvaluationRunById(ctx, exec, runId)
	if errors.Is(err, models.NotFoundError) {
		logger.InfoContext(ctx, "evaluation run deleted before execution")
		return nil
	}
	if err != nil {
		return err
	}
	if run.State != models.EvaluationRunRunning {
		logger.InfoContext(ctx, "evaluation run is not running, nothing to do", "state", run.State)
		return nil
	}

	if run.CancelRequestedAt == nil {
		if uc.runner == nil {
			return errors.New("agent endpoint is not configured")
		}
		items, err := uc.repository.ListRunItemsWithoutOutcome(ctx, exec, runId)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "executing evaluation run", "remaining", len(items), "total", run.TotalCount)

		err = uc.runner.Run(ctx, runId, items, func(ctx context.Context, outcome models.TestCaseOutcome) error {
			_, err := uc.repository.CreateTestCaseOutcome(ctx, exec, outcome)
			return err
		})
		if errors.Is(err, models.ErrRunNotActive) {
			logger.InfoContext(ctx, "evaluation run finalized while executing, remaining cases are dropped")
			return nil
		}
		if err != nil {
			return err
		}
	}

	// the job context is done after a cancellation, a timeout or a shutdown
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizationTimeout)
	defer cancel()

	run, err = uc.repository.GetEvaluationRunById(finalCtx, exec, runId)
	if err != nil {
		return err
	}

	state := models.EvaluationRunCompleted
	switch {
	case run.CancelRequestedAt != nil:
		state = models.EvaluationRunError
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logger.WarnContext(ctx, "evaluation run reached its deadline")
		state = models.EvaluationRunError
	case ctx.Err() != nil:
		logger.InfoContext(ctx, "evaluation run interrupted, it will resume on retry")
		return errors.Wrap(ctx.Err(), "evaluation run interrupted")
	}

	finalized, err := uc.finalizeInTransaction(finalCtx, run, state)
	if err != nil {
		return err
	}
	if !finalized {
		logger.InfoContext(ctx, "evaluation run already finalized")
	}
	return nil
}

// ReapStaleRuns finalizes in the error state the runs whose worker went away.
func (uc EvaluationRunUsecase) ReapStaleRuns(ctx context.Context) (int, error) {
	exec := uc.executorFactory.NewExecutor()
	cutoff := uc.clock.Now().Add(-(uc.config.RunTimeout + STALE_RUN_MARGIN))

	runs, err := uc.repository.ListStaleEvaluationRuns(ctx, exec, cutoff)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, run := range runs {
		finalized, err := uc.finalizeInTransaction(ctx, run, models.EvaluationRunError)
		if err != nil {
			return reaped, err
		}
		if finalized {
			reaped++
			utils.LoggerFromContext(ctx).WarnContext(ctx, "stale evaluation run finalized",
				"run_id", run.Id, "started_at", run.StartedAt)
		}
	}
	return reaped, nil
}

func (uc EvaluationRunUsecase) finalizeInTransaction(
	ctx context.Context,
	run models.EvaluationRun,
	state models.EvaluationRunState,
) (finalized bool, err error) {
	err = uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		finalized, err = uc.finalize(ctx, tx, run, state)
		return err
	})
	return finalized, err
}

// finalize aggregates the persisted outcomes of a running run. The run row stays locked until the
// transaction ends, so outcome inserts wait and then find the run finalized. It reports false when
// the run was finalized by someone else.
func (uc EvaluationRunUsecase) finalize(
	ctx context.Context,
	tx repositories.Transaction,
	run models.EvaluationRun,
	state models.EvaluationRunState,
) (bool, error) {
	locked, err := uc.repository.LockRunningEvaluationRun(ctx, tx, run.Id)
	if err != nil || !locked {
		return false, err
	}

	outcomes, err := uc.repository.ListTestCaseOutcomes(ctx, tx, run.Id)
	if err != nil {
		return false, err
	}

	finalized, err := uc.repository.FinalizeEvaluationRun(ctx, tx, models.RunFinalization{
		RunId:         run.Id,
		ExpectedState: models.EvaluationRunRunning,
		State:         state,
		Stats:         evaluation.Aggregate(outcomes),
		LatencyReport: evaluation.ComputeLatencyReport(outcomes),
		CompletedAt:   uc.clock.Now(),
	})
	if err != nil {
		return false, err
	}
	if finalized {
		utils.MetricRunsFinalized.WithLabelValues(string(state)).Inc()
	}
	return finalized, nil
}

func (uc EvaluationRunUsecase) GetRun(ctx context.Context, runId uuid.UUID) (models.EvaluationRun, error) {
	return uc.repository.GetEvaluationRunById(ctx, uc.executorFactory.NewExecutor(), runId)
}

func (uc EvaluationRunUsecase) ListRuns(ctx context.Context, filters models.EvaluationRunFilters) ([]models.EvaluationRun, error) {
	return uc.repository.ListEvaluationRuns(ctx, uc.executorFactory.NewExecutor(), filters)
}

func (uc EvaluationRunUsecase) ListRunResults(ctx context.Context, runId uuid.UUID) ([]models.TestCaseOutcome, error) {
	exec := uc.executorFactory.NewExecutor()
	if _, err := uc.repository.GetEvaluationRunById(ctx, exec, runId); err != nil {
		return nil, err
	}
	return uc.repository.ListTestCaseOutcomes(ctx, exec, runId)
}

// AnalyzeRun produces a written analysis of a finished run and stores it on the run.
func (uc EvaluationRunUsecase) AnalyzeRun(ctx context.Context, runId uuid.UUID, question string) (string, error) {
	if uc.analyzer == nil {
		return "", errors.New("run analysis is not configured")
	}
	exec := uc.executorFactory.NewExecutor()

	run, err := uc.repository.GetEvaluationRunById(ctx, exec, runId)
	if err != nil {
		return "", err
	}
	if !run.State.IsTerminal() {
		return "", errors.Wrapf(models.ErrRunStillActive, "evaluation run %s is %s", runId, run.State)
	}

	outcomes, err := uc.repository.ListTestCaseOutcomes(ctx, exec, runId)
	if err != nil {
		return "", err
	}

	analysis, err := uc.analyzer.AnalyzeRun(ctx, run, outcomes, question)
	if err != nil {
		return "", err
	}
	if err := uc.repository.UpdateEvaluationRunAnalysis(ctx, exec, runId, analysis); err != nil {
		return "", err
	}
	return analysis, nil
}

func (uc EvaluationRunUsecase) DeleteRun(ctx context.Context, runId uuid.UUID) error {
	exec := uc.executorFactory.NewExecutor()
	if _, err := uc.repository.GetEvaluationRunById(ctx, exec, runId); err != nil {
		return err
	}
	return uc.repository.DeleteEvaluationRun(ctx, exec, runId)
}
