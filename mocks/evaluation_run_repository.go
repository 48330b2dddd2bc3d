package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
)

type EvaluationRunRepository struct {
	mock.Mock
}

func (r *EvaluationRunRepository) GetEvaluationRunById(ctx context.Context, exec repositories.Executor,
	id uuid.UUID,
) (models.EvaluationRun, error) {
	args := r.Called(ctx, exec, id)
	return args.Get(0).(models.EvaluationRun), args.Error(1)
}

func (r *EvaluationRunRepository) ListEvaluationRuns(ctx context.Context, exec repositories.Executor,
	filters models.EvaluationRunFilters,
) ([]models.EvaluationRun, error) {
	args := r.Called(ctx, exec, filters)
	return args.Get(0).([]models.EvaluationRun), args.Error(1)
}

func (r *EvaluationRunRepository) LockSuiteForRunCreation(ctx context.Context, tx repositories.Transaction, suiteId uuid.UUID) error {
	return r.Called(ctx, tx, suiteId).Error(0)
}

func (r *EvaluationRunRepository) HasActiveEvaluationRun(ctx context.Context, exec repositories.Executor, suiteId uuid.UUID) (bool, error) {
	args := r.Called(ctx, exec, suiteId)
	return args.Bool(0), args.Error(1)
}

func (r *EvaluationRunRepository) CreateEvaluationRun(ctx context.Context, exec repositories.Executor,
	run models.EvaluationRunToCreate,
) error {
	return r.Called(ctx, exec, run).Error(0)
}

func (r *EvaluationRunRepository) SnapshotApprovedTestCases(ctx context.Context, exec repositories.Executor,
	runId, suiteId uuid.UUID,
) (int, error) {
	args := r.Called(ctx, exec, runId, suiteId)
	return args.Int(0), args.Error(1)
}

func (r *EvaluationRunRepository) MarkEvaluationRunRunning(ctx context.Context, exec repositories.Executor,
	runId uuid.UUID, total int, jobId int64, startedAt time.Time,
) error {
	return r.Called(ctx, exec, runId, total, jobId, startedAt).Error(0)
}

func (r *EvaluationRunRepository) FinalizeEvaluationRun(ctx context.Context, exec repositories.Executor,
	fin models.RunFinalization,
) (bool, error) {
	args := r.Called(ctx, exec, fin)
	return args.Bool(0), args.Error(1)
}

func (r *EvaluationRunRepository) LockRunningEvaluationRun(ctx context.Context, tx repositories.Transaction,
	runId uuid.UUID,
) (bool, error) {
	args := r.Called(ctx, tx, runId)
	return args.Bool(0), args.Error(1)
}

func (r *EvaluationRunRepository) RequestEvaluationRunCancellation(ctx context.Context, exec repositories.Executor,
	runId uuid.UUID,
) (models.EvaluationRun, error) {
	args := r.Called(ctx, exec, runId)
	return args.Get(0).(models.EvaluationRun), args.Error(1)
}

func (r *EvaluationRunRepository) ListStaleEvaluationRuns(ctx context.Context, exec repositories.Executor,
	runningBefore time.Time,
) ([]models.EvaluationRun, error) {
	args := r.Called(ctx, exec, runningBefore)
	return args.Get(0).([]models.EvaluationRun), args.Error(1)
}

func (r *EvaluationRunRepository) UpdateEvaluationRunAnalysis(ctx context.Context, exec repositories.Executor,
	runId uuid.UUID, analysis string,
) error {
	return r.Called(ctx, exec, runId, analysis).Error(0)
}

func (r *EvaluationRunRepository) DeleteEvaluationRun(ctx context.Context, exec repositories.Executor, runId uuid.UUID) error {
	return r.Called(ctx, exec, runId).Error(0)
}

func (r *EvaluationRunRepository) ListRunItemsWithoutOutcome(ctx context.Context, exec repositories.Executor,
	runId uuid.UUID,
) ([]models.EvaluationRunItem, error) {
	args := r.Called(ctx, exec, runId)
	return args.Get(0).([]models.EvaluationRunItem), args.Error(1)
}

func (r *EvaluationRunRepository) CreateTestCaseOutcome(ctx context.Context, exec repositories.Executor,
	outcome models.TestCaseOutcome,
) (bool, error) {
	args := r.Called(ctx, exec, outcome)
	return args.Bool(0), args.Error(1)
}

func (r *EvaluationRunRepository) ListTestCaseOutcomes(ctx context.Context, exec repositories.Executor,
	runId uuid.UUID,
) ([]models.TestCaseOutcome, error) {
	args := r.Called(ctx, exec, runId)
	return args.Get(0).([]models.TestCaseOutcome), args.Error(1)
}
