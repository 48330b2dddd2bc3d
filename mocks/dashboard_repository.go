package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
)

type DashboardRepository struct {
	mock.Mock
}

func (r *DashboardRepository) CountTestCasesByStatus(ctx context.Context, exec repositories.Executor,
	suiteId *uuid.UUID,
) (map[models.TestCaseStatus]int, error) {
	args := r.Called(ctx, exec, suiteId)
	return args.Get(0).(map[models.TestCaseStatus]int), args.Error(1)
}

func (r *DashboardRepository) CountEvaluationRuns(ctx context.Context, exec repositories.Executor, suiteId *uuid.UUID) (int, error) {
	args := r.Called(ctx, exec, suiteId)
	return args.Int(0), args.Error(1)
}

func (r *DashboardRepository) ListCompletedRunPoints(ctx context.Context, exec repositories.Executor,
	suiteId *uuid.UUID,
) ([]models.CompletedRunPoint, error) {
	args := r.Called(ctx, exec, suiteId)
	return args.Get(0).([]models.CompletedRunPoint), args.Error(1)
}

func (r *DashboardRepository) SumRunCounts(ctx context.Context, exec repositories.Executor, suiteId *uuid.UUID) (models.RunTotals, error) {
	args := r.Called(ctx, exec, suiteId)
	return args.Get(0).(models.RunTotals), args.Error(1)
}

func (r *DashboardRepository) ListEvaluationRuns(ctx context.Context, exec repositories.Executor,
	filters models.EvaluationRunFilters,
) ([]models.EvaluationRun, error) {
	args := r.Called(ctx, exec, filters)
	return args.Get(0).([]models.EvaluationRun), args.Error(1)
}
