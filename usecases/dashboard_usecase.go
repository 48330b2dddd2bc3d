package usecases

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/usecases/evaluation"
	"github.com/checkmarble/agent-eval-backend/usecases/executor_factory"
)

const dashboardRecentRuns = 5

type DashboardRepository interface {
	CountTestCasesByStatus(ctx context.Context, exec repositories.Executor, suiteId *uuid.UUID) (map[models.TestCaseStatus]int, error)
	CountEvaluationRuns(ctx context.Context, exec repositories.Executor, suiteId *uuid.UUID) (int, error)
	ListCompletedRunPoints(ctx context.Context, exec repositories.Executor, suiteId *uuid.UUID) ([]models.CompletedRunPoint, error)
	SumRunCounts(ctx context.Context, exec repositories.Executor, suiteId *uuid.UUID) (models.RunTotals, error)
	ListEvaluationRuns(ctx context.Context, exec repositories.Executor, filters models.EvaluationRunFilters) ([]models.EvaluationRun, error)
}

type DashboardUsecase struct {
	executorFactory executor_factory.ExecutorFactory
	repository      DashboardRepository
}

// GetSummary reads the dashboard figures, for one suite or for all of them. The queries run
// concurrently on the pool, outside of any transaction.
func (uc DashboardUsecase) GetSummary(ctx context.Context, suiteId *uuid.UUID) (models.DashboardSummary, error) {
	exec := uc.executorFactory.NewExecutor()

	var (
		statusCounts map[models.TestCaseStatus]int
		totalRuns    int
		points       []models.CompletedRunPoint
		totals       models.RunTotals
		recentRuns   []models.EvaluationRun
		lastRuns     []models.EvaluationRun
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		statusCounts, err = uc.repository.CountTestCasesByStatus(ctx, exec, suiteId)
		return
	})
	g.Go(func() (err error) {
		totalRuns, err = uc.repository.CountEvaluationRuns(ctx, exec, suiteId)
		return
	})
	g.Go(func() (err error) {
		points, err = uc.repository.ListCompletedRunPoints(ctx, exec, suiteId)
		return
	})
	g.Go(func() (err error) {
		totals, err = uc.repository.SumRunCounts(ctx, exec, suiteId)
		return
	})
	g.Go(func() (err error) {
		recentRuns, err = uc.repository.ListEvaluationRuns(ctx, exec, models.EvaluationRunFilters{
			SuiteId: suiteId,
			Limit:   dashboardRecentRuns,
		})
		return
	})
	g.Go(func() (err error) {
		lastRuns, err = uc.repository.ListEvaluationRuns(ctx, exec, models.EvaluationRunFilters{
			SuiteId: suiteId,
			States:  []models.EvaluationRunState{models.EvaluationRunCompleted},
			Limit:   1,
		})
		return
	})
	if err := g.Wait(); err != nil {
		return models.DashboardSummary{}, err
	}

	summary := models.DashboardSummary{
		ApprovedCount: statusCounts[models.TestCaseStatusApproved],
		PendingCount:  statusCounts[models.TestCaseStatusDraft] + statusCounts[models.TestCaseStatusPendingReview],
		FailedCount:   statusCounts[models.TestCaseStatusDenied],
		TotalRuns:     totalRuns,
		PassRateTrend: evaluation.Trend(points),
		RecentRuns:    recentRuns,
		TotalPassed:   totals.Passed,
		TotalFailed:   totals.Failed,
		AvgPassRate:   evaluation.RoundedPassRate(totals.Passed, totals.Passed+totals.Failed),
	}
	for _, count := range statusCounts {
		summary.TotalTestCases += count
	}
	if len(lastRuns) > 0 {
		last := lastRuns[0]
		summary.LastRunPassRate = evaluation.RoundedPassRate(last.PassedCount, last.TotalCount)
	}
	return summary, nil
}
