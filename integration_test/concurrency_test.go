package integration

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
)

func TestApproval_concurrentDecisions(t *testing.T) {
	e := httpexpect.Default(t, testServer.URL)
	id := generateTestCase(e, uuid.NewString(), "The customer lost their card and wants it blocked")

	decisions := []map[string]any{
		{"action": "approve", "expected_version": 1, "expected_status": "draft"},
		{"action": "retry", "feedback": "ask for the last four digits", "expected_version": 1, "expected_status": "draft"},
	}
	statuses := make([]int, len(decisions))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, body := range decisions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reviewer := httpexpect.Default(t, testServer.URL)
			<-start
			statuses[i] = reviewer.POST("/test-cases/{id}/approve", id).
				WithJSON(body).
				Expect().Raw().StatusCode
		}()
	}
	close(start)
	wg.Wait()

	// the loser either misses the compare-and-swap or reads the winner's status, both are conflicts
	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, statuses)
	e.GET("/test-cases/{id}/approvals", id).
		Expect().Status(http.StatusOK).
		JSON().Array().Length().IsEqual(1)
}

func TestStaleRunReaper_lateOutcomeIsRejected(t *testing.T) {
	ctx := t.Context()
	repo := repositories.NewEvalDbRepository()
	runId := uuid.Must(uuid.NewV7())

	require.NoError(t, repo.CreateEvaluationRun(ctx, testDbPool, models.EvaluationRunToCreate{
		Id:             runId,
		SuiteId:        uuid.New(),
		EvaluationType: models.DefaultEvaluationType,
	}))
	require.NoError(t, repo.MarkEvaluationRunRunning(ctx, testDbPool, runId, 2, 0, time.Now().Add(-24*time.Hour)))

	created, err := repo.CreateTestCaseOutcome(ctx, testDbPool, models.TestCaseOutcome{
		RunId:           runId,
		TestCaseId:      uuid.New(),
		TestCaseVersion: 1,
		Result:          models.OutcomePass,
		Latency:         120 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, created)

	reaped, err := testUsecases.NewEvaluationRunUsecase().ReapStaleRuns(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reaped, 1)

	// the worker resumed after the reaper and tries to record the second case
	_, err = repo.CreateTestCaseOutcome(ctx, testDbPool, models.TestCaseOutcome{
		RunId:           runId,
		TestCaseId:      uuid.New(),
		TestCaseVersion: 1,
		Result:          models.OutcomeFail,
		Latency:         80 * time.Millisecond,
	})
	assert.ErrorIs(t, err, models.ErrRunNotActive)

	run, err := repo.GetEvaluationRunById(ctx, testDbPool, runId)
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationRunError, run.State)
	assert.Equal(t, 1, run.PassedCount)
	assert.Equal(t, 0, run.FailedCount)

	outcomes, err := repo.ListTestCaseOutcomes(ctx, testDbPool, runId)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestFinalizeEvaluationRun_startedAtAheadOfWorkerClock(t *testing.T) {
	ctx := t.Context()
	repo := repositories.NewEvalDbRepository()
	runId := uuid.Must(uuid.NewV7())

	require.NoError(t, repo.CreateEvaluationRun(ctx, testDbPool, models.EvaluationRunToCreate{
		Id:             runId,
		SuiteId:        uuid.New(),
		EvaluationType: models.DefaultEvaluationType,
	}))
	// the API host clock runs ahead of the worker one
	require.NoError(t, repo.MarkEvaluationRunRunning(ctx, testDbPool, runId, 0, 0, time.Now().Add(time.Minute)))

	finalized, err := repo.FinalizeEvaluationRun(ctx, testDbPool, models.RunFinalization{
		RunId:         runId,
		ExpectedState: models.EvaluationRunRunning,
		State:         models.EvaluationRunCompleted,
		CompletedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, finalized)

	run, err := repo.GetEvaluationRunById(ctx, testDbPool, runId)
	require.NoError(t, err)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)
	assert.True(t, run.CompletedAt.Equal(*run.StartedAt))
}
