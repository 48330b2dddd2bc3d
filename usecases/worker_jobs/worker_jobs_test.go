package worker_jobs

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/checkmarble/agent-eval-backend/models"
)

type usecaseMock struct {
	mock.Mock
}

func (m *usecaseMock) ExecuteRun(ctx context.Context, runId uuid.UUID) error {
	return m.Called(ctx, runId).Error(0)
}

func (m *usecaseMock) RegenerateTestCase(ctx context.Context, args models.TestCaseRegenerationArgs) error {
	return m.Called(ctx, args).Error(0)
}

func (m *usecaseMock) ReapStaleRuns(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestEvaluationRunWorker(t *testing.T) {
	uc := new(usecaseMock)
	worker := NewEvaluationRunWorker(uc, time.Hour)
	runId := uuid.New()
	job := &river.Job[models.EvaluationRunArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Kind: models.EvaluationRunArgs{}.Kind()},
		Args:   models.EvaluationRunArgs{RunId: runId},
	}
	interrupted := errors.Wrap(context.Canceled, "evaluation run interrupted")

	uc.On("ExecuteRun", mock.Anything, runId).Return(interrupted)

	err := worker.Work(t.Context(), job)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, time.Hour, worker.Timeout(job))
	uc.AssertExpectations(t)
}

func TestTestCaseRegenerationWorker(t *testing.T) {
	uc := new(usecaseMock)
	worker := NewTestCaseRegenerationWorker(uc)
	args := models.TestCaseRegenerationArgs{
		TestCaseId:  uuid.New(),
		FromVersion: 2,
		Feedback:    "shorter answers",
		Actor:       "reviewer@example.com",
	}

	uc.On("RegenerateTestCase", mock.Anything, args).Return(nil)

	err := worker.Work(t.Context(), &river.Job[models.TestCaseRegenerationArgs]{
		JobRow: &rivertype.JobRow{ID: 2},
		Args:   args,
	})

	assert.NoError(t, err)
	uc.AssertExpectations(t)
}

func TestStaleRunReaperWorker(t *testing.T) {
	uc := new(usecaseMock)
	worker := NewStaleRunReaperWorker(uc)

	uc.On("ReapStaleRuns", mock.Anything).Return(2, nil).Once()
	uc.On("ReapStaleRuns", mock.Anything).Return(0, errors.New("connection refused")).Once()

	job := &river.Job[models.StaleRunReaperArgs]{JobRow: &rivertype.JobRow{ID: 3}}
	assert.NoError(t, worker.Work(t.Context(), job))
	assert.Error(t, worker.Work(t.Context(), job))
	uc.AssertExpectations(t)
}

func TestNewStaleRunReaperPeriodicJob(t *testing.T) {
	_, err := NewStaleRunReaperPeriodicJob("")
	assert.NoError(t, err)

	_, err = NewStaleRunReaperPeriodicJob("*/15 * * * *")
	assert.NoError(t, err)

	_, err = NewStaleRunReaperPeriodicJob("every quarter")
	assert.Error(t, err)
}

func TestCronSchedule(t *testing.T) {
	schedule := cronSchedule{expr: "*/15 * * * *"}
	current := time.Date(2026, 9, 14, 10, 7, 30, 0, time.UTC)

	next := schedule.Next(current)
	assert.True(t, next.Equal(time.Date(2026, 9, 14, 10, 15, 0, 0, time.UTC)), next.String())
}
