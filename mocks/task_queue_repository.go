package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
)

type TaskQueueRepository struct {
	mock.Mock
}

func (m *TaskQueueRepository) EnqueueEvaluationRunTask(ctx context.Context, tx repositories.Transaction, runId uuid.UUID) (int64, error) {
	args := m.Called(ctx, tx, runId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TaskQueueRepository) EnqueueTestCaseRegenerationTask(
	ctx context.Context,
	tx repositories.Transaction,
	args models.TestCaseRegenerationArgs,
) error {
	return m.Called(ctx, tx, args).Error(0)
}

func (m *TaskQueueRepository) CancelJob(ctx context.Context, tx repositories.Transaction, jobId int64) (bool, error) {
	args := m.Called(ctx, tx, jobId)
	return args.Bool(0), args.Error(1)
}
