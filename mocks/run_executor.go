package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/usecases/evaluation"
)

// RunExecutor records the outcomes given to it through the recorder, as the real runner would.
type RunExecutor struct {
	mock.Mock
	Outcomes []models.TestCaseOutcome
}

func (m *RunExecutor) Run(ctx context.Context, runId uuid.UUID, items []models.EvaluationRunItem,
	record evaluation.OutcomeRecorder,
) error {
	args := m.Called(ctx, runId, items)
	for _, outcome := range m.Outcomes {
		if err := record(ctx, outcome); err != nil {
			return err
		}
	}
	return args.Error(0)
}
