package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/checkmarble/agent-eval-backend/models"
)

type TestCaseGenerator struct {
	mock.Mock
}

func (m *TestCaseGenerator) GenerateFromDescription(ctx context.Context, input models.GenerateFromDescriptionInput) (
	models.GeneratedTestCase, error,
) {
	args := m.Called(ctx, input)
	return args.Get(0).(models.GeneratedTestCase), args.Error(1)
}

func (m *TestCaseGenerator) GenerateFromDocument(ctx context.Context, input models.GenerateFromDocumentInput) (
	[]models.DocumentGenerationItem, error,
) {
	args := m.Called(ctx, input)
	return args.Get(0).([]models.DocumentGenerationItem), args.Error(1)
}

func (m *TestCaseGenerator) Regenerate(ctx context.Context, input models.RegenerationInput) (models.GeneratedTestCase, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(models.GeneratedTestCase), args.Error(1)
}

type RunAnalyzer struct {
	mock.Mock
}

func (m *RunAnalyzer) AnalyzeRun(ctx context.Context, run models.EvaluationRun, outcomes []models.TestCaseOutcome,
	question string,
) (string, error) {
	args := m.Called(ctx, run, outcomes, question)
	return args.String(0), args.Error(1)
}
