package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
)

type TestCaseRepository struct {
	mock.Mock
}

func (r *TestCaseRepository) GetTestCaseById(ctx context.Context, exec repositories.Executor, id uuid.UUID) (models.TestCase, error) {
	args := r.Called(ctx, exec, id)
	return args.Get(0).(models.TestCase), args.Error(1)
}

func (r *TestCaseRepository) GetTestCaseWithVersions(ctx context.Context, exec repositories.Executor, id uuid.UUID) (models.TestCase, error) {
	args := r.Called(ctx, exec, id)
	return args.Get(0).(models.TestCase), args.Error(1)
}

func (r *TestCaseRepository) ListTestCases(ctx context.Context, exec repositories.Executor,
	filters models.TestCaseFilters,
) ([]models.TestCase, error) {
	args := r.Called(ctx, exec, filters)
	return args.Get(0).([]models.TestCase), args.Error(1)
}

func (r *TestCaseRepository) ListTestCasesByIds(ctx context.Context, exec repositories.Executor, ids []uuid.UUID) ([]models.TestCase, error) {
	args := r.Called(ctx, exec, ids)
	return args.Get(0).([]models.TestCase), args.Error(1)
}

func (r *TestCaseRepository) ListTestCaseVersions(ctx context.Context, exec repositories.Executor,
	testCaseId uuid.UUID,
) ([]models.TestCaseVersion, error) {
	args := r.Called(ctx, exec, testCaseId)
	return args.Get(0).([]models.TestCaseVersion), args.Error(1)
}

func (r *TestCaseRepository) GetTestCaseVersion(ctx context.Context, exec repositories.Executor,
	testCaseId uuid.UUID, versionNumber int,
) (models.TestCaseVersion, error) {
	args := r.Called(ctx, exec, testCaseId, versionNumber)
	return args.Get(0).(models.TestCaseVersion), args.Error(1)
}

func (r *TestCaseRepository) CreateTestCase(ctx context.Context, exec repositories.Executor, tc models.TestCaseToCreate) error {
	args := r.Called(ctx, exec, tc)
	return args.Error(0)
}

func (r *TestCaseRepository) UpdateTestCaseStatus(ctx context.Context, exec repositories.Executor,
	update models.TestCaseStatusUpdate,
) (models.TestCase, error) {
	args := r.Called(ctx, exec, update)
	return args.Get(0).(models.TestCase), args.Error(1)
}

func (r *TestCaseRepository) SoftDeleteTestCase(ctx context.Context, exec repositories.Executor, id uuid.UUID) error {
	args := r.Called(ctx, exec, id)
	return args.Error(0)
}

func (r *TestCaseRepository) CreateApprovalRecord(ctx context.Context, exec repositories.Executor,
	record models.ApprovalRecordToCreate,
) error {
	args := r.Called(ctx, exec, record)
	return args.Error(0)
}

func (r *TestCaseRepository) ListApprovalRecords(ctx context.Context, exec repositories.Executor,
	testCaseId uuid.UUID,
) ([]models.ApprovalRecord, error) {
	args := r.Called(ctx, exec, testCaseId)
	return args.Get(0).([]models.ApprovalRecord), args.Error(1)
}

func (r *TestCaseRepository) GetGenerationRequest(ctx context.Context, exec repositories.Executor,
	digest string,
) (*models.GenerationRequest, error) {
	args := r.Called(ctx, exec, digest)
	return args.Get(0).(*models.GenerationRequest), args.Error(1)
}

func (r *TestCaseRepository) UpsertGenerationRequest(ctx context.Context, exec repositories.Executor,
	req models.GenerationRequest,
) error {
	args := r.Called(ctx, exec, req)
	return args.Error(0)
}
