package repositories

import (
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories/dbmodels"
)

var (
	testSuiteId    = uuid.MustParse("0199a0e4-5e2f-7b4c-9a40-5d0a1f2c3b4d")
	testTestCaseId = uuid.MustParse("0199a0e4-6b10-7d2e-8f11-2a3b4c5d6e7f")
	testNow        = time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
)

func newPgxMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func testCaseRow(mock pgxmock.PgxPoolIface, status models.TestCaseStatus, version int) *pgxmock.Rows {
	return mock.NewRows(dbmodels.SelectTestCaseColumns).AddRow(
		testTestCaseId,
		testSuiteId,
		"Lost card",
		faker.Sentence(),
		"conversation-flow",
		string(status),
		"text",
		"customer lost their card",
		version,
		nil,
		testNow,
		testNow,
		nil,
	)
}

func TestGetTestCaseById(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	mock.ExpectQuery(`SELECT .* FROM test_cases WHERE deleted_at IS NULL AND id = \$1`).
		WithArgs(testTestCaseId).
		WillReturnRows(testCaseRow(mock, models.TestCaseStatusDraft, 1))

	tc, err := repo.GetTestCaseById(t.Context(), mock, testTestCaseId)

	assert.NoError(t, err)
	assert.Equal(t, testTestCaseId, tc.Id)
	assert.Equal(t, models.TestCaseStatusDraft, tc.Status)
	assert.Equal(t, models.TestCaseTypeConversationFlow, tc.Type)
	assert.Empty(t, tc.ErrorDetail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTestCaseById_notFound(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	mock.ExpectQuery(`SELECT .* FROM test_cases`).
		WithArgs(testTestCaseId).
		WillReturnRows(mock.NewRows(dbmodels.SelectTestCaseColumns))

	_, err := repo.GetTestCaseById(t.Context(), mock, testTestCaseId)

	assert.ErrorIs(t, err, models.ErrTestCaseNotFound)
	assert.ErrorIs(t, err, models.NotFoundError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTestCaseStatus_concurrentModification(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	mock.ExpectQuery(`UPDATE test_cases SET status = \$1, updated_at = NOW\(\), error_detail = \$2 WHERE .* RETURNING`).
		WillReturnRows(mock.NewRows(dbmodels.SelectTestCaseColumns))

	_, err := repo.UpdateTestCaseStatus(t.Context(), mock, models.TestCaseStatusUpdate{
		Id:              testTestCaseId,
		ExpectedStatus:  models.TestCaseStatusDraft,
		ExpectedVersion: 1,
		NewStatus:       models.TestCaseStatusApproved,
	})

	assert.ErrorIs(t, err, models.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTestCaseStatus_withNewVersion(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	mock.ExpectQuery(`UPDATE test_cases SET .*current_version = current_version \+ 1.* RETURNING`).
		WillReturnRows(testCaseRow(mock, models.TestCaseStatusDraft, 2))
	mock.ExpectExec(`INSERT INTO test_case_versions`).
		WithArgs(pgxmock.AnyArg(), testTestCaseId, 2, pgxmock.AnyArg(), "prompt", "raw", "be more precise", "worker").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	updated, err := repo.UpdateTestCaseStatus(t.Context(), mock, models.TestCaseStatusUpdate{
		Id:              testTestCaseId,
		ExpectedStatus:  models.TestCaseStatusRetry,
		ExpectedVersion: 1,
		NewStatus:       models.TestCaseStatusDraft,
		NewVersion: &models.TestCaseVersionToCreate{
			Content:     []byte(`{"name":"Lost card"}`),
			Prompt:      "prompt",
			RawResponse: "raw",
			Feedback:    "be more precise",
			CreatedBy:   "worker",
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTestCaseStatus_versionAlreadyExists(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	mock.ExpectQuery(`UPDATE test_cases SET`).
		WillReturnRows(testCaseRow(mock, models.TestCaseStatusDraft, 2))
	mock.ExpectExec(`INSERT INTO test_case_versions`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.UpdateTestCaseStatus(t.Context(), mock, models.TestCaseStatusUpdate{
		Id:              testTestCaseId,
		ExpectedStatus:  models.TestCaseStatusRetry,
		ExpectedVersion: 1,
		NewStatus:       models.TestCaseStatusDraft,
		NewVersion:      &models.TestCaseVersionToCreate{},
	})

	assert.ErrorIs(t, err, models.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteTestCase_notFound(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	mock.ExpectExec(`UPDATE test_cases SET deleted_at = NOW\(\)`).
		WithArgs(testTestCaseId).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SoftDeleteTestCase(t.Context(), mock, testTestCaseId)

	assert.ErrorIs(t, err, models.ErrTestCaseNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTestCasesByIds_empty(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	testCases, err := repo.ListTestCasesByIds(t.Context(), mock, nil)

	assert.NoError(t, err)
	assert.Empty(t, testCases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertGenerationRequest(t *testing.T) {
	mock := newPgxMock(t)
	repo := NewEvalDbRepository()

	mock.ExpectExec(`INSERT INTO generation_requests .* ON CONFLICT \(digest\) DO UPDATE`).
		WithArgs("digest", testSuiteId, models.TestCaseSourceText, []string{testTestCaseId.String()}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.UpsertGenerationRequest(t.Context(), mock, models.GenerationRequest{
		Digest:      "digest",
		SuiteId:     testSuiteId,
		SourceType:  models.TestCaseSourceText,
		TestCaseIds: []uuid.UUID{testTestCaseId},
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
