package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/pure_utils"
	"github.com/checkmarble/agent-eval-backend/repositories/dbmodels"
)

func selectTestCases() squirrel.SelectBuilder {
	return NewQueryBuilder().
		Select(dbmodels.SelectTestCaseColumns...).
		From(dbmodels.TABLE_TEST_CASES).
		Where("deleted_at IS NULL")
}

func (repo *EvalDbRepository) GetTestCaseById(ctx context.Context, exec Executor, id uuid.UUID) (models.TestCase, error) {
	tc, err := SqlToOptionalModel(ctx, exec,
		selectTestCases().Where(squirrel.Eq{"id": id}),
		dbmodels.AdaptTestCase,
	)
	if err != nil {
		return models.TestCase{}, err
	}
	if tc == nil {
		return models.TestCase{}, errors.Wrapf(models.ErrTestCaseNotFound, "test case %s", id)
	}
	return *tc, nil
}

func (repo *EvalDbRepository) GetTestCaseWithVersions(ctx context.Context, exec Executor, id uuid.UUID) (models.TestCase, error) {
	tc, err := repo.GetTestCaseById(ctx, exec, id)
	if err != nil {
		return models.TestCase{}, err
	}

	tc.Versions, err = repo.ListTestCaseVersions(ctx, exec, id)
	if err != nil {
		return models.TestCase{}, err
	}
	return tc, nil
}

func (repo *EvalDbRepository) ListTestCases(ctx context.Context, exec Executor, filters models.TestCaseFilters) ([]models.TestCase, error) {
	query := selectTestCases().OrderBy("created_at DESC", "id")

	if filters.SuiteId != nil {
		query = query.Where(squirrel.Eq{"suite_id": *filters.SuiteId})
	}
	if filters.Status != nil {
		query = query.Where(squirrel.Eq{"status": *filters.Status})
	}

	return SqlToListOfModels(ctx, exec, query, dbmodels.AdaptTestCase)
}

func (repo *EvalDbRepository) ListTestCasesByIds(ctx context.Context, exec Executor, ids []uuid.UUID) ([]models.TestCase, error) {
	if len(ids) == 0 {
		return []models.TestCase{}, nil
	}

	return SqlToListOfModels(ctx, exec,
		selectTestCases().
			Where(squirrel.Eq{"id": ids}).
			OrderBy("created_at", "id"),
		dbmodels.AdaptTestCase,
	)
}

func (repo *EvalDbRepository) ListTestCaseVersions(ctx context.Context, exec Executor, testCaseId uuid.UUID) ([]models.TestCaseVersion, error) {
	return SqlToListOfModels(ctx, exec,
		NewQueryBuilder().
			Select(dbmodels.SelectTestCaseVersionColumns...).
			From(dbmodels.TABLE_TEST_CASE_VERSIONS).
			Where(squirrel.Eq{"test_case_id": testCaseId}).
			OrderBy("version_number"),
		dbmodels.AdaptTestCaseVersion,
	)
}

func (repo *EvalDbRepository) GetTestCaseVersion(ctx context.Context, exec Executor,
	testCaseId uuid.UUID, versionNumber int,
) (models.TestCaseVersion, error) {
	return SqlToModel(ctx, exec,
		NewQueryBuilder().
			Select(dbmodels.SelectTestCaseVersionColumns...).
			From(dbmodels.TABLE_TEST_CASE_VERSIONS).
			Where(squirrel.Eq{"test_case_id": testCaseId, "version_number": versionNumber}),
		dbmodels.AdaptTestCaseVersion,
	)
}

// CreateTestCase inserts the test case and its first version. Call it inside a transaction.
func (repo *EvalDbRepository) CreateTestCase(ctx context.Context, exec Executor, tc models.TestCaseToCreate) error {
	var errorDetail *string
	if tc.ErrorDetail != "" {
		errorDetail = &tc.ErrorDetail
	}

	_, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Insert(dbmodels.TABLE_TEST_CASES).
			Columns(
				"id",
				"suite_id",
				"name",
				"description",
				"type",
				"status",
				"source_type",
				"original_input",
				"current_version",
				"error_detail",
			).
			Values(
				tc.Id,
				tc.SuiteId,
				tc.Name,
				tc.Description,
				tc.Type,
				tc.Status,
				tc.SourceType,
				tc.OriginalInput,
				1,
				errorDetail,
			),
	)
	if err != nil {
		return err
	}

	return repo.insertTestCaseVersion(ctx, exec, tc.Id, 1, tc.FirstVersion)
}

func (repo *EvalDbRepository) insertTestCaseVersion(ctx context.Context, exec Executor,
	testCaseId uuid.UUID, versionNumber int, version models.TestCaseVersionToCreate,
) error {
	content := version.Content
	if len(content) == 0 {
		content = []byte("{}")
	}

	_, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Insert(dbmodels.TABLE_TEST_CASE_VERSIONS).
			Columns(
				"id",
				"test_case_id",
				"version_number",
				"content",
				"prompt",
				"raw_response",
				"feedback",
				"created_by",
			).
			Values(
				uuid.Must(uuid.NewV7()),
				testCaseId,
				versionNumber,
				content,
				version.Prompt,
				version.RawResponse,
				version.Feedback,
				version.CreatedBy,
			),
	)
	if IsUniqueViolationError(err) {
		return errors.Wrapf(models.ErrConcurrentModification, "version %d of test case %s already exists", versionNumber, testCaseId)
	}
	return err
}

// UpdateTestCaseStatus applies the update as a compare-and-swap on (status, current_version). It
// returns ErrConcurrentModification when the row moved since it was read. When a new version is
// given, it is inserted with the incremented version number: run it inside a transaction.
func (repo *EvalDbRepository) UpdateTestCaseStatus(ctx context.Context, exec Executor,
	update models.TestCaseStatusUpdate,
) (models.TestCase, error) {
	query := NewQueryBuilder().Update(dbmodels.TABLE_TEST_CASES).
		Set("status", update.NewStatus).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{
			"id":              update.Id,
			"status":          update.ExpectedStatus,
			"current_version": update.ExpectedVersion,
		}).
		Where("deleted_at IS NULL").
		Suffix("RETURNING " + joinColumns(dbmodels.SelectTestCaseColumns))

	if update.NewVersion != nil {
		query = query.Set("current_version", squirrel.Expr("current_version + 1"))
	}
	if update.ErrorDetail != nil {
		query = query.Set("error_detail", *update.ErrorDetail)
	} else if update.NewStatus != models.TestCaseStatusError {
		query = query.Set("error_detail", nil)
	}

	updated, err := SqlToOptionalModel(ctx, exec, query, dbmodels.AdaptTestCase)
	if err != nil {
		return models.TestCase{}, err
	}
	if updated == nil {
		return models.TestCase{}, errors.Wrapf(models.ErrConcurrentModification,
			"test case %s is no longer in status %s at version %d", update.Id, update.ExpectedStatus, update.ExpectedVersion)
	}

	if update.NewVersion != nil {
		if err := repo.insertTestCaseVersion(ctx, exec, update.Id, updated.CurrentVersion, *update.NewVersion); err != nil {
			return models.TestCase{}, err
		}
	}
	return *updated, nil
}

func (repo *EvalDbRepository) SoftDeleteTestCase(ctx context.Context, exec Executor, id uuid.UUID) error {
	affected, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Update(dbmodels.TABLE_TEST_CASES).
			Set("deleted_at", squirrel.Expr("NOW()")).
			Set("updated_at", squirrel.Expr("NOW()")).
			Where(squirrel.Eq{"id": id}).
			Where("deleted_at IS NULL"),
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(models.ErrTestCaseNotFound, "test case %s", id)
	}
	return nil
}

func (repo *EvalDbRepository) CreateApprovalRecord(ctx context.Context, exec Executor, record models.ApprovalRecordToCreate) error {
	_, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Insert(dbmodels.TABLE_APPROVAL_RECORDS).
			Columns(
				"id",
				"test_case_id",
				"version_number",
				"action",
				"actor",
				"feedback",
			).
			Values(
				uuid.Must(uuid.NewV7()),
				record.TestCaseId,
				record.VersionNumber,
				record.Action,
				record.Actor,
				record.Feedback,
			),
	)
	return err
}

func (repo *EvalDbRepository) ListApprovalRecords(ctx context.Context, exec Executor, testCaseId uuid.UUID) ([]models.ApprovalRecord, error) {
	return SqlToListOfModels(ctx, exec,
		NewQueryBuilder().
			Select(dbmodels.SelectApprovalRecordColumns...).
			From(dbmodels.TABLE_APPROVAL_RECORDS).
			Where(squirrel.Eq{"test_case_id": testCaseId}).
			OrderBy("created_at", "id"),
		dbmodels.AdaptApprovalRecord,
	)
}

func (repo *EvalDbRepository) GetGenerationRequest(ctx context.Context, exec Executor, digest string) (*models.GenerationRequest, error) {
	return SqlToOptionalModel(ctx, exec,
		NewQueryBuilder().
			Select(dbmodels.SelectGenerationRequestColumns...).
			From(dbmodels.TABLE_GENERATION_REQUESTS).
			Where(squirrel.Eq{"digest": digest}),
		dbmodels.AdaptGenerationRequest,
	)
}

// UpsertGenerationRequest records the cases produced for a digest, replacing a previous record whose
// cases were all deleted since.
func (repo *EvalDbRepository) UpsertGenerationRequest(ctx context.Context, exec Executor, req models.GenerationRequest) error {
	ids := pure_utils.Map(req.TestCaseIds, uuid.UUID.String)

	_, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Insert(dbmodels.TABLE_GENERATION_REQUESTS).
			Columns("digest", "suite_id", "source_type", "test_case_ids").
			Values(req.Digest, req.SuiteId, req.SourceType, ids).
			Suffix("ON CONFLICT (digest) DO UPDATE SET test_case_ids = EXCLUDED.test_case_ids, created_at = NOW()"),
	)
	return err
}
