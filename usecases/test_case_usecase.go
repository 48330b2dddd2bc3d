package usecases

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/usecases/executor_factory"
	"github.com/checkmarble/agent-eval-backend/usecases/generation"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const maxFallbackNameLength = 80

type TestCaseRepository interface {
	GetTestCaseById(ctx context.Context, exec repositories.Executor, id uuid.UUID) (models.TestCase, error)
	GetTestCaseWithVersions(ctx context.Context, exec repositories.Executor, id uuid.UUID) (models.TestCase, error)
	ListTestCases(ctx context.Context, exec repositories.Executor, filters models.TestCaseFilters) ([]models.TestCase, error)
	ListTestCasesByIds(ctx context.Context, exec repositories.Executor, ids []uuid.UUID) ([]models.TestCase, error)
	ListTestCaseVersions(ctx context.Context, exec repositories.Executor, testCaseId uuid.UUID) ([]models.TestCaseVersion, error)
	GetTestCaseVersion(ctx context.Context, exec repositories.Executor, testCaseId uuid.UUID,
		versionNumber int) (models.TestCaseVersion, error)
	CreateTestCase(ctx context.Context, exec repositories.Executor, tc models.TestCaseToCreate) error
	UpdateTestCaseStatus(ctx context.Context, exec repositories.Executor, update models.TestCaseStatusUpdate) (models.TestCase, error)
	SoftDeleteTestCase(ctx context.Context, exec repositories.Executor, id uuid.UUID) error
	CreateApprovalRecord(ctx context.Context, exec repositories.Executor, record models.ApprovalRecordToCreate) error
	ListApprovalRecords(ctx context.Context, exec repositories.Executor, testCaseId uuid.UUID) ([]models.ApprovalRecord, error)
	GetGenerationRequest(ctx context.Context, exec repositories.Executor, digest string) (*models.GenerationRequest, error)
	UpsertGenerationRequest(ctx context.Context, exec repositories.Executor, req models.GenerationRequest) error
}

type regenerationTaskQueue interface {
	EnqueueTestCaseRegenerationTask(ctx context.Context, tx repositories.Transaction, args models.TestCaseRegenerationArgs) error
}

type TestCaseGenerator interface {
	GenerateFromDescription(ctx context.Context, input models.GenerateFromDescriptionInput) (models.GeneratedTestCase, error)
	GenerateFromDocument(ctx context.Context, input models.GenerateFromDocumentInput) ([]models.DocumentGenerationItem, error)
	Regenerate(ctx context.Context, input models.RegenerationInput) (models.GeneratedTestCase, error)
}

type documentExtractor interface {
	DetectContentType(data []byte) string
	ExtractText(ctx context.Context, data []byte) (string, error)
}

type documentStore interface {
	Enabled() bool
	Store(ctx context.Context, suiteId uuid.UUID, fileName, contentType string, data []byte) (string, error)
}

type TestCaseUsecase struct {
	executorFactory     executor_factory.ExecutorFactory
	transactionFactory  executor_factory.TransactionFactory
	repository          TestCaseRepository
	taskQueueRepository regenerationTaskQueue
	generator           TestCaseGenerator
	documentExtractor   documentExtractor
	documentStore       documentStore
	reviewPolicy        models.ReviewPolicy
}

func (uc TestCaseUsecase) GetTestCase(ctx context.Context, id uuid.UUID) (models.TestCase, error) {
	return uc.repository.GetTestCaseWithVersions(ctx, uc.executorFactory.NewExecutor(), id)
}

func (uc TestCaseUsecase) ListTestCases(ctx context.Context, filters models.TestCaseFilters) ([]models.TestCase, error) {
	return uc.repository.ListTestCases(ctx, uc.executorFactory.NewExecutor(), filters)
}

func (uc TestCaseUsecase) ListTestCaseVersions(ctx context.Context, id uuid.UUID) ([]models.TestCaseVersion, error) {
	exec := uc.executorFactory.NewExecutor()
	if _, err := uc.repository.GetTestCaseById(ctx, exec, id); err != nil {
		return nil, err
	}
	return uc.repository.ListTestCaseVersions(ctx, exec, id)
}

func (uc TestCaseUsecase) ListApprovalRecords(ctx context.Context, id uuid.UUID) ([]models.ApprovalRecord, error) {
	exec := uc.executorFactory.NewExecutor()
	if _, err := uc.repository.GetTestCaseById(ctx, exec, id); err != nil {
		return nil, err
	}
	return uc.repository.ListApprovalRecords(ctx, exec, id)
}

func (uc TestCaseUsecase) DeleteTestCase(ctx context.Context, id uuid.UUID) error {
	return uc.repository.SoftDeleteTestCase(ctx, uc.executorFactory.NewExecutor(), id)
}

// GenerateFromDescription creates a draft test case from a free text requirement. A request already
// served returns the recorded test case without calling the generator. When the generation fails, the
// test case is still created in the error status and the returned error wraps ErrGenerationFailed.
func (uc TestCaseUsecase) GenerateFromDescription(ctx context.Context, input models.GenerateFromDescriptionInput) (
	models.TestCase, error,
) {
	if strings.TrimSpace(input.Description) == "" {
		return models.TestCase{}, errors.Wrap(models.BadParameterError, "description is required")
	}
	if uc.generator == nil {
		return models.TestCase{}, errors.New("test case generation is not configured")
	}
	logger := utils.LoggerFromContext(ctx)
	exec := uc.executorFactory.NewExecutor()

	digest, err := generation.DescriptionDigest(input)
	if err != nil {
		return models.TestCase{}, err
	}
	recorded, found, err := uc.recordedGeneration(ctx, exec, digest)
	if err != nil {
		return models.TestCase{}, err
	}
	if found && len(recorded) > 0 {
		logger.DebugContext(ctx, "generation request already served", "digest", digest)
		return uc.repository.GetTestCaseWithVersions(ctx, exec, recorded[0].Id)
	}

	generated, genErr := uc.generator.GenerateFromDescription(ctx, input)
	if genErr != nil && !errors.Is(genErr, models.ErrGenerationFailed) {
		return models.TestCase{}, genErr
	}

	toCreate := uc.testCaseToCreate(ctx, input.SuiteId, models.TestCaseSourceText, input.Description, generated, genErr)
	err = uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		if err := uc.repository.CreateTestCase(ctx, tx, toCreate); err != nil {
			return err
		}
		if genErr != nil {
			return nil
		}
		return uc.repository.UpsertGenerationRequest(ctx, tx, models.GenerationRequest{
			Digest:      digest,
			SuiteId:     input.SuiteId,
			SourceType:  models.TestCaseSourceText,
			TestCaseIds: []uuid.UUID{toCreate.Id},
		})
	})
	if err != nil {
		return models.TestCase{}, err
	}
	trackGeneration(models.TestCaseSourceText, genErr)

	if genErr != nil {
		logger.WarnContext(ctx, "test case generation failed", "test_case_id", toCreate.Id, "error", genErr.Error())
		return models.TestCase{}, errors.Wrapf(genErr, "test case %s recorded in error status", toCreate.Id)
	}
	return uc.repository.GetTestCaseWithVersions(ctx, exec, toCreate.Id)
}

// GenerateFromUpload extracts the text of an uploaded document, archives the document if a bucket is
// configured, and generates the test cases it describes.
func (uc TestCaseUsecase) GenerateFromUpload(ctx context.Context, suiteId uuid.UUID, fileName string, data []byte) (
	[]models.TestCase, error,
) {
	text, err := uc.documentExtractor.ExtractText(ctx, data)
	if err != nil {
		return nil, err
	}

	if uc.documentStore != nil && uc.documentStore.Enabled() {
		key, err := uc.documentStore.Store(ctx, suiteId, fileName, uc.documentExtractor.DetectContentType(data), data)
		if err != nil {
			// the archive is informative, generation goes on
			utils.LogAndReportSentryError(ctx, errors.Wrap(err, "could not archive uploaded document"))
		} else {
			utils.LoggerFromContext(ctx).InfoContext(ctx, "uploaded document archived", "key", key)
		}
	}

	return uc.GenerateFromDocument(ctx, models.GenerateFromDocumentInput{
		SuiteId:       suiteId,
		ExtractedText: text,
		FileName:      fileName,
	})
}

// GenerateFromDocument creates one test case per requirement found in the text. A requirement that
// cannot be generated gives a test case in the error status, it does not fail the others.
func (uc TestCaseUsecase) GenerateFromDocument(ctx context.Context, input models.GenerateFromDocumentInput) (
	[]models.TestCase, error,
) {
	if strings.TrimSpace(input.ExtractedText) == "" {
		return nil, errors.Wrap(models.BadParameterError, "document text is empty")
	}
	if uc.generator == nil {
		return nil, errors.New("test case generation is not configured")
	}
	exec := uc.executorFactory.NewExecutor()

	digest, err := generation.DocumentDigest(input)
	if err != nil {
		return nil, err
	}
	recorded, found, err := uc.recordedGeneration(ctx, exec, digest)
	if err != nil {
		return nil, err
	}
	if found {
		return recorded, nil
	}

	items, err := uc.generator.GenerateFromDocument(ctx, input)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(items))
	failed := 0
	err = uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		for _, item := range items {
			if item.Err != nil && !errors.Is(item.Err, models.ErrGenerationFailed) {
				return item.Err
			}
			toCreate := uc.testCaseToCreate(ctx, input.SuiteId, models.TestCaseSourceDocument,
				item.Requirement.Description, item.Generated, item.Err)
			if err := uc.repository.CreateTestCase(ctx, tx, toCreate); err != nil {
				return err
			}
			ids = append(ids, toCreate.Id)
			if item.Err != nil {
				failed++
			}
		}
		// a partially failed document can be submitted again
		if failed > 0 {
			return nil
		}
		return uc.repository.UpsertGenerationRequest(ctx, tx, models.GenerationRequest{
			Digest:      digest,
			SuiteId:     input.SuiteId,
			SourceType:  models.TestCaseSourceDocument,
			TestCaseIds: ids,
		})
	})
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		trackGeneration(models.TestCaseSourceDocument, item.Err)
	}
	if failed > 0 {
		utils.LoggerFromContext(ctx).WarnContext(ctx, "some requirements of the document could not be generated",
			"failed", failed, "total", len(items))
	}

	return uc.repository.ListTestCasesByIds(ctx, exec, ids)
}

// recordedGeneration returns the test cases recorded for a digest. A record whose test cases were all
// deleted since is ignored.
func (uc TestCaseUsecase) recordedGeneration(ctx context.Context, exec repositories.Executor, digest string) (
	[]models.TestCase, bool, error,
) {
	req, err := uc.repository.GetGenerationRequest(ctx, exec, digest)
	if err != nil || req == nil {
		return nil, false, err
	}
	if len(req.TestCaseIds) == 0 {
		return []models.TestCase{}, true, nil
	}

	testCases, err := uc.repository.ListTestCasesByIds(ctx, exec, req.TestCaseIds)
	if err != nil {
		return nil, false, err
	}
	if len(testCases) == 0 {
		return nil, false, nil
	}
	return testCases, true, nil
}

func (uc TestCaseUsecase) testCaseToCreate(
	ctx context.Context,
	suiteId uuid.UUID,
	sourceType models.TestCaseSourceType,
	originalInput string,
	generated models.GeneratedTestCase,
	genErr error,
) models.TestCaseToCreate {
	tc := models.TestCaseToCreate{
		Id:            uuid.Must(uuid.NewV7()),
		SuiteId:       suiteId,
		Name:          generated.Name,
		Description:   generated.Description,
		Type:          generated.Type,
		Status:        models.TestCaseStatusDraft,
		SourceType:    sourceType,
		OriginalInput: originalInput,
		FirstVersion: models.TestCaseVersionToCreate{
			Content:     generated.Content,
			Prompt:      generated.Prompt,
			RawResponse: generated.RawResponse,
			CreatedBy:   utils.ActorFromContext(ctx),
		},
	}
	if tc.Name == "" {
		tc.Name = fallbackName(originalInput)
	}
	if tc.Description == "" {
		tc.Description = strings.TrimSpace(originalInput)
	}
	if tc.Type == "" {
		tc.Type = models.TestCaseTypeUnspecified
	}
	if genErr != nil {
		tc.Status = models.TestCaseStatusError
		tc.ErrorDetail = genErr.Error()
		tc.FirstVersion.Content = json.RawMessage(`{}`)
	}
	return tc
}

// ApplyApprovalAction applies a reviewer action. The status update, the approval record and the
// regeneration job of a retry are written in the same transaction.
func (uc TestCaseUsecase) ApplyApprovalAction(ctx context.Context, input models.ApprovalInput) (models.TestCase, error) {
	if input.Action == models.ApprovalActionRetry && strings.TrimSpace(input.Feedback) == "" {
		trackApproval(input.Action, models.ErrRetryRequiresFeedback)
		return models.TestCase{}, models.ErrRetryRequiresFeedback
	}
	actor := utils.ActorFromContext(ctx)

	err := uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		tc, err := uc.repository.GetTestCaseById(ctx, tx, input.TestCaseId)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion(tc, input.ExpectedVersion); err != nil {
			return err
		}
		if input.ExpectedStatus != nil && *input.ExpectedStatus != tc.Status {
			return errors.Wrapf(models.ErrConcurrentModification,
				"test case %s is %s, expected %s", tc.Id, tc.Status, *input.ExpectedStatus)
		}

		next, err := models.NextStatus(tc.Status, input.Action, uc.reviewPolicy.ForSuite(tc.SuiteId))
		if err != nil {
			return err
		}

		if _, err := uc.repository.UpdateTestCaseStatus(ctx, tx, models.TestCaseStatusUpdate{
			Id:              tc.Id,
			ExpectedStatus:  tc.Status,
			ExpectedVersion: tc.CurrentVersion,
			NewStatus:       next,
		}); err != nil {
			return err
		}

		if err := uc.repository.CreateApprovalRecord(ctx, tx, models.ApprovalRecordToCreate{
			TestCaseId:    tc.Id,
			VersionNumber: tc.CurrentVersion,
			Action:        input.Action,
			Actor:         actor,
			Feedback:      input.Feedback,
		}); err != nil {
			return err
		}

		if input.Action != models.ApprovalActionRetry {
			return nil
		}
		return uc.taskQueueRepository.EnqueueTestCaseRegenerationTask(ctx, tx, models.TestCaseRegenerationArgs{
			TestCaseId:  tc.Id,
			FromVersion: tc.CurrentVersion,
			Feedback:    input.Feedback,
			Actor:       actor,
		})
	})
	trackApproval(input.Action, err)
	if err != nil {
		return models.TestCase{}, err
	}

	return uc.repository.GetTestCaseWithVersions(ctx, uc.executorFactory.NewExecutor(), input.TestCaseId)
}

// RequestReview moves a draft to pending_review.
func (uc TestCaseUsecase) RequestReview(ctx context.Context, id uuid.UUID, expectedVersion *int) (models.TestCase, error) {
	return uc.simpleTransition(ctx, id, expectedVersion, models.ApprovalActionRequestReview,
		models.CanRequestReview, models.TestCaseStatusPendingReview)
}

// Submit marks an approved test case as submitted to the agent platform.
func (uc TestCaseUsecase) Submit(ctx context.Context, id uuid.UUID, expectedVersion *int) (models.TestCase, error) {
	return uc.simpleTransition(ctx, id, expectedVersion, models.ApprovalActionSubmit,
		models.CanSubmit, models.TestCaseStatusSubmitted)
}

func (uc TestCaseUsecase) simpleTransition(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion *int,
	action models.ApprovalAction,
	allowed func(models.TestCaseStatus) bool,
	next models.TestCaseStatus,
) (models.TestCase, error) {
	err := uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		tc, err := uc.repository.GetTestCaseById(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion(tc, expectedVersion); err != nil {
			return err
		}
		if !allowed(tc.Status) {
			return errors.Wrapf(models.ErrInvalidTransition, "cannot %s a test case in status %s", action, tc.Status)
		}

		if _, err := uc.repository.UpdateTestCaseStatus(ctx, tx, models.TestCaseStatusUpdate{
			Id:              tc.Id,
			ExpectedStatus:  tc.Status,
			ExpectedVersion: tc.CurrentVersion,
			NewStatus:       next,
		}); err != nil {
			return err
		}

		return uc.repository.CreateApprovalRecord(ctx, tx, models.ApprovalRecordToCreate{
			TestCaseId:    tc.Id,
			VersionNumber: tc.CurrentVersion,
			Action:        action,
			Actor:         utils.ActorFromContext(ctx),
		})
	})
	trackApproval(action, err)
	if err != nil {
		return models.TestCase{}, err
	}

	return uc.repository.GetTestCaseWithVersions(ctx, uc.executorFactory.NewExecutor(), id)
}

// RegenerateTestCase is run by the regeneration job queued by a retry action. A job that no longer
// matches the test case (status or version moved) does nothing. Only transient failures are returned,
// so that the job is retried.
func (uc TestCaseUsecase) RegenerateTestCase(ctx context.Context, args models.TestCaseRegenerationArgs) error {
	if uc.generator == nil {
		return errors.New("test case generation is not configured")
	}
	ctx, logger := utils.LoggerWithAttrs(ctx, "test_case_id", args.TestCaseId, "from_version", args.FromVersion)
	exec := uc.executorFactory.NewExecutor()

	tc, err := uc.repository.GetTestCaseById(ctx, exec, args.TestCaseId)
	if errors.Is(err, models.NotFoundError) {
		logger.InfoContext(ctx, "test case deleted before regeneration")
		return nil
	}
	if err != nil {
		return err
	}
	if !models.CanRegenerate(tc.Status) || tc.CurrentVersion != args.FromVersion {
		logger.InfoContext(ctx, "stale regeneration job ignored", "status", tc.Status, "version", tc.CurrentVersion)
		return nil
	}

	previous, err := uc.repository.GetTestCaseVersion(ctx, exec, tc.Id, tc.CurrentVersion)
	if err != nil {
		return err
	}

	generated, genErr := uc.generator.Regenerate(ctx, models.RegenerationInput{
		OriginalInput: tc.OriginalInput,
		Type:          tc.Type,
		Feedback:      args.Feedback,
		PreviousJSON:  previous.Content,
	})
	if genErr != nil && !errors.Is(genErr, models.ErrGenerationFailed) {
		return genErr
	}

	update := models.TestCaseStatusUpdate{
		Id:              tc.Id,
		ExpectedStatus:  models.TestCaseStatusRetry,
		ExpectedVersion: tc.CurrentVersion,
	}
	if genErr != nil {
		detail := genErr.Error()
		update.NewStatus = models.TestCaseStatusError
		update.ErrorDetail = &detail
	} else {
		update.NewStatus = models.TestCaseStatusDraft
		update.NewVersion = &models.TestCaseVersionToCreate{
			Content:     generated.Content,
			Prompt:      generated.Prompt,
			RawResponse: generated.RawResponse,
			Feedback:    args.Feedback,
			CreatedBy:   args.Actor,
		}
	}

	err = uc.transactionFactory.Transaction(ctx, func(tx repositories.Transaction) error {
		_, err := uc.repository.UpdateTestCaseStatus(ctx, tx, update)
		return err
	})
	if errors.Is(err, models.ErrConcurrentModification) {
		logger.InfoContext(ctx, "test case moved during regeneration, result dropped")
		return nil
	}
	if err != nil {
		return err
	}

	trackGeneration("regeneration", genErr)
	if genErr != nil {
		logger.WarnContext(ctx, "regeneration failed, test case moved to error", "error", genErr.Error())
	}
	return nil
}

func checkExpectedVersion(tc models.TestCase, expectedVersion *int) error {
	if expectedVersion != nil && *expectedVersion != tc.CurrentVersion {
		return errors.Wrapf(models.ErrConcurrentModification,
			"test case %s is at version %d, expected %d", tc.Id, tc.CurrentVersion, *expectedVersion)
	}
	return nil
}

func fallbackName(input string) string {
	name := strings.Join(strings.Fields(input), " ")
	if utf8.RuneCountInString(name) <= maxFallbackNameLength {
		return name
	}
	return string([]rune(name)[:maxFallbackNameLength]) + "..."
}

func trackGeneration[S ~string](source S, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	utils.MetricGenerations.WithLabelValues(string(source), result).Inc()
}

func trackApproval(action models.ApprovalAction, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, models.ConflictError):
		result = "conflict"
	case errors.Is(err, models.BadParameterError):
		result = "rejected"
	default:
		result = "error"
	}
	utils.MetricApprovalActions.WithLabelValues(string(action), result).Inc()
}
