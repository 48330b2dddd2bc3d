package usecases

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/checkmarble/agent-eval-backend/mocks"
	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/usecases/executor_factory"
	"github.com/checkmarble/agent-eval-backend/usecases/generation"
	"github.com/checkmarble/agent-eval-backend/utils"
)

type TestCaseUsecaseTestSuite struct {
	suite.Suite
	repository        *mocks.TestCaseRepository
	taskQueue         *mocks.TaskQueueRepository
	generator         *mocks.TestCaseGenerator
	documentExtractor *mocks.DocumentExtractor
	documentStore     *mocks.DocumentStore
	exec              executor_factory.ExecutorFactoryStub
	reviewPolicy      models.ReviewPolicy

	suiteId    uuid.UUID
	testCaseId uuid.UUID
	testCase   models.TestCase
	ctx        context.Context
}

func (suite *TestCaseUsecaseTestSuite) SetupTest() {
	suite.repository = new(mocks.TestCaseRepository)
	suite.taskQueue = new(mocks.TaskQueueRepository)
	suite.generator = new(mocks.TestCaseGenerator)
	suite.documentExtractor = new(mocks.DocumentExtractor)
	suite.documentStore = new(mocks.DocumentStore)
	suite.exec = executor_factory.NewExecutorFactoryStub()
	suite.reviewPolicy = models.ReviewPolicy{}

	suite.suiteId = uuid.MustParse("0192e1a0-0000-7000-8000-000000000001")
	suite.testCaseId = uuid.MustParse("0192e1a0-0000-7000-8000-000000000002")
	suite.testCase = models.TestCase{
		Id:             suite.testCaseId,
		SuiteId:        suite.suiteId,
		Name:           "Block a lost card",
		Type:           models.TestCaseTypeConversationFlow,
		Status:         models.TestCaseStatusDraft,
		SourceType:     models.TestCaseSourceText,
		OriginalInput:  "the agent blocks a lost card",
		CurrentVersion: 1,
	}
	suite.ctx = utils.StoreActorInContext(context.Background(), "reviewer@example.com")
}

func (suite *TestCaseUsecaseTestSuite) makeUsecase() TestCaseUsecase {
	return TestCaseUsecase{
		executorFactory:     suite.exec,
		transactionFactory:  suite.exec,
		repository:          suite.repository,
		taskQueueRepository: suite.taskQueue,
		generator:           suite.generator,
		documentExtractor:   suite.documentExtractor,
		documentStore:       suite.documentStore,
		reviewPolicy:        suite.reviewPolicy,
	}
}

func (suite *TestCaseUsecaseTestSuite) AssertExpectations() {
	t := suite.T()
	suite.repository.AssertExpectations(t)
	suite.taskQueue.AssertExpectations(t)
	suite.generator.AssertExpectations(t)
	suite.documentExtractor.AssertExpectations(t)
	suite.documentStore.AssertExpectations(t)
	suite.NoError(suite.exec.Mock.ExpectationsWereMet())
}

func (suite *TestCaseUsecaseTestSuite) descriptionInput() models.GenerateFromDescriptionInput {
	return models.GenerateFromDescriptionInput{
		SuiteId:     suite.suiteId,
		Description: "the agent blocks a lost card",
	}
}

// GenerateFromDescription
func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromDescription_nominal() {
	input := suite.descriptionInput()
	generated := models.GeneratedTestCase{
		Name:    "Block a lost card",
		Type:    models.TestCaseTypeConversationFlow,
		Content: json.RawMessage(`{"golden": {"turns": []}}`),
		Prompt:  "prompt",
	}

	suite.repository.On("GetGenerationRequest", suite.ctx, mock.Anything, mock.AnythingOfType("string")).
		Return((*models.GenerationRequest)(nil), nil)
	suite.generator.On("GenerateFromDescription", suite.ctx, input).Return(generated, nil)
	suite.exec.Mock.ExpectBegin()
	var createdId uuid.UUID
	suite.repository.On("CreateTestCase", suite.ctx, mock.Anything, mock.MatchedBy(func(tc models.TestCaseToCreate) bool {
		createdId = tc.Id
		return tc.Status == models.TestCaseStatusDraft &&
			tc.SuiteId == suite.suiteId &&
			tc.Name == "Block a lost card" &&
			tc.OriginalInput == input.Description &&
			string(tc.FirstVersion.Content) == `{"golden": {"turns": []}}` &&
			tc.FirstVersion.CreatedBy == "reviewer@example.com"
	})).Return(nil)
	suite.repository.On("UpsertGenerationRequest", suite.ctx, mock.Anything, mock.MatchedBy(func(req models.GenerationRequest) bool {
		return len(req.TestCaseIds) == 1 && req.TestCaseIds[0] == createdId && req.SourceType == models.TestCaseSourceText
	})).Return(nil)
	suite.exec.Mock.ExpectCommit()
	suite.repository.On("GetTestCaseWithVersions", suite.ctx, mock.Anything, mock.AnythingOfType("uuid.UUID")).
		Return(suite.testCase, nil)

	tc, err := suite.makeUsecase().GenerateFromDescription(suite.ctx, input)

	suite.NoError(err)
	suite.Equal(suite.testCase, tc)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromDescription_generationFailed() {
	input := suite.descriptionInput()
	genErr := errors.Wrap(models.ErrGenerationFailed, "model output is not a json object")

	suite.repository.On("GetGenerationRequest", suite.ctx, mock.Anything, mock.AnythingOfType("string")).
		Return((*models.GenerationRequest)(nil), nil)
	suite.generator.On("GenerateFromDescription", suite.ctx, input).
		Return(models.GeneratedTestCase{Type: models.TestCaseTypeTransactional, Prompt: "prompt"}, genErr)
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("CreateTestCase", suite.ctx, mock.Anything, mock.MatchedBy(func(tc models.TestCaseToCreate) bool {
		return tc.Status == models.TestCaseStatusError &&
			tc.ErrorDetail != "" &&
			string(tc.FirstVersion.Content) == `{}` &&
			tc.Name == input.Description &&
			tc.Type == models.TestCaseTypeTransactional
	})).Return(nil)
	suite.exec.Mock.ExpectCommit()

	_, err := suite.makeUsecase().GenerateFromDescription(suite.ctx, input)

	suite.ErrorIs(err, models.ErrGenerationFailed)
	suite.ErrorIs(err, models.UpstreamError)
	suite.repository.AssertNotCalled(suite.T(), "UpsertGenerationRequest", mock.Anything, mock.Anything, mock.Anything)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromDescription_alreadyServed() {
	input := suite.descriptionInput()
	digest, err := generation.DescriptionDigest(input)
	suite.Require().NoError(err)

	suite.repository.On("GetGenerationRequest", suite.ctx, mock.Anything, digest).
		Return(&models.GenerationRequest{Digest: digest, TestCaseIds: []uuid.UUID{suite.testCaseId}}, nil)
	suite.repository.On("ListTestCasesByIds", suite.ctx, mock.Anything, []uuid.UUID{suite.testCaseId}).
		Return([]models.TestCase{suite.testCase}, nil)
	suite.repository.On("GetTestCaseWithVersions", suite.ctx, mock.Anything, suite.testCaseId).
		Return(suite.testCase, nil)

	tc, err := suite.makeUsecase().GenerateFromDescription(suite.ctx, input)

	suite.NoError(err)
	suite.Equal(suite.testCaseId, tc.Id)
	suite.generator.AssertNotCalled(suite.T(), "GenerateFromDescription", mock.Anything, mock.Anything)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromDescription_recordedCasesDeleted() {
	input := suite.descriptionInput()

	suite.repository.On("GetGenerationRequest", suite.ctx, mock.Anything, mock.AnythingOfType("string")).
		Return(&models.GenerationRequest{TestCaseIds: []uuid.UUID{uuid.New()}}, nil)
	suite.repository.On("ListTestCasesByIds", suite.ctx, mock.Anything, mock.Anything).
		Return([]models.TestCase{}, nil)
	suite.generator.On("GenerateFromDescription", suite.ctx, input).
		Return(models.GeneratedTestCase{Name: "again", Content: json.RawMessage(`{}`)}, nil)
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("CreateTestCase", suite.ctx, mock.Anything, mock.Anything).Return(nil)
	suite.repository.On("UpsertGenerationRequest", suite.ctx, mock.Anything, mock.Anything).Return(nil)
	suite.exec.Mock.ExpectCommit()
	suite.repository.On("GetTestCaseWithVersions", suite.ctx, mock.Anything, mock.Anything).Return(suite.testCase, nil)

	_, err := suite.makeUsecase().GenerateFromDescription(suite.ctx, input)

	suite.NoError(err)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromDescription_emptyDescription() {
	_, err := suite.makeUsecase().GenerateFromDescription(suite.ctx, models.GenerateFromDescriptionInput{
		SuiteId:     suite.suiteId,
		Description: "  \n",
	})

	suite.ErrorIs(err, models.BadParameterError)
	suite.AssertExpectations()
}

// GenerateFromDocument
func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromUpload_partialFailure() {
	data := []byte("requirements")
	items := []models.DocumentGenerationItem{
		{
			Requirement: models.Requirement{Description: "block a card"},
			Generated:   models.GeneratedTestCase{Name: "block", Content: json.RawMessage(`{"a":1}`)},
		},
		{
			Requirement: models.Requirement{Description: "order a card"},
			Err:         errors.Wrap(models.ErrGenerationFailed, "status 400"),
		},
	}

	suite.documentExtractor.On("ExtractText", suite.ctx, data).Return("requirements text", nil)
	suite.documentStore.On("Enabled").Return(true)
	suite.documentExtractor.On("DetectContentType", data).Return("text/plain; charset=utf-8")
	suite.documentStore.On("Store", suite.ctx, suite.suiteId, "requirements.txt", "text/plain; charset=utf-8", data).
		Return("suite/file/requirements.txt", nil)
	suite.repository.On("GetGenerationRequest", suite.ctx, mock.Anything, mock.AnythingOfType("string")).
		Return((*models.GenerationRequest)(nil), nil)
	suite.generator.On("GenerateFromDocument", suite.ctx, models.GenerateFromDocumentInput{
		SuiteId:       suite.suiteId,
		ExtractedText: "requirements text",
		FileName:      "requirements.txt",
	}).Return(items, nil)
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("CreateTestCase", suite.ctx, mock.Anything, mock.MatchedBy(func(tc models.TestCaseToCreate) bool {
		return tc.Status == models.TestCaseStatusDraft && tc.SourceType == models.TestCaseSourceDocument
	})).Return(nil).Once()
	suite.repository.On("CreateTestCase", suite.ctx, mock.Anything, mock.MatchedBy(func(tc models.TestCaseToCreate) bool {
		return tc.Status == models.TestCaseStatusError && tc.OriginalInput == "order a card"
	})).Return(nil).Once()
	suite.exec.Mock.ExpectCommit()
	suite.repository.On("ListTestCasesByIds", suite.ctx, mock.Anything, mock.MatchedBy(func(ids []uuid.UUID) bool {
		return len(ids) == 2
	})).Return([]models.TestCase{suite.testCase, {Status: models.TestCaseStatusError}}, nil)

	testCases, err := suite.makeUsecase().GenerateFromUpload(suite.ctx, suite.suiteId, "requirements.txt", data)

	suite.NoError(err)
	suite.Len(testCases, 2)
	suite.repository.AssertNotCalled(suite.T(), "UpsertGenerationRequest", mock.Anything, mock.Anything, mock.Anything)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromDocument_noRequirementIsRecorded() {
	input := models.GenerateFromDocumentInput{SuiteId: suite.suiteId, ExtractedText: "meeting notes"}

	suite.repository.On("GetGenerationRequest", suite.ctx, mock.Anything, mock.AnythingOfType("string")).
		Return((*models.GenerationRequest)(nil), nil)
	suite.generator.On("GenerateFromDocument", suite.ctx, input).Return([]models.DocumentGenerationItem{}, nil)
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("UpsertGenerationRequest", suite.ctx, mock.Anything, mock.MatchedBy(func(req models.GenerationRequest) bool {
		return len(req.TestCaseIds) == 0 && req.SourceType == models.TestCaseSourceDocument
	})).Return(nil)
	suite.exec.Mock.ExpectCommit()
	suite.repository.On("ListTestCasesByIds", suite.ctx, mock.Anything, []uuid.UUID{}).Return([]models.TestCase{}, nil)

	testCases, err := suite.makeUsecase().GenerateFromDocument(suite.ctx, input)

	suite.NoError(err)
	suite.Empty(testCases)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_GenerateFromDocument_extractionStepFailed() {
	input := models.GenerateFromDocumentInput{SuiteId: suite.suiteId, ExtractedText: "requirements"}

	suite.repository.On("GetGenerationRequest", suite.ctx, mock.Anything, mock.AnythingOfType("string")).
		Return((*models.GenerationRequest)(nil), nil)
	suite.generator.On("GenerateFromDocument", suite.ctx, input).
		Return([]models.DocumentGenerationItem(nil), errors.Wrap(models.ErrGenerationFailed, "not an array"))

	_, err := suite.makeUsecase().GenerateFromDocument(suite.ctx, input)

	suite.ErrorIs(err, models.ErrGenerationFailed)
	suite.AssertExpectations()
}

// ApplyApprovalAction
func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_approve() {
	approved := suite.testCase
	approved.Status = models.TestCaseStatusApproved

	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)
	suite.repository.On("UpdateTestCaseStatus", suite.ctx, mock.Anything, models.TestCaseStatusUpdate{
		Id:              suite.testCaseId,
		ExpectedStatus:  models.TestCaseStatusDraft,
		ExpectedVersion: 1,
		NewStatus:       models.TestCaseStatusApproved,
	}).Return(approved, nil)
	suite.repository.On("CreateApprovalRecord", suite.ctx, mock.Anything, models.ApprovalRecordToCreate{
		TestCaseId:    suite.testCaseId,
		VersionNumber: 1,
		Action:        models.ApprovalActionApprove,
		Actor:         "reviewer@example.com",
	}).Return(nil)
	suite.exec.Mock.ExpectCommit()
	suite.repository.On("GetTestCaseWithVersions", suite.ctx, mock.Anything, suite.testCaseId).Return(approved, nil)

	tc, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId: suite.testCaseId,
		Action:     models.ApprovalActionApprove,
	})

	suite.NoError(err)
	suite.Equal(models.TestCaseStatusApproved, tc.Status)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_retryQueuesRegeneration() {
	retry := suite.testCase
	retry.Status = models.TestCaseStatusRetry

	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)
	suite.repository.On("UpdateTestCaseStatus", suite.ctx, mock.Anything, mock.MatchedBy(func(u models.TestCaseStatusUpdate) bool {
		return u.NewStatus == models.TestCaseStatusRetry && u.NewVersion == nil
	})).Return(retry, nil)
	suite.repository.On("CreateApprovalRecord", suite.ctx, mock.Anything, mock.MatchedBy(func(r models.ApprovalRecordToCreate) bool {
		return r.Action == models.ApprovalActionRetry && r.Feedback == "ask for the card number"
	})).Return(nil)
	suite.taskQueue.On("EnqueueTestCaseRegenerationTask", suite.ctx, mock.Anything, models.TestCaseRegenerationArgs{
		TestCaseId:  suite.testCaseId,
		FromVersion: 1,
		Feedback:    "ask for the card number",
		Actor:       "reviewer@example.com",
	}).Return(nil)
	suite.exec.Mock.ExpectCommit()
	suite.repository.On("GetTestCaseWithVersions", suite.ctx, mock.Anything, suite.testCaseId).Return(retry, nil)

	tc, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId: suite.testCaseId,
		Action:     models.ApprovalActionRetry,
		Feedback:   "ask for the card number",
	})

	suite.NoError(err)
	suite.Equal(models.TestCaseStatusRetry, tc.Status)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_retryWithoutFeedback() {
	_, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId: suite.testCaseId,
		Action:     models.ApprovalActionRetry,
		Feedback:   "   ",
	})

	suite.ErrorIs(err, models.ErrRetryRequiresFeedback)
	suite.ErrorIs(err, models.BadParameterError)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_concurrentModification() {
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)
	suite.repository.On("UpdateTestCaseStatus", suite.ctx, mock.Anything, mock.Anything).
		Return(models.TestCase{}, models.ErrConcurrentModification)
	suite.exec.Mock.ExpectRollback()

	_, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId: suite.testCaseId,
		Action:     models.ApprovalActionDeny,
	})

	suite.ErrorIs(err, models.ErrConcurrentModification)
	suite.repository.AssertNotCalled(suite.T(), "CreateApprovalRecord", mock.Anything, mock.Anything, mock.Anything)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_staleExpectedVersion() {
	expected := 3

	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)
	suite.exec.Mock.ExpectRollback()

	_, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId:      suite.testCaseId,
		Action:          models.ApprovalActionApprove,
		ExpectedVersion: &expected,
	})

	suite.ErrorIs(err, models.ErrConcurrentModification)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_decisionAlreadyTaken() {
	approved := suite.testCase
	approved.Status = models.TestCaseStatusApproved
	version := 1
	seen := models.TestCaseStatusDraft

	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(approved, nil)
	suite.exec.Mock.ExpectRollback()

	_, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId:      suite.testCaseId,
		Action:          models.ApprovalActionRetry,
		Feedback:        "ask for the card number",
		ExpectedVersion: &version,
		ExpectedStatus:  &seen,
	})

	suite.ErrorIs(err, models.ErrConcurrentModification)
	suite.NotErrorIs(err, models.ErrInvalidTransition)
	suite.repository.AssertNotCalled(suite.T(), "UpdateTestCaseStatus", mock.Anything, mock.Anything, mock.Anything)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_invalidTransition() {
	denied := suite.testCase
	denied.Status = models.TestCaseStatusDenied

	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(denied, nil)
	suite.exec.Mock.ExpectRollback()

	_, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId: suite.testCaseId,
		Action:     models.ApprovalActionApprove,
	})

	suite.ErrorIs(err, models.ErrInvalidTransition)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_ApplyApprovalAction_mandatoryReview() {
	suite.reviewPolicy = models.ReviewPolicy{MandatoryReview: true}

	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)
	suite.exec.Mock.ExpectRollback()

	_, err := suite.makeUsecase().ApplyApprovalAction(suite.ctx, models.ApprovalInput{
		TestCaseId: suite.testCaseId,
		Action:     models.ApprovalActionApprove,
	})

	suite.ErrorIs(err, models.ErrInvalidTransition)
	suite.AssertExpectations()
}

// RequestReview, Submit
func (suite *TestCaseUsecaseTestSuite) Test_RequestReview_nominal() {
	pending := suite.testCase
	pending.Status = models.TestCaseStatusPendingReview

	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)
	suite.repository.On("UpdateTestCaseStatus", suite.ctx, mock.Anything, models.TestCaseStatusUpdate{
		Id:              suite.testCaseId,
		ExpectedStatus:  models.TestCaseStatusDraft,
		ExpectedVersion: 1,
		NewStatus:       models.TestCaseStatusPendingReview,
	}).Return(pending, nil)
	suite.repository.On("CreateApprovalRecord", suite.ctx, mock.Anything, mock.MatchedBy(func(r models.ApprovalRecordToCreate) bool {
		return r.Action == models.ApprovalActionRequestReview
	})).Return(nil)
	suite.exec.Mock.ExpectCommit()
	suite.repository.On("GetTestCaseWithVersions", suite.ctx, mock.Anything, suite.testCaseId).Return(pending, nil)

	tc, err := suite.makeUsecase().RequestReview(suite.ctx, suite.testCaseId, nil)

	suite.NoError(err)
	suite.Equal(models.TestCaseStatusPendingReview, tc.Status)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_Submit_notApproved() {
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("GetTestCaseById", suite.ctx, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)
	suite.exec.Mock.ExpectRollback()

	_, err := suite.makeUsecase().Submit(suite.ctx, suite.testCaseId, nil)

	suite.ErrorIs(err, models.ErrInvalidTransition)
	suite.AssertExpectations()
}

// RegenerateTestCase
func (suite *TestCaseUsecaseTestSuite) regenerationArgs() models.TestCaseRegenerationArgs {
	return models.TestCaseRegenerationArgs{
		TestCaseId:  suite.testCaseId,
		FromVersion: 1,
		Feedback:    "ask for the card number",
		Actor:       "reviewer@example.com",
	}
}

func (suite *TestCaseUsecaseTestSuite) Test_RegenerateTestCase_nominal() {
	retry := suite.testCase
	retry.Status = models.TestCaseStatusRetry
	previous := models.TestCaseVersion{VersionNumber: 1, Content: json.RawMessage(`{"v":1}`)}
	generated := models.GeneratedTestCase{Content: json.RawMessage(`{"v":2}`), Prompt: "prompt", RawResponse: `{"v":2}`}

	suite.repository.On("GetTestCaseById", mock.Anything, mock.Anything, suite.testCaseId).Return(retry, nil)
	suite.repository.On("GetTestCaseVersion", mock.Anything, mock.Anything, suite.testCaseId, 1).Return(previous, nil)
	suite.generator.On("Regenerate", mock.Anything, models.RegenerationInput{
		OriginalInput: retry.OriginalInput,
		Type:          retry.Type,
		Feedback:      "ask for the card number",
		PreviousJSON:  previous.Content,
	}).Return(generated, nil)
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("UpdateTestCaseStatus", mock.Anything, mock.Anything, models.TestCaseStatusUpdate{
		Id:              suite.testCaseId,
		ExpectedStatus:  models.TestCaseStatusRetry,
		ExpectedVersion: 1,
		NewStatus:       models.TestCaseStatusDraft,
		NewVersion: &models.TestCaseVersionToCreate{
			Content:     generated.Content,
			Prompt:      "prompt",
			RawResponse: `{"v":2}`,
			Feedback:    "ask for the card number",
			CreatedBy:   "reviewer@example.com",
		},
	}).Return(models.TestCase{}, nil)
	suite.exec.Mock.ExpectCommit()

	err := suite.makeUsecase().RegenerateTestCase(suite.ctx, suite.regenerationArgs())

	suite.NoError(err)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_RegenerateTestCase_staleJob() {
	suite.repository.On("GetTestCaseById", mock.Anything, mock.Anything, suite.testCaseId).Return(suite.testCase, nil)

	err := suite.makeUsecase().RegenerateTestCase(suite.ctx, suite.regenerationArgs())

	suite.NoError(err)
	suite.generator.AssertNotCalled(suite.T(), "Regenerate", mock.Anything, mock.Anything)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_RegenerateTestCase_generationFailed() {
	retry := suite.testCase
	retry.Status = models.TestCaseStatusRetry

	suite.repository.On("GetTestCaseById", mock.Anything, mock.Anything, suite.testCaseId).Return(retry, nil)
	suite.repository.On("GetTestCaseVersion", mock.Anything, mock.Anything, suite.testCaseId, 1).
		Return(models.TestCaseVersion{Content: json.RawMessage(`{}`)}, nil)
	suite.generator.On("Regenerate", mock.Anything, mock.Anything).
		Return(models.GeneratedTestCase{}, errors.Wrap(models.ErrGenerationFailed, "status 400"))
	suite.exec.Mock.ExpectBegin()
	suite.repository.On("UpdateTestCaseStatus", mock.Anything, mock.Anything, mock.MatchedBy(func(u models.TestCaseStatusUpdate) bool {
		return u.NewStatus == models.TestCaseStatusError &&
			u.ExpectedStatus == models.TestCaseStatusRetry &&
			u.NewVersion == nil &&
			u.ErrorDetail != nil
	})).Return(models.TestCase{}, nil)
	suite.exec.Mock.ExpectCommit()

	err := suite.makeUsecase().RegenerateTestCase(suite.ctx, suite.regenerationArgs())

	suite.NoError(err)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_RegenerateTestCase_transientErrorIsReturned() {
	retry := suite.testCase
	retry.Status = models.TestCaseStatusRetry

	suite.repository.On("GetTestCaseById", mock.Anything, mock.Anything, suite.testCaseId).Return(retry, nil)
	suite.repository.On("GetTestCaseVersion", mock.Anything, mock.Anything, suite.testCaseId, 1).
		Return(models.TestCaseVersion{Content: json.RawMessage(`{}`)}, nil)
	suite.generator.On("Regenerate", mock.Anything, mock.Anything).
		Return(models.GeneratedTestCase{}, context.DeadlineExceeded)

	err := suite.makeUsecase().RegenerateTestCase(suite.ctx, suite.regenerationArgs())

	suite.ErrorIs(err, context.DeadlineExceeded)
	suite.AssertExpectations()
}

func (suite *TestCaseUsecaseTestSuite) Test_RegenerateTestCase_deleted() {
	suite.repository.On("GetTestCaseById", mock.Anything, mock.Anything, suite.testCaseId).
		Return(models.TestCase{}, models.ErrTestCaseNotFound)

	err := suite.makeUsecase().RegenerateTestCase(suite.ctx, suite.regenerationArgs())

	suite.NoError(err)
	suite.AssertExpectations()
}

func TestTestCaseUsecase(t *testing.T) {
	suite.Run(t, new(TestCaseUsecaseTestSuite))
}
