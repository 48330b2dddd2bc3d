package api

import (
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/dto"
	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/pure_utils"
	"github.com/checkmarble/agent-eval-backend/usecases"
)

type TestCaseUriInput struct {
	TestCaseId string `uri:"test_case_id" binding:"required,uuid"`
}

// SuiteFilterInput selects an optional test suite. suite_id is kept as an alias of test_suite_id.
type SuiteFilterInput struct {
	TestSuiteId string `form:"test_suite_id" binding:"omitempty,uuid"`
	SuiteId     string `form:"suite_id" binding:"omitempty,uuid"`
}

func (i SuiteFilterInput) suiteId() *uuid.UUID {
	raw := i.TestSuiteId
	if raw == "" {
		raw = i.SuiteId
	}
	if raw == "" {
		return nil
	}
	id := uuid.MustParse(raw)
	return &id
}

// requiredSuiteId reads test_suite_id from the request body value when set, then from the
// query string or multipart form.
func requiredSuiteId(c *gin.Context, fromBody string) (uuid.UUID, error) {
	raw := fromBody
	for _, key := range []string{"test_suite_id", "suite_id"} {
		if raw != "" {
			break
		}
		raw = c.Query(key)
		if raw == "" {
			raw = c.PostForm(key)
		}
	}
	if raw == "" {
		return uuid.Nil, errors.Wrap(models.BadParameterError, "test_suite_id is required")
	}
	return dto.ParseUuid(raw)
}

func handleListTestCases(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		params := struct {
			SuiteFilterInput
			Status       string `form:"status"`
			StatusFilter string `form:"status_filter"`
		}{}
		if err := c.ShouldBindQuery(&params); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		filters := models.TestCaseFilters{SuiteId: params.suiteId()}
		if params.Status == "" {
			params.Status = params.StatusFilter
		}
		if params.Status != "" {
			status, err := models.TestCaseStatusFrom(params.Status)
			if presentError(ctx, c, err) {
				return
			}
			filters.Status = &status
		}

		usecase := uc.NewTestCaseUsecase()
		testCases, err := usecase.ListTestCases(ctx, filters)
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, pure_utils.Map(testCases, dto.AdaptTestCaseDto))
	}
}

func handleGenerateTestCase(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var body dto.GenerateTestCaseBody
		if err := c.ShouldBindJSON(&body); err != nil {
			presentBindingError(ctx, c, err)
			return
		}
		suiteId, err := requiredSuiteId(c, body.TestSuiteId)
		if presentError(ctx, c, err) {
			return
		}

		usecase := uc.NewTestCaseUsecase()
		testCase, err := usecase.GenerateFromDescription(ctx, models.GenerateFromDescriptionInput{
			SuiteId:     suiteId,
			Description: body.Description,
			TypeHint:    models.TestCaseTypeFrom(body.TypeHint),
		})
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusCreated, dto.AdaptTestCaseDto(testCase))
	}
}

func handleGenerateFromDocument(uc usecases.Usecases, maxUploadSize int64) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		fileHeader, err := c.FormFile("file")
		if err != nil {
			presentBindingError(ctx, c, errors.Wrap(err, "a multipart \"file\" field is required"))
			return
		}
		suiteId, err := requiredSuiteId(c, "")
		if presentError(ctx, c, err) {
			return
		}
		if maxUploadSize > 0 && fileHeader.Size > maxUploadSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.APIErrorResponse{
				Message:   "uploaded document is too large",
				ErrorCode: dto.DocumentTooLarge,
			})
			return
		}
		file, err := fileHeader.Open()
		if presentError(ctx, c, err) {
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if presentError(ctx, c, err) {
			return
		}

		usecase := uc.NewTestCaseUsecase()
		testCases, err := usecase.GenerateFromUpload(ctx, suiteId, fileHeader.Filename, data)
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusCreated, pure_utils.Map(testCases, dto.AdaptTestCaseDto))
	}
}

func handleGenerateFromText(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var body dto.GenerateFromTextBody
		if err := c.ShouldBindJSON(&body); err != nil {
			presentBindingError(ctx, c, err)
			return
		}
		suiteId, err := requiredSuiteId(c, body.TestSuiteId)
		if presentError(ctx, c, err) {
			return
		}

		usecase := uc.NewTestCaseUsecase()
		testCases, err := usecase.GenerateFromDocument(ctx, models.GenerateFromDocumentInput{
			SuiteId:       suiteId,
			ExtractedText: body.Text,
		})
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusCreated, pure_utils.Map(testCases, dto.AdaptTestCaseDto))
	}
}

func handleGetTestCase(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri TestCaseUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewTestCaseUsecase()
		testCase, err := usecase.GetTestCase(ctx, uuid.MustParse(uri.TestCaseId))
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, dto.AdaptTestCaseDto(testCase))
	}
}

func handleListTestCaseVersions(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri TestCaseUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewTestCaseUsecase()
		versions, err := usecase.ListTestCaseVersions(ctx, uuid.MustParse(uri.TestCaseId))
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, pure_utils.Map(versions, dto.AdaptTestCaseVersionDto))
	}
}

func handleListApprovalRecords(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri TestCaseUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewTestCaseUsecase()
		records, err := usecase.ListApprovalRecords(ctx, uuid.MustParse(uri.TestCaseId))
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, pure_utils.Map(records, dto.AdaptApprovalRecordDto))
	}
}

func handleApproveTestCase(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri TestCaseUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}
		var body dto.ApprovalBody
		if err := c.ShouldBindJSON(&body); err != nil {
			presentBindingError(ctx, c, err)
			return
		}
		input, err := dto.AdaptApprovalInput(uri.TestCaseId, body)
		if presentError(ctx, c, err) {
			return
		}

		usecase := uc.NewTestCaseUsecase()
		testCase, err := usecase.ApplyApprovalAction(ctx, input)
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, dto.AdaptTestCaseDto(testCase))
	}
}

// bindTransitionBody reads the optional body of the request-review and submit endpoints.
func bindTransitionBody(c *gin.Context) (dto.TransitionBody, error) {
	var body dto.TransitionBody
	if c.Request.ContentLength == 0 {
		return body, nil
	}
	err := c.ShouldBindJSON(&body)
	return body, err
}

func handleRequestReview(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri TestCaseUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}
		body, err := bindTransitionBody(c)
		if err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewTestCaseUsecase()
		testCase, err := usecase.RequestReview(ctx, uuid.MustParse(uri.TestCaseId), body.ExpectedVersionPtr())
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, dto.AdaptTestCaseDto(testCase))
	}
}

func handleSubmitTestCase(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri TestCaseUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}
		body, err := bindTransitionBody(c)
		if err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewTestCaseUsecase()
		testCase, err := usecase.Submit(ctx, uuid.MustParse(uri.TestCaseId), body.ExpectedVersionPtr())
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, dto.AdaptTestCaseDto(testCase))
	}
}

func handleDeleteTestCase(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri TestCaseUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewTestCaseUsecase()
		err := usecase.DeleteTestCase(ctx, uuid.MustParse(uri.TestCaseId))
		if presentError(ctx, c, err) {
			return
		}

		c.Status(http.StatusNoContent)
	}
}
