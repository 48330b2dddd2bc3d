package api

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/checkmarble/agent-eval-backend/dto"
	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

// Sentinels with a dedicated error code, checked before the base errors that decide the status.
var errorCodes = []struct {
	err    error
	status int
	code   dto.ErrorCode
}{
	{models.ErrRetryRequiresFeedback, http.StatusBadRequest, dto.RetryRequiresFeedback},
	{models.ErrInvalidTransition, http.StatusBadRequest, dto.InvalidTransition},
	{models.ErrConcurrentModification, http.StatusConflict, dto.ConcurrentModification},
	{models.ErrRunAlreadyInProgress, http.StatusConflict, dto.RunAlreadyInProgress},
	{models.ErrRunStillActive, http.StatusConflict, dto.RunStillActive},
	{models.ErrGenerationFailed, http.StatusBadGateway, dto.GenerationFailed},
	{models.ErrExtractionFailed, http.StatusUnprocessableEntity, dto.ExtractionFailed},
	{models.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, dto.UnsupportedFormat},
}

var baseErrorStatuses = []struct {
	err    error
	status int
}{
	{models.BadParameterError, http.StatusBadRequest},
	{models.NotFoundError, http.StatusNotFound},
	{models.ConflictError, http.StatusConflict},
	{models.UnsupportedMediaTypeError, http.StatusUnsupportedMediaType},
	{models.UnprocessableEntityError, http.StatusUnprocessableEntity},
	{models.UpstreamError, http.StatusBadGateway},
}

func errorStatus(err error) (int, dto.ErrorCode) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return http.StatusBadRequest, dto.InvalidRequestParameter
	}
	for _, e := range baseErrorStatuses {
		if errors.Is(err, e.err) {
			return e.status, ""
		}
	}
	return http.StatusInternalServerError, ""
}

func presentError(ctx context.Context, c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	status, code := errorStatus(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		utils.LogAndReportSentryError(ctx, err)
		message = "internal server error"
	case status == http.StatusBadGateway:
		utils.LoggerFromContext(ctx).WarnContext(ctx, "upstream error", "error", message)
	default:
		utils.LoggerFromContext(ctx).InfoContext(ctx, "request rejected", "status", status, "error", message)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, dto.APIErrorResponse{Message: message, ErrorCode: code})
	return true
}

// presentBindingError answers 400 for a request that could not be bound to its input struct.
func presentBindingError(ctx context.Context, c *gin.Context, err error) {
	presentError(ctx, c, errors.Mark(err, models.BadParameterError))
}
