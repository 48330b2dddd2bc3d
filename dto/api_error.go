package dto

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
)

type APIErrorResponse struct {
	Message   string    `json:"message"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
}

type ErrorCode string

const (
	InvalidTransition       ErrorCode = "invalid_transition"
	ConcurrentModification  ErrorCode = "concurrent_modification"
	RetryRequiresFeedback   ErrorCode = "retry_requires_feedback"
	RunAlreadyInProgress    ErrorCode = "run_already_in_progress"
	RunStillActive          ErrorCode = "run_still_active"
	GenerationFailed        ErrorCode = "generation_failed"
	ExtractionFailed        ErrorCode = "extraction_failed"
	UnsupportedFormat       ErrorCode = "unsupported_format"
	DocumentTooLarge        ErrorCode = "document_too_large"
	InvalidRequestParameter ErrorCode = "invalid_request_parameter"
)

func ParseUuid(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Wrapf(models.BadParameterError, "invalid uuid %q", s)
	}
	return id, nil
}
