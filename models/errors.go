package models

import (
	"github.com/cockroachdb/errors"
)

// Base errors, related to default API status codes
var (
	// BadParameterError is rendered with the http status code 400
	BadParameterError = errors.New("bad parameter")

	// NotFoundError is rendered with the http status code 404
	NotFoundError = errors.New("not found")

	// ConflictError is rendered with the http status code 409
	ConflictError = errors.New("duplicate value")

	// UnsupportedMediaTypeError is rendered with the http status code 415
	UnsupportedMediaTypeError = errors.New("unsupported media type")

	// UnprocessableEntityError is rendered with the http status code 422
	UnprocessableEntityError = errors.New("unprocessable entity")

	// UpstreamError is rendered with the http status code 502
	UpstreamError = errors.New("upstream service error")
)

// DB related errors
var (
	ErrIgnoreRollBackError = errors.New("ignore rollback error")
)

// Test case lifecycle errors
var (
	ErrTestCaseNotFound       = errors.Wrap(NotFoundError, "test case not found")
	ErrInvalidTransition      = errors.Wrap(BadParameterError, "invalid status transition")
	ErrConcurrentModification = errors.Wrap(ConflictError, "test case was modified concurrently, re-fetch and retry")
	ErrRetryRequiresFeedback  = errors.Wrap(BadParameterError, "feedback is required for the retry action")
)

// Generation errors
var (
	ErrGenerationFailed  = errors.Wrap(UpstreamError, "test case generation failed")
	ErrExtractionFailed  = errors.Wrap(UnprocessableEntityError, "text extraction failed")
	ErrUnsupportedFormat = errors.Wrap(UnsupportedMediaTypeError, "unsupported document format")
)

// Evaluation run errors
var (
	ErrEvaluationRunNotFound = errors.Wrap(NotFoundError, "evaluation run not found")
	ErrRunAlreadyInProgress  = errors.Wrap(ConflictError, "an evaluation run is already in progress for this suite")
	ErrRunNotActive          = errors.Wrap(ErrInvalidTransition, "evaluation run is not pending or running")
	ErrRunStillActive        = errors.Wrap(ConflictError, "evaluation run is still pending or running")
)

// Agent execution errors. They never reach the API: a failed execution becomes an "error" outcome.
var (
	ErrExecutionTimeout        = errors.New("agent execution timed out")
	ErrExecutionTransportError = errors.New("agent execution transport error")
	ErrMalformedAgentResponse  = errors.Wrap(ErrExecutionTransportError, "malformed agent response")
)
