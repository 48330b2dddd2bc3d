package dto

import (
	"encoding/json"
	"time"

	"github.com/guregu/null/v5"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/pure_utils"
)

type TestCaseVersion struct {
	VersionNumber int             `json:"version_number"`
	Content       json.RawMessage `json:"content"`
	Prompt        string          `json:"prompt"`
	RawResponse   string          `json:"raw_response"`
	Feedback      null.String     `json:"feedback"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

func AdaptTestCaseVersionDto(v models.TestCaseVersion) TestCaseVersion {
	return TestCaseVersion{
		VersionNumber: v.VersionNumber,
		Content:       v.Content,
		Prompt:        v.Prompt,
		RawResponse:   v.RawResponse,
		Feedback:      null.NewString(v.Feedback, v.Feedback != ""),
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
	}
}

type TestCase struct {
	Id             string            `json:"id"`
	SuiteId        string            `json:"suite_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Type           string            `json:"type"`
	Status         string            `json:"status"`
	SourceType     string            `json:"source_type"`
	OriginalInput  string            `json:"original_input"`
	CurrentVersion int               `json:"current_version"`
	ErrorDetail    null.String       `json:"error_detail"`
	Versions       []TestCaseVersion `json:"versions,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func AdaptTestCaseDto(tc models.TestCase) TestCase {
	out := TestCase{
		Id:             tc.Id.String(),
		SuiteId:        tc.SuiteId.String(),
		Name:           tc.Name,
		Description:    tc.Description,
		Type:           string(tc.Type),
		Status:         string(tc.Status),
		SourceType:     string(tc.SourceType),
		OriginalInput:  tc.OriginalInput,
		CurrentVersion: tc.CurrentVersion,
		ErrorDetail:    null.NewString(tc.ErrorDetail, tc.ErrorDetail != ""),
		CreatedAt:      tc.CreatedAt,
		UpdatedAt:      tc.UpdatedAt,
	}
	if tc.Versions != nil {
		out.Versions = pure_utils.Map(tc.Versions, AdaptTestCaseVersionDto)
	}
	return out
}

type ApprovalRecord struct {
	Id            string      `json:"id"`
	TestCaseId    string      `json:"test_case_id"`
	VersionNumber int         `json:"version_number"`
	Action        string      `json:"action"`
	Actor         string      `json:"actor"`
	Feedback      null.String `json:"feedback"`
	CreatedAt     time.Time   `json:"created_at"`
}

func AdaptApprovalRecordDto(r models.ApprovalRecord) ApprovalRecord {
	return ApprovalRecord{
		Id:            r.Id.String(),
		TestCaseId:    r.TestCaseId.String(),
		VersionNumber: r.VersionNumber,
		Action:        string(r.Action),
		Actor:         r.Actor,
		Feedback:      null.NewString(r.Feedback, r.Feedback != ""),
		CreatedAt:     r.CreatedAt,
	}
}

type GenerateTestCaseBody struct {
	Description string `json:"description" binding:"required"`
	TestSuiteId string `json:"test_suite_id"`
	TypeHint    string `json:"type_hint"`
}

type GenerateFromTextBody struct {
	Text        string `json:"text" binding:"required"`
	TestSuiteId string `json:"test_suite_id"`
}

type ApprovalBody struct {
	Action          string   `json:"action" binding:"required,oneof=approve retry deny"`
	Feedback        string   `json:"feedback"`
	ExpectedVersion null.Int    `json:"expected_version"`
	ExpectedStatus  null.String `json:"expected_status"`
}

func AdaptApprovalInput(testCaseId string, body ApprovalBody) (models.ApprovalInput, error) {
	id, err := ParseUuid(testCaseId)
	if err != nil {
		return models.ApprovalInput{}, err
	}
	action, err := models.ApprovalActionFrom(body.Action)
	if err != nil {
		return models.ApprovalInput{}, err
	}
	input := models.ApprovalInput{
		TestCaseId: id,
		Action:     action,
		Feedback:   body.Feedback,
	}
	if body.ExpectedVersion.Valid {
		v := int(body.ExpectedVersion.Int64)
		input.ExpectedVersion = &v
	}
	if body.ExpectedStatus.Valid {
		status, err := models.TestCaseStatusFrom(body.ExpectedStatus.String)
		if err != nil {
			return models.ApprovalInput{}, err
		}
		input.ExpectedStatus = &status
	}
	return input, nil
}

// TransitionBody is the optional body of the request-review and submit endpoints.
type TransitionBody struct {
	ExpectedVersion null.Int `json:"expected_version"`
}

func (b TransitionBody) ExpectedVersionPtr() *int {
	if !b.ExpectedVersion.Valid {
		return nil
	}
	v := int(b.ExpectedVersion.Int64)
	return &v
}
