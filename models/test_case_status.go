package models

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type TestCaseStatus string

const (
	TestCaseStatusDraft         TestCaseStatus = "draft"
	TestCaseStatusPendingReview TestCaseStatus = "pending_review"
	TestCaseStatusApproved      TestCaseStatus = "approved"
	TestCaseStatusRetry         TestCaseStatus = "retry"
	TestCaseStatusDenied        TestCaseStatus = "denied"
	TestCaseStatusSubmitted     TestCaseStatus = "submitted"
	TestCaseStatusError         TestCaseStatus = "error"
)

var TestCaseStatuses = []TestCaseStatus{
	TestCaseStatusDraft,
	TestCaseStatusPendingReview,
	TestCaseStatusApproved,
	TestCaseStatusRetry,
	TestCaseStatusDenied,
	TestCaseStatusSubmitted,
	TestCaseStatusError,
}

func TestCaseStatusFrom(s string) (TestCaseStatus, error) {
	for _, status := range TestCaseStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", errors.Wrapf(BadParameterError, "unknown test case status %q", s)
}

type ApprovalAction string

const (
	ApprovalActionApprove ApprovalAction = "approve"
	ApprovalActionRetry   ApprovalAction = "retry"
	ApprovalActionDeny    ApprovalAction = "deny"

	// Recorded in the approval history, but not accepted as reviewer actions.
	ApprovalActionRequestReview ApprovalAction = "request_review"
	ApprovalActionSubmit        ApprovalAction = "submit"
)

func ApprovalActionFrom(s string) (ApprovalAction, error) {
	switch ApprovalAction(s) {
	case ApprovalActionApprove, ApprovalActionRetry, ApprovalActionDeny:
		return ApprovalAction(s), nil
	}
	return "", errors.Wrapf(BadParameterError, "unknown approval action %q", s)
}

type ReviewPolicy struct {
	// When set, a draft must be moved to pending_review before it can be approved.
	MandatoryReview bool
	// Suites where the review is mandatory even if MandatoryReview is not set
	MandatoryReviewSuites []uuid.UUID
}

func (p ReviewPolicy) ForSuite(suiteId uuid.UUID) ReviewPolicy {
	if slices.Contains(p.MandatoryReviewSuites, suiteId) {
		p.MandatoryReview = true
	}
	return p
}

// NextStatus returns the status reached by applying a reviewer action, or ErrInvalidTransition.
func NextStatus(current TestCaseStatus, action ApprovalAction, policy ReviewPolicy) (TestCaseStatus, error) {
	switch current {
	case TestCaseStatusDraft, TestCaseStatusPendingReview:
	default:
		return "", errors.Wrapf(ErrInvalidTransition, "cannot %s a test case in status %s", action, current)
	}

	switch action {
	case ApprovalActionApprove:
		if policy.MandatoryReview && current == TestCaseStatusDraft {
			return "", errors.Wrap(ErrInvalidTransition, "test case must be reviewed before approval")
		}
		return TestCaseStatusApproved, nil
	case ApprovalActionRetry:
		return TestCaseStatusRetry, nil
	case ApprovalActionDeny:
		return TestCaseStatusDenied, nil
	}
	return "", errors.Wrapf(ErrInvalidTransition, "unknown action %s", action)
}

// Transitions that are not reviewer actions.
func CanRequestReview(current TestCaseStatus) bool {
	return current == TestCaseStatusDraft
}

func CanSubmit(current TestCaseStatus) bool {
	return current == TestCaseStatusApproved
}

func CanRegenerate(current TestCaseStatus) bool {
	return current == TestCaseStatusRetry
}
