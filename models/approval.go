package models

import (
	"time"

	"github.com/google/uuid"
)

const AnonymousActor = "anonymous"

type ApprovalInput struct {
	TestCaseId uuid.UUID
	Action     ApprovalAction
	Feedback   string
	// Optional: when set, the action is rejected unless the case is still at this version.
	ExpectedVersion *int
	// Optional: the status the reviewer saw. A decision already taken by someone else is then reported
	// as a concurrent modification rather than an invalid transition.
	ExpectedStatus *TestCaseStatus
}

type ApprovalRecord struct {
	Id            uuid.UUID
	TestCaseId    uuid.UUID
	VersionNumber int
	Action        ApprovalAction
	Actor         string
	Feedback      string
	CreatedAt     time.Time
}

type ApprovalRecordToCreate struct {
	TestCaseId    uuid.UUID
	VersionNumber int
	Action        ApprovalAction
	Actor         string
	Feedback      string
}
