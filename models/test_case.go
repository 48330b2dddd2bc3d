package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TestCaseType is an open set: values written by newer versions are kept verbatim and handled
// as "other" by code that does not know them.
type TestCaseType string

const (
	TestCaseTypeConversationFlow TestCaseType = "conversation-flow"
	TestCaseTypeTransactional    TestCaseType = "transactional"
	TestCaseTypeUnspecified      TestCaseType = "unspecified"
)

func (t TestCaseType) IsKnown() bool {
	switch t {
	case TestCaseTypeConversationFlow, TestCaseTypeTransactional, TestCaseTypeUnspecified:
		return true
	}
	return false
}

func TestCaseTypeFrom(s string) TestCaseType {
	if s == "" {
		return TestCaseTypeUnspecified
	}
	return TestCaseType(s)
}

type TestCaseSourceType string

const (
	TestCaseSourceText     TestCaseSourceType = "text"
	TestCaseSourceDocument TestCaseSourceType = "document"
)

type TestCase struct {
	Id             uuid.UUID
	SuiteId        uuid.UUID
	Name           string
	Description    string
	Type           TestCaseType
	Status         TestCaseStatus
	SourceType     TestCaseSourceType
	OriginalInput  string
	CurrentVersion int
	ErrorDetail    string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Only filled by the methods that explicitly load the version history.
	Versions []TestCaseVersion
}

func (tc TestCase) LatestVersion() (TestCaseVersion, bool) {
	for _, v := range tc.Versions {
		if v.VersionNumber == tc.CurrentVersion {
			return v, true
		}
	}
	return TestCaseVersion{}, false
}

type TestCaseVersion struct {
	Id            uuid.UUID
	TestCaseId    uuid.UUID
	VersionNumber int
	Content       json.RawMessage
	Prompt        string
	RawResponse   string
	Feedback      string
	CreatedBy     string
	CreatedAt     time.Time
}

type TestCaseFilters struct {
	SuiteId *uuid.UUID
	Status  *TestCaseStatus
}

type TestCaseToCreate struct {
	Id            uuid.UUID
	SuiteId       uuid.UUID
	Name          string
	Description   string
	Type          TestCaseType
	Status        TestCaseStatus
	SourceType    TestCaseSourceType
	OriginalInput string
	ErrorDetail   string
	FirstVersion  TestCaseVersionToCreate
}

type TestCaseVersionToCreate struct {
	Content     json.RawMessage
	Prompt      string
	RawResponse string
	Feedback    string
	CreatedBy   string
}

// TestCaseStatusUpdate is applied as a single compare-and-swap: it only succeeds if the row still
// has the expected status and version. When NewVersion is set, the version number is incremented and
// the snapshot is inserted in the same transaction.
type TestCaseStatusUpdate struct {
	Id              uuid.UUID
	ExpectedStatus  TestCaseStatus
	ExpectedVersion int
	NewStatus       TestCaseStatus
	NewVersion      *TestCaseVersionToCreate
	ErrorDetail     *string
}
