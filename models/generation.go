package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type GenerateFromDescriptionInput struct {
	SuiteId     uuid.UUID
	Description string
	TypeHint    TestCaseType
}

type GenerateFromDocumentInput struct {
	SuiteId       uuid.UUID
	ExtractedText string
	// Name of the uploaded file, informative only
	FileName string
}

// GeneratedTestCase is the structured content produced for one requirement.
type GeneratedTestCase struct {
	Name        string
	Description string
	Type        TestCaseType
	Content     json.RawMessage
	Prompt      string
	RawResponse string
}

// Requirement is an actionable test requirement found in a document.
type Requirement struct {
	Description string       `json:"description"`
	TypeHint    TestCaseType `json:"type_hint"`
}

// DocumentGenerationItem is the outcome of the generation of one requirement of a document. Err is
// set when that requirement could not be generated; the other items are unaffected.
type DocumentGenerationItem struct {
	Requirement Requirement
	Generated   GeneratedTestCase
	Err         error
}

type GenerationRequest struct {
	Digest      string
	SuiteId     uuid.UUID
	SourceType  TestCaseSourceType
	TestCaseIds []uuid.UUID
	CreatedAt   time.Time
}

type RegenerationInput struct {
	OriginalInput string
	Type          TestCaseType
	Feedback      string
	PreviousJSON  json.RawMessage
}
