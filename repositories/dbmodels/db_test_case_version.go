package dbmodels

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const TABLE_TEST_CASE_VERSIONS = "test_case_versions"

type DBTestCaseVersion struct {
	Id            uuid.UUID       `db:"id"`
	TestCaseId    uuid.UUID       `db:"test_case_id"`
	VersionNumber int             `db:"version_number"`
	Content       json.RawMessage `db:"content"`
	Prompt        string          `db:"prompt"`
	RawResponse   string          `db:"raw_response"`
	Feedback      string          `db:"feedback"`
	CreatedBy     string          `db:"created_by"`
	CreatedAt     time.Time       `db:"created_at"`
}

var SelectTestCaseVersionColumns = utils.ColumnList[DBTestCaseVersion]()

func AdaptTestCaseVersion(db DBTestCaseVersion) (models.TestCaseVersion, error) {
	return models.TestCaseVersion{
		Id:            db.Id,
		TestCaseId:    db.TestCaseId,
		VersionNumber: db.VersionNumber,
		Content:       db.Content,
		Prompt:        db.Prompt,
		RawResponse:   db.RawResponse,
		Feedback:      db.Feedback,
		CreatedBy:     db.CreatedBy,
		CreatedAt:     db.CreatedAt,
	}, nil
}
